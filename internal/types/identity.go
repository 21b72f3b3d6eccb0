package types

import (
	"sort"
)

// IdentityKeys are the exact-match lookup values a store uses to gather the
// duplicate pool for a payload. Empty values never participate in a lookup.
type IdentityKeys struct {
	LinkedInURL    string
	Email          string
	FullName       string
	CurrentCompany string
	ApolloID       string
	LoxoID         string
	Phone          string
}

// IdentityKeys extracts lookup keys from the payload
func (p *CandidatePayload) IdentityKeys() IdentityKeys {
	return IdentityKeys{
		LinkedInURL:    StringValue(p.LinkedInURL),
		Email:          StringValue(p.Email),
		FullName:       StringValue(p.FullName),
		CurrentCompany: StringValue(p.CurrentCompany),
		ApolloID:       StringValue(p.ApolloID),
		LoxoID:         StringValue(p.LoxoID),
		Phone:          StringValue(p.Phone),
	}
}

// HasNameCompany reports whether both halves of the (full_name, current_company) pair are set
func (k IdentityKeys) HasNameCompany() bool {
	return k.FullName != "" && k.CurrentCompany != ""
}

// IsEmpty reports whether no lookup can be made
func (k IdentityKeys) IsEmpty() bool {
	return k.LinkedInURL == "" && k.Email == "" && !k.HasNameCompany() &&
		k.ApolloID == "" && k.LoxoID == "" && k.Phone == ""
}

// Matches reports whether c would be returned by an exact lookup on any key
func (k IdentityKeys) Matches(c *Candidate) bool {
	switch {
	case k.LinkedInURL != "" && c.LinkedInURL == k.LinkedInURL:
		return true
	case k.Email != "" && c.Email == k.Email:
		return true
	case k.HasNameCompany() && c.FullName == k.FullName && c.CurrentCompany == k.CurrentCompany:
		return true
	case k.ApolloID != "" && c.ApolloID == k.ApolloID:
		return true
	case k.LoxoID != "" && c.LoxoID == k.LoxoID:
		return true
	case k.Phone != "" && c.Phone == k.Phone:
		return true
	}
	return false
}

// SortCandidates orders candidates oldest first, breaking created_at ties by id.
// This is the pool order duplicate scoring relies on.
func SortCandidates(cands []*Candidate) {
	sort.SliceStable(cands, func(i, j int) bool {
		if !cands[i].CreatedAt.Equal(cands[j].CreatedAt) {
			return cands[i].CreatedAt.Before(cands[j].CreatedAt)
		}
		return cands[i].ID < cands[j].ID
	})
}

// DedupByID drops repeated ids, keeping the first occurrence
func DedupByID(cands []*Candidate) []*Candidate {
	seen := make(map[string]bool, len(cands))
	out := cands[:0:0]
	for _, c := range cands {
		if c == nil || seen[c.ID] {
			continue
		}
		seen[c.ID] = true
		out = append(out, c)
	}
	return out
}
