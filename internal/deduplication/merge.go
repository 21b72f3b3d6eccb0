package deduplication

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/talentdb/talent/internal/types"
)

// MergeFields computes the update that folds payload into existing.
//
// Per field kind:
//   - scalar: a present incoming value that differs from the stored one overwrites it
//   - array (skills): union, stored order first, deduplicated by value
//   - json (employment_history): arrays on both sides are unioned by element
//     value; anything else overwrites when different
//   - raw blob (apollo_raw_data, loxo_raw_data): replaced wholesale when present
//   - timestamp (last_synced_at): always set to now
//
// Absent payload fields (nil, or JSON null) never change the record. The
// returned update carries ExpectedVersion = existing.Version.
func MergeFields(existing *types.Candidate, payload *types.CandidatePayload, now time.Time) *types.CandidateUpdate {
	u := &types.CandidateUpdate{ExpectedVersion: existing.Version}

	u.FullName = mergeScalar(existing.FullName, payload.FullName)
	u.Email = mergeScalar(existing.Email, payload.Email)
	u.Phone = mergeScalar(existing.Phone, payload.Phone)
	u.LinkedInURL = mergeScalar(existing.LinkedInURL, payload.LinkedInURL)
	u.CurrentCompany = mergeScalar(existing.CurrentCompany, payload.CurrentCompany)
	u.ApolloID = mergeScalar(existing.ApolloID, payload.ApolloID)
	u.LoxoID = mergeScalar(existing.LoxoID, payload.LoxoID)
	u.Headline = mergeScalar(existing.Headline, payload.Headline)
	u.CurrentTitle = mergeScalar(existing.CurrentTitle, payload.CurrentTitle)
	u.Location = mergeScalar(existing.Location, payload.Location)
	u.CVParsedText = mergeScalar(existing.CVParsedText, payload.CVParsedText)

	if payload.Source != nil && *payload.Source != existing.Source {
		src := *payload.Source
		u.Source = &src
	}
	if payload.EmbeddingStatus != nil && *payload.EmbeddingStatus != existing.EmbeddingStatus {
		st := *payload.EmbeddingStatus
		u.EmbeddingStatus = &st
	}

	if payload.Skills != nil {
		merged := unionStrings(existing.Skills, payload.Skills)
		if !equalStrings(merged, existing.Skills) {
			u.Skills = merged
		}
	}

	if !types.IsAbsentJSON(payload.EmploymentHistory) {
		if merged, changed := mergeJSON(existing.EmploymentHistory, payload.EmploymentHistory); changed {
			u.EmploymentHistory = merged
		}
	}

	if !types.IsAbsentJSON(payload.ApolloRawData) {
		u.ApolloRawData = append(json.RawMessage{}, payload.ApolloRawData...)
	}
	if !types.IsAbsentJSON(payload.LoxoRawData) {
		u.LoxoRawData = append(json.RawMessage{}, payload.LoxoRawData...)
	}

	u.LastSyncedAt = &now
	return u
}

func mergeScalar(existing string, incoming *string) *string {
	if incoming == nil || *incoming == existing {
		return nil
	}
	v := *incoming
	return &v
}

// unionStrings returns existing followed by incoming values not yet seen.
// Duplicates already present in existing are collapsed too.
func unionStrings(existing, incoming []string) []string {
	seen := make(map[string]bool, len(existing)+len(incoming))
	out := make([]string, 0, len(existing)+len(incoming))
	for _, list := range [][]string{existing, incoming} {
		for _, s := range list {
			if seen[s] {
				continue
			}
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// mergeJSON folds incoming into existing for a structured JSON field
func mergeJSON(existing, incoming json.RawMessage) (json.RawMessage, bool) {
	if types.IsAbsentJSON(existing) {
		return append(json.RawMessage{}, incoming...), true
	}

	var existingArr, incomingArr []json.RawMessage
	if json.Unmarshal(existing, &existingArr) == nil && json.Unmarshal(incoming, &incomingArr) == nil &&
		isJSONArray(existing) && isJSONArray(incoming) {
		seen := make(map[string]bool, len(existingArr)+len(incomingArr))
		out := make([]json.RawMessage, 0, len(existingArr)+len(incomingArr))
		added := false
		for i, list := range [][]json.RawMessage{existingArr, incomingArr} {
			for _, el := range list {
				key := canonicalJSON(el)
				if seen[key] {
					continue
				}
				seen[key] = true
				out = append(out, el)
				if i == 1 {
					added = true
				}
			}
		}
		if !added {
			return nil, false
		}
		merged, err := json.Marshal(out)
		if err != nil {
			return append(json.RawMessage{}, incoming...), true
		}
		return merged, true
	}

	if jsonEqual(existing, incoming) {
		return nil, false
	}
	return append(json.RawMessage{}, incoming...), true
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

// canonicalJSON re-encodes a value so that equal values compare equal as
// strings (object keys sorted, insignificant whitespace dropped). Invalid
// JSON falls back to its raw bytes.
func canonicalJSON(raw json.RawMessage) string {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	b, err := json.Marshal(v)
	if err != nil {
		return string(raw)
	}
	return string(b)
}

func jsonEqual(a, b json.RawMessage) bool {
	if types.IsAbsentJSON(a) || types.IsAbsentJSON(b) {
		return types.IsAbsentJSON(a) && types.IsAbsentJSON(b)
	}
	return canonicalJSON(a) == canonicalJSON(b)
}
