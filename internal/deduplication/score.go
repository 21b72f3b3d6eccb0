package deduplication

import (
	"fmt"
	"sort"

	"github.com/talentdb/talent/internal/types"
)

// MatchReason names the heuristic that produced a match
type MatchReason string

const (
	ReasonLinkedInURL MatchReason = "linkedin_url_exact_match"
	ReasonEmail       MatchReason = "email_exact_match"
	ReasonApolloID    MatchReason = "apollo_id_match"
	ReasonLoxoID      MatchReason = "loxo_id_match"
	ReasonNameCompany MatchReason = "name_company_match"
	ReasonPhone       MatchReason = "phone_match"
	ReasonNoMatch     MatchReason = "no_match"
)

// Confidence assigned by each rule
const (
	ConfidenceLinkedInURL = 0.95
	ConfidenceEmail       = 0.90
	ConfidenceApolloID    = 0.85
	ConfidenceLoxoID      = 0.85
	ConfidenceNameCompany = 0.75
	ConfidencePhone       = 0.70
)

// IsValid checks if the reason is one of the known codes
func (r MatchReason) IsValid() bool {
	switch r {
	case ReasonLinkedInURL, ReasonEmail, ReasonApolloID, ReasonLoxoID,
		ReasonNameCompany, ReasonPhone, ReasonNoMatch:
		return true
	}
	return false
}

// MatchResult pairs a pool candidate with its score. It is never persisted.
type MatchResult struct {
	Candidate  *types.Candidate `json:"candidate"`
	Confidence float64          `json:"confidence"`
	Reason     MatchReason      `json:"reason"`
}

// Validate checks if the match result has consistent values
func (m MatchResult) Validate() error {
	if m.Candidate == nil {
		return fmt.Errorf("candidate is required")
	}
	if m.Confidence < 0.0 || m.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0 (got %.2f)", m.Confidence)
	}
	if !m.Reason.IsValid() {
		return fmt.Errorf("invalid match reason: %s", m.Reason)
	}
	if (m.Reason == ReasonNoMatch) != (m.Confidence == 0) {
		return fmt.Errorf("reason %s inconsistent with confidence %.2f", m.Reason, m.Confidence)
	}
	return nil
}

// ScoreMatch applies the identity rules in priority order and returns the
// first that fires. Rules are never combined; empty values never match.
func ScoreMatch(payload *types.CandidatePayload, c *types.Candidate, cfg Config) MatchResult {
	result := func(conf float64, reason MatchReason) MatchResult {
		return MatchResult{Candidate: c, Confidence: conf, Reason: reason}
	}

	if exactMatch(payload.LinkedInURL, c.LinkedInURL) {
		return result(ConfidenceLinkedInURL, ReasonLinkedInURL)
	}
	if exactMatch(payload.Email, c.Email) {
		return result(ConfidenceEmail, ReasonEmail)
	}
	if exactMatch(payload.ApolloID, c.ApolloID) {
		return result(ConfidenceApolloID, ReasonApolloID)
	}
	if exactMatch(payload.LoxoID, c.LoxoID) {
		return result(ConfidenceLoxoID, ReasonLoxoID)
	}
	name, company := types.StringValue(payload.FullName), types.StringValue(payload.CurrentCompany)
	if name != "" && company != "" && c.FullName != "" && c.CurrentCompany != "" &&
		company == c.CurrentCompany &&
		NameSimilarity(name, c.FullName) > cfg.NameSimilarityThreshold {
		return result(ConfidenceNameCompany, ReasonNameCompany)
	}
	if exactMatch(payload.Phone, c.Phone) {
		return result(ConfidencePhone, ReasonPhone)
	}
	return result(0, ReasonNoMatch)
}

func exactMatch(incoming *string, existing string) bool {
	return incoming != nil && *incoming != "" && existing != "" && *incoming == existing
}

// RankMatches scores every pool entry and returns the results ordered by
// descending confidence. Equal scores keep pool order, so with a pool sorted
// by (created_at, id) the oldest record leads each score band.
func RankMatches(payload *types.CandidatePayload, pool []*types.Candidate, cfg Config) []MatchResult {
	ranked := make([]MatchResult, 0, len(pool))
	for _, c := range pool {
		ranked = append(ranked, ScoreMatch(payload, c, cfg))
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Confidence > ranked[j].Confidence
	})
	return ranked
}

// countTied returns how many entries after the first share its confidence
func countTied(ranked []MatchResult) int {
	if len(ranked) == 0 {
		return 0
	}
	tied := 0
	for _, m := range ranked[1:] {
		if m.Confidence != ranked[0].Confidence {
			break
		}
		tied++
	}
	return tied
}
