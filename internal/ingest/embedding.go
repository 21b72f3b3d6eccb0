package ingest

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/talentdb/talent/internal/deduplication"
	"github.com/talentdb/talent/internal/types"
)

// Embedding request reasons recorded on embedding_requested events
const (
	EmbeddingReasonCreated           = "created"
	EmbeddingReasonSignificantChange = "significant_change"
)

// EmbeddingText is the text a candidate's search embedding is built from.
// Empty sections are skipped.
func EmbeddingText(c *types.Candidate) string {
	if c == nil {
		return ""
	}
	var sections []string
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			sections = append(sections, label+": "+value)
		}
	}
	add("Name", c.FullName)
	add("Headline", c.Headline)
	add("Title", c.CurrentTitle)
	add("Company", c.CurrentCompany)
	add("Location", c.Location)
	add("Skills", strings.Join(c.Skills, ", "))
	if !types.IsAbsentJSON(c.EmploymentHistory) {
		var buf bytes.Buffer
		if err := json.Compact(&buf, c.EmploymentHistory); err == nil {
			add("Experience", buf.String())
		}
	}
	add("CV", c.CVParsedText)
	return strings.Join(sections, "\n")
}

// embeddingReason decides whether a processed item needs a fresh embedding.
// It returns "" when the stored embedding is still current.
func embeddingReason(res *deduplication.Result, payload *types.CandidatePayload) string {
	switch res.Action {
	case deduplication.ActionCreated:
		return EmbeddingReasonCreated
	case deduplication.ActionUpdated:
		if deduplication.HasSignificantChanges(res.Previous, payload) {
			return EmbeddingReasonSignificantChange
		}
	}
	return ""
}
