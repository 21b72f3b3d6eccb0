package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Candidate is the canonical record for one real-world person.
//
// Identity fields (LinkedInURL, Email, Phone, FullName+CurrentCompany, ApolloID,
// LoxoID) are used for duplicate detection. Content fields are merged when a
// duplicate is found. ID is assigned by the store and never changes.
type Candidate struct {
	ID string `json:"id"`

	// Identity
	FullName       string `json:"full_name,omitempty"`
	Email          string `json:"email,omitempty"`
	Phone          string `json:"phone,omitempty"`
	LinkedInURL    string `json:"linkedin_url,omitempty"`
	CurrentCompany string `json:"current_company,omitempty"`
	ApolloID       string `json:"apollo_id,omitempty"`
	LoxoID         string `json:"loxo_id,omitempty"`

	// Content
	Headline          string          `json:"headline,omitempty"`
	CurrentTitle      string          `json:"current_title,omitempty"`
	Location          string          `json:"location,omitempty"`
	Skills            []string        `json:"skills,omitempty"`
	EmploymentHistory json.RawMessage `json:"employment_history,omitempty"`
	CVParsedText      string          `json:"cv_parsed_text,omitempty"`
	ApolloRawData     json.RawMessage `json:"apollo_raw_data,omitempty"`
	LoxoRawData       json.RawMessage `json:"loxo_raw_data,omitempty"`

	// Bookkeeping
	Source          Source          `json:"source"`
	EmbeddingStatus EmbeddingStatus `json:"embedding_status"`
	LastSyncedAt    *time.Time      `json:"last_synced_at,omitempty"`
	Version         int64           `json:"version"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// Validate checks if the candidate has valid field values
func (c *Candidate) Validate() error {
	if c.ID == "" {
		return fmt.Errorf("id is required")
	}
	if len(c.FullName) > 500 {
		return fmt.Errorf("full_name must be 500 characters or less (got %d)", len(c.FullName))
	}
	if !c.Source.IsValid() {
		return fmt.Errorf("invalid source: %s", c.Source)
	}
	if !c.EmbeddingStatus.IsValid() {
		return fmt.Errorf("invalid embedding status: %s", c.EmbeddingStatus)
	}
	if c.Version < 1 {
		return fmt.Errorf("version must be positive (got %d)", c.Version)
	}
	if err := validateJSON(FieldEmploymentHistory, c.EmploymentHistory); err != nil {
		return err
	}
	if err := validateJSON(FieldApolloRawData, c.ApolloRawData); err != nil {
		return err
	}
	return validateJSON(FieldLoxoRawData, c.LoxoRawData)
}

// Source identifies the system a candidate record came from
type Source string

const (
	SourceApollo   Source = "apollo"
	SourceLoxo     Source = "loxo"
	SourceCVUpload Source = "cv_upload"
	SourceManual   Source = "manual"
)

// IsValid checks if the source value is valid
func (s Source) IsValid() bool {
	switch s {
	case SourceApollo, SourceLoxo, SourceCVUpload, SourceManual:
		return true
	}
	return false
}

// AllSources returns every valid source in a stable order
func AllSources() []Source {
	return []Source{SourceApollo, SourceLoxo, SourceCVUpload, SourceManual}
}

// EmbeddingStatus tracks whether the candidate's search embedding is current.
// Embedding generation itself happens outside this module.
type EmbeddingStatus string

const (
	EmbeddingPending    EmbeddingStatus = "pending"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingCompleted  EmbeddingStatus = "completed"
	EmbeddingFailed     EmbeddingStatus = "failed"
)

// IsValid checks if the embedding status value is valid
func (s EmbeddingStatus) IsValid() bool {
	switch s {
	case EmbeddingPending, EmbeddingProcessing, EmbeddingCompleted, EmbeddingFailed:
		return true
	}
	return false
}

// CandidatePayload is incoming, not yet persisted candidate data.
//
// Every field is optional. A nil pointer, nil slice, or nil/"null" JSON value
// means the source did not supply the field; it never clears stored data.
type CandidatePayload struct {
	FullName       *string `json:"full_name,omitempty"`
	Email          *string `json:"email,omitempty"`
	Phone          *string `json:"phone,omitempty"`
	LinkedInURL    *string `json:"linkedin_url,omitempty"`
	CurrentCompany *string `json:"current_company,omitempty"`
	ApolloID       *string `json:"apollo_id,omitempty"`
	LoxoID         *string `json:"loxo_id,omitempty"`

	Headline          *string         `json:"headline,omitempty"`
	CurrentTitle      *string         `json:"current_title,omitempty"`
	Location          *string         `json:"location,omitempty"`
	Skills            []string        `json:"skills,omitempty"`
	EmploymentHistory json.RawMessage `json:"employment_history,omitempty"`
	CVParsedText      *string         `json:"cv_parsed_text,omitempty"`
	ApolloRawData     json.RawMessage `json:"apollo_raw_data,omitempty"`
	LoxoRawData       json.RawMessage `json:"loxo_raw_data,omitempty"`

	Source          *Source          `json:"source,omitempty"`
	EmbeddingStatus *EmbeddingStatus `json:"embedding_status,omitempty"`
}

// Validate checks the enum and JSON fields of a payload
func (p *CandidatePayload) Validate() error {
	if p.Source != nil && !p.Source.IsValid() {
		return fmt.Errorf("invalid source: %s", *p.Source)
	}
	if p.EmbeddingStatus != nil && !p.EmbeddingStatus.IsValid() {
		return fmt.Errorf("invalid embedding status: %s", *p.EmbeddingStatus)
	}
	if p.FullName != nil && len(*p.FullName) > 500 {
		return fmt.Errorf("full_name must be 500 characters or less (got %d)", len(*p.FullName))
	}
	if err := validateJSON(FieldEmploymentHistory, p.EmploymentHistory); err != nil {
		return err
	}
	if err := validateJSON(FieldApolloRawData, p.ApolloRawData); err != nil {
		return err
	}
	return validateJSON(FieldLoxoRawData, p.LoxoRawData)
}

// NewCandidate builds the record a store persists for a payload.
// Absent source defaults to manual and absent embedding status to pending.
func NewCandidate(id string, p *CandidatePayload, now time.Time) *Candidate {
	c := &Candidate{
		ID:                id,
		FullName:          StringValue(p.FullName),
		Email:             StringValue(p.Email),
		Phone:             StringValue(p.Phone),
		LinkedInURL:       StringValue(p.LinkedInURL),
		CurrentCompany:    StringValue(p.CurrentCompany),
		ApolloID:          StringValue(p.ApolloID),
		LoxoID:            StringValue(p.LoxoID),
		Headline:          StringValue(p.Headline),
		CurrentTitle:      StringValue(p.CurrentTitle),
		Location:          StringValue(p.Location),
		CVParsedText:      StringValue(p.CVParsedText),
		Source:            SourceManual,
		EmbeddingStatus:   EmbeddingPending,
		Version:           1,
		CreatedAt:         now,
		UpdatedAt:         now,
		LastSyncedAt:      &now,
		EmploymentHistory: PresentJSON(p.EmploymentHistory),
		ApolloRawData:     PresentJSON(p.ApolloRawData),
		LoxoRawData:       PresentJSON(p.LoxoRawData),
	}
	if p.Skills != nil {
		c.Skills = append([]string{}, p.Skills...)
	}
	if p.Source != nil {
		c.Source = *p.Source
	}
	if p.EmbeddingStatus != nil {
		c.EmbeddingStatus = *p.EmbeddingStatus
	}
	return c
}

// Clone returns a deep copy of the candidate
func (c *Candidate) Clone() *Candidate {
	if c == nil {
		return nil
	}
	out := *c
	if c.Skills != nil {
		out.Skills = append([]string{}, c.Skills...)
	}
	out.EmploymentHistory = cloneRaw(c.EmploymentHistory)
	out.ApolloRawData = cloneRaw(c.ApolloRawData)
	out.LoxoRawData = cloneRaw(c.LoxoRawData)
	if c.LastSyncedAt != nil {
		t := *c.LastSyncedAt
		out.LastSyncedAt = &t
	}
	return &out
}

// CandidateFilter narrows ListCandidates results
type CandidateFilter struct {
	Source          *Source
	EmbeddingStatus *EmbeddingStatus
	Query           string // substring match on full_name, email, current_company
	Limit           int
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// StringValue dereferences p, returning "" for nil
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// SourcePtr returns a pointer to s
func SourcePtr(s Source) *Source {
	return &s
}

// IsAbsentJSON reports whether a raw JSON value carries no data (empty or null)
func IsAbsentJSON(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// PresentJSON returns a copy of raw, or nil when it is absent
func PresentJSON(raw json.RawMessage) json.RawMessage {
	if IsAbsentJSON(raw) {
		return nil
	}
	return cloneRaw(raw)
}

func cloneRaw(raw json.RawMessage) json.RawMessage {
	if raw == nil {
		return nil
	}
	return append(json.RawMessage{}, raw...)
}

func validateJSON(field Field, raw json.RawMessage) error {
	if IsAbsentJSON(raw) {
		return nil
	}
	if !json.Valid(raw) {
		return fmt.Errorf("%s is not valid JSON", field)
	}
	return nil
}
