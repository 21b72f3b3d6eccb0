package types

import (
	"encoding/json"
	"strings"
	"testing"
	"time"
)

func validCandidate() Candidate {
	now := time.Now()
	return Candidate{
		ID:              "c-1",
		FullName:        "Ann Lee",
		Source:          SourceManual,
		EmbeddingStatus: EmbeddingPending,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func TestCandidateValidate(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(c *Candidate)
		errorMsg string
	}{
		{name: "valid", mutate: func(c *Candidate) {}},
		{name: "missing id", mutate: func(c *Candidate) { c.ID = "" }, errorMsg: "id is required"},
		{name: "bad source", mutate: func(c *Candidate) { c.Source = "linkedin" }, errorMsg: "invalid source"},
		{name: "empty source", mutate: func(c *Candidate) { c.Source = "" }, errorMsg: "invalid source"},
		{name: "bad embedding status", mutate: func(c *Candidate) { c.EmbeddingStatus = "stale" }, errorMsg: "invalid embedding status"},
		{name: "zero version", mutate: func(c *Candidate) { c.Version = 0 }, errorMsg: "version must be positive"},
		{name: "long name", mutate: func(c *Candidate) { c.FullName = strings.Repeat("a", 501) }, errorMsg: "full_name must be 500"},
		{name: "broken raw data", mutate: func(c *Candidate) { c.ApolloRawData = json.RawMessage(`{"a":`) }, errorMsg: "apollo_raw_data is not valid JSON"},
		{name: "null raw data is fine", mutate: func(c *Candidate) { c.LoxoRawData = json.RawMessage(`null`) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validCandidate()
			tt.mutate(&c)
			err := c.Validate()
			if tt.errorMsg == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.errorMsg) {
				t.Errorf("expected error containing %q, got %v", tt.errorMsg, err)
			}
		})
	}
}

func TestSourceIsValid(t *testing.T) {
	for _, s := range AllSources() {
		if !s.IsValid() {
			t.Errorf("source %q should be valid", s)
		}
	}
	for _, s := range []Source{"", "Apollo", "csv"} {
		if s.IsValid() {
			t.Errorf("source %q should be invalid", s)
		}
	}
}

func TestPayloadNullDecodesAsAbsent(t *testing.T) {
	var p CandidatePayload
	raw := `{"phone": null, "skills": null, "employment_history": null, "email": "a@x.com"}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if p.Phone != nil {
		t.Errorf("expected nil phone, got %q", *p.Phone)
	}
	if p.Skills != nil {
		t.Errorf("expected nil skills, got %v", p.Skills)
	}
	if !IsAbsentJSON(p.EmploymentHistory) {
		t.Errorf("expected absent employment history, got %s", p.EmploymentHistory)
	}
	if StringValue(p.Email) != "a@x.com" {
		t.Errorf("expected email a@x.com, got %q", StringValue(p.Email))
	}
}

func TestPayloadValidate(t *testing.T) {
	bad := Source("fax")
	p := CandidatePayload{Source: &bad}
	if err := p.Validate(); err == nil {
		t.Error("expected invalid source error")
	}

	p = CandidatePayload{EmploymentHistory: json.RawMessage(`[{"company":"Acme"}`)}
	if err := p.Validate(); err == nil {
		t.Error("expected invalid JSON error")
	}

	p = CandidatePayload{FullName: StringPtr("Ann"), Source: SourcePtr(SourceLoxo)}
	if err := p.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestNewCandidateDefaults(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	p := &CandidatePayload{
		FullName:      StringPtr("Ann Lee"),
		Skills:        []string{"SQL"},
		ApolloRawData: json.RawMessage(`null`),
	}
	c := NewCandidate("id-1", p, now)

	if c.Source != SourceManual {
		t.Errorf("expected default source manual, got %s", c.Source)
	}
	if c.EmbeddingStatus != EmbeddingPending {
		t.Errorf("expected default embedding status pending, got %s", c.EmbeddingStatus)
	}
	if c.Version != 1 {
		t.Errorf("expected version 1, got %d", c.Version)
	}
	if c.ApolloRawData != nil {
		t.Errorf("null raw data should not be stored, got %s", c.ApolloRawData)
	}
	if c.LastSyncedAt == nil || !c.LastSyncedAt.Equal(now) {
		t.Errorf("expected last_synced_at %v, got %v", now, c.LastSyncedAt)
	}
	if err := c.Validate(); err != nil {
		t.Errorf("new candidate should validate: %v", err)
	}

	// Payload slice must not alias the record
	p.Skills[0] = "Go"
	if c.Skills[0] != "SQL" {
		t.Errorf("candidate skills alias payload: %v", c.Skills)
	}
}

func TestCandidateClone(t *testing.T) {
	c := validCandidate()
	c.Skills = []string{"Go"}
	c.EmploymentHistory = json.RawMessage(`[1]`)
	now := time.Now()
	c.LastSyncedAt = &now

	clone := c.Clone()
	clone.Skills[0] = "Rust"
	clone.EmploymentHistory[1] = '2'
	*clone.LastSyncedAt = now.Add(time.Hour)

	if c.Skills[0] != "Go" {
		t.Errorf("clone shares skills")
	}
	if string(c.EmploymentHistory) != "[1]" {
		t.Errorf("clone shares employment history")
	}
	if !c.LastSyncedAt.Equal(now) {
		t.Errorf("clone shares last_synced_at")
	}
}

func TestFieldKinds(t *testing.T) {
	tests := map[Field]FieldKind{
		FieldEmail:             KindScalar,
		FieldSource:            KindScalar,
		FieldSkills:            KindArray,
		FieldEmploymentHistory: KindJSON,
		FieldApolloRawData:     KindRawBlob,
		FieldLoxoRawData:       KindRawBlob,
		FieldLastSyncedAt:      KindTimestamp,
	}
	for field, want := range tests {
		if got := field.Kind(); got != want {
			t.Errorf("%s: expected kind %s, got %s", field, want, got)
		}
	}
}

func TestCandidateUpdateApply(t *testing.T) {
	c := validCandidate()
	c.Phone = "+31600000000"
	synced := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	status := EmbeddingCompleted

	u := &CandidateUpdate{
		Email:           StringPtr("ann@x.com"),
		Skills:          []string{"SQL", "Go"},
		ApolloRawData:   json.RawMessage(`{"a":1}`),
		EmbeddingStatus: &status,
		LastSyncedAt:    &synced,
	}
	if u.IsEmpty() {
		t.Fatal("update should not be empty")
	}
	if got := len(u.Assignments()); got != 5 {
		t.Errorf("expected 5 assignments, got %d", got)
	}
	u.Apply(&c)

	if c.Email != "ann@x.com" {
		t.Errorf("email not applied: %q", c.Email)
	}
	if c.Phone != "+31600000000" {
		t.Errorf("phone should be untouched, got %q", c.Phone)
	}
	if len(c.Skills) != 2 {
		t.Errorf("skills not applied: %v", c.Skills)
	}
	if string(c.ApolloRawData) != `{"a":1}` {
		t.Errorf("raw data not applied: %s", c.ApolloRawData)
	}
	if c.EmbeddingStatus != EmbeddingCompleted {
		t.Errorf("embedding status not applied: %s", c.EmbeddingStatus)
	}
	if c.LastSyncedAt == nil || !c.LastSyncedAt.Equal(synced) {
		t.Errorf("last_synced_at not applied: %v", c.LastSyncedAt)
	}
	if c.Version != 1 {
		t.Errorf("Apply must not touch version, got %d", c.Version)
	}
}

func TestCandidateUpdateValidate(t *testing.T) {
	empty := &CandidateUpdate{}
	if !empty.IsEmpty() {
		t.Error("zero update should be empty")
	}
	if err := empty.Validate(); err != nil {
		t.Errorf("empty update should validate: %v", err)
	}

	bad := EmbeddingStatus("stale")
	if err := (&CandidateUpdate{EmbeddingStatus: &bad}).Validate(); err == nil {
		t.Error("expected invalid embedding status error")
	}
	if err := (&CandidateUpdate{ExpectedVersion: -1}).Validate(); err == nil {
		t.Error("expected negative version error")
	}
	if err := (&CandidateUpdate{LoxoRawData: json.RawMessage(`{`)}).Validate(); err == nil {
		t.Error("expected invalid JSON error")
	}
}
