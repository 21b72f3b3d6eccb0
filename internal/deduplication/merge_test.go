package deduplication

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/talentdb/talent/internal/types"
)

func mergeFixture() *types.Candidate {
	return &types.Candidate{
		ID:                "c1",
		FullName:          "Ann Lee",
		Email:             "a@x.com",
		LinkedInURL:       "li/a",
		CurrentCompany:    "Acme",
		Headline:          "Data engineer",
		Skills:            []string{"SQL", "Python"},
		EmploymentHistory: json.RawMessage(`[{"company":"Acme","title":"Engineer"}]`),
		ApolloRawData:     json.RawMessage(`{"id":"ap-1","v":1}`),
		Source:            types.SourceApollo,
		EmbeddingStatus:   types.EmbeddingCompleted,
		Version:           3,
	}
}

func TestMergeFieldsScalars(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	existing := mergeFixture()

	u := MergeFields(existing, &types.CandidatePayload{
		Email:    sp("a@x.com"),          // equal, no write
		Headline: sp("Staff engineer"),   // differs, overwrite
		Location: sp("Berlin"),           // existing empty, fill
		Phone:    nil,                    // absent, keep
	}, now)

	if u.Email != nil {
		t.Errorf("Email = %q, want no write for equal value", *u.Email)
	}
	if u.Headline == nil || *u.Headline != "Staff engineer" {
		t.Errorf("Headline = %v, want Staff engineer", u.Headline)
	}
	if u.Location == nil || *u.Location != "Berlin" {
		t.Errorf("Location = %v, want Berlin", u.Location)
	}
	if u.Phone != nil {
		t.Errorf("Phone = %q, want no write for absent value", *u.Phone)
	}
	if u.LastSyncedAt == nil || !u.LastSyncedAt.Equal(now) {
		t.Errorf("LastSyncedAt = %v, want %v", u.LastSyncedAt, now)
	}
	if u.ExpectedVersion != 3 {
		t.Errorf("ExpectedVersion = %d, want 3", u.ExpectedVersion)
	}
}

func TestMergeFieldsSkillsUnion(t *testing.T) {
	existing := mergeFixture()
	u := MergeFields(existing, &types.CandidatePayload{Skills: []string{"Go", "SQL", "Go", "Rust"}}, time.Now())

	want := []string{"SQL", "Python", "Go", "Rust"}
	if !reflect.DeepEqual(u.Skills, want) {
		t.Errorf("Skills = %v, want %v", u.Skills, want)
	}

	// Subset of existing skills: nothing to write
	u = MergeFields(existing, &types.CandidatePayload{Skills: []string{"Python"}}, time.Now())
	if u.Skills != nil {
		t.Errorf("Skills = %v, want no write for subset", u.Skills)
	}

	// Existing record without skills
	existing.Skills = nil
	u = MergeFields(existing, &types.CandidatePayload{Skills: []string{"Go"}}, time.Now())
	if !reflect.DeepEqual(u.Skills, []string{"Go"}) {
		t.Errorf("Skills = %v, want [Go]", u.Skills)
	}
}

func TestMergeFieldsNullNeverOverwrites(t *testing.T) {
	existing := mergeFixture()
	u := MergeFields(existing, &types.CandidatePayload{
		EmploymentHistory: json.RawMessage(`null`),
		ApolloRawData:     json.RawMessage(`null`),
		LoxoRawData:       nil,
	}, time.Now())

	if u.EmploymentHistory != nil {
		t.Errorf("EmploymentHistory = %s, want no write for null", u.EmploymentHistory)
	}
	if u.ApolloRawData != nil {
		t.Errorf("ApolloRawData = %s, want no write for null", u.ApolloRawData)
	}
	if u.LoxoRawData != nil {
		t.Errorf("LoxoRawData = %s, want no write for absent", u.LoxoRawData)
	}

	// Only last_synced_at is written
	assignments := u.Assignments()
	if len(assignments) != 1 || assignments[0].Field != types.FieldLastSyncedAt {
		t.Errorf("Assignments = %v, want only last_synced_at", assignments)
	}
}

func TestMergeFieldsRawDataReplacedWholesale(t *testing.T) {
	existing := mergeFixture()
	incoming := json.RawMessage(`{"id":"ap-1","v":2,"extra":true}`)
	u := MergeFields(existing, &types.CandidatePayload{ApolloRawData: incoming}, time.Now())

	if string(u.ApolloRawData) != string(incoming) {
		t.Errorf("ApolloRawData = %s, want %s", u.ApolloRawData, incoming)
	}

	// Identical blob is still written: raw snapshots are never merged
	u = MergeFields(existing, &types.CandidatePayload{ApolloRawData: existing.ApolloRawData}, time.Now())
	if u.ApolloRawData == nil {
		t.Error("ApolloRawData not written for identical blob")
	}
}

func TestMergeFieldsEmploymentHistory(t *testing.T) {
	tests := []struct {
		name     string
		existing string
		incoming string
		want     string // "" means no write
	}{
		{
			name:     "arrays are unioned",
			existing: `[{"company":"Acme","title":"Engineer"}]`,
			incoming: `[{"title":"Engineer","company":"Acme"},{"company":"Globex","title":"Lead"}]`,
			want:     `[{"company":"Acme","title":"Engineer"},{"company":"Globex","title":"Lead"}]`,
		},
		{
			name:     "same elements in any key order",
			existing: `[{"company":"Acme","title":"Engineer"}]`,
			incoming: `[ {"title": "Engineer", "company": "Acme"} ]`,
			want:     "",
		},
		{
			name:     "empty existing takes incoming",
			existing: ``,
			incoming: `[{"company":"Acme"}]`,
			want:     `[{"company":"Acme"}]`,
		},
		{
			name:     "non-array overwrites when different",
			existing: `{"summary":"old"}`,
			incoming: `{"summary":"new"}`,
			want:     `{"summary":"new"}`,
		},
		{
			name:     "non-array equal is a no-op",
			existing: `{"a":1,"b":2}`,
			incoming: `{"b":2,"a":1}`,
			want:     "",
		},
		{
			name:     "array replaces object",
			existing: `{"summary":"old"}`,
			incoming: `[{"company":"Acme"}]`,
			want:     `[{"company":"Acme"}]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			existing := mergeFixture()
			existing.EmploymentHistory = nil
			if tt.existing != "" {
				existing.EmploymentHistory = json.RawMessage(tt.existing)
			}
			u := MergeFields(existing, &types.CandidatePayload{EmploymentHistory: json.RawMessage(tt.incoming)}, time.Now())

			if tt.want == "" {
				if u.EmploymentHistory != nil {
					t.Errorf("EmploymentHistory = %s, want no write", u.EmploymentHistory)
				}
				return
			}
			if canonicalJSON(u.EmploymentHistory) != canonicalJSON(json.RawMessage(tt.want)) {
				t.Errorf("EmploymentHistory = %s, want %s", u.EmploymentHistory, tt.want)
			}
		})
	}
}

func TestMergeFieldsIdempotent(t *testing.T) {
	existing := mergeFixture()
	payload := &types.CandidatePayload{
		FullName:          sp("Ann Lee"),
		Headline:          sp("Principal engineer"),
		Skills:            []string{"Go", "SQL"},
		EmploymentHistory: json.RawMessage(`[{"company":"Globex"}]`),
		ApolloRawData:     json.RawMessage(`{"id":"ap-1","v":9}`),
	}

	first := existing.Clone()
	MergeFields(first, payload, time.Now()).Apply(first)

	second := first.Clone()
	u := MergeFields(second, payload, time.Now())
	u.Apply(second)

	// Apart from the stamp and the raw snapshot, the second merge writes nothing
	for _, a := range u.Assignments() {
		switch a.Field {
		case types.FieldLastSyncedAt, types.FieldApolloRawData:
		default:
			t.Errorf("second merge wrote %s = %v", a.Field, a.Value)
		}
	}
	first.LastSyncedAt, second.LastSyncedAt = nil, nil
	if !reflect.DeepEqual(first, second) {
		t.Errorf("second merge changed the record:\nfirst  %+v\nsecond %+v", first, second)
	}
}

func TestMergeFieldsSourceAndEmbeddingStatus(t *testing.T) {
	existing := mergeFixture()
	loxo := types.SourceLoxo
	pending := types.EmbeddingPending
	u := MergeFields(existing, &types.CandidatePayload{Source: &loxo, EmbeddingStatus: &pending}, time.Now())
	if u.Source == nil || *u.Source != types.SourceLoxo {
		t.Errorf("Source = %v, want loxo", u.Source)
	}
	if u.EmbeddingStatus == nil || *u.EmbeddingStatus != types.EmbeddingPending {
		t.Errorf("EmbeddingStatus = %v, want pending", u.EmbeddingStatus)
	}

	apollo := types.SourceApollo
	u = MergeFields(existing, &types.CandidatePayload{Source: &apollo}, time.Now())
	if u.Source != nil {
		t.Errorf("Source = %v, want no write for equal value", *u.Source)
	}
}
