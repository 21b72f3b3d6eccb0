package deduplication

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/talentdb/talent/internal/types"
)

func TestHasSignificantChanges(t *testing.T) {
	existing := &types.Candidate{
		ID:                "c1",
		Email:             "a@x.com",
		Headline:          "Data engineer",
		CurrentTitle:      "Engineer",
		CurrentCompany:    "Acme",
		Skills:            []string{"SQL", "Go", "Go"},
		EmploymentHistory: json.RawMessage(`[{"company":"Acme","title":"Engineer"}]`),
		CVParsedText:      "cv text",
	}

	tests := []struct {
		name    string
		payload types.CandidatePayload
		want    []types.Field
	}{
		{
			name:    "empty payload",
			payload: types.CandidatePayload{},
		},
		{
			name:    "non-significant fields only",
			payload: types.CandidatePayload{Email: sp("b@x.com"), Phone: sp("+1555"), Location: sp("Berlin")},
		},
		{
			name:    "equal values",
			payload: types.CandidatePayload{Headline: sp("Data engineer"), CurrentCompany: sp("Acme")},
		},
		{
			name:    "skills reordered are not a change",
			payload: types.CandidatePayload{Skills: []string{"Go", "SQL", "Go"}},
		},
		{
			name:    "skills multiplicity differs",
			payload: types.CandidatePayload{Skills: []string{"SQL", "Go"}},
			want:    []types.Field{types.FieldSkills},
		},
		{
			name:    "employment history equal by value",
			payload: types.CandidatePayload{EmploymentHistory: json.RawMessage(`[{"title":"Engineer","company":"Acme"}]`)},
		},
		{
			name:    "employment history null is absent",
			payload: types.CandidatePayload{EmploymentHistory: json.RawMessage(`null`)},
		},
		{
			name:    "employment history differs",
			payload: types.CandidatePayload{EmploymentHistory: json.RawMessage(`[]`)},
			want:    []types.Field{types.FieldEmploymentHistory},
		},
		{
			name: "several fields differ",
			payload: types.CandidatePayload{
				Headline:     sp("Staff engineer"),
				CurrentTitle: sp("Staff"),
				CVParsedText: sp("new cv"),
			},
			want: []types.Field{types.FieldHeadline, types.FieldCurrentTitle, types.FieldCVParsedText},
		},
		{
			name:    "company change",
			payload: types.CandidatePayload{CurrentCompany: sp("Globex")},
			want:    []types.Field{types.FieldCurrentCompany},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangedFields(existing, &tt.payload)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ChangedFields = %v, want %v", got, tt.want)
			}
			if has := HasSignificantChanges(existing, &tt.payload); has != (len(tt.want) > 0) {
				t.Errorf("HasSignificantChanges = %v, want %v", has, len(tt.want) > 0)
			}
		})
	}
}

func TestHasSignificantChangesNil(t *testing.T) {
	if HasSignificantChanges(nil, &types.CandidatePayload{Headline: sp("x")}) {
		t.Error("nil existing reported a change")
	}
	if HasSignificantChanges(&types.Candidate{}, nil) {
		t.Error("nil payload reported a change")
	}
}
