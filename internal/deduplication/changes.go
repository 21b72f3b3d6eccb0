package deduplication

import (
	"sort"

	"github.com/talentdb/talent/internal/types"
)

// SignificantFields are the content fields whose change invalidates a
// candidate's search embedding
var SignificantFields = []types.Field{
	types.FieldHeadline,
	types.FieldSkills,
	types.FieldEmploymentHistory,
	types.FieldCurrentTitle,
	types.FieldCurrentCompany,
	types.FieldCVParsedText,
}

// HasSignificantChanges reports whether payload would change any significant
// field of existing. Skills compare as sorted multisets, employment history by
// JSON value and the rest by string equality. Absent payload fields never count.
func HasSignificantChanges(existing *types.Candidate, payload *types.CandidatePayload) bool {
	return len(ChangedFields(existing, payload)) > 0
}

// ChangedFields lists the significant fields payload would change, in
// SignificantFields order
func ChangedFields(existing *types.Candidate, payload *types.CandidatePayload) []types.Field {
	if existing == nil || payload == nil {
		return nil
	}

	var changed []types.Field
	for _, f := range SignificantFields {
		var differs bool
		switch f {
		case types.FieldHeadline:
			differs = scalarDiffers(existing.Headline, payload.Headline)
		case types.FieldSkills:
			differs = payload.Skills != nil && !sameMultiset(existing.Skills, payload.Skills)
		case types.FieldEmploymentHistory:
			differs = !types.IsAbsentJSON(payload.EmploymentHistory) &&
				!jsonEqual(existing.EmploymentHistory, payload.EmploymentHistory)
		case types.FieldCurrentTitle:
			differs = scalarDiffers(existing.CurrentTitle, payload.CurrentTitle)
		case types.FieldCurrentCompany:
			differs = scalarDiffers(existing.CurrentCompany, payload.CurrentCompany)
		case types.FieldCVParsedText:
			differs = scalarDiffers(existing.CVParsedText, payload.CVParsedText)
		}
		if differs {
			changed = append(changed, f)
		}
	}
	return changed
}

func scalarDiffers(existing string, incoming *string) bool {
	return incoming != nil && *incoming != existing
}

func sameMultiset(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	sa := append([]string(nil), a...)
	sb := append([]string(nil), b...)
	sort.Strings(sa)
	sort.Strings(sb)
	return equalStrings(sa, sb)
}
