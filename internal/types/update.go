package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// Field names a mutable candidate column. The string value is the column name
// used by every backend and the JSON name used on the wire.
type Field string

const (
	FieldFullName          Field = "full_name"
	FieldEmail             Field = "email"
	FieldPhone             Field = "phone"
	FieldLinkedInURL       Field = "linkedin_url"
	FieldCurrentCompany    Field = "current_company"
	FieldApolloID          Field = "apollo_id"
	FieldLoxoID            Field = "loxo_id"
	FieldHeadline          Field = "headline"
	FieldCurrentTitle      Field = "current_title"
	FieldLocation          Field = "location"
	FieldSkills            Field = "skills"
	FieldEmploymentHistory Field = "employment_history"
	FieldCVParsedText      Field = "cv_parsed_text"
	FieldApolloRawData     Field = "apollo_raw_data"
	FieldLoxoRawData       Field = "loxo_raw_data"
	FieldSource            Field = "source"
	FieldEmbeddingStatus   Field = "embedding_status"
	FieldLastSyncedAt      Field = "last_synced_at"
)

// FieldKind is the merge behavior class of a field
type FieldKind int

const (
	KindScalar FieldKind = iota
	KindArray
	KindJSON    // structured JSON, arrays are unioned
	KindRawBlob // source snapshot, replaced wholesale
	KindTimestamp
)

func (k FieldKind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	case KindJSON:
		return "json"
	case KindRawBlob:
		return "raw_blob"
	case KindTimestamp:
		return "timestamp"
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// Kind returns the merge class of the field
func (f Field) Kind() FieldKind {
	switch f {
	case FieldSkills:
		return KindArray
	case FieldEmploymentHistory:
		return KindJSON
	case FieldApolloRawData, FieldLoxoRawData:
		return KindRawBlob
	case FieldLastSyncedAt:
		return KindTimestamp
	}
	return KindScalar
}

// CandidateUpdate is a typed partial update. A nil field is left unchanged.
type CandidateUpdate struct {
	FullName       *string
	Email          *string
	Phone          *string
	LinkedInURL    *string
	CurrentCompany *string
	ApolloID       *string
	LoxoID         *string
	Headline       *string
	CurrentTitle   *string
	Location       *string
	CVParsedText   *string

	Skills            []string
	EmploymentHistory json.RawMessage
	ApolloRawData     json.RawMessage
	LoxoRawData       json.RawMessage

	Source          *Source
	EmbeddingStatus *EmbeddingStatus
	LastSyncedAt    *time.Time

	// ExpectedVersion enables compare-and-swap when > 0: the store rejects
	// the update if the stored version differs.
	ExpectedVersion int64
}

// Assignment is one column write produced by a CandidateUpdate
type Assignment struct {
	Field Field
	Value interface{} // string, []string, json.RawMessage, Source, EmbeddingStatus or time.Time
}

// Assignments lists the fields the update writes, in column order
func (u *CandidateUpdate) Assignments() []Assignment {
	var out []Assignment
	str := func(f Field, v *string) {
		if v != nil {
			out = append(out, Assignment{Field: f, Value: *v})
		}
	}
	str(FieldFullName, u.FullName)
	str(FieldEmail, u.Email)
	str(FieldPhone, u.Phone)
	str(FieldLinkedInURL, u.LinkedInURL)
	str(FieldCurrentCompany, u.CurrentCompany)
	str(FieldApolloID, u.ApolloID)
	str(FieldLoxoID, u.LoxoID)
	str(FieldHeadline, u.Headline)
	str(FieldCurrentTitle, u.CurrentTitle)
	str(FieldLocation, u.Location)
	if u.Skills != nil {
		out = append(out, Assignment{Field: FieldSkills, Value: u.Skills})
	}
	if u.EmploymentHistory != nil {
		out = append(out, Assignment{Field: FieldEmploymentHistory, Value: u.EmploymentHistory})
	}
	str(FieldCVParsedText, u.CVParsedText)
	if u.ApolloRawData != nil {
		out = append(out, Assignment{Field: FieldApolloRawData, Value: u.ApolloRawData})
	}
	if u.LoxoRawData != nil {
		out = append(out, Assignment{Field: FieldLoxoRawData, Value: u.LoxoRawData})
	}
	if u.Source != nil {
		out = append(out, Assignment{Field: FieldSource, Value: *u.Source})
	}
	if u.EmbeddingStatus != nil {
		out = append(out, Assignment{Field: FieldEmbeddingStatus, Value: *u.EmbeddingStatus})
	}
	if u.LastSyncedAt != nil {
		out = append(out, Assignment{Field: FieldLastSyncedAt, Value: *u.LastSyncedAt})
	}
	return out
}

// IsEmpty reports whether the update writes nothing
func (u *CandidateUpdate) IsEmpty() bool {
	return len(u.Assignments()) == 0
}

// Validate checks enum and JSON values carried by the update
func (u *CandidateUpdate) Validate() error {
	if u.Source != nil && !u.Source.IsValid() {
		return fmt.Errorf("invalid source: %s", *u.Source)
	}
	if u.EmbeddingStatus != nil && !u.EmbeddingStatus.IsValid() {
		return fmt.Errorf("invalid embedding status: %s", *u.EmbeddingStatus)
	}
	if u.FullName != nil && len(*u.FullName) > 500 {
		return fmt.Errorf("full_name must be 500 characters or less (got %d)", len(*u.FullName))
	}
	if u.ExpectedVersion < 0 {
		return fmt.Errorf("expected_version cannot be negative (got %d)", u.ExpectedVersion)
	}
	for _, f := range []struct {
		field Field
		raw   json.RawMessage
	}{
		{FieldEmploymentHistory, u.EmploymentHistory},
		{FieldApolloRawData, u.ApolloRawData},
		{FieldLoxoRawData, u.LoxoRawData},
	} {
		if f.raw != nil && !json.Valid(f.raw) {
			return fmt.Errorf("%s is not valid JSON", f.field)
		}
	}
	return nil
}

// Apply writes the update onto c in place. It does not touch Version or
// UpdatedAt; stores own those.
func (u *CandidateUpdate) Apply(c *Candidate) {
	for _, a := range u.Assignments() {
		switch a.Field {
		case FieldFullName:
			c.FullName = a.Value.(string)
		case FieldEmail:
			c.Email = a.Value.(string)
		case FieldPhone:
			c.Phone = a.Value.(string)
		case FieldLinkedInURL:
			c.LinkedInURL = a.Value.(string)
		case FieldCurrentCompany:
			c.CurrentCompany = a.Value.(string)
		case FieldApolloID:
			c.ApolloID = a.Value.(string)
		case FieldLoxoID:
			c.LoxoID = a.Value.(string)
		case FieldHeadline:
			c.Headline = a.Value.(string)
		case FieldCurrentTitle:
			c.CurrentTitle = a.Value.(string)
		case FieldLocation:
			c.Location = a.Value.(string)
		case FieldCVParsedText:
			c.CVParsedText = a.Value.(string)
		case FieldSkills:
			c.Skills = append([]string{}, a.Value.([]string)...)
		case FieldEmploymentHistory:
			c.EmploymentHistory = cloneRaw(a.Value.(json.RawMessage))
		case FieldApolloRawData:
			c.ApolloRawData = cloneRaw(a.Value.(json.RawMessage))
		case FieldLoxoRawData:
			c.LoxoRawData = cloneRaw(a.Value.(json.RawMessage))
		case FieldSource:
			c.Source = a.Value.(Source)
		case FieldEmbeddingStatus:
			c.EmbeddingStatus = a.Value.(EmbeddingStatus)
		case FieldLastSyncedAt:
			t := a.Value.(time.Time)
			c.LastSyncedAt = &t
		}
	}
}
