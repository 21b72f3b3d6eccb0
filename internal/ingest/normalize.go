// Package ingest turns source-system exports into candidate payloads and
// feeds them through the deduplication engine in bounded-concurrency batches.
package ingest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/talentdb/talent/internal/types"
)

var (
	// ErrUnknownSource is returned for a source with no normalizer
	ErrUnknownSource = errors.New("unknown source")
	// ErrEmptyRecord is returned when a record carries no name and no identity key
	ErrEmptyRecord = errors.New("record has no name or identity fields")
)

// Normalize decodes one raw source record into a payload.
//
// Strings are trimmed and whitespace-collapsed and empty values become
// absent. Emails are lowercased, LinkedIn URLs get an https scheme and lose
// query, fragment and trailing slash, and skills are deduplicated
// case-insensitively keeping the first spelling.
func Normalize(source types.Source, raw json.RawMessage) (*types.CandidatePayload, error) {
	if types.IsAbsentJSON(raw) {
		return nil, ErrEmptyRecord
	}
	if !json.Valid(raw) {
		return nil, fmt.Errorf("invalid JSON record")
	}

	var (
		p   *types.CandidatePayload
		err error
	)
	switch source {
	case types.SourceApollo:
		p, err = normalizeApollo(raw)
	case types.SourceLoxo:
		p, err = normalizeLoxo(raw)
	case types.SourceCVUpload:
		p, err = normalizeCV(raw)
	case types.SourceManual:
		p, err = normalizeManual(raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}
	if err != nil {
		return nil, fmt.Errorf("%s record: %w", source, err)
	}

	p.Source = types.SourcePtr(source)
	if p.FullName == nil && p.IdentityKeys().IsEmpty() {
		return nil, ErrEmptyRecord
	}
	if err := p.Validate(); err != nil {
		return nil, fmt.Errorf("%s record: %w", source, err)
	}
	return p, nil
}

// ExternalID returns the source-system id carried by the payload, if any
func ExternalID(p *types.CandidatePayload) string {
	if p == nil {
		return ""
	}
	if id := types.StringValue(p.ApolloID); id != "" {
		return id
	}
	return types.StringValue(p.LoxoID)
}

type apolloPerson struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	FirstName    string `json:"first_name"`
	LastName     string `json:"last_name"`
	LinkedInURL  string `json:"linkedin_url"`
	Email        string `json:"email"`
	PhoneNumbers []struct {
		SanitizedNumber string `json:"sanitized_number"`
		RawNumber       string `json:"raw_number"`
	} `json:"phone_numbers"`
	Headline     string `json:"headline"`
	Title        string `json:"title"`
	Organization *struct {
		Name string `json:"name"`
	} `json:"organization"`
	OrganizationName  string          `json:"organization_name"`
	City              string          `json:"city"`
	State             string          `json:"state"`
	Country           string          `json:"country"`
	EmploymentHistory json.RawMessage `json:"employment_history"`
}

func normalizeApollo(raw json.RawMessage) (*types.CandidatePayload, error) {
	var a apolloPerson
	if err := json.Unmarshal(raw, &a); err != nil {
		return nil, err
	}

	name := a.Name
	if cleanText(name) == "" {
		name = a.FirstName + " " + a.LastName
	}
	company := a.OrganizationName
	if a.Organization != nil && cleanText(a.Organization.Name) != "" {
		company = a.Organization.Name
	}
	var phone string
	if len(a.PhoneNumbers) > 0 {
		phone = a.PhoneNumbers[0].SanitizedNumber
		if cleanText(phone) == "" {
			phone = a.PhoneNumbers[0].RawNumber
		}
	}

	p := &types.CandidatePayload{
		ApolloID:       present(a.ID),
		FullName:       present(name),
		LinkedInURL:    presentLinkedIn(a.LinkedInURL),
		Email:          presentEmail(a.Email),
		Phone:          present(phone),
		Headline:       present(a.Headline),
		CurrentTitle:   present(a.Title),
		CurrentCompany: present(company),
		Location:       present(joinNonEmpty(", ", a.City, a.State, a.Country)),
		ApolloRawData:  compactJSON(raw),
	}
	if jsonArray(a.EmploymentHistory) {
		p.EmploymentHistory = compactJSON(a.EmploymentHistory)
	}
	return p, nil
}

// flexibleID accepts a JSON number or string
type flexibleID string

func (f *flexibleID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*f = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*f = flexibleID(n.String())
	return nil
}

type loxoPerson struct {
	ID          flexibleID `json:"id"`
	Name        string     `json:"name"`
	LinkedInURL string     `json:"linkedin_url"`
	Emails      []struct {
		Value string `json:"value"`
	} `json:"emails"`
	Email  string `json:"email"`
	Phones []struct {
		Value string `json:"value"`
	} `json:"phones"`
	Phone          string   `json:"phone"`
	CurrentTitle   string   `json:"current_title"`
	CurrentCompany string   `json:"current_company"`
	Location       string   `json:"location"`
	Skillsets      string   `json:"skillsets"`
	Skills         []string `json:"skills"`
}

func normalizeLoxo(raw json.RawMessage) (*types.CandidatePayload, error) {
	var l loxoPerson
	if err := json.Unmarshal(raw, &l); err != nil {
		return nil, err
	}

	email := l.Email
	if len(l.Emails) > 0 && cleanText(l.Emails[0].Value) != "" {
		email = l.Emails[0].Value
	}
	phone := l.Phone
	if len(l.Phones) > 0 && cleanText(l.Phones[0].Value) != "" {
		phone = l.Phones[0].Value
	}
	skills := l.Skills
	if l.Skillsets != "" {
		skills = append(strings.Split(l.Skillsets, ","), skills...)
	}

	return &types.CandidatePayload{
		LoxoID:         present(string(l.ID)),
		FullName:       present(l.Name),
		LinkedInURL:    presentLinkedIn(l.LinkedInURL),
		Email:          presentEmail(email),
		Phone:          present(phone),
		CurrentTitle:   present(l.CurrentTitle),
		CurrentCompany: present(l.CurrentCompany),
		Location:       present(l.Location),
		Skills:         normalizeSkills(skills),
		LoxoRawData:    compactJSON(raw),
	}, nil
}

type parsedCV struct {
	FullName       string          `json:"full_name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	LinkedInURL    string          `json:"linkedin_url"`
	Headline       string          `json:"headline"`
	CurrentTitle   string          `json:"current_title"`
	CurrentCompany string          `json:"current_company"`
	Location       string          `json:"location"`
	Skills         []string        `json:"skills"`
	Experience     json.RawMessage `json:"experience"`
	CVText         string          `json:"cv_text"`
}

func normalizeCV(raw json.RawMessage) (*types.CandidatePayload, error) {
	var cv parsedCV
	if err := json.Unmarshal(raw, &cv); err != nil {
		return nil, err
	}

	p := &types.CandidatePayload{
		FullName:       present(cv.FullName),
		Email:          presentEmail(cv.Email),
		Phone:          present(cv.Phone),
		LinkedInURL:    presentLinkedIn(cv.LinkedInURL),
		Headline:       present(cv.Headline),
		CurrentTitle:   present(cv.CurrentTitle),
		CurrentCompany: present(cv.CurrentCompany),
		Location:       present(cv.Location),
		Skills:         normalizeSkills(cv.Skills),
	}
	// CV text keeps its line structure
	if text := strings.TrimSpace(cv.CVText); text != "" {
		p.CVParsedText = &text
	}
	if jsonArray(cv.Experience) {
		p.EmploymentHistory = compactJSON(cv.Experience)
	}
	return p, nil
}

func normalizeManual(raw json.RawMessage) (*types.CandidatePayload, error) {
	var in types.CandidatePayload
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, err
	}

	p := &types.CandidatePayload{
		FullName:          presentPtr(in.FullName),
		Email:             presentEmail(types.StringValue(in.Email)),
		Phone:             presentPtr(in.Phone),
		LinkedInURL:       presentLinkedIn(types.StringValue(in.LinkedInURL)),
		CurrentCompany:    presentPtr(in.CurrentCompany),
		ApolloID:          presentPtr(in.ApolloID),
		LoxoID:            presentPtr(in.LoxoID),
		Headline:          presentPtr(in.Headline),
		CurrentTitle:      presentPtr(in.CurrentTitle),
		Location:          presentPtr(in.Location),
		Skills:            normalizeSkills(in.Skills),
		EmploymentHistory: types.PresentJSON(in.EmploymentHistory),
		ApolloRawData:     types.PresentJSON(in.ApolloRawData),
		LoxoRawData:       types.PresentJSON(in.LoxoRawData),
		EmbeddingStatus:   in.EmbeddingStatus,
	}
	if text := strings.TrimSpace(types.StringValue(in.CVParsedText)); text != "" {
		p.CVParsedText = &text
	}
	return p, nil
}

// cleanText collapses whitespace runs (including non-breaking spaces) to one space
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// present returns nil for values that are empty after cleaning
func present(s string) *string {
	s = cleanText(s)
	if s == "" {
		return nil
	}
	return &s
}

func presentPtr(s *string) *string {
	if s == nil {
		return nil
	}
	return present(*s)
}

func presentEmail(s string) *string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return nil
	}
	return &s
}

func presentLinkedIn(s string) *string {
	s = CanonicalLinkedInURL(s)
	if s == "" {
		return nil
	}
	return &s
}

// CanonicalLinkedInURL normalizes a LinkedIn profile URL: https scheme,
// lowercase host, no query, fragment or trailing slash. The path keeps its
// case. Unparseable input is returned trimmed.
func CanonicalLinkedInURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return strings.TrimRight(strings.TrimSpace(raw), "/")
	}
	u.Scheme = "https"
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}

// normalizeSkills cleans each skill and drops case-insensitive repeats,
// keeping the first spelling. Returns nil when nothing is left.
func normalizeSkills(in []string) []string {
	seen := make(map[string]bool, len(in))
	var out []string
	for _, s := range in {
		s = cleanText(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, s)
	}
	return out
}

func joinNonEmpty(sep string, parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = cleanText(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, sep)
}

func jsonArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}

func compactJSON(raw json.RawMessage) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return append(json.RawMessage{}, raw...)
	}
	return buf.Bytes()
}

// quoteID renders an external id for log lines
func quoteID(id string) string {
	if id == "" {
		return "-"
	}
	return strconv.Quote(id)
}
