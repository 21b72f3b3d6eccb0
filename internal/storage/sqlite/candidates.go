package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/talentdb/talent/internal/storage/storeerr"
	"github.com/talentdb/talent/internal/types"
)

const candidateColumns = `
	id, full_name, email, phone, linkedin_url, current_company, apollo_id, loxo_id,
	headline, current_title, location, skills, employment_history, cv_parsed_text,
	apollo_raw_data, loxo_raw_data, source, embedding_status, last_synced_at,
	version, created_at, updated_at`

// allowedUpdateFields whitelists the columns UpdateCandidate may write
var allowedUpdateFields = map[types.Field]bool{
	types.FieldFullName:          true,
	types.FieldEmail:             true,
	types.FieldPhone:             true,
	types.FieldLinkedInURL:       true,
	types.FieldCurrentCompany:    true,
	types.FieldApolloID:          true,
	types.FieldLoxoID:            true,
	types.FieldHeadline:          true,
	types.FieldCurrentTitle:      true,
	types.FieldLocation:          true,
	types.FieldSkills:            true,
	types.FieldEmploymentHistory: true,
	types.FieldCVParsedText:      true,
	types.FieldApolloRawData:     true,
	types.FieldLoxoRawData:       true,
	types.FieldSource:            true,
	types.FieldEmbeddingStatus:   true,
	types.FieldLastSyncedAt:      true,
}

// CreateCandidate inserts a new candidate with a fresh UUID
func (s *SQLiteStorage) CreateCandidate(ctx context.Context, payload *types.CandidatePayload) (*types.Candidate, error) {
	if payload == nil {
		return nil, storeerr.Wrap("create", "", fmt.Errorf("payload cannot be nil"))
	}
	if err := payload.Validate(); err != nil {
		return nil, storeerr.Wrap("create", "", fmt.Errorf("validation failed: %w", err))
	}

	c := types.NewCandidate(uuid.New().String(), payload, s.now())
	skills, err := encodeSkills(c.Skills)
	if err != nil {
		return nil, storeerr.Wrap("create", c.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID, c.FullName, c.Email, c.Phone, c.LinkedInURL, c.CurrentCompany, c.ApolloID, c.LoxoID,
		c.Headline, c.CurrentTitle, c.Location, skills, nullJSON(c.EmploymentHistory), c.CVParsedText,
		nullJSON(c.ApolloRawData), nullJSON(c.LoxoRawData), string(c.Source), string(c.EmbeddingStatus),
		nullTime(c.LastSyncedAt), c.Version, formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	if err != nil {
		return nil, storeerr.Wrap("create", c.ID, fmt.Errorf("failed to insert candidate: %w", err))
	}

	// Round-trip through the same representation reads produce
	created, err := s.GetCandidate(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	if created == nil {
		return nil, storeerr.Wrap("create", c.ID, fmt.Errorf("candidate vanished after insert"))
	}
	return created, nil
}

// GetCandidate retrieves a candidate by ID; nil, nil when absent
func (s *SQLiteStorage) GetCandidate(ctx context.Context, id string) (*types.Candidate, error) {
	c, err := scanCandidate(s.db.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.Wrap("get", id, err)
	}
	return c, nil
}

// UpdateCandidate writes the update's fields, bumps version and stamps
// updated_at in a single transaction.
func (s *SQLiteStorage) UpdateCandidate(ctx context.Context, id string, update *types.CandidateUpdate) (*types.Candidate, error) {
	if update == nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("update cannot be nil"))
	}
	if err := update.Validate(); err != nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("validation failed: %w", err))
	}

	setClauses := []string{"updated_at = ?", "version = version + 1"}
	args := []interface{}{formatTime(s.now())}
	for _, a := range update.Assignments() {
		if !allowedUpdateFields[a.Field] {
			return nil, storeerr.Wrap("update", id, fmt.Errorf("invalid field for update: %s", a.Field))
		}
		value, err := columnValue(a)
		if err != nil {
			return nil, storeerr.Wrap("update", id, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = ?", a.Field))
		args = append(args, value)
	}

	query := fmt.Sprintf("UPDATE candidates SET %s WHERE id = ?", strings.Join(setClauses, ", "))
	args = append(args, id)
	if update.ExpectedVersion > 0 {
		query += " AND version = ?"
		args = append(args, update.ExpectedVersion)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("failed to update candidate: %w", err))
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, storeerr.Wrap("update", id, err)
	}
	if affected == 0 {
		var current int64
		err := tx.QueryRowContext(ctx, `SELECT version FROM candidates WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return nil, storeerr.Wrap("update", id, storeerr.ErrNotFound)
		}
		if err != nil {
			return nil, storeerr.Wrap("update", id, err)
		}
		return nil, storeerr.Wrap("update", id, fmt.Errorf("%w: expected %d, found %d",
			storeerr.ErrVersionConflict, update.ExpectedVersion, current))
	}

	updated, err := scanCandidate(tx.QueryRowContext(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = ?`, id))
	if err != nil {
		return nil, storeerr.Wrap("update", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("failed to commit: %w", err))
	}
	return updated, nil
}

// FindCandidatesMatchingAny runs one OR query across every identity key the
// payload carries. Rows are unique by primary key, so no further dedup is needed.
func (s *SQLiteStorage) FindCandidatesMatchingAny(ctx context.Context, payload *types.CandidatePayload) ([]*types.Candidate, error) {
	if payload == nil {
		return nil, storeerr.Wrap("find", "", fmt.Errorf("payload cannot be nil"))
	}
	keys := payload.IdentityKeys()
	if keys.IsEmpty() {
		return nil, nil
	}

	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	add("linkedin_url", keys.LinkedInURL)
	add("email", keys.Email)
	if keys.HasNameCompany() {
		conds = append(conds, "(full_name = ? AND current_company = ?)")
		args = append(args, keys.FullName, keys.CurrentCompany)
	}
	add("apollo_id", keys.ApolloID)
	add("loxo_id", keys.LoxoID)
	add("phone", keys.Phone)

	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE ` +
		strings.Join(conds, " OR ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeerr.Wrap("find", "", fmt.Errorf("failed to query candidates: %w", err))
	}
	defer rows.Close()

	out, err := scanCandidates(rows)
	if err != nil {
		return nil, storeerr.Wrap("find", "", err)
	}
	return out, nil
}

// ListCandidates returns candidates matching the filter, newest first
func (s *SQLiteStorage) ListCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.Candidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE 1=1`
	args := []interface{}{}

	if filter.Source != nil {
		query += " AND source = ?"
		args = append(args, string(*filter.Source))
	}
	if filter.EmbeddingStatus != nil {
		query += " AND embedding_status = ?"
		args = append(args, string(*filter.EmbeddingStatus))
	}
	if filter.Query != "" {
		query += " AND (full_name LIKE ? OR email LIKE ? OR current_company LIKE ?)"
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern, pattern)
	}

	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeerr.Wrap("list", "", fmt.Errorf("failed to list candidates: %w", err))
	}
	defer rows.Close()

	out, err := scanCandidates(rows)
	if err != nil {
		return nil, storeerr.Wrap("list", "", err)
	}
	return out, nil
}

// CountCandidates returns the number of stored candidates
func (s *SQLiteStorage) CountCandidates(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&n); err != nil {
		return 0, storeerr.Wrap("count", "", err)
	}
	return n, nil
}

// SetEmbeddingStatus updates embedding_status without a version check
func (s *SQLiteStorage) SetEmbeddingStatus(ctx context.Context, id string, status types.EmbeddingStatus) error {
	_, err := s.UpdateCandidate(ctx, id, &types.CandidateUpdate{EmbeddingStatus: &status})
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCandidate(row rowScanner) (*types.Candidate, error) {
	var c types.Candidate
	var skills string
	var employment, apolloRaw, loxoRaw, lastSynced sql.NullString
	var source, status, createdAt, updatedAt string

	err := row.Scan(
		&c.ID, &c.FullName, &c.Email, &c.Phone, &c.LinkedInURL, &c.CurrentCompany, &c.ApolloID, &c.LoxoID,
		&c.Headline, &c.CurrentTitle, &c.Location, &skills, &employment, &c.CVParsedText,
		&apolloRaw, &loxoRaw, &source, &status, &lastSynced,
		&c.Version, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = types.Source(source)
	c.EmbeddingStatus = types.EmbeddingStatus(status)
	if skills != "" {
		if err := json.Unmarshal([]byte(skills), &c.Skills); err != nil {
			return nil, fmt.Errorf("failed to decode skills for %s: %w", c.ID, err)
		}
		if len(c.Skills) == 0 {
			c.Skills = nil
		}
	}
	if employment.Valid {
		c.EmploymentHistory = json.RawMessage(employment.String)
	}
	if apolloRaw.Valid {
		c.ApolloRawData = json.RawMessage(apolloRaw.String)
	}
	if loxoRaw.Valid {
		c.LoxoRawData = json.RawMessage(loxoRaw.String)
	}
	if lastSynced.Valid {
		t, err := parseTime(lastSynced.String)
		if err != nil {
			return nil, err
		}
		c.LastSyncedAt = &t
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func scanCandidates(rows *sql.Rows) ([]*types.Candidate, error) {
	var result []*types.Candidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan candidate: %w", err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating candidate rows: %w", err)
	}
	return result, nil
}

// columnValue converts an assignment into the value bound to its column
func columnValue(a types.Assignment) (interface{}, error) {
	switch v := a.Value.(type) {
	case string:
		return v, nil
	case []string:
		return encodeSkills(v)
	case json.RawMessage:
		return nullJSON(v), nil
	case types.Source:
		return string(v), nil
	case types.EmbeddingStatus:
		return string(v), nil
	case time.Time:
		return formatTime(v), nil
	}
	return nil, fmt.Errorf("unsupported value type %T for %s", a.Value, a.Field)
}

func encodeSkills(skills []string) (string, error) {
	if skills == nil {
		skills = []string{}
	}
	b, err := json.Marshal(skills)
	if err != nil {
		return "", fmt.Errorf("failed to encode skills: %w", err)
	}
	return string(b), nil
}

func nullJSON(raw json.RawMessage) interface{} {
	if types.IsAbsentJSON(raw) {
		return nil
	}
	return string(raw)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}
