package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/talentdb/talent/internal/storage/storeerr"
	"github.com/talentdb/talent/internal/types"
)

const candidateColumns = `
	id, full_name, email, phone, linkedin_url, current_company, apollo_id, loxo_id,
	headline, current_title, location, skills, employment_history, cv_parsed_text,
	apollo_raw_data, loxo_raw_data, source, embedding_status, last_synced_at,
	version, created_at, updated_at`

// Allowed fields for update to prevent SQL injection
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
func (s *PostgresStorage) CreateCandidate(ctx context.Context, payload *types.CandidatePayload) (*types.Candidate, error) {
	if payload == nil {
		return nil, storeerr.Wrap("create", "", fmt.Errorf("payload cannot be nil"))
	}
	if err := payload.Validate(); err != nil {
		return nil, storeerr.Wrap("create", "", fmt.Errorf("validation failed: %w", err))
	}

	c := types.NewCandidate(uuid.New().String(), payload, s.now())
	skills := c.Skills
	if skills == nil {
		skills = []string{}
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO candidates (`+candidateColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22)
		RETURNING `+candidateColumns,
		c.ID, c.FullName, c.Email, c.Phone, c.LinkedInURL, c.CurrentCompany, c.ApolloID, c.LoxoID,
		c.Headline, c.CurrentTitle, c.Location, skills, nullJSON(c.EmploymentHistory), c.CVParsedText,
		nullJSON(c.ApolloRawData), nullJSON(c.LoxoRawData), string(c.Source), string(c.EmbeddingStatus),
		c.LastSyncedAt, c.Version, c.CreatedAt, c.UpdatedAt,
	)
	created, err := scanCandidate(row)
	if err != nil {
		return nil, storeerr.Wrap("create", c.ID, fmt.Errorf("failed to insert candidate: %w", err))
	}
	return created, nil
}

// GetCandidate retrieves a candidate by ID; nil, nil when absent
func (s *PostgresStorage) GetCandidate(ctx context.Context, id string) (*types.Candidate, error) {
	c, err := scanCandidate(s.pool.QueryRow(ctx,
		`SELECT `+candidateColumns+` FROM candidates WHERE id = $1`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, storeerr.Wrap("get", id, fmt.Errorf("failed to get candidate: %w", err))
	}
	return c, nil
}

// UpdateCandidate writes the update's fields, bumps version and stamps
// updated_at. The compare-and-swap is a single UPDATE ... RETURNING; a miss
// is classified by a follow-up existence check.
func (s *PostgresStorage) UpdateCandidate(ctx context.Context, id string, update *types.CandidateUpdate) (*types.Candidate, error) {
	if update == nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("update cannot be nil"))
	}
	if err := update.Validate(); err != nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("validation failed: %w", err))
	}

	setClauses := []string{"updated_at = $1", "version = version + 1"}
	args := []interface{}{s.now()}
	paramIndex := 2

	for _, a := range update.Assignments() {
		if !allowedUpdateFields[a.Field] {
			return nil, storeerr.Wrap("update", id, fmt.Errorf("invalid field for update: %s", a.Field))
		}
		value, err := columnValue(a)
		if err != nil {
			return nil, storeerr.Wrap("update", id, err)
		}
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", a.Field, paramIndex))
		args = append(args, value)
		paramIndex++
	}

	query := fmt.Sprintf("UPDATE candidates SET %s WHERE id = $%d", strings.Join(setClauses, ", "), paramIndex)
	args = append(args, id)
	paramIndex++
	if update.ExpectedVersion > 0 {
		query += fmt.Sprintf(" AND version = $%d", paramIndex)
		args = append(args, update.ExpectedVersion)
	}
	query += " RETURNING " + candidateColumns

	updated, err := scanCandidate(s.pool.QueryRow(ctx, query, args...))
	if err == nil {
		return updated, nil
	}
	if err != pgx.ErrNoRows {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("failed to update candidate: %w", err))
	}

	var current int64
	err = s.pool.QueryRow(ctx, `SELECT version FROM candidates WHERE id = $1`, id).Scan(&current)
	if err == pgx.ErrNoRows {
		return nil, storeerr.Wrap("update", id, storeerr.ErrNotFound)
	}
	if err != nil {
		return nil, storeerr.Wrap("update", id, err)
	}
	return nil, storeerr.Wrap("update", id, fmt.Errorf("%w: expected %d, found %d",
		storeerr.ErrVersionConflict, update.ExpectedVersion, current))
}

// FindCandidatesMatchingAny runs one OR query across every identity key the payload carries
func (s *PostgresStorage) FindCandidatesMatchingAny(ctx context.Context, payload *types.CandidatePayload) ([]*types.Candidate, error) {
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
			args = append(args, value)
			conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
		}
	}
	add("linkedin_url", keys.LinkedInURL)
	add("email", keys.Email)
	if keys.HasNameCompany() {
		args = append(args, keys.FullName, keys.CurrentCompany)
		conds = append(conds, fmt.Sprintf("(full_name = $%d AND current_company = $%d)", len(args)-1, len(args)))
	}
	add("apollo_id", keys.ApolloID)
	add("loxo_id", keys.LoxoID)
	add("phone", keys.Phone)

	query := `SELECT ` + candidateColumns + ` FROM candidates WHERE ` +
		strings.Join(conds, " OR ") + ` ORDER BY created_at ASC, id ASC`
	rows, err := s.pool.Query(ctx, query, args...)
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
func (s *PostgresStorage) ListCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.Candidate, error) {
	var whereClauses []string
	var args []interface{}
	paramIndex := 1

	if filter.Source != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("source = $%d", paramIndex))
		args = append(args, string(*filter.Source))
		paramIndex++
	}
	if filter.EmbeddingStatus != nil {
		whereClauses = append(whereClauses, fmt.Sprintf("embedding_status = $%d", paramIndex))
		args = append(args, string(*filter.EmbeddingStatus))
		paramIndex++
	}
	if filter.Query != "" {
		whereClauses = append(whereClauses, fmt.Sprintf(
			"(full_name ILIKE $%d OR email ILIKE $%d OR current_company ILIKE $%d)",
			paramIndex, paramIndex, paramIndex))
		args = append(args, "%"+filter.Query+"%")
		paramIndex++
	}

	query := `SELECT ` + candidateColumns + ` FROM candidates`
	if len(whereClauses) > 0 {
		query += " WHERE " + strings.Join(whereClauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", paramIndex)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
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
func (s *PostgresStorage) CountCandidates(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM candidates`).Scan(&n); err != nil {
		return 0, storeerr.Wrap("count", "", err)
	}
	return n, nil
}

// SetEmbeddingStatus updates embedding_status without a version check
func (s *PostgresStorage) SetEmbeddingStatus(ctx context.Context, id string, status types.EmbeddingStatus) error {
	_, err := s.UpdateCandidate(ctx, id, &types.CandidateUpdate{EmbeddingStatus: &status})
	return err
}

func scanCandidate(row pgx.Row) (*types.Candidate, error) {
	var c types.Candidate
	var skills []string
	var employment, apolloRaw, loxoRaw []byte
	var source, status string

	err := row.Scan(
		&c.ID, &c.FullName, &c.Email, &c.Phone, &c.LinkedInURL, &c.CurrentCompany, &c.ApolloID, &c.LoxoID,
		&c.Headline, &c.CurrentTitle, &c.Location, &skills, &employment, &c.CVParsedText,
		&apolloRaw, &loxoRaw, &source, &status, &c.LastSyncedAt,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	c.Source = types.Source(source)
	c.EmbeddingStatus = types.EmbeddingStatus(status)
	if len(skills) > 0 {
		c.Skills = skills
	}
	c.EmploymentHistory = rawOrNil(employment)
	c.ApolloRawData = rawOrNil(apolloRaw)
	c.LoxoRawData = rawOrNil(loxoRaw)
	return &c, nil
}

func scanCandidates(rows pgx.Rows) ([]*types.Candidate, error) {
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

func columnValue(a types.Assignment) (interface{}, error) {
	switch v := a.Value.(type) {
	case string:
		return v, nil
	case []string:
		if v == nil {
			return []string{}, nil
		}
		return v, nil
	case json.RawMessage:
		return nullJSON(v), nil
	case types.Source:
		return string(v), nil
	case types.EmbeddingStatus:
		return string(v), nil
	case time.Time:
		return v, nil
	}
	return nil, fmt.Errorf("unsupported value type %T for %s", a.Value, a.Field)
}

// nullJSON returns the JSON text for a jsonb parameter, or nil for SQL NULL
func nullJSON(raw json.RawMessage) interface{} {
	if types.IsAbsentJSON(raw) {
		return nil
	}
	return string(raw)
}

func rawOrNil(b []byte) json.RawMessage {
	if b == nil {
		return nil
	}
	return json.RawMessage(b)
}
