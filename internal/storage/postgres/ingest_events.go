package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/storage/storeerr"
)

const eventColumns = `id, type, timestamp, candidate_id, batch_id, source, severity, message, data`

// StoreIngestEvent stores a new ingest audit event
func (s *PostgresStorage) StoreIngestEvent(ctx context.Context, event *events.IngestEvent) error {
	if event == nil {
		return storeerr.Wrap("store_event", "", fmt.Errorf("event cannot be nil"))
	}
	data := event.Data
	if data == nil {
		data = map[string]interface{}{}
	}
	dataJSON, err := json.Marshal(data)
	if err != nil {
		return storeerr.Wrap("store_event", event.ID, fmt.Errorf("failed to marshal event data: %w", err))
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO ingest_events (`+eventColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		event.ID,
		string(event.Type),
		event.Timestamp,
		event.CandidateID,
		event.BatchID,
		event.Source,
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return storeerr.Wrap("store_event", event.ID, fmt.Errorf("failed to store ingest event: %w", err))
	}
	return nil
}

// GetIngestEvents retrieves events matching the given filter, most recent first
func (s *PostgresStorage) GetIngestEvents(ctx context.Context, filter events.EventFilter) ([]*events.IngestEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM ingest_events WHERE 1=1`
	args := []interface{}{}
	argNum := 1

	if filter.CandidateID != "" {
		query += fmt.Sprintf(" AND candidate_id = $%d", argNum)
		args = append(args, filter.CandidateID)
		argNum++
	}
	if filter.BatchID != "" {
		query += fmt.Sprintf(" AND batch_id = $%d", argNum)
		args = append(args, filter.BatchID)
		argNum++
	}
	if filter.Type != "" {
		query += fmt.Sprintf(" AND type = $%d", argNum)
		args = append(args, string(filter.Type))
		argNum++
	}
	if filter.Severity != "" {
		query += fmt.Sprintf(" AND severity = $%d", argNum)
		args = append(args, string(filter.Severity))
		argNum++
	}
	if !filter.AfterTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp > $%d", argNum)
		args = append(args, filter.AfterTime)
		argNum++
	}
	if !filter.BeforeTime.IsZero() {
		query += fmt.Sprintf(" AND timestamp < $%d", argNum)
		args = append(args, filter.BeforeTime)
		argNum++
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argNum)
		args = append(args, filter.Limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, storeerr.Wrap("get_events", "", fmt.Errorf("failed to query ingest events: %w", err))
	}
	defer rows.Close()

	result, err := scanEvents(rows)
	if err != nil {
		return nil, storeerr.Wrap("get_events", "", err)
	}
	return result, nil
}

// GetRecentIngestEvents retrieves the most recent events up to limit
func (s *PostgresStorage) GetRecentIngestEvents(ctx context.Context, limit int) ([]*events.IngestEvent, error) {
	return s.GetIngestEvents(ctx, events.EventFilter{Limit: limit})
}

// CountIngestEvents returns the number of stored events
func (s *PostgresStorage) CountIngestEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM ingest_events").Scan(&n); err != nil {
		return 0, storeerr.Wrap("count_events", "", fmt.Errorf("failed to get event count: %w", err))
	}
	return n, nil
}

func scanEvents(rows pgx.Rows) ([]*events.IngestEvent, error) {
	var result []*events.IngestEvent

	for rows.Next() {
		var event events.IngestEvent
		var dataJSON []byte
		var typ, severity string

		err := rows.Scan(
			&event.ID,
			&typ,
			&event.Timestamp,
			&event.CandidateID,
			&event.BatchID,
			&event.Source,
			&severity,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest event: %w", err)
		}
		event.Type = events.EventType(typ)
		event.Severity = events.EventSeverity(severity)

		event.Data = make(map[string]interface{})
		if len(dataJSON) > 0 {
			if err := json.Unmarshal(dataJSON, &event.Data); err != nil {
				return nil, fmt.Errorf("failed to unmarshal event data: %w", err)
			}
		}

		result = append(result, &event)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating ingest event rows: %w", err)
	}
	return result, nil
}
