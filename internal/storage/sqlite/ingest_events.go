package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/storage/storeerr"
)

const eventColumns = `id, type, timestamp, candidate_id, batch_id, source, severity, message, data`

// StoreIngestEvent stores a new ingest audit event
func (s *SQLiteStorage) StoreIngestEvent(ctx context.Context, event *events.IngestEvent) error {
	if event == nil {
		return storeerr.Wrap("store_event", "", fmt.Errorf("event cannot be nil"))
	}
	dataJSON, err := json.Marshal(event.Data)
	if err != nil {
		return storeerr.Wrap("store_event", event.ID, fmt.Errorf("failed to marshal event data: %w", err))
	}
	if event.Data == nil {
		dataJSON = []byte("{}")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO ingest_events (`+eventColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		event.ID,
		string(event.Type),
		formatTime(event.Timestamp),
		event.CandidateID,
		event.BatchID,
		event.Source,
		string(event.Severity),
		event.Message,
		string(dataJSON),
	)
	if err != nil {
		return storeerr.Wrap("store_event", event.ID,
			fmt.Errorf("failed to store ingest event (type=%s, candidate=%s): %w", event.Type, event.CandidateID, err))
	}
	return nil
}

// GetIngestEvents retrieves events matching the given filter, most recent first
func (s *SQLiteStorage) GetIngestEvents(ctx context.Context, filter events.EventFilter) ([]*events.IngestEvent, error) {
	query := `SELECT ` + eventColumns + ` FROM ingest_events WHERE 1=1`
	args := []interface{}{}

	if filter.CandidateID != "" {
		query += " AND candidate_id = ?"
		args = append(args, filter.CandidateID)
	}
	if filter.BatchID != "" {
		query += " AND batch_id = ?"
		args = append(args, filter.BatchID)
	}
	if filter.Type != "" {
		query += " AND type = ?"
		args = append(args, string(filter.Type))
	}
	if filter.Severity != "" {
		query += " AND severity = ?"
		args = append(args, string(filter.Severity))
	}
	if !filter.AfterTime.IsZero() {
		query += " AND timestamp > ?"
		args = append(args, formatTime(filter.AfterTime))
	}
	if !filter.BeforeTime.IsZero() {
		query += " AND timestamp < ?"
		args = append(args, formatTime(filter.BeforeTime))
	}

	query += " ORDER BY timestamp DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
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
func (s *SQLiteStorage) GetRecentIngestEvents(ctx context.Context, limit int) ([]*events.IngestEvent, error) {
	return s.GetIngestEvents(ctx, events.EventFilter{Limit: limit})
}

// CountIngestEvents returns the number of stored events
func (s *SQLiteStorage) CountIngestEvents(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingest_events").Scan(&n); err != nil {
		return 0, storeerr.Wrap("count_events", "", fmt.Errorf("failed to get event count: %w", err))
	}
	return n, nil
}

func scanEvents(rows *sql.Rows) ([]*events.IngestEvent, error) {
	var result []*events.IngestEvent

	for rows.Next() {
		var event events.IngestEvent
		var dataJSON, timestamp string

		err := rows.Scan(
			&event.ID,
			&event.Type,
			&timestamp,
			&event.CandidateID,
			&event.BatchID,
			&event.Source,
			&event.Severity,
			&event.Message,
			&dataJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ingest event: %w", err)
		}

		if event.Timestamp, err = parseTime(timestamp); err != nil {
			return nil, err
		}

		event.Data = make(map[string]interface{})
		if dataJSON != "" && dataJSON != "{}" && dataJSON != "null" {
			if err := json.Unmarshal([]byte(dataJSON), &event.Data); err != nil {
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
