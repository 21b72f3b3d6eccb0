package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/talentdb/talent/internal/storage/storeerr"
)

// CleanupEventsByAge deletes info/warning events older than retentionDays and
// error/critical events older than criticalRetentionDays, batchSize rows at a time
func (s *PostgresStorage) CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, storeerr.Wrap("cleanup_age", "", fmt.Errorf("retention days cannot be negative"))
	}
	if batchSize < 1 {
		return 0, storeerr.Wrap("cleanup_age", "", fmt.Errorf("batch size must be at least 1"))
	}

	now := s.now()
	total := 0

	deleted, err := s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -retentionDays), []string{"info", "warning"}, batchSize)
	total += deleted
	if err != nil {
		return total, storeerr.Wrap("cleanup_age", "", fmt.Errorf("failed to delete old regular events: %w", err))
	}

	deleted, err = s.deleteOldEventsBatch(ctx, now.AddDate(0, 0, -criticalRetentionDays), []string{"error", "critical"}, batchSize)
	total += deleted
	if err != nil {
		return total, storeerr.Wrap("cleanup_age", "", fmt.Errorf("failed to delete old critical events: %w", err))
	}
	return total, nil
}

func (s *PostgresStorage) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []string, batchSize int) (int, error) {
	total := 0
	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()
		default:
		}

		tag, err := s.pool.Exec(ctx, `
			DELETE FROM ingest_events
			WHERE id IN (
				SELECT id FROM ingest_events
				WHERE timestamp < $1
				AND severity = ANY($2)
				ORDER BY timestamp ASC
				LIMIT $3
			)
		`, cutoff, severities, batchSize)
		if err != nil {
			return total, fmt.Errorf("failed to execute delete: %w", err)
		}
		total += int(tag.RowsAffected())
		if tag.RowsAffected() < int64(batchSize) {
			return total, nil
		}
	}
}

// CleanupEventsByGlobalLimit deletes the oldest info/warning events until at
// most globalLimit remain or only error/critical events are left
func (s *PostgresStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 1 {
		return 0, storeerr.Wrap("cleanup_limit", "", fmt.Errorf("global limit must be at least 1"))
	}
	if batchSize < 1 {
		return 0, storeerr.Wrap("cleanup_limit", "", fmt.Errorf("batch size must be at least 1"))
	}

	currentCount, err := s.CountIngestEvents(ctx)
	if err != nil {
		return 0, err
	}
	if currentCount <= globalLimit {
		return 0, nil
	}

	eventsToDelete := currentCount - globalLimit
	total := 0
	for eventsToDelete > 0 {
		select {
		case <-ctx.Done():
			return total, storeerr.Wrap("cleanup_limit", "", ctx.Err())
		default:
		}

		limitThisBatch := batchSize
		if eventsToDelete < batchSize {
			limitThisBatch = eventsToDelete
		}

		tag, err := s.pool.Exec(ctx, `
			DELETE FROM ingest_events
			WHERE id IN (
				SELECT id FROM ingest_events
				WHERE severity NOT IN ('error', 'critical')
				ORDER BY timestamp ASC
				LIMIT $1
			)
		`, limitThisBatch)
		if err != nil {
			return total, storeerr.Wrap("cleanup_limit", "", fmt.Errorf("failed to execute delete: %w", err))
		}

		total += int(tag.RowsAffected())
		eventsToDelete -= int(tag.RowsAffected())
		if tag.RowsAffected() < int64(limitThisBatch) {
			break
		}
	}
	return total, nil
}
