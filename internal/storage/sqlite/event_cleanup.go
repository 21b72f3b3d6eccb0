package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/talentdb/talent/internal/storage/storeerr"
)

// CleanupEventsByAge deletes events older than the retention period.
// Regular events are deleted after retentionDays, error and critical events
// after criticalRetentionDays. Deletions run batchSize rows at a time.
func (s *SQLiteStorage) CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, storeerr.Wrap("cleanup_age", "", fmt.Errorf("retention days cannot be negative"))
	}
	if batchSize < 1 {
		return 0, storeerr.Wrap("cleanup_age", "", fmt.Errorf("batch size must be at least 1"))
	}

	totalDeleted := 0
	now := s.now()

	regularCutoff := now.AddDate(0, 0, -retentionDays)
	deleted, err := s.deleteOldEventsBatch(ctx, regularCutoff, []string{"info", "warning"}, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, storeerr.Wrap("cleanup_age", "", fmt.Errorf("failed to delete old regular events: %w", err))
	}

	criticalCutoff := now.AddDate(0, 0, -criticalRetentionDays)
	deleted, err = s.deleteOldEventsBatch(ctx, criticalCutoff, []string{"error", "critical"}, batchSize)
	totalDeleted += deleted
	if err != nil {
		return totalDeleted, storeerr.Wrap("cleanup_age", "", fmt.Errorf("failed to delete old critical events: %w", err))
	}

	return totalDeleted, nil
}

// deleteOldEventsBatch deletes events older than cutoff with the given severities in batches
func (s *SQLiteStorage) deleteOldEventsBatch(ctx context.Context, cutoff time.Time, severities []string, batchSize int) (int, error) {
	totalDeleted := 0

	placeholders := ""
	for i := range severities {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += "?"
	}
	query := fmt.Sprintf(`
		DELETE FROM ingest_events
		WHERE id IN (
			SELECT id FROM ingest_events
			WHERE timestamp < ?
			AND severity IN (%s)
			ORDER BY timestamp ASC
			LIMIT ?
		)
	`, placeholders)

	for {
		select {
		case <-ctx.Done():
			return totalDeleted, ctx.Err()
		default:
		}

		args := []interface{}{formatTime(cutoff)}
		for _, sev := range severities {
			args = append(args, sev)
		}
		args = append(args, batchSize)

		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to execute delete: %w", err)
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, fmt.Errorf("failed to get rows affected: %w", err)
		}
		totalDeleted += int(rowsAffected)

		if rowsAffected < int64(batchSize) {
			break
		}
	}

	return totalDeleted, nil
}

// CleanupEventsByGlobalLimit enforces a global event count limit. When the
// total exceeds it, the oldest info and warning events are deleted; error and
// critical events are never removed by this pass.
func (s *SQLiteStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
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
	totalDeleted := 0

	for eventsToDelete > 0 {
		select {
		case <-ctx.Done():
			return totalDeleted, storeerr.Wrap("cleanup_limit", "", ctx.Err())
		default:
		}

		limitThisBatch := batchSize
		if eventsToDelete < batchSize {
			limitThisBatch = eventsToDelete
		}

		result, err := s.db.ExecContext(ctx, `
			DELETE FROM ingest_events
			WHERE id IN (
				SELECT id FROM ingest_events
				WHERE severity NOT IN ('error', 'critical')
				ORDER BY timestamp ASC
				LIMIT ?
			)
		`, limitThisBatch)
		if err != nil {
			return totalDeleted, storeerr.Wrap("cleanup_limit", "", fmt.Errorf("failed to execute delete: %w", err))
		}
		rowsAffected, err := result.RowsAffected()
		if err != nil {
			return totalDeleted, storeerr.Wrap("cleanup_limit", "", err)
		}

		totalDeleted += int(rowsAffected)
		eventsToDelete -= int(rowsAffected)

		// Fewer than requested means only protected events remain
		if rowsAffected < int64(limitThisBatch) {
			break
		}
	}

	return totalDeleted, nil
}

// VacuumDatabase runs VACUUM to reclaim disk space after a large cleanup.
// It locks the database while it runs.
func (s *SQLiteStorage) VacuumDatabase(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "VACUUM"); err != nil {
		return storeerr.Wrap("vacuum", "", fmt.Errorf("failed to vacuum database: %w", err))
	}
	return nil
}
