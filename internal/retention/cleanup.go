// Package retention enforces the ingest audit-event retention policy.
package retention

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/talentdb/talent/internal/config"
	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/storage"
)

// globalLimitTrigger is the share of GlobalLimitEvents the table is trimmed
// down to, so a busy store does not sit at the cap and clean on every run.
const globalLimitTrigger = 0.95

// vacuumer is implemented by backends that can reclaim disk space
type vacuumer interface {
	VacuumDatabase(ctx context.Context) error
}

// Result reports what one cleanup cycle did
type Result struct {
	TimeBasedDeleted   int   `json:"time_based_deleted"`
	GlobalLimitDeleted int   `json:"global_limit_deleted"`
	EventsRemaining    int   `json:"events_remaining"`
	VacuumRan          bool  `json:"vacuum_ran"`
	ProcessingTimeMs   int64 `json:"processing_time_ms"`
}

// TotalDeleted is the number of events removed by both steps
func (r *Result) TotalDeleted() int {
	return r.TimeBasedDeleted + r.GlobalLimitDeleted
}

// Run executes one cleanup cycle: age-based deletion, then the global cap,
// then an optional VACUUM. The outcome is recorded as an
// event_cleanup_completed event, also on failure.
func Run(ctx context.Context, store storage.Storage, cfg config.EventRetentionConfig) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid retention config: %w", err)
	}
	if !cfg.CleanupEnabled {
		return nil, fmt.Errorf("event cleanup is disabled")
	}

	start := time.Now()
	res := &Result{}

	// Step 1: time-based cleanup
	deleted, err := store.CleanupEventsByAge(ctx, cfg.RetentionDays, cfg.RetentionCriticalDays, cfg.CleanupBatchSize)
	if err != nil {
		err = fmt.Errorf("time-based cleanup failed: %w", err)
		logCleanupEvent(ctx, store, res, start, err)
		return res, err
	}
	res.TimeBasedDeleted = deleted

	// Step 2: global safety limit
	trigger := int(float64(cfg.GlobalLimitEvents) * globalLimitTrigger)
	deleted, err = store.CleanupEventsByGlobalLimit(ctx, trigger, cfg.CleanupBatchSize)
	if err != nil {
		err = fmt.Errorf("global limit cleanup failed: %w", err)
		logCleanupEvent(ctx, store, res, start, err)
		return res, err
	}
	res.GlobalLimitDeleted = deleted

	// Step 3: optional VACUUM
	if cfg.CleanupVacuum && res.TotalDeleted() > 0 {
		if v, ok := store.(vacuumer); ok {
			if err := v.VacuumDatabase(ctx); err != nil {
				log.Printf("[STORE] Warning: VACUUM failed: %v", err)
			} else {
				res.VacuumRan = true
			}
		}
	}

	if remaining, err := store.CountIngestEvents(ctx); err != nil {
		log.Printf("[STORE] Warning: failed to count events: %v", err)
	} else {
		res.EventsRemaining = remaining
	}

	logCleanupEvent(ctx, store, res, start, nil)

	if res.TotalDeleted() > 0 || res.VacuumRan {
		vacuum := ""
		if res.VacuumRan {
			vacuum = " [VACUUM ran]"
		}
		log.Printf("[STORE] Event cleanup: deleted %d events (time_based=%d, global_limit=%d) in %dms%s (remaining=%d)",
			res.TotalDeleted(), res.TimeBasedDeleted, res.GlobalLimitDeleted, res.ProcessingTimeMs, vacuum, res.EventsRemaining)
	}
	return res, nil
}

func logCleanupEvent(ctx context.Context, store storage.Storage, res *Result, start time.Time, cleanupErr error) {
	res.ProcessingTimeMs = time.Since(start).Milliseconds()

	data := events.EventCleanupCompletedData{
		EventsDeleted:      res.TotalDeleted(),
		TimeBasedDeleted:   res.TimeBasedDeleted,
		GlobalLimitDeleted: res.GlobalLimitDeleted,
		ProcessingTimeMs:   res.ProcessingTimeMs,
		EventsRemaining:    res.EventsRemaining,
		VacuumRan:          res.VacuumRan,
		Success:            cleanupErr == nil,
	}
	message := fmt.Sprintf("Event cleanup completed: %d events deleted", data.EventsDeleted)
	if cleanupErr != nil {
		data.Error = cleanupErr.Error()
		message = fmt.Sprintf("Event cleanup failed: %v", cleanupErr)
	}

	event, err := events.NewEventCleanupCompletedEvent(message, data)
	if err != nil {
		log.Printf("[STORE] Warning: failed to build cleanup event: %v", err)
		return
	}
	if err := store.StoreIngestEvent(context.WithoutCancel(ctx), event); err != nil {
		log.Printf("[STORE] Warning: failed to store cleanup event: %v", err)
	}
}
