package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/talentdb/talent/internal/deduplication"
	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/storage"
	"github.com/talentdb/talent/internal/types"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Failure stages recorded on candidate_ingest_failed events
const (
	StageNormalize = "normalize"
	StageProcess   = "process"
)

// Options controls a Runner
type Options struct {
	// Concurrency is the number of records processed at once (default 4)
	Concurrency int

	// RatePerSecond caps how many records start per second; 0 disables the limit
	RatePerSecond float64

	// Burst is the limiter bucket size; 0 means max(1, Concurrency)
	Burst int

	// DryRun scores every record against the store without writing anything
	DryRun bool

	// Logger receives [INGEST] lines; nil discards them
	Logger *log.Logger
}

// Validate checks if the options have valid values
func (o Options) Validate() error {
	if o.Concurrency < 0 {
		return fmt.Errorf("concurrency cannot be negative (got %d)", o.Concurrency)
	}
	if o.RatePerSecond < 0 {
		return fmt.Errorf("rate_per_second cannot be negative (got %.2f)", o.RatePerSecond)
	}
	if o.Burst < 0 {
		return fmt.Errorf("burst cannot be negative (got %d)", o.Burst)
	}
	return nil
}

// Runner ingests batches of raw source records through a deduplication engine
type Runner struct {
	store  storage.Storage
	engine *deduplication.Engine
	opts   Options
	logger *log.Logger
}

// NewRunner creates a runner writing to store through engine
func NewRunner(store storage.Storage, engine *deduplication.Engine, opts Options) (*Runner, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ingest options: %w", err)
	}
	if opts.Concurrency == 0 {
		opts.Concurrency = 4
	}
	if opts.Burst == 0 {
		opts.Burst = max(1, opts.Concurrency)
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	return &Runner{store: store, engine: engine, opts: opts, logger: logger}, nil
}

// ItemResult is the outcome for one source record
type ItemResult struct {
	Index      int    `json:"index"`
	ExternalID string `json:"external_id,omitempty"`

	// CandidateID is the created or merged record; for a dry-run update it
	// is the record that would be merged into
	CandidateID string `json:"candidate_id,omitempty"`

	Action     deduplication.Action      `json:"action,omitempty"`
	MatchedOn  deduplication.MatchReason `json:"matched_on,omitempty"`
	Confidence float64                   `json:"confidence"`
	Tied       int                       `json:"tied,omitempty"`

	// EmbeddingReason is set when a fresh embedding was requested
	EmbeddingReason string `json:"embedding_reason,omitempty"`

	// Stage and Err are set when the record failed
	Stage string `json:"stage,omitempty"`
	Err   error  `json:"-"`
}

// Failed reports whether the record could not be ingested
func (r ItemResult) Failed() bool {
	return r.Err != nil
}

// BatchStats summarizes a batch
type BatchStats struct {
	Total              int   `json:"total"`
	Created            int   `json:"created"`
	Updated            int   `json:"updated"`
	Failed             int   `json:"failed"`
	EmbeddingRequested int   `json:"embedding_requested"`
	ProcessingTimeMs   int64 `json:"processing_time_ms"`
}

// BatchResult is the outcome of Runner.Run. Items are in input order.
type BatchResult struct {
	BatchID string       `json:"batch_id"`
	Source  types.Source `json:"source"`
	DryRun  bool         `json:"dry_run,omitempty"`
	Items   []ItemResult `json:"items"`
	Stats   BatchStats   `json:"stats"`
}

// Validate checks that the stats agree with the items
func (b *BatchResult) Validate() error {
	if b.BatchID == "" {
		return fmt.Errorf("batch_id is required")
	}
	if b.Stats.Total != len(b.Items) {
		return fmt.Errorf("total (%d) does not match item count (%d)", b.Stats.Total, len(b.Items))
	}
	if b.Stats.Created+b.Stats.Updated+b.Stats.Failed != b.Stats.Total {
		return fmt.Errorf("created (%d) + updated (%d) + failed (%d) != total (%d)",
			b.Stats.Created, b.Stats.Updated, b.Stats.Failed, b.Stats.Total)
	}
	if b.Stats.EmbeddingRequested > b.Stats.Created+b.Stats.Updated {
		return fmt.Errorf("embedding_requested (%d) exceeds successful items (%d)",
			b.Stats.EmbeddingRequested, b.Stats.Created+b.Stats.Updated)
	}
	for i, item := range b.Items {
		if item.Index != i {
			return fmt.Errorf("item %d has index %d", i, item.Index)
		}
		if item.Failed() && item.Action != "" {
			return fmt.Errorf("item %d failed but has action %s", i, item.Action)
		}
		if !item.Failed() && !item.Action.IsValid() {
			return fmt.Errorf("item %d has invalid action %q", i, item.Action)
		}
	}
	return nil
}

// Run normalizes and ingests records from source.
//
// A failing record never stops the batch: it is reported in its ItemResult
// and as a candidate_ingest_failed event. Run itself only errors when the
// context is cancelled, in which case the partial result is still returned.
func (r *Runner) Run(ctx context.Context, source types.Source, records []json.RawMessage) (*BatchResult, error) {
	if !source.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownSource, source)
	}

	start := time.Now()
	batch := &BatchResult{
		BatchID: uuid.New().String(),
		Source:  source,
		DryRun:  r.opts.DryRun,
		Items:   make([]ItemResult, len(records)),
	}

	r.logger.Printf("[INGEST] Batch %s: %d %s records (concurrency %d, dry-run %t)",
		batch.BatchID, len(records), source, r.opts.Concurrency, r.opts.DryRun)
	if !r.opts.DryRun {
		event, err := events.NewIngestBatchStartedEvent(batch.BatchID, string(source),
			fmt.Sprintf("Ingesting %d %s records", len(records), source),
			events.IngestBatchStartedData{
				ItemCount:   len(records),
				Concurrency: r.opts.Concurrency,
				RatePerSec:  r.opts.RatePerSecond,
			})
		r.storeEvent(ctx, event, err)
	}

	var limiter *rate.Limiter
	if r.opts.RatePerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(r.opts.RatePerSecond), r.opts.Burst)
	}

	var (
		g        errgroup.Group
		finished atomic.Int64
	)
	g.SetLimit(r.opts.Concurrency)
	for i, raw := range records {
		g.Go(func() error {
			item := ItemResult{Index: i}
			if limiter != nil {
				if err := limiter.Wait(ctx); err != nil {
					item.Stage, item.Err = StageProcess, err
					batch.Items[i] = item
					return nil
				}
			}
			batch.Items[i] = r.processItem(ctx, batch.BatchID, source, i, raw)
			if n := finished.Add(1); n%100 == 0 {
				r.logger.Printf("[INGEST] Batch %s: %d/%d records processed", batch.BatchID, n, len(records))
			}
			return nil
		})
	}
	_ = g.Wait()

	batch.Stats = summarize(batch.Items)
	batch.Stats.ProcessingTimeMs = time.Since(start).Milliseconds()

	runErr := ctx.Err()
	r.logger.Printf("[INGEST] Batch %s done: %d created, %d updated, %d failed, %d embeddings requested (%dms)",
		batch.BatchID, batch.Stats.Created, batch.Stats.Updated, batch.Stats.Failed,
		batch.Stats.EmbeddingRequested, batch.Stats.ProcessingTimeMs)

	if !r.opts.DryRun {
		data := events.IngestBatchCompletedData{
			TotalItems:         batch.Stats.Total,
			CreatedCount:       batch.Stats.Created,
			UpdatedCount:       batch.Stats.Updated,
			FailedCount:        batch.Stats.Failed,
			EmbeddingRequested: batch.Stats.EmbeddingRequested,
			ProcessingTimeMs:   batch.Stats.ProcessingTimeMs,
			Success:            runErr == nil,
		}
		if runErr != nil {
			data.Error = runErr.Error()
		}
		event, err := events.NewIngestBatchCompletedEvent(batch.BatchID, string(source),
			fmt.Sprintf("Ingested %d %s records: %d created, %d updated, %d failed",
				batch.Stats.Total, source, batch.Stats.Created, batch.Stats.Updated, batch.Stats.Failed),
			data)
		// The batch context may be cancelled; the completion record still goes in.
		r.storeEvent(context.WithoutCancel(ctx), event, err)
	}

	if runErr != nil {
		return batch, fmt.Errorf("ingest batch %s interrupted: %w", batch.BatchID, runErr)
	}
	return batch, nil
}

func (r *Runner) processItem(ctx context.Context, batchID string, source types.Source, index int, raw json.RawMessage) ItemResult {
	item := ItemResult{Index: index}

	payload, err := Normalize(source, raw)
	if err != nil {
		return r.fail(ctx, batchID, source, item, StageNormalize, err)
	}
	item.ExternalID = ExternalID(payload)

	if r.opts.DryRun {
		decision, err := r.engine.Evaluate(ctx, payload)
		if err != nil {
			item.Stage, item.Err = StageProcess, err
			return item
		}
		item.Action = decision.Action
		item.Tied = decision.Tied
		if decision.Match != nil {
			item.CandidateID = decision.Match.Candidate.ID
			item.MatchedOn = decision.Match.Reason
			item.Confidence = decision.Match.Confidence
		}
		return item
	}

	res, err := r.engine.ProcessCandidate(ctx, payload)
	if err != nil {
		return r.fail(ctx, batchID, source, item, StageProcess, err)
	}
	item.CandidateID = res.Candidate.ID
	item.Action = res.Action
	item.MatchedOn = res.MatchedOn
	item.Confidence = res.Confidence
	item.Tied = res.Tied

	severity := events.SeverityInfo
	message := fmt.Sprintf("Created candidate %s", res.Candidate.ID)
	if res.Action == deduplication.ActionUpdated {
		message = fmt.Sprintf("Merged into candidate %s (%s, %.2f)", res.Candidate.ID, res.MatchedOn, res.Confidence)
	}
	if res.Tied > 0 {
		severity = events.SeverityWarning
		message += fmt.Sprintf(", %d tied matches", res.Tied)
	}
	event, err := events.NewCandidateIngestEvent(res.Candidate.ID, batchID, string(source), severity, message,
		events.CandidateIngestData{
			Action:     string(res.Action),
			MatchedOn:  string(res.MatchedOn),
			Confidence: res.Confidence,
			PoolSize:   res.PoolSize,
			Tied:       res.Tied,
			ItemIndex:  index,
			ExternalID: item.ExternalID,
		})
	r.storeEvent(ctx, event, err)

	if reason := embeddingReason(res, payload); reason != "" {
		item.EmbeddingReason = reason
		r.requestEmbedding(ctx, batchID, source, res.Candidate, reason)
	}
	return item
}

// requestEmbedding marks the candidate pending and records the request.
// Failures are logged; the candidate write has already succeeded.
func (r *Runner) requestEmbedding(ctx context.Context, batchID string, source types.Source, c *types.Candidate, reason string) {
	if c.EmbeddingStatus != types.EmbeddingPending {
		if err := r.store.SetEmbeddingStatus(ctx, c.ID, types.EmbeddingPending); err != nil {
			r.logger.Printf("[INGEST] Warning: failed to mark %s embedding pending: %v", c.ID, err)
		}
	}
	event, err := events.NewEmbeddingRequestedEvent(c.ID, batchID, string(source), events.EmbeddingRequestedData{
		ContentHash: deduplication.ContentHash(EmbeddingText(c)),
		Reason:      reason,
	})
	r.storeEvent(ctx, event, err)
}

func (r *Runner) fail(ctx context.Context, batchID string, source types.Source, item ItemResult, stage string, cause error) ItemResult {
	item.Stage, item.Err = stage, cause
	r.logger.Printf("[INGEST] Record %d (%s) failed at %s: %v", item.Index, quoteID(item.ExternalID), stage, cause)

	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		return item
	}
	event, err := events.NewCandidateIngestFailedEvent(batchID, string(source),
		fmt.Sprintf("Record %d failed at %s", item.Index, stage),
		events.CandidateIngestFailedData{
			ItemIndex:  item.Index,
			ExternalID: item.ExternalID,
			Stage:      stage,
			Error:      cause.Error(),
		})
	r.storeEvent(ctx, event, err)
	return item
}

// storeEvent writes an audit event. The audit trail is best effort: a
// failure is logged and never fails the record.
func (r *Runner) storeEvent(ctx context.Context, event *events.IngestEvent, buildErr error) {
	if buildErr != nil {
		r.logger.Printf("[INGEST] Warning: failed to build event: %v", buildErr)
		return
	}
	if err := r.store.StoreIngestEvent(ctx, event); err != nil {
		r.logger.Printf("[INGEST] Warning: failed to store %s event: %v", event.Type, err)
	}
}

func summarize(items []ItemResult) BatchStats {
	stats := BatchStats{Total: len(items)}
	for _, item := range items {
		switch {
		case item.Failed():
			stats.Failed++
		case item.Action == deduplication.ActionCreated:
			stats.Created++
		case item.Action == deduplication.ActionUpdated:
			stats.Updated++
		}
		if item.EmbeddingReason != "" {
			stats.EmbeddingRequested++
		}
	}
	return stats
}
