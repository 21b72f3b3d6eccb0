package deduplication

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/talentdb/talent/internal/storage"
	"github.com/talentdb/talent/internal/types"
)

// ErrNilPayload is returned when ProcessCandidate or Evaluate get a nil payload
var ErrNilPayload = errors.New("payload cannot be nil")

// Action is the outcome of processing one payload
type Action string

const (
	ActionCreated Action = "created"
	ActionUpdated Action = "updated"
)

// IsValid checks if the action value is valid
func (a Action) IsValid() bool {
	return a == ActionCreated || a == ActionUpdated
}

// Engine decides whether an incoming payload is a new person or an existing
// one, and creates or merges accordingly.
//
// An Engine holds only its config and store, so one instance can serve many
// goroutines. Calls are not serialized against each other: two concurrent
// payloads for the same new person can both create a record. Merges into an
// existing record are protected by the store's version compare-and-swap and
// re-run on conflict.
type Engine struct {
	store  storage.CandidateStore
	config Config
	now    func() time.Time
}

// NewEngine creates an engine backed by store.
//
// Returns an error if store is nil or config validation fails.
//
// Example:
//
//	engine, err := deduplication.NewEngine(store, deduplication.DefaultConfig())
//	if err != nil {
//	    return fmt.Errorf("failed to create engine: %w", err)
//	}
//	result, err := engine.ProcessCandidate(ctx, payload)
func NewEngine(store storage.CandidateStore, config Config) (*Engine, error) {
	if store == nil {
		return nil, fmt.Errorf("store cannot be nil")
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &Engine{
		store:  store,
		config: config,
		now:    time.Now,
	}, nil
}

// SetClock overrides the time source used for last_synced_at (tests)
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Config returns the engine's configuration
func (e *Engine) Config() Config {
	return e.config
}

// Decision is what the engine would do with a payload against the current
// store contents. Evaluate returns it without writing anything.
type Decision struct {
	// Action is created when no usable match exists, else updated
	Action Action `json:"action"`

	// Match is the winning pool entry; nil when Action is created
	Match *MatchResult `json:"match,omitempty"`

	// Ranked holds every pool entry's score, best first
	Ranked []MatchResult `json:"ranked"`

	// Tied is the number of other pool entries sharing the top score
	Tied int `json:"tied"`

	// PoolSize is the number of candidates the identity lookup returned
	PoolSize int `json:"pool_size"`
}

// Result is the outcome of ProcessCandidate
type Result struct {
	// Candidate is the record as persisted after create or merge
	Candidate *types.Candidate `json:"candidate"`

	// Action is created or updated
	Action Action `json:"action"`

	// MatchedOn is the winning reason code; empty when Action is created
	MatchedOn MatchReason `json:"matched_on,omitempty"`

	// Confidence of the winning match; 0 when Action is created
	Confidence float64 `json:"confidence"`

	// Previous is the record before the merge; nil when Action is created
	Previous *types.Candidate `json:"previous,omitempty"`

	// Tied is the number of other pool entries that shared the top score.
	// The oldest (created_at, id) entry always wins the tie.
	Tied int `json:"tied,omitempty"`

	// PoolSize is the number of candidates the identity lookup returned
	PoolSize int `json:"pool_size"`

	// Attempts is how many lookup-merge cycles ran (more than 1 after version conflicts)
	Attempts int `json:"attempts"`
}

// Validate checks if the result has consistent values
func (r *Result) Validate() error {
	if r.Candidate == nil {
		return fmt.Errorf("candidate is required")
	}
	if !r.Action.IsValid() {
		return fmt.Errorf("invalid action: %s", r.Action)
	}
	if r.Confidence < 0.0 || r.Confidence > 1.0 {
		return fmt.Errorf("confidence must be between 0.0 and 1.0 (got %.2f)", r.Confidence)
	}
	switch r.Action {
	case ActionCreated:
		if r.MatchedOn != "" {
			return fmt.Errorf("matched_on should not be set when action is created")
		}
		if r.Previous != nil {
			return fmt.Errorf("previous should not be set when action is created")
		}
	case ActionUpdated:
		if !r.MatchedOn.IsValid() {
			return fmt.Errorf("invalid matched_on: %q", r.MatchedOn)
		}
		if r.Previous == nil {
			return fmt.Errorf("previous must be set when action is updated")
		}
		if r.Previous.ID != r.Candidate.ID {
			return fmt.Errorf("previous id %s does not match candidate id %s", r.Previous.ID, r.Candidate.ID)
		}
		if r.PoolSize < 1 {
			return fmt.Errorf("pool_size must be positive when action is updated (got %d)", r.PoolSize)
		}
	}
	if r.Tied < 0 {
		return fmt.Errorf("tied cannot be negative (got %d)", r.Tied)
	}
	if r.PoolSize > 0 && r.Tied >= r.PoolSize {
		return fmt.Errorf("tied (%d) must be less than pool_size (%d)", r.Tied, r.PoolSize)
	}
	return nil
}

// Evaluate looks up the duplicate pool for payload and scores it. Nothing is
// written.
func (e *Engine) Evaluate(ctx context.Context, payload *types.CandidatePayload) (*Decision, error) {
	if payload == nil {
		return nil, ErrNilPayload
	}
	if err := payload.Validate(); err != nil {
		return nil, fmt.Errorf("invalid payload: %w", err)
	}

	pool, err := e.store.FindCandidatesMatchingAny(ctx, payload)
	if err != nil {
		return nil, fmt.Errorf("failed to find duplicate pool: %w", err)
	}
	// Stores already return this order; enforce it so tie-breaking never
	// depends on a backend.
	pool = types.DedupByID(pool)
	types.SortCandidates(pool)

	decision := &Decision{Action: ActionCreated, PoolSize: len(pool)}
	if len(pool) == 0 {
		return decision, nil
	}

	decision.Ranked = RankMatches(payload, pool, e.config)
	top := decision.Ranked[0]
	if top.Confidence == 0 && !e.config.MergeOnZeroConfidence {
		return decision, nil
	}

	decision.Action = ActionUpdated
	decision.Match = &top
	decision.Tied = countTied(decision.Ranked)
	return decision, nil
}

// ProcessCandidate creates a new candidate from payload, or merges it into the
// best existing match.
//
// Store errors are returned wrapped and can be inspected with errors.Is and
// errors.As. A merge that loses a version race is re-run from the lookup up
// to Config.MaxConflictRetries times; after that the ErrVersionConflict is
// returned.
func (e *Engine) ProcessCandidate(ctx context.Context, payload *types.CandidatePayload) (*Result, error) {
	if payload == nil {
		return nil, ErrNilPayload
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		decision, err := e.Evaluate(ctx, payload)
		if err != nil {
			return nil, err
		}

		if decision.Action == ActionCreated {
			created, err := e.store.CreateCandidate(ctx, payload)
			if err != nil {
				return nil, fmt.Errorf("failed to create candidate: %w", err)
			}
			return &Result{
				Candidate: created,
				Action:    ActionCreated,
				PoolSize:  decision.PoolSize,
				Attempts:  attempt,
			}, nil
		}

		match := decision.Match
		existing := match.Candidate
		if decision.Tied > 0 {
			e.logf("[DEDUP] Ambiguous match: %d other candidates tied with %s at %.2f (%s), keeping oldest",
				decision.Tied, existing.ID, match.Confidence, match.Reason)
		}

		update := MergeFields(existing, payload, e.now())
		merged, err := e.store.UpdateCandidate(ctx, existing.ID, update)
		if errors.Is(err, storage.ErrVersionConflict) && attempt <= e.config.MaxConflictRetries {
			e.logf("[DEDUP] Version conflict merging into %s (attempt %d/%d), retrying",
				existing.ID, attempt, e.config.MaxConflictRetries+1)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to merge into candidate %s: %w", existing.ID, err)
		}

		return &Result{
			Candidate:  merged,
			Action:     ActionUpdated,
			MatchedOn:  match.Reason,
			Confidence: match.Confidence,
			Previous:   existing.Clone(),
			Tied:       decision.Tied,
			PoolSize:   decision.PoolSize,
			Attempts:   attempt,
		}, nil
	}
}

func (e *Engine) logf(format string, args ...interface{}) {
	if e.config.Quiet {
		return
	}
	log.Printf(format, args...)
}
