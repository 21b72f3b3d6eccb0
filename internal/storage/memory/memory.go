// Package memory is an in-process storage backend. It backs tests and dry
// runs; nothing is persisted across process restarts.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/storage/storeerr"
	"github.com/talentdb/talent/internal/types"
)

// MemoryStorage keeps candidates and events in maps guarded by a mutex.
// Returned records are copies; callers cannot mutate stored state.
type MemoryStorage struct {
	mu         sync.RWMutex
	candidates map[string]*types.Candidate
	events     []*events.IngestEvent
	config     map[string]string
	now        func() time.Time
	closed     bool
}

// New creates an empty in-memory store
func New() *MemoryStorage {
	return &MemoryStorage{
		candidates: make(map[string]*types.Candidate),
		config:     make(map[string]string),
		now:        time.Now,
	}
}

// SetClock overrides the time source used for timestamps (tests)
func (s *MemoryStorage) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Seed inserts a fully formed candidate as-is, keeping its id, version and
// timestamps. Zero version becomes 1 and zero timestamps become now.
func (s *MemoryStorage) Seed(c *types.Candidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.ID == "" {
		return storeerr.Wrap("seed", "", fmt.Errorf("id is required"))
	}
	if _, exists := s.candidates[c.ID]; exists {
		return storeerr.Wrap("seed", c.ID, fmt.Errorf("duplicate id"))
	}
	stored := c.Clone()
	if stored.Version == 0 {
		stored.Version = 1
	}
	if stored.Source == "" {
		stored.Source = types.SourceManual
	}
	if stored.EmbeddingStatus == "" {
		stored.EmbeddingStatus = types.EmbeddingPending
	}
	now := s.now()
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	if stored.UpdatedAt.IsZero() {
		stored.UpdatedAt = stored.CreatedAt
	}
	s.candidates[stored.ID] = stored
	return nil
}

func (s *MemoryStorage) checkOpen(op string) error {
	if s.closed {
		return storeerr.Wrap(op, "", fmt.Errorf("store is closed"))
	}
	return nil
}

// CreateCandidate assigns an id and timestamps and stores the payload
func (s *MemoryStorage) CreateCandidate(ctx context.Context, payload *types.CandidatePayload) (*types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeerr.Wrap("create", "", err)
	}
	if payload == nil {
		return nil, storeerr.Wrap("create", "", fmt.Errorf("payload cannot be nil"))
	}
	if err := payload.Validate(); err != nil {
		return nil, storeerr.Wrap("create", "", fmt.Errorf("validation failed: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("create"); err != nil {
		return nil, err
	}

	c := types.NewCandidate(uuid.New().String(), payload, s.now())
	s.candidates[c.ID] = c
	return c.Clone(), nil
}

// GetCandidate returns nil, nil when the id is unknown
func (s *MemoryStorage) GetCandidate(ctx context.Context, id string) (*types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeerr.Wrap("get", id, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("get"); err != nil {
		return nil, err
	}
	c, ok := s.candidates[id]
	if !ok {
		return nil, nil
	}
	return c.Clone(), nil
}

// UpdateCandidate applies the update, bumps the version and stamps updated_at
func (s *MemoryStorage) UpdateCandidate(ctx context.Context, id string, update *types.CandidateUpdate) (*types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeerr.Wrap("update", id, err)
	}
	if update == nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("update cannot be nil"))
	}
	if err := update.Validate(); err != nil {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("validation failed: %w", err))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("update"); err != nil {
		return nil, err
	}

	c, ok := s.candidates[id]
	if !ok {
		return nil, storeerr.Wrap("update", id, storeerr.ErrNotFound)
	}
	if update.ExpectedVersion > 0 && c.Version != update.ExpectedVersion {
		return nil, storeerr.Wrap("update", id, fmt.Errorf("%w: expected %d, found %d",
			storeerr.ErrVersionConflict, update.ExpectedVersion, c.Version))
	}

	next := c.Clone()
	update.Apply(next)
	next.Version++
	next.UpdatedAt = s.now()
	s.candidates[id] = next
	return next.Clone(), nil
}

// FindCandidatesMatchingAny returns the union of exact identity lookups,
// deduplicated by id, oldest first
func (s *MemoryStorage) FindCandidatesMatchingAny(ctx context.Context, payload *types.CandidatePayload) ([]*types.Candidate, error) {
	if err := ctx.Err(); err != nil {
		return nil, storeerr.Wrap("find", "", err)
	}
	if payload == nil {
		return nil, storeerr.Wrap("find", "", fmt.Errorf("payload cannot be nil"))
	}
	keys := payload.IdentityKeys()
	if keys.IsEmpty() {
		return nil, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("find"); err != nil {
		return nil, err
	}

	var out []*types.Candidate
	for _, c := range s.candidates {
		if keys.Matches(c) {
			out = append(out, c.Clone())
		}
	}
	types.SortCandidates(out)
	return out, nil
}

// ListCandidates returns candidates matching the filter, newest first
func (s *MemoryStorage) ListCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("list"); err != nil {
		return nil, err
	}

	query := strings.ToLower(filter.Query)
	var out []*types.Candidate
	for _, c := range s.candidates {
		if filter.Source != nil && c.Source != *filter.Source {
			continue
		}
		if filter.EmbeddingStatus != nil && c.EmbeddingStatus != *filter.EmbeddingStatus {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(c.FullName), query) &&
			!strings.Contains(strings.ToLower(c.Email), query) &&
			!strings.Contains(strings.ToLower(c.CurrentCompany), query) {
			continue
		}
		out = append(out, c.Clone())
	}
	types.SortCandidates(out)
	// newest first
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// CountCandidates returns the number of stored candidates
func (s *MemoryStorage) CountCandidates(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("count"); err != nil {
		return 0, err
	}
	return len(s.candidates), nil
}

// SetEmbeddingStatus updates embedding_status without a version check
func (s *MemoryStorage) SetEmbeddingStatus(ctx context.Context, id string, status types.EmbeddingStatus) error {
	_, err := s.UpdateCandidate(ctx, id, &types.CandidateUpdate{EmbeddingStatus: &status})
	return err
}

// StoreIngestEvent appends an audit event
func (s *MemoryStorage) StoreIngestEvent(ctx context.Context, event *events.IngestEvent) error {
	if event == nil {
		return storeerr.Wrap("store_event", "", fmt.Errorf("event cannot be nil"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.checkOpen("store_event"); err != nil {
		return err
	}
	copied := *event
	s.events = append(s.events, &copied)
	return nil
}

// GetIngestEvents returns events matching the filter, most recent first
func (s *MemoryStorage) GetIngestEvents(ctx context.Context, filter events.EventFilter) ([]*events.IngestEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen("get_events"); err != nil {
		return nil, err
	}

	var out []*events.IngestEvent
	for _, e := range s.events {
		if filter.Matches(e) {
			copied := *e
			out = append(out, &copied)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// GetRecentIngestEvents returns the newest limit events
func (s *MemoryStorage) GetRecentIngestEvents(ctx context.Context, limit int) ([]*events.IngestEvent, error) {
	return s.GetIngestEvents(ctx, events.EventFilter{Limit: limit})
}

// CountIngestEvents returns the number of stored events
func (s *MemoryStorage) CountIngestEvents(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events), nil
}

// CleanupEventsByAge deletes regular events older than retentionDays and
// error/critical events older than criticalRetentionDays. batchSize is
// validated but otherwise ignored.
func (s *MemoryStorage) CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error) {
	if retentionDays < 0 || criticalRetentionDays < 0 {
		return 0, storeerr.Wrap("cleanup_age", "", fmt.Errorf("retention days cannot be negative"))
	}
	if batchSize < 1 {
		return 0, storeerr.Wrap("cleanup_age", "", fmt.Errorf("batch size must be at least 1"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	regularCutoff := now.AddDate(0, 0, -retentionDays)
	criticalCutoff := now.AddDate(0, 0, -criticalRetentionDays)

	kept := s.events[:0]
	deleted := 0
	for _, e := range s.events {
		cutoff := regularCutoff
		if e.Severity == events.SeverityError || e.Severity == events.SeverityCritical {
			cutoff = criticalCutoff
		}
		if e.Timestamp.Before(cutoff) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	s.events = kept
	return deleted, nil
}

// CleanupEventsByGlobalLimit deletes the oldest info and warning events until
// at most globalLimit remain. batchSize is validated but otherwise ignored.
func (s *MemoryStorage) CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error) {
	if globalLimit < 1 {
		return 0, storeerr.Wrap("cleanup_limit", "", fmt.Errorf("global limit must be at least 1"))
	}
	if batchSize < 1 {
		return 0, storeerr.Wrap("cleanup_limit", "", fmt.Errorf("batch size must be at least 1"))
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	excess := len(s.events) - globalLimit
	if excess <= 0 {
		return 0, nil
	}

	order := make([]int, len(s.events))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return s.events[order[a]].Timestamp.Before(s.events[order[b]].Timestamp)
	})

	drop := make(map[int]bool, excess)
	for _, idx := range order {
		if len(drop) == excess {
			break
		}
		if sev := s.events[idx].Severity; sev == events.SeverityError || sev == events.SeverityCritical {
			continue
		}
		drop[idx] = true
	}

	kept := make([]*events.IngestEvent, 0, len(s.events)-len(drop))
	for i, e := range s.events {
		if !drop[i] {
			kept = append(kept, e)
		}
	}
	s.events = kept
	return len(drop), nil
}

// GetConfig returns "" for unknown keys
func (s *MemoryStorage) GetConfig(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config[key], nil
}

// SetConfig stores a key/value pair
func (s *MemoryStorage) SetConfig(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[key] = value
	return nil
}

// Close marks the store closed; later calls fail with a storage error
func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
