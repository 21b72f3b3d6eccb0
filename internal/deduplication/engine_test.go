package deduplication

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/talentdb/talent/internal/storage"
	"github.com/talentdb/talent/internal/storage/memory"
	"github.com/talentdb/talent/internal/types"
)

var testEpoch = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestEngine(t *testing.T, store storage.CandidateStore, modify ...func(*Config)) *Engine {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Quiet = true
	for _, m := range modify {
		m(&cfg)
	}
	e, err := NewEngine(store, cfg)
	require.NoError(t, err)
	e.SetClock(func() time.Time { return testEpoch.Add(time.Hour) })
	return e
}

func seed(t *testing.T, s *memory.MemoryStorage, cands ...*types.Candidate) {
	t.Helper()
	for _, c := range cands {
		require.NoError(t, s.Seed(c))
	}
}

func TestNewEngine(t *testing.T) {
	_, err := NewEngine(nil, DefaultConfig())
	assert.Error(t, err)

	bad := DefaultConfig()
	bad.NameSimilarityThreshold = 2
	_, err = NewEngine(memory.New(), bad)
	assert.Error(t, err)

	e, err := NewEngine(memory.New(), DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), e.Config())
}

func TestProcessCandidateNilPayload(t *testing.T) {
	e := newTestEngine(t, memory.New())
	_, err := e.ProcessCandidate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilPayload)

	_, err = e.Evaluate(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNilPayload)
}

func TestProcessCandidateCreatesWhenPoolEmpty(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := newTestEngine(t, store)

	result, err := e.ProcessCandidate(ctx, &types.CandidatePayload{
		FullName: sp("Ann Lee"),
		Email:    sp("a@x.com"),
	})
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.Equal(t, ActionCreated, result.Action)
	assert.Empty(t, result.MatchedOn)
	assert.Zero(t, result.Confidence)
	assert.Nil(t, result.Previous)
	assert.Zero(t, result.PoolSize)
	assert.Equal(t, 1, result.Attempts)
	assert.NotEmpty(t, result.Candidate.ID)
	assert.Equal(t, "Ann Lee", result.Candidate.FullName)
	assert.Equal(t, int64(1), result.Candidate.Version)

	count, err := store.CountCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessCandidateLinkedInBeatsOlderEmailMatch(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store,
		&types.Candidate{ID: "email-match", Email: "a@x.com", CreatedAt: testEpoch},
		&types.Candidate{ID: "linkedin-match", LinkedInURL: "li/a", CreatedAt: testEpoch.Add(time.Minute)},
	)
	e := newTestEngine(t, store)

	result, err := e.ProcessCandidate(ctx, &types.CandidatePayload{
		LinkedInURL: sp("li/a"),
		Email:       sp("a@x.com"),
	})
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.Equal(t, ActionUpdated, result.Action)
	assert.Equal(t, "linkedin-match", result.Candidate.ID)
	assert.Equal(t, ReasonLinkedInURL, result.MatchedOn)
	assert.Equal(t, 0.95, result.Confidence)
	assert.Equal(t, 2, result.PoolSize)
	assert.Zero(t, result.Tied)
}

func TestProcessCandidateMergeScenario(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store, &types.Candidate{
		ID:             "1",
		LinkedInURL:    "li/a",
		Email:          "a@x.com",
		FullName:       "Ann Lee",
		CurrentCompany: "Acme",
		Skills:         []string{"SQL"},
		CreatedAt:      testEpoch,
	})
	e := newTestEngine(t, store)

	result, err := e.ProcessCandidate(ctx, &types.CandidatePayload{
		LinkedInURL: sp("li/a"),
		Skills:      []string{"Go"},
		Phone:       sp("+1555"),
	})
	require.NoError(t, err)
	require.NoError(t, result.Validate())

	assert.Equal(t, ActionUpdated, result.Action)
	assert.Equal(t, ReasonLinkedInURL, result.MatchedOn)
	assert.Equal(t, "1", result.Candidate.ID)
	assert.Equal(t, []string{"SQL", "Go"}, result.Candidate.Skills)
	assert.Equal(t, "+1555", result.Candidate.Phone)
	assert.Equal(t, "a@x.com", result.Candidate.Email)
	assert.Equal(t, "Ann Lee", result.Candidate.FullName)
	assert.Equal(t, int64(2), result.Candidate.Version)
	require.NotNil(t, result.Candidate.LastSyncedAt)
	assert.Equal(t, testEpoch.Add(time.Hour), *result.Candidate.LastSyncedAt)

	require.NotNil(t, result.Previous)
	assert.Equal(t, []string{"SQL"}, result.Previous.Skills)
	assert.Empty(t, result.Previous.Phone)

	stored, err := store.GetCandidate(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, result.Candidate.Skills, stored.Skills)
}

func TestProcessCandidateIdempotent(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	e := newTestEngine(t, store)
	payload := &types.CandidatePayload{
		LinkedInURL: sp("li/b"),
		FullName:    sp("Bo Chen"),
		Skills:      []string{"Go", "Kafka"},
	}

	first, err := e.ProcessCandidate(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, ActionCreated, first.Action)

	second, err := e.ProcessCandidate(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, ActionUpdated, second.Action)

	third, err := e.ProcessCandidate(ctx, payload)
	require.NoError(t, err)

	assert.Equal(t, first.Candidate.ID, third.Candidate.ID)
	assert.Equal(t, second.Candidate.Skills, third.Candidate.Skills)
	assert.Equal(t, second.Candidate.FullName, third.Candidate.FullName)
	assert.Equal(t, []string{"Go", "Kafka"}, third.Candidate.Skills)

	count, err := store.CountCandidates(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestProcessCandidateTieGoesToOldest(t *testing.T) {
	ctx := context.Background()

	t.Run("by created_at", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			&types.Candidate{ID: "b-newer", Email: "a@x.com", CreatedAt: testEpoch.Add(time.Hour)},
			&types.Candidate{ID: "z-older", Email: "a@x.com", CreatedAt: testEpoch},
			&types.Candidate{ID: "a-newest", Email: "a@x.com", CreatedAt: testEpoch.Add(2 * time.Hour)},
		)
		result, err := newTestEngine(t, store).ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com")})
		require.NoError(t, err)
		require.NoError(t, result.Validate())
		assert.Equal(t, "z-older", result.Candidate.ID)
		assert.Equal(t, 2, result.Tied)
		assert.Equal(t, 3, result.PoolSize)
	})

	t.Run("by id when created_at is equal", func(t *testing.T) {
		store := memory.New()
		seed(t, store,
			&types.Candidate{ID: "b", Phone: "+1555", CreatedAt: testEpoch},
			&types.Candidate{ID: "a", Phone: "+1555", CreatedAt: testEpoch},
		)
		result, err := newTestEngine(t, store).ProcessCandidate(ctx, &types.CandidatePayload{Phone: sp("+1555")})
		require.NoError(t, err)
		assert.Equal(t, "a", result.Candidate.ID)
		assert.Equal(t, 1, result.Tied)
	})
}

func TestProcessCandidateZeroConfidence(t *testing.T) {
	ctx := context.Background()
	existing := &types.Candidate{ID: "ann", FullName: "Ann Lee", CurrentCompany: "Acme", CreatedAt: testEpoch}
	payload := &types.CandidatePayload{FullName: sp("Ann Lee"), CurrentCompany: sp("Acme"), Headline: sp("Engineer")}
	// The lookup finds the exact name+company pair but an impossible
	// threshold keeps the scoring rule from firing.
	strict := func(c *Config) { c.NameSimilarityThreshold = 1.0 }

	t.Run("creates by default", func(t *testing.T) {
		store := memory.New()
		seed(t, store, existing)
		e := newTestEngine(t, store, strict)

		decision, err := e.Evaluate(ctx, payload)
		require.NoError(t, err)
		assert.Equal(t, ActionCreated, decision.Action)
		assert.Nil(t, decision.Match)
		require.Len(t, decision.Ranked, 1)
		assert.Equal(t, ReasonNoMatch, decision.Ranked[0].Reason)

		result, err := e.ProcessCandidate(ctx, payload)
		require.NoError(t, err)
		require.NoError(t, result.Validate())
		assert.Equal(t, ActionCreated, result.Action)
		assert.NotEqual(t, "ann", result.Candidate.ID)
		assert.Equal(t, 1, result.PoolSize)
	})

	t.Run("merges when configured", func(t *testing.T) {
		store := memory.New()
		seed(t, store, existing)
		e := newTestEngine(t, store, strict, func(c *Config) { c.MergeOnZeroConfidence = true })

		result, err := e.ProcessCandidate(ctx, payload)
		require.NoError(t, err)
		require.NoError(t, result.Validate())
		assert.Equal(t, ActionUpdated, result.Action)
		assert.Equal(t, "ann", result.Candidate.ID)
		assert.Equal(t, ReasonNoMatch, result.MatchedOn)
		assert.Zero(t, result.Confidence)
		assert.Equal(t, "Engineer", result.Candidate.Headline)
	})
}

func TestProcessCandidateNameCompanyViaPhoneLookup(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store, &types.Candidate{ID: "js", FullName: "John Smith", CurrentCompany: "Acme", Phone: "+1555", CreatedAt: testEpoch})
	e := newTestEngine(t, store)

	result, err := e.ProcessCandidate(ctx, &types.CandidatePayload{
		FullName:       sp("Jon Smith"),
		CurrentCompany: sp("Acme"),
		Phone:          sp("+1555"),
	})
	require.NoError(t, err)
	assert.Equal(t, ReasonNameCompany, result.MatchedOn)
	assert.Equal(t, 0.75, result.Confidence)
	assert.Equal(t, "Jon Smith", result.Candidate.FullName)
}

// racingStore wraps a memory store and lets a test interfere with writes.
type racingStore struct {
	*memory.MemoryStorage

	mu        sync.Mutex
	updates   int
	beforeUpd func(ctx context.Context, n int, id string)
	findErr   error
	createErr error
}

func (s *racingStore) UpdateCandidate(ctx context.Context, id string, u *types.CandidateUpdate) (*types.Candidate, error) {
	s.mu.Lock()
	s.updates++
	n := s.updates
	s.mu.Unlock()
	if s.beforeUpd != nil {
		s.beforeUpd(ctx, n, id)
	}
	return s.MemoryStorage.UpdateCandidate(ctx, id, u)
}

func (s *racingStore) FindCandidatesMatchingAny(ctx context.Context, p *types.CandidatePayload) ([]*types.Candidate, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	return s.MemoryStorage.FindCandidatesMatchingAny(ctx, p)
}

func (s *racingStore) CreateCandidate(ctx context.Context, p *types.CandidatePayload) (*types.Candidate, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	return s.MemoryStorage.CreateCandidate(ctx, p)
}

func TestProcessCandidateRetriesVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryStorage: memory.New()}
	seed(t, store.MemoryStorage, &types.Candidate{ID: "1", Email: "a@x.com", Skills: []string{"SQL"}, CreatedAt: testEpoch})

	// A concurrent writer adds a skill just before the first merge lands
	store.beforeUpd = func(ctx context.Context, n int, id string) {
		if n == 1 {
			_, err := store.MemoryStorage.UpdateCandidate(ctx, id, &types.CandidateUpdate{Skills: []string{"SQL", "Rust"}})
			require.NoError(t, err)
		}
	}
	e := newTestEngine(t, store)

	result, err := e.ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com"), Skills: []string{"Go"}})
	require.NoError(t, err)
	assert.Equal(t, 2, result.Attempts)
	// Neither write is lost
	assert.Equal(t, []string{"SQL", "Rust", "Go"}, result.Candidate.Skills)
	assert.Equal(t, int64(3), result.Candidate.Version)
}

func TestProcessCandidateGivesUpAfterMaxConflictRetries(t *testing.T) {
	ctx := context.Background()
	store := &racingStore{MemoryStorage: memory.New()}
	seed(t, store.MemoryStorage, &types.Candidate{ID: "1", Email: "a@x.com", CreatedAt: testEpoch})

	store.beforeUpd = func(ctx context.Context, n int, id string) {
		_, err := store.MemoryStorage.UpdateCandidate(ctx, id, &types.CandidateUpdate{Headline: sp("racer")})
		require.NoError(t, err)
	}
	e := newTestEngine(t, store, func(c *Config) { c.MaxConflictRetries = 1 })

	_, err := e.ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com"), Headline: sp("mine")})
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrVersionConflict)
	assert.ErrorIs(t, err, storage.ErrStorage)
	assert.Equal(t, 2, store.updates)
}

func TestProcessCandidatePropagatesStoreErrors(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("connection reset")

	t.Run("lookup failure", func(t *testing.T) {
		store := &racingStore{MemoryStorage: memory.New(), findErr: &storage.Error{Op: "find", Err: boom}}
		_, err := newTestEngine(t, store).ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com")})
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrStorage)
		assert.ErrorIs(t, err, boom)
		var se *storage.Error
		require.ErrorAs(t, err, &se)
		assert.Equal(t, "find", se.Op)
	})

	t.Run("create failure", func(t *testing.T) {
		store := &racingStore{MemoryStorage: memory.New(), createErr: &storage.Error{Op: "create", Err: boom}}
		_, err := newTestEngine(t, store).ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com")})
		assert.ErrorIs(t, err, storage.ErrStorage)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("update failure is not retried", func(t *testing.T) {
		store := &racingStore{MemoryStorage: memory.New()}
		seed(t, store.MemoryStorage, &types.Candidate{ID: "1", Email: "a@x.com", CreatedAt: testEpoch})
		store.beforeUpd = func(ctx context.Context, n int, id string) {
			require.NoError(t, store.Close())
		}

		_, err := newTestEngine(t, store).ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com")})
		require.Error(t, err)
		assert.ErrorIs(t, err, storage.ErrStorage)
		assert.NotErrorIs(t, err, storage.ErrVersionConflict)
		assert.Equal(t, 1, store.updates)
	})

	t.Run("invalid payload never reaches the store", func(t *testing.T) {
		bad := types.Source("fax")
		store := &racingStore{MemoryStorage: memory.New(), findErr: boom}
		_, err := newTestEngine(t, store).ProcessCandidate(ctx, &types.CandidatePayload{Source: &bad})
		require.Error(t, err)
		assert.NotErrorIs(t, err, boom)
	})
}

func TestProcessCandidateCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := newTestEngine(t, memory.New()).ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com")})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessCandidateConcurrentMergesKeepAllSkills(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	seed(t, store, &types.Candidate{ID: "1", Email: "a@x.com", CreatedAt: testEpoch})
	e := newTestEngine(t, store, func(c *Config) { c.MaxConflictRetries = 10 })

	skills := []string{"Go", "SQL", "Rust", "Kafka", "K8s"}
	var wg sync.WaitGroup
	for _, skill := range skills {
		wg.Add(1)
		go func(skill string) {
			defer wg.Done()
			_, err := e.ProcessCandidate(ctx, &types.CandidatePayload{Email: sp("a@x.com"), Skills: []string{skill}})
			assert.NoError(t, err)
		}(skill)
	}
	wg.Wait()

	got, err := store.GetCandidate(ctx, "1")
	require.NoError(t, err)
	assert.ElementsMatch(t, skills, got.Skills)
}

func TestResultValidate(t *testing.T) {
	c := &types.Candidate{ID: "1"}
	tests := []struct {
		name    string
		r       Result
		wantErr bool
	}{
		{"created", Result{Candidate: c, Action: ActionCreated}, false},
		{"updated", Result{Candidate: c, Action: ActionUpdated, MatchedOn: ReasonEmail, Confidence: 0.9, Previous: c, PoolSize: 1}, false},
		{"missing candidate", Result{Action: ActionCreated}, true},
		{"bad action", Result{Candidate: c, Action: "merged"}, true},
		{"created with reason", Result{Candidate: c, Action: ActionCreated, MatchedOn: ReasonEmail}, true},
		{"updated without previous", Result{Candidate: c, Action: ActionUpdated, MatchedOn: ReasonEmail, PoolSize: 1}, true},
		{"previous is another record", Result{Candidate: c, Action: ActionUpdated, MatchedOn: ReasonEmail, Previous: &types.Candidate{ID: "2"}, PoolSize: 1}, true},
		{"tied not below pool", Result{Candidate: c, Action: ActionUpdated, MatchedOn: ReasonEmail, Previous: c, PoolSize: 1, Tied: 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.r.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
