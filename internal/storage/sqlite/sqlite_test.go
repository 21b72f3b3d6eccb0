package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/talentdb/talent/internal/storage/storeerr"
	"github.com/talentdb/talent/internal/types"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := New(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// steppingClock returns a clock that advances one second per call
func steppingClock(start time.Time) func() time.Time {
	var mu sync.Mutex
	next := start
	return func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		t := next
		next = next.Add(time.Second)
		return t
	}
}

func TestNewAppliesSchema(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	version, err := store.SchemaVersion(ctx)
	if err != nil {
		t.Fatalf("SchemaVersion failed: %v", err)
	}
	if version != len(schemaMigrations) {
		t.Errorf("expected schema version %d, got %d", len(schemaMigrations), version)
	}
}

func TestNewOnDiskReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "talent.db")

	store, err := New(ctx, path)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	created, err := store.CreateCandidate(ctx, &types.CandidatePayload{Email: types.StringPtr("ann@x.com")})
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	reopened, err := New(ctx, path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	got, err := reopened.GetCandidate(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetCandidate failed: %v", err)
	}
	if got == nil || got.Email != "ann@x.com" {
		t.Errorf("expected persisted candidate, got %+v", got)
	}
}

func TestCreateAndGetCandidate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(steppingClock(start))

	payload := &types.CandidatePayload{
		FullName:          types.StringPtr("Ann Lee"),
		Email:             types.StringPtr("ann@x.com"),
		CurrentCompany:    types.StringPtr("Acme"),
		Skills:            []string{"go", "sql"},
		EmploymentHistory: json.RawMessage(`[{"company":"Acme"}]`),
		ApolloRawData:     json.RawMessage(`{"id":"a1"}`),
		Source:            types.SourcePtr(types.SourceApollo),
	}

	created, err := store.CreateCandidate(ctx, payload)
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}
	if created.ID == "" {
		t.Fatal("expected a generated id")
	}
	if created.Version != 1 {
		t.Errorf("expected version 1, got %d", created.Version)
	}
	if created.EmbeddingStatus != types.EmbeddingPending {
		t.Errorf("expected pending embedding status, got %s", created.EmbeddingStatus)
	}
	if !created.CreatedAt.Equal(start) || !created.UpdatedAt.Equal(start) {
		t.Errorf("expected timestamps %v, got %v / %v", start, created.CreatedAt, created.UpdatedAt)
	}
	if created.LastSyncedAt == nil || !created.LastSyncedAt.Equal(start) {
		t.Errorf("expected last_synced_at %v, got %v", start, created.LastSyncedAt)
	}

	got, err := store.GetCandidate(ctx, created.ID)
	if err != nil {
		t.Fatalf("GetCandidate failed: %v", err)
	}
	if got.FullName != "Ann Lee" || got.CurrentCompany != "Acme" || got.Source != types.SourceApollo {
		t.Errorf("unexpected candidate: %+v", got)
	}
	if len(got.Skills) != 2 || got.Skills[0] != "go" || got.Skills[1] != "sql" {
		t.Errorf("expected skills [go sql], got %v", got.Skills)
	}
	if string(got.EmploymentHistory) != `[{"company":"Acme"}]` {
		t.Errorf("unexpected employment_history: %s", got.EmploymentHistory)
	}
	if got.LoxoRawData != nil {
		t.Errorf("expected absent loxo_raw_data, got %s", got.LoxoRawData)
	}
}

func TestGetCandidateMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetCandidate(context.Background(), "does-not-exist")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if got != nil {
		t.Errorf("expected nil candidate, got %+v", got)
	}
}

func TestCreateCandidateRejectsInvalidPayload(t *testing.T) {
	store := newTestStore(t)
	bad := types.Source("linkedin")
	_, err := store.CreateCandidate(context.Background(), &types.CandidatePayload{Source: &bad})
	if err == nil {
		t.Fatal("expected validation error")
	}
	if !errors.Is(err, storeerr.ErrStorage) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestUpdateCandidate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	start := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	store.SetClock(steppingClock(start))

	created, err := store.CreateCandidate(ctx, &types.CandidatePayload{
		FullName: types.StringPtr("Ann Lee"),
		Skills:   []string{"go"},
	})
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}

	synced := start.Add(time.Hour)
	updated, err := store.UpdateCandidate(ctx, created.ID, &types.CandidateUpdate{
		Headline:          types.StringPtr("Staff Engineer"),
		Skills:            []string{"go", "rust"},
		EmploymentHistory: json.RawMessage(`[1,2]`),
		LastSyncedAt:      &synced,
		ExpectedVersion:   1,
	})
	if err != nil {
		t.Fatalf("UpdateCandidate failed: %v", err)
	}
	if updated.Version != 2 {
		t.Errorf("expected version 2, got %d", updated.Version)
	}
	if !updated.UpdatedAt.After(created.UpdatedAt) {
		t.Errorf("expected updated_at to advance: %v -> %v", created.UpdatedAt, updated.UpdatedAt)
	}
	if updated.Headline != "Staff Engineer" || updated.FullName != "Ann Lee" {
		t.Errorf("unexpected candidate after update: %+v", updated)
	}
	if len(updated.Skills) != 2 || updated.Skills[1] != "rust" {
		t.Errorf("expected skills [go rust], got %v", updated.Skills)
	}
	if updated.LastSyncedAt == nil || !updated.LastSyncedAt.Equal(synced) {
		t.Errorf("expected last_synced_at %v, got %v", synced, updated.LastSyncedAt)
	}
	if !updated.CreatedAt.Equal(created.CreatedAt) {
		t.Errorf("created_at changed: %v -> %v", created.CreatedAt, updated.CreatedAt)
	}
}

func TestUpdateCandidateVersionConflict(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	created, err := store.CreateCandidate(ctx, &types.CandidatePayload{Email: types.StringPtr("a@x.com")})
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}
	if _, err := store.UpdateCandidate(ctx, created.ID, &types.CandidateUpdate{
		Headline: types.StringPtr("first"), ExpectedVersion: 1,
	}); err != nil {
		t.Fatalf("first update failed: %v", err)
	}

	_, err = store.UpdateCandidate(ctx, created.ID, &types.CandidateUpdate{
		Headline: types.StringPtr("stale"), ExpectedVersion: 1,
	})
	if !errors.Is(err, storeerr.ErrVersionConflict) {
		t.Fatalf("expected version conflict, got %v", err)
	}

	got, _ := store.GetCandidate(ctx, created.ID)
	if got.Headline != "first" || got.Version != 2 {
		t.Errorf("stale update must not apply: %+v", got)
	}
}

func TestUpdateCandidateNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.UpdateCandidate(context.Background(), "missing", &types.CandidateUpdate{
		Headline: types.StringPtr("x"),
	})
	if !errors.Is(err, storeerr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if !errors.Is(err, storeerr.ErrStorage) {
		t.Errorf("expected storage error, got %v", err)
	}
}

func TestFindCandidatesMatchingAny(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.SetClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	mk := func(p *types.CandidatePayload) *types.Candidate {
		c, err := store.CreateCandidate(ctx, p)
		if err != nil {
			t.Fatalf("CreateCandidate failed: %v", err)
		}
		return c
	}
	byEmail := mk(&types.CandidatePayload{Email: types.StringPtr("ann@x.com")})
	byLinkedIn := mk(&types.CandidatePayload{LinkedInURL: types.StringPtr("linkedin.com/in/ann")})
	byNameCompany := mk(&types.CandidatePayload{FullName: types.StringPtr("Ann Lee"), CurrentCompany: types.StringPtr("Acme")})
	byApollo := mk(&types.CandidatePayload{ApolloID: types.StringPtr("ap-1")})
	mk(&types.CandidatePayload{FullName: types.StringPtr("Ann Lee"), CurrentCompany: types.StringPtr("Other")})
	mk(&types.CandidatePayload{Email: types.StringPtr("bob@x.com")})

	found, err := store.FindCandidatesMatchingAny(ctx, &types.CandidatePayload{
		Email:          types.StringPtr("ann@x.com"),
		LinkedInURL:    types.StringPtr("linkedin.com/in/ann"),
		FullName:       types.StringPtr("Ann Lee"),
		CurrentCompany: types.StringPtr("Acme"),
		ApolloID:       types.StringPtr("ap-1"),
	})
	if err != nil {
		t.Fatalf("FindCandidatesMatchingAny failed: %v", err)
	}

	want := []string{byEmail.ID, byLinkedIn.ID, byNameCompany.ID, byApollo.ID}
	if len(found) != len(want) {
		t.Fatalf("expected %d candidates, got %d", len(want), len(found))
	}
	for i, id := range want {
		if found[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, found[i].ID)
		}
	}
}

func TestFindCandidatesMatchingAnyNameWithoutCompany(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	if _, err := store.CreateCandidate(ctx, &types.CandidatePayload{
		FullName: types.StringPtr("Ann Lee"), CurrentCompany: types.StringPtr("Acme"),
	}); err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}

	found, err := store.FindCandidatesMatchingAny(ctx, &types.CandidatePayload{FullName: types.StringPtr("Ann Lee")})
	if err != nil {
		t.Fatalf("FindCandidatesMatchingAny failed: %v", err)
	}
	if len(found) != 0 {
		t.Errorf("a name alone must not match, got %d candidates", len(found))
	}
}

func TestFindCandidatesMatchingAnyDedupsByID(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c, err := store.CreateCandidate(ctx, &types.CandidatePayload{
		Email:       types.StringPtr("ann@x.com"),
		LinkedInURL: types.StringPtr("linkedin.com/in/ann"),
	})
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}

	found, err := store.FindCandidatesMatchingAny(ctx, &types.CandidatePayload{
		Email:       types.StringPtr("ann@x.com"),
		LinkedInURL: types.StringPtr("linkedin.com/in/ann"),
	})
	if err != nil {
		t.Fatalf("FindCandidatesMatchingAny failed: %v", err)
	}
	if len(found) != 1 || found[0].ID != c.ID {
		t.Errorf("expected exactly the one candidate, got %d", len(found))
	}
}

func TestListAndCountCandidates(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	store.SetClock(steppingClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	for _, p := range []*types.CandidatePayload{
		{FullName: types.StringPtr("Ann Lee"), Source: types.SourcePtr(types.SourceApollo)},
		{FullName: types.StringPtr("Bob Stone"), Source: types.SourcePtr(types.SourceLoxo)},
		{FullName: types.StringPtr("Annika Berg"), Source: types.SourcePtr(types.SourceApollo)},
	} {
		if _, err := store.CreateCandidate(ctx, p); err != nil {
			t.Fatalf("CreateCandidate failed: %v", err)
		}
	}

	n, err := store.CountCandidates(ctx)
	if err != nil {
		t.Fatalf("CountCandidates failed: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 candidates, got %d", n)
	}

	apollo := types.SourceApollo
	list, err := store.ListCandidates(ctx, types.CandidateFilter{Source: &apollo})
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(list) != 2 || list[0].FullName != "Annika Berg" {
		t.Errorf("expected newest apollo candidate first, got %+v", list)
	}

	list, err = store.ListCandidates(ctx, types.CandidateFilter{Query: "ann", Limit: 1})
	if err != nil {
		t.Fatalf("ListCandidates failed: %v", err)
	}
	if len(list) != 1 {
		t.Errorf("expected limit to apply, got %d", len(list))
	}
}

func TestSetEmbeddingStatus(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	c, err := store.CreateCandidate(ctx, &types.CandidatePayload{Email: types.StringPtr("a@x.com")})
	if err != nil {
		t.Fatalf("CreateCandidate failed: %v", err)
	}
	if err := store.SetEmbeddingStatus(ctx, c.ID, types.EmbeddingCompleted); err != nil {
		t.Fatalf("SetEmbeddingStatus failed: %v", err)
	}
	got, _ := store.GetCandidate(ctx, c.ID)
	if got.EmbeddingStatus != types.EmbeddingCompleted {
		t.Errorf("expected completed, got %s", got.EmbeddingStatus)
	}
}

func TestConfigMethods(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	value, err := store.GetConfig(ctx, "nonexistent")
	if err != nil {
		t.Errorf("GetConfig on non-existent key should not error: %v", err)
	}
	if value != "" {
		t.Errorf("expected empty string for non-existent key, got %q", value)
	}

	if err := store.SetConfig(ctx, "test_key", "test_value"); err != nil {
		t.Fatalf("SetConfig failed: %v", err)
	}
	if err := store.SetConfig(ctx, "test_key", "new_value"); err != nil {
		t.Fatalf("SetConfig update failed: %v", err)
	}
	value, err = store.GetConfig(ctx, "test_key")
	if err != nil {
		t.Fatalf("GetConfig failed: %v", err)
	}
	if value != "new_value" {
		t.Errorf("expected 'new_value', got %q", value)
	}
}
