package storage

import (
	"context"
	"fmt"

	"github.com/talentdb/talent/internal/events"
	"github.com/talentdb/talent/internal/storage/memory"
	"github.com/talentdb/talent/internal/storage/postgres"
	"github.com/talentdb/talent/internal/storage/sqlite"
	"github.com/talentdb/talent/internal/storage/storeerr"
	"github.com/talentdb/talent/internal/types"
)

var (
	// ErrStorage matches every error a backend returns
	ErrStorage = storeerr.ErrStorage
	// ErrNotFound is returned when updating an unknown candidate
	ErrNotFound = storeerr.ErrNotFound
	// ErrVersionConflict is returned when a compare-and-swap update loses a race
	ErrVersionConflict = storeerr.ErrVersionConflict
)

// Error is the StorageError type returned by every backend
type Error = storeerr.Error

// CandidateStore is the persistence contract the deduplication engine needs.
type CandidateStore interface {
	// CreateCandidate inserts the payload and returns the persisted record
	// with a store-assigned id, timestamps and version 1.
	CreateCandidate(ctx context.Context, payload *types.CandidatePayload) (*types.Candidate, error)

	// GetCandidate returns nil, nil when no candidate has the id.
	GetCandidate(ctx context.Context, id string) (*types.Candidate, error)

	// UpdateCandidate applies a partial update, stamps updated_at and bumps
	// the version. With update.ExpectedVersion > 0 it fails with
	// ErrVersionConflict when the stored version differs.
	UpdateCandidate(ctx context.Context, id string, update *types.CandidateUpdate) (*types.Candidate, error)

	// FindCandidatesMatchingAny returns candidates sharing any exact identity
	// key with the payload (linkedin_url, email, the full_name+current_company
	// pair, apollo_id, loxo_id, phone), deduplicated by id, ordered by
	// created_at then id.
	FindCandidatesMatchingAny(ctx context.Context, payload *types.CandidatePayload) ([]*types.Candidate, error)
}

// Storage is the full backend surface used by the CLI and ingestion runner
type Storage interface {
	CandidateStore

	// Candidates
	ListCandidates(ctx context.Context, filter types.CandidateFilter) ([]*types.Candidate, error)
	CountCandidates(ctx context.Context) (int, error)
	SetEmbeddingStatus(ctx context.Context, id string, status types.EmbeddingStatus) error

	// Ingest audit events
	StoreIngestEvent(ctx context.Context, event *events.IngestEvent) error
	GetIngestEvents(ctx context.Context, filter events.EventFilter) ([]*events.IngestEvent, error)
	GetRecentIngestEvents(ctx context.Context, limit int) ([]*events.IngestEvent, error)
	CountIngestEvents(ctx context.Context) (int, error)

	// Event cleanup - retention policy enforcement
	CleanupEventsByAge(ctx context.Context, retentionDays, criticalRetentionDays, batchSize int) (int, error)
	CleanupEventsByGlobalLimit(ctx context.Context, globalLimit, batchSize int) (int, error)

	// Config
	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error

	// Lifecycle
	Close() error
}

// Compile-time checks that every backend implements Storage
var (
	_ Storage = (*sqlite.SQLiteStorage)(nil)
	_ Storage = (*postgres.PostgresStorage)(nil)
	_ Storage = (*memory.MemoryStorage)(nil)
)

// Backend names accepted in Config.Backend
const (
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config holds database configuration
type Config struct {
	// Backend selects the implementation: sqlite (default), postgres or memory
	Backend string

	// Path is the SQLite database file path
	// Default: ".talent/talent.db"
	// Special value ":memory:" creates an in-memory database (useful for tests)
	Path string

	// Postgres is used when Backend is "postgres"; nil means postgres.DefaultConfig()
	Postgres *postgres.Config
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Backend: BackendSQLite,
		Path:    ".talent/talent.db",
	}
}

// NewStorage opens the configured backend
func NewStorage(ctx context.Context, cfg *Config) (Storage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	switch cfg.Backend {
	case "", BackendSQLite:
		path := cfg.Path
		if path == "" {
			path = ".talent/talent.db"
		}
		return sqlite.New(ctx, path)
	case BackendPostgres:
		return postgres.New(ctx, cfg.Postgres)
	case BackendMemory:
		return memory.New(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q (expected %s, %s or %s)",
			cfg.Backend, BackendSQLite, BackendPostgres, BackendMemory)
	}
}
