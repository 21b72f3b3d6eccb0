package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/talentdb/talent/internal/storage/migrations"
	"github.com/talentdb/talent/internal/storage/storeerr"
)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// New opens (creating if needed) the database at path and applies pending
// schema migrations. The special path ":memory:" opens a private in-memory
// database on a single connection.
func New(ctx context.Context, path string) (*SQLiteStorage, error) {
	memory := path == ":memory:"
	if !memory {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to create directory: %w", err))
		}
	}

	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to open database: %w", err))
	}
	if memory {
		// Every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to ping database: %w", err))
	}

	if err := migrations.NewManager(schemaMigrations...).ApplySQLite(ctx, db); err != nil {
		_ = db.Close()
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to initialize schema: %w", err))
	}

	return &SQLiteStorage{db: db, path: path, now: time.Now}, nil
}

// dsn builds the driver connection string. Write transactions start with
// BEGIN IMMEDIATE so concurrent writers queue on busy_timeout instead of
// failing on lock upgrade.
func dsn(path string) string {
	params := url.Values{}
	params.Add("_pragma", "busy_timeout(10000)")
	params.Add("_pragma", "foreign_keys(1)")
	params.Set("_txlock", "immediate")
	if path == ":memory:" {
		return "file::memory:?" + params.Encode()
	}
	params.Add("_pragma", "journal_mode(wal)")
	return "file:" + path + "?" + params.Encode()
}

// SetClock overrides the time source used for timestamps (tests)
func (s *SQLiteStorage) SetClock(now func() time.Time) {
	s.now = now
}

// Path returns the database path the store was opened with
func (s *SQLiteStorage) Path() string {
	return s.path
}

// SchemaVersion returns the highest applied schema migration
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	v, err := migrations.SQLiteVersion(ctx, s.db)
	if err != nil {
		return 0, storeerr.Wrap("schema_version", "", err)
	}
	return v, nil
}

// GetConfig gets a configuration value from the config table
func (s *SQLiteStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM config WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", storeerr.Wrap("get_config", key, err)
	}
	return value, nil
}

// SetConfig sets a configuration value in the config table
func (s *SQLiteStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value
	`, key, value)
	return storeerr.Wrap("set_config", key, err)
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	if err := s.db.Close(); err != nil {
		log.Printf("[STORE] warning: closing %s: %v", s.path, err)
		return storeerr.Wrap("close", "", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	return t, nil
}
