// Package config loads the talent project configuration: .talent/config.yaml
// overlaid with TALENT_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/talentdb/talent/internal/deduplication"
	"github.com/talentdb/talent/internal/storage"
	"github.com/talentdb/talent/internal/storage/postgres"
	"gopkg.in/yaml.v3"
)

// FileName is the config file name inside the project directory
const FileName = "config.yaml"

// Config is the full project configuration
type Config struct {
	Storage StorageConfig        `yaml:"storage"`
	Ingest  IngestConfig         `yaml:"ingest"`
	Dedup   deduplication.Config `yaml:"dedup"`
	Events  EventRetentionConfig `yaml:"events"`
}

// StorageConfig selects and configures the candidate store
type StorageConfig struct {
	// Backend is sqlite, postgres or memory
	// Default: sqlite
	Backend string `yaml:"backend"`

	// Path is the SQLite database file. Empty means database discovery.
	Path string `yaml:"path,omitempty"`

	Postgres PostgresConfig `yaml:"postgres,omitempty"`
}

// PostgresConfig is the YAML form of postgres.Config. Zero values fall back
// to postgres.DefaultConfig().
type PostgresConfig struct {
	DSN      string `yaml:"dsn,omitempty"`
	Host     string `yaml:"host,omitempty"`
	Port     int    `yaml:"port,omitempty"`
	Database string `yaml:"database,omitempty"`
	User     string `yaml:"user,omitempty"`
	Password string `yaml:"password,omitempty"`
	SSLMode  string `yaml:"sslmode,omitempty"`
	MaxConns int    `yaml:"max_conns,omitempty"`
}

// IngestConfig controls batch ingestion throughput
type IngestConfig struct {
	// Concurrency is the number of payloads processed at once
	// Default: 4, Range: 1-64
	Concurrency int `yaml:"concurrency"`

	// RatePerSecond caps payloads started per second; 0 disables the limit
	// Default: 0
	RatePerSecond float64 `yaml:"rate_per_second"`

	// Burst is the limiter bucket size; 0 means max(1, Concurrency)
	// Default: 0
	Burst int `yaml:"burst,omitempty"`
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		Storage: StorageConfig{Backend: storage.BackendSQLite},
		Ingest:  IngestConfig{Concurrency: 4},
		Dedup:   deduplication.DefaultConfig(),
		Events:  DefaultEventRetentionConfig(),
	}
}

// Validate checks if the configuration has valid values
func (c *Config) Validate() error {
	switch c.Storage.Backend {
	case storage.BackendSQLite, storage.BackendPostgres, storage.BackendMemory:
	default:
		return fmt.Errorf("storage.backend must be %s, %s or %s (got %q)",
			storage.BackendSQLite, storage.BackendPostgres, storage.BackendMemory, c.Storage.Backend)
	}
	if c.Storage.Postgres.Port < 0 || c.Storage.Postgres.Port > 65535 {
		return fmt.Errorf("storage.postgres.port out of range (got %d)", c.Storage.Postgres.Port)
	}
	if c.Ingest.Concurrency < 1 || c.Ingest.Concurrency > 64 {
		return fmt.Errorf("ingest.concurrency must be between 1 and 64 (got %d)", c.Ingest.Concurrency)
	}
	if c.Ingest.RatePerSecond < 0 {
		return fmt.Errorf("ingest.rate_per_second cannot be negative (got %.2f)", c.Ingest.RatePerSecond)
	}
	if c.Ingest.Burst < 0 {
		return fmt.Errorf("ingest.burst cannot be negative (got %d)", c.Ingest.Burst)
	}
	if err := c.Dedup.Validate(); err != nil {
		return fmt.Errorf("dedup: %w", err)
	}
	if err := c.Events.Validate(); err != nil {
		return fmt.Errorf("events: %w", err)
	}
	return nil
}

// Load reads a YAML config file on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("reading config file: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing YAML: %w", err)
		}
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config as YAML, creating the parent directory
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding YAML: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// String renders the effective config as YAML
func (c *Config) String() string {
	redacted := *c
	if redacted.Storage.Postgres.Password != "" {
		redacted.Storage.Postgres.Password = "********"
	}
	data, err := yaml.Marshal(&redacted)
	if err != nil {
		return fmt.Sprintf("<config: %v>", err)
	}
	return string(data)
}

// ApplyEnv overlays environment variables on the config
//
// Environment variables:
//   - TALENT_STORAGE_BACKEND: sqlite, postgres or memory
//   - TALENT_DB_PATH: SQLite database path
//   - TALENT_PG_DSN, TALENT_PG_HOST, TALENT_PG_PORT, TALENT_PG_DATABASE,
//     TALENT_PG_USER, TALENT_PG_PASSWORD, TALENT_PG_SSLMODE: Postgres connection
//   - TALENT_INGEST_CONCURRENCY, TALENT_INGEST_RATE, TALENT_INGEST_BURST: ingestion throughput
//   - TALENT_DEDUP_*: see deduplication.ConfigFromEnv
//   - TALENT_EVENT_*: see EventRetentionConfigFromEnv
func (c *Config) ApplyEnv() error {
	for key, dest := range map[string]*string{
		"TALENT_STORAGE_BACKEND": &c.Storage.Backend,
		"TALENT_DB_PATH":         &c.Storage.Path,
		"TALENT_PG_DSN":          &c.Storage.Postgres.DSN,
		"TALENT_PG_HOST":         &c.Storage.Postgres.Host,
		"TALENT_PG_DATABASE":     &c.Storage.Postgres.Database,
		"TALENT_PG_USER":         &c.Storage.Postgres.User,
		"TALENT_PG_PASSWORD":     &c.Storage.Postgres.Password,
		"TALENT_PG_SSLMODE":      &c.Storage.Postgres.SSLMode,
	} {
		if err := parseEnvString(key, dest); err != nil {
			return err
		}
	}
	if err := parseEnvInt("TALENT_PG_PORT", &c.Storage.Postgres.Port); err != nil {
		return err
	}
	if err := parseEnvInt("TALENT_INGEST_CONCURRENCY", &c.Ingest.Concurrency); err != nil {
		return err
	}
	if err := parseEnvFloat("TALENT_INGEST_RATE", &c.Ingest.RatePerSecond); err != nil {
		return err
	}
	if err := parseEnvInt("TALENT_INGEST_BURST", &c.Ingest.Burst); err != nil {
		return err
	}
	if err := deduplication.ApplyEnv(&c.Dedup); err != nil {
		return err
	}
	return c.Events.applyEnv()
}

// StorageOptions converts the storage section for storage.NewStorage
func (c *Config) StorageOptions() *storage.Config {
	out := &storage.Config{
		Backend: c.Storage.Backend,
		Path:    c.Storage.Path,
	}
	if c.Storage.Backend == storage.BackendPostgres {
		out.Postgres = c.Storage.Postgres.toPostgres()
	}
	return out
}

func (p PostgresConfig) toPostgres() *postgres.Config {
	cfg := postgres.DefaultConfig()
	cfg.DSN = p.DSN
	if p.Host != "" {
		cfg.Host = p.Host
	}
	if p.Port != 0 {
		cfg.Port = p.Port
	}
	if p.Database != "" {
		cfg.Database = p.Database
	}
	if p.User != "" {
		cfg.User = p.User
	}
	if p.Password != "" {
		cfg.Password = p.Password
	}
	if p.SSLMode != "" {
		cfg.SSLMode = p.SSLMode
	}
	if p.MaxConns > 0 {
		cfg.MaxConns = int32(p.MaxConns)
	}
	return cfg
}

// PathFor returns the config file path in the project directory that holds dbPath
func PathFor(dbPath string) string {
	root, err := storage.GetProjectRoot(dbPath)
	if err != nil {
		return filepath.Join(storage.ProjectDirName, FileName)
	}
	return filepath.Join(root, storage.ProjectDirName, FileName)
}
