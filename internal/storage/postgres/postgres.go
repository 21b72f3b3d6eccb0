package postgres

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/talentdb/talent/internal/storage/migrations"
	"github.com/talentdb/talent/internal/storage/storeerr"
)

// PostgresStorage implements the Storage interface using PostgreSQL
type PostgresStorage struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// Config holds PostgreSQL connection configuration
type Config struct {
	// DSN, when set, is used verbatim and the discrete fields are ignored
	DSN             string
	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	HealthCheck     time.Duration
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "talent",
		User:            "talent",
		SSLMode:         "prefer",
		MaxConns:        25,
		MinConns:        2,
		MaxConnLifetime: 1 * time.Hour,
		MaxConnIdleTime: 30 * time.Minute,
		HealthCheck:     1 * time.Minute,
	}
}

// ConfigFromEnv overlays TALENT_PG_* environment variables on the defaults
func ConfigFromEnv() (*Config, error) {
	cfg := DefaultConfig()
	cfg.DSN = os.Getenv("TALENT_PG_DSN")
	if v := os.Getenv("TALENT_PG_HOST"); v != "" {
		cfg.Host = v
	}
	if v := os.Getenv("TALENT_PG_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("invalid TALENT_PG_PORT: %w", err)
		}
		cfg.Port = port
	}
	if v := os.Getenv("TALENT_PG_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("TALENT_PG_USER"); v != "" {
		cfg.User = v
	}
	if v := os.Getenv("TALENT_PG_PASSWORD"); v != "" {
		cfg.Password = v
	}
	if v := os.Getenv("TALENT_PG_SSLMODE"); v != "" {
		cfg.SSLMode = v
	}
	return cfg, nil
}

// ConnString renders the pgx connection string
func (c *Config) ConnString() string {
	if c.DSN != "" {
		return c.DSN
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// New creates a new PostgreSQL storage backend with connection pooling and
// applies pending schema migrations
func New(ctx context.Context, cfg *Config) (*PostgresStorage, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to parse connection string: %w", err))
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = cfg.MaxConns
	}
	poolConfig.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.HealthCheck > 0 {
		poolConfig.HealthCheckPeriod = cfg.HealthCheck
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to create connection pool: %w", err))
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to ping database: %w", err))
	}

	if err := migrations.NewManager(schemaMigrations...).ApplyPostgres(ctx, pool); err != nil {
		pool.Close()
		return nil, storeerr.Wrap("open", "", fmt.Errorf("failed to initialize schema: %w", err))
	}

	return &PostgresStorage{pool: pool, now: time.Now}, nil
}

// SetClock overrides the time source used for timestamps (tests)
func (s *PostgresStorage) SetClock(now func() time.Time) {
	s.now = now
}

// GetConfig gets a configuration value from the config table
func (s *PostgresStorage) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := s.pool.QueryRow(ctx, `SELECT value FROM config WHERE key = $1`, key).Scan(&value)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", storeerr.Wrap("get_config", key, err)
	}
	return value, nil
}

// SetConfig sets a configuration value in the config table
func (s *PostgresStorage) SetConfig(ctx context.Context, key, value string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO config (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value
	`, key, value)
	return storeerr.Wrap("set_config", key, err)
}

// Close closes the connection pool and releases all resources
func (s *PostgresStorage) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}
