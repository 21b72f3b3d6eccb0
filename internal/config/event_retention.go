package config

import (
	"fmt"
	"os"
	"strconv"
)

// EventRetentionConfig holds configuration for ingest audit event retention and cleanup
type EventRetentionConfig struct {
	// RetentionDays is the retention period for info and warning events (in days)
	// Events older than this are eligible for deletion
	// Default: 30, Range: 1-365
	RetentionDays int `yaml:"retention_days"`

	// RetentionCriticalDays is the retention period for error and critical events (in days)
	// Failed ingests are kept longer so bad source data can be traced
	// Must be >= RetentionDays
	// Default: 90, Range: 1-730
	RetentionCriticalDays int `yaml:"retention_critical_days"`

	// GlobalLimitEvents is the maximum total number of events to keep
	// Oldest info and warning events are deleted first once it is exceeded
	// Default: 100000, Range: 1000-1000000
	GlobalLimitEvents int `yaml:"global_limit_events"`

	// CleanupBatchSize is the number of events to delete per transaction
	// Larger batches = faster cleanup but longer locks
	// Default: 1000, Range: 100-10000
	CleanupBatchSize int `yaml:"cleanup_batch_size"`

	// CleanupEnabled controls whether `talent cleanup events` deletes anything
	// Default: true
	CleanupEnabled bool `yaml:"cleanup_enabled"`

	// CleanupVacuum controls whether to run VACUUM after cleanup (SQLite only)
	// VACUUM reclaims disk space but can lock the database
	// Default: false
	CleanupVacuum bool `yaml:"cleanup_vacuum"`
}

// DefaultEventRetentionConfig returns the default event retention configuration
//
// These defaults keep a month of ingest history, three months of failures,
// and cap the table at roughly 100k rows.
func DefaultEventRetentionConfig() EventRetentionConfig {
	return EventRetentionConfig{
		RetentionDays:         30,
		RetentionCriticalDays: 90,
		GlobalLimitEvents:     100000,
		CleanupBatchSize:      1000,
		CleanupEnabled:        true,
		CleanupVacuum:         false,
	}
}

// Validate checks if the configuration has valid values
func (c EventRetentionConfig) Validate() error {
	if c.RetentionDays < 1 || c.RetentionDays > 365 {
		return fmt.Errorf("retention_days must be between 1 and 365 (got %d)", c.RetentionDays)
	}

	if c.RetentionCriticalDays < 1 || c.RetentionCriticalDays > 730 {
		return fmt.Errorf("retention_critical_days must be between 1 and 730 (got %d)",
			c.RetentionCriticalDays)
	}
	if c.RetentionCriticalDays < c.RetentionDays {
		return fmt.Errorf("retention_critical_days (%d) must be >= retention_days (%d)",
			c.RetentionCriticalDays, c.RetentionDays)
	}

	if c.GlobalLimitEvents < 1000 {
		return fmt.Errorf("global_limit_events must be at least 1000 (got %d)",
			c.GlobalLimitEvents)
	}
	if c.GlobalLimitEvents > 1000000 {
		return fmt.Errorf("global_limit_events too large (got %d, max 1000000)",
			c.GlobalLimitEvents)
	}

	if c.CleanupBatchSize < 100 {
		return fmt.Errorf("cleanup_batch_size must be at least 100 (got %d)",
			c.CleanupBatchSize)
	}
	if c.CleanupBatchSize > 10000 {
		return fmt.Errorf("cleanup_batch_size too large (got %d, max 10000)",
			c.CleanupBatchSize)
	}

	return nil
}

// String returns a human-readable representation of the config
func (c EventRetentionConfig) String() string {
	return fmt.Sprintf(
		"EventRetentionConfig{RetentionDays: %d, RetentionCriticalDays: %d, "+
			"GlobalLimit: %d, BatchSize: %d, Enabled: %t, Vacuum: %t}",
		c.RetentionDays, c.RetentionCriticalDays, c.GlobalLimitEvents,
		c.CleanupBatchSize, c.CleanupEnabled, c.CleanupVacuum,
	)
}

// EventRetentionConfigFromEnv creates an EventRetentionConfig from environment variables,
// falling back to defaults
//
// Environment variables:
//   - TALENT_EVENT_RETENTION_DAYS: Retention period for info/warning events in days (default: 30)
//   - TALENT_EVENT_RETENTION_CRITICAL_DAYS: Retention period for error/critical events in days (default: 90)
//   - TALENT_EVENT_GLOBAL_LIMIT: Maximum total events (default: 100000)
//   - TALENT_EVENT_CLEANUP_BATCH_SIZE: Events to delete per transaction (default: 1000)
//   - TALENT_EVENT_CLEANUP_ENABLED: Enable cleanup (default: true)
//   - TALENT_EVENT_CLEANUP_VACUUM: Run VACUUM after cleanup (default: false)
//
// Returns an error if any environment variable has an invalid value.
func EventRetentionConfigFromEnv() (EventRetentionConfig, error) {
	cfg := DefaultEventRetentionConfig()
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// applyEnv overlays TALENT_EVENT_* variables and validates the result
func (c *EventRetentionConfig) applyEnv() error {
	if err := parseEnvInt("TALENT_EVENT_RETENTION_DAYS", &c.RetentionDays); err != nil {
		return err
	}
	if err := parseEnvInt("TALENT_EVENT_RETENTION_CRITICAL_DAYS", &c.RetentionCriticalDays); err != nil {
		return err
	}
	if err := parseEnvInt("TALENT_EVENT_GLOBAL_LIMIT", &c.GlobalLimitEvents); err != nil {
		return err
	}
	if err := parseEnvInt("TALENT_EVENT_CLEANUP_BATCH_SIZE", &c.CleanupBatchSize); err != nil {
		return err
	}
	if err := parseEnvBool("TALENT_EVENT_CLEANUP_ENABLED", &c.CleanupEnabled); err != nil {
		return err
	}
	if err := parseEnvBool("TALENT_EVENT_CLEANUP_VACUUM", &c.CleanupVacuum); err != nil {
		return err
	}

	if err := c.Validate(); err != nil {
		return fmt.Errorf("invalid event retention configuration from environment: %w", err)
	}
	return nil
}

// parseEnvInt parses an int from an environment variable
func parseEnvInt(key string, dest *int) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvFloat parses a float64 from an environment variable
func parseEnvFloat(key string, dest *float64) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvBool parses a bool from an environment variable
func parseEnvBool(key string, dest *bool) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	*dest = parsed
	return nil
}

// parseEnvString parses a string from an environment variable
func parseEnvString(key string, dest *string) error {
	value := os.Getenv(key)
	if value == "" {
		return nil // Use default
	}
	*dest = value
	return nil
}
