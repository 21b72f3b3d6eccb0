package deduplication

import (
	"fmt"
	"os"
	"strconv"
)

// Config holds configuration for the deduplication engine
type Config struct {
	// NameSimilarityThreshold is the normalized name similarity a pair must
	// strictly exceed for the name+company rule to fire.
	// Default: 0.8
	NameSimilarityThreshold float64 `yaml:"name_similarity_threshold"`

	// MergeOnZeroConfidence controls what happens when the pool is non-empty
	// but no rule fired for any entry.
	// If false: the payload is treated as unmatched and a new record is created.
	// If true: the payload is merged into the first pool entry (legacy behavior).
	// Default: false
	MergeOnZeroConfidence bool `yaml:"merge_on_zero_confidence"`

	// MaxConflictRetries is how many times a merge that lost a version race is
	// re-run from the lookup step. Other store errors are never retried.
	// Default: 2 (total 3 attempts)
	MaxConflictRetries int `yaml:"max_conflict_retries"`

	// Quiet suppresses the engine's diagnostic log lines
	// Default: false
	Quiet bool `yaml:"quiet"`
}

// DefaultConfig returns the default deduplication configuration
func DefaultConfig() Config {
	return Config{
		NameSimilarityThreshold: 0.8,
		MergeOnZeroConfidence:   false,
		MaxConflictRetries:      2,
		Quiet:                   false,
	}
}

// Validate checks if the configuration has valid values
func (c Config) Validate() error {
	if c.NameSimilarityThreshold < 0.0 || c.NameSimilarityThreshold > 1.0 {
		return fmt.Errorf("name_similarity_threshold must be between 0.0 and 1.0 (got %.2f)",
			c.NameSimilarityThreshold)
	}
	if c.MaxConflictRetries < 0 {
		return fmt.Errorf("max_conflict_retries cannot be negative (got %d)", c.MaxConflictRetries)
	}
	if c.MaxConflictRetries > 10 {
		return fmt.Errorf("max_conflict_retries too large (got %d, max 10)", c.MaxConflictRetries)
	}
	return nil
}

// String returns a human-readable representation of the config
func (c Config) String() string {
	return fmt.Sprintf(
		"Config{NameThreshold: %.2f, MergeOnZeroConfidence: %t, MaxConflictRetries: %d, Quiet: %t}",
		c.NameSimilarityThreshold, c.MergeOnZeroConfidence, c.MaxConflictRetries, c.Quiet,
	)
}

// ConfigFromEnv creates a Config from environment variables, falling back to defaults
//
// Environment variables:
//   - TALENT_DEDUP_NAME_SIMILARITY_THRESHOLD: name similarity bar for the name+company rule (default: 0.8)
//   - TALENT_DEDUP_MERGE_ON_ZERO_CONFIDENCE: merge into a zero-confidence top match (default: false)
//   - TALENT_DEDUP_MAX_CONFLICT_RETRIES: re-runs after a version conflict (default: 2)
//   - TALENT_DEDUP_QUIET: suppress engine log lines (default: false)
//
// Returns an error if any environment variable has an invalid value.
func ConfigFromEnv() (Config, error) {
	cfg := DefaultConfig()
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overlays the TALENT_DEDUP_* variables on cfg and validates the
// result. Unset variables leave cfg unchanged.
func ApplyEnv(cfg *Config) error {
	if err := parseEnvFloat("TALENT_DEDUP_NAME_SIMILARITY_THRESHOLD", &cfg.NameSimilarityThreshold); err != nil {
		return err
	}
	if err := parseEnvBool("TALENT_DEDUP_MERGE_ON_ZERO_CONFIDENCE", &cfg.MergeOnZeroConfidence); err != nil {
		return err
	}
	if err := parseEnvInt("TALENT_DEDUP_MAX_CONFLICT_RETRIES", &cfg.MaxConflictRetries); err != nil {
		return err
	}
	if err := parseEnvBool("TALENT_DEDUP_QUIET", &cfg.Quiet); err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration from environment: %w", err)
	}
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
