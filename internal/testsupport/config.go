package testsupport

import (
	"path/filepath"
	"testing"

	"podcache/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.CacheDir = filepath.Join(base, "episodes")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Paths.DatabasePath = filepath.Join(base, "podcache.db")
	cfg.Download.RetryDelaySeconds = 0
	cfg.Download.RequestTimeoutMinutes = 1

	for _, opt := range opts {
		opt(&cfg)
	}

	return &cfg
}

// WithMaxAttempts overrides the transfer attempt budget on the test config.
func WithMaxAttempts(attempts int) ConfigOption {
	return func(c *config.Config) {
		c.Download.MaxAttempts = attempts
	}
}

// WithRetentionDays overrides the janitor retention horizon on the test config.
func WithRetentionDays(days int) ConfigOption {
	return func(c *config.Config) {
		c.Janitor.RetentionDays = days
	}
}
