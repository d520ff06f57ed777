package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateDownload(); err != nil {
		return err
	}
	if err := c.validateJanitor(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePaths() error {
	if c.Paths.CacheDir == "" {
		return errors.New("paths.cache_dir must be set")
	}
	if c.Paths.DatabasePath == "" {
		return errors.New("paths.database_path must be set")
	}
	return nil
}

func (c *Config) validateDownload() error {
	if c.Download.RequestTimeoutMinutes <= 0 {
		return errors.New("download.request_timeout_minutes must be positive")
	}
	if c.Download.MaxAttempts < 1 {
		return errors.New("download.max_attempts must be at least 1")
	}
	if c.Download.RetryDelaySeconds < 0 {
		return errors.New("download.retry_delay_seconds must not be negative")
	}
	if c.Download.ProgressLogIntervalSec <= 0 {
		return errors.New("download.progress_log_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateJanitor() error {
	if c.Janitor.RetentionDays < 1 {
		return errors.New("janitor.retention_days must be at least 1")
	}
	if c.Janitor.SweepIntervalHours < 1 {
		return errors.New("janitor.sweep_interval_hours must be at least 1")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format: unsupported value %q", c.Logging.Format)
	}
	return nil
}
