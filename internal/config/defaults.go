package config

const (
	defaultCacheDir               = "~/.local/share/podcache/episodes"
	defaultLogDir                 = "~/.local/share/podcache/logs"
	defaultDatabasePath           = "~/.local/share/podcache/podcache.db"
	defaultUserAgent              = "podcache/1.0"
	defaultRequestTimeoutMinutes  = 30
	defaultMaxAttempts            = 3
	defaultRetryDelaySeconds      = 5
	defaultProgressLogIntervalSec = 30
	defaultRetentionDays          = 30
	defaultSweepIntervalHours     = 6
	defaultLogFormat              = "console"
	defaultLogLevel               = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CacheDir:     defaultCacheDir,
			LogDir:       defaultLogDir,
			DatabasePath: defaultDatabasePath,
		},
		Download: Download{
			UserAgent:              defaultUserAgent,
			RequestTimeoutMinutes:  defaultRequestTimeoutMinutes,
			MaxAttempts:            defaultMaxAttempts,
			RetryDelaySeconds:      defaultRetryDelaySeconds,
			ProgressLogIntervalSec: defaultProgressLogIntervalSec,
		},
		Janitor: Janitor{
			RetentionDays:      defaultRetentionDays,
			SweepIntervalHours: defaultSweepIntervalHours,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
