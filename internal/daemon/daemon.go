// Package daemon coordinates the background services of podcached: the
// retention sweep loop and metadata-store health checks. A file lock in the
// log directory enforces single-instance execution.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/gofrs/flock"
	"golang.org/x/sync/errgroup"

	"podcache/internal/cache"
	"podcache/internal/config"
	"podcache/internal/logging"
	"podcache/internal/store"
)

// Daemon owns the long-running background loops and enforces single-instance
// execution through a lock file.
type Daemon struct {
	cfg    *config.Config
	store  *store.Store
	cache  *cache.Manager
	logger *slog.Logger

	lockPath string
	lock     *flock.Flock

	sweepInterval time.Duration

	running atomic.Bool
	cancel  context.CancelFunc
	group   *errgroup.Group
}

// Status reports daemon runtime information for the control surface.
type Status struct {
	Running      bool               `json:"running"`
	LockFilePath string             `json:"lock_file_path"`
	DatabasePath string             `json:"database_path"`
	Database     store.DatabaseHealth `json:"database"`
	Cache        cache.Stats        `json:"cache"`
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.Store, cacheManager *cache.Manager, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || st == nil || cacheManager == nil {
		return nil, errors.New("daemon requires config, store, and cache manager")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	interval := time.Duration(cfg.Janitor.SweepIntervalHours) * time.Hour
	if interval <= 0 {
		interval = 6 * time.Hour
	}

	lockPath := filepath.Join(cfg.Paths.LogDir, "podcached.lock")
	return &Daemon{
		cfg:           cfg,
		store:         st,
		cache:         cacheManager,
		logger:        logging.NewComponentLogger(logger, "daemon"),
		lockPath:      lockPath,
		lock:          flock.New(lockPath),
		sweepInterval: interval,
	}, nil
}

// Start acquires the instance lock and launches the background loops. It
// returns immediately; the loops run until Stop or context cancellation.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another podcached instance is already running")
	}

	runCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(runCtx)
	d.cancel = cancel
	d.group = group

	group.Go(func() error {
		return d.sweepLoop(groupCtx)
	})

	d.running.Store(true)
	d.logger.Info("podcached started",
		logging.String("lock", d.lockPath),
		logging.String("sweep_interval", d.sweepInterval.String()))
	return nil
}

// Stop halts the background loops and releases the instance lock.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	if d.group != nil {
		if err := d.group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Warn("background loop exited with error", logging.Error(err))
		}
		d.group = nil
	}
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("release daemon lock failed", logging.Error(err))
	}
	d.running.Store(false)
	d.logger.Info("podcached stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	return nil
}

// Running reports whether the daemon has been started.
func (d *Daemon) Running() bool {
	return d.running.Load()
}

// Status assembles daemon, database, and cache state.
func (d *Daemon) Status(ctx context.Context) Status {
	status := Status{
		Running:      d.running.Load(),
		LockFilePath: d.lockPath,
		DatabasePath: d.cfg.Paths.DatabasePath,
	}
	health, err := d.store.CheckHealth(ctx)
	if err != nil {
		d.logger.Warn("database health check failed", logging.Error(err))
	}
	status.Database = health
	stats, err := d.cache.CacheStats(ctx)
	if err != nil {
		d.logger.Warn("cache stats unavailable", logging.Error(err))
	} else {
		status.Cache = stats
	}
	return status
}

// sweepLoop runs a retention sweep immediately, then on every tick until the
// context ends.
func (d *Daemon) sweepLoop(ctx context.Context) error {
	d.runSweep(ctx)

	ticker := time.NewTicker(d.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			d.runSweep(ctx)
		}
	}
}

func (d *Daemon) runSweep(ctx context.Context) {
	result, err := d.cache.SweepExpired(ctx, 0)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		d.logger.Warn("retention sweep failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check metadata database access"),
			logging.String(logging.FieldImpact, "expired cache files linger until the next sweep"))
		return
	}
	if result.Deleted > 0 {
		d.logger.Info("retention sweep reclaimed space",
			logging.Int("deleted", result.Deleted),
			logging.Float64("freed_mb", result.FreedMB))
	}
}
