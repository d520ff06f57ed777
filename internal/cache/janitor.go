package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"

	"podcache/internal/logging"
	"podcache/internal/store"
)

// SweepResult summarizes one retention sweep.
type SweepResult struct {
	Deleted int     `json:"deleted"`
	FreedMB float64 `json:"freed_mb"`
}

// Stats describes current cache usage.
type Stats struct {
	TotalFiles     int        `json:"total_files"`
	TotalSizeMB    float64    `json:"total_size_mb"`
	OldestDownload *time.Time `json:"oldest_download,omitempty"`
	FreeBytes      uint64     `json:"free_bytes"`
	TotalFSBytes   uint64     `json:"total_fs_bytes"`
	FreeRatio      float64    `json:"free_ratio"`
}

// SweepExpired deletes download records, and their files, whose last access
// predates the retention horizon. retentionDays <= 0 uses the configured
// default. A failure on one record is logged and skipped; the sweep always
// covers the remaining records, and failed records contribute nothing to the
// result.
func (m *Manager) SweepExpired(ctx context.Context, retentionDays int) (SweepResult, error) {
	if retentionDays <= 0 {
		retentionDays = m.cfg.Janitor.RetentionDays
	}
	cutoff := m.now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	expired, err := m.store.ListExpiredDownloads(ctx, cutoff)
	if err != nil {
		return SweepResult{}, fmt.Errorf("list expired downloads: %w", err)
	}

	var result SweepResult
	for _, record := range expired {
		if err := m.expireRecord(ctx, record); err != nil {
			m.logger.Warn("expire download failed; continuing sweep",
				logging.String(logging.FieldEpisodeID, record.EpisodeID),
				logging.Int64("record_id", record.ID),
				logging.Error(err))
			continue
		}
		result.Deleted++
		result.FreedMB += record.FileSizeMB
	}

	if result.Deleted > 0 || len(expired) > 0 {
		m.logger.Info("retention sweep finished",
			logging.Int("expired", len(expired)),
			logging.Int("deleted", result.Deleted),
			logging.Float64("freed_mb", result.FreedMB))
	}
	return result, nil
}

func (m *Manager) expireRecord(ctx context.Context, record store.DownloadRecord) error {
	if record.LocalPath != "" {
		if err := os.Remove(record.LocalPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("remove cached file: %w", err)
		}
	}
	if err := m.store.DeleteDownloadRecord(ctx, record.ID); err != nil {
		return fmt.Errorf("delete download record: %w", err)
	}
	return nil
}

// CacheStats aggregates download-record usage and filesystem free space for
// the cache directory.
func (m *Manager) CacheStats(ctx context.Context) (Stats, error) {
	usage, err := m.store.ListDownloadUsage(ctx)
	if err != nil {
		return Stats{}, fmt.Errorf("list download usage: %w", err)
	}

	stats := Stats{TotalFiles: len(usage)}
	for _, entry := range usage {
		stats.TotalSizeMB += entry.FileSizeMB
		if stats.OldestDownload == nil || entry.DownloadedAt.Before(*stats.OldestDownload) {
			oldest := entry.DownloadedAt
			stats.OldestDownload = &oldest
		}
	}

	if err := os.MkdirAll(m.cfg.Paths.CacheDir, 0o755); err != nil {
		return stats, fmt.Errorf("ensure cache dir: %w", err)
	}
	total, free, err := m.statfs(m.cfg.Paths.CacheDir)
	if err != nil {
		return stats, fmt.Errorf("statfs cache dir: %w", err)
	}
	stats.TotalFSBytes = total
	stats.FreeBytes = free
	if total > 0 {
		stats.FreeRatio = float64(free) / float64(total)
	}
	return stats, nil
}

func realStatfs(path string) (uint64, uint64, error) {
	var stat unix.Statfs_t
	if err := unix.Statfs(path, &stat); err != nil {
		return 0, 0, err
	}
	total := stat.Blocks * uint64(stat.Bsize)
	free := stat.Bavail * uint64(stat.Bsize)
	return total, free, nil
}
