package cache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"podcache/internal/logging"
)

// CachePath returns the final cache location for an episode.
func (m *Manager) CachePath(episodeID string) string {
	return filepath.Join(m.cfg.Paths.CacheDir, sanitizeKey(episodeID)+".mp3")
}

func (m *Manager) tempPath(episodeID string) string {
	return filepath.Join(m.cfg.Paths.CacheDir, sanitizeKey(episodeID)+".tmp")
}

// Resolve returns the cached file path for an episode when a usable copy
// exists, or an empty string when the caller should trigger a download.
// A file mid-transfer is never handed out. Validation self-heals: files that
// fail the variance check or lack a download record are evicted silently.
//
// A canonical-size lookup that still fails after the store gateway's retries
// does not abort resolution; validation falls back to the download record.
func (m *Manager) Resolve(ctx context.Context, episodeID string) (string, error) {
	if m.IsActive(episodeID) {
		return "", nil
	}
	return m.validateCached(ctx, episodeID)
}

// validateCached checks the on-disk file for an episode without consulting
// the single-flight set. The transfer executor uses it directly to
// short-circuit an attempt when a valid file already landed.
func (m *Manager) validateCached(ctx context.Context, episodeID string) (string, error) {
	path := m.CachePath(episodeID)

	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", nil
	}
	actualSize := info.Size()

	canonicalSize, err := m.store.FindEpisodeFileSize(ctx, episodeID)
	if err != nil {
		m.logger.Warn("canonical size lookup failed; falling back to record validation",
			logging.String(logging.FieldEpisodeID, episodeID),
			logging.Error(err))
		canonicalSize = 0
	}
	if canonicalSize > 0 && sizeVariance(actualSize, canonicalSize) > sizeTolerance {
		m.evict(ctx, episodeID, path, fmt.Sprintf("file size %d drifts from canonical %d", actualSize, canonicalSize))
		return "", nil
	}

	record, err := m.store.FindDownloadRecord(ctx, episodeID)
	if err != nil {
		return "", fmt.Errorf("validate cached episode %s: %w", episodeID, err)
	}
	if record == nil {
		// A file with no provenance is untrusted; drop it.
		m.removeFile(path, episodeID, "orphaned cache file without download record")
		return "", nil
	}

	recordedSize := int64(record.FileSizeMB * 1024 * 1024)
	if sizeVariance(actualSize, recordedSize) > sizeTolerance {
		m.evict(ctx, episodeID, path, fmt.Sprintf("file size %d drifts from recorded %d", actualSize, recordedSize))
		return "", nil
	}

	if err := m.store.TouchLastAccessed(ctx, episodeID, m.now()); err != nil {
		m.logger.Warn("touch last accessed failed",
			logging.String(logging.FieldEpisodeID, episodeID),
			logging.Error(err))
	}
	return path, nil
}

// evict removes a stale cache file together with its download records.
// Failures are logged and swallowed; staleness self-heals on the next pass.
func (m *Manager) evict(ctx context.Context, episodeID, path, reason string) {
	m.removeFile(path, episodeID, reason)
	if err := m.store.DeleteDownloadRecords(ctx, episodeID); err != nil {
		m.logger.Warn("delete download records failed during eviction",
			logging.String(logging.FieldEpisodeID, episodeID),
			logging.Error(err))
	}
}

func (m *Manager) removeFile(path, episodeID, reason string) {
	m.logger.Info("evicting cached episode",
		logging.String(logging.FieldEpisodeID, episodeID),
		logging.String("path", path),
		logging.String("reason", reason))
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		m.logger.Warn("remove cached file failed",
			logging.String("path", path),
			logging.Error(err))
	}
}
