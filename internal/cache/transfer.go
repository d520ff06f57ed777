package cache

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"

	"podcache/internal/logging"
)

var errEmptyDownload = errors.New("empty download")

// Trigger starts a background download for an episode. It is a no-op when a
// transfer for the episode is already in flight, and never blocks or returns
// an error to the caller; terminal failures are logged after the retry
// budget is exhausted.
func (m *Manager) Trigger(episodeID, remoteURL, ownerID string) {
	if !m.beginTransfer(episodeID) {
		m.logger.Debug("download already in flight",
			logging.String(logging.FieldEpisodeID, episodeID))
		return
	}

	logger := m.logger.With(
		logging.String(logging.FieldEpisodeID, episodeID),
		logging.String(logging.FieldOwnerID, ownerID),
		logging.String(logging.FieldTransferID, uuid.NewString()))

	go func() {
		defer m.finishTransfer(episodeID)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("download panicked",
					logging.Any("panic", r),
					logging.String(logging.FieldEventType, "download_panic"))
			}
		}()
		if err := m.runTransfer(context.Background(), logger, episodeID, remoteURL, ownerID); err != nil {
			logger.Error("download failed after exhausting attempts",
				logging.Error(err),
				logging.String(logging.FieldEventType, "download_failed"),
				logging.String(logging.FieldErrorHint, "re-trigger the episode to retry"))
		}
	}()
}

// runTransfer drives the bounded attempt loop for one download. Every failed
// attempt starts over from byte zero: the temp file is discarded and the
// next attempt re-downloads the whole episode.
func (m *Manager) runTransfer(ctx context.Context, logger *slog.Logger, episodeID, remoteURL, ownerID string) error {
	maxAttempts := m.cfg.Download.MaxAttempts
	retryDelay := time.Duration(m.cfg.Download.RetryDelaySeconds) * time.Second

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err := m.attemptTransfer(ctx, logger, episodeID, remoteURL, ownerID, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		// No partial artifact survives a failed attempt.
		if removeErr := os.Remove(m.tempPath(episodeID)); removeErr != nil && !errors.Is(removeErr, os.ErrNotExist) {
			logger.Warn("remove temp file failed", logging.Error(removeErr))
		}
		m.clearProgress(episodeID)

		logger.Warn("transfer attempt failed",
			logging.Int(logging.FieldAttempt, attempt),
			logging.Error(err))
		if attempt < maxAttempts {
			select {
			case <-time.After(retryDelay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return lastErr
}

func (m *Manager) attemptTransfer(ctx context.Context, logger *slog.Logger, episodeID, remoteURL, ownerID string, attempt int) error {
	if err := os.MkdirAll(m.cfg.Paths.CacheDir, 0o755); err != nil {
		return fmt.Errorf("ensure cache dir: %w", err)
	}

	// Another path may have produced a valid file since the trigger.
	if path, err := m.validateCached(ctx, episodeID); err == nil && path != "" {
		logger.Info("episode already cached; skipping transfer",
			logging.String("path", path))
		return nil
	}

	tempPath := m.tempPath(episodeID)
	if err := os.Remove(tempPath); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove stale temp file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, remoteURL, nil)
	if err != nil {
		return fmt.Errorf("build episode request: %w", err)
	}
	req.Header.Set("User-Agent", m.cfg.Download.UserAgent)
	req.Header.Set("Accept-Encoding", "identity")

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("request episode: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("episode request returned %d", resp.StatusCode)
	}

	expectedBytes, err := m.reconcileCanonicalSize(ctx, logger, episodeID, resp.ContentLength)
	if err != nil {
		return err
	}

	m.initProgress(episodeID, expectedBytes)

	written, err := m.streamToTemp(ctx, logger, episodeID, resp.Body, tempPath, expectedBytes)
	if err != nil {
		return err
	}

	if written == 0 {
		return errEmptyDownload
	}
	if expectedBytes > 0 && sizeVariance(written, expectedBytes) > sizeTolerance {
		return fmt.Errorf("incomplete download: wrote %d of expected %d bytes", written, expectedBytes)
	}

	finalPath := m.CachePath(episodeID)
	if err := os.Rename(tempPath, finalPath); err != nil {
		return fmt.Errorf("promote temp file: %w", err)
	}

	fileSizeMB := float64(written) / 1024 / 1024
	if err := m.store.UpsertDownloadRecord(ctx, ownerID, episodeID, finalPath, fileSizeMB, m.now()); err != nil {
		return fmt.Errorf("record download: %w", err)
	}

	m.clearProgress(episodeID)
	logger.Info("episode cached",
		logging.Int(logging.FieldAttempt, attempt),
		logging.Int64("size_bytes", written),
		logging.String("path", finalPath))
	return nil
}

// reconcileCanonicalSize treats a positive Content-Length as authoritative:
// it seeds an unset canonical size and corrects one that drifts past the
// tolerance. Without a usable header the stored canonical size, if any,
// serves as the expected total for progress and completeness checks.
func (m *Manager) reconcileCanonicalSize(ctx context.Context, logger *slog.Logger, episodeID string, contentLength int64) (int64, error) {
	canonicalSize, err := m.store.FindEpisodeFileSize(ctx, episodeID)
	if err != nil {
		if contentLength > 0 {
			return 0, fmt.Errorf("find canonical size: %w", err)
		}
		logger.Warn("canonical size lookup failed; proceeding with unknown length",
			logging.Error(err))
		return 0, nil
	}

	if contentLength <= 0 {
		return canonicalSize, nil
	}

	if canonicalSize == 0 || sizeVariance(contentLength, canonicalSize) > sizeTolerance {
		if err := m.store.SetEpisodeFileSize(ctx, episodeID, contentLength); err != nil {
			return 0, fmt.Errorf("reconcile canonical size: %w", err)
		}
		if canonicalSize != 0 {
			logger.Info("corrected canonical episode size",
				logging.Int64("stored_bytes", canonicalSize),
				logging.Int64("observed_bytes", contentLength))
		}
	}
	return contentLength, nil
}

// streamToTemp copies the response body into the temp file, advancing shared
// progress state per chunk and emitting throttled progress logs.
func (m *Manager) streamToTemp(ctx context.Context, logger *slog.Logger, episodeID string, body io.Reader, tempPath string, expectedBytes int64) (int64, error) {
	out, err := os.OpenFile(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}

	interval := time.Duration(m.cfg.Download.ProgressLogIntervalSec) * time.Second
	sampler := logging.NewProgressSampler(5, interval)

	buf := make([]byte, 64*1024)
	var written int64
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return written, err
		}
		n, readErr := body.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return written, fmt.Errorf("write temp file: %w", writeErr)
			}
			written += int64(n)
			state := m.advanceProgress(episodeID, int64(n))

			percent := -1.0
			if state.totalBytes > 0 {
				percent = 100 * float64(state.bytesDownloaded) / float64(state.totalBytes)
			}
			if sampler.ShouldLog(percent) {
				logger.Info("download progress",
					logging.Int64("bytes_downloaded", state.bytesDownloaded),
					logging.Int64("total_bytes", state.totalBytes))
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return written, fmt.Errorf("stream episode: %w", readErr)
		}
	}

	if err := out.Close(); err != nil {
		return written, fmt.Errorf("finalize temp file: %w", err)
	}
	return written, nil
}
