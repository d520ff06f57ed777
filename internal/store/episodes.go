package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// EnsureEpisode inserts an episode row when absent, leaving an existing
// canonical size untouched.
func (s *Store) EnsureEpisode(ctx context.Context, episodeID string) error {
	ctx = ensureContext(ctx)
	err := s.withRetry(ctx, "ensure episode", func() error {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO episodes (id, file_size) VALUES (?, 0)
             ON CONFLICT (id) DO NOTHING`, episodeID)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure episode %s: %w", episodeID, err)
	}
	return nil
}

// FindEpisodeFileSize returns the canonical size in bytes for an episode.
// Zero means the size is unknown or the episode has no record yet.
func (s *Store) FindEpisodeFileSize(ctx context.Context, episodeID string) (int64, error) {
	ctx = ensureContext(ctx)
	var size int64
	err := s.withRetry(ctx, "find episode size", func() error {
		row := s.db.QueryRowContext(ctx, `SELECT file_size FROM episodes WHERE id = ?`, episodeID)
		scanErr := row.Scan(&size)
		if errors.Is(scanErr, sql.ErrNoRows) {
			size = 0
			return nil
		}
		return scanErr
	})
	if err != nil {
		return 0, fmt.Errorf("find episode size %s: %w", episodeID, err)
	}
	return size, nil
}

// SetEpisodeFileSize records the canonical size observed from the remote.
func (s *Store) SetEpisodeFileSize(ctx context.Context, episodeID string, sizeBytes int64) error {
	ctx = ensureContext(ctx)
	err := s.withRetry(ctx, "set episode size", func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO episodes (id, file_size) VALUES (?, ?)
             ON CONFLICT (id) DO UPDATE SET file_size = excluded.file_size`,
			episodeID, sizeBytes)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("set episode size %s: %w", episodeID, err)
	}
	return nil
}
