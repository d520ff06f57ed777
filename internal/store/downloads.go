package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

func scanDownload(scanner interface{ Scan(dest ...any) error }) (*DownloadRecord, error) {
	var (
		record         DownloadRecord
		downloadedAt   string
		lastAccessedAt string
	)
	if err := scanner.Scan(
		&record.ID,
		&record.OwnerID,
		&record.EpisodeID,
		&record.LocalPath,
		&record.FileSizeMB,
		&downloadedAt,
		&lastAccessedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if record.DownloadedAt, err = parseTimeString(downloadedAt); err != nil {
		return nil, err
	}
	if record.LastAccessedAt, err = parseTimeString(lastAccessedAt); err != nil {
		return nil, err
	}
	return &record, nil
}

const downloadColumns = `id, owner_id, episode_id, local_path, file_size_mb, downloaded_at, last_accessed_at`

// FindDownloadRecord returns the download record for an episode, or nil when
// none exists. When multiple users hold the episode the earliest record wins;
// validation only needs one provenance witness.
func (s *Store) FindDownloadRecord(ctx context.Context, episodeID string) (*DownloadRecord, error) {
	ctx = ensureContext(ctx)
	var record *DownloadRecord
	err := s.withRetry(ctx, "find download record", func() error {
		row := s.db.QueryRowContext(ctx,
			`SELECT `+downloadColumns+` FROM downloads WHERE episode_id = ? ORDER BY id LIMIT 1`,
			episodeID)
		found, scanErr := scanDownload(row)
		if errors.Is(scanErr, sql.ErrNoRows) {
			record = nil
			return nil
		}
		if scanErr != nil {
			return scanErr
		}
		record = found
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find download record %s: %w", episodeID, err)
	}
	return record, nil
}

// UpsertDownloadRecord creates or refreshes the download record for one
// (owner, episode) pair after a verified transfer.
func (s *Store) UpsertDownloadRecord(ctx context.Context, ownerID, episodeID, localPath string, fileSizeMB float64, now time.Time) error {
	ctx = ensureContext(ctx)
	timestamp := nullableTimeString(now)
	err := s.withRetry(ctx, "upsert download record", func() error {
		_, execErr := s.db.ExecContext(ctx,
			`INSERT INTO downloads (owner_id, episode_id, local_path, file_size_mb, downloaded_at, last_accessed_at)
             VALUES (?, ?, ?, ?, ?, ?)
             ON CONFLICT (owner_id, episode_id) DO UPDATE SET
                 local_path = excluded.local_path,
                 file_size_mb = excluded.file_size_mb,
                 downloaded_at = excluded.downloaded_at,
                 last_accessed_at = excluded.last_accessed_at`,
			ownerID, episodeID, localPath, fileSizeMB, timestamp, timestamp)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("upsert download record %s/%s: %w", ownerID, episodeID, err)
	}
	return nil
}

// DeleteDownloadRecords removes every download record for an episode.
func (s *Store) DeleteDownloadRecords(ctx context.Context, episodeID string) error {
	ctx = ensureContext(ctx)
	err := s.withRetry(ctx, "delete download records", func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE episode_id = ?`, episodeID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete download records %s: %w", episodeID, err)
	}
	return nil
}

// DeleteDownloadRecord removes a single download record by row ID.
func (s *Store) DeleteDownloadRecord(ctx context.Context, id int64) error {
	ctx = ensureContext(ctx)
	err := s.withRetry(ctx, "delete download record", func() error {
		_, execErr := s.db.ExecContext(ctx, `DELETE FROM downloads WHERE id = ?`, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete download record %d: %w", id, err)
	}
	return nil
}

// TouchLastAccessed refreshes the access time on every record for an episode.
func (s *Store) TouchLastAccessed(ctx context.Context, episodeID string, now time.Time) error {
	ctx = ensureContext(ctx)
	err := s.withRetry(ctx, "touch last accessed", func() error {
		_, execErr := s.db.ExecContext(ctx,
			`UPDATE downloads SET last_accessed_at = ? WHERE episode_id = ?`,
			nullableTimeString(now), episodeID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("touch last accessed %s: %w", episodeID, err)
	}
	return nil
}

// ListExpiredDownloads returns records whose last access is before the cutoff.
func (s *Store) ListExpiredDownloads(ctx context.Context, before time.Time) ([]DownloadRecord, error) {
	ctx = ensureContext(ctx)
	var records []DownloadRecord
	err := s.withRetry(ctx, "list expired downloads", func() error {
		rows, queryErr := s.db.QueryContext(ctx,
			`SELECT `+downloadColumns+` FROM downloads WHERE last_accessed_at < ? ORDER BY last_accessed_at`,
			nullableTimeString(before))
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		records = records[:0]
		for rows.Next() {
			record, scanErr := scanDownload(rows)
			if scanErr != nil {
				return scanErr
			}
			records = append(records, *record)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list expired downloads: %w", err)
	}
	return records, nil
}

// ListDownloadUsage returns size and age data for every download record.
func (s *Store) ListDownloadUsage(ctx context.Context) ([]DownloadUsage, error) {
	ctx = ensureContext(ctx)
	var usage []DownloadUsage
	err := s.withRetry(ctx, "list download usage", func() error {
		rows, queryErr := s.db.QueryContext(ctx,
			`SELECT file_size_mb, downloaded_at FROM downloads`)
		if queryErr != nil {
			return queryErr
		}
		defer rows.Close()

		usage = usage[:0]
		for rows.Next() {
			var (
				entry        DownloadUsage
				downloadedAt string
			)
			if scanErr := rows.Scan(&entry.FileSizeMB, &downloadedAt); scanErr != nil {
				return scanErr
			}
			parsed, parseErr := parseTimeString(downloadedAt)
			if parseErr != nil {
				return parseErr
			}
			entry.DownloadedAt = parsed
			usage = append(usage, entry)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("list download usage: %w", err)
	}
	return usage, nil
}
