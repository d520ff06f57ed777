package store

import "time"

// Episode is the canonical metadata record for one downloadable episode.
// FileSizeBytes is the remote-authoritative length; zero means unknown.
type Episode struct {
	ID            string
	FileSizeBytes int64
}

// DownloadRecord describes one completed download for one user.
type DownloadRecord struct {
	ID             int64
	OwnerID        string
	EpisodeID      string
	LocalPath      string
	FileSizeMB     float64
	DownloadedAt   time.Time
	LastAccessedAt time.Time
}

// DownloadUsage is the slice of a download record the janitor aggregates over.
type DownloadUsage struct {
	FileSizeMB   float64
	DownloadedAt time.Time
}

// DatabaseHealth reports diagnostic information about the metadata database.
type DatabaseHealth struct {
	DBPath           string
	DatabaseExists   bool
	DatabaseReadable bool
	TablesExist      bool
	Error            string
}
