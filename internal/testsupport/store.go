package testsupport

import (
	"context"
	"testing"
	"time"

	"podcache/internal/config"
	"podcache/internal/logging"
	"podcache/internal/store"
)

// MustOpenStore opens a store.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *store.Store {
	t.Helper()

	st, err := store.Open(cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		st.Close()
	})
	return st
}

// SeedDownload inserts a download record for tests using the provided store.
func SeedDownload(t testing.TB, st *store.Store, ownerID, episodeID, localPath string, fileSizeMB float64, at time.Time) *store.DownloadRecord {
	t.Helper()

	ctx := context.Background()
	if err := st.UpsertDownloadRecord(ctx, ownerID, episodeID, localPath, fileSizeMB, at); err != nil {
		t.Fatalf("store.UpsertDownloadRecord: %v", err)
	}
	record, err := st.FindDownloadRecord(ctx, episodeID)
	if err != nil {
		t.Fatalf("store.FindDownloadRecord: %v", err)
	}
	if record == nil {
		t.Fatalf("expected download record for %s", episodeID)
	}
	return record
}
