package store_test

import (
	"context"
	"testing"
	"time"

	"podcache/internal/testsupport"
)

func TestOpenAppliesMigrations(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	ctx := context.Background()
	health, err := st.CheckHealth(ctx)
	if err != nil {
		t.Fatalf("CheckHealth failed: %v", err)
	}
	if !health.DatabaseExists || !health.DatabaseReadable || !health.TablesExist {
		t.Fatalf("unexpected health: %#v", health)
	}
}

func TestEpisodeFileSizeRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	size, err := st.FindEpisodeFileSize(ctx, "ep-1")
	if err != nil {
		t.Fatalf("FindEpisodeFileSize failed: %v", err)
	}
	if size != 0 {
		t.Fatalf("expected unknown size for absent episode, got %d", size)
	}

	if err := st.SetEpisodeFileSize(ctx, "ep-1", 12345); err != nil {
		t.Fatalf("SetEpisodeFileSize failed: %v", err)
	}
	size, err = st.FindEpisodeFileSize(ctx, "ep-1")
	if err != nil {
		t.Fatalf("FindEpisodeFileSize failed: %v", err)
	}
	if size != 12345 {
		t.Fatalf("unexpected size: %d", size)
	}

	// Correction overwrites.
	if err := st.SetEpisodeFileSize(ctx, "ep-1", 999); err != nil {
		t.Fatalf("SetEpisodeFileSize failed: %v", err)
	}
	size, _ = st.FindEpisodeFileSize(ctx, "ep-1")
	if size != 999 {
		t.Fatalf("expected corrected size, got %d", size)
	}
}

func TestEnsureEpisodeKeepsExistingSize(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	if err := st.SetEpisodeFileSize(ctx, "ep-1", 42); err != nil {
		t.Fatalf("SetEpisodeFileSize failed: %v", err)
	}
	if err := st.EnsureEpisode(ctx, "ep-1"); err != nil {
		t.Fatalf("EnsureEpisode failed: %v", err)
	}
	size, err := st.FindEpisodeFileSize(ctx, "ep-1")
	if err != nil {
		t.Fatalf("FindEpisodeFileSize failed: %v", err)
	}
	if size != 42 {
		t.Fatalf("ensure clobbered size: %d", size)
	}
}

func TestUpsertDownloadRecordReplacesPerOwner(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	second := first.Add(48 * time.Hour)

	if err := st.UpsertDownloadRecord(ctx, "user-1", "ep-1", "/cache/ep-1.mp3", 10.5, first); err != nil {
		t.Fatalf("UpsertDownloadRecord failed: %v", err)
	}
	if err := st.UpsertDownloadRecord(ctx, "user-1", "ep-1", "/cache/ep-1.mp3", 11.0, second); err != nil {
		t.Fatalf("UpsertDownloadRecord (second) failed: %v", err)
	}

	record, err := st.FindDownloadRecord(ctx, "ep-1")
	if err != nil {
		t.Fatalf("FindDownloadRecord failed: %v", err)
	}
	if record == nil {
		t.Fatal("expected download record")
	}
	if record.FileSizeMB != 11.0 {
		t.Fatalf("upsert did not replace size: %v", record.FileSizeMB)
	}
	if !record.DownloadedAt.Equal(second) {
		t.Fatalf("upsert did not refresh downloaded_at: %v", record.DownloadedAt)
	}

	usage, err := st.ListDownloadUsage(ctx)
	if err != nil {
		t.Fatalf("ListDownloadUsage failed: %v", err)
	}
	if len(usage) != 1 {
		t.Fatalf("expected a single record after upsert, got %d", len(usage))
	}
}

func TestFindDownloadRecordAbsent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)

	record, err := st.FindDownloadRecord(context.Background(), "missing")
	if err != nil {
		t.Fatalf("FindDownloadRecord failed: %v", err)
	}
	if record != nil {
		t.Fatalf("expected nil record, got %#v", record)
	}
}

func TestTouchLastAccessedUpdatesAllRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	start := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	testsupport.SeedDownload(t, st, "user-1", "ep-1", "/cache/ep-1.mp3", 5, start)
	testsupport.SeedDownload(t, st, "user-2", "ep-1", "/cache/ep-1.mp3", 5, start)

	touched := start.Add(72 * time.Hour)
	if err := st.TouchLastAccessed(ctx, "ep-1", touched); err != nil {
		t.Fatalf("TouchLastAccessed failed: %v", err)
	}

	expired, err := st.ListExpiredDownloads(ctx, touched.Add(-time.Hour))
	if err != nil {
		t.Fatalf("ListExpiredDownloads failed: %v", err)
	}
	if len(expired) != 0 {
		t.Fatalf("expected no expired records after touch, got %d", len(expired))
	}
}

func TestListExpiredDownloads(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	old := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	fresh := old.Add(40 * 24 * time.Hour)
	testsupport.SeedDownload(t, st, "user-1", "ep-old", "/cache/ep-old.mp3", 3, old)
	testsupport.SeedDownload(t, st, "user-1", "ep-new", "/cache/ep-new.mp3", 4, fresh)

	cutoff := old.Add(30 * 24 * time.Hour)
	expired, err := st.ListExpiredDownloads(ctx, cutoff)
	if err != nil {
		t.Fatalf("ListExpiredDownloads failed: %v", err)
	}
	if len(expired) != 1 {
		t.Fatalf("expected one expired record, got %d", len(expired))
	}
	if expired[0].EpisodeID != "ep-old" {
		t.Fatalf("unexpected expired record: %#v", expired[0])
	}
}

func TestDeleteDownloadRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	now := time.Now().UTC()
	record := testsupport.SeedDownload(t, st, "user-1", "ep-1", "/cache/ep-1.mp3", 2, now)
	testsupport.SeedDownload(t, st, "user-2", "ep-1", "/cache/ep-1.mp3", 2, now)

	if err := st.DeleteDownloadRecord(ctx, record.ID); err != nil {
		t.Fatalf("DeleteDownloadRecord failed: %v", err)
	}
	remaining, err := st.FindDownloadRecord(ctx, "ep-1")
	if err != nil {
		t.Fatalf("FindDownloadRecord failed: %v", err)
	}
	if remaining == nil || remaining.OwnerID != "user-2" {
		t.Fatalf("expected user-2 record to remain, got %#v", remaining)
	}

	if err := st.DeleteDownloadRecords(ctx, "ep-1"); err != nil {
		t.Fatalf("DeleteDownloadRecords failed: %v", err)
	}
	remaining, err = st.FindDownloadRecord(ctx, "ep-1")
	if err != nil {
		t.Fatalf("FindDownloadRecord failed: %v", err)
	}
	if remaining != nil {
		t.Fatalf("expected every record deleted, got %#v", remaining)
	}
}
