package daemon

import (
	"context"
	"testing"
	"time"

	"podcache/internal/cache"
	"podcache/internal/logging"
	"podcache/internal/testsupport"
)

func newTestDaemon(t *testing.T) (*Daemon, *cache.Manager) {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	manager := cache.NewManager(cfg, st, logging.NewNop())
	d, err := New(cfg, st, manager, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d, manager
}

func TestDaemonStartStop(t *testing.T) {
	d, _ := newTestDaemon(t)

	if d.Running() {
		t.Fatal("daemon must not report running before Start")
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if !d.Running() {
		t.Fatal("daemon must report running after Start")
	}
	if err := d.Start(context.Background()); err == nil {
		t.Fatal("second Start must fail while running")
	}

	d.Stop()
	if d.Running() {
		t.Fatal("daemon must not report running after Stop")
	}
	// Stop is idempotent.
	d.Stop()
}

func TestDaemonRejectsSecondInstance(t *testing.T) {
	d, _ := newTestDaemon(t)
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	second, err := New(d.cfg, d.store, d.cache, logging.NewNop())
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	defer second.Close()
	if err := second.Start(context.Background()); err == nil {
		second.Stop()
		t.Fatal("expected second instance to be rejected by the lock")
	}
}

func TestDaemonSweepLoopReclaimsExpired(t *testing.T) {
	d, manager := newTestDaemon(t)
	d.sweepInterval = 10 * time.Millisecond

	stale := time.Now().UTC().Add(-60 * 24 * time.Hour)
	path := manager.CachePath("ep-old")
	testsupport.WriteFile(t, path, 100)
	testsupport.SeedDownload(t, d.store, "user-1", "ep-old", path, 100.0/1024/1024, stale)

	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		record, err := d.store.FindDownloadRecord(context.Background(), "ep-old")
		if err != nil {
			t.Fatalf("FindDownloadRecord: %v", err)
		}
		if record == nil {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("expired record not reclaimed by sweep loop")
}

func TestDaemonStatus(t *testing.T) {
	d, _ := newTestDaemon(t)
	ctx := context.Background()

	status := d.Status(ctx)
	if status.Running {
		t.Fatal("status must report stopped before Start")
	}
	if !status.Database.DatabaseReadable || !status.Database.TablesExist {
		t.Fatalf("expected healthy database, got %+v", status.Database)
	}
	if status.LockFilePath == "" || status.DatabasePath == "" {
		t.Fatalf("expected lock and database paths, got %+v", status)
	}

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer d.Stop()
	if !d.Status(ctx).Running {
		t.Fatal("status must report running after Start")
	}
}
