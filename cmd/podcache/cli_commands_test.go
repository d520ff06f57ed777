package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"podcache/internal/cache"
	"podcache/internal/logging"
	"podcache/internal/store"
)

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, "")
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")

	target := filepath.Join(env.baseDir, "init", "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	// A second init without --overwrite must refuse.
	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse overwriting an existing file")
	}
}

func TestConfigShow(t *testing.T) {
	setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "show"}, "")
	if err != nil {
		t.Fatalf("config show: %v", err)
	}
	requireContains(t, out, "[paths]")
	requireContains(t, out, "[download]")
}

func TestResolveReportsMiss(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"resolve", "ep-1"}, env.configPath)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	requireContains(t, out, "miss: no cached copy for ep-1")
}

func TestFetchDownloadsAndResolves(t *testing.T) {
	env := setupCLITestEnv(t)

	payload := strings.Repeat("a", 4096)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(payload))
	}))
	defer server.Close()

	out, _, err := runCLI(t, []string{"fetch", "ep-1", server.URL, "--owner", "user-1"}, env.configPath)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	cachedPath := strings.TrimSpace(out)
	info, statErr := os.Stat(cachedPath)
	if statErr != nil {
		t.Fatalf("expected cached file at %q: %v", cachedPath, statErr)
	}
	if info.Size() != int64(len(payload)) {
		t.Fatalf("expected %d bytes, got %d", len(payload), info.Size())
	}

	// Second resolve hits without touching the server.
	out, _, err = runCLI(t, []string{"resolve", "ep-1"}, env.configPath)
	if err != nil {
		t.Fatalf("resolve after fetch: %v", err)
	}
	if strings.TrimSpace(out) != cachedPath {
		t.Fatalf("expected %q, got %q", cachedPath, strings.TrimSpace(out))
	}
}

func TestCacheSweepJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	st, err := store.Open(env.cfg, logging.NewNop())
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	manager := cache.NewManager(env.cfg, st, logging.NewNop())
	stale := time.Now().UTC().Add(-45 * 24 * time.Hour)
	if err := st.UpsertDownloadRecord(context.Background(), "user-1", "ep-old", manager.CachePath("ep-old"), 1, stale); err != nil {
		t.Fatalf("seed record: %v", err)
	}
	st.Close()

	out, _, err := runCLI(t, []string{"cache", "sweep", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cache sweep: %v", err)
	}
	var result cache.SweepResult
	if err := json.Unmarshal([]byte(out), &result); err != nil {
		t.Fatalf("decode sweep result: %v\n%s", err, out)
	}
	if result.Deleted != 1 {
		t.Fatalf("expected 1 deleted record, got %+v", result)
	}
}

func TestCacheStatsJSON(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"cache", "stats", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("cache stats: %v", err)
	}
	var stats cache.Stats
	if err := json.Unmarshal([]byte(out), &stats); err != nil {
		t.Fatalf("decode stats: %v\n%s", err, out)
	}
	if stats.TotalFiles != 0 {
		t.Fatalf("expected empty cache, got %+v", stats)
	}
	if stats.TotalFSBytes == 0 {
		t.Fatal("expected filesystem stats to be populated")
	}
}

func TestStatusTable(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"status"}, env.configPath)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	requireContains(t, out, "Database readable")
	requireContains(t, out, "yes")
}
