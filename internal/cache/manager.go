package cache

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"podcache/internal/config"
	"podcache/internal/logging"
	"podcache/internal/store"
)

// sizeTolerance is the allowed divergence between an observed file size and
// its expected size before the file is considered corrupt or stale.
const sizeTolerance = 0.01

// HTTPDoer describes the HTTP client used for episode transfers.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// MetadataStore is the slice of the metadata store the cache consumes.
type MetadataStore interface {
	FindEpisodeFileSize(ctx context.Context, episodeID string) (int64, error)
	SetEpisodeFileSize(ctx context.Context, episodeID string, sizeBytes int64) error
	FindDownloadRecord(ctx context.Context, episodeID string) (*store.DownloadRecord, error)
	UpsertDownloadRecord(ctx context.Context, ownerID, episodeID, localPath string, fileSizeMB float64, now time.Time) error
	DeleteDownloadRecords(ctx context.Context, episodeID string) error
	DeleteDownloadRecord(ctx context.Context, id int64) error
	TouchLastAccessed(ctx context.Context, episodeID string, now time.Time) error
	ListExpiredDownloads(ctx context.Context, before time.Time) ([]store.DownloadRecord, error)
	ListDownloadUsage(ctx context.Context) ([]store.DownloadUsage, error)
}

// statfsFunc allows tests to stub filesystem stats.
type statfsFunc func(path string) (total uint64, free uint64, err error)

type progressState struct {
	bytesDownloaded int64
	totalBytes      int64
}

// Manager coordinates episode downloads and cache validation. All shared
// transfer state lives behind its mutex; construct one per process and pass
// it to whatever needs cache access.
type Manager struct {
	cfg    *config.Config
	store  MetadataStore
	logger *slog.Logger
	client HTTPDoer
	now    func() time.Time
	statfs statfsFunc

	mu          sync.Mutex
	downloading map[string]struct{}
	progress    map[string]progressState
}

// Progress reports advisory transfer progress for one episode.
type Progress struct {
	Percent int
	Active  bool
}

// NewManager builds a cache manager with an HTTP client derived from config.
func NewManager(cfg *config.Config, st MetadataStore, logger *slog.Logger) *Manager {
	client := &http.Client{
		Timeout: time.Duration(cfg.Download.RequestTimeoutMinutes) * time.Minute,
		Transport: &http.Transport{
			// Raw bytes must match Content-Length for completeness checks.
			DisableCompression: true,
		},
	}
	return NewManagerWithClient(cfg, st, logger, client)
}

// NewManagerWithClient builds a cache manager around an injected HTTP client.
func NewManagerWithClient(cfg *config.Config, st MetadataStore, logger *slog.Logger, client HTTPDoer) *Manager {
	return &Manager{
		cfg:         cfg,
		store:       st,
		logger:      logging.NewComponentLogger(logger, "cache"),
		client:      client,
		now:         time.Now,
		statfs:      realStatfs,
		downloading: make(map[string]struct{}),
		progress:    make(map[string]progressState),
	}
}

// IsActive reports whether a transfer for the episode is in flight.
func (m *Manager) IsActive(episodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, active := m.downloading[episodeID]
	return active
}

// ProgressOf returns transfer progress for the episode, or nil when no
// transfer is in flight. The percentage is clamped to [0,100]; an unknown
// total reports zero percent while the transfer stays active.
func (m *Manager) ProgressOf(episodeID string) *Progress {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, active := m.downloading[episodeID]; !active {
		return nil
	}
	state, ok := m.progress[episodeID]
	if !ok || state.totalBytes <= 0 {
		return &Progress{Percent: 0, Active: true}
	}
	percent := int(math.Round(100 * float64(state.bytesDownloaded) / float64(state.totalBytes)))
	if percent < 0 {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	return &Progress{Percent: percent, Active: true}
}

// beginTransfer atomically claims the single-flight slot for an episode.
func (m *Manager) beginTransfer(episodeID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.downloading[episodeID]; exists {
		return false
	}
	m.downloading[episodeID] = struct{}{}
	return true
}

// finishTransfer releases the single-flight slot and drops progress state.
func (m *Manager) finishTransfer(episodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.downloading, episodeID)
	delete(m.progress, episodeID)
}

func (m *Manager) initProgress(episodeID string, totalBytes int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress[episodeID] = progressState{bytesDownloaded: 0, totalBytes: totalBytes}
}

func (m *Manager) advanceProgress(episodeID string, chunkBytes int64) progressState {
	m.mu.Lock()
	defer m.mu.Unlock()
	state := m.progress[episodeID]
	state.bytesDownloaded += chunkBytes
	m.progress[episodeID] = state
	return state
}

func (m *Manager) clearProgress(episodeID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.progress, episodeID)
}

func sanitizeKey(value string) string {
	value = strings.TrimSpace(value)
	replacer := strings.NewReplacer(
		"/", "-",
		"\\", "-",
		" ", "-",
		":", "-",
		"*", "",
		"?", "",
		"\"", "",
		"<", "",
		">", "",
		"|", "",
	)
	value = replacer.Replace(value)
	value = strings.Trim(value, "-_.")
	if value == "" {
		return "episode"
	}
	return value
}

func sizeVariance(actual, expected int64) float64 {
	if expected <= 0 {
		return 0
	}
	return math.Abs(float64(actual-expected)) / float64(expected)
}
