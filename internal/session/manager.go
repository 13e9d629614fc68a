// Package session keeps operator map sessions, the loaded geometry datasets
// and recently rendered images.
package session

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/districtmap/backend/internal/models"
	"github.com/districtmap/backend/internal/palette"
	"github.com/districtmap/backend/internal/render"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Defaults for Options fields left at zero.
const (
	DefaultMaxSessions    = 64
	DefaultSessionTimeout = 60 * time.Minute
	DefaultRenderTTL      = 30 * time.Minute

	// SessionKeepAliveWindow protects sessions touched this recently from
	// capacity eviction.
	SessionKeepAliveWindow = 5 * time.Minute
)

var (
	ErrSessionNotFound = errors.New("session not found")
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrRenderNotFound  = errors.New("render not found or expired")
	ErrNoGeometry      = errors.New("session has no geometry dataset")
	ErrInvalidColor    = errors.New("invalid color")
	ErrTooManySessions = errors.New("too many active sessions")
)

// Options configure a Manager.
type Options struct {
	MaxSessions     int
	SessionTimeout  time.Duration // idle sessions older than this are removed
	CleanupInterval time.Duration // zero disables the background loop
	RenderTTL       time.Duration // how long rendered images stay fetchable
}

func (o Options) withDefaults() Options {
	if o.MaxSessions <= 0 {
		o.MaxSessions = DefaultMaxSessions
	}
	if o.SessionTimeout <= 0 {
		o.SessionTimeout = DefaultSessionTimeout
	}
	if o.RenderTTL <= 0 {
		o.RenderTTL = DefaultRenderTTL
	}
	return o
}

// Manager handles map sessions and the datasets they draw.
type Manager struct {
	mu             sync.RWMutex
	sessions       map[string]*models.MapSession
	datasets       map[string]*models.Dataset
	defaultDataset string
	defaultConfig  *models.MapConfig

	renderer *render.Renderer
	recorder Recorder
	renders  *cache.Cache

	opts   Options
	logger *zap.Logger

	startOnce sync.Once
	stopOnce  sync.Once
	stop      chan struct{}
	wg        sync.WaitGroup
}

// NewManager creates a session manager. New sessions start from
// defaultConfig.
func NewManager(renderer *render.Renderer, defaultConfig *models.MapConfig, opts Options, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if renderer == nil {
		renderer = render.NewRenderer(render.DefaultSettings(), logger)
	}
	if defaultConfig == nil {
		defaultConfig = models.EmptyMapConfig()
	}
	opts = opts.withDefaults()
	return &Manager{
		sessions:      make(map[string]*models.MapSession),
		datasets:      make(map[string]*models.Dataset),
		defaultConfig: defaultConfig,
		renderer:      renderer,
		// Expiry is swept by our own loop so the cache starts no goroutine.
		renders: cache.New(opts.RenderTTL, 0),
		opts:    opts,
		logger:  logger,
		stop:    make(chan struct{}),
	}
}

// Start runs the background cleanup loop until Stop is called.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		if m.opts.CleanupInterval <= 0 {
			return
		}
		m.wg.Add(1)
		go m.cleanupLoop()
	})
}

func (m *Manager) cleanupLoop() {
	defer m.wg.Done()
	ticker := time.NewTicker(m.opts.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			m.Cleanup()
		case <-m.stop:
			return
		}
	}
}

// Stop ends the cleanup loop and waits for it. Safe to call more than once.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() { close(m.stop) })
	m.wg.Wait()
}

// Cleanup removes idle sessions and expired renders.
func (m *Manager) Cleanup() {
	removed := m.CleanupOldSessions(m.opts.SessionTimeout)
	m.renders.DeleteExpired()
	m.pruneRenderIDs()
	if removed > 0 {
		m.logger.Info("idle sessions removed", zap.Int("count", removed))
	}
}

// Renderer returns the renderer used for sessions.
func (m *Manager) Renderer() *render.Renderer {
	return m.renderer
}

// DefaultConfig returns the configuration new sessions start from.
func (m *Manager) DefaultConfig() *models.MapConfig {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultConfig
}

// AddDataset registers a loaded dataset. The first dataset, or any added
// with makeDefault, becomes the default for new sessions.
func (m *Manager) AddDataset(ds *models.Dataset, makeDefault bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.datasets[ds.ID] = ds
	if makeDefault || m.defaultDataset == "" {
		m.defaultDataset = ds.ID
	}
	m.logger.Info("dataset added",
		zap.String("id", ds.ID),
		zap.String("name", ds.Name),
		zap.Int("districts", len(ds.Districts)),
		zap.Strings("excluded", ds.Excluded))
}

// Dataset returns a dataset by ID.
func (m *Manager) Dataset(id string) (*models.Dataset, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ds, ok := m.datasets[id]
	return ds, ok
}

// DefaultDatasetID returns the dataset new sessions use, or "".
func (m *Manager) DefaultDatasetID() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.defaultDataset
}

// Datasets lists summaries of every dataset, newest first.
func (m *Manager) Datasets() []models.DatasetInfo {
	m.mu.RLock()
	out := make([]models.DatasetInfo, 0, len(m.datasets))
	for _, ds := range m.datasets {
		out = append(out, ds.Info())
	}
	m.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].LoadedAt.After(out[j].LoadedAt) })
	return out
}

// CreateSession starts a session on datasetID, or the default dataset when
// datasetID is empty. A session may start without any dataset.
func (m *Manager) CreateSession(datasetID string) (*models.MapSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if datasetID == "" {
		datasetID = m.defaultDataset
	} else if _, ok := m.datasets[datasetID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}

	if len(m.sessions) >= m.opts.MaxSessions && !m.evictOldestLocked() {
		return nil, ErrTooManySessions
	}

	s := models.NewMapSession(uuid.New().String(), m.defaultConfig)
	s.DatasetID = datasetID
	m.sessions[s.ID] = s
	return snapshot(s), nil
}

// evictOldestLocked drops the least recently used session that is outside
// the keep-alive window.
func (m *Manager) evictOldestLocked() bool {
	cutoff := time.Now().Add(-SessionKeepAliveWindow)
	var oldest *models.MapSession
	for _, s := range m.sessions {
		if s.LastAccess.After(cutoff) {
			continue
		}
		if oldest == nil || s.LastAccess.Before(oldest.LastAccess) {
			oldest = s
		}
	}
	if oldest == nil {
		return false
	}
	m.deleteLocked(oldest.ID)
	m.logger.Info("session evicted at capacity", zap.String("session", oldest.ID))
	return true
}

// GetSession returns a snapshot of a session.
func (m *Manager) GetSession(id string) (*models.MapSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	return snapshot(s), nil
}

// TouchSession updates the last access time of a session.
func (m *Manager) TouchSession(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[id]
	if !ok {
		return false
	}
	s.LastAccess = time.Now()
	return true
}

// DeleteSession removes a session and its cached renders.
func (m *Manager) DeleteSession(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
	}
	m.deleteLocked(id)
	return nil
}

func (m *Manager) deleteLocked(id string) {
	if s, ok := m.sessions[id]; ok {
		for _, rid := range s.RenderIDs {
			m.renders.Delete(rid)
		}
	}
	delete(m.sessions, id)
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanupOldSessions removes sessions not accessed within maxAge and returns
// how many were removed.
func (m *Manager) CleanupOldSessions(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	removed := 0
	for id, s := range m.sessions {
		if s.LastAccess.Before(cutoff) {
			m.deleteLocked(id)
			removed++
		}
	}
	return removed
}

// SetDataset switches the geometry a session draws.
func (m *Manager) SetDataset(sessionID, datasetID string) (*models.MapSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	if _, ok := m.datasets[datasetID]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrDatasetNotFound, datasetID)
	}
	s.DatasetID = datasetID
	s.LastAccess = time.Now()
	return snapshot(s), nil
}

// SetConfig replaces a session's configuration with cfg.
func (m *Manager) SetConfig(sessionID string, cfg *models.MapConfig) (*models.MapSession, error) {
	if cfg == nil {
		cfg = models.EmptyMapConfig()
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	s.Config = cfg
	s.LastAccess = time.Now()
	return snapshot(s), nil
}

// UpdateColors derives a new configuration with the given product and group
// colors and installs it on the session. Unknown ids and names are ignored.
func (m *Manager) UpdateColors(sessionID string, products map[int]string, groups map[string]string) (*models.MapConfig, error) {
	for id, c := range products {
		if !palette.Valid(c) {
			return nil, fmt.Errorf("%w for product %d: %q", ErrInvalidColor, id, c)
		}
	}
	for name, c := range groups {
		if !palette.Valid(c) {
			return nil, fmt.Errorf("%w for group %q: %q", ErrInvalidColor, name, c)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	cfg := s.Config
	if len(products) > 0 {
		cfg = cfg.WithProductColors(products)
	}
	if len(groups) > 0 {
		cfg = cfg.WithGroupColors(groups)
	}
	s.Config = cfg
	s.LastAccess = time.Now()
	return cfg, nil
}

// DistrictNames returns the district names of the session's dataset.
func (m *Manager) DistrictNames(sessionID string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSessionNotFound, sessionID)
	}
	ds, ok := m.datasets[s.DatasetID]
	if !ok {
		return nil, nil
	}
	return ds.DistrictNames(), nil
}

func snapshot(s *models.MapSession) *models.MapSession {
	cp := *s
	cp.RenderIDs = append(make([]string, 0, len(s.RenderIDs)), s.RenderIDs...)
	return &cp
}
