package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/wolfman30/reserv/internal/apiclient"
	"github.com/wolfman30/reserv/internal/observability/metrics"
	"github.com/wolfman30/reserv/internal/session"
	"github.com/wolfman30/reserv/pkg/logging"
)

const (
	defaultIdleTimeout = 30 * time.Minute
	minSweepInterval   = time.Second
	maxSweepInterval   = time.Minute
)

// ErrManagerClosed is returned by Get after Close.
var ErrManagerClosed = errors.New("workspace: manager closed")

// Settings are the per-tab knobs shared by every workspace.
type Settings struct {
	APIBaseURL   string
	APITimeout   time.Duration
	ConfirmDelay time.Duration
	NoticeDelay  time.Duration
	IdleTimeout  time.Duration
	Location     *time.Location
}

type Option func(*Manager)

// WithHTTPClient shares hc between every workspace's API client.
func WithHTTPClient(hc *http.Client) Option {
	return func(m *Manager) { m.httpClient = hc }
}

func WithAPIMetrics(am *metrics.APIMetrics) Option {
	return func(m *Manager) { m.apiMetrics = am }
}

func WithWorkflowMetrics(wm *metrics.WorkflowMetrics) Option {
	return func(m *Manager) { m.flowMetrics = wm }
}

// WithClock overrides the clock used for idleness and slot filtering.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// Manager owns the workspaces of all tabs, keyed by tab id.
type Manager struct {
	settings    Settings
	storage     session.Storage
	httpClient  *http.Client
	apiMetrics  *metrics.APIMetrics
	flowMetrics *metrics.WorkflowMetrics
	logger      *logging.Logger
	now         func() time.Time

	mu         sync.Mutex
	workspaces map[string]*Workspace
	closed     bool
}

func NewManager(settings Settings, storage session.Storage, logger *logging.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = logging.Default()
	}
	if storage == nil {
		storage = session.NewMemoryStorage()
	}
	if settings.IdleTimeout <= 0 {
		settings.IdleTimeout = defaultIdleTimeout
	}
	if settings.Location == nil {
		settings.Location = time.Local
	}
	m := &Manager{
		settings:   settings,
		storage:    storage,
		logger:     logger.Component("workspace"),
		now:        time.Now,
		workspaces: make(map[string]*Workspace),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Get returns the workspace for id, creating it from persisted session
// state on first use. Every call marks the workspace as active.
func (m *Manager) Get(ctx context.Context, id string) (*Workspace, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("workspace: empty tab id")
	}
	now := m.now()

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if w, ok := m.workspaces[id]; ok {
		m.mu.Unlock()
		w.touch(now)
		return w, nil
	}
	m.mu.Unlock()

	store, err := session.Open(ctx, m.storage, id, m.logger)
	if err != nil {
		return nil, fmt.Errorf("workspace: get %s: %w", id, err)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, ErrManagerClosed
	}
	if w, ok := m.workspaces[id]; ok {
		m.mu.Unlock()
		w.touch(now)
		return w, nil
	}
	w := newWorkspace(store, m.newClient(store), m.settings, m.flowMetrics, m.logger, m.now)
	m.workspaces[id] = w
	m.mu.Unlock()

	m.logger.Debug("workspace created", "session_id", id, "logged_in", store.IsLoggedIn())
	return w, nil
}

func (m *Manager) newClient(store *session.Store) *apiclient.Client {
	opts := []apiclient.Option{
		apiclient.WithTimeout(m.settings.APITimeout),
		apiclient.WithMetrics(m.apiMetrics),
		apiclient.WithClock(m.now),
	}
	if m.httpClient != nil {
		opts = append(opts, apiclient.WithHTTPClient(m.httpClient))
	}
	return apiclient.New(m.settings.APIBaseURL, store, m.logger, opts...)
}

// Len is the number of live workspaces.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.workspaces)
}

// Sweep closes workspaces idle for longer than the idle timeout. Session
// records stay in storage so the tab can come back.
func (m *Manager) Sweep(now time.Time) int {
	m.mu.Lock()
	var idle []*Workspace
	for id, w := range m.workspaces {
		if now.Sub(w.LastSeen()) > m.settings.IdleTimeout {
			idle = append(idle, w)
			delete(m.workspaces, id)
		}
	}
	m.mu.Unlock()

	for _, w := range idle {
		w.Close()
	}
	if len(idle) > 0 {
		m.logger.Info("idle workspaces closed", "count", len(idle))
	}
	return len(idle)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	interval := m.settings.IdleTimeout / 4
	interval = max(minSweepInterval, min(interval, maxSweepInterval))
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Sweep(m.now())
		}
	}
}

// Close closes every workspace. Get fails afterwards.
func (m *Manager) Close() {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return
	}
	m.closed = true
	all := make([]*Workspace, 0, len(m.workspaces))
	for id, w := range m.workspaces {
		all = append(all, w)
		delete(m.workspaces, id)
	}
	m.mu.Unlock()

	for _, w := range all {
		w.Close()
	}
}
