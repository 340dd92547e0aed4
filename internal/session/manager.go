package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/jonboulle/clockwork"

	"github.com/bv-saas/web/internal/models"
	"github.com/bv-saas/web/internal/upload"
	"github.com/bv-saas/web/internal/widget"
)

// DefaultMaxSessions limits concurrent widgets to bound memory held by selected files
const DefaultMaxSessions = 100

// SessionKeepAliveWindow is how long a recently used widget is protected from cleanup
const SessionKeepAliveWindow = 5 * time.Minute

// Manager tracks the upload widgets of open pages.
type Manager struct {
	sessions    map[string]*State
	mu          sync.RWMutex
	uploader    upload.Uploader
	logger      log.Logger
	clock       clockwork.Clock
	maxSessions int
}

// State holds a widget and its bookkeeping.
type State struct {
	Widget       *widget.Widget
	CreatedAt    time.Time
	LastAccessed time.Time

	// attached counts live connections driving the widget.
	attached int
}

// NewManager creates a session manager whose widgets upload through uploader.
func NewManager(uploader upload.Uploader, logger log.Logger) *Manager {
	return NewManagerWithClock(uploader, logger, clockwork.NewRealClock())
}

// NewManagerWithClock creates a session manager with a specific clock.
func NewManagerWithClock(uploader upload.Uploader, logger log.Logger, clock clockwork.Clock) *Manager {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	return &Manager{
		sessions:    make(map[string]*State),
		uploader:    uploader,
		logger:      log.With(logger, "component", "sessions"),
		clock:       clock,
		maxSessions: DefaultMaxSessions,
	}
}

// SetMaxSessions changes the session limit. Values below 1 are ignored.
func (m *Manager) SetMaxSessions(n int) {
	if n < 1 {
		return
	}
	m.mu.Lock()
	m.maxSessions = n
	m.mu.Unlock()
}

// Create starts a new widget session, evicting the least recently used one
// when the limit is reached.
func (m *Manager) Create() *State {
	now := m.clock.Now()
	state := &State{
		Widget: widget.New(m.uploader,
			widget.WithLogger(m.logger),
			widget.WithClock(m.clock),
		),
		CreatedAt:    now,
		LastAccessed: now,
	}

	var evicted *State
	m.mu.Lock()
	if len(m.sessions) >= m.maxSessions {
		evicted = m.oldestLocked()
		if evicted != nil {
			delete(m.sessions, evicted.Widget.ID())
		}
	}
	m.sessions[state.Widget.ID()] = state
	m.mu.Unlock()

	if evicted != nil {
		level.Info(m.logger).Log("msg", "session limit reached, evicting oldest", "evicted", evicted.Widget.ID())
		evicted.Widget.Close()
	}

	level.Debug(m.logger).Log("msg", "session created", "session", state.Widget.ID())
	return state
}

// oldestLocked prefers detached sessions and falls back to the oldest overall.
func (m *Manager) oldestLocked() *State {
	var oldest, oldestDetached *State
	for _, s := range m.sessions {
		if oldest == nil || s.LastAccessed.Before(oldest.LastAccessed) {
			oldest = s
		}
		if s.attached == 0 && (oldestDetached == nil || s.LastAccessed.Before(oldestDetached.LastAccessed)) {
			oldestDetached = s
		}
	}
	if oldestDetached != nil {
		return oldestDetached
	}
	return oldest
}

// Get returns the widget for id and marks the session as used.
func (m *Manager) Get(id string) (*widget.Widget, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	state.LastAccessed = m.clock.Now()
	return state.Widget, true
}

// Touch refreshes a session's last access time.
func (m *Manager) Touch(id string) bool {
	_, ok := m.Get(id)
	return ok
}

// Attach marks a session as driven by a live connection. Attached sessions
// are never removed by CleanupIdle. The returned release function is
// idempotent.
func (m *Manager) Attach(id string) (release func(), ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.sessions[id]
	if !ok {
		return func() {}, false
	}
	state.attached++
	state.LastAccessed = m.clock.Now()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			state.attached--
			state.LastAccessed = m.clock.Now()
			m.mu.Unlock()
		})
	}, true
}

// Remove ends a session and tears down its widget.
func (m *Manager) Remove(id string) bool {
	m.mu.Lock()
	state, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()

	if !ok {
		return false
	}
	state.Widget.Close()
	level.Debug(m.logger).Log("msg", "session removed", "session", id)
	return true
}

// Count returns the number of live sessions.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// List returns snapshots of all live widgets, most recently used first.
func (m *Manager) List() []models.WidgetSnapshot {
	type entry struct {
		widget       *widget.Widget
		lastAccessed time.Time
	}

	m.mu.RLock()
	entries := make([]entry, 0, len(m.sessions))
	for _, s := range m.sessions {
		entries = append(entries, entry{widget: s.Widget, lastAccessed: s.LastAccessed})
	}
	m.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].lastAccessed.After(entries[j].lastAccessed)
	})

	list := make([]models.WidgetSnapshot, 0, len(entries))
	for _, e := range entries {
		list = append(list, e.widget.Snapshot())
	}
	return list
}

// CleanupIdle removes sessions not used within maxAge and returns how many
// were removed. Attached sessions and sessions used within
// SessionKeepAliveWindow are always kept.
func (m *Manager) CleanupIdle(maxAge time.Duration) int {
	now := m.clock.Now()
	cutoff := now.Add(-maxAge)
	keepAliveCutoff := now.Add(-SessionKeepAliveWindow)

	var stale []*State
	m.mu.Lock()
	for id, state := range m.sessions {
		if state.attached > 0 || state.LastAccessed.After(keepAliveCutoff) {
			continue
		}
		if state.LastAccessed.Before(cutoff) {
			stale = append(stale, state)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, state := range stale {
		state.Widget.Close()
	}
	if len(stale) > 0 {
		level.Info(m.logger).Log("msg", "cleaned up idle sessions", "count", len(stale))
	}
	return len(stale)
}

// CloseAll tears down every session.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	states := m.sessions
	m.sessions = make(map[string]*State)
	m.mu.Unlock()

	for _, state := range states {
		state.Widget.Close()
	}
}

// RunCleanup calls CleanupIdle every interval until ctx is done.
func (m *Manager) RunCleanup(ctx context.Context, interval, maxAge time.Duration) error {
	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			m.CleanupIdle(maxAge)
		}
	}
}
