package watcher

import (
	"errors"
	"log/slog"
	"sync"
	"time"
)

// ErrNotWatching is returned when stopping a project with no watcher.
var ErrNotWatching = errors.New("project is not being watched")

// Manager owns at most one filesystem watcher per project.
type Manager struct {
	debounce time.Duration
	reset    ResetFunc
	logger   *slog.Logger

	mu       sync.Mutex
	watchers map[string]*Watcher
}

// NewManager creates a watcher manager. reset runs whenever a watched
// project's files change.
func NewManager(debounce time.Duration, reset ResetFunc, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		debounce: debounce,
		reset:    reset,
		logger:   logger,
		watchers: make(map[string]*Watcher),
	}
}

// Watch starts watching a project's directory. Watching an already
// watched project restarts the watcher on the new root.
func (m *Manager) Watch(projectID, root string) error {
	w, err := New(projectID, root, m.debounce, m.reset, m.logger)
	if err != nil {
		return err
	}

	m.mu.Lock()
	old := m.watchers[projectID]
	m.watchers[projectID] = w
	m.mu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Unwatch stops a project's watcher.
func (m *Manager) Unwatch(projectID string) error {
	m.mu.Lock()
	w, ok := m.watchers[projectID]
	delete(m.watchers, projectID)
	m.mu.Unlock()

	if !ok {
		return ErrNotWatching
	}
	w.Close()
	return nil
}

// Watching reports whether a project is being watched.
func (m *Manager) Watching(projectID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.watchers[projectID]
	return ok
}

// Close stops every watcher.
func (m *Manager) Close() {
	m.mu.Lock()
	watchers := m.watchers
	m.watchers = make(map[string]*Watcher)
	m.mu.Unlock()

	for _, w := range watchers {
		w.Close()
	}
}
