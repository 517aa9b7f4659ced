package logbus

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Manager owns one Bus per project. It replaces a global registry with an
// injected one: the composition root creates a single Manager and hands
// it to everything that ingests or reads logs.
type Manager struct {
	logger *slog.Logger

	mu    sync.Mutex
	buses map[string]*Bus
}

// NewManager creates an empty Manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger: logger,
		buses:  make(map[string]*Bus),
	}
}

// GetOrCreate returns the project's bus, creating it on first use.
func (m *Manager) GetOrCreate(projectID string) *Bus {
	m.mu.Lock()
	defer m.mu.Unlock()

	if b, ok := m.buses[projectID]; ok {
		return b
	}
	b := New(projectID, m.logger)
	m.buses[projectID] = b
	return b
}

// Get returns the project's bus, or nil when none exists.
func (m *Manager) Get(projectID string) *Bus {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.buses[projectID]
}

// Dispose drops the project's bus.
func (m *Manager) Dispose(projectID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.buses, projectID)
}

// CleanupAll runs retention cleanup on every bus and returns the total
// number of entries removed.
func (m *Manager) CleanupAll() int {
	m.mu.Lock()
	buses := make([]*Bus, 0, len(m.buses))
	for _, b := range m.buses {
		buses = append(buses, b)
	}
	m.mu.Unlock()

	total := 0
	for _, b := range buses {
		total += b.CleanupOldLogs()
	}
	return total
}

// RunCleanup runs CleanupAll every interval until the context ends.
// Meant to be started as a goroutine from the composition root.
func (m *Manager) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := m.CleanupAll(); removed > 0 {
				m.logger.Info("log retention cleanup", "removed", removed)
			}
		}
	}
}
