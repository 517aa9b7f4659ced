// Package trigger decides when accumulated error signals should launch
// an automatic fix attempt. Signals are debounced so a burst of related
// errors produces one attempt, and a cooldown spaces attempts apart so
// repeated failures cannot thrash the fixer.
package trigger

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bharatbuild/buildfix/pkg/config"
)

// FireFunc is invoked once per trigger firing, outside the trigger's
// lock.
type FireFunc func(projectID string)

// Trigger accumulates per-project error signals and fires after a quiet
// period, at most once per cooldown window.
type Trigger struct {
	debounce time.Duration
	cooldown time.Duration
	fire     FireFunc
	logger   *slog.Logger

	mu       sync.Mutex
	projects map[string]*projectState
	closed   bool
}

type projectState struct {
	timer     *time.Timer
	lastFired time.Time
	pending   int
}

// New creates a Trigger from the configured debounce and cooldown
// windows.
func New(cfg config.TriggerConfig, fire FireFunc, logger *slog.Logger) *Trigger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Trigger{
		debounce: cfg.Debounce,
		cooldown: cfg.Cooldown,
		fire:     fire,
		logger:   logger,
		projects: make(map[string]*projectState),
	}
}

// Signal records one error signal for the project. The debounce timer
// restarts on every signal; the trigger fires once the signals go quiet
// for the debounce window, but never sooner than a cooldown after the
// previous firing.
func (t *Trigger) Signal(projectID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}

	st, ok := t.projects[projectID]
	if !ok {
		st = &projectState{}
		t.projects[projectID] = st
	}
	st.pending++

	delay := t.debounce
	if wait := t.cooldown - time.Since(st.lastFired); wait > delay {
		delay = wait
	}

	if st.timer != nil {
		st.timer.Stop()
	}
	st.timer = time.AfterFunc(delay, func() { t.tryFire(projectID) })
}

func (t *Trigger) tryFire(projectID string) {
	t.mu.Lock()
	st, ok := t.projects[projectID]
	if !ok || t.closed || st.pending == 0 {
		t.mu.Unlock()
		return
	}
	pending := st.pending
	st.pending = 0
	st.lastFired = time.Now()
	st.timer = nil
	t.mu.Unlock()

	t.logger.Info("auto-fix triggered",
		"project_id", projectID,
		"signals", pending,
	)
	t.fire(projectID)
}

// Flush fires any pending signals for the project immediately, ignoring
// debounce and cooldown. Used by tests and manual fix requests.
func (t *Trigger) Flush(projectID string) {
	t.mu.Lock()
	if st, ok := t.projects[projectID]; ok && st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	t.mu.Unlock()
	t.tryFire(projectID)
}

// Close stops all pending timers. Signals after Close are ignored.
func (t *Trigger) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.closed = true
	for _, st := range t.projects {
		if st.timer != nil {
			st.timer.Stop()
			st.timer = nil
		}
	}
}

// Run blocks until the context ends, then closes the trigger. Convenience
// for goroutine-supervised lifecycles.
func (t *Trigger) Run(ctx context.Context) {
	<-ctx.Done()
	t.Close()
}
