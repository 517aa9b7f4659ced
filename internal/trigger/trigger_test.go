package trigger

import (
	"sync"
	"testing"
	"time"

	"github.com/bharatbuild/buildfix/pkg/config"
)

type firings struct {
	mu       sync.Mutex
	projects []string
}

func (f *firings) fire(projectID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.projects = append(f.projects, projectID)
}

func (f *firings) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.projects)
}

func TestTrigger_DebounceCollapsesBurst(t *testing.T) {
	f := &firings{}
	tr := New(config.TriggerConfig{Debounce: 30 * time.Millisecond, Cooldown: 0}, f.fire, nil)
	defer tr.Close()

	for i := 0; i < 10; i++ {
		tr.Signal("p1")
	}

	deadline := time.After(2 * time.Second)
	for f.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("trigger never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	// Allow a second spurious firing time to appear.
	time.Sleep(60 * time.Millisecond)
	if n := f.count(); n != 1 {
		t.Errorf("firings = %d, want 1 for a single burst", n)
	}
}

func TestTrigger_CooldownSpacesAttempts(t *testing.T) {
	f := &firings{}
	tr := New(config.TriggerConfig{Debounce: 5 * time.Millisecond, Cooldown: 250 * time.Millisecond}, f.fire, nil)
	defer tr.Close()

	tr.Signal("p1")
	deadline := time.After(2 * time.Second)
	for f.count() == 0 {
		select {
		case <-deadline:
			t.Fatal("first firing never happened")
		case <-time.After(2 * time.Millisecond):
		}
	}

	// Immediately signal again: the cooldown must hold this one back.
	tr.Signal("p1")
	time.Sleep(50 * time.Millisecond)
	if n := f.count(); n != 1 {
		t.Errorf("firings = %d during cooldown, want 1", n)
	}

	for f.count() < 2 {
		select {
		case <-deadline:
			t.Fatal("second firing never happened after cooldown")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestTrigger_ProjectsIndependent(t *testing.T) {
	f := &firings{}
	tr := New(config.TriggerConfig{Debounce: 10 * time.Millisecond, Cooldown: 0}, f.fire, nil)
	defer tr.Close()

	tr.Signal("p1")
	tr.Signal("p2")

	deadline := time.After(2 * time.Second)
	for f.count() < 2 {
		select {
		case <-deadline:
			t.Fatalf("firings = %d, want 2", f.count())
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTrigger_FlushFiresImmediately(t *testing.T) {
	f := &firings{}
	tr := New(config.TriggerConfig{Debounce: time.Hour, Cooldown: time.Hour}, f.fire, nil)
	defer tr.Close()

	tr.Signal("p1")
	tr.Flush("p1")

	if f.count() != 1 {
		t.Errorf("firings = %d after flush, want 1", f.count())
	}

	// Nothing pending: flush is a no-op.
	tr.Flush("p1")
	if f.count() != 1 {
		t.Errorf("firings = %d after empty flush, want 1", f.count())
	}
}

func TestTrigger_CloseStopsFiring(t *testing.T) {
	f := &firings{}
	tr := New(config.TriggerConfig{Debounce: 10 * time.Millisecond, Cooldown: 0}, f.fire, nil)

	tr.Signal("p1")
	tr.Close()
	tr.Signal("p2")

	time.Sleep(50 * time.Millisecond)
	if f.count() != 0 {
		t.Errorf("firings = %d after close, want 0", f.count())
	}
}
