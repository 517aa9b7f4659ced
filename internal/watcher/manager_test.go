package watcher

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestManagerWatchAndReset(t *testing.T) {
	dir := t.TempDir()
	var resets atomic.Int32
	m := NewManager(20*time.Millisecond, func(projectID string) {
		if projectID == "proj-1" {
			resets.Add(1)
		}
	}, nil)
	defer m.Close()

	if err := m.Watch("proj-1", dir); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if !m.Watching("proj-1") {
		t.Fatal("project not reported as watched")
	}

	if err := os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main"), 0o644); err != nil {
		t.Fatalf("writing file: %v", err)
	}

	deadline := time.After(2 * time.Second)
	for resets.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("reset never fired")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerUnwatch(t *testing.T) {
	dir := t.TempDir()
	m := NewManager(20*time.Millisecond, func(string) {}, nil)
	defer m.Close()

	if err := m.Watch("proj-1", dir); err != nil {
		t.Fatalf("watch: %v", err)
	}
	if err := m.Unwatch("proj-1"); err != nil {
		t.Fatalf("unwatch: %v", err)
	}
	if m.Watching("proj-1") {
		t.Error("project still reported as watched")
	}
	if err := m.Unwatch("proj-1"); err != ErrNotWatching {
		t.Errorf("second unwatch error = %v, want ErrNotWatching", err)
	}
}

func TestManagerRewatchReplacesWatcher(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	var resets atomic.Int32
	m := NewManager(20*time.Millisecond, func(string) { resets.Add(1) }, nil)
	defer m.Close()

	if err := m.Watch("proj-1", dirA); err != nil {
		t.Fatalf("watch a: %v", err)
	}
	if err := m.Watch("proj-1", dirB); err != nil {
		t.Fatalf("watch b: %v", err)
	}

	// Writes to the old root no longer fire.
	os.WriteFile(filepath.Join(dirA, "old.go"), []byte("x"), 0o644)
	time.Sleep(100 * time.Millisecond)
	if n := resets.Load(); n != 0 {
		t.Errorf("resets after old-root write = %d, want 0", n)
	}

	os.WriteFile(filepath.Join(dirB, "new.go"), []byte("x"), 0o644)
	deadline := time.After(2 * time.Second)
	for resets.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("reset never fired for new root")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManagerWatchMissingDirFails(t *testing.T) {
	m := NewManager(20*time.Millisecond, func(string) {}, nil)
	defer m.Close()

	if err := m.Watch("proj-1", "/definitely/not/a/real/path"); err == nil {
		t.Error("expected an error watching a missing directory")
	}
}
