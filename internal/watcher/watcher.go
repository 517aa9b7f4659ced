// Package watcher notices manual edits in a project directory. A user
// editing source by hand is the signal that the fixer's retry budget
// should start over.
package watcher

import (
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/bharatbuild/buildfix/internal/project"
)

// ResetFunc is called once per detected manual edit burst.
type ResetFunc func(projectID string)

// Watcher watches one project directory and calls reset when project
// files change. Events inside vendor directories are ignored, and bursts
// of writes are debounced into a single reset.
type Watcher struct {
	projectID string
	root      string
	reset     ResetFunc
	debounce  time.Duration
	logger    *slog.Logger

	fsw *fsnotify.Watcher

	mu     sync.Mutex
	timer  *time.Timer
	closed bool
	done   chan struct{}
}

// New creates a Watcher over the project root. Subdirectories present at
// start are watched recursively; vendor directories are skipped.
func New(projectID, root string, debounce time.Duration, reset ResetFunc, logger *slog.Logger) (*Watcher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		projectID: projectID,
		root:      root,
		reset:     reset,
		debounce:  debounce,
		logger:    logger.With("project_id", projectID),
		fsw:       fsw,
		done:      make(chan struct{}),
	}

	if err := w.addRecursive(root); err != nil {
		fsw.Close()
		return nil, err
	}

	go w.loop()
	return w, nil
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		if rel != "." && (project.Excluded(rel+"/x") || strings.HasPrefix(filepath.Base(path), ".")) {
			return filepath.SkipDir
		}
		return w.fsw.Add(path)
	})
}

func (w *Watcher) loop() {
	defer close(w.done)

	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	rel, err := filepath.Rel(w.root, event.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	if project.Excluded(rel) || strings.HasPrefix(filepath.Base(rel), ".") {
		return
	}

	// New directories need watching too.
	if event.Op&fsnotify.Create != 0 {
		if fi, statErr := os.Stat(event.Name); statErr == nil && fi.IsDir() {
			w.fsw.Add(event.Name)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("manual edit detected, resetting fix retries", "file", rel)
		w.reset(w.projectID)
	})
}

// Close stops watching. Pending debounced resets are cancelled.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	if w.timer != nil {
		w.timer.Stop()
		w.timer = nil
	}
	w.mu.Unlock()

	err := w.fsw.Close()
	<-w.done
	return err
}
