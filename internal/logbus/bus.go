// Package logbus collects a project's runtime logs from every source
// (browser, build, backend, network, docker) into bounded buffers and
// turns them into fixer payloads.
package logbus

import (
	"log/slog"
	"sync"
	"time"

	"github.com/bharatbuild/buildfix/internal/models"
)

const (
	// maxLogsPerSource bounds each source's buffer; the oldest entries
	// are trimmed first.
	maxLogsPerSource = 50

	// maxStackTraces bounds the parsed stack trace history.
	maxStackTraces = 20

	// retention is how long entries live before CleanupOldLogs drops them.
	retention = 30 * time.Minute
)

// Bus is one project's log collector. All methods are safe for
// concurrent use; a single add is atomic with its side effects
// (file-reference extraction and stack parsing).
type Bus struct {
	projectID string
	logger    *slog.Logger

	mu          sync.Mutex
	logs        map[models.LogSource][]models.LogEntry
	errorFiles  map[string]bool
	stackTraces []models.StackTrace
}

// New creates a Bus for one project.
func New(projectID string, logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		projectID:  projectID,
		logger:     logger.With("project_id", projectID),
		logs:       make(map[models.LogSource][]models.LogEntry),
		errorFiles: make(map[string]bool),
	}
}

// AddLog records one entry. Unknown sources are coerced to backend,
// unknown levels to info. A zero timestamp is stamped with the current
// time. File references embedded in the message are extracted, and a
// stack string is parsed into structured frames.
func (b *Bus) AddLog(entry models.LogEntry) {
	entry.Source = models.ParseLogSource(string(entry.Source))
	entry.Level = models.ParseLogLevel(string(entry.Level))
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	buf := append(b.logs[entry.Source], entry)
	if len(buf) > maxLogsPerSource {
		buf = buf[len(buf)-maxLogsPerSource:]
	}
	b.logs[entry.Source] = buf

	if entry.File != "" {
		b.recordErrorFile(entry.File)
	}
	for _, ref := range extractFileReferences(entry.Message) {
		b.recordErrorFile(ref)
	}

	if entry.Stack != "" {
		trace := parseStackTrace(entry.Source, entry.Message, entry.Stack, entry.Timestamp)
		if len(trace.Frames) > 0 {
			b.stackTraces = append(b.stackTraces, trace)
			if len(b.stackTraces) > maxStackTraces {
				b.stackTraces = b.stackTraces[len(b.stackTraces)-maxStackTraces:]
			}
			for _, frame := range trace.Frames {
				b.recordErrorFile(frame.File)
			}
		}
	}
}

// recordErrorFile stores the path unless it sits in a vendor directory.
// Caller holds the lock.
func (b *Bus) recordErrorFile(path string) {
	if path == "" || isVendorPath(path) {
		return
	}
	b.errorFiles[path] = true
}

// AddBrowserError records a browser console error with its origin
// position and stack.
func (b *Bus) AddBrowserError(message, file string, line, column int, stack string) {
	b.AddLog(models.LogEntry{
		Source:  models.SourceBrowser,
		Level:   models.LevelError,
		Message: message,
		File:    file,
		Line:    line,
		Column:  column,
		Stack:   stack,
	})
}

// AddBuildError records a compiler or bundler error.
func (b *Bus) AddBuildError(message string) {
	b.AddLog(models.LogEntry{
		Source:  models.SourceBuild,
		Level:   models.LevelError,
		Message: message,
	})
}

// AddBackendError records a server-side error with its stack.
func (b *Bus) AddBackendError(message, stack string) {
	b.AddLog(models.LogEntry{
		Source:  models.SourceBackend,
		Level:   models.LevelError,
		Message: message,
		Stack:   stack,
	})
}

// AddNetworkError records a failed request.
func (b *Bus) AddNetworkError(message, url, method string, status int) {
	b.AddLog(models.LogEntry{
		Source:  models.SourceNetwork,
		Level:   models.LevelError,
		Message: message,
		URL:     url,
		Method:  method,
		Status:  status,
	})
}

// AddDockerLog records container output at the given level.
func (b *Bus) AddDockerLog(level models.LogLevel, message string) {
	b.AddLog(models.LogEntry{
		Source:  models.SourceDocker,
		Level:   level,
		Message: message,
	})
}

// GetErrors returns error-level entries. With no sources given it spans
// all sources; otherwise only the named ones.
func (b *Bus) GetErrors(sources ...models.LogSource) []models.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(sources) == 0 {
		sources = allSources
	}
	var out []models.LogEntry
	for _, src := range sources {
		for _, e := range b.logs[src] {
			if e.IsError() {
				out = append(out, e)
			}
		}
	}
	return out
}

// GetAllLogs returns a copy of every source's buffer.
func (b *Bus) GetAllLogs() map[models.LogSource][]models.LogEntry {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make(map[models.LogSource][]models.LogEntry, len(b.logs))
	for src, entries := range b.logs {
		cp := make([]models.LogEntry, len(entries))
		copy(cp, entries)
		out[src] = cp
	}
	return out
}

// GetErrorFiles returns every file path referenced by recorded errors.
func (b *Bus) GetErrorFiles() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]string, 0, len(b.errorFiles))
	for f := range b.errorFiles {
		out = append(out, f)
	}
	return out
}

// GetStackTraces returns a copy of the parsed stack trace history, oldest
// first.
func (b *Bus) GetStackTraces() []models.StackTrace {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]models.StackTrace, len(b.stackTraces))
	copy(out, b.stackTraces)
	return out
}

// CleanupOldLogs drops entries and stack traces older than the
// retention window and returns how many entries were removed. The
// referenced-files set is rebuilt from what survives so it cannot grow
// without bound on a long-lived bus.
func (b *Bus) CleanupOldLogs() int {
	cutoff := time.Now().Add(-retention)

	b.mu.Lock()
	defer b.mu.Unlock()

	removed := 0
	for src, entries := range b.logs {
		kept := entries[:0]
		for _, e := range entries {
			if e.Timestamp.After(cutoff) {
				kept = append(kept, e)
			} else {
				removed++
			}
		}
		b.logs[src] = kept
	}

	tracesBefore := len(b.stackTraces)
	keptTraces := b.stackTraces[:0]
	for _, trace := range b.stackTraces {
		if trace.Timestamp.After(cutoff) {
			keptTraces = append(keptTraces, trace)
		}
	}
	b.stackTraces = keptTraces

	if removed > 0 || len(b.stackTraces) < tracesBefore {
		b.rebuildErrorFiles()
		b.logger.Debug("cleaned up old logs", "removed", removed)
	}
	return removed
}

// rebuildErrorFiles recomputes the referenced-files set from the
// surviving entries and traces. Caller holds the lock.
func (b *Bus) rebuildErrorFiles() {
	b.errorFiles = make(map[string]bool)
	for _, entries := range b.logs {
		for _, e := range entries {
			if e.File != "" {
				b.recordErrorFile(e.File)
			}
			for _, ref := range extractFileReferences(e.Message) {
				b.recordErrorFile(ref)
			}
		}
	}
	for _, trace := range b.stackTraces {
		for _, frame := range trace.Frames {
			b.recordErrorFile(frame.File)
		}
	}
}

// Clear drops all state.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logs = make(map[models.LogSource][]models.LogEntry)
	b.errorFiles = make(map[string]bool)
	b.stackTraces = nil
}

var allSources = []models.LogSource{
	models.SourceBrowser,
	models.SourceBuild,
	models.SourceBackend,
	models.SourceNetwork,
	models.SourceDocker,
}
