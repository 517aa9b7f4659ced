package fixer

import (
	"log/slog"
	"sync"

	"github.com/bharatbuild/buildfix/internal/sandbox"
)

// Registry hands out one Fixer per project+user pair, creating them
// lazily with shared dependencies.
type Registry struct {
	classifier Classifier
	rules      RuleSource
	executor   sandbox.Executor
	logger     *slog.Logger

	mu     sync.Mutex
	fixers map[string]*Fixer
}

// NewRegistry creates a Registry. The classifier, rules, and executor are
// shared by every Fixer it creates.
func NewRegistry(classifier Classifier, rules RuleSource, executor sandbox.Executor, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		classifier: classifier,
		rules:      rules,
		executor:   executor,
		logger:     logger,
		fixers:     make(map[string]*Fixer),
	}
}

// Get returns the Fixer for the project+user pair, creating it on first
// use. projectPath is only consulted at creation time.
func (r *Registry) Get(projectID, userID, projectPath string) *Fixer {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := projectID + "|" + userID
	if f, ok := r.fixers[key]; ok {
		return f
	}
	f := New(projectID, userID, projectPath, r.classifier, r.rules, r.executor, r.logger)
	r.fixers[key] = f
	return f
}

// Reset clears the retry count for the project+user pair if a fixer
// exists. Safe to call for unknown pairs.
func (r *Registry) Reset(projectID, userID string) {
	r.mu.Lock()
	f, ok := r.fixers[projectID+"|"+userID]
	r.mu.Unlock()
	if ok {
		f.ResetRetryCount()
	}
}

// ResetProject clears the retry count for every fixer belonging to the
// project, regardless of user.
func (r *Registry) ResetProject(projectID string) {
	r.mu.Lock()
	var matched []*Fixer
	for _, f := range r.fixers {
		if f.projectID == projectID {
			matched = append(matched, f)
		}
	}
	r.mu.Unlock()
	for _, f := range matched {
		f.ResetRetryCount()
	}
}

// Dispose drops the fixer for the project+user pair.
func (r *Registry) Dispose(projectID, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.fixers, projectID+"|"+userID)
}
