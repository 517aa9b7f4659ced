// Package fixer drives the classify → rule-fix → apply → retry loop for a
// single project's terminal errors.
package fixer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/bharatbuild/buildfix/internal/classify"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/sandbox"
)

// MaxRetries caps successful fix applications per project before the
// fixer gives up and requires an external reset.
const MaxRetries = 3

// Classifier is the classification dependency.
type Classifier interface {
	Classify(output string) []models.TerminalError
}

// RuleSource is the rule-based fix dependency.
type RuleSource interface {
	GetFix(e *models.TerminalError) *models.TerminalFix
}

// Result is the outcome of one AnalyzeAndFix call.
type Result struct {
	// RetryAllowed is false once the retry cap is reached; nothing was
	// attempted and nothing will be until an external reset.
	RetryAllowed bool `json:"retry_allowed"`

	// NeedsAI signals escalation: classification missed, no rule applied,
	// the rule itself required AI, or applying the fix failed.
	NeedsAI bool `json:"needs_ai"`

	// Applied is true when a fix was applied successfully.
	Applied bool `json:"applied"`

	// Fix is the rule-based fix considered, applied or not. Present even
	// on escalation so the escalation payload has context.
	Fix *models.TerminalFix `json:"fix,omitempty"`

	// Primary is the error acted on.
	Primary *models.TerminalError `json:"primary,omitempty"`

	// Errors is the full classified set.
	Errors []models.TerminalError `json:"errors,omitempty"`

	// Message is a human-readable summary.
	Message string `json:"message,omitempty"`

	// RetryCount is the retry counter after this call.
	RetryCount int `json:"retry_count"`
}

// Fixer is the per project+user fix state machine. All methods are safe
// for concurrent use.
type Fixer struct {
	projectID   string
	userID      string
	projectPath string

	classifier Classifier
	rules      RuleSource
	executor   sandbox.Executor
	logger     *slog.Logger

	mu         sync.Mutex
	retryCount int
	history    []models.TerminalFix
}

// New creates a Fixer for one project+user pair.
func New(projectID, userID, projectPath string, classifier Classifier, rules RuleSource, executor sandbox.Executor, logger *slog.Logger) *Fixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fixer{
		projectID:   projectID,
		userID:      userID,
		projectPath: projectPath,
		classifier:  classifier,
		rules:       rules,
		executor:    executor,
		logger:      logger.With("project_id", projectID),
	}
}

// AnalyzeAndFix classifies the error output, picks the primary error,
// applies the rule-based fix if one exists, and reports the outcome.
// Failures never surface as errors from this layer; they surface as
// NeedsAI in the result.
func (f *Fixer) AnalyzeAndFix(ctx context.Context, errorOutput string, exitCode int, command string) *Result {
	f.mu.Lock()
	defer f.mu.Unlock()

	// Retry exhaustion short-circuits before any classification work.
	if f.retryCount >= MaxRetries {
		return &Result{
			RetryAllowed: false,
			RetryCount:   f.retryCount,
			Message:      fmt.Sprintf("automatic fixing gave up after %d attempts; reset after a manual edit to continue", MaxRetries),
		}
	}

	errors := f.classifier.Classify(errorOutput)
	if len(errors) == 0 {
		return &Result{
			RetryAllowed: true,
			NeedsAI:      true,
			RetryCount:   f.retryCount,
			Message:      "no known error pattern matched; escalating",
		}
	}

	primary := classify.PrimaryError(errors)
	result := &Result{
		RetryAllowed: true,
		Primary:      primary,
		Errors:       errors,
		RetryCount:   f.retryCount,
	}

	fix := f.rules.GetFix(primary)
	if fix == nil {
		result.NeedsAI = true
		result.Message = fmt.Sprintf("no rule for %s/%s; escalating", primary.Category, primary.RootCause)
		return result
	}
	result.Fix = fix

	if fix.RequiresAI {
		result.NeedsAI = true
		result.Message = fix.Description
		return result
	}

	if err := f.apply(ctx, fix); err != nil {
		f.logger.Warn("fix application failed",
			"fix_type", fix.Type,
			"error", err,
		)
		result.NeedsAI = true
		result.Message = fmt.Sprintf("applying fix failed: %v", err)
		return result
	}

	f.retryCount++
	f.history = append(f.history, *fix)
	result.Applied = true
	result.RetryCount = f.retryCount
	result.Message = fix.Description

	f.logger.Info("applied rule-based fix",
		"fix_type", fix.Type,
		"retry_count", f.retryCount,
		"description", fix.Description,
	)
	return result
}

// apply executes a fix. Command and file-edit fixes act on the sandbox;
// port-change and info fixes are metadata and always succeed.
func (f *Fixer) apply(ctx context.Context, fix *models.TerminalFix) error {
	switch fix.Type {
	case models.FixTypeCommand:
		result, err := f.executor.RunCommand(ctx, fix.Command, f.projectPath)
		if err != nil {
			return err
		}
		if !result.Success() {
			return fmt.Errorf("command exited with code %d: %s", result.ExitCode, truncate(result.Stderr, 300))
		}
		return nil

	case models.FixTypeFileEdit:
		path := fix.FilePath
		if !filepath.IsAbs(path) {
			path = filepath.Join(f.projectPath, path)
		}
		return f.executor.WriteFile(ctx, path, []byte(fix.FileContent))

	case models.FixTypePortChange, models.FixTypeEnvSet, models.FixTypeInfo:
		// Recorded, not executed. Port changes are advisory; env and info
		// fixes carry no safe local action.
		return nil

	default:
		return fmt.Errorf("unknown fix type %q", fix.Type)
	}
}

// ResetRetryCount returns the fixer to its initial state. Called when the
// user signals a manual edit.
func (f *Fixer) ResetRetryCount() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retryCount = 0
	f.logger.Info("fix retry count reset")
}

// RetryCount returns the current retry counter.
func (f *Fixer) RetryCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.retryCount
}

// History returns a copy of the applied fixes, in application order.
func (f *Fixer) History() []models.TerminalFix {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]models.TerminalFix, len(f.history))
	copy(out, f.history)
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
