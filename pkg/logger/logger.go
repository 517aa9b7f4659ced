// Package logger provides structured logging using slog with request context support.
package logger

import (
	"context"
	"log/slog"
	"os"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RequestIDKey is the context key for request ID.
	RequestIDKey contextKey = "request_id"
	// ProjectIDKey is the context key for project ID.
	ProjectIDKey contextKey = "project_id"
	// WorkflowIDKey is the context key for workflow ID.
	WorkflowIDKey contextKey = "workflow_id"
)

// Logger wraps slog.Logger with additional context-aware methods.
type Logger struct {
	*slog.Logger
}

// New creates a new Logger with the specified level and format.
func New(level slog.Level, json bool) *Logger {
	var handler slog.Handler

	opts := &slog.HandlerOptions{
		Level:     level,
		AddSource: level == slog.LevelDebug,
	}

	if json {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	return &Logger{
		Logger: slog.New(handler),
	}
}

// Default creates a logger with default settings (INFO level, JSON format).
func Default() *Logger {
	return New(slog.LevelInfo, true)
}

// WithContext returns a new Logger with fields extracted from the context.
func (l *Logger) WithContext(ctx context.Context) *Logger {
	logger := l.Logger

	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		logger = logger.With("request_id", requestID)
	}

	if projectID, ok := ctx.Value(ProjectIDKey).(string); ok && projectID != "" {
		logger = logger.With("project_id", projectID)
	}

	if workflowID, ok := ctx.Value(WorkflowIDKey).(string); ok && workflowID != "" {
		logger = logger.With("workflow_id", workflowID)
	}

	return &Logger{Logger: logger}
}

// WithProject returns a new Logger with the project ID field.
func (l *Logger) WithProject(projectID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("project_id", projectID),
	}
}

// WithWorkflow returns a new Logger with the workflow ID field.
func (l *Logger) WithWorkflow(workflowID string) *Logger {
	return &Logger{
		Logger: l.Logger.With("workflow_id", workflowID),
	}
}

// WithComponent returns a new Logger with the component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
	}
}
