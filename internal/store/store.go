// Package store provides the workflow-run audit trail: runs, their
// emitted events, and fix attempts. The pipeline only writes to it;
// nothing in the fix path reads it back.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/models"
)

// ErrRunNotFound is returned when a workflow run cannot be found.
var ErrRunNotFound = errors.New("workflow run not found")

// RunRecord is the stored summary of one workflow run.
type RunRecord struct {
	WorkflowID  string     `json:"workflow_id"`
	ProjectID   string     `json:"project_id"`
	UserID      string     `json:"user_id,omitempty"`
	Request     string     `json:"request"`
	FinalState  string     `json:"final_state,omitempty"`
	FixAttempts int        `json:"fix_attempts"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// FixAttemptRecord is one stored fix attempt.
type FixAttemptRecord struct {
	ProjectID  string            `json:"project_id"`
	WorkflowID string            `json:"workflow_id,omitempty"`
	Category   string            `json:"category"`
	Fix        models.TerminalFix `json:"fix"`
	Applied    bool              `json:"applied"`
	NeedsAI    bool              `json:"needs_ai"`
	CreatedAt  time.Time         `json:"created_at"`
}

// Store defines the audit trail operations.
type Store interface {
	// CreateRun records the start of a workflow run.
	CreateRun(ctx context.Context, run *RunRecord) error

	// FinishRun records the final state and completion time of a run.
	FinishRun(ctx context.Context, workflowID, finalState string, completedAt time.Time) error

	// GetRun retrieves a run by workflow ID.
	GetRun(ctx context.Context, workflowID string) (*RunRecord, error)

	// ListRuns retrieves a project's runs, newest first.
	ListRuns(ctx context.Context, projectID string, limit int) ([]*RunRecord, error)

	// RecordEvent appends one workflow event to a run's history.
	RecordEvent(ctx context.Context, event events.Event) error

	// ListEvents retrieves a workflow's events in emission order.
	ListEvents(ctx context.Context, workflowID string) ([]events.Event, error)

	// RecordFixAttempt appends one fix attempt.
	RecordFixAttempt(ctx context.Context, attempt *FixAttemptRecord) error

	// Close releases the store's resources.
	Close() error
}
