package models

import "time"

// WorkflowStep is one phase of the project generation workflow.
type WorkflowStep string

const (
	StepPlan     WorkflowStep = "plan"
	StepWrite    WorkflowStep = "write"
	StepSandbox  WorkflowStep = "sandbox_start"
	StepBuild    WorkflowStep = "build"
	StepFix      WorkflowStep = "fix"
	StepVerify   WorkflowStep = "verify"
	StepDocument WorkflowStep = "document"
)

// WorkflowContext is the per-run record of a workflow execution. It is
// created at workflow start, mutated as steps execute, and finalized when
// the run completes, fails or is cancelled.
type WorkflowContext struct {
	ProjectID   string       `json:"project_id"`
	WorkflowID  string       `json:"workflow_id"`
	UserID      string       `json:"user_id,omitempty"`
	Request     string       `json:"request"`
	CurrentStep WorkflowStep `json:"current_step,omitempty"`

	Plan          string   `json:"plan,omitempty"`
	FilesCreated  []string `json:"files_created,omitempty"`
	FilesModified []string `json:"files_modified,omitempty"`
	Errors        []string `json:"errors,omitempty"`
	FixAttempts   int      `json:"fix_attempts"`

	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Finalize sets CompletedAt if it has not been set already.
func (c *WorkflowContext) Finalize(at time.Time) {
	if c.CompletedAt == nil {
		t := at
		c.CompletedAt = &t
	}
}
