package models

import "time"

// FixJobStatus represents the state of a queued fix job.
type FixJobStatus string

const (
	FixJobPending    FixJobStatus = "pending"
	FixJobProcessing FixJobStatus = "processing"
	FixJobDone       FixJobStatus = "done"
	FixJobFailed     FixJobStatus = "failed"
)

// FixJob is a queued request to run the terminal fix loop for a project.
type FixJob struct {
	ID          string       `json:"id"`
	ProjectID   string       `json:"project_id"`
	UserID      string       `json:"user_id,omitempty"`
	ProjectPath string       `json:"project_path"`
	Command     string       `json:"command,omitempty"`
	ErrorOutput string       `json:"error_output"`
	ExitCode    int          `json:"exit_code"`
	Status      FixJobStatus `json:"status"`
	RetryCount  int          `json:"retry_count"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
}
