// Package events defines the workflow event stream and an in-process
// broker that fans events out to subscribers (SSE handlers, the audit
// store, tests).
package events

import "time"

// Type identifies a workflow event.
type Type string

const (
	TypeStatus           Type = "STATUS"
	TypeFileCreated      Type = "FILE_CREATED"
	TypeBuildStarted     Type = "BUILD_STARTED"
	TypeBuildCompleted   Type = "BUILD_COMPLETED"
	TypeBuildFailed      Type = "BUILD_FAILED"
	TypeFixCompleted     Type = "FIX_COMPLETED"
	TypeProjectStarted   Type = "PROJECT_STARTED"
	TypeProjectComplete  Type = "PROJECT_COMPLETE"
	TypeProjectFailed    Type = "PROJECT_FAILED"
	TypeProjectCancelled Type = "PROJECT_CANCELLED"
)

// Event is one entry in a project's workflow stream.
type Event struct {
	Type       Type           `json:"type"`
	ProjectID  string         `json:"project_id"`
	WorkflowID string         `json:"workflow_id,omitempty"`
	Message    string         `json:"message,omitempty"`
	Step       string         `json:"step,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Timestamp  time.Time      `json:"timestamp"`
}

// Terminal reports whether the event ends its workflow.
func (e Event) Terminal() bool {
	switch e.Type {
	case TypeProjectComplete, TypeProjectFailed, TypeProjectCancelled:
		return true
	}
	return false
}
