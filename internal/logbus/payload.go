package logbus

import (
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/project"
	"github.com/bharatbuild/buildfix/internal/rebuild"
)

const (
	// boltErrorsPerSource caps how many errors per source the bolt
	// payload rebuilds.
	boltErrorsPerSource = 10

	// boltStackTraces caps how many recent traces the bolt payload
	// carries.
	boltStackTraces = 5

	// recentLogsPerSource caps the recent-log slices in the plain payload.
	recentLogsPerSource = 20
)

// FixerPayload is the plain aggregate snapshot of a bus's state.
type FixerPayload struct {
	ProjectID     string                               `json:"project_id"`
	BrowserErrors []models.LogEntry                    `json:"browser_errors"`
	BuildErrors   []models.LogEntry                    `json:"build_errors"`
	BackendErrors []models.LogEntry                    `json:"backend_errors"`
	NetworkErrors []models.LogEntry                    `json:"network_errors"`
	DockerErrors  []models.LogEntry                    `json:"docker_errors"`
	StackTraces   []models.StackTrace                  `json:"stack_traces"`
	ErrorFiles    []string                             `json:"error_files"`
	RecentLogs    map[models.LogSource][]models.LogEntry `json:"recent_logs"`
}

// GetFixerPayload snapshots all errors by source, every parsed stack
// trace, every referenced file, and the recent logs per source.
func (b *Bus) GetFixerPayload() FixerPayload {
	p := FixerPayload{
		ProjectID:     b.projectID,
		BrowserErrors: b.GetErrors(models.SourceBrowser),
		BuildErrors:   b.GetErrors(models.SourceBuild),
		BackendErrors: b.GetErrors(models.SourceBackend),
		NetworkErrors: b.GetErrors(models.SourceNetwork),
		DockerErrors:  b.GetErrors(models.SourceDocker),
		StackTraces:   b.GetStackTraces(),
		ErrorFiles:    b.GetErrorFiles(),
		RecentLogs:    make(map[models.LogSource][]models.LogEntry),
	}
	for src, entries := range b.GetAllLogs() {
		if len(entries) > recentLogsPerSource {
			entries = entries[len(entries)-recentLogsPerSource:]
		}
		p.RecentLogs[src] = entries
	}
	return p
}

// RebuiltError is one error after reconstruction for the bolt payload.
type RebuiltError struct {
	Source models.LogSource     `json:"source"`
	Error  models.DetectedError `json:"error"`
}

// BoltFixerPayload is the canonical artifact handed to an LLM-based
// fixer: rebuilt errors, project file context, detected environment, and
// recent stack traces.
type BoltFixerPayload struct {
	ProjectID    string               `json:"project_id"`
	Command      string               `json:"command,omitempty"`
	PrimaryError string               `json:"primary_error"`
	Errors       []RebuiltError       `json:"errors"`
	Files        []models.FileContext `json:"files"`
	Environment  models.Environment   `json:"environment"`
	StackTraces  []models.StackTrace  `json:"stack_traces"`
	ErrorFiles   []string             `json:"error_files"`
}

// GetBoltFixerPayload builds the LLM escalation payload for the project
// at projectPath. Each source's last errors pass through the rebuilder so
// the consumer sees reconstructed stacks, never truncated ones. The
// primary error is the explicit errorMessage override when given, else
// the first rebuilt error, else "Unknown error".
func (b *Bus) GetBoltFixerPayload(projectPath, command, errorMessage string, rb *rebuild.Rebuilder) BoltFixerPayload {
	p := BoltFixerPayload{
		ProjectID:   b.projectID,
		Command:     command,
		Environment: project.DetectEnvironment(projectPath),
		ErrorFiles:  b.GetErrorFiles(),
	}

	for _, src := range allSources {
		errors := b.GetErrors(src)
		if len(errors) > boltErrorsPerSource {
			errors = errors[len(errors)-boltErrorsPerSource:]
		}
		for _, e := range errors {
			raw := e.Message
			if e.Stack != "" {
				raw += "\n" + e.Stack
			}
			var context map[string]string
			if e.File != "" {
				context = map[string]string{"file": e.File}
			}
			p.Errors = append(p.Errors, RebuiltError{
				Source: src,
				Error:  rb.Rebuild(raw, context),
			})
		}
	}

	traces := b.GetStackTraces()
	if len(traces) > boltStackTraces {
		traces = traces[len(traces)-boltStackTraces:]
	}
	p.StackTraces = traces

	p.Files = project.CollectFileContext(projectPath, p.ErrorFiles)

	switch {
	case errorMessage != "":
		p.PrimaryError = errorMessage
	case len(p.Errors) > 0:
		p.PrimaryError = p.Errors[0].Error.Message
	default:
		p.PrimaryError = "Unknown error"
	}
	return p
}
