package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/pkg/config"
)

// ErrWorkflowRunning is returned when a project already has an active
// workflow.
var ErrWorkflowRunning = errors.New("workflow already running for project")

// ErrWorkflowNotFound is returned when no workflow exists for the
// project.
var ErrWorkflowNotFound = errors.New("no workflow for project")

// Run is one live workflow: its orchestrator, context record, and cancel
// handle.
type Run struct {
	Orchestrator *Orchestrator
	Context      *models.WorkflowContext
	cancel       context.CancelFunc
	done         chan struct{}
}

// Done is closed when the workflow finishes for any reason.
func (r *Run) Done() <-chan struct{} { return r.done }

// Registry owns at most one running workflow per project.
type Registry struct {
	cfg    config.WorkflowConfig
	collab Collaborators
	broker *events.Broker
	logger *slog.Logger

	mu   sync.Mutex
	runs map[string]*Run
}

// NewRegistry creates a Registry. Workflows it starts share the broker
// and collaborators.
func NewRegistry(cfg config.WorkflowConfig, collab Collaborators, broker *events.Broker, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		cfg:    cfg,
		collab: collab,
		broker: broker,
		logger: logger,
		runs:   make(map[string]*Run),
	}
}

// Start launches a workflow for the project in a background goroutine.
// Only one workflow may run per project at a time.
func (r *Registry) Start(ctx context.Context, projectID, userID, request string) (*Run, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.runs[projectID]; ok {
		select {
		case <-existing.done:
			// finished, replaceable
		default:
			return nil, ErrWorkflowRunning
		}
	}

	wc := &models.WorkflowContext{
		ProjectID:  projectID,
		WorkflowID: uuid.NewString(),
		UserID:     userID,
		Request:    request,
		StartedAt:  time.Now(),
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &Run{
		Orchestrator: New(r.cfg, r.collab, r.broker, r.logger.With("workflow_id", wc.WorkflowID)),
		Context:      wc,
		cancel:       cancel,
		done:         make(chan struct{}),
	}
	r.runs[projectID] = run

	go func() {
		defer cancel()
		defer close(run.done)

		if err := run.Orchestrator.ExecuteWorkflow(runCtx, wc); err != nil {
			r.logger.Error("workflow finished with error",
				"project_id", projectID,
				"workflow_id", wc.WorkflowID,
				"error", err,
			)
		}
	}()

	return run, nil
}

// Cancel requests cooperative cancellation of the project's workflow.
func (r *Registry) Cancel(projectID string) error {
	r.mu.Lock()
	run, ok := r.runs[projectID]
	r.mu.Unlock()
	if !ok {
		return ErrWorkflowNotFound
	}
	run.cancel()
	return nil
}

// Get returns the project's current run, live or finished.
func (r *Registry) Get(projectID string) (*Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	run, ok := r.runs[projectID]
	return run, ok
}

// Dispose forgets the project's run, cancelling it if still live.
func (r *Registry) Dispose(projectID string) {
	r.mu.Lock()
	run, ok := r.runs[projectID]
	delete(r.runs, projectID)
	r.mu.Unlock()
	if ok {
		run.cancel()
	}
}
