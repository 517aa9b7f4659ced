// Package orchestrator drives the project generation workflow: plan,
// write, sandbox start, build with auto-fix, verify, document. Phases are
// gated by configuration and emit typed events through the broker; the
// orchestrator itself knows nothing about who consumes them.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/pkg/config"
)

// Planner produces a build plan from the user request.
type Planner interface {
	Plan(ctx context.Context, wc *models.WorkflowContext) (string, error)
}

// Writer materializes project files from the plan, returning the paths it
// created.
type Writer interface {
	WriteFiles(ctx context.Context, wc *models.WorkflowContext) ([]string, error)
}

// SandboxStarter brings up the project's sandbox (container or local
// process environment).
type SandboxStarter interface {
	Start(ctx context.Context, wc *models.WorkflowContext) error
}

// BuildResult is one build attempt's outcome.
type BuildResult struct {
	Success  bool
	ExitCode int
	Output   string
	Command  string
}

// Builder runs the project build.
type Builder interface {
	Build(ctx context.Context, wc *models.WorkflowContext) (*BuildResult, error)
}

// FixOutcome reports what the fix loop did with a failed build.
type FixOutcome struct {
	Applied     bool
	NeedsAI     bool
	Description string
	Metadata    map[string]any
}

// FixLoop attempts to repair a failed build. It is handed the failing
// build's output and must not retry the build itself.
type FixLoop interface {
	ExecuteFixLoop(ctx context.Context, wc *models.WorkflowContext, build *BuildResult) (*FixOutcome, error)
}

// Verifier checks the built project actually serves.
type Verifier interface {
	Verify(ctx context.Context, wc *models.WorkflowContext) error
}

// Documenter generates project documentation.
type Documenter interface {
	Document(ctx context.Context, wc *models.WorkflowContext) error
}

// Collaborators bundles the phase implementations. A nil collaborator
// disables its phase regardless of configuration.
type Collaborators struct {
	Planner    Planner
	Writer     Writer
	Sandbox    SandboxStarter
	Builder    Builder
	FixLoop    FixLoop
	Verifier   Verifier
	Documenter Documenter
}

// Orchestrator executes workflows one at a time per instance. Create one
// per run via the Registry.
type Orchestrator struct {
	cfg    config.WorkflowConfig
	collab Collaborators
	broker *events.Broker
	logger *slog.Logger

	mu    sync.Mutex
	state State
}

// New creates an Orchestrator in the IDLE state.
func New(cfg config.WorkflowConfig, collab Collaborators, broker *events.Broker, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:    cfg,
		collab: collab,
		broker: broker,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the current workflow state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// transition moves the state machine, publishing a STATUS event.
func (o *Orchestrator) transition(wc *models.WorkflowContext, to State) error {
	o.mu.Lock()
	from := o.state
	if !canTransition(from, to) {
		o.mu.Unlock()
		return &ErrInvalidTransition{From: from, To: to}
	}
	o.state = to
	o.mu.Unlock()

	o.logger.Info("workflow state changed",
		"workflow_id", wc.WorkflowID,
		"from", from,
		"to", to,
	)
	o.publish(wc, events.Event{
		Type:    events.TypeStatus,
		Message: string(to),
	})
	return nil
}

func (o *Orchestrator) publish(wc *models.WorkflowContext, e events.Event) {
	e.ProjectID = wc.ProjectID
	e.WorkflowID = wc.WorkflowID
	if e.Step == "" {
		e.Step = string(wc.CurrentStep)
	}
	o.broker.Publish(e)
}

// ExecuteWorkflow runs the configured phases in order. Cancellation is
// cooperative: the context is checked at every phase boundary. Any phase
// error transitions to FAILED, emits a terminal failure event, and is
// returned to the caller.
func (o *Orchestrator) ExecuteWorkflow(ctx context.Context, wc *models.WorkflowContext) (err error) {
	if wc.StartedAt.IsZero() {
		wc.StartedAt = time.Now()
	}

	o.publish(wc, events.Event{
		Type:    events.TypeProjectStarted,
		Message: wc.Request,
		Metadata: map[string]any{
			"user_id": wc.UserID,
		},
	})

	defer func() {
		if err == nil {
			return
		}
		wc.Errors = append(wc.Errors, err.Error())
		wc.Finalize(time.Now())

		if errors.Is(err, context.Canceled) {
			o.setAbsorbing(StateCancelled)
			o.publish(wc, events.Event{
				Type:    events.TypeProjectCancelled,
				Message: "workflow cancelled",
			})
			return
		}
		o.setAbsorbing(StateFailed)
		o.publish(wc, events.Event{
			Type:    events.TypeProjectFailed,
			Message: err.Error(),
		})
	}()

	if err := o.planPhase(ctx, wc); err != nil {
		return err
	}
	if err := o.writePhase(ctx, wc); err != nil {
		return err
	}
	if err := o.sandboxPhase(ctx, wc); err != nil {
		return err
	}
	if err := o.buildPhase(ctx, wc); err != nil {
		return err
	}
	if err := o.verifyPhase(ctx, wc); err != nil {
		return err
	}
	if err := o.documentPhase(ctx, wc); err != nil {
		return err
	}

	if err := o.transition(wc, StateDone); err != nil {
		return err
	}
	wc.CurrentStep = ""
	wc.Finalize(time.Now())
	o.publish(wc, events.Event{
		Type:    events.TypeProjectComplete,
		Message: "workflow complete",
	})
	return nil
}

// setAbsorbing forces the state to FAILED or CANCELLED without transition
// checks; both are reachable from anywhere.
func (o *Orchestrator) setAbsorbing(s State) {
	o.mu.Lock()
	if !o.state.Terminal() {
		o.state = s
	}
	o.mu.Unlock()
}

// checkpoint is the cooperative cancellation check at phase boundaries.
func checkpoint(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return context.Cause(ctx)
	default:
		return nil
	}
}

func (o *Orchestrator) planPhase(ctx context.Context, wc *models.WorkflowContext) error {
	if !o.cfg.EnablePlanning || o.collab.Planner == nil {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepPlan
	if err := o.transition(wc, StatePlanning); err != nil {
		return err
	}

	plan, err := o.collab.Planner.Plan(ctx, wc)
	if err != nil {
		return fmt.Errorf("planning: %w", err)
	}
	wc.Plan = plan
	return nil
}

func (o *Orchestrator) writePhase(ctx context.Context, wc *models.WorkflowContext) error {
	if !o.cfg.EnableWriting || o.collab.Writer == nil {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepWrite
	if err := o.transition(wc, StateWriting); err != nil {
		return err
	}

	created, err := o.collab.Writer.WriteFiles(ctx, wc)
	if err != nil {
		return fmt.Errorf("writing files: %w", err)
	}
	wc.FilesCreated = append(wc.FilesCreated, created...)
	for _, f := range created {
		o.publish(wc, events.Event{
			Type:    events.TypeFileCreated,
			Message: f,
		})
	}
	return nil
}

func (o *Orchestrator) sandboxPhase(ctx context.Context, wc *models.WorkflowContext) error {
	if !o.cfg.EnableSandbox || o.collab.Sandbox == nil {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepSandbox
	o.publish(wc, events.Event{
		Type:    events.TypeStatus,
		Message: "starting sandbox",
	})

	if err := o.collab.Sandbox.Start(ctx, wc); err != nil {
		return fmt.Errorf("starting sandbox: %w", err)
	}
	return nil
}

// buildPhase runs the build, and on failure hands the output to the fix
// loop. If a fix was applied the build is re-run exactly once.
func (o *Orchestrator) buildPhase(ctx context.Context, wc *models.WorkflowContext) error {
	if !o.cfg.EnableBuild || o.collab.Builder == nil {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepBuild
	if err := o.transition(wc, StateBuilding); err != nil {
		return err
	}
	o.publish(wc, events.Event{Type: events.TypeBuildStarted})

	result, err := o.collab.Builder.Build(ctx, wc)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if result.Success {
		o.publish(wc, events.Event{Type: events.TypeBuildCompleted})
		return nil
	}

	o.publish(wc, events.Event{
		Type:    events.TypeBuildFailed,
		Message: truncate(result.Output, 500),
		Metadata: map[string]any{
			"exit_code": result.ExitCode,
		},
	})

	if o.collab.FixLoop == nil {
		return fmt.Errorf("build failed with exit code %d", result.ExitCode)
	}

	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepFix
	if err := o.transition(wc, StateFixing); err != nil {
		return err
	}

	outcome, err := o.collab.FixLoop.ExecuteFixLoop(ctx, wc, result)
	if err != nil {
		return fmt.Errorf("fix loop: %w", err)
	}
	wc.FixAttempts++
	o.publish(wc, events.Event{
		Type:     events.TypeFixCompleted,
		Message:  outcome.Description,
		Metadata: outcome.Metadata,
	})

	if !outcome.Applied {
		return fmt.Errorf("build failed and no fix was applied: %s", outcome.Description)
	}

	// One rebuild after a successful fix; a second failure is final here.
	wc.CurrentStep = models.StepBuild
	if err := o.transition(wc, StateBuilding); err != nil {
		return err
	}
	o.publish(wc, events.Event{Type: events.TypeBuildStarted})

	retry, err := o.collab.Builder.Build(ctx, wc)
	if err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}
	if !retry.Success {
		o.publish(wc, events.Event{
			Type:    events.TypeBuildFailed,
			Message: truncate(retry.Output, 500),
			Metadata: map[string]any{
				"exit_code": retry.ExitCode,
			},
		})
		return fmt.Errorf("build still failing after fix, exit code %d", retry.ExitCode)
	}
	o.publish(wc, events.Event{Type: events.TypeBuildCompleted})
	return nil
}

func (o *Orchestrator) verifyPhase(ctx context.Context, wc *models.WorkflowContext) error {
	if !o.cfg.EnableVerify || o.collab.Verifier == nil {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepVerify
	o.publish(wc, events.Event{
		Type:    events.TypeStatus,
		Message: "verifying",
	})

	if err := o.collab.Verifier.Verify(ctx, wc); err != nil {
		return fmt.Errorf("verify: %w", err)
	}
	return nil
}

func (o *Orchestrator) documentPhase(ctx context.Context, wc *models.WorkflowContext) error {
	if !o.cfg.EnableDocs || o.collab.Documenter == nil {
		return nil
	}
	if err := checkpoint(ctx); err != nil {
		return err
	}
	wc.CurrentStep = models.StepDocument
	o.publish(wc, events.Event{
		Type:    events.TypeStatus,
		Message: "documenting",
	})

	if err := o.collab.Documenter.Document(ctx, wc); err != nil {
		return fmt.Errorf("document: %w", err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
