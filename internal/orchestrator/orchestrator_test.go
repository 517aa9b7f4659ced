package orchestrator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/pkg/config"
)

type stubPlanner struct {
	plan string
	err  error
}

func (s *stubPlanner) Plan(context.Context, *models.WorkflowContext) (string, error) {
	return s.plan, s.err
}

type stubWriter struct {
	files []string
	err   error
}

func (s *stubWriter) WriteFiles(context.Context, *models.WorkflowContext) ([]string, error) {
	return s.files, s.err
}

type stubBuilder struct {
	results []*BuildResult
	calls   int
}

func (s *stubBuilder) Build(context.Context, *models.WorkflowContext) (*BuildResult, error) {
	if s.calls >= len(s.results) {
		return &BuildResult{Success: true}, nil
	}
	r := s.results[s.calls]
	s.calls++
	return r, nil
}

type stubFixLoop struct {
	outcome *FixOutcome
	err     error
	calls   int
}

func (s *stubFixLoop) ExecuteFixLoop(_ context.Context, _ *models.WorkflowContext, _ *BuildResult) (*FixOutcome, error) {
	s.calls++
	return s.outcome, s.err
}

func allPhases() config.WorkflowConfig {
	return config.WorkflowConfig{
		EnablePlanning: true,
		EnableWriting:  true,
		EnableSandbox:  false,
		EnableBuild:    true,
		EnableVerify:   false,
		EnableDocs:     false,
	}
}

func drain(ch chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case e := <-ch:
			out = append(out, e)
		default:
			return out
		}
	}
}

func eventTypes(evts []events.Event) []events.Type {
	out := make([]events.Type, len(evts))
	for i, e := range evts {
		out[i] = e.Type
	}
	return out
}

func hasType(evts []events.Event, typ events.Type) bool {
	for _, e := range evts {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestExecuteWorkflow_HappyPath(t *testing.T) {
	broker := events.NewBroker(nil)
	sub := broker.Subscribe("p1")
	defer broker.Unsubscribe(sub)

	o := New(allPhases(), Collaborators{
		Planner: &stubPlanner{plan: "build a todo app"},
		Writer:  &stubWriter{files: []string{"package.json", "src/App.jsx"}},
		Builder: &stubBuilder{},
	}, broker, nil)

	wc := &models.WorkflowContext{ProjectID: "p1", WorkflowID: "w1", Request: "todo app"}
	if err := o.ExecuteWorkflow(context.Background(), wc); err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	if o.State() != StateDone {
		t.Errorf("state = %s, want DONE", o.State())
	}
	if wc.Plan != "build a todo app" {
		t.Errorf("plan = %q", wc.Plan)
	}
	if len(wc.FilesCreated) != 2 {
		t.Errorf("files created = %v", wc.FilesCreated)
	}
	if wc.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}

	evts := drain(sub.Ch)
	for _, want := range []events.Type{
		events.TypeProjectStarted,
		events.TypeFileCreated,
		events.TypeBuildStarted,
		events.TypeBuildCompleted,
		events.TypeProjectComplete,
	} {
		if !hasType(evts, want) {
			t.Errorf("missing %s event, got %v", want, eventTypes(evts))
		}
	}
	if hasType(evts, events.TypeBuildFailed) {
		t.Error("unexpected BUILD_FAILED on a passing build")
	}
}

func TestExecuteWorkflow_FixThenRebuild(t *testing.T) {
	broker := events.NewBroker(nil)
	sub := broker.Subscribe("p1")
	defer broker.Unsubscribe(sub)

	builder := &stubBuilder{results: []*BuildResult{
		{Success: false, ExitCode: 1, Output: "Error: Cannot find module 'lodash'"},
		{Success: true},
	}}
	fixLoop := &stubFixLoop{outcome: &FixOutcome{
		Applied:     true,
		Description: "Installing missing npm package: lodash",
		Metadata:    map[string]any{"command": "npm install lodash --save"},
	}}

	o := New(allPhases(), Collaborators{
		Builder: builder,
		FixLoop: fixLoop,
	}, broker, nil)

	wc := &models.WorkflowContext{ProjectID: "p1", WorkflowID: "w1"}
	if err := o.ExecuteWorkflow(context.Background(), wc); err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}

	if builder.calls != 2 {
		t.Errorf("build calls = %d, want 2 (original + one rebuild)", builder.calls)
	}
	if fixLoop.calls != 1 {
		t.Errorf("fix loop calls = %d, want 1", fixLoop.calls)
	}
	if wc.FixAttempts != 1 {
		t.Errorf("FixAttempts = %d, want 1", wc.FixAttempts)
	}

	evts := drain(sub.Ch)
	for _, want := range []events.Type{
		events.TypeBuildFailed,
		events.TypeFixCompleted,
		events.TypeBuildCompleted,
		events.TypeProjectComplete,
	} {
		if !hasType(evts, want) {
			t.Errorf("missing %s event, got %v", want, eventTypes(evts))
		}
	}
}

func TestExecuteWorkflow_FixNotAppliedFails(t *testing.T) {
	broker := events.NewBroker(nil)
	sub := broker.Subscribe("p1")
	defer broker.Unsubscribe(sub)

	builder := &stubBuilder{results: []*BuildResult{
		{Success: false, ExitCode: 2, Output: "mystery failure"},
	}}
	o := New(allPhases(), Collaborators{
		Builder: builder,
		FixLoop: &stubFixLoop{outcome: &FixOutcome{NeedsAI: true, Description: "escalating"}},
	}, broker, nil)

	wc := &models.WorkflowContext{ProjectID: "p1", WorkflowID: "w1"}
	err := o.ExecuteWorkflow(context.Background(), wc)
	if err == nil {
		t.Fatal("expected an error when no fix applies")
	}
	if builder.calls != 1 {
		t.Errorf("build calls = %d, want 1 (no rebuild without a fix)", builder.calls)
	}
	if o.State() != StateFailed {
		t.Errorf("state = %s, want FAILED", o.State())
	}

	evts := drain(sub.Ch)
	if !hasType(evts, events.TypeProjectFailed) {
		t.Errorf("missing PROJECT_FAILED, got %v", eventTypes(evts))
	}
	if len(wc.Errors) == 0 {
		t.Error("workflow error not recorded in context")
	}
}

func TestExecuteWorkflow_PhaseErrorFailsAndReturns(t *testing.T) {
	broker := events.NewBroker(nil)
	sub := broker.Subscribe("p1")
	defer broker.Unsubscribe(sub)

	planErr := errors.New("model unavailable")
	o := New(allPhases(), Collaborators{
		Planner: &stubPlanner{err: planErr},
		Builder: &stubBuilder{},
	}, broker, nil)

	wc := &models.WorkflowContext{ProjectID: "p1", WorkflowID: "w1"}
	err := o.ExecuteWorkflow(context.Background(), wc)
	if !errors.Is(err, planErr) {
		t.Fatalf("error = %v, want wrapped %v", err, planErr)
	}
	if o.State() != StateFailed {
		t.Errorf("state = %s, want FAILED", o.State())
	}

	evts := drain(sub.Ch)
	if !hasType(evts, events.TypeProjectFailed) {
		t.Errorf("missing PROJECT_FAILED, got %v", eventTypes(evts))
	}
}

func TestExecuteWorkflow_CancelledAtPhaseBoundary(t *testing.T) {
	broker := events.NewBroker(nil)
	sub := broker.Subscribe("p1")
	defer broker.Unsubscribe(sub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	o := New(allPhases(), Collaborators{
		Planner: &stubPlanner{plan: "never reached"},
		Builder: &stubBuilder{},
	}, broker, nil)

	wc := &models.WorkflowContext{ProjectID: "p1", WorkflowID: "w1"}
	err := o.ExecuteWorkflow(ctx, wc)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if o.State() != StateCancelled {
		t.Errorf("state = %s, want CANCELLED", o.State())
	}
	if wc.Plan != "" {
		t.Error("plan phase ran after cancellation")
	}

	evts := drain(sub.Ch)
	if !hasType(evts, events.TypeProjectCancelled) {
		t.Errorf("missing PROJECT_CANCELLED, got %v", eventTypes(evts))
	}
}

func TestExecuteWorkflow_DisabledPhasesSkipped(t *testing.T) {
	broker := events.NewBroker(nil)
	planner := &stubPlanner{plan: "should not run"}

	o := New(config.WorkflowConfig{EnableBuild: true}, Collaborators{
		Planner: planner,
		Builder: &stubBuilder{},
	}, broker, nil)

	wc := &models.WorkflowContext{ProjectID: "p1", WorkflowID: "w1"}
	if err := o.ExecuteWorkflow(context.Background(), wc); err != nil {
		t.Fatalf("ExecuteWorkflow failed: %v", err)
	}
	if wc.Plan != "" {
		t.Error("disabled planning phase ran")
	}
	if o.State() != StateDone {
		t.Errorf("state = %s, want DONE", o.State())
	}
}

func TestRegistry_OneWorkflowPerProject(t *testing.T) {
	broker := events.NewBroker(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := &blockingBuilder{started: started, release: release}

	r := NewRegistry(config.WorkflowConfig{EnableBuild: true}, Collaborators{Builder: blocker}, broker, nil)

	run, err := r.Start(context.Background(), "p1", "u1", "todo app")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started

	if _, err := r.Start(context.Background(), "p1", "u1", "another"); !errors.Is(err, ErrWorkflowRunning) {
		t.Errorf("second Start error = %v, want ErrWorkflowRunning", err)
	}
	if _, err := r.Start(context.Background(), "p2", "u1", "other project"); err != nil {
		t.Errorf("different project blocked: %v", err)
	}

	close(release)
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("workflow never finished")
	}

	if _, err := r.Start(context.Background(), "p1", "u1", "again"); err != nil {
		t.Errorf("restart after completion failed: %v", err)
	}
}

func TestRegistry_Cancel(t *testing.T) {
	broker := events.NewBroker(nil)

	started := make(chan struct{})
	release := make(chan struct{})
	blocker := &blockingBuilder{started: started, release: release, honourCtx: true}

	r := NewRegistry(config.WorkflowConfig{EnableBuild: true}, Collaborators{Builder: blocker}, broker, nil)

	run, err := r.Start(context.Background(), "p1", "u1", "todo app")
	if err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	<-started

	if err := r.Cancel("p1"); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	select {
	case <-run.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled workflow never finished")
	}

	if err := r.Cancel("p-unknown"); !errors.Is(err, ErrWorkflowNotFound) {
		t.Errorf("Cancel unknown = %v, want ErrWorkflowNotFound", err)
	}
}

// blockingBuilder parks in Build until released, so tests can observe a
// live workflow.
type blockingBuilder struct {
	started   chan struct{}
	release   chan struct{}
	honourCtx bool

	once sync.Once
}

func (b *blockingBuilder) Build(ctx context.Context, _ *models.WorkflowContext) (*BuildResult, error) {
	b.once.Do(func() { close(b.started) })
	if b.honourCtx {
		select {
		case <-b.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	} else {
		<-b.release
	}
	return &BuildResult{Success: true}, nil
}
