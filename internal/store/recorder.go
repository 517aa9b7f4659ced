package store

import (
	"context"
	"log/slog"

	"github.com/bharatbuild/buildfix/internal/events"
)

// Recorder subscribes to the event broker and persists every workflow
// event it sees. It is the only bridge between the live pipeline and the
// audit trail.
type Recorder struct {
	store  Store
	broker *events.Broker
	logger *slog.Logger
}

// NewRecorder creates a Recorder writing broker events into store.
func NewRecorder(store Store, broker *events.Broker, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		store:  store,
		broker: broker,
		logger: logger,
	}
}

// Run subscribes to all projects and records events until the context
// ends. Terminal events also finish their run record.
func (r *Recorder) Run(ctx context.Context) {
	sub := r.broker.Subscribe("")
	defer r.broker.Unsubscribe(sub)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-sub.Ch:
			if !ok {
				return
			}
			r.record(ctx, event)
		}
	}
}

func (r *Recorder) record(ctx context.Context, event events.Event) {
	if err := r.store.RecordEvent(ctx, event); err != nil {
		r.logger.Warn("recording workflow event failed",
			"event_type", event.Type,
			"workflow_id", event.WorkflowID,
			"error", err,
		)
		return
	}

	// The start event opens the run record; terminal events close it.
	if event.Type == events.TypeProjectStarted {
		run := &RunRecord{
			WorkflowID: event.WorkflowID,
			ProjectID:  event.ProjectID,
			Request:    event.Message,
			StartedAt:  event.Timestamp,
		}
		if userID, ok := event.Metadata["user_id"].(string); ok {
			run.UserID = userID
		}
		if err := r.store.CreateRun(ctx, run); err != nil {
			r.logger.Warn("creating run record failed",
				"workflow_id", event.WorkflowID,
				"error", err,
			)
		}
	}

	if event.Terminal() {
		if err := r.store.FinishRun(ctx, event.WorkflowID, string(event.Type), event.Timestamp); err != nil {
			r.logger.Warn("finishing run record failed",
				"workflow_id", event.WorkflowID,
				"error", err,
			)
		}
	}
}
