// Package worker consumes queued fix jobs and runs them through the
// rule-based fixer.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bharatbuild/buildfix/internal/fixer"
	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/queue"
	"github.com/bharatbuild/buildfix/internal/store"
)

const (
	defaultPollInterval = 2 * time.Second
	// Jobs that keep failing to process are dropped after this many
	// requeues; fix retry exhaustion is tracked separately by the fixer.
	maxJobRequeues = 5
)

// Consumer polls the fix queue and executes jobs.
type Consumer struct {
	queue        queue.Queue
	fixers       *fixer.Registry
	store        store.Store
	logger       *slog.Logger
	pollInterval time.Duration
}

// NewConsumer creates a queue consumer. store may be nil when fix
// attempt auditing is disabled.
func NewConsumer(q queue.Queue, fixers *fixer.Registry, st store.Store, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		queue:        q,
		fixers:       fixers,
		store:        st,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
}

// Run polls for jobs until the context is cancelled.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info("fix worker started")
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		c.drain(ctx)
		select {
		case <-ctx.Done():
			c.logger.Info("fix worker stopping")
			return
		case <-ticker.C:
		}
	}
}

// drain processes jobs until the queue is empty or the context ends.
func (c *Consumer) drain(ctx context.Context) {
	for ctx.Err() == nil {
		job, err := c.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, queue.ErrNoJobs) {
				c.logger.Error("dequeue failed", "error", err)
			}
			return
		}
		c.process(ctx, job)
	}
}

func (c *Consumer) process(ctx context.Context, job *models.FixJob) {
	logger := c.logger.With("job_id", job.ID, "project_id", job.ProjectID)
	logger.Info("processing fix job", "exit_code", job.ExitCode)

	f := c.fixers.Get(job.ProjectID, job.UserID, job.ProjectPath)
	result := f.AnalyzeAndFix(ctx, job.ErrorOutput, job.ExitCode, job.Command)

	if ctx.Err() != nil {
		// Interrupted mid-job; hand it back for another worker.
		if job.RetryCount < maxJobRequeues {
			if err := c.queue.Nack(context.WithoutCancel(ctx), job.ID); err != nil {
				logger.Error("nack failed", "error", err)
			}
		}
		return
	}

	if err := c.queue.Ack(ctx, job.ID); err != nil {
		logger.Error("ack failed", "error", err)
	}

	c.audit(ctx, job, result)

	logger.Info("fix job completed",
		"applied", result.Applied,
		"needs_ai", result.NeedsAI,
		"retry_allowed", result.RetryAllowed,
		"retry_count", result.RetryCount,
	)
}

func (c *Consumer) audit(ctx context.Context, job *models.FixJob, result *fixer.Result) {
	if c.store == nil {
		return
	}

	attempt := &store.FixAttemptRecord{
		ProjectID: job.ProjectID,
		Applied:   result.Applied,
		NeedsAI:   result.NeedsAI,
		CreatedAt: time.Now(),
	}
	if result.Fix != nil {
		attempt.Fix = *result.Fix
	}
	if result.Primary != nil {
		attempt.Category = string(result.Primary.Category)
	}
	if err := c.store.RecordFixAttempt(ctx, attempt); err != nil {
		c.logger.Warn("recording fix attempt failed", "error", err)
	}
}
