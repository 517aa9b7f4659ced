// Package queue provides fix job queue interfaces and implementations.
package queue

import (
	"context"
	"errors"

	"github.com/bharatbuild/buildfix/internal/models"
)

// Common errors returned by queue operations.
var (
	// ErrNoJobs is returned when no jobs are available in the queue.
	ErrNoJobs = errors.New("no jobs available")
	// ErrJobNotFound is returned when a job cannot be found.
	ErrJobNotFound = errors.New("job not found")
)

// Queue defines the interface for fix job queue operations.
type Queue interface {
	// Enqueue adds a new fix job to the queue.
	Enqueue(ctx context.Context, job *models.FixJob) error

	// Dequeue retrieves and locks the next available fix job from the
	// queue. Returns ErrNoJobs if no jobs are available.
	Dequeue(ctx context.Context) (*models.FixJob, error)

	// Ack acknowledges successful processing of a job, removing it from
	// the queue.
	Ack(ctx context.Context, jobID string) error

	// Nack indicates that job processing failed, making the job available
	// for retry.
	Nack(ctx context.Context, jobID string) error
}
