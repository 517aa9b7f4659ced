package queue

import (
	"context"
	"sync"
	"time"

	"github.com/bharatbuild/buildfix/internal/models"
)

// MemoryQueue is an in-process Queue for single-instance deployments and
// tests.
type MemoryQueue struct {
	mu         sync.Mutex
	pending    []*models.FixJob
	processing map[string]*models.FixJob
}

// NewMemoryQueue creates an empty MemoryQueue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		processing: make(map[string]*models.FixJob),
	}
}

// Enqueue appends the job to the pending list.
func (q *MemoryQueue) Enqueue(_ context.Context, job *models.FixJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	cp := *job
	cp.Status = models.FixJobPending
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = time.Now().UTC()
	}
	q.pending = append(q.pending, &cp)
	return nil
}

// Dequeue pops the oldest pending job and marks it processing.
func (q *MemoryQueue) Dequeue(_ context.Context) (*models.FixJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.pending) == 0 {
		return nil, ErrNoJobs
	}
	job := q.pending[0]
	q.pending = q.pending[1:]

	job.Status = models.FixJobProcessing
	now := time.Now().UTC()
	job.StartedAt = &now
	q.processing[job.ID] = job

	cp := *job
	return &cp, nil
}

// Ack removes a processing job.
func (q *MemoryQueue) Ack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.processing[jobID]; !ok {
		return ErrJobNotFound
	}
	delete(q.processing, jobID)
	return nil
}

// Nack returns a processing job to the pending list with its retry count
// bumped.
func (q *MemoryQueue) Nack(_ context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.processing[jobID]
	if !ok {
		return ErrJobNotFound
	}
	delete(q.processing, jobID)

	job.Status = models.FixJobPending
	job.StartedAt = nil
	job.RetryCount++
	q.pending = append(q.pending, job)
	return nil
}

// Len returns the number of pending jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
