// Package postgres provides a PostgreSQL-backed implementation of the
// fix queue.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/bharatbuild/buildfix/internal/models"
	"github.com/bharatbuild/buildfix/internal/queue"
)

// PostgresQueue implements queue.Queue using PostgreSQL.
type PostgresQueue struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewPostgresQueue creates a new PostgreSQL-backed queue.
func NewPostgresQueue(db *sql.DB, logger *slog.Logger) *PostgresQueue {
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresQueue{
		db:     db,
		logger: logger,
	}
}

// Enqueue adds a new fix job to the queue. The job is serialized to JSON
// and stored in the fix_queue table.
func (q *PostgresQueue) Enqueue(ctx context.Context, job *models.FixJob) error {
	jobData, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshaling job to JSON: %w", err)
	}

	query := `
		INSERT INTO fix_queue (id, project_id, job_data, status, created_at)
		VALUES ($1, $2, $3, 'pending', $4)`

	now := time.Now().UTC()
	_, err = q.db.ExecContext(ctx, query, job.ID, job.ProjectID, jobData, now)
	if err != nil {
		return fmt.Errorf("inserting job into queue: %w", err)
	}

	q.logger.Debug("enqueued fix job", "job_id", job.ID, "project_id", job.ProjectID)
	return nil
}

// Dequeue retrieves and locks the next available fix job from the queue.
// Uses SELECT FOR UPDATE SKIP LOCKED for concurrent worker safety.
func (q *PostgresQueue) Dequeue(ctx context.Context) (*models.FixJob, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	selectQuery := `
		SELECT id, job_data
		FROM fix_queue
		WHERE status = 'pending'
		ORDER BY created_at ASC
		LIMIT 1
		FOR UPDATE SKIP LOCKED`

	var jobID string
	var jobData []byte
	err = tx.QueryRowContext(ctx, selectQuery).Scan(&jobID, &jobData)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, queue.ErrNoJobs
		}
		return nil, fmt.Errorf("selecting job from queue: %w", err)
	}

	updateQuery := `
		UPDATE fix_queue
		SET status = 'processing', started_at = $2
		WHERE id = $1`

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx, updateQuery, jobID, now)
	if err != nil {
		return nil, fmt.Errorf("updating job status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	var job models.FixJob
	if err := json.Unmarshal(jobData, &job); err != nil {
		return nil, fmt.Errorf("unmarshaling job from JSON: %w", err)
	}
	job.Status = models.FixJobProcessing
	job.StartedAt = &now

	q.logger.Debug("dequeued fix job", "job_id", job.ID)
	return &job, nil
}

// Ack acknowledges successful processing of a job, removing it from the
// queue.
func (q *PostgresQueue) Ack(ctx context.Context, jobID string) error {
	query := `
		DELETE FROM fix_queue
		WHERE id = $1 AND status = 'processing'`

	result, err := q.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("deleting job from queue: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return queue.ErrJobNotFound
	}

	q.logger.Debug("acknowledged fix job", "job_id", jobID)
	return nil
}

// Nack indicates that job processing failed, making the job available
// for retry.
func (q *PostgresQueue) Nack(ctx context.Context, jobID string) error {
	query := `
		UPDATE fix_queue
		SET status = 'pending', started_at = NULL, retry_count = retry_count + 1
		WHERE id = $1 AND status = 'processing'`

	result, err := q.db.ExecContext(ctx, query, jobID)
	if err != nil {
		return fmt.Errorf("updating job status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return queue.ErrJobNotFound
	}

	q.logger.Debug("nacked fix job", "job_id", jobID)
	return nil
}
