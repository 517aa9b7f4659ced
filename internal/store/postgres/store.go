// Package postgres provides a PostgreSQL-backed implementation of the
// audit store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // postgres driver

	"github.com/bharatbuild/buildfix/internal/events"
	"github.com/bharatbuild/buildfix/internal/store"
)

// PostgresStore implements store.Store using PostgreSQL.
type PostgresStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// New opens a connection pool for the given DSN and verifies it.
func New(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{db: db, logger: logger}, nil
}

// DB exposes the underlying pool so the fix queue can share it.
func (s *PostgresStore) DB() *sql.DB { return s.db }

func (s *PostgresStore) CreateRun(ctx context.Context, run *store.RunRecord) error {
	query := `
		INSERT INTO workflow_runs (workflow_id, project_id, user_id, request, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := s.db.ExecContext(ctx, query,
		run.WorkflowID, run.ProjectID, run.UserID, run.Request, run.StartedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting workflow run: %w", err)
	}
	return nil
}

func (s *PostgresStore) FinishRun(ctx context.Context, workflowID, finalState string, completedAt time.Time) error {
	query := `
		UPDATE workflow_runs
		SET final_state = $2, completed_at = $3
		WHERE workflow_id = $1`

	result, err := s.db.ExecContext(ctx, query, workflowID, finalState, completedAt.UTC())
	if err != nil {
		return fmt.Errorf("updating workflow run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrRunNotFound
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, workflowID string) (*store.RunRecord, error) {
	query := `
		SELECT workflow_id, project_id, user_id, request, COALESCE(final_state, ''),
		       fix_attempts, started_at, completed_at
		FROM workflow_runs
		WHERE workflow_id = $1`

	var run store.RunRecord
	err := s.db.QueryRowContext(ctx, query, workflowID).Scan(
		&run.WorkflowID, &run.ProjectID, &run.UserID, &run.Request,
		&run.FinalState, &run.FixAttempts, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrRunNotFound
		}
		return nil, fmt.Errorf("selecting workflow run: %w", err)
	}
	return &run, nil
}

func (s *PostgresStore) ListRuns(ctx context.Context, projectID string, limit int) ([]*store.RunRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT workflow_id, project_id, user_id, request, COALESCE(final_state, ''),
		       fix_attempts, started_at, completed_at
		FROM workflow_runs
		WHERE project_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := s.db.QueryContext(ctx, query, projectID, limit)
	if err != nil {
		return nil, fmt.Errorf("selecting workflow runs: %w", err)
	}
	defer rows.Close()

	var out []*store.RunRecord
	for rows.Next() {
		var run store.RunRecord
		if err := rows.Scan(
			&run.WorkflowID, &run.ProjectID, &run.UserID, &run.Request,
			&run.FinalState, &run.FixAttempts, &run.StartedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("scanning workflow run: %w", err)
		}
		out = append(out, &run)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordEvent(ctx context.Context, event events.Event) error {
	metadata, err := json.Marshal(event.Metadata)
	if err != nil {
		return fmt.Errorf("marshaling event metadata: %w", err)
	}

	query := `
		INSERT INTO workflow_events (workflow_id, project_id, event_type, step, message, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		event.WorkflowID, event.ProjectID, string(event.Type), event.Step,
		event.Message, metadata, event.Timestamp.UTC())
	if err != nil {
		return fmt.Errorf("inserting workflow event: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListEvents(ctx context.Context, workflowID string) ([]events.Event, error) {
	query := `
		SELECT workflow_id, project_id, event_type, step, message, metadata, created_at
		FROM workflow_events
		WHERE workflow_id = $1
		ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, workflowID)
	if err != nil {
		return nil, fmt.Errorf("selecting workflow events: %w", err)
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var e events.Event
		var metadata []byte
		if err := rows.Scan(&e.WorkflowID, &e.ProjectID, &e.Type, &e.Step, &e.Message, &metadata, &e.Timestamp); err != nil {
			return nil, fmt.Errorf("scanning workflow event: %w", err)
		}
		if len(metadata) > 0 {
			if err := json.Unmarshal(metadata, &e.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling event metadata: %w", err)
			}
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *PostgresStore) RecordFixAttempt(ctx context.Context, attempt *store.FixAttemptRecord) error {
	fix, err := json.Marshal(attempt.Fix)
	if err != nil {
		return fmt.Errorf("marshaling fix: %w", err)
	}

	query := `
		INSERT INTO fix_attempts (project_id, workflow_id, category, fix, applied, needs_ai, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err = s.db.ExecContext(ctx, query,
		attempt.ProjectID, attempt.WorkflowID, attempt.Category, fix,
		attempt.Applied, attempt.NeedsAI, attempt.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("inserting fix attempt: %w", err)
	}
	return nil
}

// Close closes the connection pool.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}
