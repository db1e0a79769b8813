package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/jobflow/internal/domain"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

const pgUniqueViolation = "23505"

// PostgresStore persists job records in the jobs table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore creates a new PostgresStore instance
func NewPostgresStore(db *sqlx.DB, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		logger: logger,
	}
}

func (s *PostgresStore) Create(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (
			job_id, payload, status, attempts, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, '', $5, $6
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		job.ID,
		job.Payload,
		job.Status,
		job.Attempts,
		job.CreatedAt,
		job.UpdatedAt,
	)

	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation {
			return domain.ErrJobExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	query := `
		SELECT job_id, payload, status, attempts, result, error_message, created_at, updated_at
		FROM jobs
		WHERE job_id = $1
	`

	var job domain.Job
	err := s.db.GetContext(ctx, &job, query, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrJobNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *PostgresStore) MarkProcessing(ctx context.Context, id string) (int, error) {
	query := `
		UPDATE jobs
		SET status = $1,
		    attempts = attempts + 1,
		    updated_at = NOW()
		WHERE job_id = $2
		RETURNING attempts
	`

	var attempts int
	err := s.db.QueryRowContext(ctx, query, domain.StatusProcessing, id).Scan(&attempts)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, domain.ErrJobNotFound
		}
		return 0, fmt.Errorf("failed to mark job processing: %w", err)
	}

	s.logger.Debug("Job marked processing",
		slog.String("job_id", id),
		slog.Int("attempts", attempts),
	)

	return attempts, nil
}

func (s *PostgresStore) MarkRetrying(ctx context.Context, id, errMsg string) error {
	return s.setFailure(ctx, id, domain.StatusRetrying, errMsg)
}

func (s *PostgresStore) MarkFailed(ctx context.Context, id, errMsg string) error {
	return s.setFailure(ctx, id, domain.StatusFailed, errMsg)
}

func (s *PostgresStore) setFailure(ctx context.Context, id string, status domain.Status, errMsg string) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    error_message = $2,
		    updated_at = NOW()
		WHERE job_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, status, errMsg, id)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}

	return s.requireRow(result, id)
}

func (s *PostgresStore) Complete(ctx context.Context, id string, resultJSON json.RawMessage) error {
	query := `
		UPDATE jobs
		SET status = $1,
		    result = $2,
		    error_message = '',
		    updated_at = NOW()
		WHERE job_id = $3
	`

	result, err := s.db.ExecContext(ctx, query, domain.StatusCompleted, []byte(resultJSON), id)
	if err != nil {
		return fmt.Errorf("failed to complete job: %w", err)
	}

	return s.requireRow(result, id)
}

func (s *PostgresStore) requireRow(result sql.Result, id string) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return domain.ErrJobNotFound
	}

	return nil
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]domain.Job, error) {
	query := `
		SELECT job_id, payload, status, attempts, result, error_message, created_at, updated_at
		FROM jobs
		WHERE 1=1
	`
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, job_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.JobID)
		argIdx += 2
	}

	// Order by created_at DESC, job_id DESC for consistent pagination
	query += " ORDER BY created_at DESC, job_id DESC"

	// Fetch one extra to determine if there are more results
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	err := s.db.SelectContext(ctx, &jobs, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	return jobs, nil
}
