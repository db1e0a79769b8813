// Package store holds the durable job record: the sole source of truth for a
// job's status. Every mutation is a single-record, single-statement update;
// the store offers no atomicity across updates and no coupling with the work
// queue (the submit and retry paths each perform a store write and a queue
// write as two independent steps).
package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cuongbtq/jobflow/internal/domain"
)

// Store is the job store contract shared by the submission gateway and the
// worker loop.
type Store interface {
	// Create inserts a new record. Returns domain.ErrJobExists if the id is
	// already taken.
	Create(ctx context.Context, job *domain.Job) error

	// Get returns the current record or domain.ErrJobNotFound.
	Get(ctx context.Context, id string) (*domain.Job, error)

	// MarkProcessing sets status to processing and increments attempts in the
	// same statement, returning the new attempts count.
	MarkProcessing(ctx context.Context, id string) (int, error)

	// MarkRetrying records a recoverable failure.
	MarkRetrying(ctx context.Context, id, errMsg string) error

	// MarkFailed records a terminal failure.
	MarkFailed(ctx context.Context, id, errMsg string) error

	// Complete records a successful result; the record is never mutated again.
	Complete(ctx context.Context, id string, result json.RawMessage) error

	// List returns jobs newest first, filtered and paginated by cursor. One
	// extra row past PageSize signals that more results exist.
	List(ctx context.Context, filter Filter) ([]domain.Job, error)
}

// Filter narrows and paginates List results
type Filter struct {
	Status   string
	PageSize int
	Cursor   *Cursor
}

// Cursor is a (created_at, job_id) position for keyset pagination
type Cursor struct {
	CreatedAt time.Time
	JobID     string
}
