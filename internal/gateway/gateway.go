// Package gateway is the submission side of the job subsystem: it records a
// new job and hands its envelope to the work queue. The store write and the
// queue push are two independent steps with no transaction around them; if
// the push fails after the record exists, the job is orphaned (visible via
// Get, never executed) and the caller gets an error.
package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/cuongbtq/jobflow/internal/auth"
	"github.com/cuongbtq/jobflow/internal/domain"
	"github.com/cuongbtq/jobflow/internal/queue"
	"github.com/cuongbtq/jobflow/internal/store"
)

// Gateway validates and records new jobs and serves the read path.
type Gateway struct {
	store  store.Store
	queue  queue.Queue
	logger *slog.Logger
}

// New creates a Gateway on top of the shared store and queue.
func New(st store.Store, q queue.Queue, logger *slog.Logger) *Gateway {
	return &Gateway{
		store:  st,
		queue:  q,
		logger: logger,
	}
}

// Submit records a new job and enqueues its envelope, returning the generated
// id without waiting for execution.
func (g *Gateway) Submit(ctx context.Context, payload json.RawMessage, principal auth.Principal) (string, error) {
	now := time.Now().UTC()
	job := &domain.Job{
		ID:        uuid.New().String(),
		Payload:   payload,
		Status:    domain.StatusQueued,
		Attempts:  0,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := g.store.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to record job: %w", err)
	}

	env := &domain.Envelope{
		ID:        job.ID,
		Payload:   job.Payload,
		Status:    job.Status,
		CreatedAt: job.CreatedAt,
	}

	body, err := env.Encode()
	if err != nil {
		return "", err
	}

	if err := g.queue.Push(ctx, body); err != nil {
		// The record already exists: the job is orphaned, not rolled back.
		g.logger.Error("Job recorded but not enqueued",
			slog.String("job_id", job.ID),
			slog.String("principal", principal.ID),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("failed to enqueue job %s: %w", job.ID, err)
	}

	g.logger.Info("Job submitted",
		slog.String("job_id", job.ID),
		slog.String("principal", principal.ID),
	)

	return job.ID, nil
}

// Get is a pure read-through to the job store.
func (g *Gateway) Get(ctx context.Context, id string) (*domain.Job, error) {
	return g.store.Get(ctx, id)
}

// List is a read-through to the job store's filtered listing.
func (g *Gateway) List(ctx context.Context, filter store.Filter) ([]domain.Job, error) {
	return g.store.List(ctx, filter)
}
