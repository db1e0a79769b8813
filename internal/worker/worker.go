// Package worker drains the work queue and drives each job to a terminal
// state or a well-defined retry:
//
//	queued -> processing -> completed
//	processing -> retrying -> processing   (attempts < MaxRetries)
//	processing -> failed                   (attempts >= MaxRetries)
//
// One loop handles one envelope at a time. Running several loops, in one
// process or across processes, is safe as long as they share the same queue
// and store; there is no coordination on a job id beyond the queue's
// exclusive pop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cuongbtq/jobflow/internal/domain"
	"github.com/cuongbtq/jobflow/internal/executor"
	"github.com/cuongbtq/jobflow/internal/queue"
	"github.com/cuongbtq/jobflow/internal/store"
)

// Config holds worker configuration. MaxRetries caps the total number of
// execution attempts per job. PopTimeout of 0 blocks indefinitely on the
// queue, which is the normal mode.
type Config struct {
	Logger      *slog.Logger
	Store       store.Store
	Queue       queue.Queue
	Executor    executor.Executor
	Concurrency int
	MaxRetries  int
	PopTimeout  time.Duration
}

// Worker runs Concurrency independent consumer loops against the shared
// queue and store.
type Worker struct {
	logger      *slog.Logger
	store       store.Store
	queue       queue.Queue
	executor    executor.Executor
	concurrency int
	maxRetries  int
	popTimeout  time.Duration
	wg          sync.WaitGroup
}

// New creates a new worker instance
func New(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	return &Worker{
		logger:      cfg.Logger,
		store:       cfg.Store,
		queue:       cfg.Queue,
		executor:    cfg.Executor,
		concurrency: concurrency,
		maxRetries:  cfg.MaxRetries,
		popTimeout:  cfg.PopTimeout,
	}
}

// Start spawns the consumer loops and blocks until ctx is cancelled. Each
// loop stops at its pop suspension point; an envelope already being handled
// is finished before the loop exits.
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.Int("concurrency", w.concurrency),
		slog.Int("max_retries", w.maxRetries),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.runLoop(ctx, i)
	}

	<-ctx.Done()
	w.logger.Info("Worker context cancelled, stopping...")

	return nil
}

// Stop waits for all loops to finish their in-flight work.
func (w *Worker) Stop() {
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

// runLoop is the main processing loop for one consumer goroutine.
func (w *Worker) runLoop(ctx context.Context, loopNum int) {
	defer w.wg.Done()

	logger := w.logger.With(slog.Int("loop", loopNum))
	logger.Info("Worker loop started")

	for {
		if ctx.Err() != nil {
			logger.Info("Worker loop stopped - context cancelled")
			return
		}

		body, err := w.queue.BlockingPop(ctx, w.popTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrEmptyQueue) {
				continue
			}
			if ctx.Err() != nil {
				logger.Info("Worker loop stopped - context cancelled")
				return
			}
			logger.Error("Failed to pop from queue",
				slog.Any("error", err),
			)

			select {
			case <-ctx.Done():
				logger.Info("Worker loop stopped - context cancelled")
				return
			case <-time.After(time.Second):
				// avoid a hot loop on a broken queue connection
			}
			continue
		}

		// A dequeued envelope always runs to completion; cancellation only
		// takes effect at the pop suspension point above.
		w.handle(context.WithoutCancel(ctx), body)
	}
}

// handle drives one dequeued envelope through the lifecycle.
func (w *Worker) handle(ctx context.Context, body []byte) {
	env, err := domain.DecodeEnvelope(body)
	if err != nil {
		// Malformed item: dropped with no retry and no dead-letter.
		w.logger.Error("Discarding malformed envelope",
			slog.Any("error", err),
			slog.String("body", string(body)),
		)
		return
	}

	logger := w.logger.With(slog.String("job_id", env.ID))

	// Idempotency guard: a duplicate delivery of a finished job must not
	// re-run the work or touch the record.
	job, err := w.store.Get(ctx, env.ID)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			logger.Warn("Envelope references unknown job, skipping")
			return
		}
		logger.Error("Failed to read job record",
			slog.Any("error", err),
		)
		return
	}

	if job.Status == domain.StatusCompleted {
		logger.Info("Job already completed, skipping")
		return
	}

	attempts, err := w.store.MarkProcessing(ctx, env.ID)
	if err != nil {
		logger.Error("Failed to mark job processing",
			slog.Any("error", err),
		)
		return
	}

	logger.Info("Processing job",
		slog.Int("attempt", attempts),
	)

	result, execErr := w.executor.Execute(ctx, env.ID, env.Payload)
	if execErr == nil {
		if err := w.store.Complete(ctx, env.ID, result); err != nil {
			logger.Error("Failed to mark job completed",
				slog.Any("error", err),
			)
			return
		}

		logger.Info("Job completed",
			slog.Int("attempts", attempts),
		)
		return
	}

	if attempts < w.maxRetries {
		w.retry(ctx, logger, env, body, attempts, execErr)
		return
	}

	if err := w.store.MarkFailed(ctx, env.ID, execErr.Error()); err != nil {
		logger.Error("Failed to mark job failed",
			slog.Any("error", err),
		)
		return
	}

	logger.Error("Job failed after max retries",
		slog.Int("attempts", attempts),
		slog.Any("error", execErr),
	)
}

// retry records the failure and re-pushes the same envelope to the tail of
// the queue. The two steps are independent: if the re-push fails, the job
// stays in retrying and is never executed again, mirroring the orphaned
// submission gap on the submit path.
func (w *Worker) retry(ctx context.Context, logger *slog.Logger, env *domain.Envelope, body []byte, attempts int, execErr error) {
	if err := w.store.MarkRetrying(ctx, env.ID, execErr.Error()); err != nil {
		logger.Error("Failed to mark job retrying",
			slog.Any("error", err),
		)
		return
	}

	if err := w.queue.Push(ctx, body); err != nil {
		logger.Error("Failed to re-enqueue job for retry",
			slog.Any("error", fmt.Errorf("job stuck in retrying: %w", err)),
		)
		return
	}

	logger.Warn("Job failed, retrying",
		slog.Int("attempt", attempts),
		slog.Int("max_retries", w.maxRetries),
		slog.Any("error", execErr),
	)
}
