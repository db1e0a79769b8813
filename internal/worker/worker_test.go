package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/jobflow/internal/domain"
	"github.com/cuongbtq/jobflow/internal/executor"
	"github.com/cuongbtq/jobflow/internal/queue"
	"github.com/cuongbtq/jobflow/internal/store"
)

// scriptedExecutor fails its first `failures` calls, then succeeds.
type scriptedExecutor struct {
	failures int
	calls    int
}

func (e *scriptedExecutor) Execute(_ context.Context, jobID string, _ json.RawMessage) (json.RawMessage, error) {
	e.calls++
	if e.calls <= e.failures {
		return nil, fmt.Errorf("simulated failure %d", e.calls)
	}
	return json.RawMessage(fmt.Sprintf(`{"output":"Result for job %s"}`, jobID)), nil
}

// gatedExecutor signals when execution begins and blocks until released.
type gatedExecutor struct {
	started chan struct{}
	release chan struct{}
}

func (e *gatedExecutor) Execute(ctx context.Context, jobID string, _ json.RawMessage) (json.RawMessage, error) {
	close(e.started)
	select {
	case <-e.release:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return json.RawMessage(fmt.Sprintf(`{"output":"Result for job %s"}`, jobID)), nil
}

// pushFailQueue delivers whatever is already queued but rejects re-pushes.
type pushFailQueue struct {
	*queue.MemoryQueue
}

func (q pushFailQueue) Push(context.Context, []byte) error {
	return errors.New("broker unavailable")
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestWorker(st store.Store, q queue.Queue, exec executor.Executor) *Worker {
	return New(&Config{
		Logger:     discardLogger(),
		Store:      st,
		Queue:      q,
		Executor:   exec,
		MaxRetries: 3,
	})
}

// seedJob records a queued job and pushes its envelope, the same two steps
// the submission gateway performs.
func seedJob(t *testing.T, st store.Store, q queue.Queue, id string) []byte {
	t.Helper()

	now := time.Now().UTC()
	payload := json.RawMessage(`{"task":"noop"}`)
	require.NoError(t, st.Create(context.Background(), &domain.Job{
		ID:        id,
		Payload:   payload,
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	env := &domain.Envelope{ID: id, Payload: payload, Status: domain.StatusQueued, CreatedAt: now}
	body, err := env.Encode()
	require.NoError(t, err)
	require.NoError(t, q.Push(context.Background(), body))

	return body
}

// drain handles envelopes until the queue is empty, following each retry
// re-push to its next delivery.
func drain(t *testing.T, w *Worker, q *queue.MemoryQueue) {
	t.Helper()

	ctx := context.Background()
	for {
		body, err := q.BlockingPop(ctx, 10*time.Millisecond)
		if errors.Is(err, queue.ErrEmptyQueue) {
			return
		}
		require.NoError(t, err)
		w.handle(ctx, body)
	}
}

func TestWorker_SuccessFirstAttempt(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	w := newTestWorker(st, q, &scriptedExecutor{failures: 0})

	seedJob(t, st, q, "job-1")
	drain(t, w, q)

	job, err := st.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.JSONEq(t, `{"output":"Result for job job-1"}`, string(job.Result))
	assert.Empty(t, job.Error)
}

func TestWorker_RetryThenSuccess(t *testing.T) {
	tests := []struct {
		name         string
		failures     int
		wantAttempts int
	}{
		{name: "one failure", failures: 1, wantAttempts: 2},
		{name: "two failures", failures: 2, wantAttempts: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := store.NewMemoryStore()
			q := queue.NewMemoryQueue()
			w := newTestWorker(st, q, &scriptedExecutor{failures: tt.failures})

			seedJob(t, st, q, "job-1")
			drain(t, w, q)

			job, err := st.Get(context.Background(), "job-1")
			require.NoError(t, err)
			assert.Equal(t, domain.StatusCompleted, job.Status)
			assert.Equal(t, tt.wantAttempts, job.Attempts)
		})
	}
}

func TestWorker_FailAfterMaxRetries(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	w := newTestWorker(st, q, &scriptedExecutor{failures: 10})

	seedJob(t, st, q, "job-1")
	drain(t, w, q)

	job, err := st.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, job.Status)
	assert.Equal(t, 3, job.Attempts)
	assert.Equal(t, "simulated failure 3", job.Error)
	assert.Equal(t, 0, q.Len())
}

func TestWorker_CompletedRedeliveryIsNoOp(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	exec := &scriptedExecutor{failures: 0}
	w := newTestWorker(st, q, exec)

	body := seedJob(t, st, q, "job-1")
	drain(t, w, q)

	before, err := st.Get(context.Background(), "job-1")
	require.NoError(t, err)
	require.Equal(t, domain.StatusCompleted, before.Status)

	// A duplicate delivery must not re-run the executor or touch the record
	w.handle(context.Background(), body)

	after, err := st.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, 1, exec.calls)
	assert.Equal(t, before.Attempts, after.Attempts)
	assert.Equal(t, before.Status, after.Status)
	assert.True(t, before.UpdatedAt.Equal(after.UpdatedAt))
}

func TestWorker_MalformedEnvelopeDropped(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	exec := &scriptedExecutor{}
	w := newTestWorker(st, q, exec)

	w.handle(context.Background(), []byte("not an envelope"))

	assert.Equal(t, 0, exec.calls)
	assert.Equal(t, 0, q.Len())
}

func TestWorker_UnknownJobSkipped(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	exec := &scriptedExecutor{}
	w := newTestWorker(st, q, exec)

	env := &domain.Envelope{
		ID:        "ghost-job",
		Payload:   json.RawMessage(`{}`),
		Status:    domain.StatusQueued,
		CreatedAt: time.Now().UTC(),
	}
	body, err := env.Encode()
	require.NoError(t, err)

	w.handle(context.Background(), body)

	assert.Equal(t, 0, exec.calls)
}

func TestWorker_RetryRepushFailureLeavesJobRetrying(t *testing.T) {
	st := store.NewMemoryStore()
	inner := queue.NewMemoryQueue()
	w := newTestWorker(st, pushFailQueue{inner}, &scriptedExecutor{failures: 10})

	now := time.Now().UTC()
	require.NoError(t, st.Create(context.Background(), &domain.Job{
		ID:        "job-1",
		Payload:   json.RawMessage(`{}`),
		Status:    domain.StatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}))

	env := &domain.Envelope{ID: "job-1", Payload: json.RawMessage(`{}`), Status: domain.StatusQueued, CreatedAt: now}
	body, err := env.Encode()
	require.NoError(t, err)

	w.handle(context.Background(), body)

	job, err := st.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusRetrying, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Equal(t, 0, inner.Len())
}

func TestWorker_ShutdownFinishesInFlightJob(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	exec := &gatedExecutor{started: make(chan struct{}), release: make(chan struct{})}
	w := newTestWorker(st, q, exec)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	seedJob(t, st, q, "job-1")

	select {
	case <-exec.started:
	case <-time.After(2 * time.Second):
		t.Fatal("executor was never invoked")
	}

	// Cancel while the task is mid-execution, then let it finish. The
	// envelope already dequeued must run to completion, not fail or retry.
	cancel()
	close(exec.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
	w.Stop()

	job, err := st.Get(context.Background(), "job-1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, job.Status)
	assert.Equal(t, 1, job.Attempts)
	assert.Empty(t, job.Error)
}

func TestWorker_StartAndStop(t *testing.T) {
	st := store.NewMemoryStore()
	q := queue.NewMemoryQueue()
	w := newTestWorker(st, q, &scriptedExecutor{failures: 0})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- w.Start(ctx)
	}()

	seedJob(t, st, q, "job-1")

	require.Eventually(t, func() bool {
		job, err := st.Get(context.Background(), "job-1")
		return err == nil && job.Status == domain.StatusCompleted
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
	w.Stop()
}
