package queue

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryQueue_FIFO(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	require.NoError(t, q.Push(ctx, []byte("first")))
	require.NoError(t, q.Push(ctx, []byte("second")))
	require.NoError(t, q.Push(ctx, []byte("third")))
	assert.Equal(t, 3, q.Len())

	for _, want := range []string{"first", "second", "third"} {
		body, err := q.BlockingPop(ctx, time.Second)
		require.NoError(t, err)
		assert.Equal(t, want, string(body))
	}
	assert.Equal(t, 0, q.Len())
}

func TestMemoryQueue_PopTimeout(t *testing.T) {
	q := NewMemoryQueue()

	start := time.Now()
	body, err := q.BlockingPop(context.Background(), 50*time.Millisecond)

	require.ErrorIs(t, err, ErrEmptyQueue)
	assert.Nil(t, body)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
}

func TestMemoryQueue_PopCancelled(t *testing.T) {
	q := NewMemoryQueue()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	// timeout 0 would block forever without the cancellation
	_, err := q.BlockingPop(ctx, 0)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMemoryQueue_PopWakesOnPush(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = q.Push(ctx, []byte("late arrival"))
	}()

	body, err := q.BlockingPop(ctx, 2*time.Second)
	require.NoError(t, err)
	assert.Equal(t, "late arrival", string(body))
}

func TestMemoryQueue_PushCopiesBody(t *testing.T) {
	q := NewMemoryQueue()
	ctx := context.Background()

	body := []byte("original")
	require.NoError(t, q.Push(ctx, body))
	body[0] = 'X'

	popped, err := q.BlockingPop(ctx, time.Second)
	require.NoError(t, err)
	assert.Equal(t, "original", string(popped))
}
