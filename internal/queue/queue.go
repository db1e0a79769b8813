// Package queue is the durable FIFO hand-off between the submission gateway
// and the worker loops. Delivery is at-most-once: a popped item is gone no
// matter what the consumer does with it, and redelivery only happens when the
// consumer explicitly pushes the item back. The queue carries opaque envelope
// bytes and knows nothing about job state.
package queue

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyQueue is returned by BlockingPop when the timeout elapses with no
// item available.
var ErrEmptyQueue = errors.New("queue is empty")

// Queue is the work queue contract.
type Queue interface {
	// Push appends an item to the tail. It returns an error only on
	// transport failure.
	Push(ctx context.Context, body []byte) error

	// BlockingPop removes and returns the head item. It blocks until an item
	// is available, timeout elapses (ErrEmptyQueue), or ctx is cancelled.
	// A timeout of 0 blocks indefinitely.
	BlockingPop(ctx context.Context, timeout time.Duration) ([]byte, error)
}
