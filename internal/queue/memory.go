package queue

import (
	"context"
	"sync"
	"time"
)

// MemoryQueue is an in-process Queue used by tests and the memory backend in
// development. Push never blocks; BlockingPop honors the same timeout and
// cancellation contract as the durable backends.
type MemoryQueue struct {
	mu     sync.Mutex
	items  [][]byte
	notify chan struct{}
}

// NewMemoryQueue creates an empty MemoryQueue
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{
		notify: make(chan struct{}, 1),
	}
}

func (q *MemoryQueue) Push(_ context.Context, body []byte) error {
	q.mu.Lock()
	q.items = append(q.items, append([]byte(nil), body...))
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}

	return nil
}

func (q *MemoryQueue) BlockingPop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	for {
		if body, ok := q.pop(); ok {
			return body, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer:
			return nil, ErrEmptyQueue
		case <-q.notify:
			// an item may be available; another popper can still win the race
		}
	}
}

func (q *MemoryQueue) pop() ([]byte, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) == 0 {
		return nil, false
	}

	body := q.items[0]
	q.items = q.items[1:]

	// keep the signal alive for other blocked poppers
	if len(q.items) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}

	return body, true
}

// Len returns the number of queued items
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
