package queue

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/jobflow/shared/rabbitmq"
)

// RabbitQueue implements Queue on a RabbitMQ queue. Messages are consumed
// with auto-ack so delivery stays at-most-once, matching the Redis backend:
// the broker never redelivers an item on its own.
type RabbitQueue struct {
	client      *rabbitmq.Client
	consumerTag string
	logger      *slog.Logger

	consumeOnce sync.Once
	consumeErr  error
	deliveries  <-chan amqp.Delivery
}

// NewRabbitQueue creates a queue on top of an established RabbitMQ client.
func NewRabbitQueue(client *rabbitmq.Client, consumerTag string, logger *slog.Logger) *RabbitQueue {
	return &RabbitQueue{
		client:      client,
		consumerTag: consumerTag,
		logger:      logger,
	}
}

func (q *RabbitQueue) Push(ctx context.Context, body []byte) error {
	return q.client.Publish(ctx, body, "application/json")
}

func (q *RabbitQueue) BlockingPop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	q.consumeOnce.Do(func() {
		q.deliveries, q.consumeErr = q.client.Consume(q.consumerTag, true)
	})
	if q.consumeErr != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", q.consumeErr)
	}

	var timer <-chan time.Time
	if timeout > 0 {
		t := time.NewTimer(timeout)
		defer t.Stop()
		timer = t.C
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()

	case <-timer:
		return nil, ErrEmptyQueue

	case delivery, ok := <-q.deliveries:
		if !ok {
			return nil, fmt.Errorf("rabbitmq delivery channel closed")
		}

		q.logger.Debug("Item popped from queue",
			slog.Int("body_size", len(delivery.Body)),
		)

		return delivery.Body, nil
	}
}
