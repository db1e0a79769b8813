package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RedisQueue implements Queue on a Redis list: RPUSH to the tail and BLPOP
// from the head. This is the default backend.
type RedisQueue struct {
	rdb    *goredis.Client
	key    string
	logger *slog.Logger
}

// NewRedisQueue creates a queue backed by the Redis list stored under key.
func NewRedisQueue(rdb *goredis.Client, key string, logger *slog.Logger) *RedisQueue {
	return &RedisQueue{
		rdb:    rdb,
		key:    key,
		logger: logger,
	}
}

func (q *RedisQueue) Push(ctx context.Context, body []byte) error {
	if err := q.rdb.RPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("failed to push to queue %s: %w", q.key, err)
	}

	q.logger.Debug("Item pushed to queue",
		slog.String("queue", q.key),
		slog.Int("body_size", len(body)),
	)

	return nil
}

func (q *RedisQueue) BlockingPop(ctx context.Context, timeout time.Duration) ([]byte, error) {
	// BLPOP with timeout 0 blocks until an item arrives; go-redis unblocks
	// the call when ctx is cancelled.
	res, err := q.rdb.BLPop(ctx, timeout, q.key).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrEmptyQueue
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("failed to pop from queue %s: %w", q.key, err)
	}

	// BLPOP returns [key, value]
	if len(res) != 2 {
		return nil, fmt.Errorf("unexpected BLPOP reply length %d", len(res))
	}

	return []byte(res[1]), nil
}
