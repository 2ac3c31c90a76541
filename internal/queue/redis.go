package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"shelf-go/internal/shelf"
)

// DefaultRedisKey is the list holding queued jobs.
const DefaultRedisKey = "shelf:jobs"

// RedisQueue keeps jobs as JSON in a Redis list. Producers RPUSH and
// consumers BLPOP, so any number of worker processes can share the list.
type RedisQueue struct {
	client *redis.Client
	key    string
}

// RedisOptions configures a RedisQueue.
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Key      string
}

// NewRedisQueue connects to Redis and verifies the connection.
func NewRedisQueue(ctx context.Context, opts RedisOptions) (*RedisQueue, error) {
	if opts.Addr == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}
	key := opts.Key
	if key == "" {
		key = DefaultRedisKey
	}

	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisQueue{client: client, key: key}, nil
}

// Enqueue appends job to the list.
func (q *RedisQueue) Enqueue(ctx context.Context, job *shelf.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encoding job: %w", err)
	}
	if err := q.client.RPush(ctx, q.key, data).Err(); err != nil {
		if errors.Is(err, redis.ErrClosed) {
			return shelf.ErrQueueClosed
		}
		return fmt.Errorf("enqueueing job: %w", err)
	}
	return nil
}

// Dequeue pops the oldest job, blocking up to timeout. A zero timeout does
// not block.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (*shelf.Job, error) {
	var data string
	if timeout <= 0 {
		v, err := q.client.LPop(ctx, q.key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			return nil, dequeueError(err)
		}
		data = v
	} else {
		// BLPOP needs at least one second; shorter waits round up.
		res, err := q.client.BLPop(ctx, max(timeout, time.Second), q.key).Result()
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, dequeueError(err)
		}
		// BLPOP replies with [key, value].
		data = res[1]
	}

	var job shelf.Job
	if err := json.Unmarshal([]byte(data), &job); err != nil {
		return nil, fmt.Errorf("decoding job: %w", err)
	}
	return &job, nil
}

// Len returns the number of queued jobs.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

var _ shelf.TaskQueue = (*RedisQueue)(nil)

func dequeueError(err error) error {
	if errors.Is(err, redis.ErrClosed) {
		return shelf.ErrQueueClosed
	}
	return fmt.Errorf("dequeueing job: %w", err)
}
