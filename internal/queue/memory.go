// Package queue provides TaskQueue backends for background jobs.
package queue

import (
	"context"
	"sync"
	"time"

	"shelf-go/internal/shelf"
)

// ErrClosed is returned by operations on a closed queue.
var ErrClosed = shelf.ErrQueueClosed

// MemoryQueue is an in-process FIFO queue. Jobs are lost when the process
// exits, so it suits tests and single-process CLI use where the caller
// drains the queue before exiting.
type MemoryQueue struct {
	mu     sync.Mutex
	jobs   []*shelf.Job
	notify chan struct{}
	closed bool
}

// NewMemoryQueue creates an empty queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{notify: make(chan struct{}, 1)}
}

// Enqueue appends job to the queue.
func (q *MemoryQueue) Enqueue(ctx context.Context, job *shelf.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return ErrClosed
	}
	q.jobs = append(q.jobs, job)
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

// Dequeue returns the oldest job, waiting up to timeout for one to arrive.
// A zero timeout does not wait.
func (q *MemoryQueue) Dequeue(ctx context.Context, timeout time.Duration) (*shelf.Job, error) {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	for {
		job, err := q.pop()
		if job != nil || err != nil {
			return job, err
		}
		if timeout <= 0 {
			return nil, nil
		}

		select {
		case <-q.notify:
		case <-deadline:
			return q.pop()
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

func (q *MemoryQueue) pop() (*shelf.Job, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return nil, ErrClosed
	}
	if len(q.jobs) == 0 {
		return nil, nil
	}
	job := q.jobs[0]
	q.jobs[0] = nil
	q.jobs = q.jobs[1:]
	if len(q.jobs) > 0 {
		select {
		case q.notify <- struct{}{}:
		default:
		}
	}
	return job, nil
}

// Len returns the number of queued jobs.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.jobs)
}

// Close discards queued jobs and rejects further use.
func (q *MemoryQueue) Close() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.jobs = nil
	select {
	case q.notify <- struct{}{}:
	default:
	}
	return nil
}

var _ shelf.TaskQueue = (*MemoryQueue)(nil)
