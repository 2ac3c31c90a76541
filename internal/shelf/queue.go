package shelf

import (
	"context"
	"errors"
	"time"
)

// ErrQueueClosed is returned by a TaskQueue after Close.
var ErrQueueClosed = errors.New("queue closed")

// Job types placed on the task queue.
const (
	JobIndexFingerprint        = "index_fingerprint"
	JobProcessPendingDeletions = "process_pending_deletions"
)

// Job is a unit of background work.
type Job struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Payload    []byte    `json:"payload"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// TaskQueue carries background jobs to the worker. Delivery is at least
// once; handlers must be idempotent.
type TaskQueue interface {
	Enqueue(ctx context.Context, job *Job) error

	// Dequeue blocks up to timeout for the next job. It returns (nil, nil)
	// when nothing arrived in time.
	Dequeue(ctx context.Context, timeout time.Duration) (*Job, error)

	Close() error
}

// IndexFingerprintPayload is the payload of JobIndexFingerprint.
type IndexFingerprintPayload struct {
	FileID string `json:"file_id"`
}

// PendingDeletionsPayload is the payload of JobProcessPendingDeletions.
type PendingDeletionsPayload struct {
	IDs []string `json:"ids"`
}
