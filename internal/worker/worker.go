// Package worker consumes background jobs from the task queue.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"shelf-go/internal/shelf"
)

// Engine is the part of the engine the worker drives.
type Engine interface {
	IndexFile(ctx context.Context, fileID string) error
	ProcessPendingDeletions(ctx context.Context, ids []string) (int, error)
	RetryPendingDeletions(ctx context.Context, limit int) (int, error)
}

// Options tunes a Runner.
type Options struct {
	// Concurrency bounds the jobs handled at once. Defaults to 1.
	Concurrency int
	// PollTimeout is how long one Dequeue waits. Defaults to 5s.
	PollTimeout time.Duration
	// SweepInterval is how often leftover pending deletions are retried.
	// Zero disables the sweep.
	SweepInterval time.Duration
	// SweepLimit caps records per sweep. Defaults to 500.
	SweepLimit int
}

// Runner dequeues jobs and dispatches them to the engine. Handlers are
// idempotent, so a job delivered twice is harmless.
type Runner struct {
	engine  Engine
	queue   shelf.TaskQueue
	logger  shelf.Logger
	metrics shelf.Metrics
	opts    Options
}

// NewRunner creates a Runner. A nil logger or metrics discards output.
func NewRunner(engine Engine, queue shelf.TaskQueue, logger shelf.Logger, metrics shelf.Metrics, opts Options) *Runner {
	if logger == nil {
		logger = shelf.NewNopLogger()
	}
	if metrics == nil {
		metrics = shelf.NopMetrics{}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = 5 * time.Second
	}
	if opts.SweepLimit <= 0 {
		opts.SweepLimit = 500
	}
	return &Runner{engine: engine, queue: queue, logger: logger, metrics: metrics, opts: opts}
}

// Run handles jobs until ctx is cancelled or the queue is closed. In-flight
// jobs finish before it returns.
func (r *Runner) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency + 1)

	sweepCtx, stopSweep := context.WithCancel(gctx)
	defer stopSweep()
	if r.opts.SweepInterval > 0 {
		g.Go(func() error {
			r.sweep(sweepCtx)
			return nil
		})
	}

	r.logger.Info("worker started", "concurrency", r.opts.Concurrency)
	for {
		job, err := r.queue.Dequeue(gctx, r.opts.PollTimeout)
		if gctx.Err() != nil {
			break
		}
		if errors.Is(err, shelf.ErrQueueClosed) {
			r.logger.Info("queue closed")
			stopSweep()
			break
		}
		if err != nil {
			r.logger.Error("dequeue failed", "error", err)
			select {
			case <-time.After(time.Second):
			case <-gctx.Done():
			}
			continue
		}
		if job == nil {
			continue
		}
		g.Go(func() error {
			r.Handle(gctx, job)
			return nil
		})
	}

	err := g.Wait()
	r.logger.Info("worker stopped")
	return err
}

// Drain handles queued jobs until the queue is empty and returns how many
// it handled.
func (r *Runner) Drain(ctx context.Context) (int, error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)

	n := 0
	for {
		job, err := r.queue.Dequeue(gctx, 0)
		if errors.Is(err, shelf.ErrQueueClosed) {
			break
		}
		if err != nil {
			g.Wait()
			return n, fmt.Errorf("dequeueing job: %w", err)
		}
		if job == nil {
			break
		}
		n++
		g.Go(func() error {
			r.Handle(gctx, job)
			return nil
		})
	}
	return n, g.Wait()
}

// Handle runs one job. Failures are logged and counted; the job is not
// requeued since every handler can be reissued safely later.
func (r *Runner) Handle(ctx context.Context, job *shelf.Job) error {
	start := time.Now()
	err := r.dispatch(ctx, job)
	r.metrics.ObserveJob(job.Type, err, time.Since(start))

	switch {
	case errors.Is(err, errUnknownJob):
		r.logger.Warn("dropping job", "id", job.ID, "type", job.Type)
	case err != nil:
		r.logger.Error("job failed", "id", job.ID, "type", job.Type, "error", err)
	default:
		r.logger.Debug("job done", "id", job.ID, "type", job.Type, "took", time.Since(start))
	}
	return err
}

var errUnknownJob = errors.New("unknown job type")

func (r *Runner) dispatch(ctx context.Context, job *shelf.Job) error {
	switch job.Type {
	case shelf.JobIndexFingerprint:
		var p shelf.IndexFingerprintPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}
		return r.engine.IndexFile(ctx, p.FileID)

	case shelf.JobProcessPendingDeletions:
		var p shelf.PendingDeletionsPayload
		if err := json.Unmarshal(job.Payload, &p); err != nil {
			return fmt.Errorf("decoding payload: %w", err)
		}
		_, err := r.engine.ProcessPendingDeletions(ctx, p.IDs)
		return err

	default:
		return fmt.Errorf("%w: %s", errUnknownJob, job.Type)
	}
}

func (r *Runner) sweep(ctx context.Context) {
	ticker := time.NewTicker(r.opts.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := r.engine.RetryPendingDeletions(ctx, r.opts.SweepLimit)
			if err != nil && ctx.Err() == nil {
				r.logger.Error("pending deletion sweep failed", "error", err)
			} else if n > 0 {
				r.logger.Info("pending deletion sweep", "handled", n)
			}
		}
	}
}
