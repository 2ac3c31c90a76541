package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"shelf-go/internal/config"
	"shelf-go/internal/database"
	"shelf-go/internal/encryption"
	"shelf-go/internal/metrics"
	"shelf-go/internal/queue"
	"shelf-go/internal/shelf"
	"shelf-go/internal/spool"
	"shelf-go/internal/storage"
	"shelf-go/internal/worker"
)

// sweepInterval is how often a long-running worker retries pending deletions.
const sweepInterval = time.Minute

// ShelfApp is the application layer between the CLI and shelf.Service.
// It constructs all dependencies from config, runs operations on behalf of
// the operation's actor and releases resources on Close.
type ShelfApp struct {
	cfg       *config.Config
	db        *database.SQLiteDatabase
	storage   shelf.Storage
	queue     shelf.TaskQueue
	encryptor shelf.Encryptor
	service   *shelf.Service
	metrics   *metrics.Prometheus
	registry  *prometheus.Registry
	logger    *slog.Logger
	logFile   io.Closer
	op        *Operation
}

// NewShelfApp creates a fully wired ShelfApp from the given config.
// The caller must call Close when done.
func NewShelfApp(ctx context.Context, cfg *config.Config, op *Operation) (*ShelfApp, error) {
	logger, logFile, err := newLogger(cfg.Log, op.ID, os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}

	a := &ShelfApp{cfg: cfg, logger: logger, logFile: logFile, op: op}
	if err := a.wire(ctx); err != nil {
		a.closeResources()
		return nil, err
	}
	logger.Debug("operation started", "operation", op.Name, "actor", op.Actor)
	return a, nil
}

func (a *ShelfApp) wire(ctx context.Context) error {
	cfg := a.cfg

	db, err := database.NewDatabaseFromConfig(cfg.Database, nil, nil)
	if err != nil {
		return fmt.Errorf("creating database: %w", err)
	}
	a.db = db
	if err := db.CheckMigrations(); err != nil {
		return fmt.Errorf("database schema out of date (run `shelf db migrate`): %w", err)
	}

	// The encryptor is only needed when storage is encrypted; a missing key
	// path must not block unencrypted setups.
	if cfg.Storage.Encrypted {
		if a.encryptor, err = encryption.NewEncryptorFromConfig(cfg.Encryption); err != nil {
			return fmt.Errorf("creating encryptor: %w", err)
		}
	}

	if a.storage, err = storage.NewStorageFromConfig(ctx, cfg.Storage, a.encryptor); err != nil {
		return fmt.Errorf("creating storage: %w", err)
	}
	if err := a.storage.ValidateSetup(ctx); err != nil {
		return fmt.Errorf("validating storage: %w", err)
	}

	sp, err := spool.NewSpoolFromConfig(cfg.Spool)
	if err != nil {
		return fmt.Errorf("creating spool: %w", err)
	}

	if a.queue, err = queue.NewQueueFromConfig(ctx, cfg.Queue); err != nil {
		return fmt.Errorf("creating queue: %w", err)
	}

	a.registry = prometheus.NewRegistry()
	a.metrics = metrics.New(a.registry)

	a.service = shelf.NewService(db, a.storage, a.queue, sp,
		shelf.WithLogger(&slogAdapter{l: a.logger}),
		shelf.WithMetrics(a.metrics),
		shelf.WithMaxHammingDistance(cfg.Engine.NearDuplicateDistance),
		shelf.WithChildrenPageSize(cfg.Engine.ChildrenPageSize),
	)
	return nil
}

// Service returns the engine.
func (a *ShelfApp) Service() *shelf.Service {
	return a.service
}

// Logger returns the operation's logger.
func (a *ShelfApp) Logger() *slog.Logger {
	return a.logger
}

// Context returns ctx carrying the operation's actor, so audit entries are
// attributed to them. The actor must exist.
func (a *ShelfApp) Context(ctx context.Context) (context.Context, error) {
	if a.op.Actor == "" {
		return ctx, nil
	}
	u, err := a.service.FindUser(ctx, a.op.Actor)
	if err != nil {
		return nil, fmt.Errorf("resolving actor: %w", err)
	}
	return shelf.WithActor(ctx, u), nil
}

// Unlock derives the decryption key from passphrase so encrypted content
// can be read. Unencrypted storage ignores it.
func (a *ShelfApp) Unlock(passphrase string) error {
	es, ok := a.storage.(*storage.EncryptedStorage)
	if !ok {
		return nil
	}
	dec, err := a.encryptor.Unlock(passphrase)
	if err != nil {
		return fmt.Errorf("unlocking: %w", err)
	}
	es.Unlock(dec)
	return nil
}

// NeedsUnlock reports whether reads require a passphrase.
func (a *ShelfApp) NeedsUnlock() bool {
	_, ok := a.storage.(*storage.EncryptedStorage)
	return ok
}

// newRunner creates a job runner over the app's queue.
func (a *ShelfApp) newRunner(sweep time.Duration) *worker.Runner {
	return worker.NewRunner(a.service, a.queue, &slogAdapter{l: a.logger}, a.metrics, worker.Options{
		Concurrency:   a.cfg.Worker.Concurrency,
		SweepInterval: sweep,
	})
}

// RunWorker consumes background jobs until ctx is cancelled. When metrics
// are enabled, /metrics is served alongside.
func (a *ShelfApp) RunWorker(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.newRunner(sweepInterval).Run(gctx)
	})
	if a.cfg.Metrics.Enabled {
		srv := metrics.NewServer(a.cfg.Metrics.ListenAddr, a.registry, &slogAdapter{l: a.logger})
		g.Go(func() error {
			return srv.Run(gctx)
		})
	}
	return g.Wait()
}

// DrainJobs handles every job already queued and returns how many ran.
func (a *ShelfApp) DrainJobs(ctx context.Context) (int, error) {
	return a.newRunner(0).Drain(ctx)
}

// Close finishes the operation and closes all resources. Jobs left on an
// in-process queue are handled first, since nothing else will see them.
func (a *ShelfApp) Close() error {
	var errs []error

	if _, ok := a.queue.(*queue.MemoryQueue); ok {
		n, err := a.DrainJobs(context.Background())
		if err != nil {
			errs = append(errs, fmt.Errorf("running queued jobs: %w", err))
		} else if n > 0 {
			a.logger.Debug("ran queued jobs", "count", n)
		}
	}

	level := slog.LevelInfo
	if a.op.Err != nil {
		level = slog.LevelError
	}
	a.logger.Log(context.Background(), level, "operation finished",
		"operation", a.op.Name, "status", a.op.Status(), "took", time.Since(a.op.Started))

	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *ShelfApp) closeResources() error {
	var errs []error
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing queue: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing database: %w", err))
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
	return errors.Join(errs...)
}
