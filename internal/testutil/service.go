package testutil

import (
	"context"
	"database/sql"
	"testing"

	"shelf-go/internal/database"
	"shelf-go/internal/model"
	"shelf-go/internal/queue"
	"shelf-go/internal/shelf"
	"shelf-go/internal/spool"
	"shelf-go/internal/storage"
	"shelf-go/internal/worker"
)

// Env is a Service over in-memory collaborators, with handles on each so
// tests can inspect them.
type Env struct {
	Service *shelf.Service
	DB      *database.SQLiteDatabase
	Storage *storage.MemoryStorage
	Queue   *queue.MemoryQueue
	Clock   *StubClock
	IDs     *StubIDGenerator
}

// NewTestService builds an Env. opts are applied after the test defaults.
func NewTestService(t *testing.T, opts ...shelf.Option) *Env {
	t.Helper()

	clock := FixedClock()
	ids := NewStubIDGenerator()
	env := &Env{
		DB:      NewTestDatabase(t, clock, ids),
		Storage: storage.NewMemoryStorage(),
		Queue:   NewTestQueue(t),
		Clock:   clock,
		IDs:     ids,
	}
	all := append([]shelf.Option{shelf.WithClock(clock), shelf.WithIDGenerator(ids)}, opts...)
	env.Service = shelf.NewService(env.DB, env.Storage, env.Queue, spool.NewMemorySpool(0), all...)
	return env
}

// NewTestQueue returns a memory queue closed when the test completes.
func NewTestQueue(t *testing.T) *queue.MemoryQueue {
	t.Helper()
	q := queue.NewMemoryQueue()
	t.Cleanup(func() { q.Close() })
	return q
}

// NewTestStorage returns an empty memory storage.
func NewTestStorage() *storage.MemoryStorage {
	return storage.NewMemoryStorage()
}

// CreateUser creates a user, failing the test on error. quota < 0 means
// unlimited.
func (e *Env) CreateUser(t *testing.T, username string, quota int64) *model.User {
	t.Helper()
	q := sql.NullInt64{Int64: quota, Valid: quota >= 0}
	u, err := e.Service.CreateUser(context.Background(), username, q)
	if err != nil {
		t.Fatalf("CreateUser(%q) error = %v", username, err)
	}
	return u
}

// RunJobs handles every queued background job and returns how many ran.
func (e *Env) RunJobs(t *testing.T) int {
	t.Helper()
	n, err := worker.NewRunner(e.Service, e.Queue, nil, nil, worker.Options{}).Drain(context.Background())
	if err != nil {
		t.Fatalf("Drain() error = %v", err)
	}
	return n
}
