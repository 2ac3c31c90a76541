package shelf

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"shelf-go/internal/model"
)

const (
	// DefaultMaxHammingDistance is the near-duplicate threshold used when a
	// caller passes a negative distance.
	DefaultMaxHammingDistance = 5

	defaultChildrenPageSize = 100
)

// Service is the namespace and duplicate-detection engine. It resolves
// logical paths (through mounts), applies tree mutations under a per-namespace
// lock, keeps the fingerprint index and account usage in step with the tree,
// and records an audit entry for every mutation.
type Service struct {
	db      Database
	storage Storage
	queue   TaskQueue
	spool   Spool
	logger  Logger
	clock   Clock
	ids     IDGenerator
	metrics Metrics
	locks   *keyedMutex

	maxDistance int
	pageSize    int
}

// Option customises a Service.
type Option func(*Service)

func WithLogger(l Logger) Option           { return func(s *Service) { s.logger = l } }
func WithClock(c Clock) Option             { return func(s *Service) { s.clock = c } }
func WithIDGenerator(g IDGenerator) Option { return func(s *Service) { s.ids = g } }
func WithMetrics(m Metrics) Option         { return func(s *Service) { s.metrics = m } }

// WithMaxHammingDistance sets the default near-duplicate threshold.
func WithMaxHammingDistance(d int) Option {
	return func(s *Service) {
		if d >= 0 {
			s.maxDistance = d
		}
	}
}

// WithChildrenPageSize sets how many children are fetched per round trip.
func WithChildrenPageSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// NewService creates a Service over its collaborators.
func NewService(db Database, storage Storage, queue TaskQueue, spool Spool, opts ...Option) *Service {
	s := &Service{
		db:          db,
		storage:     storage,
		queue:       queue,
		spool:       spool,
		logger:      NewNopLogger(),
		clock:       RealClock{},
		ids:         UUIDGenerator{},
		metrics:     NopMetrics{},
		locks:       newKeyedMutex(),
		maxDistance: DefaultMaxHammingDistance,
		pageSize:    defaultChildrenPageSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// observe reports an operation's outcome. Use as
// defer s.observe("move", time.Now(), &err).
func (s *Service) observe(op string, start time.Time, err *error) {
	s.metrics.ObserveOperation(op, *err, time.Since(start))
}

// namespace loads a namespace by path.
func (s *Service) namespace(ctx context.Context, nsPath string) (*model.Namespace, error) {
	ns, err := s.db.FindNamespaceByPath(ctx, nsPath)
	if err != nil {
		return nil, fmt.Errorf("finding namespace: %w", err)
	}
	if ns == nil {
		return nil, fmt.Errorf("%w: namespace %q", ErrNotFound, nsPath)
	}
	return ns, nil
}

// accountFor returns the account charged for content in ns.
func (s *Service) accountFor(ctx context.Context, ns *model.Namespace) (*model.Account, error) {
	acc, err := s.db.FindAccountByUserID(ctx, ns.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	if acc == nil {
		return nil, fmt.Errorf("%w: account for namespace %q", ErrNotFound, ns.Path)
	}
	return acc, nil
}

// lockNamespace serialises tree mutations of one namespace.
func (s *Service) lockNamespace(ctx context.Context, ns *model.Namespace) (func(), error) {
	unlock, err := s.locks.Lock(ctx, ns.ID)
	if err != nil {
		return nil, fmt.Errorf("locking namespace %q: %w", ns.Path, err)
	}
	return unlock, nil
}

// findFile loads a node by path, mapping absence to ErrNotFound.
func (s *Service) findFile(ctx context.Context, ns *model.Namespace, p string) (*model.File, error) {
	f, err := s.db.FindFile(ctx, ns.ID, PathKey(p))
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	if f == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
	}
	return f, nil
}

// enqueue places a background job on the queue. Failures are logged only:
// pending deletions stay in the database for RetryPendingDeletions and
// fingerprints can be rebuilt by IndexFile.
func (s *Service) enqueue(ctx context.Context, jobType string, payload any) {
	if s.queue == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("encoding job payload failed", "type", jobType, "error", err)
		return
	}
	job := &Job{ID: s.ids.New(), Type: jobType, Payload: data, EnqueuedAt: s.clock.Now()}
	if err := s.queue.Enqueue(context.WithoutCancel(ctx), job); err != nil {
		s.logger.Warn("enqueueing job failed", "type", jobType, "error", err)
	}
}

// enqueuePending schedules physical deletion of queued content.
func (s *Service) enqueuePending(ctx context.Context, pending []*model.FilePendingDeletion) {
	if len(pending) == 0 {
		return
	}
	ids := make([]string, len(pending))
	for i, p := range pending {
		ids[i] = p.ID
	}
	s.enqueue(ctx, JobProcessPendingDeletions, PendingDeletionsPayload{IDs: ids})
}

// trashKey is the lookup key of the trash root.
func trashKey() string {
	return PathKey(TrashName)
}

// isProtected reports whether p is the root or the trash root.
func isProtected(p string) bool {
	return p == RootPath || PathKey(p) == trashKey()
}

// inTrash reports whether p is the trash root or lies beneath it.
func inTrash(p string) bool {
	return IsWithin(p, TrashName)
}
