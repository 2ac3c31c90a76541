package shelf_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"shelf-go/internal/shelf"
	"shelf-go/internal/spool"
	"shelf-go/internal/storage"
	"shelf-go/internal/testutil"
)

// sweepingStorage runs a pending-deletion sweep right after the next Exists
// call answers, the moment an upload has decided to reuse stored bytes.
type sweepingStorage struct {
	*storage.MemoryStorage

	mu      sync.Mutex
	svc     *shelf.Service
	armed   bool
	handled int
	err     error
}

func (s *sweepingStorage) Exists(ctx context.Context, namespace, key string) (bool, error) {
	exists, err := s.MemoryStorage.Exists(ctx, namespace, key)

	s.mu.Lock()
	fire := s.armed
	s.armed = false
	s.mu.Unlock()
	if fire {
		n, sweepErr := s.svc.RetryPendingDeletions(ctx, 0)
		s.mu.Lock()
		s.handled, s.err = n, sweepErr
		s.mu.Unlock()
	}
	return exists, err
}

func TestService_UploadSurvivesConcurrentPurge(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()

	store := &sweepingStorage{MemoryStorage: env.Storage}
	svc := shelf.NewService(env.DB, store, nil, spool.NewMemorySpool(0),
		shelf.WithClock(env.Clock), shelf.WithIDGenerator(env.IDs))
	store.svc = svc

	if _, err := svc.Upload(ctx, "alice", "a.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Upload(a.txt) error = %v", err)
	}
	if err := svc.Delete(ctx, "alice", "a.txt"); err != nil {
		t.Fatalf("Delete(a.txt) error = %v", err)
	}

	store.armed = true
	if _, err := svc.Upload(ctx, "alice", "b.txt", strings.NewReader("hello")); err != nil {
		t.Fatalf("Upload(b.txt) error = %v", err)
	}
	if store.handled != 1 || store.err != nil {
		t.Fatalf("sweep during upload = %d, %v, want the stale record handled", store.handled, store.err)
	}

	if got := readAll(t, svc, "alice", "b.txt"); got != "hello" {
		t.Errorf("b.txt = %q, want %q", got, "hello")
	}
	if n, err := svc.RetryPendingDeletions(ctx, 0); err != nil || n != 0 {
		t.Errorf("RetryPendingDeletions() = %d, %v, want nothing left", n, err)
	}
	if got := readAll(t, svc, "alice", "b.txt"); got != "hello" {
		t.Errorf("b.txt after a later sweep = %q", got)
	}
}

func TestService_UploadsAndSweepsInterleave(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()

	svc := shelf.NewService(env.DB, env.Storage, nil, spool.NewMemorySpool(0),
		shelf.WithClock(env.Clock), shelf.WithIDGenerator(env.IDs))

	for i := 0; i < 20; i++ {
		content := fmt.Sprintf("round %d", i)
		if _, err := svc.Upload(ctx, "alice", fmt.Sprintf("old-%d", i), strings.NewReader(content)); err != nil {
			t.Fatalf("Upload(old-%d) error = %v", i, err)
		}
		if err := svc.Delete(ctx, "alice", fmt.Sprintf("old-%d", i)); err != nil {
			t.Fatalf("Delete(old-%d) error = %v", i, err)
		}

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := svc.Upload(ctx, "alice", fmt.Sprintf("new-%d", i), strings.NewReader(content)); err != nil {
				t.Errorf("Upload(new-%d) error = %v", i, err)
			}
		}()
		go func() {
			defer wg.Done()
			if _, err := svc.RetryPendingDeletions(ctx, 0); err != nil {
				t.Errorf("RetryPendingDeletions() error = %v", err)
			}
		}()
		wg.Wait()

		if got := readAll(t, svc, "alice", fmt.Sprintf("new-%d", i)); got != content {
			t.Fatalf("new-%d = %q, want %q", i, got, content)
		}
	}
}
