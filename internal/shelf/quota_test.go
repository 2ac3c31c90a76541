package shelf_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
	"shelf-go/internal/testutil"
)

func TestService_QuotaScenario(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 100)
	ctx := context.Background()
	svc := env.Service

	upload(t, env, "alice", "first.bin", strings.Repeat("a", 60))

	_, err := svc.Upload(ctx, "alice", "second.bin", strings.NewReader(strings.Repeat("b", 50)))
	if !errors.Is(err, shelf.ErrQuotaExceeded) {
		t.Fatalf("Upload() over quota error = %v, want ErrQuotaExceeded", err)
	}
	if env.Storage.Keys("alice") != 1 {
		t.Errorf("rejected upload reached storage: %d keys", env.Storage.Keys("alice"))
	}
	if _, err := svc.Resolve(ctx, "alice", "second.bin"); !errors.Is(err, shelf.ErrNotFound) {
		t.Errorf("rejected upload left metadata: %v", err)
	}

	if err := svc.Delete(ctx, "alice", "first.bin"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	upload(t, env, "alice", "second.bin", strings.Repeat("b", 50))

	usage, err := svc.Usage(ctx, "alice")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.UsedBytes != 50 || usage.Available() != 50 {
		t.Errorf("usage = %d used, %d available, want 50/50", usage.UsedBytes, usage.Available())
	}
}

func TestService_QuotaConcurrentUploads(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 100)
	ctx := context.Background()

	const writers = 10
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		admitted int
		rejected int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			content := fmt.Sprintf("%030d", i)
			_, err := env.Service.Upload(ctx, "alice", fmt.Sprintf("file-%d", i), strings.NewReader(content))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				admitted++
			case errors.Is(err, shelf.ErrQuotaExceeded):
				rejected++
			default:
				t.Errorf("Upload(%d) error = %v", i, err)
			}
		}()
	}
	wg.Wait()

	if admitted != 3 || rejected != writers-3 {
		t.Errorf("admitted %d, rejected %d; want 3 and %d", admitted, rejected, writers-3)
	}
	usage, err := env.Service.Usage(ctx, "alice")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.UsedBytes != 90 {
		t.Errorf("UsedBytes = %d, want 90", usage.UsedBytes)
	}
}

func TestService_SetQuota(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	upload(t, env, "alice", "big.bin", strings.Repeat("x", 500))
	usage, _ := svc.Usage(ctx, "alice")
	if usage.Quota.Valid || usage.Available() != -1 {
		t.Errorf("unlimited account usage = %+v", usage)
	}

	if err := svc.SetQuota(ctx, "alice", sql.NullInt64{Int64: 100, Valid: true}); err != nil {
		t.Fatalf("SetQuota() error = %v", err)
	}
	usage, _ = svc.Usage(ctx, "alice")
	if usage.Available() != 0 {
		t.Errorf("Available() = %d, want 0 when over quota", usage.Available())
	}
	if _, err := svc.Upload(ctx, "alice", "more.bin", strings.NewReader("y")); !errors.Is(err, shelf.ErrQuotaExceeded) {
		t.Errorf("Upload() over lowered quota error = %v, want ErrQuotaExceeded", err)
	}
	if _, err := svc.CreateFolder(ctx, "alice", "folders-are-free"); err != nil {
		t.Errorf("CreateFolder() over quota error = %v", err)
	}
	if err := svc.SetQuota(ctx, "alice", sql.NullInt64{Int64: -1, Valid: true}); err == nil {
		t.Error("SetQuota() with a negative quota succeeded")
	}
	if err := svc.SetQuota(ctx, "nobody", sql.NullInt64{}); !errors.Is(err, shelf.ErrNotFound) {
		t.Errorf("SetQuota(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestService_CreateReservesDeclaredSize(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 10)
	ctx := context.Background()
	svc := env.Service

	if _, err := svc.Create(ctx, "alice", "meta.bin", shelf.FileAttrs{MediaType: "application/octet-stream", Size: 8}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, err := svc.Create(ctx, "alice", "meta2.bin", shelf.FileAttrs{MediaType: "application/octet-stream", Size: 8}); !errors.Is(err, shelf.ErrQuotaExceeded) {
		t.Errorf("Create() over quota error = %v, want ErrQuotaExceeded", err)
	}
	if _, err := svc.Create(ctx, "alice", "meta.bin", shelf.FileAttrs{MediaType: "application/octet-stream", Size: 1}); !errors.Is(err, shelf.ErrConflict) {
		t.Errorf("Create() on a taken path error = %v, want ErrConflict", err)
	}
	usage, _ := svc.Usage(ctx, "alice")
	if usage.UsedBytes != 8 {
		t.Errorf("UsedBytes = %d, want 8 (failed create released its reservation)", usage.UsedBytes)
	}
}

func TestService_CreateFolderIgnoresDeclaredSize(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 100)
	ctx := context.Background()
	svc := env.Service

	dir, err := svc.Create(ctx, "alice", "dir", shelf.FileAttrs{MediaType: model.MediaTypeFolder, Size: 60})
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if dir.Size != 0 {
		t.Errorf("folder Size = %d, want 0", dir.Size)
	}
	usage, _ := svc.Usage(ctx, "alice")
	if usage.UsedBytes != 0 {
		t.Errorf("UsedBytes after creating a folder = %d, want 0", usage.UsedBytes)
	}

	if _, err := svc.Create(ctx, "alice", "big-dir", shelf.FileAttrs{MediaType: model.MediaTypeFolder, Size: 1000}); err != nil {
		t.Errorf("Create() of a folder declaring more than the quota error = %v", err)
	}
	if err := svc.Delete(ctx, "alice", "dir"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	usage, _ = svc.Usage(ctx, "alice")
	if usage.UsedBytes != 0 {
		t.Errorf("UsedBytes after deleting the folder = %d, want 0", usage.UsedBytes)
	}
}
