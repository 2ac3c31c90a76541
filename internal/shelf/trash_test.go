package shelf_test

import (
	"context"
	"errors"
	"slices"
	"testing"

	"shelf-go/internal/shelf"
	"shelf-go/internal/testutil"
)

func TestService_TrashRoundTrip(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	mkdirs(t, env, "alice", "folder/inner/deep")
	orig := upload(t, env, "alice", "folder/inner/deep/file1.txt", "contents of file1")

	trashed, err := svc.MoveToTrash(ctx, "alice", "folder/inner")
	if err != nil {
		t.Fatalf("MoveToTrash() error = %v", err)
	}
	if trashed.Path != "Trash/inner" || !trashed.IsTrashed() || trashed.TrashedFrom.String != "folder/inner" {
		t.Errorf("MoveToTrash() = %q from %q", trashed.Path, trashed.TrashedFrom.String)
	}
	if !trashed.TrashedAt.Time.Equal(env.Clock.Now()) {
		t.Errorf("TrashedAt = %v, want %v", trashed.TrashedAt.Time, env.Clock.Now())
	}

	child, err := svc.Resolve(ctx, "alice", "Trash/inner/deep/file1.txt")
	if err != nil {
		t.Fatalf("Resolve() in trash error = %v", err)
	}
	if child.IsTrashed() {
		t.Error("descendants should carry no trash record")
	}
	if _, err := svc.Resolve(ctx, "alice", "folder/inner"); !errors.Is(err, shelf.ErrNotFound) {
		t.Errorf("Resolve(original) error = %v, want ErrNotFound", err)
	}

	var listed []string
	for e, err := range svc.ListTrash(ctx, "alice") {
		if err != nil {
			t.Fatalf("ListTrash() error = %v", err)
		}
		listed = append(listed, e.Path)
	}
	if !slices.Equal(listed, []string{"Trash/inner"}) {
		t.Errorf("ListTrash() = %v", listed)
	}

	restored, err := svc.Restore(ctx, "alice", "trash/INNER")
	if err != nil {
		t.Fatalf("Restore() error = %v", err)
	}
	if restored.Path != "folder/inner" || restored.IsTrashed() {
		t.Errorf("Restore() = %q trashed=%v", restored.Path, restored.IsTrashed())
	}
	f, err := svc.Resolve(ctx, "alice", "folder/inner/deep/file1.txt")
	if err != nil {
		t.Fatalf("Resolve() after restore error = %v", err)
	}
	if f.ID != orig.ID || f.ContentHash != orig.ContentHash || f.Size != orig.Size {
		t.Errorf("restored file = %+v, want %+v", f, orig)
	}
}

func TestService_RestoreConflicts(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	t.Run("path recreated", func(t *testing.T) {
		mkdirs(t, env, "alice", "folder/inner")
		if _, err := svc.MoveToTrash(ctx, "alice", "folder/inner"); err != nil {
			t.Fatalf("MoveToTrash() error = %v", err)
		}
		upload(t, env, "alice", "folder/inner", "new file")

		if _, err := svc.Restore(ctx, "alice", "Trash/inner"); !errors.Is(err, shelf.ErrConflict) {
			t.Fatalf("Restore() error = %v, want ErrConflict", err)
		}
		if _, err := svc.Resolve(ctx, "alice", "Trash/inner"); err != nil {
			t.Errorf("trash entry should stay after a failed restore: %v", err)
		}

		moved, err := svc.MoveOut(ctx, "alice", "Trash/inner", "folder/inner-restored")
		if err != nil {
			t.Fatalf("MoveOut() error = %v", err)
		}
		if moved.Path != "folder/inner-restored" || moved.IsTrashed() {
			t.Errorf("MoveOut() = %q trashed=%v", moved.Path, moved.IsTrashed())
		}
	})

	t.Run("parent gone", func(t *testing.T) {
		mkdirs(t, env, "alice", "gone/child")
		if _, err := svc.MoveToTrash(ctx, "alice", "gone/child"); err != nil {
			t.Fatalf("MoveToTrash() error = %v", err)
		}
		if err := svc.Delete(ctx, "alice", "gone"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if _, err := svc.Restore(ctx, "alice", "Trash/child"); !errors.Is(err, shelf.ErrInvalidPath) {
			t.Errorf("Restore() error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("not a trash entry", func(t *testing.T) {
		mkdirs(t, env, "alice", "dir/sub")
		if _, err := svc.MoveToTrash(ctx, "alice", "dir"); err != nil {
			t.Fatalf("MoveToTrash() error = %v", err)
		}
		for _, p := range []string{"Trash/dir/sub", "folder", "Trash"} {
			if _, err := svc.Restore(ctx, "alice", p); !errors.Is(err, shelf.ErrInvalidPath) {
				t.Errorf("Restore(%q) error = %v, want ErrInvalidPath", p, err)
			}
		}

		// Any node in the trash may be moved out explicitly.
		if _, err := svc.MoveOut(ctx, "alice", "Trash/dir/sub", "sub"); err != nil {
			t.Fatalf("MoveOut(descendant) error = %v", err)
		}
		if _, err := svc.MoveOut(ctx, "alice", "folder", "x"); !errors.Is(err, shelf.ErrInvalidPath) {
			t.Errorf("MoveOut() from outside the trash error = %v, want ErrInvalidPath", err)
		}
		if _, err := svc.MoveOut(ctx, "alice", "Trash/dir", "Trash/elsewhere"); !errors.Is(err, shelf.ErrInvalidPath) {
			t.Errorf("MoveOut() into the trash error = %v, want ErrInvalidPath", err)
		}
	})
}

func TestService_MoveToTrash(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	mkdirs(t, env, "alice", "a", "b", "c")
	upload(t, env, "alice", "a/photo.jpg", "1")
	upload(t, env, "alice", "b/photo.jpg", "2")
	upload(t, env, "alice", "c/photo.jpg", "3")

	var got []string
	for _, p := range []string{"a/photo.jpg", "b/photo.jpg", "c/photo.jpg"} {
		f, err := svc.MoveToTrash(ctx, "alice", p)
		if err != nil {
			t.Fatalf("MoveToTrash(%q) error = %v", p, err)
		}
		got = append(got, f.Path)
	}
	want := []string{
		"Trash/photo.jpg",
		"Trash/photo 103000000000.jpg",
		"Trash/photo 103000000000 (1).jpg",
	}
	if !slices.Equal(got, want) {
		t.Errorf("trash names = %v, want %v", got, want)
	}

	tests := []struct {
		name string
		path string
		want error
	}{
		{"root", "/", shelf.ErrInvalidPath},
		{"trash root", "trash", shelf.ErrInvalidPath},
		{"already trashed", "Trash/photo.jpg", shelf.ErrInvalidPath},
		{"missing", "a/missing", shelf.ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.MoveToTrash(ctx, "alice", tt.path); !errors.Is(err, tt.want) {
				t.Errorf("MoveToTrash(%q) error = %v, want %v", tt.path, err, tt.want)
			}
		})
	}
}

func TestService_PurgeAndEmptyTrash(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 100)
	ctx := context.Background()
	svc := env.Service

	mkdirs(t, env, "alice", "dir")
	upload(t, env, "alice", "one.txt", "1111111111")
	upload(t, env, "alice", "dir/two.txt", "2222222222")
	upload(t, env, "alice", "dir/three.txt", "3333333333")
	for _, p := range []string{"one.txt", "dir"} {
		if _, err := svc.MoveToTrash(ctx, "alice", p); err != nil {
			t.Fatalf("MoveToTrash(%q) error = %v", p, err)
		}
	}

	usage, _ := svc.Usage(ctx, "alice")
	if usage.UsedBytes != 30 {
		t.Errorf("UsedBytes = %d, want 30 (trashed files still count)", usage.UsedBytes)
	}

	if err := svc.Purge(ctx, "alice", "Trash/one.txt"); err != nil {
		t.Fatalf("Purge() error = %v", err)
	}
	if err := svc.Purge(ctx, "alice", "dir"); !errors.Is(err, shelf.ErrInvalidPath) {
		t.Errorf("Purge() outside the trash error = %v, want ErrInvalidPath", err)
	}
	if env.RunJobs(t) != 1 {
		t.Error("Purge() should queue one purge job")
	}
	if env.Storage.Keys("alice") != 2 {
		t.Errorf("stored keys = %d, want 2", env.Storage.Keys("alice"))
	}

	n, err := svc.EmptyTrash(ctx, "alice")
	if err != nil {
		t.Fatalf("EmptyTrash() error = %v", err)
	}
	if n != 3 {
		t.Errorf("EmptyTrash() = %d, want 3 nodes", n)
	}
	env.RunJobs(t)
	if env.Storage.Keys("alice") != 0 {
		t.Errorf("stored keys = %d, want 0", env.Storage.Keys("alice"))
	}
	if _, err := svc.Resolve(ctx, "alice", "Trash"); err != nil {
		t.Errorf("trash root should survive EmptyTrash: %v", err)
	}
	usage, _ = svc.Usage(ctx, "alice")
	if usage.UsedBytes != 0 {
		t.Errorf("UsedBytes = %d, want 0", usage.UsedBytes)
	}
}

func TestService_TrashedFilesAreNotDuplicates(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	a := upload(t, env, "alice", "a.txt", "same")
	upload(t, env, "alice", "b.txt", "same")
	if _, err := svc.MoveToTrash(ctx, "alice", "b.txt"); err != nil {
		t.Fatalf("MoveToTrash() error = %v", err)
	}

	dups, err := svc.FindExactDuplicates(ctx, "alice", a.ContentHash)
	if err != nil {
		t.Fatalf("FindExactDuplicates() error = %v", err)
	}
	if len(dups) != 1 || dups[0].ID != a.ID {
		t.Errorf("FindExactDuplicates() = %v, want only a.txt", dups)
	}
}
