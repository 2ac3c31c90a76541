package shelf_test

import (
	"context"
	"errors"
	"io"
	"slices"
	"strings"
	"testing"

	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
	"shelf-go/internal/testutil"
)

func upload(t *testing.T, env *testutil.Env, ns, p, content string) *model.File {
	t.Helper()
	f, err := env.Service.Upload(context.Background(), ns, p, strings.NewReader(content))
	if err != nil {
		t.Fatalf("Upload(%q) error = %v", p, err)
	}
	return f
}

func mkdirs(t *testing.T, env *testutil.Env, ns string, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := env.Service.MakeDirs(context.Background(), ns, p); err != nil {
			t.Fatalf("MakeDirs(%q) error = %v", p, err)
		}
	}
}

func children(t *testing.T, svc *shelf.Service, ns, dir string) []string {
	t.Helper()
	var names []string
	for e, err := range svc.Children(context.Background(), ns, dir) {
		if err != nil {
			t.Fatalf("Children(%q) error = %v", dir, err)
		}
		names = append(names, e.Name)
	}
	return names
}

func readAll(t *testing.T, svc *shelf.Service, ns, p string) string {
	t.Helper()
	rc, _, err := svc.Open(context.Background(), ns, p)
	if err != nil {
		t.Fatalf("Open(%q) error = %v", p, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading %q: %v", p, err)
	}
	return string(data)
}

func TestService_CreateAndResolve(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	if _, err := svc.CreateFolder(ctx, "alice", "Docs"); err != nil {
		t.Fatalf("CreateFolder() error = %v", err)
	}
	created := upload(t, env, "alice", "Docs/Report.txt", "quarterly numbers")

	t.Run("case-insensitive lookup", func(t *testing.T) {
		f, err := svc.Resolve(ctx, "alice", "/docs//REPORT.TXT")
		if err != nil {
			t.Fatalf("Resolve() error = %v", err)
		}
		if f.ID != created.ID || f.Path != "Docs/Report.txt" {
			t.Errorf("Resolve() = %s %q, want %s %q", f.ID, f.Path, created.ID, "Docs/Report.txt")
		}
		if f.ContentHash != testutil.ContentHash([]byte("quarterly numbers")) {
			t.Errorf("ContentHash = %q", f.ContentHash)
		}
	})

	t.Run("errors", func(t *testing.T) {
		tests := []struct {
			name string
			fn   func() error
			want error
		}{
			{"existing path", func() error {
				_, err := svc.CreateFolder(ctx, "alice", "docs")
				return err
			}, shelf.ErrConflict},
			{"upload over existing", func() error {
				_, err := svc.Upload(ctx, "alice", "docs/report.TXT", strings.NewReader("x"))
				return err
			}, shelf.ErrConflict},
			{"missing parent", func() error {
				_, err := svc.CreateFolder(ctx, "alice", "nope/inner")
				return err
			}, shelf.ErrInvalidPath},
			{"parent is a file", func() error {
				_, err := svc.CreateFolder(ctx, "alice", "Docs/Report.txt/sub")
				return err
			}, shelf.ErrInvalidPath},
			{"inside the trash", func() error {
				_, err := svc.CreateFolder(ctx, "alice", "Trash/x")
				return err
			}, shelf.ErrInvalidPath},
			{"trash root", func() error {
				_, err := svc.CreateFolder(ctx, "alice", "trash")
				return err
			}, shelf.ErrConflict},
			{"missing file", func() error {
				_, err := svc.Resolve(ctx, "alice", "docs/missing")
				return err
			}, shelf.ErrNotFound},
			{"unknown namespace", func() error {
				_, err := svc.Resolve(ctx, "nobody", "docs")
				return err
			}, shelf.ErrNotFound},
			{"dot-dot", func() error {
				_, err := svc.Resolve(ctx, "alice", "docs/../etc")
				return err
			}, shelf.ErrInvalidPath},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if err := tt.fn(); !errors.Is(err, tt.want) {
					t.Errorf("error = %v, want %v", err, tt.want)
				}
			})
		}
	})

	t.Run("open", func(t *testing.T) {
		if got := readAll(t, svc, "alice", "docs/report.txt"); got != "quarterly numbers" {
			t.Errorf("content = %q", got)
		}
		if _, _, err := svc.Open(ctx, "alice", "docs"); !errors.Is(err, shelf.ErrInvalidPath) {
			t.Errorf("Open(folder) error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("stat root", func(t *testing.T) {
		e, err := svc.Stat(ctx, "alice", "/")
		if err != nil {
			t.Fatalf("Stat() error = %v", err)
		}
		if !e.File.IsFolder() || e.Path != shelf.RootPath || e.Grant != nil {
			t.Errorf("Stat(root) = %+v", e)
		}
	})
}

func TestService_Children(t *testing.T) {
	env := testutil.NewTestService(t, shelf.WithChildrenPageSize(2))
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	mkdirs(t, env, "alice", "b", "D", "a/nested")
	upload(t, env, "alice", "c.txt", "c")
	upload(t, env, "alice", "E.txt", "e")

	want := []string{"a", "b", "c.txt", "D", "E.txt"}
	if got := children(t, svc, "alice", "/"); !slices.Equal(got, want) {
		t.Errorf("Children(root) = %v, want %v (trash hidden, case-folded order)", got, want)
	}

	t.Run("restartable", func(t *testing.T) {
		seq := svc.Children(ctx, "alice", "")
		var first []string
		for e, err := range seq {
			if err != nil {
				t.Fatal(err)
			}
			first = append(first, e.Name)
			if len(first) == 3 {
				break
			}
		}
		var again []string
		for e, err := range seq {
			if err != nil {
				t.Fatal(err)
			}
			again = append(again, e.Name)
		}
		if !slices.Equal(first, want[:3]) || !slices.Equal(again, want) {
			t.Errorf("first = %v, again = %v", first, again)
		}
	})

	t.Run("immediate children only", func(t *testing.T) {
		if got := children(t, svc, "alice", "A"); !slices.Equal(got, []string{"nested"}) {
			t.Errorf("Children(A) = %v", got)
		}
	})

	t.Run("not a folder", func(t *testing.T) {
		for _, err := range svc.Children(ctx, "alice", "c.txt") {
			if !errors.Is(err, shelf.ErrInvalidPath) {
				t.Errorf("Children(file) error = %v, want ErrInvalidPath", err)
			}
		}
	})
}

func TestService_MakeDirs(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	f, err := svc.MakeDirs(ctx, "alice", "a/b/c")
	if err != nil {
		t.Fatalf("MakeDirs() error = %v", err)
	}
	if f.Path != "a/b/c" || !f.IsFolder() {
		t.Errorf("MakeDirs() = %q", f.Path)
	}
	if _, err := svc.MakeDirs(ctx, "alice", "A/B/c/d"); err != nil {
		t.Fatalf("MakeDirs() over existing folders error = %v", err)
	}
	if _, err := svc.Resolve(ctx, "alice", "a/b/c/d"); err != nil {
		t.Errorf("Resolve(a/b/c/d) error = %v", err)
	}

	upload(t, env, "alice", "a/file", "x")
	if _, err := svc.MakeDirs(ctx, "alice", "a/file/sub"); !errors.Is(err, shelf.ErrInvalidPath) {
		t.Errorf("MakeDirs() through a file error = %v, want ErrInvalidPath", err)
	}
}

func TestService_Move(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()
	svc := env.Service

	mkdirs(t, env, "alice", "photos/2023/summer", "photos/2023/winter", "archive")
	upload(t, env, "alice", "photos/2023/summer/beach.txt", "sand")
	upload(t, env, "alice", "photos/2023/winter/snow.txt", "ice")
	upload(t, env, "alice", "photos/2023/index.txt", "list")

	before := []string{
		"photos/2023/summer",
		"photos/2023/summer/beach.txt",
		"photos/2023/winter",
		"photos/2023/winter/snow.txt",
		"photos/2023/index.txt",
	}
	ids := make(map[string]string)
	for _, p := range before {
		f, err := svc.Resolve(ctx, "alice", p)
		if err != nil {
			t.Fatalf("Resolve(%q) error = %v", p, err)
		}
		ids[p] = f.ID
	}

	moved, err := svc.Move(ctx, "alice", "photos/2023", "ARCHIVE/old-2023")
	if err != nil {
		t.Fatalf("Move() error = %v", err)
	}
	if moved.Path != "archive/old-2023" {
		t.Errorf("Move() path = %q, want the parent's stored case", moved.Path)
	}

	for _, p := range before {
		newPath := shelf.ReplacePrefix(p, "photos/2023", "archive/old-2023")
		f, err := svc.Resolve(ctx, "alice", newPath)
		if err != nil {
			t.Fatalf("Resolve(%q) after move error = %v", newPath, err)
		}
		if f.ID != ids[p] || f.Path != newPath {
			t.Errorf("%s moved to %s %q, want %s %q", p, f.ID, f.Path, ids[p], newPath)
		}
		if _, err := svc.Resolve(ctx, "alice", p); !errors.Is(err, shelf.ErrNotFound) {
			t.Errorf("Resolve(%q) after move error = %v, want ErrNotFound", p, err)
		}
	}

	t.Run("rename case only", func(t *testing.T) {
		f, err := svc.Move(ctx, "alice", "archive", "Archive")
		if err != nil {
			t.Fatalf("Move() error = %v", err)
		}
		if f.Path != "Archive" {
			t.Errorf("Path = %q", f.Path)
		}
		if _, err := svc.Resolve(ctx, "alice", "Archive/old-2023/summer/beach.txt"); err != nil {
			t.Errorf("descendant lost after case rename: %v", err)
		}
	})

	t.Run("errors", func(t *testing.T) {
		mkdirs(t, env, "alice", "taken")
		tests := []struct {
			name     string
			from, to string
			want     error
		}{
			{"destination exists", "Archive", "TAKEN", shelf.ErrConflict},
			{"into itself", "Archive", "archive/old-2023/x", shelf.ErrInvalidPath},
			{"root", "/", "x", shelf.ErrInvalidPath},
			{"trash", "Trash", "x", shelf.ErrInvalidPath},
			{"into the trash", "taken", "Trash/taken", shelf.ErrInvalidPath},
			{"missing source", "missing", "x", shelf.ErrNotFound},
			{"missing destination parent", "taken", "nope/taken", shelf.ErrInvalidPath},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				if _, err := svc.Move(ctx, "alice", tt.from, tt.to); !errors.Is(err, tt.want) {
					t.Errorf("Move(%q, %q) error = %v, want %v", tt.from, tt.to, err, tt.want)
				}
			})
		}
	})
}

func TestService_MoveCancelled(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	mkdirs(t, env, "alice", "a/b", "c")
	upload(t, env, "alice", "a/b/f.txt", "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := env.Service.Move(ctx, "alice", "a", "c/a"); err == nil {
		t.Fatal("Move() with a cancelled context succeeded")
	}
	for _, p := range []string{"a", "a/b", "a/b/f.txt"} {
		if _, err := env.Service.Resolve(context.Background(), "alice", p); err != nil {
			t.Errorf("Resolve(%q) after cancelled move error = %v", p, err)
		}
	}
}

func TestService_Delete(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 1000)
	ctx := context.Background()
	svc := env.Service

	mkdirs(t, env, "alice", "old/sub")
	upload(t, env, "alice", "old/a.txt", "aaaa")
	upload(t, env, "alice", "old/sub/b.txt", "bbbbbb")
	upload(t, env, "alice", "keep.txt", "aaaa")
	env.RunJobs(t)

	if err := svc.Delete(ctx, "alice", "OLD"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for _, p := range []string{"old", "old/sub", "old/a.txt", "old/sub/b.txt"} {
		if _, err := svc.Resolve(ctx, "alice", p); !errors.Is(err, shelf.ErrNotFound) {
			t.Errorf("Resolve(%q) after delete error = %v, want ErrNotFound", p, err)
		}
	}

	usage, err := svc.Usage(ctx, "alice")
	if err != nil {
		t.Fatalf("Usage() error = %v", err)
	}
	if usage.UsedBytes != 4 {
		t.Errorf("UsedBytes = %d, want 4 (keep.txt only)", usage.UsedBytes)
	}

	if n := env.RunJobs(t); n != 1 {
		t.Errorf("RunJobs() = %d, want 1 purge job", n)
	}
	if got := env.Storage.Keys("alice"); got != 1 {
		t.Errorf("stored keys = %d, want 1 (content shared with keep.txt survives)", got)
	}
	if got := readAll(t, svc, "alice", "keep.txt"); got != "aaaa" {
		t.Errorf("keep.txt = %q", got)
	}

	for _, p := range []string{"/", "Trash"} {
		if err := svc.Delete(ctx, "alice", p); !errors.Is(err, shelf.ErrInvalidPath) {
			t.Errorf("Delete(%q) error = %v, want ErrInvalidPath", p, err)
		}
	}
}

func TestService_Copy(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", 1<<20)
	ctx := context.Background()
	svc := env.Service

	img := testutil.HashedPNG(0x00FF00FF00FF00FF, 0)
	upload(t, env, "alice", "img.png", string(img))
	env.RunJobs(t)

	cp, err := svc.Copy(ctx, "alice", "img.png", "copy.png")
	if err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if n := env.RunJobs(t); n != 0 {
		t.Errorf("RunJobs() = %d, want 0 (fingerprint copied, not recomputed)", n)
	}
	matches, err := svc.FindNearDuplicates(ctx, "alice", 0x00FF00FF00FF00FF, 0)
	if err != nil {
		t.Fatalf("FindNearDuplicates() error = %v", err)
	}
	if len(matches) != 2 || matches[0].File.ID == matches[1].File.ID {
		t.Errorf("FindNearDuplicates() = %+v, want the original and %s", matches, cp.ID)
	}
	if env.Storage.Keys("alice") != 1 {
		t.Errorf("stored keys = %d, want content stored once", env.Storage.Keys("alice"))
	}

	usage, _ := svc.Usage(ctx, "alice")
	if usage.UsedBytes != 2*int64(len(img)) {
		t.Errorf("UsedBytes = %d, want %d", usage.UsedBytes, 2*len(img))
	}

	mkdirs(t, env, "alice", "dir")
	if _, err := svc.Copy(ctx, "alice", "dir", "dir2"); !errors.Is(err, shelf.ErrInvalidPath) {
		t.Errorf("Copy(folder) error = %v, want ErrInvalidPath", err)
	}
	if _, err := svc.Copy(ctx, "alice", "img.png", "copy.png"); !errors.Is(err, shelf.ErrConflict) {
		t.Errorf("Copy() onto existing error = %v, want ErrConflict", err)
	}
}

func TestService_AvailablePath(t *testing.T) {
	env := testutil.NewTestService(t)
	env.CreateUser(t, "alice", -1)
	ctx := context.Background()

	upload(t, env, "alice", "photo.jpg", "1")
	upload(t, env, "alice", "photo (1).jpg", "2")

	tests := []struct {
		in, want string
	}{
		{"free.jpg", "free.jpg"},
		{"PHOTO.jpg", "PHOTO (2).jpg"},
	}
	for _, tt := range tests {
		got, err := env.Service.AvailablePath(ctx, "alice", tt.in)
		if err != nil {
			t.Fatalf("AvailablePath(%q) error = %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("AvailablePath(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
