package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
)

var testNow = time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC)

type fixedClock struct{}

func (fixedClock) Now() time.Time { return testNow }

type seqIDs struct{ n int }

func (g *seqIDs) New() string {
	g.n++
	return fmt.Sprintf("gen-%d", g.n)
}

// newTestDB creates a new in-memory database with schema applied.
func newTestDB(t *testing.T) *SQLiteDatabase {
	t.Helper()

	db, err := NewSQLiteDatabase(":memory:", fixedClock{}, &seqIDs{})
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	if _, err := db.db.Exec(Schema); err != nil {
		db.Close()
		t.Fatalf("failed to apply schema: %v", err)
	}

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

func folder(nsID, id, path string) *model.File {
	return node(nsID, id, path, model.MediaTypeFolder, 0, "")
}

func node(nsID, id, path, mediaType string, size int64, hash string) *model.File {
	return &model.File{
		ID:          id,
		NamespaceID: nsID,
		Name:        shelf.BaseName(path),
		Path:        path,
		PathKey:     shelf.PathKey(path),
		ParentKey:   shelf.PathKey(shelf.ParentPath(path)),
		Size:        size,
		ContentHash: hash,
		MediaType:   mediaType,
		ModifiedAt:  testNow,
	}
}

// createUser inserts a user named name with namespace "ns-<name>".
func createUser(t *testing.T, db *SQLiteDatabase, name string, quota sql.NullInt64) *model.Namespace {
	t.Helper()
	u := &model.User{ID: "user-" + name, Username: name, CreatedAt: testNow}
	ns := &model.Namespace{ID: "ns-" + name, Path: name, OwnerID: u.ID, CreatedAt: testNow}
	err := db.CreateUser(context.Background(), shelf.CreateUserParams{
		User:      u,
		Account:   &model.Account{ID: "acct-" + name, UserID: u.ID, StorageQuota: quota, CreatedAt: testNow},
		Namespace: ns,
		Root:      folder(ns.ID, name+"-root", shelf.RootPath),
		Trash:     folder(ns.ID, name+"-trash", shelf.TrashName),
	})
	if err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}
	return ns
}

func mustCreate(t *testing.T, db *SQLiteDatabase, f *model.File) *model.File {
	t.Helper()
	if err := db.CreateFile(context.Background(), f); err != nil {
		t.Fatalf("CreateFile(%s) error = %v", f.Path, err)
	}
	return f
}

func TestSQLiteDatabase_CreateUser(t *testing.T) {
	ctx := context.Background()

	t.Run("creates namespace with root and trash", func(t *testing.T) {
		db := newTestDB(t)
		ns := createUser(t, db, "alice", sql.NullInt64{})

		got, err := db.FindNamespaceByPath(ctx, "Alice")
		if err != nil {
			t.Fatalf("FindNamespaceByPath() error = %v", err)
		}
		if got == nil || got.ID != ns.ID {
			t.Fatalf("FindNamespaceByPath() = %v, want %s", got, ns.ID)
		}
		for _, key := range []string{".", "trash"} {
			f, err := db.FindFile(ctx, ns.ID, key)
			if err != nil {
				t.Fatalf("FindFile(%q) error = %v", key, err)
			}
			if f == nil || !f.IsFolder() {
				t.Errorf("FindFile(%q) = %v, want folder", key, f)
			}
		}
	})

	t.Run("rejects duplicate username ignoring case", func(t *testing.T) {
		db := newTestDB(t)
		createUser(t, db, "alice", sql.NullInt64{})

		err := db.CreateUser(ctx, shelf.CreateUserParams{
			User:      &model.User{ID: "other", Username: "ALICE", CreatedAt: testNow},
			Account:   &model.Account{ID: "acct-other", UserID: "other", CreatedAt: testNow},
			Namespace: &model.Namespace{ID: "ns-other", Path: "alice2", OwnerID: "other", CreatedAt: testNow},
			Root:      folder("ns-other", "r", "."),
			Trash:     folder("ns-other", "t", "Trash"),
		})
		if !errors.Is(err, shelf.ErrConflict) {
			t.Errorf("CreateUser() error = %v, want ErrConflict", err)
		}
	})

	t.Run("returns nil for missing lookups", func(t *testing.T) {
		db := newTestDB(t)
		u, err := db.FindUserByUsername(ctx, "nobody")
		if err != nil || u != nil {
			t.Errorf("FindUserByUsername() = (%v, %v), want (nil, nil)", u, err)
		}
		acc, err := db.FindAccountByUserID(ctx, "nobody")
		if err != nil || acc != nil {
			t.Errorf("FindAccountByUserID() = (%v, %v), want (nil, nil)", acc, err)
		}
	})
}

func TestSQLiteDatabase_CreateFile(t *testing.T) {
	ctx := context.Background()

	t.Run("adopts the parent's casing", func(t *testing.T) {
		db := newTestDB(t)
		ns := createUser(t, db, "alice", sql.NullInt64{})
		mustCreate(t, db, folder(ns.ID, "f1", "Photos"))

		f := mustCreate(t, db, node(ns.ID, "f2", "photos/cat.jpg", "image/jpeg", 10, "h1"))
		if f.Path != "Photos/cat.jpg" {
			t.Errorf("Path = %q, want %q", f.Path, "Photos/cat.jpg")
		}
		if f.ParentKey != "photos" {
			t.Errorf("ParentKey = %q, want %q", f.ParentKey, "photos")
		}
	})

	t.Run("conflicts on existing path ignoring case", func(t *testing.T) {
		db := newTestDB(t)
		ns := createUser(t, db, "alice", sql.NullInt64{})
		mustCreate(t, db, node(ns.ID, "f1", "notes.txt", "text/plain", 1, "h"))

		err := db.CreateFile(ctx, node(ns.ID, "f2", "NOTES.txt", "text/plain", 1, "h"))
		if !errors.Is(err, shelf.ErrConflict) {
			t.Errorf("CreateFile() error = %v, want ErrConflict", err)
		}
	})

	t.Run("requires an existing folder parent", func(t *testing.T) {
		db := newTestDB(t)
		ns := createUser(t, db, "alice", sql.NullInt64{})
		mustCreate(t, db, node(ns.ID, "f1", "notes.txt", "text/plain", 1, "h"))

		for _, p := range []string{"missing/a.txt", "notes.txt/a.txt"} {
			err := db.CreateFile(ctx, node(ns.ID, "x-"+p, p, "text/plain", 1, "h"))
			if !errors.Is(err, shelf.ErrInvalidPath) {
				t.Errorf("CreateFile(%s) error = %v, want ErrInvalidPath", p, err)
			}
		}
	})
}

func TestSQLiteDatabase_ListChildren(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	ns := createUser(t, db, "alice", sql.NullInt64{})
	mustCreate(t, db, folder(ns.ID, "d", "docs"))
	for i, name := range []string{"b.txt", "A.txt", "c.txt"} {
		mustCreate(t, db, node(ns.ID, fmt.Sprintf("f%d", i), "docs/"+name, "text/plain", 1, "h"))
	}
	mustCreate(t, db, folder(ns.ID, "deep", "docs/sub"))
	mustCreate(t, db, node(ns.ID, "nested", "docs/sub/z.txt", "text/plain", 1, "h"))

	page, err := db.ListChildren(ctx, ns.ID, "docs", "", 2)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(page) != 2 || page[0].Name != "A.txt" || page[1].Name != "b.txt" {
		t.Fatalf("first page = %v, want [A.txt b.txt]", names(page))
	}
	page, err = db.ListChildren(ctx, ns.ID, "docs", page[1].PathKey, 2)
	if err != nil {
		t.Fatalf("ListChildren() error = %v", err)
	}
	if len(page) != 2 || page[0].Name != "c.txt" || page[1].Name != "sub" {
		t.Errorf("second page = %v, want [c.txt sub]", names(page))
	}
}

func names(files []*model.File) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestSQLiteDatabase_MoveFile(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*SQLiteDatabase, *model.Namespace) {
		db := newTestDB(t)
		ns := createUser(t, db, "alice", sql.NullInt64{})
		mustCreate(t, db, folder(ns.ID, "a", "a"))
		mustCreate(t, db, folder(ns.ID, "ab", "a/b"))
		mustCreate(t, db, node(ns.ID, "abc", "a/b/c.txt", "text/plain", 1, "h"))
		mustCreate(t, db, node(ns.ID, "ad", "a/d.txt", "text/plain", 1, "h"))
		mustCreate(t, db, folder(ns.ID, "x", "x"))
		// A sibling whose name shares the prefix must not move along.
		mustCreate(t, db, folder(ns.ID, "a_", "a_b"))
		return db, ns
	}

	t.Run("rewrites every descendant", func(t *testing.T) {
		db, ns := setup(t)
		moved, err := db.MoveFile(ctx, shelf.MoveFileParams{NamespaceID: ns.ID, FromKey: "a", ToPath: "x/A2"})
		if err != nil {
			t.Fatalf("MoveFile() error = %v", err)
		}
		if moved.Path != "x/A2" || moved.ParentKey != "x" {
			t.Errorf("moved = %s (parent %s), want x/A2 (parent x)", moved.Path, moved.ParentKey)
		}
		for id, want := range map[string]string{"ab": "x/A2/b", "abc": "x/A2/b/c.txt", "ad": "x/A2/d.txt", "a_": "a_b"} {
			f, err := db.FindFileByID(ctx, id)
			if err != nil {
				t.Fatalf("FindFileByID() error = %v", err)
			}
			if f.Path != want || f.PathKey != shelf.PathKey(want) {
				t.Errorf("%s path = %s (key %s), want %s", id, f.Path, f.PathKey, want)
			}
		}
	})

	t.Run("case-only rename", func(t *testing.T) {
		db, ns := setup(t)
		moved, err := db.MoveFile(ctx, shelf.MoveFileParams{NamespaceID: ns.ID, FromKey: "a", ToPath: "A"})
		if err != nil {
			t.Fatalf("MoveFile() error = %v", err)
		}
		if moved.Path != "A" {
			t.Errorf("Path = %q, want %q", moved.Path, "A")
		}
		f, _ := db.FindFileByID(ctx, "abc")
		if f.Path != "A/b/c.txt" {
			t.Errorf("descendant path = %q, want %q", f.Path, "A/b/c.txt")
		}
	})

	t.Run("rejects moving into itself", func(t *testing.T) {
		db, ns := setup(t)
		_, err := db.MoveFile(ctx, shelf.MoveFileParams{NamespaceID: ns.ID, FromKey: "a", ToPath: "a/b/a"})
		if !errors.Is(err, shelf.ErrInvalidPath) {
			t.Errorf("MoveFile() error = %v, want ErrInvalidPath", err)
		}
	})

	t.Run("conflicts with an existing destination", func(t *testing.T) {
		db, ns := setup(t)
		_, err := db.MoveFile(ctx, shelf.MoveFileParams{NamespaceID: ns.ID, FromKey: "a/d.txt", ToPath: "A/B/C.TXT"})
		if !errors.Is(err, shelf.ErrConflict) {
			t.Errorf("MoveFile() error = %v, want ErrConflict", err)
		}
	})

	t.Run("records and clears trash", func(t *testing.T) {
		db, ns := setup(t)
		trashed, err := db.MoveFile(ctx, shelf.MoveFileParams{
			NamespaceID: ns.ID, FromKey: "a/b", ToPath: "Trash/b",
			Trash: &shelf.TrashRecord{From: "a/b", At: testNow},
		})
		if err != nil {
			t.Fatalf("MoveFile() to trash error = %v", err)
		}
		if !trashed.IsTrashed() || trashed.TrashedFrom.String != "a/b" {
			t.Errorf("trash record = %+v, want from a/b", trashed.TrashedFrom)
		}
		child, _ := db.FindFileByID(ctx, "abc")
		if child.IsTrashed() {
			t.Error("descendant carries a trash record")
		}

		restored, err := db.MoveFile(ctx, shelf.MoveFileParams{NamespaceID: ns.ID, FromKey: "trash/b", ToPath: "a/b", ClearTrash: true})
		if err != nil {
			t.Fatalf("MoveFile() restore error = %v", err)
		}
		if restored.IsTrashed() {
			t.Error("restored node still carries a trash record")
		}
	})

	t.Run("cancelled context leaves the tree untouched", func(t *testing.T) {
		db, ns := setup(t)
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := db.MoveFile(cctx, shelf.MoveFileParams{NamespaceID: ns.ID, FromKey: "a", ToPath: "z"}); err == nil {
			t.Fatal("MoveFile() expected error for cancelled context")
		}
		f, _ := db.FindFileByID(ctx, "abc")
		if f.Path != "a/b/c.txt" {
			t.Errorf("path after cancelled move = %q, want unchanged", f.Path)
		}
	})
}

func TestSQLiteDatabase_Quota(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, db, "alice", sql.NullInt64{Int64: 100, Valid: true})

	steps := []struct {
		bytes int64
		want  bool
	}{{60, true}, {50, false}, {40, true}, {1, false}}
	for _, s := range steps {
		ok, err := db.ReserveQuota(ctx, "acct-alice", s.bytes)
		if err != nil {
			t.Fatalf("ReserveQuota() error = %v", err)
		}
		if ok != s.want {
			t.Errorf("ReserveQuota(%d) = %v, want %v", s.bytes, ok, s.want)
		}
	}

	if err := db.ReleaseQuota(ctx, "acct-alice", 500); err != nil {
		t.Fatalf("ReleaseQuota() error = %v", err)
	}
	acc, _ := db.FindAccountByUserID(ctx, "user-alice")
	if acc.UsedBytes != 0 {
		t.Errorf("UsedBytes = %d, want 0 (floored)", acc.UsedBytes)
	}

	if err := db.SetAccountQuota(ctx, "acct-alice", sql.NullInt64{}); err != nil {
		t.Fatalf("SetAccountQuota() error = %v", err)
	}
	if ok, _ := db.ReserveQuota(ctx, "acct-alice", 1<<40); !ok {
		t.Error("ReserveQuota() rejected on unlimited account")
	}
}

func TestSQLiteDatabase_DeleteFile(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice", sql.NullInt64{})
	bob := createUser(t, db, "bob", sql.NullInt64{})
	if _, err := db.ReserveQuota(ctx, "acct-alice", 30); err != nil {
		t.Fatalf("ReserveQuota() error = %v", err)
	}

	mustCreate(t, db, folder(alice.ID, "dir", "dir"))
	mustCreate(t, db, node(alice.ID, "img", "dir/cat.png", "image/png", 20, "hash-img"))
	mustCreate(t, db, node(alice.ID, "txt", "dir/notes.txt", "text/plain", 10, "hash-txt"))
	mustCreate(t, db, node(alice.ID, "empty", "dir/empty.txt", "text/plain", 0, ""))
	if err := db.SaveFingerprint(ctx, model.NewFingerprint("img", 42)); err != nil {
		t.Fatalf("SaveFingerprint() error = %v", err)
	}
	// Share dir with bob and mount something under alice's dir too.
	if err := db.CreateShare(ctx,
		&model.FileMember{ID: "m1", FileID: "dir", UserID: "user-bob", Actions: model.ActionRead, CreatedAt: testNow},
		&model.MountPoint{ID: "mp1", MemberID: "m1", ParentID: "bob-root", DisplayName: "dir"}); err != nil {
		t.Fatalf("CreateShare() error = %v", err)
	}
	mustCreate(t, db, folder(bob.ID, "bobdir", "music"))
	if err := db.CreateShare(ctx,
		&model.FileMember{ID: "m2", FileID: "bobdir", UserID: "user-alice", Actions: model.ActionRead, CreatedAt: testNow},
		&model.MountPoint{ID: "mp2", MemberID: "m2", ParentID: "dir", DisplayName: "music"}); err != nil {
		t.Fatalf("CreateShare() error = %v", err)
	}

	res, err := db.DeleteFile(ctx, shelf.DeleteFileParams{Namespace: alice, AccountID: "acct-alice", PathKey: "dir", QueuedAt: testNow})
	if err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if res.Removed != 4 {
		t.Errorf("Removed = %d, want 4", res.Removed)
	}
	if res.ReleasedBytes != 30 {
		t.Errorf("ReleasedBytes = %d, want 30", res.ReleasedBytes)
	}
	if len(res.Pending) != 2 {
		t.Errorf("len(Pending) = %d, want 2 (files with content)", len(res.Pending))
	}

	acc, _ := db.FindAccountByUserID(ctx, "user-alice")
	if acc.UsedBytes != 0 {
		t.Errorf("UsedBytes = %d, want 0", acc.UsedBytes)
	}
	if fp, _ := db.FindFingerprint(ctx, "img"); fp != nil {
		t.Error("fingerprint survived its file")
	}
	for _, id := range []string{"m1", "m2"} {
		var n int
		db.db.QueryRow("SELECT COUNT(*) FROM file_members WHERE id = ?", id).Scan(&n)
		if n != 0 {
			t.Errorf("grant %s survived", id)
		}
	}
	var points int
	db.db.QueryRow("SELECT COUNT(*) FROM file_member_mount_points").Scan(&points)
	if points != 0 {
		t.Errorf("%d mount points survived, want 0", points)
	}
	if f, _ := db.FindFileByID(ctx, "bobdir"); f == nil {
		t.Error("bob's shared folder was deleted")
	}
	queued, _ := db.ListPendingDeletions(ctx, 10)
	if len(queued) != 2 {
		t.Errorf("queued pending deletions = %d, want 2", len(queued))
	}
}

func TestSQLiteDatabase_Mounts(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice", sql.NullInt64{})
	bob := createUser(t, db, "bob", sql.NullInt64{})
	mustCreate(t, db, folder(bob.ID, "f2", "folder2"))
	mustCreate(t, db, folder(alice.ID, "f3", "folder3"))

	member := &model.FileMember{ID: "m1", FileID: "f2", UserID: "user-alice", Actions: model.ActionRead | model.ActionWrite, CreatedAt: testNow}
	point := &model.MountPoint{ID: "mp1", MemberID: "m1", ParentID: "f3", DisplayName: "shared"}
	if err := db.CreateShare(ctx, member, point); err != nil {
		t.Fatalf("CreateShare() error = %v", err)
	}

	t.Run("duplicate grant conflicts", func(t *testing.T) {
		err := db.CreateShare(ctx,
			&model.FileMember{ID: "m9", FileID: "f2", UserID: "user-alice", Actions: model.ActionRead, CreatedAt: testNow},
			&model.MountPoint{ID: "mp9", MemberID: "m9", ParentID: "alice-root", DisplayName: "other"})
		if !errors.Is(err, shelf.ErrConflict) {
			t.Errorf("CreateShare() error = %v, want ErrConflict", err)
		}
	})

	t.Run("found by parent key", func(t *testing.T) {
		mounts, err := db.FindMountsByParentKeys(ctx, alice.ID, []string{"folder3", "."})
		if err != nil {
			t.Fatalf("FindMountsByParentKeys() error = %v", err)
		}
		if len(mounts) != 1 {
			t.Fatalf("len(mounts) = %d, want 1", len(mounts))
		}
		m := mounts[0]
		if m.Shared.Path != "folder2" || m.SharedNamespace.Path != "bob" || m.Parent.Path != "folder3" {
			t.Errorf("mount = shared %s in %s under %s", m.Shared.Path, m.SharedNamespace.Path, m.Parent.Path)
		}
		if m.Member.Actions != model.ActionRead|model.ActionWrite {
			t.Errorf("Actions = %v, want rw-", m.Member.Actions)
		}
	})

	t.Run("blocks files with the mount's name", func(t *testing.T) {
		err := db.CreateFile(ctx, folder(alice.ID, "clash", "folder3/SHARED"))
		if !errors.Is(err, shelf.ErrConflict) {
			t.Errorf("CreateFile() error = %v, want ErrConflict", err)
		}
	})

	t.Run("relocates", func(t *testing.T) {
		if err := db.UpdateMountPoint(ctx, "mp1", "alice-root", "Bob Stuff"); err != nil {
			t.Fatalf("UpdateMountPoint() error = %v", err)
		}
		mounts, _ := db.FindMountsInFolder(ctx, "alice-root")
		if len(mounts) != 1 || mounts[0].Point.DisplayName != "Bob Stuff" {
			t.Errorf("FindMountsInFolder() = %v, want the moved mount", mounts)
		}
	})

	t.Run("delete removes grant and point", func(t *testing.T) {
		if err := db.DeleteShare(ctx, "m1"); err != nil {
			t.Fatalf("DeleteShare() error = %v", err)
		}
		if m, _ := db.FindMember(ctx, "f2", "user-alice"); m != nil {
			t.Error("grant survived DeleteShare()")
		}
		if mounts, _ := db.FindMountsInFolder(ctx, "alice-root"); len(mounts) != 0 {
			t.Error("mount point survived DeleteShare()")
		}
	})
}

func TestSQLiteDatabase_Fingerprints(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice", sql.NullInt64{})
	bob := createUser(t, db, "bob", sql.NullInt64{})

	mustCreate(t, db, folder(alice.ID, "pics", "pics"))
	mustCreate(t, db, node(alice.ID, "a", "pics/a.png", "image/png", 1, "h1"))
	mustCreate(t, db, node(alice.ID, "b", "pics/b.png", "image/png", 1, "h2"))
	mustCreate(t, db, node(alice.ID, "c", "c.png", "image/png", 1, "h3"))
	mustCreate(t, db, node(alice.ID, "t", "Trash/t.png", "image/png", 1, "h1"))
	mustCreate(t, db, node(bob.ID, "o", "o.png", "image/png", 1, "h1"))

	const base = uint64(0x1111_2222_3333_4444)
	for id, v := range map[string]uint64{
		"a": base,
		"b": base ^ 0xFFFF,         // differs in part1 only
		"c": 0x9999_8888_7777_6666, // shares nothing
		"t": base,                  // trashed
		"o": base,                  // other namespace
	} {
		if err := db.SaveFingerprint(ctx, model.NewFingerprint(id, v)); err != nil {
			t.Fatalf("SaveFingerprint() error = %v", err)
		}
	}

	t.Run("candidates share a part within the namespace", func(t *testing.T) {
		got, err := db.FindFingerprintCandidates(ctx, alice.ID, model.NewFingerprint("", base).Parts(), "trash")
		if err != nil {
			t.Fatalf("FindFingerprintCandidates() error = %v", err)
		}
		var ids []string
		for _, c := range got {
			ids = append(ids, c.File.ID)
		}
		if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
			t.Errorf("candidates = %v, want [a b]", ids)
		}
	})

	t.Run("content hash lookups skip the trash", func(t *testing.T) {
		got, err := db.FindFilesByContentHash(ctx, alice.ID, "h1", "trash")
		if err != nil {
			t.Fatalf("FindFilesByContentHash() error = %v", err)
		}
		if len(got) != 1 || got[0].ID != "a" {
			t.Errorf("FindFilesByContentHash() = %v, want [a]", names(got))
		}
	})

	t.Run("list under a folder", func(t *testing.T) {
		got, err := db.ListFingerprints(ctx, alice.ID, "pics", "trash")
		if err != nil {
			t.Fatalf("ListFingerprints() error = %v", err)
		}
		if len(got) != 2 {
			t.Errorf("len(ListFingerprints()) = %d, want 2", len(got))
		}
		all, _ := db.ListFingerprints(ctx, alice.ID, ".", "trash")
		if len(all) != 3 {
			t.Errorf("len(ListFingerprints(root)) = %d, want 3", len(all))
		}
	})

	t.Run("save replaces", func(t *testing.T) {
		if err := db.SaveFingerprint(ctx, model.NewFingerprint("a", 7)); err != nil {
			t.Fatalf("SaveFingerprint() error = %v", err)
		}
		fp, _ := db.FindFingerprint(ctx, "a")
		if fp.Value() != 7 {
			t.Errorf("Value() = %d, want 7", fp.Value())
		}
	})
}

func TestSQLiteDatabase_Metadata(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice", sql.NullInt64{})
	mustCreate(t, db, folder(alice.ID, "pics", "pics"))
	mustCreate(t, db, node(alice.ID, "a", "pics/a.jpg", "image/jpeg", 1, "h1"))

	if m, err := db.FindMetadata(ctx, "a"); err != nil || m != nil {
		t.Fatalf("FindMetadata() = %v, %v, want nil, nil", m, err)
	}

	taken := time.Date(2023, 7, 14, 18, 30, 5, 0, time.UTC)
	saved := &model.ContentMetadata{
		FileID:    "a",
		Data:      model.Exif{Make: "Canon", Exposure: "1/250", TakenAt: &taken, Width: 32, Height: 24},
		UpdatedAt: testNow,
	}
	if err := db.SaveMetadata(ctx, saved); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}
	got, err := db.FindMetadata(ctx, "a")
	if err != nil {
		t.Fatalf("FindMetadata() error = %v", err)
	}
	if got.Data.Make != "Canon" || got.Data.Exposure != "1/250" || got.Data.Width != 32 {
		t.Errorf("Data = %+v", got.Data)
	}
	if got.Data.TakenAt == nil || !got.Data.TakenAt.Equal(taken) {
		t.Errorf("TakenAt = %v, want %v", got.Data.TakenAt, taken)
	}
	if !got.UpdatedAt.Equal(testNow) {
		t.Errorf("UpdatedAt = %v, want %v", got.UpdatedAt, testNow)
	}

	saved.Data = model.Exif{Make: "Nikon"}
	if err := db.SaveMetadata(ctx, saved); err != nil {
		t.Fatalf("SaveMetadata() error = %v", err)
	}
	if got, _ := db.FindMetadata(ctx, "a"); got.Data.Make != "Nikon" || got.Data.TakenAt != nil {
		t.Errorf("Data after replace = %+v", got.Data)
	}

	if _, err := db.DeleteFile(ctx, shelf.DeleteFileParams{Namespace: alice, AccountID: "acct-alice", PathKey: "pics", QueuedAt: testNow}); err != nil {
		t.Fatalf("DeleteFile() error = %v", err)
	}
	if m, _ := db.FindMetadata(ctx, "a"); m != nil {
		t.Error("metadata survived its file")
	}
}

func TestSQLiteDatabase_DeleteUser(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	alice := createUser(t, db, "alice", sql.NullInt64{})
	bob := createUser(t, db, "bob", sql.NullInt64{})
	mustCreate(t, db, node(alice.ID, "doc", "doc.txt", "text/plain", 5, "h"))
	mustCreate(t, db, folder(bob.ID, "bf", "shared"))
	if err := db.CreateShare(ctx,
		&model.FileMember{ID: "m1", FileID: "bf", UserID: "user-alice", Actions: model.ActionRead, CreatedAt: testNow},
		&model.MountPoint{ID: "mp1", MemberID: "m1", ParentID: "alice-root", DisplayName: "shared"}); err != nil {
		t.Fatalf("CreateShare() error = %v", err)
	}
	trail := &model.AuditTrail{ID: "t1", Action: "file_added", UserID: sql.NullString{String: "user-alice", Valid: true}, CreatedAt: testNow}
	if err := db.CreateAuditTrail(ctx, trail); err != nil {
		t.Fatalf("CreateAuditTrail() error = %v", err)
	}

	pending, err := db.DeleteUser(ctx, "user-alice")
	if err != nil {
		t.Fatalf("DeleteUser() error = %v", err)
	}
	if len(pending) != 1 || pending[0].NamespacePath != "alice" {
		t.Errorf("pending = %v, want doc.txt in alice", pending)
	}
	if u, _ := db.FindUserByUsername(ctx, "alice"); u != nil {
		t.Error("user survived")
	}
	if ns, _ := db.FindNamespaceByPath(ctx, "alice"); ns != nil {
		t.Error("namespace survived")
	}
	if m, _ := db.FindMember(ctx, "bf", "user-alice"); m != nil {
		t.Error("received grant survived")
	}
	var userID sql.NullString
	if err := db.db.QueryRow("SELECT user_id FROM audit_trails WHERE id = 't1'").Scan(&userID); err != nil {
		t.Fatalf("audit trail lost: %v", err)
	}
	if userID.Valid {
		t.Error("audit trail still references the deleted user")
	}
}

func TestSQLiteDatabase_AuditTrails(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	createUser(t, db, "alice", sql.NullInt64{})
	uid := sql.NullString{String: "user-alice", Valid: true}

	for i, action := range []string{"file_added", "file_moved", "file_added"} {
		err := db.CreateAuditTrail(ctx, &model.AuditTrail{
			ID:        fmt.Sprintf("t%d", i),
			Action:    action,
			UserID:    uid,
			CreatedAt: testNow.Add(time.Duration(i) * time.Minute),
			Entities: []model.AuditEntity{
				{Type: "file", ID: "f", Name: "a.txt", Path: "a.txt"},
				{Type: "file", ID: "g", Name: "b.txt", Path: "b.txt"},
			},
		})
		if err != nil {
			t.Fatalf("CreateAuditTrail() error = %v", err)
		}
	}

	got, err := db.ListAuditTrails(ctx, "user-alice", 2)
	if err != nil {
		t.Fatalf("ListAuditTrails() error = %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("len(ListAuditTrails()) = %d, want 2", len(got))
	}
	if got[0].ID != "t2" || got[1].Action != "file_moved" {
		t.Errorf("order = %s/%s, want newest first", got[0].ID, got[1].ID)
	}
	if got[0].Username != "alice" {
		t.Errorf("Username = %q, want alice", got[0].Username)
	}
	if len(got[0].Entities) != 2 || got[0].Entities[1].Name != "b.txt" {
		t.Errorf("Entities = %+v, want two in order", got[0].Entities)
	}
}

func TestSQLiteDatabase_PendingDeletions(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)

	items := []*model.FilePendingDeletion{
		{ID: "p1", NamespacePath: "alice", Path: "a", ContentHash: "h1", MediaType: "text/plain", CreatedAt: testNow},
		{ID: "p2", NamespacePath: "alice", Path: "b", ContentHash: "h2", MediaType: "text/plain", CreatedAt: testNow.Add(time.Second)},
	}
	if err := db.CreatePendingDeletions(ctx, items); err != nil {
		t.Fatalf("CreatePendingDeletions() error = %v", err)
	}
	found, err := db.FindPendingDeletions(ctx, []string{"p2", "missing"})
	if err != nil {
		t.Fatalf("FindPendingDeletions() error = %v", err)
	}
	if len(found) != 1 || found[0].ContentHash != "h2" {
		t.Errorf("FindPendingDeletions() = %v, want p2", found)
	}
	if err := db.DeletePendingDeletion(ctx, "p1"); err != nil {
		t.Fatalf("DeletePendingDeletion() error = %v", err)
	}
	left, _ := db.ListPendingDeletions(ctx, 10)
	if len(left) != 1 || left[0].ID != "p2" {
		t.Errorf("ListPendingDeletions() = %v, want [p2]", left)
	}
}
