package shelf

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"time"

	"shelf-go/internal/model"
)

const maxTrashNameAttempts = 8

// MoveToTrash moves the node at path, with its subtree, under the trash
// root and records where it came from. A name already taken in the trash
// gets a time-derived suffix. Under a mount the node goes to the owner's
// trash.
func (s *Service) MoveToTrash(ctx context.Context, nsPath, p string) (f *model.File, err error) {
	defer s.observe("trash", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if p, err = NormalizePath(p); err != nil {
		return nil, err
	}
	if isProtected(p) || inTrash(p) {
		return nil, fmt.Errorf("%w: cannot trash %s", ErrInvalidPath, p)
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	if loc.atMount {
		return nil, fmt.Errorf("%w: %s is a mount point, unmount it instead", ErrMountConflict, p)
	}
	if err := Authorize(loc.grant(), model.ActionWrite); err != nil {
		return nil, err
	}
	if inTrash(loc.path) {
		return nil, fmt.Errorf("%w: %s is already in the trash", ErrInvalidPath, p)
	}

	unlock, err := s.lockNamespace(ctx, loc.ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	src, err := s.findFile(ctx, loc.ns, loc.path)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	for attempt := 0; attempt < maxTrashNameAttempts; attempt++ {
		f, err = s.db.MoveFile(ctx, MoveFileParams{
			NamespaceID: loc.ns.ID,
			FromKey:     src.PathKey,
			ToPath:      trashCandidate(src.Name, now, attempt),
			Trash:       &TrashRecord{From: src.Path, At: now},
		})
		if !errors.Is(err, ErrConflict) {
			break
		}
	}
	if err != nil {
		return nil, fmt.Errorf("moving %s to the trash: %w", p, err)
	}

	s.record(ctx, "file_trashed", fileEntity(f))
	return f, nil
}

// trashCandidate names a node moved into the trash. The first attempt keeps
// the name; later ones add " HHMMSSffffff" from now, then a counter.
func trashCandidate(name string, now time.Time, attempt int) string {
	p := JoinPath(TrashName, name)
	if attempt == 0 {
		return p
	}
	suffix := fmt.Sprintf(" %s%06d", now.Format("150405"), now.Nanosecond()/1000)
	if attempt > 1 {
		suffix += fmt.Sprintf(" (%d)", attempt-1)
	}
	return WithStemSuffix(p, suffix)
}

// Restore moves a trash entry back to the path it was trashed from. It
// fails with ErrConflict when that path has been taken since, and with
// ErrInvalidPath when its parent no longer exists.
func (s *Service) Restore(ctx context.Context, nsPath, trashedPath string) (f *model.File, err error) {
	defer s.observe("restore", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if trashedPath, err = NormalizePath(trashedPath); err != nil {
		return nil, err
	}
	if PathKey(ParentPath(trashedPath)) != trashKey() {
		return nil, fmt.Errorf("%w: %s is not a trash entry", ErrInvalidPath, trashedPath)
	}

	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	entry, err := s.findFile(ctx, ns, trashedPath)
	if err != nil {
		return nil, err
	}
	if !entry.IsTrashed() {
		return nil, fmt.Errorf("%w: %s has no trash record", ErrInvalidPath, trashedPath)
	}

	f, err = s.db.MoveFile(ctx, MoveFileParams{
		NamespaceID: ns.ID,
		FromKey:     entry.PathKey,
		ToPath:      entry.TrashedFrom.String,
		ClearTrash:  true,
	})
	if err != nil {
		return nil, fmt.Errorf("restoring %s: %w", trashedPath, err)
	}

	s.record(ctx, "file_restored", fileEntity(f))
	return f, nil
}

// MoveOut moves any node inside the trash to an explicit destination
// outside it, clearing its trash record.
func (s *Service) MoveOut(ctx context.Context, nsPath, trashedPath, dest string) (f *model.File, err error) {
	defer s.observe("move_out", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if trashedPath, err = NormalizePath(trashedPath); err != nil {
		return nil, err
	}
	if dest, err = NormalizePath(dest); err != nil {
		return nil, err
	}
	if !IsStrictlyWithin(trashedPath, TrashName) {
		return nil, fmt.Errorf("%w: %s is not in the trash", ErrInvalidPath, trashedPath)
	}
	if isProtected(dest) || inTrash(dest) {
		return nil, fmt.Errorf("%w: destination %s is not outside the trash", ErrInvalidPath, dest)
	}
	loc, err := s.locate(ctx, ns, dest)
	if err != nil {
		return nil, err
	}
	if loc.mount != nil {
		return nil, fmt.Errorf("%w: cannot move trash content into a mount", ErrMountConflict)
	}

	f, err = s.moveLocked(ctx, ns, MoveFileParams{
		NamespaceID: ns.ID,
		FromKey:     PathKey(trashedPath),
		ToPath:      dest,
		ClearTrash:  true,
	})
	if err != nil {
		return nil, err
	}

	s.record(ctx, "file_restored", fileEntity(f))
	return f, nil
}

// Purge permanently removes a node inside the trash. The File rows go at
// once; the bytes are queued for the purge worker.
func (s *Service) Purge(ctx context.Context, nsPath, trashedPath string) (err error) {
	defer s.observe("purge", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return err
	}
	if trashedPath, err = NormalizePath(trashedPath); err != nil {
		return err
	}
	if !IsStrictlyWithin(trashedPath, TrashName) {
		return fmt.Errorf("%w: %s is not in the trash", ErrInvalidPath, trashedPath)
	}

	res, err := s.deleteLocked(ctx, ns, trashedPath, false)
	if err != nil {
		return err
	}
	s.record(ctx, "file_purged", fileEntity(res.Root))
	return nil
}

// EmptyTrash purges every trash entry of the namespace in one transaction
// and returns how many nodes were removed.
func (s *Service) EmptyTrash(ctx context.Context, nsPath string) (n int, err error) {
	defer s.observe("empty_trash", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return 0, err
	}
	res, err := s.deleteLocked(ctx, ns, TrashName, true)
	if err != nil {
		return 0, err
	}
	s.record(ctx, "trash_emptied", fileEntity(res.Root))
	return res.Removed, nil
}

// ListTrash yields the trash entries of the namespace.
func (s *Service) ListTrash(ctx context.Context, nsPath string) iter.Seq2[*Entry, error] {
	return s.Children(ctx, nsPath, TrashName)
}
