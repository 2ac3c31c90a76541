package shelf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"strings"
	"time"

	"shelf-go/internal/dhash"
	"shelf-go/internal/model"
)

// Entry is a node as seen from one namespace. For nodes reached through a
// mount, File is the grantor's record while Name and Path are where the node
// appears in the viewing namespace.
type Entry struct {
	File       *model.File
	Name       string
	Path       string
	Grant      *model.FileMember
	MountPoint bool
}

// FileAttrs describes a node to create.
type FileAttrs struct {
	MediaType   string // model.MediaTypeFolder for folders
	Size        int64
	ContentHash string
	ModifiedAt  time.Time // zero means now
}

// Resolve returns the file at path, following mounts. The returned record
// belongs to whichever namespace actually stores it.
func (s *Service) Resolve(ctx context.Context, nsPath, p string) (*model.File, error) {
	e, err := s.Stat(ctx, nsPath, p)
	if err != nil {
		return nil, err
	}
	return e.File, nil
}

// Stat is Resolve plus how the node appears in the viewing namespace.
func (s *Service) Stat(ctx context.Context, nsPath, p string) (*Entry, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	p, err = NormalizePath(p)
	if err != nil {
		return nil, err
	}
	loc, f, err := s.statLocation(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	return loc.entry(f), nil
}

func (s *Service) statLocation(ctx context.Context, ns *model.Namespace, p string) (*location, *model.File, error) {
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return nil, nil, err
	}
	if err := Authorize(loc.grant(), model.ActionRead); err != nil {
		return nil, nil, err
	}
	f, err := s.findFile(ctx, loc.ns, loc.path)
	if err != nil {
		return nil, nil, err
	}
	return loc, f, nil
}

// Children yields the immediate children of dir ordered by case-folded
// name. Mount points spliced into dir are listed with the real children;
// the trash root is hidden from the namespace root. Results are fetched page
// by page while iterating, and each range over the sequence starts afresh.
func (s *Service) Children(ctx context.Context, nsPath, dir string) iter.Seq2[*Entry, error] {
	return func(yield func(*Entry, error) bool) {
		ns, err := s.namespace(ctx, nsPath)
		if err != nil {
			yield(nil, err)
			return
		}
		dir, err = NormalizePath(dir)
		if err != nil {
			yield(nil, err)
			return
		}
		loc, parent, err := s.statLocation(ctx, ns, dir)
		if err != nil {
			yield(nil, err)
			return
		}
		if !parent.IsFolder() {
			yield(nil, fmt.Errorf("%w: %s is not a folder", ErrInvalidPath, dir))
			return
		}

		var mounts []*model.Mount
		if loc.mount == nil {
			mounts, err = s.db.FindMountsInFolder(ctx, parent.ID)
			if err != nil {
				yield(nil, fmt.Errorf("listing mounts: %w", err))
				return
			}
		}
		hideTrash := loc.mount == nil && loc.path == RootPath

		after := ""
		for {
			if err := ctx.Err(); err != nil {
				yield(nil, err)
				return
			}
			page, err := s.db.ListChildren(ctx, loc.ns.ID, parent.PathKey, after, s.pageSize)
			if err != nil {
				yield(nil, fmt.Errorf("listing children: %w", err))
				return
			}
			for _, f := range page {
				after = f.PathKey
				for len(mounts) > 0 && mounts[0].Point.DisplayKey() < PathKey(f.Name) {
					if !yield(mountEntry(mounts[0]), nil) {
						return
					}
					mounts = mounts[1:]
				}
				if hideTrash && f.PathKey == trashKey() {
					continue
				}
				if !yield(loc.entry(f), nil) {
					return
				}
			}
			if len(page) < s.pageSize {
				break
			}
		}
		for _, m := range mounts {
			if !yield(mountEntry(m), nil) {
				return
			}
		}
	}
}

// Create adds a node at path. The parent must be an existing folder and the
// path must be free. A non-zero size is reserved against the owning account.
func (s *Service) Create(ctx context.Context, nsPath, p string, attrs FileAttrs) (f *model.File, err error) {
	defer s.observe("create", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	loc, err := s.writableLocation(ctx, ns, p)
	if err != nil {
		return nil, err
	}

	// Folders carry no size, so only what newFile keeps is charged.
	f = s.newFile(loc.ns, loc.path, attrs)
	var acc *model.Account
	if f.Size > 0 {
		if acc, err = s.accountFor(ctx, loc.ns); err != nil {
			return nil, err
		}
		if err := s.Reserve(ctx, acc.ID, f.Size); err != nil {
			return nil, err
		}
	}

	if _, err = s.createLocked(ctx, loc.ns, f); err != nil {
		if acc != nil {
			s.releaseQuietly(ctx, acc.ID, f.Size)
		}
		return nil, err
	}

	action := "file_added"
	if f.IsFolder() {
		action = "folder_created"
	}
	s.record(ctx, action, fileEntity(f))
	return f, nil
}

// CreateFolder creates a single folder.
func (s *Service) CreateFolder(ctx context.Context, nsPath, p string) (*model.File, error) {
	return s.Create(ctx, nsPath, p, FileAttrs{MediaType: model.MediaTypeFolder})
}

// MakeDirs creates p and any missing ancestors. Existing folders are kept;
// an existing regular file on the way fails with ErrInvalidPath.
func (s *Service) MakeDirs(ctx context.Context, nsPath, p string) (*model.File, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	if p == RootPath {
		return s.Resolve(ctx, nsPath, p)
	}

	prefixes := Prefixes(p)
	var last *model.File
	for i := len(prefixes) - 1; i >= 0; i-- {
		dir := prefixes[i]
		f, err := s.Resolve(ctx, nsPath, dir)
		if errors.Is(err, ErrNotFound) {
			f, err = s.CreateFolder(ctx, nsPath, dir)
			if errors.Is(err, ErrConflict) {
				f, err = s.Resolve(ctx, nsPath, dir)
			}
		}
		if err != nil {
			return nil, err
		}
		if !f.IsFolder() {
			return nil, fmt.Errorf("%w: %s is not a folder", ErrInvalidPath, dir)
		}
		last = f
	}
	return last, nil
}

// Upload stores the content read from r as a new file at path. The content
// is spooled first; preconditions and quota are checked before any bytes
// reach storage, and the metadata commits only after storage succeeded.
func (s *Service) Upload(ctx context.Context, nsPath, p string, r io.Reader) (f *model.File, err error) {
	defer s.observe("upload", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	loc, err := s.writableLocation(ctx, ns, p)
	if err != nil {
		return nil, err
	}

	content, err := s.spool.Stage(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("spooling upload: %w", err)
	}
	defer content.Release()

	if err := s.checkCreatable(ctx, loc); err != nil {
		return nil, err
	}

	acc, err := s.accountFor(ctx, loc.ns)
	if err != nil {
		return nil, err
	}
	if err := s.Reserve(ctx, acc.ID, content.Size()); err != nil {
		return nil, err
	}

	wrote, err := s.storeContent(ctx, loc.ns, content)
	if err != nil {
		s.releaseQuietly(ctx, acc.ID, content.Size())
		return nil, err
	}

	f = s.newFile(loc.ns, loc.path, FileAttrs{
		MediaType:   content.MediaType(),
		Size:        content.Size(),
		ContentHash: content.ContentHash(),
	})
	rewrote, err := s.createWithContent(ctx, loc.ns, f, func(ctx context.Context) error {
		return s.writeContent(ctx, loc.ns, content)
	})
	if err != nil {
		s.releaseQuietly(ctx, acc.ID, content.Size())
		if wrote || rewrote {
			s.discardContent(ctx, loc.ns, loc.path, content.ContentHash(), content.MediaType())
		}
		return nil, err
	}

	if dhash.Supported(f.MediaType) {
		s.enqueue(ctx, JobIndexFingerprint, IndexFingerprintPayload{FileID: f.ID})
	}
	s.record(ctx, "file_added", fileEntity(f))
	s.logger.Debug("uploaded file", "namespace", loc.ns.Path, "path", f.Path, "size", f.Size)
	return f, nil
}

// storeContent writes spooled content unless the namespace already stores
// it. It reports whether bytes were written.
func (s *Service) storeContent(ctx context.Context, ns *model.Namespace, content Spooled) (bool, error) {
	hash := content.ContentHash()
	if hash == "" {
		return false, nil
	}
	exists, err := s.storage.Exists(ctx, ns.Path, hash)
	if err != nil {
		return false, fmt.Errorf("checking stored content: %w", err)
	}
	if exists {
		return false, nil
	}
	if err := s.writeContent(ctx, ns, content); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) writeContent(ctx context.Context, ns *model.Namespace, content Spooled) error {
	rc, err := content.Open()
	if err != nil {
		return fmt.Errorf("opening spooled content: %w", err)
	}
	defer rc.Close()

	n, err := s.storage.Write(ctx, ns.Path, content.ContentHash(), rc)
	if err != nil {
		return fmt.Errorf("writing content: %w", err)
	}
	if n != content.Size() {
		s.discardContent(ctx, ns, "", content.ContentHash(), content.MediaType())
		return fmt.Errorf("writing content: wrote %d of %d bytes", n, content.Size())
	}
	return nil
}

// Open streams the content of the file at path, following mounts.
func (s *Service) Open(ctx context.Context, nsPath, p string) (io.ReadCloser, *model.File, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, nil, err
	}
	p, err = NormalizePath(p)
	if err != nil {
		return nil, nil, err
	}
	loc, f, err := s.statLocation(ctx, ns, p)
	if err != nil {
		return nil, nil, err
	}
	if f.IsFolder() {
		return nil, nil, fmt.Errorf("%w: %s is a folder", ErrInvalidPath, p)
	}
	if f.ContentHash == "" {
		return io.NopCloser(strings.NewReader("")), f, nil
	}
	rc, err := s.storage.Read(ctx, loc.ns.Path, f.ContentHash)
	if err != nil {
		return nil, nil, fmt.Errorf("reading content: %w", err)
	}
	return rc, f, nil
}

// Copy duplicates a regular file. The source may lie under a mount, which
// makes this the way to keep a private copy of shared content. Quota is
// reserved on the destination account.
func (s *Service) Copy(ctx context.Context, nsPath, from, to string) (f *model.File, err error) {
	defer s.observe("copy", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	from, err = NormalizePath(from)
	if err != nil {
		return nil, err
	}
	src, sf, err := s.statLocation(ctx, ns, from)
	if err != nil {
		return nil, err
	}
	if sf.IsFolder() {
		return nil, fmt.Errorf("%w: copying folders is not supported", ErrInvalidPath)
	}

	dst, err := s.writableLocation(ctx, ns, to)
	if err != nil {
		return nil, err
	}
	if err := s.checkCreatable(ctx, dst); err != nil {
		return nil, err
	}

	acc, err := s.accountFor(ctx, dst.ns)
	if err != nil {
		return nil, err
	}
	if err := s.Reserve(ctx, acc.ID, sf.Size); err != nil {
		return nil, err
	}

	copied := false
	if sf.ContentHash != "" && src.ns.ID != dst.ns.ID {
		exists, err := s.storage.Exists(ctx, dst.ns.Path, sf.ContentHash)
		if err == nil && !exists {
			err = s.storage.Copy(ctx, src.ns.Path, dst.ns.Path, sf.ContentHash)
			copied = err == nil
		}
		if err != nil {
			s.releaseQuietly(ctx, acc.ID, sf.Size)
			return nil, fmt.Errorf("copying content: %w", err)
		}
	}

	f = s.newFile(dst.ns, dst.path, FileAttrs{
		MediaType:   sf.MediaType,
		Size:        sf.Size,
		ContentHash: sf.ContentHash,
	})
	recopied, err := s.createWithContent(ctx, dst.ns, f, func(ctx context.Context) error {
		if src.ns.ID == dst.ns.ID {
			return fmt.Errorf("%w: content of %s is gone", ErrNotFound, from)
		}
		if err := s.storage.Copy(ctx, src.ns.Path, dst.ns.Path, sf.ContentHash); err != nil {
			return fmt.Errorf("copying content: %w", err)
		}
		return nil
	})
	if err != nil {
		s.releaseQuietly(ctx, acc.ID, sf.Size)
		if copied || recopied {
			s.discardContent(ctx, dst.ns, dst.path, sf.ContentHash, sf.MediaType)
		}
		return nil, err
	}

	fp, err := s.db.FindFingerprint(ctx, sf.ID)
	switch {
	case err != nil:
		s.logger.Warn("loading source fingerprint failed", "file_id", sf.ID, "error", err)
	case fp != nil:
		if err := s.db.SaveFingerprint(ctx, model.NewFingerprint(f.ID, fp.Value())); err != nil {
			s.logger.Warn("copying fingerprint failed", "file_id", f.ID, "error", err)
		}
	case dhash.Supported(f.MediaType):
		s.enqueue(ctx, JobIndexFingerprint, IndexFingerprintPayload{FileID: f.ID})
	}

	if fp != nil {
		s.copyMetadata(ctx, sf.ID, f.ID)
	}

	s.record(ctx, "file_copied", fileEntity(sf), fileEntity(f))
	return f, nil
}

// copyMetadata gives a copy the metadata of its source, if any.
func (s *Service) copyMetadata(ctx context.Context, fromID, toID string) {
	m, err := s.db.FindMetadata(ctx, fromID)
	if err != nil {
		s.logger.Warn("loading source metadata failed", "file_id", fromID, "error", err)
		return
	}
	if m == nil {
		return
	}
	m.FileID = toID
	if err := s.db.SaveMetadata(ctx, m); err != nil {
		s.logger.Warn("copying metadata failed", "file_id", toID, "error", err)
	}
}

// Move renames the node at from to to, carrying its whole subtree. Moving an
// exact mount point relocates the mount; otherwise both paths must resolve
// through the same mount, or through none.
func (s *Service) Move(ctx context.Context, nsPath, from, to string) (f *model.File, err error) {
	defer s.observe("move", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if from, err = NormalizePath(from); err != nil {
		return nil, err
	}
	if to, err = NormalizePath(to); err != nil {
		return nil, err
	}
	if isProtected(from) || to == RootPath {
		return nil, fmt.Errorf("%w: cannot move the root or the trash", ErrInvalidPath)
	}
	if inTrash(from) || inTrash(to) {
		return nil, fmt.Errorf("%w: use trash operations to move in or out of the trash", ErrInvalidPath)
	}
	if IsStrictlyWithin(to, from) {
		return nil, fmt.Errorf("%w: cannot move %s into itself", ErrInvalidPath, from)
	}

	src, err := s.locate(ctx, ns, from)
	if err != nil {
		return nil, err
	}
	if src.atMount {
		return s.moveMount(ctx, ns, src, to)
	}
	dst, err := s.locate(ctx, ns, to)
	if err != nil {
		return nil, err
	}
	if dst.atMount {
		return nil, fmt.Errorf("%w: %s already exists", ErrConflict, to)
	}
	switch {
	case src.mount == nil && dst.mount == nil:
	case src.mount != nil && dst.mount != nil && src.mount.Point.ID == dst.mount.Point.ID:
		if err := Authorize(src.grant(), model.ActionWrite); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: cannot move %s to %s across a mount", ErrMountConflict, from, to)
	}

	f, err = s.moveLocked(ctx, src.ns, MoveFileParams{
		NamespaceID: src.ns.ID,
		FromKey:     PathKey(src.path),
		ToPath:      dst.path,
	})
	if err != nil {
		return nil, err
	}
	s.record(ctx, "file_moved", fileEntity(f))
	return f, nil
}

// Delete permanently removes the node at path and its subtree. Content is
// queued for physical deletion and the bytes are released from the account
// in the same transaction as the metadata delete.
func (s *Service) Delete(ctx context.Context, nsPath, p string) (err error) {
	defer s.observe("delete", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return err
	}
	if p, err = NormalizePath(p); err != nil {
		return err
	}
	if isProtected(p) {
		return fmt.Errorf("%w: cannot delete the root or the trash", ErrInvalidPath)
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return err
	}
	if loc.atMount {
		return fmt.Errorf("%w: %s is a mount point, unmount it instead", ErrMountConflict, p)
	}
	if err := Authorize(loc.grant(), model.ActionWrite); err != nil {
		return err
	}

	res, err := s.deleteLocked(ctx, loc.ns, loc.path, false)
	if err != nil {
		return err
	}
	s.record(ctx, "file_deleted", fileEntity(res.Root))
	return nil
}

// AvailablePath returns p, or the first "name (N).ext" variant of it that
// is free in the namespace.
func (s *Service) AvailablePath(ctx context.Context, nsPath, p string) (string, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return "", err
	}
	if p, err = NormalizePath(p); err != nil {
		return "", err
	}
	return s.availablePath(ctx, ns, p)
}

const maxAvailablePathAttempts = 10000

func (s *Service) availablePath(ctx context.Context, ns *model.Namespace, p string) (string, error) {
	candidate := p
	for i := 1; i <= maxAvailablePathAttempts; i++ {
		taken, err := s.pathTaken(ctx, ns, candidate)
		if err != nil {
			return "", err
		}
		if !taken {
			return candidate, nil
		}
		candidate = WithStemSuffix(p, fmt.Sprintf(" (%d)", i))
	}
	return "", fmt.Errorf("%w: no free name for %s", ErrConflict, p)
}

// pathTaken reports whether a file or mount point occupies p.
func (s *Service) pathTaken(ctx context.Context, ns *model.Namespace, p string) (bool, error) {
	f, err := s.db.FindFile(ctx, ns.ID, PathKey(p))
	if err != nil {
		return false, fmt.Errorf("finding file: %w", err)
	}
	if f != nil {
		return true, nil
	}
	mounts, err := s.db.FindMountsByParentKeys(ctx, ns.ID, []string{PathKey(ParentPath(p))})
	if err != nil {
		return false, fmt.Errorf("finding mounts: %w", err)
	}
	for _, m := range mounts {
		if m.Point.DisplayKey() == PathKey(BaseName(p)) {
			return true, nil
		}
	}
	return false, nil
}

// writableLocation resolves a path that is about to be created.
func (s *Service) writableLocation(ctx context.Context, ns *model.Namespace, p string) (*location, error) {
	p, err := NormalizePath(p)
	if err != nil {
		return nil, err
	}
	if isProtected(p) {
		return nil, fmt.Errorf("%w: %s already exists", ErrConflict, p)
	}
	if inTrash(p) {
		return nil, fmt.Errorf("%w: cannot create inside the trash", ErrInvalidPath)
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	if loc.atMount {
		return nil, fmt.Errorf("%w: %s already exists", ErrConflict, p)
	}
	if err := Authorize(loc.grant(), model.ActionWrite); err != nil {
		return nil, err
	}
	if loc.mount != nil && inTrash(loc.path) {
		return nil, fmt.Errorf("%w: shared content is in the trash", ErrInvalidPath)
	}
	return loc, nil
}

// checkCreatable verifies, ahead of any quota or storage work, that the
// parent is a folder and the path is free. CreateFile repeats the check
// transactionally.
func (s *Service) checkCreatable(ctx context.Context, loc *location) error {
	parent, err := s.db.FindFile(ctx, loc.ns.ID, PathKey(ParentPath(loc.path)))
	if err != nil {
		return fmt.Errorf("finding parent: %w", err)
	}
	if parent == nil {
		return fmt.Errorf("%w: parent of %s does not exist", ErrInvalidPath, loc.logical)
	}
	if !parent.IsFolder() {
		return fmt.Errorf("%w: parent of %s is not a folder", ErrInvalidPath, loc.logical)
	}
	taken, err := s.pathTaken(ctx, loc.ns, loc.path)
	if err != nil {
		return err
	}
	if taken {
		return fmt.Errorf("%w: %s already exists", ErrConflict, loc.logical)
	}
	return nil
}

func (s *Service) newFile(ns *model.Namespace, p string, attrs FileAttrs) *model.File {
	modified := attrs.ModifiedAt
	if modified.IsZero() {
		modified = s.clock.Now()
	}
	f := &model.File{
		ID:          s.ids.New(),
		NamespaceID: ns.ID,
		Name:        BaseName(p),
		Path:        p,
		PathKey:     PathKey(p),
		ParentKey:   PathKey(ParentPath(p)),
		Size:        attrs.Size,
		ContentHash: attrs.ContentHash,
		MediaType:   attrs.MediaType,
		ModifiedAt:  modified,
	}
	if f.IsFolder() {
		f.Size = 0
		f.ContentHash = ""
	}
	return f
}

func (s *Service) createLocked(ctx context.Context, ns *model.Namespace, f *model.File) (*model.File, error) {
	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if err := s.db.CreateFile(ctx, f); err != nil {
		return nil, fmt.Errorf("creating %s: %w", f.Path, err)
	}
	return f, nil
}

// createWithContent inserts f after making sure its content is stored. The
// check and the insert share the namespace lock with purges, so content seen
// here cannot be purged before the row referencing it commits. put restores
// missing content; the result reports whether it ran.
func (s *Service) createWithContent(ctx context.Context, ns *model.Namespace, f *model.File, put func(context.Context) error) (bool, error) {
	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return false, err
	}
	defer unlock()

	restored := false
	if f.ContentHash != "" {
		exists, err := s.storage.Exists(ctx, ns.Path, f.ContentHash)
		if err != nil {
			return false, fmt.Errorf("checking stored content: %w", err)
		}
		if !exists {
			s.logger.Warn("stored content vanished before commit", "namespace", ns.Path, "hash", f.ContentHash)
			if err := put(ctx); err != nil {
				return false, err
			}
			restored = true
		}
	}
	if err := s.db.CreateFile(ctx, f); err != nil {
		return restored, fmt.Errorf("creating %s: %w", f.Path, err)
	}
	return restored, nil
}

func (s *Service) moveLocked(ctx context.Context, ns *model.Namespace, p MoveFileParams) (*model.File, error) {
	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	f, err := s.db.MoveFile(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("moving to %s: %w", p.ToPath, err)
	}
	return f, nil
}

func (s *Service) deleteLocked(ctx context.Context, ns *model.Namespace, p string, keepRoot bool) (*DeleteResult, error) {
	acc, err := s.accountFor(ctx, ns)
	if err != nil {
		return nil, err
	}

	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	res, err := s.db.DeleteFile(ctx, DeleteFileParams{
		Namespace: ns,
		AccountID: acc.ID,
		PathKey:   PathKey(p),
		QueuedAt:  s.clock.Now(),
		KeepRoot:  keepRoot,
	})
	if err != nil {
		return nil, fmt.Errorf("deleting %s: %w", p, err)
	}
	s.enqueuePending(ctx, res.Pending)
	s.logger.Debug("deleted subtree", "namespace", ns.Path, "path", p, "files", res.Removed, "bytes", res.ReleasedBytes)
	return res, nil
}

// discardContent queues bytes written for an operation that then failed.
func (s *Service) discardContent(ctx context.Context, ns *model.Namespace, p, hash, mediaType string) {
	item := &model.FilePendingDeletion{
		ID:            s.ids.New(),
		NamespacePath: ns.Path,
		Path:          p,
		ContentHash:   hash,
		MediaType:     mediaType,
		CreatedAt:     s.clock.Now(),
	}
	if err := s.db.CreatePendingDeletions(context.WithoutCancel(ctx), []*model.FilePendingDeletion{item}); err != nil {
		s.logger.Error("queueing orphaned content failed", "namespace", ns.Path, "hash", hash, "error", err)
		return
	}
	s.enqueuePending(ctx, []*model.FilePendingDeletion{item})
}

func fileEntity(f *model.File) model.AuditEntity {
	return model.AuditEntity{Type: "file", ID: f.ID, Name: f.Name, Path: f.Path}
}
