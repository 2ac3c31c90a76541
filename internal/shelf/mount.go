package shelf

import (
	"context"
	"fmt"
	"strings"
	"time"

	"shelf-go/internal/model"
)

// location is a logical path resolved to the namespace and path that store it.
type location struct {
	ns      *model.Namespace // backing namespace
	path    string           // backing path
	logical string           // path as requested in the viewing namespace
	mount   *model.Mount     // set when resolved through a mount
	atMount bool             // logical is exactly the mount point
}

func (l *location) grant() *model.FileMember {
	if l.mount == nil {
		return nil
	}
	return &l.mount.Member
}

// entry presents a backing record as seen from the viewing namespace.
func (l *location) entry(f *model.File) *Entry {
	if l.mount == nil {
		return &Entry{File: f, Name: f.Name, Path: f.Path}
	}
	mountPath := mountDisplayPath(l.mount)
	p := ReplacePrefix(f.Path, l.mount.Shared.Path, mountPath)
	return &Entry{
		File:       f,
		Name:       BaseName(p),
		Path:       p,
		Grant:      l.grant(),
		MountPoint: PathKey(p) == PathKey(mountPath),
	}
}

func mountDisplayPath(m *model.Mount) string {
	return JoinPath(m.Parent.Path, m.Point.DisplayName)
}

func mountEntry(m *model.Mount) *Entry {
	return &Entry{
		File:       &m.Shared,
		Name:       m.Point.DisplayName,
		Path:       mountDisplayPath(m),
		Grant:      &m.Member,
		MountPoint: true,
	}
}

// MountResolution is where a path under a mount is actually stored.
type MountResolution struct {
	Namespace *model.Namespace
	Path      string
	Mount     *model.Mount
}

// ResolveMount reports whether path, or one of its ancestors, is a mount
// point in the namespace. If so it returns the grantor's namespace and the
// path there, formed from the shared file's own path and the remainder of
// the requested path. It returns nil when no mount is involved. Mounts are
// followed one level only.
func (s *Service) ResolveMount(ctx context.Context, nsPath, p string) (*MountResolution, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if p, err = NormalizePath(p); err != nil {
		return nil, err
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	if loc.mount == nil {
		return nil, nil
	}
	return &MountResolution{Namespace: loc.ns, Path: loc.path, Mount: loc.mount}, nil
}

// locate resolves a canonical path through the namespace's mounts. All
// candidate mounts are fetched in one query and the longest matching prefix
// wins.
func (s *Service) locate(ctx context.Context, ns *model.Namespace, p string) (*location, error) {
	loc := &location{ns: ns, path: p, logical: p}

	prefixes := Prefixes(p)
	if len(prefixes) == 0 {
		return loc, nil
	}
	parentKeys := make([]string, 0, len(prefixes))
	for _, prefix := range prefixes {
		parentKeys = append(parentKeys, PathKey(ParentPath(prefix)))
	}
	mounts, err := s.db.FindMountsByParentKeys(ctx, ns.ID, parentKeys)
	if err != nil {
		return nil, fmt.Errorf("finding mounts: %w", err)
	}
	if len(mounts) == 0 {
		return loc, nil
	}

	byPath := make(map[string]*model.Mount, len(mounts))
	for _, m := range mounts {
		byPath[PathKey(mountDisplayPath(m))] = m
	}
	for _, prefix := range prefixes {
		m, ok := byPath[PathKey(prefix)]
		if !ok {
			continue
		}
		rest := strings.TrimPrefix(p[len(prefix):], "/")
		loc.ns = &m.SharedNamespace
		loc.path = JoinPath(m.Shared.Path, rest)
		loc.mount = m
		loc.atMount = rest == ""
		return loc, nil
	}
	return loc, nil
}

// Authorize checks a grant against the action an operation needs. A nil
// grant means the caller owns the node and is always allowed.
func Authorize(grant *model.FileMember, want model.Action) error {
	if grant == nil || grant.Actions.Has(want) {
		return nil
	}
	return fmt.Errorf("%w: grant allows %s, operation needs %s", ErrPermissionDenied, grant.Actions, want)
}

// EffectiveActions is what a grant allows out of the requested actions.
func EffectiveActions(grant *model.FileMember, requested model.Action) model.Action {
	if grant == nil {
		return requested
	}
	return grant.Actions & requested
}

// ShareOptions configures Share.
type ShareOptions struct {
	Actions model.Action
	// MountAt is the grantee folder receiving the mount point; defaults to
	// the grantee's root.
	MountAt string
}

// Share grants the node at path to another user and splices it into the
// grantee's namespace. The display name is the shared node's name, made
// unique in the target folder. Re-sharing through a mount needs the
// re-share bit and never grants more than the grantor holds.
func (s *Service) Share(ctx context.Context, nsPath, p, grantee string, opts ShareOptions) (m *model.Mount, err error) {
	defer s.observe("share", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if p, err = NormalizePath(p); err != nil {
		return nil, err
	}
	if isProtected(p) || inTrash(p) {
		return nil, fmt.Errorf("%w: cannot share %s", ErrInvalidPath, p)
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	actions := opts.Actions & model.ActionAll
	if loc.mount != nil {
		if err := Authorize(loc.grant(), model.ActionReshare); err != nil {
			return nil, err
		}
		actions = EffectiveActions(loc.grant(), actions)
	}
	if actions == 0 {
		return nil, fmt.Errorf("%w: a share needs at least one action", ErrPermissionDenied)
	}
	shared, err := s.findFile(ctx, loc.ns, loc.path)
	if err != nil {
		return nil, err
	}
	if inTrash(shared.Path) {
		return nil, fmt.Errorf("%w: cannot share trashed content", ErrInvalidPath)
	}

	user, err := s.db.FindUserByUsername(ctx, normalizeUsername(grantee))
	if err != nil {
		return nil, fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("%w: user %q", ErrNotFound, grantee)
	}
	target, err := s.namespace(ctx, user.Username)
	if err != nil {
		return nil, err
	}
	if target.ID == loc.ns.ID || target.ID == ns.ID {
		return nil, fmt.Errorf("%w: cannot share within one namespace", ErrMountConflict)
	}

	mountAt, err := NormalizePath(opts.MountAt)
	if err != nil {
		return nil, err
	}
	if inTrash(mountAt) {
		return nil, fmt.Errorf("%w: cannot mount inside the trash", ErrInvalidPath)
	}
	at, err := s.locate(ctx, target, mountAt)
	if err != nil {
		return nil, err
	}
	if at.mount != nil {
		return nil, fmt.Errorf("%w: cannot mount inside another mount", ErrMountConflict)
	}
	parent, err := s.findFile(ctx, target, mountAt)
	if err != nil {
		return nil, err
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("%w: %s is not a folder", ErrInvalidPath, mountAt)
	}

	unlock, err := s.lockNamespace(ctx, target)
	if err != nil {
		return nil, err
	}
	defer unlock()

	display, err := s.availablePath(ctx, target, JoinPath(parent.Path, shared.Name))
	if err != nil {
		return nil, err
	}
	member := &model.FileMember{
		ID:        s.ids.New(),
		FileID:    shared.ID,
		UserID:    user.ID,
		Actions:   actions,
		CreatedAt: s.clock.Now(),
	}
	point := &model.MountPoint{
		ID:          s.ids.New(),
		MemberID:    member.ID,
		ParentID:    parent.ID,
		DisplayName: BaseName(display),
	}
	if err := s.db.CreateShare(ctx, member, point); err != nil {
		return nil, fmt.Errorf("sharing %s with %s: %w", p, user.Username, err)
	}

	s.record(ctx, "file_shared", fileEntity(shared), userEntity(user))
	return &model.Mount{
		Point:           *point,
		Member:          *member,
		Parent:          *parent,
		Shared:          *shared,
		SharedNamespace: *loc.ns,
	}, nil
}

// Unshare revokes a grant made on a node the namespace owns.
func (s *Service) Unshare(ctx context.Context, nsPath, p, grantee string) (err error) {
	defer s.observe("unshare", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return err
	}
	if p, err = NormalizePath(p); err != nil {
		return err
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return err
	}
	if loc.mount != nil {
		return fmt.Errorf("%w: only the owner can revoke a share", ErrMountConflict)
	}
	shared, err := s.findFile(ctx, ns, p)
	if err != nil {
		return err
	}
	user, err := s.db.FindUserByUsername(ctx, normalizeUsername(grantee))
	if err != nil {
		return fmt.Errorf("finding user: %w", err)
	}
	if user == nil {
		return fmt.Errorf("%w: user %q", ErrNotFound, grantee)
	}
	member, err := s.db.FindMember(ctx, shared.ID, user.ID)
	if err != nil {
		return fmt.Errorf("finding share: %w", err)
	}
	if member == nil {
		return fmt.Errorf("%w: %s is not shared with %s", ErrNotFound, p, user.Username)
	}
	if err := s.db.DeleteShare(ctx, member.ID); err != nil {
		return fmt.Errorf("revoking share: %w", err)
	}
	s.record(ctx, "file_unshared", fileEntity(shared), userEntity(user))
	return nil
}

// Unmount removes a mount point, and with it the grant, from the grantee's
// namespace.
func (s *Service) Unmount(ctx context.Context, nsPath, p string) (err error) {
	defer s.observe("unmount", time.Now(), &err)

	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return err
	}
	if p, err = NormalizePath(p); err != nil {
		return err
	}
	loc, err := s.locate(ctx, ns, p)
	if err != nil {
		return err
	}
	if !loc.atMount {
		return fmt.Errorf("%w: %s is not a mount point", ErrInvalidPath, p)
	}

	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return err
	}
	defer unlock()

	if err := s.db.DeleteShare(ctx, loc.mount.Member.ID); err != nil {
		return fmt.Errorf("removing mount: %w", err)
	}
	s.record(ctx, "file_unshared", fileEntity(&loc.mount.Shared))
	return nil
}

// ListMembers returns the grants on a node the namespace owns.
func (s *Service) ListMembers(ctx context.Context, nsPath, p string) ([]*model.FileMember, error) {
	ns, err := s.namespace(ctx, nsPath)
	if err != nil {
		return nil, err
	}
	if p, err = NormalizePath(p); err != nil {
		return nil, err
	}
	f, err := s.findFile(ctx, ns, p)
	if err != nil {
		return nil, err
	}
	members, err := s.db.ListMembers(ctx, f.ID)
	if err != nil {
		return nil, fmt.Errorf("listing members: %w", err)
	}
	return members, nil
}

// moveMount relocates or renames a mount point within its own namespace.
func (s *Service) moveMount(ctx context.Context, ns *model.Namespace, src *location, to string) (*model.File, error) {
	dst, err := s.locate(ctx, ns, to)
	if err != nil {
		return nil, err
	}
	sameNode := PathKey(to) == PathKey(src.logical)
	switch {
	case dst.atMount && !sameNode:
		return nil, fmt.Errorf("%w: %s already exists", ErrConflict, to)
	case dst.mount != nil && !sameNode:
		return nil, fmt.Errorf("%w: cannot move a mount into another mount", ErrMountConflict)
	}

	parent, err := s.db.FindFile(ctx, ns.ID, PathKey(ParentPath(to)))
	if err != nil {
		return nil, fmt.Errorf("finding parent: %w", err)
	}
	if parent == nil || !parent.IsFolder() {
		return nil, fmt.Errorf("%w: parent of %s is not a folder", ErrInvalidPath, to)
	}

	unlock, err := s.lockNamespace(ctx, ns)
	if err != nil {
		return nil, err
	}
	defer unlock()

	if !sameNode {
		existing, err := s.db.FindFile(ctx, ns.ID, PathKey(to))
		if err != nil {
			return nil, fmt.Errorf("finding file: %w", err)
		}
		if existing != nil {
			return nil, fmt.Errorf("%w: %s already exists", ErrConflict, to)
		}
	}
	if err := s.db.UpdateMountPoint(ctx, src.mount.Point.ID, parent.ID, BaseName(to)); err != nil {
		return nil, fmt.Errorf("moving mount: %w", err)
	}

	s.record(ctx, "mount_moved", fileEntity(&src.mount.Shared))
	return &src.mount.Shared, nil
}
