package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
)

const mountSelect = `SELECT mp.id, mp.member_id, mp.parent_id, mp.display_name,
	m.id, m.file_id, m.user_id, m.actions, m.created_at,
	` + "%s, %s" + `,
	sn.id, sn.path, sn.owner_id, sn.created_at
FROM file_member_mount_points mp
JOIN file_members m ON m.id = mp.member_id
JOIN files p ON p.id = mp.parent_id
JOIN files s ON s.id = m.file_id
JOIN namespaces sn ON sn.id = s.namespace_id`

var mountQuery = fmt.Sprintf(mountSelect, fileColumnsOf("p"), fileColumnsOf("s"))

func scanMounts(rows *sql.Rows) ([]*model.Mount, error) {
	defer rows.Close()
	var mounts []*model.Mount
	for rows.Next() {
		var m model.Mount
		dest := []any{
			&m.Point.ID, &m.Point.MemberID, &m.Point.ParentID, &m.Point.DisplayName,
			&m.Member.ID, &m.Member.FileID, &m.Member.UserID, &m.Member.Actions, &m.Member.CreatedAt,
		}
		dest = append(dest, fileDest(&m.Parent)...)
		dest = append(dest, fileDest(&m.Shared)...)
		dest = append(dest, &m.SharedNamespace.ID, &m.SharedNamespace.Path, &m.SharedNamespace.OwnerID, &m.SharedNamespace.CreatedAt)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		mounts = append(mounts, &m)
	}
	return mounts, rows.Err()
}

// CreateShare inserts a grant and its mount point. The mount point's name
// must not collide with a file in the target folder.
func (s *SQLiteDatabase) CreateShare(ctx context.Context, member *model.FileMember, point *model.MountPoint) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		parent, err := findFileByID(ctx, tx, point.ParentID)
		if err != nil {
			return fmt.Errorf("finding mount parent: %w", err)
		}
		if parent == nil || !parent.IsFolder() {
			return fmt.Errorf("%w: mount parent is not a folder", shelf.ErrInvalidPath)
		}
		if err := checkNameFree(ctx, tx, parent, point.DisplayName); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO file_members (id, file_id, user_id, actions, created_at) VALUES (?, ?, ?, ?, ?)",
			member.ID, member.FileID, member.UserID, member.Actions, member.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: already shared with this user", shelf.ErrConflict)
		}
		if err != nil {
			return fmt.Errorf("inserting grant: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO file_member_mount_points (id, member_id, parent_id, display_name, display_key) VALUES (?, ?, ?, ?, ?)",
			point.ID, point.MemberID, point.ParentID, point.DisplayName, point.DisplayKey())
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already exists", shelf.ErrConflict, point.DisplayName)
		}
		if err != nil {
			return fmt.Errorf("inserting mount point: %w", err)
		}
		return nil
	})
}

func findFileByID(ctx context.Context, q querier, id string) (*model.File, error) {
	return scanFile(q.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", id))
}

func checkNameFree(ctx context.Context, q querier, parent *model.File, name string) error {
	p := shelf.JoinPath(parent.Path, name)
	existing, err := findFile(ctx, q, parent.NamespaceID, shelf.PathKey(p))
	if err != nil {
		return fmt.Errorf("finding file: %w", err)
	}
	if existing != nil {
		return fmt.Errorf("%w: %s already exists", shelf.ErrConflict, p)
	}
	return nil
}

func scanMember(row *sql.Row) (*model.FileMember, error) {
	var m model.FileMember
	if err := row.Scan(&m.ID, &m.FileID, &m.UserID, &m.Actions, &m.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteDatabase) FindMember(ctx context.Context, fileID, userID string) (*model.FileMember, error) {
	m, err := scanMember(s.db.QueryRowContext(ctx,
		"SELECT id, file_id, user_id, actions, created_at FROM file_members WHERE file_id = ? AND user_id = ?",
		fileID, userID))
	if err != nil {
		return nil, fmt.Errorf("finding grant: %w", err)
	}
	return m, nil
}

func (s *SQLiteDatabase) ListMembers(ctx context.Context, fileID string) ([]*model.FileMember, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, file_id, user_id, actions, created_at FROM file_members WHERE file_id = ? ORDER BY created_at, id",
		fileID)
	if err != nil {
		return nil, fmt.Errorf("listing grants: %w", err)
	}
	defer rows.Close()

	var members []*model.FileMember
	for rows.Next() {
		var m model.FileMember
		if err := rows.Scan(&m.ID, &m.FileID, &m.UserID, &m.Actions, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning grant: %w", err)
		}
		members = append(members, &m)
	}
	return members, rows.Err()
}

func (s *SQLiteDatabase) FindMountsByParentKeys(ctx context.Context, namespaceID string, parentKeys []string) ([]*model.Mount, error) {
	if len(parentKeys) == 0 {
		return nil, nil
	}
	args := append([]any{namespaceID}, stringArgs(parentKeys)...)
	rows, err := s.db.QueryContext(ctx,
		mountQuery+" WHERE p.namespace_id = ? AND p.path_key IN ("+placeholders(len(parentKeys))+")", args...)
	if err != nil {
		return nil, fmt.Errorf("finding mounts: %w", err)
	}
	mounts, err := scanMounts(rows)
	if err != nil {
		return nil, fmt.Errorf("finding mounts: %w", err)
	}
	return mounts, nil
}

func (s *SQLiteDatabase) FindMountsInFolder(ctx context.Context, parentID string) ([]*model.Mount, error) {
	rows, err := s.db.QueryContext(ctx, mountQuery+" WHERE mp.parent_id = ? ORDER BY mp.display_key", parentID)
	if err != nil {
		return nil, fmt.Errorf("listing mounts: %w", err)
	}
	mounts, err := scanMounts(rows)
	if err != nil {
		return nil, fmt.Errorf("listing mounts: %w", err)
	}
	return mounts, nil
}

func (s *SQLiteDatabase) UpdateMountPoint(ctx context.Context, pointID, parentID, displayName string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		parent, err := findFileByID(ctx, tx, parentID)
		if err != nil {
			return fmt.Errorf("finding mount parent: %w", err)
		}
		if parent == nil || !parent.IsFolder() {
			return fmt.Errorf("%w: mount parent is not a folder", shelf.ErrInvalidPath)
		}
		if err := checkNameFree(ctx, tx, parent, displayName); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx,
			"UPDATE file_member_mount_points SET parent_id = ?, display_name = ?, display_key = ? WHERE id = ?",
			parentID, displayName, strings.ToLower(displayName), pointID)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s already exists", shelf.ErrConflict, displayName)
		}
		if err != nil {
			return fmt.Errorf("updating mount point: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: mount point %s", shelf.ErrNotFound, pointID)
		}
		return nil
	})
}

func (s *SQLiteDatabase) DeleteShare(ctx context.Context, memberID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return deleteMembers(ctx, tx, []string{memberID})
	})
}
