package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
)

const fileColumns = "id, namespace_id, name, path, path_key, parent_key, size, content_hash, mediatype, modified_at, trashed_from, trashed_at"

// fileColumnsOf qualifies fileColumns with a table alias.
func fileColumnsOf(alias string) string {
	return alias + ".id, " + alias + ".namespace_id, " + alias + ".name, " + alias + ".path, " +
		alias + ".path_key, " + alias + ".parent_key, " + alias + ".size, " + alias + ".content_hash, " +
		alias + ".mediatype, " + alias + ".modified_at, " + alias + ".trashed_from, " + alias + ".trashed_at"
}

// fileDest returns scan destinations in fileColumns order.
func fileDest(f *model.File) []any {
	return []any{
		&f.ID, &f.NamespaceID, &f.Name, &f.Path, &f.PathKey, &f.ParentKey,
		&f.Size, &f.ContentHash, &f.MediaType, &f.ModifiedAt, &f.TrashedFrom, &f.TrashedAt,
	}
}

func scanFile(row *sql.Row) (*model.File, error) {
	var f model.File
	if err := row.Scan(fileDest(&f)...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &f, nil
}

func scanFiles(rows *sql.Rows) ([]*model.File, error) {
	defer rows.Close()
	var files []*model.File
	for rows.Next() {
		var f model.File
		if err := rows.Scan(fileDest(&f)...); err != nil {
			return nil, err
		}
		files = append(files, &f)
	}
	return files, rows.Err()
}

func findFile(ctx context.Context, q querier, namespaceID, pathKey string) (*model.File, error) {
	return scanFile(q.QueryRowContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE namespace_id = ? AND path_key = ?", namespaceID, pathKey))
}

// findSubtree returns the node at key, when includeRoot is set, and every
// node below it, ordered by path key.
func findSubtree(ctx context.Context, q querier, namespaceID, key string, includeRoot bool) ([]*model.File, error) {
	query := "SELECT " + fileColumns + " FROM files WHERE namespace_id = ? AND (path_key LIKE ? ESCAPE '\\'"
	args := []any{namespaceID, descendantPattern(key)}
	if key == shelf.RootPath {
		query = "SELECT " + fileColumns + " FROM files WHERE namespace_id = ? AND (path_key != ?"
		args = []any{namespaceID, key}
	}
	if includeRoot {
		query += " OR path_key = ?"
		args = append(args, key)
	}
	rows, err := q.QueryContext(ctx, query+") ORDER BY path_key", args...)
	if err != nil {
		return nil, err
	}
	return scanFiles(rows)
}

func insertFile(ctx context.Context, q querier, f *model.File) error {
	_, err := q.ExecContext(ctx,
		"INSERT INTO files ("+fileColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		f.ID, f.NamespaceID, f.Name, f.Path, f.PathKey, f.ParentKey,
		f.Size, f.ContentHash, f.MediaType, f.ModifiedAt, f.TrashedFrom, f.TrashedAt)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s already exists", shelf.ErrConflict, f.Path)
	}
	return err
}

// mountTaken reports whether a mount point named key sits in the folder.
func mountTaken(ctx context.Context, q querier, parentID, displayKey string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM file_member_mount_points WHERE parent_id = ? AND display_key = ?",
		parentID, displayKey).Scan(&n)
	return n > 0, err
}

// folderFor loads the folder that will hold path and fails with
// ErrInvalidPath if it is missing or not a folder.
func folderFor(ctx context.Context, q querier, namespaceID, path string) (*model.File, error) {
	parent, err := findFile(ctx, q, namespaceID, shelf.PathKey(shelf.ParentPath(path)))
	if err != nil {
		return nil, fmt.Errorf("finding parent: %w", err)
	}
	if parent == nil {
		return nil, fmt.Errorf("%w: parent of %s does not exist", shelf.ErrInvalidPath, path)
	}
	if !parent.IsFolder() {
		return nil, fmt.Errorf("%w: parent of %s is not a folder", shelf.ErrInvalidPath, path)
	}
	return parent, nil
}

func (s *SQLiteDatabase) FindFile(ctx context.Context, namespaceID, pathKey string) (*model.File, error) {
	f, err := findFile(ctx, s.db, namespaceID, pathKey)
	if err != nil {
		return nil, fmt.Errorf("finding file: %w", err)
	}
	return f, nil
}

func (s *SQLiteDatabase) FindFileByID(ctx context.Context, id string) (*model.File, error) {
	f, err := scanFile(s.db.QueryRowContext(ctx, "SELECT "+fileColumns+" FROM files WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("finding file by id: %w", err)
	}
	return f, nil
}

func (s *SQLiteDatabase) ListChildren(ctx context.Context, namespaceID, parentKey, afterKey string, limit int) ([]*model.File, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumns+" FROM files WHERE namespace_id = ? AND parent_key = ? AND path_key > ? ORDER BY path_key LIMIT ?",
		namespaceID, parentKey, afterKey, limit)
	if err != nil {
		return nil, fmt.Errorf("listing children: %w", err)
	}
	files, err := scanFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("listing children: %w", err)
	}
	return files, nil
}

// CreateFile inserts f below its parent. The stored path takes the parent's
// casing.
func (s *SQLiteDatabase) CreateFile(ctx context.Context, f *model.File) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		parent, err := folderFor(ctx, tx, f.NamespaceID, f.Path)
		if err != nil {
			return err
		}
		f.Path = shelf.JoinPath(parent.Path, shelf.BaseName(f.Path))
		f.Name = shelf.BaseName(f.Path)
		f.PathKey = shelf.PathKey(f.Path)
		f.ParentKey = parent.PathKey

		taken, err := mountTaken(ctx, tx, parent.ID, shelf.PathKey(f.Name))
		if err != nil {
			return fmt.Errorf("checking mounts: %w", err)
		}
		if taken {
			return fmt.Errorf("%w: %s is a mount point", shelf.ErrConflict, f.Path)
		}
		return insertFile(ctx, tx, f)
	})
}

// MoveFile renames a node and rewrites every descendant by prefix
// substitution in one transaction. A cancelled context rolls the whole move
// back.
func (s *SQLiteDatabase) MoveFile(ctx context.Context, p shelf.MoveFileParams) (*model.File, error) {
	var moved *model.File
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		src, err := findFile(ctx, tx, p.NamespaceID, p.FromKey)
		if err != nil {
			return fmt.Errorf("finding source: %w", err)
		}
		if src == nil {
			return fmt.Errorf("%w: %s", shelf.ErrNotFound, p.FromKey)
		}
		if src.ParentKey == "" {
			return fmt.Errorf("%w: cannot move the root", shelf.ErrInvalidPath)
		}

		parent, err := folderFor(ctx, tx, p.NamespaceID, p.ToPath)
		if err != nil {
			return err
		}
		to := shelf.JoinPath(parent.Path, shelf.BaseName(p.ToPath))
		toKey := shelf.PathKey(to)
		if shelf.IsStrictlyWithin(to, src.Path) {
			return fmt.Errorf("%w: cannot move %s into itself", shelf.ErrInvalidPath, src.Path)
		}

		if toKey != src.PathKey {
			existing, err := findFile(ctx, tx, p.NamespaceID, toKey)
			if err != nil {
				return fmt.Errorf("finding destination: %w", err)
			}
			if existing != nil {
				return fmt.Errorf("%w: %s already exists", shelf.ErrConflict, to)
			}
			taken, err := mountTaken(ctx, tx, parent.ID, shelf.PathKey(shelf.BaseName(to)))
			if err != nil {
				return fmt.Errorf("checking mounts: %w", err)
			}
			if taken {
				return fmt.Errorf("%w: %s is a mount point", shelf.ErrConflict, to)
			}
		}

		descendants, err := findSubtree(ctx, tx, p.NamespaceID, src.PathKey, false)
		if err != nil {
			return fmt.Errorf("loading descendants: %w", err)
		}

		oldPath := src.Path
		src.Path, src.Name, src.PathKey, src.ParentKey = to, shelf.BaseName(to), toKey, parent.PathKey
		switch {
		case p.Trash != nil:
			src.TrashedFrom = sql.NullString{String: p.Trash.From, Valid: true}
			src.TrashedAt = sql.NullTime{Time: p.Trash.At, Valid: true}
		case p.ClearTrash:
			src.TrashedFrom = sql.NullString{}
			src.TrashedAt = sql.NullTime{}
		}
		if err := updatePath(ctx, tx, src); err != nil {
			return err
		}

		for _, d := range descendants {
			if err := ctx.Err(); err != nil {
				return err
			}
			d.Path = shelf.ReplacePrefix(d.Path, oldPath, to)
			d.PathKey = shelf.PathKey(d.Path)
			d.ParentKey = shelf.PathKey(shelf.ParentPath(d.Path))
			if err := updatePath(ctx, tx, d); err != nil {
				return err
			}
		}
		moved = src
		return nil
	})
	if err != nil {
		return nil, err
	}
	return moved, nil
}

func updatePath(ctx context.Context, tx *sql.Tx, f *model.File) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE files SET name = ?, path = ?, path_key = ?, parent_key = ?, trashed_from = ?, trashed_at = ? WHERE id = ?",
		f.Name, f.Path, f.PathKey, f.ParentKey, f.TrashedFrom, f.TrashedAt, f.ID)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s already exists", shelf.ErrConflict, f.Path)
	}
	if err != nil {
		return fmt.Errorf("updating %s: %w", f.Path, err)
	}
	return nil
}

// DeleteFile removes a subtree, queues its stored content for purge and
// releases its bytes from the account, all in one transaction.
func (s *SQLiteDatabase) DeleteFile(ctx context.Context, p shelf.DeleteFileParams) (*shelf.DeleteResult, error) {
	res := &shelf.DeleteResult{}
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		root, err := findFile(ctx, tx, p.Namespace.ID, p.PathKey)
		if err != nil {
			return fmt.Errorf("finding file: %w", err)
		}
		if root == nil {
			return fmt.Errorf("%w: %s", shelf.ErrNotFound, p.PathKey)
		}
		if root.ParentKey == "" && !p.KeepRoot {
			return fmt.Errorf("%w: cannot delete the root", shelf.ErrInvalidPath)
		}
		res.Root = root

		doomed, err := findSubtree(ctx, tx, p.Namespace.ID, root.PathKey, !p.KeepRoot)
		if err != nil {
			return fmt.Errorf("loading subtree: %w", err)
		}
		res.Pending = s.pendingFor(p.Namespace.Path, doomed, p.QueuedAt)
		ids := make([]string, len(doomed))
		for i, f := range doomed {
			ids[i] = f.ID
			if !f.IsFolder() {
				res.ReleasedBytes += f.Size
			}
		}

		if err := deleteFiles(ctx, tx, ids); err != nil {
			return err
		}
		if err := insertPendingDeletions(ctx, tx, res.Pending); err != nil {
			return err
		}
		if res.ReleasedBytes > 0 {
			if err := releaseQuota(ctx, tx, p.AccountID, res.ReleasedBytes); err != nil {
				return err
			}
		}
		res.Removed = len(ids)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// pendingFor builds one pending deletion per regular file with content.
func (s *SQLiteDatabase) pendingFor(nsPath string, files []*model.File, at time.Time) []*model.FilePendingDeletion {
	var pending []*model.FilePendingDeletion
	for _, f := range files {
		if f.IsFolder() || f.ContentHash == "" {
			continue
		}
		pending = append(pending, &model.FilePendingDeletion{
			ID:            s.ids.New(),
			NamespacePath: nsPath,
			Path:          f.Path,
			ContentHash:   f.ContentHash,
			MediaType:     f.MediaType,
			CreatedAt:     at,
		})
	}
	return pending
}

func (s *SQLiteDatabase) UpdateContentHash(ctx context.Context, fileID, contentHash string) error {
	if _, err := s.db.ExecContext(ctx, "UPDATE files SET content_hash = ? WHERE id = ?", contentHash, fileID); err != nil {
		return fmt.Errorf("updating content hash: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) ContentReferenced(ctx context.Context, namespaceID, contentHash string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM files WHERE namespace_id = ? AND content_hash = ?", namespaceID, contentHash).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("checking content references: %w", err)
	}
	return n > 0, nil
}
