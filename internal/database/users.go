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

// CreateUser inserts the user, its account, its namespace and the
// namespace's root and trash folders.
func (s *SQLiteDatabase) CreateUser(ctx context.Context, p shelf.CreateUserParams) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO users (id, username, username_key, created_at) VALUES (?, ?, ?, ?)",
			p.User.ID, p.User.Username, strings.ToLower(p.User.Username), p.User.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: user %q exists", shelf.ErrConflict, p.User.Username)
		}
		if err != nil {
			return fmt.Errorf("inserting user: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO accounts (id, user_id, storage_quota, used_bytes, created_at) VALUES (?, ?, ?, 0, ?)",
			p.Account.ID, p.User.ID, p.Account.StorageQuota, p.Account.CreatedAt); err != nil {
			return fmt.Errorf("inserting account: %w", err)
		}

		_, err = tx.ExecContext(ctx,
			"INSERT INTO namespaces (id, path, owner_id, created_at) VALUES (?, ?, ?, ?)",
			p.Namespace.ID, p.Namespace.Path, p.User.ID, p.Namespace.CreatedAt)
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: namespace %q exists", shelf.ErrConflict, p.Namespace.Path)
		}
		if err != nil {
			return fmt.Errorf("inserting namespace: %w", err)
		}

		if err := insertFile(ctx, tx, p.Root); err != nil {
			return fmt.Errorf("inserting root: %w", err)
		}
		if err := insertFile(ctx, tx, p.Trash); err != nil {
			return fmt.Errorf("inserting trash: %w", err)
		}
		return nil
	})
}

const userColumns = "id, username, created_at"

func scanUser(row *sql.Row) (*model.User, error) {
	var u model.User
	if err := row.Scan(&u.ID, &u.Username, &u.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

func (s *SQLiteDatabase) FindUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE username_key = ?", strings.ToLower(username)))
	if err != nil {
		return nil, fmt.Errorf("finding user by username: %w", err)
	}
	return u, nil
}

func (s *SQLiteDatabase) FindUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := scanUser(s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("finding user by id: %w", err)
	}
	return u, nil
}

// DeleteUser removes the user, the grants it received, its namespace with
// every file and its account. Audit entries keep their rows with the user
// reference cleared.
func (s *SQLiteDatabase) DeleteUser(ctx context.Context, userID string) ([]*model.FilePendingDeletion, error) {
	var pending []*model.FilePendingDeletion
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		received, err := queryStrings(ctx, tx, "SELECT id FROM file_members WHERE user_id = ?", userID)
		if err != nil {
			return fmt.Errorf("finding grants: %w", err)
		}
		if err := deleteMembers(ctx, tx, received); err != nil {
			return err
		}

		ns, err := scanNamespace(tx.QueryRowContext(ctx,
			"SELECT "+namespaceColumns+" FROM namespaces WHERE owner_id = ?", userID))
		if err != nil {
			return fmt.Errorf("finding namespace: %w", err)
		}
		if ns != nil {
			files, err := findSubtree(ctx, tx, ns.ID, shelf.RootPath, true)
			if err != nil {
				return fmt.Errorf("loading files: %w", err)
			}
			pending = s.pendingFor(ns.Path, files, s.clock.Now())
			ids := make([]string, len(files))
			for i, f := range files {
				ids[i] = f.ID
			}
			if err := deleteFiles(ctx, tx, ids); err != nil {
				return err
			}
			if err := insertPendingDeletions(ctx, tx, pending); err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, "DELETE FROM namespaces WHERE id = ?", ns.ID); err != nil {
				return fmt.Errorf("deleting namespace: %w", err)
			}
		}

		if _, err := tx.ExecContext(ctx, "DELETE FROM accounts WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("deleting account: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "UPDATE audit_trails SET user_id = NULL WHERE user_id = ?", userID); err != nil {
			return fmt.Errorf("detaching audit trails: %w", err)
		}
		res, err := tx.ExecContext(ctx, "DELETE FROM users WHERE id = ?", userID)
		if err != nil {
			return fmt.Errorf("deleting user: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: user %s", shelf.ErrNotFound, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return pending, nil
}

const namespaceColumns = "id, path, owner_id, created_at"

func scanNamespace(row *sql.Row) (*model.Namespace, error) {
	var ns model.Namespace
	if err := row.Scan(&ns.ID, &ns.Path, &ns.OwnerID, &ns.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ns, nil
}

func (s *SQLiteDatabase) FindNamespaceByPath(ctx context.Context, path string) (*model.Namespace, error) {
	ns, err := scanNamespace(s.db.QueryRowContext(ctx,
		"SELECT "+namespaceColumns+" FROM namespaces WHERE path = ?", strings.ToLower(path)))
	if err != nil {
		return nil, fmt.Errorf("finding namespace by path: %w", err)
	}
	return ns, nil
}

func (s *SQLiteDatabase) FindNamespaceByID(ctx context.Context, id string) (*model.Namespace, error) {
	ns, err := scanNamespace(s.db.QueryRowContext(ctx,
		"SELECT "+namespaceColumns+" FROM namespaces WHERE id = ?", id))
	if err != nil {
		return nil, fmt.Errorf("finding namespace by id: %w", err)
	}
	return ns, nil
}

func (s *SQLiteDatabase) FindAccountByUserID(ctx context.Context, userID string) (*model.Account, error) {
	var acc model.Account
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, storage_quota, used_bytes, created_at FROM accounts WHERE user_id = ?", userID,
	).Scan(&acc.ID, &acc.UserID, &acc.StorageQuota, &acc.UsedBytes, &acc.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding account: %w", err)
	}
	return &acc, nil
}

func (s *SQLiteDatabase) SetAccountQuota(ctx context.Context, accountID string, quota sql.NullInt64) error {
	res, err := s.db.ExecContext(ctx, "UPDATE accounts SET storage_quota = ? WHERE id = ?", quota, accountID)
	if err != nil {
		return fmt.Errorf("setting quota: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: account %s", shelf.ErrNotFound, accountID)
	}
	return nil
}

// ReserveQuota admits bytes only if usage stays within the quota. The
// condition and the increment are one statement.
func (s *SQLiteDatabase) ReserveQuota(ctx context.Context, accountID string, bytes int64) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE accounts SET used_bytes = used_bytes + ?
		 WHERE id = ? AND (storage_quota IS NULL OR used_bytes + ? <= storage_quota)`,
		bytes, accountID, bytes)
	if err != nil {
		return false, fmt.Errorf("reserving quota: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserving quota: %w", err)
	}
	return n == 1, nil
}

func (s *SQLiteDatabase) ReleaseQuota(ctx context.Context, accountID string, bytes int64) error {
	return releaseQuota(ctx, s.db, accountID, bytes)
}

func releaseQuota(ctx context.Context, q querier, accountID string, bytes int64) error {
	if _, err := q.ExecContext(ctx,
		"UPDATE accounts SET used_bytes = MAX(used_bytes - ?, 0) WHERE id = ?", bytes, accountID); err != nil {
		return fmt.Errorf("releasing quota: %w", err)
	}
	return nil
}
