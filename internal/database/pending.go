package database

import (
	"context"
	"database/sql"
	"fmt"

	"shelf-go/internal/model"
)

const pendingColumns = "id, ns_path, path, content_hash, mediatype, created_at"

func insertPendingDeletions(ctx context.Context, q querier, items []*model.FilePendingDeletion) error {
	for _, item := range items {
		_, err := q.ExecContext(ctx,
			"INSERT INTO file_pending_deletions ("+pendingColumns+") VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, item.NamespacePath, item.Path, item.ContentHash, item.MediaType, item.CreatedAt)
		if err != nil {
			return fmt.Errorf("queueing pending deletion: %w", err)
		}
	}
	return nil
}

func scanPending(rows *sql.Rows) ([]*model.FilePendingDeletion, error) {
	defer rows.Close()
	var items []*model.FilePendingDeletion
	for rows.Next() {
		var item model.FilePendingDeletion
		if err := rows.Scan(&item.ID, &item.NamespacePath, &item.Path, &item.ContentHash, &item.MediaType, &item.CreatedAt); err != nil {
			return nil, err
		}
		items = append(items, &item)
	}
	return items, rows.Err()
}

func (s *SQLiteDatabase) CreatePendingDeletions(ctx context.Context, items []*model.FilePendingDeletion) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		return insertPendingDeletions(ctx, tx, items)
	})
}

func (s *SQLiteDatabase) FindPendingDeletions(ctx context.Context, ids []string) ([]*model.FilePendingDeletion, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+pendingColumns+" FROM file_pending_deletions WHERE id IN ("+placeholders(len(ids))+") ORDER BY created_at, id",
		stringArgs(ids)...)
	if err != nil {
		return nil, fmt.Errorf("finding pending deletions: %w", err)
	}
	items, err := scanPending(rows)
	if err != nil {
		return nil, fmt.Errorf("finding pending deletions: %w", err)
	}
	return items, nil
}

func (s *SQLiteDatabase) ListPendingDeletions(ctx context.Context, limit int) ([]*model.FilePendingDeletion, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+pendingColumns+" FROM file_pending_deletions ORDER BY created_at, id LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("listing pending deletions: %w", err)
	}
	items, err := scanPending(rows)
	if err != nil {
		return nil, fmt.Errorf("listing pending deletions: %w", err)
	}
	return items, nil
}

func (s *SQLiteDatabase) DeletePendingDeletion(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM file_pending_deletions WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting pending deletion: %w", err)
	}
	return nil
}
