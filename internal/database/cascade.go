package database

import (
	"context"
	"database/sql"
	"fmt"
)

// Foreign keys are declared without ON DELETE CASCADE. Removing files goes
// through deleteFiles, which clears dependent rows in this order:
//
//	file_member_mount_points  (mounted under a doomed folder, or of a doomed grant)
//	file_members              (grants on doomed files, or whose mount point goes)
//	fingerprints
//	file_metadata
//	files

// cascadeChunk bounds the number of bound parameters per statement.
const cascadeChunk = 400

// deleteFiles removes the files and everything that depends on them.
func deleteFiles(ctx context.Context, tx *sql.Tx, ids []string) error {
	for start := 0; start < len(ids); start += cascadeChunk {
		chunk := ids[start:min(start+cascadeChunk, len(ids))]
		if err := deleteFileChunk(ctx, tx, chunk); err != nil {
			return err
		}
	}
	return nil
}

func deleteFileChunk(ctx context.Context, tx *sql.Tx, ids []string) error {
	in := placeholders(len(ids))
	args := stringArgs(ids)

	memberIDs, err := queryStrings(ctx, tx,
		"SELECT id FROM file_members WHERE file_id IN ("+in+") "+
			"UNION SELECT member_id FROM file_member_mount_points WHERE parent_id IN ("+in+")",
		append(append([]any{}, args...), args...)...)
	if err != nil {
		return fmt.Errorf("finding dependent grants: %w", err)
	}
	if err := deleteMembers(ctx, tx, memberIDs); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM fingerprints WHERE file_id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("deleting fingerprints: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM file_metadata WHERE file_id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("deleting metadata: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM files WHERE id IN ("+in+")", args...); err != nil {
		return fmt.Errorf("deleting files: %w", err)
	}
	return nil
}

// deleteMembers removes grants together with their mount points.
func deleteMembers(ctx context.Context, tx *sql.Tx, ids []string) error {
	for start := 0; start < len(ids); start += cascadeChunk {
		chunk := ids[start:min(start+cascadeChunk, len(ids))]
		in := placeholders(len(chunk))
		args := stringArgs(chunk)
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_member_mount_points WHERE member_id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("deleting mount points: %w", err)
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM file_members WHERE id IN ("+in+")", args...); err != nil {
			return fmt.Errorf("deleting grants: %w", err)
		}
	}
	return nil
}

func queryStrings(ctx context.Context, q querier, query string, args ...any) ([]string, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
