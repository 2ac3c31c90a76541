package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"shelf-go/internal/model"
	"shelf-go/internal/shelf"
)

// SaveFingerprint inserts or replaces a file's fingerprint.
func (s *SQLiteDatabase) SaveFingerprint(ctx context.Context, fp *model.Fingerprint) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fingerprints (file_id, part1, part2, part3, part4) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (file_id) DO UPDATE SET
		   part1 = excluded.part1, part2 = excluded.part2, part3 = excluded.part3, part4 = excluded.part4`,
		fp.FileID, fp.Part1, fp.Part2, fp.Part3, fp.Part4)
	if err != nil {
		return fmt.Errorf("saving fingerprint: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindFingerprint(ctx context.Context, fileID string) (*model.Fingerprint, error) {
	fp := model.Fingerprint{FileID: fileID}
	err := s.db.QueryRowContext(ctx,
		"SELECT part1, part2, part3, part4 FROM fingerprints WHERE file_id = ?", fileID,
	).Scan(&fp.Part1, &fp.Part2, &fp.Part3, &fp.Part4)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding fingerprint: %w", err)
	}
	return &fp, nil
}

// excludeSubtree returns a condition on alias.path_key leaving out key and
// everything below it. An empty key excludes nothing.
func excludeSubtree(alias, key string) (string, []any) {
	if key == "" {
		return "", nil
	}
	col := alias + ".path_key"
	return " AND NOT (" + col + " = ? OR " + col + " LIKE ? ESCAPE '\\')", []any{key, descendantPattern(key)}
}

func (s *SQLiteDatabase) FindFilesByContentHash(ctx context.Context, namespaceID, contentHash, excludeKey string) ([]*model.File, error) {
	cond, condArgs := excludeSubtree("f", excludeKey)
	args := append([]any{namespaceID, contentHash, model.MediaTypeFolder}, condArgs...)
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+fileColumnsOf("f")+" FROM files f WHERE f.namespace_id = ? AND f.content_hash = ? AND f.mediatype != ?"+
			cond+" ORDER BY f.path_key", args...)
	if err != nil {
		return nil, fmt.Errorf("finding files by content hash: %w", err)
	}
	files, err := scanFiles(rows)
	if err != nil {
		return nil, fmt.Errorf("finding files by content hash: %w", err)
	}
	return files, nil
}

const fingerprintedSelect = "SELECT %s, fp.part1, fp.part2, fp.part3, fp.part4 FROM fingerprints fp JOIN files f ON f.id = fp.file_id"

var fingerprintedQuery = fmt.Sprintf(fingerprintedSelect, fileColumnsOf("f"))

func scanFingerprinted(rows *sql.Rows) ([]*shelf.FingerprintedFile, error) {
	defer rows.Close()
	var out []*shelf.FingerprintedFile
	for rows.Next() {
		var f model.File
		var fp model.Fingerprint
		dest := append(fileDest(&f), &fp.Part1, &fp.Part2, &fp.Part3, &fp.Part4)
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}
		fp.FileID = f.ID
		out = append(out, &shelf.FingerprintedFile{File: &f, Fingerprint: &fp})
	}
	return out, rows.Err()
}

// FindFingerprintCandidates runs one indexed equality lookup per part and
// unions the results.
func (s *SQLiteDatabase) FindFingerprintCandidates(ctx context.Context, namespaceID string, parts [4]int16, excludeKey string) ([]*shelf.FingerprintedFile, error) {
	cond, condArgs := excludeSubtree("f", excludeKey)
	args := []any{parts[0], parts[1], parts[2], parts[3], namespaceID}
	args = append(args, condArgs...)
	rows, err := s.db.QueryContext(ctx, fingerprintedQuery+` WHERE fp.file_id IN (
			SELECT file_id FROM fingerprints WHERE part1 = ?
			UNION SELECT file_id FROM fingerprints WHERE part2 = ?
			UNION SELECT file_id FROM fingerprints WHERE part3 = ?
			UNION SELECT file_id FROM fingerprints WHERE part4 = ?
		) AND f.namespace_id = ?`+cond+" ORDER BY f.path_key", args...)
	if err != nil {
		return nil, fmt.Errorf("finding fingerprint candidates: %w", err)
	}
	out, err := scanFingerprinted(rows)
	if err != nil {
		return nil, fmt.Errorf("finding fingerprint candidates: %w", err)
	}
	return out, nil
}

func (s *SQLiteDatabase) ListFingerprints(ctx context.Context, namespaceID, prefixKey, excludeKey string) ([]*shelf.FingerprintedFile, error) {
	query := fingerprintedQuery + " WHERE f.namespace_id = ?"
	args := []any{namespaceID}
	if prefixKey != shelf.RootPath && prefixKey != "" {
		query += " AND (f.path_key = ? OR f.path_key LIKE ? ESCAPE '\\')"
		args = append(args, prefixKey, descendantPattern(prefixKey))
	}
	cond, condArgs := excludeSubtree("f", excludeKey)
	rows, err := s.db.QueryContext(ctx, query+cond+" ORDER BY f.path_key", append(args, condArgs...)...)
	if err != nil {
		return nil, fmt.Errorf("listing fingerprints: %w", err)
	}
	out, err := scanFingerprinted(rows)
	if err != nil {
		return nil, fmt.Errorf("listing fingerprints: %w", err)
	}
	return out, nil
}
