package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"shelf-go/internal/model"
)

// SaveMetadata inserts or replaces a file's content metadata.
func (s *SQLiteDatabase) SaveMetadata(ctx context.Context, m *model.ContentMetadata) error {
	data, err := json.Marshal(m.Data)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO file_metadata (file_id, data, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT (file_id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		m.FileID, string(data), m.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving metadata: %w", err)
	}
	return nil
}

func (s *SQLiteDatabase) FindMetadata(ctx context.Context, fileID string) (*model.ContentMetadata, error) {
	m := model.ContentMetadata{FileID: fileID}
	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT data, updated_at FROM file_metadata WHERE file_id = ?", fileID,
	).Scan(&data, &m.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding metadata: %w", err)
	}
	if err := json.Unmarshal([]byte(data), &m.Data); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &m, nil
}
