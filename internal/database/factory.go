package database

import (
	"fmt"
	"os"
	"path/filepath"

	"shelf-go/internal/config"
	"shelf-go/internal/shelf"
)

// DatabaseFile is the SQLite file name inside the data directory.
const DatabaseFile = "shelf.db"

// NewDatabaseFromConfig creates a Database implementation based on the database config type.
// In-memory databases are migrated immediately; file databases are
// migrated with `shelf db migrate`.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, clock shelf.Clock, ids shelf.IDGenerator) (*SQLiteDatabase, error) {
	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(filepath.Join(cfg.DataDir, DatabaseFile), clock, ids)
	case "memory":
		db, err := NewSQLiteDatabase(":memory:", clock, ids)
		if err != nil {
			return nil, err
		}
		if err := db.Migrate(); err != nil {
			db.Close()
			return nil, err
		}
		return db, nil
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}
