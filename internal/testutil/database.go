package testutil

import (
	"testing"

	"shelf-go/internal/database"
	"shelf-go/internal/shelf"
)

// NewTestDatabase creates an in-memory SQLite database with the schema
// applied. It is closed when the test completes. A nil clock or ID
// generator selects the real one.
func NewTestDatabase(t *testing.T, clock shelf.Clock, ids shelf.IDGenerator) *database.SQLiteDatabase {
	t.Helper()

	conn, err := database.OpenConnection(":memory:")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	if _, err := conn.Exec(database.Schema); err != nil {
		conn.Close()
		t.Fatalf("applying schema: %v", err)
	}

	db := database.NewSQLiteDatabaseFromDB(conn, clock, ids)
	t.Cleanup(func() { db.Close() })
	return db
}
