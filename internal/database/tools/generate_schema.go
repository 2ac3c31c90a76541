// Command generate_schema migrates an in-memory database and writes the
// resulting schema to schema.sql, which tests load directly. With -check it
// only reports whether the committed file is stale.
package main

import (
	"bytes"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"strings"

	"shelf-go/internal/database"
	"shelf-go/internal/database/migrations"
)

const header = `-- This file is auto-generated from migration files.
-- DO NOT EDIT MANUALLY. Run 'go generate ./internal/database' to regenerate.
-- Source: internal/database/migrations/files/*.sql

`

func main() {
	out := flag.String("out", "internal/database/schema.sql", "schema file to write")
	check := flag.Bool("check", false, "fail if the schema file is out of date instead of writing it")
	flag.Parse()

	schema, err := generate()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}

	if *check {
		current, err := os.ReadFile(*out)
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
			os.Exit(1)
		}
		if !bytes.Equal(current, []byte(schema)) {
			fmt.Fprintf(os.Stderr, "%s is out of date; run 'go generate ./internal/database'\n", *out)
			os.Exit(1)
		}
		return
	}

	if err := os.WriteFile(*out, []byte(schema), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "generate_schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s\n", *out)
}

func generate() (string, error) {
	db, err := database.OpenConnection(":memory:")
	if err != nil {
		return "", fmt.Errorf("opening database: %w", err)
	}
	defer db.Close()

	if err := migrations.Up(db); err != nil {
		return "", err
	}
	return dumpSchema(db)
}

// dumpSchema lists the CREATE statements of every table, index and trigger in
// creation order, leaving out SQLite internals and the migration bookkeeping.
func dumpSchema(db *sql.DB) (string, error) {
	rows, err := db.Query(`
		SELECT sql FROM sqlite_master
		WHERE sql IS NOT NULL
		  AND name NOT LIKE 'sqlite_%'
		  AND tbl_name != 'schema_migrations'
		ORDER BY rowid`)
	if err != nil {
		return "", fmt.Errorf("reading sqlite_master: %w", err)
	}
	defer rows.Close()

	var stmts []string
	for rows.Next() {
		var stmt string
		if err := rows.Scan(&stmt); err != nil {
			return "", fmt.Errorf("scanning statement: %w", err)
		}
		stmts = append(stmts, stmt+";")
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("reading sqlite_master: %w", err)
	}
	return header + strings.Join(stmts, "\n\n") + "\n", nil
}
