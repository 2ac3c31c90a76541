package database

// schema.sql is derived from the migrations; regenerate it after adding one.
// CI runs the same tool with -check.

//go:generate sh -c "cd ../.. && go run ./internal/database/tools/generate_schema.go"
