package database

import _ "embed"

// Schema is the full schema produced by the migrations, for tests that need
// a ready database without running them.
//
//go:embed schema.sql
var Schema string
