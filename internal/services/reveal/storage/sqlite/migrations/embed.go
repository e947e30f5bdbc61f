package migrations

import "embed"

// FS contains embedded SQLite migrations for reveal storage.
//
//go:embed *.sql
var FS embed.FS
