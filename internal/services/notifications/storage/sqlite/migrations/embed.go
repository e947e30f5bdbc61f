package migrations

import "embed"

// FS holds the inbox schema.
//
//go:embed *.sql
var FS embed.FS
