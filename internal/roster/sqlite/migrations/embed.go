package migrations

import "embed"

// FS holds the roster schema migrations.
//
//go:embed *.sql
var FS embed.FS
