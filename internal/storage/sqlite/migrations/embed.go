package migrations

import "embed"

// FS contains embedded SQLite migrations for tandem storage.
//
//go:embed *.sql
var FS embed.FS
