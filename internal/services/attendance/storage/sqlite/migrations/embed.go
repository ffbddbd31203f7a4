package migrations

import "embed"

// FS contains embedded SQLite migrations for attendance row storage.
//
//go:embed *.sql
var FS embed.FS
