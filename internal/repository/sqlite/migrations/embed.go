// Package migrations embeds the SQL migrations of the SQLite backend.
package migrations

import "embed"

// FS holds every NNN_name.up.sql file, applied in file-name order.
//
//go:embed *.sql
var FS embed.FS
