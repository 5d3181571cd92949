// Package migrations embeds the goose SQL migration files that define the database schema.
package migrations

import "embed"

// FS holds the embedded SQL migration files.
//
//go:embed *.sql
var FS embed.FS
