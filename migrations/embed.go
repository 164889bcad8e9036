// Package migrations embeds the module's goose migrations for use with
// pg.Migrate.
package migrations

import "embed"

// FS holds the SQL migration files.
//
//go:embed *.sql
var FS embed.FS
