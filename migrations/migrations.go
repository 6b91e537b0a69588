// Package migrations embeds the metadata store schema migrations.
package migrations

import "embed"

// FS holds the numbered golang-migrate migration files.
//
//go:embed *.sql
var FS embed.FS
