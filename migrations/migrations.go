// Package migrations embeds SQL migrations applied with goose.
package migrations

import "embed"

// FS holds the embedded migration files.
//
//go:embed *.sql
var FS embed.FS
