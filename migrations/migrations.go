// Package migrations embeds the PostgreSQL schema of the transcript archive.
package migrations

import "embed"

// FS holds the NNNN_name.{up,down}.sql files read by golang-migrate.
//
//go:embed *.sql
var FS embed.FS
