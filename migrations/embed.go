// Package migrations holds the versioned SQL schema applied by cmd/migrate.
package migrations

import "embed"

// FS contains every NNNNNN_name.{up,down}.sql file in this directory
//
//go:embed *.sql
var FS embed.FS
