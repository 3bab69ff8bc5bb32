// Package pgmigrations embeds the accounts schema migrations.
package pgmigrations

import "embed"

// FS holds the numbered golang-migrate files.
//
//go:embed *.sql
var FS embed.FS
