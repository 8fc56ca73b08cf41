// Package migrations embeds the PostgreSQL schema of the subjects table.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
