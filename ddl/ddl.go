// Package ddl holds the database schema migrations, embedded into the binary
// so the migration runner needs no filesystem access.
package ddl

import "embed"

//go:embed *.sql
var Migrations embed.FS
