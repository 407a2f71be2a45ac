// Package migrations embeds the sqlite driver's schema migrations.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
