// Package migrations embeds the schema of the agent's key store database.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
