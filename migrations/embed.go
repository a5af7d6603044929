// Package appmigrations embeds the SQL migrations applied by cmd/migrate.
package appmigrations

import "embed"

//go:embed *.sql
var FS embed.FS
