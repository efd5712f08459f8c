// Package urlrisk holds the SQL migrations embedded into the binary.
package urlrisk

import "embed"

// Migrations contains the goose SQL migrations.
//
//go:embed migrations/*.sql
var Migrations embed.FS
