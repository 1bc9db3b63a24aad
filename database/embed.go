package database

import "embed"

// EmbeddedMigrations holds the schema migrations under migrations/.
//
//go:embed migrations/*.sql
var EmbeddedMigrations embed.FS
