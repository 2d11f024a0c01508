package db

import "embed"

// MigrationFS embeds the persisted-store schema for Postgres (kv_entries).
// Applied by migrate.Run from cmd/migrate and by the postgres store on open.
//
//go:embed migrations/*.sql
var MigrationFS embed.FS
