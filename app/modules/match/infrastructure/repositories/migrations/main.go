package matchmigrations

import "github.com/uptrace/bun/migrate"

// Migrations holds the match module migrations.
var Migrations = migrate.NewMigrations()
