package database

import "errors"

var (
	// ErrNoPath is returned by Open when no database path is configured.
	ErrNoPath = errors.New("database: path is required")

	// ErrCorrupt is returned by HealthCheck when SQLite's integrity check fails.
	ErrCorrupt = errors.New("database: integrity check failed")

	// ErrMigrationMissing is returned by MigrateDown when the latest applied
	// version has no matching migration file.
	ErrMigrationMissing = errors.New("database: migration not found")

	// ErrNoDownSQL is returned by MigrateDown when the latest migration
	// cannot be rolled back.
	ErrNoDownSQL = errors.New("database: migration has no down SQL")
)
