// Package database provides SQLite connectivity for GridLink Core.
//
// The database holds the durable copy of the resource directory: one
// snapshot row per store, written by the persistence hub on every
// mutation and read back once at startup.
//
// This package manages:
//   - Database connection with WAL mode for concurrent access
//   - Schema migrations loaded from an fs.FS (embedded by the migrations package)
//   - Connection lifecycle and health checks
//
// Usage:
//
//	db, err := database.Open(database.Config{Path: cfg.Database.Path, WALMode: true})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// Migrations are additive-only: each YYYYMMDD_HHMMSS_name.up.sql should
// have a matching .down.sql for development rollbacks.
package database
