// Package database provides SQLite persistence for Lumen Core.
//
// This package manages:
//   - Opening the SQLite database with WAL mode and busy timeout
//   - Running embedded schema migrations in version order
//   - Connection lifecycle and health checks
//
// # Concurrency
//
// SQLite supports a single writer; the connection pool is capped at one
// connection. WAL mode allows concurrent readers during writes.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{Path: cfg.Database.Path})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
package database
