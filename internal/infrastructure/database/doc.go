// Package database provides the SQLite persistence layer for indiweb-core.
//
// It wraps database/sql with sensible SQLite defaults (WAL journaling,
// busy timeout, foreign keys on, single writer connection) and applies
// embedded schema migrations at startup.
//
// # Usage
//
//	db, err := database.Open(ctx, database.Config{
//	    Path:        cfg.Database.Path,
//	    WALMode:     cfg.Database.WALMode,
//	    BusyTimeout: cfg.Database.BusyTimeout,
//	})
//	if err != nil {
//	    return err
//	}
//	defer db.Close()
//
//	if err := db.Migrate(ctx); err != nil {
//	    return err
//	}
//
// # Migrations
//
// Migration files live in the top-level migrations/ directory and are
// embedded into the binary. Filenames follow
// YYYYMMDD_HHMMSS_description.up.sql (and .down.sql for rollback).
// Each migration runs in its own transaction.
package database
