// Package database provides PostgreSQL connectivity for FleetSim Core.
//
// The reference store lives in PostgreSQL: configuration documents are held
// as JSONB and re-read in full on every cache refresh. This package owns the
// connection pool, health checks, and LISTEN/NOTIFY listener construction;
// query logic lives with the packages that own the data (see refcache).
//
// # Usage
//
//	db, err := database.Open(ctx, cfg.Store)
//	if err != nil {
//	    // store unreachable at boot is fatal
//	}
//	defer db.Close()
package database
