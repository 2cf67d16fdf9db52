// Package refcache mirrors remote reference configuration in memory.
//
// The reference store (PostgreSQL, JSONB collections) holds the fleet's
// sites, devices, and device types. This package keeps an in-memory snapshot
// of both collections and keeps it fresh from three directions:
//
//   - a poll ticker (default hourly)
//   - LISTEN/NOTIFY change notifications on the device-type collection
//   - one mandatory synchronous refresh before the first generation tick
//
// # Snapshot semantics
//
// A Snapshot is an immutable pair of lookup maps built fresh on every
// refresh and swapped in atomically. Readers never block on refreshes and a
// held snapshot never mixes data from two refreshes. A failed refresh keeps
// the previous snapshot in place (fail-soft).
//
// # Identifier handling
//
// Store documents encode identifiers inconsistently; decoding resolves them
// through the ident package and snapshot construction drops any record whose
// key resolved to ident.Invalid, logging rather than failing the refresh.
//
// # Components
//
//   - Cache: snapshot holder plus the serial refresh loop (cache.go)
//   - PostgresStore: full-collection fetches with JSONB unwinding (repository.go)
//   - Watcher: LISTEN/NOTIFY consumer posting invalidations (watcher.go)
package refcache
