// Package ident provides the canonical identifier type for FleetSim Core.
//
// The reference store encodes identifiers inconsistently: some documents use
// plain strings, some a structured {"uuid": ...} object, and some a
// binary-tagged {"$bytes": ...} object. This package normalises all of them
// into a single comparable ID suitable for use as a map key.
//
// Resolution is fail-soft: an unresolvable encoding yields ident.Invalid
// rather than an error, and snapshot construction filters Invalid-keyed
// records out.
package ident
