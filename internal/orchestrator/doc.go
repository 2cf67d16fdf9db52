// Package orchestrator drives the periodic synthesis cycle.
//
// Run loads reference data once, synchronously, then ticks on a fixed
// interval. Each tick snapshots the reference cache, generates a reading
// batch, serializes it, and enqueues it for delivery. Ticks are decoupled
// from delivery and from refresh: a slow broker or a mid-tick cache swap
// never stalls the cadence.
//
// Per-tick errors and panics are contained at the tick boundary. Only the
// initial reference load is fatal.
package orchestrator
