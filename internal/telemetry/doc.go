// Package telemetry synthesizes device readings from reference data.
//
// The Generator walks a reference snapshot and produces one reading per
// eligible device, sampling uniformly within the device type's value range.
// Sites are processed concurrently; the resulting batch is unordered.
//
// Readings serialize to the wire format consumed downstream: values are
// rendered as strings with exactly two decimal digits and timestamps use
// the MM-DD-YYYY/HH:MM:SS layout in UTC.
//
// The package performs no I/O. Persistence and publishing belong to the
// publisher and orchestrator packages.
package telemetry
