// Package influxdb provides the optional readings archive for FleetSim Core.
//
// When enabled, every generated reading is also written to an InfluxDB v2
// bucket via the non-blocking batched write API. The archive is strictly
// best-effort: it is disabled by default, connection failure at startup is
// surfaced but tolerable, and write errors arrive asynchronously through an
// error callback. Publishing to the broker never waits on the archive.
package influxdb
