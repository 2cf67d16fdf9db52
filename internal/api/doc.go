// Package api provides the ops HTTP API.
//
// Two endpoints are served: GET /healthz for liveness probes and
// GET /api/v1/status for a point-in-time view of cache freshness,
// pipeline counters, and broker connectivity. The API is an internal
// operational surface; there is no authentication.
package api
