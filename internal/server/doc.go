// Package server exposes a cache.Service over HTTP for operators.
//
// Routes:
//
//	GET    /health/live            liveness
//	GET    /health/ready           readiness checks
//	GET    /metrics                Prometheus exposition
//	GET    /cache/stats            metrics snapshot and memory usage
//	GET    /cache/keys             tracked keys
//	GET    /cache/entries/{key}    raw value and metadata
//	DELETE /cache/entries/{key}    delete one entry
//	POST   /cache/invalidate       invalidate by tag, pattern or dependency
//	POST   /cache/clear            clear the backend
//	POST   /cache/metrics/reset    reset counters
//
// Keys in the path must be percent-encoded. Run serves a handler with graceful
// shutdown and startup/shutdown hooks.
package server
