// Package status serves a read-only HTTP view of a scan session.
//
// Routes:
//
//	GET /healthz   session health and counters (JSON)
//	GET /livez     liveness probe
//	GET /progress  the last progress notification (JSON, 204 before the first)
//	GET /version   build information (JSON)
//	GET /metrics   Prometheus metrics
package status
