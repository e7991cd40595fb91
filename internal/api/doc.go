// Package api hosts the HTTP server, middleware, and REST handlers for operator
// access. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - POST /v1/sync to start a discovered-logs sync in the background.
//   - GET /v1/status, /v1/entries and /v1/logs/discovered for reporting.
package api
