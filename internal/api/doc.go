// Package api hosts the operator HTTP server that runs alongside long
// commands. Notable routes:
//   - GET /healthz and /readyz for probes.
//   - GET /metrics for Prometheus scraping.
//   - GET /status for a snapshot of the transcription status map.
//   - GET /v1/items, /v1/items/{id}, and /v1/collections for read-only
//     catalog lookups when a store is attached.
package api
