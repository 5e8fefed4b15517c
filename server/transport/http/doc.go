// Package http implements the HTTP status endpoint of a giggle server.
//
// Routes:
//
//   - GET /metrics: listener metrics and process metrics in Prometheus text
//     format.
//
//   - GET /status: JSON snapshot of the listener (state, live connections,
//     admission counters) together with the block pool and worker pool
//     statistics. With ?connections=true the tracked connections are included.
//
//   - GET /connections: JSON list of the tracked connections.
//
// With debug logging enabled every request is logged with its status code and
// duration.
package http
