// Package metrics exposes the counters, gauges and histograms of a giggle
// listener in Prometheus text format.
//
// Every listener owns one ListenerMetrics backed by its own
// VictoriaMetrics metrics.Set, so several listeners in one process (as in the
// tests) never collide on metric names. The status HTTP server renders the set
// together with the process metrics.
package metrics
