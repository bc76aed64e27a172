// Package metric provides Prometheus instrumentation for the realtime
// pipeline: frame and step counters and durations, ingestion and display
// accounting, a registry wrapping a private prometheus.Registry, and an
// HTTP server exposing /metrics and /health.
package metric
