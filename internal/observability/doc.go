// Package observability wires Prometheus metrics and OpenTelemetry tracing
// for the pointcountd service.
package observability
