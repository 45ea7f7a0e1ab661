// Package observability provides the OpenTelemetry metrics extension for
// spool. The MetricsExtension implements lifecycle hooks to record
// system-wide counters for job submission, printing, completion, failure,
// retry, cancellation, batching, printer status changes and queue passes.
//
// For per-delivery tracing and metrics, see the middleware package:
// middleware.Tracing() and middleware.Metrics().
package observability
