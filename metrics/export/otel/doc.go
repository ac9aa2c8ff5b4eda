// Package otel mirrors Engine counters into OpenTelemetry observable instruments.
//
// [NewExporter] creates one Int64ObservableCounter per counter and, for the
// ValidateToken latency histogram, a bucket gauge carrying an "le" attribute plus a
// count gauge. A single callback reads [shieldforge.Engine.MetricsSnapshot] on each
// collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate engine state.
package otel
