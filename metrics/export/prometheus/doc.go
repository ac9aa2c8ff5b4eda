// Package prometheus exposes Engine counters as a prometheus.Collector.
//
// [NewExporter] reads [shieldforge.Engine.MetricsSnapshot] on each scrape. Counter
// names are prefixed shieldforge_ and suffixed _total; the single histogram is
// shieldforge_validate_latency_seconds.
//
// # What this package must NOT do
//
//   - Register metrics in the global Prometheus registry. Register the Exporter
//     yourself or mount [Exporter.Handler].
//   - Mutate engine state.
package prometheus
