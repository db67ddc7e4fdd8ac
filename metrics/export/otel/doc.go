// Package otel exposes efficio engine metrics through OpenTelemetry.
//
// [NewOTelExporter] registers an Int64ObservableCounter per engine counter,
// cumulative bucket, count and sum gauges for the hash latency histogram and
// an audit drop counter labelled by event kind. One callback reads
// [efficio.Engine.MetricsSnapshot] on each collection cycle.
//
// # What this package must NOT do
//
//   - Configure a MeterProvider or exporter pipeline; callers pass a Meter.
//   - Mutate engine state.
package otel
