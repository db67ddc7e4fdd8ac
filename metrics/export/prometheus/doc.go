// Package prometheus renders efficio engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an [efficio.Engine] and exposes an
// [http.Handler] for a /metrics route. Counter names are efficio_*_total;
// the single histogram is efficio_hash_latency_seconds, and audit drops are
// efficio_audit_dropped_total{kind="..."}.
//
// # What this package must NOT do
//
//   - Register metrics in a global Prometheus registry; callers mount the Handler.
//   - Mutate engine state.
package prometheus
