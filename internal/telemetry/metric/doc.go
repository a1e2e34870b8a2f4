// Package metric exposes VeriLog writer statistics in Prometheus format.
//
//   - prometheus.go: registry and /metrics handler
//   - collector.go: collector reading auditlog.Stats and log directory size
//
// Values are read at scrape time; the writer does not push updates.
package metric
