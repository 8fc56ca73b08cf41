// Package prometheus renders goCred engine metrics in the Prometheus text
// exposition format.
//
// Counters are named gocred_*_total; the only histogram is
// gocred_validate_latency_seconds. Nothing is registered globally: callers
// mount [PrometheusExporter.Handler] themselves.
package prometheus
