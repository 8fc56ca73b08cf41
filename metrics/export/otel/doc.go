// Package otel publishes goCred engine metrics through an OpenTelemetry Meter.
//
// One observable counter is registered per engine counter, and one observable
// gauge per histogram bucket. A single callback reads
// [goCred.Engine.MetricsSnapshot] on each collection. The caller owns the
// MeterProvider.
package otel
