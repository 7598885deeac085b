// Package otel publishes goAuthClient metrics through an OpenTelemetry meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per latency bucket. A single callback reads
// [goAuthClient.Manager.MetricsSnapshot] on each collection cycle.
//
// The caller owns the MeterProvider.
package otel
