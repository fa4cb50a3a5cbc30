// Package otel publishes authsession counters through an OpenTelemetry Meter.
//
// [NewExporter] registers one Int64ObservableCounter per counter and, for the
// provider latency histogram, a cumulative bucket gauge labelled with "le"
// plus count and sum gauges. A single callback reads
// [authsession.Client.MetricsSnapshot] on each collection.
//
// # What this package must NOT do
//
//   - Own the MeterProvider. Callers supply the Meter.
//   - Mutate client state.
package otel
