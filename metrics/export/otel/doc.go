// Package otel publishes forgeauth metrics through an OpenTelemetry Meter.
//
// [New] registers one Int64ObservableCounter per counter and one
// Int64ObservableGauge per cumulative histogram bucket, fed by a single
// callback that reads the engine snapshot on each collection. The caller
// owns the MeterProvider.
package otel
