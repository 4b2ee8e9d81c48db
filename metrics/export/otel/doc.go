// Package otel exposes authgate counters as OpenTelemetry observable
// instruments. The caller owns the MeterProvider; this package only
// registers one callback that copies a snapshot on each collection.
package otel
