// Package otel binds authcore counters and histograms to an OpenTelemetry meter.
//
// Each engine counter becomes an Int64ObservableCounter. Each latency histogram
// becomes a "<name>_bucket" gauge carrying an "le" attribute per bound, plus a
// "<name>_count" gauge. One callback reads [authcore.Engine.MetricsSnapshot] per
// collection cycle. The caller owns the MeterProvider.
package otel
