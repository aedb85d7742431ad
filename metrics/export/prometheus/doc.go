// Package prometheus renders authcore metrics in Prometheus text exposition format.
//
// [NewPrometheusExporter] accepts an [authcore.Engine] and exposes an [http.Handler].
// Counter names are prefixed authcore_ and end in _total; the single histogram is
// authcore_login_latency_seconds. Nothing is registered globally; callers mount the
// Handler where they want it.
package prometheus
