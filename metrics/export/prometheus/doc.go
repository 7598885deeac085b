// Package prometheus renders goAuthClient metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps a [goAuthClient.Manager] and exposes an
// [http.Handler]. Counters are named goauthclient_*_total; the login and
// refresh latency histograms are goauthclient_*_latency_seconds.
//
// Nothing is registered in a global registry; callers mount the Handler.
package prometheus
