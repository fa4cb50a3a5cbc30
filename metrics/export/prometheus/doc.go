// Package prometheus exposes authsession counters as a client_golang
// [prometheus.Collector].
//
// [NewCollector] reads [authsession.Client.MetricsSnapshot] on every scrape.
// Counter names are authsession_*_total; the provider latency histogram is
// authsession_provider_latency_seconds. [Handler] serves a private registry
// holding only this collector.
//
// # What this package must NOT do
//
//   - Register with the global Prometheus registry. Callers choose the registry.
//   - Mutate client state.
package prometheus
