// Package metric provides Prometheus instrumentation for Can-Hax runs.
//
// A Registry owns a private prometheus.Registry with the Can-Hax metrics
// and the Go runtime collectors. Components receive the *Metrics value and
// update it directly; a nil *Metrics is valid and records nothing, so
// callers never need to guard for metrics being disabled.
//
// The Server exposes the registry over HTTP at /metrics for scraping during
// long fuzz runs:
//
//	reg := metric.NewRegistry()
//	srv := metric.NewServer(":9090", "", reg)
//	go srv.Start()
//	defer srv.Stop()
package metric
