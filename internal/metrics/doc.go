// Package metrics defines the observability hooks for build, publish and
// queue instrumentation.
//
// Components receive a Recorder through dependency injection and never talk
// to a metrics backend directly. NoopRecorder is the default and makes every
// hook free, so callers do not guard call sites with nil checks:
//
//	run := pipeline.NewRunner(cfg, deps, metrics.NoopRecorder{})
//
// When the admin server is enabled the daemon swaps in a PrometheusRecorder
// backed by a private Registry, and the same hooks start feeding
// /metrics. Nothing outside this package changes between the two modes.
package metrics
