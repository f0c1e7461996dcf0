// Package metrics provides Prometheus metrics for the species pipeline.
//
// Components depend on the small Recorder interface; PipelineMetrics is the
// Prometheus-backed implementation and NopRecorder discards everything.
package metrics
