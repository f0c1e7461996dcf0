package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "antmaps"

// PipelineMetrics contains Prometheus metrics for species pipeline runs.
type PipelineMetrics struct {
	runsTotal              *prometheus.CounterVec
	runDuration            *prometheus.HistogramVec
	imageLookupsTotal      *prometheus.CounterVec
	specimenQueryFailTotal prometheus.Counter
}

var _ Recorder = (*PipelineMetrics)(nil)

// NewPipelineMetrics creates pipeline metrics and registers them with registry.
func NewPipelineMetrics(registry prometheus.Registerer) (*PipelineMetrics, error) {
	m := &PipelineMetrics{
		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_total",
				Help:      "Total number of pipeline runs by outcome",
			},
			[]string{"outcome"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "run_duration_seconds",
				Help:      "Time taken by a pipeline run",
				// 50ms .. ~100s
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
			},
			[]string{"outcome"},
		),
		imageLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "image_lookups_total",
				Help:      "Total number of taxon image lookups by result",
			},
			[]string{"result"},
		),
		specimenQueryFailTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "specimen_query_failures_total",
				Help:      "Total number of failed specimen queries",
			},
		),
	}

	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *PipelineMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.runsTotal.Describe(ch)
	m.runDuration.Describe(ch)
	m.imageLookupsTotal.Describe(ch)
	m.specimenQueryFailTotal.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *PipelineMetrics) Collect(ch chan<- prometheus.Metric) {
	m.runsTotal.Collect(ch)
	m.runDuration.Collect(ch)
	m.imageLookupsTotal.Collect(ch)
	m.specimenQueryFailTotal.Collect(ch)
}

// RecordRun implements Recorder.
func (m *PipelineMetrics) RecordRun(outcome string, seconds float64) {
	m.runsTotal.WithLabelValues(outcome).Inc()
	m.runDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordLookup implements Recorder.
func (m *PipelineMetrics) RecordLookup(result string) {
	m.imageLookupsTotal.WithLabelValues(result).Inc()
}

// RecordSpecimenQueryFailure implements Recorder.
func (m *PipelineMetrics) RecordSpecimenQueryFailure() {
	m.specimenQueryFailTotal.Inc()
}
