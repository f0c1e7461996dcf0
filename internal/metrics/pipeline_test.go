package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPipelineMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := NewPipelineMetrics(registry)
	if err != nil {
		t.Fatalf("NewPipelineMetrics() error = %v", err)
	}

	m.RecordRun(OutcomeDelivered, 0.2)
	m.RecordRun(OutcomeDelivered, 0.4)
	m.RecordRun(OutcomeEmpty, 0.1)
	m.RecordLookup(LookupFound)
	m.RecordLookup(LookupFound)
	m.RecordLookup(LookupNotFound)
	m.RecordSpecimenQueryFailure()

	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues(OutcomeDelivered)); got != 2 {
		t.Errorf("runs_total{delivered} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.runsTotal.WithLabelValues(OutcomeEmpty)); got != 1 {
		t.Errorf("runs_total{empty} = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.imageLookupsTotal.WithLabelValues(LookupFound)); got != 2 {
		t.Errorf("image_lookups_total{found} = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.specimenQueryFailTotal); got != 1 {
		t.Errorf("specimen_query_failures_total = %v, want 1", got)
	}

	expected := `
# HELP antmaps_image_lookups_total Total number of taxon image lookups by result
# TYPE antmaps_image_lookups_total counter
antmaps_image_lookups_total{result="found"} 2
antmaps_image_lookups_total{result="not_found"} 1
`
	if err := testutil.GatherAndCompare(registry, strings.NewReader(expected), "antmaps_image_lookups_total"); err != nil {
		t.Errorf("GatherAndCompare() error = %v", err)
	}

	if n := testutil.CollectAndCount(m, "antmaps_run_duration_seconds"); n != 2 {
		t.Errorf("run_duration_seconds series = %d, want 2", n)
	}
}

func TestNewPipelineMetricsDuplicateRegistration(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	if _, err := NewPipelineMetrics(registry); err != nil {
		t.Fatalf("first registration error = %v", err)
	}
	if _, err := NewPipelineMetrics(registry); err == nil {
		t.Error("second registration on the same registry should fail")
	}
}

func TestNopRecorder(t *testing.T) {
	t.Parallel()

	var r Recorder = NopRecorder{}
	r.RecordRun(OutcomeCancelled, 1)
	r.RecordLookup(LookupFailure)
	r.RecordSpecimenQueryFailure()
}
