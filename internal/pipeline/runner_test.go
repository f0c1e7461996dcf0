package pipeline

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"testing"

	"github.com/jarcoal/httpmock"

	"github.com/nao1215/antmaps/internal/antweb"
	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/metrics"
	"github.com/nao1215/antmaps/internal/model"
)

func TestRunnerLoadSpecies(t *testing.T) {
	t.Parallel()

	t.Run("dedupes, looks up and filters", func(t *testing.T) {
		t.Parallel()

		rec := newCountingRecorder()
		src := &fakeSource{
			specimens: records("A", "B", "A", "C", "D"),
			images:    map[string]string{"A": "a.jpg", "C": "c.jpg"},
		}
		q := config.DefaultQuery()
		q.MaxSpecies = 3

		species, err := NewRunner(src, WithRecorder(rec)).LoadSpecies(context.Background(), q)
		if err != nil {
			t.Fatalf("LoadSpecies() error = %v", err)
		}

		want := []model.Species{model.NewSpecies("A", "a.jpg"), model.NewSpecies("C", "c.jpg")}
		if !reflect.DeepEqual(species, want) {
			t.Errorf("species = %v, want %v", species, want)
		}
		if n := len(src.lookups()); n != 3 {
			t.Errorf("lookups = %d, want 3", n)
		}
		if rec.runs[metrics.OutcomeDelivered] != 1 {
			t.Errorf("delivered runs = %d, want 1", rec.runs[metrics.OutcomeDelivered])
		}
		if rec.lookups[metrics.LookupFound] != 2 || rec.lookups[metrics.LookupNotFound] != 1 {
			t.Errorf("lookup metrics = %v", rec.lookups)
		}
	})

	t.Run("specimen failure yields empty result without lookups", func(t *testing.T) {
		t.Parallel()

		rec := newCountingRecorder()
		src := &fakeSource{specimenErr: errUpstream}

		species, err := NewRunner(src, WithRecorder(rec)).LoadSpecies(context.Background(), config.DefaultQuery())
		if err != nil {
			t.Fatalf("LoadSpecies() error = %v", err)
		}
		if len(species) != 0 {
			t.Errorf("species = %v, want empty", species)
		}
		if n := len(src.lookups()); n != 0 {
			t.Errorf("lookups = %d, want 0", n)
		}
		if rec.runs[metrics.OutcomeEmpty] != 1 {
			t.Errorf("empty runs = %d, want 1", rec.runs[metrics.OutcomeEmpty])
		}
	})

	t.Run("one failed lookup empties the whole result", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{
			specimens: records("A", "B", "C", "D"),
			images:    map[string]string{"A": "a", "B": "b", "C": "c", "D": "d"},
			failing:   map[string]bool{"C": true},
		}

		species, err := NewRunner(src).LoadSpecies(context.Background(), config.DefaultQuery())
		if err != nil {
			t.Fatalf("LoadSpecies() error = %v", err)
		}
		if len(species) != 0 {
			t.Errorf("species = %v, want empty", species)
		}
	})

	t.Run("max species zero issues no lookups", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{specimens: records("A", "B")}
		q := config.DefaultQuery()
		q.MaxSpecies = 0

		species, err := NewRunner(src).LoadSpecies(context.Background(), q)
		if err != nil {
			t.Fatalf("LoadSpecies() error = %v", err)
		}
		if len(species) != 0 {
			t.Errorf("species = %v, want empty", species)
		}
		if n := len(src.lookups()); n != 0 {
			t.Errorf("lookups = %d, want 0", n)
		}
	})

	t.Run("synthetic mode never touches the source", func(t *testing.T) {
		t.Parallel()

		src := &fakeSource{specimens: records("A")}
		q := config.DefaultQuery()
		q.UseSyntheticData = true
		q.MaxSpecies = 5

		species, err := NewRunner(src).LoadSpecies(context.Background(), q)
		if err != nil {
			t.Fatalf("LoadSpecies() error = %v", err)
		}
		if len(species) != 5 {
			t.Fatalf("len(species) = %d, want 5", len(species))
		}
		for i, s := range species {
			if s.Name != "antum falsum #"+string(rune('0'+i)) || s.HasImage() {
				t.Errorf("species[%d] = %+v", i, s)
			}
		}
		if src.specimenCalls != 0 || len(src.lookups()) != 0 {
			t.Error("synthetic run must not call the source")
		}
	})

	t.Run("cancelled context returns error and no species", func(t *testing.T) {
		t.Parallel()

		rec := newCountingRecorder()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		species, err := NewRunner(&fakeSource{specimens: records("A")}, WithRecorder(rec)).
			LoadSpecies(ctx, config.DefaultQuery())
		if !errors.Is(err, context.Canceled) {
			t.Errorf("LoadSpecies() error = %v, want context.Canceled", err)
		}
		if species != nil {
			t.Errorf("species = %v, want nil", species)
		}
		if rec.runs[metrics.OutcomeCancelled] != 1 {
			t.Errorf("cancelled runs = %d, want 1", rec.runs[metrics.OutcomeCancelled])
		}
	})
}

func TestRunnerWithAntWebClient(t *testing.T) {
	t.Parallel()

	const base = "https://antweb.test/v3"
	mt := httpmock.NewMockTransport()
	mt.RegisterResponder(http.MethodGet, base+"/geoSpecimens",
		httpmock.NewStringResponder(http.StatusOK,
			`{"specimens":[{"antwebTaxonName":"myrmicinaepheidole"},{"antwebTaxonName":"formicinaecamponotus"},{"antwebTaxonName":"myrmicinaepheidole"}]}`))
	mt.RegisterResponderWithQuery(http.MethodGet, base+"/taxaImages",
		map[string]string{"shotType": "h", "taxonName": "myrmicinaepheidole"},
		httpmock.NewStringResponder(http.StatusOK,
			`{"taxaImages":[{"taxonName":"myrmicinaepheidole","specimen":[{"images":[{"urls:":["p0","p1","p2","p3"]}]}]}]}`))
	mt.RegisterResponderWithQuery(http.MethodGet, base+"/taxaImages",
		map[string]string{"shotType": "h", "taxonName": "formicinaecamponotus"},
		httpmock.NewStringResponder(http.StatusOK, `{"taxaImages":[]}`))

	client := antweb.NewClient(&http.Client{Transport: mt}, antweb.WithBaseURL(base))
	species, err := NewRunner(client).LoadSpecies(context.Background(), config.DefaultQuery())
	if err != nil {
		t.Fatalf("LoadSpecies() error = %v", err)
	}

	want := []model.Species{model.NewSpecies("myrmicinaepheidole", "p2")}
	if !reflect.DeepEqual(species, want) {
		t.Errorf("species = %v, want %v", species, want)
	}
	if n := mt.GetTotalCallCount(); n != 3 {
		t.Errorf("HTTP calls = %d, want 3", n)
	}
}
