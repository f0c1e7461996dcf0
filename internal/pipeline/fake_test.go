package pipeline

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/model"
)

var errUpstream = errors.New("upstream unavailable")

// fakeSource is an in-memory Source.
type fakeSource struct {
	specimens   []model.SpecimenRecord
	specimenErr error

	// images maps a taxon to its URL; a missing taxon is "not found".
	images map[string]string
	// failing taxa return errUpstream.
	failing map[string]bool
	// delays per taxon, to control completion order.
	delays map[string]time.Duration

	mu              sync.Mutex
	specimenCalls   int
	lookedUp        []string
	lookupVariants  []model.PhotoVariant
	cancelledLookup int
}

func (f *fakeSource) Specimens(ctx context.Context, _ config.Query) ([]model.SpecimenRecord, error) {
	f.mu.Lock()
	f.specimenCalls++
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.specimenErr != nil {
		return nil, f.specimenErr
	}
	return f.specimens, nil
}

func (f *fakeSource) TaxonImage(ctx context.Context, taxon string, variant model.PhotoVariant) (model.ImageReference, error) {
	f.mu.Lock()
	f.lookedUp = append(f.lookedUp, taxon)
	f.lookupVariants = append(f.lookupVariants, variant)
	f.mu.Unlock()

	if d := f.delays[taxon]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			f.mu.Lock()
			f.cancelledLookup++
			f.mu.Unlock()
			return model.ImageReference{}, ctx.Err()
		}
	}
	if f.failing[taxon] {
		return model.ImageReference{}, errUpstream
	}
	return model.ImageReference{TaxonName: taxon, URL: f.images[taxon]}, nil
}

func (f *fakeSource) lookups() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.lookedUp))
	copy(out, f.lookedUp)
	return out
}

func records(names ...string) []model.SpecimenRecord {
	out := make([]model.SpecimenRecord, len(names))
	for i, n := range names {
		out[i] = model.SpecimenRecord{TaxonName: n}
	}
	return out
}

// countingRecorder counts metric events.
type countingRecorder struct {
	mu               sync.Mutex
	runs             map[string]int
	lookups          map[string]int
	specimenFailures int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{runs: map[string]int{}, lookups: map[string]int{}}
}

func (c *countingRecorder) RecordRun(outcome string, _ float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.runs[outcome]++
}

func (c *countingRecorder) RecordLookup(result string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lookups[result]++
}

func (c *countingRecorder) RecordSpecimenQueryFailure() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.specimenFailures++
}
