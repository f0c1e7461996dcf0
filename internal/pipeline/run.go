package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/model"
)

// Run holds the state of one pipeline execution. Steps read the fields
// produced by earlier steps and fill in their own.
type Run struct {
	// ID identifies the run in logs and history.
	ID string

	// Location is the display key of the query (named location or "lat,lon,radius").
	Location string

	// Query is the run's private copy of the caller's query.
	Query config.Query

	// Specimens is the raw result of the geo query.
	Specimens []model.SpecimenRecord

	// Taxa is the deduplicated, capped taxon list.
	Taxa []string

	// Images holds one slot per entry of Taxa. It is nil when the join failed.
	Images []model.ImageReference

	// Species is the assembled result.
	Species []model.Species

	// SpecimenQueryFailed is set when the geo query failed.
	SpecimenQueryFailed bool

	// LookupFailed is set when at least one image lookup failed, which
	// discards all lookups of the run.
	LookupFailed bool

	// PerformedSteps lists the steps that completed, in order.
	PerformedSteps []string

	StartedAt  time.Time
	FinishedAt time.Time
}

// NewRun creates a Run for a copy of q.
func NewRun(q config.Query, location string) *Run {
	if location == "" {
		location = q.LocationKey()
	}
	return &Run{
		ID:        uuid.NewString(),
		Location:  location,
		Query:     q.Copy(),
		StartedAt: time.Now(),
	}
}

// Failed reports whether an upstream failure emptied the result.
func (r *Run) Failed() bool {
	return r.SpecimenQueryFailed || r.LookupFailed
}

// Report converts the run into a report with the given status.
func (r *Run) Report(status model.RunStatus) *model.RunReport {
	species := make([]model.Species, len(r.Species))
	copy(species, r.Species)

	return &model.RunReport{
		ID:            r.ID,
		Location:      r.Location,
		Query:         r.Query.RunQuery(),
		Species:       species,
		SpecimenCount: len(r.Specimens),
		TaxonCount:    len(r.Taxa),
		Status:        status,
		StartedAt:     r.StartedAt,
		FinishedAt:    r.FinishedAt,
	}
}
