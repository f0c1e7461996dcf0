package model

import "time"

// RunStatus describes how a pipeline run ended.
type RunStatus string

const (
	// RunStatusDelivered means the assembled list (possibly empty) was handed to the caller.
	RunStatusDelivered RunStatus = "delivered"

	// RunStatusCancelled means the run was torn down before delivery.
	RunStatusCancelled RunStatus = "cancelled"
)

// RunQuery is the serializable snapshot of the query a run was started with.
// It mirrors config.Query without importing it, so model stays a leaf package.
type RunQuery struct {
	Latitude         float64      `json:"latitude"`
	Longitude        float64      `json:"longitude"`
	RadiusKm         int          `json:"radiusKm"`
	MaxSpecies       int          `json:"maxSpecies"`
	PhotoVariant     PhotoVariant `json:"photoVariant"`
	UseSyntheticData bool         `json:"useSyntheticData"`
}

// RunReport is a delivered pipeline run together with its metadata.
type RunReport struct {
	// ID uniquely identifies the run.
	ID string `json:"id"`

	// Location is a human-readable key of the queried place. It is either a
	// named location from the config file or "lat,lon,radius".
	Location string `json:"location"`

	// Query is the query the run was started with.
	Query RunQuery `json:"query"`

	// Species is the ordered result list.
	Species []Species `json:"species"`

	// SpecimenCount is the number of raw specimen records returned by the geo query.
	SpecimenCount int `json:"specimenCount"`

	// TaxonCount is the number of unique taxa that were looked up.
	TaxonCount int `json:"taxonCount"`

	// Status tells whether the result was delivered or the run was cancelled.
	Status RunStatus `json:"status"`

	// StartedAt and FinishedAt bound the run.
	StartedAt  time.Time `json:"startedAt"`
	FinishedAt time.Time `json:"finishedAt"`
}

// Duration returns how long the run took.
func (r *RunReport) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ImageCount returns the number of species that carry an image URL.
func (r *RunReport) ImageCount() int {
	count := 0
	for _, s := range r.Species {
		if s.HasImage() {
			count++
		}
	}
	return count
}
