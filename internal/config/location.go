package config

import (
	"fmt"
	"sort"

	"github.com/nao1215/antmaps/internal/model"
)

// LocationConfig is a partial query. Only fields that are set override the
// values they are merged onto.
type LocationConfig struct {
	Latitude     *float64            `yaml:"latitude,omitempty"`
	Longitude    *float64            `yaml:"longitude,omitempty"`
	RadiusKm     *int                `yaml:"radiusKm,omitempty"`
	MaxSpecies   *int                `yaml:"maxSpecies,omitempty"`
	PhotoVariant *model.PhotoVariant `yaml:"photo,omitempty"`
	FakeResults  *bool               `yaml:"fakeResults,omitempty"`
}

// File represents the structure of the .antmaps configuration file.
type File struct {
	// Defaults applies to every location unless overridden there.
	Defaults LocationConfig `yaml:"defaults,omitempty"`

	// Locations maps a short name (e.g. "oist") to its query settings.
	Locations map[string]LocationConfig `yaml:"locations,omitempty"`
}

// NewFile returns an empty configuration file.
func NewFile() *File {
	return &File{Locations: make(map[string]LocationConfig)}
}

// apply overrides fields of q with the fields set in lc.
func (lc LocationConfig) apply(q Query) Query {
	if lc.Latitude != nil {
		q.Latitude = *lc.Latitude
	}
	if lc.Longitude != nil {
		q.Longitude = *lc.Longitude
	}
	if lc.RadiusKm != nil {
		q.RadiusKm = *lc.RadiusKm
	}
	if lc.MaxSpecies != nil {
		q.MaxSpecies = *lc.MaxSpecies
	}
	if lc.PhotoVariant != nil {
		q.PhotoVariant = *lc.PhotoVariant
	}
	if lc.FakeResults != nil {
		q.UseSyntheticData = *lc.FakeResults
	}
	return q
}

// DefaultQuery returns DefaultQuery() with the file defaults applied.
func (cf *File) DefaultQuery() Query {
	return cf.Defaults.apply(DefaultQuery())
}

// GetLocationQuery returns the query for a named location: built-in
// defaults, then file defaults, then the location's own settings.
func (cf *File) GetLocationQuery(name string) (Query, error) {
	lc, ok := cf.Locations[name]
	if !ok {
		return Query{}, fmt.Errorf("%w: %q", ErrUnknownLocation, name)
	}
	return lc.apply(cf.DefaultQuery()), nil
}

// LocationNames returns the configured location names in sorted order.
func (cf *File) LocationNames() []string {
	names := make([]string, 0, len(cf.Locations))
	for name := range cf.Locations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
