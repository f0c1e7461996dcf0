package config

import (
	"fmt"
	"strconv"

	"github.com/nao1215/antmaps/internal/model"
)

// Default query values. These apply to a zero-configured query and to every
// key missing from a transfer form.
const (
	// DefaultMaxSpecies caps the number of unique taxa looked up per run.
	DefaultMaxSpecies = 10

	// DefaultRadiusKm is the search radius around the coordinate.
	DefaultRadiusKm = 2

	// DefaultPhotoVariant is the photo shot type requested for every taxon.
	DefaultPhotoVariant = model.PhotoHead
)

// Transfer form keys.
const (
	KeyMaxSpecies  = "maxSpecies"
	KeyLatitude    = "latitude"
	KeyLongitude   = "longitude"
	KeyRadiusKm    = "radiusKm"
	KeyFakeResults = "fakeResults"
	KeyPhotoType   = "photoType"
)

// Query describes one species lookup around a coordinate.
// It only holds value fields, so assigning a Query copies it completely.
type Query struct {
	// Latitude and Longitude locate the search. The specimen query truncates
	// both to integers before sending them upstream.
	Latitude  float64 `yaml:"latitude" json:"latitude"`
	Longitude float64 `yaml:"longitude" json:"longitude"`

	// RadiusKm is the search radius in kilometers. Must be positive.
	RadiusKm int `yaml:"radiusKm" json:"radiusKm"`

	// MaxSpecies caps the number of unique taxa. Must be non-negative.
	MaxSpecies int `yaml:"maxSpecies" json:"maxSpecies"`

	// PhotoVariant is the photo shot type requested for each taxon.
	PhotoVariant model.PhotoVariant `yaml:"photo" json:"photoVariant"`

	// UseSyntheticData skips all network access and produces placeholder
	// species without images.
	UseSyntheticData bool `yaml:"fakeResults" json:"useSyntheticData"`
}

// DefaultQuery returns a Query populated with the documented defaults.
func DefaultQuery() Query {
	return Query{
		RadiusKm:     DefaultRadiusKm,
		MaxSpecies:   DefaultMaxSpecies,
		PhotoVariant: DefaultPhotoVariant,
	}
}

// Copy returns a fully independent copy of the query.
func (q Query) Copy() Query {
	return Query{
		Latitude:         q.Latitude,
		Longitude:        q.Longitude,
		RadiusKm:         q.RadiusKm,
		MaxSpecies:       q.MaxSpecies,
		PhotoVariant:     q.PhotoVariant,
		UseSyntheticData: q.UseSyntheticData,
	}
}

// Validate checks the query invariants. Out-of-range coordinates are passed
// through to the network layer untouched.
func (q Query) Validate() error {
	if q.RadiusKm <= 0 {
		return ErrInvalidRadius
	}
	if q.MaxSpecies < 0 {
		return ErrInvalidMaxSpecies
	}
	return nil
}

// LocationKey identifies the place a query searches, as the upstream API sees it:
// truncated latitude, truncated longitude and radius.
func (q Query) LocationKey() string {
	return fmt.Sprintf("%d,%d,%d", int(q.Latitude), int(q.Longitude), q.RadiusKm)
}

// RunQuery converts the query into its serializable model snapshot.
func (q Query) RunQuery() model.RunQuery {
	return model.RunQuery{
		Latitude:         q.Latitude,
		Longitude:        q.Longitude,
		RadiusKm:         q.RadiusKm,
		MaxSpecies:       q.MaxSpecies,
		PhotoVariant:     q.PhotoVariant,
		UseSyntheticData: q.UseSyntheticData,
	}
}

// String returns a compact description for logs.
func (q Query) String() string {
	return fmt.Sprintf("Query{lat=%g, lon=%g, radiusKm=%d, maxSpecies=%d, photo=%s, fake=%t}",
		q.Latitude, q.Longitude, q.RadiusKm, q.MaxSpecies, q.PhotoVariant, q.UseSyntheticData)
}

// TransferForm is the flat key/value form of a Query used when a query
// crosses a process or request boundary.
type TransferForm map[string]string

// ToTransferForm encodes every field of the query.
func (q Query) ToTransferForm() TransferForm {
	return TransferForm{
		KeyMaxSpecies:  strconv.Itoa(q.MaxSpecies),
		KeyLatitude:    strconv.FormatFloat(q.Latitude, 'g', -1, 64),
		KeyLongitude:   strconv.FormatFloat(q.Longitude, 'g', -1, 64),
		KeyRadiusKm:    strconv.Itoa(q.RadiusKm),
		KeyFakeResults: strconv.FormatBool(q.UseSyntheticData),
		KeyPhotoType:   q.PhotoVariant.Code(),
	}
}

// QueryFromTransferForm decodes a transfer form. Missing or empty keys fall
// back to the defaults of DefaultQuery; a present but malformed value is an
// error wrapping ErrInvalidTransferValue.
func QueryFromTransferForm(form TransferForm) (Query, error) {
	q := DefaultQuery()
	var err error

	if v, ok := lookup(form, KeyMaxSpecies); ok {
		if q.MaxSpecies, err = strconv.Atoi(v); err != nil {
			return Query{}, transferError(KeyMaxSpecies, v)
		}
	}
	if v, ok := lookup(form, KeyLatitude); ok {
		if q.Latitude, err = strconv.ParseFloat(v, 64); err != nil {
			return Query{}, transferError(KeyLatitude, v)
		}
	}
	if v, ok := lookup(form, KeyLongitude); ok {
		if q.Longitude, err = strconv.ParseFloat(v, 64); err != nil {
			return Query{}, transferError(KeyLongitude, v)
		}
	}
	if v, ok := lookup(form, KeyRadiusKm); ok {
		if q.RadiusKm, err = strconv.Atoi(v); err != nil {
			return Query{}, transferError(KeyRadiusKm, v)
		}
	}
	if v, ok := lookup(form, KeyFakeResults); ok {
		if q.UseSyntheticData, err = strconv.ParseBool(v); err != nil {
			return Query{}, transferError(KeyFakeResults, v)
		}
	}
	if v, ok := lookup(form, KeyPhotoType); ok {
		if q.PhotoVariant, err = model.ParsePhotoVariant(v); err != nil {
			return Query{}, transferError(KeyPhotoType, v)
		}
	}

	return q, nil
}

func lookup(form TransferForm, key string) (string, bool) {
	v, ok := form[key]
	if !ok || v == "" {
		return "", false
	}
	return v, true
}

func transferError(key, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidTransferValue, key, value)
}
