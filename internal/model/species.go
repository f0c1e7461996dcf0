package model

// SpecimenRecord is one row of the geographic specimen query.
// Only the taxon identifier is consumed; many specimens may share one taxon.
type SpecimenRecord struct {
	// TaxonName is the AntWeb taxon identifier, e.g. "myrmicinaecataulacus oberthueri".
	// It is trusted as-is and may be empty.
	TaxonName string `json:"taxonName"`
}

// ImageReference is the result of one per-taxon image lookup.
// A reference without a URL means the lookup succeeded but no image exists.
type ImageReference struct {
	// TaxonName is the taxon the lookup answered for.
	TaxonName string `json:"taxonName"`

	// URL is the selected image URL, or empty when no image was found.
	URL string `json:"url,omitempty"`
}

// Found reports whether the lookup resolved an image URL.
func (r ImageReference) Found() bool {
	return r.URL != ""
}

// Species is the final output entity of a pipeline run.
// It is an immutable value; two Species are equal when both name and URL match.
type Species struct {
	// Name is the taxon identifier of the species.
	Name string `json:"name"`

	// ImageURL is the representative image, or empty if none is available.
	ImageURL string `json:"imageUrl,omitempty"`
}

// NewSpecies creates a Species value.
func NewSpecies(name, imageURL string) Species {
	return Species{Name: name, ImageURL: imageURL}
}

// HasImage reports whether the species carries an image URL.
func (s Species) HasImage() bool {
	return s.ImageURL != ""
}
