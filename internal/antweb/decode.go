package antweb

import (
	"encoding/json"
	"io"

	"github.com/nao1215/antmaps/internal/model"
)

// preferredURLIndex is the position in an image's URL list that is used as
// the representative image. Shorter lists fall back to their last entry.
const preferredURLIndex = 2

// specimensResponse is the body of /geoSpecimens.
type specimensResponse struct {
	Specimens []struct {
		AntwebTaxonName string `json:"antwebTaxonName"`
	} `json:"specimens"`
}

// records converts the response to specimen records, preserving order.
func (r *specimensResponse) records() []model.SpecimenRecord {
	records := make([]model.SpecimenRecord, len(r.Specimens))
	for i, s := range r.Specimens {
		records[i] = model.SpecimenRecord{TaxonName: s.AntwebTaxonName}
	}
	return records
}

// taxaImagesResponse is the body of /taxaImages. Every level may be absent.
type taxaImagesResponse struct {
	TaxaImages []struct {
		TaxonName string `json:"taxonName"`
		Specimen  []struct {
			Images []struct {
				URLs []string `json:"urls"`
				// the historic API spelled the key with a trailing colon
				LegacyURLs []string `json:"urls:"`
			} `json:"images"`
		} `json:"specimen"`
	} `json:"taxaImages"`
}

// flatten walks taxaImages[0].specimen[0].images[0].urls and returns the echoed
// taxon name and the selected URL. ok is false when any level is absent or empty.
func (r *taxaImagesResponse) flatten() (taxonName, imageURL string, ok bool) {
	if len(r.TaxaImages) == 0 {
		return "", "", false
	}
	taxon := r.TaxaImages[0]
	if len(taxon.Specimen) == 0 || len(taxon.Specimen[0].Images) == 0 {
		return taxon.TaxonName, "", false
	}

	image := taxon.Specimen[0].Images[0]
	urls := image.URLs
	if len(urls) == 0 {
		urls = image.LegacyURLs
	}
	selected := SelectImageURL(urls)
	if selected == "" {
		return taxon.TaxonName, "", false
	}
	return taxon.TaxonName, selected, true
}

// SelectImageURL returns urls[min(2, len-1)], or "" for an empty list.
func SelectImageURL(urls []string) string {
	if len(urls) == 0 {
		return ""
	}
	return urls[min(preferredURLIndex, len(urls)-1)]
}

// decodeSpecimens parses a /geoSpecimens body.
func decodeSpecimens(r io.Reader) ([]model.SpecimenRecord, error) {
	var resp specimensResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return nil, err
	}
	return resp.records(), nil
}

// decodeTaxaImages parses a /taxaImages body into the flattened pair.
func decodeTaxaImages(r io.Reader) (taxonName, imageURL string, ok bool, err error) {
	var resp taxaImagesResponse
	if err := json.NewDecoder(r).Decode(&resp); err != nil {
		return "", "", false, err
	}
	taxonName, imageURL, ok = resp.flatten()
	return taxonName, imageURL, ok, nil
}
