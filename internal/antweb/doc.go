// Package antweb implements the two AntWeb v3 API calls antmaps needs.
//
// Specimens issues the geographic specimen query:
//
//	GET {base}/geoSpecimens?coords=<lat>,<lon>&limit=100&radius=<km>&dateMin=...&dateMax=...
//
// TaxonImage issues one image lookup for one taxon:
//
//	GET {base}/taxaImages?shotType=<h|d|p|l>&taxonName=<escaped name>
//
// Transport errors, non-2xx statuses and unparsable bodies are reported as
// *FetchError values matching ErrFetchFailure. A taxon without images is not
// an error: TaxonImage returns an ImageReference without URL.
package antweb
