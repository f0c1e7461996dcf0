// Package model defines the core data structures used throughout antmaps.
//
// This package contains the following main types:
//   - SpecimenRecord: One raw row returned by the geographic specimen query
//   - ImageReference: The outcome of a single per-taxon image lookup
//   - Species: The final output entity handed to the presentation layer
//   - PhotoVariant: The AntWeb photo "shot type" requested for each taxon
//   - RunReport: A delivered pipeline run, used for reports and history
//
// Multiple packages (antweb, pipeline, loader, report, database) share these
// types, so they live in their own package to avoid import cycles. All types
// are plain values and serialize to JSON for reports and database storage.
package model
