// Package pipeline runs the species pipeline for one query:
//
//	specimen query -> taxon dedupe -> concurrent image lookups -> assemble
//
// Each stage is a Step operating on a shared *Run. Steps absorb upstream
// failures into the Run (a failed specimen query or image join yields an
// empty species list) and only return an error when the context is
// cancelled, which stops the Pipeline.
//
// Runner wires the steps over an AntWeb source and adds the synthetic-data
// shortcut. BatchProcessor runs several queries concurrently.
package pipeline
