package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/metrics"
	"github.com/nao1215/antmaps/internal/model"
)

// Step names.
const (
	StepSpecimenQuery = "specimen_query"
	StepDedupe        = "dedupe"
	StepImageLookup   = "image_lookup"
	StepAssemble      = "assemble"
)

// SyntheticNameFormat names the placeholder species of synthetic runs.
const SyntheticNameFormat = "antum falsum #%d"

// SpecimenFetcher fetches the specimens around a query's coordinate.
type SpecimenFetcher interface {
	Specimens(ctx context.Context, q config.Query) ([]model.SpecimenRecord, error)
}

// ImageFetcher looks up the representative image of one taxon.
type ImageFetcher interface {
	TaxonImage(ctx context.Context, taxonName string, variant model.PhotoVariant) (model.ImageReference, error)
}

// Source is the upstream API used by the pipeline. *antweb.Client implements it.
type Source interface {
	SpecimenFetcher
	ImageFetcher
}

// ExtractTaxonNames returns the first maxSpecies distinct taxon identifiers
// of records in first-seen order. Comparison is exact; empty identifiers
// are kept like any other value.
func ExtractTaxonNames(records []model.SpecimenRecord, maxSpecies int) []string {
	if maxSpecies <= 0 {
		return []string{}
	}

	seen := make(map[string]struct{}, min(len(records), maxSpecies))
	taxa := make([]string, 0, min(len(records), maxSpecies))
	for _, r := range records {
		if len(taxa) == maxSpecies {
			break
		}
		if _, ok := seen[r.TaxonName]; ok {
			continue
		}
		seen[r.TaxonName] = struct{}{}
		taxa = append(taxa, r.TaxonName)
	}
	return taxa
}

// AssembleSpecies keeps the taxa whose image reference carries a URL,
// preserving taxon order. refs[i] is the lookup result of taxa[i].
func AssembleSpecies(taxa []string, refs []model.ImageReference) []model.Species {
	species := make([]model.Species, 0, len(refs))
	for i, ref := range refs {
		if i >= len(taxa) {
			break
		}
		if !ref.Found() {
			continue
		}
		species = append(species, model.NewSpecies(taxa[i], ref.URL))
	}
	return species
}

// SyntheticSpecies returns n placeholder species without images.
func SyntheticSpecies(n int) []model.Species {
	species := make([]model.Species, 0, max(n, 0))
	for i := range max(n, 0) {
		species = append(species, model.NewSpecies(fmt.Sprintf(SyntheticNameFormat, i), ""))
	}
	return species
}

// SpecimenQueryStep issues the geographic specimen query.
type SpecimenQueryStep struct {
	fetcher  SpecimenFetcher
	recorder metrics.Recorder
	logger   *slog.Logger
}

// StepOption configures the network steps.
type StepOption func(*stepSettings)

type stepSettings struct {
	recorder metrics.Recorder
	logger   *slog.Logger
}

// WithStepRecorder sets the metrics recorder of a step.
func WithStepRecorder(recorder metrics.Recorder) StepOption {
	return func(s *stepSettings) {
		if recorder != nil {
			s.recorder = recorder
		}
	}
}

// WithStepLogger sets a custom logger for a step.
func WithStepLogger(logger *slog.Logger) StepOption {
	return func(s *stepSettings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func applyStepOptions(opts []StepOption) stepSettings {
	s := stepSettings{
		recorder: metrics.NopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// NewSpecimenQueryStep creates a specimen query step.
func NewSpecimenQueryStep(fetcher SpecimenFetcher, opts ...StepOption) *SpecimenQueryStep {
	s := applyStepOptions(opts)
	return &SpecimenQueryStep{fetcher: fetcher, recorder: s.recorder, logger: s.logger}
}

// Name returns the step name.
func (s *SpecimenQueryStep) Name() string {
	return StepSpecimenQuery
}

// Do executes the specimen query. A failed query leaves run.Specimens empty.
func (s *SpecimenQueryStep) Do(ctx context.Context, run *Run) error {
	records, err := s.fetcher.Specimens(ctx, run.Query)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.recorder.RecordSpecimenQueryFailure()
		s.logger.Warn("specimen query failed",
			"run", run.ID,
			"location", run.Location,
			"error", err,
		)
		run.SpecimenQueryFailed = true
		run.Specimens = nil
		return nil
	}

	run.Specimens = records
	return nil
}

// DedupeStep reduces the specimens to the capped list of distinct taxa.
type DedupeStep struct{}

// NewDedupeStep creates a dedupe step.
func NewDedupeStep() *DedupeStep {
	return &DedupeStep{}
}

// Name returns the step name.
func (s *DedupeStep) Name() string {
	return StepDedupe
}

// Do fills run.Taxa.
func (s *DedupeStep) Do(_ context.Context, run *Run) error {
	run.Taxa = ExtractTaxonNames(run.Specimens, run.Query.MaxSpecies)
	return nil
}

// ImageLookupStep looks up every taxon's image concurrently. The lookups
// are joined all-or-nothing: if any of them fails, run.Images stays nil.
type ImageLookupStep struct {
	fetcher  ImageFetcher
	recorder metrics.Recorder
	logger   *slog.Logger
}

// NewImageLookupStep creates an image lookup step.
func NewImageLookupStep(fetcher ImageFetcher, opts ...StepOption) *ImageLookupStep {
	s := applyStepOptions(opts)
	return &ImageLookupStep{fetcher: fetcher, recorder: s.recorder, logger: s.logger}
}

// Name returns the step name.
func (s *ImageLookupStep) Name() string {
	return StepImageLookup
}

// Do issues one lookup per taxon and writes each result into the slot of
// the taxon's index, so the order of run.Images never depends on which
// request finishes first.
func (s *ImageLookupStep) Do(ctx context.Context, run *Run) error {
	if len(run.Taxa) == 0 {
		run.Images = []model.ImageReference{}
		return nil
	}

	slots := make([]model.ImageReference, len(run.Taxa))
	variant := run.Query.PhotoVariant

	// the first failure cancels the remaining lookups
	g, gctx := errgroup.WithContext(ctx)
	for i, taxon := range run.Taxa {
		g.Go(func() error {
			ref, err := s.fetcher.TaxonImage(gctx, taxon, variant)
			if err != nil {
				s.recorder.RecordLookup(metrics.LookupFailure)
				return fmt.Errorf("image lookup for %q: %w", taxon, err)
			}
			if ref.Found() {
				s.recorder.RecordLookup(metrics.LookupFound)
			} else {
				s.recorder.RecordLookup(metrics.LookupNotFound)
			}
			slots[i] = ref
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.Warn("image lookups failed",
			"run", run.ID,
			"location", run.Location,
			"taxa", len(run.Taxa),
			"error", err,
		)
		run.LookupFailed = true
		run.Images = nil
		return nil
	}

	run.Images = slots
	return nil
}

// AssembleStep builds the species list from taxa and image slots.
type AssembleStep struct{}

// NewAssembleStep creates an assemble step.
func NewAssembleStep() *AssembleStep {
	return &AssembleStep{}
}

// Name returns the step name.
func (s *AssembleStep) Name() string {
	return StepAssemble
}

// Do fills run.Species.
func (s *AssembleStep) Do(_ context.Context, run *Run) error {
	run.Species = AssembleSpecies(run.Taxa, run.Images)
	return nil
}
