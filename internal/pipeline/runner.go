package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/metrics"
	"github.com/nao1215/antmaps/internal/model"
)

// Executor executes a prepared run.
type Executor interface {
	Execute(ctx context.Context, run *Run) error
}

// Runner executes species runs against a Source.
type Runner struct {
	source   Source
	recorder metrics.Recorder
	logger   *slog.Logger
}

var _ Executor = (*Runner)(nil)

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRecorder sets the metrics recorder.
func WithRecorder(recorder metrics.Recorder) RunnerOption {
	return func(r *Runner) {
		if recorder != nil {
			r.recorder = recorder
		}
	}
}

// WithRunnerLogger sets a custom logger for the runner and its steps.
func WithRunnerLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// NewRunner creates a Runner. source may be nil if only synthetic queries are run.
func NewRunner(source Source, opts ...RunnerOption) *Runner {
	r := &Runner{
		source:   source,
		recorder: metrics.NopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewPipeline builds the four-step species pipeline.
func (r *Runner) NewPipeline() *Pipeline {
	stepOpts := []StepOption{WithStepRecorder(r.recorder), WithStepLogger(r.logger)}

	p := New(WithLogger(r.logger))
	p.AddSteps(
		NewSpecimenQueryStep(r.source, stepOpts...),
		NewDedupeStep(),
		NewImageLookupStep(r.source, stepOpts...),
		NewAssembleStep(),
	)
	return p
}

// LoadSpecies runs the pipeline for q and returns the assembled species.
// Upstream failures yield an empty list; the error is non-nil only when ctx
// was cancelled.
func (r *Runner) LoadSpecies(ctx context.Context, q config.Query) ([]model.Species, error) {
	run := NewRun(q, "")
	if err := r.Execute(ctx, run); err != nil {
		return nil, err
	}
	return run.Species, nil
}

// Execute runs run to completion. Synthetic queries never touch the network.
func (r *Runner) Execute(ctx context.Context, run *Run) error {
	var err error
	if run.Query.UseSyntheticData {
		err = ctx.Err()
		if err == nil {
			run.Species = SyntheticSpecies(run.Query.MaxSpecies)
		}
	} else {
		err = r.NewPipeline().Execute(ctx, run)
	}
	run.FinishedAt = time.Now()

	outcome := metrics.OutcomeDelivered
	switch {
	case err != nil:
		outcome = metrics.OutcomeCancelled
		run.Species = nil
	case len(run.Species) == 0:
		outcome = metrics.OutcomeEmpty
	}
	r.recorder.RecordRun(outcome, run.FinishedAt.Sub(run.StartedAt).Seconds())

	if err != nil {
		r.logger.Debug("run cancelled", "run", run.ID, "location", run.Location)
		return err
	}

	r.logger.Info("run finished",
		"run", run.ID,
		"location", run.Location,
		"specimens", len(run.Specimens),
		"taxa", len(run.Taxa),
		"species", len(run.Species),
		"synthetic", run.Query.UseSyntheticData,
	)
	return nil
}
