package pipeline

import (
	"context"
	"log/slog"
	"time"
)

// Step is one stage of the species pipeline.
type Step interface {
	// Do executes the step against run. Upstream failures are recorded in
	// run and reported as nil; a non-nil error stops the pipeline.
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string
}

// Pipeline executes steps in order.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs all steps in sequence. Cancellation is checked before each
// step; steps abort their own in-flight work through ctx.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Debug("pipeline cancelled before step",
				"step", step.Name(),
				"run", run.ID,
				"completed", run.PerformedSteps,
			)
			return err
		}

		start := time.Now()
		if err := step.Do(ctx, run); err != nil {
			p.logger.Debug("step aborted",
				"step", step.Name(),
				"run", run.ID,
				"error", err,
			)
			return err
		}

		p.logger.Debug("step finished",
			"step", step.Name(),
			"run", run.ID,
			"location", run.Location,
			"specimens", len(run.Specimens),
			"taxa", len(run.Taxa),
			"elapsed", time.Since(start),
		)
		run.PerformedSteps = append(run.PerformedSteps, step.Name())
	}

	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
