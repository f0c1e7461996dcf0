package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nao1215/antmaps/internal/config"
)

// DefaultConcurrency is the number of runs a BatchProcessor executes at once.
const DefaultConcurrency = 4

// Target is one query of a batch.
type Target struct {
	// Location is the display name of the query; empty means "lat,lon,radius".
	Location string

	// Query is the query to run.
	Query config.Query
}

// BatchProcessor runs several queries concurrently, one run per target.
type BatchProcessor struct {
	executor    Executor
	concurrency int
	logger      *slog.Logger

	results []*Run
	mu      sync.Mutex
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent runs.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a new BatchProcessor.
func NewBatchProcessor(executor Executor, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		executor:    executor,
		concurrency: DefaultConcurrency,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch runs all targets and returns their runs in target order.
// A target that never started because ctx was cancelled has a nil entry.
// The error is non-nil only if ctx was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, targets []Target) ([]*Run, error) {
	bp.logger.Info("starting batch",
		"locations", len(targets),
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	bp.mu.Lock()
	bp.results = make([]*Run, len(targets))
	bp.mu.Unlock()

	err := bp.ProcessBatchWithCallback(ctx, targets, func(run *Run, index int) {
		bp.mu.Lock()
		bp.results[index] = run
		bp.mu.Unlock()
	})

	bp.logger.Info("batch complete",
		"locations", len(targets),
		"elapsed", time.Since(startTime),
	)

	bp.mu.Lock()
	defer bp.mu.Unlock()
	return bp.results, err
}

// ProcessBatchWithCallback runs all targets and calls callback for every
// finished run with the target's index. The callback is invoked from worker
// goroutines and must be safe for concurrent use. Cancelled runs are not
// reported.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	targets []Target,
	callback func(run *Run, index int),
) error {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, target := range targets {
		g.Go(func() error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}

			run := NewRun(target.Query, target.Location)
			if err := bp.executor.Execute(ctx, run); err != nil {
				bp.logger.Warn("run cancelled",
					"location", run.Location,
					"error", err,
				)
				return err
			}

			callback(run, i)
			return nil
		})
	}

	return g.Wait()
}
