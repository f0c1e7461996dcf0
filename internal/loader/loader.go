package loader

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/model"
	"github.com/nao1215/antmaps/internal/pipeline"
)

// ErrAlreadyRunning is returned by Start while a run is in flight.
var ErrAlreadyRunning = errors.New("loader: a run is already in progress")

// State is the lifecycle state of a Loader.
type State int

const (
	// StateIdle means no run was started yet.
	StateIdle State = iota
	// StateRunning means a run is in flight.
	StateRunning
	// StateDelivered means the last run handed its result to the callback.
	StateDelivered
	// StateCancelled means the last run was cancelled; its callback never fires.
	StateCancelled
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateDelivered:
		return "delivered"
	case StateCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Loader runs one pipeline at a time in its own goroutine.
type Loader struct {
	executor pipeline.Executor
	logger   *slog.Logger

	mu         sync.Mutex
	state      State
	generation uint64
	cancel     context.CancelFunc
	done       chan struct{}
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// New creates an idle Loader that executes runs with executor,
// usually a *pipeline.Runner.
func New(executor pipeline.Executor, opts ...Option) *Loader {
	done := make(chan struct{})
	close(done)

	l := &Loader{
		executor: executor,
		logger:   slog.Default(),
		done:     done,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start copies q and runs the pipeline in the background. deliver is called
// once with the assembled species unless the run is cancelled, either via
// Cancel or via ctx. It is never called with an error; upstream failures
// deliver an empty list.
func (l *Loader) Start(ctx context.Context, q config.Query, deliver func([]model.Species)) error {
	return l.StartRun(ctx, pipeline.NewRun(q, ""), func(run *pipeline.Run) {
		deliver(run.Species)
	})
}

// StartRun is like Start but executes a prepared run and delivers the whole
// run, so callers can report specimen and taxon counts.
func (l *Loader) StartRun(ctx context.Context, run *pipeline.Run, deliver func(*pipeline.Run)) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state == StateRunning {
		return ErrAlreadyRunning
	}

	l.generation++
	gen := l.generation
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	l.state = StateRunning
	l.cancel = cancel
	l.done = done

	l.logger.Debug("run started", "run", run.ID, "location", run.Location, "generation", gen)

	go l.execute(runCtx, cancel, gen, run, deliver, done)
	return nil
}

func (l *Loader) execute(
	ctx context.Context,
	cancel context.CancelFunc,
	gen uint64,
	run *pipeline.Run,
	deliver func(*pipeline.Run),
	done chan struct{},
) {
	defer close(done)
	defer cancel()

	err := l.executor.Execute(ctx, run)

	l.mu.Lock()
	if gen != l.generation || l.state != StateRunning {
		// cancelled through Cancel, or superseded
		l.mu.Unlock()
		return
	}
	if err != nil || ctx.Err() != nil {
		l.state = StateCancelled
		l.mu.Unlock()
		l.logger.Debug("run cancelled", "run", run.ID, "generation", gen)
		return
	}
	l.state = StateDelivered
	l.mu.Unlock()

	deliver(run)
}

// Cancel aborts the in-flight run. After Cancel returns, the run's callback
// is guaranteed not to fire. Cancel is a no-op unless the Loader is running.
func (l *Loader) Cancel() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.state != StateRunning {
		return
	}
	l.state = StateCancelled
	l.cancel()
	l.logger.Debug("run cancel requested", "generation", l.generation)
}

// State returns the current state.
func (l *Loader) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state
}

// Done returns a channel that is closed once the goroutine of the latest run
// has exited. For an idle Loader the channel is already closed.
func (l *Loader) Done() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.done
}
