package loader

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/nao1215/antmaps/internal/config"
	"github.com/nao1215/antmaps/internal/model"
	"github.com/nao1215/antmaps/internal/pipeline"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// slowSource answers after delay, or aborts when the context is cancelled.
type slowSource struct {
	delay time.Duration
	taxa  []string

	aborted atomic.Int32
}

func (s *slowSource) wait(ctx context.Context) error {
	select {
	case <-time.After(s.delay):
		return nil
	case <-ctx.Done():
		s.aborted.Add(1)
		return ctx.Err()
	}
}

func (s *slowSource) Specimens(ctx context.Context, _ config.Query) ([]model.SpecimenRecord, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]model.SpecimenRecord, len(s.taxa))
	for i, t := range s.taxa {
		out[i] = model.SpecimenRecord{TaxonName: t}
	}
	return out, nil
}

func (s *slowSource) TaxonImage(ctx context.Context, taxon string, _ model.PhotoVariant) (model.ImageReference, error) {
	if err := s.wait(ctx); err != nil {
		return model.ImageReference{}, err
	}
	return model.ImageReference{TaxonName: taxon, URL: taxon + ".jpg"}, nil
}

// executorFunc adapts a function to pipeline.Executor.
type executorFunc func(ctx context.Context, run *pipeline.Run) error

func (f executorFunc) Execute(ctx context.Context, run *pipeline.Run) error {
	return f(ctx, run)
}

func waitDone(t *testing.T, l *Loader) {
	t.Helper()
	select {
	case <-l.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
}

func TestLoaderDelivers(t *testing.T) {
	t.Parallel()

	src := &slowSource{delay: time.Millisecond, taxa: []string{"A", "B", "A"}}
	l := New(pipeline.NewRunner(src))

	var (
		mu        sync.Mutex
		delivered [][]model.Species
	)
	err := l.Start(context.Background(), config.DefaultQuery(), func(species []model.Species) {
		mu.Lock()
		defer mu.Unlock()
		delivered = append(delivered, species)
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, l)

	mu.Lock()
	defer mu.Unlock()
	if len(delivered) != 1 {
		t.Fatalf("callbacks = %d, want 1", len(delivered))
	}
	if got := delivered[0]; len(got) != 2 || got[0].Name != "A" || got[1].Name != "B" {
		t.Errorf("species = %v", got)
	}
	if l.State() != StateDelivered {
		t.Errorf("State() = %v, want delivered", l.State())
	}
}

func TestLoaderSyntheticMode(t *testing.T) {
	t.Parallel()

	l := New(pipeline.NewRunner(nil))
	q := config.DefaultQuery()
	q.UseSyntheticData = true
	q.MaxSpecies = 5

	result := make(chan []model.Species, 1)
	if err := l.Start(context.Background(), q, func(s []model.Species) { result <- s }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	waitDone(t, l)

	species := <-result
	if len(species) != 5 {
		t.Fatalf("len(species) = %d, want 5", len(species))
	}
	for i, s := range species {
		if s.HasImage() {
			t.Errorf("species[%d] has image", i)
		}
	}
	if species[0].Name != "antum falsum #0" || species[4].Name != "antum falsum #4" {
		t.Errorf("names = %q .. %q", species[0].Name, species[4].Name)
	}
}

func TestLoaderCancelSuppressesDelivery(t *testing.T) {
	t.Parallel()

	const naturalDuration = 100 * time.Millisecond
	src := &slowSource{delay: naturalDuration / 2, taxa: []string{"A"}}
	l := New(pipeline.NewRunner(src))

	var calls atomic.Int32
	if err := l.Start(context.Background(), config.DefaultQuery(), func([]model.Species) {
		calls.Add(1)
	}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	time.Sleep(10 * time.Millisecond)
	l.Cancel()

	if l.State() != StateCancelled {
		t.Errorf("State() = %v, want cancelled", l.State())
	}
	waitDone(t, l)
	time.Sleep(2 * naturalDuration)

	if n := calls.Load(); n != 0 {
		t.Errorf("callbacks after cancel = %d, want 0", n)
	}
	if src.aborted.Load() == 0 {
		t.Error("in-flight request was not aborted")
	}
}

func TestLoaderContextCancellation(t *testing.T) {
	t.Parallel()

	src := &slowSource{delay: time.Second, taxa: []string{"A"}}
	l := New(pipeline.NewRunner(src))

	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	if err := l.Start(ctx, config.DefaultQuery(), func([]model.Species) { calls.Add(1) }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	cancel()
	waitDone(t, l)

	if l.State() != StateCancelled {
		t.Errorf("State() = %v, want cancelled", l.State())
	}
	if calls.Load() != 0 {
		t.Error("callback fired after context cancellation")
	}
}

func TestLoaderRejectsConcurrentStart(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	exec := executorFunc(func(ctx context.Context, _ *pipeline.Run) error {
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})
	l := New(exec)

	if err := l.Start(context.Background(), config.DefaultQuery(), func([]model.Species) {}); err != nil {
		t.Fatalf("first Start() error = %v", err)
	}
	err := l.Start(context.Background(), config.DefaultQuery(), func([]model.Species) {})
	if !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Start() error = %v, want ErrAlreadyRunning", err)
	}

	close(release)
	waitDone(t, l)
}

func TestLoaderRestart(t *testing.T) {
	t.Parallel()

	l := New(executorFunc(func(_ context.Context, run *pipeline.Run) error {
		run.Species = []model.Species{model.NewSpecies(run.Location, "")}
		return nil
	}))

	var calls atomic.Int32
	deliver := func([]model.Species) { calls.Add(1) }

	for range 3 {
		if err := l.Start(context.Background(), config.DefaultQuery(), deliver); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		waitDone(t, l)
	}

	if n := calls.Load(); n != 3 {
		t.Errorf("callbacks = %d, want 3", n)
	}
	if l.State() != StateDelivered {
		t.Errorf("State() = %v, want delivered", l.State())
	}
}

func TestLoaderRestartAfterCancel(t *testing.T) {
	t.Parallel()

	block := make(chan struct{})
	var first atomic.Bool
	first.Store(true)
	l := New(executorFunc(func(ctx context.Context, _ *pipeline.Run) error {
		if first.CompareAndSwap(true, false) {
			<-block
			return nil
		}
		return nil
	}))

	var calls atomic.Int32
	if err := l.Start(context.Background(), config.DefaultQuery(), func([]model.Species) { calls.Add(1) }); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	staleDone := l.Done()
	l.Cancel()

	// the new run starts while the cancelled goroutine is still blocked
	if err := l.Start(context.Background(), config.DefaultQuery(), func([]model.Species) { calls.Add(10) }); err != nil {
		t.Fatalf("restart error = %v", err)
	}
	waitDone(t, l)

	close(block)
	<-staleDone

	if n := calls.Load(); n != 10 {
		t.Errorf("callback sum = %d, want 10 (only the second run delivers)", n)
	}
}

func TestLoaderCopiesQuery(t *testing.T) {
	t.Parallel()

	seen := make(chan int, 1)
	release := make(chan struct{})
	l := New(executorFunc(func(_ context.Context, run *pipeline.Run) error {
		<-release
		seen <- run.Query.MaxSpecies
		return nil
	}))

	q := config.DefaultQuery()
	q.MaxSpecies = 3
	if err := l.Start(context.Background(), q, func([]model.Species) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	q.MaxSpecies = 42
	close(release)
	waitDone(t, l)

	if got := <-seen; got != 3 {
		t.Errorf("run saw MaxSpecies = %d, want 3", got)
	}
}

func TestLoaderCancelIdle(t *testing.T) {
	t.Parallel()

	l := New(pipeline.NewRunner(nil))
	l.Cancel()
	if l.State() != StateIdle {
		t.Errorf("State() = %v, want idle", l.State())
	}
	select {
	case <-l.Done():
	default:
		t.Error("Done() of an idle loader must be closed")
	}
}

func TestStateString(t *testing.T) {
	t.Parallel()

	tests := map[State]string{
		StateIdle:      "idle",
		StateRunning:   "running",
		StateDelivered: "delivered",
		StateCancelled: "cancelled",
		State(99):      "unknown",
	}
	for s, want := range tests {
		if got := s.String(); got != want {
			t.Errorf("State(%d).String() = %q, want %q", int(s), got, want)
		}
	}
}
