package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/nao1215/antmaps/internal/config"
)

// mockStep is a test helper that implements the Step interface.
type mockStep struct {
	name      string
	doFunc    func(ctx context.Context, run *Run) error
	callCount int
}

// Do implements Step.Do.
func (m *mockStep) Do(ctx context.Context, run *Run) error {
	m.callCount++
	if m.doFunc != nil {
		return m.doFunc(ctx, run)
	}
	return nil
}

// Name implements Step.Name.
func (m *mockStep) Name() string {
	return m.name
}

func TestPipelineNew(t *testing.T) {
	t.Parallel()

	p := New()
	if p == nil {
		t.Fatal("expected non-nil pipeline")
	}
	if p.StepCount() != 0 {
		t.Errorf("expected 0 steps, got %d", p.StepCount())
	}
	if p.logger == nil {
		t.Error("expected default logger")
	}
}

func TestPipelineAddStep(t *testing.T) {
	t.Parallel()

	t.Run("adds single step", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "test-step"})

		if p.StepCount() != 1 {
			t.Errorf("expected 1 step, got %d", p.StepCount())
		}
	})

	t.Run("maintains step order", func(t *testing.T) {
		t.Parallel()

		p := New()
		p.AddStep(&mockStep{name: "first"})
		p.AddSteps(&mockStep{name: "second"}, &mockStep{name: "third"})

		expected := []string{"first", "second", "third"}
		for i, name := range p.StepNames() {
			if name != expected[i] {
				t.Errorf("step %d: got %q, expected %q", i, name, expected[i])
			}
		}
	})
}

func TestPipelineExecute(t *testing.T) {
	t.Parallel()

	t.Run("executes all steps in order", func(t *testing.T) {
		t.Parallel()

		var order []string
		p := New()
		for _, name := range []string{"a", "b", "c"} {
			p.AddStep(&mockStep{
				name: name,
				doFunc: func(_ context.Context, _ *Run) error {
					order = append(order, name)
					return nil
				},
			})
		}

		run := NewRun(config.DefaultQuery(), "")
		if err := p.Execute(context.Background(), run); err != nil {
			t.Fatalf("Execute() error = %v", err)
		}
		if len(order) != 3 || order[0] != "a" || order[2] != "c" {
			t.Errorf("execution order = %v", order)
		}
		if len(run.PerformedSteps) != 3 {
			t.Errorf("PerformedSteps = %v", run.PerformedSteps)
		}
	})

	t.Run("stops on step error", func(t *testing.T) {
		t.Parallel()

		stepErr := errors.New("boom")
		second := &mockStep{name: "second"}
		p := New()
		p.AddSteps(
			&mockStep{name: "first", doFunc: func(context.Context, *Run) error { return stepErr }},
			second,
		)

		err := p.Execute(context.Background(), NewRun(config.DefaultQuery(), ""))
		if !errors.Is(err, stepErr) {
			t.Errorf("Execute() error = %v, want %v", err, stepErr)
		}
		if second.callCount != 0 {
			t.Error("second step must not run after a failure")
		}
	})

	t.Run("checks cancellation between steps", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(context.Background())
		second := &mockStep{name: "second"}
		p := New()
		p.AddSteps(
			&mockStep{name: "first", doFunc: func(context.Context, *Run) error {
				cancel()
				return nil
			}},
			second,
		)

		err := p.Execute(ctx, NewRun(config.DefaultQuery(), ""))
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Execute() error = %v, want context.Canceled", err)
		}
		if second.callCount != 0 {
			t.Error("second step must not run after cancellation")
		}
	})
}

func TestNewRun(t *testing.T) {
	t.Parallel()

	q := config.DefaultQuery()
	q.Latitude = 26.5
	q.Longitude = 128.2
	q.RadiusKm = 100

	run := NewRun(q, "")
	if run.Location != "26,128,100" {
		t.Errorf("Location = %q, want %q", run.Location, "26,128,100")
	}
	if run.ID == "" {
		t.Error("ID is empty")
	}

	q.MaxSpecies = 99
	if run.Query.MaxSpecies == 99 {
		t.Error("run must hold a copy of the query")
	}

	if named := NewRun(q, "oist"); named.Location != "oist" {
		t.Errorf("Location = %q, want oist", named.Location)
	}
}
