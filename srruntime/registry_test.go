package srruntime

import (
	"context"
	"errors"
	"slices"
	"testing"

	"go_upscaler/tensor"
)

type countingModel struct {
	scale    int
	disposed bool
}

func (m *countingModel) Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	return in.Clone()
}

func (m *countingModel) Scale() int { return m.scale }

func (m *countingModel) Dispose() error {
	m.disposed = true
	return nil
}

func TestRegisterAndOpen(t *testing.T) {
	var opened Definition
	Register("registry-test", func(_ context.Context, def Definition) (Model, error) {
		opened = def
		return &countingModel{scale: def.Scale}, nil
	})

	if !slices.Contains(Runtimes(), "registry-test") {
		t.Fatalf("Runtimes() = %v, missing registry-test", Runtimes())
	}

	m, err := Open(context.Background(), Definition{Name: "x", Runtime: "Registry-Test", Scale: 3})
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	defer m.Dispose()

	if m.Scale() != 3 {
		t.Errorf("Scale() = %d, want 3", m.Scale())
	}
	if opened.Channels != Channels {
		t.Errorf("OpenFunc saw Channels = %d, want defaults applied", opened.Channels)
	}
}

func TestOpenErrors(t *testing.T) {
	ctx := context.Background()

	if _, err := Open(ctx, Definition{Runtime: "does-not-exist", Scale: 2}); !errors.Is(err, ErrUnknownRuntime) {
		t.Errorf("unknown runtime: error = %v, want ErrUnknownRuntime", err)
	}

	if _, err := Open(ctx, Definition{Runtime: RuntimeInterpolation, Scale: 0}); !errors.Is(err, ErrInvalidDefinition) {
		t.Errorf("bad scale: error = %v, want ErrInvalidDefinition", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := Open(cancelled, Definition{Runtime: RuntimeInterpolation, Scale: 2}); !errors.Is(err, context.Canceled) {
		t.Errorf("cancelled ctx: error = %v, want context.Canceled", err)
	}
}

func TestBuiltinRuntimesRegistered(t *testing.T) {
	kinds := Runtimes()
	for _, want := range []string{RuntimeInterpolation, RuntimeONNX} {
		if !slices.Contains(kinds, want) {
			t.Errorf("Runtimes() = %v, missing %q", kinds, want)
		}
	}
}
