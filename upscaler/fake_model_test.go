package upscaler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"go_upscaler/srruntime"
	"go_upscaler/tensor"
)

// fakeRuntime is registered for tests; each definition name maps to the
// fakeModel that Open returns.
const fakeRuntime = "upscaler-fake"

var fakeModels sync.Map

func init() {
	srruntime.Register(fakeRuntime, func(_ context.Context, def srruntime.Definition) (srruntime.Model, error) {
		m, ok := fakeModels.Load(def.Name)
		if !ok {
			return nil, errors.New("no fake model named " + def.Name)
		}
		return m.(*fakeModel), nil
	})
}

// fakeModel is a nearest-neighbour 2x upscaler that counts its calls.
type fakeModel struct {
	calls    atomic.Int32
	disposed atomic.Bool

	// hook runs at the start of the nth Predict call; a non-nil error fails it.
	hook func(n int) error

	mu     sync.Mutex
	shapes [][]int
}

// newFakeModel registers a fake model under a unique name and returns a
// descriptor for it.
func newFakeModel(t *testing.T, hook func(n int) error) (*fakeModel, Descriptor) {
	t.Helper()
	m := &fakeModel{hook: hook}
	name := t.Name()
	fakeModels.Store(name, m)
	t.Cleanup(func() { fakeModels.Delete(name) })
	return m, FromDefinition(srruntime.Definition{Name: name, Runtime: fakeRuntime, Scale: 2})
}

func (m *fakeModel) Scale() int { return 2 }

func (m *fakeModel) Dispose() error {
	m.disposed.Store(true)
	return nil
}

func (m *fakeModel) Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	n := int(m.calls.Add(1))
	m.mu.Lock()
	m.shapes = append(m.shapes, in.Shape())
	m.mu.Unlock()
	if m.hook != nil {
		if err := m.hook(n); err != nil {
			return nil, err
		}
	}
	if m.disposed.Load() {
		return nil, srruntime.ErrModelClosed
	}

	h, w := in.Dim(1), in.Dim(2)
	out, err := tensor.Zeros(1, h*2, w*2, 3)
	if err != nil {
		return nil, err
	}
	src, dst := in.Data(), out.Data()
	for y := 0; y < h*2; y++ {
		for x := 0; x < w*2; x++ {
			copy(dst[(y*w*2+x)*3:(y*w*2+x)*3+3], src[((y/2)*w+x/2)*3:((y/2)*w+x/2)*3+3])
		}
	}
	return out, nil
}

func (m *fakeModel) inputShapes() [][]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]int(nil), m.shapes...)
}

// gradient returns an [h,w,3] tensor with distinct, smoothly varying pixels.
func gradient(t *testing.T, h, w int) *tensor.Tensor {
	t.Helper()
	data := make([]float32, h*w*3)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (y*w + x) * 3
			data[i] = float32((x * 255) / max(w-1, 1))
			data[i+1] = float32((y * 255) / max(h-1, 1))
			data[i+2] = float32(((x + y) * 7) % 256)
		}
	}
	img, err := tensor.New([]int{h, w, 3}, data)
	if err != nil {
		t.Fatalf("tensor.New: %v", err)
	}
	return img
}

// newReady constructs an Upscaler and disposes it when the test ends.
func newReady(t *testing.T, opts Options) *Upscaler {
	t.Helper()
	u := New(opts)
	t.Cleanup(func() { _ = u.Dispose(context.Background()) })
	return u
}
