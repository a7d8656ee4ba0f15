// Package tensor provides the float32 NHWC tensors that flow between image
// decoding, model inference and output encoding.
//
// Tensors are plain Go slices, but they carry an explicit Dispose so that
// pipelines can release large intermediates deterministically instead of
// waiting for the garbage collector. Live() reports how many tensors have been
// allocated and not yet disposed, which tests use to detect leaks.
package tensor

import (
	"errors"
	"fmt"
	"math"
	"sync/atomic"
)

// Errors returned by tensor operations.
var (
	ErrShapeMismatch = errors.New("tensor: data length does not match shape")
	ErrInvalidShape  = errors.New("tensor: invalid shape")
	ErrDisposed      = errors.New("tensor: tensor has been disposed")
	ErrOutOfBounds   = errors.New("tensor: region out of bounds")
)

// live counts tensors that have been created and not yet disposed.
var live atomic.Int64

// Live returns the number of tensors currently allocated and not disposed.
func Live() int64 {
	return live.Load()
}

// Tensor is a dense float32 tensor in row-major order.
// Image tensors use NHWC layout: [batch, height, width, channels] or
// [height, width, channels].
type Tensor struct {
	shape    []int
	data     []float32
	disposed atomic.Bool
}

// New creates a tensor with the given shape backed by data.
// The slice is used as-is, not copied.
func New(shape []int, data []float32) (*Tensor, error) {
	size, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != size {
		return nil, fmt.Errorf("%w: shape %v needs %d values, got %d", ErrShapeMismatch, shape, size, len(data))
	}
	return newTensor(append([]int(nil), shape...), data), nil
}

// Zeros allocates a zero-filled tensor.
func Zeros(shape ...int) (*Tensor, error) {
	size, err := numElements(shape)
	if err != nil {
		return nil, err
	}
	return newTensor(append([]int(nil), shape...), make([]float32, size)), nil
}

func newTensor(shape []int, data []float32) *Tensor {
	live.Add(1)
	return &Tensor{shape: shape, data: data}
}

func numElements(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrInvalidShape)
	}
	size := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrInvalidShape, shape)
		}
		size *= d
	}
	return size, nil
}

// Shape returns a copy of the tensor's shape.
func (t *Tensor) Shape() []int {
	return append([]int(nil), t.shape...)
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int {
	return len(t.shape)
}

// Dim returns the size of dimension i. Negative indices count from the end.
func (t *Tensor) Dim(i int) int {
	if i < 0 {
		i += len(t.shape)
	}
	return t.shape[i]
}

// Channels returns the size of the last dimension.
func (t *Tensor) Channels() int {
	return t.shape[len(t.shape)-1]
}

// Data returns the backing slice. Callers must not retain it past Dispose.
func (t *Tensor) Data() []float32 {
	return t.data
}

// Len returns the number of elements.
func (t *Tensor) Len() int {
	return len(t.data)
}

// Disposed reports whether Dispose has been called.
func (t *Tensor) Disposed() bool {
	return t.disposed.Load()
}

// Dispose releases the backing storage. Calling it more than once is a no-op.
func (t *Tensor) Dispose() {
	if t == nil {
		return
	}
	if t.disposed.CompareAndSwap(false, true) {
		t.data = nil
		live.Add(-1)
	}
}

// ExpandDims returns a new tensor with a dimension of size 1 inserted at axis.
// The new tensor shares nothing with the receiver.
func (t *Tensor) ExpandDims(axis int) (*Tensor, error) {
	if t.Disposed() {
		return nil, ErrDisposed
	}
	if axis < 0 || axis > len(t.shape) {
		return nil, fmt.Errorf("%w: axis %d for rank %d", ErrInvalidShape, axis, len(t.shape))
	}
	shape := make([]int, 0, len(t.shape)+1)
	shape = append(shape, t.shape[:axis]...)
	shape = append(shape, 1)
	shape = append(shape, t.shape[axis:]...)
	return newTensor(shape, append([]float32(nil), t.data...)), nil
}

// Squeeze returns a copy of a batch-1 rank-4 tensor as rank 3.
func (t *Tensor) Squeeze() (*Tensor, error) {
	if t.Disposed() {
		return nil, ErrDisposed
	}
	if len(t.shape) != 4 || t.shape[0] != 1 {
		return nil, fmt.Errorf("%w: cannot squeeze %v", ErrInvalidShape, t.shape)
	}
	return newTensor(append([]int(nil), t.shape[1:]...), append([]float32(nil), t.data...)), nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() (*Tensor, error) {
	if t.Disposed() {
		return nil, ErrDisposed
	}
	return newTensor(t.Shape(), append([]float32(nil), t.data...)), nil
}

// ClampInPlace clamps every value to [lo, hi]. NaN becomes lo.
func (t *Tensor) ClampInPlace(lo, hi float32) {
	for i, v := range t.data {
		switch {
		case math.IsNaN(float64(v)) || v < lo:
			t.data[i] = lo
		case v > hi:
			t.data[i] = hi
		}
	}
}

// ScaleInPlace multiplies every value by f.
func (t *Tensor) ScaleInPlace(f float32) {
	for i := range t.data {
		t.data[i] *= f
	}
}

// Equal reports whether two tensors have the same shape and the values differ
// by at most tol.
func Equal(a, b *Tensor, tol float64) bool {
	if len(a.shape) != len(b.shape) {
		return false
	}
	for i := range a.shape {
		if a.shape[i] != b.shape[i] {
			return false
		}
	}
	for i := range a.data {
		if math.Abs(float64(a.data[i])-float64(b.data[i])) > tol {
			return false
		}
	}
	return true
}
