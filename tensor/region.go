package tensor

import "fmt"

// Region is a rectangle in pixel coordinates: rows [Y0,Y1), columns [X0,X1).
type Region struct {
	Y0, X0, Y1, X1 int
}

// Height returns the number of rows covered.
func (r Region) Height() int { return r.Y1 - r.Y0 }

// Width returns the number of columns covered.
func (r Region) Width() int { return r.X1 - r.X0 }

// Empty reports whether the region covers no pixels.
func (r Region) Empty() bool { return r.Y1 <= r.Y0 || r.X1 <= r.X0 }

// imageDims returns height, width and channels for rank-3 or batch-1 rank-4
// image tensors.
func (t *Tensor) imageDims() (h, w, c int, err error) {
	switch {
	case len(t.shape) == 3:
		return t.shape[0], t.shape[1], t.shape[2], nil
	case len(t.shape) == 4 && t.shape[0] == 1:
		return t.shape[1], t.shape[2], t.shape[3], nil
	default:
		return 0, 0, 0, fmt.Errorf("%w: %v is not an image tensor", ErrInvalidShape, t.shape)
	}
}

// ImageSize returns height and width of a rank-3 or batch-1 rank-4 tensor.
func (t *Tensor) ImageSize() (height, width int, err error) {
	h, w, _, err := t.imageDims()
	return h, w, err
}

// Crop copies region r of an image tensor into a new tensor with the same
// rank as the receiver.
func (t *Tensor) Crop(r Region) (*Tensor, error) {
	if t.Disposed() {
		return nil, ErrDisposed
	}
	h, w, c, err := t.imageDims()
	if err != nil {
		return nil, err
	}
	if r.Empty() || r.Y0 < 0 || r.X0 < 0 || r.Y1 > h || r.X1 > w {
		return nil, fmt.Errorf("%w: region %+v of %dx%d", ErrOutOfBounds, r, h, w)
	}

	out := make([]float32, r.Height()*r.Width()*c)
	rowLen := r.Width() * c
	for y := r.Y0; y < r.Y1; y++ {
		src := (y*w + r.X0) * c
		dst := (y - r.Y0) * rowLen
		copy(out[dst:dst+rowLen], t.data[src:src+rowLen])
	}

	shape := []int{r.Height(), r.Width(), c}
	if len(t.shape) == 4 {
		shape = []int{1, r.Height(), r.Width(), c}
	}
	return newTensor(shape, out), nil
}

// Paste copies the whole of src into the receiver with its top-left corner at
// (y, x). Both tensors must be image tensors with equal channel counts.
func (t *Tensor) Paste(src *Tensor, y, x int) error {
	if t.Disposed() || src.Disposed() {
		return ErrDisposed
	}
	h, w, c, err := t.imageDims()
	if err != nil {
		return err
	}
	sh, sw, sc, err := src.imageDims()
	if err != nil {
		return err
	}
	if sc != c {
		return fmt.Errorf("%w: channels %d into %d", ErrShapeMismatch, sc, c)
	}
	if y < 0 || x < 0 || y+sh > h || x+sw > w {
		return fmt.Errorf("%w: %dx%d at (%d,%d) into %dx%d", ErrOutOfBounds, sh, sw, y, x, h, w)
	}

	rowLen := sw * c
	for row := 0; row < sh; row++ {
		dst := ((y+row)*w + x) * c
		copy(t.data[dst:dst+rowLen], src.data[row*rowLen:(row+1)*rowLen])
	}
	return nil
}
