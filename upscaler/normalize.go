package upscaler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go_upscaler/tensor"
	"go_upscaler/vision"
)

// Normalize converts in into a [1,H,W,3] pixel tensor.
//
// owned reports whether the tensor was allocated here; the caller must
// Dispose it when owned is true. A rank-4 tensor input is returned as-is with
// owned false. Intermediates are disposed before returning.
func Normalize(ctx context.Context, in Input, client *http.Client) (t *tensor.Tensor, owned bool, err error) {
	switch in.kind {
	case InputTensor:
		if in.tensor.Disposed() {
			return nil, false, fmt.Errorf("%w: tensor has been disposed", ErrInvalidInput)
		}
		return toBatch(in.tensor, false)

	case InputBytes:
		decoded, err := vision.DecodeToTensor(in.bytes)
		if err != nil {
			return nil, false, err
		}
		return toBatch(decoded, true)

	case InputPath:
		data, err := vision.ReadSource(ctx, client, in.path)
		if err != nil {
			if errors.Is(err, vision.ErrSourceNotFound) {
				return nil, false, fmt.Errorf("%w: %q", ErrInvalidImageSource, in.path)
			}
			return nil, false, err
		}
		decoded, err := vision.DecodeToTensor(data)
		if err != nil {
			return nil, false, err
		}
		return toBatch(decoded, true)

	case InputImage:
		decoded, err := vision.ImageToTensor(in.image)
		if err != nil {
			return nil, false, err
		}
		return toBatch(decoded, true)

	default:
		return nil, false, fmt.Errorf("%w: %v", ErrInvalidInput, in)
	}
}

// toBatch validates channels and rank, expanding rank 3 to rank 4. When
// intermediate is true t was allocated by the caller of toBatch and is
// disposed whenever it is not the returned tensor.
func toBatch(t *tensor.Tensor, intermediate bool) (*tensor.Tensor, bool, error) {
	fail := func(err error) (*tensor.Tensor, bool, error) {
		if intermediate {
			t.Dispose()
		}
		return nil, false, err
	}

	if t.Channels() != 3 {
		return fail(&ShapeError{Kind: ErrInvalidChannels, Shape: t.Shape()})
	}

	switch t.Rank() {
	case 3:
		batched, err := t.ExpandDims(0)
		if err != nil {
			return fail(err)
		}
		if intermediate {
			t.Dispose()
		}
		return batched, true, nil
	case 4:
		if t.Dim(0) != 1 {
			return fail(&ShapeError{Kind: ErrInvalidTensorRank, Detail: "batch size must be 1", Shape: t.Shape()})
		}
		return t, intermediate, nil
	default:
		return fail(&ShapeError{Kind: ErrInvalidTensorRank, Shape: t.Shape()})
	}
}
