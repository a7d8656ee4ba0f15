package upscaler

import (
	"fmt"
	"image"

	"go_upscaler/tensor"
)

// InputKind discriminates the Input union.
type InputKind int

const (
	InputInvalid InputKind = iota
	InputTensor
	InputBytes
	InputPath
	InputImage
)

func (k InputKind) String() string {
	switch k {
	case InputTensor:
		return "tensor"
	case InputBytes:
		return "bytes"
	case InputPath:
		return "path"
	case InputImage:
		return "image"
	default:
		return "invalid"
	}
}

// Input is an image to upscale in one of several representations. Build one
// with TensorInput, BytesInput, PathInput, ImageInput or InputFrom; the zero
// value is invalid.
type Input struct {
	kind   InputKind
	tensor *tensor.Tensor
	bytes  []byte
	path   string
	image  image.Image
}

// TensorInput wraps a rank-3 [H,W,3] or rank-4 [1,H,W,3] pixel tensor. The
// tensor stays owned by the caller and is never modified or disposed.
func TensorInput(t *tensor.Tensor) Input {
	if t == nil {
		return Input{}
	}
	return Input{kind: InputTensor, tensor: t}
}

// BytesInput wraps encoded image bytes (PNG, JPEG, GIF, WebP, BMP, TIFF).
func BytesInput(data []byte) Input {
	return Input{kind: InputBytes, bytes: data}
}

// PathInput wraps a local file path or an http(s) URL.
func PathInput(path string) Input {
	return Input{kind: InputPath, path: path}
}

// ImageInput wraps a decoded image.
func ImageInput(img image.Image) Input {
	if img == nil {
		return Input{}
	}
	return Input{kind: InputImage, image: img}
}

// Kind returns the input's representation.
func (in Input) Kind() InputKind {
	return in.kind
}

func (in Input) String() string {
	switch in.kind {
	case InputTensor:
		return fmt.Sprintf("tensor%v", in.tensor.Shape())
	case InputBytes:
		return fmt.Sprintf("bytes(%d)", len(in.bytes))
	case InputPath:
		return fmt.Sprintf("path(%s)", in.path)
	case InputImage:
		return fmt.Sprintf("image(%v)", in.image.Bounds().Size())
	default:
		return "invalid"
	}
}

// InputFrom maps a dynamically typed value onto Input. Unsupported values
// fail with ErrInvalidInput naming the value.
func InputFrom(v any) (Input, error) {
	var in Input
	switch x := v.(type) {
	case Input:
		in = x
	case *tensor.Tensor:
		in = TensorInput(x)
	case []byte:
		in = BytesInput(x)
	case string:
		in = PathInput(x)
	case image.Image:
		in = ImageInput(x)
	}
	if in.kind == InputInvalid {
		return Input{}, fmt.Errorf("%w: unsupported value %#v (%T)", ErrInvalidInput, v, v)
	}
	return in, nil
}
