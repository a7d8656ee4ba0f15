package srruntime

import (
	"context"
	"fmt"
	"strings"

	"go_upscaler/tensor"
)

// Runtime kinds.
const (
	RuntimeInterpolation = "interpolation"
	RuntimeONNX          = "onnx"
)

// Interpolation kernels.
const (
	KernelNearest    = "nearest"
	KernelBilinear   = "bilinear"
	KernelCatmullRom = "catmullrom"
)

// Tensor layouts understood by the ONNX runtime.
const (
	LayoutNHWC = "nhwc"
	LayoutNCHW = "nchw"
)

// Definition validation limits
const (
	MinScale = 1
	MaxScale = 16

	// Channels is the only channel count supported: RGB.
	Channels = 3
)

// Definition describes a super-resolution model and how to run it.
type Definition struct {
	Name    string `yaml:"name" json:"name"`
	Runtime string `yaml:"runtime" json:"runtime"`
	Scale   int    `yaml:"scale" json:"scale"`

	// Channels defaults to 3; any other value is rejected.
	Channels int `yaml:"channels,omitempty" json:"channels,omitempty"`

	// Model weights. URL is fetched into the model cache by the loader, which
	// then fills in Path.
	Path   string `yaml:"path,omitempty" json:"path,omitempty"`
	URL    string `yaml:"url,omitempty" json:"url,omitempty"`
	SHA256 string `yaml:"sha256,omitempty" json:"sha256,omitempty"`

	// Interpolation runtime
	Kernel string `yaml:"kernel,omitempty" json:"kernel,omitempty"`

	// ONNX runtime
	InputName  string  `yaml:"input_name,omitempty" json:"input_name,omitempty"`
	OutputName string  `yaml:"output_name,omitempty" json:"output_name,omitempty"`
	Layout     string  `yaml:"layout,omitempty" json:"layout,omitempty"`
	InputRange float32 `yaml:"input_range,omitempty" json:"input_range,omitempty"`

	Meta map[string]string `yaml:"meta,omitempty" json:"meta,omitempty"`
}

// WithDefaults returns a copy of d with empty optional fields filled in.
func (d Definition) WithDefaults() Definition {
	d.Runtime = strings.ToLower(strings.TrimSpace(d.Runtime))
	if d.Channels == 0 {
		d.Channels = Channels
	}
	switch d.Runtime {
	case RuntimeInterpolation:
		if d.Kernel == "" {
			d.Kernel = KernelCatmullRom
		}
		d.Kernel = strings.ToLower(d.Kernel)
	case RuntimeONNX:
		if d.InputName == "" {
			d.InputName = "input"
		}
		if d.OutputName == "" {
			d.OutputName = "output"
		}
		if d.Layout == "" {
			d.Layout = LayoutNCHW
		}
		d.Layout = strings.ToLower(d.Layout)
		if d.InputRange == 0 {
			d.InputRange = 1
		}
	}
	return d
}

// Validate checks a definition after WithDefaults has been applied.
// This is a pure function with no side effects.
func (d Definition) Validate() error {
	if d.Runtime == "" {
		return fmt.Errorf("%w: runtime is required", ErrInvalidDefinition)
	}
	if d.Scale < MinScale || d.Scale > MaxScale {
		return fmt.Errorf("%w: scale %d must be between %d and %d",
			ErrInvalidDefinition, d.Scale, MinScale, MaxScale)
	}
	if d.Channels != Channels {
		return fmt.Errorf("%w: channels must be %d, got %d", ErrInvalidDefinition, Channels, d.Channels)
	}

	switch d.Runtime {
	case RuntimeInterpolation:
		switch d.Kernel {
		case KernelNearest, KernelBilinear, KernelCatmullRom:
		default:
			return fmt.Errorf("%w: unknown kernel %q", ErrInvalidDefinition, d.Kernel)
		}
	case RuntimeONNX:
		if d.Path == "" && d.URL == "" {
			return fmt.Errorf("%w: onnx model needs a path or url", ErrInvalidDefinition)
		}
		if d.Layout != LayoutNHWC && d.Layout != LayoutNCHW {
			return fmt.Errorf("%w: unknown layout %q", ErrInvalidDefinition, d.Layout)
		}
		if d.InputRange != 1 && d.InputRange != 255 {
			return fmt.Errorf("%w: input_range must be 1 or 255, got %g", ErrInvalidDefinition, d.InputRange)
		}
	}
	return nil
}

// String returns a short human readable label.
func (d Definition) String() string {
	name := d.Name
	if name == "" {
		name = "unnamed"
	}
	return fmt.Sprintf("%s (%s, x%d)", name, d.Runtime, d.Scale)
}

// Model is a loaded super-resolution model.
type Model interface {
	// Predict upscales a [1,H,W,3] pixel tensor to [1,H*scale,W*scale,3].
	// The returned tensor is owned by the caller.
	Predict(ctx context.Context, input *tensor.Tensor) (*tensor.Tensor, error)

	// Scale returns the model's upscale factor.
	Scale() int

	// Dispose releases the model. Predict fails with ErrModelClosed afterwards.
	Dispose() error
}

// checkInput validates the Predict input contract shared by all runtimes.
func checkInput(in *tensor.Tensor) (height, width int, err error) {
	if in == nil || in.Disposed() {
		return 0, 0, fmt.Errorf("%w: nil or disposed", ErrInvalidTensor)
	}
	if in.Rank() != 4 || in.Dim(0) != 1 || in.Channels() != Channels {
		return 0, 0, fmt.Errorf("%w: want [1 H W 3], got %v", ErrInvalidTensor, in.Shape())
	}
	return in.Dim(1), in.Dim(2), nil
}
