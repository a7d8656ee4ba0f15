package upscaler

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"go_upscaler/tensor"
)

// OutputKind selects how results and progress payloads are returned.
type OutputKind int

const (
	// OutputDefault means base64 for results and "same as Output" for progress.
	OutputDefault OutputKind = iota
	OutputBase64
	OutputTensor
)

func (k OutputKind) String() string {
	switch k {
	case OutputBase64:
		return "base64"
	case OutputTensor:
		return "tensor"
	default:
		return "default"
	}
}

// ParseOutputKind parses "base64" or "tensor" (case-insensitive). An empty
// string yields OutputDefault.
func ParseOutputKind(s string) (OutputKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return OutputDefault, nil
	case "base64":
		return OutputBase64, nil
	case "tensor":
		return OutputTensor, nil
	default:
		return OutputDefault, fmt.Errorf("%w: unknown output %q", ErrInvalidOptions, s)
	}
}

// Progress is reported after every tile, or once for whole-image upscales.
type Progress struct {
	// Percent is tiles done over total tiles, in (0, 1].
	Percent float64
	// Row and Col locate the finished tile; Rows and Cols give the grid size.
	Row, Col   int
	Rows, Cols int

	// Exactly one of Tensor and Base64 is set, per ProgressOutput. Tensor is
	// the upscaled tile as [h,w,3]; the callback owns it and must Dispose it.
	Tensor *tensor.Tensor
	Base64 string
}

// ProgressFunc receives upscale progress. It runs on the upscaling goroutine.
type ProgressFunc func(Progress)

// UpscaleOptions controls a single upscale call.
type UpscaleOptions struct {
	Output OutputKind

	// PatchSize enables tiled inference with square tiles of this size.
	// Padding adds context pixels around every tile and is trimmed from the
	// result; it is ignored without a PatchSize.
	PatchSize int
	Padding   int

	Progress       ProgressFunc
	ProgressOutput OutputKind
}

// resolve validates o and fills in defaults.
func (o UpscaleOptions) resolve(logger *zap.Logger) (UpscaleOptions, error) {
	if o.PatchSize < 0 {
		return o, fmt.Errorf("%w: patch size %d is negative", ErrInvalidOptions, o.PatchSize)
	}
	if o.Padding < 0 {
		return o, fmt.Errorf("%w: padding %d is negative", ErrInvalidOptions, o.Padding)
	}
	if o.Output < OutputDefault || o.Output > OutputTensor {
		return o, fmt.Errorf("%w: unknown output %d", ErrInvalidOptions, o.Output)
	}
	if o.ProgressOutput < OutputDefault || o.ProgressOutput > OutputTensor {
		return o, fmt.Errorf("%w: unknown progress output %d", ErrInvalidOptions, o.ProgressOutput)
	}

	if o.Padding > 0 && o.PatchSize == 0 {
		logger.Warn("padding is ignored without a patch size", zap.Int("padding", o.Padding))
		o.Padding = 0
	}
	if o.Output == OutputDefault {
		o.Output = OutputBase64
	}
	if o.ProgressOutput == OutputDefault {
		o.ProgressOutput = o.Output
	}
	return o, nil
}
