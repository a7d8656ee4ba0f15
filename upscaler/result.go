package upscaler

import (
	"time"

	"go_upscaler/logging"
	"go_upscaler/tensor"
)

// Result is the output of an upscale: a base64 PNG or a [H,W,3] tensor,
// depending on UpscaleOptions.Output.
type Result struct {
	kind   OutputKind
	tensor *tensor.Tensor
	base64 string
	stats  Stats
}

// Kind reports which representation the result holds.
func (r Result) Kind() OutputKind { return r.kind }

// Tensor returns the upscaled tensor, or nil for base64 results. The caller
// owns it and should Dispose it.
func (r Result) Tensor() *tensor.Tensor { return r.tensor }

// Base64 returns the standard-encoded PNG, or "" for tensor results.
func (r Result) Base64() string { return r.base64 }

// Stats describes the work done to produce the result.
func (r Result) Stats() Stats { return r.stats }

// Stats summarises one upscale call.
type Stats struct {
	Model        string
	Scale        int
	InputWidth   int
	InputHeight  int
	OutputWidth  int
	OutputHeight int
	PatchSize    int
	Padding      int
	Tiles        int
	Duration     time.Duration
}

// Metrics converts s into its structured-logging form.
func (s Stats) Metrics() logging.UpscaleMetrics {
	return logging.UpscaleMetrics{
		Model:        s.Model,
		Scale:        s.Scale,
		InputWidth:   s.InputWidth,
		InputHeight:  s.InputHeight,
		OutputWidth:  s.OutputWidth,
		OutputHeight: s.OutputHeight,
		PatchSize:    s.PatchSize,
		Padding:      s.Padding,
		Tiles:        s.Tiles,
		Duration:     s.Duration,
	}
}
