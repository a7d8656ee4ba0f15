package logging

import (
	"time"

	"go.uber.org/zap/zapcore"
)

// UpscaleMetrics describes one completed upscale. It marshals as a nested
// object:
//
//	logger.Info("upscale complete", logging.UpscaleFields(m))
type UpscaleMetrics struct {
	Model        string        `json:"model"`
	Scale        int           `json:"scale"`
	InputWidth   int           `json:"input_width"`
	InputHeight  int           `json:"input_height"`
	OutputWidth  int           `json:"output_width"`
	OutputHeight int           `json:"output_height"`
	PatchSize    int           `json:"patch_size"`
	Padding      int           `json:"padding"`
	Tiles        int           `json:"tiles"`
	Duration     time.Duration `json:"duration"`
}

// OutputMegapixels is the size of the upscaled image in millions of pixels.
func (m UpscaleMetrics) OutputMegapixels() float64 {
	return float64(m.OutputWidth) * float64(m.OutputHeight) / 1e6
}

// MegapixelsPerSecond is the output throughput, or 0 when no time elapsed.
func (m UpscaleMetrics) MegapixelsPerSecond() float64 {
	if m.Duration <= 0 {
		return 0
	}
	return m.OutputMegapixels() / m.Duration.Seconds()
}

// Tiled reports whether the image was processed in patches.
func (m UpscaleMetrics) Tiled() bool { return m.PatchSize > 0 }

func (m UpscaleMetrics) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("model", m.Model)
	enc.AddInt("scale", m.Scale)
	enc.AddInt("input_width", m.InputWidth)
	enc.AddInt("input_height", m.InputHeight)
	enc.AddInt("output_width", m.OutputWidth)
	enc.AddInt("output_height", m.OutputHeight)
	if m.Tiled() {
		enc.AddInt("patch_size", m.PatchSize)
		enc.AddInt("padding", m.Padding)
	}
	enc.AddInt("tiles", m.Tiles)
	enc.AddInt64("duration_ms", m.Duration.Milliseconds())
	enc.AddFloat64("megapixels_per_second", m.MegapixelsPerSecond())
	return nil
}
