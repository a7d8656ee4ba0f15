package upscaler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go_upscaler/logging"
	"go_upscaler/srruntime"
	"go_upscaler/tensor"
	"go_upscaler/vision"
)

// Pixel range that results are clamped to before encoding.
const (
	minPixel = 0
	maxPixel = vision.PixelMax
)

// upscaleTensor runs the model over a [1,H,W,3] input, whole or tile by tile,
// and returns a clamped [H*scale,W*scale,3] tensor owned by the caller.
// opts must already be resolved. ctx is checked before every inference; once
// it is done the partial output is discarded and a cancellation error returned.
func upscaleTensor(ctx context.Context, pkg *ModelPackage, input *tensor.Tensor, opts UpscaleOptions, logger *zap.Logger) (*tensor.Tensor, Stats, error) {
	start := time.Now()
	height, width := input.Dim(1), input.Dim(2)
	scale := pkg.Model.Scale()

	stats := Stats{
		Model:        pkg.Definition.Name,
		Scale:        scale,
		InputWidth:   width,
		InputHeight:  height,
		OutputWidth:  width * scale,
		OutputHeight: height * scale,
		PatchSize:    opts.PatchSize,
		Padding:      opts.Padding,
		Tiles:        1,
	}

	var out *tensor.Tensor
	var err error
	if opts.PatchSize == 0 {
		out, err = upscaleWhole(ctx, pkg, input, opts)
	} else {
		out, stats.Tiles, err = upscaleTiled(ctx, pkg, input, opts, logger)
	}
	if err != nil {
		return nil, stats, err
	}

	stats.Duration = time.Since(start)
	return out, stats, nil
}

func upscaleWhole(ctx context.Context, pkg *ModelPackage, input *tensor.Tensor, opts UpscaleOptions) (*tensor.Tensor, error) {
	if ctx.Err() != nil {
		return nil, cancelled(ctx)
	}

	pred, err := predict(ctx, pkg, input)
	if err != nil {
		return nil, err
	}
	out, err := pred.Squeeze()
	pred.Dispose()
	if err != nil {
		return nil, err
	}
	out.ClampInPlace(minPixel, maxPixel)

	if opts.Progress != nil {
		if err := report(opts, Progress{Percent: 1, Rows: 1, Cols: 1}, out); err != nil {
			out.Dispose()
			return nil, err
		}
	}
	return out, nil
}

func upscaleTiled(ctx context.Context, pkg *ModelPackage, input *tensor.Tensor, opts UpscaleOptions, logger *zap.Logger) (*tensor.Tensor, int, error) {
	height, width := input.Dim(1), input.Dim(2)
	scale := pkg.Model.Scale()
	rows, cols, tiles := planTiles(height, width, opts.PatchSize, opts.Padding)

	out, err := tensor.Zeros(height*scale, width*scale, 3)
	if err != nil {
		return nil, 0, err
	}
	fail := func(err error) (*tensor.Tensor, int, error) {
		out.Dispose()
		return nil, len(tiles), err
	}

	for i, t := range tiles {
		if ctx.Err() != nil {
			logger.Debug("upscale cancelled",
				zap.Int("tiles_done", i),
				zap.Int("tiles_total", len(tiles)))
			return fail(cancelled(ctx))
		}

		trimmed, err := upscaleTile(ctx, pkg, input, t, scale)
		if err != nil {
			return fail(err)
		}
		if err := out.Paste(trimmed, t.Core.Y0*scale, t.Core.X0*scale); err != nil {
			trimmed.Dispose()
			return fail(err)
		}

		logger.Debug("tile upscaled", logging.TileFields(t.Row, t.Col, rows, cols)...)

		if opts.Progress != nil {
			p := Progress{
				Percent: float64(i+1) / float64(len(tiles)),
				Row:     t.Row,
				Col:     t.Col,
				Rows:    rows,
				Cols:    cols,
			}
			if err := report(opts, p, trimmed); err != nil {
				trimmed.Dispose()
				return fail(err)
			}
		}
		trimmed.Dispose()
	}

	out.ClampInPlace(minPixel, maxPixel)
	return out, len(tiles), nil
}

// upscaleTile runs the model over one padded tile and returns the upscaled
// core as [1,h,w,3].
func upscaleTile(ctx context.Context, pkg *ModelPackage, input *tensor.Tensor, t tile, scale int) (*tensor.Tensor, error) {
	patch, err := input.Crop(t.Padded)
	if err != nil {
		return nil, err
	}
	pred, err := predict(ctx, pkg, patch)
	patch.Dispose()
	if err != nil {
		return nil, fmt.Errorf("tile (%d,%d): %w", t.Row, t.Col, err)
	}
	defer pred.Dispose()

	return pred.Crop(t.trim(scale))
}

// predict runs the model and checks that the output has the expected shape.
// Errors while ctx is done are reported as cancellations.
func predict(ctx context.Context, pkg *ModelPackage, in *tensor.Tensor) (*tensor.Tensor, error) {
	scale := pkg.Model.Scale()
	out, err := pkg.Model.Predict(ctx, in)
	if err != nil {
		if ctx.Err() != nil {
			return nil, cancelled(ctx)
		}
		return nil, err
	}

	want := []int{1, in.Dim(1) * scale, in.Dim(2) * scale, 3}
	got := out.Shape()
	if len(got) != 4 || got[0] != want[0] || got[1] != want[1] || got[2] != want[2] || got[3] != want[3] {
		out.Dispose()
		return nil, fmt.Errorf("%w: model returned shape %v, want %v", srruntime.ErrInferenceFailed, got, want)
	}
	return out, nil
}

// report hands a progress payload to the callback in the requested form.
// payload is not consumed; tensor payloads are copied.
func report(opts UpscaleOptions, p Progress, payload *tensor.Tensor) error {
	if opts.ProgressOutput == OutputTensor {
		var err error
		if payload.Rank() == 4 {
			p.Tensor, err = payload.Squeeze()
		} else {
			p.Tensor, err = payload.Clone()
		}
		if err != nil {
			return err
		}
		p.Tensor.ClampInPlace(minPixel, maxPixel)
	} else {
		b64, err := vision.TensorToBase64(payload)
		if err != nil {
			return err
		}
		p.Base64 = b64
	}
	opts.Progress(p)
	return nil
}

// encodeResult packages out per opts.Output, taking ownership of out.
func encodeResult(out *tensor.Tensor, opts UpscaleOptions, stats Stats) (Result, error) {
	if opts.Output == OutputTensor {
		return Result{kind: OutputTensor, tensor: out, stats: stats}, nil
	}
	defer out.Dispose()

	b64, err := vision.TensorToBase64(out)
	if err != nil {
		return Result{}, err
	}
	return Result{kind: OutputBase64, base64: b64, stats: stats}, nil
}
