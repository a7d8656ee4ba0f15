package upscaler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"go_upscaler/tensor"
)

// WarmupSize is either an explicit Width and Height or a PatchSize with
// optional Padding. A patch warmup uses a square input of
// PatchSize+2*Padding, matching the tiles a tiled upscale feeds the model.
type WarmupSize struct {
	Width, Height int

	PatchSize int
	Padding   int
}

// dims returns the input height and width for this warmup size.
func (s WarmupSize) dims() (int, int, error) {
	if s.PatchSize != 0 || s.Padding != 0 {
		if s.PatchSize <= 0 || s.Padding < 0 {
			return 0, 0, fmt.Errorf("%w: %s", ErrInvalidWarmupSize, s)
		}
		side := s.PatchSize + 2*s.Padding
		return side, side, nil
	}
	if s.Width <= 0 || s.Height <= 0 {
		return 0, 0, fmt.Errorf("%w: %s", ErrInvalidWarmupSize, s)
	}
	return s.Height, s.Width, nil
}

func (s WarmupSize) String() string {
	if s.PatchSize != 0 || s.Padding != 0 {
		return fmt.Sprintf("patch %d pad %d", s.PatchSize, s.Padding)
	}
	return fmt.Sprintf("%dx%d", s.Width, s.Height)
}

// ParseWarmupSizes parses a comma separated list such as "64:2,128x96,32".
// "WxH" is an explicit size; "P" or "P:Pd" is a patch size with padding.
func ParseWarmupSizes(s string) ([]WarmupSize, error) {
	var sizes []WarmupSize
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		var size WarmupSize
		var err error
		if w, h, ok := strings.Cut(part, "x"); ok {
			size.Width, err = strconv.Atoi(w)
			if err == nil {
				size.Height, err = strconv.Atoi(h)
			}
		} else {
			p, pad, hasPad := strings.Cut(part, ":")
			size.PatchSize, err = strconv.Atoi(p)
			if err == nil && hasPad {
				size.Padding, err = strconv.Atoi(pad)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidWarmupSize, part)
		}
		if _, _, err := size.dims(); err != nil {
			return nil, err
		}
		sizes = append(sizes, size)
	}
	return sizes, nil
}

// runWarmup performs one zero-input inference per size. Cancellation of ctx
// stops the warmup early and is not an error; inference failures are
// reported as ErrWarmup.
func runWarmup(ctx context.Context, pkg *ModelPackage, sizes []WarmupSize, logger *zap.Logger) error {
	for _, size := range sizes {
		if _, _, err := size.dims(); err != nil {
			return fmt.Errorf("%w: %w", ErrWarmup, err)
		}
	}

	for i, size := range sizes {
		if ctx.Err() != nil {
			logger.Debug("warmup cancelled", zap.Int("completed", i), zap.Int("total", len(sizes)))
			return nil
		}

		h, w, _ := size.dims()
		start := time.Now()
		err := warmupOnce(ctx, pkg, h, w)
		if err != nil {
			if ctx.Err() != nil {
				logger.Debug("warmup cancelled", zap.Int("completed", i), zap.Int("total", len(sizes)))
				return nil
			}
			return fmt.Errorf("%w: %s: %w", ErrWarmup, size, err)
		}

		logger.Debug("warmup pass complete",
			zap.Stringer("size", size),
			zap.Duration("duration", time.Since(start)))
	}
	return nil
}

func warmupOnce(ctx context.Context, pkg *ModelPackage, height, width int) error {
	in, err := tensor.Zeros(1, height, width, 3)
	if err != nil {
		return err
	}
	defer in.Dispose()

	out, err := pkg.Model.Predict(ctx, in)
	if err != nil {
		return err
	}
	out.Dispose()
	return nil
}
