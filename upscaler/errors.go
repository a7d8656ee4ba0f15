package upscaler

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors. Use errors.Is to match them; most are wrapped with detail.
var (
	// Input normalization
	ErrInvalidInput       = errors.New("upscaler: invalid input")
	ErrInvalidImageSource = errors.New("upscaler: image source not found")
	ErrInvalidChannels    = errors.New("upscaler: input must have 3 channels")
	ErrInvalidTensorRank  = errors.New("upscaler: input tensor must be rank 3 or 4")

	// Lifecycle
	ErrModelLoad = errors.New("upscaler: failed to load model")
	ErrWarmup    = errors.New("upscaler: warmup failed")
	ErrDisposed  = errors.New("upscaler: upscaler has been disposed")

	// Cancellation. ErrAborted is the cause recorded when Abort is called.
	ErrCancelled = errors.New("upscaler: upscale cancelled")
	ErrAborted   = errors.New("upscaler: aborted")

	// Options
	ErrInvalidOptions    = errors.New("upscaler: invalid options")
	ErrInvalidWarmupSize = errors.New("upscaler: invalid warmup size")
)

// ShapeError reports a tensor whose shape failed validation. Kind is
// ErrInvalidChannels or ErrInvalidTensorRank. Detail, when set, narrows the
// reason within Kind.
type ShapeError struct {
	Kind   error
	Detail string
	Shape  []int
}

func (e *ShapeError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%v: %s: got shape %v", e.Kind, e.Detail, e.Shape)
	}
	return fmt.Sprintf("%v: got shape %v", e.Kind, e.Shape)
}

func (e *ShapeError) Unwrap() error {
	return e.Kind
}

// cancelled builds the error returned when ctx stops an upscale. It matches
// ErrCancelled, ctx.Err() and, when different, the cancellation cause.
func cancelled(ctx context.Context) error {
	err := ctx.Err()
	if err == nil {
		err = context.Canceled
	}
	cause := context.Cause(ctx)
	if cause == nil || errors.Is(cause, err) {
		return fmt.Errorf("%w: %w", ErrCancelled, err)
	}
	return fmt.Errorf("%w: %w: %w", ErrCancelled, err, cause)
}
