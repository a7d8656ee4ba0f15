package upscaler

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"go_upscaler/core"
	"go_upscaler/logging"
	"go_upscaler/tensor"
)

// State is the lifecycle stage of an Upscaler.
type State int32

const (
	StateLoading State = iota
	StateWarming
	StateReady
	StateFailed
	StateDisposed
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateWarming:
		return "warming"
	case StateReady:
		return "ready"
	case StateFailed:
		return "failed"
	case StateDisposed:
		return "disposed"
	default:
		return "unknown"
	}
}

// Options configures an Upscaler.
type Options struct {
	// Model defaults to Builtin(DefaultModel).
	Model Descriptor
	// WarmupSizes are run once after the model loads.
	WarmupSizes []WarmupSize

	// Cache fetches models that reference a URL.
	Cache *core.ModelCache
	// HTTPClient fetches URL inputs. Defaults to http.DefaultClient.
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Upscaler loads a model once and runs upscales against it.
//
// New starts loading and warming the model in the background; every method
// waits for that to finish. Abort cancels the operations currently in flight
// without affecting later calls. All methods are safe for concurrent use,
// except that Dispose must not race with other calls.
type Upscaler struct {
	opts   Options
	logger *zap.Logger

	// loaded is closed once the model has loaded or failed to; ready is
	// closed once warmup has also finished.
	loaded    chan struct{}
	ready     chan struct{}
	pkg       *ModelPackage
	loadErr   error
	warmupErr error
	state     atomic.Int32

	mu          sync.Mutex
	abortCtx    context.Context
	abortCancel context.CancelCauseFunc

	disposeOnce sync.Once
	disposeErr  error
}

// New creates an Upscaler and starts loading its model. It does not block.
func New(opts Options) *Upscaler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Model == nil {
		opts.Model = Builtin(DefaultModel)
	}

	u := &Upscaler{
		opts:   opts,
		logger: logger,
		loaded: make(chan struct{}),
		ready:  make(chan struct{}),
	}
	u.abortCtx, u.abortCancel = context.WithCancelCause(context.Background())
	u.state.Store(int32(StateLoading))

	go u.initialize(u.token())
	return u
}

// initialize loads the model, then warms it. token is the abort token at
// construction, so Abort before readiness also skips the warmup.
func (u *Upscaler) initialize(token context.Context) {
	defer close(u.ready)

	pkg, err := LoadModel(context.Background(), u.opts.Model, LoaderConfig{Cache: u.opts.Cache, Logger: u.logger})
	u.pkg, u.loadErr = pkg, err
	close(u.loaded)
	if err != nil {
		u.state.Store(int32(StateFailed))
		u.logger.Error("model load failed", zap.Error(err))
		return
	}

	if len(u.opts.WarmupSizes) > 0 {
		u.state.Store(int32(StateWarming))
		start := time.Now()
		if err := runWarmup(token, pkg, u.opts.WarmupSizes, u.logger); err != nil {
			u.warmupErr = err
			u.state.Store(int32(StateFailed))
			u.logger.Error("warmup failed", zap.Error(err))
			return
		}
		u.logger.Info("warmup complete",
			zap.Int("sizes", len(u.opts.WarmupSizes)),
			zap.Duration("duration", time.Since(start)))
	}
	u.state.Store(int32(StateReady))
}

// State returns the current lifecycle state.
func (u *Upscaler) State() State {
	return State(u.state.Load())
}

// token returns the current abort token.
func (u *Upscaler) token() context.Context {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.abortCtx
}

// Abort cancels every operation that captured the current abort token and
// installs a fresh token for subsequent calls.
func (u *Upscaler) Abort() {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.abortCancel(ErrAborted)
	u.abortCtx, u.abortCancel = context.WithCancelCause(context.Background())
	u.logger.Debug("abort requested")
}

// withToken derives a context that is done when either ctx or token is.
// It is a child of token, so Abort is observed as soon as it returns; ctx
// cancellation propagates through context.AfterFunc. Values of ctx are not
// carried over.
func withToken(ctx, token context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancelCause(token)
	if ctx.Err() != nil {
		cancel(context.Cause(ctx))
	}
	stop := context.AfterFunc(ctx, func() {
		cancel(context.Cause(ctx))
	})
	return merged, func() {
		stop()
		cancel(context.Canceled)
	}
}

// waitReady blocks until load and warmup have finished or ctx is done.
func (u *Upscaler) waitReady(ctx context.Context) error {
	select {
	case <-u.ready:
	case <-ctx.Done():
		return cancelled(ctx)
	}
	if u.loadErr != nil {
		return u.loadErr
	}
	if u.State() == StateDisposed {
		return ErrDisposed
	}
	return nil
}

// Upscale upscales in. The result's representation follows opts.Output.
//
// The abort token is captured on entry: Abort cancels this call even while
// it is still waiting for the model, and calls started after Abort are not
// affected.
func (u *Upscaler) Upscale(ctx context.Context, in Input, opts UpscaleOptions) (Result, error) {
	ctx, stop := withToken(ctx, u.token())
	defer stop()

	if err := u.waitReady(ctx); err != nil {
		return Result{}, err
	}
	if u.warmupErr != nil {
		return Result{}, u.warmupErr
	}

	opts, err := opts.resolve(u.logger)
	if err != nil {
		return Result{}, err
	}

	input, owned, err := Normalize(ctx, in, u.opts.HTTPClient)
	if err != nil {
		return Result{}, err
	}
	if owned {
		defer input.Dispose()
	}

	out, stats, err := upscaleTensor(ctx, u.pkg, input, opts, u.logger)
	if err != nil {
		if errors.Is(err, ErrCancelled) {
			u.logger.Info("upscale cancelled", zap.Error(err))
		}
		return Result{}, err
	}

	u.logger.Info("upscale complete", logging.UpscaleFields(stats.Metrics()))
	return encodeResult(out, opts, stats)
}

// UpscaleBase64 upscales in and returns a base64 PNG.
func (u *Upscaler) UpscaleBase64(ctx context.Context, in Input, opts UpscaleOptions) (string, error) {
	opts.Output = OutputBase64
	res, err := u.Upscale(ctx, in, opts)
	if err != nil {
		return "", err
	}
	return res.Base64(), nil
}

// UpscaleTensor upscales in and returns a [H,W,3] tensor owned by the caller.
func (u *Upscaler) UpscaleTensor(ctx context.Context, in Input, opts UpscaleOptions) (*tensor.Tensor, error) {
	opts.Output = OutputTensor
	res, err := u.Upscale(ctx, in, opts)
	if err != nil {
		return nil, err
	}
	return res.Tensor(), nil
}

// Warmup runs one dummy inference per size. Cancellation, through ctx or
// Abort, ends the warmup early without error. A failed warmup at
// construction is not cleared by a later successful Warmup.
func (u *Upscaler) Warmup(ctx context.Context, sizes []WarmupSize) error {
	ctx, stop := withToken(ctx, u.token())
	defer stop()

	select {
	case <-u.ready:
	case <-ctx.Done():
		return nil
	}
	if u.loadErr != nil {
		return u.loadErr
	}
	if u.State() == StateDisposed {
		return ErrDisposed
	}

	return runWarmup(ctx, u.pkg, sizes, u.logger)
}

// Model returns the loaded model package, waiting for the load to finish.
// A failed load returns the ErrModelLoad error.
func (u *Upscaler) Model(ctx context.Context) (*ModelPackage, error) {
	select {
	case <-u.loaded:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if u.loadErr != nil {
		return nil, u.loadErr
	}
	return u.pkg, nil
}

// Dispose waits for loading and warmup to finish, then releases the model.
// It returns the load error if the model never loaded. Subsequent calls
// return the result of the first.
func (u *Upscaler) Dispose(ctx context.Context) error {
	select {
	case <-u.ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	u.disposeOnce.Do(func() {
		u.mu.Lock()
		u.abortCancel(ErrDisposed)
		u.mu.Unlock()

		if u.loadErr != nil {
			u.disposeErr = u.loadErr
			return
		}
		u.disposeErr = u.pkg.Model.Dispose()
		u.state.Store(int32(StateDisposed))
		u.logger.Info("model disposed", zap.String("model", u.pkg.Definition.Name))
	})
	return u.disposeErr
}
