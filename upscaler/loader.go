package upscaler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"go_upscaler/core"
	"go_upscaler/logging"
	"go_upscaler/srruntime"
)

// ModelPackage is a loaded model together with the definition it came from.
type ModelPackage struct {
	Model      srruntime.Model
	Definition srruntime.Definition
}

// LoaderConfig supplies the collaborators LoadModel needs.
type LoaderConfig struct {
	// Cache fetches definitions that reference a URL. Defaults to a cache in
	// the application data directory.
	Cache  *core.ModelCache
	Logger *zap.Logger
}

// LoadModel resolves d and opens the model. Every failure, including a
// failing descriptor, is reported as ErrModelLoad wrapping the cause.
func LoadModel(ctx context.Context, d Descriptor, cfg LoaderConfig) (*ModelPackage, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d == nil {
		d = Builtin(DefaultModel)
	}

	start := time.Now()
	def, err := d(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: resolve descriptor: %w", ErrModelLoad, err)
	}
	def = def.WithDefaults()
	if err := def.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelLoad, err)
	}

	switch {
	case def.URL != "" && def.Path == "":
		cache := cfg.Cache
		if cache == nil {
			cache = core.NewModelCache(core.GetDataFilePath("models"), core.WithCacheLogger(logger))
		}
		path, err := cache.Fetch(ctx, def.URL, def.SHA256)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, def, err)
		}
		def.Path = path
	case def.Path != "" && def.SHA256 != "":
		if err := core.VerifyChecksum(def.Path, def.SHA256); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, def, err)
		}
	}

	model, err := srruntime.Open(ctx, def)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrModelLoad, def, err)
	}

	fields := logging.ModelFields(def.Name, def.Runtime, def.Scale)
	logger.Info("model loaded", append(fields, zap.Duration("duration", time.Since(start)))...)

	return &ModelPackage{Model: model, Definition: def}, nil
}
