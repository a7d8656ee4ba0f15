package srruntime

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// OpenFunc opens a model for a definition that has passed Validate.
type OpenFunc func(ctx context.Context, def Definition) (Model, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]OpenFunc{}
)

func init() {
	Register(RuntimeInterpolation, openInterpolation)
	Register(RuntimeONNX, openONNX)
}

// Register makes a runtime available under kind, replacing any previous one.
func Register(kind string, open OpenFunc) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[kind] = open
}

// Runtimes returns the registered runtime kinds in sorted order.
func Runtimes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	kinds := make([]string, 0, len(registry))
	for k := range registry {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Open applies defaults, validates def and opens it with the matching runtime.
func Open(ctx context.Context, def Definition) (Model, error) {
	def = def.WithDefaults()

	registryMu.RLock()
	open, ok := registry[def.Runtime]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRuntime, def.Runtime)
	}

	if err := def.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return open(ctx, def)
}
