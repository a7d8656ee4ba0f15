//go:build !ort

package srruntime

import (
	"context"
	"fmt"
)

// openONNX reports that this binary was built without onnxruntime support.
func openONNX(_ context.Context, def Definition) (Model, error) {
	return nil, fmt.Errorf("%w: %s requires a build with -tags ort", ErrRuntimeUnavailable, def.Name)
}

// ShutdownEnvironment is a no-op without onnxruntime.
func ShutdownEnvironment() error {
	return nil
}

// BackendInfo describes the available inference backends.
func BackendInfo() string {
	return "interpolation (onnxruntime not linked)"
}
