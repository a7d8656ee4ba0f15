package srruntime

import "errors"

// Sentinel errors for super-resolution runtime operations.
var (
	// Definition errors
	ErrInvalidDefinition = errors.New("srruntime: invalid model definition")
	ErrUnknownRuntime    = errors.New("srruntime: unknown runtime")

	// Loading errors
	ErrModelNotFound      = errors.New("srruntime: model file not found")
	ErrRuntimeUnavailable = errors.New("srruntime: runtime not available in this build")

	// Inference errors
	ErrInferenceFailed = errors.New("srruntime: inference failed")
	ErrInvalidTensor   = errors.New("srruntime: invalid input tensor")
	ErrModelClosed     = errors.New("srruntime: model has been disposed")
)
