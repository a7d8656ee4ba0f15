// Package srruntime runs super-resolution models behind a small, uniform API.
//
// A model is described by a Definition (usually loaded from YAML) and opened
// through the runtime registered for its kind:
//
//   - "interpolation": pure-Go resampling via golang.org/x/image/draw. Always
//     available; used for the built-in models and in tests.
//   - "onnx": ONNX Runtime via github.com/yalue/onnxruntime_go. Only compiled
//     in with the "ort" build tag; otherwise Open returns ErrRuntimeUnavailable.
//
// # Quick Start
//
//	def := srruntime.Definition{
//	    Name:    "bicubic-2x",
//	    Runtime: srruntime.RuntimeInterpolation,
//	    Scale:   2,
//	    Kernel:  srruntime.KernelCatmullRom,
//	}
//	model, err := srruntime.Open(ctx, def)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer model.Dispose()
//
//	out, err := model.Predict(ctx, in) // in: [1,H,W,3], out: [1,H*2,W*2,3]
//
// # Tensor Contract
//
// Predict always takes and returns NHWC tensors in the 0-255 pixel range.
// Runtimes convert to the model's own layout (Definition.Layout) and value
// range (Definition.InputRange) internally. The caller owns both the input
// and the returned tensor.
//
// # Build Tags
//
//   - Default: go build
//     The onnx runtime is registered but reports ErrRuntimeUnavailable.
//
//   - ONNX: CGO_ENABLED=1 go build -tags ort
//     Requires the onnxruntime shared library. Its location is read from
//     ONNXRUNTIME_LIB (see LoadRuntimeConfig).
//
// # Thread Safety
//
// Models returned by Open are safe for concurrent Predict calls. The ONNX
// runtime serializes session runs internally.
package srruntime
