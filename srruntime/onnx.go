//go:build ort

package srruntime

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"go_upscaler/tensor"
)

var (
	envMu    sync.Mutex
	envReady bool
)

// initEnvironment sets up the onnxruntime environment once per process.
func initEnvironment(cfg RuntimeConfig) error {
	envMu.Lock()
	defer envMu.Unlock()

	if envReady {
		return nil
	}
	if cfg.LibraryPath != "" {
		ort.SetSharedLibraryPath(cfg.LibraryPath)
	}
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("%w: initialize onnxruntime: %v", ErrRuntimeUnavailable, err)
	}
	envReady = true
	return nil
}

// ShutdownEnvironment tears down the onnxruntime environment. Models must be
// disposed first.
func ShutdownEnvironment() error {
	envMu.Lock()
	defer envMu.Unlock()

	if !envReady {
		return nil
	}
	if err := ort.DestroyEnvironment(); err != nil {
		return err
	}
	envReady = false
	return nil
}

// BackendInfo describes the available inference backends.
func BackendInfo() string {
	return "interpolation, onnxruntime " + ort.GetVersion()
}

type onnxModel struct {
	def Definition

	mu      sync.Mutex
	session *ort.DynamicAdvancedSession
}

func openONNX(_ context.Context, def Definition) (Model, error) {
	if _, err := os.Stat(def.Path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, def.Path)
		}
		return nil, fmt.Errorf("access model %s: %w", def.Path, err)
	}

	cfg := LoadRuntimeConfig()
	if err := initEnvironment(cfg); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer options.Destroy()

	if cfg.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(cfg.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra-op threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		def.Path,
		[]string{def.InputName},
		[]string{def.OutputName},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("create session for %s: %w", def.Path, err)
	}

	return &onnxModel{def: def, session: session}, nil
}

func (m *onnxModel) Scale() int { return m.def.Scale }

func (m *onnxModel) Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	height, width, err := checkInput(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	input, err := ort.NewTensor(
		ort.NewShape(modelShape(height, width, m.def.Layout)...),
		toModelInput(in.Data(), height, width, m.def.Layout, m.def.InputRange),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: create input tensor: %v", ErrInferenceFailed, err)
	}
	defer input.Destroy()

	outH, outW := height*m.def.Scale, width*m.def.Scale
	output, err := ort.NewEmptyTensor[float32](ort.NewShape(modelShape(outH, outW, m.def.Layout)...))
	if err != nil {
		return nil, fmt.Errorf("%w: create output tensor: %v", ErrInferenceFailed, err)
	}
	defer output.Destroy()

	if err := m.run(input, output); err != nil {
		return nil, err
	}

	data := fromModelOutput(output.GetData(), outH, outW, m.def.Layout, m.def.InputRange)
	return tensor.New([]int{1, outH, outW, Channels}, data)
}

func (m *onnxModel) run(input, output ort.Value) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return ErrModelClosed
	}
	if err := m.session.Run([]ort.Value{input}, []ort.Value{output}); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrInferenceFailed, m.def.Name, err)
	}
	return nil
}

func (m *onnxModel) Dispose() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.session == nil {
		return nil
	}
	err := m.session.Destroy()
	m.session = nil
	return err
}
