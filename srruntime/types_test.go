package srruntime

import (
	"errors"
	"testing"
)

func TestDefinitionWithDefaults(t *testing.T) {
	interp := Definition{Runtime: " Interpolation ", Scale: 2}.WithDefaults()
	if interp.Runtime != RuntimeInterpolation {
		t.Errorf("Runtime = %q, want %q", interp.Runtime, RuntimeInterpolation)
	}
	if interp.Channels != Channels {
		t.Errorf("Channels = %d, want %d", interp.Channels, Channels)
	}
	if interp.Kernel != KernelCatmullRom {
		t.Errorf("Kernel = %q, want %q", interp.Kernel, KernelCatmullRom)
	}

	onnx := Definition{Runtime: RuntimeONNX, Scale: 4, Path: "m.onnx"}.WithDefaults()
	if onnx.InputName != "input" || onnx.OutputName != "output" {
		t.Errorf("tensor names = %q/%q, want input/output", onnx.InputName, onnx.OutputName)
	}
	if onnx.Layout != LayoutNCHW {
		t.Errorf("Layout = %q, want %q", onnx.Layout, LayoutNCHW)
	}
	if onnx.InputRange != 1 {
		t.Errorf("InputRange = %v, want 1", onnx.InputRange)
	}
}

func TestDefinitionValidate(t *testing.T) {
	tests := []struct {
		name    string
		def     Definition
		wantErr bool
	}{
		{
			name: "valid interpolation",
			def:  Definition{Runtime: RuntimeInterpolation, Scale: 2},
		},
		{
			name: "valid onnx",
			def:  Definition{Runtime: RuntimeONNX, Scale: 4, Path: "model.onnx"},
		},
		{
			name: "onnx with url only",
			def:  Definition{Runtime: RuntimeONNX, Scale: 4, URL: "https://example.com/m.onnx"},
		},
		{
			name:    "missing runtime",
			def:     Definition{Scale: 2},
			wantErr: true,
		},
		{
			name:    "zero scale",
			def:     Definition{Runtime: RuntimeInterpolation},
			wantErr: true,
		},
		{
			name:    "scale too large",
			def:     Definition{Runtime: RuntimeInterpolation, Scale: MaxScale + 1},
			wantErr: true,
		},
		{
			name:    "four channels",
			def:     Definition{Runtime: RuntimeInterpolation, Scale: 2, Channels: 4},
			wantErr: true,
		},
		{
			name:    "unknown kernel",
			def:     Definition{Runtime: RuntimeInterpolation, Scale: 2, Kernel: "lanczos"},
			wantErr: true,
		},
		{
			name:    "onnx without weights",
			def:     Definition{Runtime: RuntimeONNX, Scale: 2},
			wantErr: true,
		},
		{
			name:    "onnx bad layout",
			def:     Definition{Runtime: RuntimeONNX, Scale: 2, Path: "m.onnx", Layout: "chw"},
			wantErr: true,
		},
		{
			name:    "onnx bad range",
			def:     Definition{Runtime: RuntimeONNX, Scale: 2, Path: "m.onnx", InputRange: 2},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.def.WithDefaults().Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidDefinition) {
					t.Errorf("Validate() error = %v, want ErrInvalidDefinition", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() unexpected error: %v", err)
			}
		})
	}
}

func TestDefinitionString(t *testing.T) {
	got := Definition{Name: "bicubic-2x", Runtime: RuntimeInterpolation, Scale: 2}.String()
	if want := "bicubic-2x (interpolation, x2)"; got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if got := (Definition{Runtime: RuntimeONNX, Scale: 4}).String(); got != "unnamed (onnx, x4)" {
		t.Errorf("String() = %q", got)
	}
}
