package upscaler

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"go_upscaler/tensor"
	"go_upscaler/vision"
)

func TestNormalize_Rank3BecomesBatchOfOne(t *testing.T) {
	for _, size := range [][2]int{{1, 1}, {3, 5}, {16, 9}} {
		in := gradient(t, size[0], size[1])
		out, owned, err := Normalize(context.Background(), TensorInput(in), nil)
		if err != nil {
			t.Fatalf("%v: Normalize: %v", size, err)
		}
		if !owned {
			t.Errorf("%v: rank-3 input must yield an owned tensor", size)
		}
		if want := []int{1, size[0], size[1], 3}; !slices.Equal(out.Shape(), want) {
			t.Errorf("%v: shape = %v, want %v", size, out.Shape(), want)
		}
		if !slices.Equal(out.Data(), in.Data()) {
			t.Errorf("%v: pixel data changed", size)
		}
		if in.Disposed() {
			t.Errorf("%v: caller's tensor was disposed", size)
		}
		out.Dispose()
		in.Dispose()
	}
}

func TestNormalize_Rank4PassesThrough(t *testing.T) {
	in, _ := tensor.Zeros(1, 2, 2, 3)
	defer in.Dispose()
	out, owned, err := Normalize(context.Background(), TensorInput(in), nil)
	if err != nil {
		t.Fatal(err)
	}
	if owned || out != in {
		t.Error("batched tensor should be returned as-is and not owned")
	}
}

func TestNormalize_ShapeErrors(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int
		want    error
		wantMsg string
	}{
		{"one channel", []int{4, 4, 1}, ErrInvalidChannels, ""},
		{"four channels", []int{4, 4, 4}, ErrInvalidChannels, ""},
		{"batched four channels", []int{1, 4, 4, 4}, ErrInvalidChannels, ""},
		{"batch of two", []int{2, 4, 4, 3}, ErrInvalidTensorRank, "batch size must be 1"},
		{"rank two", []int{4, 3}, ErrInvalidTensorRank, ""},
		{"rank five", []int{1, 1, 2, 2, 3}, ErrInvalidTensorRank, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := tensor.Zeros(tt.shape...)
			if err != nil {
				t.Fatal(err)
			}
			defer in.Dispose()

			out, _, err := Normalize(context.Background(), TensorInput(in), nil)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if out != nil {
				t.Error("no tensor may be returned on error")
			}
			var shapeErr *ShapeError
			if !errors.As(err, &shapeErr) || !slices.Equal(shapeErr.Shape, tt.shape) {
				t.Errorf("error does not carry the shape: %v", err)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("err = %q, want it to mention %q", err, tt.wantMsg)
			}
		})
	}
}

func TestInputFrom(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	tsr, _ := tensor.Zeros(2, 2, 3)
	defer tsr.Dispose()

	valid := []struct {
		v    any
		want InputKind
	}{
		{tsr, InputTensor},
		{[]byte{1, 2, 3}, InputBytes},
		{"cat.png", InputPath},
		{img, InputImage},
		{PathInput("x"), InputPath},
	}
	for _, tt := range valid {
		in, err := InputFrom(tt.v)
		if err != nil || in.Kind() != tt.want {
			t.Errorf("InputFrom(%T) = %v, %v; want kind %v", tt.v, in.Kind(), err, tt.want)
		}
	}

	for _, v := range []any{42, 3.5, nil, struct{}{}, (*tensor.Tensor)(nil), Input{}} {
		if _, err := InputFrom(v); !errors.Is(err, ErrInvalidInput) {
			t.Errorf("InputFrom(%#v) error = %v, want ErrInvalidInput", v, err)
		}
	}

	if _, _, err := Normalize(context.Background(), Input{}, nil); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("zero Input: %v", err)
	}
}

func TestNormalize_OtherInputKinds(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(1, 1, color.NRGBA{R: 10, G: 20, B: 30, A: 255})
	data, err := vision.EncodePNG(img)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "img.png")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, in := range []Input{BytesInput(data), PathInput(path), ImageInput(img)} {
		t.Run(in.Kind().String(), func(t *testing.T) {
			out, owned, err := Normalize(context.Background(), in, nil)
			if err != nil {
				t.Fatal(err)
			}
			defer out.Dispose()
			if !owned || !slices.Equal(out.Shape(), []int{1, 2, 3, 3}) {
				t.Errorf("shape = %v, owned = %v", out.Shape(), owned)
			}
			px := out.Data()[(1*3+1)*3:]
			if px[0] != 10 || px[1] != 20 || px[2] != 30 {
				t.Errorf("pixel (1,1) = %v", px[:3])
			}
		})
	}

	missing := PathInput(filepath.Join(t.TempDir(), "nope.png"))
	if _, _, err := Normalize(context.Background(), missing, nil); !errors.Is(err, ErrInvalidImageSource) {
		t.Errorf("missing file: %v, want ErrInvalidImageSource", err)
	}
}
