package srruntime

import (
	"context"
	"fmt"
	"image"
	"sync/atomic"

	"golang.org/x/image/draw"

	"go_upscaler/tensor"
)

// pixelScale maps the 0-255 tensor range onto 16-bit color channels.
const pixelScale = 0xffff / 255.0

// interpolationModel upscales with a fixed resampling kernel. It holds no
// per-call state, so concurrent Predict calls need no locking.
type interpolationModel struct {
	scale  int
	kernel draw.Interpolator
	closed atomic.Bool
}

func openInterpolation(_ context.Context, def Definition) (Model, error) {
	kernel, err := interpolator(def.Kernel)
	if err != nil {
		return nil, err
	}
	return &interpolationModel{scale: def.Scale, kernel: kernel}, nil
}

func interpolator(name string) (draw.Interpolator, error) {
	switch name {
	case KernelNearest:
		return draw.NearestNeighbor, nil
	case KernelBilinear:
		return draw.BiLinear, nil
	case KernelCatmullRom:
		return draw.CatmullRom, nil
	default:
		return nil, fmt.Errorf("%w: unknown kernel %q", ErrInvalidDefinition, name)
	}
}

func (m *interpolationModel) Scale() int { return m.scale }

func (m *interpolationModel) Predict(ctx context.Context, in *tensor.Tensor) (*tensor.Tensor, error) {
	if m.closed.Load() {
		return nil, ErrModelClosed
	}
	height, width, err := checkInput(in)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	src := toRGBA64(in.Data(), width, height)
	dst := image.NewRGBA64(image.Rect(0, 0, width*m.scale, height*m.scale))
	m.kernel.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	return tensor.New([]int{1, height * m.scale, width * m.scale, Channels}, fromRGBA64(dst))
}

func (m *interpolationModel) Dispose() error {
	m.closed.Store(true)
	return nil
}

// toRGBA64 packs an HWC pixel slice into an opaque 16-bit image. Values
// outside [0,255] are clamped.
func toRGBA64(data []float32, width, height int) *image.RGBA64 {
	img := image.NewRGBA64(image.Rect(0, 0, width, height))
	for i, p := 0, 0; i < width*height; i, p = i+1, p+8 {
		for c := 0; c < Channels; c++ {
			v := to16(data[i*Channels+c])
			img.Pix[p+2*c] = uint8(v >> 8)
			img.Pix[p+2*c+1] = uint8(v)
		}
		img.Pix[p+6] = 0xff
		img.Pix[p+7] = 0xff
	}
	return img
}

func fromRGBA64(img *image.RGBA64) []float32 {
	n := img.Rect.Dx() * img.Rect.Dy()
	out := make([]float32, n*Channels)
	for i, p := 0, 0; i < n; i, p = i+1, p+8 {
		for c := 0; c < Channels; c++ {
			v := uint16(img.Pix[p+2*c])<<8 | uint16(img.Pix[p+2*c+1])
			out[i*Channels+c] = float32(v) / pixelScale
		}
	}
	return out
}

func to16(v float32) uint16 {
	switch {
	case !(v > 0):
		return 0
	case v >= 255:
		return 0xffff
	default:
		return uint16(v*pixelScale + 0.5)
	}
}
