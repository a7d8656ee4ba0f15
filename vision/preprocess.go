// Package vision converts between encoded images, image.Image values and the
// NHWC pixel tensors consumed by super-resolution models.
package vision

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"go_upscaler/tensor"
)

// Image preprocessing errors
var (
	ErrInvalidImage      = errors.New("vision: invalid image data")
	ErrInvalidDimensions = errors.New("vision: invalid dimensions")
	ErrEmptyImage        = errors.New("vision: empty image data")
	ErrNotImageTensor    = errors.New("vision: tensor is not an RGB image")
)

// PixelMax is the upper bound of the pixel value range used by image tensors.
const PixelMax = 255

// DecodeImage decodes image data from common formats (PNG, JPEG, GIF, WebP,
// BMP, TIFF).
// This is a pure function with no side effects.
func DecodeImage(data []byte) (image.Image, error) {
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	return img, nil
}

// ToNRGBA converts any image to non-premultiplied RGBA with a zero origin.
// Images that are already *image.NRGBA at the origin are returned as-is.
func ToNRGBA(img image.Image) *image.NRGBA {
	bounds := img.Bounds()

	if nrgba, ok := img.(*image.NRGBA); ok && bounds.Min == (image.Point{}) {
		return nrgba
	}

	dst := image.NewNRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Src)
	return dst
}

// ImageToTensor converts an image into a rank-3 [height, width, 3] tensor
// with values in [0, 255]. The alpha channel is discarded.
func ImageToTensor(img image.Image) (*tensor.Tensor, error) {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("%w: %dx%d", ErrInvalidDimensions, width, height)
	}

	nrgba := ToNRGBA(img)
	data := make([]float32, width*height*3)

	idx := 0
	for y := 0; y < height; y++ {
		row := nrgba.Pix[y*nrgba.Stride : y*nrgba.Stride+width*4]
		for x := 0; x < width; x++ {
			data[idx] = float32(row[x*4])
			data[idx+1] = float32(row[x*4+1])
			data[idx+2] = float32(row[x*4+2])
			idx += 3
		}
	}

	return tensor.New([]int{height, width, 3}, data)
}

// DecodeToTensor decodes image bytes straight into a rank-3 tensor.
func DecodeToTensor(data []byte) (*tensor.Tensor, error) {
	img, err := DecodeImage(data)
	if err != nil {
		return nil, err
	}
	return ImageToTensor(img)
}

// TensorToImage converts a rank-3 or batch-1 rank-4 RGB tensor into an opaque
// image. Values are clamped to [0, 255] and rounded to the nearest integer.
// The tensor is not modified.
func TensorToImage(t *tensor.Tensor) (*image.NRGBA, error) {
	if t == nil || t.Disposed() {
		return nil, fmt.Errorf("%w: nil or disposed tensor", ErrNotImageTensor)
	}
	height, width, err := t.ImageSize()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotImageTensor, err)
	}
	if t.Channels() != 3 {
		return nil, fmt.Errorf("%w: shape %v", ErrNotImageTensor, t.Shape())
	}

	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	data := t.Data()

	idx := 0
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+width*4]
		for x := 0; x < width; x++ {
			row[x*4] = ClampPixel(data[idx])
			row[x*4+1] = ClampPixel(data[idx+1])
			row[x*4+2] = ClampPixel(data[idx+2])
			row[x*4+3] = 0xff
			idx += 3
		}
	}

	return img, nil
}

// ClampPixel clamps v to [0, 255] and rounds it half away from zero.
// NaN maps to 0.
func ClampPixel(v float32) uint8 {
	switch {
	case !(v > 0):
		return 0
	case v >= PixelMax:
		return PixelMax
	default:
		return uint8(v + 0.5)
	}
}
