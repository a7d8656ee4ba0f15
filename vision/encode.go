package vision

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	"go_upscaler/tensor"
)

// DataURIPrefix is prepended by DataURI.
const DataURIPrefix = "data:image/png;base64,"

// EncodePNG encodes an image as PNG bytes.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

// TensorToPNG clamps an RGB tensor to the pixel range and encodes it as PNG.
func TensorToPNG(t *tensor.Tensor) ([]byte, error) {
	img, err := TensorToImage(t)
	if err != nil {
		return nil, err
	}
	return EncodePNG(img)
}

// TensorToBase64 returns the standard base64 encoding of the tensor as a PNG.
// PNG is lossless, so decoding the result yields exactly the clamped and
// rounded tensor values.
func TensorToBase64(t *tensor.Tensor) (string, error) {
	data, err := TensorToPNG(t)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

// Base64ToTensor decodes a string produced by TensorToBase64 (with or without
// the data URI prefix) back into a rank-3 tensor.
func Base64ToTensor(s string) (*tensor.Tensor, error) {
	if len(s) >= len(DataURIPrefix) && s[:len(DataURIPrefix)] == DataURIPrefix {
		s = s[len(DataURIPrefix):]
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	return DecodeToTensor(data)
}

// DataURI wraps a base64 PNG payload as a data URI suitable for <img src>.
func DataURI(b64 string) string {
	return DataURIPrefix + b64
}
