package srruntime

// toModelInput converts an HWC pixel slice in [0,255] into the model's layout
// and value range. The result is a fresh slice.
func toModelInput(src []float32, height, width int, layout string, inputRange float32) []float32 {
	factor := inputRange / 255
	out := make([]float32, len(src))
	if layout == LayoutNHWC {
		for i, v := range src {
			out[i] = v * factor
		}
		return out
	}

	plane := height * width
	for i := 0; i < plane; i++ {
		for c := 0; c < Channels; c++ {
			out[c*plane+i] = src[i*Channels+c] * factor
		}
	}
	return out
}

// fromModelOutput is the inverse of toModelInput for the model's output.
func fromModelOutput(src []float32, height, width int, layout string, inputRange float32) []float32 {
	factor := 255 / inputRange
	out := make([]float32, len(src))
	if layout == LayoutNHWC {
		for i, v := range src {
			out[i] = v * factor
		}
		return out
	}

	plane := height * width
	for i := 0; i < plane; i++ {
		for c := 0; c < Channels; c++ {
			out[i*Channels+c] = src[c*plane+i] * factor
		}
	}
	return out
}

// modelShape returns the model-side tensor shape for an image of the given size.
func modelShape(height, width int, layout string) []int64 {
	if layout == LayoutNHWC {
		return []int64{1, int64(height), int64(width), Channels}
	}
	return []int64{1, Channels, int64(height), int64(width)}
}
