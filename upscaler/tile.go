package upscaler

import "go_upscaler/tensor"

// tile is one cell of the patch grid.
type tile struct {
	Row, Col int

	// Core is the part of the image this tile is responsible for. Padded is
	// Core grown by the padding on every side and clipped to the image; it is
	// what the model sees.
	Core   tensor.Region
	Padded tensor.Region
}

// trim returns the region of the upscaled padded tile that corresponds to
// the tile's core.
func (t tile) trim(scale int) tensor.Region {
	y0 := (t.Core.Y0 - t.Padded.Y0) * scale
	x0 := (t.Core.X0 - t.Padded.X0) * scale
	return tensor.Region{
		Y0: y0,
		X0: x0,
		Y1: y0 + t.Core.Height()*scale,
		X1: x0 + t.Core.Width()*scale,
	}
}

// planTiles splits a height x width image into ceil(H/P) x ceil(W/P) tiles in
// row-major order. Edge tiles are smaller when P does not divide the image.
func planTiles(height, width, patchSize, padding int) (rows, cols int, tiles []tile) {
	rows = (height + patchSize - 1) / patchSize
	cols = (width + patchSize - 1) / patchSize
	tiles = make([]tile, 0, rows*cols)

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			core := tensor.Region{
				Y0: r * patchSize,
				X0: c * patchSize,
				Y1: min((r+1)*patchSize, height),
				X1: min((c+1)*patchSize, width),
			}
			padded := tensor.Region{
				Y0: max(core.Y0-padding, 0),
				X0: max(core.X0-padding, 0),
				Y1: min(core.Y1+padding, height),
				X1: min(core.X1+padding, width),
			}
			tiles = append(tiles, tile{Row: r, Col: c, Core: core, Padded: padded})
		}
	}
	return rows, cols, tiles
}
