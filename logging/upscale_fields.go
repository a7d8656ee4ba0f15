package logging

import (
	"time"

	"go.uber.org/zap"
)

// UpscaleFields nests m under the "upscale" key.
func UpscaleFields(m UpscaleMetrics) zap.Field {
	return zap.Object("upscale", m)
}

// ModelFields identifies a loaded model.
func ModelFields(name, runtime string, scale int) []zap.Field {
	return []zap.Field{
		zap.String("model", name),
		zap.String("runtime", runtime),
		zap.Int("scale", scale),
	}
}

// TileFields locates a tile in its grid.
func TileFields(row, col, rows, cols int) []zap.Field {
	return []zap.Field{
		zap.Int("row", row),
		zap.Int("col", col),
		zap.Int("rows", rows),
		zap.Int("cols", cols),
	}
}

// DownloadFields describes a finished model download. The URL is redacted.
func DownloadFields(rawURL string, bytes int64, elapsed time.Duration) []zap.Field {
	return []zap.Field{
		zap.String("url", RedactURL(rawURL)),
		zap.Int64("bytes", bytes),
		zap.Duration("duration", elapsed),
	}
}
