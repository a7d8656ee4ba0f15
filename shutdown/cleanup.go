package shutdown

import (
	"context"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// CleanupPartialDownloads returns a handler that removes the ".part" files an
// interrupted model download leaves in dir. Failures are logged, not
// returned, so the remaining handlers still run.
func CleanupPartialDownloads(logger *zap.Logger, dir string) Func {
	return func(ctx context.Context) error {
		matches, err := filepath.Glob(filepath.Join(dir, "*.part"))
		if err != nil || len(matches) == 0 {
			return nil
		}

		removed := 0
		for _, path := range matches {
			if ctx.Err() != nil {
				logger.Warn("partial download cleanup interrupted",
					zap.Int("removed", removed),
					zap.Int("remaining", len(matches)-removed))
				return nil
			}
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				logger.Warn("failed to remove partial download",
					zap.String("file", filepath.Base(path)),
					zap.Error(err))
				continue
			}
			removed++
		}

		logger.Info("removed partial downloads", zap.Int("count", removed), zap.String("dir", dir))
		return nil
	}
}
