package srruntime

import (
	"os"
	"strconv"
)

// RuntimeConfig holds process-wide inference runtime settings.
type RuntimeConfig struct {
	LibraryPath    string // onnxruntime shared library; empty uses the platform default
	IntraOpThreads int    // 0 lets onnxruntime decide
}

// LoadRuntimeConfig reads runtime settings from environment variables:
//
//	ONNXRUNTIME_LIB=/usr/lib/libonnxruntime.so
//	ONNXRUNTIME_THREADS=4
func LoadRuntimeConfig() RuntimeConfig {
	return RuntimeConfig{
		LibraryPath:    os.Getenv("ONNXRUNTIME_LIB"),
		IntraOpThreads: parseThreads(os.Getenv("ONNXRUNTIME_THREADS")),
	}
}

// parseThreads returns 0 for empty, invalid or negative values.
func parseThreads(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
