package core

import "fmt"

// Byte size constants (binary units).
const (
	BytesPerKB int64 = 1024
	BytesPerMB int64 = 1024 * BytesPerKB
	BytesPerGB int64 = 1024 * BytesPerMB
)

// FormatBytes converts a byte count to a human-readable string such as
// "512 B", "1.50 KB" or "2.00 GB". Negative values are treated as 0.
func FormatBytes(bytes int64) string {
	switch {
	case bytes < 0:
		return "0 B"
	case bytes >= BytesPerGB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(BytesPerGB))
	case bytes >= BytesPerMB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(BytesPerMB))
	case bytes >= BytesPerKB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(BytesPerKB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}
