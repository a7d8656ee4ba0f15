// Package metrics aggregates upscale throughput and GPU utilization in memory
// for the HTTP stats endpoint.
package metrics

import "time"

// Run statuses, matching the values stored in run history.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// RunRecord is one finished upscale.
type RunRecord struct {
	Model        string
	Status       string
	Duration     time.Duration
	Tiles        int
	OutputPixels int64
}

// GPUMetrics is one nvidia-smi sample. Memory is in bytes.
type GPUMetrics struct {
	Utilization float64   `json:"utilization"`
	Temperature float64   `json:"temperature"`
	MemoryTotal int64     `json:"memory_total"`
	MemoryUsed  int64     `json:"memory_used"`
	MemoryFree  int64     `json:"memory_free"`
	SampledAt   time.Time `json:"sampled_at"`
}

// ModelStats aggregates the runs of one model.
type ModelStats struct {
	Runs      int64 `json:"runs"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Cancelled int64 `json:"cancelled"`
	Tiles     int64 `json:"tiles"`

	// AvgDurationMS and MegapixelsPerSecond cover completed runs only.
	AvgDurationMS       int64   `json:"avg_duration_ms"`
	MegapixelsPerSecond float64 `json:"megapixels_per_second"`
}

// Snapshot is the point-in-time view served by the stats endpoint.
type Snapshot struct {
	Version  string                 `json:"version"`
	Uptime   string                 `json:"uptime"`
	Totals   ModelStats             `json:"totals"`
	ByModel  map[string]*ModelStats `json:"by_model"`
	GPU      *GPUMetrics            `json:"gpu,omitempty"`
	GPUError string                 `json:"gpu_error,omitempty"`
}
