package metrics

import (
	"sync"
	"time"
)

type modelTotals struct {
	runs, completed, failed, cancelled, tiles int64

	completedDuration time.Duration
	completedPixels   int64
}

func (t *modelTotals) add(r RunRecord) {
	t.runs++
	t.tiles += int64(r.Tiles)
	switch r.Status {
	case StatusCompleted:
		t.completed++
		t.completedDuration += r.Duration
		t.completedPixels += r.OutputPixels
	case StatusCancelled:
		t.cancelled++
	default:
		t.failed++
	}
}

func (t *modelTotals) stats() *ModelStats {
	s := &ModelStats{
		Runs:      t.runs,
		Completed: t.completed,
		Failed:    t.failed,
		Cancelled: t.cancelled,
		Tiles:     t.tiles,
	}
	if t.completed > 0 {
		s.AvgDurationMS = (t.completedDuration / time.Duration(t.completed)).Milliseconds()
	}
	if secs := t.completedDuration.Seconds(); secs > 0 {
		s.MegapixelsPerSecond = float64(t.completedPixels) / 1e6 / secs
	}
	return s
}

// Store is an in-memory, concurrency-safe aggregate of runs and the latest
// GPU sample. It resets when the process restarts; durable history lives in
// the db package.
type Store struct {
	mu sync.RWMutex

	totals  modelTotals
	byModel map[string]*modelTotals

	gpu      *GPUMetrics
	gpuError string

	startTime time.Time
	version   string
}

func NewStore(version string, startTime time.Time) *Store {
	return &Store{
		byModel:   make(map[string]*modelTotals),
		startTime: startTime,
		version:   version,
	}
}

// RecordRun adds a finished run to the totals.
func (s *Store) RecordRun(r RunRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.totals.add(r)
	model := r.Model
	if model == "" {
		model = "unknown"
	}
	t, ok := s.byModel[model]
	if !ok {
		t = &modelTotals{}
		s.byModel[model] = t
	}
	t.add(r)
}

// UpdateGPU stores the latest GPU sample, or the reason there is none.
func (s *Store) UpdateGPU(m GPUMetrics, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		s.gpu = nil
		s.gpuError = err.Error()
		return
	}
	s.gpu = &m
	s.gpuError = ""
}

// Snapshot returns a copy of the current aggregates.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		Version:  s.version,
		Uptime:   time.Since(s.startTime).Round(time.Second).String(),
		Totals:   *s.totals.stats(),
		ByModel:  make(map[string]*ModelStats, len(s.byModel)),
		GPUError: s.gpuError,
	}
	for name, t := range s.byModel {
		snap.ByModel[name] = t.stats()
	}
	if s.gpu != nil {
		gpu := *s.gpu
		snap.GPU = &gpu
	}
	return snap
}
