package metrics

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"
)

func TestStore_RecordRun(t *testing.T) {
	s := NewStore("1.2.3", time.Now())

	s.RecordRun(RunRecord{Model: "bicubic-2x", Status: StatusCompleted, Duration: time.Second, Tiles: 4, OutputPixels: 2_000_000})
	s.RecordRun(RunRecord{Model: "bicubic-2x", Status: StatusCompleted, Duration: 3 * time.Second, Tiles: 4, OutputPixels: 2_000_000})
	s.RecordRun(RunRecord{Model: "bicubic-2x", Status: StatusFailed, Duration: time.Hour})
	s.RecordRun(RunRecord{Model: "esrgan", Status: StatusCancelled, Tiles: 2})
	s.RecordRun(RunRecord{Status: StatusFailed})

	snap := s.Snapshot()
	if snap.Version != "1.2.3" {
		t.Errorf("Version = %q", snap.Version)
	}
	if snap.Totals.Runs != 5 || snap.Totals.Completed != 2 || snap.Totals.Failed != 2 || snap.Totals.Cancelled != 1 {
		t.Errorf("Totals = %+v", snap.Totals)
	}
	if snap.Totals.Tiles != 10 {
		t.Errorf("Tiles = %d, want 10", snap.Totals.Tiles)
	}

	bicubic := snap.ByModel["bicubic-2x"]
	if bicubic == nil {
		t.Fatal("no stats for bicubic-2x")
	}
	if bicubic.AvgDurationMS != 2000 {
		t.Errorf("AvgDurationMS = %d, want 2000 (failed runs excluded)", bicubic.AvgDurationMS)
	}
	if bicubic.MegapixelsPerSecond != 1 {
		t.Errorf("MegapixelsPerSecond = %v, want 1", bicubic.MegapixelsPerSecond)
	}
	if snap.ByModel["unknown"] == nil || snap.ByModel["unknown"].Failed != 1 {
		t.Errorf("runs without a model should count as unknown: %+v", snap.ByModel)
	}
}

func TestStore_SnapshotIsCopy(t *testing.T) {
	s := NewStore("dev", time.Now())
	s.RecordRun(RunRecord{Model: "m", Status: StatusCompleted})
	s.UpdateGPU(GPUMetrics{Utilization: 50}, nil)

	snap := s.Snapshot()
	snap.ByModel["m"].Runs = 100
	snap.GPU.Utilization = 0

	again := s.Snapshot()
	if again.ByModel["m"].Runs != 1 || again.GPU.Utilization != 50 {
		t.Errorf("snapshot shares state with the store: %+v %+v", again.ByModel["m"], again.GPU)
	}
}

func TestStore_UpdateGPU(t *testing.T) {
	s := NewStore("dev", time.Now())
	if snap := s.Snapshot(); snap.GPU != nil || snap.GPUError != "" {
		t.Fatalf("fresh store has GPU data: %+v", snap)
	}

	s.UpdateGPU(GPUMetrics{Utilization: 80}, nil)
	if snap := s.Snapshot(); snap.GPU == nil || snap.GPU.Utilization != 80 {
		t.Errorf("GPU = %+v", snap.GPU)
	}

	s.UpdateGPU(GPUMetrics{}, ErrNoGPU)
	snap := s.Snapshot()
	if snap.GPU != nil || snap.GPUError != ErrNoGPU.Error() {
		t.Errorf("after error: GPU = %+v, GPUError = %q", snap.GPU, snap.GPUError)
	}
}

func TestStore_Concurrent(t *testing.T) {
	s := NewStore("dev", time.Now())
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				s.RecordRun(RunRecord{Model: "m", Status: StatusCompleted, Duration: time.Millisecond})
				_ = s.Snapshot()
			}
		}()
	}
	wg.Wait()
	if got := s.Snapshot().Totals.Runs; got != 800 {
		t.Errorf("Runs = %d, want 800", got)
	}
}

func TestParseNvidiaSMIOutput(t *testing.T) {
	tests := []struct {
		name    string
		output  string
		want    GPUMetrics
		wantErr bool
	}{
		{
			name:   "single gpu",
			output: "45, 62, 2048, 8192\n",
			want: GPUMetrics{
				Utilization: 45,
				Temperature: 62,
				MemoryUsed:  2048 * 1024 * 1024,
				MemoryTotal: 8192 * 1024 * 1024,
				MemoryFree:  6144 * 1024 * 1024,
			},
		},
		{
			name:   "first of several gpus",
			output: "10, 40, 0, 1024\n90, 80, 1024, 1024\n",
			want: GPUMetrics{
				Utilization: 10,
				Temperature: 40,
				MemoryTotal: 1024 * 1024 * 1024,
				MemoryFree:  1024 * 1024 * 1024,
			},
		},
		{name: "empty", output: "  ", wantErr: true},
		{name: "too few fields", output: "1, 2, 3", wantErr: true},
		{name: "not a number", output: "N/A, 40, 0, 1024", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseNvidiaSMIOutput(tt.output)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

type fakeReader struct {
	calls atomic.Int32
	err   error
}

func (f *fakeReader) ReadGPUMetrics(context.Context) (GPUMetrics, error) {
	f.calls.Add(1)
	if f.err != nil {
		return GPUMetrics{}, f.err
	}
	return GPUMetrics{Utilization: 33}, nil
}

func TestGPUCollector_FeedsStore(t *testing.T) {
	store := NewStore("dev", time.Now())
	reader := &fakeReader{}
	c := NewGPUCollector(GPUCollectorConfig{Interval: time.Second}, reader, store.UpdateGPU, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	c.Start(ctx)

	deadline := time.Now().Add(2 * time.Second)
	for store.Snapshot().GPU == nil && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	c.Wait()

	snap := store.Snapshot()
	if snap.GPU == nil || snap.GPU.Utilization != 33 || snap.GPU.SampledAt.IsZero() {
		t.Errorf("GPU = %+v", snap.GPU)
	}
}

func TestGPUCollector_StopsWithoutGPU(t *testing.T) {
	store := NewStore("dev", time.Now())
	reader := &fakeReader{err: ErrNoGPU}
	c := NewGPUCollector(GPUCollectorConfig{Interval: time.Second}, reader, store.UpdateGPU, nil)

	c.Start(context.Background())
	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("collector kept running without a GPU")
	}

	if n := reader.calls.Load(); n != 1 {
		t.Errorf("reader called %d times, want 1", n)
	}
	if got := store.Snapshot().GPUError; got != ErrNoGPU.Error() {
		t.Errorf("GPUError = %q", got)
	}
}

func TestGPUCollector_Defaults(t *testing.T) {
	c := NewGPUCollector(GPUCollectorConfig{Interval: time.Millisecond}, nil, nil, nil)
	if c.config.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", c.config.Interval)
	}
	if _, ok := c.reader.(nvidiaSMI); !ok {
		t.Errorf("reader = %T, want nvidiaSMI", c.reader)
	}
}
