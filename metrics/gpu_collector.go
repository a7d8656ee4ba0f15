package metrics

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrNoGPU is reported when nvidia-smi is not installed.
var ErrNoGPU = errors.New("nvidia-smi not found")

// GPUReader reads one GPU sample.
type GPUReader interface {
	ReadGPUMetrics(ctx context.Context) (GPUMetrics, error)
}

type GPUCollectorConfig struct {
	Interval time.Duration
	// NvidiaSMIPath defaults to "nvidia-smi" on PATH.
	NvidiaSMIPath string
}

func DefaultGPUCollectorConfig() GPUCollectorConfig {
	return GPUCollectorConfig{
		Interval:      5 * time.Second,
		NvidiaSMIPath: "nvidia-smi",
	}
}

// GPUCollector samples the first GPU periodically and hands each sample, or
// the error reading it, to onSample.
type GPUCollector struct {
	config   GPUCollectorConfig
	reader   GPUReader
	onSample func(GPUMetrics, error)
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewGPUCollector reads through nvidia-smi unless reader is non-nil.
func NewGPUCollector(config GPUCollectorConfig, reader GPUReader, onSample func(GPUMetrics, error), logger *zap.Logger) *GPUCollector {
	if config.Interval < time.Second {
		config.Interval = DefaultGPUCollectorConfig().Interval
	}
	if config.NvidiaSMIPath == "" {
		config.NvidiaSMIPath = "nvidia-smi"
	}
	if reader == nil {
		reader = nvidiaSMI{path: config.NvidiaSMIPath}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GPUCollector{config: config, reader: reader, onSample: onSample, logger: logger}
}

// Start samples immediately and then every interval until ctx is done. If
// nvidia-smi is missing it samples once and stops.
func (c *GPUCollector) Start(ctx context.Context) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if errors.Is(c.collectOnce(ctx), ErrNoGPU) {
			c.logger.Debug("gpu metrics disabled", zap.Error(ErrNoGPU))
			return
		}

		ticker := time.NewTicker(c.config.Interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.collectOnce(ctx)
			}
		}
	}()
}

// Wait blocks until the collection goroutine has exited.
func (c *GPUCollector) Wait() {
	c.wg.Wait()
}

func (c *GPUCollector) collectOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	m, err := c.reader.ReadGPUMetrics(ctx)
	if err != nil && ctx.Err() == nil {
		c.logger.Debug("gpu sample failed", zap.Error(err))
	}
	if err == nil && m.SampledAt.IsZero() {
		m.SampledAt = time.Now()
	}
	if c.onSample != nil {
		c.onSample(m, err)
	}
	return err
}

type nvidiaSMI struct{ path string }

func (n nvidiaSMI) ReadGPUMetrics(ctx context.Context) (GPUMetrics, error) {
	if _, err := exec.LookPath(n.path); err != nil {
		return GPUMetrics{}, ErrNoGPU
	}
	cmd := exec.CommandContext(ctx, n.path,
		"--query-gpu=utilization.gpu,temperature.gpu,memory.used,memory.total",
		"--format=csv,noheader,nounits")

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return GPUMetrics{}, fmt.Errorf("nvidia-smi: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}
	return parseNvidiaSMIOutput(stdout.String())
}

// parseNvidiaSMIOutput parses the first line of
// "utilization, temperature, memory used MiB, memory total MiB".
func parseNvidiaSMIOutput(output string) (GPUMetrics, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return GPUMetrics{}, errors.New("empty nvidia-smi output")
	}

	record, err := csv.NewReader(strings.NewReader(output)).Read()
	if err != nil {
		return GPUMetrics{}, fmt.Errorf("parse nvidia-smi output: %w", err)
	}
	if len(record) < 4 {
		return GPUMetrics{}, fmt.Errorf("unexpected field count: got %d, expected 4", len(record))
	}

	names := [4]string{"utilization", "temperature", "memory used", "memory total"}
	var vals [4]float64
	for i := range vals {
		vals[i], err = strconv.ParseFloat(strings.TrimSpace(record[i]), 64)
		if err != nil {
			return GPUMetrics{}, fmt.Errorf("parse %s: %w", names[i], err)
		}
	}

	const mib = 1024 * 1024
	total := int64(vals[3] * mib)
	used := int64(vals[2] * mib)
	return GPUMetrics{
		Utilization: vals[0],
		Temperature: vals[1],
		MemoryTotal: total,
		MemoryUsed:  used,
		MemoryFree:  total - used,
	}, nil
}
