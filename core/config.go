package core

import (
	"fmt"
	"net"
	"strconv"
)

// Defaults for values not set in the environment.
const (
	DefaultModel        = "bicubic-2x"
	DefaultModelsDir    = "models"
	DefaultOutputDir    = "."
	DefaultHost         = "127.0.0.1"
	DefaultPort         = 8090
	DefaultMaxUploadMB  = 32
	DefaultLogFile      = "upscaler.log"
	DefaultMaxRetries   = 3
	DefaultHistoryLimit = 50
)

// Config holds all configuration values.
type Config struct {
	// Model selection
	Model     string // Built-in model name or path to a definition YAML
	ModelsDir string // Directory searched for <name>.yaml definitions
	CacheDir  string // Where downloaded model weights are stored

	// Upscale defaults
	PatchSize   int
	Padding     int
	WarmupSizes string // e.g. "64:2,128x96"; parsed by the upscaler package

	// Output and history
	OutputDir string
	HistoryDB string

	// HTTP service
	Host           string
	Port           int
	MaxUploadBytes int64
	WebPassword    string // Enables HTTP basic/bearer auth when set
	GPUMetrics     bool   // Sample nvidia-smi for /api/stats

	// Logging
	LogFile  string
	LogLevel string
	DevMode  bool

	// Runtime
	ONNXRuntimeLib  string
	DownloadRetries int
}

// LoadConfig reads configuration from environment variables. A .env file, if
// any, must already have been loaded by the caller.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Model:          GetEnvOrDefault("UPSCALER_MODEL", DefaultModel),
		ModelsDir:      GetEnvOrDefault("UPSCALER_MODELS_DIR", DefaultModelsDir),
		CacheDir:       GetEnvOrDefault("UPSCALER_CACHE_DIR", GetDataFilePath("models")),
		WarmupSizes:    GetEnvOrDefault("UPSCALER_WARMUP_SIZES", ""),
		OutputDir:      GetEnvOrDefault("UPSCALER_OUTPUT_DIR", DefaultOutputDir),
		HistoryDB:      GetEnvOrDefault("UPSCALER_HISTORY_DB", GetDataFilePath("history.db")),
		Host:           GetEnvOrDefault("UPSCALER_HOST", DefaultHost),
		Port:           ParseIntEnv("UPSCALER_PORT", DefaultPort),
		WebPassword:    GetEnvOrDefault("UPSCALER_WEB_PASSWORD", ""),
		GPUMetrics:     ParseBoolEnv("UPSCALER_GPU_METRICS", true),
		LogFile:        GetEnvOrDefault("UPSCALER_LOG_FILE", DefaultLogFile),
		LogLevel:       GetEnvOrDefault("UPSCALER_LOG_LEVEL", ""),
		DevMode:        ParseBoolEnv("DEV_MODE", false),
		ONNXRuntimeLib: GetEnvOrDefault("ONNXRUNTIME_LIB", ""),
	}

	sizes := []struct {
		key  string
		def  int
		dest *int
	}{
		{"UPSCALER_PATCH_SIZE", 0, &cfg.PatchSize},
		{"UPSCALER_PADDING", 0, &cfg.Padding},
		{"UPSCALER_DOWNLOAD_RETRIES", DefaultMaxRetries, &cfg.DownloadRetries},
	}
	for _, s := range sizes {
		n, err := ParseSizeEnv(s.key, s.def)
		if err != nil {
			return nil, ErrInvalidValue(s.key, err)
		}
		*s.dest = n
	}

	uploadMB, err := ParseSizeEnv("UPSCALER_MAX_UPLOAD_MB", DefaultMaxUploadMB)
	if err != nil {
		return nil, ErrInvalidValue("UPSCALER_MAX_UPLOAD_MB", err)
	}
	cfg.MaxUploadBytes = int64(uploadMB) * BytesPerMB

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	if c.Model == "" {
		return ErrMissingModel()
	}
	if c.Port < 1 || c.Port > 65535 {
		return ErrInvalidPort(c.Port)
	}
	if c.PatchSize < 0 {
		return ErrInvalidValue("UPSCALER_PATCH_SIZE", fmt.Errorf("patch size %d is negative", c.PatchSize))
	}
	if c.Padding < 0 {
		return ErrInvalidValue("UPSCALER_PADDING", fmt.Errorf("padding %d is negative", c.Padding))
	}
	return nil
}

// Addr returns the HTTP listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}
