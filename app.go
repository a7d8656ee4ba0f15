package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_upscaler/core"
	"go_upscaler/db"
	"go_upscaler/logging"
	"go_upscaler/upscaler"
)

// globalFlags are the persistent flags shared by every command. Empty or zero
// values leave the environment configuration alone.
type globalFlags struct {
	model     string
	modelsDir string
	logLevel  string
	logFile   string
	dev       bool
	noHistory bool
	json      bool
}

// app carries configuration and the logger from the root command's
// PersistentPreRunE to the subcommands.
type app struct {
	flags  globalFlags
	cfg    *core.Config
	logger *logging.Logger
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := core.LoadConfig()
	if err != nil {
		return err
	}

	f := a.flags
	if f.model != "" {
		cfg.Model = f.model
	}
	if f.modelsDir != "" {
		cfg.ModelsDir = f.modelsDir
	}
	if f.logLevel != "" {
		cfg.LogLevel = f.logLevel
	}
	if cmd.Flags().Changed("log-file") {
		cfg.LogFile = f.logFile
	}
	if f.dev {
		cfg.DevMode = true
	}
	if f.noHistory {
		cfg.HistoryDB = ""
	}
	a.cfg = cfg

	level, err := logging.ParseLevel(cfg.LogLevel, logging.DefaultLevel(cfg.DevMode))
	if err != nil {
		return &usageError{err: fmt.Errorf("--log-level: %w", err)}
	}
	logger, err := logging.NewLogger(logging.Options{
		Development: cfg.DevMode,
		Level:       &level,
		FilePath:    cfg.LogFile,
		File:        logging.DefaultFileWriterConfig(),
	})
	if err != nil {
		return fmt.Errorf("initialize logger: %w", err)
	}
	a.logger = logger
	a.logger.Debug("configuration loaded",
		zap.String("command", cmd.CommandPath()),
		zap.String("model", cfg.Model),
		zap.String("models_dir", cfg.ModelsDir),
		zap.String("cache_dir", cfg.CacheDir),
		zap.String("history_db", cfg.HistoryDB),
		zap.String("onnxruntime_lib", cfg.ONNXRuntimeLib),
		zap.Bool("dev_mode", cfg.DevMode))
	return nil
}

func (a *app) close() {
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// zap returns the underlying logger, or a no-op one before setup.
func (a *app) zap() *zap.Logger {
	if a.logger == nil {
		return zap.NewNop()
	}
	return a.logger.Zap()
}

func (a *app) historyEnabled() bool {
	return a.cfg.HistoryDB != "" && !strings.EqualFold(a.cfg.HistoryDB, "off")
}

// openHistory opens the run history, or returns nils when it is disabled.
func (a *app) openHistory(ctx context.Context) (*db.Database, *db.Repository, error) {
	if !a.historyEnabled() {
		return nil, nil, nil
	}
	database, err := db.Open(ctx, a.cfg.HistoryDB)
	if err != nil {
		return nil, nil, fmt.Errorf("open history: %w", err)
	}
	return database, db.NewRepository(database), nil
}

func (a *app) modelCache() *core.ModelCache {
	return core.NewModelCache(a.cfg.CacheDir,
		core.WithMaxRetries(a.cfg.DownloadRetries),
		core.WithCacheLogger(a.zap().Named("cache")))
}

// newUpscaler starts loading the configured model.
func (a *app) newUpscaler(warmup []upscaler.WarmupSize) *upscaler.Upscaler {
	return upscaler.New(upscaler.Options{
		Model:       upscaler.Resolve(a.cfg.Model, a.cfg.ModelsDir),
		WarmupSizes: warmup,
		Cache:       a.modelCache(),
		Logger:      a.zap().Named("upscaler"),
	})
}

// warmupSizes parses the configured warmup sizes.
func (a *app) warmupSizes() ([]upscaler.WarmupSize, error) {
	sizes, err := upscaler.ParseWarmupSizes(a.cfg.WarmupSizes)
	if err != nil {
		return nil, &usageError{err: fmt.Errorf("UPSCALER_WARMUP_SIZES: %w", err)}
	}
	return sizes, nil
}
