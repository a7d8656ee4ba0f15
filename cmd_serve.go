package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_upscaler/core"
	"go_upscaler/db"
	"go_upscaler/metrics"
	"go_upscaler/shutdown"
	"go_upscaler/webui"
	"go_upscaler/webui/auth"
)

// pruneInterval is how often the server trims old run history.
const pruneInterval = time.Hour

func serveCmd(a *app) *cobra.Command {
	var (
		host string
		port int
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the upscaler over HTTP with a web UI",
		Long: `Start the HTTP API and web UI. The model loads and warms up in the
background; /health reports "starting" until it is ready. Set
UPSCALER_WEB_PASSWORD to require a password on every route except /health.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if host != "" {
				a.cfg.Host = host
			}
			if port != 0 {
				a.cfg.Port = port
			}
			if err := a.cfg.Validate(); err != nil {
				return err
			}
			return runServer(cmd.Context(), a, true)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (default UPSCALER_HOST)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default UPSCALER_PORT)")
	return cmd
}

// runServer serves until ctx is done or, with handleSignals, until SIGINT or
// SIGTERM arrives, then shuts everything down in priority order.
func runServer(ctx context.Context, a *app, handleSignals bool) error {
	logger := a.zap()

	mgr := shutdown.NewManager(logger)
	if handleSignals {
		mgr.Start()
	}
	stop := context.AfterFunc(ctx, mgr.Trigger)
	defer stop()

	sizes, err := a.warmupSizes()
	if err != nil {
		return err
	}
	up := a.newUpscaler(sizes)
	mgr.Register("upscaler", shutdown.PriorityUpscaler, up.Dispose)

	database, repo, err := a.openHistory(mgr.Context())
	if err != nil {
		logger.Warn("run history disabled", zap.Error(err))
	}
	if database != nil {
		mgr.Register("history", shutdown.PriorityDatabase, func(context.Context) error { return database.Close() })
		repo.StartPruner(mgr.Context(), logger.Named("history"), db.DefaultRetention, pruneInterval)
	}

	var guard *auth.Guard
	if a.cfg.WebPassword != "" {
		guard, err = auth.NewGuard(a.cfg.WebPassword, logger.Named("auth"))
		if err != nil {
			return errors.Join(err, mgr.Shutdown())
		}
	}

	cfg := webui.DefaultConfig()
	cfg.Host = a.cfg.Host
	cfg.Port = a.cfg.Port
	cfg.MaxUploadBytes = a.cfg.MaxUploadBytes
	cfg.PatchSize = a.cfg.PatchSize
	cfg.Padding = a.cfg.Padding
	cfg.Version = core.Version

	stats := metrics.NewStore(core.Version, time.Now())
	if a.cfg.GPUMetrics {
		gpu := metrics.NewGPUCollector(metrics.DefaultGPUCollectorConfig(), nil, stats.UpdateGPU, logger.Named("gpu"))
		gpu.Start(mgr.Context())
	}

	srv, err := webui.NewServer(cfg, webui.Deps{
		Engine:  up,
		History: repo,
		Guard:   guard,
		Metrics: stats,
		Logger:  logger,
	})
	if err != nil {
		return errors.Join(err, mgr.Shutdown())
	}
	mgr.Register("http server", shutdown.PriorityServer, srv.Shutdown)
	mgr.Register("partial downloads", shutdown.PriorityFiles, shutdown.CleanupPartialDownloads(logger, a.cfg.CacheDir))
	mgr.Register("logger", shutdown.PriorityLogger, func(context.Context) error { return a.logger.Sync() })

	logger.Info("starting server",
		zap.String("addr", srv.Addr()),
		zap.String("version", core.Version),
		zap.Bool("auth", guard != nil),
		zap.Bool("history", repo != nil))

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start(mgr.Context()) }()

	select {
	case <-mgr.Context().Done():
		return mgr.Shutdown()
	case err := <-serveErr:
		if err != nil {
			err = fmt.Errorf("http server: %w", err)
		}
		return errors.Join(err, mgr.Shutdown())
	}
}
