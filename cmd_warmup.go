package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_upscaler/db"
	"go_upscaler/upscaler"
)

func warmupCmd(a *app) *cobra.Command {
	var sizesFlag string

	cmd := &cobra.Command{
		Use:   "warmup",
		Short: "Load the model and run warmup inferences",
		Long: `Load the configured model and run one dummy inference per size, reporting
how long loading and warmup take. Sizes are "WxH" or "P[:padding]" patch sizes,
comma separated; the default is UPSCALER_WARMUP_SIZES or "64".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			list := sizesFlag
			if list == "" {
				list = a.cfg.WarmupSizes
			}
			if list == "" {
				list = "64"
			}
			sizes, err := upscaler.ParseWarmupSizes(list)
			if err != nil {
				return &usageError{err: err}
			}
			return runWarmup(cmd, a, list, sizes)
		},
	}
	cmd.Flags().StringVar(&sizesFlag, "sizes", "", `warmup sizes, e.g. "64:2,128x96"`)
	return cmd
}

// warmupReport is the --json output of the warmup command.
type warmupReport struct {
	Model      string `json:"model"`
	Sizes      string `json:"sizes"`
	LoadMS     int64  `json:"load_ms"`
	WarmupMS   int64  `json:"warmup_ms"`
	Successful bool   `json:"successful"`
	Error      string `json:"error,omitempty"`
}

func runWarmup(cmd *cobra.Command, a *app, list string, sizes []upscaler.WarmupSize) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	up := a.newUpscaler(nil)
	defer up.Dispose(context.WithoutCancel(ctx))

	start := time.Now()
	pkg, err := up.Model(ctx)
	if err != nil {
		return err
	}
	loaded := time.Since(start)

	start = time.Now()
	werr := up.Warmup(ctx, sizes)
	elapsed := time.Since(start)

	report := warmupReport{
		Model:      pkg.Definition.Name,
		Sizes:      list,
		LoadMS:     loaded.Milliseconds(),
		WarmupMS:   elapsed.Milliseconds(),
		Successful: werr == nil,
	}
	status := db.StatusCompleted
	if werr != nil {
		report.Error = werr.Error()
		status = db.StatusFailed
	}
	if ctx.Err() != nil {
		status = db.StatusCancelled
	}
	recordWarmup(ctx, a, db.WarmupRun{
		ID:         uuid.New(),
		Model:      pkg.Definition.Name,
		Sizes:      list,
		Status:     status,
		Error:      report.Error,
		DurationMS: report.WarmupMS,
	})

	if a.flags.json {
		if err := writeJSON(out, report); err != nil {
			return err
		}
		return werr
	}
	if werr != nil {
		return werr
	}
	printSuccess(out, "%s loaded in %s, warmed up %d size(s) in %s",
		pkg.Definition, loaded.Round(time.Millisecond), len(sizes), elapsed.Round(time.Millisecond))
	for _, s := range sizes {
		fmt.Fprintf(out, "  %s\n", s)
	}
	return nil
}

func recordWarmup(ctx context.Context, a *app, run db.WarmupRun) {
	ctx = context.WithoutCancel(ctx)
	database, repo, err := a.openHistory(ctx)
	if err != nil || repo == nil {
		if err != nil {
			a.zap().Warn("run history unavailable", zap.Error(err))
		}
		return
	}
	defer database.Close()
	if _, err := repo.InsertWarmupRun(ctx, run); err != nil {
		a.zap().Warn("record warmup run", zap.Error(err))
	}
}
