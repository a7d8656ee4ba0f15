package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_upscaler/db"
	"go_upscaler/logging"
	"go_upscaler/shutdown"
	"go_upscaler/upscaler"
	"go_upscaler/vision"
)

type upscaleFlags struct {
	outDir    string
	patchSize int
	padding   int
	suffix    string
	overwrite bool
	quiet     bool
}

func upscaleCmd(a *app) *cobra.Command {
	var f upscaleFlags

	cmd := &cobra.Command{
		Use:   "upscale <image|url>...",
		Short: "Upscale images to PNG files",
		Long: `Upscale one or more local images or http(s) URLs. Each result is written as
<name><suffix>.png in the output directory.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("patch-size") {
				f.patchSize = a.cfg.PatchSize
			}
			if !cmd.Flags().Changed("padding") {
				f.padding = a.cfg.Padding
			}
			if f.outDir == "" {
				f.outDir = a.cfg.OutputDir
			}
			return runUpscale(cmd.Context(), a, f, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&f.outDir, "out-dir", "o", "", "output directory (default UPSCALER_OUTPUT_DIR)")
	cmd.Flags().IntVar(&f.patchSize, "patch-size", 0, "tile size; 0 upscales the whole image at once")
	cmd.Flags().IntVar(&f.padding, "padding", 0, "context pixels around each tile")
	cmd.Flags().StringVar(&f.suffix, "suffix", "_x{scale}", "file name suffix; {scale} is replaced by the model scale")
	cmd.Flags().BoolVar(&f.overwrite, "overwrite", false, "replace existing output files")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "no progress output")
	return cmd
}

func runUpscale(ctx context.Context, a *app, f upscaleFlags, inputs []string, stdout, stderr io.Writer) error {
	logger := a.zap()

	mgr := shutdown.NewManager(logger)
	mgr.Start()
	stop := context.AfterFunc(ctx, mgr.Trigger)
	defer stop()

	up := a.newUpscaler(nil)
	mgr.Register("upscaler", shutdown.PriorityUpscaler, up.Dispose)
	mgr.Register("partial downloads", shutdown.PriorityFiles, shutdown.CleanupPartialDownloads(logger, a.cfg.CacheDir))

	database, repo, err := a.openHistory(ctx)
	if err != nil {
		printWarn(stderr, "run history disabled: %v", err)
	}
	if database != nil {
		mgr.Register("history", shutdown.PriorityDatabase, func(context.Context) error { return database.Close() })
	}

	if err := os.MkdirAll(f.outDir, 0o755); err != nil {
		return errors.Join(err, mgr.Shutdown())
	}

	var errs []error
	for _, input := range inputs {
		err := mgr.Track(mgr.Context(), "upscale", func(ctx context.Context) error {
			return upscaleOne(ctx, a, up, repo, f, input, stdout, stderr)
		})
		if err != nil {
			printError(stderr, fmt.Errorf("%s: %w", input, err))
			errs = append(errs, fmt.Errorf("%s: %w", input, err))
		}
		if mgr.IsShuttingDown() {
			break
		}
	}

	if err := mgr.Shutdown(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 && !f.quiet {
		fmt.Fprintf(stderr, "%d of %d inputs failed\n", len(errs), len(inputs))
	}
	return errors.Join(errs...)
}

func upscaleOne(ctx context.Context, a *app, up *upscaler.Upscaler, repo *db.Repository, f upscaleFlags, input string, stdout, stderr io.Writer) error {
	start := time.Now()
	pkg, err := up.Model(ctx)
	if err != nil {
		return err
	}
	scale := pkg.Definition.Scale
	outPath := outputPath(f.outDir, input, strings.ReplaceAll(f.suffix, "{scale}", fmt.Sprint(scale)))
	if !f.overwrite {
		if _, err := os.Stat(outPath); err == nil {
			return &usageError{err: fmt.Errorf("%s already exists (use --overwrite)", outPath)}
		}
	}

	opts := upscaler.UpscaleOptions{
		Output:    upscaler.OutputTensor,
		PatchSize: f.patchSize,
		Padding:   f.padding,
	}
	if !f.quiet && f.patchSize > 0 {
		opts.ProgressOutput = upscaler.OutputTensor
		opts.Progress = func(p upscaler.Progress) {
			p.Tensor.Dispose()
			fmt.Fprintf(stderr, "\r  %s %3.0f%% (tile %d/%d)", filepath.Base(input), p.Percent*100,
				p.Row*p.Cols+p.Col+1, p.Rows*p.Cols)
		}
	}

	source := input
	if vision.IsURL(input) {
		source = logging.RedactURL(input)
	}
	run := db.UpscaleRun{
		ID:        uuid.New(),
		Model:     pkg.Definition.Name,
		Scale:     scale,
		Source:    source,
		PatchSize: f.patchSize,
		Padding:   f.padding,
	}

	res, err := up.Upscale(ctx, upscaler.PathInput(input), opts)
	if opts.Progress != nil {
		fmt.Fprintln(stderr)
	}
	if err == nil {
		err = writePNG(res, outPath)
	}
	stats := res.Stats()
	run.InputWidth, run.InputHeight = stats.InputWidth, stats.InputHeight
	run.OutputWidth, run.OutputHeight = stats.OutputWidth, stats.OutputHeight
	run.Tiles = stats.Tiles
	run.DurationMS = time.Since(start).Milliseconds()

	switch {
	case err == nil:
		run.Status = db.StatusCompleted
		run.OutputPath = outPath
	case errors.Is(err, upscaler.ErrCancelled):
		run.Status = db.StatusCancelled
		run.Error = err.Error()
	default:
		run.Status = db.StatusFailed
		run.Error = err.Error()
	}
	if repo != nil {
		// The upscale context may be cancelled; the record should still land.
		if _, recErr := repo.InsertUpscaleRun(context.WithoutCancel(ctx), run); recErr != nil {
			a.zap().Warn("record upscale run", zap.Error(recErr))
		}
	}
	if err != nil {
		return err
	}

	if !f.quiet {
		printSuccess(stdout, "%s -> %s (%dx%d -> %dx%d, %d tile(s), %s)",
			input, outPath, stats.InputWidth, stats.InputHeight, stats.OutputWidth, stats.OutputHeight,
			stats.Tiles, stats.Duration.Round(time.Millisecond))
	}
	return nil
}

// writePNG encodes a tensor result to path, releasing the tensor.
func writePNG(res upscaler.Result, path string) error {
	t := res.Tensor()
	if t == nil {
		return errors.New("upscale returned no tensor")
	}
	defer t.Dispose()

	data, err := vision.TensorToPNG(t)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// outputPath names the result of input inside dir: the input's base name
// without extension, plus suffix and ".png".
func outputPath(dir, input, suffix string) string {
	base := filepath.Base(input)
	if vision.IsURL(input) {
		base = "image"
		if u, err := url.Parse(input); err == nil && path.Base(u.Path) != "/" && path.Base(u.Path) != "." {
			base = path.Base(u.Path)
		}
	}
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, stem+suffix+".png")
}
