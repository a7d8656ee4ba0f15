package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "upscaler",
		Short: "Super-resolution image upscaling",
		Long: `Upscale images with interpolation kernels or ONNX super-resolution models.

Configuration is read from the environment (and .env): UPSCALER_MODEL,
UPSCALER_MODELS_DIR, UPSCALER_CACHE_DIR, UPSCALER_PATCH_SIZE, UPSCALER_PADDING,
UPSCALER_WARMUP_SIZES, UPSCALER_OUTPUT_DIR, UPSCALER_HISTORY_DB, UPSCALER_HOST,
UPSCALER_PORT, UPSCALER_LOG_FILE, UPSCALER_LOG_LEVEL, DEV_MODE.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "help" || cmd.Name() == "version" || cmd.Name() == "completion" {
				return nil
			}
			return a.setup(cmd)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&a.flags.model, "model", "m", "", "built-in model name or definition YAML (overrides UPSCALER_MODEL)")
	pf.StringVar(&a.flags.modelsDir, "models-dir", "", "directory of <name>.yaml model definitions")
	pf.StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")
	pf.StringVar(&a.flags.logFile, "log-file", "", "rotating JSON log file; empty disables it")
	pf.BoolVar(&a.flags.dev, "dev", false, "development logging")
	pf.BoolVar(&a.flags.noHistory, "no-history", false, "do not record runs")
	pf.BoolVar(&a.flags.json, "json", false, "JSON output")

	cmd.AddCommand(
		upscaleCmd(a),
		warmupCmd(a),
		modelsCmd(a),
		serveCmd(a),
		historyCmd(a),
		serviceCmd(a),
		versionCmd(a),
	)
	return cmd
}
