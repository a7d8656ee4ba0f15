package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"go_upscaler/core"
	"go_upscaler/srruntime"
)

type versionReport struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
	Go        string `json:"go"`
	Platform  string `json:"platform"`
	Backends  string `json:"backends"`
}

func versionCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if a.flags.json {
				return writeJSON(out, versionReport{
					Version:   core.Version,
					BuildTime: core.BuildTime,
					GitCommit: core.GitCommit,
					Go:        runtime.Version(),
					Platform:  runtime.GOOS + "/" + runtime.GOARCH,
					Backends:  srruntime.BackendInfo(),
				})
			}
			fmt.Fprintf(out, "upscaler %s\n", core.GetVersionInfo())
			fmt.Fprintf(out, "%s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
			fmt.Fprintf(out, "backends: %s\n", srruntime.BackendInfo())
			return nil
		},
	}
}
