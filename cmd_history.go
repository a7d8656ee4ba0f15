package main

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"go_upscaler/db"
)

var errHistoryDisabled = errors.New("run history is disabled (UPSCALER_HISTORY_DB is empty or off)")

func historyCmd(a *app) *cobra.Command {
	var (
		limit  int
		status string
	)

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent upscale runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := db.ParseStatus(status)
			if err != nil {
				return &usageError{err: err}
			}
			database, repo, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if repo == nil {
				return errHistoryDisabled
			}
			defer database.Close()

			runs, err := repo.RecentUpscaleRuns(cmd.Context(), limit, st)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.flags.json {
				if runs == nil {
					runs = []db.UpscaleRun{}
				}
				return writeJSON(out, runs)
			}
			if len(runs) == 0 {
				dimColor.Fprintln(out, "No runs recorded.")
				return nil
			}

			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tSTATUS\tMODEL\tSIZE\tTILES\tTIME\tSOURCE")
			for _, r := range runs {
				size := "-"
				if r.OutputWidth > 0 {
					size = fmt.Sprintf("%dx%d->%dx%d", r.InputWidth, r.InputHeight, r.OutputWidth, r.OutputHeight)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%s\t%s\n",
					r.CreatedAt.Local().Format(time.DateTime), statusLabel(r.Status), r.Model, size, r.Tiles,
					(time.Duration(r.DurationMS) * time.Millisecond).String(), r.Source)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	cmd.Flags().StringVar(&status, "status", "", "only show completed, failed or cancelled runs")

	cmd.AddCommand(historyWarmupsCmd(a), historyPruneCmd(a))
	return cmd
}

func statusLabel(s db.Status) string {
	switch s {
	case db.StatusCompleted:
		return successColor.Sprint(s)
	case db.StatusCancelled:
		return warnColor.Sprint(s)
	default:
		return errorColor.Sprint(s)
	}
}

func historyWarmupsCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "warmups",
		Short: "Show recent warmup runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			database, repo, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if repo == nil {
				return errHistoryDisabled
			}
			defer database.Close()

			runs, err := repo.RecentWarmupRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if a.flags.json {
				if runs == nil {
					runs = []db.WarmupRun{}
				}
				return writeJSON(out, runs)
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "WHEN\tSTATUS\tMODEL\tSIZES\tTIME")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%dms\n",
					r.CreatedAt.Local().Format(time.DateTime), statusLabel(r.Status), r.Model, r.Sizes, r.DurationMS)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of runs to show")
	return cmd
}

func historyPruneCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Delete old run records",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return &usageError{err: errors.New("--older-than must be positive")}
			}
			database, repo, err := a.openHistory(cmd.Context())
			if err != nil {
				return err
			}
			if repo == nil {
				return errHistoryDisabled
			}
			defer database.Close()

			res, err := repo.Prune(cmd.Context(), olderThan)
			if err != nil {
				return err
			}
			if a.flags.json {
				return writeJSON(cmd.OutOrStdout(), res)
			}
			printSuccess(cmd.OutOrStdout(), "removed %d upscale and %d warmup record(s)", res.UpscaleRuns, res.WarmupRuns)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", db.DefaultRetention, "age of records to delete")
	return cmd
}
