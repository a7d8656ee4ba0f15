package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_upscaler/core"
	"go_upscaler/srruntime"
	"go_upscaler/upscaler"
)

func modelsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List available models",
		Long:  "List built-in models, definitions in the models directory and downloaded weights.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModels(cmd, a)
		},
	}
	cmd.AddCommand(fetchModelCmd(a))
	return cmd
}

// modelListing is the --json output of the models command.
type modelListing struct {
	Runtimes    []string               `json:"runtimes"`
	Backend     string                 `json:"backend"`
	Builtin     []srruntime.Definition `json:"builtin"`
	Definitions []srruntime.Definition `json:"definitions"`
	Cached      []core.CachedModel     `json:"cached"`
	Errors      []string               `json:"errors,omitempty"`
}

func listModels(cmd *cobra.Command, a *app) error {
	listing := modelListing{
		Runtimes: srruntime.Runtimes(),
		Backend:  srruntime.BackendInfo(),
	}
	for _, name := range upscaler.BuiltinNames() {
		def, _ := upscaler.BuiltinDefinition(name)
		listing.Builtin = append(listing.Builtin, def)
	}

	defs, err := upscaler.ListDefinitions(a.cfg.ModelsDir)
	if err != nil {
		listing.Errors = append(listing.Errors, err.Error())
		a.zap().Warn("some model definitions could not be read", zap.Error(err))
	}
	listing.Definitions = defs

	cached, err := a.modelCache().List()
	if err != nil {
		listing.Errors = append(listing.Errors, err.Error())
	}
	listing.Cached = cached

	out := cmd.OutOrStdout()
	if a.flags.json {
		return writeJSON(out, listing)
	}

	printHeader(out, "Built-in models")
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSCALE\tKERNEL")
	for _, d := range listing.Builtin {
		marker := ""
		if d.Name == a.cfg.Model {
			marker = " *"
		}
		fmt.Fprintf(tw, "%s%s\tx%d\t%s\n", d.Name, marker, d.Scale, d.Kernel)
	}
	tw.Flush()

	fmt.Fprintln(out)
	printHeader(out, "Definitions in "+a.cfg.ModelsDir)
	if len(listing.Definitions) == 0 {
		dimColor.Fprintln(out, "  none")
	} else {
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "NAME\tRUNTIME\tSCALE\tSOURCE")
		for _, d := range listing.Definitions {
			src := d.Path
			if d.URL != "" {
				src = d.URL
			}
			fmt.Fprintf(tw, "%s\t%s\tx%d\t%s\n", d.Name, d.Runtime, d.Scale, src)
		}
		tw.Flush()
	}

	fmt.Fprintln(out)
	printHeader(out, "Cached weights in "+a.cfg.CacheDir)
	if len(listing.Cached) == 0 {
		dimColor.Fprintln(out, "  none")
	} else {
		tw = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		for _, m := range listing.Cached {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", m.Name, core.FormatBytes(m.Size), m.ModTime.Format(time.DateTime))
		}
		tw.Flush()
	}

	fmt.Fprintln(out)
	dimColor.Fprintf(out, "Runtimes: %s\n", listing.Backend)
	for _, e := range listing.Errors {
		printWarn(out, "%s", e)
	}
	return nil
}

func fetchModelCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch [model]",
		Short: "Download and verify a model's weights",
		Long:  "Resolve a model (default: the configured one), download its weights into the cache and check that it opens.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ref := a.cfg.Model
			if len(args) == 1 {
				ref = args[0]
			}
			start := time.Now()
			pkg, err := upscaler.LoadModel(cmd.Context(), upscaler.Resolve(ref, a.cfg.ModelsDir), upscaler.LoaderConfig{
				Cache:  a.modelCache(),
				Logger: a.zap(),
			})
			if err != nil {
				return err
			}
			defer pkg.Model.Dispose()

			if a.flags.json {
				return writeJSON(cmd.OutOrStdout(), pkg.Definition)
			}
			printSuccess(cmd.OutOrStdout(), "%s ready in %s", pkg.Definition, time.Since(start).Round(time.Millisecond))
			if pkg.Definition.Path != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", pkg.Definition.Path)
			}
			return nil
		},
	}
}
