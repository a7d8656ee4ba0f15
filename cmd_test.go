package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go_upscaler/core"
	"go_upscaler/db"
	"go_upscaler/upscaler"
)

// testEnv points every path the CLI touches into a temp directory.
func testEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("UPSCALER_MODEL", "nearest-2x")
	t.Setenv("UPSCALER_MODELS_DIR", filepath.Join(dir, "models"))
	t.Setenv("UPSCALER_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("UPSCALER_OUTPUT_DIR", filepath.Join(dir, "out"))
	t.Setenv("UPSCALER_HISTORY_DB", filepath.Join(dir, "history.db"))
	t.Setenv("UPSCALER_LOG_FILE", filepath.Join(dir, "upscaler.log"))
	t.Setenv("UPSCALER_WARMUP_SIZES", "")
	t.Setenv("UPSCALER_PATCH_SIZE", "")
	t.Setenv("UPSCALER_PADDING", "")
	return dir
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	a := &app{}
	cmd := newRootCommand(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	a.close()
	return stdout.String(), stderr.String(), err
}

func writeTestPNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.NRGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestRootCommand_Tree(t *testing.T) {
	cmd := newRootCommand(&app{})

	for _, name := range []string{"upscale", "warmup", "models", "serve", "history", "service", "version"} {
		if sub, _, err := cmd.Find([]string{name}); err != nil || sub.Name() != name {
			t.Errorf("subcommand %q not found: %v", name, err)
		}
	}
	for _, path := range [][]string{
		{"models", "fetch"},
		{"history", "warmups"},
		{"history", "prune"},
		{"service", "install"},
		{"service", "status"},
		{"service", "run"},
	} {
		if sub, _, err := cmd.Find(path); err != nil || sub.Name() != path[1] {
			t.Errorf("subcommand %v not found: %v", path, err)
		}
	}
	for _, flag := range []string{"model", "models-dir", "log-level", "log-file", "dev", "no-history", "json"} {
		if cmd.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestOutputPath(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		suffix string
		want   string
	}{
		{"local file", "/photos/cat.jpg", "_x2", filepath.Join("out", "cat_x2.png")},
		{"no extension", "cat", "_x4", filepath.Join("out", "cat_x4.png")},
		{"url", "https://example.com/img/dog.webp?size=1", "_x2", filepath.Join("out", "dog_x2.png")},
		{"url without path", "https://example.com", "_x2", filepath.Join("out", "image_x2.png")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := outputPath("out", tt.input, tt.suffix); got != tt.want {
				t.Errorf("outputPath(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, core.ExitCodeSuccess},
		{"config", core.ErrInvalidPort(0), core.ExitCodeUsage},
		{"usage", &usageError{err: errors.New("bad flag")}, core.ExitCodeUsage},
		{"invalid options", fmt.Errorf("x: %w", upscaler.ErrInvalidOptions), core.ExitCodeUsage},
		{"cancelled", fmt.Errorf("x: %w", upscaler.ErrCancelled), core.ExitCodeSIGINT},
		{"context", context.Canceled, core.ExitCodeSIGINT},
		{"other", errors.New("boom"), core.ExitCodeError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestUpscaleCommand_WritesPNGAndRecordsHistory(t *testing.T) {
	dir := testEnv(t)
	input := filepath.Join(dir, "tiny.png")
	writeTestPNG(t, input, 12, 8)

	stdout, stderr, err := execute(t, "upscale", "--patch-size", "4", "--padding", "1", input)
	if err != nil {
		t.Fatalf("upscale: %v\nstderr: %s", err, stderr)
	}
	if !strings.Contains(stdout, "tiny_x2.png") {
		t.Errorf("stdout = %q, want output file name", stdout)
	}

	f, err := os.Open(filepath.Join(dir, "out", "tiny_x2.png"))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	cfg, err := png.DecodeConfig(f)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Width != 24 || cfg.Height != 16 {
		t.Errorf("output is %dx%d, want 24x16", cfg.Width, cfg.Height)
	}

	// A second run refuses to overwrite.
	_, _, err = execute(t, "upscale", "-q", input)
	if err == nil || exitCode(err) != core.ExitCodeUsage {
		t.Errorf("second upscale err = %v, want usage error", err)
	}

	stdout, _, err = execute(t, "history", "--json")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	var runs []db.UpscaleRun
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatalf("decode history: %v\n%s", err, stdout)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	run := runs[0]
	if run.Status != db.StatusCompleted || run.Model != "nearest-2x" || run.Tiles != 6 || run.OutputWidth != 24 {
		t.Errorf("unexpected run %+v", run)
	}
}

func TestUpscaleCommand_MissingInput(t *testing.T) {
	dir := testEnv(t)

	_, _, err := execute(t, "upscale", "-q", "--no-history", filepath.Join(dir, "missing.png"))
	if !errors.Is(err, upscaler.ErrInvalidImageSource) {
		t.Errorf("err = %v, want ErrInvalidImageSource", err)
	}
}

func TestUpscaleCommand_InvalidOptions(t *testing.T) {
	dir := testEnv(t)
	input := filepath.Join(dir, "tiny.png")
	writeTestPNG(t, input, 4, 4)

	_, _, err := execute(t, "upscale", "-q", "--no-history", "--patch-size", "-2", input)
	if exitCode(err) != core.ExitCodeUsage {
		t.Errorf("exitCode(%v) = %d, want usage", err, exitCode(err))
	}
}

func TestWarmupCommand(t *testing.T) {
	testEnv(t)

	stdout, _, err := execute(t, "warmup", "--sizes", "8,4:2", "--json")
	if err != nil {
		t.Fatalf("warmup: %v", err)
	}
	var report warmupReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if !report.Successful || report.Model != "nearest-2x" || report.Sizes != "8,4:2" {
		t.Errorf("report = %+v", report)
	}

	stdout, _, err = execute(t, "history", "warmups", "--json")
	if err != nil {
		t.Fatalf("history warmups: %v", err)
	}
	var runs []db.WarmupRun
	if err := json.Unmarshal([]byte(stdout), &runs); err != nil {
		t.Fatal(err)
	}
	if len(runs) != 1 || runs[0].Status != db.StatusCompleted {
		t.Errorf("warmup runs = %+v", runs)
	}

	if _, _, err := execute(t, "warmup", "--sizes", "0x3"); exitCode(err) != core.ExitCodeUsage {
		t.Errorf("invalid sizes: err = %v", err)
	}
}

func TestModelsCommand(t *testing.T) {
	dir := testEnv(t)
	modelsDir := filepath.Join(dir, "models")
	if err := os.MkdirAll(modelsDir, 0o755); err != nil {
		t.Fatal(err)
	}
	def := "runtime: interpolation\nscale: 3\nkernel: bilinear\n"
	if err := os.WriteFile(filepath.Join(modelsDir, "soft-3x.yaml"), []byte(def), 0o644); err != nil {
		t.Fatal(err)
	}

	stdout, _, err := execute(t, "models", "--json")
	if err != nil {
		t.Fatalf("models: %v", err)
	}
	var listing modelListing
	if err := json.Unmarshal([]byte(stdout), &listing); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(listing.Builtin) != len(upscaler.BuiltinNames()) {
		t.Errorf("builtin = %d entries, want %d", len(listing.Builtin), len(upscaler.BuiltinNames()))
	}
	if len(listing.Definitions) != 1 || listing.Definitions[0].Name != "soft-3x" || listing.Definitions[0].Scale != 3 {
		t.Errorf("definitions = %+v", listing.Definitions)
	}

	stdout, _, err = execute(t, "models", "fetch", "soft-3x", "--json")
	if err != nil {
		t.Fatalf("models fetch: %v", err)
	}
	if !strings.Contains(stdout, `"soft-3x"`) {
		t.Errorf("fetch output = %s", stdout)
	}

	if _, _, err := execute(t, "models", "fetch", "no-such-model"); !errors.Is(err, upscaler.ErrModelLoad) {
		t.Errorf("fetch unknown model: err = %v, want ErrModelLoad", err)
	}
}

func TestHistoryCommand_Disabled(t *testing.T) {
	testEnv(t)
	t.Setenv("UPSCALER_HISTORY_DB", "off")

	if _, _, err := execute(t, "history"); !errors.Is(err, errHistoryDisabled) {
		t.Errorf("err = %v, want errHistoryDisabled", err)
	}
	if _, _, err := execute(t, "history", "--status", "bogus", "--no-history"); exitCode(err) != core.ExitCodeUsage {
		t.Errorf("bad status: err = %v", err)
	}
}

func TestHistoryPrune(t *testing.T) {
	testEnv(t)

	stdout, _, err := execute(t, "history", "prune", "--json")
	if err != nil {
		t.Fatalf("prune: %v", err)
	}
	var res db.PruneResult
	if err := json.Unmarshal([]byte(stdout), &res); err != nil {
		t.Fatal(err)
	}
	if res.Total() != 0 {
		t.Errorf("pruned %d rows from an empty history", res.Total())
	}

	if _, _, err := execute(t, "history", "prune", "--older-than", "0s"); exitCode(err) != core.ExitCodeUsage {
		t.Errorf("zero --older-than: err = %v", err)
	}
}

func TestVersionCommand(t *testing.T) {
	stdout, _, err := execute(t, "version")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(stdout, core.Version) || !strings.Contains(stdout, "interpolation") {
		t.Errorf("version output = %q", stdout)
	}

	stdout, _, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatal(err)
	}
	var report versionReport
	if err := json.Unmarshal([]byte(stdout), &report); err != nil {
		t.Fatal(err)
	}
	if report.Version != core.Version || report.Go == "" {
		t.Errorf("report = %+v", report)
	}
}
