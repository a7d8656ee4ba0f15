package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"go_upscaler/core"
	"go_upscaler/upscaler"
)

func main() {
	// A missing .env is normal; configuration may come from the environment.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Warning: could not load .env: %v\n", err)
	}

	a := &app{}
	cmd := newRootCommand(a)
	err := cmd.ExecuteContext(context.Background())
	a.close()
	if err != nil {
		printError(os.Stderr, err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps command errors onto process exit codes.
func exitCode(err error) int {
	var cfgErr *core.ConfigError
	var usage *usageError
	switch {
	case err == nil:
		return core.ExitCodeSuccess
	case errors.As(err, &cfgErr), errors.As(err, &usage), errors.Is(err, upscaler.ErrInvalidOptions):
		return core.ExitCodeUsage
	case errors.Is(err, upscaler.ErrCancelled), errors.Is(err, context.Canceled):
		return core.ExitCodeSIGINT
	default:
		return core.ExitCodeError
	}
}

// usageError marks bad flags or arguments.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }
