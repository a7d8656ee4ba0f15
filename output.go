package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/fatih/color"
)

var (
	successColor = color.New(color.FgGreen, color.Bold)
	warnColor    = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed, color.Bold)
	headerColor  = color.New(color.FgCyan, color.Bold)
	dimColor     = color.New(color.Faint)
)

func printSuccess(w io.Writer, format string, args ...any) {
	successColor.Fprint(w, "✓ ")
	fmt.Fprintf(w, format+"\n", args...)
}

func printWarn(w io.Writer, format string, args ...any) {
	warnColor.Fprintf(w, "! "+format+"\n", args...)
}

func printError(w io.Writer, err error) {
	errorColor.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}

func printHeader(w io.Writer, title string) {
	headerColor.Fprintln(w, title)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
