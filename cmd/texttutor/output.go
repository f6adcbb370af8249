package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/texttutor/internal/document"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+fmt.Sprintf(format, args...)))
}

func printError(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+fmt.Sprintf(format, args...)))
}

func printWarning(format string, args ...any) {
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+fmt.Sprintf(format, args...)))
}

// writeAnswer prints the answer followed by one line per source, in rank
// order and with repeats kept.
func writeAnswer(w io.Writer, answer string, sources []string) {
	fmt.Fprintln(w, answer)
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(w)
	fmt.Fprintln(w, colorize(colorBold, "Sources:"))
	for _, s := range sources {
		fmt.Fprintf(w, "  %s %s\n", colorize(colorCyan, "•"), document.FormatSource(s))
	}
}
