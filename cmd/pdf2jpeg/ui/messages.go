package ui

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
)

// Success prints a success message.
func Success(format string, args ...interface{}) {
	printColored(stdout, color.FgGreen, "✓", format, args...)
}

// Error prints an error message to stderr.
func Error(format string, args ...interface{}) {
	printColored(stderr, color.FgRed, "✗", format, args...)
}

// Warning prints a warning message.
func Warning(format string, args ...interface{}) {
	printColored(stdout, color.FgYellow, "⚠", format, args...)
}

// Info prints an informational message.
func Info(format string, args ...interface{}) {
	printColored(stdout, color.FgCyan, "ℹ", format, args...)
}

// Step prints a step message, only in verbose mode.
func Step(format string, args ...interface{}) {
	if !verboseFlag {
		return
	}
	printColored(stdout, color.FgBlue, "→", format, args...)
}

// Newline prints a newline.
func Newline() {
	fmt.Fprintln(stdout)
}

// Section displays a section header.
func Section(title string) {
	if noColorFlag {
		fmt.Fprintf(stdout, "\n%s\n%s\n\n", title, strings.Repeat("=", len(title)))
		return
	}
	color.New(color.FgMagenta, color.Bold).Fprintf(stdout, "\n━━━ %s ━━━\n\n", strings.ToUpper(title))
}

// FormatDuration renders a duration for humans.
func FormatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return d.Round(time.Second).String()
	}
}

func printColored(w io.Writer, attr color.Attribute, symbol, format string, args ...interface{}) {
	msg := fmt.Sprintf("%s %s\n", symbol, fmt.Sprintf(format, args...))
	if noColorFlag {
		fmt.Fprint(w, msg)
		return
	}
	color.New(attr).Fprint(w, msg)
}
