// Package output provides terminal formatting for the moodlog CLI.
package output

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
)

// Printer writes formatted messages. Informational output goes to out,
// warnings and errors go to err.
type Printer struct {
	out       io.Writer
	err       io.Writer
	useColors bool
}

// ResolveColors reports whether colors should be used. NO_COLOR and a
// dumb terminal override the configured value.
func ResolveColors(configColors bool) bool {
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("TERM") == "dumb" {
		return false
	}
	return configColors
}

// NewPrinter creates a printer writing to out and err.
func NewPrinter(out, err io.Writer, useColors bool) *Printer {
	if out == nil {
		out = os.Stdout
	}
	if err == nil {
		err = os.Stderr
	}
	return &Printer{out: out, err: err, useColors: useColors}
}

// Out returns the writer for regular output.
func (p *Printer) Out() io.Writer { return p.out }

// Info prints an informational message.
func (p *Printer) Info(format string, args ...any) {
	if p.useColors {
		color.New(color.FgCyan).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Success prints a success message.
func (p *Printer) Success(format string, args ...any) {
	if p.useColors {
		color.New(color.FgGreen).Fprintf(p.out, "✓ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, "[OK] "+format+"\n", args...)
}

// Warning prints a warning message.
func (p *Printer) Warning(format string, args ...any) {
	if p.useColors {
		color.New(color.FgYellow).Fprintf(p.err, "⚠ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[WARN] "+format+"\n", args...)
}

// Error prints an error message.
func (p *Printer) Error(format string, args ...any) {
	if p.useColors {
		color.New(color.FgRed).Fprintf(p.err, "✗ "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "[ERROR] "+format+"\n", args...)
}

// Print prints a plain message.
func (p *Printer) Print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// Header prints a section header.
func (p *Printer) Header(title string) {
	width := len([]rune(title))
	if p.useColors {
		color.New(color.FgWhite, color.Bold).Fprintf(p.out, "\n%s\n", title)
		color.New(color.FgWhite).Fprintf(p.out, "%s\n", strings.Repeat("─", width))
		return
	}
	fmt.Fprintf(p.out, "\n%s\n%s\n", title, strings.Repeat("-", width))
}

// Bold returns text in bold.
func (p *Printer) Bold(text string) string {
	if p.useColors {
		return color.New(color.Bold).Sprint(text)
	}
	return text
}

// Dim returns dimmed text.
func (p *Printer) Dim(text string) string {
	if p.useColors {
		return color.New(color.Faint).Sprint(text)
	}
	return text
}

// StateBadge colors a mental state name by severity.
func (p *Printer) StateBadge(state string) string {
	if !p.useColors {
		return state
	}
	switch strings.ToLower(state) {
	case "distressed":
		return color.RedString(state)
	case "anxious":
		return color.YellowString(state)
	case "neutral":
		return color.WhiteString(state)
	case "happy":
		return color.GreenString(state)
	default:
		return state
	}
}

// TrendBadge renders a trend direction with an arrow. A rising OCD index
// is bad news, so it is shown in red.
func (p *Printer) TrendBadge(trend string) string {
	var arrow string
	var c color.Attribute
	switch strings.ToLower(trend) {
	case "increasing":
		arrow, c = "↑", color.FgRed
	case "decreasing":
		arrow, c = "↓", color.FgGreen
	case "stable":
		arrow, c = "→", color.FgCyan
	default:
		arrow, c = "?", color.FgWhite
	}
	text := arrow + " " + trend
	if p.useColors {
		return color.New(c).Sprint(text)
	}
	return text
}
