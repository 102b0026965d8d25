package diagnostics

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Printer renders Reports with kanso's Rust-like coloring
// (internal/errors/reporter.go in the teacher repository) — severity-
// colored header, a "-->" location line — but pointed at a block/
// instruction Ref instead of a source position, since pass diagnostics
// have no source file or line to caret into.
type Printer struct {
	NoColor bool
}

// NewPrinter returns a Printer. Pass NoColor=true for non-TTY output
// (kanso's own CLI checks this with mattn/go-isatty indirectly through
// fatih/color's own NO_COLOR/isatty detection; here it's an explicit flag
// since this package does not depend on a terminal at all).
func NewPrinter(noColor bool) *Printer {
	return &Printer{NoColor: noColor}
}

func (p *Printer) levelColor(sev Severity) func(string, ...any) string {
	if p.NoColor {
		return fmt.Sprintf
	}
	switch sev {
	case Error:
		return color.New(color.FgRed, color.Bold).SprintfFunc()
	case Warning:
		return color.New(color.FgYellow, color.Bold).SprintfFunc()
	case Note:
		return color.New(color.FgCyan).SprintfFunc()
	default:
		return color.New(color.FgGreen).SprintfFunc()
	}
}

// Format renders a single Entry.
func (p *Printer) Format(e Entry) string {
	var sb strings.Builder
	bold := fmt.Sprintf
	if !p.NoColor {
		bold = color.New(color.Bold).SprintfFunc()
	}
	levelColor := p.levelColor(e.Severity)

	sb.WriteString(levelColor("%s", e.Severity.String()))
	sb.WriteString(fmt.Sprintf("[%s]: %s\n", e.Code, e.Message))
	if e.Ref != "" {
		sb.WriteString(fmt.Sprintf("  %s %s\n", bold("-->"), e.Ref))
	}
	sb.WriteString(fmt.Sprintf("  (%s)\n", e.Pass))
	return sb.String()
}

// FormatReport renders every entry of r in order.
func (p *Printer) FormatReport(r *Report) string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, e := range r.Entries {
		sb.WriteString(p.Format(e))
	}
	return sb.String()
}
