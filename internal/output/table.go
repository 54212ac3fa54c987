// Package output renders formulary results for the terminal.
//
// This package includes:
//   - Table rendering for installed kegs, install history and audit findings
//   - A key/value view of a single formula
//   - Spinners for indeterminate operations
//   - Human-readable formatting for dates
//
// Colors are only emitted when stdout is a terminal and NO_COLOR is unset.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/formulary/internal/formula"
	"github.com/blackwell-systems/formulary/internal/store"
)

const (
	colorReset  = "\033[0m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderKegTable renders the installed kegs.
func RenderKegTable(kegs []*store.Keg) string {
	if len(kegs) == 0 {
		return "No formulae installed.\n"
	}

	sorted := make([]*store.Keg, len(kegs))
	copy(sorted, kegs)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %-12s %-14s %s\n", "Formula", "Version", "Installed", "Commands"))
	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")

	for _, k := range sorted {
		sb.WriteString(fmt.Sprintf("%-24s %-12s %-14s %s\n",
			truncate(k.Name, 24),
			truncate(k.Version, 12),
			formatRelativeTime(k.InstalledAt),
			strings.Join(commandNames(k), ", ")))
	}

	return sb.String()
}

// RenderAvailableTable renders formulae that can be installed by name.
func RenderAvailableTable(formulae []*formula.Formula) string {
	if len(formulae) == 0 {
		return "No builtin formulae.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-24s %-12s %s\n", "Formula", "Version", "Description"))
	sb.WriteString(strings.Repeat("─", 70))
	sb.WriteString("\n")
	for _, f := range formulae {
		sb.WriteString(fmt.Sprintf("%-24s %-12s %s\n",
			truncate(f.Name, 24),
			truncate(f.DerivedVersion(), 12),
			truncate(f.Desc, 32)))
	}
	return sb.String()
}

func commandNames(k *store.Keg) []string {
	names := make([]string, 0, len(k.Files))
	for name := range k.Files {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RenderEventTable renders install history, newest first as given.
func RenderEventTable(events []*store.Event) string {
	if len(events) == 0 {
		return "No history recorded.\n"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%-20s %-24s %-10s %-12s %s\n", "When", "Formula", "Action", "Version", "Detail"))
	sb.WriteString(strings.Repeat("─", 96))
	sb.WriteString("\n")

	for _, e := range events {
		// Pad before coloring so escape codes do not break alignment.
		action := fmt.Sprintf("%-10s", e.Action)
		sb.WriteString(fmt.Sprintf("%-20s %-24s %s %-12s %s\n",
			e.Timestamp.Local().Format("2006-01-02 15:04:05"),
			truncate(e.Formula, 24),
			colorize(actionColor(e.Action), action),
			truncate(e.Version, 12),
			truncate(e.Detail, 40)))
	}

	return sb.String()
}

func actionColor(action string) string {
	switch action {
	case store.ActionInstall:
		return colorGreen
	case store.ActionUninstall:
		return colorYellow
	case store.ActionFailed:
		return colorRed
	default:
		return colorGray
	}
}

// RenderFindings renders audit findings for one formula. An empty list
// renders as a single "ok" line.
func RenderFindings(name string, findings []formula.Finding) string {
	var sb strings.Builder
	if len(findings) == 0 {
		sb.WriteString(fmt.Sprintf("%s: %s\n", name, colorize(colorGreen, "ok")))
		return sb.String()
	}

	sb.WriteString(fmt.Sprintf("%s:\n", name))
	for _, f := range findings {
		severity := fmt.Sprintf("%-7s", f.Severity)
		color := colorYellow
		if f.Severity == formula.SeverityError {
			color = colorRed
		}
		sb.WriteString(fmt.Sprintf("  %s %-9s %s\n", colorize(color, severity), f.Field, f.Message))
	}
	return sb.String()
}

// RenderFormulaInfo renders the fields of f and, when installed, its keg.
func RenderFormulaInfo(f *formula.Formula, keg *store.Keg) string {
	var sb strings.Builder

	row := func(label, value string) {
		if value == "" {
			value = colorize(colorGray, "-")
		}
		sb.WriteString(fmt.Sprintf("%-10s %s\n", label+":", value))
	}

	row("Formula", f.Name)
	row("Class", f.Class)
	row("Desc", f.Desc)
	row("Homepage", f.Homepage)
	row("URL", f.URL)
	row("Version", f.DerivedVersion())
	row("SHA256", f.SHA256)
	row("License", f.License)
	if f.Signature != "" {
		row("Signature", f.Signature)
	}

	sb.WriteString("\nInstall:\n")
	for _, a := range f.Install {
		sb.WriteString(fmt.Sprintf("  %s/%s <- %s\n", a.Dir, a.Target, a.Source))
	}

	sb.WriteString("\n")
	if keg == nil {
		sb.WriteString("Not installed.\n")
		return sb.String()
	}
	status := fmt.Sprintf("Installed %s (%s)", keg.Version, formatRelativeTime(keg.InstalledAt))
	if keg.Version != f.DerivedVersion() {
		status += colorize(colorYellow, fmt.Sprintf(", formula is at %s", f.DerivedVersion()))
	}
	sb.WriteString(status + "\n")
	sb.WriteString(fmt.Sprintf("  %s\n", keg.Path))
	for _, l := range keg.Links {
		sb.WriteString(fmt.Sprintf("  %s\n", l))
	}
	return sb.String()
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return plural(int(diff.Minutes()), "minute")
	case diff < 24*time.Hour:
		return plural(int(diff.Hours()), "hour")
	case diff < 7*24*time.Hour:
		return plural(int(diff.Hours()/24), "day")
	case diff < 30*24*time.Hour:
		return plural(int(diff.Hours()/24/7), "week")
	case diff < 365*24*time.Hour:
		return plural(int(diff.Hours()/24/30), "month")
	default:
		return plural(int(diff.Hours()/24/365), "year")
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit + " ago"
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
