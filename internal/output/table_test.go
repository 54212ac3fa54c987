package output

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/formulary/internal/formula"
	"github.com/blackwell-systems/formulary/internal/store"
)

func TestRenderKegTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	now := time.Now()

	tests := []struct {
		name     string
		kegs     []*store.Keg
		contains []string
	}{
		{
			name:     "empty",
			kegs:     nil,
			contains: []string{"No formulae installed"},
		},
		{
			name: "sorted by name",
			kegs: []*store.Keg{
				{Name: "zsh-helper", Version: "0.3", InstalledAt: now.Add(-48 * time.Hour), Files: map[string]string{"zh": "bin/zh"}},
				{Name: "shell-menu-runner", Version: "1.0.0", InstalledAt: now.Add(-24 * time.Hour), Files: map[string]string{"run": "bin/run"}},
			},
			contains: []string{"shell-menu-runner", "1.0.0", "1 day ago", "run", "zsh-helper", "2 days ago"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := RenderKegTable(tt.kegs)
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("RenderKegTable() missing %q in:\n%s", want, result)
				}
			}
		})
	}

	result := RenderKegTable([]*store.Keg{
		{Name: "zsh-helper", Version: "0.3"},
		{Name: "alpha", Version: "1"},
	})
	if strings.Index(result, "alpha") > strings.Index(result, "zsh-helper") {
		t.Errorf("kegs not sorted by name:\n%s", result)
	}
}

func TestRenderAvailableTable(t *testing.T) {
	if got := RenderAvailableTable(nil); !strings.Contains(got, "No builtin formulae") {
		t.Errorf("RenderAvailableTable(nil) = %q", got)
	}

	result := RenderAvailableTable(formula.Builtins())
	for _, want := range []string{"shell-menu-runner", "1.0.0", "Zero-dependency task runner"} {
		if !strings.Contains(result, want) {
			t.Errorf("RenderAvailableTable() missing %q in:\n%s", want, result)
		}
	}
}

func TestRenderEventTable(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderEventTable(nil); !strings.Contains(got, "No history") {
		t.Errorf("RenderEventTable(nil) = %q", got)
	}

	ts := time.Date(2026, 3, 1, 12, 0, 0, 0, time.Local)
	result := RenderEventTable([]*store.Event{
		{Formula: "shell-menu-runner", Action: store.ActionFailed, Version: "1.0.0", Detail: "integrity mismatch", Timestamp: ts},
		{Formula: "shell-menu-runner", Action: store.ActionInstall, Version: "1.0.0", Timestamp: ts.Add(-time.Hour)},
	})
	for _, want := range []string{"2026-03-01 12:00:00", "failed", "install", "integrity mismatch"} {
		if !strings.Contains(result, want) {
			t.Errorf("RenderEventTable() missing %q in:\n%s", want, result)
		}
	}
	if strings.Contains(result, "\033[") {
		t.Error("RenderEventTable() emitted color codes with NO_COLOR set")
	}
}

func TestRenderFindings(t *testing.T) {
	t.Setenv("NO_COLOR", "1")

	if got := RenderFindings("shell-menu-runner", nil); got != "shell-menu-runner: ok\n" {
		t.Errorf("RenderFindings(nil) = %q", got)
	}

	got := RenderFindings("tool", []formula.Finding{
		{Field: "desc", Severity: formula.SeverityWarning, Message: "desc is missing"},
		{Field: "version", Severity: formula.SeverityError, Message: "cannot determine version"},
	})
	want := "tool:\n" +
		"  warning desc      desc is missing\n" +
		"  error   version   cannot determine version\n"
	if got != want {
		t.Errorf("RenderFindings() =\n%q\nwant\n%q", got, want)
	}
}

func TestRenderFormulaInfo(t *testing.T) {
	t.Setenv("NO_COLOR", "1")
	f, ok := formula.Builtin("shell-menu-runner")
	if !ok {
		t.Fatal("builtin missing")
	}

	result := RenderFormulaInfo(f, nil)
	for _, want := range []string{
		"ShellMenuRunner",
		"Zero-dependency task runner",
		"https://github.com/MarioPeters/shell-menu-runner/archive/refs/tags/v1.0.0.tar.gz",
		"5949c755d19a767a9c26963f88ce21d7e1495e1ca3d1524bf998991d5a6151a6",
		"MIT",
		"bin/run <- run.sh",
		"Not installed.",
	} {
		if !strings.Contains(result, want) {
			t.Errorf("RenderFormulaInfo() missing %q in:\n%s", want, result)
		}
	}

	keg := &store.Keg{
		Name:        "shell-menu-runner",
		Version:     "0.9.0",
		Path:        "/prefix/Cellar/shell-menu-runner/0.9.0",
		InstalledAt: time.Now(),
		Links:       []string{"/prefix/bin/run"},
	}
	result = RenderFormulaInfo(f, keg)
	for _, want := range []string{"Installed 0.9.0", "formula is at 1.0.0", "/prefix/bin/run"} {
		if !strings.Contains(result, want) {
			t.Errorf("RenderFormulaInfo() missing %q in:\n%s", want, result)
		}
	}
}

func TestFormatRelativeTime(t *testing.T) {
	now := time.Now()
	tests := []struct {
		t    time.Time
		want string
	}{
		{time.Time{}, "never"},
		{now.Add(-10 * time.Second), "just now"},
		{now.Add(-1 * time.Minute), "1 minute ago"},
		{now.Add(-5 * time.Minute), "5 minutes ago"},
		{now.Add(-3 * time.Hour), "3 hours ago"},
		{now.Add(-24 * time.Hour), "1 day ago"},
		{now.Add(-14 * 24 * time.Hour), "2 weeks ago"},
		{now.Add(-90 * 24 * time.Hour), "3 months ago"},
		{now.Add(-800 * 24 * time.Hour), "2 years ago"},
	}
	for _, tt := range tests {
		if got := formatRelativeTime(tt.t); got != tt.want {
			t.Errorf("formatRelativeTime(%v) = %q, want %q", tt.t, got, tt.want)
		}
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"much longer than ten", 10, "much lo..."},
		{"abcdef", 3, "abc"},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.max); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.max, got, tt.want)
		}
	}
}
