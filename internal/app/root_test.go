package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/formulary/internal/archive/archivetest"
	"github.com/blackwell-systems/formulary/internal/checksum"
	"github.com/blackwell-systems/formulary/internal/formula"
)

const helloScript = "#!/bin/sh\necho hello\n"

// resetFlags restores every flag variable, since cobra keeps them between
// executions of the package-level commands.
func resetFlags() {
	prefixFlag, dbFlag, logLevelFlag, logFormatFlag = "", "", "", ""
	installForce = false
	listAvailable = false
	auditStrict, auditWatch = false, ""
	catFormat = "ruby"
	historyLimit = 20
	doctorFix = false
}

// testPrefix isolates the command from the user's environment and returns
// a fresh prefix.
func testPrefix(t *testing.T) string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())
	t.Setenv("NO_COLOR", "1")
	for _, name := range []string{"PREFIX", "DB", "KEYRING", "WORKERS", "LOG_LEVEL", "LOG_FORMAT"} {
		// Setenv restores the original value on cleanup.
		t.Setenv("FORMULARY_"+name, "")
		os.Unsetenv("FORMULARY_" + name)
	}
	prefix := filepath.Join(t.TempDir(), "prefix")
	t.Setenv("PATH", filepath.Join(prefix, "bin")+string(filepath.ListSeparator)+os.Getenv("PATH"))
	return prefix
}

// run executes the CLI with args against prefix and returns stdout.
func run(t *testing.T, prefix string, args ...string) (string, error) {
	t.Helper()
	resetFlags()
	t.Cleanup(resetFlags)

	var stdout, stderr bytes.Buffer
	RootCmd.SetOut(&stdout)
	RootCmd.SetErr(&stderr)
	RootCmd.SetArgs(append([]string{"--prefix", prefix}, args...))
	err := RootCmd.ExecuteContext(context.Background())
	if stderr.Len() > 0 {
		t.Logf("stderr:\n%s", stderr.String())
	}
	return stdout.String(), err
}

// writeFormula publishes a release archive and a Ruby formula for it in a
// temporary directory and returns the formula path.
func writeFormula(t *testing.T, version string) string {
	t.Helper()
	dir := t.TempDir()
	data := archivetest.TarGz(t,
		archivetest.File{Name: "hello-tool-" + version + "/", Dir: true},
		archivetest.Script("hello-tool-"+version+"/hello.sh", helloScript),
	)
	archivePath := filepath.Join(dir, "v"+version+".tar.gz")
	if err := os.WriteFile(archivePath, data, 0644); err != nil {
		t.Fatal(err)
	}
	sum, err := checksum.Sum(bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}

	f := &formula.Formula{
		Class:    "HelloTool",
		Desc:     "Prints a greeting",
		Homepage: "https://example.com/hello-tool",
		URL:      "file://" + archivePath,
		SHA256:   sum,
		License:  "MIT",
		Install:  []formula.InstallAction{{Dir: formula.DirBin, Source: "hello.sh", Target: "hello"}},
	}
	path := filepath.Join(dir, "hello-tool.rb")
	if err := os.WriteFile(path, []byte(f.Ruby()), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRootCommand(t *testing.T) {
	if RootCmd.Use != "formulary" {
		t.Errorf("expected Use to be 'formulary', got '%s'", RootCmd.Use)
	}
	if RootCmd.Short == "" || RootCmd.Long == "" {
		t.Error("expected Short and Long descriptions to be set")
	}

	found := make(map[string]bool)
	for _, cmd := range RootCmd.Commands() {
		found[cmd.Name()] = true
	}
	for _, name := range []string{"install", "uninstall", "list", "info", "fetch", "verify", "audit", "cat", "history", "doctor"} {
		if !found[name] {
			t.Errorf("expected command '%s' to be registered", name)
		}
	}

	for _, name := range []string{"prefix", "db", "log-level", "log-format"} {
		flag := RootCmd.PersistentFlags().Lookup(name)
		if flag == nil {
			t.Errorf("expected --%s flag to be registered", name)
		} else if flag.Usage == "" {
			t.Errorf("expected --%s flag to have usage text", name)
		}
	}
}

func TestLoadConfig_FlagsOverrideEnv(t *testing.T) {
	testPrefix(t)
	t.Cleanup(resetFlags)
	t.Setenv("FORMULARY_PREFIX", "/from/env")
	t.Setenv("FORMULARY_LOG_LEVEL", "debug")

	resetFlags()
	cfg, err := loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Prefix != "/from/env" || cfg.Log.Level != "debug" {
		t.Errorf("env config = %q, %q, want /from/env, debug", cfg.Prefix, cfg.Log.Level)
	}

	prefixFlag = "/from/flag"
	cfg, err = loadConfig(context.Background())
	if err != nil {
		t.Fatalf("loadConfig() error: %v", err)
	}
	if cfg.Prefix != "/from/flag" {
		t.Errorf("Prefix = %q, want /from/flag", cfg.Prefix)
	}
	if want := filepath.Join("/from/flag", "var", "formulary.db"); cfg.DB != want {
		t.Errorf("DB = %q, want %q", cfg.DB, want)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want env value debug", cfg.Log.Level)
	}

	dbFlag = "/elsewhere/f.db"
	cfg, err = loadConfig(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DB != "/elsewhere/f.db" {
		t.Errorf("DB = %q, want /elsewhere/f.db", cfg.DB)
	}
}

func TestResolveFormula(t *testing.T) {
	path := writeFormula(t, "1.0.0")

	tests := []struct {
		arg     string
		want    string
		wantErr bool
	}{
		{arg: "shell-menu-runner", want: "shell-menu-runner"},
		{arg: "ShellMenuRunner", want: "shell-menu-runner"},
		{arg: path, want: "hello-tool"},
		{arg: filepath.Join(t.TempDir(), "missing.rb"), wantErr: true},
		{arg: "no-such-formula", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			f, err := resolveFormula(tt.arg)
			if tt.wantErr {
				if err == nil {
					t.Errorf("resolveFormula(%q) expected error", tt.arg)
				}
				return
			}
			if err != nil {
				t.Fatalf("resolveFormula(%q) error: %v", tt.arg, err)
			}
			if f.Name != tt.want {
				t.Errorf("Name = %q, want %q", f.Name, tt.want)
			}
		})
	}
}

func TestUnknownCommandSuggests(t *testing.T) {
	prefix := testPrefix(t)
	_, err := run(t, prefix, "instal")
	if err == nil || !strings.Contains(err.Error(), "install") {
		t.Errorf("expected suggestion for 'install', got %v", err)
	}
}
