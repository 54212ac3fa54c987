package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/blackwell-systems/formulary/internal/checksum"
	"github.com/blackwell-systems/formulary/internal/formula"
)

func TestInstallListUninstall(t *testing.T) {
	prefix := testPrefix(t)
	path := writeFormula(t, "1.0.0")

	out, err := run(t, prefix, "install", path)
	if err != nil {
		t.Fatalf("install error: %v", err)
	}
	if !strings.Contains(out, "✓ Installed hello-tool 1.0.0") {
		t.Errorf("install output missing success line:\n%s", out)
	}
	if strings.Contains(out, "Note:") {
		t.Errorf("bin is on PATH, expected no PATH note:\n%s", out)
	}

	binPath := filepath.Join(prefix, "bin", "hello")
	info, err := os.Stat(binPath)
	if err != nil {
		t.Fatalf("linked command missing: %v", err)
	}
	if info.Mode().Perm()&0111 == 0 {
		t.Errorf("%s is not executable: %v", binPath, info.Mode())
	}
	data, err := os.ReadFile(binPath)
	if err != nil || string(data) != helloScript {
		t.Errorf("linked command content = %q, %v", data, err)
	}

	out, err = run(t, prefix, "list")
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if !strings.Contains(out, "hello-tool") || !strings.Contains(out, "hello") {
		t.Errorf("list output missing keg:\n%s", out)
	}

	out, err = run(t, prefix, "info", path)
	if err != nil {
		t.Fatalf("info error: %v", err)
	}
	if !strings.Contains(out, "Installed 1.0.0") || !strings.Contains(out, "bin/hello <- hello.sh") {
		t.Errorf("info output:\n%s", out)
	}

	out, err = run(t, prefix, "uninstall", "hello-tool")
	if err != nil {
		t.Fatalf("uninstall error: %v", err)
	}
	if !strings.Contains(out, "✓ Uninstalled hello-tool 1.0.0") {
		t.Errorf("uninstall output:\n%s", out)
	}
	if _, err := os.Lstat(binPath); !os.IsNotExist(err) {
		t.Errorf("link still present after uninstall: %v", err)
	}

	out, err = run(t, prefix, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "No formulae installed") {
		t.Errorf("list after uninstall:\n%s", out)
	}

	out, err = run(t, prefix, "history")
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"install", "uninstall", "hello-tool"} {
		if !strings.Contains(out, want) {
			t.Errorf("history missing %q:\n%s", want, out)
		}
	}
	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "hello-tool") {
			if !strings.Contains(line, "uninstall") {
				t.Errorf("history not newest first, first row: %q", line)
			}
			break
		}
	}
}

func TestInstall_AlreadyInstalledWarns(t *testing.T) {
	prefix := testPrefix(t)
	path := writeFormula(t, "1.0.0")

	if _, err := run(t, prefix, "install", path); err != nil {
		t.Fatal(err)
	}
	out, err := run(t, prefix, "install", path)
	if err != nil {
		t.Fatalf("second install error: %v", err)
	}
	if !strings.Contains(out, "Warning:") || !strings.Contains(out, "--force") {
		t.Errorf("expected already-installed warning:\n%s", out)
	}

	out, err = run(t, prefix, "install", "--force", path)
	if err != nil {
		t.Fatalf("forced install error: %v", err)
	}
	if !strings.Contains(out, "✓ Installed hello-tool 1.0.0") {
		t.Errorf("forced install output:\n%s", out)
	}
}

func TestInstall_IntegrityMismatch(t *testing.T) {
	prefix := testPrefix(t)
	path := writeFormula(t, "1.0.0")

	f, err := formula.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	f.SHA256 = strings.Repeat("0", 64)
	if err := os.WriteFile(path, []byte(f.Ruby()), 0644); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, prefix, "install", path)
	if !errors.Is(err, checksum.ErrIntegrityMismatch) {
		t.Fatalf("install error = %v, want ErrIntegrityMismatch", err)
	}
	if !strings.Contains(out, "✗ hello-tool") {
		t.Errorf("expected failure line:\n%s", out)
	}
	if entries, _ := os.ReadDir(filepath.Join(prefix, "bin")); len(entries) != 0 {
		t.Errorf("bin path not empty after failed install: %v", entries)
	}

	out, err = run(t, prefix, "history", "hello-tool")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "failed") {
		t.Errorf("history missing failed event:\n%s", out)
	}
}

func TestInstall_UnresolvedArgumentInstallsNothing(t *testing.T) {
	prefix := testPrefix(t)
	good := writeFormula(t, "1.0.0")
	missing := filepath.Join(t.TempDir(), "missing.rb")

	// Arguments are resolved before anything is installed.
	if _, err := run(t, prefix, "install", good, missing); err == nil {
		t.Fatal("expected error for missing formula file")
	}
	if _, err := os.Lstat(filepath.Join(prefix, "bin", "hello")); !os.IsNotExist(err) {
		t.Errorf("nothing should be installed when an argument does not resolve")
	}
}

func TestUninstall_ByClassName(t *testing.T) {
	prefix := testPrefix(t)
	path := writeFormula(t, "1.0.0")
	if _, err := run(t, prefix, "install", path); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, prefix, "uninstall", "HelloTool")
	if err != nil {
		t.Fatalf("uninstall by class name error: %v", err)
	}
	if !strings.Contains(out, "✓ Uninstalled hello-tool 1.0.0") {
		t.Errorf("uninstall output:\n%s", out)
	}
}

func TestInstalledName(t *testing.T) {
	path := writeFormula(t, "1.0.0")
	tests := []struct {
		arg  string
		want string
	}{
		{"hello-tool", "hello-tool"},
		{"HelloTool", "hello-tool"},
		{"ShellMenuRunner", "shell-menu-runner"},
		{path, "hello-tool"},
	}
	for _, tt := range tests {
		got, err := installedName(tt.arg)
		if err != nil {
			t.Errorf("installedName(%q) error: %v", tt.arg, err)
			continue
		}
		if got != tt.want {
			t.Errorf("installedName(%q) = %q, want %q", tt.arg, got, tt.want)
		}
	}
}

func TestUninstall_NotInstalled(t *testing.T) {
	prefix := testPrefix(t)
	if _, err := run(t, prefix, "uninstall", "hello-tool"); err == nil {
		t.Error("expected error uninstalling a formula that is not installed")
	}
}

func TestFetchAndVerify(t *testing.T) {
	prefix := testPrefix(t)
	path := writeFormula(t, "2.1.0")
	f, err := formula.Load(path)
	if err != nil {
		t.Fatal(err)
	}

	out, err := run(t, prefix, "fetch", path)
	if err != nil {
		t.Fatalf("fetch error: %v", err)
	}
	cached := filepath.Join(prefix, "cache", "downloads", f.SHA256+"--v2.1.0.tar.gz")
	if !strings.Contains(out, cached) {
		t.Errorf("fetch output missing cache path %s:\n%s", cached, out)
	}
	if err := checksum.Verify(cached, f.SHA256); err != nil {
		t.Errorf("cached archive: %v", err)
	}

	out, err = run(t, prefix, "verify", path)
	if err != nil {
		t.Fatalf("verify error: %v", err)
	}
	if want := "✓ hello-tool: sha256 " + f.SHA256 + "\n"; !strings.HasSuffix(out, want) {
		t.Errorf("verify output = %q, want suffix %q", out, want)
	}
}

func TestListAvailable(t *testing.T) {
	prefix := testPrefix(t)
	out, err := run(t, prefix, "list", "--available")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "shell-menu-runner") {
		t.Errorf("list --available missing builtin:\n%s", out)
	}
}

func TestCat(t *testing.T) {
	prefix := testPrefix(t)

	out, err := run(t, prefix, "cat", "shell-menu-runner")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(out, "class ShellMenuRunner < Formula\n") || !strings.Contains(out, `bin.install "run.sh" => "run"`) {
		t.Errorf("ruby output:\n%s", out)
	}

	out, err = run(t, prefix, "cat", "--format", "yaml", "shell-menu-runner")
	if err != nil {
		t.Fatal(err)
	}
	f, err := formula.ParseYAML([]byte(out))
	if err != nil {
		t.Fatalf("cat --format yaml produced an invalid manifest: %v\n%s", err, out)
	}
	want, _ := formula.Builtin("shell-menu-runner")
	if f.Name != want.Name || f.SHA256 != want.SHA256 || f.URL != want.URL {
		t.Errorf("yaml round trip = %+v, want %+v", f, want)
	}

	if _, err := run(t, prefix, "cat", "--format", "toml", "shell-menu-runner"); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestAudit(t *testing.T) {
	prefix := testPrefix(t)

	out, err := run(t, prefix, "audit", "shell-menu-runner")
	if err != nil {
		t.Fatalf("audit of builtin failed: %v\n%s", err, out)
	}
	if !strings.Contains(out, "shell-menu-runner: ok") {
		t.Errorf("audit output:\n%s", out)
	}

	// A file:// url is a warning: passes normally, fails with --strict.
	path := writeFormula(t, "1.0.0")
	if _, err := run(t, prefix, "audit", path); err != nil {
		t.Errorf("audit without --strict failed: %v", err)
	}
	out, err = run(t, prefix, "audit", "--strict", path)
	if err == nil {
		t.Errorf("audit --strict passed despite warnings:\n%s", out)
	}
	if !strings.Contains(out, "local file") {
		t.Errorf("audit output missing url warning:\n%s", out)
	}

	broken := filepath.Join(t.TempDir(), "broken.rb")
	if err := os.WriteFile(broken, []byte("class Broken < Formula\n  url 'x'\n"), 0644); err != nil {
		t.Fatal(err)
	}
	out, err = run(t, prefix, "audit", broken)
	if err == nil || !strings.Contains(out, "error") {
		t.Errorf("audit of unparsable formula = %v:\n%s", err, out)
	}

	if _, err := run(t, prefix, "audit"); err == nil {
		t.Error("expected error when no formula and no --watch are given")
	}
}

func TestHistory_NegativeLimit(t *testing.T) {
	prefix := testPrefix(t)
	if _, err := run(t, prefix, "history", "--limit", "-1"); err == nil {
		t.Error("expected error for negative --limit")
	}
}

func TestDoctor(t *testing.T) {
	prefix := testPrefix(t)

	out, err := run(t, prefix, "doctor")
	if err == nil {
		t.Fatalf("doctor on an empty prefix should report missing directories:\n%s", out)
	}
	if !strings.Contains(out, "Missing directory") || !strings.Contains(out, "doctor --fix") {
		t.Errorf("doctor output:\n%s", out)
	}

	out, err = run(t, prefix, "doctor", "--fix")
	if err != nil {
		t.Fatalf("doctor --fix error: %v\n%s", err, out)
	}
	for _, dir := range []string{"Cellar", "bin", "cache", "tmp"} {
		if _, err := os.Stat(filepath.Join(prefix, dir)); err != nil {
			t.Errorf("%s not created: %v", dir, err)
		}
	}

	out, err = run(t, prefix, "doctor")
	if err != nil {
		t.Fatalf("doctor after fix error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "All checks passed") {
		t.Errorf("doctor output:\n%s", out)
	}
}

func TestDoctor_AdoptsKegsAndClearsStaging(t *testing.T) {
	prefix := testPrefix(t)
	path := writeFormula(t, "1.0.0")
	if _, err := run(t, prefix, "install", path); err != nil {
		t.Fatal(err)
	}

	// Lose the install records and leave an interrupted install behind.
	if err := os.Remove(filepath.Join(prefix, "var", "formulary.db")); err != nil {
		t.Fatal(err)
	}
	os.Remove(filepath.Join(prefix, "var", "formulary.db-wal"))
	os.Remove(filepath.Join(prefix, "var", "formulary.db-shm"))
	if err := os.MkdirAll(filepath.Join(prefix, "tmp", "hello-tool-partial"), 0755); err != nil {
		t.Fatal(err)
	}

	out, err := run(t, prefix, "doctor")
	if err == nil {
		t.Fatalf("doctor should report the unrecorded keg:\n%s", out)
	}
	if !strings.Contains(out, "not recorded") || !strings.Contains(out, "leftover staging") {
		t.Errorf("doctor output:\n%s", out)
	}

	out, err = run(t, prefix, "doctor", "--fix")
	if err != nil {
		t.Fatalf("doctor --fix error: %v\n%s", err, out)
	}
	if !strings.Contains(out, "Adopted hello-tool 1.0.0") {
		t.Errorf("doctor --fix output:\n%s", out)
	}

	out, err = run(t, prefix, "list")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out, "hello-tool") {
		t.Errorf("adopted keg not listed:\n%s", out)
	}
	if entries, _ := os.ReadDir(filepath.Join(prefix, "tmp")); len(entries) != 0 {
		t.Errorf("staging not cleared: %v", entries)
	}
}
