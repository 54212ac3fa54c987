// Package shell adds the formulary bin directory to the user's login shell
// configuration.
package shell

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const marker = "# formulary bin"

// Profile is the login configuration file of a shell and the line that
// puts a directory on PATH in that shell's syntax.
type Profile struct {
	Path string
	Fish bool
}

// ProfileFor picks the configuration file for the shell at shellPath
// (usually $SHELL) under home.
func ProfileFor(shellPath, home string) Profile {
	switch filepath.Base(shellPath) {
	case "zsh":
		return Profile{Path: filepath.Join(home, ".zprofile")}
	case "bash":
		return Profile{Path: filepath.Join(home, ".bash_profile")}
	case "fish":
		return Profile{Path: filepath.Join(home, ".config", "fish", "conf.d", "formulary.fish"), Fish: true}
	default:
		return Profile{Path: filepath.Join(home, ".profile")}
	}
}

// Line returns the snippet that prepends dir to PATH.
func (p Profile) Line(dir string) string {
	if p.Fish {
		return fmt.Sprintf("\n%s\nfish_add_path %s\n", marker, dir)
	}
	return fmt.Sprintf("\n%s\nexport PATH=%q:$PATH\n", marker, dir)
}

// EnsurePathEntry checks whether dir is on PATH and, if not, appends the
// export line to the appropriate shell config file.
// added=false means nothing was written, either because dir is already on
// PATH or because the config file already carries the entry.
func EnsurePathEntry(dir string) (added bool, configFile string, err error) {
	for _, entry := range filepath.SplitList(os.Getenv("PATH")) {
		if filepath.Clean(entry) == filepath.Clean(dir) {
			return false, "", nil
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return false, "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	profile := ProfileFor(os.Getenv("SHELL"), home)

	// Needed for the fish conf.d path.
	if err := os.MkdirAll(filepath.Dir(profile.Path), 0755); err != nil {
		return false, "", fmt.Errorf("cannot create config directory %s: %w", filepath.Dir(profile.Path), err)
	}

	if existing, err := os.ReadFile(profile.Path); err == nil && strings.Contains(string(existing), marker) {
		return false, profile.Path, nil
	}

	f, err := os.OpenFile(profile.Path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return false, "", fmt.Errorf("cannot open config file %s: %w", profile.Path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprint(f, profile.Line(dir)); err != nil {
		return false, "", fmt.Errorf("cannot write to config file %s: %w", profile.Path, err)
	}

	return true, profile.Path, nil
}
