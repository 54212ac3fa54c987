// Package link manages the symlinks that expose installed kegs on the bin
// path.
//
// Every entry in <prefix>/bin is a symlink into a keg under the Cellar.
// Link never replaces a file it does not own; Unlink never removes a file
// that does not point into the keg being removed.
package link

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ErrLinkConflict is returned when a bin path entry already exists and is
// not a link to the same keg file.
var ErrLinkConflict = errors.New("link conflict")

// ConflictError names the bin path entry that blocked linking.
type ConflictError struct {
	Path     string
	Existing string
}

func (e *ConflictError) Error() string {
	if e.Existing == "" {
		return fmt.Sprintf("%s already exists and is not managed by formulary", e.Path)
	}
	return fmt.Sprintf("%s already links to %s", e.Path, e.Existing)
}

func (e *ConflictError) Is(target error) bool {
	return target == ErrLinkConflict
}

// Link creates binDir/<name> -> target for every entry of files. All
// entries are checked before any link is created, so a conflict leaves
// binDir untouched. It returns the created link paths, sorted.
func Link(binDir string, files map[string]string) ([]string, error) {
	names := make([]string, 0, len(files))
	for name := range files {
		if name == "" || name != filepath.Base(name) || name == "." || name == ".." {
			return nil, fmt.Errorf("invalid link name %q", name)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	// Pre-check every target.
	var pending []string
	for _, name := range names {
		linkPath := filepath.Join(binDir, name)
		existing, err := os.Readlink(linkPath)
		switch {
		case err == nil && existing == files[name]:
			// Already linked, nothing to do.
		case err == nil:
			return nil, &ConflictError{Path: linkPath, Existing: existing}
		case os.IsNotExist(err):
			pending = append(pending, name)
		default:
			// Exists but is not a symlink.
			return nil, &ConflictError{Path: linkPath}
		}
	}

	if err := os.MkdirAll(binDir, 0755); err != nil {
		return nil, fmt.Errorf("cannot create bin dir %s: %w", binDir, err)
	}

	var created []string
	for _, name := range pending {
		linkPath := filepath.Join(binDir, name)
		if err := os.Symlink(files[name], linkPath); err != nil {
			for _, p := range created {
				os.Remove(p)
			}
			return nil, fmt.Errorf("failed to link %s: %w", name, err)
		}
		created = append(created, linkPath)
	}

	links := make([]string, len(names))
	for i, name := range names {
		links[i] = filepath.Join(binDir, name)
	}
	return links, nil
}

// Unlink removes the symlinks in binDir that resolve into kegDir and
// returns how many were removed.
func Unlink(binDir, kegDir string) (int, error) {
	entries, err := os.ReadDir(binDir)
	if os.IsNotExist(err) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("cannot read bin dir %s: %w", binDir, err)
	}

	removed := 0
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		linkPath := filepath.Join(binDir, entry.Name())
		target, err := os.Readlink(linkPath)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(binDir, target)
		}
		if !within(kegDir, target) {
			continue
		}
		if err := os.Remove(linkPath); err != nil {
			return removed, fmt.Errorf("failed to unlink %s: %w", linkPath, err)
		}
		removed++
	}
	return removed, nil
}

// Broken returns the symlinks in binDir whose target no longer exists.
func Broken(binDir string) ([]string, error) {
	entries, err := os.ReadDir(binDir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cannot read bin dir %s: %w", binDir, err)
	}

	var broken []string
	for _, entry := range entries {
		if entry.Type()&os.ModeSymlink == 0 {
			continue
		}
		linkPath := filepath.Join(binDir, entry.Name())
		if _, err := os.Stat(linkPath); os.IsNotExist(err) {
			broken = append(broken, linkPath)
		}
	}
	return broken, nil
}

func within(dir, path string) bool {
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// OnPath reports whether binDir is on PATH.
// Returns (true, "") on success, or (false, hint) explaining what to add.
func OnPath(binDir string) (bool, string) {
	for _, dir := range filepath.SplitList(os.Getenv("PATH")) {
		if filepath.Clean(dir) == filepath.Clean(binDir) {
			return true, ""
		}
	}
	return false, fmt.Sprintf("add the formulary bin directory to PATH:\n  export PATH=%q:$PATH", binDir)
}
