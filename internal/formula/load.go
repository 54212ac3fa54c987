package formula

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Load reads a formula file. ".rb" files are parsed as Ruby; ".yaml",
// ".yml" and ".json" files as manifests.
func Load(path string) (*Formula, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read formula: %w", err)
	}

	var f *Formula
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".rb":
		f, err = ParseRuby(bytes.NewReader(data))
	case ".yaml", ".yml", ".json":
		f, err = ParseYAML(data)
	default:
		return nil, fmt.Errorf("unsupported formula file type %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

// IsFormulaFile reports whether path has an extension Load understands.
func IsFormulaFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".rb", ".yaml", ".yml", ".json":
		return true
	}
	return false
}
