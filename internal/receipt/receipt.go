// Package receipt reads and writes the install receipt kept in every keg.
package receipt

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// FileName is the name of the receipt inside a keg directory.
const FileName = "INSTALL_RECEIPT.json"

// ErrNoReceipt is returned by Read when the keg has no receipt.
var ErrNoReceipt = errors.New("no install receipt")

// Source records where the keg's archive came from.
type Source struct {
	URL    string `json:"url"`
	SHA256 string `json:"sha256"`
}

// Receipt describes one installed keg.
type Receipt struct {
	ID          string    `json:"id"`
	Formula     string    `json:"formula"`
	Version     string    `json:"version"`
	License     string    `json:"license,omitempty"`
	Source      Source    `json:"source"`
	InstalledAt time.Time `json:"installed_at"`

	// Files maps each installed name on the bin path to its path
	// relative to the keg.
	Files map[string]string `json:"files"`
}

// New returns a receipt with a fresh ID and the current time.
func New(formula, version string, src Source) *Receipt {
	return &Receipt{
		ID:          uuid.NewString(),
		Formula:     formula,
		Version:     version,
		Source:      src,
		InstalledAt: time.Now().UTC().Truncate(time.Second),
		Files:       make(map[string]string),
	}
}

// Write stores r as kegDir/INSTALL_RECEIPT.json.
func Write(kegDir string, r *Receipt) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal receipt: %w", err)
	}
	data = append(data, '\n')

	if err := os.WriteFile(filepath.Join(kegDir, FileName), data, 0644); err != nil {
		return fmt.Errorf("failed to write receipt: %w", err)
	}
	return nil
}

// Read loads the receipt of the keg at kegDir.
func Read(kegDir string) (*Receipt, error) {
	data, err := os.ReadFile(filepath.Join(kegDir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%s: %w", kegDir, ErrNoReceipt)
		}
		return nil, fmt.Errorf("failed to read receipt: %w", err)
	}

	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse receipt %s: %w", filepath.Join(kegDir, FileName), err)
	}
	if r.Formula == "" || r.Version == "" {
		return nil, fmt.Errorf("receipt %s is missing formula or version", filepath.Join(kegDir, FileName))
	}
	return &r, nil
}
