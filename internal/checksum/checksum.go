// Package checksum computes and verifies the SHA-256 digests that identify
// source archives.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrIntegrityMismatch is matched by every *IntegrityError.
var ErrIntegrityMismatch = errors.New("integrity mismatch")

// IntegrityError reports that a file does not have its declared digest.
type IntegrityError struct {
	Path     string
	Expected string
	Actual   string
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("SHA-256 mismatch for %s\nExpected: %s\n  Actual: %s", e.Path, e.Expected, e.Actual)
}

// Is lets errors.Is(err, ErrIntegrityMismatch) match.
func (e *IntegrityError) Is(target error) bool {
	return target == ErrIntegrityMismatch
}

// Sum returns the lowercase hex SHA-256 of everything read from r.
func Sum(r io.Reader) (string, error) {
	h := sha256.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("failed to hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile returns the lowercase hex SHA-256 of the file at path.
func SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	return Sum(f)
}

// Verify checks that the file at path has the expected digest. Comparison
// ignores the case of expected.
func Verify(path, expected string) error {
	actual, err := SumFile(path)
	if err != nil {
		return err
	}
	return Compare(path, expected, actual)
}

// Compare returns an *IntegrityError unless actual equals expected.
func Compare(path, expected, actual string) error {
	if !strings.EqualFold(expected, actual) {
		return &IntegrityError{Path: path, Expected: strings.ToLower(expected), Actual: actual}
	}
	return nil
}
