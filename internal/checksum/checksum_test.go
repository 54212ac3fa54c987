package checksum

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// sha256 of "hello\n"
const helloSum = "5891b5b522d5df086d0ff0b110fbd9d21bb4fc7163af34d08286a2e846f6be03"

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "archive.tar.gz")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestSum(t *testing.T) {
	got, err := Sum(strings.NewReader("hello\n"))
	if err != nil {
		t.Fatalf("Sum() error: %v", err)
	}
	if got != helloSum {
		t.Errorf("Sum() = %s, want %s", got, helloSum)
	}
}

func TestSumFile_Deterministic(t *testing.T) {
	path := writeTemp(t, "hello\n")

	first, err := SumFile(path)
	if err != nil {
		t.Fatalf("SumFile() error: %v", err)
	}
	second, err := SumFile(path)
	if err != nil {
		t.Fatalf("SumFile() error: %v", err)
	}
	if first != second || first != helloSum {
		t.Errorf("SumFile() = %s then %s, want %s both times", first, second, helloSum)
	}
}

func TestVerify(t *testing.T) {
	path := writeTemp(t, "hello\n")

	if err := Verify(path, helloSum); err != nil {
		t.Errorf("Verify() with matching digest = %v, want nil", err)
	}
	if err := Verify(path, strings.ToUpper(helloSum)); err != nil {
		t.Errorf("Verify() with uppercase digest = %v, want nil", err)
	}
}

func TestVerify_FlippedByte(t *testing.T) {
	path := writeTemp(t, "hellp\n")

	err := Verify(path, helloSum)
	if err == nil {
		t.Fatal("Verify() = nil, want integrity error")
	}
	if !errors.Is(err, ErrIntegrityMismatch) {
		t.Errorf("errors.Is(err, ErrIntegrityMismatch) = false for %v", err)
	}

	var ierr *IntegrityError
	if !errors.As(err, &ierr) {
		t.Fatalf("error %T is not *IntegrityError", err)
	}
	if ierr.Expected != helloSum {
		t.Errorf("Expected = %s, want %s", ierr.Expected, helloSum)
	}
	if ierr.Actual == helloSum {
		t.Error("Actual should differ from Expected")
	}
	if !strings.Contains(ierr.Error(), path) {
		t.Errorf("error message %q should name the file", ierr.Error())
	}
}

func TestVerify_MissingFile(t *testing.T) {
	err := Verify(filepath.Join(t.TempDir(), "missing"), helloSum)
	if err == nil {
		t.Fatal("Verify() on missing file = nil, want error")
	}
	if errors.Is(err, ErrIntegrityMismatch) {
		t.Error("a missing file is not an integrity mismatch")
	}
}
