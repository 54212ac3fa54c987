package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "info", FormatJSON)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}

	logger.Debug("hidden")
	logger.Info("fetched", zap.String("formula", "shell-menu-runner"))
	_ = logger.Sync()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 1 {
		t.Fatalf("got %d log lines, want 1: %q", len(lines), buf.String())
	}
	var entry map[string]interface{}
	if err := json.Unmarshal([]byte(lines[0]), &entry); err != nil {
		t.Fatalf("log line is not JSON: %v", err)
	}
	if entry["msg"] != "fetched" || entry["formula"] != "shell-menu-runner" {
		t.Errorf("unexpected entry: %v", entry)
	}
}

func TestNewLogger_Console(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, "debug", FormatConsole)
	if err != nil {
		t.Fatalf("NewLogger() error: %v", err)
	}
	logger.Debug("extracting")
	if !strings.Contains(buf.String(), "extracting") {
		t.Errorf("console output %q missing message", buf.String())
	}
}

func TestNewLogger_Invalid(t *testing.T) {
	if _, err := NewLogger(&bytes.Buffer{}, "loud", FormatJSON); err == nil {
		t.Error("NewLogger() with bad level = nil error")
	}
	if _, err := NewLogger(&bytes.Buffer{}, "info", "xml"); err == nil {
		t.Error("NewLogger() with bad format = nil error")
	}
}
