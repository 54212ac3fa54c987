package config

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sethvargo/go-envconfig"
)

func TestLoadFrom_Defaults(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")

	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(map[string]string{}))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}

	if cfg.Prefix != filepath.Join("/data", "formulary") {
		t.Errorf("Prefix = %q, want /data/formulary", cfg.Prefix)
	}
	if cfg.DB != filepath.Join("/data", "formulary", "var", "formulary.db") {
		t.Errorf("DB = %q", cfg.DB)
	}
	if cfg.Workers != 4 {
		t.Errorf("Workers = %d, want 4", cfg.Workers)
	}
	if cfg.Log == nil || cfg.Log.Level != "warn" || cfg.Log.Format != "console" {
		t.Errorf("Log = %+v, want warn/console", cfg.Log)
	}
}

func TestLoadFrom_Overrides(t *testing.T) {
	env := map[string]string{
		"FORMULARY_PREFIX":     "/opt/formulary",
		"FORMULARY_KEYRING":    "/etc/formulary/keyring.asc",
		"FORMULARY_WORKERS":    "8",
		"FORMULARY_LOG_LEVEL":  "debug",
		"FORMULARY_LOG_FORMAT": "json",
	}

	cfg, err := LoadFrom(context.Background(), envconfig.MapLookuper(env))
	if err != nil {
		t.Fatalf("LoadFrom() error: %v", err)
	}
	if cfg.Prefix != "/opt/formulary" {
		t.Errorf("Prefix = %q", cfg.Prefix)
	}
	if cfg.DB != "/opt/formulary/var/formulary.db" {
		t.Errorf("DB = %q", cfg.DB)
	}
	if cfg.Keyring != "/etc/formulary/keyring.asc" {
		t.Errorf("Keyring = %q", cfg.Keyring)
	}
	if cfg.Workers != 8 {
		t.Errorf("Workers = %d, want 8", cfg.Workers)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log = %+v", cfg.Log)
	}
}

func TestLoadFrom_InvalidWorkers(t *testing.T) {
	tests := map[string]string{
		"not a number": "many",
		"zero":         "0",
	}
	for name, value := range tests {
		t.Run(name, func(t *testing.T) {
			env := map[string]string{"FORMULARY_WORKERS": value, "FORMULARY_PREFIX": "/p"}
			if _, err := LoadFrom(context.Background(), envconfig.MapLookuper(env)); err == nil {
				t.Errorf("LoadFrom() with FORMULARY_WORKERS=%q = nil error", value)
			}
		})
	}
}

func TestDefaultPrefix_Home(t *testing.T) {
	home := t.TempDir()
	t.Setenv("XDG_DATA_HOME", "")
	t.Setenv("HOME", home)

	got, err := DefaultPrefix()
	if err != nil {
		t.Fatalf("DefaultPrefix() error: %v", err)
	}
	if want := filepath.Join(home, ".formulary"); got != want {
		t.Errorf("DefaultPrefix() = %q, want %q", got, want)
	}
}
