// Package config loads formulary settings from FORMULARY_* environment
// variables.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
)

// EnvPrefix is prepended to every variable name.
const EnvPrefix = "FORMULARY_"

// Config holds runtime settings. Command-line flags override these values.
type Config struct {
	Prefix  string `env:"PREFIX"`
	DB      string `env:"DB"`
	Keyring string `env:"KEYRING"`
	Workers int    `env:"WORKERS,default=4"`
	Log     *Log   `env:",prefix=LOG_"`
}

// Log configures the diagnostic logger.
type Log struct {
	Level  string `env:"LEVEL,default=warn"`
	Format string `env:"FORMAT,default=console"`
}

// Load reads the configuration from the process environment.
func Load(ctx context.Context) (*Config, error) {
	return LoadFrom(ctx, envconfig.OsLookuper())
}

// LoadFrom reads the configuration through l, which sees unprefixed names.
func LoadFrom(ctx context.Context, l envconfig.Lookuper) (*Config, error) {
	var cfg Config
	if err := envconfig.ProcessWith(ctx, &cfg, envconfig.PrefixLookuper(EnvPrefix, l)); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("%sWORKERS must be at least 1, got %d", EnvPrefix, cfg.Workers)
	}

	if cfg.Prefix == "" {
		prefix, err := DefaultPrefix()
		if err != nil {
			return nil, err
		}
		cfg.Prefix = prefix
	}
	if cfg.DB == "" {
		cfg.DB = filepath.Join(cfg.Prefix, "var", "formulary.db")
	}
	return &cfg, nil
}

// DefaultPrefix returns $XDG_DATA_HOME/formulary when XDG_DATA_HOME is set
// and ~/.formulary otherwise.
func DefaultPrefix() (string, error) {
	if base := os.Getenv("XDG_DATA_HOME"); base != "" {
		return filepath.Join(base, "formulary"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(home, ".formulary"), nil
}
