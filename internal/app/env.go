package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sethvargo/go-envconfig"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/formulary/internal/config"
	"github.com/blackwell-systems/formulary/internal/fetch"
	"github.com/blackwell-systems/formulary/internal/formula"
	"github.com/blackwell-systems/formulary/internal/install"
	"github.com/blackwell-systems/formulary/internal/logging"
	"github.com/blackwell-systems/formulary/internal/output"
	"github.com/blackwell-systems/formulary/internal/store"
)

// env holds the dependencies of one command invocation.
type env struct {
	cfg       *config.Config
	layout    install.Layout
	logger    *zap.Logger
	store     *store.Store
	fetcher   *fetch.Fetcher
	installer *install.Installer
}

// loadConfig resolves settings from flags first and FORMULARY_* variables
// second. The database default follows the resolved prefix.
func loadConfig(ctx context.Context) (*config.Config, error) {
	overrides := make(map[string]string)
	for name, value := range map[string]string{
		"PREFIX":     prefixFlag,
		"DB":         dbFlag,
		"LOG_LEVEL":  logLevelFlag,
		"LOG_FORMAT": logFormatFlag,
	} {
		if value != "" {
			overrides[config.EnvPrefix+name] = value
		}
	}
	return config.LoadFrom(ctx, envconfig.MultiLookuper(
		envconfig.MapLookuper(overrides),
		envconfig.OsLookuper(),
	))
}

// newLogger builds the diagnostic logger for cmd. Diagnostics always go to
// stderr; results go to stdout.
func newLogger(cmd *cobra.Command, cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cmd.ErrOrStderr(), logging.Level(cfg.Log.Level), logging.Format(cfg.Log.Format))
}

// setup loads the configuration and opens the store for cmd.
func setup(cmd *cobra.Command) (*env, error) {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	if err := os.MkdirAll(filepath.Dir(cfg.DB), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	st, err := store.New(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := st.CreateSchema(); err != nil {
		st.Close()
		return nil, err
	}

	layout := install.Layout{Prefix: cfg.Prefix}
	fetcher := fetch.New(layout.Cache(), logger)
	fetcher.Progress = output.DownloadProgress(cmd.ErrOrStderr())

	inst := install.New(layout, fetcher, st, logger)
	inst.Keyring = cfg.Keyring

	logger.Debug("configured",
		zap.String("prefix", cfg.Prefix),
		zap.String("db", cfg.DB),
		zap.Int("workers", cfg.Workers))

	return &env{
		cfg:       cfg,
		layout:    layout,
		logger:    logger,
		store:     st,
		fetcher:   fetcher,
		installer: inst,
	}, nil
}

func (e *env) Close() {
	_ = e.logger.Sync()
	e.store.Close()
}

// resolveFormula loads arg as a formula file when it has a formula
// extension, and looks it up among the builtins otherwise.
func resolveFormula(arg string) (*formula.Formula, error) {
	if formula.IsFormulaFile(arg) {
		return formula.Load(arg)
	}
	if f, ok := formula.Builtin(arg); ok {
		return f, nil
	}
	return nil, fmt.Errorf("unknown formula %q: not a builtin and not a formula file", arg)
}

func resolveFormulae(args []string) ([]*formula.Formula, error) {
	formulae := make([]*formula.Formula, 0, len(args))
	for _, arg := range args {
		f, err := resolveFormula(arg)
		if err != nil {
			return nil, err
		}
		formulae = append(formulae, f)
	}
	return formulae, nil
}
