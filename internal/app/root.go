package app

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	prefixFlag    string
	dbFlag        string
	logLevelFlag  string
	logFormatFlag string

	// RootCmd is the root command for formulary
	RootCmd = &cobra.Command{
		Use:   "formulary",
		Short: "Install script formulae into a private prefix",
		Long: `formulary installs small script packages described by Homebrew-style
formulae. Each source archive is downloaded once, checked against the
formula's SHA-256 digest, unpacked into a versioned keg and linked onto a
single bin directory.

A <formula> argument is either the path to a .rb, .yaml, .yml or .json
formula file, or the name of a builtin formula (see 'formulary list --available').

Layout (default prefix ~/.formulary):
  Cellar/<name>/<version>   installed kegs
  bin/                      symlinks to installed commands
  cache/downloads/          verified source archives
  var/formulary.db          install records and history

Examples:
  # Install the builtin task runner
  formulary install shell-menu-runner

  # Install from a local formula file
  formulary install ./Formula/tool.rb

  # Check formulae while editing them
  formulary audit --watch ./Formula

  # Repair the prefix after manual changes
  formulary doctor --fix`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&prefixFlag, "prefix", "", "installation prefix (default: ~/.formulary, env FORMULARY_PREFIX)")
	RootCmd.PersistentFlags().StringVar(&dbFlag, "db", "", "database path (default: <prefix>/var/formulary.db, env FORMULARY_DB)")
	RootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "log level: debug, info, warn or error (env FORMULARY_LOG_LEVEL)")
	RootCmd.PersistentFlags().StringVar(&logFormatFlag, "log-format", "", "log format: console or json (env FORMULARY_LOG_FORMAT)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command's
// context so downloads and watches stop cleanly.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return RootCmd.ExecuteContext(ctx)
}
