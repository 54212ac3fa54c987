package app

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/formulary/internal/install"
	"github.com/blackwell-systems/formulary/internal/link"
)

var installForce bool

var installCmd = &cobra.Command{
	Use:   "install <formula>...",
	Short: "Download, verify and install formulae",
	Long: `Installs each formula into its own keg under <prefix>/Cellar and links its
commands into <prefix>/bin.

The source archive must match the formula's sha256 exactly. A mismatch
aborts the install before anything is placed on the bin path. When several
formulae are given their archives are downloaded concurrently
(FORMULARY_WORKERS at a time) and installed one after another; a failure
does not stop the remaining installs.`,
	Example: `  formulary install shell-menu-runner
  formulary install ./Formula/tool.rb ./Formula/other.yaml
  formulary install --force shell-menu-runner`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().BoolVarP(&installForce, "force", "f", false, "reinstall even if the same version is already installed")
	RootCmd.AddCommand(installCmd)
}

func runInstall(cmd *cobra.Command, args []string) error {
	formulae, err := resolveFormulae(args)
	if err != nil {
		return err
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if len(formulae) > 1 {
		// Bars from concurrent downloads would interleave.
		e.fetcher.Progress = nil
		if _, err := e.fetcher.FetchAll(ctx, formulae, e.cfg.Workers); err != nil {
			// Each install fetches again and reports its own failure.
			e.logger.Warn("prefetch failed", zap.Error(err))
		}
	}

	var errs []error
	installed := 0
	for _, f := range formulae {
		keg, err := e.installer.Install(ctx, f, install.Options{Force: installForce})
		switch {
		case errors.Is(err, install.ErrAlreadyInstalled):
			fmt.Fprintf(out, "Warning: %v (use --force to reinstall)\n", err)
			continue
		case err != nil:
			fmt.Fprintf(out, "✗ %s\n", f.Name)
			errs = append(errs, err)
			continue
		}

		installed++
		fmt.Fprintf(out, "✓ Installed %s %s\n", keg.Name, keg.Version)
		targets := make([]string, 0, len(keg.Files))
		for target := range keg.Files {
			targets = append(targets, target)
		}
		sort.Strings(targets)
		for _, target := range targets {
			fmt.Fprintf(out, "  %s/%s\n", e.layout.Bin(), target)
		}
	}

	if installed > 0 {
		if ok, hint := link.OnPath(e.layout.Bin()); !ok {
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Note: "+hint)
			fmt.Fprintln(out, "  Or run 'formulary doctor --fix' to add it to your shell profile.")
		}
	}

	return errors.Join(errs...)
}
