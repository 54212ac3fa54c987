package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/formulary/internal/link"
	"github.com/blackwell-systems/formulary/internal/scanner"
	"github.com/blackwell-systems/formulary/internal/shell"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose and repair the installation prefix",
	Long: `Runs diagnostic checks on the formulary prefix.

Checks:
  • Prefix directories exist
  • No leftover staging directories from interrupted installs
  • Every keg in the Cellar has an install record, and every record a keg
  • No broken links in the bin directory
  • The bin directory is on PATH

With --fix, missing directories are created, leftovers removed, unrecorded
kegs adopted and linked, records of missing kegs dropped, broken links
removed, and the bin directory added to your shell profile.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "repair the problems found")
	RootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Running formulary diagnostics...")
	fmt.Fprintln(out)

	// Problems are counted only when they remain after any fixes. PATH
	// setup is a warning and does not fail the command.
	issues := 0

	// Check 1: directories
	for _, dir := range []string{e.layout.Cellar(), e.layout.Bin(), e.layout.Cache(), e.layout.Staging(), e.layout.Var()} {
		if _, err := os.Stat(dir); err == nil {
			continue
		} else if !os.IsNotExist(err) {
			fmt.Fprintf(out, "✗ Cannot access %s: %v\n", dir, err)
			issues++
			continue
		}
		if doctorFix {
			if err := os.MkdirAll(dir, 0755); err != nil {
				fmt.Fprintf(out, "✗ Cannot create %s: %v\n", dir, err)
				issues++
				continue
			}
			fmt.Fprintf(out, "✓ Created %s\n", dir)
			continue
		}
		fmt.Fprintf(out, "✗ Missing directory %s\n", dir)
		issues++
	}
	fmt.Fprintf(out, "✓ Database: %s\n", e.cfg.DB)

	// Check 2: staging leftovers
	issues += checkStaging(out, e.layout.Staging())

	// Check 3: Cellar and store agree
	report, err := scanner.New(e.store, e.layout, e.logger).Reconcile(doctorFix)
	if err != nil {
		return err
	}
	issues += printReport(out, report)

	// Check 4: PATH
	if ok, hint := link.OnPath(e.layout.Bin()); ok {
		fmt.Fprintln(out, "✓ Bin directory is on PATH")
	} else if doctorFix {
		added, configFile, err := shell.EnsurePathEntry(e.layout.Bin())
		switch {
		case err != nil:
			fmt.Fprintf(out, "⚠ Could not update shell profile: %v\n", err)
		case added:
			fmt.Fprintf(out, "✓ Added %s to PATH in %s\n", e.layout.Bin(), configFile)
			fmt.Fprintln(out, "  Restart your shell or source that file to use it")
		default:
			fmt.Fprintf(out, "⚠ %s already adds the bin directory; restart your shell\n", configFile)
		}
	} else {
		fmt.Fprintln(out, "⚠ Bin directory is not on PATH")
		fmt.Fprintln(out, "  "+hint)
	}

	fmt.Fprintln(out)
	if issues > 0 {
		if !doctorFix {
			fmt.Fprintln(out, "Run 'formulary doctor --fix' to repair.")
		}
		return fmt.Errorf("found %d issue(s)", issues)
	}
	fmt.Fprintln(out, "All checks passed.")
	return nil
}

func checkStaging(out io.Writer, staging string) int {
	entries, err := os.ReadDir(staging)
	if err != nil || len(entries) == 0 {
		return 0
	}
	if !doctorFix {
		fmt.Fprintf(out, "✗ %d leftover staging entries in %s\n", len(entries), staging)
		return 1
	}
	remaining := 0
	for _, entry := range entries {
		if err := os.RemoveAll(filepath.Join(staging, entry.Name())); err != nil {
			fmt.Fprintf(out, "✗ Cannot remove %s: %v\n", entry.Name(), err)
			remaining++
		}
	}
	if remaining > 0 {
		return 1
	}
	fmt.Fprintf(out, "✓ Removed %d leftover staging entries\n", len(entries))
	return 0
}

// printReport prints the reconcile report and returns the number of
// problems that remain.
func printReport(out io.Writer, r *scanner.Report) int {
	issues := 0
	fixedMark := "✗"
	if doctorFix {
		fixedMark = "✓"
	}

	for _, k := range r.Adopted {
		if doctorFix {
			fmt.Fprintf(out, "✓ Adopted %s %s from the Cellar\n", k.Name, k.Version)
			continue
		}
		fmt.Fprintf(out, "✗ %s %s is in the Cellar but not recorded\n", k.Name, k.Version)
		issues++
	}
	for _, k := range r.Missing {
		if doctorFix {
			fmt.Fprintf(out, "✓ Dropped record of %s %s (keg missing)\n", k.Name, k.Version)
			continue
		}
		fmt.Fprintf(out, "✗ %s %s is recorded but %s is missing\n", k.Name, k.Version, k.Path)
		issues++
	}
	for _, path := range r.BrokenLinks {
		fmt.Fprintf(out, "%s Broken link %s\n", fixedMark, path)
		if !doctorFix {
			issues++
		}
	}
	for _, err := range r.Conflicts {
		fmt.Fprintf(out, "✗ %v\n", err)
		issues++
	}
	for _, k := range r.Stale {
		fmt.Fprintf(out, "⚠ Stale keg %s (not the recorded version)\n", k.Path)
	}
	for _, dir := range r.Unreadable {
		fmt.Fprintf(out, "✗ %s has no readable install receipt\n", dir)
		issues++
	}

	if r.Clean() && len(r.Conflicts) == 0 {
		fmt.Fprintln(out, "✓ Cellar and install records agree")
	}
	return issues
}
