package app

import (
	"errors"
	"fmt"
	"regexp"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/formulary/internal/formula"
)

var uninstallCmd = &cobra.Command{
	Use:     "uninstall <name>...",
	Aliases: []string{"remove", "rm"},
	Short:   "Remove installed formulae",
	Long: `Removes the bin links of each formula, deletes its keg and forgets the
install record. Only links that point into the formula's keg are removed.`,
	Example: `  formulary uninstall shell-menu-runner`,
	Args:    cobra.MinimumNArgs(1),
	RunE:    runUninstall,
}

func init() {
	RootCmd.AddCommand(uninstallCmd)
}

var classRe = regexp.MustCompile(`^[A-Z][A-Za-z0-9]*$`)

// installedName maps an uninstall argument to a formula name: formula
// files are loaded, Ruby class names are converted, anything else is
// taken as the name itself.
func installedName(arg string) (string, error) {
	switch {
	case formula.IsFormulaFile(arg):
		f, err := formula.Load(arg)
		if err != nil {
			return "", err
		}
		return f.Name, nil
	case classRe.MatchString(arg):
		return formula.NameFromClass(arg), nil
	}
	return arg, nil
}

func runUninstall(cmd *cobra.Command, args []string) error {
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	out := cmd.OutOrStdout()
	var errs []error
	for _, arg := range args {
		name, err := installedName(arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		keg, err := e.installer.Uninstall(name)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		fmt.Fprintf(out, "✓ Uninstalled %s %s\n", keg.Name, keg.Version)
	}
	return errors.Join(errs...)
}
