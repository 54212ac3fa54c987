package app

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/formulary/internal/output"
	"github.com/blackwell-systems/formulary/internal/store"
)

var infoCmd = &cobra.Command{
	Use:   "info <formula>",
	Short: "Show a formula and its install state",
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func init() {
	RootCmd.AddCommand(infoCmd)
}

func runInfo(cmd *cobra.Command, args []string) error {
	f, err := resolveFormula(args[0])
	if err != nil {
		return err
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	keg, err := e.store.GetKeg(f.Name)
	if errors.Is(err, store.ErrNotInstalled) {
		keg = nil
	} else if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderFormulaInfo(f, keg))
	return nil
}
