package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/formulary/internal/formula"
	"github.com/blackwell-systems/formulary/internal/output"
)

var listAvailable bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed formulae",
	Long: `Lists installed formulae with their version, install time and the
commands they link. With --available, lists the builtin formulae that can be
installed by name instead.`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listAvailable, "available", false, "list builtin formulae instead of installed ones")
	RootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if listAvailable {
		fmt.Fprint(cmd.OutOrStdout(), output.RenderAvailableTable(formula.Builtins()))
		return nil
	}

	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	kegs, err := e.store.ListKegs()
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderKegTable(kegs))
	return nil
}
