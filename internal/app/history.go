package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/formulary/internal/output"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history [name]",
	Short: "Show install, uninstall and failure events",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of events to show (0 for all)")
	RootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	if historyLimit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	var name string
	if len(args) == 1 {
		name = args[0]
	}
	events, err := e.store.ListEvents(name, historyLimit)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), output.RenderEventTable(events))
	return nil
}
