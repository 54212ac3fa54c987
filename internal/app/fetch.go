package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch <formula>...",
	Short: "Download and verify source archives without installing",
	Long: `Downloads the source archive of each formula into the download cache and
checks it against the formula's sha256. Cached archives are verified again
and downloaded anew when corrupt.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFetch,
}

func init() {
	RootCmd.AddCommand(fetchCmd)
}

func runFetch(cmd *cobra.Command, args []string) error {
	formulae, err := resolveFormulae(args)
	if err != nil {
		return err
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	if len(formulae) > 1 {
		e.fetcher.Progress = nil
	}
	paths, err := e.fetcher.FetchAll(cmd.Context(), formulae, e.cfg.Workers)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for i, f := range formulae {
		fmt.Fprintf(out, "✓ %s\n  %s\n", f.Name, paths[i])
	}
	return nil
}
