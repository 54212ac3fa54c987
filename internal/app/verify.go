package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/formulary/internal/output"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <formula>",
	Short: "Download a source archive again and check its digest",
	Long: `Downloads the formula's source archive without using the cache and compares
its SHA-256 digest with the one the formula declares. The same URL must
always produce the same bytes.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	RootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	f, err := resolveFormula(args[0])
	if err != nil {
		return err
	}
	e, err := setup(cmd)
	if err != nil {
		return err
	}
	defer e.Close()

	spinner := output.NewSpinner("Verifying " + f.Name)
	spinner.SetWriter(cmd.OutOrStdout())
	spinner.Start()
	digest, err := e.installer.Verify(cmd.Context(), f)
	if err != nil {
		spinner.Stop()
		return err
	}

	spinner.StopWithMessage(fmt.Sprintf("✓ %s: sha256 %s", f.Name, digest))
	return nil
}
