package app

import (
	"fmt"

	"github.com/spf13/cobra"
)

var catFormat string

var catCmd = &cobra.Command{
	Use:   "cat <formula>",
	Short: "Print a formula as Ruby or YAML",
	Long: `Prints the formula in Homebrew's Ruby form or as a YAML manifest. Converting
a formula to the other form and loading it again yields the same formula.`,
	Example: `  formulary cat shell-menu-runner
  formulary cat --format yaml ./Formula/tool.rb > tool.yaml`,
	Args: cobra.ExactArgs(1),
	RunE: runCat,
}

func init() {
	catCmd.Flags().StringVar(&catFormat, "format", "ruby", "output format: ruby or yaml")
	RootCmd.AddCommand(catCmd)
}

func runCat(cmd *cobra.Command, args []string) error {
	f, err := resolveFormula(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch catFormat {
	case "ruby", "rb":
		fmt.Fprint(out, f.Ruby())
	case "yaml", "yml":
		data, err := f.YAML()
		if err != nil {
			return err
		}
		out.Write(data)
	default:
		return fmt.Errorf("invalid format %q: must be ruby or yaml", catFormat)
	}
	return nil
}
