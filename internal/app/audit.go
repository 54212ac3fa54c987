package app

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/blackwell-systems/formulary/internal/formula"
	"github.com/blackwell-systems/formulary/internal/output"
	"github.com/blackwell-systems/formulary/internal/watcher"
)

var (
	auditStrict bool
	auditWatch  string
)

var auditCmd = &cobra.Command{
	Use:   "audit [formula...]",
	Short: "Check formulae for errors and style problems",
	Long: `Validates each formula and reports style problems such as a missing
description, an unknown license or a plain-http URL. Errors fail the command;
with --strict, warnings do too.

With --watch DIR, every formula file in DIR is audited once and then again
each time it is written, until interrupted.`,
	Example: `  formulary audit ./Formula/tool.rb
  formulary audit --strict shell-menu-runner
  formulary audit --watch ./Formula`,
	RunE: runAudit,
}

func init() {
	auditCmd.Flags().BoolVar(&auditStrict, "strict", false, "treat warnings as failures")
	auditCmd.Flags().StringVar(&auditWatch, "watch", "", "directory of formula files to audit on every change")
	RootCmd.AddCommand(auditCmd)
}

func runAudit(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && auditWatch == "" {
		return fmt.Errorf("requires at least one formula or --watch DIR")
	}
	out := cmd.OutOrStdout()

	failed := 0
	for _, arg := range args {
		f, err := resolveFormula(arg)
		if !reportAudit(out, arg, f, err) {
			failed++
		}
	}

	if auditWatch != "" {
		return watchAudit(cmd, auditWatch)
	}
	if failed > 0 {
		return fmt.Errorf("audit failed for %d of %d formulae", failed, len(args))
	}
	return nil
}

// reportAudit prints the findings for f, or the load error, and reports
// whether the formula passed.
func reportAudit(w io.Writer, label string, f *formula.Formula, loadErr error) bool {
	var findings []formula.Finding
	if loadErr != nil {
		findings = []formula.Finding{{Field: "formula", Severity: formula.SeverityError, Message: loadErr.Error()}}
	} else {
		findings = f.Audit()
	}
	fmt.Fprint(w, output.RenderFindings(label, findings))

	if formula.HasErrors(findings) {
		return false
	}
	return !auditStrict || len(findings) == 0
}

func watchAudit(cmd *cobra.Command, dir string) error {
	cfg, err := loadConfig(cmd.Context())
	if err != nil {
		return err
	}
	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer logger.Sync()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", dir, err)
	}
	out := cmd.OutOrStdout()
	var paths []string
	for _, entry := range entries {
		if !entry.IsDir() && formula.IsFormulaFile(entry.Name()) {
			paths = append(paths, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(paths)
	for _, path := range paths {
		f, err := formula.Load(path)
		reportAudit(out, path, f, err)
	}

	w, err := watcher.New(dir, func(path string, f *formula.Formula, err error) {
		reportAudit(out, path, f, err)
	}, logger)
	if err != nil {
		return err
	}
	if err := w.Start(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s for changes (Ctrl-C to stop)\n", dir)
	logger.Info("watching", zap.String("dir", dir))

	<-cmd.Context().Done()
	return w.Stop()
}
