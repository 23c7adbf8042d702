package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/labseq/internal/persist"
)

// ExportResult reports a written workbook.
type ExportResult struct {
	Workbook  string   `json:"workbook"`
	Variables []string `json:"variables"`
}

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export <results.json> <workbook.db>",
		Short: "Export saved results to a SQLite workbook",
		Long: `Export a results document to a SQLite workbook. Every variable becomes
a table with one column per coordinate and a value column; the
variables, coordinates and attributes tables index them. An existing
workbook is replaced.`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(commandContext(cmd), rootOpts.formatter(cmd), args[0], args[1])
		},
	}

	return cmd
}

func runExport(ctx context.Context, formatter *OutputFormatter, resultsPath, workbookPath string) error {
	s, err := loadResults(formatter, resultsPath)
	if err != nil {
		return err
	}
	if err := persist.ExportWorkbook(ctx, workbookPath, s); err != nil {
		return formatter.Fail(ExitCommandError, ErrCodePersist, err)
	}

	res := ExportResult{Workbook: workbookPath, Variables: s.VariableNames()}
	if formatter.JSON() {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "✓ Exported %d variable(s) to %s\n", len(res.Variables), res.Workbook)
	return nil
}
