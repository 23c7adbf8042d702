package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/labseq/internal/harness"
	"github.com/roach88/labseq/internal/manager"
)

// DryRunOptions holds flags for the dryrun command.
type DryRunOptions struct {
	*RootOptions
	Rows     string // YAML file of condition rows
	RunID    string // fixed run ID; generated when empty
	Save     string // JSON results path
	Workbook string // SQLite workbook path
}

// DryRunResult is the outcome of a simulated run.
type DryRunResult struct {
	Plan      string               `json:"plan"`
	RunID     string               `json:"run_id"`
	Trace     []harness.TraceEvent `json:"trace"`
	RunError  string               `json:"run_error,omitempty"`
	Variables []string             `json:"variables,omitempty"`
}

// NewDryRunCommand creates the dryrun command.
func NewDryRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DryRunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "dryrun <plan>",
		Short: "Run a plan on simulated instruments",
		Long: `Run a plan against a simulated bench: every condition drives a fake
instrument that reads back its setpoint plus the plan's offset. Prints
every executed operation and optionally saves the aggregate results.

Exit codes:
  0 - Run succeeded
  1 - Invalid plan or failed run
  2 - Command error (missing files, unwritable outputs)

Examples:
  labseq dryrun plan.yaml
  labseq dryrun plan.yaml --rows rows.yaml --save results.json
  labseq dryrun plan.cue --workbook results.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDryRun(commandContext(cmd), opts, rootOpts.formatter(cmd), args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Rows, "rows", "", "YAML file of condition rows replacing the plan's rows")
	cmd.Flags().StringVar(&opts.RunID, "run-id", "", "fixed run ID (default: a new UUIDv7)")
	cmd.Flags().StringVar(&opts.Save, "save", "", "write the results to a JSON file")
	cmd.Flags().StringVar(&opts.Workbook, "workbook", "", "export the results to a SQLite workbook")

	return cmd
}

func runDryRun(ctx context.Context, opts *DryRunOptions, formatter *OutputFormatter, path string) error {
	p, err := loadPlan(formatter, path)
	if err != nil {
		return err
	}
	rows, err := planRows(formatter, p, opts.Rows)
	if err != nil {
		return err
	}

	runID := opts.RunID
	if runID == "" {
		runID = manager.UUIDv7Generator{}.Generate()
	}
	result, m, err := harness.DryRun(p, runID, rows, formatter.Logger())
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeConfig, err)
	}

	out := DryRunResult{
		Plan:     p.Name,
		RunID:    result.RunID,
		Trace:    result.Trace,
		RunError: result.RunError,
	}
	if result.RunError == "" {
		out.Variables = result.Results.VariableNames()
	}

	var saved []string
	if result.RunError == "" {
		if opts.Save != "" {
			if err := m.Save(opts.Save); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodePersist, err)
			}
			saved = append(saved, opts.Save)
		}
		if opts.Workbook != "" {
			if err := m.ExportWorkbook(ctx, opts.Workbook); err != nil {
				return formatter.Fail(ExitCommandError, ErrCodePersist, err)
			}
			saved = append(saved, opts.Workbook)
		}
	}

	if formatter.JSON() {
		return outputDryRunJSON(formatter, out)
	}
	return outputDryRunText(formatter, out, saved)
}

func outputDryRunJSON(formatter *OutputFormatter, out DryRunResult) error {
	resp := CLIResponse{Status: "ok", Data: out, TraceID: out.RunID}
	if out.RunError != "" {
		resp.Status = "error"
		resp.Error = &CLIError{Code: ErrCodeRunFailed, Message: out.RunError}
	}
	if err := formatter.Respond(resp); err != nil {
		return err
	}
	if out.RunError != "" {
		return NewExitError(ExitFailure, out.RunError)
	}
	return nil
}

func outputDryRunText(formatter *OutputFormatter, out DryRunResult, saved []string) error {
	w := formatter.Writer
	fmt.Fprintf(w, "Dry run of %s (run %s)\n\n", out.Plan, out.RunID)
	for _, ev := range out.Trace {
		fmt.Fprintf(w, "  [%d] %s\n", ev.Seq, ev)
	}
	fmt.Fprintln(w)

	if out.RunError != "" {
		fmt.Fprintf(w, "✗ Run failed: %s\n", out.RunError)
		return NewExitError(ExitFailure, out.RunError)
	}
	fmt.Fprintf(w, "✓ %d operation(s), %d variable(s)\n", len(out.Trace), len(out.Variables))
	for _, path := range saved {
		fmt.Fprintf(w, "  saved %s\n", path)
	}
	return nil
}

// commandContext returns the command's context, or a background context
// when the command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
