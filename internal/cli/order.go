package cli

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/labseq/internal/harness"
	"github.com/roach88/labseq/internal/manager"
	"github.com/roach88/labseq/internal/plan"
	"github.com/roach88/labseq/internal/schedule"
)

// OrderOptions holds flags for the order command.
type OrderOptions struct {
	*RootOptions
	Rows string // YAML file of condition rows
}

// OrderResult is the run order in tabular form.
type OrderResult struct {
	Plan       string     `json:"plan"`
	Columns    []string   `json:"columns"`
	Rows       [][]string `json:"rows"`
	Operations int        `json:"operations"`
}

// NewOrderCommand creates the order command.
func NewOrderCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &OrderOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "order <plan>",
		Short: "Print the run order of a plan",
		Long: `Print the sequence of condition changes and measurement runs a plan
would execute, one column per condition. Nothing is run.

Examples:
  labseq order plan.yaml
  labseq order plan.cue --rows rows.yaml
  labseq order plan.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runOrder(opts, rootOpts.formatter(cmd), args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Rows, "rows", "", "YAML file of condition rows replacing the plan's rows")

	return cmd
}

func runOrder(opts *OrderOptions, formatter *OutputFormatter, path string) error {
	p, err := loadPlan(formatter, path)
	if err != nil {
		return err
	}
	rows, err := planRows(formatter, p, opts.Rows)
	if err != nil {
		return err
	}

	m, err := simulatedManager(p, formatter)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeConfig, err)
	}
	order, err := m.RunOrderFor(rows)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeConfig, err)
	}
	view := schedule.Tabulate(order, m.ConditionNames())
	formatter.VerboseLog("Plan %s: %d operation(s)", p.Name, len(order))

	if formatter.JSON() {
		records := view.Records()
		return formatter.Success(OrderResult{
			Plan:       p.Name,
			Columns:    records[0],
			Rows:       records[1:],
			Operations: len(order),
		})
	}
	return view.WriteText(formatter.Writer)
}

// simulatedManager constructs the manager of p on a simulated bench.
func simulatedManager(p *plan.Plan, formatter *OutputFormatter, opts ...manager.Option) (*manager.Manager, error) {
	bench, err := harness.NewBench(p)
	if err != nil {
		return nil, err
	}
	base := []manager.Option{
		manager.WithResources(bench.Resources()),
		manager.WithLogger(formatter.Logger()),
	}
	return p.NewManager(bench.Driver, append(base, opts...)...)
}

// planRows returns the rows of the YAML file at path, or the plan's own
// rows when path is empty.
func planRows(formatter *OutputFormatter, p *plan.Plan, path string) ([]map[string]any, error) {
	if path == "" {
		return p.Rows, nil
	}
	rows, err := readRows(path)
	if err != nil {
		return nil, formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	return rows, nil
}

// readRows decodes a YAML sequence of condition rows.
func readRows(path string) ([]map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rows file: %w", err)
	}
	var rows []map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&rows); err != nil {
		return nil, fmt.Errorf("failed to parse rows file %s: %w", path, err)
	}
	return rows, nil
}
