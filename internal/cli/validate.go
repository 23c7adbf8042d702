package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/labseq/internal/plan"
)

// Problem is one reason a plan is invalid.
type Problem struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Line    int    `json:"line,omitempty"`
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid        bool      `json:"valid"`
	Plan         string    `json:"plan,omitempty"`
	Conditions   int       `json:"conditions,omitempty"`
	Measurements int       `json:"measurements,omitempty"`
	Errors       []Problem `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <plan>",
		Short: "Validate a test plan",
		Long: `Validate a YAML or CUE test plan without running it.

Checks CUE constraints, required fields and references between plan
entries: trigger conditions, recorded conditions and row columns.
Every problem found is reported.

Exit codes:
  0 - Plan is valid
  1 - Plan is invalid
  2 - Command error (missing file, unsupported extension)`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts.formatter(cmd), args[0])
		},
	}

	return cmd
}

func runValidate(formatter *OutputFormatter, path string) error {
	if err := checkPlanPath(formatter, path); err != nil {
		return err
	}

	formatter.VerboseLog("Validating plan %s", path)
	p, err := plan.Load(path)
	if err != nil {
		return outputValidationErrors(formatter, planProblems(err))
	}

	result := ValidationResult{
		Valid:        true,
		Plan:         p.Name,
		Conditions:   len(p.Conditions),
		Measurements: len(p.Measurements),
	}
	if formatter.JSON() {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "✓ Plan %s valid: %d condition(s), %d measurement(s)\n",
		result.Plan, result.Conditions, result.Measurements)
	return nil
}

// checkPlanPath reports a missing plan file or an unsupported extension
// as a command error.
func checkPlanPath(formatter *OutputFormatter, path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return formatter.Fail(ExitCommandError, ErrCodeNotFound,
				fmt.Errorf("plan file not found: %s", path))
		}
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".cue":
		return nil
	default:
		return formatter.Fail(ExitCommandError, ErrCodeLoad,
			fmt.Errorf("unsupported plan file %s: want .yaml, .yml or .cue", path))
	}
}

// loadPlan loads a plan for the commands that run it. An invalid plan is
// reported in full and fails with ExitFailure.
func loadPlan(formatter *OutputFormatter, path string) (*plan.Plan, error) {
	if err := checkPlanPath(formatter, path); err != nil {
		return nil, err
	}
	p, err := plan.Load(path)
	if err != nil {
		return nil, outputValidationErrors(formatter, planProblems(err))
	}
	return p, nil
}

// planProblems flattens a plan loading error into its problems.
func planProblems(err error) []Problem {
	var ce *plan.CompileError
	if errors.As(err, &ce) {
		prob := Problem{Field: ce.Field, Message: ce.Message}
		if ce.Pos.IsValid() {
			prob.Line = ce.Pos.Line()
		}
		return []Problem{prob}
	}

	var out []Problem
	collectValidation(err, &out)
	if len(out) == 0 {
		out = append(out, Problem{Field: "plan", Message: err.Error()})
	}
	return out
}

func collectValidation(err error, out *[]Problem) {
	switch e := err.(type) {
	case *plan.ValidationError:
		*out = append(*out, Problem{Field: e.Field, Message: e.Message})
	case interface{ Unwrap() []error }:
		for _, inner := range e.Unwrap() {
			collectValidation(inner, out)
		}
	case interface{ Unwrap() error }:
		collectValidation(e.Unwrap(), out)
	}
}

// outputValidationErrors outputs every problem of an invalid plan.
func outputValidationErrors(formatter *OutputFormatter, problems []Problem) error {
	exitErr := NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(problems)))

	if formatter.JSON() {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false, Errors: problems},
			Error: &CLIError{
				Code:    ErrCodeInvalidPlan,
				Message: problems[0].Message,
			},
		}
		if err := formatter.Respond(response); err != nil {
			return err
		}
		return exitErr
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)

	for _, p := range problems {
		if p.Line > 0 {
			fmt.Fprintf(formatter.Writer, "line %d\n", p.Line)
		}
		fmt.Fprintf(formatter.Writer, "  %s: %s\n\n", p.Field, p.Message)
	}
	return exitErr
}
