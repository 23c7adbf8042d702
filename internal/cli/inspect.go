package cli

import (
	"fmt"
	"math"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/persist"
	"github.com/roach88/labseq/internal/value"
)

// resultsOwner owns stores read back by inspect and export.
const resultsOwner = "results"

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Variable string   // variable to read
	At       []string // NAME=VALUE pins
}

// CoordinateSummary describes one coordinate of a results document.
type CoordinateSummary struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// VariableSummary describes one variable of a results document.
type VariableSummary struct {
	Name       string   `json:"name"`
	Dims       []string `json:"dims"`
	Shape      []int    `json:"shape"`
	Provenance string   `json:"provenance,omitempty"`
}

// Attribute is a store-level attribute.
type Attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// InspectResult summarizes a results document.
type InspectResult struct {
	Coordinates []CoordinateSummary `json:"coordinates"`
	Variables   []VariableSummary   `json:"variables"`
	Attributes  []Attribute         `json:"attributes,omitempty"`
}

// SliceResult is a read of one variable. Missing values are null.
type SliceResult struct {
	Variable string     `json:"variable"`
	At       []string   `json:"at,omitempty"`
	Shape    []int      `json:"shape"`
	Data     []*float64 `json:"data"`
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect <results.json>",
		Short: "Show the contents of saved results",
		Long: `Show the coordinates, variables and attributes of a results document
written by dryrun --save. With --variable, read the variable instead,
optionally pinned to single coordinate values.

Examples:
  labseq inspect results.json
  labseq inspect results.json --variable T_actual --at T=85`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, rootOpts.formatter(cmd), args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Variable, "variable", "", "variable to read")
	cmd.Flags().StringArrayVar(&opts.At, "at", nil, "pin a coordinate, NAME=VALUE (repeatable)")

	return cmd
}

func runInspect(opts *InspectOptions, formatter *OutputFormatter, path string) error {
	s, err := loadResults(formatter, path)
	if err != nil {
		return err
	}

	if opts.Variable == "" {
		if len(opts.At) > 0 {
			return formatter.Fail(ExitCommandError, ErrCodeLoad, fmt.Errorf("--at requires --variable"))
		}
		summary := summarize(s)
		if formatter.JSON() {
			return formatter.Success(summary)
		}
		return writeSummary(formatter, summary)
	}

	dims, err := parsePins(opts.At)
	if err != nil {
		return formatter.Fail(ExitCommandError, ErrCodeLoad, err)
	}
	arr, err := s.Slice(opts.Variable, dims...)
	if err != nil {
		return formatter.Fail(ExitFailure, ErrCodeLoad, err)
	}
	res := SliceResult{Variable: opts.Variable, At: opts.At, Shape: arr.Shape, Data: nullable(arr.Data)}
	if formatter.JSON() {
		return formatter.Success(res)
	}
	fmt.Fprintf(formatter.Writer, "%s %v\n", res.Variable, res.Shape)
	for _, x := range arr.Data {
		fmt.Fprintf(formatter.Writer, "  %v\n", x)
	}
	return nil
}

// loadResults reads a saved results document.
func loadResults(formatter *OutputFormatter, path string) (*dataset.Store, error) {
	s, err := persist.LoadJSON(path, resultsOwner)
	if err != nil {
		code := ErrCodePersist
		if persist.IsNotFound(err) {
			code = ErrCodeNotFound
		}
		return nil, formatter.Fail(ExitCommandError, code, err)
	}
	return s, nil
}

func summarize(s *dataset.Store) InspectResult {
	out := InspectResult{
		Coordinates: []CoordinateSummary{},
		Variables:   []VariableSummary{},
	}
	for _, name := range s.CoordinateNames() {
		c, _ := s.Coordinate(name)
		cs := CoordinateSummary{Name: c.Name, Values: make([]string, len(c.Values))}
		for i, v := range c.Values {
			cs.Values[i] = v.String()
		}
		out.Coordinates = append(out.Coordinates, cs)
	}
	for _, name := range s.VariableNames() {
		v, _ := s.Variable(name)
		shape, _ := s.Shape(name)
		out.Variables = append(out.Variables, VariableSummary{
			Name:       v.Name,
			Dims:       v.Dims,
			Shape:      shape,
			Provenance: v.Provenance,
		})
	}
	for _, a := range s.Attrs() {
		out.Attributes = append(out.Attributes, Attribute{Name: a.Name, Value: a.Value.String()})
	}
	return out
}

func writeSummary(formatter *OutputFormatter, summary InspectResult) error {
	tw := tabwriter.NewWriter(formatter.Writer, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "COORDINATE\tVALUES")
	for _, c := range summary.Coordinates {
		fmt.Fprintf(tw, "%s\t%s\n", c.Name, strings.Join(c.Values, ", "))
	}
	fmt.Fprintln(tw)

	fmt.Fprintln(tw, "VARIABLE\tDIMS\tSHAPE\tPROVENANCE")
	for _, v := range summary.Variables {
		fmt.Fprintf(tw, "%s\t%s\t%v\t%s\n", v.Name, strings.Join(v.Dims, ", "), v.Shape, orDash(v.Provenance))
	}

	if len(summary.Attributes) > 0 {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "ATTRIBUTE\tVALUE")
		for _, a := range summary.Attributes {
			fmt.Fprintf(tw, "%s\t%s\n", a.Name, a.Value)
		}
	}
	return tw.Flush()
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// parsePins converts NAME=VALUE flags into pinned dims. VALUE is read as
// a YAML scalar, so 25 is an integer, 2.5 a float and SN-1 text.
func parsePins(pins []string) ([]dataset.Dim, error) {
	dims := make([]dataset.Dim, 0, len(pins))
	for _, pin := range pins {
		name, raw, ok := strings.Cut(pin, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid pin %q: want NAME=VALUE", pin)
		}
		var x any
		if err := yaml.Unmarshal([]byte(raw), &x); err != nil {
			return nil, fmt.Errorf("invalid pin %q: %w", pin, err)
		}
		if _, err := value.Of(x); err != nil {
			return nil, fmt.Errorf("invalid pin %q: %w", pin, err)
		}
		dims = append(dims, dataset.At(name, x))
	}
	return dims, nil
}

func nullable(data []float64) []*float64 {
	out := make([]*float64, len(data))
	for i, x := range data {
		if !math.IsNaN(x) {
			out[i] = &x
		}
	}
	return out
}
