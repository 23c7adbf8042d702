package schedule

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/roach88/labseq/internal/value"
)

// Operation kinds as shown in a View.
const (
	OpCondition   = "CONDITION"
	OpMeasurement = "MEASUREMENT"
)

// ViewRow is one step of a RunOrder in tabular form. Values holds one
// entry per condition column; nil means the step does not carry it.
type ViewRow struct {
	Operation string        `json:"operation"`
	Label     string        `json:"label"`
	Stage     string        `json:"stage,omitempty"`
	Values    []value.Value `json:"-"`
}

// View is the tabular rendering of a RunOrder.
type View struct {
	Conditions []string
	Rows       []ViewRow
}

// Tabulate lays order out with one column per condition.
func Tabulate(order RunOrder, conditions []string) View {
	v := View{Conditions: conditions, Rows: make([]ViewRow, 0, len(order))}
	col := make(map[string]int, len(conditions))
	for i, c := range conditions {
		col[c] = i
	}
	for _, op := range order {
		row := ViewRow{Label: op.Label(), Values: make([]value.Value, len(conditions))}
		switch o := op.(type) {
		case *SetCondition:
			row.Operation = OpCondition
			if i, ok := col[o.Name]; ok {
				row.Values[i] = o.Value
			}
		case *RunMeasurement:
			row.Operation = OpMeasurement
			row.Stage = o.Stage.String()
			for _, a := range o.Conditions {
				if i, ok := col[a.Name]; ok {
					row.Values[i] = a.Value
				}
			}
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

// Records returns the view as string records with a header, blanks for
// absent values.
func (v View) Records() [][]string {
	out := make([][]string, 0, len(v.Rows)+1)
	out = append(out, append([]string{"Operation", "Label", "Stage"}, v.Conditions...))
	for _, r := range v.Rows {
		rec := []string{r.Operation, r.Label, r.Stage}
		for _, x := range r.Values {
			if x == nil {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, x.String())
		}
		out = append(out, rec)
	}
	return out
}

// WriteText writes the view as an aligned text table.
func (v View) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	for i, rec := range v.Records() {
		for j := range rec {
			if rec[j] == "" {
				rec[j] = "-"
			}
		}
		if i == 0 {
			for j := range rec {
				rec[j] = strings.ToUpper(rec[j])
			}
		}
		if _, err := fmt.Fprintln(tw, strings.Join(rec, "\t")); err != nil {
			return err
		}
	}
	return tw.Flush()
}
