package schedule

import (
	"fmt"
	"slices"

	"github.com/roach88/labseq/internal/value"
)

// Axis is a condition as the scheduler sees it: a name and its sweep values.
type Axis struct {
	Name   string
	Values []value.Value
}

// Table is the ordered list of condition rows a run visits. Names is the
// declared condition order; a row may bind a subset of Names.
type Table struct {
	Names []string
	Rows  []value.Assignments
}

// Product builds the Cartesian product of axes, first axis slowest. No
// axes yield a single empty row so that MAIN measurements still run once.
// An axis with no values yields no rows.
func Product(axes []Axis) Table {
	t := Table{Names: make([]string, len(axes))}
	for i, a := range axes {
		t.Names[i] = a.Name
	}
	rows := []value.Assignments{{}}
	for _, a := range axes {
		next := make([]value.Assignments, 0, len(rows)*len(a.Values))
		for _, r := range rows {
			for _, v := range a.Values {
				next = append(next, append(r.Clone(), value.Assignment{Name: a.Name, Value: v}))
			}
		}
		rows = next
	}
	t.Rows = rows
	return t
}

// RowsError reports an invalid explicit condition row.
type RowsError struct {
	Row     int
	Message string
}

func (e *RowsError) Error() string {
	return fmt.Sprintf("condition row %d: %s", e.Row, e.Message)
}

// FromRows builds a table from explicit rows. Every key must be a declared
// condition and every value a scalar. Entries are ordered as in names.
func FromRows(names []string, rows []map[string]any) (Table, error) {
	t := Table{Names: slices.Clone(names), Rows: make([]value.Assignments, 0, len(rows))}
	for i, raw := range rows {
		for k := range raw {
			if !slices.Contains(names, value.NormalizeName(k)) {
				return Table{}, &RowsError{Row: i, Message: fmt.Sprintf("unknown condition %q", k)}
			}
		}
		row, err := value.FromOrderedMap(names, raw)
		if err != nil {
			return Table{}, &RowsError{Row: i, Message: err.Error()}
		}
		t.Rows = append(t.Rows, row)
	}
	return t, nil
}

// occurrences holds, per condition and value key, the first and last row
// index at which the condition holds that value.
type occurrences map[string]map[string][2]int

func (t Table) occurrences() occurrences {
	occ := make(occurrences, len(t.Names))
	for i, row := range t.Rows {
		for _, a := range row {
			byValue, ok := occ[a.Name]
			if !ok {
				byValue = make(map[string][2]int)
				occ[a.Name] = byValue
			}
			key := value.Key(a.Value)
			span, seen := byValue[key]
			if !seen {
				span[0] = i
			}
			span[1] = i
			byValue[key] = span
		}
	}
	return occ
}

func (o occurrences) first(name string, v value.Value, row int) bool {
	span, ok := o[name][value.Key(v)]
	return ok && span[0] == row
}

func (o occurrences) last(name string, v value.Value, row int) bool {
	span, ok := o[name][value.Key(v)]
	return ok && span[1] == row
}
