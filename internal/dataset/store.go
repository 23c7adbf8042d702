package dataset

import (
	"math"
	"slices"

	"github.com/roach88/labseq/internal/value"
)

// Coordinate is a named addressing axis.
type Coordinate struct {
	Name   string
	Values []value.Value
}

// Len is the number of labels on the axis.
func (c Coordinate) Len() int {
	return len(c.Values)
}

// Variable is a dense row-major array addressed by the coordinates named in
// Dims. Provenance records the kind of component that produced it.
type Variable struct {
	Name       string
	Dims       []string
	Data       []float64
	Provenance string
}

// Dim names a coordinate in a write or read, optionally pinned to one of its
// values. Build with Free or At.
type Dim struct {
	Name   string
	Value  value.Value
	pinned bool
	err    error
}

// Free selects every value of a coordinate.
func Free(name string) Dim {
	return Dim{Name: value.NormalizeName(name)}
}

// At pins a coordinate to a single value.
func At(name string, x any) Dim {
	v, err := value.Of(x)
	return Dim{Name: value.NormalizeName(name), Value: v, pinned: true, err: err}
}

// Pinned reports whether d selects a single value.
func (d Dim) Pinned() bool {
	return d.pinned
}

// Pins converts an assignment set into pinned dims.
func Pins(a value.Assignments) []Dim {
	dims := make([]Dim, len(a))
	for i, p := range a {
		dims[i] = Dim{Name: p.Name, Value: p.Value, pinned: true}
	}
	return dims
}

// Store is a coordinate-indexed collection of variables. The zero value is
// not usable; construct with NewStore.
//
// A Store is not safe for concurrent use.
type Store struct {
	owner   string
	coords  []*Coordinate
	vars    []*Variable
	current value.Assignments
	attrs   value.Assignments
}

// NewStore returns an empty store whose variables will be tagged with owner.
func NewStore(owner string) *Store {
	return &Store{owner: owner}
}

// Owner returns the provenance tag given to new variables.
func (s *Store) Owner() string {
	return s.owner
}

// DefineCoordinate creates a coordinate, or checks that an existing one has
// exactly the given values.
func (s *Store) DefineCoordinate(name string, values []value.Value) error {
	name = value.NormalizeName(name)
	for i, v := range values {
		if v == nil {
			return newError(ErrCodeInvalidCondition, name, "value %d is missing", i)
		}
	}
	if c := s.coord(name); c != nil {
		if !value.EqualLists(c.Values, values) {
			return newError(ErrCodeCoordinateConflict, name,
				"coordinate already holds %d values %v, redeclared with %d values %v",
				len(c.Values), c.Values, len(values), values)
		}
		return nil
	}
	s.coords = append(s.coords, &Coordinate{Name: name, Values: slices.Clone(values)})
	return nil
}

// DeclareSweep declares an independent axis not tied to any condition, e.g.
// the points of a frequency sweep. It follows DefineCoordinate's rules.
func (s *Store) DeclareSweep(name string, values []value.Value) error {
	return s.DefineCoordinate(name, values)
}

// AccumulateConditions unions each condition into the store as a coordinate
// value. A value not yet on its axis is appended, and every variable that
// depends on the axis grows along it with NaN. The assignments become the
// snapshot that StoreArray pins to.
func (s *Store) AccumulateConditions(conds value.Assignments) error {
	for _, a := range conds {
		if a.Value == nil {
			return newError(ErrCodeInvalidCondition, a.Name, "condition value must be a scalar")
		}
	}
	for _, a := range conds {
		c := s.coord(a.Name)
		if c == nil {
			s.coords = append(s.coords, &Coordinate{Name: a.Name, Values: []value.Value{a.Value}})
			continue
		}
		if value.Index(c.Values, a.Value) >= 0 {
			continue
		}
		s.growCoordinate(c, a.Value)
	}
	s.current = conds.Clone()
	return nil
}

// Current returns the condition snapshot of the last AccumulateConditions.
func (s *Store) Current() value.Assignments {
	return s.current.Clone()
}

func (s *Store) growCoordinate(c *Coordinate, v value.Value) {
	type pending struct {
		v   *Variable
		old []int
	}
	var deps []pending
	for _, vr := range s.vars {
		if slices.Contains(vr.Dims, c.Name) {
			deps = append(deps, pending{v: vr, old: s.shape(vr.Dims)})
		}
	}
	c.Values = append(c.Values, v)
	for _, d := range deps {
		d.v.Data = regrid(d.v.Data, d.old, s.shape(d.v.Dims))
	}
}

// StoreArray writes values into variable name at the slice selected by the
// current condition snapshot and dims. Dims override snapshot entries of the
// same name.
func (s *Store) StoreArray(name string, values Array, dims ...Dim) error {
	name = value.NormalizeName(name)
	effective := make([]Dim, 0, len(s.current)+len(dims))
	effective = append(effective, Pins(s.current)...)
	for _, d := range dims {
		if d.err != nil {
			return newError(ErrCodeInvalidCondition, d.Name, "%v", d.err)
		}
		if i := slices.IndexFunc(effective, func(e Dim) bool { return e.Name == d.Name }); i >= 0 {
			effective[i] = d
			continue
		}
		effective = append(effective, d)
	}
	if len(effective) == 0 {
		return newError(ErrCodeNoDimensions, name, "variable needs at least one dimension")
	}

	names := make([]string, len(effective))
	for i, d := range effective {
		names[i] = d.Name
		if s.coord(d.Name) == nil {
			return newError(ErrCodeUnknownCoordinate, d.Name, "variable %q references an undefined coordinate", name)
		}
	}

	vr := s.variable(name)
	if vr != nil && !sameSet(vr.Dims, names) {
		return newError(ErrCodeDimensionMismatch, name, "variable has dims %v, write uses %v", vr.Dims, names)
	}

	pins, err := s.resolvePins(effective)
	if err != nil {
		return err
	}
	dimOrder := names
	if vr != nil {
		dimOrder = vr.Dims
	}
	full := s.shape(dimOrder)
	fitted, err := reconcile(values, freeShape(dimOrder, full, pins))
	if err != nil {
		return newError(ErrCodeShapeMismatch, name, "%v", err)
	}

	if vr == nil {
		vr = &Variable{
			Name:       name,
			Dims:       slices.Clone(names),
			Data:       nanFilled(size(full)),
			Provenance: s.owner,
		}
		s.vars = append(s.vars, vr)
	}
	walk(vr.Dims, full, pins, func(slot, cell int) {
		vr.Data[cell] = fitted.Data[slot]
	})
	return nil
}

// StoreFloat writes a single number. It is StoreArray with a scalar.
func (s *Store) StoreFloat(name string, f float64, dims ...Dim) error {
	return s.StoreArray(name, Scalar(f), dims...)
}

// Slice reads variable name at the given dims. Unpinned dims of the
// variable stay free; the result keeps the variable's dimension order.
func (s *Store) Slice(name string, dims ...Dim) (Array, error) {
	name = value.NormalizeName(name)
	vr := s.variable(name)
	if vr == nil {
		return Array{}, newError(ErrCodeUnknownVariable, name, "no such variable")
	}
	for _, d := range dims {
		if d.err != nil {
			return Array{}, newError(ErrCodeInvalidCondition, d.Name, "%v", d.err)
		}
		if !slices.Contains(vr.Dims, d.Name) {
			return Array{}, newError(ErrCodeUnknownCoordinate, d.Name, "variable %q has no such dimension", name)
		}
	}
	pins, err := s.resolvePins(dims)
	if err != nil {
		return Array{}, err
	}
	full := s.shape(vr.Dims)
	shape := freeShape(vr.Dims, full, pins)
	out := make([]float64, size(shape))
	walk(vr.Dims, full, pins, func(slot, cell int) {
		out[slot] = vr.Data[cell]
	})
	return Array{Shape: shape, Data: out}, nil
}

// resolvePins maps each pinned dim to the index of its value.
func (s *Store) resolvePins(dims []Dim) (map[string]int, error) {
	pins := make(map[string]int, len(dims))
	for _, d := range dims {
		if !d.pinned {
			continue
		}
		c := s.coord(d.Name)
		if c == nil {
			return nil, newError(ErrCodeUnknownCoordinate, d.Name, "undefined coordinate")
		}
		idx := value.Index(c.Values, d.Value)
		if idx < 0 {
			return nil, newError(ErrCodeUnknownCoordinate, d.Name, "coordinate has no value %v", d.Value)
		}
		pins[d.Name] = idx
	}
	return pins, nil
}

// walk visits every cell of the slice selected by pins. slot is the
// row-major position within the slice, cell the position within the
// variable.
func walk(dims []string, full []int, pins map[string]int, fn func(slot, cell int)) {
	shape := freeShape(dims, full, pins)
	free := make([]int, len(shape))
	idx := make([]int, len(dims))
	for slot := range size(shape) {
		unravel(slot, shape, free)
		j := 0
		for k, d := range dims {
			if p, ok := pins[d]; ok {
				idx[k] = p
				continue
			}
			idx[k] = free[j]
			j++
		}
		fn(slot, offset(full, idx))
	}
}

func freeShape(dims []string, full []int, pins map[string]int) []int {
	shape := make([]int, 0, len(dims))
	for k, d := range dims {
		if _, ok := pins[d]; !ok {
			shape = append(shape, full[k])
		}
	}
	return shape
}

func (s *Store) shape(dims []string) []int {
	out := make([]int, len(dims))
	for i, d := range dims {
		out[i] = s.coord(d).Len()
	}
	return out
}

func (s *Store) coord(name string) *Coordinate {
	for _, c := range s.coords {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func (s *Store) variable(name string) *Variable {
	for _, v := range s.vars {
		if v.Name == name {
			return v
		}
	}
	return nil
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for _, x := range a {
		if !slices.Contains(b, x) {
			return false
		}
	}
	return true
}

// Coordinate returns a copy of the named coordinate.
func (s *Store) Coordinate(name string) (Coordinate, bool) {
	c := s.coord(value.NormalizeName(name))
	if c == nil {
		return Coordinate{}, false
	}
	return Coordinate{Name: c.Name, Values: slices.Clone(c.Values)}, true
}

// Variable returns a copy of the named variable.
func (s *Store) Variable(name string) (Variable, bool) {
	v := s.variable(value.NormalizeName(name))
	if v == nil {
		return Variable{}, false
	}
	return cloneVariable(v), true
}

// Shape returns the current shape of the named variable.
func (s *Store) Shape(name string) ([]int, bool) {
	v := s.variable(value.NormalizeName(name))
	if v == nil {
		return nil, false
	}
	return s.shape(v.Dims), true
}

// CoordinateNames returns coordinate names in declaration order.
func (s *Store) CoordinateNames() []string {
	out := make([]string, len(s.coords))
	for i, c := range s.coords {
		out[i] = c.Name
	}
	return out
}

// VariableNames returns variable names in creation order.
func (s *Store) VariableNames() []string {
	out := make([]string, len(s.vars))
	for i, v := range s.vars {
		out[i] = v.Name
	}
	return out
}

// Empty reports whether the store holds no variables.
func (s *Store) Empty() bool {
	return len(s.vars) == 0
}

// SetAttr sets a store-level attribute.
func (s *Store) SetAttr(name string, v value.Value) {
	s.attrs = s.attrs.With(name, v)
}

// Attr returns a store-level attribute.
func (s *Store) Attr(name string) (value.Value, bool) {
	return s.attrs.Get(name)
}

// Attrs returns all store-level attributes in insertion order.
func (s *Store) Attrs() value.Assignments {
	return s.attrs.Clone()
}

// Clear discards all coordinates, variables, attributes and the condition
// snapshot. The owner tag is kept.
func (s *Store) Clear() {
	s.coords = nil
	s.vars = nil
	s.current = nil
	s.attrs = nil
}

// Clone returns a deep copy.
func (s *Store) Clone() *Store {
	out := &Store{
		owner:   s.owner,
		current: s.current.Clone(),
		attrs:   s.attrs.Clone(),
		coords:  make([]*Coordinate, len(s.coords)),
		vars:    make([]*Variable, len(s.vars)),
	}
	for i, c := range s.coords {
		out.coords[i] = &Coordinate{Name: c.Name, Values: slices.Clone(c.Values)}
	}
	for i, v := range s.vars {
		cp := cloneVariable(v)
		out.vars[i] = &cp
	}
	return out
}

func cloneVariable(v *Variable) Variable {
	return Variable{
		Name:       v.Name,
		Dims:       slices.Clone(v.Dims),
		Data:       slices.Clone(v.Data),
		Provenance: v.Provenance,
	}
}

// Merge joins other into s. Coordinates only in other are adopted; shared
// coordinates must hold identical values. Variables are unioned. A variable
// present on both sides must have the same dims, and wherever both hold a
// number the numbers must agree; NaN cells are filled from the other side.
//
// On error s is left unchanged.
func (s *Store) Merge(other *Store) error {
	out := s.Clone()
	for _, c := range other.coords {
		if mine := out.coord(c.Name); mine != nil {
			if !value.EqualLists(mine.Values, c.Values) {
				return newError(ErrCodeCoordinateConflict, c.Name,
					"merge of differing coordinates %v and %v", mine.Values, c.Values)
			}
			continue
		}
		out.coords = append(out.coords, &Coordinate{Name: c.Name, Values: slices.Clone(c.Values)})
	}
	for _, v := range other.vars {
		mine := out.variable(v.Name)
		if mine == nil {
			cp := cloneVariable(v)
			out.vars = append(out.vars, &cp)
			continue
		}
		if !slices.Equal(mine.Dims, v.Dims) {
			return newError(ErrCodeVariableConflict, v.Name, "dims %v and %v differ", mine.Dims, v.Dims)
		}
		for i, x := range v.Data {
			switch {
			case math.IsNaN(x):
			case math.IsNaN(mine.Data[i]):
				mine.Data[i] = x
			case mine.Data[i] != x:
				return newError(ErrCodeVariableConflict, v.Name, "conflicting values %v and %v", mine.Data[i], x)
			}
		}
	}
	for _, a := range other.attrs {
		if !out.attrs.Has(a.Name) {
			out.attrs = out.attrs.With(a.Name, a.Value)
		}
	}
	*s = *out
	return nil
}

// FilterByProvenance returns a new store holding only the variables tagged
// with tag, plus the coordinates they use in store order. The result is
// owned by tag.
func (s *Store) FilterByProvenance(tag string) *Store {
	out := NewStore(tag)
	used := make(map[string]bool)
	for _, v := range s.vars {
		if v.Provenance != tag {
			continue
		}
		cp := cloneVariable(v)
		out.vars = append(out.vars, &cp)
		for _, d := range v.Dims {
			used[d] = true
		}
	}
	for _, c := range s.coords {
		if used[c.Name] {
			out.coords = append(out.coords, &Coordinate{Name: c.Name, Values: slices.Clone(c.Values)})
		}
	}
	return out
}

// Equal compares result content: the same variables with the same dims,
// provenance and data (NaN equal to NaN), over coordinates with the same
// values. Coordinates no variable uses, attributes and the condition
// snapshot are ignored.
func (s *Store) Equal(other *Store) bool {
	if len(s.vars) != len(other.vars) {
		return false
	}
	for _, v := range s.vars {
		w := other.variable(v.Name)
		if w == nil || v.Provenance != w.Provenance || !slices.Equal(v.Dims, w.Dims) {
			return false
		}
		for _, d := range v.Dims {
			if !value.EqualLists(s.coord(d).Values, other.coord(d).Values) {
				return false
			}
		}
		if !slices.EqualFunc(v.Data, w.Data, func(a, b float64) bool {
			return a == b || (math.IsNaN(a) && math.IsNaN(b))
		}) {
			return false
		}
	}
	return true
}
