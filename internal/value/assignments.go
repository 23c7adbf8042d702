package value

import (
	"fmt"
	"sort"
	"strings"
)

// Assignment binds a condition name to a scalar value.
type Assignment struct {
	Name  string
	Value Value
}

// Assignments is an ordered set of condition assignments. Order is the
// declaration order of the conditions and is significant: it decides the
// dimension order of stored variables.
//
// Names are unique; Set replaces an existing entry in place.
type Assignments []Assignment

// A is shorthand for building an Assignment from a native value.
// It panics if x is not a scalar, so it is meant for literals.
func A(name string, x any) Assignment {
	return Assignment{Name: NormalizeName(name), Value: MustOf(x)}
}

// Set builds Assignments from literal pairs, e.g. Set(A("T", 25), A("RH", 50)).
func Set(pairs ...Assignment) Assignments {
	out := make(Assignments, 0, len(pairs))
	for _, p := range pairs {
		out = out.With(p.Name, p.Value)
	}
	return out
}

// FromMap converts an untyped map into Assignments with keys in sorted
// order. Every value must be a scalar.
func FromMap(m map[string]any) (Assignments, error) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return FromOrderedMap(keys, m)
}

// FromOrderedMap converts an untyped map into Assignments following the
// given key order. Keys listed but absent from m are skipped; keys present
// in m but not listed are appended in sorted order.
func FromOrderedMap(order []string, m map[string]any) (Assignments, error) {
	out := make(Assignments, 0, len(m))
	seen := make(map[string]bool, len(m))
	add := func(k string) error {
		v, err := Of(m[k])
		if err != nil {
			return fmt.Errorf("condition %q: %w", k, err)
		}
		out = out.With(k, v)
		seen[k] = true
		return nil
	}
	for _, k := range order {
		if _, ok := m[k]; !ok || seen[k] {
			continue
		}
		if err := add(k); err != nil {
			return nil, err
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		if err := add(k); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Get returns the value bound to name.
func (a Assignments) Get(name string) (Value, bool) {
	name = NormalizeName(name)
	for _, p := range a {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Has reports whether name is bound.
func (a Assignments) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// With returns a copy of a with name bound to v. An existing binding keeps
// its position.
func (a Assignments) With(name string, v Value) Assignments {
	name = NormalizeName(name)
	out := a.Clone()
	for i := range out {
		if out[i].Name == name {
			out[i].Value = v
			return out
		}
	}
	return append(out, Assignment{Name: name, Value: v})
}

// Names returns the bound names in order.
func (a Assignments) Names() []string {
	names := make([]string, len(a))
	for i, p := range a {
		names[i] = p.Name
	}
	return names
}

// Clone returns an independent copy. A nil receiver clones to an empty,
// non-nil set.
func (a Assignments) Clone() Assignments {
	out := make(Assignments, len(a))
	copy(out, a)
	return out
}

// Equal reports whether both sets bind the same names, in the same order,
// to equal values.
func (a Assignments) Equal(b Assignments) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].Name != b[i].Name || !Equal(a[i].Value, b[i].Value) {
			return false
		}
	}
	return true
}

// Map returns the assignments as a native map.
func (a Assignments) Map() map[string]any {
	m := make(map[string]any, len(a))
	for _, p := range a {
		m[p.Name] = Native(p.Value)
	}
	return m
}

func (a Assignments) String() string {
	parts := make([]string, len(a))
	for i, p := range a {
		parts[i] = fmt.Sprintf("%s=%v", p.Name, p.Value)
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
