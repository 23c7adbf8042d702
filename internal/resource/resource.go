// Package resource resolves instrument handles by name.
//
// Handles are opaque to the core: a Condition driver or a Measurement
// sequence type-asserts what it needs through Lookup.
package resource

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
)

// Map is the externally supplied table of instrument handles.
type Map map[string]any

// MissingError reports a resource absent from the map while online.
type MissingError struct {
	Name      string
	Available []string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("resource %q not found (available: %v)", e.Name, e.Available)
}

// TypeError reports a resource whose handle has an unexpected type.
type TypeError struct {
	Name string
	Got  any
	Want string
}

func (e *TypeError) Error() string {
	return fmt.Sprintf("resource %q is %T, expected %s", e.Name, e.Got, e.Want)
}

// IsMissing reports whether err is a MissingError.
func IsMissing(err error) bool {
	var me *MissingError
	return errors.As(err, &me)
}

// Resolver looks up handles. In offline mode a missing resource resolves
// to nil instead of failing, so sequences can be exercised without
// hardware.
type Resolver struct {
	resources Map
	offline   bool
}

// NewResolver wraps m. The map is shared, not copied.
func NewResolver(m Map, offline bool) *Resolver {
	if m == nil {
		m = Map{}
	}
	return &Resolver{resources: m, offline: offline}
}

// Offline reports whether missing resources resolve to nil.
func (r *Resolver) Offline() bool {
	return r.offline
}

// Get returns the handle registered under name.
func (r *Resolver) Get(name string) (any, error) {
	h, ok := r.resources[name]
	if ok {
		return h, nil
	}
	if r.offline {
		return nil, nil
	}
	return nil, &MissingError{Name: name, Available: r.Names()}
}

// Names returns the registered resource names in sorted order.
func (r *Resolver) Names() []string {
	names := make([]string, 0, len(r.resources))
	for k := range r.resources {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Lookup returns the handle under name as a T. Offline and missing, it
// returns the zero T and no error.
func Lookup[T any](r *Resolver, name string) (T, error) {
	var zero T
	h, err := r.Get(name)
	if err != nil || h == nil {
		return zero, err
	}
	t, ok := h.(T)
	if !ok {
		return zero, &TypeError{Name: name, Got: h, Want: reflect.TypeFor[T]().String()}
	}
	return t, nil
}
