// Package service holds the registry of named capabilities that components
// expose to each other, e.g. a condition offering "read_chamber_humidity" to
// any measurement that needs it.
//
// Components declare their services explicitly through Provider. The
// registry is built once after every component exists and is then shared
// by pointer.
package service

import (
	"errors"
	"fmt"
	"strings"
)

// Func is a callable service. Arguments and result are whatever the caller
// and the providing component agree on.
type Func func(args ...any) (any, error)

// Service is one named capability.
type Service struct {
	Name string
	Func Func
}

// Provider is implemented by components that expose services.
type Provider interface {
	Services() []Service
}

var (
	// ErrDuplicateService is returned when two components register the
	// same name.
	ErrDuplicateService = errors.New("duplicate service")

	// ErrUnknownService is returned when calling or requiring a name that
	// was never registered.
	ErrUnknownService = errors.New("unknown service")
)

type entry struct {
	owner string
	fn    Func
}

// Registry maps service names to functions. Registration order is kept.
type Registry struct {
	entries map[string]entry
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]entry)}
}

// Register adds fn under name on behalf of owner.
func (r *Registry) Register(owner, name string, fn Func) error {
	if name == "" {
		return fmt.Errorf("%s: service name must not be empty", owner)
	}
	if fn == nil {
		return fmt.Errorf("%s: service %q has no function", owner, name)
	}
	if prev, ok := r.entries[name]; ok {
		return fmt.Errorf("%w: %q registered by both %s and %s", ErrDuplicateService, name, prev.owner, owner)
	}
	r.entries[name] = entry{owner: owner, fn: fn}
	r.order = append(r.order, name)
	return nil
}

// Collect registers every service p declares.
func (r *Registry) Collect(owner string, p Provider) error {
	for _, s := range p.Services() {
		if err := r.Register(owner, s.Name, s.Func); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the function registered under name.
func (r *Registry) Lookup(name string) (Func, bool) {
	e, ok := r.entries[name]
	return e.fn, ok
}

// Owner returns the component that registered name.
func (r *Registry) Owner(name string) (string, bool) {
	e, ok := r.entries[name]
	return e.owner, ok
}

// Call invokes the named service. A panic inside the service is returned
// as an error.
func (r *Registry) Call(name string, args ...any) (result any, err error) {
	e, ok := r.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownService, name)
	}
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("service %q panicked: %v", name, p)
		}
	}()
	return e.fn(args...)
}

// Require fails unless every name is registered.
func (r *Registry) Require(names ...string) error {
	var missing []string
	for _, n := range names {
		if _, ok := r.entries[n]; !ok {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrUnknownService, strings.Join(missing, ", "))
	}
	return nil
}

// Names returns service names in registration order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Len is the number of registered services.
func (r *Registry) Len() int {
	return len(r.order)
}
