package component

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/roach88/labseq/internal/dataset"
	"github.com/roach88/labseq/internal/resource"
	"github.com/roach88/labseq/internal/service"
	"github.com/roach88/labseq/internal/value"
)

// Env is what a manager hands to every component it constructs. The
// resolver and registry are shared by reference; the registry is empty
// until every component exists.
type Env struct {
	Resources *resource.Resolver
	Services  *service.Registry
	Config    Config
	Logger    *slog.Logger
	// Clock times measurement runs. Nil means time.Now.
	Clock func() time.Time
}

// Option configures a Condition or a Measurement.
type Option func(*options)

type options struct {
	kind     string
	disabled bool
	config   Config
	services []service.Service
	process  ProcessFunc
}

// WithKind sets the provenance tag written on the component's variables.
// It defaults to the component name.
func WithKind(kind string) Option {
	return func(o *options) { o.kind = kind }
}

// Disabled creates the component switched off.
func Disabled() Option {
	return func(o *options) { o.disabled = true }
}

// WithConfig overlays the component config on top of the manager config.
func WithConfig(c Config) Option {
	return func(o *options) { o.config = o.config.Merge(c) }
}

// WithServices declares services the component offers to others.
func WithServices(svcs ...service.Service) Option {
	return func(o *options) { o.services = append(o.services, svcs...) }
}

// WithProcess sets a measurement's post-processing step. Conditions
// ignore it.
func WithProcess(fn ProcessFunc) Option {
	return func(o *options) { o.process = fn }
}

// Base is embedded in Condition and Measurement.
type Base struct {
	name    string
	kind    string
	enabled bool
	results *dataset.Store
	config  Config
	offered []service.Service
	env     Env
	logger  *slog.Logger
}

func newBase(name string, o *options) Base {
	kind := o.kind
	if kind == "" {
		kind = name
	}
	return Base{
		name:    value.NormalizeName(name),
		kind:    kind,
		enabled: !o.disabled,
		results: dataset.NewStore(kind),
		config:  o.config.Clone(),
		offered: o.services,
		logger:  slog.Default(),
		env:     Env{Resources: resource.NewResolver(nil, false), Services: service.NewRegistry(), Clock: time.Now},
	}
}

func applyOptions(opts []Option) *options {
	o := &options{config: Config{}}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Attach connects the component to a manager environment. The manager
// config is the base; the component's own config wins on shared keys.
func (b *Base) Attach(env Env) {
	b.env = env
	if b.env.Resources == nil {
		b.env.Resources = resource.NewResolver(nil, false)
	}
	if b.env.Services == nil {
		b.env.Services = service.NewRegistry()
	}
	if b.env.Clock == nil {
		b.env.Clock = time.Now
	}
	b.config = env.Config.Merge(b.config)
	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}
	b.logger = logger.With("component", b.name, "kind", b.kind)
}

// Name returns the component name.
func (b *Base) Name() string { return b.name }

// Kind returns the provenance tag of the component's variables.
func (b *Base) Kind() string { return b.kind }

// Enabled reports whether the component takes part in runs.
func (b *Base) Enabled() bool { return b.enabled }

// SetEnabled switches the component on or off.
func (b *Base) SetEnabled(on bool) { b.enabled = on }

// Results returns the component's own store.
func (b *Base) Results() *dataset.Store { return b.results }

// SetResults replaces the component's store, as done when loading saved
// results.
func (b *Base) SetResults(s *dataset.Store) { b.results = s }

// Config returns the effective configuration.
func (b *Base) Config() Config { return b.config }

// Logger returns the component logger.
func (b *Base) Logger() *slog.Logger { return b.logger }

// Offline reports whether missing resources resolve to nil.
func (b *Base) Offline() bool { return b.env.Resources.Offline() }

// Resource looks up a shared instrument handle by name.
func (b *Base) Resource(name string) (any, error) {
	return b.env.Resources.Get(name)
}

// Resources returns the shared resolver, for use with resource.Lookup.
func (b *Base) Resources() *resource.Resolver { return b.env.Resources }

// Registry returns the shared service registry.
func (b *Base) Registry() *service.Registry { return b.env.Services }

// Call invokes a service offered by any component of the same manager.
func (b *Base) Call(name string, args ...any) (any, error) {
	return b.env.Services.Call(name, args...)
}

// Services lists the services this component offers.
func (b *Base) Services() []service.Service { return b.offered }

// ClearResults empties the component's store.
func (b *Base) ClearResults() { b.results.Clear() }

// RequireServices fails unless every named service is registered.
func (b *Base) RequireServices(names ...string) error {
	if err := b.env.Services.Require(names...); err != nil {
		return fmt.Errorf("%s: %w", b.name, err)
	}
	return nil
}

// RequireResults fails unless the component's store holds every named
// coordinate and variable. Post-processing steps call it before reading.
func (b *Base) RequireResults(coords, vars []string) error {
	var missing []string
	for _, c := range coords {
		if _, ok := b.results.Coordinate(c); !ok {
			missing = append(missing, "coordinate "+c)
		}
	}
	for _, v := range vars {
		if _, ok := b.results.Variable(v); !ok {
			missing = append(missing, "variable "+v)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s: missing results: %s", b.name, strings.Join(missing, ", "))
	}
	return nil
}
