package component

import (
	"fmt"
	"maps"
	"sort"
	"time"
)

// Config is a component's key/value configuration. Values typically come
// from a plan file, so numbers may arrive as int, int64 or float64; the
// typed accessors convert between them.
type Config map[string]any

// Clone returns a shallow copy.
func (c Config) Clone() Config {
	out := make(Config, len(c))
	maps.Copy(out, c)
	return out
}

// Merge returns a copy of c overlaid with other.
func (c Config) Merge(other Config) Config {
	out := c.Clone()
	maps.Copy(out, other)
	return out
}

// Has reports whether key is set.
func (c Config) Has(key string) bool {
	_, ok := c[key]
	return ok
}

// Keys returns the keys in sorted order.
func (c Config) Keys() []string {
	keys := make([]string, 0, len(c))
	for k := range c {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Float returns key as a float64, or def when unset.
func (c Config) Float(key string, def float64) (float64, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, c.typeError(key, "number")
	}
}

// Int returns key as an int, or def when unset. Floats with a fraction
// are rejected.
func (c Config) Int(key string, def int) (int, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case uint64:
		return int(v), nil
	case float64:
		if v != float64(int(v)) {
			return 0, c.typeError(key, "integer")
		}
		return int(v), nil
	default:
		return 0, c.typeError(key, "integer")
	}
}

// String returns key as a string, or def when unset.
func (c Config) String(key, def string) (string, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", c.typeError(key, "string")
	}
	return s, nil
}

// Bool returns key as a bool, or def when unset.
func (c Config) Bool(key string, def bool) (bool, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, c.typeError(key, "bool")
	}
	return b, nil
}

// Duration returns key as a time.Duration. Strings are parsed with
// time.ParseDuration; numbers are seconds.
func (c Config) Duration(key string, def time.Duration) (time.Duration, error) {
	raw, ok := c[key]
	if !ok {
		return def, nil
	}
	if s, ok := raw.(string); ok {
		d, err := time.ParseDuration(s)
		if err != nil {
			return 0, fmt.Errorf("config %q: %w", key, err)
		}
		return d, nil
	}
	secs, err := c.Float(key, 0)
	if err != nil {
		return 0, c.typeError(key, "duration")
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func (c Config) typeError(key, want string) error {
	return fmt.Errorf("config %q: expected %s, got %T", key, want, c[key])
}
