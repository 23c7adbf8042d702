package value

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"

	"golang.org/x/text/unicode/norm"
)

// Value is a sealed interface for the scalar values that label coordinates
// and condition setpoints. Only Float, Int, String and Bool implement it.
type Value interface {
	scalar()
	fmt.Stringer
}

// Float is a floating point scalar. NaN and infinities are not valid values.
type Float float64

func (Float) scalar() {}

func (f Float) String() string {
	return strconv.FormatFloat(float64(f), 'g', -1, 64)
}

// Int is an integer scalar.
type Int int64

func (Int) scalar() {}

func (i Int) String() string {
	return strconv.FormatInt(int64(i), 10)
}

// String is a text scalar. Construct through NewString (or Of) so the text
// is NFC normalized; otherwise visually identical labels compare unequal.
type String string

func (String) scalar() {}

func (s String) String() string {
	return string(s)
}

// Bool is a boolean scalar.
type Bool bool

func (Bool) scalar() {}

func (b Bool) String() string {
	return strconv.FormatBool(bool(b))
}

// ErrNotScalar is returned when a sequence, map or nil is offered where a
// single scalar value is required.
var ErrNotScalar = errors.New("value is not a scalar")

// NewString returns the NFC normalized String for s.
func NewString(s string) String {
	return String(norm.NFC.String(s))
}

// NormalizeName returns the NFC form of a coordinate or condition name.
func NormalizeName(name string) string {
	return norm.NFC.String(name)
}

// Of converts a native Go value into a Value.
//
// Accepted: Value, all integer kinds, float32/float64, string, bool.
// Rejected with ErrNotScalar: nil, slices, arrays, maps, structs, pointers.
// Non-finite floats are rejected because they cannot label a coordinate.
func Of(x any) (Value, error) {
	switch v := x.(type) {
	case nil:
		return nil, fmt.Errorf("%w: nil", ErrNotScalar)
	case Float:
		return checkFloat(float64(v))
	case Int:
		return v, nil
	case String:
		return NewString(string(v)), nil
	case Bool:
		return v, nil
	case float64:
		return checkFloat(v)
	case float32:
		return checkFloat(float64(v))
	case int:
		return Int(v), nil
	case int64:
		return Int(v), nil
	case int32:
		return Int(v), nil
	case int16:
		return Int(v), nil
	case int8:
		return Int(v), nil
	case uint:
		if uint64(v) > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", v)
		}
		return Int(v), nil
	case uint64:
		if v > math.MaxInt64 {
			return nil, fmt.Errorf("unsigned value %d overflows int64", v)
		}
		return Int(v), nil
	case uint32:
		return Int(v), nil
	case uint16:
		return Int(v), nil
	case uint8:
		return Int(v), nil
	case string:
		return NewString(v), nil
	case bool:
		return Bool(v), nil
	}

	switch reflect.ValueOf(x).Kind() {
	case reflect.Slice, reflect.Array, reflect.Map:
		return nil, fmt.Errorf("%w: got %T", ErrNotScalar, x)
	}
	return nil, fmt.Errorf("%w: unsupported type %T", ErrNotScalar, x)
}

// MustOf is Of for literals known to be valid. It panics on error.
func MustOf(x any) Value {
	v, err := Of(x)
	if err != nil {
		panic(err)
	}
	return v
}

// List converts native values into a slice of Values.
func List(xs ...any) ([]Value, error) {
	out := make([]Value, len(xs))
	for i, x := range xs {
		v, err := Of(x)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// MustList is List for literals. It panics on error.
func MustList(xs ...any) []Value {
	out, err := List(xs...)
	if err != nil {
		panic(err)
	}
	return out
}

func checkFloat(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil, fmt.Errorf("non-finite float %v cannot be used as a value", f)
	}
	return Float(f), nil
}

// Native returns the plain Go representation of v (float64, int64, string,
// bool), or nil when v is nil.
func Native(v Value) any {
	switch val := v.(type) {
	case Float:
		return float64(val)
	case Int:
		return int64(val)
	case String:
		return string(val)
	case Bool:
		return bool(val)
	default:
		return nil
	}
}

// Number returns v as a float64 if it is numeric.
func Number(v Value) (float64, bool) {
	switch val := v.(type) {
	case Float:
		return float64(val), true
	case Int:
		return float64(val), true
	default:
		return 0, false
	}
}

// Equal reports whether a and b denote the same scalar. Numbers compare by
// magnitude across Int and Float, so Int(25) equals Float(25).
func Equal(a, b Value) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return Key(a) == Key(b)
}

// Key returns a canonical identity string for v, suitable as a map key.
func Key(v Value) string {
	switch val := v.(type) {
	case Float:
		f := float64(val)
		if f == math.Trunc(f) && math.Abs(f) < 1<<53 {
			return "n:" + strconv.FormatInt(int64(f), 10)
		}
		return "n:" + strconv.FormatFloat(f, 'g', -1, 64)
	case Int:
		return "n:" + strconv.FormatInt(int64(val), 10)
	case String:
		return "s:" + norm.NFC.String(string(val))
	case Bool:
		return "b:" + strconv.FormatBool(bool(val))
	default:
		return "nil"
	}
}

// Index returns the position of v in values, or -1.
func Index(values []Value, v Value) int {
	key := Key(v)
	for i, candidate := range values {
		if Key(candidate) == key {
			return i
		}
	}
	return -1
}

// EqualLists reports whether two value lists have the same length and equal
// elements in the same order.
func EqualLists(a, b []Value) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !Equal(a[i], b[i]) {
			return false
		}
	}
	return true
}
