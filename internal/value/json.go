package value

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Marshal encodes a single Value as JSON.
//
// Floats always carry a fraction or exponent ("25.0", not "25") so that
// Decode restores a Float rather than an Int.
func Marshal(v Value) ([]byte, error) {
	switch val := v.(type) {
	case Float:
		if _, err := checkFloat(float64(val)); err != nil {
			return nil, err
		}
		s := strconv.FormatFloat(float64(val), 'g', -1, 64)
		if !strings.ContainsAny(s, ".eE") {
			s += ".0"
		}
		return []byte(s), nil
	case Int:
		return []byte(strconv.FormatInt(int64(val), 10)), nil
	case String:
		return json.Marshal(string(val))
	case Bool:
		return json.Marshal(bool(val))
	default:
		return nil, fmt.Errorf("unknown Value type: %T", v)
	}
}

// MarshalList encodes a slice of Values as a JSON array.
func MarshalList(values []Value) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, v := range values {
		if i > 0 {
			buf.WriteByte(',')
		}
		b, err := Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", i, err)
		}
		buf.Write(b)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

// FromToken converts a token produced by a json.Decoder with UseNumber
// enabled into a Value. Numbers without fraction or exponent become Int.
func FromToken(tok json.Token) (Value, error) {
	switch t := tok.(type) {
	case json.Number:
		s := string(t)
		if !strings.ContainsAny(s, ".eE") {
			n, err := t.Int64()
			if err == nil {
				return Int(n), nil
			}
		}
		f, err := t.Float64()
		if err != nil {
			return nil, fmt.Errorf("invalid number %q: %w", s, err)
		}
		return checkFloat(f)
	case string:
		return NewString(t), nil
	case bool:
		return Bool(t), nil
	case nil:
		return nil, fmt.Errorf("%w: null", ErrNotScalar)
	default:
		return nil, fmt.Errorf("%w: unexpected token %v", ErrNotScalar, tok)
	}
}

// Unmarshal decodes a single JSON scalar into a Value.
func Unmarshal(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if _, ok := tok.(json.Delim); ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotScalar, tok)
	}
	return FromToken(tok)
}
