package dataset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/roach88/labseq/internal/value"
)

// ProvenanceAttr is the variable attribute holding the provenance tag in a
// serialized document.
const ProvenanceAttr = "provenance"

// Document is the serializable form of a Store. Slices keep the order of
// coordinates, variables and attributes.
type Document struct {
	Coords   []Coordinate
	DataVars []DocVar
	Attrs    value.Assignments
}

// DocVar is one variable of a Document. Data is row-major over the sizes of
// the coordinates named in Dims.
type DocVar struct {
	Name  string
	Dims  []string
	Data  []float64
	Attrs value.Assignments
}

// Document returns the serializable form of s.
func (s *Store) Document() Document {
	doc := Document{Attrs: s.attrs.Clone()}
	for _, c := range s.coords {
		doc.Coords = append(doc.Coords, Coordinate{Name: c.Name, Values: slices.Clone(c.Values)})
	}
	for _, v := range s.vars {
		dv := DocVar{Name: v.Name, Dims: slices.Clone(v.Dims), Data: slices.Clone(v.Data)}
		if v.Provenance != "" {
			dv.Attrs = value.Set(value.Assignment{Name: ProvenanceAttr, Value: value.NewString(v.Provenance)})
		}
		doc.DataVars = append(doc.DataVars, dv)
	}
	return doc
}

// FromDocument rebuilds a store from doc. The store has no owner; its
// variables keep the provenance recorded in the document.
func FromDocument(doc Document) (*Store, error) {
	s := NewStore("")
	for _, c := range doc.Coords {
		if err := s.DefineCoordinate(c.Name, c.Values); err != nil {
			return nil, err
		}
	}
	for _, dv := range doc.DataVars {
		name := value.NormalizeName(dv.Name)
		if s.variable(name) != nil {
			return nil, newError(ErrCodeInvalidDocument, name, "duplicate variable")
		}
		if len(dv.Dims) == 0 {
			return nil, newError(ErrCodeNoDimensions, name, "variable needs at least one dimension")
		}
		dims := make([]string, len(dv.Dims))
		for i, d := range dv.Dims {
			dims[i] = value.NormalizeName(d)
			if s.coord(dims[i]) == nil {
				return nil, newError(ErrCodeUnknownCoordinate, dims[i], "variable %q references an undefined coordinate", name)
			}
		}
		if want := size(s.shape(dims)); want != len(dv.Data) {
			return nil, newError(ErrCodeShapeMismatch, name, "dims %v need %d values, got %d", dims, want, len(dv.Data))
		}
		v := &Variable{Name: name, Dims: dims, Data: slices.Clone(dv.Data)}
		if p, ok := dv.Attrs.Get(ProvenanceAttr); ok {
			v.Provenance = p.String()
		}
		s.vars = append(s.vars, v)
	}
	for _, a := range doc.Attrs {
		s.SetAttr(a.Name, a.Value)
	}
	return s, nil
}

// MarshalJSON encodes the store as a document.
func (s *Store) MarshalJSON() ([]byte, error) {
	return s.Document().MarshalJSON()
}

// MarshalJSON writes
//
//	{"coords": {name: [values]}, "data_vars": {name: {"dims": [...], "data": nested, "attrs": {...}}}, "attrs": {...}}
//
// with keys in document order and NaN as null.
func (d Document) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(`{"coords":{`)
	for i, c := range d.Coords {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, c.Name)
		b, err := value.MarshalList(c.Values)
		if err != nil {
			return nil, fmt.Errorf("coordinate %q: %w", c.Name, err)
		}
		buf.Write(b)
	}
	buf.WriteString(`},"data_vars":{`)
	shapes := make(map[string]int, len(d.Coords))
	for _, c := range d.Coords {
		shapes[c.Name] = len(c.Values)
	}
	for i, v := range d.DataVars {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(&buf, v.Name)
		buf.WriteString(`{"dims":`)
		dims, _ := json.Marshal(v.Dims)
		if v.Dims == nil {
			dims = []byte("[]")
		}
		buf.Write(dims)
		buf.WriteString(`,"data":`)
		shape := make([]int, len(v.Dims))
		for k, name := range v.Dims {
			n, ok := shapes[name]
			if !ok {
				return nil, fmt.Errorf("variable %q: unknown dimension %q", v.Name, name)
			}
			shape[k] = n
		}
		if size(shape) != len(v.Data) {
			return nil, fmt.Errorf("variable %q: shape %v does not hold %d values", v.Name, shape, len(v.Data))
		}
		if err := writeNested(&buf, v.Data, shape); err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		buf.WriteString(`,"attrs":`)
		if err := writeAttrs(&buf, v.Attrs); err != nil {
			return nil, fmt.Errorf("variable %q: %w", v.Name, err)
		}
		buf.WriteByte('}')
	}
	buf.WriteString(`},"attrs":`)
	if err := writeAttrs(&buf, d.Attrs); err != nil {
		return nil, err
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeKey(buf *bytes.Buffer, key string) {
	b, _ := json.Marshal(key)
	buf.Write(b)
	buf.WriteByte(':')
}

func writeAttrs(buf *bytes.Buffer, attrs value.Assignments) error {
	buf.WriteByte('{')
	for i, a := range attrs {
		if i > 0 {
			buf.WriteByte(',')
		}
		writeKey(buf, a.Name)
		b, err := value.Marshal(a.Value)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", a.Name, err)
		}
		buf.Write(b)
	}
	buf.WriteByte('}')
	return nil
}

func writeNested(buf *bytes.Buffer, data []float64, shape []int) error {
	buf.WriteByte('[')
	if len(shape) == 1 {
		for i, f := range data {
			if i > 0 {
				buf.WriteByte(',')
			}
			switch {
			case math.IsNaN(f):
				buf.WriteString("null")
			case math.IsInf(f, 0):
				return fmt.Errorf("infinite value at index %d", i)
			default:
				buf.WriteString(strconv.FormatFloat(f, 'g', -1, 64))
			}
		}
	} else {
		stride := size(shape[1:])
		for i := range shape[0] {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeNested(buf, data[i*stride:(i+1)*stride], shape[1:]); err != nil {
				return err
			}
		}
	}
	buf.WriteByte(']')
	return nil
}

// UnmarshalJSON decodes a document, keeping key order. Variable data is
// decoded after all coordinates are known, so "coords" may appear anywhere
// in the object.
func (d *Document) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	type rawVar struct {
		name string
		dims []string
		data json.RawMessage
		attr value.Assignments
	}
	var (
		out  Document
		raws []rawVar
	)
	err := readObject(dec, func(key string) error {
		switch key {
		case "coords":
			return readObject(dec, func(name string) error {
				vals, err := readValues(dec)
				if err != nil {
					return fmt.Errorf("coordinate %q: %w", name, err)
				}
				out.Coords = append(out.Coords, Coordinate{Name: value.NormalizeName(name), Values: vals})
				return nil
			})
		case "data_vars":
			return readObject(dec, func(name string) error {
				rv := rawVar{name: value.NormalizeName(name)}
				err := readObject(dec, func(field string) error {
					switch field {
					case "dims":
						return dec.Decode(&rv.dims)
					case "data":
						return dec.Decode(&rv.data)
					case "attrs":
						attrs, err := readAttrs(dec)
						rv.attr = attrs
						return err
					default:
						return skip(dec)
					}
				})
				if err != nil {
					return fmt.Errorf("variable %q: %w", name, err)
				}
				raws = append(raws, rv)
				return nil
			})
		case "attrs":
			attrs, err := readAttrs(dec)
			out.Attrs = attrs
			return err
		default:
			return skip(dec)
		}
	})
	if err != nil {
		return newError(ErrCodeInvalidDocument, "", "%v", err)
	}

	lengths := make(map[string]int, len(out.Coords))
	for _, c := range out.Coords {
		lengths[c.Name] = len(c.Values)
	}
	for _, rv := range raws {
		shape := make([]int, len(rv.dims))
		for k, name := range rv.dims {
			n, ok := lengths[value.NormalizeName(name)]
			if !ok {
				return newError(ErrCodeUnknownCoordinate, name, "variable %q references an undefined coordinate", rv.name)
			}
			shape[k] = n
		}
		if len(shape) == 0 {
			return newError(ErrCodeNoDimensions, rv.name, "variable needs at least one dimension")
		}
		flat, err := readNested(rv.data, shape)
		if err != nil {
			return newError(ErrCodeInvalidDocument, rv.name, "%v", err)
		}
		out.DataVars = append(out.DataVars, DocVar{Name: rv.name, Dims: rv.dims, Data: flat, Attrs: rv.attr})
	}
	*d = out
	return nil
}

// UnmarshalJSON decodes a document into s, replacing its content. The owner
// tag is kept.
func (s *Store) UnmarshalJSON(data []byte) error {
	var doc Document
	if err := doc.UnmarshalJSON(data); err != nil {
		return err
	}
	loaded, err := FromDocument(doc)
	if err != nil {
		return err
	}
	loaded.owner = s.owner
	*s = *loaded
	return nil
}

func readObject(dec *json.Decoder, fn func(key string) error) error {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", tok)
		}
		if err := fn(key); err != nil {
			return err
		}
	}
	return expectDelim(dec, '}')
}

func readValues(dec *json.Decoder) ([]value.Value, error) {
	if err := expectDelim(dec, '['); err != nil {
		return nil, err
	}
	vals := []value.Value{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		v, err := value.FromToken(tok)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", len(vals), err)
		}
		vals = append(vals, v)
	}
	return vals, expectDelim(dec, ']')
}

func readAttrs(dec *json.Decoder) (value.Assignments, error) {
	attrs := value.Assignments{}
	err := readObject(dec, func(name string) error {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		v, err := value.FromToken(tok)
		if err != nil {
			return fmt.Errorf("attribute %q: %w", name, err)
		}
		attrs = attrs.With(name, v)
		return nil
	})
	return attrs, err
}

func readNested(raw json.RawMessage, shape []int) ([]float64, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	out := make([]float64, 0, size(shape))
	var read func(depth int) error
	read = func(depth int) error {
		if err := expectDelim(dec, '['); err != nil {
			return err
		}
		for i := range shape[depth] {
			if !dec.More() {
				return fmt.Errorf("axis %d has %d entries, expected %d", depth, i, shape[depth])
			}
			if depth+1 < len(shape) {
				if err := read(depth + 1); err != nil {
					return err
				}
				continue
			}
			tok, err := dec.Token()
			if err != nil {
				return err
			}
			switch t := tok.(type) {
			case nil:
				out = append(out, math.NaN())
			case json.Number:
				f, err := t.Float64()
				if err != nil {
					return err
				}
				out = append(out, f)
			default:
				return fmt.Errorf("expected number or null, got %v", tok)
			}
		}
		if dec.More() {
			return fmt.Errorf("axis %d has more than %d entries", depth, shape[depth])
		}
		return expectDelim(dec, ']')
	}
	if err := read(0); err != nil {
		return nil, err
	}
	return out, nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("expected %q, got %v", want, tok)
	}
	return nil
}

func skip(dec *json.Decoder) error {
	var raw json.RawMessage
	return dec.Decode(&raw)
}
