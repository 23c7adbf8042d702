package dataset

import (
	"fmt"
	"math"
	"slices"
)

// Array is a dense row-major n-dimensional block of float64 values.
// A zero-length Shape denotes a scalar holding exactly one element.
type Array struct {
	Shape []int
	Data  []float64
}

// Scalar returns a 0-dimensional array holding f.
func Scalar(f float64) Array {
	return Array{Shape: []int{}, Data: []float64{f}}
}

// Vector returns a 1-dimensional array. The slice is copied.
func Vector(xs []float64) Array {
	return Array{Shape: []int{len(xs)}, Data: slices.Clone(xs)}
}

// FromRows builds a 2-dimensional array from equal-length rows.
func FromRows(rows [][]float64) (Array, error) {
	if len(rows) == 0 {
		return Array{Shape: []int{0, 0}}, nil
	}
	width := len(rows[0])
	data := make([]float64, 0, len(rows)*width)
	for i, row := range rows {
		if len(row) != width {
			return Array{}, fmt.Errorf("row %d has %d columns, expected %d", i, len(row), width)
		}
		data = append(data, row...)
	}
	return Array{Shape: []int{len(rows), width}, Data: data}, nil
}

// NewArray validates that data fills shape exactly.
func NewArray(shape []int, data []float64) (Array, error) {
	if size(shape) != len(data) {
		return Array{}, fmt.Errorf("shape %v holds %d elements, got %d", shape, size(shape), len(data))
	}
	return Array{Shape: slices.Clone(shape), Data: slices.Clone(data)}, nil
}

// Size is the number of elements.
func (a Array) Size() int {
	return len(a.Data)
}

// At returns the element at the given multi-index.
func (a Array) At(idx ...int) float64 {
	return a.Data[offset(a.Shape, idx)]
}

// Float returns the single element of a one-element array.
func (a Array) Float() (float64, bool) {
	if len(a.Data) != 1 {
		return math.NaN(), false
	}
	return a.Data[0], true
}

// Transpose reverses the axis order.
func (a Array) Transpose() Array {
	if len(a.Shape) < 2 {
		return Array{Shape: slices.Clone(a.Shape), Data: slices.Clone(a.Data)}
	}
	outShape := reversed(a.Shape)
	out := make([]float64, len(a.Data))
	idx := make([]int, len(a.Shape))
	rev := make([]int, len(a.Shape))
	for i := range a.Data {
		unravel(i, a.Shape, idx)
		for k := range idx {
			rev[len(idx)-1-k] = idx[k]
		}
		out[offset(outShape, rev)] = a.Data[i]
	}
	return Array{Shape: outShape, Data: out}
}

// reconcile fits a onto the required shape. The rules are applied in order:
// exact shape match; a scalar slice accepts any single-element input; equal
// element counts reshape after dropping size-1 axes; reversed axes transpose.
func reconcile(a Array, req []int) (Array, error) {
	if slices.Equal(a.Shape, req) {
		return a, nil
	}
	if len(req) == 0 {
		if a.Size() == 1 {
			return Array{Shape: []int{}, Data: a.Data[:1]}, nil
		}
		return Array{}, fmt.Errorf("scalar slice needs exactly 1 element, got shape %v", a.Shape)
	}
	if a.Size() == size(req) {
		sa, sr := squeeze(a.Shape), squeeze(req)
		if slices.Equal(sa, sr) {
			return Array{Shape: slices.Clone(req), Data: a.Data}, nil
		}
		if slices.Equal(reversed(sa), sr) {
			t := Array{Shape: sa, Data: a.Data}.Transpose()
			return Array{Shape: slices.Clone(req), Data: t.Data}, nil
		}
	}
	return Array{}, fmt.Errorf("array of shape %v does not fit slice of shape %v", a.Shape, req)
}

func size(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

func squeeze(shape []int) []int {
	out := make([]int, 0, len(shape))
	for _, d := range shape {
		if d != 1 {
			out = append(out, d)
		}
	}
	return out
}

func reversed(shape []int) []int {
	out := slices.Clone(shape)
	slices.Reverse(out)
	return out
}

// offset maps a multi-index to a row-major flat index.
func offset(shape, idx []int) int {
	off := 0
	for k, d := range shape {
		off = off*d + idx[k]
	}
	return off
}

// unravel writes the multi-index of flat position i into idx.
func unravel(i int, shape []int, idx []int) {
	for k := len(shape) - 1; k >= 0; k-- {
		if shape[k] == 0 {
			idx[k] = 0
			continue
		}
		idx[k] = i % shape[k]
		i /= shape[k]
	}
}

func nanFilled(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

// regrid copies data laid out in oldShape into a NaN-filled block of
// newShape. Every axis of newShape must be at least as long as in oldShape.
func regrid(data []float64, oldShape, newShape []int) []float64 {
	out := nanFilled(size(newShape))
	idx := make([]int, len(oldShape))
	for i, v := range data {
		unravel(i, oldShape, idx)
		out[offset(newShape, idx)] = v
	}
	return out
}
