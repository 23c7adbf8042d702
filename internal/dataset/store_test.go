package dataset

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/labseq/internal/value"
)

var nan = math.NaN()

// assertData compares float slices treating NaN as equal to NaN.
func assertData(t *testing.T, want, got []float64) {
	t.Helper()
	if diff := cmp.Diff(want, got, cmpopts.EquateNaNs()); diff != "" {
		t.Errorf("data mismatch (-want +got):\n%s", diff)
	}
}

func mustVariable(t *testing.T, s *Store, name string) Variable {
	t.Helper()
	v, ok := s.Variable(name)
	require.True(t, ok, "variable %q missing", name)
	return v
}

func TestDefineCoordinateIdempotent(t *testing.T) {
	s := NewStore("M")

	require.NoError(t, s.DefineCoordinate("f", value.MustList(1, 2, 3)))
	require.NoError(t, s.DefineCoordinate("f", value.MustList(1, 2, 3)))
	require.NoError(t, s.DefineCoordinate("f", value.MustList(1.0, 2.0, 3.0)), "Int and Float labels of equal magnitude match")

	c, ok := s.Coordinate("f")
	require.True(t, ok)
	assert.Equal(t, 3, c.Len())
}

func TestDefineCoordinateConflict(t *testing.T) {
	tests := []struct {
		name   string
		values []value.Value
	}{
		{"different length", value.MustList(1, 2)},
		{"different values", value.MustList(1, 2, 4)},
		{"different order", value.MustList(3, 2, 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore("M")
			require.NoError(t, s.DefineCoordinate("f", value.MustList(1, 2, 3)))

			err := s.DefineCoordinate("f", tt.values)
			assert.True(t, IsCoordinateConflict(err), "got %v", err)

			c, _ := s.Coordinate("f")
			assert.True(t, value.EqualLists(value.MustList(1, 2, 3), c.Values), "coordinate must not change")
		})
	}
}

func TestDeclareSweepFollowsDefineRules(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.DeclareSweep("freq", value.MustList(100, 200)))
	require.NoError(t, s.DeclareSweep("freq", value.MustList(100, 200)))
	assert.True(t, IsCoordinateConflict(s.DeclareSweep("freq", value.MustList(100))))
}

func TestAccumulateConditionsCreatesCoordinates(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 25), value.A("VIN", 3.3))))

	assert.Equal(t, []string{"T", "VIN"}, s.CoordinateNames())
	c, _ := s.Coordinate("T")
	assert.True(t, value.EqualLists(value.MustList(25), c.Values))
	assert.True(t, s.Current().Equal(value.Set(value.A("T", 25), value.A("VIN", 3.3))))
}

func TestAccumulateConditionsRejectsMissingValue(t *testing.T) {
	s := NewStore("M")
	err := s.AccumulateConditions(value.Assignments{{Name: "T", Value: nil}})
	assert.True(t, HasCode(err, ErrCodeInvalidCondition))
	assert.Empty(t, s.CoordinateNames())
}

func TestAccumulateConditionsPadsDependentVariables(t *testing.T) {
	s := NewStore("Power")
	require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))

	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 25), value.A("VIN", 3))))
	require.NoError(t, s.StoreArray("gain", Vector([]float64{10, 11}), Free("f")))
	require.NoError(t, s.StoreFloat("idd", 0.5))
	require.NoError(t, s.StoreFloat("temp_only", 7, At("T", 25)))

	// T grows: every variable over T gains NaN entries.
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 50), value.A("VIN", 3))))

	gain := mustVariable(t, s, "gain")
	assert.Equal(t, []string{"T", "VIN", "f"}, gain.Dims)
	assertData(t, []float64{10, 11, nan, nan}, gain.Data)

	idd := mustVariable(t, s, "idd")
	assert.Equal(t, []string{"T", "VIN"}, idd.Dims)
	assertData(t, []float64{0.5, nan}, idd.Data)

	// VIN grows next: the previously covered cells keep their values.
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 50), value.A("VIN", 5))))
	idd = mustVariable(t, s, "idd")
	assertData(t, []float64{0.5, nan, nan, nan}, idd.Data)

	require.NoError(t, s.StoreFloat("idd", 0.9))
	idd = mustVariable(t, s, "idd")
	assertData(t, []float64{0.5, nan, nan, 0.9}, idd.Data)

	shape, ok := s.Shape("gain")
	require.True(t, ok)
	assert.Equal(t, []int{2, 2, 2}, shape)
}

func TestStoreArrayReadBackAndOverwrite(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 25))))
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 50))))

	require.NoError(t, s.StoreFloat("p", 1.5))
	got, err := s.Slice("p", At("T", 50))
	require.NoError(t, err)
	f, ok := got.Float()
	require.True(t, ok)
	assert.Equal(t, 1.5, f)

	require.NoError(t, s.StoreFloat("p", 2.5))
	got, err = s.Slice("p", At("T", 50))
	require.NoError(t, err)
	assert.Equal(t, []float64{2.5}, got.Data)

	all, err := s.Slice("p")
	require.NoError(t, err)
	assert.Equal(t, []int{2}, all.Shape)
	assertData(t, []float64{nan, 2.5}, all.Data)
}

func TestStoreArrayAssignsProvenance(t *testing.T) {
	s := NewStore("PowerMeasurement")
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 25))))
	require.NoError(t, s.StoreFloat("p", 1))

	assert.Equal(t, "PowerMeasurement", mustVariable(t, s, "p").Provenance)
}

func TestStoreArrayErrors(t *testing.T) {
	t.Run("no dimensions", func(t *testing.T) {
		s := NewStore("M")
		err := s.StoreFloat("p", 1)
		assert.True(t, HasCode(err, ErrCodeNoDimensions), "got %v", err)
	})

	t.Run("unknown coordinate", func(t *testing.T) {
		s := NewStore("M")
		err := s.StoreFloat("p", 1, Free("nope"))
		assert.True(t, HasCode(err, ErrCodeUnknownCoordinate), "got %v", err)
	})

	t.Run("unknown coordinate value", func(t *testing.T) {
		s := NewStore("M")
		require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))
		err := s.StoreFloat("p", 1, At("f", 3))
		assert.True(t, HasCode(err, ErrCodeUnknownCoordinate), "got %v", err)
	})

	t.Run("non scalar pin", func(t *testing.T) {
		s := NewStore("M")
		require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))
		err := s.StoreFloat("p", 1, At("f", []int{1}))
		assert.True(t, HasCode(err, ErrCodeInvalidCondition), "got %v", err)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		s := NewStore("M")
		require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))
		require.NoError(t, s.DeclareSweep("g", value.MustList(1)))
		require.NoError(t, s.StoreArray("p", Vector([]float64{1, 2}), Free("f")))
		err := s.StoreArray("p", Vector([]float64{1}), Free("g"))
		assert.True(t, HasCode(err, ErrCodeDimensionMismatch), "got %v", err)
	})

	t.Run("shape mismatch leaves store unchanged", func(t *testing.T) {
		s := NewStore("M")
		require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2, 3)))
		err := s.StoreArray("p", Vector([]float64{1, 2}), Free("f"))
		assert.True(t, IsShapeMismatch(err), "got %v", err)
		assert.True(t, s.Empty())
	})
}

func TestStoreArrayShapeReconciliation(t *testing.T) {
	rows := func(r [][]float64) Array {
		a, err := FromRows(r)
		require.NoError(t, err)
		return a
	}
	mustArray := func(shape []int, data []float64) Array {
		a, err := NewArray(shape, data)
		require.NoError(t, err)
		return a
	}

	tests := []struct {
		name    string
		in      Array
		dims    []Dim
		want    []float64
		wantErr bool
	}{
		{
			name: "exact",
			in:   rows([][]float64{{1, 2}, {3, 4}, {5, 6}}),
			dims: []Dim{Free("f"), Free("g")},
			want: []float64{1, 2, 3, 4, 5, 6},
		},
		{
			name: "transposed",
			in:   rows([][]float64{{1, 2, 3}, {4, 5, 6}}),
			dims: []Dim{Free("f"), Free("g")},
			want: []float64{1, 4, 2, 5, 3, 6},
		},
		{
			name: "extra size-1 axis",
			in:   mustArray([]int{1, 3, 2}, []float64{1, 2, 3, 4, 5, 6}),
			dims: []Dim{Free("f"), Free("g")},
			want: []float64{1, 2, 3, 4, 5, 6},
		},
		{
			name: "transposed after squeeze",
			in:   mustArray([]int{2, 1, 3}, []float64{1, 2, 3, 4, 5, 6}),
			dims: []Dim{Free("f"), Free("g")},
			want: []float64{1, 4, 2, 5, 3, 6},
		},
		{
			name: "vector into column",
			in:   Vector([]float64{7, 8, 9}),
			dims: []Dim{Free("f"), Free("h")},
			want: []float64{7, 8, 9},
		},
		{
			name: "single element into scalar slice",
			in:   Vector([]float64{7}),
			dims: []Dim{At("f", 2), At("g", 1)},
			want: []float64{nan, nan, nan, 7, nan, nan},
		},
		{
			name:    "flat vector does not reshape",
			in:      Vector([]float64{1, 2, 3, 4, 5, 6}),
			dims:    []Dim{Free("f"), Free("g")},
			wantErr: true,
		},
		{
			name:    "too many elements for scalar slice",
			in:      Vector([]float64{1, 2}),
			dims:    []Dim{At("f", 1), At("g", 0)},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := NewStore("M")
			require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2, 3)))
			require.NoError(t, s.DeclareSweep("g", value.MustList(0, 1)))
			require.NoError(t, s.DeclareSweep("h", value.MustList("only")))

			err := s.StoreArray("m", tt.in, tt.dims...)
			if tt.wantErr {
				assert.True(t, IsShapeMismatch(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assertData(t, tt.want, mustVariable(t, s, "m").Data)
		})
	}
}

func TestStoreArrayFollowsExistingDimOrder(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))
	require.NoError(t, s.DeclareSweep("g", value.MustList(0, 1, 2)))
	require.NoError(t, s.StoreFloat("m", 1, At("f", 1), At("g", 0)))

	// dims given in the other order still address the same cells
	require.NoError(t, s.StoreFloat("m", 5, At("g", 2), At("f", 2)))

	m := mustVariable(t, s, "m")
	assert.Equal(t, []string{"f", "g"}, m.Dims)
	assertData(t, []float64{1, nan, nan, nan, nan, 5}, m.Data)
}

func TestSliceErrors(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))
	require.NoError(t, s.DeclareSweep("g", value.MustList(1)))
	require.NoError(t, s.StoreArray("p", Vector([]float64{1, 2}), Free("f")))

	_, err := s.Slice("missing")
	assert.True(t, HasCode(err, ErrCodeUnknownVariable))

	_, err = s.Slice("p", At("g", 1))
	assert.True(t, HasCode(err, ErrCodeUnknownCoordinate))
}

func TestMergeDisjoint(t *testing.T) {
	a := NewStore("A")
	require.NoError(t, a.AccumulateConditions(value.Set(value.A("T", 25))))
	require.NoError(t, a.StoreFloat("pa", 1))

	b := NewStore("B")
	require.NoError(t, b.DeclareSweep("f", value.MustList(1, 2)))
	require.NoError(t, b.StoreArray("pb", Vector([]float64{3, nan}), Free("f")))

	require.NoError(t, a.Merge(b))

	assert.Equal(t, []string{"T", "f"}, a.CoordinateNames())
	assert.Equal(t, []string{"pa", "pb"}, a.VariableNames())
	assert.Equal(t, "A", mustVariable(t, a, "pa").Provenance)
	assert.Equal(t, "B", mustVariable(t, a, "pb").Provenance)
	assertData(t, []float64{3, nan}, mustVariable(t, a, "pb").Data)
	assert.Equal(t, []string{"f"}, mustVariable(t, a, "pb").Dims)
}

func TestMergeConflictingCoordinate(t *testing.T) {
	a := NewStore("A")
	require.NoError(t, a.DeclareSweep("T", value.MustList(25, 50)))
	b := NewStore("B")
	require.NoError(t, b.DeclareSweep("T", value.MustList(25)))
	require.NoError(t, b.StoreFloat("pb", 1, Free("T")))

	err := a.Merge(b)
	require.True(t, IsCoordinateConflict(err), "got %v", err)

	// merge never accumulates values and leaves the receiver untouched
	c, _ := a.Coordinate("T")
	assert.True(t, value.EqualLists(value.MustList(25, 50), c.Values))
	assert.True(t, a.Empty())
}

func TestMergeSameVariable(t *testing.T) {
	build := func(owner string, data []float64) *Store {
		s := NewStore(owner)
		require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2, 3)))
		require.NoError(t, s.StoreArray("p", Vector(data), Free("f")))
		return s
	}

	a := build("M", []float64{1, nan, nan})
	require.NoError(t, a.Merge(build("M", []float64{1, 2, nan})))
	assertData(t, []float64{1, 2, nan}, mustVariable(t, a, "p").Data)

	err := a.Merge(build("M", []float64{9, nan, nan}))
	assert.True(t, HasCode(err, ErrCodeVariableConflict), "got %v", err)
}

func TestMergeAttributes(t *testing.T) {
	a := NewStore("")
	a.SetAttr("serial", value.NewString("A1"))
	b := NewStore("")
	b.SetAttr("serial", value.NewString("B2"))
	b.SetAttr("operator", value.NewString("kim"))

	require.NoError(t, a.Merge(b))
	assert.Equal(t, []string{"serial", "operator"}, a.Attrs().Names())
	v, _ := a.Attr("serial")
	assert.Equal(t, value.String("A1"), v)
}

func TestFilterByProvenance(t *testing.T) {
	agg := NewStore("")
	a := NewStore("Power")
	require.NoError(t, a.AccumulateConditions(value.Set(value.A("T", 25))))
	require.NoError(t, a.StoreFloat("p", 1))
	b := NewStore("Gain")
	require.NoError(t, b.DeclareSweep("f", value.MustList(1, 2)))
	require.NoError(t, b.StoreArray("g", Vector([]float64{1, 2}), Free("f")))
	require.NoError(t, agg.Merge(a))
	require.NoError(t, agg.Merge(b))

	power := agg.FilterByProvenance("Power")
	assert.Equal(t, "Power", power.Owner())
	assert.Equal(t, []string{"p"}, power.VariableNames())
	assert.Equal(t, []string{"T"}, power.CoordinateNames())
	assert.True(t, power.Equal(a))

	assert.True(t, agg.FilterByProvenance("Nothing").Empty())
}

func TestClearKeepsOwner(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.AccumulateConditions(value.Set(value.A("T", 25))))
	require.NoError(t, s.StoreFloat("p", 1))
	s.SetAttr("x", value.Int(1))

	s.Clear()

	assert.True(t, s.Empty())
	assert.Empty(t, s.CoordinateNames())
	assert.Empty(t, s.Attrs())
	assert.Empty(t, s.Current())
	assert.Equal(t, "M", s.Owner())
}

func TestCloneIsIndependent(t *testing.T) {
	s := NewStore("M")
	require.NoError(t, s.DeclareSweep("f", value.MustList(1, 2)))
	require.NoError(t, s.StoreArray("p", Vector([]float64{1, 2}), Free("f")))

	c := s.Clone()
	require.NoError(t, c.StoreFloat("p", 9, At("f", 1)))

	assertData(t, []float64{1, 2}, mustVariable(t, s, "p").Data)
	assertData(t, []float64{9, 2}, mustVariable(t, c, "p").Data)
	assert.False(t, s.Equal(c))
}
