package value

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetKeepsOrder(t *testing.T) {
	a := Set(A("T", 25), A("RH", 50), A("VIN", 3.3))

	assert.Equal(t, []string{"T", "RH", "VIN"}, a.Names())
	assert.Equal(t, "{T=25, RH=50, VIN=3.3}", a.String())
}

func TestWithReplacesInPlace(t *testing.T) {
	a := Set(A("T", 25), A("RH", 50))
	b := a.With("T", Int(85))

	assert.Equal(t, []string{"T", "RH"}, b.Names())
	v, ok := b.Get("T")
	require.True(t, ok)
	assert.Equal(t, Int(85), v)

	// original untouched
	v, _ = a.Get("T")
	assert.Equal(t, Int(25), v)
}

func TestFromMapSortsKeys(t *testing.T) {
	a, err := FromMap(map[string]any{"b": 2, "a": 1, "c": "x"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, a.Names())
}

func TestFromOrderedMap(t *testing.T) {
	m := map[string]any{"RH": 50, "T": 25, "extra": true}

	a, err := FromOrderedMap([]string{"T", "RH", "missing"}, m)
	require.NoError(t, err)
	assert.Equal(t, []string{"T", "RH", "extra"}, a.Names())
}

func TestFromMapRejectsNonScalar(t *testing.T) {
	_, err := FromMap(map[string]any{"T": []int{1, 2}})
	require.ErrorIs(t, err, ErrNotScalar)
	assert.Contains(t, err.Error(), `"T"`)
}

func TestAssignmentsEqual(t *testing.T) {
	assert.True(t, Set(A("T", 25)).Equal(Set(A("T", 25.0))))
	assert.False(t, Set(A("T", 25), A("RH", 1)).Equal(Set(A("RH", 1), A("T", 25))))
	assert.True(t, Assignments(nil).Equal(Assignments{}))
}

func TestAssignmentsMap(t *testing.T) {
	m := Set(A("T", 25), A("mode", "fast")).Map()
	assert.Equal(t, map[string]any{"T": int64(25), "mode": "fast"}, m)
}
