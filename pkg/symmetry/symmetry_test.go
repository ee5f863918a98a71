package symmetry

import (
	"errors"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
)

func TestBuildSymmetricGrid(t *testing.T) {
	g := mesh.Grid(5, 3, 1)
	tab := Build(g.Positions, 0)
	require.Equal(t, g.VertexCount(), tab.Len())
	for j := 0; j < 3; j++ {
		for i := 0; i < 5; i++ {
			v := j*5 + i
			assert.Equal(t, j*5+(4-i), tab.Mirror(v), "vertex %d", v)
		}
	}
	// The table is an involution on a symmetric mesh.
	for v := 0; v < tab.Len(); v++ {
		assert.Equal(t, v, tab.Mirror(tab.Mirror(v)))
	}
	assert.Equal(t, tab.Len(), tab.Matched())
}

func TestBuildAsymmetricDegradesToNearest(t *testing.T) {
	pts := []v3.Vec{{X: 1}, {X: -0.8}, {X: 5, Y: 5}}
	tab := Build(pts, 0)
	assert.Equal(t, 1, tab.Mirror(0))
	assert.Equal(t, 0, tab.Mirror(1))

	strict := Build(pts, 0.1)
	assert.Equal(t, -1, strict.Mirror(0))
	assert.Equal(t, -1, strict.Mirror(2))
	assert.Equal(t, 0, strict.Matched())
}

func TestMirrorOutOfRange(t *testing.T) {
	tab := Build([]v3.Vec{{}}, 0)
	assert.Equal(t, 0, tab.Mirror(0))
	assert.Equal(t, -1, tab.Mirror(-1))
	assert.Equal(t, -1, tab.Mirror(1))
}

func TestFromSlice(t *testing.T) {
	tab, err := FromSlice([]int{1, 0, -1}, 3)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 0, -1}, tab.Slice())
	assert.Equal(t, 2, tab.Matched())

	_, err = FromSlice([]int{1, 0}, 3)
	assert.True(t, errors.Is(err, ErrInvalidTable))
	_, err = FromSlice([]int{1, 0, 3}, 3)
	assert.True(t, errors.Is(err, ErrInvalidTable))
	_, err = FromSlice([]int{-2, 0, 1}, 3)
	assert.True(t, errors.Is(err, ErrInvalidTable))
}

func TestSliceIsACopy(t *testing.T) {
	src := []int{1, 0}
	tab, err := FromSlice(src, 2)
	require.NoError(t, err)
	src[0] = -1
	s := tab.Slice()
	s[1] = -1
	assert.Equal(t, []int{1, 0}, tab.Slice())
}
