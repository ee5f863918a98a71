package topology

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
)

func buildGrid(t *testing.T, nx, ny int, opts Options) (*mesh.Mesh, *Index) {
	t.Helper()
	g := mesh.Grid(nx, ny, 1)
	idx, err := Build(g.Positions, g.Faces, g.Boundary, opts)
	require.NoError(t, err)
	return g, idx
}

func TestRingBreadthFirstOrder(t *testing.T) {
	// path graph 0-1-2-3-4
	adj := [][]int{{1}, {0, 2}, {1, 3}, {2, 4}, {3}}
	assert.Equal(t, []int{1, 3, 0, 4}, Ring(adj, 2, 10))
	assert.Equal(t, []int{1, 3}, Ring(adj, 2, 2))
	assert.Empty(t, Ring(adj, 2, 0))
	assert.Empty(t, Ring(adj, 9, 3))
}

func TestRingNeverRepeatsOrIncludesStart(t *testing.T) {
	g := mesh.Grid(5, 5, 1)
	adj, err := Adjacency(g.VertexCount(), g.Faces)
	require.NoError(t, err)
	for v := range adj {
		ring := Ring(adj, v, 100)
		seen := map[int]bool{}
		for _, o := range ring {
			assert.NotEqual(t, v, o)
			assert.False(t, seen[o], "vertex %d repeated in ring of %d", o, v)
			seen[o] = true
		}
		assert.Len(t, ring, 24)
	}
}

func TestSpringTableRestLengths(t *testing.T) {
	g, idx := buildGrid(t, 3, 3, Options{MaxSprings: 4})
	for v := 0; v < idx.Len(); v++ {
		require.Equal(t, 4, idx.SpringCount(v))
		row, lengths := idx.Springs(v), idx.Lengths(v)
		for j := 0; j < idx.SpringCount(v); j++ {
			want := g.Positions[row[j]].Sub(g.Positions[v]).Length()
			assert.InDelta(t, want, lengths[j], 1e-12)
		}
	}
}

func TestSpringTableSentinel(t *testing.T) {
	_, idx := buildGrid(t, 2, 2, Options{MaxSprings: 10})
	for v := 0; v < idx.Len(); v++ {
		assert.Equal(t, 3, idx.SpringCount(v))
		for _, s := range idx.Springs(v)[3:] {
			assert.Equal(t, -1, s)
		}
	}
}

// recomputeImmediate derives the expected immediate edges directly from the
// face list under the match-status rule.
func recomputeImmediate(g *mesh.Mesh, v, max int) []int {
	var adj []int
	for _, f := range g.Faces {
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			var other int
			switch v {
			case a:
				other = b
			case b:
				other = a
			default:
				continue
			}
			dup := false
			for _, x := range adj {
				if x == other {
					dup = true
				}
			}
			if !dup {
				adj = append(adj, other)
			}
		}
	}
	var out []int
	for j, o := range adj {
		if j >= max {
			break
		}
		if !g.Boundary[v] || g.Boundary[o] == g.Boundary[v] {
			out = append(out, o)
		}
	}
	return out
}

func TestImmediateEdgesMatchDirectRecomputation(t *testing.T) {
	g, idx := buildGrid(t, 4, 4, Options{})
	for v := 0; v < idx.Len(); v++ {
		want := recomputeImmediate(g, v, idx.MaxImmediate())
		count := idx.ImmediateCount(v)
		assert.Equal(t, len(want), count, "vertex %d", v)
		row, mask := idx.Immediate(v), idx.ImmediateMask(v)
		assert.ElementsMatch(t, want, row[:count], "vertex %d", v)
		for j := range row {
			assert.Equal(t, j < count, mask[j])
			if j >= count {
				assert.Equal(t, -1, row[j])
			}
		}
		if g.Boundary[v] {
			for _, o := range row[:count] {
				assert.True(t, g.Boundary[o], "boundary vertex %d linked to interior %d", v, o)
			}
		}
	}
}

func TestBoundaryPolicies(t *testing.T) {
	tests := []struct {
		policy BoundaryPolicy
		vb, nb bool
		want   bool
	}{
		{BoundaryMatchStatus, false, true, true},
		{BoundaryMatchStatus, true, false, false},
		{BoundaryMatchStatus, true, true, true},
		{BoundaryStrict, false, true, false},
		{BoundaryStrict, false, false, true},
		{BoundaryIgnore, true, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.policy.Accepts(tt.vb, tt.nb))
		})
	}
}

func TestImmediateCapCountsCandidatesNotKept(t *testing.T) {
	// Interior centre vertex of a 3x3 grid has six neighbours; a cap of
	// two keeps only the first two adjacent vertices.
	_, idx := buildGrid(t, 3, 3, Options{MaxImmediate: 2})
	assert.Equal(t, 2, idx.ImmediateCount(4))
}

func TestBuildErrors(t *testing.T) {
	g := mesh.Grid(2, 2, 1)
	_, err := Build(g.Positions, g.Faces, g.Boundary[:1], Options{})
	assert.True(t, errors.Is(err, ErrTopology))

	_, err = Build(g.Positions, [][3]int{{0, 1, 7}}, g.Boundary, Options{})
	assert.True(t, errors.Is(err, ErrTopology))
}

func TestOptionsDefaults(t *testing.T) {
	o := Options{MaxSprings: 2}.withDefaults()
	assert.Equal(t, MinMaxSprings, o.MaxSprings)
	assert.Equal(t, DefaultMaxImmediate, o.MaxImmediate)
	assert.Equal(t, DefaultMaxSprings, Options{}.withDefaults().MaxSprings)
}

func TestBoundaryPolicyText(t *testing.T) {
	for _, p := range []BoundaryPolicy{BoundaryMatchStatus, BoundaryStrict, BoundaryIgnore} {
		b, err := p.MarshalText()
		require.NoError(t, err)
		var got BoundaryPolicy
		require.NoError(t, got.UnmarshalText(b))
		assert.Equal(t, p, got)
	}
	_, err := ParseBoundaryPolicy("loose")
	assert.True(t, errors.Is(err, ErrTopology))
}
