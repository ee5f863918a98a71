// Package symmetry maps every source vertex to its bilateral counterpart
// across the X=0 plane.
package symmetry

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/jeacom25b/Softwrap/pkg/spatial"
)

// ErrInvalidTable is returned for host-supplied tables that do not fit the mesh.
var ErrInvalidTable = errors.New("symmetry: invalid mirror table")

// Table is an immutable per-vertex mirror lookup.
type Table struct {
	mirror []int
}

// Build matches each vertex to the vertex nearest its X-negated position.
// The input is not required to be symmetric: asymmetric meshes simply get
// the nearest available match. A positive tol leaves vertices whose best
// match is farther than tol unmatched; tol <= 0 always matches.
func Build(positions []v3.Vec, tol float64) *Table {
	idx := spatial.NewPointIndex(positions)
	mirror := make([]int, len(positions))
	for i, p := range positions {
		j, d := idx.Nearest(v3.Vec{X: -p.X, Y: p.Y, Z: p.Z})
		if tol > 0 && d > tol {
			j = -1
		}
		mirror[i] = j
	}
	return &Table{mirror: mirror}
}

// FromSlice wraps a precomputed table after checking it against the vertex
// count. The slice is copied.
func FromSlice(mirror []int, n int) (*Table, error) {
	if len(mirror) != n {
		return nil, fmt.Errorf("%w: %d entries for %d vertices", ErrInvalidTable, len(mirror), n)
	}
	for i, m := range mirror {
		if m < -1 || m >= n {
			return nil, fmt.Errorf("%w: vertex %d maps to %d", ErrInvalidTable, i, m)
		}
	}
	return &Table{mirror: append([]int(nil), mirror...)}, nil
}

// Len returns the vertex count.
func (t *Table) Len() int { return len(t.mirror) }

// Mirror returns the mirror vertex of v, or -1.
func (t *Table) Mirror(v int) int {
	if v < 0 || v >= len(t.mirror) {
		return -1
	}
	return t.mirror[v]
}

// Matched returns the number of vertices with a mirror.
func (t *Table) Matched() int {
	n := 0
	for _, m := range t.mirror {
		if m >= 0 {
			n++
		}
	}
	return n
}

// Slice returns a copy of the table.
func (t *Table) Slice() []int {
	return append([]int(nil), t.mirror...)
}
