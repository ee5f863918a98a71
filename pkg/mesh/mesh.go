// Package mesh holds the host-side triangle mesh snapshot that the
// relaxation engine is built from and written back into.
package mesh

import (
	"math"

	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Mesh is an indexed triangle mesh in the source object's local space.
// Faces hold vertex indices; Boundary holds one flag per vertex and may be
// nil, in which case it is derived from the faces.
type Mesh struct {
	Positions []v3.Vec `json:"positions"`
	Normals   []v3.Vec `json:"normals,omitempty"`
	Faces     [][3]int `json:"faces"`
	Boundary  []bool   `json:"boundary,omitempty"`
	Name      string   `json:"name,omitempty"`
}

// VertexCount returns the number of vertices.
func (m *Mesh) VertexCount() int {
	return len(m.Positions)
}

// TriangleCount returns the number of triangles.
func (m *Mesh) TriangleCount() int {
	return len(m.Faces)
}

// IsEmpty returns true if the mesh has no geometry.
func (m *Mesh) IsEmpty() bool {
	return len(m.Positions) == 0 || len(m.Faces) == 0
}

// BoundaryFlags returns the stored boundary flags, computing them from the
// faces when none were supplied.
func (m *Mesh) BoundaryFlags() []bool {
	if len(m.Boundary) == len(m.Positions) {
		return m.Boundary
	}
	return BoundaryFlags(len(m.Positions), m.Faces)
}

// WritePositions replaces the vertex positions with a copy of pos.
func (m *Mesh) WritePositions(pos []v3.Vec) {
	if len(m.Positions) != len(pos) {
		m.Positions = make([]v3.Vec, len(pos))
	}
	copy(m.Positions, pos)
}

// UpdateNormals recomputes per-vertex normals from the current positions.
func (m *Mesh) UpdateNormals() {
	m.Normals = VertexNormals(m.Positions, m.Faces, m.Normals)
}

// Clone returns a deep copy of the mesh.
func (m *Mesh) Clone() *Mesh {
	c := &Mesh{
		Positions: append([]v3.Vec(nil), m.Positions...),
		Faces:     append([][3]int(nil), m.Faces...),
		Name:      m.Name,
	}
	if m.Normals != nil {
		c.Normals = append([]v3.Vec(nil), m.Normals...)
	}
	if m.Boundary != nil {
		c.Boundary = append([]bool(nil), m.Boundary...)
	}
	return c
}

type edgeKey struct{ lo, hi int }

func makeEdgeKey(a, b int) edgeKey {
	if a < b {
		return edgeKey{a, b}
	}
	return edgeKey{b, a}
}

// BoundaryFlags marks every vertex that touches an edge used by exactly one
// face. Vertices that belong to no face are not boundary.
func BoundaryFlags(n int, faces [][3]int) []bool {
	uses := make(map[edgeKey]int, len(faces)*3/2)
	for _, f := range faces {
		for k := 0; k < 3; k++ {
			uses[makeEdgeKey(f[k], f[(k+1)%3])]++
		}
	}
	flags := make([]bool, n)
	for e, c := range uses {
		if c != 1 {
			continue
		}
		if e.lo >= 0 && e.lo < n {
			flags[e.lo] = true
		}
		if e.hi >= 0 && e.hi < n {
			flags[e.hi] = true
		}
	}
	return flags
}

// VertexNormals computes area-weighted unit vertex normals. dst is reused
// when it has the right length. Vertices with no incident area get a zero
// normal.
func VertexNormals(pos []v3.Vec, faces [][3]int, dst []v3.Vec) []v3.Vec {
	if len(dst) != len(pos) {
		dst = make([]v3.Vec, len(pos))
	} else {
		for i := range dst {
			dst[i] = v3.Vec{}
		}
	}
	for _, f := range faces {
		if !inRange(f, len(pos)) {
			continue
		}
		// The unnormalized cross product weights by twice the face area.
		a, b, c := pos[f[0]], pos[f[1]], pos[f[2]]
		fn := b.Sub(a).Cross(c.Sub(a))
		for _, vi := range f {
			dst[vi] = dst[vi].Add(fn)
		}
	}
	for i, n := range dst {
		l := n.Length()
		if l > 0 && !math.IsInf(l, 0) {
			dst[i] = n.DivScalar(l)
		} else {
			dst[i] = v3.Vec{}
		}
	}
	return dst
}

// FaceNormal returns the unit normal of triangle f, or a zero vector when the
// triangle is degenerate.
func FaceNormal(pos []v3.Vec, f [3]int) v3.Vec {
	t := sdf.Triangle3{pos[f[0]], pos[f[1]], pos[f[2]]}
	n := t.Normal()
	if math.IsNaN(n.X) || math.IsNaN(n.Y) || math.IsNaN(n.Z) {
		return v3.Vec{}
	}
	return n
}

func inRange(f [3]int, n int) bool {
	return f[0] >= 0 && f[0] < n && f[1] >= 0 && f[1] < n && f[2] >= 0 && f[2] < n
}
