package mesh

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// DefaultWeldTolerance is the grid size used to merge coincident vertices.
const DefaultWeldTolerance = 1e-9

type weldKey struct{ x, y, z int64 }

// Weld turns a triangle soup (three consecutive positions per triangle) into
// an indexed mesh by merging vertices that fall into the same tolerance cell.
// Triangles that collapse onto fewer than three distinct vertices are dropped.
func Weld(soup []v3.Vec, tol float64) *Mesh {
	if tol <= 0 {
		tol = DefaultWeldTolerance
	}
	index := make(map[weldKey]int, len(soup)/2)
	m := &Mesh{}
	vertexOf := func(p v3.Vec) int {
		k := weldKey{
			x: int64(math.Round(p.X / tol)),
			y: int64(math.Round(p.Y / tol)),
			z: int64(math.Round(p.Z / tol)),
		}
		if i, ok := index[k]; ok {
			return i
		}
		i := len(m.Positions)
		m.Positions = append(m.Positions, p)
		index[k] = i
		return i
	}
	for t := 0; t+2 < len(soup); t += 3 {
		f := [3]int{vertexOf(soup[t]), vertexOf(soup[t+1]), vertexOf(soup[t+2])}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			continue
		}
		m.Faces = append(m.Faces, f)
	}
	m.Boundary = BoundaryFlags(len(m.Positions), m.Faces)
	m.UpdateNormals()
	return m
}

// Grid builds a flat nx by ny vertex grid in the XY plane, centred on the
// origin, with each quad split into two triangles. Vertex (i, j) has index
// j*nx + i.
func Grid(nx, ny int, spacing float64) *Mesh {
	if nx < 2 || ny < 2 {
		return &Mesh{}
	}
	ox := -float64(nx-1) * spacing / 2
	oy := -float64(ny-1) * spacing / 2
	m := &Mesh{Positions: make([]v3.Vec, 0, nx*ny)}
	for j := 0; j < ny; j++ {
		for i := 0; i < nx; i++ {
			m.Positions = append(m.Positions, v3.Vec{X: ox + float64(i)*spacing, Y: oy + float64(j)*spacing})
		}
	}
	for j := 0; j+1 < ny; j++ {
		for i := 0; i+1 < nx; i++ {
			a := j*nx + i
			b := a + 1
			c := a + nx
			d := c + 1
			m.Faces = append(m.Faces, [3]int{a, b, d}, [3]int{a, d, c})
		}
	}
	m.Boundary = BoundaryFlags(len(m.Positions), m.Faces)
	m.UpdateNormals()
	return m
}

// Transform applies fn to every position, for moving a target mesh into
// the source object's local space before an engine is built.
func (m *Mesh) Transform(fn func(v3.Vec) v3.Vec) {
	for i, p := range m.Positions {
		m.Positions[i] = fn(p)
	}
	m.UpdateNormals()
}
