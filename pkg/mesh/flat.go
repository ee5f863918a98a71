package mesh

import v3 "github.com/deadsy/sdfx/vec/v3"

// Flat is a triangle mesh suitable for rendering frontends.
// All arrays are flat: vertices has 3 floats per vertex (x,y,z),
// normals has 3 floats per vertex, indices has 3 uint32s per triangle.
type Flat struct {
	Vertices []float32 `json:"vertices"` // [x0,y0,z0, x1,y1,z1, ...]
	Normals  []float32 `json:"normals"`  // [nx0,ny0,nz0, ...]
	Indices  []uint32  `json:"indices"`  // [i0,i1,i2, ...] triangles
	Name     string    `json:"name"`
}

// VertexCount returns the number of vertices.
func (f *Flat) VertexCount() int {
	return len(f.Vertices) / 3
}

// TriangleCount returns the number of triangles.
func (f *Flat) TriangleCount() int {
	return len(f.Indices) / 3
}

// ToFlat converts the mesh to the flat float32 layout. Normals are
// recomputed when missing.
func (m *Mesh) ToFlat() *Flat {
	normals := m.Normals
	if len(normals) != len(m.Positions) {
		normals = VertexNormals(m.Positions, m.Faces, nil)
	}
	f := &Flat{
		Vertices: make([]float32, 0, len(m.Positions)*3),
		Normals:  make([]float32, 0, len(m.Positions)*3),
		Indices:  make([]uint32, 0, len(m.Faces)*3),
		Name:     m.Name,
	}
	for i, p := range m.Positions {
		n := normals[i]
		f.Vertices = append(f.Vertices, float32(p.X), float32(p.Y), float32(p.Z))
		f.Normals = append(f.Normals, float32(n.X), float32(n.Y), float32(n.Z))
	}
	for _, face := range m.Faces {
		f.Indices = append(f.Indices, uint32(face[0]), uint32(face[1]), uint32(face[2]))
	}
	return f
}

// FromFlat builds an indexed mesh from the flat layout. Trailing partial
// vertices or triangles are ignored.
func FromFlat(f *Flat) *Mesh {
	m := &Mesh{Name: f.Name}
	for i := 0; i+2 < len(f.Vertices); i += 3 {
		m.Positions = append(m.Positions, v3.Vec{
			X: float64(f.Vertices[i]),
			Y: float64(f.Vertices[i+1]),
			Z: float64(f.Vertices[i+2]),
		})
	}
	for i := 0; i+2 < len(f.Indices); i += 3 {
		m.Faces = append(m.Faces, [3]int{int(f.Indices[i]), int(f.Indices[i+1]), int(f.Indices[i+2])})
	}
	m.Boundary = BoundaryFlags(len(m.Positions), m.Faces)
	m.UpdateNormals()
	return m
}
