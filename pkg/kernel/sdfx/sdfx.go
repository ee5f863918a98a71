// Package sdfx implements kernel.Kernel with the github.com/deadsy/sdfx
// SDF-based CAD library. Solids are signed distance functions; ToMesh
// renders them with uniform marching cubes.
package sdfx

import (
	"fmt"
	"math"

	"github.com/deadsy/sdfx/render"
	"github.com/deadsy/sdfx/sdf"
	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/jeacom25b/Softwrap/pkg/kernel"
	"github.com/jeacom25b/Softwrap/pkg/mesh"
)

var _ kernel.Kernel = (*SdfxKernel)(nil)

// DefaultMeshCells is the marching cubes resolution used when ToMesh is
// given a non-positive cell count.
const DefaultMeshCells = 64

// sdfxSolid wraps an sdf.SDF3 to implement kernel.Solid.
type sdfxSolid struct {
	s sdf.SDF3
}

func (s *sdfxSolid) BoundingBox() (min, max v3.Vec) {
	bb := s.s.BoundingBox()
	return bb.Min, bb.Max
}

// SdfxKernel implements kernel.Kernel using sdfx.
type SdfxKernel struct{}

// New returns a new SdfxKernel.
func New() *SdfxKernel {
	return &SdfxKernel{}
}

func unwrap(s kernel.Solid) sdf.SDF3 {
	return s.(*sdfxSolid).s
}

func wrap(s sdf.SDF3) kernel.Solid {
	return &sdfxSolid{s: s}
}

// Sphere creates a sphere centred on the origin.
func (k *SdfxKernel) Sphere(radius float64) (kernel.Solid, error) {
	if !(radius > 0) {
		return nil, fmt.Errorf("%w: sphere radius %g", kernel.ErrInvalidSolid, radius)
	}
	s, err := sdf.Sphere3D(radius)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrInvalidSolid, err)
	}
	return wrap(s), nil
}

// Box creates a box centred on the origin with optionally rounded edges.
func (k *SdfxKernel) Box(size v3.Vec, round float64) (kernel.Solid, error) {
	if !(size.X > 0 && size.Y > 0 && size.Z > 0) || round < 0 {
		return nil, fmt.Errorf("%w: box %v round %g", kernel.ErrInvalidSolid, size, round)
	}
	s, err := sdf.Box3D(size, round)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrInvalidSolid, err)
	}
	return wrap(s), nil
}

// Cylinder creates a Z-aligned cylinder centred on the origin.
func (k *SdfxKernel) Cylinder(height, radius float64) (kernel.Solid, error) {
	if !(height > 0 && radius > 0) {
		return nil, fmt.Errorf("%w: cylinder h=%g r=%g", kernel.ErrInvalidSolid, height, radius)
	}
	s, err := sdf.Cylinder3D(height, radius, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", kernel.ErrInvalidSolid, err)
	}
	return wrap(s), nil
}

// Union returns the union of two solids.
func (k *SdfxKernel) Union(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Union3D(unwrap(a), unwrap(b)))
}

// Difference returns the difference a - b.
func (k *SdfxKernel) Difference(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Difference3D(unwrap(a), unwrap(b)))
}

// Intersection returns the intersection of two solids.
func (k *SdfxKernel) Intersection(a, b kernel.Solid) kernel.Solid {
	return wrap(sdf.Intersect3D(unwrap(a), unwrap(b)))
}

// Translate moves a solid by offset.
func (k *SdfxKernel) Translate(s kernel.Solid, offset v3.Vec) kernel.Solid {
	return wrap(sdf.Transform3D(unwrap(s), sdf.Translate3d(offset)))
}

// Rotate rotates a solid by Euler angles (degrees) around X, Y, Z.
func (k *SdfxKernel) Rotate(s kernel.Solid, x, y, z float64) kernel.Solid {
	rad := math.Pi / 180
	m := sdf.RotateZ(z * rad).Mul(sdf.RotateY(y * rad)).Mul(sdf.RotateX(x * rad))
	return wrap(sdf.Transform3D(unwrap(s), m))
}

// ToMesh renders s with marching cubes and welds the triangle soup into an
// indexed mesh.
func (k *SdfxKernel) ToMesh(s kernel.Solid, cells int) (*mesh.Mesh, error) {
	if cells <= 0 {
		cells = DefaultMeshCells
	}
	triangles := render.ToTriangles(unwrap(s), render.NewMarchingCubesUniform(cells))
	if len(triangles) == 0 {
		return nil, fmt.Errorf("%w: empty tessellation", kernel.ErrInvalidSolid)
	}

	soup := make([]v3.Vec, 0, len(triangles)*3)
	for _, tri := range triangles {
		soup = append(soup, tri[0], tri[1], tri[2])
	}
	m := mesh.Weld(soup, mesh.DefaultWeldTolerance)
	if m.TriangleCount() == 0 {
		return nil, fmt.Errorf("%w: every triangle was degenerate", kernel.ErrInvalidSolid)
	}
	return m, nil
}
