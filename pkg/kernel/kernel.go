// Package kernel defines the solid-modeling interface used to build target
// surfaces and demo source meshes. A backend turns primitives and boolean
// combinations into a triangle mesh the relaxation engine can wrap onto.
package kernel

import (
	"errors"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
)

// ErrInvalidSolid is returned for primitives with non-positive dimensions.
var ErrInvalidSolid = errors.New("kernel: invalid solid")

// Solid is an opaque handle to a backend solid.
type Solid interface {
	// BoundingBox returns the axis-aligned bounding box.
	BoundingBox() (min, max v3.Vec)
}

// Kernel is the abstract geometry backend.
type Kernel interface {
	// Primitives, centred on the origin
	Sphere(radius float64) (Solid, error)
	Box(size v3.Vec, round float64) (Solid, error)
	Cylinder(height, radius float64) (Solid, error)

	// Boolean operations
	Union(a, b Solid) Solid
	Difference(a, b Solid) Solid
	Intersection(a, b Solid) Solid

	// Transforms
	Translate(s Solid, offset v3.Vec) Solid
	Rotate(s Solid, x, y, z float64) Solid // Euler angles in degrees

	// ToMesh tessellates s on a grid of cells along its longest axis and
	// returns a welded, indexed mesh.
	ToMesh(s Solid, cells int) (*mesh.Mesh, error)
}
