// Package spatial answers nearest-point queries against static geometry:
// the target surface the source mesh is attracted to, and the source
// vertices themselves for mirror matching. Both are backed by an R-tree.
package spatial

import (
	"errors"
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
)

var (
	// ErrEmptyTarget is returned when the target has no vertices or faces.
	ErrEmptyTarget = errors.New("spatial: empty target mesh")
	// ErrDegenerateTarget is returned when no target face has area.
	ErrDegenerateTarget = errors.New("spatial: degenerate target mesh")
)

// R-tree branching factors.
const (
	minChildren = 4
	maxChildren = 16
)

// Hit is the result of a nearest-point query.
type Hit struct {
	Point    v3.Vec  // closest point on the surface
	Normal   v3.Vec  // unit normal of the face containing Point
	Face     int     // index into the faces the surface was built from
	Distance float64 // distance from the query point to Point
}

// triangle is an R-tree leaf.
type triangle struct {
	a, b, c v3.Vec
	normal  v3.Vec
	face    int
	bounds  rtreego.Rect
}

func (t *triangle) Bounds() rtreego.Rect { return t.bounds }

// Surface is a read-only nearest-point index over a triangle mesh.
type Surface struct {
	tree  *rtreego.Rtree
	tris  []*triangle
	faces int
}

// NewSurface indexes the given triangles. Faces with out-of-range indices
// or zero area are left out of the index.
func NewSurface(positions []v3.Vec, faces [][3]int) (*Surface, error) {
	if len(positions) == 0 || len(faces) == 0 {
		return nil, ErrEmptyTarget
	}
	n := len(positions)
	objs := make([]rtreego.Spatial, 0, len(faces))
	tris := make([]*triangle, 0, len(faces))
	for fi, f := range faces {
		if f[0] < 0 || f[0] >= n || f[1] < 0 || f[1] >= n || f[2] < 0 || f[2] >= n {
			continue
		}
		normal := mesh.FaceNormal(positions, f)
		if normal == (v3.Vec{}) {
			continue
		}
		t := &triangle{
			a:      positions[f[0]],
			b:      positions[f[1]],
			c:      positions[f[2]],
			normal: normal,
			face:   fi,
		}
		bb, err := boundsOf(t.a, t.b, t.c)
		if err != nil {
			return nil, fmt.Errorf("spatial: face %d: %w", fi, err)
		}
		t.bounds = bb
		tris = append(tris, t)
		objs = append(objs, t)
	}
	if len(tris) == 0 {
		return nil, ErrDegenerateTarget
	}
	return &Surface{
		tree:  rtreego.NewTree(3, minChildren, maxChildren, objs...),
		tris:  tris,
		faces: len(faces),
	}, nil
}

// FromMesh is a convenience wrapper around NewSurface.
func FromMesh(m *mesh.Mesh) (*Surface, error) {
	if m == nil {
		return nil, ErrEmptyTarget
	}
	return NewSurface(m.Positions, m.Faces)
}

// Len returns the number of indexed (non-degenerate) triangles.
func (s *Surface) Len() int { return len(s.tris) }

// Nearest returns the closest point on the surface to p. The bool is false
// only if p is not finite.
func (s *Surface) Nearest(p v3.Vec) (Hit, bool) {
	if !finite(p) {
		return Hit{}, false
	}
	pt := rtreego.Point{p.X, p.Y, p.Z}

	// The nearest bounding box gives an upper bound on the true distance;
	// every triangle that could beat it has a box inside that radius.
	first, ok := s.tree.NearestNeighbor(pt).(*triangle)
	if !ok {
		return Hit{}, false
	}
	best := hitFor(first, p)
	if best.Distance == 0 {
		return best, true
	}
	r := best.Distance * (1 + 1e-9)
	for _, obj := range s.tree.SearchIntersect(pt.ToRect(r)) {
		t := obj.(*triangle)
		if t == first {
			continue
		}
		h := hitFor(t, p)
		if h.Distance < best.Distance || (h.Distance == best.Distance && h.Face < best.Face) {
			best = h
		}
	}
	return best, true
}

func hitFor(t *triangle, p v3.Vec) Hit {
	q := ClosestPointOnTriangle(p, t.a, t.b, t.c)
	return Hit{Point: q, Normal: t.normal, Face: t.face, Distance: p.Sub(q).Length()}
}

// ClosestPointOnTriangle returns the point of triangle abc closest to p,
// using the Voronoi-region walk from Ericson's Real-Time Collision Detection.
func ClosestPointOnTriangle(p, a, b, c v3.Vec) v3.Vec {
	ab := b.Sub(a)
	ac := c.Sub(a)
	ap := p.Sub(a)
	d1 := ab.Dot(ap)
	d2 := ac.Dot(ap)
	if d1 <= 0 && d2 <= 0 {
		return a
	}

	bp := p.Sub(b)
	d3 := ab.Dot(bp)
	d4 := ac.Dot(bp)
	if d3 >= 0 && d4 <= d3 {
		return b
	}

	vc := d1*d4 - d3*d2
	if vc <= 0 && d1 >= 0 && d3 <= 0 {
		v := d1 / (d1 - d3)
		return a.Add(ab.MulScalar(v))
	}

	cp := p.Sub(c)
	d5 := ab.Dot(cp)
	d6 := ac.Dot(cp)
	if d6 >= 0 && d5 <= d6 {
		return c
	}

	vb := d5*d2 - d1*d6
	if vb <= 0 && d2 >= 0 && d6 <= 0 {
		w := d2 / (d2 - d6)
		return a.Add(ac.MulScalar(w))
	}

	va := d3*d6 - d5*d4
	if va <= 0 && (d4-d3) >= 0 && (d5-d6) >= 0 {
		w := (d4 - d3) / ((d4 - d3) + (d5 - d6))
		return b.Add(c.Sub(b).MulScalar(w))
	}

	denom := 1 / (va + vb + vc)
	v := vb * denom
	w := vc * denom
	return a.Add(ab.MulScalar(v)).Add(ac.MulScalar(w))
}

func boundsOf(pts ...v3.Vec) (rtreego.Rect, error) {
	lo := rtreego.Point{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi := rtreego.Point{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, p := range pts {
		for i, c := range [3]float64{p.X, p.Y, p.Z} {
			lo[i] = math.Min(lo[i], c)
			hi[i] = math.Max(hi[i], c)
		}
	}
	return rtreego.NewRectFromPoints(lo, hi)
}

func finite(p v3.Vec) bool {
	for _, c := range [3]float64{p.X, p.Y, p.Z} {
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return false
		}
	}
	return true
}
