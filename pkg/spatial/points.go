package spatial

import (
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/dhconnelly/rtreego"
)

// pointTolerance is the half-size of the box each point is stored as.
const pointTolerance = 1e-12

type point struct {
	index  int
	pos    v3.Vec
	bounds rtreego.Rect
}

func (p *point) Bounds() rtreego.Rect { return p.bounds }

// PointIndex finds the stored point nearest to a query position.
type PointIndex struct {
	tree *rtreego.Rtree
	n    int
}

// NewPointIndex indexes positions; the returned indices refer to this slice.
// Non-finite positions are skipped.
func NewPointIndex(positions []v3.Vec) *PointIndex {
	objs := make([]rtreego.Spatial, 0, len(positions))
	for i, p := range positions {
		if !finite(p) {
			continue
		}
		objs = append(objs, &point{
			index:  i,
			pos:    p,
			bounds: rtreego.Point{p.X, p.Y, p.Z}.ToRect(pointTolerance),
		})
	}
	return &PointIndex{
		tree: rtreego.NewTree(3, minChildren, maxChildren, objs...),
		n:    len(objs),
	}
}

// Len returns the number of indexed points.
func (x *PointIndex) Len() int { return x.n }

// Nearest returns the index of the stored point closest to p and its
// distance. It returns -1 when the index is empty or p is not finite.
func (x *PointIndex) Nearest(p v3.Vec) (int, float64) {
	if x.n == 0 || !finite(p) {
		return -1, math.Inf(1)
	}
	pt, ok := x.tree.NearestNeighbor(rtreego.Point{p.X, p.Y, p.Z}).(*point)
	if !ok {
		return -1, math.Inf(1)
	}
	return pt.index, pt.pos.Sub(p).Length()
}
