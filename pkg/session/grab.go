package session

import (
	"fmt"
	"math"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// grab is an in-progress interactive drag. While dragging, the grabbed
// vertex gets a temporary twisty pin at target.
type grab struct {
	vertex   int
	hit      v3.Vec // surface point under the cursor when the grab started
	normal   v3.Vec // view direction; the drag plane passes through hit
	offset   v3.Vec // vertex position minus hit
	target   v3.Vec
	dragging bool
}

// Grab starts dragging vertex. hit is the picked surface point and
// viewNormal the view direction, which fixes the drag plane.
func (s *Session) Grab(vertex int, hit, viewNormal v3.Vec) error {
	if s.closed {
		return ErrClosed
	}
	p, ok := s.engine.Position(vertex)
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownVertex, vertex)
	}
	s.grab = &grab{
		vertex: vertex,
		hit:    hit,
		normal: viewNormal,
		offset: p.Sub(hit),
		target: p,
	}
	s.log.Debug("session: grab", "vertex", vertex)
	return nil
}

// DragTo moves the grab target to where the ray (origin, dir), shifted by
// the grab offset, crosses the drag plane. It returns false when nothing is
// grabbed or the ray is parallel to the plane; the target is left alone.
func (s *Session) DragTo(origin, dir v3.Vec) bool {
	g := s.grab
	if s.closed || g == nil {
		return false
	}
	o := origin.Add(g.offset)
	denom := dir.Dot(g.normal)
	if math.Abs(denom) < 1e-12 {
		return false
	}
	t := g.hit.Sub(o).Dot(g.normal) / denom
	p := o.Add(dir.MulScalar(t))
	if !finiteVec(p) {
		return false
	}
	g.target = p
	g.dragging = true
	return true
}

// Release ends the current grab.
func (s *Session) Release() {
	if s.grab != nil {
		s.log.Debug("session: release", "vertex", s.grab.vertex)
	}
	s.grab = nil
}

// Grabbing reports whether a vertex is grabbed.
func (s *Session) Grabbing() bool { return s.grab != nil }

func finiteVec(p v3.Vec) bool {
	for _, f := range []float64{p.X, p.Y, p.Z} {
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
