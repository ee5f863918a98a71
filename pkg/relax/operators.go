package relax

import (
	"math"

	"github.com/samber/lo"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
)


// SpringsForceApply moves every vertex toward the mean of the positions its
// sampled springs would put it at when relaxed to rest length * sizing.
// factor in [0, 1] blends between the old position and that mean.
// stiffness bounds the candidate pool per vertex and springs is the number
// of springs sampled from it.
func (e *Engine) SpringsForceApply(factor float64, stiffness, springs int) {
	if !e.begin() {
		return
	}
	factor = clamp01(factor)
	sample := e.sampler.Sample(stiffness, springs)
	for v, p := range e.pos {
		ids, lengths := sample.Row(v)
		if len(ids) == 0 {
			e.next[v] = p
			continue
		}
		var sum v3.Vec
		for j, nb := range ids {
			q := e.pos[nb]
			sum = sum.Add(q.Add(rescale(p.Sub(q), lengths[j]*e.sizing)))
		}
		mean := sum.DivScalar(float64(len(ids)))
		np := mean.MulScalar(factor).Add(p.MulScalar(1 - factor))
		if !finiteVec(np) {
			np = p
		}
		e.next[v] = np
	}
	copy(e.pos, e.next)
}

// Smooth blends each vertex toward the mean of its valid immediate
// neighbours, one pass per 0.5 of factor. The last pass uses the remainder.
func (e *Engine) Smooth(factor float64) {
	if !e.begin() || !(factor > 0) || math.IsInf(factor, 0) {
		return
	}
	for factor > 0 {
		step := math.Min(factor, 0.5)
		for v, p := range e.pos {
			ids := e.topo.Immediate(v)[:e.topo.ImmediateCount(v)]
			if len(ids) == 0 {
				e.next[v] = p
				continue
			}
			var sum v3.Vec
			for _, nb := range ids {
				sum = sum.Add(e.pos[nb])
			}
			mean := sum.DivScalar(float64(len(ids)))
			e.next[v] = mean.MulScalar(step).Add(p.MulScalar(1 - step))
		}
		copy(e.pos, e.next)
		factor -= 0.5
	}
}

// TargetAttract pulls each vertex toward its closest point on the target.
// The pull is scaled by the squared cosine between the vertex normal and
// the hit normal, and its direction is flipped when the vertex sits on the
// back side of a surface it faces away from.
func (e *Engine) TargetAttract(factor float64) {
	if !e.begin() || e.target == nil {
		return
	}
	factor = clamp01(factor)
	if factor == 0 {
		return
	}
	e.normals = mesh.VertexNormals(e.pos, e.faces, e.normals)
	for v, p := range e.pos {
		hit, ok := e.target.Nearest(p)
		if !ok {
			continue
		}
		d := p.Sub(hit.Point)
		dot := e.normals[v].Dot(hit.Normal)
		if dot < 0 && d.Dot(hit.Normal) < 0 {
			d = d.MulScalar(-1)
		}
		np := p.Sub(d.MulScalar(factor * dot * dot))
		if finiteVec(np) {
			e.pos[v] = np
		}
	}
}

// MovementStep adds inertia: each vertex keeps drag times the displacement
// it made since the previous call.
func (e *Engine) MovementStep(drag float64) {
	if !e.begin() {
		return
	}
	drag = clamp01(drag)
	for v, p := range e.pos {
		delta := p.Sub(e.prev[v])
		e.prev[v] = p
		e.pos[v] = p.Add(delta.MulScalar(drag))
	}
}

// XMirrorApply averages every vertex with the X-reflection of its mirror
// vertex, reading from a snapshot taken before the pass.
func (e *Engine) XMirrorApply() {
	if !e.begin() || e.mirror == nil {
		return
	}
	copy(e.next, e.pos)
	for v := range e.pos {
		m := e.mirror.Mirror(v)
		if m < 0 {
			continue
		}
		mp := e.next[m]
		e.pos[v] = e.next[v].Add(v3.Vec{X: -mp.X, Y: mp.Y, Z: mp.Z}).DivScalar(2)
	}
}

// PinsApply applies every pin in insertion order. Pins on vertices outside
// the mesh or with non-finite targets are skipped.
func (e *Engine) PinsApply() {
	if !e.begin() {
		return
	}
	for _, p := range e.pins.pins {
		if p.Vertex < 0 || p.Vertex >= len(e.pos) || !finiteVec(p.Target) {
			e.log.Debug("relax: skipping pin", "vertex", p.Vertex)
			continue
		}
		p = clampPin(p, e.topo.MaxSprings())
		e.falloff = Falloff(p.Stiffness, p.Factor, e.falloff)
		n := min(p.Stiffness, e.topo.SpringCount(p.Vertex))
		ids := e.topo.Springs(p.Vertex)[:n]
		if p.Twisty {
			e.applyTwisty(p, ids)
		} else {
			e.applySoft(p, ids)
		}
	}
}

// applyTwisty snaps the pinned vertex to the target and re-extends each
// neighbour toward its rest distance from it.
func (e *Engine) applyTwisty(p Pin, ids []int) {
	anchor := p.Target
	e.pos[p.Vertex] = anchor
	lengths := e.topo.Lengths(p.Vertex)
	for r, nb := range ids {
		d := e.pos[nb].Sub(anchor)
		nd := rescale(d, lengths[r]*e.sizing)
		f := e.falloff[r]
		e.pos[nb] = anchor.Add(nd.MulScalar(f)).Add(d.MulScalar(1 - f))
	}
}

// applySoft moves the pinned vertex part of the way to the target and
// drags its neighbours by the same displacement times their falloff.
func (e *Engine) applySoft(p Pin, ids []int) {
	d := p.Target.Sub(e.pos[p.Vertex])
	e.pos[p.Vertex] = e.pos[p.Vertex].Add(d.MulScalar(p.Factor))
	for r, nb := range ids {
		e.pos[nb] = e.pos[nb].Add(d.MulScalar(e.falloff[r]))
	}
}

// Jitter displaces every vertex by a uniform random offset in
// [-amount, amount] on each axis.
func (e *Engine) Jitter(amount float64) {
	if !e.begin() || !(amount > 0) || math.IsInf(amount, 0) {
		return
	}
	for v, p := range e.pos {
		e.pos[v] = p.Add(v3.Vec{
			X: (e.rng.Float64()*2 - 1) * amount,
			Y: (e.rng.Float64()*2 - 1) * amount,
			Z: (e.rng.Float64()*2 - 1) * amount,
		})
	}
}

// rescale returns d scaled to length l, or zero when d has no direction.
func rescale(d v3.Vec, l float64) v3.Vec {
	n := d.Length()
	if n == 0 || !finite(n) {
		return v3.Vec{}
	}
	out := d.MulScalar(l / n)
	if !finiteVec(out) {
		return v3.Vec{}
	}
	return out
}

func clamp01(f float64) float64 {
	if math.IsNaN(f) {
		return 0
	}
	return lo.Clamp(f, 0, 1)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func finiteVec(p v3.Vec) bool {
	return finite(p.X) && finite(p.Y) && finite(p.Z)
}
