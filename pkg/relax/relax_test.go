package relax

import (
	"errors"
	"math"
	"testing"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
	"github.com/jeacom25b/Softwrap/pkg/spatial"
	"github.com/jeacom25b/Softwrap/pkg/symmetry"
)

func newGridEngine(t *testing.T, nx, ny int, cfg Config) *Engine {
	t.Helper()
	g := mesh.Grid(nx, ny, 1)
	if cfg.Seed == 0 {
		cfg.Seed = 7
	}
	e, err := FromMesh(g, cfg)
	require.NoError(t, err)
	return e
}

func assertVecNear(t *testing.T, want, got v3.Vec, delta float64, msgAndArgs ...any) {
	t.Helper()
	assert.InDelta(t, want.X, got.X, delta, msgAndArgs...)
	assert.InDelta(t, want.Y, got.Y, delta, msgAndArgs...)
	assert.InDelta(t, want.Z, got.Z, delta, msgAndArgs...)
}

func assertAllFinite(t *testing.T, pos []v3.Vec) {
	t.Helper()
	for i, p := range pos {
		assert.True(t, finiteVec(p), "vertex %d = %v", i, p)
	}
}

// edgeError sums how far every spring pair is from its rest length.
func edgeError(e *Engine) float64 {
	var sum float64
	topo := e.Topology()
	for v := 0; v < e.Len(); v++ {
		ids := topo.Springs(v)[:topo.SpringCount(v)]
		for j, nb := range ids {
			d := e.pos[nb].Sub(e.pos[v]).Length()
			sum += math.Abs(d - topo.Lengths(v)[j])
		}
	}
	return sum
}

func TestNewErrors(t *testing.T) {
	g := mesh.Grid(3, 3, 1)

	_, err := New(Config{Positions: g.Positions, Faces: [][3]int{{0, 1, 99}}})
	assert.True(t, errors.Is(err, mesh.ErrInvalidMesh), "got %v", err)

	_, err = FromMesh(g, Config{Target: &mesh.Mesh{}})
	assert.True(t, errors.Is(err, spatial.ErrEmptyTarget), "got %v", err)

	flat := &mesh.Mesh{
		Positions: []v3.Vec{{}, {X: 1}, {X: 2}},
		Faces:     [][3]int{{0, 1, 2}},
	}
	_, err = FromMesh(g, Config{Target: flat})
	assert.True(t, errors.Is(err, spatial.ErrDegenerateTarget), "got %v", err)

	_, err = FromMesh(g, Config{Mirror: []int{0, 1}})
	assert.True(t, errors.Is(err, symmetry.ErrInvalidTable), "got %v", err)

	_, err = FromMesh(nil, Config{})
	assert.True(t, errors.Is(err, mesh.ErrInvalidMesh), "got %v", err)
}

func TestLifecycle(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	assert.Equal(t, StateReady, e.State())
	assert.Equal(t, 9, e.Len())
	assert.Equal(t, 1.0, e.Sizing())

	e.Smooth(0.5)
	assert.Equal(t, StateStepping, e.State())

	e.AddPin(v3.Vec{}, 4, 8, 1, false, false)
	e.Close()
	assert.Equal(t, StateDisposed, e.State())
	assert.Equal(t, 0, e.Len())
	assert.Empty(t, e.Pins())

	// Every operator is a no-op after Close.
	e.SpringsForceApply(1, 8, 8)
	e.Smooth(1)
	e.TargetAttract(1)
	e.MovementStep(1)
	e.XMirrorApply()
	e.PinsApply()
	e.Jitter(1)
	e.AddPin(v3.Vec{}, 0, 1, 1, true, true)
	e.Export(&mesh.Mesh{})
	e.Close()
	assert.Equal(t, StateDisposed, e.State())
	assert.Empty(t, e.Pins())
}

func TestSetSizing(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.SetSizing(2)
	assert.Equal(t, 2.0, e.Sizing())
	e.SetSizing(-1)
	e.SetSizing(math.NaN())
	e.SetSizing(math.Inf(1))
	assert.Equal(t, 2.0, e.Sizing())
}

func TestSpringsAtRestConverged(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	before := e.Positions()
	for i := 0; i < 10; i++ {
		e.SpringsForceApply(1, 300, 300)
	}
	for i, p := range e.Positions() {
		assertVecNear(t, before[i], p, 1e-6, "vertex %d", i)
		assert.Equal(t, 0.0, p.Z, "vertex %d left the plane", i)
	}
}

func TestSpringsConvergeFromPerturbedCentre(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.pos[4] = e.pos[4].Add(v3.Vec{X: 0.2, Y: 0.1})

	converged := false
	for i := 0; i < 500 && !converged; i++ {
		before := e.Positions()
		e.SpringsForceApply(1, 4, 4)
		var delta float64
		for v, p := range e.pos {
			delta = math.Max(delta, p.Sub(before[v]).Length())
			require.Equal(t, 0.0, p.Z, "vertex %d left the plane at iteration %d", v, i)
		}
		converged = delta < 1e-6
	}
	assert.True(t, converged, "no fixed point within 500 iterations")
	assertAllFinite(t, e.Positions())
}

func TestSpringsReduceDistortion(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.pos[4] = e.pos[4].Add(v3.Vec{X: 0.2, Y: 0.1})
	initial := edgeError(e)
	require.Greater(t, initial, 0.0)

	for i := 0; i < 50; i++ {
		e.SpringsForceApply(0.5, 300, 300)
	}
	assert.Less(t, edgeError(e), initial)
	for i, p := range e.Positions() {
		assert.InDelta(t, 0, p.Z, 1e-12, "vertex %d", i)
	}
}

func TestSpringsZeroFactorIsIdentity(t *testing.T) {
	e := newGridEngine(t, 4, 4, Config{})
	e.pos[5] = e.pos[5].Add(v3.Vec{X: 0.3})
	before := e.Positions()
	e.SpringsForceApply(0, 300, 300)
	assert.Equal(t, before, e.Positions())
}

func TestSpringsCoincidentVertices(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.pos[1] = e.pos[0]
	e.pos[4] = e.pos[0]
	for i := 0; i < 5; i++ {
		e.SpringsForceApply(1, 300, 300)
		e.PinsApply()
	}
	assertAllFinite(t, e.Positions())
}

func TestSpringsScaledBySizing(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.SetSizing(2)
	for i := 0; i < 200; i++ {
		e.SpringsForceApply(0.5, 300, 300)
	}
	// The centre vertex stays put by symmetry while its edges double.
	c := e.pos[4]
	assert.InDelta(t, 2.0, e.pos[1].Sub(c).Length(), 0.05)
	assert.InDelta(t, 2.0, e.pos[3].Sub(c).Length(), 0.05)
}

func TestSmoothPullsTowardNeighbours(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.pos[4].Z = 1
	e.Smooth(0.5)
	assert.InDelta(t, 0.5, e.pos[4].Z, 1e-12)
	// Boundary vertices only average boundary neighbours, which are flat.
	for _, v := range []int{0, 1, 2, 3, 5, 6, 7, 8} {
		assert.Equal(t, 0.0, e.pos[v].Z, "vertex %d", v)
	}
}

func TestSmoothMultiplePasses(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.pos[4].Z = 1
	e.Smooth(0.75) // 0.5 then 0.25
	assert.InDelta(t, 0.375, e.pos[4].Z, 1e-12)

	e.Smooth(0)
	e.Smooth(-1)
	e.Smooth(math.NaN())
	assert.InDelta(t, 0.375, e.pos[4].Z, 1e-12)
}

func TestSmoothLargeFactorNotCapped(t *testing.T) {
	perturbed := func() *Engine {
		e := newGridEngine(t, 3, 3, Config{})
		e.pos[4].Z = 1
		return e
	}

	big := perturbed()
	big.Smooth(8)
	assert.InDelta(t, math.Pow(0.5, 16), big.pos[4].Z, 1e-15)

	passes := perturbed()
	for i := 0; i < 16; i++ {
		passes.Smooth(0.5)
	}
	for v := range big.pos {
		assertVecNear(t, passes.pos[v], big.pos[v], 1e-12, "vertex %d", v)
	}

	five := perturbed()
	five.Smooth(5)
	assert.InDelta(t, math.Pow(0.5, 10), five.pos[4].Z, 1e-15)

	inf := perturbed()
	inf.Smooth(math.Inf(1))
	assert.Equal(t, 1.0, inf.pos[4].Z)
}

func TestSmoothIsolatedVertexUnchanged(t *testing.T) {
	g := mesh.Grid(3, 3, 1)
	g.Positions = append(g.Positions, v3.Vec{X: 5, Y: 5, Z: 5})
	g.Boundary = nil
	e, err := FromMesh(g, Config{Seed: 1})
	require.NoError(t, err)
	e.Smooth(1)
	e.SpringsForceApply(1, 300, 300)
	p, ok := e.Position(9)
	require.True(t, ok)
	assert.Equal(t, v3.Vec{X: 5, Y: 5, Z: 5}, p)
	assertAllFinite(t, e.Positions())
}

func TestTargetAttract(t *testing.T) {
	target := mesh.Grid(5, 5, 1)
	target.Transform(func(p v3.Vec) v3.Vec { return p.Add(v3.Vec{Z: 1}) })
	e := newGridEngine(t, 3, 3, Config{Target: target})
	require.True(t, e.HasTarget())

	before := e.Positions()
	e.TargetAttract(0)
	assert.Equal(t, before, e.Positions(), "zero factor must not move vertices")

	e.TargetAttract(0.5)
	for i, p := range e.Positions() {
		assert.InDelta(t, 0.5, p.Z, 1e-9, "vertex %d", i)
	}
	e.TargetAttract(1)
	for i, p := range e.Positions() {
		assertVecNear(t, before[i].Add(v3.Vec{Z: 1}), p, 1e-9, "vertex %d", i)
	}
}

func TestTargetAttractWithoutTarget(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	before := e.Positions()
	e.TargetAttract(1)
	assert.Equal(t, before, e.Positions())
}

func TestTargetAttractPerpendicularNormals(t *testing.T) {
	// A vertical target: its normals are orthogonal to the source's, so
	// the squared cosine weight is zero.
	target := &mesh.Mesh{
		Positions: []v3.Vec{{X: 5, Y: -5, Z: -5}, {X: 5, Y: 5, Z: -5}, {X: 5, Y: 0, Z: 5}},
		Faces:     [][3]int{{0, 1, 2}},
	}
	e := newGridEngine(t, 3, 3, Config{Target: target})
	before := e.Positions()
	e.TargetAttract(1)
	for i, p := range e.Positions() {
		assertVecNear(t, before[i], p, 1e-12, "vertex %d", i)
	}
}

func TestMovementStep(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	start := e.pos[0]
	e.pos[0] = start.Add(v3.Vec{X: 1})

	e.MovementStep(0.5)
	assertVecNear(t, start.Add(v3.Vec{X: 1.5}), e.pos[0], 1e-12)
	e.MovementStep(0.5)
	assertVecNear(t, start.Add(v3.Vec{X: 1.75}), e.pos[0], 1e-12)

	// drag 0 only records the previous positions.
	e.MovementStep(0)
	p := e.pos[0]
	e.MovementStep(1)
	assert.Equal(t, p, e.pos[0])
}

func TestXMirrorApplyIdempotent(t *testing.T) {
	e := newGridEngine(t, 5, 3, Config{XMirror: true})
	require.NotNil(t, e.MirrorTable())
	e.Jitter(0.2)
	e.XMirrorApply()
	once := e.Positions()
	e.XMirrorApply()
	for i, p := range e.Positions() {
		assertVecNear(t, once[i], p, 1e-12, "vertex %d", i)
	}
	// Result is symmetric and centre-column vertices sit on the plane.
	tab := e.MirrorTable()
	for v, p := range once {
		m := once[tab.Mirror(v)]
		assertVecNear(t, v3.Vec{X: -m.X, Y: m.Y, Z: m.Z}, p, 1e-12, "vertex %d", v)
	}
	for _, v := range []int{2, 7, 12} {
		assert.InDelta(t, 0, once[v].X, 1e-12)
	}
}

func TestXMirrorApplyWithoutTable(t *testing.T) {
	e := newGridEngine(t, 5, 3, Config{})
	e.Jitter(0.2)
	before := e.Positions()
	e.XMirrorApply()
	assert.Equal(t, before, e.Positions())
}

func TestTopologyImmutable(t *testing.T) {
	target := mesh.Grid(4, 4, 1)
	e := newGridEngine(t, 5, 5, Config{Target: target, XMirror: true})
	snap := e.Topology().Snapshot()

	e.AddPin(v3.Vec{X: 1, Y: 1, Z: 1}, 12, 10, 1, true, true)
	e.AddPin(v3.Vec{X: -1}, 3, 10, 0.5, false, false)
	for i := 0; i < 5; i++ {
		e.MovementStep(0.8)
		e.SpringsForceApply(0.9, 30, 10)
		e.PinsApply()
		e.Smooth(1)
		e.TargetAttract(0.5)
		e.XMirrorApply()
		e.Jitter(0.01)
	}
	assert.Equal(t, snap, e.Topology().Snapshot())
	assertAllFinite(t, e.Positions())
}

func TestTwistyPinExact(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	target := v3.Vec{X: 0.3, Y: -0.2, Z: 0.7}
	e.AddPin(target, 4, 8, 1, true, false)
	e.PinsApply()
	assert.Equal(t, target, e.pos[4])

	// Rank 0 carries the full factor, so it lands exactly at rest length.
	topo := e.Topology()
	nb := topo.Springs(4)[0]
	assert.InDelta(t, topo.Lengths(4)[0], e.pos[nb].Sub(target).Length(), 1e-9)
}

func TestTwistyPinZeroStiffness(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	before := e.Positions()
	target := v3.Vec{Z: 2}
	e.AddPin(target, 4, 0, 1, true, false)
	e.PinsApply()
	assert.Equal(t, target, e.pos[4])
	for _, v := range []int{0, 1, 2, 3, 5, 6, 7, 8} {
		assert.Equal(t, before[v], e.pos[v])
	}
}

func TestSoftPin(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	start := e.pos[4]
	e.AddPin(start.Add(v3.Vec{Z: 1}), 4, 8, 0.5, false, false)
	e.PinsApply()
	assert.InDelta(t, 0.5, e.pos[4].Z, 1e-12)

	// Neighbours move by the full displacement times their falloff weight.
	w := Falloff(8, 0.5, nil)
	topo := e.Topology()
	for r, nb := range topo.Springs(4)[:topo.SpringCount(4)] {
		assert.InDelta(t, w[r], e.pos[nb].Z, 1e-12, "rank %d", r)
	}
}

func TestPinsSkipInvalid(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	before := e.Positions()
	e.AddPin(v3.Vec{X: 9}, 42, 8, 1, true, false)
	e.AddPin(v3.Vec{X: 9}, -1, 8, 1, false, false)
	e.AddPin(v3.Vec{X: math.NaN()}, 4, 8, 1, true, false)
	e.PinsApply()
	assert.Equal(t, before, e.Positions())
	assert.Len(t, e.Pins(), 3)

	e.ClearPins()
	assert.Empty(t, e.Pins())
}

func TestAddPinClamps(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	e.AddPin(v3.Vec{}, 0, 10000, 3, false, false)
	e.AddPin(v3.Vec{}, 0, -5, math.NaN(), false, false)
	pins := e.Pins()
	require.Len(t, pins, 2)
	assert.Equal(t, e.Topology().MaxSprings(), pins[0].Stiffness)
	assert.Equal(t, 1.0, pins[0].Factor)
	assert.Equal(t, 0, pins[1].Stiffness)
	assert.Equal(t, 0.0, pins[1].Factor)
}

func TestAddPinMirrored(t *testing.T) {
	e := newGridEngine(t, 5, 3, Config{XMirror: true})
	target := v3.Vec{X: 1, Y: 0.5, Z: 0.3}
	e.AddPin(target, 0, 6, 0.8, true, true)
	pins := e.Pins()
	require.Len(t, pins, 2)
	assert.Equal(t, 0, pins[0].Vertex)
	assert.Equal(t, target, pins[0].Target)
	assert.Equal(t, 4, pins[1].Vertex)
	assert.Equal(t, v3.Vec{X: -1, Y: 0.5, Z: 0.3}, pins[1].Target)
	assert.Equal(t, pins[0].Stiffness, pins[1].Stiffness)
	assert.Equal(t, pins[0].Twisty, pins[1].Twisty)

	// Without a mirror table the flag is ignored.
	plain := newGridEngine(t, 5, 3, Config{})
	plain.AddPin(target, 0, 6, 0.8, true, true)
	assert.Len(t, plain.Pins(), 1)
}

func TestFalloff(t *testing.T) {
	w := Falloff(10, 0.8, nil)
	require.Len(t, w, 10)
	assert.InDelta(t, 0.8, w[0], 1e-12)
	for r := 1; r < len(w); r++ {
		assert.LessOrEqual(t, w[r], w[r-1], "rank %d", r)
		assert.Greater(t, w[r], 0.0)
	}
	assert.Empty(t, Falloff(0, 1, nil))

	buf := make([]float64, 0, 16)
	out := Falloff(4, 1, buf)
	assert.Equal(t, []float64{1, 0.75, 0.5, 0.25}, out)
}

func TestJitter(t *testing.T) {
	a := newGridEngine(t, 4, 4, Config{Seed: 99})
	b := newGridEngine(t, 4, 4, Config{Seed: 99})
	before := a.Positions()
	a.Jitter(0.1)
	b.Jitter(0.1)
	assert.Equal(t, a.Positions(), b.Positions(), "same seed, same jitter")
	for i, p := range a.Positions() {
		d := p.Sub(before[i])
		assert.LessOrEqual(t, math.Abs(d.X), 0.1)
		assert.LessOrEqual(t, math.Abs(d.Y), 0.1)
		assert.LessOrEqual(t, math.Abs(d.Z), 0.1)
	}

	a.Jitter(0)
	a.Jitter(math.Inf(1))
	assert.Equal(t, b.Positions(), a.Positions())
}

func TestExport(t *testing.T) {
	e := newGridEngine(t, 3, 3, Config{})
	out := mesh.Grid(3, 3, 1)
	e.pos[4].Z = 0.5
	e.Export(out)
	assert.Equal(t, e.Positions(), out.Positions)
	assert.Greater(t, out.Normals[0].Length(), 0.0)

	// Export copies: later steps do not leak into the written mesh.
	e.pos[4].Z = 2
	assert.Equal(t, 0.5, out.Positions[4].Z)
}
