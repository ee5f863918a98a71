// Package relax implements the per-frame mass-spring relaxation engine.
//
// An Engine owns a mutable position array built from a mesh snapshot and
// exposes operators (springs, smoothing, target attraction, inertia, mirror
// symmetry, pins) that the host composes in whatever order it likes each
// frame. Operators never fail: out-of-range parameters are clamped, invalid
// pins skipped and degenerate geometry zeroed, so a bad slider value cannot
// corrupt a live session. Only construction returns errors.
//
// An Engine is not safe for concurrent use.
package relax

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
	"github.com/jeacom25b/Softwrap/pkg/spatial"
	"github.com/jeacom25b/Softwrap/pkg/symmetry"
	"github.com/jeacom25b/Softwrap/pkg/topology"
)

// State is the engine lifecycle stage.
type State int

const (
	StateReady    State = iota // tables built, no operator run yet
	StateStepping              // at least one operator has run
	StateDisposed              // Close was called
)

func (s State) String() string {
	switch s {
	case StateReady:
		return "ready"
	case StateStepping:
		return "stepping"
	case StateDisposed:
		return "disposed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Config holds the construction inputs.
type Config struct {
	Positions []v3.Vec
	Faces     [][3]int
	Boundary  []bool // nil derives boundary flags from Faces

	// Target is the surface to attract to, already in source-local space.
	Target *mesh.Mesh

	// Mirror is a precomputed mirror table. When nil and XMirror is set,
	// the table is built by nearest-vertex search.
	Mirror          []int
	XMirror         bool
	MirrorTolerance float64

	Topology topology.Options

	// Seed seeds spring sampling and jitter; 0 picks a random seed.
	Seed uint64

	Logger *slog.Logger
}

// MeshWriter receives positions from Export. *mesh.Mesh implements it.
type MeshWriter interface {
	WritePositions(pos []v3.Vec)
	UpdateNormals()
}

var _ MeshWriter = (*mesh.Mesh)(nil)

// Engine is the relaxation state for one editing session.
type Engine struct {
	topo    *topology.Index
	target  *spatial.Surface
	mirror  *symmetry.Table
	sampler *SpringSampler
	faces   [][3]int

	pos  []v3.Vec
	prev []v3.Vec
	pins PinSet

	sizing float64
	state  State
	rng    *rand.Rand
	log    *slog.Logger

	// scratch buffers reused across operator calls
	next    []v3.Vec
	normals []v3.Vec
	falloff []float64
}

// New builds the topology, spatial and symmetry indices and returns an
// engine in StateReady.
func New(cfg Config) (*Engine, error) {
	src := &mesh.Mesh{Positions: cfg.Positions, Faces: cfg.Faces, Boundary: cfg.Boundary}
	if err := mesh.Validate(src); err != nil {
		return nil, fmt.Errorf("relax: source: %w", err)
	}
	topo, err := topology.Build(src.Positions, src.Faces, src.BoundaryFlags(), cfg.Topology)
	if err != nil {
		return nil, fmt.Errorf("relax: %w", err)
	}

	e := &Engine{
		topo:   topo,
		faces:  append([][3]int(nil), cfg.Faces...),
		pos:    append([]v3.Vec(nil), cfg.Positions...),
		prev:   append([]v3.Vec(nil), cfg.Positions...),
		next:   make([]v3.Vec, len(cfg.Positions)),
		sizing: 1,
		log:    cfg.Logger,
	}
	if e.log == nil {
		e.log = slog.Default()
	}

	if cfg.Target != nil {
		e.target, err = spatial.FromMesh(cfg.Target)
		if err != nil {
			return nil, fmt.Errorf("relax: target: %w", err)
		}
	}

	switch {
	case cfg.Mirror != nil:
		e.mirror, err = symmetry.FromSlice(cfg.Mirror, len(e.pos))
		if err != nil {
			return nil, fmt.Errorf("relax: %w", err)
		}
	case cfg.XMirror:
		e.mirror = symmetry.Build(e.pos, cfg.MirrorTolerance)
	}

	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Uint64()
	}
	e.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	e.sampler = NewSpringSampler(topo, e.rng)

	e.log.Debug("relax: engine ready",
		"vertices", len(e.pos),
		"faces", len(e.faces),
		"max_springs", topo.MaxSprings(),
		"target", e.target != nil,
		"mirror", e.mirror != nil)
	return e, nil
}

// FromMesh builds an engine from a source mesh snapshot; cfg supplies the
// remaining options and its geometry fields are overwritten.
func FromMesh(src *mesh.Mesh, cfg Config) (*Engine, error) {
	if src == nil {
		return nil, fmt.Errorf("relax: source: %w: nil mesh", mesh.ErrInvalidMesh)
	}
	cfg.Positions = src.Positions
	cfg.Faces = src.Faces
	cfg.Boundary = src.Boundary
	return New(cfg)
}

// State returns the lifecycle stage.
func (e *Engine) State() State { return e.state }

// Len returns the vertex count, or 0 once disposed.
func (e *Engine) Len() int { return len(e.pos) }

// Positions returns a copy of the current positions.
func (e *Engine) Positions() []v3.Vec {
	return append([]v3.Vec(nil), e.pos...)
}

// Position returns the current position of vertex v.
func (e *Engine) Position(v int) (v3.Vec, bool) {
	if v < 0 || v >= len(e.pos) {
		return v3.Vec{}, false
	}
	return e.pos[v], true
}

// Topology returns the immutable neighbour tables.
func (e *Engine) Topology() *topology.Index { return e.topo }

// MirrorTable returns the mirror table, or nil when mirroring is off.
func (e *Engine) MirrorTable() *symmetry.Table { return e.mirror }

// HasTarget reports whether a target surface was supplied.
func (e *Engine) HasTarget() bool { return e.target != nil }

// Sampler returns the spring sampler, for cache inspection and invalidation.
func (e *Engine) Sampler() *SpringSampler { return e.sampler }

// Sizing returns the global rest-length scale.
func (e *Engine) Sizing() float64 { return e.sizing }

// SetSizing sets the global rest-length scale. Negative or non-finite
// values are ignored.
func (e *Engine) SetSizing(s float64) {
	if s >= 0 && !math.IsInf(s, 0) {
		e.sizing = s
	}
}

// AddPin clamps and appends a pin. With mirror set and a mirror vertex
// known for vertex, a twin pin with an X-negated target is appended too.
func (e *Engine) AddPin(target v3.Vec, vertex, stiffness int, factor float64, twisty, mirror bool) {
	if e.state == StateDisposed {
		return
	}
	p := clampPin(Pin{Target: target, Vertex: vertex, Stiffness: stiffness, Factor: factor, Twisty: twisty}, e.topo.MaxSprings())
	e.pins.Add(p)
	if !mirror || e.mirror == nil {
		return
	}
	if m := e.mirror.Mirror(vertex); m >= 0 {
		twin := p
		twin.Target = v3.Vec{X: -target.X, Y: target.Y, Z: target.Z}
		twin.Vertex = m
		e.pins.Add(twin)
	}
}

// ClearPins removes every pin.
func (e *Engine) ClearPins() { e.pins.Clear() }

// Pins returns a copy of the current pins.
func (e *Engine) Pins() []Pin { return e.pins.All() }

// Export writes the positions into w and asks it to refresh its normals.
func (e *Engine) Export(w MeshWriter) {
	if e.state == StateDisposed || w == nil {
		return
	}
	w.WritePositions(e.pos)
	w.UpdateNormals()
}

// Close releases every array and index. Later operator calls are no-ops.
func (e *Engine) Close() {
	if e.state == StateDisposed {
		return
	}
	e.topo = nil
	e.target = nil
	e.mirror = nil
	e.sampler = nil
	e.faces = nil
	e.pos = nil
	e.prev = nil
	e.next = nil
	e.normals = nil
	e.falloff = nil
	e.pins = PinSet{}
	e.state = StateDisposed
	e.log.Debug("relax: engine disposed")
}

// begin marks the engine as stepping and reports whether an operator may run.
func (e *Engine) begin() bool {
	if e.state == StateDisposed {
		return false
	}
	e.state = StateStepping
	return true
}
