// Package session is the host-facing handle for one interactive relaxation:
// it owns an engine, the user's persistent pins and grab state, and runs the
// per-frame step the way the modal operator does.
//
// A Session is not safe for concurrent use; drive it from the host's frame
// loop.
package session

import (
	"errors"
	"fmt"
	"log/slog"

	v3 "github.com/deadsy/sdfx/vec/v3"
	"github.com/google/uuid"

	"github.com/jeacom25b/Softwrap/pkg/mesh"
	"github.com/jeacom25b/Softwrap/pkg/recipe"
	"github.com/jeacom25b/Softwrap/pkg/relax"
	"github.com/jeacom25b/Softwrap/pkg/topology"
)

var (
	// ErrClosed is returned by methods called after Close.
	ErrClosed = errors.New("session: closed")
	// ErrUnknownPin is returned for pin IDs the session does not hold.
	ErrUnknownPin = errors.New("session: unknown pin")
	// ErrUnknownVertex is returned for vertex indices outside the mesh.
	ErrUnknownVertex = errors.New("session: unknown vertex")
)

// PinDef is a persistent user pin. The engine's pin set is rebuilt from
// these every frame.
type PinDef struct {
	ID        uuid.UUID
	Vertex    int
	Target    v3.Vec
	Stiffness int
	Factor    float64
	Twisty    bool
}

// GrabForce is the pull factor of the temporary pin added while dragging.
const GrabForce = 0.99

// Session drives one relaxation.
type Session struct {
	ID uuid.UUID

	engine   *relax.Engine
	settings Settings
	target   *mesh.Mesh
	faces    [][3]int
	boundary []bool
	out      *mesh.Mesh
	plan     *recipe.Plan

	pins   []PinDef
	grab   *grab
	paused bool
	frames int
	closed bool

	log *slog.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session and engine logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithPlan replaces the default frame step with a compiled recipe.
func WithPlan(p *recipe.Plan) Option {
	return func(s *Session) { s.plan = p }
}

// New starts a session on a copy of src. target may be nil.
func New(src, target *mesh.Mesh, settings Settings, opts ...Option) (*Session, error) {
	if src == nil {
		return nil, fmt.Errorf("session: source: %w: nil mesh", mesh.ErrInvalidMesh)
	}
	s := &Session{
		ID:       uuid.New(),
		settings: settings.Normalize(),
		target:   target,
		faces:    append([][3]int(nil), src.Faces...),
		boundary: src.Boundary,
		out:      src.Clone(),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("session", s.ID.String())

	e, err := s.newEngine(src.Positions)
	if err != nil {
		return nil, err
	}
	s.engine = e
	s.log.Info("session: started",
		"vertices", len(src.Positions),
		"faces", len(src.Faces),
		"target", target != nil,
		"x_mirror", s.settings.XMirror)
	return s, nil
}

func (s *Session) newEngine(positions []v3.Vec) (*relax.Engine, error) {
	e, err := relax.New(relax.Config{
		Positions: positions,
		Faces:     s.faces,
		Boundary:  s.boundary,
		Target:    s.target,
		XMirror:   s.settings.XMirror,
		Topology: topology.Options{
			MaxSprings: s.settings.MaxSprings,
			Policy:     s.settings.Boundary,
		},
		Seed:   s.settings.Seed,
		Logger: s.log,
	})
	if err != nil {
		return nil, fmt.Errorf("session: %w", err)
	}
	e.SetSizing(s.settings.Scale)
	return e, nil
}

// Engine returns the underlying engine.
func (s *Session) Engine() *relax.Engine { return s.engine }

// Mesh returns the session's output mesh, updated by Tick.
func (s *Session) Mesh() *mesh.Mesh { return s.out }

// Settings returns the current settings.
func (s *Session) Settings() Settings { return s.settings }

// Frames returns the number of steps run so far.
func (s *Session) Frames() int { return s.frames }

// UpdateSettings applies new settings. Structural changes rebuild the engine
// from the current positions; pins are kept.
func (s *Session) UpdateSettings(next Settings) error {
	if s.closed {
		return ErrClosed
	}
	next = next.Normalize()
	prev := s.settings
	s.settings = next
	if !prev.structural(next) {
		s.engine.SetSizing(next.Scale)
		return nil
	}
	e, err := s.newEngine(s.engine.Positions())
	if err != nil {
		s.settings = prev
		return err
	}
	s.engine.Close()
	s.engine = e
	s.log.Info("session: engine rebuilt", "max_springs", next.MaxSprings, "x_mirror", next.XMirror)
	return nil
}

// SetPlan replaces the frame step; nil restores the default step.
func (s *Session) SetPlan(p *recipe.Plan) { s.plan = p }

// SetPaused pauses or resumes stepping. A paused session still refreshes
// pins, exports and builds its overlay.
func (s *Session) SetPaused(p bool) { s.paused = p }

// Paused reports whether stepping is paused.
func (s *Session) Paused() bool { return s.paused }

// AddPin pins vertex to target using the session's pin stiffness and force.
func (s *Session) AddPin(vertex int, target v3.Vec) (PinDef, error) {
	if s.closed {
		return PinDef{}, ErrClosed
	}
	if vertex < 0 || vertex >= s.engine.Len() {
		return PinDef{}, fmt.Errorf("%w: %d", ErrUnknownVertex, vertex)
	}
	p := PinDef{
		ID:        uuid.New(),
		Vertex:    vertex,
		Target:    target,
		Stiffness: s.settings.PinStiffness,
		Factor:    s.settings.PinForce,
		Twisty:    true,
	}
	s.pins = append(s.pins, p)
	s.log.Debug("session: pin added", "pin", p.ID.String(), "vertex", vertex)
	return p, nil
}

// MovePin sets a new target for pin id.
func (s *Session) MovePin(id uuid.UUID, target v3.Vec) error {
	i := s.pinIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPin, id)
	}
	s.pins[i].Target = target
	return nil
}

// RemovePin deletes pin id.
func (s *Session) RemovePin(id uuid.UUID) error {
	i := s.pinIndex(id)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownPin, id)
	}
	s.pins = append(s.pins[:i], s.pins[i+1:]...)
	return nil
}

// ClearPins removes every persistent pin.
func (s *Session) ClearPins() { s.pins = nil }

// Pins returns a copy of the persistent pins.
func (s *Session) Pins() []PinDef {
	return append([]PinDef(nil), s.pins...)
}

func (s *Session) pinIndex(id uuid.UUID) int {
	for i, p := range s.pins {
		if p.ID == id {
			return i
		}
	}
	return -1
}

// PickVertex returns the corner of face closest to hit, using the current
// positions.
func (s *Session) PickVertex(face int, hit v3.Vec) (int, bool) {
	if s.closed || face < 0 || face >= len(s.faces) {
		return -1, false
	}
	best, bestDist := -1, 0.0
	for _, v := range s.faces[face] {
		p, ok := s.engine.Position(v)
		if !ok {
			continue
		}
		d := p.Sub(hit).Length()
		if best < 0 || d < bestDist {
			best, bestDist = v, d
		}
	}
	return best, best >= 0
}

// Tick runs one frame: it rebuilds the engine pins, steps unless paused,
// and exports into w, or into Mesh() when w is nil.
func (s *Session) Tick(w relax.MeshWriter) error {
	if s.closed {
		return ErrClosed
	}
	s.refreshPins()
	if !s.paused {
		s.step()
		s.frames++
	}
	if w == nil {
		w = s.out
	}
	s.engine.Export(w)
	return nil
}

func (s *Session) refreshPins() {
	e := s.engine
	e.ClearPins()
	for _, p := range s.pins {
		e.AddPin(p.Target, p.Vertex, p.Stiffness, p.Factor, p.Twisty, s.settings.XMirror)
	}
	if g := s.grab; g != nil && g.dragging {
		e.AddPin(g.target, g.vertex, s.settings.Stiffness/2, GrabForce, true, s.settings.XMirror)
	}
}

func (s *Session) step() {
	e, st := s.engine, s.settings
	e.SetSizing(st.Scale)
	if s.plan != nil {
		s.plan.Apply(e)
		return
	}
	if st.Drag < 1 {
		e.MovementStep(1 - st.Drag)
	}
	for i := 0; i < st.Iterations; i++ {
		e.SpringsForceApply(st.Tension, st.Stiffness, st.Quality)
		e.PinsApply()
	}
	if st.Smoothing > 0 {
		e.Smooth(st.Smoothing)
	}
	if st.TargetAttraction > 0 && e.HasTarget() {
		e.TargetAttract(st.TargetAttraction)
	}
	if st.XMirror {
		e.XMirrorApply()
	}
}

// Close releases the engine. It is safe to call more than once.
func (s *Session) Close() {
	if s.closed {
		return
	}
	s.closed = true
	s.engine.Close()
	s.grab = nil
	s.log.Info("session: closed", "frames", s.frames)
}
