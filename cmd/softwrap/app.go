package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	v3 "github.com/deadsy/sdfx/vec/v3"

	"github.com/jeacom25b/Softwrap/pkg/kernel"
	"github.com/jeacom25b/Softwrap/pkg/kernel/sdfx"
	"github.com/jeacom25b/Softwrap/pkg/mesh"
	"github.com/jeacom25b/Softwrap/pkg/recipe"
	"github.com/jeacom25b/Softwrap/pkg/session"
)

// App runs batch relaxations: it compiles the recipe, builds the source and
// target meshes, and drives a session for a fixed number of frames.
//
// Recipe compilation supersedes older in-flight evaluations, so concurrent
// Relax calls with recipes may fail; run one at a time.
type App struct {
	recipes *recipe.Engine
	kernel  kernel.Kernel
	log     *slog.Logger
}

// PinRequest pins one source vertex to a target position.
type PinRequest struct {
	Vertex int    `json:"vertex"`
	Target v3.Vec `json:"target"`
}

// Request describes one batch relaxation.
type Request struct {
	// Source and Target are mesh specs: a shape spec such as "sphere:1",
	// "grid:NX,NY[,SPACING]", or a path to a JSON mesh.
	Source      string
	Target      string
	Cells       int
	TargetCells int

	Frames   int
	Settings session.Settings
	Recipe   string // overrides Settings.Recipe when set
	Pins     []PinRequest
	Jitter   float64
}

// Message is a JSON-serializable error or warning.
type Message struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// Result is the outcome of a relaxation.
type Result struct {
	Mesh     *mesh.Flat    `json:"mesh,omitempty"`
	Frames   int           `json:"frames"`
	Pins     int           `json:"pins"`
	Elapsed  time.Duration `json:"elapsed"`
	Errors   []Message     `json:"errors"`
	Warnings []Message     `json:"warnings"`
}

// OK reports whether the relaxation produced a mesh.
func (r *Result) OK() bool { return len(r.Errors) == 0 && r.Mesh != nil }

func (r *Result) fail(format string, args ...any) Result {
	r.Errors = append(r.Errors, Message{Message: fmt.Sprintf(format, args...)})
	return *r
}

// NewApp creates an App with a recipe engine and the sdfx kernel.
func NewApp(log *slog.Logger) *App {
	if log == nil {
		log = slog.Default()
	}
	return &App{
		recipes: recipe.NewEngine(recipe.WithLogger(log)),
		kernel:  sdfx.New(),
		log:     log,
	}
}

// Relax runs req. Errors are reported in the result rather than returned,
// so callers can print every message at once. Cancelling ctx stops between
// frames and still returns the mesh so far.
func (a *App) Relax(ctx context.Context, req Request) Result {
	res := Result{Errors: []Message{}, Warnings: []Message{}}
	start := time.Now()

	settings := req.Settings.Normalize()
	plan, ok := a.compile(&res, req.Recipe, settings.Recipe)
	if !ok {
		return res
	}

	src, err := a.LoadMesh(req.Source, req.Cells)
	if err != nil {
		return res.fail("source: %v", err)
	}
	for _, f := range mesh.Check(src) {
		if f.Severity == mesh.SeverityWarning {
			res.Warnings = append(res.Warnings, Message{Message: "source: " + f.Error()})
		}
	}

	var target *mesh.Mesh
	if req.Target != "" {
		if target, err = a.LoadMesh(req.Target, req.TargetCells); err != nil {
			return res.fail("target: %v", err)
		}
	}

	s, err := session.New(src, target, settings, session.WithLogger(a.log), session.WithPlan(plan))
	if err != nil {
		return res.fail("%v", err)
	}
	defer s.Close()

	for _, p := range req.Pins {
		if _, err := s.AddPin(p.Vertex, p.Target); err != nil {
			return res.fail("pin: %v", err)
		}
	}
	if req.Jitter > 0 {
		s.Engine().Jitter(req.Jitter)
	}

	for i := 0; i < req.Frames; i++ {
		if ctx.Err() != nil {
			res.Warnings = append(res.Warnings, Message{
				Message: fmt.Sprintf("interrupted after %d of %d frames", i, req.Frames),
			})
			break
		}
		if err := s.Tick(nil); err != nil {
			return res.fail("frame %d: %v", i, err)
		}
	}
	if req.Frames <= 0 {
		// Export without stepping so jitter is reflected.
		s.SetPaused(true)
		if err := s.Tick(nil); err != nil {
			return res.fail("%v", err)
		}
	}

	out := s.Mesh().ToFlat()
	if out.Name == "" {
		out.Name = req.Source
	}
	res.Mesh = out
	res.Frames = s.Frames()
	res.Pins = len(s.Engine().Pins())
	res.Elapsed = time.Since(start)
	a.log.Info("relax: done", "frames", res.Frames, "vertices", out.VertexCount(), "elapsed", res.Elapsed)
	return res
}

// compile evaluates the first non-empty recipe source. A nil plan means the
// default step.
func (a *App) compile(res *Result, sources ...string) (*recipe.Plan, bool) {
	for _, src := range sources {
		if strings.TrimSpace(src) == "" {
			continue
		}
		p, evalErrs, err := a.recipes.Evaluate(src)
		if err != nil {
			res.fail("recipe: %v", err)
			return nil, false
		}
		for _, e := range evalErrs {
			res.Errors = append(res.Errors, Message{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		return p, len(evalErrs) == 0
	}
	return nil, true
}

// LoadMesh resolves a mesh spec. cells only applies to shape specs.
func (a *App) LoadMesh(spec string, cells int) (*mesh.Mesh, error) {
	spec = strings.TrimSpace(spec)
	switch {
	case spec == "":
		return nil, fmt.Errorf("empty mesh spec")
	case strings.HasSuffix(spec, ".json"):
		return loadFlat(spec)
	case strings.HasPrefix(spec, "grid:"):
		return parseGrid(strings.TrimPrefix(spec, "grid:"))
	}
	solid, err := kernel.Parse(a.kernel, spec)
	if err != nil {
		return nil, err
	}
	m, err := a.kernel.ToMesh(solid, cells)
	if err != nil {
		return nil, err
	}
	m.Name = spec
	return m, nil
}

func loadFlat(path string) (*mesh.Mesh, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var f mesh.Flat
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	m := mesh.FromFlat(&f)
	if m.Name == "" {
		m.Name = path
	}
	return m, nil
}

func parseGrid(args string) (*mesh.Mesh, error) {
	parts := strings.Split(args, ",")
	if len(parts) < 2 || len(parts) > 3 {
		return nil, fmt.Errorf("grid: want NX,NY[,SPACING], got %q", args)
	}
	nx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	ny, err := strconv.Atoi(strings.TrimSpace(parts[1]))
	if err != nil {
		return nil, fmt.Errorf("grid: %w", err)
	}
	if nx < 2 || ny < 2 {
		return nil, fmt.Errorf("grid: need at least 2x2 vertices, got %dx%d", nx, ny)
	}
	spacing := 1.0
	if len(parts) == 3 {
		if spacing, err = strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err != nil {
			return nil, fmt.Errorf("grid: %w", err)
		}
		if !(spacing > 0) {
			return nil, fmt.Errorf("grid: spacing must be positive, got %g", spacing)
		}
	}
	m := mesh.Grid(nx, ny, spacing)
	m.Name = "grid:" + args
	return m, nil
}

// parsePin parses "VERTEX:X,Y,Z".
func parsePin(s string) (PinRequest, error) {
	vs, xyz, ok := strings.Cut(s, ":")
	if !ok {
		return PinRequest{}, fmt.Errorf("pin %q: want VERTEX:X,Y,Z", s)
	}
	v, err := strconv.Atoi(strings.TrimSpace(vs))
	if err != nil {
		return PinRequest{}, fmt.Errorf("pin %q: %w", s, err)
	}
	parts := strings.Split(xyz, ",")
	if len(parts) != 3 {
		return PinRequest{}, fmt.Errorf("pin %q: want VERTEX:X,Y,Z", s)
	}
	var f [3]float64
	for i, p := range parts {
		if f[i], err = strconv.ParseFloat(strings.TrimSpace(p), 64); err != nil {
			return PinRequest{}, fmt.Errorf("pin %q: %w", s, err)
		}
	}
	return PinRequest{Vertex: v, Target: v3.Vec{X: f[0], Y: f[1], Z: f[2]}}, nil
}
