package session

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/samber/lo"

	"github.com/jeacom25b/Softwrap/pkg/topology"
)

// Upper bounds for settings without a natural limit.
const (
	MaxMaxSprings = 2000
	MaxIterations = 100
	MaxScale      = 100
	MaxSmoothing  = 5.0
)

// Settings are the per-session relaxation parameters, as exposed to the
// user through sliders or a settings file.
type Settings struct {
	// Structural settings; changing any of them rebuilds the engine.
	MaxSprings int                     `toml:"max_springs"`
	XMirror    bool                    `toml:"x_mirror"`
	Boundary   topology.BoundaryPolicy `toml:"boundary"`
	Seed       uint64                  `toml:"seed"`

	// Per-frame settings. Stiffness is the spring candidate pool size and
	// Quality the number of springs sampled from it; Tension blends toward
	// the spring targets. Drag 0 keeps all momentum and 1 none. Iterations
	// is the number of spring and pin passes per frame, at least 1, and Scale
	// multiplies every rest length.
	Stiffness        int     `toml:"stiffness"`
	Quality          int     `toml:"quality"`
	Tension          float64 `toml:"tension"`
	Drag             float64 `toml:"drag"`
	Smoothing        float64 `toml:"smoothing"`
	Iterations       int     `toml:"iterations"`
	TargetAttraction float64 `toml:"target_attraction"`
	Scale            float64 `toml:"scale"`
	PinStiffness     int     `toml:"pin_stiffness"`
	PinForce         float64 `toml:"pin_force"`

	// Recipe, when set, replaces the default frame step.
	Recipe string `toml:"recipe,omitempty"`
}

// DefaultSettings returns the stock parameters.
func DefaultSettings() Settings {
	return Settings{
		MaxSprings:       topology.DefaultMaxSprings,
		Stiffness:        100,
		Quality:          25,
		Tension:          0.99,
		Drag:             0.2,
		Smoothing:        0,
		Iterations:       2,
		TargetAttraction: 0.5,
		Scale:            1,
		PinStiffness:     30,
		PinForce:         1,
	}
}

// Normalize clamps every field into its valid range. Non-finite floats fall
// back to their defaults.
func (s Settings) Normalize() Settings {
	def := DefaultSettings()
	s.MaxSprings = lo.Clamp(s.MaxSprings, topology.MinMaxSprings, MaxMaxSprings)
	s.Stiffness = lo.Clamp(s.Stiffness, 0, s.MaxSprings)
	s.Quality = lo.Clamp(s.Quality, 0, s.Stiffness)
	s.Iterations = lo.Clamp(s.Iterations, 1, MaxIterations)
	s.PinStiffness = lo.Clamp(s.PinStiffness, 0, s.MaxSprings)

	s.Tension = clampFloat(s.Tension, 0, 1, def.Tension)
	s.Drag = clampFloat(s.Drag, 0, 1, def.Drag)
	s.Smoothing = clampFloat(s.Smoothing, 0, MaxSmoothing, def.Smoothing)
	s.TargetAttraction = clampFloat(s.TargetAttraction, 0, 1, def.TargetAttraction)
	s.Scale = clampFloat(s.Scale, 0, MaxScale, def.Scale)
	s.PinForce = clampFloat(s.PinForce, 0, 1, def.PinForce)
	return s
}

// structural reports whether moving from s to o requires a new engine.
func (s Settings) structural(o Settings) bool {
	return s.MaxSprings != o.MaxSprings ||
		s.XMirror != o.XMirror ||
		s.Boundary != o.Boundary ||
		s.Seed != o.Seed
}

func clampFloat(v, lower, upper, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return lo.Clamp(v, lower, upper)
}

// ParseSettings decodes TOML on top of DefaultSettings and normalizes the
// result. Unknown keys are rejected.
func ParseSettings(data []byte) (Settings, error) {
	s := DefaultSettings()
	dec := toml.NewDecoder(bytes.NewReader(data)).DisallowUnknownFields()
	if err := dec.Decode(&s); err != nil {
		return Settings{}, fmt.Errorf("session: settings: %w", err)
	}
	return s.Normalize(), nil
}

// LoadSettings reads a TOML settings file.
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("session: settings: %w", err)
	}
	return ParseSettings(data)
}

// Encode renders the settings as TOML.
func (s Settings) Encode() ([]byte, error) {
	b, err := toml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("session: settings: %w", err)
	}
	return b, nil
}
