package session

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeacom25b/Softwrap/pkg/topology"
)

func TestDefaultSettingsAreNormal(t *testing.T) {
	def := DefaultSettings()
	assert.Equal(t, def, def.Normalize())
	assert.Equal(t, topology.BoundaryMatchStatus, def.Boundary)
}

func TestNormalize(t *testing.T) {
	s := Settings{
		MaxSprings:       1,
		Stiffness:        50,
		Quality:          80,
		Tension:          2,
		Drag:             -1,
		Smoothing:        math.NaN(),
		Iterations:       1000,
		TargetAttraction: math.Inf(1),
		Scale:            -3,
		PinStiffness:     -2,
		PinForce:         0.5,
	}.Normalize()

	assert.Equal(t, topology.MinMaxSprings, s.MaxSprings)
	assert.Equal(t, s.MaxSprings, s.Stiffness)
	assert.Equal(t, s.Stiffness, s.Quality)
	assert.Equal(t, 1.0, s.Tension)
	assert.Equal(t, 0.0, s.Drag)
	assert.Equal(t, DefaultSettings().Smoothing, s.Smoothing)
	assert.Equal(t, MaxIterations, s.Iterations)
	assert.Equal(t, DefaultSettings().TargetAttraction, s.TargetAttraction)
	assert.Equal(t, 0.0, s.Scale)
	assert.Equal(t, 0, s.PinStiffness)
	assert.Equal(t, 0.5, s.PinForce)
}

func TestNormalizeIterationsAndSmoothing(t *testing.T) {
	for _, n := range []int{0, -5} {
		assert.Equal(t, 1, Settings{Iterations: n}.Normalize().Iterations, "iterations %d", n)
	}
	assert.Equal(t, 3, Settings{Iterations: 3}.Normalize().Iterations)

	assert.Equal(t, MaxSmoothing, Settings{Smoothing: 20}.Normalize().Smoothing)
	assert.Equal(t, 3.5, Settings{Smoothing: 3.5}.Normalize().Smoothing)
	assert.Equal(t, 0.0, Settings{Smoothing: -1}.Normalize().Smoothing)
}

func TestStructural(t *testing.T) {
	a := DefaultSettings()
	b := a
	b.Tension = 0.5
	b.Scale = 2
	assert.False(t, a.structural(b))

	for _, mut := range []func(*Settings){
		func(s *Settings) { s.MaxSprings = 50 },
		func(s *Settings) { s.XMirror = true },
		func(s *Settings) { s.Boundary = topology.BoundaryIgnore },
		func(s *Settings) { s.Seed = 9 },
	} {
		c := a
		mut(&c)
		assert.True(t, a.structural(c), "%+v", c)
	}
}

func TestParseSettings(t *testing.T) {
	s, err := ParseSettings([]byte(`
max_springs = 120
x_mirror = true
boundary = "strict"
tension = 2.5
iterations = 4
recipe = "(frame (pins))"
`))
	require.NoError(t, err)
	assert.Equal(t, 120, s.MaxSprings)
	assert.True(t, s.XMirror)
	assert.Equal(t, topology.BoundaryStrict, s.Boundary)
	assert.Equal(t, 1.0, s.Tension)
	assert.Equal(t, 4, s.Iterations)
	assert.Equal(t, "(frame (pins))", s.Recipe)
	// Unset keys keep their defaults.
	assert.Equal(t, DefaultSettings().Drag, s.Drag)
	assert.Equal(t, 100, s.Stiffness)
}

func TestParseSettingsErrors(t *testing.T) {
	for name, src := range map[string]string{
		"unknown key":     "springyness = 3\n",
		"bad policy":      "boundary = \"sometimes\"\n",
		"wrong type":      "iterations = \"two\"\n",
		"malformed table": "[settings\n",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := ParseSettings([]byte(src))
			assert.Error(t, err)
		})
	}
}

func TestLoadSettingsRoundTrip(t *testing.T) {
	want := DefaultSettings()
	want.XMirror = true
	want.Boundary = topology.BoundaryIgnore
	want.Seed = 42
	want.Smoothing = 1.5

	data, err := want.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), "ignore")

	path := filepath.Join(t.TempDir(), "softwrap.toml")
	require.NoError(t, os.WriteFile(path, data, 0o644))

	got, err := LoadSettings(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	_, err = LoadSettings(filepath.Join(t.TempDir(), "missing.toml"))
	assert.Error(t, err)
}
