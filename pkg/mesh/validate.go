package mesh

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidMesh is wrapped by every error returned from Validate.
var ErrInvalidMesh = errors.New("invalid mesh")

// Severity indicates whether a validation finding blocks construction or is
// merely informational.
type Severity int

const (
	SeverityError   Severity = iota // blocks engine construction
	SeverityWarning                 // informational
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("Severity(%d)", int(s))
	}
}

// Finding describes a single validation result. Face and Vertex are -1 when
// the finding is not tied to one element.
type Finding struct {
	Face     int
	Vertex   int
	Message  string
	Severity Severity
}

func (f Finding) Error() string {
	switch {
	case f.Face >= 0:
		return fmt.Sprintf("[%s] face %d: %s", f.Severity, f.Face, f.Message)
	case f.Vertex >= 0:
		return fmt.Sprintf("[%s] vertex %d: %s", f.Severity, f.Vertex, f.Message)
	default:
		return fmt.Sprintf("[%s] %s", f.Severity, f.Message)
	}
}

// Check runs every structural check and returns all findings. It never
// mutates the mesh.
func Check(m *Mesh) []Finding {
	var out []Finding
	out = append(out, checkPositions(m)...)
	out = append(out, checkFaces(m)...)
	out = append(out, checkBoundary(m)...)
	return out
}

// Validate returns the first blocking finding wrapped in ErrInvalidMesh, or
// nil when the mesh can seed an engine.
func Validate(m *Mesh) error {
	if m == nil {
		return fmt.Errorf("%w: nil mesh", ErrInvalidMesh)
	}
	for _, f := range Check(m) {
		if f.Severity == SeverityError {
			return fmt.Errorf("%w: %s", ErrInvalidMesh, f.Error())
		}
	}
	return nil
}

func checkPositions(m *Mesh) []Finding {
	var out []Finding
	if len(m.Positions) == 0 {
		return []Finding{{Face: -1, Vertex: -1, Message: "mesh has no vertices", Severity: SeverityError}}
	}
	for i, p := range m.Positions {
		if !finite(p.X) || !finite(p.Y) || !finite(p.Z) {
			out = append(out, Finding{
				Face:     -1,
				Vertex:   i,
				Message:  fmt.Sprintf("position (%g, %g, %g) is not finite", p.X, p.Y, p.Z),
				Severity: SeverityError,
			})
		}
	}
	return out
}

func checkFaces(m *Mesh) []Finding {
	var out []Finding
	n := len(m.Positions)
	used := make([]bool, n)
	for fi, f := range m.Faces {
		if !inRange(f, n) {
			out = append(out, Finding{
				Face:     fi,
				Vertex:   -1,
				Message:  fmt.Sprintf("index out of range %v for %d vertices", f, n),
				Severity: SeverityError,
			})
			continue
		}
		if f[0] == f[1] || f[1] == f[2] || f[0] == f[2] {
			out = append(out, Finding{
				Face:     fi,
				Vertex:   -1,
				Message:  fmt.Sprintf("repeated vertex in %v", f),
				Severity: SeverityWarning,
			})
		}
		for _, vi := range f {
			used[vi] = true
		}
	}
	for i, u := range used {
		if !u {
			out = append(out, Finding{
				Face:     -1,
				Vertex:   i,
				Message:  "vertex is not referenced by any face",
				Severity: SeverityWarning,
			})
		}
	}
	return out
}

func checkBoundary(m *Mesh) []Finding {
	if m.Boundary == nil || len(m.Boundary) == len(m.Positions) {
		return nil
	}
	return []Finding{{
		Face:     -1,
		Vertex:   -1,
		Message:  fmt.Sprintf("boundary has %d flags for %d vertices", len(m.Boundary), len(m.Positions)),
		Severity: SeverityError,
	}}
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
