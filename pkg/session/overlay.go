package session

import (
	"image/color"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Overlay colours.
var (
	PinTargetColor = color.RGBA{R: 255, A: 255}
	PinVertexColor = color.RGBA{G: 255, B: 255, A: 255}
)

// Segment is an overlay line in source-local space.
type Segment struct {
	From, To v3.Vec
}

// Point is an overlay marker.
type Point struct {
	Pos   v3.Vec
	Color color.RGBA
}

// Overlay is the pin visualisation for the current frame: one line from
// each pin target to its vertex, and a marker at both ends. The host
// transforms it to world space and draws it.
type Overlay struct {
	Lines  []Segment
	Points []Point
}

// Overlay builds the pin overlay from the engine's current pins, including
// mirrored twins and the grab pin.
func (s *Session) Overlay() Overlay {
	var o Overlay
	if s.closed {
		return o
	}
	for _, p := range s.engine.Pins() {
		v, ok := s.engine.Position(p.Vertex)
		if !ok {
			continue
		}
		o.Lines = append(o.Lines, Segment{From: p.Target, To: v})
		o.Points = append(o.Points,
			Point{Pos: p.Target, Color: PinTargetColor},
			Point{Pos: v, Color: PinVertexColor})
	}
	return o
}
