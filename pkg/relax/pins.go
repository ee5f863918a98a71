package relax

import (
	"github.com/samber/lo"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// Pin pulls one vertex toward a target position, dragging its spring
// neighbourhood along with a linear falloff.
type Pin struct {
	Target    v3.Vec  // goal position in source-local space
	Vertex    int     // pinned vertex
	Stiffness int     // number of spring neighbours affected, [0, maxSprings]
	Factor    float64 // pull strength, [0, 1]
	Twisty    bool    // snap exactly and preserve local shape
}

// PinSet is an ordered list of pins. It has no capacity limit.
type PinSet struct {
	pins []Pin
}

// Add appends a pin.
func (s *PinSet) Add(p Pin) {
	s.pins = append(s.pins, p)
}

// Clear removes every pin, keeping the backing storage.
func (s *PinSet) Clear() {
	s.pins = s.pins[:0]
}

// Len returns the number of pins.
func (s *PinSet) Len() int { return len(s.pins) }

// All returns a copy of the pins in insertion order.
func (s *PinSet) All() []Pin {
	return append([]Pin(nil), s.pins...)
}

// clampPin bounds stiffness and factor into their valid ranges.
func clampPin(p Pin, maxSprings int) Pin {
	p.Stiffness = lo.Clamp(p.Stiffness, 0, maxSprings)
	p.Factor = clamp01(p.Factor)
	return p
}

// Falloff returns the per-rank pin weights: rank r of stiffness ranks gets
// (1 - r/stiffness) * factor, so the nearest neighbour is weighted highest.
// dst is reused when large enough.
func Falloff(stiffness int, factor float64, dst []float64) []float64 {
	if stiffness <= 0 {
		return dst[:0]
	}
	if cap(dst) < stiffness {
		dst = make([]float64, stiffness)
	}
	dst = dst[:stiffness]
	for r := range dst {
		dst[r] = (1 - float64(r)/float64(stiffness)) * factor
	}
	return dst
}
