package recipe

import (
	"fmt"
	"strings"
)

// Target is the operator surface a plan drives. *relax.Engine satisfies it.
type Target interface {
	MovementStep(drag float64)
	SpringsForceApply(factor float64, stiffness, springs int)
	PinsApply()
	Smooth(factor float64)
	TargetAttract(factor float64)
	XMirrorApply()
	Jitter(amount float64)
	SetSizing(s float64)
}

// OpKind identifies an engine operator.
type OpKind int

const (
	OpMovement OpKind = iota
	OpSprings
	OpPins
	OpSmooth
	OpAttract
	OpMirror
	OpJitter
	OpSizing
)

var opNames = map[OpKind]string{
	OpMovement: "movement",
	OpSprings:  "springs",
	OpPins:     "pins",
	OpSmooth:   "smooth",
	OpAttract:  "attract",
	OpMirror:   "mirror",
	OpJitter:   "jitter",
	OpSizing:   "sizing",
}

func (k OpKind) String() string {
	if s, ok := opNames[k]; ok {
		return s
	}
	return fmt.Sprintf("OpKind(%d)", int(k))
}

// Op is a single operator call with its arguments. Value carries the
// operator's scalar argument (drag, factor, amount or scale); Stiffness and
// Springs are only used by OpSprings.
type Op struct {
	Kind      OpKind
	Value     float64
	Stiffness int
	Springs   int
}

// Apply runs the operator on t.
func (o Op) Apply(t Target) {
	switch o.Kind {
	case OpMovement:
		t.MovementStep(o.Value)
	case OpSprings:
		t.SpringsForceApply(o.Value, o.Stiffness, o.Springs)
	case OpPins:
		t.PinsApply()
	case OpSmooth:
		t.Smooth(o.Value)
	case OpAttract:
		t.TargetAttract(o.Value)
	case OpMirror:
		t.XMirrorApply()
	case OpJitter:
		t.Jitter(o.Value)
	case OpSizing:
		t.SetSizing(o.Value)
	}
}

func (o Op) String() string {
	switch o.Kind {
	case OpSprings:
		return fmt.Sprintf("(springs :factor %g :stiffness %d :samples %d)", o.Value, o.Stiffness, o.Springs)
	case OpPins, OpMirror:
		return "(" + o.Kind.String() + ")"
	default:
		return fmt.Sprintf("(%s %g)", o.Kind, o.Value)
	}
}

// Plan is the ordered operator list for one frame.
type Plan struct {
	Ops []Op
}

// Len returns the number of operators.
func (p *Plan) Len() int {
	if p == nil {
		return 0
	}
	return len(p.Ops)
}

// Apply runs every operator in order.
func (p *Plan) Apply(t Target) {
	if p == nil {
		return
	}
	for _, op := range p.Ops {
		op.Apply(t)
	}
}

func (p *Plan) String() string {
	if p == nil || len(p.Ops) == 0 {
		return "(frame)"
	}
	parts := make([]string, len(p.Ops))
	for i, op := range p.Ops {
		parts[i] = op.String()
	}
	return "(frame " + strings.Join(parts, " ") + ")"
}
