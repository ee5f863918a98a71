package recipe

import (
	"fmt"
	"math"
	"strings"

	zygo "github.com/glycerine/zygomys/zygo"
)

// Builtin argument defaults.
const (
	DefaultDrag      = 0.8
	DefaultTension   = 0.99
	DefaultStiffness = 100
	DefaultSamples   = 25
	DefaultSmooth    = 0.5
	DefaultAttract   = 0.5
	DefaultJitter    = 0.01
)

// Limits on plan size.
const (
	maxRepeat = 256
	maxOps    = 4096
)

// ---------------------------------------------------------------------------
// Source preprocessing
// ---------------------------------------------------------------------------

// preprocessSource rewrites recipe source for zygomys:
//
//  1. :keyword becomes the string literal "__kw_keyword", so keywords need
//     no registered symbols.
//  2. Kebab-case identifiers become snake_case, since zygomys reads a hyphen
//     as subtraction.
//  3. ; line comments become // comments.
//
// String literals are left untouched.
func preprocessSource(source string) string {
	result := make([]byte, 0, len(source)+len(source)/4)
	b := []byte(source)
	i := 0
	for i < len(b) {
		switch {
		case b[i] == '"':
			result = append(result, b[i])
			i++
			for i < len(b) && b[i] != '"' {
				if b[i] == '\\' && i+1 < len(b) {
					result = append(result, b[i], b[i+1])
					i += 2
					continue
				}
				result = append(result, b[i])
				i++
			}
			if i < len(b) {
				result = append(result, b[i])
				i++
			}

		case b[i] == '`':
			end := i + 1
			for end < len(b) && b[end] != '`' {
				end++
			}
			if end < len(b) {
				end++
			}
			result = append(result, b[i:end]...)
			i = end

		case b[i] == ';':
			result = append(result, '/', '/')
			for i < len(b) && b[i] == ';' {
				i++
			}
			for i < len(b) && b[i] != '\n' {
				result = append(result, b[i])
				i++
			}

		case b[i] == ':' && i+1 < len(b) && b[i+1] == '=':
			result = append(result, ':', '=')
			i += 2

		case b[i] == ':' && i+1 < len(b) && isLetter(b[i+1]):
			j := i + 1
			for j < len(b) && isKWChar(b[j]) {
				j++
			}
			result = append(result, '"')
			result = append(result, kwPrefix...)
			result = append(result, b[i+1:j]...)
			result = append(result, '"')
			i = j

		case b[i] == '-' && i > 0 && i+1 < len(b) && isIdentChar(b[i-1]) && isLetter(b[i+1]):
			result = append(result, '_')
			i++

		default:
			result = append(result, b[i])
			i++
		}
	}
	return string(result)
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isKWChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_'
}

func isIdentChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '_'
}

// ---------------------------------------------------------------------------
// Sexp values
// ---------------------------------------------------------------------------

// sexpOps carries compiled operators between builtins.
type sexpOps struct {
	ops []Op
}

func (s *sexpOps) SexpString(ps *zygo.PrintState) string {
	parts := make([]string, len(s.ops))
	for i, op := range s.ops {
		parts[i] = op.String()
	}
	return strings.Join(parts, " ")
}

func (s *sexpOps) Type() *zygo.RegisteredType { return nil }

func single(op Op) *sexpOps { return &sexpOps{ops: []Op{op}} }

// ---------------------------------------------------------------------------
// Argument parsing
// ---------------------------------------------------------------------------

// kwPrefix is the marker prepended to keyword names by preprocessSource.
const kwPrefix = "__kw_"

func isKW(s zygo.Sexp) (string, bool) {
	str, ok := s.(*zygo.SexpStr)
	if !ok || !strings.HasPrefix(str.S, kwPrefix) {
		return "", false
	}
	return str.S[len(kwPrefix):], true
}

// kwArgs is a mixed positional and keyword argument list.
type kwArgs struct {
	kw         map[string]zygo.Sexp
	positional []zygo.Sexp
}

func parseArgs(args []zygo.Sexp) kwArgs {
	result := kwArgs{kw: make(map[string]zygo.Sexp)}
	for i := 0; i < len(args); i++ {
		name, ok := isKW(args[i])
		if !ok {
			result.positional = append(result.positional, args[i])
			continue
		}
		if i+1 < len(args) {
			result.kw[name] = args[i+1]
			i++
		} else {
			result.kw[name] = zygo.SexpNull
		}
	}
	return result
}

// number returns keyword kw, else the first positional argument, else def.
func (a kwArgs) number(kw string, def float64) (float64, error) {
	if v, ok := a.kw[kw]; ok {
		return toFloat64(v)
	}
	if len(a.positional) > 0 {
		return toFloat64(a.positional[0])
	}
	return def, nil
}

// integer returns keyword kw as an int, or def.
func (a kwArgs) integer(kw string, def int) (int, error) {
	if v, ok := a.kw[kw]; ok {
		return toInt(v)
	}
	return def, nil
}

func toFloat64(s zygo.Sexp) (float64, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return float64(v.Val), nil
	case *zygo.SexpFloat:
		return v.Val, nil
	}
	return 0, fmt.Errorf("expected number, got %T (%s)", s, s.SexpString(nil))
}

func toInt(s zygo.Sexp) (int, error) {
	switch v := s.(type) {
	case *zygo.SexpInt:
		return int(v.Val), nil
	case *zygo.SexpFloat:
		if math.IsNaN(v.Val) || math.IsInf(v.Val, 0) {
			return 0, fmt.Errorf("expected integer, got %g", v.Val)
		}
		return int(math.Round(v.Val)), nil
	}
	return 0, fmt.Errorf("expected integer, got %T (%s)", s, s.SexpString(nil))
}

// sexpListToSlice converts a list or array to a Go slice.
func sexpListToSlice(s zygo.Sexp) ([]zygo.Sexp, error) {
	switch v := s.(type) {
	case *zygo.SexpPair:
		return zygo.ListToArray(v)
	case *zygo.SexpArray:
		return v.Val, nil
	case *zygo.SexpSentinel:
		if v == zygo.SexpNull {
			return nil, nil
		}
	}
	return nil, fmt.Errorf("expected list or array, got %T", s)
}

// collectOps flattens operator values, lists of them, and nil into one list.
func collectOps(args []zygo.Sexp) ([]Op, error) {
	var out []Op
	for i, a := range args {
		switch v := a.(type) {
		case *sexpOps:
			out = append(out, v.ops...)
		case *zygo.SexpPair, *zygo.SexpArray:
			items, err := sexpListToSlice(v)
			if err != nil {
				return nil, err
			}
			ops, err := collectOps(items)
			if err != nil {
				return nil, err
			}
			out = append(out, ops...)
		case *zygo.SexpSentinel:
			if v != zygo.SexpNull {
				return nil, fmt.Errorf("argument %d: expected operator, got %s", i, v.SexpString(nil))
			}
		default:
			return nil, fmt.Errorf("argument %d: expected operator, got %T (%s)", i, a, a.SexpString(nil))
		}
		if len(out) > maxOps {
			return nil, fmt.Errorf("frame exceeds %d operators", maxOps)
		}
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Builtin registration
// ---------------------------------------------------------------------------

// builder receives the plan defined by frame.
type builder struct {
	plan *Plan
}

// registerBuiltins installs the recipe builtins. Source must be run through
// preprocessSource first so keywords are recognizable.
func registerBuiltins(env *zygo.Zlisp, b *builder) {

	// (frame op ...)
	env.AddFunction("frame", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if b.plan != nil {
			return zygo.SexpNull, fmt.Errorf("frame: defined more than once")
		}
		ops, err := collectOps(args)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("frame: %w", err)
		}
		b.plan = &Plan{Ops: ops}
		return &sexpOps{ops: ops}, nil
	})

	// (repeat n op ...)
	env.AddFunction("repeat", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		if len(args) < 1 {
			return zygo.SexpNull, fmt.Errorf("repeat requires a count")
		}
		n, err := toInt(args[0])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("repeat: count: %w", err)
		}
		if n < 0 || n > maxRepeat {
			return zygo.SexpNull, fmt.Errorf("repeat: count %d outside [0, %d]", n, maxRepeat)
		}
		body, err := collectOps(args[1:])
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("repeat: %w", err)
		}
		if n*len(body) > maxOps {
			return zygo.SexpNull, fmt.Errorf("repeat: %d operators exceeds %d", n*len(body), maxOps)
		}
		out := make([]Op, 0, n*len(body))
		for i := 0; i < n; i++ {
			out = append(out, body...)
		}
		return &sexpOps{ops: out}, nil
	})

	// (movement :drag 0.8)
	env.AddFunction("movement", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		drag, err := parseArgs(args).number("drag", DefaultDrag)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("movement: drag: %w", err)
		}
		return single(Op{Kind: OpMovement, Value: drag}), nil
	})

	// (springs :factor 0.99 :stiffness 100 :samples 25)
	env.AddFunction("springs", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		pa := parseArgs(args)
		factor, err := pa.number("factor", DefaultTension)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("springs: factor: %w", err)
		}
		stiffness, err := pa.integer("stiffness", DefaultStiffness)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("springs: stiffness: %w", err)
		}
		samples, err := pa.integer("samples", DefaultSamples)
		if err != nil {
			return zygo.SexpNull, fmt.Errorf("springs: samples: %w", err)
		}
		return single(Op{Kind: OpSprings, Value: factor, Stiffness: stiffness, Springs: samples}), nil
	})

	// (pins)
	env.AddFunction("pins", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return single(Op{Kind: OpPins}), nil
	})

	// (mirror)
	env.AddFunction("mirror", func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
		return single(Op{Kind: OpMirror}), nil
	})

	scalar := func(kind OpKind, kw string, def float64) {
		env.AddFunction(kind.String(), func(env *zygo.Zlisp, name string, args []zygo.Sexp) (zygo.Sexp, error) {
			v, err := parseArgs(args).number(kw, def)
			if err != nil {
				return zygo.SexpNull, fmt.Errorf("%s: %s: %w", kind, kw, err)
			}
			return single(Op{Kind: kind, Value: v}), nil
		})
	}
	scalar(OpSmooth, "factor", DefaultSmooth)   // (smooth 0.5)
	scalar(OpAttract, "factor", DefaultAttract) // (attract :factor 0.5)
	scalar(OpJitter, "amount", DefaultJitter)   // (jitter :amount 0.01)
	scalar(OpSizing, "scale", 1)                // (sizing 1.2)
}
