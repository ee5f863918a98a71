package kernel

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

// ErrShapeSpec is returned by Parse for malformed shape specs.
var ErrShapeSpec = errors.New("kernel: bad shape spec")

// Parse builds a solid from a compact command-line spec. A spec is one or
// more terms joined by '|' (union); each term is a primitive with an
// optional '@x,y,z' offset:
//
//	sphere:R
//	box:X,Y,Z[,ROUND]
//	cylinder:H,R
//
// For example "sphere:1|box:1,1,1@0,0,1" is a sphere with a cube on top.
func Parse(k Kernel, spec string) (Solid, error) {
	var out Solid
	for _, term := range strings.Split(spec, "|") {
		s, err := parseTerm(k, strings.TrimSpace(term))
		if err != nil {
			return nil, err
		}
		if out == nil {
			out = s
		} else {
			out = k.Union(out, s)
		}
	}
	return out, nil
}

func parseTerm(k Kernel, term string) (Solid, error) {
	body, at, hasOffset := strings.Cut(term, "@")
	kind, args, _ := strings.Cut(body, ":")
	nums, err := parseFloats(args)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrShapeSpec, term, err)
	}

	var s Solid
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "sphere":
		if len(nums) != 1 {
			return nil, fmt.Errorf("%w: %q: sphere takes a radius", ErrShapeSpec, term)
		}
		s, err = k.Sphere(nums[0])
	case "box":
		if len(nums) != 3 && len(nums) != 4 {
			return nil, fmt.Errorf("%w: %q: box takes X,Y,Z[,ROUND]", ErrShapeSpec, term)
		}
		var round float64
		if len(nums) == 4 {
			round = nums[3]
		}
		s, err = k.Box(v3.Vec{X: nums[0], Y: nums[1], Z: nums[2]}, round)
	case "cylinder":
		if len(nums) != 2 {
			return nil, fmt.Errorf("%w: %q: cylinder takes H,R", ErrShapeSpec, term)
		}
		s, err = k.Cylinder(nums[0], nums[1])
	default:
		return nil, fmt.Errorf("%w: unknown primitive %q", ErrShapeSpec, kind)
	}
	if err != nil {
		return nil, err
	}

	if hasOffset {
		off, err := parseFloats(at)
		if err != nil || len(off) != 3 {
			return nil, fmt.Errorf("%w: %q: offset takes x,y,z", ErrShapeSpec, term)
		}
		s = k.Translate(s, v3.Vec{X: off[0], Y: off[1], Z: off[2]})
	}
	return s, nil
}

func parseFloats(s string) ([]float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	out := make([]float64, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
