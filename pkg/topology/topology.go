// Package topology builds the fixed-size neighbour tables the relaxation
// engine reads every frame: short-range immediate edges for smoothing and
// long-range spring candidates with their rest lengths.
//
// An Index is built once from a mesh snapshot and never mutated afterwards,
// so it can be shared freely for the lifetime of an engine.
package topology

import (
	"errors"
	"fmt"

	v3 "github.com/deadsy/sdfx/vec/v3"
)

const (
	// DefaultMaxSprings is the spring candidate count per vertex.
	DefaultMaxSprings = 300
	// MinMaxSprings keeps enough candidates for the four forced nearest
	// springs of the sampler.
	MinMaxSprings = 4
	// DefaultMaxImmediate caps the immediate-edge row width.
	DefaultMaxImmediate = 6
)

// ErrTopology is wrapped by every construction error from Build.
var ErrTopology = errors.New("topology")

// BoundaryPolicy decides which adjacent vertices count as immediate edges.
type BoundaryPolicy int

const (
	// BoundaryMatchStatus keeps every neighbour of an interior vertex, and
	// only boundary neighbours of a boundary vertex.
	BoundaryMatchStatus BoundaryPolicy = iota
	// BoundaryStrict keeps only neighbours sharing the vertex's status.
	BoundaryStrict
	// BoundaryIgnore keeps every neighbour.
	BoundaryIgnore
)

func (p BoundaryPolicy) String() string {
	switch p {
	case BoundaryMatchStatus:
		return "match-status"
	case BoundaryStrict:
		return "strict"
	case BoundaryIgnore:
		return "ignore"
	default:
		return fmt.Sprintf("BoundaryPolicy(%d)", int(p))
	}
}

// ParseBoundaryPolicy parses the String form of a policy.
func ParseBoundaryPolicy(s string) (BoundaryPolicy, error) {
	for _, p := range []BoundaryPolicy{BoundaryMatchStatus, BoundaryStrict, BoundaryIgnore} {
		if s == p.String() {
			return p, nil
		}
	}
	return 0, fmt.Errorf("%w: unknown boundary policy %q", ErrTopology, s)
}

// MarshalText implements encoding.TextMarshaler.
func (p BoundaryPolicy) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *BoundaryPolicy) UnmarshalText(b []byte) error {
	v, err := ParseBoundaryPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Accepts reports whether a neighbour with boundary flag nb may join the
// immediate edges of a vertex with boundary flag vb.
func (p BoundaryPolicy) Accepts(vb, nb bool) bool {
	switch p {
	case BoundaryStrict:
		return vb == nb
	case BoundaryIgnore:
		return true
	default:
		return !vb || nb == vb
	}
}

// Options configures Build. Zero values select the defaults.
type Options struct {
	MaxSprings   int
	MaxImmediate int
	Policy       BoundaryPolicy
}

func (o Options) withDefaults() Options {
	if o.MaxSprings <= 0 {
		o.MaxSprings = DefaultMaxSprings
	}
	if o.MaxSprings < MinMaxSprings {
		o.MaxSprings = MinMaxSprings
	}
	if o.MaxImmediate <= 0 {
		o.MaxImmediate = DefaultMaxImmediate
	}
	return o
}

// Index holds the neighbour tables. Rows are stored flat: row i of the
// spring table is springs[i*maxSprings : (i+1)*maxSprings].
type Index struct {
	n            int
	maxSprings   int
	maxImmediate int
	policy       BoundaryPolicy

	springs     []int
	lengths     []float64
	springCount []int

	immediate      []int
	immediateValid []bool
	immediateCount []int
}

// Build computes the tables from vertex positions, triangle faces and
// per-vertex boundary flags.
func Build(positions []v3.Vec, faces [][3]int, boundary []bool, opts Options) (*Index, error) {
	opts = opts.withDefaults()
	n := len(positions)
	if len(boundary) != n {
		return nil, fmt.Errorf("%w: %d boundary flags for %d vertices", ErrTopology, len(boundary), n)
	}
	adj, err := Adjacency(n, faces)
	if err != nil {
		return nil, err
	}

	idx := &Index{
		n:              n,
		maxSprings:     opts.MaxSprings,
		maxImmediate:   opts.MaxImmediate,
		policy:         opts.Policy,
		springs:        make([]int, n*opts.MaxSprings),
		lengths:        make([]float64, n*opts.MaxSprings),
		springCount:    make([]int, n),
		immediate:      make([]int, n*opts.MaxImmediate),
		immediateValid: make([]bool, n*opts.MaxImmediate),
		immediateCount: make([]int, n),
	}
	for i := range idx.springs {
		idx.springs[i] = -1
	}
	for i := range idx.immediate {
		idx.immediate[i] = -1
	}

	for v := 0; v < n; v++ {
		row := idx.immediate[v*idx.maxImmediate : (v+1)*idx.maxImmediate]
		mask := idx.immediateValid[v*idx.maxImmediate : (v+1)*idx.maxImmediate]
		k := 0
		for j, other := range adj[v] {
			if j >= idx.maxImmediate {
				break
			}
			if !opts.Policy.Accepts(boundary[v], boundary[other]) {
				continue
			}
			row[k] = other
			mask[k] = true
			k++
		}
		idx.immediateCount[v] = k

		ring := Ring(adj, v, idx.maxSprings)
		srow := idx.springs[v*idx.maxSprings : (v+1)*idx.maxSprings]
		lrow := idx.lengths[v*idx.maxSprings : (v+1)*idx.maxSprings]
		for j, other := range ring {
			srow[j] = other
			lrow[j] = positions[other].Sub(positions[v]).Length()
		}
		idx.springCount[v] = len(ring)
	}
	return idx, nil
}

// Adjacency returns, for every vertex, its edge-connected neighbours in the
// order they first appear in the face list.
func Adjacency(n int, faces [][3]int) ([][]int, error) {
	adj := make([][]int, n)
	for fi, f := range faces {
		for _, vi := range f {
			if vi < 0 || vi >= n {
				return nil, fmt.Errorf("%w: face %d references vertex %d of %d", ErrTopology, fi, vi, n)
			}
		}
		for k := 0; k < 3; k++ {
			a, b := f[k], f[(k+1)%3]
			if a == b {
				continue
			}
			adj[a] = appendUnique(adj[a], b)
			adj[b] = appendUnique(adj[b], a)
		}
	}
	return adj, nil
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// Ring returns up to max vertices reachable from start in breadth-first
// order, excluding start itself. Every vertex appears at most once.
func Ring(adj [][]int, start, max int) []int {
	if max <= 0 || start < 0 || start >= len(adj) {
		return nil
	}
	out := make([]int, 0, min(max, 64))
	seen := map[int]struct{}{start: {}}
	layer := []int{start}
	var next []int
	for len(layer) > 0 {
		next = next[:0]
		for _, v := range layer {
			for _, other := range adj[v] {
				if _, ok := seen[other]; ok {
					continue
				}
				seen[other] = struct{}{}
				next = append(next, other)
				out = append(out, other)
				if len(out) >= max {
					return out
				}
			}
		}
		layer, next = next, layer
	}
	return out
}

// Len returns the vertex count.
func (x *Index) Len() int { return x.n }

// MaxSprings returns the spring row width.
func (x *Index) MaxSprings() int { return x.maxSprings }

// MaxImmediate returns the immediate-edge row width.
func (x *Index) MaxImmediate() int { return x.maxImmediate }

// Policy returns the boundary policy the index was built with.
func (x *Index) Policy() BoundaryPolicy { return x.policy }

// Springs returns the spring candidate row of vertex v, sentinel -1 past
// SpringCount(v). The slice aliases the index and must not be modified.
func (x *Index) Springs(v int) []int {
	return x.springs[v*x.maxSprings : (v+1)*x.maxSprings]
}

// Lengths returns the rest lengths parallel to Springs(v). Read only.
func (x *Index) Lengths(v int) []float64 {
	return x.lengths[v*x.maxSprings : (v+1)*x.maxSprings]
}

// SpringCount returns the number of valid spring candidates of v.
func (x *Index) SpringCount(v int) int { return x.springCount[v] }

// Immediate returns the immediate-edge row of v. Valid entries are packed
// at the front; the rest are -1. Read only.
func (x *Index) Immediate(v int) []int {
	return x.immediate[v*x.maxImmediate : (v+1)*x.maxImmediate]
}

// ImmediateMask returns the validity mask parallel to Immediate(v). Read only.
func (x *Index) ImmediateMask(v int) []bool {
	return x.immediateValid[v*x.maxImmediate : (v+1)*x.maxImmediate]
}

// ImmediateCount returns the number of valid immediate edges of v.
func (x *Index) ImmediateCount(v int) int { return x.immediateCount[v] }

// Snapshot is a deep copy of the tables, used to verify that nothing
// mutates them.
type Snapshot struct {
	Springs   []int
	Lengths   []float64
	Immediate []int
	Mask      []bool
	Counts    []int
}

// Snapshot copies every table.
func (x *Index) Snapshot() Snapshot {
	return Snapshot{
		Springs:   append([]int(nil), x.springs...),
		Lengths:   append([]float64(nil), x.lengths...),
		Immediate: append([]int(nil), x.immediate...),
		Mask:      append([]bool(nil), x.immediateValid...),
		Counts:    append(append([]int(nil), x.springCount...), x.immediateCount...),
	}
}
