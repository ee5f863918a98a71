package relax

import (
	"math/rand/v2"
	"sort"

	"github.com/samber/lo"

	"github.com/jeacom25b/Softwrap/pkg/topology"
)

// forcedNearest is the number of nearest springs always kept when the
// sampler draws a strict subset of the candidates.
const forcedNearest = 4

// SampleKey identifies a spring sample by its clamped parameters.
type SampleKey struct {
	Stiffness int // candidate pool size per vertex
	Springs   int // sampled springs per vertex
}

// SpringSample is the per-vertex subset of spring candidates drawn for one
// key. Row v holds Counts[v] entries at IDs[v*Width:].
type SpringSample struct {
	Key     SampleKey
	Width   int
	IDs     []int
	Lengths []float64
	Counts  []int
}

// Row returns the sampled neighbour ids and rest lengths of vertex v.
func (s *SpringSample) Row(v int) ([]int, []float64) {
	off := v * s.Width
	return s.IDs[off : off+s.Counts[v]], s.Lengths[off : off+s.Counts[v]]
}

// SpringSampler draws random spring subsets and keeps the most recent one
// until the key changes or it is invalidated.
type SpringSampler struct {
	topo  *topology.Index
	rng   *rand.Rand
	cache *SpringSample

	// scratch buffers reused across draws
	scores []float64
	order  []int
	rest   []int
}

// NewSpringSampler returns a sampler over the spring table of topo.
func NewSpringSampler(topo *topology.Index, rng *rand.Rand) *SpringSampler {
	return &SpringSampler{topo: topo, rng: rng}
}

// Clamp bounds stiffness to [0, MaxSprings] and springs to [0, stiffness].
func (s *SpringSampler) Clamp(stiffness, springs int) SampleKey {
	stiffness = lo.Clamp(stiffness, 0, s.topo.MaxSprings())
	springs = lo.Clamp(springs, 0, stiffness)
	return SampleKey{Stiffness: stiffness, Springs: springs}
}

// Valid reports whether the cached sample was drawn for key.
func (s *SpringSampler) Valid(key SampleKey) bool {
	return s.cache != nil && s.cache.Key == key
}

// Invalidate drops the cached sample so the next call draws again.
func (s *SpringSampler) Invalidate() {
	s.cache = nil
}

// Sample returns the spring subset for the clamped parameters, reusing the
// previous draw when the key is unchanged.
func (s *SpringSampler) Sample(stiffness, springs int) *SpringSample {
	key := s.Clamp(stiffness, springs)
	if s.Valid(key) {
		return s.cache
	}
	s.cache = s.draw(key)
	return s.cache
}

func (s *SpringSampler) draw(key SampleKey) *SpringSample {
	n := s.topo.Len()
	out := &SpringSample{
		Key:     key,
		Width:   key.Springs,
		IDs:     make([]int, n*key.Springs),
		Lengths: make([]float64, n*key.Springs),
		Counts:  make([]int, n),
	}
	if key.Springs == 0 {
		return out
	}
	subset := key.Springs < key.Stiffness
	for v := 0; v < n; v++ {
		pool := min(key.Stiffness, s.topo.SpringCount(v))
		k := min(key.Springs, pool)
		ids := out.IDs[v*key.Springs : v*key.Springs+k]
		lengths := out.Lengths[v*key.Springs : v*key.Springs+k]
		for j, c := range s.pick(pool, k, subset) {
			ids[j] = s.topo.Springs(v)[c]
			lengths[j] = s.topo.Lengths(v)[c]
		}
		out.Counts[v] = k
	}
	return out
}

// pick chooses k of the candidate ranks [0, pool) by lowest random score.
// When forced, ranks 0-3 fill the first slots and the rest come from the
// lowest-scored remaining ranks.
func (s *SpringSampler) pick(pool, k int, forced bool) []int {
	s.order = s.order[:0]
	if k == 0 {
		return s.order
	}
	start := 0
	if forced && k < pool {
		start = min(forcedNearest, k)
		for c := 0; c < start; c++ {
			s.order = append(s.order, c)
		}
	}
	if cap(s.scores) < pool {
		s.scores = make([]float64, pool)
	}
	scores := s.scores[:pool]
	for c := range scores {
		scores[c] = s.rng.Float64()
	}
	rest := s.rest[:0]
	for c := start; c < pool; c++ {
		rest = append(rest, c)
	}
	s.rest = rest
	sort.Slice(rest, func(i, j int) bool { return scores[rest[i]] < scores[rest[j]] })
	s.order = append(s.order, rest[:k-start]...)
	return s.order
}
