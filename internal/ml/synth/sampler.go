package synth

import (
	"math"
	"math/rand/v2"
)

// pcgStream fixes the PCG increment so the seed alone selects the stream.
const pcgStream = 0x9e3779b97f4a7c15

// sampler draws every value of a dataset from one seeded PCG source.
type sampler struct {
	r *rand.Rand
}

func newSampler(seed int64) *sampler {
	return &sampler{r: rand.New(rand.NewPCG(uint64(seed), pcgStream))}
}

// intRange returns a uniform integer in [lo, hi).
func (s *sampler) intRange(lo, hi int) int {
	return lo + s.r.IntN(hi-lo)
}

// uniform returns a uniform float in [lo, hi).
func (s *sampler) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*s.r.Float64()
}

// poisson uses Knuth's multiplication method. The rates used here are
// small, so the expected number of draws per value stays low.
func (s *sampler) poisson(lambda float64) int {
	limit := math.Exp(-lambda)
	k := 0
	p := s.r.Float64()
	for p > limit {
		k++
		p *= s.r.Float64()
	}
	return k
}

// categorical returns an index drawn according to cumulative weights.
func (s *sampler) categorical(cumulative []float64) int {
	u := s.r.Float64() * cumulative[len(cumulative)-1]
	for i, c := range cumulative {
		if u < c {
			return i
		}
	}
	return len(cumulative) - 1
}

func (s *sampler) bernoulli(p float64) bool {
	return s.r.Float64() < p
}

func cumulate(weights []float64) []float64 {
	out := make([]float64, len(weights))
	var sum float64
	for i, w := range weights {
		sum += w
		out[i] = sum
	}
	return out
}
