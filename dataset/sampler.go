package dataset

import (
	"fmt"
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Sampler yields the sample order for one epoch.
type Sampler interface {
	Indices() []int
}

// SequentialSampler visits every sample once in order.
type SequentialSampler struct {
	N int
}

func (s SequentialSampler) Indices() []int {
	indices := make([]int, s.N)
	for i := range indices {
		indices[i] = i
	}
	return indices
}

// WeightedSampler draws len(weights) indices with replacement, each with
// probability proportional to its weight.
type WeightedSampler struct {
	cumulative []float64
	rng        *rand.Rand
}

// NewWeightedSampler weights every sample by the inverse frequency of its
// class so both classes are drawn equally often on average.
func NewWeightedSampler(labels []int, rng *rand.Rand) (*WeightedSampler, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("sampler requires at least one label")
	}
	counts := make(map[int]int)
	for _, l := range labels {
		counts[l]++
	}
	weights := make([]float64, len(labels))
	for i, l := range labels {
		weights[i] = 1 / float64(counts[l])
	}
	return NewWeightedSamplerFromWeights(weights, rng)
}

func NewWeightedSamplerFromWeights(weights []float64, rng *rand.Rand) (*WeightedSampler, error) {
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("weight %d is negative: %v", i, w)
		}
	}
	cumulative := floats.CumSum(make([]float64, len(weights)), weights)
	if len(cumulative) == 0 || cumulative[len(cumulative)-1] <= 0 {
		return nil, fmt.Errorf("sampler weights must have a positive sum")
	}
	return &WeightedSampler{cumulative: cumulative, rng: rng}, nil
}

func (s *WeightedSampler) Indices() []int {
	total := s.cumulative[len(s.cumulative)-1]
	indices := make([]int, len(s.cumulative))
	for i := range indices {
		u := s.rng.Float64() * total
		idx := sort.SearchFloat64s(s.cumulative, u)
		// SearchFloat64s returns the first bucket with cumulative >= u; skip
		// zero-weight buckets that share the boundary
		for idx < len(s.cumulative)-1 && s.cumulative[idx] <= u {
			idx++
		}
		indices[i] = idx
	}
	return indices
}
