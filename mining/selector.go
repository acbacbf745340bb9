// Package mining selects anchor/positive/negative index triples from a batch
// of embeddings for triplet margin training.
package mining

import (
	"math"

	"github.com/tsawler/go-moli/tensor"
)

// Triplet holds row indices into the batch embedding matrix.
type Triplet struct {
	Anchor, Positive, Negative int
}

type Triplets []Triplet

// Columns splits the set into anchor, positive and negative index slices.
func (ts Triplets) Columns() (anchors, positives, negatives []int) {
	anchors = make([]int, len(ts))
	positives = make([]int, len(ts))
	negatives = make([]int, len(ts))
	for i, t := range ts {
		anchors[i], positives[i], negatives[i] = t.Anchor, t.Positive, t.Negative
	}
	return anchors, positives, negatives
}

// TripletSelector mines triplets from embeddings [n, d] and n class labels.
// An empty result is valid and means the batch had no usable triplet.
type TripletSelector interface {
	Triplets(embeddings *tensor.Tensor, labels []int) Triplets
	Name() string
}

// AllTriplets returns every ordered same-class pair combined with every sample
// of a different class.
type AllTriplets struct{}

func (AllTriplets) Name() string { return "all" }

func (AllTriplets) Triplets(_ *tensor.Tensor, labels []int) Triplets {
	var out Triplets
	forEachPair(labels, func(a, p int, negatives []int) {
		for _, n := range negatives {
			out = append(out, Triplet{a, p, n})
		}
	})
	return out
}

// HardestNegative pairs every ordered same-class pair with the differing-class
// sample closest to the anchor.
type HardestNegative struct {
	Margin float64
}

func (HardestNegative) Name() string { return "hardest" }

func (s HardestNegative) Triplets(embeddings *tensor.Tensor, labels []int) Triplets {
	dist := distanceMatrix(embeddings)
	var out Triplets
	forEachPair(labels, func(a, p int, negatives []int) {
		best, bestDist := -1, math.Inf(1)
		for _, n := range negatives {
			if dist[a][n] < bestDist {
				best, bestDist = n, dist[a][n]
			}
		}
		out = append(out, Triplet{a, p, best})
	})
	return out
}

// SemihardNegative pairs every ordered same-class pair with the closest
// negative that lies beyond the positive but still inside the margin:
// d(a,p) < d(a,n) < d(a,p) + Margin. Pairs without such a negative are skipped.
type SemihardNegative struct {
	Margin float64
}

func (SemihardNegative) Name() string { return "semi-hard" }

func (s SemihardNegative) Triplets(embeddings *tensor.Tensor, labels []int) Triplets {
	dist := distanceMatrix(embeddings)
	var out Triplets
	forEachPair(labels, func(a, p int, negatives []int) {
		dap := dist[a][p]
		best, bestGap := -1, math.Inf(1)
		for _, n := range negatives {
			gap := dist[a][n] - dap
			if gap > 0 && gap < s.Margin && gap < bestGap {
				best, bestGap = n, gap
			}
		}
		if best >= 0 {
			out = append(out, Triplet{a, p, best})
		}
	})
	return out
}

// forEachPair calls fn for each ordered pair (a, p), a != p, of samples that
// share a class and have at least one differing-class sample.
func forEachPair(labels []int, fn func(a, p int, negatives []int)) {
	byClass := make(map[int][]int)
	var classes []int
	for i, l := range labels {
		if _, ok := byClass[l]; !ok {
			classes = append(classes, l)
		}
		byClass[l] = append(byClass[l], i)
	}

	for _, c := range classes {
		members := byClass[c]
		if len(members) < 2 {
			continue
		}
		negatives := make([]int, 0, len(labels)-len(members))
		for i, l := range labels {
			if l != c {
				negatives = append(negatives, i)
			}
		}
		if len(negatives) == 0 {
			continue
		}
		for _, a := range members {
			for _, p := range members {
				if a != p {
					fn(a, p, negatives)
				}
			}
		}
	}
}

// distanceMatrix returns pairwise Euclidean distances between embedding rows.
func distanceMatrix(embeddings *tensor.Tensor) [][]float64 {
	n := embeddings.Rows()
	dist := make([][]float64, n)
	for i := range dist {
		dist[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		ri := embeddings.Row(i)
		for j := i + 1; j < n; j++ {
			rj := embeddings.Row(j)
			sq := 0.0
			for k := range ri {
				d := ri[k] - rj[k]
				sq += d * d
			}
			dist[i][j] = math.Sqrt(sq)
			dist[j][i] = dist[i][j]
		}
	}
	return dist
}
