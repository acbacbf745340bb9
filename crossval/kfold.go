// Package crossval splits cohorts into stratified cross-validation folds.
package crossval

import (
	"fmt"
	"math/rand/v2"
	"sort"
)

// Fold is one train/test partition of sample indices. Both slices are sorted.
type Fold struct {
	Train []int
	Test  []int
}

// StratifiedKFold partitions samples into folds that preserve the class
// proportions of the labels.
type StratifiedKFold struct {
	NSplits int
	Shuffle bool
	Seed    uint64
}

func NewStratifiedKFold(nSplits int, shuffle bool, seed uint64) *StratifiedKFold {
	return &StratifiedKFold{NSplits: nSplits, Shuffle: shuffle, Seed: seed}
}

// Split returns NSplits folds. Within every class the samples are shuffled
// with the seeded generator when Shuffle is set and then dealt to the folds
// round-robin, so the same labels and seed always give the same folds.
func (s *StratifiedKFold) Split(labels []int) ([]Fold, error) {
	if s.NSplits < 2 {
		return nil, fmt.Errorf("number of splits must be at least 2, got %d", s.NSplits)
	}
	if len(labels) < s.NSplits {
		return nil, fmt.Errorf("cannot split %d samples into %d folds", len(labels), s.NSplits)
	}

	byClass := make(map[int][]int)
	for i, l := range labels {
		byClass[l] = append(byClass[l], i)
	}
	classes := make([]int, 0, len(byClass))
	for c := range byClass {
		classes = append(classes, c)
	}
	sort.Ints(classes)

	var rng *rand.Rand
	if s.Shuffle {
		rng = rand.New(rand.NewPCG(s.Seed, s.Seed))
	}

	testOf := make([]int, len(labels))
	next := 0
	for _, c := range classes {
		members := byClass[c]
		if rng != nil {
			rng.Shuffle(len(members), func(i, j int) {
				members[i], members[j] = members[j], members[i]
			})
		}
		// continue the rotation across classes so small classes do not pile
		// into the first folds
		for _, idx := range members {
			testOf[idx] = next % s.NSplits
			next++
		}
	}

	folds := make([]Fold, s.NSplits)
	for idx, f := range testOf {
		for k := range folds {
			if k == f {
				folds[k].Test = append(folds[k].Test, idx)
			} else {
				folds[k].Train = append(folds[k].Train, idx)
			}
		}
	}
	return folds, nil
}
