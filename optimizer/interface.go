package optimizer

import (
	"fmt"
	"sort"

	"github.com/tsawler/go-moli/tensor"
)

// Optimizer defines the common interface for all optimizers
type Optimizer interface {
	// Step applies one update from the accumulated parameter gradients
	Step() error

	// ZeroGrad clears the gradients of every owned parameter
	ZeroGrad()

	// Parameters returns the tensors this optimizer updates
	Parameters() []*tensor.Tensor

	// GetStepCount returns the current optimization step number
	GetStepCount() uint64

	// UpdateLearningRate updates the learning rate
	UpdateLearningRate(lr float64) error
}

// CheckDisjoint returns an error if any parameter tensor is owned by more than
// one of the given optimizers.
func CheckDisjoint(optimizers map[string]Optimizer) error {
	owner := make(map[*tensor.Tensor]string)
	for _, name := range sortedNames(optimizers) {
		for _, p := range optimizers[name].Parameters() {
			if prev, ok := owner[p]; ok && prev != name {
				return fmt.Errorf("parameter %v is shared by optimizers %q and %q", p, prev, name)
			}
			owner[p] = name
		}
	}
	return nil
}

func sortedNames(optimizers map[string]Optimizer) []string {
	names := make([]string, 0, len(optimizers))
	for name := range optimizers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
