package mining

import "fmt"

// StrategyKind tags the variant held by a Strategy.
type StrategyKind int

const (
	AllTripletsKind StrategyKind = iota
	FixedKind
	PhaseSwitchingKind
)

func (k StrategyKind) String() string {
	switch k {
	case AllTripletsKind:
		return "all-triplets"
	case FixedKind:
		return "fixed"
	case PhaseSwitchingKind:
		return "phase-switching"
	default:
		return "unknown"
	}
}

// Strategy decides which selector mines a training step. A phase-switching
// strategy uses Early until the last epochs and Late afterwards.
type Strategy struct {
	Kind  StrategyKind
	Early TripletSelector
	Late  TripletSelector
}

func AllTripletsStrategy() *Strategy {
	return &Strategy{Kind: AllTripletsKind, Early: AllTriplets{}, Late: AllTriplets{}}
}

func FixedStrategy(sel TripletSelector) *Strategy {
	return &Strategy{Kind: FixedKind, Early: sel, Late: sel}
}

func PhaseSwitchingStrategy(early, late TripletSelector) *Strategy {
	return &Strategy{Kind: PhaseSwitchingKind, Early: early, Late: late}
}

// NewStrategy builds semi-hard mining that hardens to hardest-negative in the
// last epochs, or all-triplets mining when semiHard is false.
func NewStrategy(margin float64, semiHard bool) *Strategy {
	if semiHard {
		return PhaseSwitchingStrategy(SemihardNegative{Margin: margin}, HardestNegative{Margin: margin})
	}
	return AllTripletsStrategy()
}

// Resolve returns the selector for the current epoch phase.
func (s *Strategy) Resolve(lastEpochs bool) TripletSelector {
	if s.Kind == PhaseSwitchingKind && lastEpochs {
		return s.Late
	}
	return s.Early
}

func (s *Strategy) String() string {
	if s.Kind == PhaseSwitchingKind {
		return fmt.Sprintf("%s(%s -> %s)", s.Kind, s.Early.Name(), s.Late.Name())
	}
	return fmt.Sprintf("%s(%s)", s.Kind, s.Early.Name())
}

// LastEpochs reports whether epoch (0-based) is one of the final two of budget.
func LastEpochs(epoch, budget int) bool {
	return epoch >= budget-2
}
