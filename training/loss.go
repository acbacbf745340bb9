package training

import (
	"fmt"

	"github.com/tsawler/go-moli/mining"
	"github.com/tsawler/go-moli/tensor"
)

// ModelOutput is what a forward pass hands to a loss: the classifier logits
// and the embedding the triplets are mined from.
type ModelOutput struct {
	Logits    *tensor.Tensor
	Embedding *tensor.Tensor
}

// Loss interface defines methods that all loss functions must implement.
// lastEpochs selects the mining phase for losses that mine triplets.
type Loss interface {
	Forward(out ModelOutput, target *tensor.Tensor, lastEpochs bool) (*tensor.Tensor, error)
}

// BCEWithLogitsLoss is the mean binary cross entropy of raw logits. The
// target is reshaped to a column to match the logits.
type BCEWithLogitsLoss struct{}

func (BCEWithLogitsLoss) Forward(out ModelOutput, target *tensor.Tensor, _ bool) (*tensor.Tensor, error) {
	if out.Logits == nil {
		return nil, fmt.Errorf("BCE loss requires logits")
	}
	column, err := tensor.Reshape(target, []int{target.NumElems, 1})
	if err != nil {
		return nil, fmt.Errorf("failed to reshape target: %w", err)
	}
	if out.Logits.NumElems != column.NumElems {
		return nil, fmt.Errorf("logits shape %v does not match %d targets", out.Logits.Shape, column.NumElems)
	}
	return tensor.BCEWithLogits(out.Logits, column)
}

// TripletMarginLoss is mean(max(0, ||a-p|| - ||a-n|| + Margin)) over mined
// triplets.
type TripletMarginLoss struct {
	Margin float64
}

// Forward gathers the triplet rows of embeddings and computes the loss. An
// empty triplet set yields zero, still connected to embeddings so that
// Backward succeeds.
func (l *TripletMarginLoss) Forward(embeddings *tensor.Tensor, triplets mining.Triplets) (*tensor.Tensor, error) {
	if len(triplets) == 0 {
		mean, err := tensor.MeanAutograd(embeddings)
		if err != nil {
			return nil, err
		}
		return tensor.ScaleAutograd(mean, 0)
	}

	anchors, positives, negatives := triplets.Columns()
	a, err := tensor.GatherRowsAutograd(embeddings, anchors)
	if err != nil {
		return nil, fmt.Errorf("anchors: %w", err)
	}
	p, err := tensor.GatherRowsAutograd(embeddings, positives)
	if err != nil {
		return nil, fmt.Errorf("positives: %w", err)
	}
	n, err := tensor.GatherRowsAutograd(embeddings, negatives)
	if err != nil {
		return nil, fmt.Errorf("negatives: %w", err)
	}
	return tensor.TripletMargin(a, p, n, l.Margin)
}

// BCEWithTripletsLoss combines classification and metric learning:
// Gamma * triplet(z[a], z[p], z[n]) + bce(logits, target).
type BCEWithTripletsLoss struct {
	Gamma    float64
	Strategy *mining.Strategy
	Triplet  *TripletMarginLoss
	bce      BCEWithLogitsLoss
}

func (l *BCEWithTripletsLoss) Forward(out ModelOutput, target *tensor.Tensor, lastEpochs bool) (*tensor.Tensor, error) {
	if out.Embedding == nil {
		return nil, fmt.Errorf("triplet loss requires an embedding")
	}
	labels, err := labelsFromTarget(target)
	if err != nil {
		return nil, err
	}

	triplets := l.Strategy.Resolve(lastEpochs).Triplets(out.Embedding, labels)
	trip, err := l.Triplet.Forward(out.Embedding, triplets)
	if err != nil {
		return nil, fmt.Errorf("triplet loss: %w", err)
	}
	weighted, err := tensor.ScaleAutograd(trip, l.Gamma)
	if err != nil {
		return nil, err
	}
	bce, err := l.bce.Forward(out, target, lastEpochs)
	if err != nil {
		return nil, fmt.Errorf("bce loss: %w", err)
	}
	return tensor.AddAutograd(weighted, bce)
}

// NewLoss returns the combined loss when gamma is positive and a strategy is
// given, and plain BCE with logits otherwise.
func NewLoss(margin, gamma float64, strategy *mining.Strategy) Loss {
	if strategy != nil && gamma > 0 {
		return &BCEWithTripletsLoss{
			Gamma:    gamma,
			Strategy: strategy,
			Triplet:  &TripletMarginLoss{Margin: margin},
		}
	}
	return BCEWithLogitsLoss{}
}

func labelsFromTarget(target *tensor.Tensor) ([]int, error) {
	labels := make([]int, target.NumElems)
	for i, v := range target.Data {
		switch v {
		case 0:
		case 1:
			labels[i] = 1
		default:
			return nil, fmt.Errorf("target %d is %v, want 0 or 1", i, v)
		}
	}
	return labels, nil
}
