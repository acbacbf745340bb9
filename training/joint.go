package training

import (
	"fmt"

	"github.com/tsawler/go-moli/dataset"
	"github.com/tsawler/go-moli/layers"
	"github.com/tsawler/go-moli/optimizer"
	"github.com/tsawler/go-moli/tensor"
)

// TrainJoint runs one epoch of end-to-end training of model with criterion,
// which may combine BCE with a triplet term on the concatenated embedding.
// It returns the AUROC of the training predictions seen during the epoch.
func TrainJoint(model *layers.MultiOmicsModel, opt optimizer.Optimizer, criterion Loss, loader *dataset.DataLoader, lastEpochs bool, device tensor.Device) (float64, error) {
	model.Train()
	defer model.Eval()

	var scores []float64
	var labels []int
	batches := loader.Iterator()
	for batch := range batches {
		probs, err := jointStep(model, opt, criterion, batch, lastEpochs, device)
		if err != nil {
			dataset.Drain(batches)
			return 0, err
		}
		scores = append(scores, probs...)
		labels = append(labels, batch.Labels...)
	}
	if err := loader.Err(); err != nil {
		return 0, err
	}
	return AUROC(scores, labels)
}

func jointStep(model *layers.MultiOmicsModel, opt optimizer.Optimizer, criterion Loss, batch *dataset.Batch, lastEpochs bool, device tensor.Device) ([]float64, error) {
	opt.ZeroGrad()
	inputs := make([]*tensor.Tensor, len(dataset.Modalities))
	for i, m := range dataset.Modalities {
		in, err := batch.Input(m).To(device)
		if err != nil {
			return nil, err
		}
		inputs[i] = in
	}
	logits, embedding, err := model.Forward(inputs[0], inputs[1], inputs[2])
	if err != nil {
		return nil, err
	}
	target, err := batch.Target.To(device)
	if err != nil {
		return nil, err
	}
	loss, err := criterion.Forward(ModelOutput{Logits: logits, Embedding: embedding}, target, lastEpochs)
	if err != nil {
		return nil, fmt.Errorf("loss: %w", err)
	}
	if err := loss.Backward(); err != nil {
		return nil, fmt.Errorf("backward: %w", err)
	}
	if err := opt.Step(); err != nil {
		return nil, fmt.Errorf("optimizer step: %w", err)
	}
	return tensor.Sigmoid(logits.Detach()).Data, nil
}
