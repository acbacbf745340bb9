package training

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tsawler/go-moli/dataset"
	"github.com/tsawler/go-moli/layers"
	"github.com/tsawler/go-moli/optimizer"
	"github.com/tsawler/go-moli/tensor"
)

// Encoders groups the three pretrained omic encoders.
type Encoders struct {
	Expression *layers.Encoder
	Mutation   *layers.Encoder
	CNA        *layers.Encoder
}

func (e Encoders) get(m dataset.Modality) *layers.Encoder {
	switch m {
	case dataset.Expression:
		return e.Expression
	case dataset.Mutation:
		return e.Mutation
	default:
		return e.CNA
	}
}

// Eval puts every encoder in evaluation mode.
func (e Encoders) Eval() {
	for _, m := range dataset.Modalities {
		e.get(m).Eval()
	}
}

// EmbeddingSize is the width of the concatenated embedding.
func (e Encoders) EmbeddingSize() int {
	size := 0
	for _, m := range dataset.Modalities {
		size += e.get(m).EmbeddingSize()
	}
	return size
}

// Embed runs every encoder on its modality of batch. The embeddings are
// detached, so nothing downstream reaches the encoder weights.
func (e Encoders) Embed(batch *dataset.Batch, device tensor.Device) ([]*tensor.Tensor, error) {
	embeddings := make([]*tensor.Tensor, 0, len(dataset.Modalities))
	for _, m := range dataset.Modalities {
		input, err := batch.Input(m).To(device)
		if err != nil {
			return nil, err
		}
		z, err := e.get(m).Forward(input)
		if err != nil {
			return nil, fmt.Errorf("%s encoder: %w", m, err)
		}
		embeddings = append(embeddings, z.Detach())
	}
	return embeddings, nil
}

// ClassifierTrainingConfig configures classifier training on frozen encoders.
type ClassifierTrainingConfig struct {
	Epochs   int
	Device   tensor.Device
	Logger   *zap.Logger
	Progress io.Writer
}

// TrainClassifier fits classifier on the detached embeddings of encoders with
// BCE on logits and returns the mean loss of each epoch. The encoders stay in
// evaluation mode and their weights are not updated.
func TrainClassifier(encoders Encoders, classifier *layers.Classifier, opt optimizer.Optimizer, loader *dataset.DataLoader, config ClassifierTrainingConfig) ([]float64, error) {
	if config.Epochs <= 0 {
		return nil, fmt.Errorf("epochs must be positive, got %d", config.Epochs)
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	encoders.Eval()
	defer classifier.Eval()

	var criterion BCEWithLogitsLoss
	history := make([]float64, 0, config.Epochs)
	bar := NewProgressBar(config.Progress, "classifier", config.Epochs)
	for epoch := 0; epoch < config.Epochs; epoch++ {
		classifier.Train()

		total, steps := 0.0, 0
		batches := loader.Iterator()
		for batch := range batches {
			loss, err := classifierStep(encoders, classifier, opt, criterion, batch, config.Device)
			if err != nil {
				dataset.Drain(batches)
				return history, fmt.Errorf("epoch %d: %w", epoch, err)
			}
			total += loss
			steps++
		}
		if err := loader.Err(); err != nil {
			return history, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		mean := 0.0
		if steps > 0 {
			mean = total / float64(steps)
		}
		history = append(history, mean)
		bar.Update(epoch+1, map[string]float64{"loss": mean})
		logger.Debug("classifier epoch", zap.Int("epoch", epoch), zap.Float64("loss", mean))
	}
	bar.Finish()
	return history, nil
}

func classifierStep(encoders Encoders, classifier *layers.Classifier, opt optimizer.Optimizer, criterion Loss, batch *dataset.Batch, device tensor.Device) (float64, error) {
	opt.ZeroGrad()
	embeddings, err := encoders.Embed(batch, device)
	if err != nil {
		return 0, err
	}
	logits, err := classifier.ForwardEmbeddings(embeddings...)
	if err != nil {
		return 0, fmt.Errorf("classifier: %w", err)
	}
	target, err := batch.Target.To(device)
	if err != nil {
		return 0, err
	}
	loss, err := criterion.Forward(ModelOutput{Logits: logits}, target, false)
	if err != nil {
		return 0, err
	}
	if err := loss.Backward(); err != nil {
		return 0, fmt.Errorf("backward: %w", err)
	}
	if err := opt.Step(); err != nil {
		return 0, fmt.Errorf("optimizer step: %w", err)
	}
	return loss.Item()
}
