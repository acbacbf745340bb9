package training

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/tsawler/go-moli/dataset"
	"github.com/tsawler/go-moli/layers"
	"github.com/tsawler/go-moli/mining"
	"github.com/tsawler/go-moli/optimizer"
	"github.com/tsawler/go-moli/tensor"
)

// EncoderTrainingConfig configures the metric-learning pretraining of one
// omic encoder.
type EncoderTrainingConfig struct {
	Epochs int
	Omic dataset.Modality
	// Independent reads the first batch slot whatever Omic is, for loaders
	// over a single-modality cohort. Omic then only labels logs and progress.
	Independent bool
	Strategy    *mining.Strategy
	Criterion   *TripletMarginLoss
	Device      tensor.Device

	Logger   *zap.Logger
	Progress io.Writer
}

func (c *EncoderTrainingConfig) validate() error {
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.Strategy == nil {
		return fmt.Errorf("a triplet mining strategy is required")
	}
	if c.Criterion == nil {
		return fmt.Errorf("a triplet criterion is required")
	}
	return nil
}

// TrainEncoder trains encoder on the triplet loss of its own embeddings for a
// fixed number of epochs and returns the mean loss of each epoch. The
// selector switches phase for the last two epochs.
func TrainEncoder(encoder *layers.Encoder, opt optimizer.Optimizer, loader *dataset.DataLoader, config EncoderTrainingConfig) ([]float64, error) {
	if err := config.validate(); err != nil {
		return nil, err
	}
	logger := config.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	defer encoder.Eval()

	history := make([]float64, 0, config.Epochs)
	bar := NewProgressBar(config.Progress, fmt.Sprintf("%s encoder", config.Omic), config.Epochs)
	for epoch := 0; epoch < config.Epochs; epoch++ {
		lastEpochs := mining.LastEpochs(epoch, config.Epochs)
		selector := config.Strategy.Resolve(lastEpochs)
		encoder.Train()

		total, steps := 0.0, 0
		batches := loader.Iterator()
		for batch := range batches {
			loss, err := encoderStep(encoder, opt, batch, selector, config)
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
		logger.Debug("encoder epoch",
			zap.Stringer("omic", config.Omic),
			zap.Int("epoch", epoch),
			zap.String("selector", selector.Name()),
			zap.Float64("loss", mean))
	}
	bar.Finish()
	return history, nil
}

func encoderStep(encoder *layers.Encoder, opt optimizer.Optimizer, batch *dataset.Batch, selector mining.TripletSelector, config EncoderTrainingConfig) (float64, error) {
	opt.ZeroGrad()
	slot := config.Omic
	if config.Independent {
		slot = dataset.Expression
	}
	input, err := batch.Input(slot).To(config.Device)
	if err != nil {
		return 0, err
	}
	if input.Cols() != encoder.InputSize() {
		return 0, fmt.Errorf("%s batch has %d features, encoder expects %d", slot, input.Cols(), encoder.InputSize())
	}
	embeddings, err := encoder.Forward(input)
	if err != nil {
		return 0, fmt.Errorf("forward: %w", err)
	}
	triplets := selector.Triplets(embeddings, batch.Labels)
	loss, err := config.Criterion.Forward(embeddings, triplets)
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
