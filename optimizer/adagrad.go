package optimizer

import (
	"fmt"
	"math"

	"github.com/tsawler/go-moli/tensor"
)

// AdaGradConfig holds configuration for AdaGrad optimizer
type AdaGradConfig struct {
	LearningRate float64 // Learning rate
	Epsilon      float64 // Small constant for numerical stability
	WeightDecay  float64 // L2 regularization strength
}

// DefaultAdaGradConfig returns default AdaGrad optimizer configuration
func DefaultAdaGradConfig() AdaGradConfig {
	return AdaGradConfig{
		LearningRate: 0.01,
		Epsilon:      1e-10,
		WeightDecay:  0.0,
	}
}

// AdaGrad scales every update by the inverse root of the running sum of
// squared gradients:
//
//	g    = grad + weightDecay * w
//	sum += g * g
//	w   -= lr * g / (sqrt(sum) + eps)
type AdaGrad struct {
	config      AdaGradConfig
	parameters  []*tensor.Tensor
	squaredSums [][]float64
	currentStep uint64
}

// NewAdaGrad creates an AdaGrad optimizer over the given parameters.
func NewAdaGrad(parameters []*tensor.Tensor, config AdaGradConfig) (*AdaGrad, error) {
	if len(parameters) == 0 {
		return nil, fmt.Errorf("no parameters provided")
	}
	if config.LearningRate <= 0 {
		return nil, fmt.Errorf("learning rate must be positive, got %v", config.LearningRate)
	}
	if config.WeightDecay < 0 {
		return nil, fmt.Errorf("weight decay must not be negative, got %v", config.WeightDecay)
	}
	if config.Epsilon <= 0 {
		config.Epsilon = DefaultAdaGradConfig().Epsilon
	}

	adagrad := &AdaGrad{
		config:      config,
		parameters:  parameters,
		squaredSums: make([][]float64, len(parameters)),
	}
	for i, p := range parameters {
		if !p.RequiresGrad() {
			return nil, fmt.Errorf("parameter %d (%v) does not require gradients", i, p)
		}
		adagrad.squaredSums[i] = make([]float64, p.NumElems)
	}
	return adagrad, nil
}

// Step performs a single AdaGrad optimization step. Parameters without a
// gradient are skipped.
func (adagrad *AdaGrad) Step() error {
	adagrad.currentStep++
	lr, eps, wd := adagrad.config.LearningRate, adagrad.config.Epsilon, adagrad.config.WeightDecay

	for i, p := range adagrad.parameters {
		grad := p.Grad()
		if grad == nil {
			continue
		}
		if grad.NumElems != p.NumElems {
			return fmt.Errorf("gradient of parameter %d has %d elements, want %d", i, grad.NumElems, p.NumElems)
		}
		sums := adagrad.squaredSums[i]
		for j, g := range grad.Data {
			if wd != 0 {
				g += wd * p.Data[j]
			}
			sums[j] += g * g
			p.Data[j] -= lr * g / (math.Sqrt(sums[j]) + eps)
		}
	}
	return nil
}

func (adagrad *AdaGrad) ZeroGrad() {
	for _, p := range adagrad.parameters {
		p.ZeroGrad()
	}
}

func (adagrad *AdaGrad) Parameters() []*tensor.Tensor {
	return adagrad.parameters
}

// GetStepCount returns the current optimization step count
func (adagrad *AdaGrad) GetStepCount() uint64 {
	return adagrad.currentStep
}

// GetStats returns optimizer statistics
func (adagrad *AdaGrad) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"step":          adagrad.currentStep,
		"learning_rate": adagrad.config.LearningRate,
		"epsilon":       adagrad.config.Epsilon,
		"weight_decay":  adagrad.config.WeightDecay,
	}
}

// UpdateLearningRate updates the learning rate for the optimizer
func (adagrad *AdaGrad) UpdateLearningRate(newLR float64) error {
	if newLR <= 0 {
		return fmt.Errorf("learning rate must be positive, got %f", newLR)
	}
	adagrad.config.LearningRate = newLR
	return nil
}
