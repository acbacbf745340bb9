package layers

import (
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/tsawler/go-moli/tensor"
)

// LayerType represents the type of neural network layer
type LayerType int

const (
	Dense LayerType = iota
	ReLUActivation
	DropoutLayer
)

func (lt LayerType) String() string {
	switch lt {
	case Dense:
		return "Dense"
	case ReLUActivation:
		return "ReLU"
	case DropoutLayer:
		return "Dropout"
	default:
		return "Unknown"
	}
}

// LayerSpec is the configuration of one layer; Build turns it into a Module.
type LayerSpec struct {
	Type LayerType
	Name string

	OutputSize int
	UseBias    bool
	Rate       float64

	// Computed during compilation
	InputShape     []int
	OutputShape    []int
	ParameterCount int64
}

// ModelSpec defines a complete network as compiled layer configuration.
type ModelSpec struct {
	Layers          []LayerSpec
	TotalParameters int64
	InputShape      []int
	OutputShape     []int
	Compiled        bool
}

// ModelBuilder helps construct neural network models
type ModelBuilder struct {
	layers     []LayerSpec
	inputShape []int
}

// NewModelBuilder creates a builder for inputs of shape [batch, features].
// The batch dimension may be any positive placeholder.
func NewModelBuilder(inputShape []int) *ModelBuilder {
	return &ModelBuilder{
		layers:     make([]LayerSpec, 0),
		inputShape: inputShape,
	}
}

// AddLayer adds a layer to the model
func (mb *ModelBuilder) AddLayer(layer LayerSpec) *ModelBuilder {
	mb.layers = append(mb.layers, layer)
	return mb
}

// AddDense adds a dense layer to the model
func (mb *ModelBuilder) AddDense(outputSize int, useBias bool, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: Dense, Name: name, OutputSize: outputSize, UseBias: useBias})
}

func (mb *ModelBuilder) AddReLU(name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: ReLUActivation, Name: name})
}

func (mb *ModelBuilder) AddDropout(rate float64, name string) *ModelBuilder {
	return mb.AddLayer(LayerSpec{Type: DropoutLayer, Name: name, Rate: rate})
}

// Compile computes shapes and parameter counts
func (mb *ModelBuilder) Compile() (*ModelSpec, error) {
	if len(mb.layers) == 0 {
		return nil, fmt.Errorf("cannot compile empty model")
	}
	if len(mb.inputShape) != 2 {
		return nil, fmt.Errorf("model input must be [batch, features], got %v", mb.inputShape)
	}

	model := &ModelSpec{
		Layers:     make([]LayerSpec, len(mb.layers)),
		InputShape: append([]int(nil), mb.inputShape...),
	}
	copy(model.Layers, mb.layers)

	currentShape := model.InputShape
	for i := range model.Layers {
		layer := &model.Layers[i]
		layer.InputShape = append([]int(nil), currentShape...)

		switch layer.Type {
		case Dense:
			if layer.OutputSize <= 0 {
				return nil, fmt.Errorf("layer %d (%s): output size must be positive, got %d", i, layer.Name, layer.OutputSize)
			}
			inputSize := currentShape[1]
			layer.ParameterCount = int64(inputSize * layer.OutputSize)
			if layer.UseBias {
				layer.ParameterCount += int64(layer.OutputSize)
			}
			currentShape = []int{currentShape[0], layer.OutputSize}
		case DropoutLayer:
			if layer.Rate < 0 || layer.Rate >= 1 {
				return nil, fmt.Errorf("layer %d (%s): dropout rate must be in [0, 1), got %v", i, layer.Name, layer.Rate)
			}
		case ReLUActivation:
		default:
			return nil, fmt.Errorf("unsupported layer type: %s", layer.Type)
		}

		layer.OutputShape = append([]int(nil), currentShape...)
		model.TotalParameters += layer.ParameterCount
	}

	model.OutputShape = currentShape
	model.Compiled = true
	return model, nil
}

// Build instantiates the compiled layers. Weights and dropout masks draw from rng.
func (ms *ModelSpec) Build(rng *rand.Rand, device tensor.DeviceType) (*Sequential, error) {
	if !ms.Compiled {
		return nil, fmt.Errorf("model not compiled")
	}

	seq := NewSequential()
	for i, layer := range ms.Layers {
		var (
			module Module
			err    error
		)
		switch layer.Type {
		case Dense:
			module, err = NewLinear(layer.InputShape[1], layer.OutputSize, layer.UseBias, rng, device)
		case ReLUActivation:
			module = NewReLU()
		case DropoutLayer:
			module, err = NewDropout(layer.Rate, rng)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to build layer %d (%s): %w", i, layer.Name, err)
		}
		seq.Add(module)
	}
	return seq, nil
}

// Summary returns a human-readable model summary
func (ms *ModelSpec) Summary() string {
	if !ms.Compiled {
		return "Model not compiled"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Input Shape: %v\n", ms.InputShape)
	fmt.Fprintf(&b, "Output Shape: %v\n", ms.OutputShape)
	fmt.Fprintf(&b, "Total Parameters: %d\n", ms.TotalParameters)
	for i, layer := range ms.Layers {
		fmt.Fprintf(&b, "Layer %d: %s (%s) %v -> %v params=%d\n",
			i+1, layer.Name, layer.Type, layer.InputShape, layer.OutputShape, layer.ParameterCount)
	}
	return b.String()
}
