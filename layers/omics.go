package layers

import (
	"fmt"
	"math/rand/v2"

	"github.com/tsawler/go-moli/tensor"
)

// Encoder maps one omic modality to an embedding: Dense -> ReLU -> Dropout.
type Encoder struct {
	*Sequential
	Spec *ModelSpec
}

func NewEncoder(inputSize, embeddingSize int, dropout float64, rng *rand.Rand, device tensor.DeviceType) (*Encoder, error) {
	spec, err := NewModelBuilder([]int{1, inputSize}).
		AddDense(embeddingSize, true, "dense").
		AddReLU("relu").
		AddDropout(dropout, "dropout").
		Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile encoder: %w", err)
	}
	seq, err := spec.Build(rng, device)
	if err != nil {
		return nil, err
	}
	return &Encoder{Sequential: seq, Spec: spec}, nil
}

// InputSize returns the number of features the encoder expects.
func (e *Encoder) InputSize() int { return e.Spec.InputShape[1] }

// EmbeddingSize returns the width of the embedding.
func (e *Encoder) EmbeddingSize() int { return e.Spec.OutputShape[1] }

// Classifier maps the concatenated embeddings to one logit per sample:
// Dense(1) -> Dropout. The sigmoid is applied by the loss or the evaluator.
type Classifier struct {
	*Sequential
	Spec *ModelSpec
}

func NewClassifier(inputSize int, dropout float64, rng *rand.Rand, device tensor.DeviceType) (*Classifier, error) {
	spec, err := NewModelBuilder([]int{1, inputSize}).
		AddDense(1, true, "logit").
		AddDropout(dropout, "dropout").
		Compile()
	if err != nil {
		return nil, fmt.Errorf("failed to compile classifier: %w", err)
	}
	seq, err := spec.Build(rng, device)
	if err != nil {
		return nil, err
	}
	return &Classifier{Sequential: seq, Spec: spec}, nil
}

// ForwardEmbeddings concatenates the per-modality embeddings and returns the logits.
func (c *Classifier) ForwardEmbeddings(embeddings ...*tensor.Tensor) (*tensor.Tensor, error) {
	z, err := tensor.ConcatColsAutograd(embeddings...)
	if err != nil {
		return nil, fmt.Errorf("failed to concatenate embeddings: %w", err)
	}
	return c.Forward(z)
}

// MultiOmicsModel chains the three encoders and the classifier for end-to-end
// training with a combined loss.
type MultiOmicsModel struct {
	Expression *Encoder
	Mutation   *Encoder
	CNA        *Encoder
	Classifier *Classifier
}

// Forward returns the logits and the concatenated embedding.
func (m *MultiOmicsModel) Forward(expression, mutation, cna *tensor.Tensor) (logits, embedding *tensor.Tensor, err error) {
	ze, err := m.Expression.Forward(expression)
	if err != nil {
		return nil, nil, fmt.Errorf("expression encoder: %w", err)
	}
	zm, err := m.Mutation.Forward(mutation)
	if err != nil {
		return nil, nil, fmt.Errorf("mutation encoder: %w", err)
	}
	zc, err := m.CNA.Forward(cna)
	if err != nil {
		return nil, nil, fmt.Errorf("cna encoder: %w", err)
	}
	embedding, err = tensor.ConcatColsAutograd(ze, zm, zc)
	if err != nil {
		return nil, nil, err
	}
	logits, err = m.Classifier.Forward(embedding)
	if err != nil {
		return nil, nil, fmt.Errorf("classifier: %w", err)
	}
	return logits, embedding, nil
}

func (m *MultiOmicsModel) modules() []Module {
	return []Module{m.Expression, m.Mutation, m.CNA, m.Classifier}
}

func (m *MultiOmicsModel) Parameters() []*tensor.Tensor {
	var params []*tensor.Tensor
	for _, mod := range m.modules() {
		params = append(params, mod.Parameters()...)
	}
	return params
}

func (m *MultiOmicsModel) Train() {
	for _, mod := range m.modules() {
		mod.Train()
	}
}

func (m *MultiOmicsModel) Eval() {
	for _, mod := range m.modules() {
		mod.Eval()
	}
}
