package layers

import (
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/go-moli/tensor"
)

func newTestModel(t *testing.T) *MultiOmicsModel {
	t.Helper()
	rng := rand.New(rand.NewPCG(42, 42))
	e, err := NewEncoder(5, 4, 0.1, rng, tensor.CPU)
	require.NoError(t, err)
	m, err := NewEncoder(3, 2, 0.1, rng, tensor.CPU)
	require.NoError(t, err)
	c, err := NewEncoder(6, 3, 0.1, rng, tensor.CPU)
	require.NoError(t, err)
	clf, err := NewClassifier(e.EmbeddingSize()+m.EmbeddingSize()+c.EmbeddingSize(), 0.2, rng, tensor.CPU)
	require.NoError(t, err)
	return &MultiOmicsModel{Expression: e, Mutation: m, CNA: c, Classifier: clf}
}

func TestMultiOmicsModelForward(t *testing.T) {
	model := newTestModel(t)
	rng := rand.New(rand.NewPCG(1, 1))
	e, _ := tensor.Uniform([]int{7, 5}, -1, 1, rng, tensor.CPU)
	m, _ := tensor.Uniform([]int{7, 3}, 0, 1, rng, tensor.CPU)
	c, _ := tensor.Uniform([]int{7, 6}, -1, 1, rng, tensor.CPU)

	logits, embedding, err := model.Forward(e, m, c)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 1}, logits.Shape)
	assert.Equal(t, []int{7, 9}, embedding.Shape)

	// 3 encoders and the classifier each carry a weight and a bias
	assert.Len(t, model.Parameters(), 8)
}

func TestMultiOmicsModelEvalIsDeterministic(t *testing.T) {
	model := newTestModel(t)
	model.Eval()
	rng := rand.New(rand.NewPCG(2, 2))
	e, _ := tensor.Uniform([]int{4, 5}, -1, 1, rng, tensor.CPU)
	m, _ := tensor.Uniform([]int{4, 3}, 0, 1, rng, tensor.CPU)
	c, _ := tensor.Uniform([]int{4, 6}, -1, 1, rng, tensor.CPU)

	first, _, err := model.Forward(e, m, c)
	require.NoError(t, err)
	second, _, err := model.Forward(e, m, c)
	require.NoError(t, err)
	assert.Equal(t, first.Data, second.Data)
}

func TestClassifierForwardEmbeddings(t *testing.T) {
	clf, err := NewClassifier(3, 0, rand.New(rand.NewPCG(5, 5)), tensor.CPU)
	require.NoError(t, err)
	a, _ := tensor.Ones([]int{2, 1}, tensor.CPU)
	b, _ := tensor.Ones([]int{2, 2}, tensor.CPU)

	logits, err := clf.ForwardEmbeddings(a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, logits.Shape)

	_, err = clf.ForwardEmbeddings(a)
	assert.Error(t, err, "width mismatch should fail")
}
