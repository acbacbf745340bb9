package mining

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/go-moli/tensor"
)

func embeddings(t *testing.T, rows [][]float64) *tensor.Tensor {
	t.Helper()
	var data []float64
	for _, r := range rows {
		data = append(data, r...)
	}
	emb, err := tensor.NewTensor([]int{len(rows), len(rows[0])}, tensor.CPU, data)
	require.NoError(t, err)
	return emb
}

func TestAllTripletsCount(t *testing.T) {
	tests := []struct {
		name   string
		labels []int
		want   int
	}{
		{"balanced batch", []int{0, 0, 0, 1, 1, 1}, 3*2*3 + 3*2*3},
		{"imbalanced batch", []int{1, 0, 0, 0, 0}, 4*3*1 + 0},
		{"two per class", []int{0, 1, 0, 1}, 2*1*2 + 2*1*2},
		{"single class", []int{1, 1, 1}, 0},
		{"no same-class pair", []int{0, 1}, 0},
		{"empty batch", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := AllTriplets{}.Triplets(nil, tt.labels)
			assert.Len(t, got, tt.want)
			for _, tr := range got {
				assert.Equal(t, tt.labels[tr.Anchor], tt.labels[tr.Positive])
				assert.NotEqual(t, tr.Anchor, tr.Positive)
				assert.NotEqual(t, tt.labels[tr.Anchor], tt.labels[tr.Negative])
			}
		})
	}
}

func TestHardestNegative(t *testing.T) {
	emb := embeddings(t, [][]float64{
		{0, 0},
		{1, 0},
		{0.5, 0}, // closest negative to both
		{5, 5},
	})
	labels := []int{0, 0, 1, 1}

	got := HardestNegative{Margin: 1}.Triplets(emb, labels)
	require.Len(t, got, 4)
	for _, tr := range got {
		switch labels[tr.Anchor] {
		case 0:
			assert.Equal(t, 2, tr.Negative)
		case 1:
			// anchors 2 and 3 both pick sample 1 or 0, whichever is nearer
			if tr.Anchor == 2 {
				assert.Contains(t, []int{0, 1}, tr.Negative)
			} else {
				assert.Equal(t, 1, tr.Negative)
			}
		}
	}
}

func TestSemihardNegative(t *testing.T) {
	emb := embeddings(t, [][]float64{
		{0, 0},   // anchor
		{1, 0},   // positive, d(a,p) = 1
		{0.5, 0}, // hard negative: closer than the positive
		{1.2, 0}, // semi-hard: 1 < 1.2 < 1 + margin
		{1.6, 0}, // semi-hard but farther
		{9, 0},   // easy
	})
	labels := []int{0, 0, 1, 1, 1, 1}

	got := SemihardNegative{Margin: 1}.Triplets(emb, labels)
	var fromAnchor0 []Triplet
	for _, tr := range got {
		if tr.Anchor == 0 && tr.Positive == 1 {
			fromAnchor0 = append(fromAnchor0, tr)
		}
	}
	require.Len(t, fromAnchor0, 1)
	assert.Equal(t, 3, fromAnchor0[0].Negative)

	t.Run("pairs without a semi-hard negative are skipped", func(t *testing.T) {
		emb := embeddings(t, [][]float64{{0}, {1}, {10}})
		got := SemihardNegative{Margin: 0.5}.Triplets(emb, []int{0, 0, 1})
		assert.Empty(t, got)
	})
}

func TestTripletsColumns(t *testing.T) {
	a, p, n := Triplets{{0, 1, 2}, {3, 4, 5}}.Columns()
	assert.Equal(t, []int{0, 3}, a)
	assert.Equal(t, []int{1, 4}, p)
	assert.Equal(t, []int{2, 5}, n)
}
