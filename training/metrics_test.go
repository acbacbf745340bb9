package training

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRankingMetrics(t *testing.T) {
	tests := []struct {
		name   string
		scores []float64
		labels []int
		auroc  float64
		auprc  float64
	}{
		{
			name:   "mixed ranking",
			scores: []float64{0.1, 0.4, 0.35, 0.8},
			labels: []int{0, 0, 1, 1},
			auroc:  0.75,
			auprc:  5.0 / 6.0,
		},
		{
			name:   "perfect ranking",
			scores: []float64{0.9, 0.8, 0.2, 0.1},
			labels: []int{1, 1, 0, 0},
			auroc:  1,
			auprc:  1,
		},
		{
			name:   "ties count as half",
			scores: []float64{0.5, 0.5},
			labels: []int{0, 1},
			auroc:  0.5,
			auprc:  0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			auroc, err := AUROC(tt.scores, tt.labels)
			require.NoError(t, err)
			assert.InDelta(t, tt.auroc, auroc, 1e-12)

			auprc, err := AveragePrecision(tt.scores, tt.labels)
			require.NoError(t, err)
			assert.InDelta(t, tt.auprc, auprc, 1e-12)
		})
	}
}

func TestDegenerateLabels(t *testing.T) {
	_, err := AUROC([]float64{0.2, 0.7, 0.9}, []int{1, 1, 1})
	var degenerate *DegenerateLabelSetError
	require.True(t, errors.As(err, &degenerate), "got %v", err)
	assert.Equal(t, 1, degenerate.Label)
	assert.Equal(t, 3, degenerate.Count)

	_, err = AveragePrecision([]float64{0.2}, []int{0})
	require.True(t, errors.As(err, &degenerate))
	assert.Equal(t, 0, degenerate.Label)
}

func TestRankingMetricsRejectBadInput(t *testing.T) {
	_, err := AUROC([]float64{0.1}, []int{0, 1})
	assert.Error(t, err)

	_, err = AUROC([]float64{0.1, 0.2}, []int{0, 2})
	assert.Error(t, err)

	_, err = AUROC(nil, nil)
	assert.Error(t, err)
}
