package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// StandardScaler centres every column to zero mean and scales it to unit
// population standard deviation. Constant columns are only centred.
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

func (s *StandardScaler) Fit(m mat.Matrix) {
	rows, cols := m.Dims()
	s.Mean = make([]float64, cols)
	s.Scale = make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		mean, std := stat.PopMeanStdDev(col, nil)
		s.Mean[j] = mean
		if std == 0 {
			std = 1
		}
		s.Scale[j] = std
	}
}

func (s *StandardScaler) Transform(m mat.Matrix) (*mat.Dense, error) {
	rows, cols := m.Dims()
	if s.Mean == nil {
		return nil, fmt.Errorf("scaler is not fitted")
	}
	if cols != len(s.Mean) {
		return nil, fmt.Errorf("scaler fitted on %d features, got %d", len(s.Mean), cols)
	}
	out := mat.NewDense(rows, cols, nil)
	out.Apply(func(_, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, m)
	return out, nil
}

func (s *StandardScaler) FitTransform(m mat.Matrix) (*mat.Dense, error) {
	s.Fit(m)
	return s.Transform(m)
}
