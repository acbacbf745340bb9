package dataset

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// Default variance thresholds per modality.
const (
	ExpressionVarianceThreshold = 0.05 * 20
	MutationVarianceThreshold   = 0.00001 * 15
	CNAVarianceThreshold        = 0.01 * 20
)

// VarianceThreshold keeps the columns whose population variance is strictly
// greater than Threshold.
type VarianceThreshold struct {
	Threshold float64
	support   []int
}

// Fit records the columns of m that pass the threshold.
func (v *VarianceThreshold) Fit(m mat.Matrix) error {
	rows, cols := m.Dims()
	col := make([]float64, rows)
	v.support = v.support[:0]
	for j := 0; j < cols; j++ {
		mat.Col(col, j, m)
		_, variance := stat.PopMeanVariance(col, nil)
		if variance > v.Threshold {
			v.support = append(v.support, j)
		}
	}
	if len(v.support) == 0 {
		return fmt.Errorf("no feature meets the variance threshold %v", v.Threshold)
	}
	return nil
}

// Support returns the selected column indices in ascending order.
func (v *VarianceThreshold) Support() []int {
	return append([]int(nil), v.support...)
}

// Transform keeps the fitted columns of m.
func (v *VarianceThreshold) Transform(m mat.Matrix) (*mat.Dense, error) {
	if v.support == nil {
		return nil, fmt.Errorf("variance threshold is not fitted")
	}
	return SelectColumns(m, v.support)
}

// SelectColumns copies the given columns of m in order.
func SelectColumns(m mat.Matrix, cols []int) (*mat.Dense, error) {
	rows, n := m.Dims()
	out := mat.NewDense(rows, len(cols), nil)
	col := make([]float64, rows)
	for k, j := range cols {
		if j < 0 || j >= n {
			return nil, fmt.Errorf("column %d out of range [0, %d)", j, n)
		}
		mat.Col(col, j, m)
		out.SetCol(k, col)
	}
	return out, nil
}
