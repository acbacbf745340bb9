package tensor

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// dense wraps the tensor storage in a gonum matrix without copying.
func dense(t *Tensor) *mat.Dense {
	return mat.NewDense(t.Rows(), t.Cols(), t.Data)
}

// Dense returns a copy of a rank 2 tensor as a gonum matrix.
func (t *Tensor) Dense() *mat.Dense {
	return mat.DenseCopyOf(dense(t))
}

func MatMul(t1, t2 *Tensor) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	if len(t1.Shape) != 2 || len(t2.Shape) != 2 {
		return nil, fmt.Errorf("matmul requires rank 2 tensors, got %v and %v", t1.Shape, t2.Shape)
	}

	rows1, cols1 := t1.Shape[0], t1.Shape[1]
	rows2, cols2 := t2.Shape[0], t2.Shape[1]
	if cols1 != rows2 {
		return nil, fmt.Errorf("incompatible dimensions for matmul: (%d, %d) x (%d, %d)", rows1, cols1, rows2, cols2)
	}

	result, err := Zeros([]int{rows1, cols2}, t1.Device)
	if err != nil {
		return nil, err
	}
	dense(result).Mul(dense(t1), dense(t2))
	return result, nil
}

func Transpose(t *Tensor) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("transpose requires a rank 2 tensor, got %v", t.Shape)
	}
	result, err := Zeros([]int{t.Shape[1], t.Shape[0]}, t.Device)
	if err != nil {
		return nil, err
	}
	dense(result).Copy(dense(t).T())
	return result, nil
}

// Reshape returns a tensor sharing the data with a new shape.
func Reshape(t *Tensor, newShape []int) (*Tensor, error) {
	if err := validateShape(newShape); err != nil {
		return nil, err
	}
	if calculateNumElements(newShape) != t.NumElems {
		return nil, fmt.Errorf("cannot reshape tensor of size %d into shape %v", t.NumElems, newShape)
	}
	reshaped := t.Detach()
	reshaped.Shape = append([]int(nil), newShape...)
	reshaped.Strides = calculateStrides(newShape)
	return reshaped, nil
}

// GatherRows selects rows of a rank 2 tensor by index.
func GatherRows(t *Tensor, indices []int) (*Tensor, error) {
	if len(t.Shape) != 2 {
		return nil, fmt.Errorf("gather requires a rank 2 tensor, got %v", t.Shape)
	}
	if len(indices) == 0 {
		return nil, fmt.Errorf("gather requires at least one index")
	}
	cols := t.Shape[1]
	result, err := Zeros([]int{len(indices), cols}, t.Device)
	if err != nil {
		return nil, err
	}
	for i, idx := range indices {
		if idx < 0 || idx >= t.Shape[0] {
			return nil, fmt.Errorf("row index %d out of range [0, %d)", idx, t.Shape[0])
		}
		copy(result.Row(i), t.Row(idx))
	}
	return result, nil
}

// ConcatCols joins rank 2 tensors with the same row count side by side.
func ConcatCols(ts ...*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("concat requires at least one tensor")
	}
	rows := ts[0].Rows()
	total := 0
	for i, t := range ts {
		if len(t.Shape) != 2 || t.Shape[0] != rows {
			return nil, fmt.Errorf("concat input %d has shape %v, expected [%d, *]", i, t.Shape, rows)
		}
		total += t.Shape[1]
	}
	result, err := Zeros([]int{rows, total}, ts[0].Device)
	if err != nil {
		return nil, err
	}
	for r := 0; r < rows; r++ {
		out := result.Row(r)
		offset := 0
		for _, t := range ts {
			offset += copy(out[offset:], t.Row(r))
		}
	}
	return result, nil
}
