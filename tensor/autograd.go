package tensor

import (
	"fmt"
)

// apply runs the forward pass of op and records it on the tape when any input
// requires a gradient.
func apply(op Operation, inputs ...*Tensor) (*Tensor, error) {
	result, err := op.Forward(inputs...)
	if err != nil {
		return nil, err
	}
	for _, in := range inputs {
		if in.requiresGrad {
			result.requiresGrad = true
			result.creator = op
			break
		}
	}
	return result, nil
}

// Backward propagates gradients from a single-element tensor to every leaf on
// its tape. Leaf gradients accumulate until ZeroGrad is called.
func (t *Tensor) Backward() error {
	if t.NumElems != 1 {
		return fmt.Errorf("backward requires a single-element tensor, got shape %v", t.Shape)
	}
	if !t.requiresGrad {
		return fmt.Errorf("tensor does not require gradients")
	}

	order := topologicalOrder(t)
	grads := map[*Tensor]*Tensor{t: FromScalar(1, t.Device)}
	if len(t.Shape) != 1 {
		grads[t], _ = Ones(t.Shape, t.Device)
	}

	for i := len(order) - 1; i >= 0; i-- {
		node := order[i]
		g, ok := grads[node]
		if !ok {
			continue
		}
		if node.creator == nil {
			if node.grad == nil {
				node.grad = g.Clone()
				node.grad.requiresGrad = false
			} else if err := addInto(node.grad, g); err != nil {
				return err
			}
			continue
		}

		inputGrads, err := node.creator.Backward(g)
		if err != nil {
			return fmt.Errorf("backward pass failed: %w", err)
		}
		for j, in := range node.creator.Inputs() {
			if !in.requiresGrad || j >= len(inputGrads) || inputGrads[j] == nil {
				continue
			}
			if acc, ok := grads[in]; ok {
				if err := addInto(acc, inputGrads[j]); err != nil {
					return err
				}
			} else {
				grads[in] = inputGrads[j].Clone()
			}
		}
	}
	return nil
}

// topologicalOrder lists the graph nodes so that inputs precede their outputs.
func topologicalOrder(root *Tensor) []*Tensor {
	var order []*Tensor
	visited := make(map[*Tensor]bool)
	var visit func(*Tensor)
	visit = func(n *Tensor) {
		if visited[n] {
			return
		}
		visited[n] = true
		if n.creator != nil {
			for _, in := range n.creator.Inputs() {
				if in.requiresGrad {
					visit(in)
				}
			}
		}
		order = append(order, n)
	}
	visit(root)
	return order
}

func requireInputs(name string, inputs []*Tensor, n int) error {
	if len(inputs) != n {
		return fmt.Errorf("%s requires exactly %d inputs, got %d", name, n, len(inputs))
	}
	return nil
}

// AddOp implements the Operation interface for tensor addition
type AddOp struct {
	inputs []*Tensor
}

func (op *AddOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("AddOp", inputs, 2); err != nil {
		return nil, err
	}
	op.inputs = inputs
	return Add(inputs[0], inputs[1])
}

func (op *AddOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	return []*Tensor{gradOut, gradOut}, nil
}

func (op *AddOp) Inputs() []*Tensor { return op.inputs }

// MulOp implements the Operation interface for elementwise multiplication
type MulOp struct {
	inputs []*Tensor
}

func (op *MulOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("MulOp", inputs, 2); err != nil {
		return nil, err
	}
	op.inputs = inputs
	return Mul(inputs[0], inputs[1])
}

func (op *MulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a, b := op.inputs[0], op.inputs[1]
	gradA, err := Mul(gradOut, b)
	if err != nil {
		return nil, err
	}
	gradB, err := Mul(gradOut, a)
	if err != nil {
		return nil, err
	}
	return []*Tensor{gradA, gradB}, nil
}

func (op *MulOp) Inputs() []*Tensor { return op.inputs }

// ScaleOp multiplies its input by a constant.
type ScaleOp struct {
	Factor float64
	inputs []*Tensor
}

func (op *ScaleOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("ScaleOp", inputs, 1); err != nil {
		return nil, err
	}
	op.inputs = inputs
	return Scale(inputs[0], op.Factor), nil
}

func (op *ScaleOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	return []*Tensor{Scale(gradOut, op.Factor)}, nil
}

func (op *ScaleOp) Inputs() []*Tensor { return op.inputs }

// MatMulOp implements the Operation interface for matrix multiplication
type MatMulOp struct {
	inputs []*Tensor
}

func (op *MatMulOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("MatMulOp", inputs, 2); err != nil {
		return nil, err
	}
	op.inputs = inputs
	return MatMul(inputs[0], inputs[1])
}

func (op *MatMulOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a, b := op.inputs[0], op.inputs[1]

	// d(A @ B)/dA = gradOut @ B^T, d(A @ B)/dB = A^T @ gradOut
	bT, err := Transpose(b)
	if err != nil {
		return nil, fmt.Errorf("failed to transpose B: %w", err)
	}
	gradA, err := MatMul(gradOut, bT)
	if err != nil {
		return nil, fmt.Errorf("gradient for A: %w", err)
	}

	aT, err := Transpose(a)
	if err != nil {
		return nil, fmt.Errorf("failed to transpose A: %w", err)
	}
	gradB, err := MatMul(aT, gradOut)
	if err != nil {
		return nil, fmt.Errorf("gradient for B: %w", err)
	}
	return []*Tensor{gradA, gradB}, nil
}

func (op *MatMulOp) Inputs() []*Tensor { return op.inputs }

// AddBiasOp adds a bias vector with one entry per column to every row.
type AddBiasOp struct {
	inputs []*Tensor
}

func (op *AddBiasOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("AddBiasOp", inputs, 2); err != nil {
		return nil, err
	}
	x, bias := inputs[0], inputs[1]
	if len(x.Shape) != 2 || bias.NumElems != x.Shape[1] {
		return nil, fmt.Errorf("bias of size %d does not match input shape %v", bias.NumElems, x.Shape)
	}
	op.inputs = inputs

	result := x.Clone()
	result.requiresGrad = false
	for r := 0; r < x.Rows(); r++ {
		row := result.Row(r)
		for c := range row {
			row[c] += bias.Data[c]
		}
	}
	return result, nil
}

func (op *AddBiasOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	bias := op.inputs[1]
	gradBias, err := Zeros(bias.Shape, bias.Device)
	if err != nil {
		return nil, err
	}
	for r := 0; r < gradOut.Rows(); r++ {
		for c, v := range gradOut.Row(r) {
			gradBias.Data[c] += v
		}
	}
	return []*Tensor{gradOut, gradBias}, nil
}

func (op *AddBiasOp) Inputs() []*Tensor { return op.inputs }

// ReLUOp implements the Operation interface for ReLU activation
type ReLUOp struct {
	inputs []*Tensor
}

func (op *ReLUOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("ReLUOp", inputs, 1); err != nil {
		return nil, err
	}
	op.inputs = inputs
	return ReLU(inputs[0]), nil
}

func (op *ReLUOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a := op.inputs[0]
	grad := gradOut.Clone()
	for i, v := range a.Data {
		if v <= 0 {
			grad.Data[i] = 0
		}
	}
	return []*Tensor{grad}, nil
}

func (op *ReLUOp) Inputs() []*Tensor { return op.inputs }

// SigmoidOp implements the Operation interface for Sigmoid activation
type SigmoidOp struct {
	inputs []*Tensor
	output *Tensor
}

func (op *SigmoidOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("SigmoidOp", inputs, 1); err != nil {
		return nil, err
	}
	op.inputs = inputs
	op.output = Sigmoid(inputs[0])
	return op.output, nil
}

func (op *SigmoidOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	// sigmoid'(x) = s * (1 - s)
	grad := gradOut.Clone()
	for i, s := range op.output.Data {
		grad.Data[i] *= s * (1 - s)
	}
	return []*Tensor{grad}, nil
}

func (op *SigmoidOp) Inputs() []*Tensor { return op.inputs }

// DropoutOp zeroes elements with probability P and rescales the survivors by
// 1/(1-P). The mask is drawn from Source.
type DropoutOp struct {
	P      float64
	Source interface{ Float64() float64 }
	inputs []*Tensor
	mask   []float64
}

func (op *DropoutOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("DropoutOp", inputs, 1); err != nil {
		return nil, err
	}
	if op.P < 0 || op.P >= 1 {
		return nil, fmt.Errorf("dropout probability must be in [0, 1), got %v", op.P)
	}
	op.inputs = inputs

	x := inputs[0]
	keep := 1 / (1 - op.P)
	op.mask = make([]float64, x.NumElems)
	result, err := Zeros(x.Shape, x.Device)
	if err != nil {
		return nil, err
	}
	for i, v := range x.Data {
		if op.Source.Float64() >= op.P {
			op.mask[i] = keep
		}
		result.Data[i] = v * op.mask[i]
	}
	return result, nil
}

func (op *DropoutOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grad := gradOut.Clone()
	for i := range grad.Data {
		grad.Data[i] *= op.mask[i]
	}
	return []*Tensor{grad}, nil
}

func (op *DropoutOp) Inputs() []*Tensor { return op.inputs }

// ConcatColsOp joins rank 2 inputs along the column dimension.
type ConcatColsOp struct {
	inputs []*Tensor
}

func (op *ConcatColsOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	op.inputs = inputs
	return ConcatCols(inputs...)
}

func (op *ConcatColsOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	grads := make([]*Tensor, len(op.inputs))
	offset := 0
	for i, in := range op.inputs {
		g, err := Zeros(in.Shape, in.Device)
		if err != nil {
			return nil, err
		}
		width := in.Cols()
		for r := 0; r < in.Rows(); r++ {
			copy(g.Row(r), gradOut.Row(r)[offset:offset+width])
		}
		grads[i] = g
		offset += width
	}
	return grads, nil
}

func (op *ConcatColsOp) Inputs() []*Tensor { return op.inputs }

// GatherRowsOp selects rows by index; repeated indices accumulate gradient.
type GatherRowsOp struct {
	Indices []int
	inputs  []*Tensor
}

func (op *GatherRowsOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("GatherRowsOp", inputs, 1); err != nil {
		return nil, err
	}
	op.inputs = inputs
	return GatherRows(inputs[0], op.Indices)
}

func (op *GatherRowsOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	src := op.inputs[0]
	grad, err := Zeros(src.Shape, src.Device)
	if err != nil {
		return nil, err
	}
	for i, idx := range op.Indices {
		dst := grad.Row(idx)
		for c, v := range gradOut.Row(i) {
			dst[c] += v
		}
	}
	return []*Tensor{grad}, nil
}

func (op *GatherRowsOp) Inputs() []*Tensor { return op.inputs }

// MeanOp reduces all elements to their mean, producing a [1] tensor.
type MeanOp struct {
	inputs []*Tensor
}

func (op *MeanOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("MeanOp", inputs, 1); err != nil {
		return nil, err
	}
	op.inputs = inputs
	x := inputs[0]
	sum := 0.0
	for _, v := range x.Data {
		sum += v
	}
	return FromScalar(sum/float64(x.NumElems), x.Device), nil
}

func (op *MeanOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	x := op.inputs[0]
	grad, err := Full(x.Shape, gradOut.Data[0]/float64(x.NumElems), x.Device)
	if err != nil {
		return nil, err
	}
	return []*Tensor{grad}, nil
}

func (op *MeanOp) Inputs() []*Tensor { return op.inputs }

// High-level autograd functions that create and execute operations

// AddAutograd performs addition with automatic differentiation
func AddAutograd(a, b *Tensor) (*Tensor, error) {
	return apply(&AddOp{}, a, b)
}

// MulAutograd performs elementwise multiplication with automatic differentiation
func MulAutograd(a, b *Tensor) (*Tensor, error) {
	return apply(&MulOp{}, a, b)
}

func ScaleAutograd(a *Tensor, factor float64) (*Tensor, error) {
	return apply(&ScaleOp{Factor: factor}, a)
}

// MatMulAutograd performs matrix multiplication with automatic differentiation
func MatMulAutograd(a, b *Tensor) (*Tensor, error) {
	return apply(&MatMulOp{}, a, b)
}

func AddBiasAutograd(x, bias *Tensor) (*Tensor, error) {
	return apply(&AddBiasOp{}, x, bias)
}

// ReLUAutograd performs ReLU activation with automatic differentiation
func ReLUAutograd(a *Tensor) (*Tensor, error) {
	return apply(&ReLUOp{}, a)
}

// SigmoidAutograd performs Sigmoid activation with automatic differentiation
func SigmoidAutograd(a *Tensor) (*Tensor, error) {
	return apply(&SigmoidOp{}, a)
}

func DropoutAutograd(a *Tensor, p float64, source interface{ Float64() float64 }) (*Tensor, error) {
	return apply(&DropoutOp{P: p, Source: source}, a)
}

func ConcatColsAutograd(ts ...*Tensor) (*Tensor, error) {
	return apply(&ConcatColsOp{}, ts...)
}

func GatherRowsAutograd(a *Tensor, indices []int) (*Tensor, error) {
	return apply(&GatherRowsOp{Indices: append([]int(nil), indices...)}, a)
}

func MeanAutograd(a *Tensor) (*Tensor, error) {
	return apply(&MeanOp{}, a)
}
