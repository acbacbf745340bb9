package tensor

import (
	"fmt"
	"math"
)

// PairwiseDistanceEps is added to the difference vector before taking the norm.
const PairwiseDistanceEps = 1e-6

// BCEWithLogitsOp computes the mean binary cross entropy of raw logits
// against a target of the same shape in one numerically stable step:
// max(x, 0) - x*y + log(1 + exp(-|x|)).
type BCEWithLogitsOp struct {
	inputs []*Tensor
}

func (op *BCEWithLogitsOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("BCEWithLogitsOp", inputs, 2); err != nil {
		return nil, err
	}
	logits, target := inputs[0], inputs[1]
	if logits.NumElems != target.NumElems {
		return nil, fmt.Errorf("logits size %d does not match target size %d", logits.NumElems, target.NumElems)
	}
	op.inputs = inputs

	sum := 0.0
	for i, x := range logits.Data {
		y := target.Data[i]
		sum += math.Max(x, 0) - x*y + math.Log1p(math.Exp(-math.Abs(x)))
	}
	return FromScalar(sum/float64(logits.NumElems), logits.Device), nil
}

func (op *BCEWithLogitsOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	logits, target := op.inputs[0], op.inputs[1]
	grad, err := Zeros(logits.Shape, logits.Device)
	if err != nil {
		return nil, err
	}
	scale := gradOut.Data[0] / float64(logits.NumElems)
	for i, x := range logits.Data {
		grad.Data[i] = (sigmoid(x) - target.Data[i]) * scale
	}
	return []*Tensor{grad, nil}, nil
}

func (op *BCEWithLogitsOp) Inputs() []*Tensor { return op.inputs }

// TripletMarginOp computes mean(max(0, d(a,p) - d(a,n) + Margin)) over the
// rows of anchor, positive and negative, where d is the Euclidean distance.
type TripletMarginOp struct {
	Margin float64
	inputs []*Tensor
	// per-row (a - p + eps) / d(a,p) and (a - n + eps) / d(a,n), zero for
	// rows where the hinge is inactive
	unitAP [][]float64
	unitAN [][]float64
}

func (op *TripletMarginOp) Forward(inputs ...*Tensor) (*Tensor, error) {
	if err := requireInputs("TripletMarginOp", inputs, 3); err != nil {
		return nil, err
	}
	a, p, n := inputs[0], inputs[1], inputs[2]
	if !shapesEqual(a.Shape, p.Shape) || !shapesEqual(a.Shape, n.Shape) || len(a.Shape) != 2 {
		return nil, fmt.Errorf("triplet inputs must share a rank 2 shape: %v, %v, %v", a.Shape, p.Shape, n.Shape)
	}
	op.inputs = inputs

	rows := a.Rows()
	op.unitAP = make([][]float64, rows)
	op.unitAN = make([][]float64, rows)
	sum := 0.0
	for r := 0; r < rows; r++ {
		diffAP, dAP := pairwiseDistance(a.Row(r), p.Row(r))
		diffAN, dAN := pairwiseDistance(a.Row(r), n.Row(r))
		hinge := dAP - dAN + op.Margin
		if hinge <= 0 {
			continue
		}
		sum += hinge
		op.unitAP[r] = normalize(diffAP, dAP)
		op.unitAN[r] = normalize(diffAN, dAN)
	}
	return FromScalar(sum/float64(rows), a.Device), nil
}

func (op *TripletMarginOp) Backward(gradOut *Tensor) ([]*Tensor, error) {
	a := op.inputs[0]
	gradA, _ := Zeros(a.Shape, a.Device)
	gradP, _ := Zeros(a.Shape, a.Device)
	gradN, _ := Zeros(a.Shape, a.Device)
	scale := gradOut.Data[0] / float64(a.Rows())
	for r := range op.unitAP {
		if op.unitAP[r] == nil {
			continue
		}
		ga, gp, gn := gradA.Row(r), gradP.Row(r), gradN.Row(r)
		for c := range ga {
			uap, uan := op.unitAP[r][c]*scale, op.unitAN[r][c]*scale
			ga[c] = uap - uan
			gp[c] = -uap
			gn[c] = uan
		}
	}
	return []*Tensor{gradA, gradP, gradN}, nil
}

func (op *TripletMarginOp) Inputs() []*Tensor { return op.inputs }

func pairwiseDistance(x, y []float64) ([]float64, float64) {
	diff := make([]float64, len(x))
	sq := 0.0
	for i := range x {
		diff[i] = x[i] - y[i] + PairwiseDistanceEps
		sq += diff[i] * diff[i]
	}
	return diff, math.Sqrt(sq)
}

func normalize(v []float64, norm float64) []float64 {
	out := make([]float64, len(v))
	if norm == 0 {
		return out
	}
	for i := range v {
		out[i] = v[i] / norm
	}
	return out
}

// BCEWithLogits records the fused binary cross entropy on the tape.
func BCEWithLogits(logits, target *Tensor) (*Tensor, error) {
	return apply(&BCEWithLogitsOp{}, logits, target)
}

// TripletMargin records the fused triplet margin loss on the tape.
func TripletMargin(anchor, positive, negative *Tensor, margin float64) (*Tensor, error) {
	return apply(&TripletMarginOp{Margin: margin}, anchor, positive, negative)
}
