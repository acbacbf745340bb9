package tensor

import (
	"fmt"
	"math"
)

func checkCompatibility(t1, t2 *Tensor) error {
	if t1.Device != t2.Device {
		return fmt.Errorf("tensors must be on same device: %s vs %s", t1.Device, t2.Device)
	}
	return nil
}

func checkShapesCompatible(shape1, shape2 []int) ([]int, error) {
	if len(shape1) == 0 || len(shape2) == 0 {
		return nil, fmt.Errorf("cannot operate on empty tensors")
	}
	if !shapesEqual(shape1, shape2) {
		return nil, fmt.Errorf("tensor shapes must match: %v vs %v", shape1, shape2)
	}
	return shape1, nil
}

func elementwise(t1, t2 *Tensor, f func(a, b float64) float64) (*Tensor, error) {
	if err := checkCompatibility(t1, t2); err != nil {
		return nil, err
	}
	outputShape, err := checkShapesCompatible(t1.Shape, t2.Shape)
	if err != nil {
		return nil, err
	}
	result, err := Zeros(outputShape, t1.Device)
	if err != nil {
		return nil, err
	}
	for i := range result.Data {
		result.Data[i] = f(t1.Data[i], t2.Data[i])
	}
	return result, nil
}

func unary(t *Tensor, f func(float64) float64) *Tensor {
	result, _ := Zeros(t.Shape, t.Device)
	for i, v := range t.Data {
		result.Data[i] = f(v)
	}
	return result
}

func Add(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a + b })
}

func Sub(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a - b })
}

func Mul(t1, t2 *Tensor) (*Tensor, error) {
	return elementwise(t1, t2, func(a, b float64) float64 { return a * b })
}

// Scale multiplies every element by s.
func Scale(t *Tensor, s float64) *Tensor {
	return unary(t, func(v float64) float64 { return v * s })
}

func ReLU(t *Tensor) *Tensor {
	return unary(t, func(v float64) float64 { return math.Max(v, 0) })
}

func Sigmoid(t *Tensor) *Tensor {
	return unary(t, sigmoid)
}

func sigmoid(x float64) float64 {
	if x >= 0 {
		return 1 / (1 + math.Exp(-x))
	}
	e := math.Exp(x)
	return e / (1 + e)
}

// addInto accumulates src into dst in place.
func addInto(dst, src *Tensor) error {
	if !shapesEqual(dst.Shape, src.Shape) {
		return fmt.Errorf("gradient shape mismatch: %v vs %v", dst.Shape, src.Shape)
	}
	for i, v := range src.Data {
		dst.Data[i] += v
	}
	return nil
}
