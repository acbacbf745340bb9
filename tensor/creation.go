package tensor

import (
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

func NewTensor(shape []int, device DeviceType, data []float64) (*Tensor, error) {
	if err := validateShape(shape); err != nil {
		return nil, err
	}

	numElems := calculateNumElements(shape)
	if data == nil {
		data = make([]float64, numElems)
	}
	if len(data) != numElems {
		return nil, fmt.Errorf("data length %d does not match tensor size %d", len(data), numElems)
	}

	return &Tensor{
		Shape:    append([]int(nil), shape...),
		Strides:  calculateStrides(shape),
		Device:   device,
		Data:     data,
		NumElems: numElems,
	}, nil
}

func Zeros(shape []int, device DeviceType) (*Tensor, error) {
	return NewTensor(shape, device, nil)
}

func Ones(shape []int, device DeviceType) (*Tensor, error) {
	return Full(shape, 1, device)
}

func Full(shape []int, value float64, device DeviceType) (*Tensor, error) {
	t, err := Zeros(shape, device)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = value
	}
	return t, nil
}

// FromScalar creates a [1] tensor.
func FromScalar(value float64, device DeviceType) *Tensor {
	t, _ := NewTensor([]int{1}, device, []float64{value})
	return t
}

// Uniform fills a tensor with U(low, high) samples drawn from rng.
func Uniform(shape []int, low, high float64, rng *rand.Rand, device DeviceType) (*Tensor, error) {
	t, err := Zeros(shape, device)
	if err != nil {
		return nil, err
	}
	for i := range t.Data {
		t.Data[i] = low + rng.Float64()*(high-low)
	}
	return t, nil
}

// FromDense copies a gonum matrix into a rank 2 tensor.
func FromDense(m mat.Matrix, device DeviceType) (*Tensor, error) {
	r, c := m.Dims()
	t, err := Zeros([]int{r, c}, device)
	if err != nil {
		return nil, err
	}
	mat.NewDense(r, c, t.Data).Copy(m)
	return t, nil
}

// FromLabels builds an [n, 1] float target column from integer class labels.
func FromLabels(labels []int, device DeviceType) (*Tensor, error) {
	data := make([]float64, len(labels))
	for i, l := range labels {
		data[i] = float64(l)
	}
	return NewTensor([]int{len(labels), 1}, device, data)
}
