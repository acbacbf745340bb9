package tensor

import (
	"fmt"
)

type DeviceType int

const (
	CPU DeviceType = iota
	GPU
)

func (d DeviceType) String() string {
	switch d {
	case CPU:
		return "CPU"
	case GPU:
		return "GPU"
	default:
		return "Unknown"
	}
}

// Operation is a node of the autograd tape. Forward records its inputs so that
// Backward can return one gradient per input (nil for inputs that need none).
type Operation interface {
	Forward(inputs ...*Tensor) (*Tensor, error)
	Backward(gradOut *Tensor) ([]*Tensor, error)
	Inputs() []*Tensor
}

// Tensor is a dense row-major float64 tensor. Model code only uses rank 1 and
// rank 2 tensors; scalars have shape [1].
type Tensor struct {
	Shape        []int
	Strides      []int
	Device       DeviceType
	Data         []float64
	NumElems     int
	requiresGrad bool
	grad         *Tensor
	creator      Operation
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor(shape=%v, device=%s, elements=%d)",
		t.Shape, t.Device, t.NumElems)
}

func (t *Tensor) RequiresGrad() bool {
	return t.requiresGrad
}

func (t *Tensor) SetRequiresGrad(requires bool) {
	t.requiresGrad = requires
}

func (t *Tensor) Grad() *Tensor {
	return t.grad
}

// ZeroGrad drops the accumulated gradient of a leaf tensor.
func (t *Tensor) ZeroGrad() {
	t.grad = nil
}

// Item returns the value of a single-element tensor.
func (t *Tensor) Item() (float64, error) {
	if t.NumElems != 1 {
		return 0, fmt.Errorf("item requires a single-element tensor, got shape %v", t.Shape)
	}
	return t.Data[0], nil
}

// Rows returns the size of the first dimension.
func (t *Tensor) Rows() int {
	if len(t.Shape) == 0 {
		return 0
	}
	return t.Shape[0]
}

// Cols returns the size of the second dimension, or 1 for rank 1 tensors.
func (t *Tensor) Cols() int {
	if len(t.Shape) < 2 {
		return 1
	}
	return t.Shape[1]
}

// Row returns a view of row i of a rank 2 tensor.
func (t *Tensor) Row(i int) []float64 {
	cols := t.Cols()
	return t.Data[i*cols : (i+1)*cols]
}

// Detach returns a tensor sharing the data but cut from the autograd tape.
func (t *Tensor) Detach() *Tensor {
	return &Tensor{
		Shape:    append([]int(nil), t.Shape...),
		Strides:  append([]int(nil), t.Strides...),
		Device:   t.Device,
		Data:     t.Data,
		NumElems: t.NumElems,
	}
}

func (t *Tensor) Clone() *Tensor {
	clone := t.Detach()
	clone.Data = append([]float64(nil), t.Data...)
	clone.requiresGrad = t.requiresGrad
	return clone
}

// To places the tensor on the given device. Only the CPU backend stores data,
// so this is a relabel for CPU and an error for anything else.
func (t *Tensor) To(device Device) (*Tensor, error) {
	if device.Type != CPU {
		return nil, fmt.Errorf("no backend for device %s", device)
	}
	t.Device = device.Type
	return t, nil
}

func calculateStrides(shape []int) []int {
	if len(shape) == 0 {
		return []int{}
	}

	strides := make([]int, len(shape))
	stride := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = stride
		stride *= shape[i]
	}
	return strides
}

func calculateNumElements(shape []int) int {
	if len(shape) == 0 {
		return 0
	}

	elements := 1
	for _, dim := range shape {
		elements *= dim
	}
	return elements
}

func validateShape(shape []int) error {
	if len(shape) == 0 {
		return fmt.Errorf("invalid shape: no dimensions")
	}
	for i, dim := range shape {
		if dim <= 0 {
			return fmt.Errorf("invalid shape: dimension %d has size %d, must be positive", i, dim)
		}
	}
	return nil
}

func shapesEqual(shape1, shape2 []int) bool {
	if len(shape1) != len(shape2) {
		return false
	}
	for i := range shape1 {
		if shape1[i] != shape2[i] {
			return false
		}
	}
	return true
}
