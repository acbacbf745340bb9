package tensor

import (
	"math"
	"math/rand/v2"
	"testing"
)

func mustTensor(t *testing.T, shape []int, data []float64) *Tensor {
	t.Helper()
	x, err := NewTensor(shape, CPU, data)
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}
	return x
}

// numericGrad estimates d f / d x[i] by central differences.
func numericGrad(t *testing.T, x *Tensor, f func() float64) []float64 {
	t.Helper()
	const h = 1e-6
	grads := make([]float64, x.NumElems)
	for i := range x.Data {
		orig := x.Data[i]
		x.Data[i] = orig + h
		plus := f()
		x.Data[i] = orig - h
		minus := f()
		x.Data[i] = orig
		grads[i] = (plus - minus) / (2 * h)
	}
	return grads
}

func assertClose(t *testing.T, name string, got, want []float64, tol float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%s: length %d, want %d", name, len(got), len(want))
	}
	for i := range got {
		if math.Abs(got[i]-want[i]) > tol {
			t.Errorf("%s[%d] = %v, want %v", name, i, got[i], want[i])
		}
	}
}

func TestLinearChainGradients(t *testing.T) {
	x := mustTensor(t, []int{3, 2}, []float64{0.5, -1.2, 2.0, 0.3, -0.7, 1.1})
	w := mustTensor(t, []int{2, 2}, []float64{0.4, -0.3, 0.8, 0.1})
	b := mustTensor(t, []int{2}, []float64{0.05, -0.2})
	target := mustTensor(t, []int{3, 2}, []float64{1, 0, 0, 1, 1, 1})
	w.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	loss := func() (*Tensor, error) {
		h, err := MatMulAutograd(x, w)
		if err != nil {
			return nil, err
		}
		h, err = AddBiasAutograd(h, b)
		if err != nil {
			return nil, err
		}
		h, err = ReLUAutograd(h)
		if err != nil {
			return nil, err
		}
		return BCEWithLogits(h, target)
	}
	value := func() float64 {
		l, err := loss()
		if err != nil {
			t.Fatalf("forward failed: %v", err)
		}
		return l.Data[0]
	}

	l, err := loss()
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}

	assertClose(t, "dW", w.Grad().Data, numericGrad(t, w, value), 1e-5)
	assertClose(t, "db", b.Grad().Data, numericGrad(t, b, value), 1e-5)
	if x.Grad() != nil {
		t.Error("input without requiresGrad should not receive a gradient")
	}
}

func TestTripletMarginGradients(t *testing.T) {
	emb := mustTensor(t, []int{4, 3}, []float64{
		0.1, 0.2, 0.3,
		0.2, 0.1, 0.5,
		0.9, -0.4, 0.3,
		0.15, 0.25, 0.2,
	})
	emb.SetRequiresGrad(true)

	loss := func() (*Tensor, error) {
		a, err := GatherRowsAutograd(emb, []int{0, 1})
		if err != nil {
			return nil, err
		}
		p, err := GatherRowsAutograd(emb, []int{1, 0})
		if err != nil {
			return nil, err
		}
		n, err := GatherRowsAutograd(emb, []int{3, 2})
		if err != nil {
			return nil, err
		}
		return TripletMargin(a, p, n, 1.0)
	}
	value := func() float64 {
		l, err := loss()
		if err != nil {
			t.Fatalf("forward failed: %v", err)
		}
		return l.Data[0]
	}

	l, err := loss()
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if l.Data[0] <= 0 {
		t.Fatalf("expected an active hinge, got loss %v", l.Data[0])
	}
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	assertClose(t, "dEmb", emb.Grad().Data, numericGrad(t, emb, value), 1e-5)
}

func TestTripletMarginInactiveHinge(t *testing.T) {
	a := mustTensor(t, []int{1, 2}, []float64{0, 0})
	p := mustTensor(t, []int{1, 2}, []float64{0.1, 0})
	n := mustTensor(t, []int{1, 2}, []float64{5, 5})
	l, err := TripletMargin(a, p, n, 0.5)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if l.Data[0] != 0 {
		t.Errorf("loss = %v, want 0 when negative is far beyond the margin", l.Data[0])
	}
}

func TestConcatAndSigmoidGradients(t *testing.T) {
	a := mustTensor(t, []int{2, 1}, []float64{0.3, -0.8})
	b := mustTensor(t, []int{2, 2}, []float64{1.5, 0.2, -0.1, 0.9})
	a.SetRequiresGrad(true)
	b.SetRequiresGrad(true)

	loss := func() (*Tensor, error) {
		c, err := ConcatColsAutograd(a, b)
		if err != nil {
			return nil, err
		}
		s, err := SigmoidAutograd(c)
		if err != nil {
			return nil, err
		}
		s, err = ScaleAutograd(s, 3)
		if err != nil {
			return nil, err
		}
		return MeanAutograd(s)
	}
	value := func() float64 {
		l, _ := loss()
		return l.Data[0]
	}

	l, err := loss()
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	if err := l.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
	assertClose(t, "dA", a.Grad().Data, numericGrad(t, a, value), 1e-6)
	assertClose(t, "dB", b.Grad().Data, numericGrad(t, b, value), 1e-6)
}

func TestDetachCutsTheTape(t *testing.T) {
	w := mustTensor(t, []int{1, 1}, []float64{2})
	w.SetRequiresGrad(true)
	x := mustTensor(t, []int{1, 1}, []float64{3})

	h, err := MatMulAutograd(x, w)
	if err != nil {
		t.Fatalf("forward failed: %v", err)
	}
	detached := h.Detach()
	if detached.RequiresGrad() {
		t.Fatal("detached tensor should not require gradients")
	}
	if _, err := MeanAutograd(detached); err != nil {
		t.Fatalf("mean failed: %v", err)
	}
	if err := detached.Backward(); err == nil {
		t.Error("expected backward on a detached tensor to fail")
	}
}

func TestDropout(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 1))
	x, _ := Ones([]int{100, 10}, CPU)

	t.Run("scales survivors and keeps expectation", func(t *testing.T) {
		y, err := DropoutAutograd(x, 0.5, rng)
		if err != nil {
			t.Fatalf("dropout failed: %v", err)
		}
		zeros, sum := 0, 0.0
		for _, v := range y.Data {
			if v == 0 {
				zeros++
			} else if v != 2 {
				t.Fatalf("survivor value %v, want 2", v)
			}
			sum += v
		}
		if zeros < 400 || zeros > 600 {
			t.Errorf("dropped %d of 1000 elements, expected about half", zeros)
		}
		if mean := sum / 1000; math.Abs(mean-1) > 0.15 {
			t.Errorf("mean after dropout %v, want about 1", mean)
		}
	})

	t.Run("rejects probability of one", func(t *testing.T) {
		if _, err := DropoutAutograd(x, 1, rng); err == nil {
			t.Error("expected error for p = 1")
		}
	})
}

func TestBackwardAccumulatesUntilZeroGrad(t *testing.T) {
	w := mustTensor(t, []int{1}, []float64{1})
	w.SetRequiresGrad(true)
	for i := 0; i < 2; i++ {
		l, err := ScaleAutograd(w, 2)
		if err != nil {
			t.Fatalf("forward failed: %v", err)
		}
		if err := l.Backward(); err != nil {
			t.Fatalf("backward failed: %v", err)
		}
	}
	if got := w.Grad().Data[0]; got != 4 {
		t.Errorf("accumulated grad = %v, want 4", got)
	}
	w.ZeroGrad()
	if w.Grad() != nil {
		t.Error("ZeroGrad should clear the gradient")
	}
}
