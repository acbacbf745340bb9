package tensor

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestTensorCreation(t *testing.T) {
	t.Run("rejects mismatched data", func(t *testing.T) {
		if _, err := NewTensor([]int{2, 2}, CPU, []float64{1, 2, 3}); err == nil {
			t.Error("expected error for data length mismatch")
		}
	})

	t.Run("rejects non-positive dims", func(t *testing.T) {
		if _, err := Zeros([]int{2, 0}, CPU); err == nil {
			t.Error("expected error for zero dimension")
		}
	})

	t.Run("labels become a column", func(t *testing.T) {
		y, err := FromLabels([]int{0, 1, 1}, CPU)
		if err != nil {
			t.Fatalf("FromLabels failed: %v", err)
		}
		if y.Rows() != 3 || y.Cols() != 1 {
			t.Errorf("shape = %v, want [3 1]", y.Shape)
		}
	})

	t.Run("round trips gonum matrices", func(t *testing.T) {
		m := mat.NewDense(2, 3, []float64{1, 2, 3, 4, 5, 6})
		x, err := FromDense(m, CPU)
		if err != nil {
			t.Fatalf("FromDense failed: %v", err)
		}
		if !mat.Equal(m, x.Dense()) {
			t.Error("Dense() does not match source matrix")
		}
	})
}

func TestMatrixOps(t *testing.T) {
	a := mustTensor(t, []int{2, 3}, []float64{1, 2, 3, 4, 5, 6})
	b := mustTensor(t, []int{3, 1}, []float64{1, 0, -1})

	c, err := MatMul(a, b)
	if err != nil {
		t.Fatalf("MatMul failed: %v", err)
	}
	assertClose(t, "matmul", c.Data, []float64{-2, -2}, 0)

	if _, err := MatMul(a, a); err == nil {
		t.Error("expected dimension mismatch error")
	}

	tr, err := Transpose(a)
	if err != nil {
		t.Fatalf("Transpose failed: %v", err)
	}
	assertClose(t, "transpose", tr.Data, []float64{1, 4, 2, 5, 3, 6}, 0)

	g, err := GatherRows(a, []int{1, 1, 0})
	if err != nil {
		t.Fatalf("GatherRows failed: %v", err)
	}
	assertClose(t, "gather", g.Data, []float64{4, 5, 6, 4, 5, 6, 1, 2, 3}, 0)

	if _, err := GatherRows(a, []int{2}); err == nil {
		t.Error("expected out of range error")
	}

	left := mustTensor(t, []int{2, 1}, []float64{7, 8})
	cat, err := ConcatCols(left, a)
	if err != nil {
		t.Fatalf("ConcatCols failed: %v", err)
	}
	assertClose(t, "concat", cat.Data, []float64{7, 1, 2, 3, 8, 4, 5, 6}, 0)

	if _, err := ConcatCols(a, b); err == nil {
		t.Error("expected row count mismatch error")
	}
}

func TestSelectDevice(t *testing.T) {
	defer func(orig func() int) { gpuCount = orig }(gpuCount)

	t.Run("no request selects cpu", func(t *testing.T) {
		d, fellBack := SelectDevice(nil)
		if d != CPUDevice || fellBack {
			t.Errorf("got %v fellBack=%v, want cpu without fallback", d, fellBack)
		}
	})

	t.Run("missing gpu falls back to cpu", func(t *testing.T) {
		gpuCount = func() int { return 0 }
		if IsGPUAvailable() {
			t.Error("no GPU should be reported without devices")
		}
		n := 1
		d, fellBack := SelectDevice(&n)
		if d != CPUDevice || !fellBack {
			t.Errorf("got %v fellBack=%v, want cpu with fallback", d, fellBack)
		}
	})

	t.Run("available gpu is selected", func(t *testing.T) {
		gpuCount = func() int { return 2 }
		if !IsGPUAvailable() {
			t.Error("GPU should be reported when devices exist")
		}
		n := 1
		d, fellBack := SelectDevice(&n)
		if d.Type != GPU || d.Index != 1 || fellBack {
			t.Errorf("got %v fellBack=%v, want cuda:1", d, fellBack)
		}
		if d.String() != "cuda:1" {
			t.Errorf("String() = %q", d.String())
		}
	})
}
