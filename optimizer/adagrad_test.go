package optimizer

import (
	"math"
	"strings"
	"testing"

	"github.com/tsawler/go-moli/tensor"
)

func param(t *testing.T, data ...float64) *tensor.Tensor {
	t.Helper()
	p, err := tensor.NewTensor([]int{len(data)}, tensor.CPU, data)
	if err != nil {
		t.Fatalf("NewTensor failed: %v", err)
	}
	p.SetRequiresGrad(true)
	return p
}

// backwardSquare accumulates d/dw sum(w^2) = 2w into p.
func backwardSquare(t *testing.T, p *tensor.Tensor) {
	t.Helper()
	sq, err := tensor.MulAutograd(p, p)
	if err != nil {
		t.Fatalf("mul failed: %v", err)
	}
	loss, err := tensor.MeanAutograd(sq)
	if err != nil {
		t.Fatalf("mean failed: %v", err)
	}
	scaled, err := tensor.ScaleAutograd(loss, float64(p.NumElems))
	if err != nil {
		t.Fatalf("scale failed: %v", err)
	}
	if err := scaled.Backward(); err != nil {
		t.Fatalf("backward failed: %v", err)
	}
}

func TestAdaGradStep(t *testing.T) {
	t.Run("first step moves each weight by lr", func(t *testing.T) {
		p := param(t, 1.0, -2.0)
		opt, err := NewAdaGrad([]*tensor.Tensor{p}, AdaGradConfig{LearningRate: 0.1})
		if err != nil {
			t.Fatalf("NewAdaGrad failed: %v", err)
		}
		backwardSquare(t, p)
		if err := opt.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		// g / sqrt(g^2) = sign(g)
		want := []float64{0.9, -1.9}
		for i := range want {
			if math.Abs(p.Data[i]-want[i]) > 1e-9 {
				t.Errorf("w[%d] = %v, want %v", i, p.Data[i], want[i])
			}
		}
		if opt.GetStepCount() != 1 {
			t.Errorf("step count = %d, want 1", opt.GetStepCount())
		}
	})

	t.Run("steps shrink as squared gradients accumulate", func(t *testing.T) {
		p := param(t, 5.0)
		opt, _ := NewAdaGrad([]*tensor.Tensor{p}, AdaGradConfig{LearningRate: 0.5})
		prev := p.Data[0]
		prevDelta := math.Inf(1)
		for i := 0; i < 5; i++ {
			opt.ZeroGrad()
			backwardSquare(t, p)
			if err := opt.Step(); err != nil {
				t.Fatalf("Step failed: %v", err)
			}
			delta := prev - p.Data[0]
			if delta <= 0 || delta >= prevDelta {
				t.Fatalf("step %d moved by %v after %v", i, delta, prevDelta)
			}
			prev, prevDelta = p.Data[0], delta
		}
	})

	t.Run("weight decay adds to the gradient", func(t *testing.T) {
		p := param(t, 1.0)
		opt, _ := NewAdaGrad([]*tensor.Tensor{p}, AdaGradConfig{LearningRate: 0.1, WeightDecay: 1})
		zero, _ := tensor.Zeros([]int{1}, tensor.CPU)
		l, _ := tensor.MulAutograd(p, zero)
		l, _ = tensor.MeanAutograd(l)
		if err := l.Backward(); err != nil {
			t.Fatalf("backward failed: %v", err)
		}
		if err := opt.Step(); err != nil {
			t.Fatalf("Step failed: %v", err)
		}
		if math.Abs(p.Data[0]-0.9) > 1e-9 {
			t.Errorf("w = %v, want 0.9 from decay alone", p.Data[0])
		}
	})

	t.Run("rejects bad configuration", func(t *testing.T) {
		p := param(t, 1)
		if _, err := NewAdaGrad([]*tensor.Tensor{p}, AdaGradConfig{}); err == nil {
			t.Error("expected error for zero learning rate")
		}
		if _, err := NewAdaGrad(nil, DefaultAdaGradConfig()); err == nil {
			t.Error("expected error for no parameters")
		}
		frozen, _ := tensor.Zeros([]int{1}, tensor.CPU)
		if _, err := NewAdaGrad([]*tensor.Tensor{frozen}, DefaultAdaGradConfig()); err == nil {
			t.Error("expected error for parameter without gradients")
		}
	})
}

func TestCheckDisjoint(t *testing.T) {
	a, b, c := param(t, 1), param(t, 2), param(t, 3)
	optA, _ := NewAdaGrad([]*tensor.Tensor{a, b}, DefaultAdaGradConfig())
	optB, _ := NewAdaGrad([]*tensor.Tensor{c}, DefaultAdaGradConfig())
	optC, _ := NewAdaGrad([]*tensor.Tensor{b}, DefaultAdaGradConfig())

	if err := CheckDisjoint(map[string]Optimizer{"a": optA, "b": optB}); err != nil {
		t.Errorf("unexpected overlap: %v", err)
	}
	if err := CheckDisjoint(map[string]Optimizer{"a": optA, "c": optC}); err == nil {
		t.Error("expected shared parameter to be reported")
	}

	// Owners are visited in name order whatever the map iteration order.
	for i := 0; i < 20; i++ {
		err := CheckDisjoint(map[string]Optimizer{"z": optC, "b": optB, "a": optA})
		if err == nil || !strings.Contains(err.Error(), `optimizers "a" and "z"`) {
			t.Fatalf("got %v, want the overlap reported between a and z", err)
		}
	}
}

func TestAdaGradStats(t *testing.T) {
	p := param(t, 1.0)
	opt, _ := NewAdaGrad([]*tensor.Tensor{p}, AdaGradConfig{LearningRate: 0.2, Epsilon: 1e-8, WeightDecay: 0.01})
	backwardSquare(t, p)
	if err := opt.Step(); err != nil {
		t.Fatalf("Step failed: %v", err)
	}
	stats := opt.GetStats()
	if stats["step"] != uint64(1) {
		t.Errorf("step = %v, want 1", stats["step"])
	}
	if stats["learning_rate"] != 0.2 || stats["epsilon"] != 1e-8 || stats["weight_decay"] != 0.01 {
		t.Errorf("stats %v do not match the configuration", stats)
	}
}
