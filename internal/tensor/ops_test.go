package tensor

import (
	"math"
	"testing"
)

func approx(t *testing.T, got, want, tol float32, name string) {
	t.Helper()
	if diff := math.Abs(float64(got - want)); diff > float64(tol) {
		t.Errorf("%s = %g, want %g (tolerance %g)", name, got, want, tol)
	}
}

func TestMatVec(t *testing.T) {
	m := NewMatFromData(2, 3, []float32{
		1, 2, 3,
		4, 5, 6,
	})
	x := []float32{1, 0, -1}
	dst := make([]float32, 2)

	MatVec(dst, &m, x)
	if dst[0] != -2 || dst[1] != -2 {
		t.Errorf("MatVec = %v, want [-2 -2]", dst)
	}

	MatVecBias(dst, &m, x, []float32{10, 20})
	if dst[0] != 8 || dst[1] != 18 {
		t.Errorf("MatVecBias = %v, want [8 18]", dst)
	}
}

func TestMatRow(t *testing.T) {
	m := NewMatFromData(3, 2, []float32{0, 1, 2, 3, 4, 5})
	row := m.Row(1)
	if row[0] != 2 || row[1] != 3 {
		t.Errorf("Row(1) = %v", row)
	}
}

func TestNewMatFromDataPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("no panic on length mismatch")
		}
	}()
	NewMatFromData(2, 2, []float32{1, 2, 3})
}

func TestAddMulDot(t *testing.T) {
	a := []float32{1, 2, 3}
	Add(a, []float32{1, 1, 1})
	if a[0] != 2 || a[1] != 3 || a[2] != 4 {
		t.Errorf("Add = %v", a)
	}
	Mul(a, []float32{2, 0, 1})
	if a[0] != 4 || a[1] != 0 || a[2] != 4 {
		t.Errorf("Mul = %v", a)
	}
	if got := Dot([]float32{1, 2}, []float32{3, 4}); got != 11 {
		t.Errorf("Dot = %g, want 11", got)
	}
}

func TestLayerNorm(t *testing.T) {
	src := []float32{1, 3}
	dst := make([]float32, 2)
	weight := []float32{1, 1}
	bias := []float32{0, 0}

	LayerNorm(dst, src, weight, bias, 0)
	// Mean 2, variance 1: normalized values are -1 and 1.
	approx(t, dst[0], -1, 1e-5, "dst[0]")
	approx(t, dst[1], 1, 1e-5, "dst[1]")

	LayerNorm(dst, src, []float32{2, 2}, []float32{1, 1}, 0)
	approx(t, dst[0], -1, 1e-5, "scaled dst[0]")
	approx(t, dst[1], 3, 1e-5, "scaled dst[1]")
}

func TestSoftmax(t *testing.T) {
	x := []float32{1, 1, 1, 1}
	Softmax(x)
	for _, v := range x {
		approx(t, v, 0.25, 1e-6, "uniform softmax")
	}

	// Large values must not overflow thanks to the max subtraction.
	y := []float32{1000, 1000}
	Softmax(y)
	approx(t, y[0], 0.5, 1e-6, "large softmax")

	var sum float32
	z := []float32{-2, 0, 3, 1}
	Softmax(z)
	for _, v := range z {
		if v < 0 || v > 1 {
			t.Errorf("softmax value %g out of [0,1]", v)
		}
		sum += v
	}
	approx(t, sum, 1, 1e-5, "softmax sum")
}

func TestGELU(t *testing.T) {
	if got := GELU(0); got != 0 {
		t.Errorf("GELU(0) = %g, want 0", got)
	}
	approx(t, GELU(100), 100, 1e-3, "GELU(100)")
	approx(t, GELU(-100), 0, 1e-3, "GELU(-100)")
	// Known value of the tanh approximation.
	approx(t, GELU(1), 0.841192, 1e-5, "GELU(1)")
}
