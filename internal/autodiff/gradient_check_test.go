package autodiff_test

import (
	"math"
	"testing"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/tensor"
)

// numericalGradient estimates df/dx with central differences.
func numericalGradient(f func(float32) float32, x, epsilon float32) float32 {
	return (f(x+epsilon) - f(x-epsilon)) / (2 * epsilon)
}

// checkUnaryGradient compares the tape gradient of a single-input op
// against a finite-difference estimate at several points.
func checkUnaryGradient(
	t *testing.T,
	name string,
	op func(b *autodiff.Backend[*cpu.Backend], x *tensor.RawTensor) *tensor.RawTensor,
	ref func(float32) float32,
	points []float32,
) {
	t.Helper()

	for _, point := range points {
		backend := autodiff.New(cpu.New())
		backend.Tape().StartRecording()

		x, _ := tensor.FromSlice([]float32{point}, tensor.Shape{1}, backend)
		y := op(backend, x.Raw())

		grads := autodiff.Backward(tensor.New[float32](y, backend), backend)
		tapeGrad := grads[x.Raw()].AsFloat32()[0]

		numGrad := numericalGradient(ref, point, 1e-3)

		if math.Abs(float64(tapeGrad-numGrad)) > 1e-2 {
			t.Errorf("%s at %f: tape grad %f, numerical grad %f", name, point, tapeGrad, numGrad)
		}
	}
}

// TestGradientCheck_Sigmoid verifies the sigmoid gradient numerically.
func TestGradientCheck_Sigmoid(t *testing.T) {
	sigmoid := func(v float32) float32 {
		return float32(1 / (1 + math.Exp(-float64(v))))
	}
	checkUnaryGradient(t, "sigmoid",
		func(b *autodiff.Backend[*cpu.Backend], x *tensor.RawTensor) *tensor.RawTensor {
			return b.Sigmoid(x)
		},
		sigmoid,
		[]float32{-2, -0.5, 0, 0.5, 2},
	)
}

// TestGradientCheck_Tanh verifies the tanh gradient numerically.
func TestGradientCheck_Tanh(t *testing.T) {
	checkUnaryGradient(t, "tanh",
		func(b *autodiff.Backend[*cpu.Backend], x *tensor.RawTensor) *tensor.RawTensor {
			return b.Tanh(x)
		},
		func(v float32) float32 { return float32(math.Tanh(float64(v))) },
		[]float32{-1.5, -0.25, 0, 0.25, 1.5},
	)
}

// TestGradientCheck_Log verifies the log gradient numerically.
func TestGradientCheck_Log(t *testing.T) {
	checkUnaryGradient(t, "log",
		func(b *autodiff.Backend[*cpu.Backend], x *tensor.RawTensor) *tensor.RawTensor {
			return b.Log(x)
		},
		func(v float32) float32 { return float32(math.Log(float64(v))) },
		[]float32{0.5, 1, 2, 5},
	)
}

// TestGradientCheck_CrossEntropy perturbs each logit and compares the
// analytic gradient against finite differences of the scalar loss.
func TestGradientCheck_CrossEntropy(t *testing.T) {
	logitsData := []float32{0.5, -0.2, 1.3, 0.1, 2.0, -1.0}
	targetsData := []int32{2, 1}
	epsilon := float32(1e-2)

	lossAt := func(data []float32) float32 {
		backend := autodiff.New(cpu.New())
		logits, _ := tensor.FromSlice(data, tensor.Shape{2, 3}, backend)
		targets, _ := tensor.FromSlice(targetsData, tensor.Shape{2}, backend)
		loss := backend.CrossEntropy(logits.Raw(), targets.Raw())
		return loss.AsFloat32()[0]
	}

	// Analytic gradient.
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	logits, _ := tensor.FromSlice(logitsData, tensor.Shape{2, 3}, backend)
	targets, _ := tensor.FromSlice(targetsData, tensor.Shape{2}, backend)
	loss := backend.CrossEntropy(logits.Raw(), targets.Raw())
	grads := autodiff.Backward(tensor.New[float32](loss, backend), backend)
	analytic := grads[logits.Raw()].AsFloat32()

	for i := range logitsData {
		plus := make([]float32, len(logitsData))
		minus := make([]float32, len(logitsData))
		copy(plus, logitsData)
		copy(minus, logitsData)
		plus[i] += epsilon
		minus[i] -= epsilon

		numerical := (lossAt(plus) - lossAt(minus)) / (2 * epsilon)

		if math.Abs(float64(analytic[i]-numerical)) > 1e-2 {
			t.Errorf("logit %d: analytic grad %f, numerical grad %f", i, analytic[i], numerical)
		}
	}
}

// TestGradientCheck_LinearLayer verifies gradients flow through
// matmul + broadcast bias add, the core of a dense layer.
func TestGradientCheck_LinearLayer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	backend.Tape().StartRecording()

	// y = x @ w + b with x [1,2], w [2,2], b [1,2].
	x, _ := tensor.FromSlice([]float32{1, 2}, tensor.Shape{1, 2}, backend)
	w, _ := tensor.FromSlice([]float32{0.5, -0.5, 1, 2}, tensor.Shape{2, 2}, backend)
	b, _ := tensor.FromSlice([]float32{0.1, -0.1}, tensor.Shape{1, 2}, backend)

	xw := backend.MatMul(x.Raw(), w.Raw())
	y := backend.Add(xw, b.Raw())

	grads := autodiff.Backward(tensor.New[float32](y, backend), backend)

	// With upstream gradient of ones:
	// dL/dw[k,j] = x[0,k], dL/db = ones, dL/dx[0,k] = sum_j w[k,j].
	wantW := []float32{1, 1, 2, 2}
	for i, v := range grads[w.Raw()].AsFloat32() {
		if math.Abs(float64(v-wantW[i])) > 1e-5 {
			t.Errorf("dL/dw[%d] = %f, want %f", i, v, wantW[i])
		}
	}

	gradB := grads[b.Raw()]
	if gradB == nil {
		t.Fatal("no gradient for bias")
	}
	for i, v := range gradB.AsFloat32() {
		if math.Abs(float64(v-1)) > 1e-5 {
			t.Errorf("dL/db[%d] = %f, want 1", i, v)
		}
	}

	wantX := []float32{0, 3}
	for i, v := range grads[x.Raw()].AsFloat32() {
		if math.Abs(float64(v-wantX[i])) > 1e-5 {
			t.Errorf("dL/dx[%d] = %f, want %f", i, v, wantX[i])
		}
	}
}
