package nn_test

import (
	"math"
	"testing"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

func assertClose(t *testing.T, got, want []float32, eps float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("length %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(float64(got[i]-want[i])) > eps {
			t.Errorf("value[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

// TestReLU_Forward verifies clamping at zero.
func TestReLU_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	input, _ := tensor.FromSlice([]float32{-2, -0.1, 0, 0.1, 2}, tensor.Shape{5}, backend)
	output := nn.NewReLU[*autodiff.Backend[*cpu.Backend]]().Forward(input)

	assertClose(t, output.Data(), []float32{0, 0, 0, 0.1, 2}, 0)
}

// TestSigmoid_Forward verifies known sigmoid values.
func TestSigmoid_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	input, _ := tensor.FromSlice([]float32{0, 2, -2}, tensor.Shape{3}, backend)
	output := nn.NewSigmoid[*autodiff.Backend[*cpu.Backend]]().Forward(input)

	assertClose(t, output.Data(), []float32{0.5, 0.8808, 0.1192}, 1e-3)
}

// TestTanh_Forward verifies known tanh values.
func TestTanh_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	input, _ := tensor.FromSlice([]float32{0, 1, -1}, tensor.Shape{3}, backend)
	output := nn.NewTanh[*autodiff.Backend[*cpu.Backend]]().Forward(input)

	assertClose(t, output.Data(), []float32{0, 0.7616, -0.7616}, 1e-3)
}

// TestLogSoftmax_Forward verifies log-probabilities sum to one after exp.
func TestLogSoftmax_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	input, _ := tensor.FromSlice([]float32{1, 2, 3, 5, 5, 5}, tensor.Shape{2, 3}, backend)
	output := nn.NewLogSoftmax[*autodiff.Backend[*cpu.Backend]]().Forward(input)

	data := output.Data()
	for row := 0; row < 2; row++ {
		var sum float64
		for col := 0; col < 3; col++ {
			sum += math.Exp(float64(data[row*3+col]))
		}
		if math.Abs(sum-1) > 1e-4 {
			t.Errorf("exp(logsoftmax) row %d sums to %f, want 1", row, sum)
		}
	}

	// Uniform row: log(1/3).
	want := float32(math.Log(1.0 / 3.0))
	for col := 0; col < 3; col++ {
		if math.Abs(float64(data[3+col]-want)) > 1e-4 {
			t.Errorf("uniform row[%d] = %f, want %f", col, data[3+col], want)
		}
	}
}

// TestActivations_FallbackMatchesCapability verifies the plain CPU
// fallback path computes the same values as the autodiff capability path.
func TestActivations_FallbackMatchesCapability(t *testing.T) {
	data := []float32{-1.5, -0.3, 0, 0.3, 1.5, 4}

	ad := autodiff.New(cpu.New())
	plain := cpu.New()

	adIn, _ := tensor.FromSlice(data, tensor.Shape{6}, ad)
	plainIn, _ := tensor.FromSlice(data, tensor.Shape{6}, plain)

	t.Run("relu", func(t *testing.T) {
		viaAD := nn.NewReLU[*autodiff.Backend[*cpu.Backend]]().Forward(adIn)
		viaCPU := nn.NewReLU[*cpu.Backend]().Forward(plainIn)
		assertClose(t, viaCPU.Data(), viaAD.Data(), 1e-6)
	})

	t.Run("sigmoid", func(t *testing.T) {
		viaAD := nn.NewSigmoid[*autodiff.Backend[*cpu.Backend]]().Forward(adIn)
		viaCPU := nn.NewSigmoid[*cpu.Backend]().Forward(plainIn)
		assertClose(t, viaCPU.Data(), viaAD.Data(), 1e-5)
	})

	t.Run("tanh", func(t *testing.T) {
		viaAD := nn.NewTanh[*autodiff.Backend[*cpu.Backend]]().Forward(adIn)
		viaCPU := nn.NewTanh[*cpu.Backend]().Forward(plainIn)
		assertClose(t, viaCPU.Data(), viaAD.Data(), 1e-5)
	})
}

// TestActivations_NoParameters verifies activations are stateless.
func TestActivations_NoParameters(t *testing.T) {
	relu := nn.NewReLU[*cpu.Backend]()
	if len(relu.Parameters()) != 0 {
		t.Error("ReLU should have no parameters")
	}
	if len(relu.StateDict()) != 0 {
		t.Error("ReLU state dict should be empty")
	}
	if err := relu.LoadStateDict(nil); err != nil {
		t.Errorf("ReLU LoadStateDict(nil) = %v, want nil", err)
	}
}
