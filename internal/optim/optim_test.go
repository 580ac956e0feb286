package optim_test

import (
	"math"
	"testing"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/tensor"
)

type stack = *autodiff.Backend[*cpu.Backend]

func floatEqual(a, b, eps float32) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < eps
}

func paramWith(t *testing.T, backend stack, values ...float32) *nn.Parameter[stack] {
	t.Helper()
	x, err := tensor.FromSlice(values, tensor.Shape{len(values)}, backend)
	if err != nil {
		t.Fatalf("FromSlice failed: %v", err)
	}
	return nn.NewParameter("x", x)
}

func gradOf(t *testing.T, param *nn.Parameter[stack], values ...float32) map[*tensor.RawTensor]*tensor.RawTensor {
	t.Helper()
	grad, err := tensor.NewRaw(param.Tensor().Shape(), tensor.Float32, tensor.CPU)
	if err != nil {
		t.Fatalf("NewRaw failed: %v", err)
	}
	copy(grad.AsFloat32(), values)
	return map[*tensor.RawTensor]*tensor.RawTensor{param.Tensor().Raw(): grad}
}

// TestSGD_SimpleUpdate verifies x -= lr * grad.
func TestSGD_SimpleUpdate(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 2.0)

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{param}, optim.SGDConfig{LR: 0.1}, backend)
	optimizer.Step(gradOf(t, param, 1.0))

	// 2.0 - 0.1*1.0 = 1.9
	if got := param.Tensor().Data()[0]; !floatEqual(got, 1.9, 1e-6) {
		t.Errorf("SGD update: got %f, want 1.9", got)
	}
}

// TestSGD_WithMomentum verifies the velocity recurrence over two steps.
func TestSGD_WithMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// v1 = 1.0; x1 = 1.0 - 0.1*1.0 = 0.9
	optimizer.Step(gradOf(t, param, 1.0))
	if got := param.Tensor().Data()[0]; !floatEqual(got, 0.9, 1e-6) {
		t.Errorf("momentum step 1: got %f, want 0.9", got)
	}

	// v2 = 0.9*1.0 + 1.0 = 1.9; x2 = 0.9 - 0.1*1.9 = 0.71
	optimizer.Step(gradOf(t, param, 1.0))
	if got := param.Tensor().Data()[0]; !floatEqual(got, 0.71, 1e-5) {
		t.Errorf("momentum step 2: got %f, want 0.71", got)
	}
}

// TestSGD_SkipsParamsWithoutGrad verifies untouched parameters stay put.
func TestSGD_SkipsParamsWithoutGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	withGrad := paramWith(t, backend, 1.0)
	without := paramWith(t, backend, 5.0)

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{withGrad, without},
		optim.SGDConfig{LR: 0.5}, backend)
	optimizer.Step(gradOf(t, withGrad, 2.0))

	if got := withGrad.Tensor().Data()[0]; !floatEqual(got, 0, 1e-6) {
		t.Errorf("param with grad: got %f, want 0", got)
	}
	if got := without.Tensor().Data()[0]; got != 5.0 {
		t.Errorf("param without grad moved to %f", got)
	}
}

// TestSGD_ZeroGrad verifies gradients are cleared.
func TestSGD_ZeroGrad(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	grad, _ := tensor.FromSlice([]float32{5}, tensor.Shape{1}, backend)
	param.SetGrad(grad)
	if param.Grad() == nil {
		t.Fatal("grad should be set")
	}

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{param}, optim.SGDConfig{LR: 0.1}, backend)
	optimizer.ZeroGrad()

	if param.Grad() != nil {
		t.Error("grad should be nil after ZeroGrad")
	}
}

// TestSGD_LR verifies getter and setter.
func TestSGD_LR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{param}, optim.SGDConfig{LR: 0.01}, backend)
	if got := optimizer.GetLR(); got != 0.01 {
		t.Errorf("GetLR() = %f, want 0.01", got)
	}
	optimizer.SetLR(0.002)
	if got := optimizer.GetLR(); got != 0.002 {
		t.Errorf("GetLR() after SetLR = %f, want 0.002", got)
	}
}

// TestSGD_DefaultLR verifies the zero config takes 0.01.
func TestSGD_DefaultLR(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{param}, optim.SGDConfig{}, backend)
	if got := optimizer.GetLR(); got != 0.01 {
		t.Errorf("default LR = %f, want 0.01", got)
	}
}

// TestSGD_StateDictRoundTrip verifies velocity buffers survive a
// save/restore cycle.
func TestSGD_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	src := optim.NewSGD([]*nn.Parameter[stack]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	src.Step(gradOf(t, param, 2.0))

	state := src.StateDict()
	if len(state) != 1 {
		t.Fatalf("state dict has %d entries, want 1", len(state))
	}

	dst := optim.NewSGD([]*nn.Parameter[stack]{param},
		optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	if err := dst.LoadStateDict(state); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}

	restored := dst.StateDict()
	for key, raw := range state {
		got := restored[key]
		if got == nil {
			t.Fatalf("restored state missing %q", key)
		}
		if got.AsFloat32()[0] != raw.AsFloat32()[0] {
			t.Errorf("velocity %q = %f, want %f", key, got.AsFloat32()[0], raw.AsFloat32()[0])
		}
	}
}

// TestSGD_StateDictEmptyWithoutMomentum verifies plain SGD is stateless.
func TestSGD_StateDictEmptyWithoutMomentum(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	optimizer := optim.NewSGD([]*nn.Parameter[stack]{param}, optim.SGDConfig{LR: 0.1}, backend)
	optimizer.Step(gradOf(t, param, 1.0))

	if got := len(optimizer.StateDict()); got != 0 {
		t.Errorf("momentum-free SGD state dict has %d entries, want 0", got)
	}
}

// TestAdam_FirstStep verifies the bias-corrected first update.
func TestAdam_FirstStep(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	optimizer := optim.NewAdam([]*nn.Parameter[stack]{param}, optim.AdamConfig{LR: 0.001}, backend)
	optimizer.Step(gradOf(t, param, 0.5))

	// First step with any nonzero gradient:
	// mHat = g, vHat = g² after bias correction, so
	// x -= lr * g / (|g| + eps) ≈ lr * sign(g).
	want := float32(1.0 - 0.001)
	if got := param.Tensor().Data()[0]; !floatEqual(got, want, 1e-5) {
		t.Errorf("Adam first step: got %f, want %f", got, want)
	}
	if optimizer.Timestep() != 1 {
		t.Errorf("Timestep() = %d, want 1", optimizer.Timestep())
	}
}

// TestAdam_Defaults verifies the standard hyperparameters.
func TestAdam_Defaults(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	optimizer := optim.NewAdam([]*nn.Parameter[stack]{param}, optim.AdamConfig{}, backend)
	if got := optimizer.GetLR(); got != 0.001 {
		t.Errorf("default LR = %f, want 0.001", got)
	}
}

// TestAdam_ConvergesOnQuadratic verifies repeated steps shrink |x| for
// f(x) = x², whose gradient is 2x.
func TestAdam_ConvergesOnQuadratic(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 3.0)

	optimizer := optim.NewAdam([]*nn.Parameter[stack]{param}, optim.AdamConfig{LR: 0.1}, backend)

	for i := 0; i < 200; i++ {
		x := param.Tensor().Data()[0]
		optimizer.Step(gradOf(t, param, 2*x))
	}

	if got := param.Tensor().Data()[0]; math.Abs(float64(got)) > 0.5 {
		t.Errorf("after 200 Adam steps x = %f, want near 0", got)
	}
}

// TestAdam_StateDictRoundTrip verifies moments and the timestep survive a
// save/restore cycle, so resumed runs keep their bias correction.
func TestAdam_StateDictRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0)

	src := optim.NewAdam([]*nn.Parameter[stack]{param}, optim.AdamConfig{LR: 0.01}, backend)
	for i := 0; i < 3; i++ {
		src.Step(gradOf(t, param, 1.0))
	}

	state := src.StateDict()
	// m.0, v.0, and the timestep.
	if len(state) != 3 {
		t.Fatalf("state dict has %d entries, want 3", len(state))
	}
	if _, ok := state["t"]; !ok {
		t.Fatal("state dict missing timestep entry")
	}

	dst := optim.NewAdam([]*nn.Parameter[stack]{param}, optim.AdamConfig{LR: 0.01}, backend)
	if err := dst.LoadStateDict(state); err != nil {
		t.Fatalf("LoadStateDict failed: %v", err)
	}
	if dst.Timestep() != 3 {
		t.Errorf("restored Timestep() = %d, want 3", dst.Timestep())
	}
}

// TestAdam_LoadStateDictRejectsBadShapes verifies validation precedes any
// buffer replacement.
func TestAdam_LoadStateDictRejectsBadShapes(t *testing.T) {
	backend := autodiff.New(cpu.New())
	param := paramWith(t, backend, 1.0, 2.0)

	optimizer := optim.NewAdam([]*nn.Parameter[stack]{param}, optim.AdamConfig{}, backend)
	optimizer.Step(gradOf(t, param, 1.0, 1.0))

	bad := optimizer.StateDict()
	wrong, _ := tensor.NewRaw(tensor.Shape{5}, tensor.Float32, tensor.CPU)
	bad["m.0"] = wrong

	if err := optimizer.LoadStateDict(bad); err == nil {
		t.Error("LoadStateDict with wrong shape should fail")
	}
}

// TestInterfaces verifies both optimizers satisfy Optimizer and Stateful.
func TestInterfaces(_ *testing.T) {
	var _ optim.Optimizer = (*optim.SGD[stack])(nil)
	var _ optim.Optimizer = (*optim.Adam[stack])(nil)
	var _ optim.Stateful = (*optim.SGD[stack])(nil)
	var _ optim.Stateful = (*optim.Adam[stack])(nil)
}
