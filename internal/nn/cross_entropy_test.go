package nn_test

import (
	"math"
	"testing"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// TestCrossEntropyLoss_Forward checks the loss against a hand-computed
// two-class case.
func TestCrossEntropyLoss_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	// log_softmax([2, 1]) = [-0.313, -1.313]; target 0 → loss 0.313.
	logits, _ := tensor.FromSlice([]float32{2, 1}, tensor.Shape{1, 2}, backend)
	targets, _ := tensor.FromSlice([]int32{0}, tensor.Shape{1}, backend)

	criterion := nn.NewCrossEntropyLoss(backend)
	loss := criterion.Forward(logits, targets)

	if got := loss.Item(); math.Abs(float64(got-0.3133)) > 1e-3 {
		t.Errorf("loss = %f, want 0.3133", got)
	}
}

// TestCrossEntropyLoss_Batch checks averaging over a batch where every
// prediction is confident and correct.
func TestCrossEntropyLoss_Batch(t *testing.T) {
	backend := autodiff.New(cpu.New())

	logits, _ := tensor.FromSlice([]float32{
		1, 2, 3,
		3, 1, 2,
		2, 3, 1,
	}, tensor.Shape{3, 3}, backend)
	targets, _ := tensor.FromSlice([]int32{2, 0, 1}, tensor.Shape{3}, backend)

	loss := nn.NewCrossEntropyLoss(backend).Forward(logits, targets)

	// Each row has the same logit pattern, so the batch mean equals the
	// single-row loss: -log_softmax([1,2,3])[2] ≈ 0.4076.
	if got := loss.Item(); math.Abs(float64(got-0.4076)) > 1e-3 {
		t.Errorf("batch loss = %f, want 0.4076", got)
	}
}

// TestCrossEntropyLoss_FallbackMatchesFused checks the plain-backend
// fallback computes the same value as the fused autodiff path.
func TestCrossEntropyLoss_FallbackMatchesFused(t *testing.T) {
	logitsData := []float32{0.2, -1, 2.5, 1.1, 0, -0.7}
	targetsData := []int32{2, 0}

	ad := autodiff.New(cpu.New())
	adLogits, _ := tensor.FromSlice(logitsData, tensor.Shape{2, 3}, ad)
	adTargets, _ := tensor.FromSlice(targetsData, tensor.Shape{2}, ad)
	fused := nn.NewCrossEntropyLoss(ad).Forward(adLogits, adTargets)

	plain := cpu.New()
	cpuLogits, _ := tensor.FromSlice(logitsData, tensor.Shape{2, 3}, plain)
	cpuTargets, _ := tensor.FromSlice(targetsData, tensor.Shape{2}, plain)
	fallback := nn.NewCrossEntropyLoss(plain).Forward(cpuLogits, cpuTargets)

	if math.Abs(float64(fused.Item()-fallback.Item())) > 1e-5 {
		t.Errorf("fused loss %f != fallback loss %f", fused.Item(), fallback.Item())
	}
}

// TestNLLLoss_AfterLogSoftmax checks NLL over log-probabilities equals
// cross-entropy over the raw logits.
func TestNLLLoss_AfterLogSoftmax(t *testing.T) {
	backend := autodiff.New(cpu.New())

	logitsData := []float32{1.5, -0.5, 0.3, 0.1, 0.2, 2}
	targetsData := []int32{0, 2}

	logits, _ := tensor.FromSlice(logitsData, tensor.Shape{2, 3}, backend)
	targets, _ := tensor.FromSlice(targetsData, tensor.Shape{2}, backend)

	ceLoss := nn.NewCrossEntropyLoss(backend).Forward(logits, targets)

	logits2, _ := tensor.FromSlice(logitsData, tensor.Shape{2, 3}, backend)
	logProbs := nn.NewLogSoftmax[*autodiff.Backend[*cpu.Backend]]().Forward(logits2)
	nllLoss := nn.NewNLLLoss(backend).Forward(logProbs, targets)

	if math.Abs(float64(ceLoss.Item()-nllLoss.Item())) > 1e-4 {
		t.Errorf("CE %f != LogSoftmax∘NLL %f", ceLoss.Item(), nllLoss.Item())
	}
}

// TestCrossEntropyLoss_ShapePanics checks malformed inputs are rejected.
func TestCrossEntropyLoss_ShapePanics(t *testing.T) {
	backend := autodiff.New(cpu.New())
	criterion := nn.NewCrossEntropyLoss(backend)

	logits, _ := tensor.FromSlice([]float32{1, 2, 3}, tensor.Shape{3}, backend)
	targets, _ := tensor.FromSlice([]int32{0}, tensor.Shape{1}, backend)

	defer func() {
		if recover() == nil {
			t.Error("1D logits should panic")
		}
	}()
	criterion.Forward(logits, targets)
}
