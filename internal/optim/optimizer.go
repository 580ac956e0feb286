// Package optim implements the optimization algorithms used for training:
// SGD with momentum and Adam.
//
// Example:
//
//	optimizer := optim.NewAdam(model.Parameters(), optim.AdamConfig{LR: 0.001}, backend)
//
//	for step := range steps {
//	    loss := criterion.Forward(model.Forward(batch), targets)
//	    grads := autodiff.Backward(loss, backend)
//	    optimizer.Step(grads)
//	    optimizer.ZeroGrad()
//	    backend.Tape().Clear()
//	}
package optim

import (
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// Optimizer updates model parameters from a gradient map.
type Optimizer interface {
	// Step applies one update using the gradient map from a backward
	// pass. Parameters without an entry in the map are skipped.
	Step(grads map[*tensor.RawTensor]*tensor.RawTensor)

	// ZeroGrad clears the gradient slot on every managed parameter.
	ZeroGrad()

	// GetLR returns the current learning rate.
	GetLR() float32
}

// Stateful is implemented by optimizers with internal buffers worth
// checkpointing (momentum velocities, Adam moments). The state dict uses
// the same name → tensor shape as module state dicts, so both travel
// through the same serialization path.
type Stateful interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Config holds settings common to all optimizers.
type Config struct {
	LR float32
}

// getGradient looks up the gradient for a parameter, or nil when the
// parameter did not participate in the recorded graph.
func getGradient[B tensor.Backend](param *nn.Parameter[B], grads map[*tensor.RawTensor]*tensor.RawTensor) *tensor.RawTensor {
	if param == nil {
		return nil
	}
	return grads[param.Tensor().Raw()]
}
