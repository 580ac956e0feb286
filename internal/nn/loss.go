package nn

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// MSELoss computes mean squared error, mean((predictions - targets)²).
// Used for regression targets; classification goes through
// CrossEntropyLoss instead.
type MSELoss[B tensor.Backend] struct {
	backend B
}

// NewMSELoss creates an MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return &MSELoss[B]{backend: backend}
}

// Forward computes the loss as a scalar tensor of shape [1].
//
// The difference and square are tensor ops, so they land on an autodiff
// tape; the final mean is computed directly.
func (m *MSELoss[B]) Forward(predictions, targets *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !predictions.Shape().Equal(targets.Shape()) {
		panic("MSELoss: predictions and targets must have the same shape")
	}

	diff := predictions.Sub(targets)
	squared := diff.Mul(diff)

	data := squared.Data()
	var sum float32
	for _, v := range data {
		sum += v
	}
	mean := sum / float32(len(data))

	loss := tensor.Zeros[float32, B](tensor.Shape{1}, m.backend)
	loss.Data()[0] = mean
	return loss
}

// Parameters returns nil (loss functions have no trainable parameters).
func (m *MSELoss[B]) Parameters() []*Parameter[B] {
	return nil
}
