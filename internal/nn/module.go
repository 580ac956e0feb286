// Package nn provides neural network building blocks: layers, activations,
// losses, and the configurable MLP classifier built from them.
package nn

import "github.com/ember-ml/ember/internal/tensor"

// Module is the interface implemented by every network building block.
//
// StateDict returns the module's tensors keyed by name; LoadStateDict is
// its inverse and must validate shapes and dtypes before touching any
// parameter, so a failed load leaves the module unchanged.
type Module[B tensor.Backend] interface {
	// Forward computes the module's output for the given input.
	Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B]

	// Parameters returns all trainable parameters of this module.
	Parameters() []*Parameter[B]

	// StateDict returns the module's state as name → tensor.
	StateDict() map[string]*tensor.Tensor[float32, B]

	// LoadStateDict restores the module's state from a state dict.
	LoadStateDict(state map[string]*tensor.Tensor[float32, B]) error
}

// Trainable is implemented by modules whose forward pass differs between
// training and evaluation, such as Dropout.
type Trainable interface {
	Train()
	Eval()
	Training() bool
}
