// Package ops defines the differentiable operations recorded by the
// gradient tape. Each operation captures its inputs and output during the
// forward pass and knows how to turn an output gradient into input
// gradients during the backward pass.
package ops

import "github.com/ember-ml/ember/internal/tensor"

// Operation is one node of the recorded computation graph.
type Operation interface {
	// Backward computes gradients for the inputs given the output gradient.
	// The returned slice is parallel to Inputs().
	Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor

	// Inputs returns the input tensors of this operation.
	Inputs() []*tensor.RawTensor

	// Output returns the tensor this operation produced.
	Output() *tensor.RawTensor
}
