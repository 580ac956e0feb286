// Copyright 2026 The Ember Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn provides the public API for Ember's neural network layers,
// losses, and the configurable classifier.
package nn

import (
	"math/rand"

	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/tensor"
)

// Module is the common interface for all network building blocks.
type Module[B tensor.Backend] = nn.Module[B]

// Parameter is a named trainable tensor.
type Parameter[B tensor.Backend] = nn.Parameter[B]

// NewParameter creates a parameter with the given name and tensor.
func NewParameter[B tensor.Backend](name string, t *tensor.Tensor[float32, B]) *Parameter[B] {
	return nn.NewParameter(name, t)
}

// Layers

// Linear is a fully connected layer computing y = x @ Wᵀ + b.
type Linear[B tensor.Backend] = nn.Linear[B]

// NewLinear creates a linear layer with Xavier-uniform initialization.
//
// Example:
//
//	layer := nn.NewLinear(784, 128, backend)
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return nn.NewLinear(inFeatures, outFeatures, backend)
}

// ReLU is the rectified linear activation.
type ReLU[B tensor.Backend] = nn.ReLU[B]

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return nn.NewReLU[B]()
}

// Sigmoid is the logistic activation.
type Sigmoid[B tensor.Backend] = nn.Sigmoid[B]

// NewSigmoid creates a Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return nn.NewSigmoid[B]()
}

// Tanh is the hyperbolic tangent activation.
type Tanh[B tensor.Backend] = nn.Tanh[B]

// NewTanh creates a Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return nn.NewTanh[B]()
}

// LogSoftmax computes log-probabilities over the last dimension.
type LogSoftmax[B tensor.Backend] = nn.LogSoftmax[B]

// NewLogSoftmax creates a LogSoftmax module.
func NewLogSoftmax[B tensor.Backend]() *LogSoftmax[B] {
	return nn.NewLogSoftmax[B]()
}

// Dropout randomly zeroes activations during training.
type Dropout[B tensor.Backend] = nn.Dropout[B]

// NewDropout creates a Dropout module with drop probability p.
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	return nn.NewDropout[B](p)
}

// Sequential chains modules in order.
type Sequential[B tensor.Backend] = nn.Sequential[B]

// NewSequential creates a Sequential container.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return nn.NewSequential(modules...)
}

// Losses

// CrossEntropyLoss is the fused softmax + NLL classification loss.
type CrossEntropyLoss[B tensor.Backend] = nn.CrossEntropyLoss[B]

// NewCrossEntropyLoss creates a cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return nn.NewCrossEntropyLoss(backend)
}

// NLLLoss is the negative log-likelihood loss over log-probabilities.
type NLLLoss[B tensor.Backend] = nn.NLLLoss[B]

// NewNLLLoss creates an NLL loss function.
func NewNLLLoss[B tensor.Backend](backend B) *NLLLoss[B] {
	return nn.NewNLLLoss(backend)
}

// MSELoss is mean squared error for regression targets.
type MSELoss[B tensor.Backend] = nn.MSELoss[B]

// NewMSELoss creates an MSE loss function.
func NewMSELoss[B tensor.Backend](backend B) *MSELoss[B] {
	return nn.NewMSELoss(backend)
}

// Accuracy computes the fraction of rows whose argmax matches the target.
func Accuracy[B tensor.Backend](scores *tensor.Tensor[float32, B], targets *tensor.Tensor[int32, B]) float32 {
	return nn.Accuracy(scores, targets)
}

// Classifier

// Config describes a Classifier architecture.
type Config = nn.Config

// DefaultConfig returns the standard 784 → 256 → 128 → 64 → 10 MLP.
func DefaultConfig() Config {
	return nn.DefaultConfig()
}

// Classifier is a configurable multi-layer perceptron.
type Classifier[B tensor.Backend] = nn.Classifier[B]

// NewClassifier builds a classifier from cfg.
func NewClassifier[B tensor.Backend](cfg Config, backend B) (*Classifier[B], error) {
	return nn.NewClassifier[B](cfg, backend)
}

// NewClassifierFrom is NewClassifier with weights drawn from rng for
// reproducible runs.
func NewClassifierFrom[B tensor.Backend](cfg Config, backend B, rng *rand.Rand) (*Classifier[B], error) {
	return nn.NewClassifierFrom[B](cfg, backend, rng)
}

// Checkpointing

// OptimizerState is implemented by optimizers whose buffers ride along
// in checkpoints.
type OptimizerState = nn.OptimizerState

// Checkpoint bundles model, optimizer state, and training progress.
type Checkpoint[B tensor.Backend] = nn.Checkpoint[B]

// LoadedCheckpoint is a checkpoint read back from disk.
type LoadedCheckpoint[B tensor.Backend] = nn.LoadedCheckpoint[B]

// Load reads a checkpoint and rebuilds the model from its embedded
// architecture metadata.
func Load[B tensor.Backend](path string, backend B) (*LoadedCheckpoint[B], error) {
	return nn.Load[B](path, backend)
}

// LoadClassifier reads just the model from a checkpoint.
func LoadClassifier[B tensor.Backend](path string, backend B) (*Classifier[B], error) {
	return nn.LoadClassifier[B](path, backend)
}

// LoadStateInto restores a checkpoint's weights into an already built
// model, validating shapes before any parameter is touched.
func LoadStateInto[B tensor.Backend](model *Classifier[B], path string, backend B) error {
	return nn.LoadStateInto[B](model, path, backend)
}

// Errors

// Sentinel errors surfaced by state dict loading.
var (
	ErrMissingKey    = nn.ErrMissingKey
	ErrShapeMismatch = nn.ErrShapeMismatch
	ErrDTypeMismatch = nn.ErrDTypeMismatch
	ErrUnexpectedKey = nn.ErrUnexpectedKey
)
