// Copyright 2026 The Ember Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package autodiff provides reverse-mode automatic differentiation by
// wrapping any compute backend with a gradient tape.
//
// Example:
//
//	backend := autodiff.New(cpu.New())
//	backend.GetTape().StartRecording()
//
//	logits := model.Forward(images)
//	loss := criterion.Forward(logits, labels)
//
//	grads := autodiff.Backward(loss, backend)
package autodiff

import (
	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/tensor"
)

// Backend wraps an inner backend and records differentiable operations.
type Backend[B tensor.Backend] = autodiff.Backend[B]

// New creates an autodiff backend wrapping inner.
func New[B tensor.Backend](inner B) *Backend[B] {
	return autodiff.New(inner)
}

// Tape records operations during the forward pass.
type Tape = autodiff.Tape

// NewTape creates an empty gradient tape.
func NewTape() *Tape {
	return autodiff.NewTape()
}

// BackwardCapable is satisfied by backends that own a gradient tape.
type BackwardCapable = autodiff.BackwardCapable

// Backward seeds the output gradient with ones and walks the tape in
// reverse, returning a gradient per participating tensor.
func Backward[T tensor.DType, B BackwardCapable](t *tensor.Tensor[T, B], backend B) map[*tensor.RawTensor]*tensor.RawTensor {
	return autodiff.Backward(t, backend)
}
