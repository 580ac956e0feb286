package nn

import (
	"fmt"
	"math/rand"

	"github.com/ember-ml/ember/internal/tensor"
)

// Dropout randomly zeroes elements during training with probability p and
// scales survivors by 1/(1-p), so activation magnitudes match between
// training and evaluation (inverted dropout). In eval mode Forward returns
// its input unchanged.
//
// The mask is applied with a tensor multiply, so on an autodiff backend the
// multiplication is recorded and gradients flow through the surviving
// elements automatically.
type Dropout[B tensor.Backend] struct {
	p        float32
	training bool
	rng      *rand.Rand
}

// NewDropout creates a Dropout module with drop probability p in [0, 1).
func NewDropout[B tensor.Backend](p float32) *Dropout[B] {
	return NewDropoutSeeded[B](p, nil)
}

// NewDropoutSeeded is NewDropout drawing masks from rng, or the shared
// source when rng is nil. A seeded rng makes training runs reproducible.
func NewDropoutSeeded[B tensor.Backend](p float32, rng *rand.Rand) *Dropout[B] {
	if p < 0 || p >= 1 {
		panic(fmt.Sprintf("Dropout: probability must be in [0, 1), got %v", p))
	}
	return &Dropout[B]{
		p:        p,
		training: true,
		rng:      rng,
	}
}

// Forward applies the dropout mask in training mode; identity in eval mode.
func (d *Dropout[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if !d.training || d.p == 0 {
		return input
	}

	mask := tensor.Zeros[float32, B](input.Shape(), input.Backend())
	maskData := mask.Data()
	keepScale := 1.0 / (1.0 - d.p)

	uniform := rand.Float32
	if d.rng != nil {
		uniform = d.rng.Float32
	}
	for i := range maskData {
		if uniform() >= d.p {
			maskData[i] = keepScale
		}
	}

	return input.Mul(mask)
}

// P returns the drop probability.
func (d *Dropout[B]) P() float32 { return d.p }

// Train puts the module in training mode (masking active).
func (d *Dropout[B]) Train() { d.training = true }

// Eval puts the module in evaluation mode (identity).
func (d *Dropout[B]) Eval() { d.training = false }

// Training reports whether the module is in training mode.
func (d *Dropout[B]) Training() bool { return d.training }

// Parameters returns nil (dropout is parameterless).
func (d *Dropout[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (d *Dropout[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return map[string]*tensor.Tensor[float32, B]{}
}

// LoadStateDict is a no-op.
func (d *Dropout[B]) LoadStateDict(map[string]*tensor.Tensor[float32, B]) error { return nil }
