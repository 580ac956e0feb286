package nn

import (
	"fmt"
	"math/rand"

	"github.com/ember-ml/ember/internal/tensor"
)

// Linear is a fully connected layer computing y = x @ Wᵀ + b.
//
// The weight is stored as [outFeatures, inFeatures], so the forward pass
// transposes it. The bias is stored as [outFeatures] and reshaped to
// [1, outFeatures] so the addition broadcasts over the batch dimension.
type Linear[B tensor.Backend] struct {
	weight *Parameter[B]
	bias   *Parameter[B]

	inFeatures  int
	outFeatures int
	backend     B
}

// NewLinear creates a Linear layer with Xavier-uniform weights and zero bias.
func NewLinear[B tensor.Backend](inFeatures, outFeatures int, backend B) *Linear[B] {
	return NewLinearFrom(inFeatures, outFeatures, backend, nil)
}

// NewLinearFrom is NewLinear drawing the weight init from rng, or the
// shared source when rng is nil.
func NewLinearFrom[B tensor.Backend](inFeatures, outFeatures int, backend B, rng *rand.Rand) *Linear[B] {
	if inFeatures <= 0 || outFeatures <= 0 {
		panic(fmt.Sprintf("Linear: feature counts must be positive, got in=%d out=%d", inFeatures, outFeatures))
	}

	weight := XavierUniformFrom(tensor.Shape{outFeatures, inFeatures}, backend, rng)
	bias := ZerosInit(tensor.Shape{outFeatures}, backend)

	return &Linear[B]{
		weight:      NewParameter("weight", weight),
		bias:        NewParameter("bias", bias),
		inFeatures:  inFeatures,
		outFeatures: outFeatures,
		backend:     backend,
	}
}

// Forward computes y = x @ Wᵀ + b for input x of shape [batch, inFeatures].
func (l *Linear[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	shape := input.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("Linear: input must be 2D [batch, features], got %v", shape))
	}
	if shape[1] != l.inFeatures {
		panic(fmt.Sprintf("Linear: input has %d features, layer expects %d", shape[1], l.inFeatures))
	}

	output := input.MatMul(l.weight.Tensor().T())

	// [outFeatures] → [1, outFeatures] so the add broadcasts over rows.
	biasRow := l.bias.Tensor().Reshape(1, l.outFeatures)
	return output.Add(biasRow)
}

// Parameters returns the weight and bias.
func (l *Linear[B]) Parameters() []*Parameter[B] {
	return []*Parameter[B]{l.weight, l.bias}
}

// InFeatures returns the input feature count.
func (l *Linear[B]) InFeatures() int { return l.inFeatures }

// OutFeatures returns the output feature count.
func (l *Linear[B]) OutFeatures() int { return l.outFeatures }

// StateDict returns {"weight": W, "bias": b}.
func (l *Linear[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return map[string]*tensor.Tensor[float32, B]{
		"weight": l.weight.Tensor(),
		"bias":   l.bias.Tensor(),
	}
}

// LoadStateDict restores the weight and bias from a state dict. Every
// entry is validated before any parameter is written, so a bad dict
// leaves the layer unchanged.
func (l *Linear[B]) LoadStateDict(state map[string]*tensor.Tensor[float32, B]) error {
	entries := []struct {
		key   string
		param *Parameter[B]
	}{
		{"weight", l.weight},
		{"bias", l.bias},
	}

	for _, e := range entries {
		t, ok := state[e.key]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, e.key)
		}
		if !t.Shape().Equal(e.param.Tensor().Shape()) {
			return fmt.Errorf("%w: %q has shape %v, expected %v",
				ErrShapeMismatch, e.key, t.Shape(), e.param.Tensor().Shape())
		}
		if t.DType() != e.param.Tensor().DType() {
			return fmt.Errorf("%w: %q has dtype %s, expected %s",
				ErrDTypeMismatch, e.key, t.DType(), e.param.Tensor().DType())
		}
	}

	for _, e := range entries {
		copy(e.param.Tensor().Data(), state[e.key].Data())
	}
	return nil
}
