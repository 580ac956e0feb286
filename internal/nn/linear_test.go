package nn

import (
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/tensor"
)

// adBackend is the concrete training stack the tests run on.
type adBackend = *autodiff.Backend[*cpu.Backend]

// TestLinear_Forward checks y = x @ Wᵀ + b against a hand-computed case.
func TestLinear_Forward(t *testing.T) {
	backend := autodiff.New(cpu.New())

	layer := NewLinear(3, 2, backend)

	// Overwrite the random init with known values.
	// W [2,3] row-major, b [2].
	copy(layer.weight.Tensor().Data(), []float32{1, 0, -1, 0.5, 0.5, 0.5})
	copy(layer.bias.Tensor().Data(), []float32{1, -1})

	input, err := tensor.FromSlice([]float32{1, 2, 3, 4, 5, 6}, tensor.Shape{2, 3}, backend)
	require.NoError(t, err)

	output := layer.Forward(input)
	require.True(t, output.Shape().Equal(tensor.Shape{2, 2}),
		"output shape = %v, want [2 2]", output.Shape())

	// Row 0: [1*1+2*0+3*(-1)+1, 1*0.5+2*0.5+3*0.5-1] = [-1, 2]
	// Row 1: [4*1+5*0+6*(-1)+1, 4*0.5+5*0.5+6*0.5-1] = [-1, 6.5]
	want := []float32{-1, 2, -1, 6.5}
	for i, v := range output.Data() {
		assert.InDelta(t, want[i], v, 1e-5, "output[%d]", i)
	}
}

// TestLinear_XavierInit checks the init bound sqrt(6/(fanIn+fanOut)).
func TestLinear_XavierInit(t *testing.T) {
	backend := cpu.New()
	rng := rand.New(rand.NewSource(1))

	layer := NewLinearFrom(100, 50, backend, rng)

	bound := math.Sqrt(6.0 / float64(100+50))
	for i, v := range layer.weight.Tensor().Data() {
		if math.Abs(float64(v)) > bound {
			t.Fatalf("weight[%d] = %f outside Xavier bound ±%f", i, v, bound)
		}
	}

	// Bias starts at zero.
	for i, v := range layer.bias.Tensor().Data() {
		assert.Zero(t, v, "bias[%d]", i)
	}
}

// TestLinear_Parameters checks the layer exposes weight and bias.
func TestLinear_Parameters(t *testing.T) {
	backend := cpu.New()
	layer := NewLinear(4, 3, backend)

	params := layer.Parameters()
	require.Len(t, params, 2)
	assert.Equal(t, "weight", params[0].Name())
	assert.Equal(t, "bias", params[1].Name())
	assert.True(t, params[0].Tensor().Shape().Equal(tensor.Shape{3, 4}))
	assert.True(t, params[1].Tensor().Shape().Equal(tensor.Shape{3}))
}

// TestLinear_StateDictRoundTrip checks save/restore through a state dict.
func TestLinear_StateDictRoundTrip(t *testing.T) {
	backend := cpu.New()

	src := NewLinearFrom(3, 2, backend, rand.New(rand.NewSource(2)))
	dst := NewLinearFrom(3, 2, backend, rand.New(rand.NewSource(99)))

	require.NoError(t, dst.LoadStateDict(src.StateDict()))

	assert.Equal(t, src.weight.Tensor().Data(), dst.weight.Tensor().Data())
	assert.Equal(t, src.bias.Tensor().Data(), dst.bias.Tensor().Data())
}

// TestLinear_LoadStateDictErrors checks validation failures leave the
// layer untouched.
func TestLinear_LoadStateDictErrors(t *testing.T) {
	backend := cpu.New()
	layer := NewLinearFrom(3, 2, backend, rand.New(rand.NewSource(3)))

	before := make([]float32, len(layer.weight.Tensor().Data()))
	copy(before, layer.weight.Tensor().Data())

	t.Run("missing key", func(t *testing.T) {
		err := layer.LoadStateDict(map[string]*tensor.Tensor[float32, *cpu.Backend]{
			"weight": tensor.Zeros[float32](tensor.Shape{2, 3}, backend),
		})
		require.ErrorIs(t, err, ErrMissingKey)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		err := layer.LoadStateDict(map[string]*tensor.Tensor[float32, *cpu.Backend]{
			"weight": tensor.Zeros[float32](tensor.Shape{4, 3}, backend),
			"bias":   tensor.Zeros[float32](tensor.Shape{2}, backend),
		})
		require.ErrorIs(t, err, ErrShapeMismatch)
	})

	// A failed load must not partially overwrite parameters, even when
	// some entries were valid.
	t.Run("no partial writes", func(t *testing.T) {
		err := layer.LoadStateDict(map[string]*tensor.Tensor[float32, *cpu.Backend]{
			"weight": tensor.Ones[float32](tensor.Shape{2, 3}, backend),
			"bias":   tensor.Zeros[float32](tensor.Shape{5}, backend),
		})
		require.Error(t, err)
		assert.Equal(t, before, layer.weight.Tensor().Data())
	})
}
