package nn

import (
	"math"
	"math/rand"

	"github.com/ember-ml/ember/internal/tensor"
)

// XavierUniform initializes a 2D weight tensor [fanOut, fanIn] with values
// drawn uniformly from [-bound, bound] where bound = sqrt(6 / (fanIn + fanOut)).
//
// Keeping the variance of activations roughly constant across layers avoids
// vanishing or exploding signals at the start of training (Glorot & Bengio,
// 2010).
func XavierUniform[B tensor.Backend](shape tensor.Shape, b B) *tensor.Tensor[float32, B] {
	return XavierUniformFrom(shape, b, nil)
}

// XavierUniformFrom is XavierUniform drawing from rng, or the shared
// source when rng is nil. A seeded rng makes initialization reproducible.
func XavierUniformFrom[B tensor.Backend](shape tensor.Shape, b B, rng *rand.Rand) *tensor.Tensor[float32, B] {
	if len(shape) != 2 {
		panic("XavierUniform requires a 2D weight shape [fanOut, fanIn]")
	}

	fanOut := shape[0]
	fanIn := shape[1]
	bound := float32(math.Sqrt(6.0 / float64(fanIn+fanOut)))

	uniform := rand.Float32
	if rng != nil {
		uniform = rng.Float32
	}

	t := tensor.Zeros[float32, B](shape, b)
	data := t.Data()
	for i := range data {
		data[i] = (uniform()*2 - 1) * bound
	}
	return t
}

// ZerosInit creates a float32 tensor of zeros, the standard bias init.
func ZerosInit[B tensor.Backend](shape tensor.Shape, b B) *tensor.Tensor[float32, B] {
	return tensor.Zeros[float32, B](shape, b)
}

// OnesInit creates a float32 tensor of ones.
func OnesInit[B tensor.Backend](shape tensor.Shape, b B) *tensor.Tensor[float32, B] {
	return tensor.Ones[float32, B](shape, b)
}
