package nn

import (
	"math"

	"github.com/ember-ml/ember/internal/tensor"
)

// Backend capability interfaces for activations. A backend that implements
// one (the autodiff decorator does) gets called directly so the operation
// lands on the gradient tape; otherwise the module falls back to a local
// element-wise computation, which is forward-only.

// ReLUBackend is implemented by backends with a native ReLU.
type ReLUBackend interface {
	ReLU(x *tensor.RawTensor) *tensor.RawTensor
}

// SigmoidBackend is implemented by backends with a native sigmoid.
type SigmoidBackend interface {
	Sigmoid(x *tensor.RawTensor) *tensor.RawTensor
}

// TanhBackend is implemented by backends with a native tanh.
type TanhBackend interface {
	Tanh(x *tensor.RawTensor) *tensor.RawTensor
}

// LogSoftmaxBackend is implemented by backends with a native log-softmax
// over the last dimension of a 2D tensor.
type LogSoftmaxBackend interface {
	LogSoftmax(x *tensor.RawTensor) *tensor.RawTensor
}

// ReLU applies max(0, x) element-wise.
type ReLU[B tensor.Backend] struct{}

// NewReLU creates a ReLU activation module.
func NewReLU[B tensor.Backend]() *ReLU[B] {
	return &ReLU[B]{}
}

// Forward applies the activation.
func (r *ReLU[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if rb, ok := any(input.Backend()).(ReLUBackend); ok {
		return tensor.New[float32, B](rb.ReLU(input.Raw()), input.Backend())
	}
	return mapElements(input, func(v float32) float32 {
		if v > 0 {
			return v
		}
		return 0
	})
}

// Parameters returns nil (activations are parameterless).
func (r *ReLU[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (r *ReLU[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return map[string]*tensor.Tensor[float32, B]{}
}

// LoadStateDict is a no-op for parameterless modules.
func (r *ReLU[B]) LoadStateDict(map[string]*tensor.Tensor[float32, B]) error { return nil }

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) element-wise.
type Sigmoid[B tensor.Backend] struct{}

// NewSigmoid creates a Sigmoid activation module.
func NewSigmoid[B tensor.Backend]() *Sigmoid[B] {
	return &Sigmoid[B]{}
}

// Forward applies the activation.
func (s *Sigmoid[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if sb, ok := any(input.Backend()).(SigmoidBackend); ok {
		return tensor.New[float32, B](sb.Sigmoid(input.Raw()), input.Backend())
	}
	return mapElements(input, func(v float32) float32 {
		return float32(1.0 / (1.0 + math.Exp(-float64(v))))
	})
}

// Parameters returns nil.
func (s *Sigmoid[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (s *Sigmoid[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return map[string]*tensor.Tensor[float32, B]{}
}

// LoadStateDict is a no-op.
func (s *Sigmoid[B]) LoadStateDict(map[string]*tensor.Tensor[float32, B]) error { return nil }

// Tanh applies the hyperbolic tangent element-wise.
type Tanh[B tensor.Backend] struct{}

// NewTanh creates a Tanh activation module.
func NewTanh[B tensor.Backend]() *Tanh[B] {
	return &Tanh[B]{}
}

// Forward applies the activation.
func (t *Tanh[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if tb, ok := any(input.Backend()).(TanhBackend); ok {
		return tensor.New[float32, B](tb.Tanh(input.Raw()), input.Backend())
	}
	return mapElements(input, func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// Parameters returns nil.
func (t *Tanh[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (t *Tanh[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return map[string]*tensor.Tensor[float32, B]{}
}

// LoadStateDict is a no-op.
func (t *Tanh[B]) LoadStateDict(map[string]*tensor.Tensor[float32, B]) error { return nil }

// LogSoftmax computes log(softmax(x)) over the last dimension of a 2D
// input. Pairing it with NLLLoss reproduces CrossEntropyLoss exactly.
type LogSoftmax[B tensor.Backend] struct{}

// NewLogSoftmax creates a LogSoftmax module.
func NewLogSoftmax[B tensor.Backend]() *LogSoftmax[B] {
	return &LogSoftmax[B]{}
}

// Forward applies log-softmax row-wise. Input must be [batch, classes].
func (l *LogSoftmax[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	if lb, ok := any(input.Backend()).(LogSoftmaxBackend); ok {
		return tensor.New[float32, B](lb.LogSoftmax(input.Raw()), input.Backend())
	}

	shape := input.Shape()
	if len(shape) != 2 {
		panic("LogSoftmax: input must be 2D [batch, classes]")
	}

	out := tensor.Zeros[float32, B](shape, input.Backend())
	src := input.Data()
	dst := out.Data()
	classes := shape[1]
	for row := 0; row < shape[0]; row++ {
		copy(dst[row*classes:(row+1)*classes], logSoftmaxRow(src[row*classes:(row+1)*classes]))
	}
	return out
}

// Parameters returns nil.
func (l *LogSoftmax[B]) Parameters() []*Parameter[B] { return nil }

// StateDict returns an empty map.
func (l *LogSoftmax[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return map[string]*tensor.Tensor[float32, B]{}
}

// LoadStateDict is a no-op.
func (l *LogSoftmax[B]) LoadStateDict(map[string]*tensor.Tensor[float32, B]) error { return nil }

// mapElements applies fn into a fresh tensor of the same shape.
func mapElements[B tensor.Backend](input *tensor.Tensor[float32, B], fn func(float32) float32) *tensor.Tensor[float32, B] {
	out := tensor.Zeros[float32, B](input.Shape(), input.Backend())
	src := input.Data()
	dst := out.Data()
	for i, v := range src {
		dst[i] = fn(v)
	}
	return out
}
