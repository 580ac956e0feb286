// Package autodiff implements reverse-mode automatic differentiation with
// the decorator pattern: Backend[B] wraps any inner compute backend and
// records each differentiable operation on a gradient tape during the
// forward pass. Walking the tape in reverse applies the chain rule and
// accumulates a gradient per RawTensor.
//
// Usage:
//
//	ad := autodiff.New(cpu.New())
//	ad.Tape().StartRecording()
//	x := tensor.FromSlice([]float32{2}, tensor.Shape{1}, ad)
//	y := x.Mul(x)
//	grads := autodiff.Backward(y, ad)
//	_ = grads[x.Raw()] // dy/dx = 2x
package autodiff

import (
	"math"

	"github.com/ember-ml/ember/internal/autodiff/ops"
	"github.com/ember-ml/ember/internal/tensor"
)

// Backend wraps an inner backend and adds gradient recording. It
// implements tensor.Backend, so tensors built on it use the same
// method-style ops as on the raw backend.
type Backend[B tensor.Backend] struct {
	inner B
	tape  *Tape
}

// New creates an autodiff backend wrapping inner.
func New[B tensor.Backend](inner B) *Backend[B] {
	return &Backend[B]{
		inner: inner,
		tape:  NewTape(),
	}
}

// Tape returns the gradient tape for recording control and inspection.
func (b *Backend[B]) Tape() *Tape {
	return b.tape
}

// Inner returns the wrapped backend.
func (b *Backend[B]) Inner() B {
	return b.inner
}

// Name returns the backend name.
func (b *Backend[B]) Name() string {
	return "Autodiff(" + b.inner.Name() + ")"
}

// Device returns the compute device.
func (b *Backend[B]) Device() tensor.Device {
	return b.inner.Device()
}

// Add performs element-wise addition and records the operation.
//
// ForceNonUnique pins the operands so the inner backend cannot overwrite
// them in place; the backward pass still needs the original values.
func (b *Backend[B]) Add(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Add(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewAddOp(x, y, result))
	}

	return result
}

// Sub performs element-wise subtraction and records the operation.
func (b *Backend[B]) Sub(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Sub(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSubOp(x, y, result))
	}

	return result
}

// Mul performs element-wise multiplication and records the operation.
func (b *Backend[B]) Mul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Mul(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMulOp(x, y, result))
	}

	return result
}

// Div performs element-wise division and records the operation.
func (b *Backend[B]) Div(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.Div(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewDivOp(x, y, result))
	}

	return result
}

// MatMul performs matrix multiplication and records the operation.
func (b *Backend[B]) MatMul(x, y *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()
	defer y.ForceNonUnique()()

	result := b.inner.MatMul(x, y)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewMatMulOp(x, y, result))
	}

	return result
}

// Reshape reshapes a tensor and records the operation. A reshaped
// parameter is a distinct RawTensor; without the op on the tape its
// gradient would never reach the original.
func (b *Backend[B]) Reshape(t *tensor.RawTensor, newShape tensor.Shape) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	result := b.inner.Reshape(t, newShape)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReshapeOp(t, result))
	}

	return result
}

// Transpose transposes a tensor and records the operation. The inner
// backend materializes the transpose, so gradients must be routed back to
// the original tensor (a Linear weight used as Wᵀ, for example).
func (b *Backend[B]) Transpose(t *tensor.RawTensor, axes ...int) *tensor.RawTensor {
	defer t.ForceNonUnique()()

	ndim := len(t.Shape())
	if len(axes) == 0 {
		axes = make([]int, ndim)
		for i := range axes {
			axes[i] = ndim - 1 - i
		}
	}

	result := b.inner.Transpose(t, axes...)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTransposeOp(t, result, axes))
	}

	return result
}

// ReLU applies max(0, x) and records the operation.
func (b *Backend[B]) ReLU(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.unaryForward(x, func(v float64) float64 {
		if v > 0 {
			return v
		}
		return 0
	})

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewReLUOp(x, result))
	}

	return result
}

// Sigmoid applies σ(x) = 1 / (1 + exp(-x)) and records the operation.
func (b *Backend[B]) Sigmoid(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.unaryForward(x, func(v float64) float64 {
		return 1.0 / (1.0 + math.Exp(-v))
	})

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewSigmoidOp(x, result))
	}

	return result
}

// Tanh applies the hyperbolic tangent and records the operation.
func (b *Backend[B]) Tanh(x *tensor.RawTensor) *tensor.RawTensor {
	result := b.unaryForward(x, math.Tanh)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewTanhOp(x, result))
	}

	return result
}

// Log computes the natural logarithm and records the operation.
func (b *Backend[B]) Log(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := b.unaryForward(x, math.Log)

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewLogOp(x, result))
	}

	return result
}

// Softmax computes softmax along dim and records the operation when dim is
// the last dimension of a 2D tensor (the classification case).
func (b *Backend[B]) Softmax(x *tensor.RawTensor, dim int) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	ndim := len(x.Shape())
	if dim < 0 {
		dim = ndim + dim
	}

	if ndim == 2 && dim == 1 {
		result := ops.Softmax(x, b.Device())
		if b.tape.IsRecording() {
			b.tape.Record(ops.NewSoftmaxOp(x, result))
		}
		return result
	}

	// Other shapes are forward-only.
	return b.inner.Softmax(x, dim)
}

// LogSoftmax computes log-softmax along the last dimension of a 2D tensor
// and records the operation.
func (b *Backend[B]) LogSoftmax(x *tensor.RawTensor) *tensor.RawTensor {
	defer x.ForceNonUnique()()

	result := ops.LogSoftmax(x, b.Device())

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewLogSoftmaxOp(x, result))
	}

	return result
}

// CrossEntropy computes the fused softmax + NLL classification loss and
// records the operation. Logits are [batch, classes], targets [batch]
// int32 class indices; the result is the mean loss over the batch.
func (b *Backend[B]) CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor {
	defer logits.ForceNonUnique()()
	// targets carry no gradient

	result := ops.CrossEntropyForward(logits, targets, b.Device())

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewCrossEntropyOp(logits, targets, result))
	}

	return result
}

// NLL computes mean negative log-likelihood over log-probabilities and
// records the operation. Paired with LogSoftmax it decomposes
// CrossEntropy into its two halves.
func (b *Backend[B]) NLL(logProbs, targets *tensor.RawTensor) *tensor.RawTensor {
	defer logProbs.ForceNonUnique()()

	result := ops.NLLForward(logProbs, targets, b.Device())

	if b.tape.IsRecording() {
		b.tape.Record(ops.NewNLLOp(logProbs, targets, result))
	}

	return result
}

// unaryForward applies fn element-wise into a fresh tensor.
func (b *Backend[B]) unaryForward(x *tensor.RawTensor, fn func(float64) float64) *tensor.RawTensor {
	result, err := tensor.NewRaw(x.Shape(), x.DType(), b.Device())
	if err != nil {
		panic(err)
	}

	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for i, v := range src {
			dst[i] = float32(fn(float64(v)))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for i, v := range src {
			dst[i] = fn(v)
		}
	default:
		panic("autodiff: unary ops only support float32 and float64")
	}

	return result
}
