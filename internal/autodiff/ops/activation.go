package ops

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// ReLUOp records output = max(0, input).
//
// d(ReLU(x))/dx = 1 where x > 0, else 0.
type ReLUOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewReLUOp creates a ReLUOp.
func NewReLUOp(input, output *tensor.RawTensor) *ReLUOp {
	return &ReLUOp{
		input:  input,
		output: output,
	}
}

// Backward masks the output gradient with the positive-input mask.
func (op *ReLUOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	mask := reluMask(op.input, backend)
	gradInput := backend.Mul(outputGrad, mask)
	return []*tensor.RawTensor{gradInput}
}

// Inputs returns [input].
func (op *ReLUOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns max(0, input).
func (op *ReLUOp) Output() *tensor.RawTensor { return op.output }

func reluMask(input *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	mask, err := tensor.NewRaw(input.Shape(), input.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("relu: failed to create mask: %v", err))
	}

	switch input.DType() {
	case tensor.Float32:
		fillMask(input.AsFloat32(), mask.AsFloat32())
	case tensor.Float64:
		fillMask(input.AsFloat64(), mask.AsFloat64())
	default:
		panic(fmt.Sprintf("relu: unsupported dtype %s (only float32/float64 supported)", input.DType()))
	}

	return mask
}

func fillMask[T ~float32 | ~float64](input, mask []T) {
	for i, val := range input {
		if val > 0 {
			mask[i] = 1
		} else {
			mask[i] = 0
		}
	}
}

// SigmoidOp records output = σ(input) = 1 / (1 + exp(-input)).
//
// dσ/dx = σ(x) * (1 - σ(x)), computed from the stored output.
type SigmoidOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSigmoidOp creates a SigmoidOp.
func NewSigmoidOp(input, output *tensor.RawTensor) *SigmoidOp {
	return &SigmoidOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad * σ * (1 - σ).
func (op *SigmoidOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), backend.Device())
	if err != nil {
		panic(err)
	}

	switch op.input.DType() {
	case tensor.Float32:
		sigmoidGrad(op.output.AsFloat32(), outputGrad.AsFloat32(), gradInput.AsFloat32())
	case tensor.Float64:
		sigmoidGrad(op.output.AsFloat64(), outputGrad.AsFloat64(), gradInput.AsFloat64())
	default:
		panic("SigmoidOp: only supports float32 and float64")
	}

	return []*tensor.RawTensor{gradInput}
}

func sigmoidGrad[T ~float32 | ~float64](out, grad, dst []T) {
	for i := range dst {
		dst[i] = grad[i] * out[i] * (1 - out[i])
	}
}

// Inputs returns [input].
func (op *SigmoidOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns σ(input).
func (op *SigmoidOp) Output() *tensor.RawTensor { return op.output }

// TanhOp records output = tanh(input).
//
// d(tanh(x))/dx = 1 - tanh²(x), computed from the stored output.
type TanhOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewTanhOp creates a TanhOp.
func NewTanhOp(input, output *tensor.RawTensor) *TanhOp {
	return &TanhOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad * (1 - tanh²).
func (op *TanhOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput, err := tensor.NewRaw(op.input.Shape(), op.input.DType(), backend.Device())
	if err != nil {
		panic(err)
	}

	switch op.input.DType() {
	case tensor.Float32:
		tanhGrad(op.output.AsFloat32(), outputGrad.AsFloat32(), gradInput.AsFloat32())
	case tensor.Float64:
		tanhGrad(op.output.AsFloat64(), outputGrad.AsFloat64(), gradInput.AsFloat64())
	default:
		panic("TanhOp: only supports float32 and float64")
	}

	return []*tensor.RawTensor{gradInput}
}

func tanhGrad[T ~float32 | ~float64](out, grad, dst []T) {
	for i := range dst {
		dst[i] = grad[i] * (1 - out[i]*out[i])
	}
}

// Inputs returns [input].
func (op *TanhOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns tanh(input).
func (op *TanhOp) Output() *tensor.RawTensor { return op.output }

// LogOp records output = ln(input).
//
// d(ln(x))/dx = 1/x.
type LogOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogOp creates a LogOp.
func NewLogOp(input, output *tensor.RawTensor) *LogOp {
	return &LogOp{
		input:  input,
		output: output,
	}
}

// Backward computes grad / input.
func (op *LogOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	gradInput := backend.Div(outputGrad, op.input)
	return []*tensor.RawTensor{gradInput}
}

// Inputs returns [input].
func (op *LogOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns ln(input).
func (op *LogOp) Output() *tensor.RawTensor { return op.output }
