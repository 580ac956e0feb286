package ops

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// SoftmaxOp records output = softmax(input) along the last dimension of a
// 2D tensor [batch, classes].
//
// Backward (per row):
//
//	∂L/∂x_j = s_j * (g_j - Σ_i g_i * s_i)
type SoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewSoftmaxOp creates a SoftmaxOp.
func NewSoftmaxOp(input, output *tensor.RawTensor) *SoftmaxOp {
	return &SoftmaxOp{
		input:  input,
		output: output,
	}
}

// Backward computes the softmax Jacobian-vector product per row.
func (op *SoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	if len(shape) != 2 {
		panic("SoftmaxOp: backward only supports 2D tensors [batch, classes]")
	}

	gradInput, err := tensor.NewRaw(shape, op.input.DType(), backend.Device())
	if err != nil {
		panic(err)
	}

	rows, cols := shape[0], shape[1]
	switch op.input.DType() {
	case tensor.Float32:
		softmaxBackward(op.output.AsFloat32(), outputGrad.AsFloat32(), gradInput.AsFloat32(), rows, cols)
	case tensor.Float64:
		softmaxBackward(op.output.AsFloat64(), outputGrad.AsFloat64(), gradInput.AsFloat64(), rows, cols)
	default:
		panic("SoftmaxOp: only supports float32 and float64")
	}

	return []*tensor.RawTensor{gradInput}
}

func softmaxBackward[T ~float32 | ~float64](probs, grad, dst []T, rows, cols int) {
	for r := 0; r < rows; r++ {
		s := probs[r*cols : (r+1)*cols]
		g := grad[r*cols : (r+1)*cols]
		d := dst[r*cols : (r+1)*cols]

		var dot T
		for i := range s {
			dot += g[i] * s[i]
		}
		for i := range s {
			d[i] = s[i] * (g[i] - dot)
		}
	}
}

// Inputs returns [input].
func (op *SoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns softmax(input).
func (op *SoftmaxOp) Output() *tensor.RawTensor { return op.output }

// LogSoftmaxOp records output = log_softmax(input) along the last dimension
// of a 2D tensor.
//
// Backward (per row):
//
//	∂L/∂x_j = g_j - softmax(x)_j * Σ_i g_i
type LogSoftmaxOp struct {
	input  *tensor.RawTensor
	output *tensor.RawTensor
}

// NewLogSoftmaxOp creates a LogSoftmaxOp.
func NewLogSoftmaxOp(input, output *tensor.RawTensor) *LogSoftmaxOp {
	return &LogSoftmaxOp{
		input:  input,
		output: output,
	}
}

// Backward computes the log-softmax gradient per row. Softmax probabilities
// are recovered from the stored log-probabilities with a single exp.
func (op *LogSoftmaxOp) Backward(outputGrad *tensor.RawTensor, backend tensor.Backend) []*tensor.RawTensor {
	shape := op.input.Shape()
	if len(shape) != 2 {
		panic("LogSoftmaxOp: backward only supports 2D tensors [batch, classes]")
	}

	gradInput, err := tensor.NewRaw(shape, op.input.DType(), backend.Device())
	if err != nil {
		panic(err)
	}

	rows, cols := shape[0], shape[1]
	switch op.input.DType() {
	case tensor.Float32:
		logSoftmaxBackward(op.output.AsFloat32(), outputGrad.AsFloat32(), gradInput.AsFloat32(), rows, cols)
	case tensor.Float64:
		logSoftmaxBackward(op.output.AsFloat64(), outputGrad.AsFloat64(), gradInput.AsFloat64(), rows, cols)
	default:
		panic("LogSoftmaxOp: only supports float32 and float64")
	}

	return []*tensor.RawTensor{gradInput}
}

func logSoftmaxBackward[T ~float32 | ~float64](logProbs, grad, dst []T, rows, cols int) {
	for r := 0; r < rows; r++ {
		lp := logProbs[r*cols : (r+1)*cols]
		g := grad[r*cols : (r+1)*cols]
		d := dst[r*cols : (r+1)*cols]

		var gradSum T
		for i := range g {
			gradSum += g[i]
		}
		for i := range lp {
			d[i] = g[i] - expT(lp[i])*gradSum
		}
	}
}

// Inputs returns [input].
func (op *LogSoftmaxOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.input}
}

// Output returns log_softmax(input).
func (op *LogSoftmaxOp) Output() *tensor.RawTensor { return op.output }

// Softmax computes softmax along the last dimension of a 2D tensor
// (forward only; used by the autodiff backend and eval paths).
func Softmax(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	return rowwise(x, device, "Softmax", softmaxRow[float32], softmaxRow[float64])
}

// LogSoftmax computes log-softmax along the last dimension of a 2D tensor
// (forward only).
func LogSoftmax(x *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	return rowwise(x, device, "LogSoftmax", logSoftmaxRow[float32], logSoftmaxRow[float64])
}

func rowwise(
	x *tensor.RawTensor,
	device tensor.Device,
	name string,
	f32 func([]float32) []float32,
	f64 func([]float64) []float64,
) *tensor.RawTensor {
	shape := x.Shape()
	if len(shape) != 2 {
		panic(fmt.Sprintf("%s: input must be 2D [batch, classes], got %v", name, shape))
	}

	result, err := tensor.NewRaw(shape, x.DType(), device)
	if err != nil {
		panic(err)
	}

	rows, cols := shape[0], shape[1]
	switch x.DType() {
	case tensor.Float32:
		src := x.AsFloat32()
		dst := result.AsFloat32()
		for r := 0; r < rows; r++ {
			copy(dst[r*cols:(r+1)*cols], f32(src[r*cols:(r+1)*cols]))
		}
	case tensor.Float64:
		src := x.AsFloat64()
		dst := result.AsFloat64()
		for r := 0; r < rows; r++ {
			copy(dst[r*cols:(r+1)*cols], f64(src[r*cols:(r+1)*cols]))
		}
	default:
		panic(fmt.Sprintf("%s: only supports float32 and float64", name))
	}

	return result
}
