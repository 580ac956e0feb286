package ops

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// reduceBroadcast sums a gradient down to the target shape, undoing any
// broadcasting the forward pass performed.
//
// Example:
//
//	forward:  a[1, 4] + b[3, 4] → c[3, 4]
//	backward: grad_c[3, 4] → grad_a[1, 4] (summed along dim 0)
func reduceBroadcast(grad *tensor.RawTensor, targetShape tensor.Shape, backend tensor.Backend) *tensor.RawTensor {
	gradShape := grad.Shape()

	// Clone on the match path so later in-place ops cannot alias a shared
	// gradient buffer.
	if gradShape.Equal(targetShape) {
		return grad.Clone()
	}

	gradDims := len(gradShape)
	targetDims := len(targetShape)

	// Sum away leading dimensions the target never had.
	if targetDims < gradDims {
		dimsToSum := gradDims - targetDims
		result := grad
		for i := 0; i < dimsToSum; i++ {
			result = sumKeepDim(result, 0)
		}
		grad = result
		gradShape = grad.Shape()
	}

	// Sum along dimensions the target broadcast from size 1.
	result := grad
	for i := 0; i < targetDims; i++ {
		if targetShape[i] == 1 && gradShape[i] > 1 {
			result = sumKeepDim(result, i)
		}
	}

	if !result.Shape().Equal(targetShape) {
		result = backend.Reshape(result, targetShape)
	}

	return result
}

// sumKeepDim sums along dim, keeping it with size 1.
func sumKeepDim(t *tensor.RawTensor, dim int) *tensor.RawTensor {
	shape := t.Shape()
	if dim < 0 || dim >= len(shape) {
		panic(fmt.Sprintf("sumKeepDim: invalid dimension %d for shape %v", dim, shape))
	}

	outShape := shape.Clone()
	outShape[dim] = 1

	result, err := tensor.NewRaw(outShape, t.DType(), t.Device())
	if err != nil {
		panic(fmt.Sprintf("sumKeepDim: failed to create result: %v", err))
	}

	switch t.DType() {
	case tensor.Float32:
		sumDimInto(t.AsFloat32(), result.AsFloat32(), shape, dim)
	case tensor.Float64:
		sumDimInto(t.AsFloat64(), result.AsFloat64(), shape, dim)
	default:
		panic(fmt.Sprintf("sumKeepDim: unsupported dtype %s", t.DType()))
	}

	return result
}

func sumDimInto[T ~float32 | ~float64](data, result []T, shape tensor.Shape, dim int) {
	for i := range result {
		result[i] = 0
	}

	strides := shape.ComputeStrides()

	outShape := shape.Clone()
	outShape[dim] = 1
	outStrides := outShape.ComputeStrides()

	numElements := shape.NumElements()
	for i := 0; i < numElements; i++ {
		outIdx := 0
		temp := i
		for d := 0; d < len(shape); d++ {
			coord := temp / strides[d]
			temp %= strides[d]
			if d != dim {
				outIdx += coord * outStrides[d]
			}
		}
		result[outIdx] += data[i]
	}
}

// negate returns -grad.
func negate(grad *tensor.RawTensor, backend tensor.Backend) *tensor.RawTensor {
	zeros, err := tensor.NewRaw(grad.Shape(), grad.DType(), backend.Device())
	if err != nil {
		panic(fmt.Sprintf("negate: failed to create zeros: %v", err))
	}
	return backend.Sub(zeros, grad)
}

// softmaxRow computes numerically-stable softmax for one row of logits.
func softmaxRow[T ~float32 | ~float64](logits []T) []T {
	n := len(logits)
	probs := make([]T, n)

	maxVal := logits[0]
	for i := 1; i < n; i++ {
		if logits[i] > maxVal {
			maxVal = logits[i]
		}
	}

	var sumExp T
	for i := 0; i < n; i++ {
		probs[i] = expT(logits[i] - maxVal)
		sumExp += probs[i]
	}

	for i := 0; i < n; i++ {
		probs[i] /= sumExp
	}

	return probs
}

// logSoftmaxRow computes log-softmax for one row using the log-sum-exp
// trick: log_softmax(z) = z - (max(z) + log(Σ exp(z - max(z)))).
func logSoftmaxRow[T ~float32 | ~float64](logits []T) []T {
	n := len(logits)
	result := make([]T, n)

	maxVal := logits[0]
	for i := 1; i < n; i++ {
		if logits[i] > maxVal {
			maxVal = logits[i]
		}
	}

	var sumExp T
	for i := 0; i < n; i++ {
		sumExp += expT(logits[i] - maxVal)
	}
	logSumExp := maxVal + logT(sumExp)

	for i := 0; i < n; i++ {
		result[i] = logits[i] - logSumExp
	}

	return result
}
