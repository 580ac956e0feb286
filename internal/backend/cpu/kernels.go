package cpu

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// number constrains the element types the arithmetic kernels support.
// Bool tensors have no arithmetic.
type number interface {
	~float32 | ~float64 | ~int32 | ~int64
}

func binaryInplace(op binOp, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		inplaceKernel(op, a.AsFloat32(), b.AsFloat32())
	case tensor.Float64:
		inplaceKernel(op, a.AsFloat64(), b.AsFloat64())
	case tensor.Int32:
		inplaceKernel(op, a.AsInt32(), b.AsInt32())
	case tensor.Int64:
		inplaceKernel(op, a.AsInt64(), b.AsInt64())
	default:
		panic("binaryInplace: unsupported dtype")
	}
}

func binaryVectorized(op binOp, result, a, b *tensor.RawTensor) {
	switch a.DType() {
	case tensor.Float32:
		vectorizedKernel(op, result.AsFloat32(), a.AsFloat32(), b.AsFloat32())
	case tensor.Float64:
		vectorizedKernel(op, result.AsFloat64(), a.AsFloat64(), b.AsFloat64())
	case tensor.Int32:
		vectorizedKernel(op, result.AsInt32(), a.AsInt32(), b.AsInt32())
	case tensor.Int64:
		vectorizedKernel(op, result.AsInt64(), a.AsInt64(), b.AsInt64())
	default:
		panic("binaryVectorized: unsupported dtype")
	}
}

func binaryBroadcast(op binOp, result, a, b *tensor.RawTensor, outShape tensor.Shape) {
	switch a.DType() {
	case tensor.Float32:
		broadcastKernel(op, result.AsFloat32(), a.AsFloat32(), b.AsFloat32(), a.Shape(), b.Shape(), outShape)
	case tensor.Float64:
		broadcastKernel(op, result.AsFloat64(), a.AsFloat64(), b.AsFloat64(), a.Shape(), b.Shape(), outShape)
	case tensor.Int32:
		broadcastKernel(op, result.AsInt32(), a.AsInt32(), b.AsInt32(), a.Shape(), b.Shape(), outShape)
	case tensor.Int64:
		broadcastKernel(op, result.AsInt64(), a.AsInt64(), b.AsInt64(), a.Shape(), b.Shape(), outShape)
	default:
		panic("binaryBroadcast: unsupported dtype")
	}
}

// inplaceKernel computes a op= b.
// Requires a.Shape().Equal(b.Shape()) and a.IsUnique().
func inplaceKernel[T number](op binOp, a, b []T) {
	switch op {
	case opAdd:
		for i := range a {
			a[i] += b[i]
		}
	case opSub:
		for i := range a {
			a[i] -= b[i]
		}
	case opMul:
		for i := range a {
			a[i] *= b[i]
		}
	case opDiv:
		for i := range a {
			a[i] /= b[i]
		}
	}
}

// vectorizedKernel computes dst = a op b for same-shape operands.
func vectorizedKernel[T number](op binOp, dst, a, b []T) {
	switch op {
	case opAdd:
		for i := range a {
			dst[i] = a[i] + b[i]
		}
	case opSub:
		for i := range a {
			dst[i] = a[i] - b[i]
		}
	case opMul:
		for i := range a {
			dst[i] = a[i] * b[i]
		}
	case opDiv:
		for i := range a {
			dst[i] = a[i] / b[i]
		}
	}
}

// broadcastKernel computes dst = a op b through broadcast-adjusted strides.
func broadcastKernel[T number](op binOp, dst, a, b []T, aShape, bShape, outShape tensor.Shape) {
	outStrides := outShape.ComputeStrides()
	aStrides := broadcastStrides(aShape, outShape)
	bStrides := broadcastStrides(bShape, outShape)

	n := outShape.NumElements()
	for i := 0; i < n; i++ {
		av := a[broadcastFlatIndex(i, outStrides, aStrides)]
		bv := b[broadcastFlatIndex(i, outStrides, bStrides)]
		switch op {
		case opAdd:
			dst[i] = av + bv
		case opSub:
			dst[i] = av - bv
		case opMul:
			dst[i] = av * bv
		case opDiv:
			dst[i] = av / bv
		}
	}
}

// broadcastStrides computes strides for broadcasting inShape to outShape.
// Broadcast (size-1 or missing) dimensions get stride 0.
func broadcastStrides(inShape, outShape tensor.Shape) []int {
	outDim := len(outShape)
	strides := make([]int, outDim)

	inDim := len(inShape)
	offset := outDim - inDim
	origStrides := inShape.ComputeStrides()

	for i := 0; i < outDim; i++ {
		inIdx := i - offset
		switch {
		case inIdx < 0 || inIdx >= inDim:
			strides[i] = 0
		case inShape[inIdx] == 1:
			strides[i] = 0
		default:
			strides[i] = origStrides[inIdx]
		}
	}

	return strides
}

// broadcastFlatIndex maps a flat output index back to the source array
// through broadcast-adjusted strides.
func broadcastFlatIndex(outIdx int, outStrides, inStrides []int) int {
	flatIdx := 0
	for i := range outStrides {
		coord := outIdx / outStrides[i]
		outIdx %= outStrides[i]
		flatIdx += coord * inStrides[i]
	}
	return flatIdx
}
