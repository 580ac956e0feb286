package cpu

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// MulScalar multiplies each element by a scalar. The scalar's dynamic type
// must match the tensor's dtype.
func (c *Backend) MulScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp("mulScalar", opMul, x, scalar)
}

// AddScalar adds a scalar to each element.
func (c *Backend) AddScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp("addScalar", opAdd, x, scalar)
}

// SubScalar subtracts a scalar from each element.
func (c *Backend) SubScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp("subScalar", opSub, x, scalar)
}

// DivScalar divides each element by a scalar.
func (c *Backend) DivScalar(x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	return c.scalarOp("divScalar", opDiv, x, scalar)
}

func (c *Backend) scalarOp(name string, op binOp, x *tensor.RawTensor, scalar any) *tensor.RawTensor {
	result := mustNewRaw(name, x.Shape(), x.DType(), c.device)

	switch x.DType() {
	case tensor.Float32:
		scalarKernel(op, result.AsFloat32(), x.AsFloat32(), scalar.(float32))
	case tensor.Float64:
		scalarKernel(op, result.AsFloat64(), x.AsFloat64(), scalar.(float64))
	case tensor.Int32:
		scalarKernel(op, result.AsInt32(), x.AsInt32(), scalar.(int32))
	case tensor.Int64:
		scalarKernel(op, result.AsInt64(), x.AsInt64(), scalar.(int64))
	default:
		panic(fmt.Sprintf("%s: unsupported dtype %v", name, x.DType()))
	}

	return result
}

func scalarKernel[T number](op binOp, dst, src []T, scalar T) {
	switch op {
	case opAdd:
		for i := range src {
			dst[i] = src[i] + scalar
		}
	case opSub:
		for i := range src {
			dst[i] = src[i] - scalar
		}
	case opMul:
		for i := range src {
			dst[i] = src[i] * scalar
		}
	case opDiv:
		for i := range src {
			dst[i] = src[i] / scalar
		}
	}
}
