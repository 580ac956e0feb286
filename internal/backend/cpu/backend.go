// Package cpu implements the pure-Go CPU backend.
package cpu

import (
	"fmt"

	"github.com/ember-ml/ember/internal/tensor"
)

// Backend implements tensor.Backend on the CPU.
type Backend struct {
	device tensor.Device
}

// New creates a CPU backend.
func New() *Backend {
	return &Backend{
		device: tensor.CPU,
	}
}

// Name returns the backend name.
func (c *Backend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (c *Backend) Device() tensor.Device {
	return c.device
}

// Add performs element-wise addition with NumPy-style broadcasting.
func (c *Backend) Add(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("add", opAdd, a, b)
}

// Sub performs element-wise subtraction with broadcasting.
func (c *Backend) Sub(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("sub", opSub, a, b)
}

// Mul performs element-wise multiplication with broadcasting.
func (c *Backend) Mul(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("mul", opMul, a, b)
}

// Div performs element-wise division with broadcasting.
func (c *Backend) Div(a, b *tensor.RawTensor) *tensor.RawTensor {
	return c.binaryOp("div", opDiv, a, b)
}

type binOp int

const (
	opAdd binOp = iota
	opSub
	opMul
	opDiv
)

// binaryOp dispatches an element-wise op. Same-shape operands take the
// vectorized path, with an in-place variant when a holds the only buffer
// reference; mismatched shapes go through the broadcasting kernels.
func (c *Backend) binaryOp(name string, op binOp, a, b *tensor.RawTensor) *tensor.RawTensor {
	outShape, needsBroadcast, err := tensor.BroadcastShapes(a.Shape(), b.Shape())
	if err != nil {
		panic(fmt.Sprintf("%s: %v", name, err))
	}

	if !needsBroadcast && a.Shape().Equal(b.Shape()) {
		if a.IsUnique() {
			binaryInplace(op, a, b)
			return a
		}
		result := mustNewRaw(name, outShape, a.DType(), c.device)
		binaryVectorized(op, result, a, b)
		return result
	}

	result := mustNewRaw(name, outShape, a.DType(), c.device)
	binaryBroadcast(op, result, a, b, outShape)
	return result
}

func mustNewRaw(name string, shape tensor.Shape, dtype tensor.DataType, device tensor.Device) *tensor.RawTensor {
	result, err := tensor.NewRaw(shape, dtype, device)
	if err != nil {
		panic(fmt.Sprintf("%s: failed to create result tensor: %v", name, err))
	}
	return result
}
