package tensor

// Backend is the interface every compute backend implements. It covers the
// operations feed-forward networks need; anything richer (fused losses,
// activations with custom gradients) is negotiated through optional
// interfaces asserted at the call site.
type Backend interface {
	// Element-wise binary operations with broadcasting.
	Add(a, b *RawTensor) *RawTensor
	Sub(a, b *RawTensor) *RawTensor
	Mul(a, b *RawTensor) *RawTensor
	Div(a, b *RawTensor) *RawTensor

	// Matrix multiplication: (M, K) @ (K, N) → (M, N).
	MatMul(a, b *RawTensor) *RawTensor

	// Shape operations.
	Reshape(t *RawTensor, newShape Shape) *RawTensor
	Transpose(t *RawTensor, axes ...int) *RawTensor

	// Element-wise scalar operations.
	MulScalar(x *RawTensor, scalar any) *RawTensor
	AddScalar(x *RawTensor, scalar any) *RawTensor
	SubScalar(x *RawTensor, scalar any) *RawTensor
	DivScalar(x *RawTensor, scalar any) *RawTensor

	// Element-wise math.
	Exp(x *RawTensor) *RawTensor
	Log(x *RawTensor) *RawTensor
	Sqrt(x *RawTensor) *RawTensor

	// Softmax along a dimension (numerically stable).
	Softmax(x *RawTensor, dim int) *RawTensor

	// Reductions.
	Sum(x *RawTensor) *RawTensor                            // scalar result
	SumDim(x *RawTensor, dim int, keepDim bool) *RawTensor  // sum along dim
	MeanDim(x *RawTensor, dim int, keepDim bool) *RawTensor // mean along dim
	Argmax(x *RawTensor, dim int) *RawTensor                // int32 indices

	// Metadata.
	Name() string
	Device() Device
}
