package ops

import "github.com/ember-ml/ember/internal/tensor"

// NLLOp records the negative-log-likelihood loss over log-probabilities,
// the second half of the CrossEntropy = LogSoftmax ∘ NLL decomposition.
//
// Forward:
//
//	Loss = mean(-logProbs[b, targets[b]])
//
// Backward:
//
//	∂L/∂logProbs[b, i] = -1/batch at i == targets[b], else 0
//
// Shapes: logProbs [batch, classes], targets [batch] (int32 indices).
type NLLOp struct {
	logProbs *tensor.RawTensor
	targets  *tensor.RawTensor
	output   *tensor.RawTensor
}

// NewNLLOp creates an NLLOp.
func NewNLLOp(logProbs, targets, output *tensor.RawTensor) *NLLOp {
	return &NLLOp{
		logProbs: logProbs,
		targets:  targets,
		output:   output,
	}
}

// Inputs returns [logProbs]. Targets take no gradient.
func (op *NLLOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logProbs}
}

// Output returns the scalar loss tensor.
func (op *NLLOp) Output() *tensor.RawTensor { return op.output }

// Backward scatters -gradScale/batch into the target positions.
func (op *NLLOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	shape := op.logProbs.Shape()
	if len(shape) != 2 {
		panic("NLLOp: backward only supports 2D log-probabilities [batch, classes]")
	}

	batchSize := shape[0]
	numClasses := shape[1]

	grad, err := tensor.NewRaw(shape, op.logProbs.DType(), op.logProbs.Device())
	if err != nil {
		panic(err)
	}

	switch op.logProbs.DType() {
	case tensor.Float32:
		nllGrad(op.targets.AsInt32(), outputGrad.AsFloat32(), grad.AsFloat32(), batchSize, numClasses)
	case tensor.Float64:
		nllGrad(op.targets.AsInt32(), outputGrad.AsFloat64(), grad.AsFloat64(), batchSize, numClasses)
	default:
		panic("NLLOp: backward only supports float32 and float64")
	}

	return []*tensor.RawTensor{grad}
}

func nllGrad[T ~float32 | ~float64](targetsData []int32, outGradData, gradData []T, batchSize, numClasses int) {
	gradScale := outGradData[0]
	for b := 0; b < batchSize; b++ {
		gradData[b*numClasses+int(targetsData[b])] = -gradScale / T(batchSize)
	}
}

// NLLForward computes mean negative log-likelihood of log-probabilities.
func NLLForward(logProbs, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	batchSize, numClasses := validateClassification("NLLForward", logProbs, targets)

	output, err := tensor.NewRaw(tensor.Shape{1}, logProbs.DType(), device)
	if err != nil {
		panic(err)
	}

	switch logProbs.DType() {
	case tensor.Float32:
		output.AsFloat32()[0] = nllFromLogProbs(logProbs.AsFloat32(), targets.AsInt32(), batchSize, numClasses)
	case tensor.Float64:
		output.AsFloat64()[0] = nllFromLogProbs(logProbs.AsFloat64(), targets.AsInt32(), batchSize, numClasses)
	default:
		panic("NLLForward: only supports float32 and float64")
	}

	return output
}

func nllFromLogProbs[T ~float32 | ~float64](logProbsData []T, targetsData []int32, batchSize, numClasses int) T {
	var totalLoss T
	for b := 0; b < batchSize; b++ {
		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic("NLLForward: target index out of bounds")
		}
		totalLoss += -logProbsData[b*numClasses+target]
	}
	return totalLoss / T(batchSize)
}
