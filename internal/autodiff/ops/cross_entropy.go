package ops

import "github.com/ember-ml/ember/internal/tensor"

// CrossEntropyOp records the fused softmax + negative-log-likelihood loss.
//
// Forward:
//
//	Loss = mean(-log_softmax(logits)[targets])
//
// computed with the log-sum-exp trick.
//
// Backward:
//
//	∂L/∂logits = (softmax(logits) - y_one_hot) / batch_size
//
// The clean gradient is the reason softmax and cross-entropy are fused
// rather than composed from Softmax, Log and a gather.
//
// Shapes: logits [batch, classes], targets [batch] (int32 class indices),
// output is a single-element mean loss.
type CrossEntropyOp struct {
	logits  *tensor.RawTensor
	targets *tensor.RawTensor
	output  *tensor.RawTensor
}

// NewCrossEntropyOp creates a CrossEntropyOp.
func NewCrossEntropyOp(logits, targets, output *tensor.RawTensor) *CrossEntropyOp {
	return &CrossEntropyOp{
		logits:  logits,
		targets: targets,
		output:  output,
	}
}

// Inputs returns [logits]. Targets are class indices and take no gradient.
func (op *CrossEntropyOp) Inputs() []*tensor.RawTensor {
	return []*tensor.RawTensor{op.logits}
}

// Output returns the scalar loss tensor.
func (op *CrossEntropyOp) Output() *tensor.RawTensor { return op.output }

// Backward computes (softmax - one_hot) / batch, scaled by the upstream
// gradient.
func (op *CrossEntropyOp) Backward(outputGrad *tensor.RawTensor, _ tensor.Backend) []*tensor.RawTensor {
	logitsShape := op.logits.Shape()
	if len(logitsShape) != 2 {
		panic("CrossEntropyOp: backward only supports 2D logits [batch, classes]")
	}

	batchSize := logitsShape[0]
	numClasses := logitsShape[1]

	logitsGrad, err := tensor.NewRaw(logitsShape, op.logits.DType(), op.logits.Device())
	if err != nil {
		panic(err)
	}

	switch op.logits.DType() {
	case tensor.Float32:
		crossEntropyGrad(
			op.logits.AsFloat32(),
			op.targets.AsInt32(),
			outputGrad.AsFloat32(),
			logitsGrad.AsFloat32(),
			batchSize, numClasses,
		)
	case tensor.Float64:
		crossEntropyGrad(
			op.logits.AsFloat64(),
			op.targets.AsInt32(),
			outputGrad.AsFloat64(),
			logitsGrad.AsFloat64(),
			batchSize, numClasses,
		)
	default:
		panic("CrossEntropyOp: backward only supports float32 and float64")
	}

	return []*tensor.RawTensor{logitsGrad}
}

func crossEntropyGrad[T ~float32 | ~float64](
	logitsData []T,
	targetsData []int32,
	outGradData []T,
	gradData []T,
	batchSize, numClasses int,
) {
	gradScale := outGradData[0] // usually 1.0, but respect upstream gradient

	for b := 0; b < batchSize; b++ {
		probs := softmaxRow(logitsData[b*numClasses : (b+1)*numClasses])

		target := int(targetsData[b])
		for i := 0; i < numClasses; i++ {
			grad := probs[i]
			if i == target {
				grad -= 1
			}
			gradData[b*numClasses+i] = gradScale * grad / T(batchSize)
		}
	}
}

// CrossEntropyForward computes mean cross-entropy loss over a batch.
// Used both by the autodiff backend (which then records CrossEntropyOp)
// and directly in evaluation code.
func CrossEntropyForward(logits, targets *tensor.RawTensor, device tensor.Device) *tensor.RawTensor {
	batchSize, numClasses := validateClassification("CrossEntropyForward", logits, targets)

	output, err := tensor.NewRaw(tensor.Shape{1}, logits.DType(), device)
	if err != nil {
		panic(err)
	}

	switch logits.DType() {
	case tensor.Float32:
		output.AsFloat32()[0] = nllFromLogits(logits.AsFloat32(), targets.AsInt32(), batchSize, numClasses)
	case tensor.Float64:
		output.AsFloat64()[0] = nllFromLogits(logits.AsFloat64(), targets.AsInt32(), batchSize, numClasses)
	default:
		panic("CrossEntropyForward: only supports float32 and float64")
	}

	return output
}

func nllFromLogits[T ~float32 | ~float64](logitsData []T, targetsData []int32, batchSize, numClasses int) T {
	var totalLoss T
	for b := 0; b < batchSize; b++ {
		logProbs := logSoftmaxRow(logitsData[b*numClasses : (b+1)*numClasses])

		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic("CrossEntropyForward: target index out of bounds")
		}
		totalLoss += -logProbs[target]
	}
	return totalLoss / T(batchSize)
}

func validateClassification(name string, scores, targets *tensor.RawTensor) (batchSize, numClasses int) {
	scoresShape := scores.Shape()
	if len(scoresShape) != 2 {
		panic(name + ": scores must be 2D [batch, classes]")
	}

	targetsShape := targets.Shape()
	if len(targetsShape) != 1 {
		panic(name + ": targets must be 1D [batch]")
	}

	if targetsShape[0] != scoresShape[0] {
		panic(name + ": batch size mismatch between scores and targets")
	}

	return scoresShape[0], scoresShape[1]
}
