package nn

import (
	"fmt"
	"math"

	"github.com/ember-ml/ember/internal/tensor"
)

// CrossEntropyBackend is implemented by backends with a fused softmax +
// negative-log-likelihood loss over logits.
type CrossEntropyBackend interface {
	CrossEntropy(logits, targets *tensor.RawTensor) *tensor.RawTensor
}

// NLLBackend is implemented by backends with a negative-log-likelihood
// loss over log-probabilities.
type NLLBackend interface {
	NLL(logProbs, targets *tensor.RawTensor) *tensor.RawTensor
}

// CrossEntropyLoss computes the multi-class classification loss over raw
// logits.
//
// Mathematically it is NLLLoss applied to LogSoftmax(logits):
//
//	Loss = mean(-LogSoftmax(logits)[b, targets[b]])
//
// Fusing the two keeps the computation numerically stable: the log-sum-exp
// trick bounds the exponentials, so logits beyond ±88 (the float32 exp
// limit) neither overflow nor underflow.
//
// Usage:
//
//	criterion := nn.NewCrossEntropyLoss(backend)
//	logits := model.Forward(batch)              // [batch, classes]
//	loss := criterion.Forward(logits, targets)  // targets: [batch] int32
type CrossEntropyLoss[B tensor.Backend] struct {
	backend B
}

// NewCrossEntropyLoss creates a cross-entropy loss function.
func NewCrossEntropyLoss[B tensor.Backend](backend B) *CrossEntropyLoss[B] {
	return &CrossEntropyLoss[B]{backend: backend}
}

// Forward computes the mean loss over the batch as a scalar tensor.
//
// Logits are [batch, classes]; targets are [batch] int32 class indices in
// [0, classes). On an autodiff-aware backend the fused operation is
// recorded on the tape.
func (c *CrossEntropyLoss[B]) Forward(
	logits *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	if ceb, ok := any(c.backend).(CrossEntropyBackend); ok {
		return tensor.New[float32, B](ceb.CrossEntropy(logits.Raw(), targets.Raw()), c.backend)
	}

	// Forward-only fallback for plain compute backends.
	batchSize, numClasses := checkClassificationShapes("CrossEntropyLoss", logits, targets)

	logitsData := logits.Data()
	targetsData := targets.Data()

	var totalLoss float32
	for b := 0; b < batchSize; b++ {
		row := logitsData[b*numClasses : (b+1)*numClasses]
		logProbs := logSoftmaxRow(row)

		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("CrossEntropyLoss: target %d out of range [0, %d)", target, numClasses))
		}
		totalLoss -= logProbs[target]
	}

	loss := tensor.Zeros[float32, B](tensor.Shape{1}, c.backend)
	loss.Data()[0] = totalLoss / float32(batchSize)
	return loss
}

// Parameters returns nil.
func (c *CrossEntropyLoss[B]) Parameters() []*Parameter[B] {
	return nil
}

// NLLLoss computes mean negative log-likelihood over log-probabilities,
// the second half of the CrossEntropy = LogSoftmax ∘ NLL decomposition.
// Feed it the output of a LogSoftmax module.
type NLLLoss[B tensor.Backend] struct {
	backend B
}

// NewNLLLoss creates an NLL loss function.
func NewNLLLoss[B tensor.Backend](backend B) *NLLLoss[B] {
	return &NLLLoss[B]{backend: backend}
}

// Forward computes the mean loss over the batch as a scalar tensor.
// logProbs are [batch, classes] log-probabilities; targets [batch] int32.
func (n *NLLLoss[B]) Forward(
	logProbs *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) *tensor.Tensor[float32, B] {
	if nb, ok := any(n.backend).(NLLBackend); ok {
		return tensor.New[float32, B](nb.NLL(logProbs.Raw(), targets.Raw()), n.backend)
	}

	batchSize, numClasses := checkClassificationShapes("NLLLoss", logProbs, targets)

	logProbsData := logProbs.Data()
	targetsData := targets.Data()

	var totalLoss float32
	for b := 0; b < batchSize; b++ {
		target := int(targetsData[b])
		if target < 0 || target >= numClasses {
			panic(fmt.Sprintf("NLLLoss: target %d out of range [0, %d)", target, numClasses))
		}
		totalLoss -= logProbsData[b*numClasses+target]
	}

	loss := tensor.Zeros[float32, B](tensor.Shape{1}, n.backend)
	loss.Data()[0] = totalLoss / float32(batchSize)
	return loss
}

// Parameters returns nil.
func (n *NLLLoss[B]) Parameters() []*Parameter[B] {
	return nil
}

func checkClassificationShapes[B tensor.Backend](
	name string,
	scores *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) (batchSize, numClasses int) {
	shape := scores.Shape()
	if len(shape) != 2 {
		panic(name + ": scores must be 2D [batch, classes]")
	}
	if len(targets.Shape()) != 1 || targets.Shape()[0] != shape[0] {
		panic(name + ": targets must have shape [batch]")
	}
	return shape[0], shape[1]
}

// logSoftmaxRow computes log(softmax(z)) for one row using the log-sum-exp
// trick: LogSoftmax(z)[i] = z[i] - (max(z) + log(Σ exp(z - max(z)))).
func logSoftmaxRow(z []float32) []float32 {
	result := make([]float32, len(z))

	maxZ := z[0]
	for _, v := range z[1:] {
		if v > maxZ {
			maxZ = v
		}
	}

	var sumExp float64
	for _, v := range z {
		sumExp += math.Exp(float64(v - maxZ))
	}
	logSumExp := maxZ + float32(math.Log(sumExp))

	for i, v := range z {
		result[i] = v - logSumExp
	}
	return result
}
