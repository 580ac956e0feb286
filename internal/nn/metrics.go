package nn

import "github.com/ember-ml/ember/internal/tensor"

// Accuracy computes the fraction of rows whose argmax matches the target.
// Works on logits or log-probabilities alike, since argmax is invariant
// under monotone transforms.
func Accuracy[B tensor.Backend](
	scores *tensor.Tensor[float32, B],
	targets *tensor.Tensor[int32, B],
) float32 {
	batchSize, numClasses := checkClassificationShapes("Accuracy", scores, targets)

	scoresData := scores.Data()
	targetsData := targets.Data()

	correct := 0
	for b := 0; b < batchSize; b++ {
		row := scoresData[b*numClasses : (b+1)*numClasses]
		if argmaxRow(row) == int(targetsData[b]) {
			correct++
		}
	}
	return float32(correct) / float32(batchSize)
}

func argmaxRow(row []float32) int {
	maxIdx := 0
	maxVal := row[0]
	for i, v := range row[1:] {
		if v > maxVal {
			maxVal = v
			maxIdx = i + 1
		}
	}
	return maxIdx
}
