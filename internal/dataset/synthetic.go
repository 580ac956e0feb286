package dataset

import "math/rand"

// Synthetic generates a small separable classification dataset for tests
// and demos: each class is a Gaussian blob around a distinct mean pixel
// intensity, clamped to [0, 1] like normalized image data.
func Synthetic(numSamples, imageSize, numClasses int, seed int64) *Dataset {
	rng := rand.New(rand.NewSource(seed))

	d := &Dataset{
		Images:     make([]float32, numSamples*imageSize),
		Labels:     make([]int32, numSamples),
		ImageSize:  imageSize,
		NumClasses: numClasses,
	}

	for i := 0; i < numSamples; i++ {
		class := int32(rng.Intn(numClasses))
		d.Labels[i] = class

		mean := (float64(class) + 0.5) / float64(numClasses)
		row := d.Images[i*imageSize : (i+1)*imageSize]
		for j := range row {
			v := mean + rng.NormFloat64()*0.08
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			row[j] = float32(v)
		}
	}

	return d
}
