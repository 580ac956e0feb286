package dataset

import (
	"github.com/ember-ml/ember/internal/tensor"
)

// Batch is one training batch as backend tensors: images [N, ImageSize]
// float32 and labels [N] int32.
type Batch[B tensor.Backend] struct {
	Images *tensor.Tensor[float32, B]
	Labels *tensor.Tensor[int32, B]
	Size   int
}

// Batches cuts the dataset into consecutive batches of at most batchSize
// samples. The final batch is smaller when the length does not divide
// evenly. Shuffle first for stochastic ordering.
func Batches[B tensor.Backend](d *Dataset, batchSize int, backend B) []Batch[B] {
	if batchSize <= 0 {
		panic("dataset: batch size must be positive")
	}

	n := d.Len()
	batches := make([]Batch[B], 0, (n+batchSize-1)/batchSize)

	for start := 0; start < n; start += batchSize {
		end := min(start+batchSize, n)
		size := end - start

		images, err := tensor.FromSlice(
			d.Images[start*d.ImageSize:end*d.ImageSize],
			tensor.Shape{size, d.ImageSize},
			backend,
		)
		if err != nil {
			panic(err) // slice length matches shape by construction
		}

		labels, err := tensor.FromSlice(
			d.Labels[start:end],
			tensor.Shape{size},
			backend,
		)
		if err != nil {
			panic(err)
		}

		batches = append(batches, Batch[B]{Images: images, Labels: labels, Size: size})
	}

	return batches
}
