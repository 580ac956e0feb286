package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
)

// Name identifies a dataset in the MNIST family. Both use the same IDX
// layout and 28×28 grayscale images, so they differ only in directory.
type Name string

// Supported datasets.
const (
	MNIST        Name = "mnist"
	FashionMNIST Name = "fashion-mnist"
)

// ParseName validates a dataset name from config or CLI input.
func ParseName(s string) (Name, error) {
	switch Name(s) {
	case MNIST, FashionMNIST:
		return Name(s), nil
	default:
		return "", fmt.Errorf("unknown dataset %q (supported: %s, %s)", s, MNIST, FashionMNIST)
	}
}

// Dataset holds a labeled image set with pixels already flattened and
// normalized to [0, 1].
type Dataset struct {
	// Images is sample-major: sample i occupies
	// Images[i*ImageSize : (i+1)*ImageSize].
	Images []float32
	// Labels holds one class index per sample.
	Labels []int32
	// ImageSize is the flattened pixel count per sample (784 for 28×28).
	ImageSize int
	// NumClasses is the number of distinct classes (10 for both datasets).
	NumClasses int
}

// Len returns the number of samples.
func (d *Dataset) Len() int {
	return len(d.Labels)
}

// Load reads the train or test split of the named dataset from dir.
//
// It accepts the conventional IDX file names ("train-images-idx3-ubyte",
// "t10k-images-idx3-ubyte", ...), optionally gzipped, either directly in
// dir or in a dir/<name> subdirectory.
func Load(dir string, name Name, train bool) (*Dataset, error) {
	prefix := "t10k"
	if train {
		prefix = "train"
	}

	imagesPath, err := findIDXFile(dir, name, prefix+"-images-idx3-ubyte")
	if err != nil {
		return nil, err
	}
	labelsPath, err := findIDXFile(dir, name, prefix+"-labels-idx1-ubyte")
	if err != nil {
		return nil, err
	}

	imagesFile, err := openIDX(imagesPath)
	if err != nil {
		return nil, err
	}
	defer imagesFile.Close()
	images, err := readIDXImages(imagesFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", imagesPath, err)
	}

	labelsFile, err := openIDX(labelsPath)
	if err != nil {
		return nil, err
	}
	defer labelsFile.Close()
	labels, err := readIDXLabels(labelsFile)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", labelsPath, err)
	}

	if images.count != len(labels) {
		return nil, fmt.Errorf("%s: %d images but %d labels", dir, images.count, len(labels))
	}

	imageSize := images.rows * images.cols
	ds := &Dataset{
		Images:     make([]float32, images.count*imageSize),
		Labels:     make([]int32, len(labels)),
		ImageSize:  imageSize,
		NumClasses: 10,
	}
	for i, p := range images.pixels {
		ds.Images[i] = float32(p) / 255.0
	}
	for i, l := range labels {
		ds.Labels[i] = int32(l)
	}

	return ds, nil
}

// findIDXFile tries dir/base, dir/<name>/base, and their ".gz" variants.
func findIDXFile(dir string, name Name, base string) (string, error) {
	candidates := []string{
		filepath.Join(dir, base),
		filepath.Join(dir, base+".gz"),
		filepath.Join(dir, string(name), base),
		filepath.Join(dir, string(name), base+".gz"),
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("no %s for %s under %s (tried %d locations)", base, name, dir, len(candidates))
}

// Shuffle permutes samples in place with a seeded Fisher-Yates pass.
// Images and labels move together.
func (d *Dataset) Shuffle(seed int64) {
	rng := rand.New(rand.NewSource(seed))
	tmp := make([]float32, d.ImageSize)

	for i := d.Len() - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		d.Labels[i], d.Labels[j] = d.Labels[j], d.Labels[i]

		rowI := d.Images[i*d.ImageSize : (i+1)*d.ImageSize]
		rowJ := d.Images[j*d.ImageSize : (j+1)*d.ImageSize]
		copy(tmp, rowI)
		copy(rowI, rowJ)
		copy(rowJ, tmp)
	}
}

// Split divides the dataset into a head of fraction frac and the
// remainder, sharing the underlying slices. Shuffle before splitting if
// the source ordering is not random.
func (d *Dataset) Split(frac float64) (*Dataset, *Dataset, error) {
	if frac <= 0 || frac >= 1 {
		return nil, nil, fmt.Errorf("split fraction must be in (0, 1), got %v", frac)
	}

	n := int(float64(d.Len()) * frac)
	if n == 0 || n == d.Len() {
		return nil, nil, fmt.Errorf("split fraction %v leaves an empty side for %d samples", frac, d.Len())
	}

	head := &Dataset{
		Images:     d.Images[:n*d.ImageSize],
		Labels:     d.Labels[:n],
		ImageSize:  d.ImageSize,
		NumClasses: d.NumClasses,
	}
	tail := &Dataset{
		Images:     d.Images[n*d.ImageSize:],
		Labels:     d.Labels[n:],
		ImageSize:  d.ImageSize,
		NumClasses: d.NumClasses,
	}
	return head, tail, nil
}
