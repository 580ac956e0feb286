package dataset_test

import (
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/dataset"
	"github.com/ember-ml/ember/internal/tensor"
)

// writeIDXImages emits a big-endian IDX3 image file.
func writeIDXImages(t *testing.T, path string, rows, cols int, images [][]byte, gzipped bool) {
	t.Helper()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0x00000803))
	binary.Write(&buf, binary.BigEndian, uint32(len(images)))
	binary.Write(&buf, binary.BigEndian, uint32(rows))
	binary.Write(&buf, binary.BigEndian, uint32(cols))
	for _, img := range images {
		buf.Write(img)
	}
	writeMaybeGzipped(t, path, buf.Bytes(), gzipped)
}

// writeIDXLabels emits a big-endian IDX1 label file.
func writeIDXLabels(t *testing.T, path string, labels []byte, gzipped bool) {
	t.Helper()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0x00000801))
	binary.Write(&buf, binary.BigEndian, uint32(len(labels)))
	buf.Write(labels)
	writeMaybeGzipped(t, path, buf.Bytes(), gzipped)
}

func writeMaybeGzipped(t *testing.T, path string, data []byte, gzipped bool) {
	t.Helper()

	if gzipped {
		var gz bytes.Buffer
		w := gzip.NewWriter(&gz)
		if _, err := w.Write(data); err != nil {
			t.Fatalf("gzip write: %v", err)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("gzip close: %v", err)
		}
		data = gz.Bytes()
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// writeSplit lays down a 2x2-pixel train split with the given samples.
func writeSplit(t *testing.T, dir string, images [][]byte, labels []byte, gzipped bool) {
	t.Helper()

	suffix := ""
	if gzipped {
		suffix = ".gz"
	}
	writeIDXImages(t, filepath.Join(dir, "train-images-idx3-ubyte"+suffix), 2, 2, images, gzipped)
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"+suffix), labels, gzipped)
}

// TestParseName accepts the two supported datasets and rejects the rest.
func TestParseName(t *testing.T) {
	if _, err := dataset.ParseName("mnist"); err != nil {
		t.Errorf("ParseName(mnist) failed: %v", err)
	}
	if _, err := dataset.ParseName("fashion-mnist"); err != nil {
		t.Errorf("ParseName(fashion-mnist) failed: %v", err)
	}
	if _, err := dataset.ParseName("cifar10"); err == nil {
		t.Error("ParseName(cifar10) should fail")
	}
}

// TestLoad verifies IDX parsing, normalization, and label agreement.
func TestLoad(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir,
		[][]byte{
			{0, 51, 102, 255},
			{255, 204, 153, 0},
		},
		[]byte{3, 7},
		false,
	)

	ds, err := dataset.Load(dir, dataset.MNIST, true)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if ds.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", ds.Len())
	}
	if ds.ImageSize != 4 {
		t.Errorf("ImageSize = %d, want 4", ds.ImageSize)
	}
	if ds.NumClasses != 10 {
		t.Errorf("NumClasses = %d, want 10", ds.NumClasses)
	}

	// Pixels normalized to [0, 1].
	if got := ds.Images[3]; got != 1 {
		t.Errorf("Images[3] = %f, want 1 (pixel 255)", got)
	}
	if got := ds.Images[0]; got != 0 {
		t.Errorf("Images[0] = %f, want 0 (pixel 0)", got)
	}
	if got := ds.Images[1]; got != 51.0/255.0 {
		t.Errorf("Images[1] = %f, want %f", got, 51.0/255.0)
	}

	if ds.Labels[0] != 3 || ds.Labels[1] != 7 {
		t.Errorf("Labels = %v, want [3 7]", ds.Labels)
	}
}

// TestLoad_Gzipped verifies transparent .gz handling.
func TestLoad_Gzipped(t *testing.T) {
	dir := t.TempDir()
	writeSplit(t, dir,
		[][]byte{{10, 20, 30, 40}},
		[]byte{1},
		true,
	)

	ds, err := dataset.Load(dir, dataset.MNIST, true)
	if err != nil {
		t.Fatalf("Load of gzipped files failed: %v", err)
	}
	if ds.Len() != 1 || ds.Labels[0] != 1 {
		t.Errorf("unexpected dataset: len=%d labels=%v", ds.Len(), ds.Labels)
	}
}

// TestLoad_Subdirectory verifies the dir/<name>/ fallback location.
func TestLoad_Subdirectory(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "fashion-mnist")
	if err := os.MkdirAll(sub, 0o755); err != nil {
		t.Fatal(err)
	}
	writeSplit(t, sub, [][]byte{{1, 2, 3, 4}}, []byte{5}, false)

	ds, err := dataset.Load(dir, dataset.FashionMNIST, true)
	if err != nil {
		t.Fatalf("Load from subdirectory failed: %v", err)
	}
	if ds.Labels[0] != 5 {
		t.Errorf("Labels[0] = %d, want 5", ds.Labels[0])
	}
}

// TestLoad_BadMagic verifies corrupted headers are rejected.
func TestLoad_BadMagic(t *testing.T) {
	dir := t.TempDir()

	var buf bytes.Buffer
	binary.Write(&buf, binary.BigEndian, uint32(0xDEADBEEF))
	binary.Write(&buf, binary.BigEndian, uint32(1))
	binary.Write(&buf, binary.BigEndian, uint32(2))
	binary.Write(&buf, binary.BigEndian, uint32(2))
	buf.Write([]byte{0, 0, 0, 0})
	writeMaybeGzipped(t, filepath.Join(dir, "train-images-idx3-ubyte"), buf.Bytes(), false)
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []byte{0}, false)

	if _, err := dataset.Load(dir, dataset.MNIST, true); err == nil {
		t.Error("Load with bad magic should fail")
	}
}

// TestLoad_CountMismatch verifies image/label disagreement is rejected.
func TestLoad_CountMismatch(t *testing.T) {
	dir := t.TempDir()
	writeIDXImages(t, filepath.Join(dir, "train-images-idx3-ubyte"), 2, 2,
		[][]byte{{1, 2, 3, 4}, {5, 6, 7, 8}}, false)
	writeIDXLabels(t, filepath.Join(dir, "train-labels-idx1-ubyte"), []byte{1}, false)

	if _, err := dataset.Load(dir, dataset.MNIST, true); err == nil {
		t.Error("Load with mismatched counts should fail")
	}
}

// TestLoad_MissingFiles verifies a clean error when nothing is present.
func TestLoad_MissingFiles(t *testing.T) {
	if _, err := dataset.Load(t.TempDir(), dataset.MNIST, true); err == nil {
		t.Error("Load from empty dir should fail")
	}
}

// TestShuffle verifies determinism and that images follow their labels.
func TestShuffle(t *testing.T) {
	build := func() *dataset.Dataset {
		return &dataset.Dataset{
			Images:     []float32{0, 0, 1, 1, 2, 2, 3, 3},
			Labels:     []int32{0, 1, 2, 3},
			ImageSize:  2,
			NumClasses: 10,
		}
	}

	a := build()
	b := build()
	a.Shuffle(42)
	b.Shuffle(42)

	for i := range a.Labels {
		if a.Labels[i] != b.Labels[i] {
			t.Fatal("same seed produced different orders")
		}
	}

	// Sample integrity: image row i must still equal its label value.
	for i, label := range a.Labels {
		row := a.Images[i*2 : (i+1)*2]
		if row[0] != float32(label) || row[1] != float32(label) {
			t.Errorf("sample %d: label %d but image row %v", i, label, row)
		}
	}

	// A different seed should give a different order for 4 samples more
	// often than not; retry a few seeds to make this robust.
	changed := false
	for seed := int64(1); seed <= 5 && !changed; seed++ {
		c := build()
		c.Shuffle(seed)
		for i := range c.Labels {
			if c.Labels[i] != a.Labels[i] {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("shuffle appears to be a no-op across seeds")
	}
}

// TestSplit verifies fractions, slice sharing, and edge rejection.
func TestSplit(t *testing.T) {
	ds := &dataset.Dataset{
		Images:     make([]float32, 10*2),
		Labels:     make([]int32, 10),
		ImageSize:  2,
		NumClasses: 10,
	}

	head, tail, err := ds.Split(0.8)
	if err != nil {
		t.Fatalf("Split failed: %v", err)
	}
	if head.Len() != 8 || tail.Len() != 2 {
		t.Errorf("split sizes = %d/%d, want 8/2", head.Len(), tail.Len())
	}

	if _, _, err := ds.Split(0); err == nil {
		t.Error("Split(0) should fail: empty head")
	}
	if _, _, err := ds.Split(1); err == nil {
		t.Error("Split(1) should fail: empty tail")
	}
}

// TestBatches verifies batch shapes and the short final batch.
func TestBatches(t *testing.T) {
	backend := cpu.New()

	n, imageSize := 5, 3
	ds := &dataset.Dataset{
		Images:     make([]float32, n*imageSize),
		Labels:     []int32{0, 1, 2, 3, 4},
		ImageSize:  imageSize,
		NumClasses: 10,
	}
	for i := range ds.Images {
		ds.Images[i] = float32(i)
	}

	batches := dataset.Batches(ds, 2, backend)
	if len(batches) != 3 {
		t.Fatalf("got %d batches, want 3", len(batches))
	}

	if !batches[0].Images.Shape().Equal(tensor.Shape{2, 3}) {
		t.Errorf("batch 0 images shape = %v, want [2 3]", batches[0].Images.Shape())
	}
	if !batches[2].Images.Shape().Equal(tensor.Shape{1, 3}) {
		t.Errorf("final batch images shape = %v, want [1 3]", batches[2].Images.Shape())
	}
	if batches[2].Size != 1 {
		t.Errorf("final batch size = %d, want 1", batches[2].Size)
	}

	// Batch 1 starts at sample 2.
	if got := batches[1].Images.Data()[0]; got != 6 {
		t.Errorf("batch 1 first pixel = %f, want 6", got)
	}
	if got := batches[1].Labels.Data()[0]; got != 2 {
		t.Errorf("batch 1 first label = %d, want 2", got)
	}
}

// TestSynthetic verifies the generated blobs are learnable-shaped data:
// right sizes, labels in range, pixels in [0, 1].
func TestSynthetic(t *testing.T) {
	ds := dataset.Synthetic(100, 16, 4, 7)

	if ds.Len() != 100 {
		t.Errorf("Len() = %d, want 100", ds.Len())
	}
	if ds.ImageSize != 16 {
		t.Errorf("ImageSize = %d, want 16", ds.ImageSize)
	}
	if ds.NumClasses != 4 {
		t.Errorf("NumClasses = %d, want 4", ds.NumClasses)
	}

	for i, l := range ds.Labels {
		if l < 0 || l >= 4 {
			t.Fatalf("label %d = %d outside range", i, l)
		}
	}
	for i, p := range ds.Images {
		if p < 0 || p > 1 {
			t.Fatalf("pixel %d = %f outside [0, 1]", i, p)
		}
	}

	// Same seed reproduces the data.
	again := dataset.Synthetic(100, 16, 4, 7)
	for i := range ds.Images {
		if ds.Images[i] != again.Images[i] {
			t.Fatal("synthetic data not reproducible for equal seeds")
		}
	}
}
