// Package dataset loads the MNIST family of image classification datasets
// from IDX files and prepares shuffled, batched tensors for training.
package dataset

import (
	"compress/gzip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// IDX magic numbers (big-endian): 0x08 marks uint8 data, the last byte is
// the dimension count.
const (
	idxImagesMagic uint32 = 0x00000803 // 2051: uint8, 3 dims
	idxLabelsMagic uint32 = 0x00000801 // 2049: uint8, 1 dim
)

// ErrBadMagic reports an IDX file whose magic number does not match the
// expected kind.
var ErrBadMagic = errors.New("unexpected IDX magic number")

// idxImages is a decoded image file: count × rows × cols uint8 pixels.
type idxImages struct {
	count  int
	rows   int
	cols   int
	pixels []uint8
}

// readIDXImages decodes an images file (magic 2051).
func readIDXImages(r io.Reader) (*idxImages, error) {
	var head struct {
		Magic uint32
		Count uint32
		Rows  uint32
		Cols  uint32
	}
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, fmt.Errorf("read image header: %w", err)
	}
	if head.Magic != idxImagesMagic {
		return nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrBadMagic, head.Magic, idxImagesMagic)
	}

	count := int(head.Count)
	rows := int(head.Rows)
	cols := int(head.Cols)
	if rows == 0 || cols == 0 || rows > 4096 || cols > 4096 {
		return nil, fmt.Errorf("implausible image dimensions %dx%d", rows, cols)
	}

	pixels := make([]uint8, count*rows*cols)
	if _, err := io.ReadFull(r, pixels); err != nil {
		return nil, fmt.Errorf("read %d images: %w", count, err)
	}

	return &idxImages{count: count, rows: rows, cols: cols, pixels: pixels}, nil
}

// readIDXLabels decodes a labels file (magic 2049).
func readIDXLabels(r io.Reader) ([]uint8, error) {
	var head struct {
		Magic uint32
		Count uint32
	}
	if err := binary.Read(r, binary.BigEndian, &head); err != nil {
		return nil, fmt.Errorf("read label header: %w", err)
	}
	if head.Magic != idxLabelsMagic {
		return nil, fmt.Errorf("%w: got 0x%08x, want 0x%08x", ErrBadMagic, head.Magic, idxLabelsMagic)
	}

	labels := make([]uint8, head.Count)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read %d labels: %w", head.Count, err)
	}
	return labels, nil
}

// openIDX opens an IDX file, transparently decompressing ".gz" names.
// The returned closer releases both the gzip stream and the file.
func openIDX(path string) (io.ReadCloser, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}

	if !strings.HasSuffix(path, ".gz") {
		return file, nil
	}

	gz, err := gzip.NewReader(file)
	if err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("gzip %s: %w", path, err)
	}
	return &gzipReadCloser{gz: gz, file: file}, nil
}

type gzipReadCloser struct {
	gz   *gzip.Reader
	file *os.File
}

func (g *gzipReadCloser) Read(p []byte) (int, error) {
	return g.gz.Read(p)
}

func (g *gzipReadCloser) Close() error {
	gzErr := g.gz.Close()
	fileErr := g.file.Close()
	if gzErr != nil {
		return gzErr
	}
	return fileErr
}
