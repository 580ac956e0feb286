package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	json "github.com/goccy/go-json"

	"github.com/ember-ml/ember/internal/tensor"
)

const emberVersion = "0.3.1"

// Writer writes .ember files.
type Writer struct {
	file   *os.File
	closed bool
}

// NewWriter creates a writer targeting path, truncating any existing file.
func NewWriter(path string) (*Writer, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", path, err)
	}
	return &Writer{file: file}, nil
}

// WriteStateDict writes the state dict and header as a v2 .ember file.
// The header's tensor list, version, and timestamps are filled in here;
// callers only set metadata, architecture, and checkpoint fields.
func (w *Writer) WriteStateDict(state map[string]*tensor.RawTensor, header Header) error {
	if w.closed {
		return ErrWriterClosed
	}
	return Write(w.file, state, header)
}

// Close closes the underlying file.
func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	return w.file.Close()
}

// SaveStateDict writes state to path in one call.
func SaveStateDict(path string, state map[string]*tensor.RawTensor, header Header) error {
	w, err := NewWriter(path)
	if err != nil {
		return err
	}
	if err := w.WriteStateDict(state, header); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

// Write emits a complete v2 .ember stream to out.
//
// Tensors are laid out in sorted name order, so the same state dict always
// produces the same layout (and, metadata aside, the same checksum).
func Write(out io.Writer, state map[string]*tensor.RawTensor, header Header) error {
	names := make([]string, 0, len(state))
	for name := range state {
		if err := ValidateTensorName(name); err != nil {
			return err
		}
		names = append(names, name)
	}
	sort.Strings(names)

	header.FormatVersion = FormatVersionV2
	header.EmberVersion = emberVersion
	if header.CreatedAt.IsZero() {
		header.CreatedAt = time.Now().UTC()
	}

	header.Tensors = make([]TensorMeta, 0, len(names))
	var payloadSize int64
	for _, name := range names {
		raw := state[name]
		size := int64(raw.ByteSize())
		header.Tensors = append(header.Tensors, TensorMeta{
			Name:   name,
			DType:  raw.DType().String(),
			Shape:  []int(raw.Shape()),
			Offset: payloadSize,
			Size:   size,
		})
		payloadSize += size
	}

	payload := make([]byte, 0, payloadSize)
	for _, name := range names {
		payload = append(payload, state[name].Data()...)
	}
	checksum := ComputeChecksum(payload)

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}
	if len(headerJSON) > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	fixed := make([]byte, FixedHeaderSize)
	copy(fixed[0:4], MagicBytes)
	binary.LittleEndian.PutUint32(fixed[4:8], FormatVersionV2)
	binary.LittleEndian.PutUint32(fixed[8:12], headerFlags(header))
	// fixed[12:16] reserved
	binary.LittleEndian.PutUint64(fixed[16:24], uint64(len(headerJSON)))
	binary.LittleEndian.PutUint64(fixed[24:32], uint64(payloadSize))
	copy(fixed[ChecksumOffset:ChecksumOffset+ChecksumSize], checksum[:])

	if _, err := out.Write(fixed); err != nil {
		return fmt.Errorf("write fixed header: %w", err)
	}
	if _, err := out.Write(headerJSON); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if padding := padTo(int64(FixedHeaderSize) + int64(len(headerJSON))); padding > 0 {
		if _, err := out.Write(make([]byte, padding)); err != nil {
			return fmt.Errorf("write padding: %w", err)
		}
	}

	if _, err := out.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}

	return nil
}

func headerFlags(header Header) uint32 {
	var flags uint32
	if len(header.Metadata) > 0 {
		flags |= FlagHasMetadata
	}
	if header.Checkpoint != nil {
		flags |= FlagHasOptimizer
	}
	return flags
}
