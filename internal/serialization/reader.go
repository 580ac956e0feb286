package serialization

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	json "github.com/goccy/go-json"

	"github.com/ember-ml/ember/internal/tensor"
)

// Reader reads .ember files. It parses and validates the header on open;
// tensor payloads are read on demand.
type Reader struct {
	file          *os.File
	header        Header
	version       uint32
	flags         uint32
	payloadOffset int64
	payloadSize   int64
	checksum      [ChecksumSize]byte
	opts          ReaderOptions
	closed        bool
}

// ReaderOptions configures reading behavior.
type ReaderOptions struct {
	// SkipChecksum disables v2 payload checksum verification.
	SkipChecksum bool
	// ValidationLevel defaults to ValidationStrict.
	ValidationLevel ValidationLevel
}

// NewReader opens path with strict validation.
func NewReader(path string) (*Reader, error) {
	return NewReaderWithOptions(path, ReaderOptions{ValidationLevel: ValidationStrict})
}

// NewReaderWithOptions opens path with custom options.
func NewReaderWithOptions(path string, opts ReaderOptions) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	r := &Reader{file: file, opts: opts}
	if err := r.parse(); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	return r, nil
}

func (r *Reader) parse() error {
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r.file, magic); err != nil {
		return fmt.Errorf("read magic: %w", err)
	}
	if string(magic) != MagicBytes {
		return fmt.Errorf("%w: got %q", ErrInvalidMagic, magic)
	}

	if err := binary.Read(r.file, binary.LittleEndian, &r.version); err != nil {
		return fmt.Errorf("read version: %w", err)
	}

	switch r.version {
	case FormatVersionV1:
		if err := r.parseV1(); err != nil {
			return err
		}
	case FormatVersionV2:
		if err := r.parseV2(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, r.version)
	}

	info, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}
	fileRemainder := info.Size() - r.payloadOffset
	if r.version == FormatVersionV1 {
		r.payloadSize = fileRemainder
	} else if r.payloadSize > fileRemainder {
		return &ValidationError{
			Kind:    "truncated_payload",
			Details: fmt.Sprintf("header declares %d payload bytes, file has %d", r.payloadSize, fileRemainder),
		}
	}

	if err := ValidateHeader(&r.header, r.payloadSize, r.opts.ValidationLevel); err != nil {
		return err
	}

	if r.version == FormatVersionV2 && !r.opts.SkipChecksum {
		if err := r.verifyChecksum(); err != nil {
			return err
		}
	}

	return nil
}

func (r *Reader) parseV1() error {
	if err := binary.Read(r.file, binary.LittleEndian, &r.flags); err != nil {
		return fmt.Errorf("read flags: %w", err)
	}

	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}

	if err := r.readHeaderJSON(headerSize); err != nil {
		return err
	}

	pos := int64(preambleSizeV1) + int64(headerSize)
	r.payloadOffset = pos + padTo(pos)
	return nil
}

func (r *Reader) parseV2() error {
	if _, err := r.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("seek: %w", err)
	}

	fixed := make([]byte, FixedHeaderSize)
	if _, err := io.ReadFull(r.file, fixed); err != nil {
		return fmt.Errorf("read fixed header: %w", err)
	}

	r.flags = binary.LittleEndian.Uint32(fixed[8:12])
	headerSize := binary.LittleEndian.Uint64(fixed[16:24])
	r.payloadSize = int64(binary.LittleEndian.Uint64(fixed[24:32]))
	copy(r.checksum[:], fixed[ChecksumOffset:ChecksumOffset+ChecksumSize])

	if headerSize > MaxHeaderSize {
		return ErrHeaderTooLarge
	}
	if err := r.readHeaderJSON(headerSize); err != nil {
		return err
	}

	pos := int64(FixedHeaderSize) + int64(headerSize)
	r.payloadOffset = pos + padTo(pos)
	return nil
}

func (r *Reader) readHeaderJSON(headerSize uint64) error {
	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("read header JSON: %w", err)
	}
	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("decode header JSON: %w", err)
	}
	return nil
}

func (r *Reader) verifyChecksum() error {
	if _, err := r.file.Seek(r.payloadOffset, io.SeekStart); err != nil {
		return fmt.Errorf("seek payload: %w", err)
	}
	computed, err := ComputeChecksumReader(io.LimitReader(r.file, r.payloadSize))
	if err != nil {
		return fmt.Errorf("checksum payload: %w", err)
	}
	return ValidateChecksum(computed, r.checksum)
}

// Header returns the parsed file header.
func (r *Reader) Header() Header {
	return r.header
}

// Version returns the file's format version.
func (r *Reader) Version() int {
	return int(r.version)
}

// Metadata returns the custom metadata map, which may be nil.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// TensorNames lists all tensors in header order.
func (r *Reader) TensorNames() []string {
	names := make([]string, len(r.header.Tensors))
	for i, meta := range r.header.Tensors {
		names[i] = meta.Name
	}
	return names
}

// TensorInfo returns the metadata entry for name.
func (r *Reader) TensorInfo(name string) (*TensorMeta, error) {
	for i := range r.header.Tensors {
		if r.header.Tensors[i].Name == name {
			return &r.header.Tensors[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrTensorNotFound, name)
}

// LoadTensor reads one tensor into a fresh RawTensor on the backend's
// device.
func (r *Reader) LoadTensor(name string, backend tensor.Backend) (*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}

	meta, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	dtype, ok := meta.dataType()
	if !ok {
		return nil, fmt.Errorf("tensor %q: unknown dtype %q", name, meta.DType)
	}

	shape := tensor.Shape(meta.Shape)
	if err := shape.Validate(); err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	raw, err := tensor.NewRaw(shape, dtype, backend.Device())
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	if _, err := r.file.Seek(r.payloadOffset+meta.Offset, io.SeekStart); err != nil {
		return nil, fmt.Errorf("tensor %q: seek: %w", name, err)
	}
	if _, err := io.ReadFull(r.file, raw.Data()); err != nil {
		return nil, fmt.Errorf("tensor %q: read: %w", name, err)
	}

	return raw, nil
}

// ReadStateDict loads every tensor in the file.
func (r *Reader) ReadStateDict(backend tensor.Backend) (map[string]*tensor.RawTensor, error) {
	if r.closed {
		return nil, ErrReaderClosed
	}

	state := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, meta := range r.header.Tensors {
		raw, err := r.LoadTensor(meta.Name, backend)
		if err != nil {
			return nil, err
		}
		state[meta.Name] = raw
	}
	return state, nil
}

// Close closes the underlying file.
func (r *Reader) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	return r.file.Close()
}
