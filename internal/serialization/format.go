// Package serialization implements the .ember binary checkpoint format.
//
// An .ember file is a fixed binary preamble, a JSON header describing the
// tensors and training state, alignment padding, and the raw little-endian
// tensor payloads:
//
//	v1: magic "EMBR" | u32 version | u32 flags | u64 header size | JSON header | pad | payload
//	v2: 64-byte fixed header (magic, version, flags, header size, payload
//	    size, SHA-256 of payload) | JSON header | pad | payload
//
// Payloads start on a 64-byte boundary. Writers emit v2; readers accept
// both versions and verify the v2 checksum unless told not to.
package serialization

import (
	"time"

	"github.com/ember-ml/ember/internal/tensor"
)

// Format constants.
const (
	MagicBytes      = "EMBR"
	FormatVersionV1 = 1 // no checksum
	FormatVersionV2 = 2 // 64-byte fixed header with SHA-256 payload checksum

	PayloadAlignment = 64
	FixedHeaderSize  = 64   // v2 fixed header (0x40 bytes)
	ChecksumSize     = 32   // SHA-256
	ChecksumOffset   = 0x20 // checksum position in the v2 fixed header

	// v1 preamble: magic + version + flags + header size.
	preambleSizeV1 = 4 + 4 + 4 + 8
)

// Header flag bits.
const (
	FlagHasOptimizer uint32 = 1 << 0 // optimizer state tensors present
	FlagHasMetadata  uint32 = 1 << 1 // custom metadata present
)

// Header is the JSON header of an .ember file.
type Header struct {
	FormatVersion int               `json:"format_version"`
	EmberVersion  string            `json:"ember_version"`
	CreatedAt     time.Time         `json:"created_at"`
	Tensors       []TensorMeta      `json:"tensors"`
	Metadata      map[string]string `json:"metadata,omitempty"`

	// Architecture lets a reader rebuild the model without out-of-band
	// configuration.
	Architecture *ArchitectureMeta `json:"architecture,omitempty"`

	// Checkpoint carries training state when the file is a training
	// checkpoint rather than bare weights.
	Checkpoint *CheckpointMeta `json:"checkpoint,omitempty"`
}

// TensorMeta describes one tensor in the payload. Offset is relative to
// the start of the payload section.
type TensorMeta struct {
	Name   string `json:"name"`
	DType  string `json:"dtype"`
	Shape  []int  `json:"shape"`
	Offset int64  `json:"offset"`
	Size   int64  `json:"size"`
}

// ArchitectureMeta mirrors the classifier configuration.
type ArchitectureMeta struct {
	InputSize   int     `json:"input_size"`
	HiddenSizes []int   `json:"hidden_sizes"`
	OutputSize  int     `json:"output_size"`
	Dropout     float32 `json:"dropout"`
}

// CheckpointMeta records training progress at save time.
type CheckpointMeta struct {
	Epoch         int               `json:"epoch"`
	Step          int64             `json:"step"`
	Loss          float64           `json:"loss"`
	OptimizerType string            `json:"optimizer_type,omitempty"`
	RunID         string            `json:"run_id,omitempty"`
	Extra         map[string]string `json:"extra,omitempty"`
}

// NumElements returns the element count implied by the shape.
func (m TensorMeta) NumElements() int {
	n := 1
	for _, d := range m.Shape {
		n *= d
	}
	return n
}

// dataType resolves the metadata's dtype string.
func (m TensorMeta) dataType() (tensor.DataType, bool) {
	return tensor.ParseDataType(m.DType)
}

// padTo returns the bytes needed to advance pos to the next aligned
// boundary.
func padTo(pos int64) int64 {
	return (PayloadAlignment - (pos % PayloadAlignment)) % PayloadAlignment
}
