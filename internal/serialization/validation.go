package serialization

import (
	"fmt"
	"sort"
	"strings"
)

// Limits guarding against hostile or corrupt files.
const (
	MaxHeaderSize    = 100 * 1024 * 1024
	MaxTensorCount   = 100_000
	MaxTensorNameLen = 4096
)

// ValidationLevel controls how much of the header is checked on open.
type ValidationLevel int

const (
	// ValidationStrict checks names, bounds, and offset overlap (default).
	ValidationStrict ValidationLevel = iota
	// ValidationNormal checks names and counts only.
	ValidationNormal
	// ValidationNone skips validation. Trusted input only.
	ValidationNone
)

// ValidateHeader checks the header against the payload size at the given
// strictness.
func ValidateHeader(h *Header, payloadSize int64, level ValidationLevel) error {
	if level == ValidationNone {
		return nil
	}

	if len(h.Tensors) > MaxTensorCount {
		return &ValidationError{
			Kind:    "too_many_tensors",
			Details: fmt.Sprintf("got %d, max %d", len(h.Tensors), MaxTensorCount),
		}
	}

	for _, t := range h.Tensors {
		if err := ValidateTensorName(t.Name); err != nil {
			return err
		}
		if err := validateTensorMeta(t); err != nil {
			return err
		}
	}

	if level == ValidationStrict {
		if err := ValidateTensorOffsets(h.Tensors, payloadSize); err != nil {
			return err
		}
	}

	return nil
}

// ValidateTensorName rejects names that could smuggle paths or bypass
// length checks.
func ValidateTensorName(name string) error {
	if name == "" {
		return &ValidationError{Kind: "invalid_name", Details: "empty tensor name"}
	}
	if len(name) > MaxTensorNameLen {
		return &ValidationError{
			Kind:    "name_too_long",
			Tensor:  name[:64],
			Details: fmt.Sprintf("length %d > max %d", len(name), MaxTensorNameLen),
		}
	}
	if strings.Contains(name, "..") {
		return &ValidationError{Kind: "invalid_name", Tensor: name, Details: "contains '..'"}
	}
	if strings.ContainsAny(name, "/\\") {
		return &ValidationError{Kind: "invalid_name", Tensor: name, Details: "contains path separator"}
	}
	if strings.Contains(name, "\x00") {
		return &ValidationError{Kind: "invalid_name", Tensor: name, Details: "contains null byte"}
	}
	return nil
}

// validateTensorMeta checks that the declared dtype, shape, and size agree.
func validateTensorMeta(t TensorMeta) error {
	dtype, ok := t.dataType()
	if !ok {
		return &ValidationError{
			Kind:    "unknown_dtype",
			Tensor:  t.Name,
			Details: fmt.Sprintf("dtype %q", t.DType),
		}
	}

	for i, d := range t.Shape {
		if d <= 0 {
			return &ValidationError{
				Kind:    "invalid_shape",
				Tensor:  t.Name,
				Details: fmt.Sprintf("dimension %d is %d", i, d),
			}
		}
	}

	expected := int64(t.NumElements() * dtype.Size())
	if t.Size != expected {
		return &ValidationError{
			Kind:    "size_mismatch",
			Tensor:  t.Name,
			Details: fmt.Sprintf("declared %d bytes, shape %v of %s needs %d", t.Size, t.Shape, t.DType, expected),
		}
	}

	return nil
}

// ValidateTensorOffsets rejects negative, out-of-bounds, or overlapping
// payload regions.
func ValidateTensorOffsets(tensors []TensorMeta, payloadSize int64) error {
	sorted := make([]TensorMeta, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	for i, t := range sorted {
		if t.Offset < 0 || t.Size < 0 {
			return &ValidationError{
				Kind:    "negative_offset",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset=%d, size=%d", t.Offset, t.Size),
			}
		}
		if t.Offset+t.Size > payloadSize {
			return &ValidationError{
				Kind:    "out_of_bounds",
				Tensor:  t.Name,
				Details: fmt.Sprintf("offset %d + size %d > payload %d", t.Offset, t.Size, payloadSize),
			}
		}
		if i < len(sorted)-1 {
			next := sorted[i+1]
			if t.Offset+t.Size > next.Offset {
				return &ValidationError{
					Kind:    "offset_overlap",
					Tensor:  t.Name,
					Tensor2: next.Name,
					Details: fmt.Sprintf("regions [%d-%d) and [%d-%d) overlap",
						t.Offset, t.Offset+t.Size, next.Offset, next.Offset+next.Size),
				}
			}
		}
	}

	return nil
}
