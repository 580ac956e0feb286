package nn

import "errors"

// Sentinel errors returned by LoadStateDict implementations. Callers match
// them with errors.Is; the wrapped message carries the offending key.
var (
	// ErrMissingKey reports a state dict without a required entry.
	ErrMissingKey = errors.New("missing key in state dict")

	// ErrShapeMismatch reports a state dict tensor whose shape does not
	// match the parameter it would replace.
	ErrShapeMismatch = errors.New("shape mismatch in state dict")

	// ErrDTypeMismatch reports a state dict tensor whose dtype does not
	// match the parameter it would replace.
	ErrDTypeMismatch = errors.New("dtype mismatch in state dict")

	// ErrUnexpectedKey reports a state dict entry no parameter claims.
	ErrUnexpectedKey = errors.New("unexpected key in state dict")
)
