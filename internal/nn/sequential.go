package nn

import (
	"fmt"
	"strings"

	"github.com/ember-ml/ember/internal/tensor"
)

// Sequential chains modules, feeding each one's output to the next.
//
// State dict keys are prefixed with the module index, "0.weight",
// "1.bias", and so on, so the flat map round-trips through checkpoints
// without ambiguity.
type Sequential[B tensor.Backend] struct {
	modules []Module[B]
}

// NewSequential creates a Sequential container from the given modules.
func NewSequential[B tensor.Backend](modules ...Module[B]) *Sequential[B] {
	return &Sequential[B]{modules: modules}
}

// Add appends a module and returns the container for chaining.
func (s *Sequential[B]) Add(m Module[B]) *Sequential[B] {
	s.modules = append(s.modules, m)
	return s
}

// Len returns the number of contained modules.
func (s *Sequential[B]) Len() int {
	return len(s.modules)
}

// Module returns the module at index i.
func (s *Sequential[B]) Module(i int) Module[B] {
	return s.modules[i]
}

// Forward runs the input through every module in order.
func (s *Sequential[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	out := input
	for _, m := range s.modules {
		out = m.Forward(out)
	}
	return out
}

// Parameters returns the parameters of all contained modules, in order.
func (s *Sequential[B]) Parameters() []*Parameter[B] {
	var params []*Parameter[B]
	for _, m := range s.modules {
		params = append(params, m.Parameters()...)
	}
	return params
}

// Train puts every Trainable submodule in training mode.
func (s *Sequential[B]) Train() {
	for _, m := range s.modules {
		if t, ok := m.(Trainable); ok {
			t.Train()
		}
	}
}

// Eval puts every Trainable submodule in evaluation mode.
func (s *Sequential[B]) Eval() {
	for _, m := range s.modules {
		if t, ok := m.(Trainable); ok {
			t.Eval()
		}
	}
}

// StateDict returns the merged state of all modules with "index." prefixes.
func (s *Sequential[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	state := make(map[string]*tensor.Tensor[float32, B])
	for i, m := range s.modules {
		for key, t := range m.StateDict() {
			state[fmt.Sprintf("%d.%s", i, key)] = t
		}
	}
	return state
}

// LoadStateDict splits keys on their index prefix and dispatches each
// module's slice of the dict to it. Unknown prefixes are rejected so a
// checkpoint from a different architecture fails loudly.
func (s *Sequential[B]) LoadStateDict(state map[string]*tensor.Tensor[float32, B]) error {
	perModule := make([]map[string]*tensor.Tensor[float32, B], len(s.modules))
	for i := range perModule {
		perModule[i] = make(map[string]*tensor.Tensor[float32, B])
	}

	for key, t := range state {
		idxStr, rest, found := strings.Cut(key, ".")
		if !found {
			return fmt.Errorf("%w: %q has no module index prefix", ErrUnexpectedKey, key)
		}
		var idx int
		if _, err := fmt.Sscanf(idxStr, "%d", &idx); err != nil {
			return fmt.Errorf("%w: %q has non-numeric module index", ErrUnexpectedKey, key)
		}
		if idx < 0 || idx >= len(s.modules) {
			return fmt.Errorf("%w: %q indexes module %d of %d", ErrUnexpectedKey, key, idx, len(s.modules))
		}
		perModule[idx][rest] = t
	}

	// Validate every module before loading any, so a bad dict leaves the
	// whole container unchanged.
	for i, m := range s.modules {
		if len(m.StateDict()) != len(perModule[i]) {
			return fmt.Errorf("%w: module %d expects %d entries, got %d",
				ErrMissingKey, i, len(m.StateDict()), len(perModule[i]))
		}
	}

	for i, m := range s.modules {
		if len(perModule[i]) == 0 {
			continue
		}
		if err := m.LoadStateDict(perModule[i]); err != nil {
			return fmt.Errorf("module %d: %w", i, err)
		}
	}
	return nil
}
