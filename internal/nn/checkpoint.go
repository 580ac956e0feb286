package nn

import (
	"fmt"
	"strings"

	"github.com/ember-ml/ember/internal/serialization"
	"github.com/ember-ml/ember/internal/tensor"
)

// optimizerStatePrefix separates optimizer tensors from model tensors in
// the flat checkpoint state dict.
const optimizerStatePrefix = "optimizer."

// OptimizerState is the slice of an optimizer a checkpoint needs: its
// internal buffers as a state dict. Declared here rather than imported so
// nn does not depend on optim (which depends on nn).
type OptimizerState interface {
	StateDict() map[string]*tensor.RawTensor
	LoadStateDict(state map[string]*tensor.RawTensor) error
}

// Checkpoint bundles everything needed to resume training: the model, the
// optimizer's buffers, and progress counters. Save embeds the model's
// architecture in the file header, so Load can rebuild the model without
// any out-of-band configuration.
type Checkpoint[B tensor.Backend] struct {
	Model         *Classifier[B]
	Optimizer     OptimizerState // nil for weights-only saves
	OptimizerType string
	Epoch         int
	Step          int64
	Loss          float64
	RunID         string
	Metadata      map[string]string
}

// Save writes the checkpoint to path in .ember format.
func (c *Checkpoint[B]) Save(path string) error {
	if c.Model == nil {
		return fmt.Errorf("checkpoint: no model to save")
	}

	state := make(map[string]*tensor.RawTensor)
	for name, t := range c.Model.StateDict() {
		state[name] = t.Raw()
	}
	if c.Optimizer != nil {
		for name, raw := range c.Optimizer.StateDict() {
			state[optimizerStatePrefix+name] = raw
		}
	}

	cfg := c.Model.Config()
	header := serialization.Header{
		Metadata: c.Metadata,
		Architecture: &serialization.ArchitectureMeta{
			InputSize:   cfg.InputSize,
			HiddenSizes: cfg.HiddenSizes,
			OutputSize:  cfg.OutputSize,
			Dropout:     cfg.Dropout,
		},
		Checkpoint: &serialization.CheckpointMeta{
			Epoch:         c.Epoch,
			Step:          c.Step,
			Loss:          c.Loss,
			OptimizerType: c.OptimizerType,
			RunID:         c.RunID,
		},
	}

	return serialization.SaveStateDict(path, state, header)
}

// LoadedCheckpoint is the result of reading a checkpoint file: a model
// rebuilt from the header's architecture with its weights loaded, the raw
// optimizer state (feed to OptimizerState.LoadStateDict after building
// the matching optimizer), and the full header.
type LoadedCheckpoint[B tensor.Backend] struct {
	Model          *Classifier[B]
	OptimizerState map[string]*tensor.RawTensor
	Header         serialization.Header
}

// Load reads a checkpoint, rebuilds the model from the embedded
// architecture, and restores its parameters.
func Load[B tensor.Backend](path string, backend B) (*LoadedCheckpoint[B], error) {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return nil, err
	}
	defer reader.Close()

	header := reader.Header()
	if header.Architecture == nil {
		return nil, fmt.Errorf("checkpoint %s: no architecture metadata in header", path)
	}

	arch := header.Architecture
	model, err := NewClassifier[B](Config{
		InputSize:   arch.InputSize,
		HiddenSizes: arch.HiddenSizes,
		OutputSize:  arch.OutputSize,
		Dropout:     arch.Dropout,
	}, backend)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}

	state, err := reader.ReadStateDict(backend)
	if err != nil {
		return nil, err
	}

	modelState, optState, err := splitCheckpointState[B](state, backend)
	if err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}

	if err := loadValidated(model, modelState); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", path, err)
	}

	return &LoadedCheckpoint[B]{
		Model:          model,
		OptimizerState: optState,
		Header:         header,
	}, nil
}

// LoadClassifier reads just the model from a checkpoint.
func LoadClassifier[B tensor.Backend](path string, backend B) (*Classifier[B], error) {
	loaded, err := Load(path, backend)
	if err != nil {
		return nil, err
	}
	return loaded.Model, nil
}

// LoadStateInto restores a checkpoint's model weights into an existing
// model. All tensors are validated against the model before any parameter
// is written, so an architecture mismatch returns an error and leaves the
// model untouched.
func LoadStateInto[B tensor.Backend](model *Classifier[B], path string, backend B) error {
	reader, err := serialization.NewReader(path)
	if err != nil {
		return err
	}
	defer reader.Close()

	state, err := reader.ReadStateDict(backend)
	if err != nil {
		return err
	}

	modelState, _, err := splitCheckpointState[B](state, backend)
	if err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}

	if err := loadValidated(model, modelState); err != nil {
		return fmt.Errorf("checkpoint %s: %w", path, err)
	}
	return nil
}

// splitCheckpointState separates model tensors from "optimizer."-prefixed
// ones and types the model tensors as float32.
func splitCheckpointState[B tensor.Backend](
	state map[string]*tensor.RawTensor,
	backend B,
) (map[string]*tensor.Tensor[float32, B], map[string]*tensor.RawTensor, error) {
	modelState := make(map[string]*tensor.Tensor[float32, B])
	optState := make(map[string]*tensor.RawTensor)

	for name, raw := range state {
		if rest, ok := strings.CutPrefix(name, optimizerStatePrefix); ok {
			optState[rest] = raw
			continue
		}
		if raw.DType() != tensor.Float32 {
			return nil, nil, fmt.Errorf("%w: %q is %s, parameters are float32",
				ErrDTypeMismatch, name, raw.DType())
		}
		modelState[name] = tensor.New[float32, B](raw, backend)
	}

	return modelState, optState, nil
}

// loadValidated checks every entry against the model's current state dict
// before handing the dict to LoadStateDict.
func loadValidated[B tensor.Backend](
	model *Classifier[B],
	state map[string]*tensor.Tensor[float32, B],
) error {
	expected := model.StateDict()
	if len(expected) != len(state) {
		return fmt.Errorf("%w: model has %d parameters, checkpoint has %d",
			ErrShapeMismatch, len(expected), len(state))
	}

	for name, param := range expected {
		loaded, ok := state[name]
		if !ok {
			return fmt.Errorf("%w: %q", ErrMissingKey, name)
		}
		if !loaded.Shape().Equal(param.Shape()) {
			return fmt.Errorf("%w: %q has shape %v, model expects %v",
				ErrShapeMismatch, name, loaded.Shape(), param.Shape())
		}
	}

	return model.LoadStateDict(state)
}
