package nn

import (
	"fmt"
	"math/rand"

	"github.com/ember-ml/ember/internal/tensor"
)

// Config describes a Classifier architecture. It is persisted verbatim in
// checkpoint headers, so a saved model can be rebuilt without out-of-band
// configuration.
type Config struct {
	// InputSize is the flattened input width (784 for 28×28 images).
	InputSize int `json:"input_size" yaml:"input_size"`

	// HiddenSizes lists hidden-layer widths in order. Empty means no
	// hidden layers: a single linear map, i.e. multinomial logistic
	// regression.
	HiddenSizes []int `json:"hidden_sizes" yaml:"hidden_sizes"`

	// OutputSize is the number of classes.
	OutputSize int `json:"output_size" yaml:"output_size"`

	// Dropout is the drop probability applied after each hidden ReLU.
	// Zero disables dropout entirely.
	Dropout float32 `json:"dropout" yaml:"dropout"`
}

// DefaultConfig returns the architecture used throughout the examples:
// 784 → 256 → 128 → 64 → 10 with no dropout.
func DefaultConfig() Config {
	return Config{
		InputSize:   784,
		HiddenSizes: []int{256, 128, 64},
		OutputSize:  10,
		Dropout:     0,
	}
}

// Validate checks the configuration for impossible values.
func (c Config) Validate() error {
	if c.InputSize <= 0 {
		return fmt.Errorf("classifier config: input size must be positive, got %d", c.InputSize)
	}
	if c.OutputSize <= 0 {
		return fmt.Errorf("classifier config: output size must be positive, got %d", c.OutputSize)
	}
	for i, h := range c.HiddenSizes {
		if h <= 0 {
			return fmt.Errorf("classifier config: hidden size %d must be positive, got %d", i, h)
		}
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("classifier config: dropout must be in [0, 1), got %v", c.Dropout)
	}
	return nil
}

// Classifier is a configurable multi-layer perceptron for image
// classification. Each hidden layer is Linear → ReLU (→ Dropout when the
// rate is nonzero); the output layer is a plain Linear emitting logits.
//
// Forward returns logits for the fused CrossEntropyLoss path; LogProbs
// returns log-probabilities for the LogSoftmax + NLLLoss decomposition.
type Classifier[B tensor.Backend] struct {
	config  Config
	layers  *Sequential[B]
	backend B
}

// NewClassifier builds a classifier from cfg.
func NewClassifier[B tensor.Backend](cfg Config, backend B) (*Classifier[B], error) {
	return NewClassifierFrom(cfg, backend, nil)
}

// NewClassifierFrom is NewClassifier drawing weight init and dropout masks
// from rng, or the shared source when rng is nil.
func NewClassifierFrom[B tensor.Backend](cfg Config, backend B, rng *rand.Rand) (*Classifier[B], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	layers := NewSequential[B]()
	prev := cfg.InputSize
	for _, width := range cfg.HiddenSizes {
		layers.Add(NewLinearFrom(prev, width, backend, rng))
		layers.Add(NewReLU[B]())
		if cfg.Dropout > 0 {
			layers.Add(NewDropoutSeeded[B](cfg.Dropout, rng))
		}
		prev = width
	}
	layers.Add(NewLinearFrom(prev, cfg.OutputSize, backend, rng))

	return &Classifier[B]{
		config:  cfg,
		layers:  layers,
		backend: backend,
	}, nil
}

// Config returns the architecture description.
func (c *Classifier[B]) Config() Config {
	return c.config
}

// Forward computes logits [batch, OutputSize] from input [batch, InputSize].
func (c *Classifier[B]) Forward(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	return c.layers.Forward(input)
}

// LogProbs computes log-probabilities by applying log-softmax to the
// logits. Pair with NLLLoss; Forward pairs with CrossEntropyLoss. Both
// routes produce identical losses and gradients.
func (c *Classifier[B]) LogProbs(input *tensor.Tensor[float32, B]) *tensor.Tensor[float32, B] {
	logits := c.Forward(input)

	var logSoftmax LogSoftmax[B]
	return logSoftmax.Forward(logits)
}

// Predict returns the predicted class index per row as an int32 tensor
// of shape [batch].
func (c *Classifier[B]) Predict(input *tensor.Tensor[float32, B]) *tensor.Tensor[int32, B] {
	logits := c.Forward(input)
	return tensor.Argmax(logits, 1)
}

// Train puts the model in training mode (dropout active).
func (c *Classifier[B]) Train() { c.layers.Train() }

// Eval puts the model in evaluation mode (dropout disabled).
func (c *Classifier[B]) Eval() { c.layers.Eval() }

// Parameters returns all trainable parameters in layer order.
func (c *Classifier[B]) Parameters() []*Parameter[B] {
	return c.layers.Parameters()
}

// StateDict returns the model's state with layer-index prefixes.
func (c *Classifier[B]) StateDict() map[string]*tensor.Tensor[float32, B] {
	return c.layers.StateDict()
}

// LoadStateDict restores the model's parameters.
func (c *Classifier[B]) LoadStateDict(state map[string]*tensor.Tensor[float32, B]) error {
	return c.layers.LoadStateDict(state)
}
