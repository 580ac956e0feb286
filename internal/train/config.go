// Package train drives the training loop: epochs of batched forward,
// backward, and optimizer steps with validation passes, metrics history,
// and periodic checkpointing.
package train

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ember-ml/ember/internal/dataset"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/tensor"
)

// Config holds a full training run description, loadable from YAML.
type Config struct {
	Dataset string `yaml:"dataset"`
	DataDir string `yaml:"data_dir"`

	Epochs       int     `yaml:"epochs"`
	BatchSize    int     `yaml:"batch_size"`
	LearningRate float32 `yaml:"learning_rate"`
	Optimizer    string  `yaml:"optimizer"` // "sgd" or "adam"
	Momentum     float32 `yaml:"momentum"`  // sgd only

	HiddenSizes []int   `yaml:"hidden_sizes"`
	Dropout     float32 `yaml:"dropout"`

	// ValSplit is the fraction of the training set held out for
	// validation.
	ValSplit float64 `yaml:"val_split"`

	Seed int64 `yaml:"seed"`

	CheckpointDir   string `yaml:"checkpoint_dir"`
	CheckpointEvery int    `yaml:"checkpoint_every"` // epochs; 0 disables periodic saves

	LogLevel string `yaml:"log_level"`
}

// DefaultConfig returns the settings the examples train with.
func DefaultConfig() Config {
	return Config{
		Dataset:         string(dataset.MNIST),
		DataDir:         "data",
		Epochs:          5,
		BatchSize:       64,
		LearningRate:    0.001,
		Optimizer:       "adam",
		HiddenSizes:     []int{256, 128, 64},
		Dropout:         0,
		ValSplit:        0.1,
		Seed:            42,
		CheckpointDir:   "checkpoints",
		CheckpointEvery: 1,
		LogLevel:        "info",
	}
}

// LoadConfig reads a YAML config file over the defaults, so omitted keys
// keep their default values.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects impossible training settings.
func (c Config) Validate() error {
	if _, err := dataset.ParseName(c.Dataset); err != nil {
		return err
	}
	if c.Epochs <= 0 {
		return fmt.Errorf("epochs must be positive, got %d", c.Epochs)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.LearningRate <= 0 {
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	}
	if c.Optimizer != "sgd" && c.Optimizer != "adam" {
		return fmt.Errorf("optimizer must be \"sgd\" or \"adam\", got %q", c.Optimizer)
	}
	if c.ValSplit < 0 || c.ValSplit >= 1 {
		return fmt.Errorf("validation split must be in [0, 1), got %v", c.ValSplit)
	}
	if c.Dropout < 0 || c.Dropout >= 1 {
		return fmt.Errorf("dropout must be in [0, 1), got %v", c.Dropout)
	}
	return nil
}

// ModelConfig maps the training config onto a classifier architecture for
// the given input width and class count.
func (c Config) ModelConfig(inputSize, numClasses int) nn.Config {
	return nn.Config{
		InputSize:   inputSize,
		HiddenSizes: c.HiddenSizes,
		OutputSize:  numClasses,
		Dropout:     c.Dropout,
	}
}

// NewOptimizer builds the configured optimizer over params.
func NewOptimizer[B tensor.Backend](c Config, params []*nn.Parameter[B], backend B) (optim.Optimizer, error) {
	switch c.Optimizer {
	case "sgd":
		return optim.NewSGD(params, optim.SGDConfig{
			LR:       c.LearningRate,
			Momentum: c.Momentum,
		}, backend), nil
	case "adam":
		return optim.NewAdam(params, optim.AdamConfig{
			LR: c.LearningRate,
		}, backend), nil
	default:
		return nil, fmt.Errorf("unknown optimizer %q", c.Optimizer)
	}
}
