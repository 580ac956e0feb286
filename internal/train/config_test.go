package train_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/train"
)

// TestDefaultConfig verifies the defaults are valid as-is.
func TestDefaultConfig(t *testing.T) {
	cfg := train.DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "mnist", cfg.Dataset)
	assert.Equal(t, "adam", cfg.Optimizer)
	assert.Equal(t, []int{256, 128, 64}, cfg.HiddenSizes)
}

// TestLoadConfig verifies YAML keys override defaults and omitted keys
// keep them.
func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
dataset: fashion-mnist
epochs: 3
batch_size: 16
optimizer: sgd
momentum: 0.9
hidden_sizes: [32, 16]
dropout: 0.2
`), 0o644))

	cfg, err := train.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "fashion-mnist", cfg.Dataset)
	assert.Equal(t, 3, cfg.Epochs)
	assert.Equal(t, 16, cfg.BatchSize)
	assert.Equal(t, "sgd", cfg.Optimizer)
	assert.Equal(t, float32(0.9), cfg.Momentum)
	assert.Equal(t, []int{32, 16}, cfg.HiddenSizes)
	assert.Equal(t, float32(0.2), cfg.Dropout)

	// Untouched keys keep their defaults.
	assert.Equal(t, train.DefaultConfig().LearningRate, cfg.LearningRate)
	assert.Equal(t, train.DefaultConfig().Seed, cfg.Seed)
}

// TestLoadConfig_Invalid verifies bad values are rejected at load time.
func TestLoadConfig_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("optimizer: rmsprop\n"), 0o644))

	_, err := train.LoadConfig(path)
	require.Error(t, err)
}

// TestLoadConfig_MissingFile verifies a clean error.
func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := train.LoadConfig(filepath.Join(t.TempDir(), "none.yaml"))
	require.Error(t, err)
}

// TestConfig_Validate exercises each rejection branch.
func TestConfig_Validate(t *testing.T) {
	base := train.DefaultConfig()

	mutate := func(fn func(*train.Config)) train.Config {
		cfg := base
		fn(&cfg)
		return cfg
	}

	tests := []struct {
		name string
		cfg  train.Config
	}{
		{"unknown dataset", mutate(func(c *train.Config) { c.Dataset = "imagenet" })},
		{"zero epochs", mutate(func(c *train.Config) { c.Epochs = 0 })},
		{"zero batch", mutate(func(c *train.Config) { c.BatchSize = 0 })},
		{"negative lr", mutate(func(c *train.Config) { c.LearningRate = -1 })},
		{"bad optimizer", mutate(func(c *train.Config) { c.Optimizer = "lbfgs" })},
		{"val split one", mutate(func(c *train.Config) { c.ValSplit = 1 })},
		{"dropout one", mutate(func(c *train.Config) { c.Dropout = 1 })},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
}

// TestModelConfig verifies the mapping onto the classifier architecture.
func TestModelConfig(t *testing.T) {
	cfg := train.DefaultConfig()
	cfg.HiddenSizes = []int{42}
	cfg.Dropout = 0.3

	mc := cfg.ModelConfig(784, 10)
	assert.Equal(t, nn.Config{
		InputSize:   784,
		HiddenSizes: []int{42},
		OutputSize:  10,
		Dropout:     0.3,
	}, mc)
}

// TestNewOptimizer verifies the optimizer selection switch.
func TestNewOptimizer(t *testing.T) {
	backend := autodiff.New(cpu.New())
	model, err := nn.NewClassifier(nn.Config{InputSize: 4, OutputSize: 2}, backend)
	require.NoError(t, err)

	cfg := train.DefaultConfig()

	cfg.Optimizer = "sgd"
	opt, err := train.NewOptimizer(cfg, model.Parameters(), backend)
	require.NoError(t, err)
	_, ok := opt.(*optim.SGD[*autodiff.Backend[*cpu.Backend]])
	assert.True(t, ok, "want *optim.SGD, got %T", opt)

	cfg.Optimizer = "adam"
	opt, err = train.NewOptimizer(cfg, model.Parameters(), backend)
	require.NoError(t, err)
	_, ok = opt.(*optim.Adam[*autodiff.Backend[*cpu.Backend]])
	assert.True(t, ok, "want *optim.Adam, got %T", opt)

	cfg.Optimizer = "rmsprop"
	_, err = train.NewOptimizer(cfg, model.Parameters(), backend)
	require.Error(t, err)
}
