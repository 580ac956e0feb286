package nn_test

import (
	"errors"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
	"github.com/ember-ml/ember/internal/tensor"
)

// TestCheckpoint_SaveLoadRoundTrip verifies a saved model comes back with
// identical weights and a model rebuilt purely from the file header.
func TestCheckpoint_SaveLoadRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	path := filepath.Join(t.TempDir(), "model.ember")

	cfg := nn.Config{InputSize: 6, HiddenSizes: []int{8, 4}, OutputSize: 3, Dropout: 0.1}
	model, err := nn.NewClassifierFrom(cfg, backend, rand.New(rand.NewSource(1)))
	if err != nil {
		t.Fatalf("NewClassifierFrom failed: %v", err)
	}

	ckpt := &nn.Checkpoint[*autodiff.Backend[*cpu.Backend]]{
		Model:    model,
		Epoch:    7,
		Step:     420,
		Loss:     0.123,
		RunID:    "test-run",
		Metadata: map[string]string{"dataset": "mnist"},
	}
	if err := ckpt.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := nn.Load(path, backend)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	// Architecture rebuilt from the header alone.
	got := loaded.Model.Config()
	if got.InputSize != cfg.InputSize || got.OutputSize != cfg.OutputSize {
		t.Errorf("rebuilt config = %+v, want %+v", got, cfg)
	}
	if len(got.HiddenSizes) != 2 || got.HiddenSizes[0] != 8 || got.HiddenSizes[1] != 4 {
		t.Errorf("rebuilt hidden sizes = %v, want [8 4]", got.HiddenSizes)
	}

	// Weights match exactly.
	srcState := model.StateDict()
	for key, tens := range loaded.Model.StateDict() {
		want := srcState[key].Data()
		for i, v := range tens.Data() {
			if v != want[i] {
				t.Fatalf("weight %q differs after round trip", key)
			}
		}
	}

	// Training metadata survives.
	meta := loaded.Header.Checkpoint
	if meta == nil {
		t.Fatal("no checkpoint metadata in header")
	}
	if meta.Epoch != 7 || meta.Step != 420 || meta.RunID != "test-run" {
		t.Errorf("checkpoint meta = %+v", meta)
	}
	if loaded.Header.Metadata["dataset"] != "mnist" {
		t.Errorf("metadata = %v, want dataset=mnist", loaded.Header.Metadata)
	}
}

// TestCheckpoint_OptimizerStateRoundTrip verifies optimizer buffers are
// stored under the optimizer prefix and restored into a fresh optimizer.
func TestCheckpoint_OptimizerStateRoundTrip(t *testing.T) {
	backend := autodiff.New(cpu.New())
	path := filepath.Join(t.TempDir(), "resume.ember")

	cfg := nn.Config{InputSize: 4, HiddenSizes: []int{3}, OutputSize: 2}
	model, _ := nn.NewClassifierFrom(cfg, backend, rand.New(rand.NewSource(2)))

	opt := optim.NewSGD(model.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)

	// One step with all-ones gradients populates the velocity buffers.
	grads := make(map[*tensor.RawTensor]*tensor.RawTensor)
	for _, p := range model.Parameters() {
		grads[p.Tensor().Raw()] = tensor.Ones[float32](p.Tensor().Shape(), backend).Raw()
	}
	opt.Step(grads)

	ckpt := &nn.Checkpoint[*autodiff.Backend[*cpu.Backend]]{
		Model:         model,
		Optimizer:     opt,
		OptimizerType: "sgd",
	}
	if err := ckpt.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	loaded, err := nn.Load(path, backend)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if len(loaded.OptimizerState) == 0 {
		t.Fatal("no optimizer state in loaded checkpoint")
	}

	fresh := optim.NewSGD(loaded.Model.Parameters(), optim.SGDConfig{LR: 0.1, Momentum: 0.9}, backend)
	if err := fresh.LoadStateDict(loaded.OptimizerState); err != nil {
		t.Fatalf("optimizer LoadStateDict failed: %v", err)
	}

	want := opt.StateDict()
	for key, raw := range fresh.StateDict() {
		src := want[key]
		if src == nil {
			t.Fatalf("restored optimizer has unexpected key %q", key)
		}
		a := raw.AsFloat32()
		b := src.AsFloat32()
		for i := range a {
			if a[i] != b[i] {
				t.Fatalf("optimizer buffer %q differs at %d", key, i)
			}
		}
	}
}

// TestLoadStateInto_ArchitectureMismatch verifies loading weights from a
// different architecture fails with a shape error and leaves the target
// model untouched.
func TestLoadStateInto_ArchitectureMismatch(t *testing.T) {
	backend := autodiff.New(cpu.New())
	path := filepath.Join(t.TempDir(), "small.ember")

	small, _ := nn.NewClassifierFrom(nn.Config{
		InputSize: 4, HiddenSizes: []int{3}, OutputSize: 2,
	}, backend, rand.New(rand.NewSource(3)))

	ckpt := &nn.Checkpoint[*autodiff.Backend[*cpu.Backend]]{Model: small}
	if err := ckpt.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	big, _ := nn.NewClassifierFrom(nn.Config{
		InputSize: 4, HiddenSizes: []int{5}, OutputSize: 2,
	}, backend, rand.New(rand.NewSource(4)))

	before := big.StateDict()["0.weight"].Data()
	beforeCopy := make([]float32, len(before))
	copy(beforeCopy, before)

	err := nn.LoadStateInto(big, path, backend)
	if !errors.Is(err, nn.ErrShapeMismatch) {
		t.Fatalf("LoadStateInto = %v, want ErrShapeMismatch", err)
	}

	after := big.StateDict()["0.weight"].Data()
	for i := range beforeCopy {
		if after[i] != beforeCopy[i] {
			t.Fatal("failed load modified the target model")
		}
	}
}

// TestLoad_MissingFile verifies a clean error for nonexistent paths.
func TestLoad_MissingFile(t *testing.T) {
	backend := cpu.New()
	if _, err := nn.Load(filepath.Join(t.TempDir(), "nope.ember"), backend); err == nil {
		t.Error("Load of missing file should fail")
	}
}
