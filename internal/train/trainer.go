package train

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/dataset"
	"github.com/ember-ml/ember/internal/logger"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/optim"
)

// EpochMetrics records one epoch of training progress.
type EpochMetrics struct {
	Epoch       int
	TrainLoss   float64
	ValLoss     float64
	ValAccuracy float32
	Duration    time.Duration
}

// Trainer runs the training loop for a classifier: per batch it records
// the forward pass on the gradient tape, walks it backward, applies the
// optimizer, and clears the tape; per epoch it validates in eval mode and
// checkpoints.
type Trainer[B autodiff.BackwardCapable] struct {
	model     *nn.Classifier[B]
	optimizer optim.Optimizer
	criterion *nn.CrossEntropyLoss[B]
	backend   B
	cfg       Config
	log       logger.Logger

	runID   string
	step    int64
	bestAcc float32
	history []EpochMetrics
}

// NewTrainer creates a trainer. Each run gets a fresh uuid run ID that is
// stamped into every checkpoint it writes.
func NewTrainer[B autodiff.BackwardCapable](
	model *nn.Classifier[B],
	optimizer optim.Optimizer,
	backend B,
	cfg Config,
	log logger.Logger,
) *Trainer[B] {
	runID := uuid.NewString()
	return &Trainer[B]{
		model:     model,
		optimizer: optimizer,
		criterion: nn.NewCrossEntropyLoss(backend),
		backend:   backend,
		cfg:       cfg,
		log:       log.With("run_id", runID[:8]),
		runID:     runID,
	}
}

// RunID returns the run identifier stamped into checkpoints.
func (t *Trainer[B]) RunID() string {
	return t.runID
}

// History returns the per-epoch metrics recorded so far.
func (t *Trainer[B]) History() []EpochMetrics {
	return t.history
}

// Run trains for the configured number of epochs and returns the metrics
// history. The validation set may be nil, which skips validation and
// best-model checkpointing.
func (t *Trainer[B]) Run(trainSet, valSet *dataset.Dataset) ([]EpochMetrics, error) {
	tape := t.backend.GetTape()
	tape.StartRecording()
	defer tape.StopRecording()

	t.log.Info("training started",
		"epochs", t.cfg.Epochs,
		"batch_size", t.cfg.BatchSize,
		"optimizer", t.cfg.Optimizer,
		"lr", t.optimizer.GetLR(),
		"train_samples", trainSet.Len(),
	)

	for epoch := 1; epoch <= t.cfg.Epochs; epoch++ {
		start := time.Now()

		trainSet.Shuffle(t.cfg.Seed + int64(epoch))
		trainLoss, err := t.trainEpoch(trainSet)
		if err != nil {
			return t.history, fmt.Errorf("epoch %d: %w", epoch, err)
		}

		metrics := EpochMetrics{
			Epoch:     epoch,
			TrainLoss: trainLoss,
			Duration:  time.Since(start),
		}

		if valSet != nil {
			metrics.ValLoss, metrics.ValAccuracy = t.Evaluate(valSet)
		}
		t.history = append(t.history, metrics)

		t.log.Info("epoch complete",
			"epoch", epoch,
			"train_loss", fmt.Sprintf("%.4f", metrics.TrainLoss),
			"val_loss", fmt.Sprintf("%.4f", metrics.ValLoss),
			"val_acc", fmt.Sprintf("%.4f", metrics.ValAccuracy),
			"duration", metrics.Duration.Round(time.Millisecond),
		)

		if err := t.checkpoint(epoch, metrics); err != nil {
			return t.history, err
		}
	}

	return t.history, nil
}

// trainEpoch runs one pass over the training set and returns the mean
// batch loss.
func (t *Trainer[B]) trainEpoch(trainSet *dataset.Dataset) (float64, error) {
	t.model.Train()
	tape := t.backend.GetTape()

	var totalLoss float64
	batches := dataset.Batches(trainSet, t.cfg.BatchSize, t.backend)
	for _, batch := range batches {
		logits := t.model.Forward(batch.Images)
		loss := t.criterion.Forward(logits, batch.Labels)

		grads := autodiff.Backward(loss, t.backend)
		t.optimizer.Step(grads)
		t.optimizer.ZeroGrad()

		// The graph is consumed; a tape carried across steps would leak
		// and chain gradients between batches.
		tape.Clear()

		totalLoss += float64(loss.Item())
		t.step++
	}

	return totalLoss / float64(len(batches)), nil
}

// Evaluate computes mean loss and accuracy over a dataset in eval mode
// without recording to the tape.
func (t *Trainer[B]) Evaluate(set *dataset.Dataset) (float64, float32) {
	t.model.Eval()
	defer t.model.Train()

	tape := t.backend.GetTape()
	wasRecording := tape.IsRecording()
	tape.StopRecording()
	defer func() {
		if wasRecording {
			tape.StartRecording()
		}
	}()

	var totalLoss float64
	var correct float64

	for _, batch := range dataset.Batches(set, t.cfg.BatchSize, t.backend) {
		logits := t.model.Forward(batch.Images)
		loss := t.criterion.Forward(logits, batch.Labels)

		weight := float64(batch.Size)
		totalLoss += float64(loss.Item()) * weight
		correct += float64(nn.Accuracy(logits, batch.Labels)) * weight
	}

	n := float64(set.Len())
	return totalLoss / n, float32(correct / n)
}

// checkpoint writes periodic and best-accuracy checkpoints per config.
func (t *Trainer[B]) checkpoint(epoch int, metrics EpochMetrics) error {
	if t.cfg.CheckpointDir == "" {
		return nil
	}

	periodic := t.cfg.CheckpointEvery > 0 && epoch%t.cfg.CheckpointEvery == 0
	best := metrics.ValAccuracy > t.bestAcc && metrics.ValAccuracy > 0
	if !periodic && !best {
		return nil
	}

	if err := os.MkdirAll(t.cfg.CheckpointDir, 0o755); err != nil {
		return fmt.Errorf("checkpoint dir: %w", err)
	}

	ckpt := nn.Checkpoint[B]{
		Model:         t.model,
		OptimizerType: t.cfg.Optimizer,
		Epoch:         epoch,
		Step:          t.step,
		Loss:          metrics.TrainLoss,
		RunID:         t.runID,
		Metadata: map[string]string{
			"dataset": t.cfg.Dataset,
		},
	}
	if stateful, ok := t.optimizer.(nn.OptimizerState); ok {
		ckpt.Optimizer = stateful
	}

	if periodic {
		path := filepath.Join(t.cfg.CheckpointDir, fmt.Sprintf("epoch-%03d.ember", epoch))
		if err := ckpt.Save(path); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		t.log.Info("checkpoint saved", "path", path)
	}

	if best {
		t.bestAcc = metrics.ValAccuracy
		path := filepath.Join(t.cfg.CheckpointDir, "best.ember")
		if err := ckpt.Save(path); err != nil {
			return fmt.Errorf("save best checkpoint: %w", err)
		}
		t.log.Info("best checkpoint updated", "path", path, "val_acc", fmt.Sprintf("%.4f", t.bestAcc))
	}

	return nil
}
