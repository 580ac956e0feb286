package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/dataset"
	"github.com/ember-ml/ember/internal/nn"
)

func newEvaluateCmd() *cobra.Command {
	var (
		datasetName string
		dataDir     string
		batchSize   int
	)

	c := &cobra.Command{
		Use:   "evaluate CHECKPOINT",
		Short: "Evaluate a checkpoint on the test set",
		Long: "Load a checkpoint, rebuild the model from its embedded architecture " +
			"metadata, and report loss and accuracy on the test split.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			backend := cpu.New()

			model, err := nn.LoadClassifier(args[0], backend)
			if err != nil {
				return err
			}
			model.Eval()

			name, err := dataset.ParseName(datasetName)
			if err != nil {
				return err
			}
			testSet, err := dataset.Load(dataDir, name, false)
			if err != nil {
				return err
			}

			criterion := nn.NewCrossEntropyLoss(backend)

			var totalLoss float64
			var correct float64
			for _, batch := range dataset.Batches(testSet, batchSize, backend) {
				logits := model.Forward(batch.Images)
				loss := criterion.Forward(logits, batch.Labels)

				weight := float64(batch.Size)
				totalLoss += float64(loss.Item()) * weight
				correct += float64(nn.Accuracy(logits, batch.Labels)) * weight
			}

			n := float64(testSet.Len())
			cmd.Printf("%s %s\n", color.CyanString("dataset:"), name)
			cmd.Printf("%s %d\n", color.CyanString("samples:"), testSet.Len())
			cmd.Printf("%s %.4f\n", color.CyanString("loss:"), totalLoss/n)
			cmd.Printf("%s %s\n", color.CyanString("accuracy:"),
				color.GreenString(fmt.Sprintf("%.2f%%", 100*correct/n)))
			return nil
		},
	}

	c.Flags().StringVar(&datasetName, "dataset", "mnist", "dataset name (mnist, fashion-mnist)")
	c.Flags().StringVar(&dataDir, "data-dir", "data", "directory containing IDX files")
	c.Flags().IntVar(&batchSize, "batch-size", 256, "samples per batch")

	return c
}
