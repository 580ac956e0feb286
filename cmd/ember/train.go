package main

import (
	"math/rand"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/ember-ml/ember/internal/autodiff"
	"github.com/ember-ml/ember/internal/backend/cpu"
	"github.com/ember-ml/ember/internal/dataset"
	"github.com/ember-ml/ember/internal/logger"
	"github.com/ember-ml/ember/internal/nn"
	"github.com/ember-ml/ember/internal/train"
)

func newTrainCmd() *cobra.Command {
	var (
		configPath  string
		datasetName string
		dataDir     string
		epochs      int
		batchSize   int
		lr          float32
		optimizer   string
		hidden      []int
		dropout     float32
		seed        int64
		ckptDir     string
	)

	c := &cobra.Command{
		Use:   "train",
		Short: "Train a classifier from a YAML config",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := train.DefaultConfig()
			if configPath != "" {
				loaded, err := train.LoadConfig(configPath)
				if err != nil {
					return err
				}
				cfg = loaded
			}

			// Flags beat the config file when set explicitly.
			flags := cmd.Flags()
			if flags.Changed("dataset") {
				cfg.Dataset = datasetName
			}
			if flags.Changed("data-dir") {
				cfg.DataDir = dataDir
			}
			if flags.Changed("epochs") {
				cfg.Epochs = epochs
			}
			if flags.Changed("batch-size") {
				cfg.BatchSize = batchSize
			}
			if flags.Changed("lr") {
				cfg.LearningRate = lr
			}
			if flags.Changed("optimizer") {
				cfg.Optimizer = optimizer
			}
			if flags.Changed("hidden") {
				cfg.HiddenSizes = hidden
			}
			if flags.Changed("dropout") {
				cfg.Dropout = dropout
			}
			if flags.Changed("seed") {
				cfg.Seed = seed
			}
			if flags.Changed("checkpoint-dir") {
				cfg.CheckpointDir = ckptDir
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			log := logger.Pretty(os.Stderr, logger.ParseLevel(cfg.LogLevel))

			name, err := dataset.ParseName(cfg.Dataset)
			if err != nil {
				return err
			}
			trainSet, err := dataset.Load(cfg.DataDir, name, true)
			if err != nil {
				return err
			}

			var valSet *dataset.Dataset
			if cfg.ValSplit > 0 {
				trainSet.Shuffle(cfg.Seed)
				trainSet, valSet, err = trainSet.Split(1 - cfg.ValSplit)
				if err != nil {
					return err
				}
			}

			backend := autodiff.New(cpu.New())
			rng := rand.New(rand.NewSource(cfg.Seed))

			model, err := nn.NewClassifierFrom(
				cfg.ModelConfig(trainSet.ImageSize, trainSet.NumClasses),
				backend, rng,
			)
			if err != nil {
				return err
			}

			opt, err := train.NewOptimizer(cfg, model.Parameters(), backend)
			if err != nil {
				return err
			}

			trainer := train.NewTrainer(model, opt, backend, cfg, log)
			_, err = trainer.Run(trainSet, valSet)
			return err
		},
	}

	// Accept the YAML spelling of flag names (--batch_size) too.
	c.Flags().SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	c.Flags().StringVarP(&configPath, "config", "c", "", "YAML training config")
	c.Flags().StringVar(&datasetName, "dataset", "mnist", "dataset name (mnist, fashion-mnist)")
	c.Flags().StringVar(&dataDir, "data-dir", "data", "directory containing IDX files")
	c.Flags().IntVar(&epochs, "epochs", 5, "number of training epochs")
	c.Flags().IntVar(&batchSize, "batch-size", 64, "samples per batch")
	c.Flags().Float32Var(&lr, "lr", 0.001, "learning rate")
	c.Flags().StringVar(&optimizer, "optimizer", "adam", "optimizer (sgd, adam)")
	c.Flags().IntSliceVar(&hidden, "hidden", []int{256, 128, 64}, "hidden layer widths")
	c.Flags().Float32Var(&dropout, "dropout", 0, "dropout probability")
	c.Flags().Int64Var(&seed, "seed", 42, "random seed")
	c.Flags().StringVar(&ckptDir, "checkpoint-dir", "checkpoints", "checkpoint output directory")

	return c
}
