// Package main provides the Ember command line interface: training,
// evaluating, and inspecting image classifiers.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	root := &cobra.Command{
		Use:           "ember",
		Short:         "Train and run MNIST-family image classifiers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTrainCmd(),
		newEvaluateCmd(),
		newInspectCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
