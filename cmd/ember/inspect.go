package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/docker/go-units"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/ember-ml/ember/internal/serialization"
)

func newInspectCmd() *cobra.Command {
	var skipChecksum bool

	c := &cobra.Command{
		Use:   "inspect FILE",
		Short: "Print an .ember file's header and tensor table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reader, err := serialization.NewReaderWithOptions(args[0], serialization.ReaderOptions{
				SkipChecksum:    skipChecksum,
				ValidationLevel: serialization.ValidationStrict,
			})
			if err != nil {
				return err
			}
			defer reader.Close()

			header := reader.Header()
			label := color.New(color.FgCyan).SprintFunc()

			cmd.Printf("%s %d\n", label("format version:"), header.FormatVersion)
			cmd.Printf("%s %s\n", label("ember version:"), header.EmberVersion)
			cmd.Printf("%s %s\n", label("created:"), header.CreatedAt.Format(time.RFC3339))

			if arch := header.Architecture; arch != nil {
				cmd.Printf("%s %d -> %s -> %d (dropout %.2f)\n", label("architecture:"),
					arch.InputSize, joinInts(arch.HiddenSizes), arch.OutputSize, arch.Dropout)
			}
			if ckpt := header.Checkpoint; ckpt != nil {
				cmd.Printf("%s epoch=%d step=%d loss=%.4f optimizer=%s run=%s\n", label("checkpoint:"),
					ckpt.Epoch, ckpt.Step, ckpt.Loss, ckpt.OptimizerType, ckpt.RunID)
			}
			for k, v := range header.Metadata {
				cmd.Printf("%s %s=%s\n", label("metadata:"), k, v)
			}
			cmd.Println()

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("Name", "DType", "Shape", "Size")

			var total int64
			for _, meta := range header.Tensors {
				total += meta.Size
				table.Append([]string{
					meta.Name,
					meta.DType,
					fmt.Sprintf("%v", meta.Shape),
					units.HumanSize(float64(meta.Size)),
				})
			}
			if err := table.Render(); err != nil {
				return err
			}

			cmd.Printf("\n%d tensors, %s total\n", len(header.Tensors), units.HumanSize(float64(total)))
			return nil
		},
	}

	c.Flags().BoolVar(&skipChecksum, "skip-checksum", false, "skip payload checksum verification")

	return c
}

func joinInts(xs []int) string {
	if len(xs) == 0 {
		return "(none)"
	}
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, " -> ")
}
