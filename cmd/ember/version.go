package main

import (
	"github.com/spf13/cobra"
)

const version = "0.3.1"

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the Ember version",
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Printf("ember %s\n", version)
		},
	}
}
