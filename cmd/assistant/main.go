package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/datamesa/assistant/pkg/sandbox"
)

func main() {
	// The sandbox re-execs this binary with the worker argument; that path
	// must short-circuit before any CLI or config machinery runs.
	if len(os.Args) > 1 && os.Args[1] == sandbox.WorkerArg {
		if err := sandbox.WorkerMain(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		return
	}

	rootCmd := &cobra.Command{
		Use:   "assistant",
		Short: "Conversational analytics assistant over curated datasets and guardrailed SQL.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "set debug logging level")

	rootCmd.AddCommand(
		newServeCmd(),
		newAskCmd(),
		newDatasetsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
