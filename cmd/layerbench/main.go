package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "layerbench",
		Short: "Layer-by-layer protocol performance comparison",
		Long: `layerbench compares IoT protocol stacks layer by layer.

It normalizes per-protocol measurement runs onto a shared OSI layer
schema (transport, session, presentation, application), summarizes each
metric across trials, and decides a per-metric winner with a Welch
t-test and polarity-aware delta.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("root", ".", "Project root directory")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.layerbench/config.yaml)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: error, warn, info, debug, trace")

	rootCmd.AddCommand(
		newVersionCmd(),
		newCompareCmd(),
		newSimulateCmd(),
		newHistoryCmd(),
		newVocabCmd(),
		newConfigCmd(),
	)
	return rootCmd
}

func main() {
	ctx, stop := signalContext(context.Background())
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
