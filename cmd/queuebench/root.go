package main

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

func newRootCmd(log *zap.Logger, level zap.AtomicLevel) *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "queuebench",
		Short: "Benchmark harness for the striped lock-free queue",
		Long:  "queuebench drives producer/consumer load against the striped lock-free queue and the bounded ring queue, verifying exact delivery and reporting throughput.",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				level.SetLevel(zap.DebugLevel)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.SetNormalizeFunc(func(fs *pflag.FlagSet, name string) pflag.NormalizedName {
		// Accept the long spelling "--v" as "--verbose"; the single-dash
		// "-v" is the shorthand registered by BoolVarP below.
		if name == "v" {
			name = "verbose"
		}
		return pflag.NormalizedName(name)
	})
	pf.BoolVarP(&verbose, "verbose", "v", false, "enable debug-level logging")

	root.AddCommand(newRunCmd(log))
	root.AddCommand(newHeavyCmd(log))
	root.AddCommand(newBoundedCmd(log))
	root.AddCommand(newWrapStressCmd(log))

	return root
}
