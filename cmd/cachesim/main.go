// Command cachesim drives the allocator engine, replay and tuner
// packages for offline use: replaying a recorded trace, tuning a
// config against one, or applying a previously tuned config.
package main

import (
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.WithError(err).Error("cachesim failed")
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var verbose bool

	root := &cobra.Command{
		Use:   "cachesim",
		Short: "GPU caching-allocator simulator and autotuner",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(newReplayCmd())
	root.AddCommand(newTuneCmd())
	root.AddCommand(newApplyCmd())
	return root
}
