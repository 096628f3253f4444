package main

import (
	"fmt"

	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/controller"
	"github.com/clockworklabs/cachesim/internal/tuner"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newTuneCmd() *cobra.Command {
	var grouping bool
	var combined bool
	var outPath string

	cmd := &cobra.Command{
		Use:   "tune <trace.csv>",
		Short: "search the config/grouping space against a trace and report (or persist) the winner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, err := loadTrace(args[0])
			if err != nil {
				return fmt.Errorf("load trace: %w", err)
			}

			base := config.Default()
			cands := config.DefaultCandidates()
			log := logrus.WithField("component", "tuner")

			var best tuner.Result
			switch {
			case combined:
				best = tuner.SearchCombined(base, cands, trace, log)
			case grouping:
				best = tuner.SearchGrouping(base, cands.GroupDifferences, trace, log)
			default:
				best = tuner.SearchConfig(base, cands, trace, log)
			}

			if best.Dominated {
				return fmt.Errorf("every candidate was dominated (AllocFailed or I7 violation)")
			}

			log.WithFields(logrus.Fields{
				"peak_reserved":  best.Usage.PeakReserved,
				"min_block_size": best.Config.MinBlockSize,
				"small_buffer":   best.Config.SmallBuffer,
				"large_buffer":   best.Config.LargeBuffer,
				"grouping":       best.Config.GroupingEnabled,
			}).Info("tuning complete")

			if outPath != "" {
				if err := controller.WriteBestConfig(outPath, best.Config, grouping || combined, nil); err != nil {
					return fmt.Errorf("persist best config: %w", err)
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&grouping, "grouping", false, "run the grouping-only search instead of the config-only search")
	cmd.Flags().BoolVar(&combined, "combined", false, "run the combined config+grouping search")
	cmd.Flags().StringVar(&outPath, "out", "", "write the winning config to this path in the mandated persistence format")
	return cmd
}
