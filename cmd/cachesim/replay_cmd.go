package main

import (
	"fmt"
	"os"

	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/engine"
	"github.com/clockworklabs/cachesim/internal/replay"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newReplayCmd() *cobra.Command {
	var dumpUsagePath string
	var dumpTracePath string

	cmd := &cobra.Command{
		Use:   "replay <trace.csv>",
		Short: "replay a trace synchronously against a default-config engine and report peak usage",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trace, err := loadTrace(args[0])
			if err != nil {
				return fmt.Errorf("load trace: %w", err)
			}

			e := engine.New(0, config.Default())

			if dumpUsagePath != "" {
				rows, final, err := replay.ReplayWithUsageLog(e, trace)
				if err != nil {
					return fmt.Errorf("replay: %w", err)
				}
				if err := writeCSVFile(dumpUsagePath, func(f *os.File) error {
					return replay.DumpUsageCSV(f, rows, final)
				}); err != nil {
					return fmt.Errorf("dump usage csv: %w", err)
				}
				logrus.WithField("peak_reserved", final.PeakReserved).Info("replay complete")
				return nil
			}

			usage, err := replay.Replay(e, trace)
			if err != nil {
				return fmt.Errorf("replay: %w", err)
			}
			if dumpTracePath != "" {
				if err := writeCSVFile(dumpTracePath, func(f *os.File) error {
					return replay.DumpTraceCSV(f, trace)
				}); err != nil {
					return fmt.Errorf("dump trace csv: %w", err)
				}
			}
			logrus.WithFields(logrus.Fields{
				"peak_allocated": usage.PeakAllocated,
				"peak_reserved":  usage.PeakReserved,
			}).Info("replay complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&dumpUsagePath, "dump-usage", "", "write the per-op usage CSV to this path")
	cmd.Flags().StringVar(&dumpTracePath, "dump-trace", "", "write the completed-block trace CSV to this path")
	return cmd
}

func writeCSVFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return write(f)
}
