package main

import (
	"fmt"

	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/controller"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newApplyCmd() *cobra.Command {
	var configPath string
	var grouping bool

	cmd := &cobra.Command{
		Use:   "apply <trace.csv>",
		Short: "load a persisted best-config file and replay a trace against it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if configPath == "" {
				return fmt.Errorf("--config is required")
			}
			trace, err := loadTrace(args[0])
			if err != nil {
				return fmt.Errorf("load trace: %w", err)
			}

			c, err := controller.New(0, config.Default(), controller.Flags{GroupOptimization: grouping},
				controller.WithPersistPath(configPath))
			if err != nil {
				return fmt.Errorf("construct controller: %w", err)
			}

			for _, op := range trace.Ops() {
				if err := applyOp(c, op); err != nil {
					return fmt.Errorf("apply op %d: %w", op.Opid, err)
				}
			}

			u := c.Engine().Usage()
			logrus.WithFields(logrus.Fields{
				"peak_allocated": u.PeakAllocated,
				"peak_reserved":  u.PeakReserved,
			}).Info("apply complete")
			return nil
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "persisted best-config file to load before replay")
	cmd.Flags().BoolVar(&grouping, "grouping", false, "the persisted file includes the grouping-boundary block")
	return cmd
}
