package controller_test

import (
	"strings"
	"testing"

	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/controller"
	"github.com/stretchr/testify/require"
)

func TestDumpIterationReportEmptyWithoutDumpFlags(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{})
	require.NoError(t, err)

	out, err := c.DumpIterationReport(false)
	require.NoError(t, err)
	require.Empty(t, out)
}

func TestDumpIterationReportRendersUsage(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{
		FunctionalityChecking: true,
		DumpUsage:             true,
	})
	require.NoError(t, err)

	require.NoError(t, c.CollectTrace(0x1000, 0, 4096, true, callpath.Hash{}))

	out, err := c.DumpIterationReport(true)
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "peak_allocated: 4096"))
	require.True(t, strings.Contains(out, "reconfigured: true"))
}

func TestDumpIterationReportIncludesTraceOpsWhenDumpTraceSet(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{
		AsyncTracing: true,
		DumpTrace:    true,
	})
	require.NoError(t, err)

	require.NoError(t, c.CollectTrace(0x1000, 0, 4096, true, callpath.Hash{}))

	out, err := c.DumpIterationReport(false)
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "trace_ops: 1"))
}
