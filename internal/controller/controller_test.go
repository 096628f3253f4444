package controller_test

import (
	"path/filepath"
	"testing"

	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/controller"
	"github.com/stretchr/testify/require"
)

func TestSynchronousCollectTraceAppliesImmediately(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{FunctionalityChecking: true})
	require.NoError(t, err)

	require.NoError(t, c.CollectTrace(0x1000, 0, 1024, true, callpath.Hash{}))
	require.Equal(t, uint64(1024), c.Engine().Usage().CurrentAllocated)

	require.NoError(t, c.CollectTrace(0x1000, 0, -1, true, callpath.Hash{}))
	require.Equal(t, uint64(0), c.Engine().Usage().CurrentAllocated)
}

func TestSynchronousFreeOfUntrackedPointerErrors(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{FunctionalityChecking: true})
	require.NoError(t, err)
	require.Error(t, c.CollectTrace(0xdead, 0, -1, true, callpath.Hash{}))
}

func TestAsyncCollectTraceDoesNotTouchEngineUntilReconfigure(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{AsyncTracing: true})
	require.NoError(t, err)

	require.NoError(t, c.CollectTrace(0x1000, 0, 1024, true, callpath.Hash{}))
	require.Equal(t, uint64(0), c.Engine().Usage().CurrentAllocated, "async mode only records, never applies")
}

func TestIterationTriggerRunsConfigSearchAtProfilingWindow(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.cfg")
	cands := config.Candidates{
		MinBlockSize:  []uint64{512},
		SmallSize:     []uint64{1048576},
		SmallBuffer:   []uint64{2 * 1024 * 1024, 4096},
		LargeBuffer:   []uint64{20971520},
		MinLargeAlloc: []uint64{10485760},
		RoundLarge:    []uint64{2097152},
	}

	c, err := controller.New(0, config.Default(), controller.Flags{
		AsyncTracing:       true,
		Profiling:          true,
		ConfigOptimization: true,
	}, controller.WithCandidates(cands), controller.WithPersistPath(path), controller.WithProfilingWindow(1))
	require.NoError(t, err)

	c.IterationTrigger(true) // begin iteration 1
	for i := 0; i < 5; i++ {
		require.NoError(t, c.CollectTrace(uintptr(0x1000+i), 0, 900, true, callpath.Hash{}))
		require.NoError(t, c.CollectTrace(uintptr(0x1000+i), 0, -1, true, callpath.Hash{}))
	}
	reconfigured := c.IterationTrigger(false) // end iteration 1, hits the window

	require.True(t, reconfigured)
	require.Equal(t, uint64(4096), c.Engine().Config().SmallBuffer)
	require.FileExists(t, path)
}

func TestIterationTriggerIsNoOpBeforeProfilingWindow(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{
		AsyncTracing:       true,
		Profiling:          true,
		ConfigOptimization: true,
	}, controller.WithProfilingWindow(2))
	require.NoError(t, err)

	c.IterationTrigger(true)
	require.False(t, c.IterationTrigger(false), "window is 2 iterations, only 1 has begun")
}

func TestApplyModeLoadsPersistedConfigBeforeFirstEvent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.cfg")
	tuned := config.Default()
	tuned.MinBlockSize = 4096
	require.NoError(t, controller.WriteBestConfig(path, tuned, false, nil))

	c, err := controller.New(0, config.Default(), controller.Flags{Profiling: false}, controller.WithPersistPath(path))
	require.NoError(t, err)

	require.Equal(t, uint64(4096), c.Engine().Config().MinBlockSize)
}

func TestSetModeTogglesFlag(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{})
	require.NoError(t, err)
	require.False(t, c.Flags().ConfigOptimization)
	c.SetMode(controller.ModeConfigOptimization, true)
	require.True(t, c.Flags().ConfigOptimization)
}

func TestAllocationSizeOfMatchesSmallPath(t *testing.T) {
	c, err := controller.New(0, config.Default(), controller.Flags{})
	require.NoError(t, err)
	require.Equal(t, config.Default().SmallBuffer, c.AllocationSizeOf(1024))
}
