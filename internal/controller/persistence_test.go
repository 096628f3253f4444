package controller_test

import (
	"path/filepath"
	"testing"

	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/controller"
	"github.com/stretchr/testify/require"
)

func TestPersistenceRoundTripWithoutGrouping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.cfg")
	cfg := config.Default()
	cfg.MinBlockSize = 1024
	cfg.RoundLarge = 4 * 1024 * 1024

	require.NoError(t, controller.WriteBestConfig(path, cfg, false, nil))

	loaded, hashes, err := controller.ReadBestConfig(path, config.Default(), false)
	require.NoError(t, err)
	require.Empty(t, hashes)
	require.Equal(t, cfg.MinBlockSize, loaded.MinBlockSize)
	require.Equal(t, cfg.SmallSize, loaded.SmallSize)
	require.Equal(t, cfg.SmallBuffer, loaded.SmallBuffer)
	require.Equal(t, cfg.LargeBuffer, loaded.LargeBuffer)
	require.Equal(t, cfg.MinLargeAlloc, loaded.MinLargeAlloc)
	require.Equal(t, cfg.RoundLarge, loaded.RoundLarge)
	require.False(t, loaded.GroupingEnabled)
}

func TestPersistenceRoundTripWithGroupingAndHashes(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.cfg")
	cfg := config.Default()
	cfg.GroupBoundaries = [config.NumGroupBoundaries]uint64{
		34 * 1024 * 1024, 82 * 1024 * 1024, 120 * 1024 * 1024, config.MaxSize, config.MaxSize,
	}
	hash := callpath.Sum([]callpath.Frame{{FileName: "a.py", FunctionName: "f", Lineno: 5}})

	require.NoError(t, controller.WriteBestConfig(path, cfg, true, []callpath.Hash{hash}))

	loaded, hashes, err := controller.ReadBestConfig(path, config.Default(), true)
	require.NoError(t, err)
	require.True(t, loaded.GroupingEnabled)
	require.Equal(t, cfg.GroupBoundaries, loaded.GroupBoundaries)
	require.Equal(t, []callpath.Hash{hash}, hashes)
}

func TestPersistenceSentinelBoundaryIsPlatformMax(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.cfg")
	cfg := config.Default() // all boundaries sentinel

	require.NoError(t, controller.WriteBestConfig(path, cfg, true, nil))
	loaded, _, err := controller.ReadBestConfig(path, config.Default(), true)
	require.NoError(t, err)
	for _, g := range loaded.GroupBoundaries {
		require.Equal(t, config.MaxSize, g)
	}
}

func TestReadBestConfigRejectsTruncatedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "best.cfg")
	require.NoError(t, controller.WriteBestConfig(path, config.Default(), false, nil))

	// Truncate to 2 of the 6 required fields.
	data, err := readFile(path)
	require.NoError(t, err)
	truncated := firstNLines(data, 2)
	require.NoError(t, writeFile(path, truncated))

	_, _, err = controller.ReadBestConfig(path, config.Default(), false)
	require.Error(t, err)
}

func TestReadBestConfigMissingFile(t *testing.T) {
	_, _, err := controller.ReadBestConfig(filepath.Join(t.TempDir(), "does-not-exist.cfg"), config.Default(), false)
	require.Error(t, err)
}
