package tuner

import (
	"testing"

	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/stretchr/testify/require"
)

func TestSynthesizeBoundariesMultiGroup(t *testing.T) {
	sizes := []uint64{100, 110, 120, 500, 510, 3000}
	got := synthesizeBoundaries(sizes, 0.3)
	want := [config.NumGroupBoundaries]uint64{120, 510, 3000, config.MaxSize, config.MaxSize}
	require.Equal(t, want, got)
}

func TestSynthesizeBoundariesMoreThanFiveGroupsPutsOverallMaxInLastSlot(t *testing.T) {
	sizes := []uint64{100, 200, 400, 800, 1600, 3200}
	got := synthesizeBoundaries(sizes, 0.2)
	want := [config.NumGroupBoundaries]uint64{100, 200, 400, 800, 3200}
	require.Equal(t, want, got)
}
