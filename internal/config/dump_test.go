package config_test

import (
	"strings"
	"testing"

	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestDumpYAMLRoundTripsThroughGenericMap(t *testing.T) {
	c := config.Default()
	c.MinBlockSize = 1024

	out, err := c.DumpYAML()
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "min_block_size: 1024"))

	var generic map[string]interface{}
	require.NoError(t, yaml.Unmarshal([]byte(out), &generic))
	require.Contains(t, generic, "small_buffer")
	require.Contains(t, generic, "group_boundaries")
}

func TestDumpYAMLIncludesGroupingState(t *testing.T) {
	c := config.Default()
	c.GroupingEnabled = true

	out, err := c.DumpYAML()
	require.NoError(t, err)
	require.True(t, strings.Contains(out, "grouping_enabled: true"))
}
