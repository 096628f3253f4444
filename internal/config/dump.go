package config

import "gopkg.in/yaml.v3"

// snapshot mirrors Config for diagnostic (research/CLI) dumps only; the
// mandated best-config persistence format (internal/controller) is the
// plain-text format from §6 and never goes through this type.
type snapshot struct {
	MinBlockSize               uint64                     `yaml:"min_block_size"`
	SmallSize                  uint64                     `yaml:"small_size"`
	SmallBuffer                uint64                     `yaml:"small_buffer"`
	LargeBuffer                uint64                     `yaml:"large_buffer"`
	MinLargeAlloc              uint64                     `yaml:"min_large_alloc"`
	RoundLarge                 uint64                     `yaml:"round_large"`
	MaxSplitSize               uint64                     `yaml:"max_split_size"`
	RoundupPowerOfTwoDivisions uint64                     `yaml:"roundup_power_of_two_divisions"`
	RoundupBypassThreshold     uint64                     `yaml:"roundup_bypass_threshold"`
	GroupBoundaries            [NumGroupBoundaries]uint64 `yaml:"group_boundaries"`
	GroupingEnabled            bool                       `yaml:"grouping_enabled"`
	Debug                      bool                       `yaml:"debug"`
}

// DumpYAML renders c as YAML for diagnostic output (SPEC_FULL.md's
// DOMAIN STACK: `inference-sim`-style yaml-based config persistence).
// This is never used for the mandated best-config file, only for
// research/CLI inspection.
func (c Config) DumpYAML() (string, error) {
	s := snapshot{
		MinBlockSize:               c.MinBlockSize,
		SmallSize:                  c.SmallSize,
		SmallBuffer:                c.SmallBuffer,
		LargeBuffer:                c.LargeBuffer,
		MinLargeAlloc:              c.MinLargeAlloc,
		RoundLarge:                 c.RoundLarge,
		MaxSplitSize:               c.MaxSplitSize,
		RoundupPowerOfTwoDivisions: c.RoundupPowerOfTwoDivisions,
		RoundupBypassThreshold:     c.RoundupBypassThreshold,
		GroupBoundaries:            c.GroupBoundaries,
		GroupingEnabled:            c.GroupingEnabled,
		Debug:                      c.Debug,
	}
	out, err := yaml.Marshal(s)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
