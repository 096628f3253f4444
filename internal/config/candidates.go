package config

// Candidates holds the finite explicit value lists the tuner enumerates
// over (§4.7), lifted from original_source/include/allocator_manager.h's
// *_candidates sets and GROUP_DIFFERENCES, spanning roughly 0.5x-16x of
// the spec.md defaults.
type Candidates struct {
	MinBlockSize  []uint64
	SmallSize     []uint64
	SmallBuffer   []uint64
	LargeBuffer   []uint64
	MinLargeAlloc []uint64
	RoundLarge    []uint64

	// GroupDifferences are the delta ratios the grouping-only and
	// combined searches try when synthesizing boundaries (§4.7).
	GroupDifferences []float64
}

// DefaultCandidates reproduces the original tool's candidate sets.
func DefaultCandidates() Candidates {
	const mib = 1048576
	return Candidates{
		MinBlockSize:  []uint64{256, 512, 1024, 2048, 4096},
		SmallSize:     []uint64{mib / 2, mib, mib * 3 / 2, mib * 2},
		SmallBuffer:   []uint64{2 * mib, 4 * mib, 6 * mib, 8 * mib, 10 * mib},
		LargeBuffer:   []uint64{20 * mib / 2, 20 * mib, 20 * mib * 3 / 2, 20 * mib * 2, 20 * mib * 5 / 2},
		MinLargeAlloc: []uint64{10 * mib * 2, 10 * mib * 4, 10 * mib * 6, 10 * mib * 8, 10 * mib * 10},
		RoundLarge:    []uint64{2 * mib, 4 * mib, 8 * mib, 16 * mib, 20 * mib, 24 * mib},

		GroupDifferences: []float64{0.2, 0.6, 1.2, 1.6, 2.0},
	}
}
