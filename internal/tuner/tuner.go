// Package tuner implements C7: the config-only, grouping-only and
// combined searches over the engine's tunable size constants and
// grouping boundaries, ranked by peak reserved bytes (SPEC_FULL.md
// §4.7). It is grounded on original_source/include/allocator_manager.h's
// candidate-enumeration design (config.Candidates) and on the
// inference-sim-inference-sim pack repo's simulator-plus-tuner
// architecture for the Go rendering of the search loop itself.
package tuner

import (
	"sort"

	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/engine"
	"github.com/clockworklabs/cachesim/internal/replay"
	"github.com/sirupsen/logrus"
)

// Result pairs a candidate Config with the peak usage it produced when
// replayed, or records that it was dominated: either it failed I7
// validation or replay returned AllocFailed (§4.7: "candidates that
// provoke AllocFailed are treated as dominated", not as search errors).
type Result struct {
	Config    config.Config
	Usage     engine.Usage
	Dominated bool
}

// evaluate replays trace against a fresh Engine configured with cfg,
// per §4.7's "always reset Engine state between candidates" — a brand
// new Engine is simpler and exactly as correct as EmptyCache+
// ResetCounters on a reused one, since no candidate shares address
// space with another.
func evaluate(cfg config.Config, trace *replay.Trace) Result {
	if err := cfg.Validate(); err != nil {
		return Result{Config: cfg, Dominated: true}
	}
	e := engine.New(0, cfg)
	usage, err := replay.Replay(e, trace)
	if err != nil {
		return Result{Config: cfg, Dominated: true}
	}
	return Result{Config: cfg, Usage: usage}
}

// better reports whether candidate strictly improves on best. A
// dominated candidate never wins; an unset or dominated best always
// loses to any viable candidate.
func better(candidate, best Result, haveBest bool) bool {
	if candidate.Dominated {
		return false
	}
	if !haveBest || best.Dominated {
		return true
	}
	return candidate.Usage.PeakReserved < best.Usage.PeakReserved
}

// SearchConfig performs the config-only search (§4.7): six nested
// enumerations over (kMinBlockSize, kSmallSize, kSmallBuffer,
// kLargeBuffer, kMinLargeAlloc, kRoundLarge). base supplies every field
// the six knobs don't cover (MaxSplitSize, grouping, Debug). If every
// candidate was dominated, it returns base with Dominated set.
func SearchConfig(base config.Config, cands config.Candidates, trace *replay.Trace, log *logrus.Entry) Result {
	var best Result
	haveBest := false

	for _, minBlock := range cands.MinBlockSize {
		for _, smallSize := range cands.SmallSize {
			for _, smallBuffer := range cands.SmallBuffer {
				for _, largeBuffer := range cands.LargeBuffer {
					for _, minLargeAlloc := range cands.MinLargeAlloc {
						for _, roundLarge := range cands.RoundLarge {
							cfg := base
							cfg.MinBlockSize = minBlock
							cfg.SmallSize = smallSize
							cfg.SmallBuffer = smallBuffer
							cfg.LargeBuffer = largeBuffer
							cfg.MinLargeAlloc = minLargeAlloc
							cfg.RoundLarge = roundLarge

							r := evaluate(cfg, trace)
							if better(r, best, haveBest) {
								best = r
								haveBest = true
								if log != nil {
									log.WithField("peak_reserved", r.Usage.PeakReserved).
										Debug("config search improved best")
								}
							}
						}
					}
				}
			}
		}
	}
	if !haveBest {
		return Result{Config: base, Dominated: true}
	}
	return best
}

// largeSizes returns the sorted, deduplicated sizes of every malloc in
// trace whose recorded size exceeds largeBuffer — the empirical
// distribution §4.7's grouping synthesis scans.
func largeSizes(trace *replay.Trace, largeBuffer uint64) []uint64 {
	seen := make(map[uint64]bool)
	var sizes []uint64
	for _, op := range trace.Ops() {
		if op.Kind != replay.OpMalloc || op.Size <= largeBuffer {
			continue
		}
		if !seen[op.Size] {
			seen[op.Size] = true
			sizes = append(sizes, op.Size)
		}
	}
	sort.Slice(sizes, func(i, j int) bool { return sizes[i] < sizes[j] })
	return sizes
}

// synthesizeBoundaries implements §4.7's grouping-boundary synthesis: a
// new group starts whenever the next size exceeds the current group's
// start by more than ratio delta; the preceding group closes at its
// max-so-far. Up to NumGroupBoundaries-1 splits are made; whatever
// group is still open when sizes runs out (including, in the common
// case, the fifth and final group) closes into the next free slot.
// Slots beyond the last closed group stay at the MaxSize sentinel,
// meaning "no boundary here" to Config.AllocationSize.
func synthesizeBoundaries(sizes []uint64, delta float64) [config.NumGroupBoundaries]uint64 {
	var boundaries [config.NumGroupBoundaries]uint64
	for i := range boundaries {
		boundaries[i] = config.MaxSize
	}
	if len(sizes) == 0 {
		return boundaries
	}

	groupStart := sizes[0]
	groupMax := sizes[0]
	idx := 0
	for _, s := range sizes[1:] {
		if float64(s-groupStart)/float64(groupStart) > delta {
			if idx >= config.NumGroupBoundaries-1 {
				// More than NumGroupBoundaries groups in the distribution:
				// the last slot takes the overall max rather than the max
				// of whichever group was open when we ran out of slots
				// (src/allocator_manager.cpp:446-449's
				// `_GROUPS[index] = *block_sizes.rbegin()`; §4.7: "after
				// five splits are made, the remaining max goes into the
				// last slot").
				boundaries[idx] = sizes[len(sizes)-1]
				return boundaries
			}
			boundaries[idx] = groupMax
			idx++
			groupStart = s
		}
		groupMax = s
	}
	boundaries[idx] = groupMax
	return boundaries
}

// SearchGrouping performs the grouping-only search (§4.7): the six size
// knobs in base are held fixed and only the five grouping boundaries
// are searched, one delta ratio at a time. A delta that fails to
// strictly improve peak_reserved over the best seen so far leaves the
// previously-kept boundaries in place (snapshot/rollback), rather than
// being compared only against the ungrouped baseline.
func SearchGrouping(base config.Config, deltas []float64, trace *replay.Trace, log *logrus.Entry) Result {
	sizes := largeSizes(trace, base.LargeBuffer)

	baseline := base
	baseline.GroupingEnabled = false
	best := evaluate(baseline, trace)
	bestBoundaries := baseline.GroupBoundaries
	bestEnabled := false

	for _, delta := range deltas {
		cfg := base
		cfg.GroupBoundaries = synthesizeBoundaries(sizes, delta)
		cfg.GroupingEnabled = true

		r := evaluate(cfg, trace)
		if better(r, best, true) {
			best = r
			bestBoundaries = cfg.GroupBoundaries
			bestEnabled = true
			if log != nil {
				log.WithField("delta", delta).WithField("peak_reserved", r.Usage.PeakReserved).
					Debug("grouping search improved best")
			}
		}
	}

	final := base
	final.GroupBoundaries = bestBoundaries
	final.GroupingEnabled = bestEnabled
	return Result{Config: final, Usage: best.Usage, Dominated: best.Dominated}
}

// SearchCombined performs the combined search (§4.7): the Cartesian
// product of the six size-knob candidates and the grouping-delta
// candidates, each evaluated with grouping boundaries freshly
// synthesised against trace for that combination's own LargeBuffer.
// Because candidates are enumerated in ascending list order and only
// strict improvements replace the running best, the first winner found
// among ties is the lexicographically smallest (kMinBlockSize, ...,
// kRoundLarge) tuple, matching §4.7's tie-break rule. If every
// candidate was dominated, it returns base with Dominated set.
func SearchCombined(base config.Config, cands config.Candidates, trace *replay.Trace, log *logrus.Entry) Result {
	var best Result
	haveBest := false

	for _, minBlock := range cands.MinBlockSize {
		for _, smallSize := range cands.SmallSize {
			for _, smallBuffer := range cands.SmallBuffer {
				for _, largeBuffer := range cands.LargeBuffer {
					for _, minLargeAlloc := range cands.MinLargeAlloc {
						for _, roundLarge := range cands.RoundLarge {
							cfg := base
							cfg.MinBlockSize = minBlock
							cfg.SmallSize = smallSize
							cfg.SmallBuffer = smallBuffer
							cfg.LargeBuffer = largeBuffer
							cfg.MinLargeAlloc = minLargeAlloc
							cfg.RoundLarge = roundLarge

							sizes := largeSizes(trace, cfg.LargeBuffer)
							for _, delta := range cands.GroupDifferences {
								gcfg := cfg
								gcfg.GroupBoundaries = synthesizeBoundaries(sizes, delta)
								gcfg.GroupingEnabled = true

								r := evaluate(gcfg, trace)
								if better(r, best, haveBest) {
									best = r
									haveBest = true
									if log != nil {
										log.WithField("peak_reserved", r.Usage.PeakReserved).
											Debug("combined search improved best")
									}
								}
							}
						}
					}
				}
			}
		}
	}
	if !haveBest {
		return Result{Config: base, Dominated: true}
	}
	return best
}
