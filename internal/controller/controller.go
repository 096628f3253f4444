// Package controller implements C8: the per-instance mode flags,
// iteration lifecycle and best-config persistence that sit above the
// Engine, Replay and Tuner (SPEC_FULL.md §4.8). It is the one type a
// host embeds; everything else in this module is a capability the
// Controller wires together.
package controller

import (
	"github.com/clockworklabs/cachesim/internal/blockgraph"
	"github.com/clockworklabs/cachesim/internal/cachesimerrors"
	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/engine"
	"github.com/clockworklabs/cachesim/internal/replay"
	"github.com/clockworklabs/cachesim/internal/tuner"
	"github.com/sirupsen/logrus"
)

// DefaultProfilingWindow is N from §4.8: the number of iterations the
// replay accumulates before profiling mode runs the Tuner.
const DefaultProfilingWindow = 2

// Flags holds the per-instance boolean mode switches from §4.8: async
// tracing, functionality checking, profiling, the two optimization
// modes, and the dump toggles (the dump file formats themselves are a
// host-layer collaborator, out of core scope per spec.md §1 — inside
// this package the toggles only gate DumpIterationReport).
type Flags struct {
	AsyncTracing          bool
	FunctionalityChecking bool
	Profiling             bool
	ConfigOptimization    bool
	GroupOptimization     bool
	DumpTrace             bool
	DumpUsage             bool
}

// ModeFlag names one Flags field for SetMode, mirroring §6's
// set_mode(flag, enable) host entry point.
type ModeFlag int

const (
	ModeAsyncTracing ModeFlag = iota
	ModeFunctionalityChecking
	ModeProfiling
	ModeConfigOptimization
	ModeGroupOptimization
	ModeDumpTrace
	ModeDumpUsage
)

// APIEvent enumerates collect_api's event_kind (§6); empty_cache is
// currently the only member.
type APIEvent int

const (
	APIEmptyCache APIEvent = iota
)

// Controller owns one Engine plus the collection and tuning machinery
// layered over it. It is not safe for concurrent use (§5: "single
// thread at a time").
type Controller struct {
	device int
	eng    *engine.Engine
	counter *replay.OpidCounter
	collector *replay.Collector

	flags     Flags
	iteration int

	profilingWindow int
	persistPath     string
	candidates      config.Candidates
	groupDeltas     []float64

	// live tracks pointer -> block for the synchronous
	// (functionality-checking) collection path; the asynchronous path
	// keeps its own bookkeeping inside replay.Collector.
	live map[uintptr]*blockgraph.Block

	log *logrus.Entry
}

// Option configures a Controller at construction time.
type Option func(*Controller)

func WithLogger(log *logrus.Entry) Option { return func(c *Controller) { c.log = log } }

func WithCandidates(cands config.Candidates) Option {
	return func(c *Controller) { c.candidates = cands }
}

func WithGroupDeltas(deltas []float64) Option {
	return func(c *Controller) { c.groupDeltas = deltas }
}

func WithProfilingWindow(n int) Option { return func(c *Controller) { c.profilingWindow = n } }

func WithPersistPath(path string) Option { return func(c *Controller) { c.persistPath = path } }

// New constructs a Controller around a fresh Engine. In apply mode
// (flags.Profiling == false) with a persist path set, the persisted
// Config is loaded and applied before the first event, per §4.8.
func New(device int, cfg config.Config, flags Flags, opts ...Option) (*Controller, error) {
	defaults := config.DefaultCandidates()
	c := &Controller{
		device:          device,
		eng:             engine.New(device, cfg),
		counter:         &replay.OpidCounter{},
		flags:           flags,
		profilingWindow: DefaultProfilingWindow,
		candidates:      defaults,
		groupDeltas:     defaults.GroupDifferences,
		live:            make(map[uintptr]*blockgraph.Block),
	}
	for _, opt := range opts {
		opt(c)
	}

	if flags.AsyncTracing {
		c.collector = replay.NewCollector(c.counter, replay.WithLogger(c.log))
	}

	if !flags.Profiling && c.persistPath != "" {
		loaded, _, err := ReadBestConfig(c.persistPath, cfg, flags.GroupOptimization)
		if err != nil {
			return nil, err
		}
		if err := c.eng.SetConfig(loaded); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Engine returns the underlying Engine for direct inspection (tests,
// CLI reporting).
func (c *Controller) Engine() *engine.Engine { return c.eng }

// Flags returns the controller's current mode flags.
func (c *Controller) Flags() Flags { return c.flags }

// SetMode toggles one mode flag (§6: set_mode(flag, enable)).
func (c *Controller) SetMode(flag ModeFlag, enable bool) {
	switch flag {
	case ModeAsyncTracing:
		c.flags.AsyncTracing = enable
		if enable && c.collector == nil {
			c.collector = replay.NewCollector(c.counter, replay.WithLogger(c.log))
		}
	case ModeFunctionalityChecking:
		c.flags.FunctionalityChecking = enable
	case ModeProfiling:
		c.flags.Profiling = enable
	case ModeConfigOptimization:
		c.flags.ConfigOptimization = enable
	case ModeGroupOptimization:
		c.flags.GroupOptimization = enable
	case ModeDumpTrace:
		c.flags.DumpTrace = enable
	case ModeDumpUsage:
		c.flags.DumpUsage = enable
	}
}

// AllocationSizeOf exposes §4.4's allocation_size helper (composed with
// round_size, matching the engine's own malloc path) so host code can
// mirror the engine's segment-sizing decision without performing an
// actual allocation (§6: allocation_size_of).
func (c *Controller) AllocationSizeOf(size uint64) uint64 {
	cfg := c.eng.Config()
	return cfg.AllocationSize(cfg.RoundSize(size))
}

// LogUsage logs the engine's current/peak allocated/reserved tuple at
// info level: a thin rendering of the original's
// show_allocator_memory_usage, not a file-dump utility (SUPPLEMENTED
// FEATURES #1).
func (c *Controller) LogUsage() {
	if c.log == nil {
		return
	}
	u := c.eng.Usage()
	c.log.WithFields(logrus.Fields{
		"current_allocated": u.CurrentAllocated,
		"peak_allocated":    u.PeakAllocated,
		"current_reserved":  u.CurrentReserved,
		"peak_reserved":     u.PeakReserved,
	}).Info("allocator memory usage")
}

// CollectTrace mirrors §6's collect_trace(handle, ptr, size_or_negative,
// is_real): sizeOrNegative > 0 records a malloc; sizeOrNegative <= 0
// records a free of ptr. In async-tracing mode the event is recorded
// into the Collector's trace; otherwise it is applied to the Engine
// immediately (the synchronous, functionality-checking path).
func (c *Controller) CollectTrace(ptr uintptr, stream int, sizeOrNegative int64, isReal bool, hash callpath.Hash) error {
	if c.flags.AsyncTracing {
		c.collector.CollectTrace(ptr, stream, sizeOrNegative, isReal, hash)
		return nil
	}

	if sizeOrNegative > 0 {
		b, err := c.eng.Malloc(stream, uint64(sizeOrNegative))
		if err != nil {
			return err
		}
		c.live[ptr] = b
		return nil
	}

	b, ok := c.live[ptr]
	if !ok {
		return cachesimerrors.New(cachesimerrors.TraceMalformed, "free for untracked pointer")
	}
	delete(c.live, ptr)
	c.eng.Free(b)
	return nil
}

// CollectAPI mirrors §6's collect_api(handle, event_kind).
func (c *Controller) CollectAPI(event APIEvent) {
	switch event {
	case APIEmptyCache:
		if c.flags.AsyncTracing {
			c.collector.EmptyCacheEvent()
			return
		}
		c.eng.EmptyCache()
	}
}

// IterationTrigger signals an iteration boundary (§6:
// iteration_trigger(handle, at_begin)) and returns whether a live
// reconfiguration occurred (SUPPLEMENTED FEATURES #4). atBegin == true
// marks the start of an iteration and only advances the monotonic
// iteration counter; the tuner only ever runs at iteration end.
func (c *Controller) IterationTrigger(atBegin bool) bool {
	if atBegin {
		c.iteration++
		return false
	}

	if !c.flags.Profiling || c.iteration < c.profilingWindow {
		c.logIterationReport(false)
		return false
	}
	if !c.flags.AsyncTracing || c.collector == nil {
		c.logIterationReport(false)
		return false
	}

	trace, err := c.collector.Close()
	if err != nil {
		if c.log != nil {
			c.log.WithError(err).Error("profiling trace malformed, keeping prior config")
		}
		c.logIterationReport(false)
		return false
	}

	var best tuner.Result
	switch {
	case c.flags.ConfigOptimization && c.flags.GroupOptimization:
		best = tuner.SearchCombined(c.eng.Config(), c.candidates, trace, c.log)
	case c.flags.ConfigOptimization:
		best = tuner.SearchConfig(c.eng.Config(), c.candidates, trace, c.log)
	case c.flags.GroupOptimization:
		best = tuner.SearchGrouping(c.eng.Config(), c.groupDeltas, trace, c.log)
	default:
		c.logIterationReport(false)
		return false
	}
	if best.Dominated {
		if c.log != nil {
			c.log.Warn("every tuning candidate was dominated, keeping prior config")
		}
		c.logIterationReport(false)
		return false
	}

	if err := c.eng.SetConfig(best.Config); err != nil {
		if c.log != nil {
			c.log.WithError(err).Error("tuned config rejected")
		}
		c.logIterationReport(false)
		return false
	}

	if c.persistPath != "" {
		if err := WriteBestConfig(c.persistPath, best.Config, c.flags.GroupOptimization, nil); err != nil {
			if c.log != nil {
				c.log.WithError(err).Error("failed to persist tuned config")
			}
		}
	}

	c.logIterationReport(true)
	c.flags.Profiling = false
	return true
}

// logIterationReport renders DumpIterationReport (when a dump toggle is
// set) and emits it at info level; a no-op without a logger or without
// DumpTrace/DumpUsage enabled.
func (c *Controller) logIterationReport(reconfigured bool) {
	if c.log == nil {
		return
	}
	report, err := c.DumpIterationReport(reconfigured)
	if err != nil {
		c.log.WithError(err).Warn("failed to render iteration report")
		return
	}
	if report == "" {
		return
	}
	c.log.WithField("report", report).Info("iteration report")
}
