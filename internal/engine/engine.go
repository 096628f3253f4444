// Package engine implements the caching allocator state machine: malloc,
// free and empty_cache over an address space, two block pools and the
// tunable config (SPEC_FULL.md, C5 Engine).
package engine

import (
	"fmt"

	"github.com/clockworklabs/cachesim/internal/addrspace"
	"github.com/clockworklabs/cachesim/internal/blockgraph"
	"github.com/clockworklabs/cachesim/internal/cachesimerrors"
	"github.com/clockworklabs/cachesim/internal/config"
	"github.com/clockworklabs/cachesim/internal/pools"
	"github.com/sirupsen/logrus"
)

// Usage is the snapshot returned by Engine.Usage: current and peak
// allocated/reserved byte counts (I5, I6).
type Usage struct {
	CurrentAllocated uint64
	PeakAllocated    uint64
	CurrentReserved  uint64
	PeakReserved     uint64
}

// Engine is a single-device, single-stream-scheduler model of the
// caching allocator. It is not safe for concurrent use by more than one
// goroutine at a time (see SPEC_FULL.md's concurrency model).
type Engine struct {
	device int
	cfg    config.Config
	addrs  *addrspace.AddressSpace
	small  *pools.Pool
	large  *pools.Pool

	usage Usage

	log *logrus.Entry
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithAddressSpace overrides the default unbounded AddressSpace, e.g. to
// give the tuner a bounded device so AllocFailed candidates are
// reachable.
func WithAddressSpace(a *addrspace.AddressSpace) Option {
	return func(e *Engine) { e.addrs = a }
}

// WithLogger attaches a logrus entry; nil is safe and disables logging.
func WithLogger(log *logrus.Entry) Option {
	return func(e *Engine) { e.log = log }
}

// New creates an Engine for the given device, starting from cfg.
func New(device int, cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		device: device,
		cfg:    cfg,
		addrs:  addrspace.New(0),
		small:  pools.New(pools.Small),
		large:  pools.New(pools.Large),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the engine's current configuration.
func (e *Engine) Config() config.Config { return e.cfg }

// SetConfig validates and installs a new configuration. It does not reset
// counters or release cached blocks; callers that want a clean slate
// should call ResetCounters and EmptyCache themselves.
func (e *Engine) SetConfig(cfg config.Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg = cfg
	return nil
}

func (e *Engine) pool(p config.Pool) *pools.Pool {
	if p == config.PoolSmall {
		return e.small
	}
	return e.large
}

// shouldSplit implements §4.5 step 4's split eligibility rule.
func shouldSplit(candidate *blockgraph.Block, size uint64, p config.Pool, cfg config.Config) bool {
	remaining := candidate.Size - size
	if p == config.PoolSmall {
		return remaining >= cfg.MinBlockSize
	}
	return size < cfg.MaxSplitSize && remaining > cfg.SmallSize
}

// Malloc implements §4.5's malloc state machine.
func (e *Engine) Malloc(stream int, origSize uint64) (*blockgraph.Block, error) {
	size := e.cfg.RoundSize(origSize)
	poolKind := e.cfg.PoolFor(size)
	allocSize := e.cfg.AllocationSize(size)
	pool := e.pool(poolKind)

	candidate := pool.Find(stream, size, e.cfg.MaxSplitSize, e.cfg.LargeBuffer)
	if candidate != nil {
		pool.Remove(candidate)
	} else {
		addr, err := e.addrs.Allocate(allocSize)
		if err != nil {
			if e.log != nil {
				e.log.WithFields(logrus.Fields{"size": allocSize, "stream": stream}).Warn("address space exhausted")
			}
			return nil, cachesimerrors.Wrap(cachesimerrors.AllocFailed, err, "reserve new segment")
		}
		candidate = blockgraph.NewSegment(e.device, stream, addr, allocSize)
		e.usage.CurrentReserved += allocSize
		if e.usage.CurrentReserved > e.usage.PeakReserved {
			e.usage.PeakReserved = e.usage.CurrentReserved
		}
	}

	if candidate.Size > size && shouldSplit(candidate, size, poolKind, e.cfg) {
		left, tail := blockgraph.Split(candidate, size)
		pool.Insert(tail)
		candidate = left
	}

	candidate.Allocated = true
	e.usage.CurrentAllocated += candidate.Size
	if e.usage.CurrentAllocated > e.usage.PeakAllocated {
		e.usage.PeakAllocated = e.usage.CurrentAllocated
	}

	if e.cfg.Debug {
		if errs := e.CheckInvariants(); len(errs) > 0 {
			panic(errs[0])
		}
	}

	return candidate, nil
}

// Free returns block to its pool, coalescing with free neighbours first.
func (e *Engine) Free(block *blockgraph.Block) {
	block.Allocated = false
	e.usage.CurrentAllocated -= block.Size

	poolKind := e.cfg.PoolFor(block.Size)
	pool := e.pool(poolKind)

	if prev := block.Prev; prev != nil && !prev.Allocated {
		pool.Remove(prev)
		blockgraph.TryMerge(block, prev)
	}
	if next := block.Next; next != nil && !next.Allocated {
		pool.Remove(next)
		blockgraph.TryMerge(block, next)
	}

	pool.Insert(block)

	if e.cfg.Debug {
		if errs := e.CheckInvariants(); len(errs) > 0 {
			panic(errs[0])
		}
	}
}

// EmptyCache releases every segment that has been fully coalesced back
// into a single free, unsplit block (§4.5, I8).
func (e *Engine) EmptyCache() {
	for _, pool := range []*pools.Pool{e.small, e.large} {
		for _, b := range pool.Snapshot() {
			if b.Prev == nil && b.Next == nil {
				pool.Remove(b)
				e.addrs.Free(b.Addr, b.Size)
				e.usage.CurrentReserved -= b.Size
			}
		}
	}
}

// Usage returns the current/peak allocated/reserved counters.
func (e *Engine) Usage() Usage { return e.usage }

// ResetCounters zeroes current/peak usage counters. The tuner does not
// call it: it evaluates every candidate on a fresh Engine.
func (e *Engine) ResetCounters() { e.usage = Usage{} }

// CheckInvariants verifies I1, I2, I3 and I5 against the engine's current
// state and returns every violation found (empty slice if none). It is
// always compiled in and callable directly by property tests, but
// Malloc/Free only invoke it automatically when Config.Debug is set
// (§7). I4 follows from how Pool.Insert maintains order and is exercised
// by package pools' own tests. I6 and I8 are not checked here or
// anywhere else in the engine: the engine does not track the blocks a
// caller currently holds, and EmptyCache has no postcondition check.
func (e *Engine) CheckInvariants() []error {
	var errs []error
	check := func(name, detail string, ok bool) {
		if !ok {
			errs = append(errs, &cachesimerrors.InvariantViolation{Invariant: name, Detail: detail})
		}
	}

	for _, pool := range []*pools.Pool{e.small, e.large} {
		for _, b := range pool.Snapshot() {
			check("I1", fmt.Sprintf("block@%d prev/next asymmetry", b.Addr),
				(b.Prev == nil || b.Prev.Next == b) && (b.Next == nil || b.Next.Prev == b))
			check("I2", fmt.Sprintf("block@%d not adjacent to next", b.Addr),
				b.Next == nil || b.Addr+b.Size == b.Next.Addr)
			check("I3", fmt.Sprintf("block@%d allocated but in pool", b.Addr), !b.Allocated)
		}
	}
	// I5: reserved bytes equal the address space's own outstanding-bytes
	// counter, which tracks every segment reservation independent of
	// where its constituent blocks currently sit (pool or caller hand).
	check("I5", "reserved counter mismatch", e.addrs.Reserved() == e.usage.CurrentReserved)
	return errs
}
