// Package replay implements C6: the trace model and the synchronous and
// asynchronous event-collection modes described in SPEC_FULL.md. A Trace
// is an opid-ordered sequence of malloc/free/empty_cache events; Replay
// drives one against an *engine.Engine and Collector builds one up from
// a live stream of pointer-keyed events (§4.6).
package replay

import (
	"fmt"
	"sort"
	"sync/atomic"

	"github.com/clockworklabs/cachesim/internal/blockgraph"
	"github.com/clockworklabs/cachesim/internal/cachesimerrors"
	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/engine"
	"github.com/sirupsen/logrus"
)

// OpKind enumerates the three event kinds a Trace can hold.
type OpKind int

const (
	OpMalloc OpKind = iota
	OpFree
	OpEmptyCache
)

func (k OpKind) String() string {
	switch k {
	case OpMalloc:
		return "malloc"
	case OpFree:
		return "free"
	case OpEmptyCache:
		return "empty_cache"
	default:
		return "unknown"
	}
}

// Op is one event at a fixed position in the trace's total order.
type Op struct {
	Opid   uint64
	Kind   OpKind
	Stream int
	// Size is meaningful for OpMalloc only.
	Size uint64
	// MallocOpid is meaningful for OpFree only: the opid of the malloc
	// this free closes out, giving the "malloc-opid -> (free-opid, size)"
	// mapping from §4.6 without a separate side table.
	MallocOpid uint64
}

// OpidCounter is the process-wide monotonic op counter (§5's
// shared-resource policy: "strictly monotonic increment ... must be
// atomic"). The zero value starts at opid 0.
type OpidCounter struct {
	next uint64
}

// Next returns the next opid and advances the counter.
func (c *OpidCounter) Next() uint64 {
	return atomic.AddUint64(&c.next, 1) - 1
}

// Trace is a validated, opid-ordered event stream ready for replay.
type Trace struct {
	ops []Op
}

// Build sorts ops by Opid and validates them into a Trace, rejecting the
// malformed sequences §4.6 calls out: a duplicate malloc opid, a free
// naming an unknown or already-closed malloc opid, and a free whose own
// opid precedes the malloc opid it claims to close (out-of-order free).
func Build(ops []Op) (*Trace, error) {
	sorted := make([]Op, len(ops))
	copy(sorted, ops)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Opid < sorted[j].Opid })

	seenMalloc := make(map[uint64]bool, len(sorted))
	closedMalloc := make(map[uint64]bool, len(sorted))
	for _, op := range sorted {
		switch op.Kind {
		case OpMalloc:
			if seenMalloc[op.Opid] {
				return nil, cachesimerrors.New(cachesimerrors.TraceMalformed,
					fmt.Sprintf("duplicate malloc opid %d", op.Opid))
			}
			seenMalloc[op.Opid] = true
		case OpFree:
			if !seenMalloc[op.MallocOpid] {
				return nil, cachesimerrors.New(cachesimerrors.TraceMalformed,
					fmt.Sprintf("free at opid %d references unknown malloc opid %d", op.Opid, op.MallocOpid))
			}
			if closedMalloc[op.MallocOpid] {
				return nil, cachesimerrors.New(cachesimerrors.TraceMalformed,
					fmt.Sprintf("malloc opid %d freed more than once", op.MallocOpid))
			}
			if op.MallocOpid > op.Opid {
				return nil, cachesimerrors.New(cachesimerrors.TraceMalformed,
					fmt.Sprintf("free at opid %d precedes its own malloc at opid %d", op.Opid, op.MallocOpid))
			}
			closedMalloc[op.MallocOpid] = true
		case OpEmptyCache:
		}
	}
	return &Trace{ops: sorted}, nil
}

// Ops returns the trace's events in opid order.
func (t *Trace) Ops() []Op { return t.ops }

// Len returns the number of events in the trace.
func (t *Trace) Len() int { return len(t.ops) }

// Replay executes t against e synchronously, in opid order, and returns
// the engine's usage after the last event (§4.6's synchronous mode; also
// the mechanism the asynchronous mode's recorded Trace is eventually
// replayed through). An AllocFailed error from a malloc propagates
// immediately: the tuner treats this as a dominated candidate, not a
// crash (§7). A free targeting a block that was never successfully
// allocated is a TraceMalformed ("dangling pointer on replay").
func Replay(e *engine.Engine, t *Trace) (engine.Usage, error) {
	live := make(map[uint64]*blockgraph.Block, t.Len())
	for _, op := range t.ops {
		switch op.Kind {
		case OpMalloc:
			b, err := e.Malloc(op.Stream, op.Size)
			if err != nil {
				return engine.Usage{}, err
			}
			live[op.Opid] = b
		case OpFree:
			b, ok := live[op.MallocOpid]
			if !ok {
				return engine.Usage{}, cachesimerrors.New(cachesimerrors.TraceMalformed,
					fmt.Sprintf("free at opid %d targets a block that was never live (malloc opid %d)", op.Opid, op.MallocOpid))
			}
			e.Free(b)
			delete(live, op.MallocOpid)
		case OpEmptyCache:
			e.EmptyCache()
		}
	}
	return e.Usage(), nil
}

type pendingMalloc struct {
	opid   uint64
	stream int
}

// Collector implements §4.6's asynchronous mode: callers report
// malloc/free events as they happen, keyed by host pointer rather than
// by Engine-assigned address, and the Collector assembles an
// opid-ordered Trace. Per-pointer bookkeeping maps live pointers to
// their malloc opids; on free the malloc opid is looked up, the trace
// entry is completed with the current opid, and the pointer is dropped.
type Collector struct {
	counter *OpidCounter
	filter  callpath.Filter
	log     *logrus.Entry

	live map[uintptr]pendingMalloc
	ops  []Op
}

// CollectorOption configures a Collector at construction time.
type CollectorOption func(*Collector)

// WithFilter attaches a callpath.Filter; events whose call-path hash is
// rejected by the filter are dropped before they ever reach the trace
// (§9 supplemented feature, internal/callpath). A nil filter records
// everything.
func WithFilter(f callpath.Filter) CollectorOption {
	return func(c *Collector) { c.filter = f }
}

// WithLogger attaches a logrus entry for malformed-event warnings.
func WithLogger(log *logrus.Entry) CollectorOption {
	return func(c *Collector) { c.log = log }
}

// NewCollector creates a Collector sharing counter with whatever else
// needs opids to stay globally ordered against this trace (typically
// the owning Controller).
func NewCollector(counter *OpidCounter, opts ...CollectorOption) *Collector {
	c := &Collector{counter: counter, live: make(map[uintptr]pendingMalloc)}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// CollectTrace mirrors the original collect_trace(handle, ptr,
// size_or_negative, is_real) signature (§6): sizeOrNegative > 0 records
// a malloc of that many bytes at ptr; sizeOrNegative <= 0 records a free
// of ptr (only the sign carries meaning). isReal distinguishes a true
// deallocation from a cache-release hint; both close the trace entry
// here, since a replay trace has no notion of "hint" once recorded.
// hash identifies the call site for the callpath filter; the
// zero Hash is fine when no filter is attached.
func (c *Collector) CollectTrace(ptr uintptr, stream int, sizeOrNegative int64, isReal bool, hash callpath.Hash) {
	_ = isReal
	if c.filter != nil && !c.filter.Allow(hash) {
		return
	}

	opid := c.counter.Next()
	if sizeOrNegative > 0 {
		c.live[ptr] = pendingMalloc{opid: opid, stream: stream}
		c.ops = append(c.ops, Op{Opid: opid, Kind: OpMalloc, Stream: stream, Size: uint64(sizeOrNegative)})
		return
	}

	pending, ok := c.live[ptr]
	if !ok {
		if c.log != nil {
			c.log.WithField("ptr", ptr).Warn("free for untracked pointer, dropping")
		}
		return
	}
	delete(c.live, ptr)
	c.ops = append(c.ops, Op{Opid: opid, Kind: OpFree, Stream: stream, MallocOpid: pending.opid})
}

// EmptyCacheEvent records an empty_cache API event at the next opid.
func (c *Collector) EmptyCacheEvent() {
	c.ops = append(c.ops, Op{Opid: c.counter.Next(), Kind: OpEmptyCache})
}

// Len reports how many ops have been recorded so far, for diagnostic
// reporting (controller.DumpIterationReport); it does not close the trace.
func (c *Collector) Len() int { return len(c.ops) }

// Close synthesizes a free event, each at its own fresh sequential opid,
// for every pointer still live, then builds and validates the resulting
// Trace ("unreferenced active blocks at replay-end are synthesised as
// free events at a final opid, making the trace closed", §4.6). Pointers
// are closed in malloc-opid order so the synthesized tail is independent
// of Go's unspecified map iteration order, preserving replay determinism
// (P6; §9 OQ2: sequential, not shared, opids).
func (c *Collector) Close() (*Trace, error) {
	pending := make([]uintptr, 0, len(c.live))
	for ptr := range c.live {
		pending = append(pending, ptr)
	}
	sort.Slice(pending, func(i, j int) bool { return c.live[pending[i]].opid < c.live[pending[j]].opid })

	for _, ptr := range pending {
		m := c.live[ptr]
		c.ops = append(c.ops, Op{Opid: c.counter.Next(), Kind: OpFree, Stream: m.stream, MallocOpid: m.opid})
		delete(c.live, ptr)
	}
	return Build(c.ops)
}
