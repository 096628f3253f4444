// Package addrspace models a flat synthetic free-list over integer
// addresses, standing in for the real GPU device's virtual address space
// (see SPEC_FULL.md, C1 AddressSpace). Addresses are plain uint64 offsets
// from a configurable base; nothing here touches real memory.
package addrspace

import (
	"sort"

	"github.com/clockworklabs/cachesim/internal/cachesimerrors"
)

// Range is a half-open address range [Start, End).
type Range struct {
	Start uint64
	End   uint64
}

func (r Range) Len() uint64 { return r.End - r.Start }

// AddressSpace is a first-fit-by-scan free list over synthetic addresses,
// initialized to a single unbounded free range [base, +inf).
//
// The sequence of addresses returned for a given sequence of Allocate
// calls is deterministic given the starting free set: free ranges are
// always kept sorted by Start and Allocate always takes the first range
// that fits, falling back to the unbounded tail.
type AddressSpace struct {
	base uint64
	free []Range // sorted by Start, non-overlapping, Free[i].End < Free[i+1].Start
	// unboundedFrom marks the start of the synthetic infinite tail range;
	// it is always the End of the last finite entry consumed, or base if
	// nothing has been allocated yet.
	unboundedFrom uint64
	// capacity bounds the tail when non-zero, so tuning candidates that
	// genuinely exhaust the device can surface AllocFailed instead of
	// growing forever; 0 means unbounded, matching "[BASE, infinity)".
	capacity uint64
	// reserved is the total bytes currently outstanding (allocated minus
	// freed), independent of how the free set happens to be laid out;
	// engine.CheckInvariants uses it to verify I5 without having to
	// reconstruct segment membership from pool contents alone.
	reserved uint64
}

// New creates an AddressSpace whose entire range starts at base and is
// unbounded above, matching "[BASE, infinity)" from the component design.
func New(base uint64) *AddressSpace {
	return &AddressSpace{base: base, unboundedFrom: base}
}

// NewBounded creates an AddressSpace capped at capacity bytes above base,
// which gives AllocFailed a real trigger condition; an Engine uses one
// when it is passed through engine.WithAddressSpace.
func NewBounded(base, capacity uint64) *AddressSpace {
	return &AddressSpace{base: base, unboundedFrom: base, capacity: capacity}
}

// Allocate finds the first free range of at least size bytes, removes it
// (reinserting any leftover suffix) and returns its start address. It
// fails when no finite range fits and the (possibly unbounded) tail
// cannot accommodate size either.
func (a *AddressSpace) Allocate(size uint64) (uint64, error) {
	if size == 0 {
		return 0, cachesimerrors.New(cachesimerrors.AllocFailed, "zero-size allocation")
	}
	for i, r := range a.free {
		if r.Len() >= size {
			addr := r.Start
			if r.Len() == size {
				a.free = append(a.free[:i], a.free[i+1:]...)
			} else {
				a.free[i] = Range{Start: r.Start + size, End: r.End}
			}
			a.reserved += size
			return addr, nil
		}
	}
	if a.capacity != 0 && a.unboundedFrom+size > a.base+a.capacity {
		return 0, cachesimerrors.New(cachesimerrors.AllocFailed, "address space exhausted")
	}
	addr := a.unboundedFrom
	a.unboundedFrom += size
	a.reserved += size
	return addr, nil
}

// Reserved returns the total bytes currently outstanding: every byte
// handed out by Allocate that has not yet been returned via Free.
func (a *AddressSpace) Reserved() uint64 { return a.reserved }

// Free returns [address, address+size) to the free set, coalescing with
// any immediately adjacent free ranges.
func (a *AddressSpace) Free(address, size uint64) {
	r := Range{Start: address, End: address + size}
	a.reserved -= size

	if r.End == a.unboundedFrom {
		a.unboundedFrom = r.Start
		// The now-larger tail may itself abut the last finite free range;
		// absorb it too so a bounded-mode Free never leaves a spurious
		// finite entry sitting right next to the unbounded tail.
		if n := len(a.free); n > 0 && a.free[n-1].End == a.unboundedFrom {
			a.unboundedFrom = a.free[n-1].Start
			a.free = a.free[:n-1]
		}
		return
	}

	i := sort.Search(len(a.free), func(i int) bool { return a.free[i].Start >= r.Start })

	// Merge with left neighbour if it touches r.Start.
	if i > 0 && a.free[i-1].End == r.Start {
		r.Start = a.free[i-1].Start
		a.free = append(a.free[:i-1], a.free[i:]...)
		i--
	}
	// Merge with right neighbour if it touches r.End.
	if i < len(a.free) && a.free[i].Start == r.End {
		r.End = a.free[i].End
		a.free = append(a.free[:i], a.free[i+1:]...)
	}

	a.free = append(a.free, Range{})
	copy(a.free[i+1:], a.free[i:])
	a.free[i] = r
}

// FreeRanges returns a copy of the current finite free ranges, in address
// order, for tests and invariant checks. The unbounded tail is not
// included.
func (a *AddressSpace) FreeRanges() []Range {
	out := make([]Range, len(a.free))
	copy(out, a.free)
	return out
}
