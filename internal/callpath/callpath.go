// Package callpath implements the static-tensor identification layer:
// an opaque digest over a caller-supplied Python call stack, and a
// Filter that the replay package's asynchronous collector consults to
// drop events originating from call sites known to only ever allocate
// fixed-shape tensors (SPEC_FULL.md, SUPPLEMENTED FEATURES #2).
//
// This package never walks a real Python or C++ stack — that capture
// step stays a collaborator outside core scope (spec.md §1). Frame is
// the caller's own rendering of whatever frames it already has.
package callpath

import "hash/fnv"

// Hash is an opaque digest identifying one call path. It has no
// meaning beyond equality comparison: two Frame slices that hash equal
// are treated as the same call site.
type Hash [32]byte

// Frame mirrors original_source/include/python_states.h's python_state_t:
// one Python stack frame, as reported by the (out-of-scope) unwinder.
type Frame struct {
	FileName            string
	FunctionName        string
	FunctionFirstLineno uint64
	Lineno              uint64
}

// Sum computes the Hash of an ordered call stack. Stdlib hash/fnv is
// used rather than a third-party hashing library: this is a pure,
// content-addressed equality key with no cross-process or security
// requirement, so the extra dependency surface isn't warranted (see
// DESIGN.md's stdlib-fallback justification for this package).
func Sum(frames []Frame) Hash {
	h := fnv.New256a()
	var buf [8]byte
	writeUint := func(n uint64) {
		for i := range buf {
			buf[i] = byte(n >> (8 * uint(i)))
		}
		h.Write(buf[:])
	}
	for _, f := range frames {
		h.Write([]byte(f.FileName))
		h.Write([]byte{0})
		h.Write([]byte(f.FunctionName))
		h.Write([]byte{0})
		writeUint(f.FunctionFirstLineno)
		writeUint(f.Lineno)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// Filter decides whether an event identified by a callpath Hash should
// be recorded into a trace. A nil *Set (the zero value) allows
// everything, so callers that never populate exclusions pay no cost.
type Filter interface {
	Allow(h Hash) bool
}

// Set is a Filter that excludes a fixed collection of hashes,
// identifying call sites whose tensors are known to be statically
// shaped and therefore uninteresting to the tuner.
type Set struct {
	excluded map[Hash]struct{}
}

// NewSet builds a Set excluding exactly the given hashes.
func NewSet(excluded ...Hash) *Set {
	s := &Set{excluded: make(map[Hash]struct{}, len(excluded))}
	for _, h := range excluded {
		s.excluded[h] = struct{}{}
	}
	return s
}

// Allow reports whether h is not in the excluded set. A nil *Set
// allows every hash.
func (s *Set) Allow(h Hash) bool {
	if s == nil {
		return true
	}
	_, excluded := s.excluded[h]
	return !excluded
}

// Exclude adds h to the excluded set.
func (s *Set) Exclude(h Hash) {
	s.excluded[h] = struct{}{}
}
