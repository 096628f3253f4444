// Package pools implements the two ordered block sets (small and large)
// that the engine draws cached blocks from (SPEC_FULL.md, C3 BlockPools).
package pools

import (
	"sort"

	"github.com/clockworklabs/cachesim/internal/blockgraph"
)

// Kind distinguishes the small and large pools. Exactly two Pool values
// exist per engine instance, one of each Kind.
type Kind int

const (
	Small Kind = iota
	Large
)

// less implements the fixed (stream, size, address) lexicographic
// comparator shared by both pools (I4).
func less(a, b *blockgraph.Block) bool {
	if a.Stream != b.Stream {
		return a.Stream < b.Stream
	}
	if a.Size != b.Size {
		return a.Size < b.Size
	}
	return a.Addr < b.Addr
}

// Pool is an ordered set of free blocks of one Kind, kept sorted by the
// (stream, size, address) comparator so Find can lower_bound in O(log n).
type Pool struct {
	Kind   Kind
	blocks []*blockgraph.Block
}

// New creates an empty pool of the given kind.
func New(kind Kind) *Pool {
	return &Pool{Kind: kind}
}

// Len returns the number of free blocks currently held.
func (p *Pool) Len() int { return len(p.blocks) }

// Insert adds a free block to the pool, keeping blocks sorted.
func (p *Pool) Insert(b *blockgraph.Block) {
	i := sort.Search(len(p.blocks), func(i int) bool { return !less(p.blocks[i], b) })
	p.blocks = append(p.blocks, nil)
	copy(p.blocks[i+1:], p.blocks[i:])
	p.blocks[i] = b
	b.PoolIndex = i
	p.reindexFrom(i + 1)
}

// Remove deletes b from the pool. b must currently be a member (its
// PoolIndex must be accurate, which Insert/Remove maintain); this keeps
// removal O(n) for the shift but O(1) to locate, matching a pool that is
// usually consulted near its front (the small-size end).
func (p *Pool) Remove(b *blockgraph.Block) {
	i := b.PoolIndex
	if i < 0 || i >= len(p.blocks) || p.blocks[i] != b {
		i = p.indexOf(b)
		if i < 0 {
			return
		}
	}
	p.blocks = append(p.blocks[:i], p.blocks[i+1:]...)
	p.reindexFrom(i)
}

func (p *Pool) indexOf(b *blockgraph.Block) int {
	for i, c := range p.blocks {
		if c == b {
			return i
		}
	}
	return -1
}

func (p *Pool) reindexFrom(start int) {
	for i := start; i < len(p.blocks); i++ {
		p.blocks[i].PoolIndex = i
	}
}

// Snapshot returns a defensive copy of the pool's current members in
// comparator order, for safe iteration during EmptyCache (§4.5 requires
// traversal to be safe under concurrent removal from the same set).
func (p *Pool) Snapshot() []*blockgraph.Block {
	out := make([]*blockgraph.Block, len(p.blocks))
	copy(out, p.blocks)
	return out
}

// Find locates the best candidate free block for a request of reqSize
// bytes on the given stream, applying the oversize guard: when reqSize is
// at least maxSplitSize, candidates exceeding the request by more than
// largeBuffer bytes are skipped. It returns nil if nothing qualifies.
func (p *Pool) Find(stream int, reqSize, maxSplitSize, largeBuffer uint64) *blockgraph.Block {
	key := &blockgraph.Block{Stream: stream, Size: reqSize, Addr: 0}
	start := sort.Search(len(p.blocks), func(i int) bool { return !less(p.blocks[i], key) })

	guarded := reqSize >= maxSplitSize
	for i := start; i < len(p.blocks); i++ {
		b := p.blocks[i]
		if b.Stream != stream {
			break
		}
		if guarded && b.Size > reqSize+largeBuffer {
			continue
		}
		return b
	}
	return nil
}
