package blockgraph_test

import (
	"testing"

	"github.com/clockworklabs/cachesim/internal/blockgraph"
	"github.com/stretchr/testify/require"
)

func TestSplitProducesAdjacentPair(t *testing.T) {
	seg := blockgraph.NewSegment(0, 0, 1000, 2048)

	left, tail := blockgraph.Split(seg, 512)

	require.Equal(t, uint64(1000), left.Addr)
	require.Equal(t, uint64(512), left.Size)
	require.Equal(t, uint64(1512), tail.Addr)
	require.Equal(t, uint64(1536), tail.Size)

	// I2: address contiguity.
	require.Equal(t, left.Addr+left.Size, tail.Addr)
	// I1: neighbour symmetry.
	require.Same(t, tail, left.Next)
	require.Same(t, left, tail.Prev)
}

func TestSplitPreservesOuterNeighbours(t *testing.T) {
	far := blockgraph.NewSegment(0, 0, 0, 16)
	mid := blockgraph.NewSegment(0, 0, 16, 100)
	far.Next = mid
	mid.Prev = far

	left, tail := blockgraph.Split(mid, 40)

	require.Same(t, far, left.Prev)
	require.Same(t, left, far.Next)
	require.Same(t, left, tail.Prev)
}

func TestTryMergeWithFreeNext(t *testing.T) {
	a := blockgraph.NewSegment(0, 0, 0, 100)
	b := blockgraph.NewSegment(0, 0, 100, 50)
	a.Next = b
	b.Prev = a

	absorbed := blockgraph.TryMerge(a, b)

	require.Equal(t, uint64(50), absorbed)
	require.Equal(t, uint64(150), a.Size)
	require.Nil(t, a.Next)
}

func TestTryMergeWithFreePrev(t *testing.T) {
	a := blockgraph.NewSegment(0, 0, 0, 100)
	b := blockgraph.NewSegment(0, 0, 100, 50)
	a.Next = b
	b.Prev = a

	absorbed := blockgraph.TryMerge(b, a)

	require.Equal(t, uint64(100), absorbed)
	require.Equal(t, uint64(0), b.Addr)
	require.Equal(t, uint64(150), b.Size)
	require.Nil(t, b.Prev)
}

func TestTryMergeNoOpOnAllocatedOrNil(t *testing.T) {
	a := blockgraph.NewSegment(0, 0, 0, 100)
	require.Equal(t, uint64(0), blockgraph.TryMerge(a, nil))

	b := blockgraph.NewSegment(0, 0, 100, 50)
	b.Allocated = true
	a.Next = b
	b.Prev = a
	require.Equal(t, uint64(0), blockgraph.TryMerge(a, b))
	require.Equal(t, uint64(100), a.Size)
}

func TestIsSplit(t *testing.T) {
	seg := blockgraph.NewSegment(0, 0, 0, 100)
	require.False(t, seg.IsSplit())

	left, tail := blockgraph.Split(seg, 40)
	require.True(t, left.IsSplit())
	require.True(t, tail.IsSplit())
}
