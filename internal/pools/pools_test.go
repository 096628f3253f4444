package pools_test

import (
	"testing"

	"github.com/clockworklabs/cachesim/internal/blockgraph"
	"github.com/clockworklabs/cachesim/internal/pools"
	"github.com/stretchr/testify/require"
)

func block(stream int, addr, size uint64) *blockgraph.Block {
	return blockgraph.NewSegment(0, stream, addr, size)
}

func TestInsertKeepsOrder(t *testing.T) {
	p := pools.New(pools.Small)
	b1 := block(0, 100, 50)
	b2 := block(0, 0, 20)
	b3 := block(0, 50, 20)
	p.Insert(b1)
	p.Insert(b2)
	p.Insert(b3)

	snap := p.Snapshot()
	require.Equal(t, []*blockgraph.Block{b2, b3, b1}, snap)
}

func TestFindLowerBound(t *testing.T) {
	p := pools.New(pools.Small)
	p.Insert(block(0, 0, 64))
	p.Insert(block(0, 100, 128))
	p.Insert(block(0, 300, 256))

	got := p.Find(0, 100, 1<<62, 1<<62)
	require.NotNil(t, got)
	require.Equal(t, uint64(128), got.Size)
}

func TestFindRespectsStream(t *testing.T) {
	p := pools.New(pools.Large)
	p.Insert(block(1, 0, 1000))

	got := p.Find(0, 100, 1<<62, 1<<62)
	require.Nil(t, got)
}

func TestFindOversizeGuardRejectsTooBig(t *testing.T) {
	p := pools.New(pools.Large)
	p.Insert(block(0, 0, 40*1024*1024)) // 40 MiB free block

	// Request exactly at max_split_size so the guard applies; candidate
	// exceeds request by more than kLargeBuffer (here set tiny).
	got := p.Find(0, 1*1024*1024, 1*1024*1024, 1024)
	require.Nil(t, got, "oversize guard should reject the 40MiB block for a 1MiB request")
}

func TestFindOversizeGuardAllowsWithinBuffer(t *testing.T) {
	p := pools.New(pools.Large)
	p.Insert(block(0, 0, 21*1024*1024))

	got := p.Find(0, 20*1024*1024, 20*1024*1024, 2*1024*1024)
	require.NotNil(t, got)
}

func TestRemove(t *testing.T) {
	p := pools.New(pools.Small)
	b1 := block(0, 0, 10)
	b2 := block(0, 10, 20)
	p.Insert(b1)
	p.Insert(b2)

	p.Remove(b1)
	require.Equal(t, 1, p.Len())
	require.Equal(t, []*blockgraph.Block{b2}, p.Snapshot())
}
