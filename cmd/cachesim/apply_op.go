package main

import (
	"github.com/clockworklabs/cachesim/internal/callpath"
	"github.com/clockworklabs/cachesim/internal/controller"
	"github.com/clockworklabs/cachesim/internal/replay"
)

// applyOp replays one trace op through a Controller's synchronous
// collect_trace/collect_api entry points, using each op's own opid (or
// its malloc opid, for a free) as a stand-in host pointer: the loaded
// trace has no original host pointers, only the opid relationship that
// CollectTrace's pointer-keyed bookkeeping needs preserved.
func applyOp(c *controller.Controller, op replay.Op) error {
	switch op.Kind {
	case replay.OpMalloc:
		return c.CollectTrace(uintptr(op.Opid), op.Stream, int64(op.Size), true, callpath.Hash{})
	case replay.OpFree:
		return c.CollectTrace(uintptr(op.MallocOpid), op.Stream, -1, true, callpath.Hash{})
	case replay.OpEmptyCache:
		c.CollectAPI(controller.APIEmptyCache)
		return nil
	default:
		return nil
	}
}
