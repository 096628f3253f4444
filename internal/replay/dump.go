package replay

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/clockworklabs/cachesim/internal/blockgraph"
	"github.com/clockworklabs/cachesim/internal/cachesimerrors"
	"github.com/clockworklabs/cachesim/internal/engine"
)

// DumpTraceCSV renders t per §6's optional research trace dump: one
// "malloc_opid,free_opid,size" line per completed block (a malloc with a
// matching free in t), followed by one "opid,api_enum" line per API
// event (currently only empty_cache). Still-live blocks (no matching
// free in t) are omitted, matching the original tool's completed-block
// dump; callers that need every block closed should run them through
// Collector.Close first.
func DumpTraceCSV(w io.Writer, t *Trace) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	freeOpidOf := make(map[uint64]uint64, t.Len())
	for _, op := range t.ops {
		if op.Kind == OpFree {
			freeOpidOf[op.MallocOpid] = op.Opid
		}
	}

	for _, op := range t.ops {
		if op.Kind != OpMalloc {
			continue
		}
		freeOpid, ok := freeOpidOf[op.Opid]
		if !ok {
			continue
		}
		row := []string{
			strconv.FormatUint(op.Opid, 10),
			strconv.FormatUint(freeOpid, 10),
			strconv.FormatUint(op.Size, 10),
		}
		if err := cw.Write(row); err != nil {
			return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "write trace dump row")
		}
	}
	for _, op := range t.ops {
		if op.Kind != OpEmptyCache {
			continue
		}
		row := []string{strconv.FormatUint(op.Opid, 10), "empty_cache"}
		if err := cw.Write(row); err != nil {
			return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "write trace dump api row")
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "flush trace dump")
	}
	return nil
}

// UsageRow is one line of the per-op memory usage CSV (§6): the opid,
// the signed change in currently-allocated bytes this op caused, and
// the engine's running current_allocated/current_reserved after it.
type UsageRow struct {
	Opid             uint64
	DeltaSize        int64
	CurrentAllocated uint64
	CurrentReserved  uint64
}

// ReplayWithUsageLog runs t against e exactly like Replay, but also
// returns one UsageRow per op for the per-op usage CSV (§6), plus the
// final engine.Usage for the trailing max_allocated/max_reserved summary.
func ReplayWithUsageLog(e *engine.Engine, t *Trace) ([]UsageRow, engine.Usage, error) {
	rows := make([]UsageRow, 0, t.Len())
	live := make(map[uint64]*blockgraph.Block, t.Len())

	for _, op := range t.ops {
		prev := e.Usage().CurrentAllocated
		switch op.Kind {
		case OpMalloc:
			b, err := e.Malloc(op.Stream, op.Size)
			if err != nil {
				return nil, engine.Usage{}, err
			}
			live[op.Opid] = b
		case OpFree:
			b, ok := live[op.MallocOpid]
			if !ok {
				return nil, engine.Usage{}, cachesimerrors.New(cachesimerrors.TraceMalformed,
					fmt.Sprintf("free at opid %d targets a block that was never live (malloc opid %d)", op.Opid, op.MallocOpid))
			}
			e.Free(b)
			delete(live, op.MallocOpid)
		case OpEmptyCache:
			e.EmptyCache()
		}
		u := e.Usage()
		rows = append(rows, UsageRow{
			Opid:             op.Opid,
			DeltaSize:        int64(u.CurrentAllocated) - int64(prev),
			CurrentAllocated: u.CurrentAllocated,
			CurrentReserved:  u.CurrentReserved,
		})
	}
	return rows, e.Usage(), nil
}

// DumpUsageCSV renders rows and the final usage as the per-op memory
// usage CSV from §6: "opid,delta_size,current_allocated,current_reserved"
// per op, then a trailing "max_allocated,max_reserved" summary line.
func DumpUsageCSV(w io.Writer, rows []UsageRow, final engine.Usage) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	for _, r := range rows {
		row := []string{
			strconv.FormatUint(r.Opid, 10),
			strconv.FormatInt(r.DeltaSize, 10),
			strconv.FormatUint(r.CurrentAllocated, 10),
			strconv.FormatUint(r.CurrentReserved, 10),
		}
		if err := cw.Write(row); err != nil {
			return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "write usage dump row")
		}
	}
	summary := []string{
		strconv.FormatUint(final.PeakAllocated, 10),
		strconv.FormatUint(final.PeakReserved, 10),
	}
	if err := cw.Write(summary); err != nil {
		return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "write usage dump summary")
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "flush usage dump")
	}
	return nil
}

// ReadTraceCSV parses the CLI's input trace format: one
// "opid,kind,stream,size,malloc_opid" line per event, kind one of
// "malloc"/"free"/"empty_cache" (malloc_opid ignored for malloc/empty_cache
// rows, size ignored for free/empty_cache rows). This is the inverse of
// the research dump's completed-block view: it carries every raw event
// so a CLI-loaded trace can be rebuilt and replayed exactly.
func ReadTraceCSV(r io.Reader) (*Trace, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	records, err := cr.ReadAll()
	if err != nil {
		return nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "read trace csv")
	}

	ops := make([]Op, 0, len(records))
	for i, rec := range records {
		opid, err := strconv.ParseUint(rec[0], 10, 64)
		if err != nil {
			return nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, fmt.Sprintf("parse opid at row %d", i))
		}
		stream, err := strconv.Atoi(rec[2])
		if err != nil {
			return nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, fmt.Sprintf("parse stream at row %d", i))
		}
		size, err := strconv.ParseUint(rec[3], 10, 64)
		if err != nil {
			return nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, fmt.Sprintf("parse size at row %d", i))
		}
		mallocOpid, err := strconv.ParseUint(rec[4], 10, 64)
		if err != nil {
			return nil, cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, fmt.Sprintf("parse malloc_opid at row %d", i))
		}

		var kind OpKind
		switch rec[1] {
		case "malloc":
			kind = OpMalloc
		case "free":
			kind = OpFree
		case "empty_cache":
			kind = OpEmptyCache
		default:
			return nil, cachesimerrors.New(cachesimerrors.PersistenceError, fmt.Sprintf("unknown op kind %q at row %d", rec[1], i))
		}
		ops = append(ops, Op{Opid: opid, Kind: kind, Stream: stream, Size: size, MallocOpid: mallocOpid})
	}
	return Build(ops)
}

// WriteTraceCSV renders t in ReadTraceCSV's format, the round-trippable
// input format for cmd/cachesim (distinct from DumpTraceCSV's §6
// research-summary format).
func WriteTraceCSV(w io.Writer, t *Trace) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()
	for _, op := range t.ops {
		row := []string{
			strconv.FormatUint(op.Opid, 10),
			op.Kind.String(),
			strconv.Itoa(op.Stream),
			strconv.FormatUint(op.Size, 10),
			strconv.FormatUint(op.MallocOpid, 10),
		}
		if err := cw.Write(row); err != nil {
			return cachesimerrors.Wrap(cachesimerrors.PersistenceError, err, "write trace csv row")
		}
	}
	cw.Flush()
	return cw.Error()
}
