package queryplan

import (
	"math"
	"time"

	"github.com/google/perfetto-dataframe/internal/bitvec"
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/logging"
)

// Cursor materializes a QueryPlan's registers against a live dataframe and
// drives the interpreter, then exposes the resulting output span as an
// iterator. One Cursor is bound to one dataframe; cheap to re-Execute with a
// different ValueFetcher (e.g. a new set of client-bound filter values)
// across the same plan.
type Cursor struct {
	plan *QueryPlan
	df   *column.Dataframe

	regs []bytecode.RegValue

	lastMutation uint64

	outputPerRow int
	pos, end     uint32 // positions into the output register's materialized values
	outVals      []uint32
	colOffset    []uint32
}

// PrepareCursor resolves every RegisterInit descriptor against df, writing
// the corresponding storage pointer / null bitvector / index permutation /
// specialized-storage register, and returns a Cursor ready for Execute.
// Fatal if plan.Params.RegisterCount is smaller than any referenced
// register — a provisioning bug, not a recoverable input error.
func PrepareCursor(plan *QueryPlan, df *column.Dataframe) *Cursor {
	c := &Cursor{plan: plan, df: df, colOffset: plan.ColToOutputOffset, outputPerRow: int(plan.Params.OutputPerRow)}
	c.initRegisters()
	return c
}

func (c *Cursor) initRegisters() {
	regs := make([]bytecode.RegValue, c.plan.Params.RegisterCount)
	for _, ri := range c.plan.RegisterInits {
		if uint32(ri.Dest) >= c.plan.Params.RegisterCount {
			dferrors.Fatalf("queryplan: RegisterInit dest r%d exceeds provisioned register count %d", ri.Dest, c.plan.Params.RegisterCount)
		}
		regs[ri.Dest] = resolveInit(c.df, ri)
	}
	c.regs = regs
	c.lastMutation = c.df.MutationCounter()
}

// resolveInit resolves one RegisterInit descriptor against the live
// dataframe. Id columns carry no storage, so InitId yields an undefined
// register the interpreter never dereferences (every opcode that takes a
// Storage register special-cases dftype.Id and skips the read).
func resolveInit(df *column.Dataframe, ri bytecode.RegisterInit) bytecode.RegValue {
	switch ri.Kind {
	case bytecode.InitId:
		return bytecode.RegValue{}
	case bytecode.InitUint32, bytecode.InitInt32, bytecode.InitInt64, bytecode.InitDouble, bytecode.InitString:
		col := df.Columns[ri.SourceIndex]
		return bytecode.NewStoragePtrReg(&col.Storage)
	case bytecode.InitNullBitvector:
		col := df.Columns[ri.SourceIndex]
		return bytecode.NewBitVectorPtrReg(col.Null.BitVector())
	case bytecode.InitIndexVector:
		idx := df.Indexes[ri.SourceIndex]
		slab := bitvec.NewSlab[uint32](len(idx.Permutation))
		copy(slab.Data(), idx.Permutation)
		return bytecode.NewSpanReg(bitvec.Span{Data: slab, Begin: 0, End: uint32(len(idx.Permutation))})
	case bytecode.InitSmallValueEqBitvector:
		col := df.Columns[ri.SourceIndex]
		return bytecode.NewBitVectorPtrReg(col.Specialized.BitVector())
	case bytecode.InitSmallValueEqPopcount:
		col := df.Columns[ri.SourceIndex]
		return bytecode.NewPopcountPtrReg(col.Specialized.Popcount())
	default:
		dferrors.Fatalf("queryplan: unknown RegisterInit kind %d", ri.Kind)
		return bytecode.RegValue{}
	}
}

// Execute runs the plan's bytecode, consulting fetcher for every
// CastFilterValue[List] opcode. Re-initializes registers first if the
// dataframe's mutation counter has advanced since the last Execute (or since
// PrepareCursor), since any cached storage/bitvector pointers from before the
// mutation may now be stale.
func (c *Cursor) Execute(fetcher interp.ValueFetcher) {
	if c.df.MutationCounter() != c.lastMutation {
		logging.DegradedPath("cursor registers stale, re-initializing", "dataframe_mutations", c.df.MutationCounter())
		c.initRegisters()
	}
	start := time.Now()
	interp.Execute(c.plan.Bytecode, c.regs, fetcher, c.df.Pool)

	out := readOutputSpan(&c.regs[c.plan.Params.OutputRegister])
	c.outVals = out.Values()
	c.pos = 0
	c.end = uint32(len(c.outVals))
	logging.CursorExecuted(int64(len(c.plan.Bytecode)), c.RowCount(), time.Since(start))
}

func readOutputSpan(r *bytecode.RegValue) bitvec.Span {
	if r.Kind == bytecode.RegRange {
		return r.Range()
	}
	return r.Span()
}

// RowCount returns the number of output rows (outVals length / output_per_row).
func (c *Cursor) RowCount() int {
	if c.outputPerRow == 0 {
		return 0
	}
	return len(c.outVals) / c.outputPerRow
}

// Eof reports whether iteration has consumed every output row.
func (c *Cursor) Eof() bool { return c.pos >= c.end }

// Next advances to the next output row.
func (c *Cursor) Next() {
	c.pos += uint32(c.outputPerRow)
}

// RowIndex returns the current row's dataframe row index.
func (c *Cursor) RowIndex() uint32 {
	return c.outVals[c.pos]
}

// GetCell returns the current row's value for col, using the plan's
// col_to_output_offset map when the column needed per-row storage-offset
// translation (nullable columns), falling back to the row index and the
// dataframe's own null rules otherwise.
func (c *Cursor) GetCell(col int) column.Value {
	if c.outputPerRow > 1 && int(c.colOffset[col]) != 0 {
		storageOffset := c.outVals[c.pos+c.colOffset[col]]
		if storageOffset == math.MaxUint32 {
			return column.NullValue()
		}
		return c.df.GetCellAtStorageOffset(col, int(storageOffset))
	}
	return c.df.GetCell(int(c.RowIndex()), col)
}
