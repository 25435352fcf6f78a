package interp

import (
	"fmt"
	"strings"

	"github.com/google/perfetto-dataframe/internal/bytecode"
)

// BytecodeToString renders a plan's instructions as one line per opcode,
// named-argument form, for tests and debug tooling, rather than the raw
// Option/Args view.
func BytecodeToString(program []bytecode.Bytecode) string {
	var b strings.Builder
	for i, bc := range program {
		fmt.Fprintf(&b, "%4d: %s\n", i, explainOne(bc))
	}
	return b.String()
}

func explainOne(bc bytecode.Bytecode) string {
	switch bc.Option {
	case bytecode.OpInitRange:
		a := bc.InitRangeArgs()
		return fmt.Sprintf("InitRange(size=%d, dst=r%d)", a.Size, a.Dst)
	case bytecode.OpAllocateIndices:
		a := bc.AllocateIndicesArgs()
		return fmt.Sprintf("AllocateIndices(size=%d, slab=r%d, span=r%d)", a.Size, a.DstSlab, a.DstSpan)
	case bytecode.OpIota:
		a := bc.IotaArgs()
		return fmt.Sprintf("Iota(source=r%d, span=r%d)", a.Source, a.Span)
	case bytecode.OpNonStringFilter:
		a := bc.NonStringFilterArgs()
		return fmt.Sprintf("NonStringFilter(type=%v, op=%v, storage=r%d, value=r%d, src=r%d, dst=r%d)",
			a.Type, a.Op, a.Storage, a.Value, a.Src, a.Dst)
	case bytecode.OpStringFilter:
		a := bc.StringFilterArgs()
		return fmt.Sprintf("StringFilter(op=%v, storage=r%d, value=r%d, src=r%d, dst=r%d)",
			a.Op, a.Storage, a.Value, a.Src, a.Dst)
	case bytecode.OpSortedFilter:
		a := bc.SortedFilterArgs()
		return fmt.Sprintf("SortedFilter(type=%v, rangeOp=%d, narrowEnd=%v, storage=r%d, value=r%d, range=r%d)",
			a.Type, a.RangeOp, a.NarrowEnd, a.Storage, a.Value, a.Range)
	case bytecode.OpCastFilterValue, bytecode.OpCastFilterValueList:
		a := bc.CastFilterValueArgs()
		return fmt.Sprintf("%s(slot=%d, type=%v, op=%v, dst=r%d)", bc.Option, a.Slot, a.Type, a.Op, a.Dst)
	case bytecode.OpLimitOffsetIndices:
		a := bc.LimitOffsetIndicesArgs()
		return fmt.Sprintf("LimitOffsetIndices(span=r%d, offset=%d, limit=%d)", a.Span, a.Offset, a.Limit)
	case bytecode.OpFindMinMaxIndex:
		a := bc.FindMinMaxIndexArgs()
		return fmt.Sprintf("FindMinMaxIndex(type=%v, which=%d, storage=r%d, span=r%d)", a.Type, a.Which, a.Storage, a.Span)
	default:
		return fmt.Sprintf("%s %v", bc.Option, bc.Args)
	}
}
