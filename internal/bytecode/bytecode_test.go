package bytecode

import (
	"testing"

	"github.com/google/perfetto-dataframe/internal/dftype"
)

func TestBytecodeMarshalRoundTrip(t *testing.T) {
	bc := MakeNonStringFilter(NonStringFilterArgs{
		Type: dftype.Int64, Op: dftype.Ge, Storage: 3, Value: 4, Src: 5, Dst: 6,
	})
	buf := bc.MarshalBinary()
	if len(buf) != Size {
		t.Fatalf("MarshalBinary size = %d, want %d", len(buf), Size)
	}
	got := UnmarshalBytecode(buf)
	if got != bc {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, bc)
	}
}

func TestMakeInitRangeArgsRoundTrip(t *testing.T) {
	bc := MakeInitRange(InitRangeArgs{Size: 42, Dst: 7})
	args := bc.InitRangeArgs()
	if args.Size != 42 || args.Dst != 7 {
		t.Fatalf("InitRangeArgs = %+v", args)
	}
	if bc.Option != OpInitRange {
		t.Fatalf("Option = %v, want OpInitRange", bc.Option)
	}
}

func TestCopyToRowLayoutArgsRoundTrip(t *testing.T) {
	cases := []CopyToRowLayoutArgs{
		{Type: dftype.Uint32, Storage: 1, Bv: 2, Popcount: 3, RankMap: 4, Src: 5, Buffer: 6, Offset: 0, Stride: 8, Invert: false, NullsLast: false},
		{Type: dftype.Int64, Storage: 1, Src: 5, Buffer: 6, Offset: 4000, Stride: 4095, Invert: true, NullsLast: false},
		{Type: dftype.Double, Storage: 1, Src: 5, Buffer: 6, Offset: 12, Stride: 17, Invert: false, NullsLast: true},
		{Type: dftype.String, Storage: 1, RankMap: 9, UseRankMap: true, Src: 5, Buffer: 6, Offset: 1, Stride: 5, Invert: true, NullsLast: true},
	}
	for _, want := range cases {
		bc := MakeCopyToRowLayout(want)
		if bc.Option != OpCopyToRowLayout {
			t.Fatalf("Option = %v, want OpCopyToRowLayout", bc.Option)
		}
		got := bc.CopyToRowLayoutArgs()
		if got != want {
			t.Fatalf("CopyToRowLayoutArgs round trip = %+v, want %+v", got, want)
		}
	}
}

func TestMakeNullFilterFoldsIsNotNull(t *testing.T) {
	isNull := MakeNullFilter(false, NullFilterArgs{Bv: 1, Span: 2})
	isNotNull := MakeNullFilter(true, NullFilterArgs{Bv: 1, Span: 2})
	if isNull.Option != OpNullFilterIsNull {
		t.Fatalf("isNull.Option = %v", isNull.Option)
	}
	if isNotNull.Option != OpNullFilterIsNotNull {
		t.Fatalf("isNotNull.Option = %v", isNotNull.Option)
	}
	if isNull.NullFilterArgs() != (NullFilterArgs{Bv: 1, Span: 2}) {
		t.Fatalf("NullFilterArgs round trip failed")
	}
}

func TestMakeCastFilterValueFoldsIsList(t *testing.T) {
	single := MakeCastFilterValue(CastFilterValueArgs{Slot: 0, Type: dftype.String, Op: dftype.Eq, Dst: 9})
	list := MakeCastFilterValue(CastFilterValueArgs{Slot: 1, Type: dftype.String, Op: dftype.In, Dst: 9, IsList: true})
	if single.Option != OpCastFilterValue {
		t.Fatalf("single.Option = %v", single.Option)
	}
	if list.Option != OpCastFilterValueList {
		t.Fatalf("list.Option = %v", list.Option)
	}
	if got := list.CastFilterValueArgs(); !got.IsList {
		t.Fatalf("expected IsList true, got %+v", got)
	}
}

func TestOptionStringKnownAndUnknown(t *testing.T) {
	if OpInitRange.String() != "InitRange" {
		t.Fatalf("String() = %q", OpInitRange.String())
	}
	if got := Option(OptionCount + 100).String(); got != "Unknown" {
		t.Fatalf("String() for out-of-range option = %q, want Unknown", got)
	}
}

func TestOptionCostCategories(t *testing.T) {
	cases := []struct {
		op   Option
		cost CostCategory
	}{
		{OpInitRange, FixedCost},
		{OpSortedFilter, LogPerRowCost},
		{OpSortRowLayout, LogLinearPerRowCost},
		{OpDistinct, PostOperationLinearPerRowCost},
		{OpNonStringFilter, LinearPerRowCost},
	}
	for _, c := range cases {
		if got := c.op.Cost(); got != c.cost {
			t.Errorf("%v.Cost() = %v, want %v", c.op, got, c.cost)
		}
	}
}

func TestRegisterInitMarshalRoundTrip(t *testing.T) {
	ri := RegisterInit{Dest: 12, Kind: InitSmallValueEqPopcount, SourceIndex: 300}
	buf := ri.MarshalBinary()
	if len(buf) != 8 {
		t.Fatalf("len(buf) = %d, want 8", len(buf))
	}
	got := UnmarshalRegisterInit(buf)
	if got != ri {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, ri)
	}
}

func TestBuilderResolveRegisterCachesWithinScope(t *testing.T) {
	b := NewBuilder()
	r1, fresh1 := b.ResolveRegister(InitUint32, 3)
	if !fresh1 {
		t.Fatalf("expected first resolution to be fresh")
	}
	r2, fresh2 := b.ResolveRegister(InitUint32, 3)
	if fresh2 {
		t.Fatalf("expected second resolution to hit cache")
	}
	if r1 != r2 {
		t.Fatalf("cached register changed: %v != %v", r1, r2)
	}
	if len(b.RegisterInits) != 1 {
		t.Fatalf("expected exactly one RegisterInit descriptor, got %d", len(b.RegisterInits))
	}

	r3, fresh3 := b.ResolveRegister(InitUint32, 4)
	if !fresh3 || r3 == r1 {
		t.Fatalf("expected a distinct fresh register for a different source index")
	}
}

func TestBuilderPushPopScopeForgetsInnerCache(t *testing.T) {
	b := NewBuilder()
	outer, _ := b.ResolveRegister(InitId, 0)

	b.PushScope()
	inner, fresh := b.ResolveRegister(InitInt64, 1)
	if !fresh {
		t.Fatalf("expected fresh register inside new scope")
	}
	b.PopScope()

	// Outer-scope registration must still be visible after popping.
	stillCached, fresh := b.ResolveRegister(InitId, 0)
	if fresh || stillCached != outer {
		t.Fatalf("outer scope cache lost after PopScope")
	}

	// Re-resolving the inner key after PopScope allocates a new register
	// since the scope that cached it is gone.
	after, fresh := b.ResolveRegister(InitInt64, 1)
	if !fresh {
		t.Fatalf("expected fresh register after inner scope was discarded")
	}
	if after == inner {
		t.Fatalf("expected a new register, got the same stale one")
	}
}

func TestBuilderAllocateScratchReusesUntilGrown(t *testing.T) {
	b := NewBuilder()
	slab1, span1 := b.AllocateScratch(0, 16)
	if len(b.Code) != 1 {
		t.Fatalf("expected one AllocateIndices emitted, got %d", len(b.Code))
	}
	slab2, span2 := b.AllocateScratch(0, 16)
	if len(b.Code) != 1 {
		t.Fatalf("expected reuse at same size to emit no new instruction, got %d total", len(b.Code))
	}
	if slab1 != slab2 || span1 != span2 {
		t.Fatalf("expected same register pair on reuse")
	}

	b.ReleaseScratch(0)
	_, _ = b.AllocateScratch(0, 64)
	if len(b.Code) != 2 {
		t.Fatalf("expected a new AllocateIndices when growing slot size, got %d", len(b.Code))
	}
}

func TestBuilderRegisterCountTracksAllocations(t *testing.T) {
	b := NewBuilder()
	b.AllocReg()
	b.AllocReg()
	b.AllocateScratch(0, 8)
	if got := b.RegisterCount(); got != 4 {
		t.Fatalf("RegisterCount() = %d, want 4", got)
	}
}
