package bytecode

import "github.com/google/perfetto-dataframe/internal/dftype"

// FilterValueSlot identifies which client-supplied filter value (or value
// list) a CastFilterValue[List] opcode reads via the ValueFetcher.
type FilterValueSlot uint32

// CastFilterValueArgs casts filter value Slot against a column of type
// StorageType under Op, writing a CastResult-kind register at Dst.
type CastFilterValueArgs struct {
	Slot  FilterValueSlot
	Type  dftype.StorageType
	Op    dftype.Op
	Dst   Reg
	IsList bool
}

func MakeCastFilterValue(a CastFilterValueArgs) Bytecode {
	op := OpCastFilterValue
	if a.IsList {
		op = OpCastFilterValueList
	}
	return Bytecode{Option: op, Args: [argWords]uint32{uint32(a.Slot), uint32(a.Type), uint32(a.Op), regArg(a.Dst)}}
}
func (b Bytecode) CastFilterValueArgs() CastFilterValueArgs {
	return CastFilterValueArgs{
		Slot: FilterValueSlot(b.Args[0]), Type: dftype.StorageType(b.Args[1]),
		Op: dftype.Op(b.Args[2]), Dst: asReg(b.Args[3]), IsList: b.Option == OpCastFilterValueList,
	}
}

// NonStringFilterArgs compacts Src into Dst keeping storage[i] `Op` Value.
type NonStringFilterArgs struct {
	Type           dftype.StorageType
	Op             dftype.Op
	Storage, Value Reg
	Src, Dst       Reg
}

func MakeNonStringFilter(a NonStringFilterArgs) Bytecode {
	return Bytecode{Option: OpNonStringFilter, Args: [argWords]uint32{
		uint32(a.Type), uint32(a.Op), regArg(a.Storage), regArg(a.Value), regArg(a.Src), regArg(a.Dst),
	}}
}
func (b Bytecode) NonStringFilterArgs() NonStringFilterArgs {
	return NonStringFilterArgs{
		Type: dftype.StorageType(b.Args[0]), Op: dftype.Op(b.Args[1]),
		Storage: asReg(b.Args[2]), Value: asReg(b.Args[3]), Src: asReg(b.Args[4]), Dst: asReg(b.Args[5]),
	}
}

// StringFilterArgs is NonStringFilterArgs' string-column counterpart; the
// interpreter additionally consults the string pool referenced by Storage.
type StringFilterArgs struct {
	Op             dftype.Op
	Storage, Value Reg
	Src, Dst       Reg
}

func MakeStringFilter(a StringFilterArgs) Bytecode {
	return Bytecode{Option: OpStringFilter, Args: [argWords]uint32{
		uint32(a.Op), regArg(a.Storage), regArg(a.Value), regArg(a.Src), regArg(a.Dst),
	}}
}
func (b Bytecode) StringFilterArgs() StringFilterArgs {
	return StringFilterArgs{
		Op: dftype.Op(b.Args[0]), Storage: asReg(b.Args[1]), Value: asReg(b.Args[2]),
		Src: asReg(b.Args[3]), Dst: asReg(b.Args[4]),
	}
}

// SortedRangeOp selects which binary-search narrowing SortedFilter performs.
type SortedRangeOp uint32

const (
	EqualRange SortedRangeOp = iota
	LowerBound
	UpperBound
)

// SortedFilterArgs narrows Range via binary search against storage.
// LowerBound/UpperBound locate the boundary nearest Value; NarrowEnd selects
// whether that boundary becomes the new End (Lt/Le) or the new Begin
// (Gt/Ge) — EqualRange ignores it and narrows both ends.
type SortedFilterArgs struct {
	Type           dftype.StorageType
	RangeOp        SortedRangeOp
	Storage, Value Reg
	Range          Reg
	NarrowEnd      bool
}

func MakeSortedFilter(a SortedFilterArgs) Bytecode {
	narrowEnd := uint32(0)
	if a.NarrowEnd {
		narrowEnd = 1
	}
	return Bytecode{Option: OpSortedFilter, Args: [argWords]uint32{
		uint32(a.Type), uint32(a.RangeOp), regArg(a.Storage), regArg(a.Value), regArg(a.Range), narrowEnd,
	}}
}
func (b Bytecode) SortedFilterArgs() SortedFilterArgs {
	return SortedFilterArgs{
		Type: dftype.StorageType(b.Args[0]), RangeOp: SortedRangeOp(b.Args[1]),
		Storage: asReg(b.Args[2]), Value: asReg(b.Args[3]), Range: asReg(b.Args[4]),
		NarrowEnd: b.Args[5] != 0,
	}
}

// Uint32SetIdSortedEqArgs exploits the SetIdSorted invariant.
type Uint32SetIdSortedEqArgs struct {
	Storage, Value, Range Reg
}

func MakeUint32SetIdSortedEq(a Uint32SetIdSortedEqArgs) Bytecode {
	return Bytecode{Option: OpUint32SetIdSortedEq, Args: [argWords]uint32{regArg(a.Storage), regArg(a.Value), regArg(a.Range)}}
}
func (b Bytecode) Uint32SetIdSortedEqArgs() Uint32SetIdSortedEqArgs {
	return Uint32SetIdSortedEqArgs{Storage: asReg(b.Args[0]), Value: asReg(b.Args[1]), Range: asReg(b.Args[2])}
}

// SpecializedStorageSmallValueEqArgs narrows Range via O(1) membership test.
type SpecializedStorageSmallValueEqArgs struct {
	Bv, Popcount, Value, Range Reg
}

func MakeSpecializedStorageSmallValueEq(a SpecializedStorageSmallValueEqArgs) Bytecode {
	return Bytecode{Option: OpSpecializedStorageSmallValueEq, Args: [argWords]uint32{
		regArg(a.Bv), regArg(a.Popcount), regArg(a.Value), regArg(a.Range),
	}}
}
func (b Bytecode) SpecializedStorageSmallValueEqArgs() SpecializedStorageSmallValueEqArgs {
	return SpecializedStorageSmallValueEqArgs{Bv: asReg(b.Args[0]), Popcount: asReg(b.Args[1]), Value: asReg(b.Args[2]), Range: asReg(b.Args[3])}
}

// LinearFilterEqArgs scans [Src.b, Src.e) once writing matches into Dst.
type LinearFilterEqArgs struct {
	Type           dftype.StorageType
	Storage, Value Reg
	Src, Dst       Reg
}

func MakeLinearFilterEq(a LinearFilterEqArgs) Bytecode {
	return Bytecode{Option: OpLinearFilterEq, Args: [argWords]uint32{
		uint32(a.Type), regArg(a.Storage), regArg(a.Value), regArg(a.Src), regArg(a.Dst),
	}}
}
func (b Bytecode) LinearFilterEqArgs() LinearFilterEqArgs {
	return LinearFilterEqArgs{
		Type: dftype.StorageType(b.Args[0]), Storage: asReg(b.Args[1]), Value: asReg(b.Args[2]),
		Src: asReg(b.Args[3]), Dst: asReg(b.Args[4]),
	}
}

// IndexedFilterEqArgs narrows a permutation span via two binary searches.
type IndexedFilterEqArgs struct {
	Type               dftype.StorageType
	Nullability        dftype.Nullability
	Storage, Bv, Value, Popcount Reg
	Src, Dst           Reg
}

func MakeIndexedFilterEq(a IndexedFilterEqArgs) Bytecode {
	return Bytecode{Option: OpIndexedFilterEq, Args: [argWords]uint32{
		uint32(a.Type), uint32(a.Nullability), regArg(a.Storage), regArg(a.Bv), regArg(a.Value), regArg(a.Popcount), regArg(a.Src), regArg(a.Dst),
	}}
}
func (b Bytecode) IndexedFilterEqArgs() IndexedFilterEqArgs {
	return IndexedFilterEqArgs{
		Type: dftype.StorageType(b.Args[0]), Nullability: dftype.Nullability(b.Args[1]),
		Storage: asReg(b.Args[2]), Bv: asReg(b.Args[3]), Value: asReg(b.Args[4]), Popcount: asReg(b.Args[5]),
		Src: asReg(b.Args[6]), Dst: asReg(b.Args[7]),
	}
}

// InFilterArgs tests membership of storage[i] in a cast value-list register.
type InFilterArgs struct {
	Type           dftype.StorageType
	Storage, Value Reg
	Src, Dst       Reg
}

func MakeInFilter(a InFilterArgs) Bytecode {
	return Bytecode{Option: OpInFilter, Args: [argWords]uint32{
		uint32(a.Type), regArg(a.Storage), regArg(a.Value), regArg(a.Src), regArg(a.Dst),
	}}
}
func (b Bytecode) InFilterArgs() InFilterArgs {
	return InFilterArgs{
		Type: dftype.StorageType(b.Args[0]), Storage: asReg(b.Args[1]), Value: asReg(b.Args[2]),
		Src: asReg(b.Args[3]), Dst: asReg(b.Args[4]),
	}
}

// --- Row-layout sort/distinct opcodes ---

type AllocateRowLayoutBufferArgs struct {
	Size   uint32
	Stride uint32
	Dst    Reg
}

func MakeAllocateRowLayoutBuffer(a AllocateRowLayoutBufferArgs) Bytecode {
	return Bytecode{Option: OpAllocateRowLayoutBuffer, Args: [argWords]uint32{a.Size, a.Stride, regArg(a.Dst)}}
}
func (b Bytecode) AllocateRowLayoutBufferArgs() AllocateRowLayoutBufferArgs {
	return AllocateRowLayoutBufferArgs{Size: b.Args[0], Stride: b.Args[1], Dst: asReg(b.Args[2])}
}

type InitRankMapArgs struct{ Dst Reg }

func MakeInitRankMap(a InitRankMapArgs) Bytecode {
	return Bytecode{Option: OpInitRankMap, Args: [argWords]uint32{regArg(a.Dst)}}
}
func (b Bytecode) InitRankMapArgs() InitRankMapArgs { return InitRankMapArgs{Dst: asReg(b.Args[0])} }

type CollectIdIntoRankMapArgs struct {
	Storage, Span, Map Reg
}

func MakeCollectIdIntoRankMap(a CollectIdIntoRankMapArgs) Bytecode {
	return Bytecode{Option: OpCollectIdIntoRankMap, Args: [argWords]uint32{regArg(a.Storage), regArg(a.Span), regArg(a.Map)}}
}
func (b Bytecode) CollectIdIntoRankMapArgs() CollectIdIntoRankMapArgs {
	return CollectIdIntoRankMapArgs{Storage: asReg(b.Args[0]), Span: asReg(b.Args[1]), Map: asReg(b.Args[2])}
}

type FinalizeRanksInMapArgs struct{ Map Reg }

func MakeFinalizeRanksInMap(a FinalizeRanksInMapArgs) Bytecode {
	return Bytecode{Option: OpFinalizeRanksInMap, Args: [argWords]uint32{regArg(a.Map)}}
}
func (b Bytecode) FinalizeRanksInMapArgs() FinalizeRanksInMapArgs {
	return FinalizeRanksInMapArgs{Map: asReg(b.Args[0])}
}

// CopyToRowLayoutArgs writes one key column's encoded bytes per row. Invert
// flips the content bytes (descending sort); NullsLast flips only the null
// flag byte, independent of Invert, so ASC/DESC and NULLS FIRST/LAST combine
// freely instead of nulls always tracking the content direction.
type CopyToRowLayoutArgs struct {
	Type                  dftype.StorageType
	Nullability           dftype.Nullability
	Storage, Bv, Popcount Reg
	RankMap               Reg
	UseRankMap            bool
	Src                   Reg
	Buffer                Reg
	Offset, Stride        uint32
	Invert                bool
	NullsLast             bool
}

// Offset/Stride are packed into 12 bits each (a row layout's total stride is
// bounded by the number of sort/distinct keys times 9 content+flag bytes,
// nowhere near 4096), leaving room for three flag bits in the same word.
func MakeCopyToRowLayout(a CopyToRowLayoutArgs) Bytecode {
	invert := uint32(0)
	if a.Invert {
		invert = 1
	}
	useRankMap := uint32(0)
	if a.UseRankMap {
		useRankMap = 1
	}
	nullsLast := uint32(0)
	if a.NullsLast {
		nullsLast = 1
	}
	return Bytecode{Option: OpCopyToRowLayout, Args: [argWords]uint32{
		uint32(a.Type), uint32(a.Nullability), regArg(a.Storage), regArg(a.Bv), regArg(a.Popcount),
		regArg(a.RankMap), regArg(a.Src), regArg(a.Buffer),
		(a.Offset & 0xFFF) | ((a.Stride & 0xFFF) << 12) | (useRankMap << 24) | (invert << 25) | (nullsLast << 26),
	}}
}
func (b Bytecode) CopyToRowLayoutArgs() CopyToRowLayoutArgs {
	packed := b.Args[8]
	return CopyToRowLayoutArgs{
		Type: dftype.StorageType(b.Args[0]), Nullability: dftype.Nullability(b.Args[1]),
		Storage: asReg(b.Args[2]), Bv: asReg(b.Args[3]), Popcount: asReg(b.Args[4]),
		RankMap: asReg(b.Args[5]), UseRankMap: packed&(1<<24) != 0, Src: asReg(b.Args[6]), Buffer: asReg(b.Args[7]),
		Offset: packed & 0xFFF, Stride: (packed >> 12) & 0xFFF,
		Invert: packed&(1<<25) != 0, NullsLast: packed&(1<<26) != 0,
	}
}

type SortRowLayoutArgs struct {
	Buffer Reg
	Stride uint32
	Span   Reg
}

func MakeSortRowLayout(a SortRowLayoutArgs) Bytecode {
	return Bytecode{Option: OpSortRowLayout, Args: [argWords]uint32{regArg(a.Buffer), a.Stride, regArg(a.Span)}}
}
func (b Bytecode) SortRowLayoutArgs() SortRowLayoutArgs {
	return SortRowLayoutArgs{Buffer: asReg(b.Args[0]), Stride: b.Args[1], Span: asReg(b.Args[2])}
}

type DistinctArgs struct {
	Buffer Reg
	Stride uint32
	Span   Reg
}

func MakeDistinct(a DistinctArgs) Bytecode {
	return Bytecode{Option: OpDistinct, Args: [argWords]uint32{regArg(a.Buffer), a.Stride, regArg(a.Span)}}
}
func (b Bytecode) DistinctArgs() DistinctArgs {
	return DistinctArgs{Buffer: asReg(b.Args[0]), Stride: b.Args[1], Span: asReg(b.Args[2])}
}

// FindMinMaxIndexArgs reduces Span to the single min/max index.
type MinMax uint32

const (
	FindMin MinMax = iota
	FindMax
)

type FindMinMaxIndexArgs struct {
	Type    dftype.StorageType
	Which   MinMax
	Storage Reg
	Span    Reg
}

func MakeFindMinMaxIndex(a FindMinMaxIndexArgs) Bytecode {
	return Bytecode{Option: OpFindMinMaxIndex, Args: [argWords]uint32{uint32(a.Type), uint32(a.Which), regArg(a.Storage), regArg(a.Span)}}
}
func (b Bytecode) FindMinMaxIndexArgs() FindMinMaxIndexArgs {
	return FindMinMaxIndexArgs{Type: dftype.StorageType(b.Args[0]), Which: MinMax(b.Args[1]), Storage: asReg(b.Args[2]), Span: asReg(b.Args[3])}
}

// --- Tree opcodes, listed for completeness ---

type MakeChildToParentTreeStructureArgs struct {
	ParentIds Reg
	Dst       Reg
}

func MakeMakeChildToParentTreeStructure(a MakeChildToParentTreeStructureArgs) Bytecode {
	return Bytecode{Option: OpMakeChildToParentTreeStructure, Args: [argWords]uint32{regArg(a.ParentIds), regArg(a.Dst)}}
}
func (b Bytecode) MakeChildToParentTreeStructureArgs() MakeChildToParentTreeStructureArgs {
	return MakeChildToParentTreeStructureArgs{ParentIds: asReg(b.Args[0]), Dst: asReg(b.Args[1])}
}

// MakeParentToChildTreeStructureArgs builds the CSR (Offsets/Children/Roots)
// view of the tree into Dst, a TreeStructure-kind register. Dst is typically
// the same register MakeChildToParentTreeStructure already populated, so the
// two on-demand artifacts accumulate onto one TreeStructure value instead of
// requiring FilterTree to stitch together separate registers.
type MakeParentToChildTreeStructureArgs struct {
	ParentIds Reg
	Dst       Reg
}

func MakeMakeParentToChildTreeStructure(a MakeParentToChildTreeStructureArgs) Bytecode {
	return Bytecode{Option: OpMakeParentToChildTreeStructure, Args: [argWords]uint32{regArg(a.ParentIds), regArg(a.Dst)}}
}
func (b Bytecode) MakeParentToChildTreeStructureArgs() MakeParentToChildTreeStructureArgs {
	return MakeParentToChildTreeStructureArgs{ParentIds: asReg(b.Args[0]), Dst: asReg(b.Args[1])}
}

type IndexSpanToBitvectorArgs struct {
	Span Reg
	Size uint32
	Dst  Reg
}

func MakeIndexSpanToBitvector(a IndexSpanToBitvectorArgs) Bytecode {
	return Bytecode{Option: OpIndexSpanToBitvector, Args: [argWords]uint32{regArg(a.Span), a.Size, regArg(a.Dst)}}
}
func (b Bytecode) IndexSpanToBitvectorArgs() IndexSpanToBitvectorArgs {
	return IndexSpanToBitvectorArgs{Span: asReg(b.Args[0]), Size: b.Args[1], Dst: asReg(b.Args[2])}
}

type FilterTreeArgs struct {
	ParentToChild Reg
	Keep          Reg
	Dst           Reg
}

func MakeFilterTree(a FilterTreeArgs) Bytecode {
	return Bytecode{Option: OpFilterTree, Args: [argWords]uint32{regArg(a.ParentToChild), regArg(a.Keep), regArg(a.Dst)}}
}
func (b Bytecode) FilterTreeArgs() FilterTreeArgs {
	return FilterTreeArgs{ParentToChild: asReg(b.Args[0]), Keep: asReg(b.Args[1]), Dst: asReg(b.Args[2])}
}
