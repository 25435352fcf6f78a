package planner

import (
	"sort"

	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/logging"
	"github.com/google/perfetto-dataframe/internal/queryplan"
)

const (
	filterScratchSlot = uint32(0)
	sortScratchSlot   = uint32(1)
	outputScratchSlot = uint32(2)
)

// build carries the mutable state threaded through one PlanQuery call: the
// bytecode builder, the running candidate-set register, and the row-count/
// cost estimate.
type build struct {
	df   *column.Dataframe
	b    *bytecode.Builder
	opts Options

	candidate bytecode.Reg
	isRange   bool

	est *estimate

	popcountRegs map[int]bytecode.Reg
}

// PlanQuery compiles filters/distinct/sorts/limit against df into a
// serializable QueryPlan, following the ten-step algorithm: preference-
// ordered filters narrow a Range where possible (Phase 1), an index match
// narrows further when available (Phase 2), remaining filters compact a
// materialized span (Phase 3), then distinct, sort, limit/offset and output
// shaping run in that fixed order. colsUsed is a bitmask of column indices
// the caller will read from GetCell (bit 63 stands for "every column >= 63",
// matching the external ABI note on projections wider than 63 columns).
func PlanQuery(df *column.Dataframe, filters []FilterSpec, distinct DistinctSpec, sorts []SortSpec, limit *LimitSpec, colsUsed uint64, opts Options) (*queryplan.QueryPlan, error) {
	bld := &build{
		df:           df,
		b:            bytecode.NewBuilder(),
		opts:         opts,
		est:          newEstimate(int64(df.RowCount)),
		popcountRegs: make(map[int]bytecode.Reg),
	}

	if err := validateFilters(df, filters); err != nil {
		return nil, err
	}

	bld.candidate = bld.b.AllocReg()
	bld.emit(bytecode.MakeInitRange(bytecode.InitRangeArgs{Size: uint32(df.RowCount), Dst: bld.candidate}))
	bld.isRange = true

	handled := make([]bool, len(filters))
	order := preferenceOrder(df, filters)

	bld.runPhase1SortedConstraints(filters, order, handled)
	bld.runPhase2IndexMatch(filters, order, handled)
	bld.runPhase3RemainingConstraints(filters, order, handled)

	if len(distinct.Columns) > 0 {
		bld.runDistinct(distinct)
	}

	minMaxApplied := false
	if limit != nil && limit.HasLimit && limit.Limit == 1 && limit.Offset == 0 && len(sorts) == 1 {
		minMaxApplied = bld.tryMinMaxFastPath(sorts[0])
	}
	if !minMaxApplied && len(sorts) > 0 {
		bld.runSort(sorts)
	}
	if !minMaxApplied && limit != nil {
		bld.runLimitOffset(*limit)
	}

	outputPerRow, colToOutputOffset, outputReg := bld.runOutputShaping(colsUsed)

	plan := &queryplan.QueryPlan{
		Params: queryplan.ExecutionParams{
			RegisterCount:     bld.b.RegisterCount(),
			FilterValueCount:  countFilterValueSlots(filters),
			OutputPerRow:      outputPerRow,
			OutputRegister:    outputReg,
			MaxRowCount:       bld.est.maxRow,
			EstimatedRowCount: uint32(bld.est.rowCount),
			EstimatedCost:     uint32(bld.est.cost),
		},
		Bytecode:          bld.b.Code,
		ColToOutputOffset: colToOutputOffset,
		RegisterInits:     bld.b.RegisterInits,
	}
	logging.PlanBuilt(len(filters), len(sorts), len(plan.Bytecode), bld.est.rowCount)
	return plan, nil
}

func countFilterValueSlots(filters []FilterSpec) uint32 {
	var max uint32
	for _, f := range filters {
		if uint32(f.ValueSlot)+1 > max {
			max = uint32(f.ValueSlot) + 1
		}
	}
	return max
}

func validateFilters(df *column.Dataframe, filters []FilterSpec) error {
	for _, f := range filters {
		if f.Column < 0 || f.Column >= len(df.Columns) {
			return &dferrors.UnsupportedOpError{Op: f.Op.String(), Reason: "filter column index is out of range"}
		}
		col := df.Columns[f.Column]
		if f.IsList && col.Storage.Type == dftype.String && f.Op != dftype.Eq {
			return &dferrors.TypeMismatchError{Column: col.Name, Op: f.Op.String(), Reason: "value lists are only supported with Eq on string columns"}
		}
	}
	return nil
}

func (bld *build) emit(bc bytecode.Bytecode) {
	bld.b.Emit(bc)
	bld.est.accrue(bc.Option)
}

// preferenceScore implements the planner's eight-tier ordering: lower
// scores are preferred (applied first, while the candidate set is still a
// cheap Range).
func preferenceScore(df *column.Dataframe, f FilterSpec) int {
	col := df.Columns[f.Column]
	nonNull := col.Null.Kind == dftype.NonNull
	numeric := col.Storage.Type != dftype.String && col.Storage.Type != dftype.Id

	switch {
	case col.Storage.Type == dftype.Id && f.Op == dftype.Eq:
		return 1
	case col.Storage.Type == dftype.Uint32 && col.Sort == dftype.SetIdSorted && f.Op == dftype.Eq:
		return 2
	case col.Storage.Type == dftype.Id && f.Op.IsInequality():
		return 3
	case nonNull && col.Sort == dftype.Sorted && numeric && f.Op == dftype.Eq:
		return 4
	case nonNull && col.Sort == dftype.Sorted && numeric && f.Op.IsInequality():
		return 5
	case nonNull && col.Sort == dftype.Sorted && col.Storage.Type == dftype.String && f.Op == dftype.Eq:
		return 6
	case nonNull && col.Sort == dftype.Sorted && col.Storage.Type == dftype.String && f.Op.IsInequality():
		return 7
	default:
		return 8
	}
}

func preferenceOrder(df *column.Dataframe, filters []FilterSpec) []int {
	order := make([]int, len(filters))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return preferenceScore(df, filters[order[i]]) < preferenceScore(df, filters[order[j]])
	})
	return order
}

// --- register resolution helpers ---

func storageInitKind(t dftype.StorageType) bytecode.RegisterInitKind {
	switch t {
	case dftype.Uint32:
		return bytecode.InitUint32
	case dftype.Int32:
		return bytecode.InitInt32
	case dftype.Int64:
		return bytecode.InitInt64
	case dftype.Double:
		return bytecode.InitDouble
	case dftype.String:
		return bytecode.InitString
	default:
		dferrors.Fatalf("planner: storageInitKind called for Id column")
		return 0
	}
}

func (bld *build) storageReg(col int) bytecode.Reg {
	r, _ := bld.b.ResolveRegister(storageInitKind(bld.df.Columns[col].Storage.Type), uint16(col))
	return r
}

func (bld *build) nullBvReg(col int) bytecode.Reg {
	r, _ := bld.b.ResolveRegister(bytecode.InitNullBitvector, uint16(col))
	return r
}

func (bld *build) smallValueEqBvReg(col int) bytecode.Reg {
	r, _ := bld.b.ResolveRegister(bytecode.InitSmallValueEqBitvector, uint16(col))
	return r
}

func (bld *build) smallValueEqPopcountReg(col int) bytecode.Reg {
	r, _ := bld.b.ResolveRegister(bytecode.InitSmallValueEqPopcount, uint16(col))
	return r
}

func (bld *build) indexVectorReg(idxNum int) bytecode.Reg {
	r, _ := bld.b.ResolveRegister(bytecode.InitIndexVector, uint16(idxNum))
	return r
}

// popcountReg lazily materializes a column's prefix-popcount register via
// PrefixPopcount, caching it for the rest of this plan build. Unlike the
// storage/bitvector registers, a popcount register isn't resolved from a
// RegisterInit descriptor — it's computed at plan-execution time from the
// column's null bitvector.
func (bld *build) popcountReg(col int) bytecode.Reg {
	if r, ok := bld.popcountRegs[col]; ok {
		return r
	}
	kind := bld.df.Columns[col].Null.Kind
	if !kind.HasPopcount() {
		dferrors.Fatalf("planner: column %q needs random access but carries no popcount table", bld.df.Columns[col].Name)
	}
	bv := bld.nullBvReg(col)
	dst := bld.b.AllocReg()
	bld.emit(bytecode.MakePrefixPopcount(bytecode.PrefixPopcountArgs{Bv: bv, Dst: dst}))
	bld.popcountRegs[col] = dst
	return dst
}

func (bld *build) castValue(f FilterSpec) bytecode.Reg {
	dst := bld.b.AllocReg()
	t := bld.df.Columns[f.Column].Storage.Type
	bld.emit(bytecode.MakeCastFilterValue(bytecode.CastFilterValueArgs{
		Slot: f.ValueSlot, Type: t, Op: f.Op, Dst: dst, IsList: f.IsList,
	}))
	return dst
}

// materialize converts the candidate Range into an explicit Span over
// 0..RowCount via Iota, a prerequisite for opcodes (NullFilter, In, Distinct,
// row-layout copy) that require a Span-kind source.
func (bld *build) materialize() {
	if !bld.isRange {
		return
	}
	_, spanReg := bld.b.AllocateScratch(filterScratchSlot, uint32(bld.df.RowCount))
	bld.emit(bytecode.MakeIota(bytecode.IotaArgs{Source: bld.candidate, Span: spanReg}))
	bld.candidate = spanReg
	bld.isRange = false
}

// --- Phase 1: sorted-constraint narrowing over the Range register ---

func (bld *build) runPhase1SortedConstraints(filters []FilterSpec, order []int, handled []bool) {
	for _, i := range order {
		if !bld.isRange {
			return
		}
		f := filters[i]
		col := bld.df.Columns[f.Column]
		if col.Null.Kind != dftype.NonNull {
			continue
		}
		if !(col.Sort == dftype.Sorted || col.Sort == dftype.SetIdSorted || col.Sort == dftype.IdSorted) {
			continue
		}
		if f.Op == dftype.Ne || f.Op == dftype.IsNull || f.Op == dftype.IsNotNull || f.Op == dftype.In || f.Op == dftype.Glob || f.Op == dftype.Regex {
			continue
		}

		value := bld.castValue(f)
		switch {
		case col.Storage.Type == dftype.Uint32 && col.Sort == dftype.SetIdSorted && f.Op == dftype.Eq:
			bld.emit(bytecode.MakeUint32SetIdSortedEq(bytecode.Uint32SetIdSortedEqArgs{
				Storage: bld.storageReg(f.Column), Value: value, Range: bld.candidate,
			}))
		case col.Specialized.HasSmallValueEq && f.Op == dftype.Eq:
			bld.emit(bytecode.MakeSpecializedStorageSmallValueEq(bytecode.SpecializedStorageSmallValueEqArgs{
				Bv: bld.smallValueEqBvReg(f.Column), Popcount: bld.smallValueEqPopcountReg(f.Column),
				Value: value, Range: bld.candidate,
			}))
		default:
			rangeOp, narrowEnd := sortedRangeOp(f.Op)
			var storage bytecode.Reg
			if col.Storage.Type != dftype.Id {
				storage = bld.storageReg(f.Column)
			}
			bld.emit(bytecode.MakeSortedFilter(bytecode.SortedFilterArgs{
				Type: col.Storage.Type, RangeOp: rangeOp, Storage: storage, Value: value,
				Range: bld.candidate, NarrowEnd: narrowEnd,
			}))
		}
		handled[i] = true
		bld.applyFilterEstimate(col, f.Op)
	}
}

func sortedRangeOp(op dftype.Op) (bytecode.SortedRangeOp, bool) {
	switch op {
	case dftype.Eq:
		return bytecode.EqualRange, false
	case dftype.Lt:
		return bytecode.LowerBound, true
	case dftype.Le:
		return bytecode.UpperBound, true
	case dftype.Gt:
		return bytecode.UpperBound, false
	case dftype.Ge:
		return bytecode.LowerBound, false
	default:
		dferrors.Fatalf("planner: sortedRangeOp called with op %v", op)
		return 0, false
	}
}

func (bld *build) applyFilterEstimate(col *column.Column, op dftype.Op) {
	switch {
	case op == dftype.Eq:
		bld.est.applyEquality(col.Duplicate == dftype.NoDuplicates)
	case op.IsInequality():
		bld.est.applyInequality()
	}
}

// --- Phase 2: index match ---

func (bld *build) runPhase2IndexMatch(filters []FilterSpec, order []int, handled []bool) {
	if len(bld.df.Indexes) == 0 {
		return
	}
	var eqCols []int
	var eqFilterIdx []int
	for _, i := range order {
		if handled[i] || filters[i].Op != dftype.Eq {
			continue
		}
		eqCols = append(eqCols, filters[i].Column)
		eqFilterIdx = append(eqFilterIdx, i)
	}
	if len(eqCols) == 0 {
		return
	}

	bestIdx, bestCover := -1, 0
	for ii, idx := range bld.df.Indexes {
		if cover := idx.CoversPrefix(eqCols); cover > bestCover {
			bestCover, bestIdx = cover, ii
		}
	}
	if bestIdx < 0 {
		return
	}
	idx := bld.df.Indexes[bestIdx]

	preRange := bld.candidate
	wasRange := bld.isRange

	n := uint32(idx.Len())
	slabReg, spanReg := bld.b.AllocateScratch(filterScratchSlot, n)
	indexSrc := bld.indexVectorReg(bestIdx)
	bld.emit(bytecode.MakeStrideCopy(bytecode.StrideCopyArgs{Src: indexSrc, Dst: spanReg, Stride: 1}))
	_ = slabReg
	bld.candidate = spanReg
	bld.isRange = false

	for k := 0; k < bestCover; k++ {
		fi := eqFilterIdx[k]
		f := filters[fi]
		col := bld.df.Columns[f.Column]
		value := bld.castValue(f)

		var bv, popcount bytecode.Reg
		if col.Null.Kind != dftype.NonNull {
			if col.Null.Kind == dftype.SparseNull {
				dferrors.Fatalf("planner: index-match filter on column %q needs random access but it carries no popcount table", col.Name)
			}
			bv = bld.nullBvReg(f.Column)
			if col.Null.Kind.HasPopcount() {
				popcount = bld.popcountReg(f.Column)
			}
		}
		var storage bytecode.Reg
		if col.Storage.Type != dftype.Id {
			storage = bld.storageReg(f.Column)
		}
		bld.emit(bytecode.MakeIndexedFilterEq(bytecode.IndexedFilterEqArgs{
			Type: col.Storage.Type, Nullability: col.Null.Kind,
			Storage: storage, Bv: bv, Value: value, Popcount: popcount,
			Src: bld.candidate, Dst: bld.candidate,
		}))
		handled[fi] = true
		bld.est.applyEquality(col.Duplicate == dftype.NoDuplicates)
	}

	if wasRange {
		bld.emit(bytecode.MakeCopySpanIntersectingRange(bytecode.CopySpanIntersectingRangeArgs{
			Src: bld.candidate, Range: preRange, Dst: bld.candidate,
		}))
	}
}

// --- Phase 3: remaining constraints ---

func (bld *build) runPhase3RemainingConstraints(filters []FilterSpec, order []int, handled []bool) {
	for _, i := range order {
		if handled[i] {
			continue
		}
		f := filters[i]
		col := bld.df.Columns[f.Column]

		switch f.Op {
		case dftype.IsNull, dftype.IsNotNull:
			bld.materialize()
			bld.emit(bytecode.MakeNullFilter(f.Op == dftype.IsNotNull, bytecode.NullFilterArgs{
				Bv: bld.nullBvReg(f.Column), Span: bld.candidate,
			}))
		case dftype.In:
			value := bld.castValue(f)
			bld.materialize()
			storage := bld.storageReg(f.Column)
			bld.emit(bytecode.MakeInFilter(bytecode.InFilterArgs{
				Type: col.Storage.Type, Storage: storage, Value: value, Src: bld.candidate, Dst: bld.candidate,
			}))
		case dftype.Glob, dftype.Regex:
			value := bld.castValue(f)
			bld.materialize()
			bld.emit(bytecode.MakeStringFilter(bytecode.StringFilterArgs{
				Op: f.Op, Storage: bld.storageReg(f.Column), Value: value, Src: bld.candidate, Dst: bld.candidate,
			}))
		default: // Eq, Ne, Lt, Le, Gt, Ge
			bld.runPhase3Comparison(f, col)
		}
		handled[i] = true
		bld.applyFilterEstimate(col, f.Op)
	}
}

func (bld *build) runPhase3Comparison(f FilterSpec, col *column.Column) {
	if col.Storage.Type == dftype.String {
		value := bld.castValue(f)
		bld.materialize()
		bld.emit(bytecode.MakeStringFilter(bytecode.StringFilterArgs{
			Op: f.Op, Storage: bld.storageReg(f.Column), Value: value, Src: bld.candidate, Dst: bld.candidate,
		}))
		return
	}

	if bld.isRange && f.Op == dftype.Eq && col.Null.Kind == dftype.NonNull && col.Storage.Type != dftype.Id {
		value := bld.castValue(f)
		_, spanReg := bld.b.AllocateScratch(filterScratchSlot, uint32(bld.df.RowCount))
		bld.emit(bytecode.MakeLinearFilterEq(bytecode.LinearFilterEqArgs{
			Type: col.Storage.Type, Storage: bld.storageReg(f.Column), Value: value, Src: bld.candidate, Dst: spanReg,
		}))
		bld.candidate = spanReg
		bld.isRange = false
		return
	}

	value := bld.castValue(f)
	bld.materialize()
	if col.Null.Kind == dftype.NonNull {
		bld.emit(bytecode.MakeNonStringFilter(bytecode.NonStringFilterArgs{
			Type: col.Storage.Type, Op: f.Op, Storage: bld.storageReg(f.Column), Value: value,
			Src: bld.candidate, Dst: bld.candidate,
		}))
		return
	}
	// Nullable, non-string comparison with no covering index: drop null rows,
	// then route through IndexedFilterEq, which is nullability-aware. This
	// assumes the candidate span's row order is monotonic in the column's
	// value order (true when col.Sort == Sorted; see DESIGN.md for the
	// documented limitation on unsorted nullable columns).
	if col.Null.Kind == dftype.SparseNull {
		dferrors.Fatalf("planner: filter on column %q needs random access but it carries no popcount table", col.Name)
	}
	bld.emit(bytecode.MakeNullFilter(true, bytecode.NullFilterArgs{Bv: bld.nullBvReg(f.Column), Span: bld.candidate}))
	var popcount bytecode.Reg
	if col.Null.Kind.HasPopcount() {
		popcount = bld.popcountReg(f.Column)
	}
	bld.emit(bytecode.MakeIndexedFilterEq(bytecode.IndexedFilterEqArgs{
		Type: col.Storage.Type, Nullability: col.Null.Kind,
		Storage: bld.storageReg(f.Column), Bv: bld.nullBvReg(f.Column), Value: value, Popcount: popcount,
		Src: bld.candidate, Dst: bld.candidate,
	}))
}

// --- Distinct ---

func (bld *build) runDistinct(d DistinctSpec) {
	bld.materialize()
	stride := uint32(len(d.Columns)) * 5
	buf := bld.b.AllocReg()
	bld.emit(bytecode.MakeAllocateRowLayoutBuffer(bytecode.AllocateRowLayoutBufferArgs{
		Size: uint32(bld.df.RowCount), Stride: stride, Dst: buf,
	}))
	var offset uint32
	for _, col := range d.Columns {
		bld.emitCopyToRowLayout(col, buf, offset, stride, false)
		offset += 5
	}
	bld.emit(bytecode.MakeDistinct(bytecode.DistinctArgs{Buffer: buf, Stride: stride, Span: bld.candidate}))
}

func (bld *build) emitCopyToRowLayout(col int, buf bytecode.Reg, offset, stride uint32, invert bool) {
	c := bld.df.Columns[col]
	var storage bytecode.Reg
	if c.Storage.Type != dftype.Id {
		storage = bld.storageReg(col)
	}
	var bv, popcount bytecode.Reg
	if c.Null.Kind != dftype.NonNull {
		bv = bld.nullBvReg(col)
		if c.Null.Kind.HasPopcount() {
			popcount = bld.popcountReg(col)
		}
	}
	bld.emit(bytecode.MakeCopyToRowLayout(bytecode.CopyToRowLayoutArgs{
		Type: c.Storage.Type, Nullability: c.Null.Kind, Storage: storage, Bv: bv, Popcount: popcount,
		Src: bld.candidate, Buffer: buf, Offset: offset, Stride: stride, Invert: invert,
	}))
}

// --- Sort ---

func (bld *build) tryMinMaxFastPath(s SortSpec) bool {
	col := bld.df.Columns[s.Column]
	if col.Null.Kind != dftype.NonNull {
		return false
	}
	which := bytecode.FindMin
	if s.Direction == dftype.Descending {
		which = bytecode.FindMax
	}
	var storage bytecode.Reg
	if col.Storage.Type != dftype.Id {
		storage = bld.storageReg(s.Column)
	}
	bld.emit(bytecode.MakeFindMinMaxIndex(bytecode.FindMinMaxIndexArgs{
		Type: col.Storage.Type, Which: which, Storage: storage, Span: bld.candidate,
	}))
	bld.isRange = true
	bld.est.rowCount = 1
	bld.est.maxRow = 1
	return true
}

func (bld *build) runSort(sorts []SortSpec) {
	if len(sorts) == 1 {
		col := bld.df.Columns[sorts[0].Column]
		if col.Null.Kind == dftype.NonNull && col.Sort == dftype.Sorted {
			if sorts[0].Direction == dftype.Descending {
				bld.materialize()
				bld.emit(bytecode.MakeReverse(bytecode.ReverseArgs{Span: bld.candidate}))
			}
			return
		}
	}

	bld.materialize()

	var stringCols []int
	for _, s := range sorts {
		if bld.df.Columns[s.Column].Storage.Type == dftype.String {
			stringCols = append(stringCols, s.Column)
		}
	}
	var rankMap bytecode.Reg
	useRankMap := len(stringCols) > 0
	if useRankMap {
		rankMap = bld.b.AllocReg()
		bld.emit(bytecode.MakeInitRankMap(bytecode.InitRankMapArgs{Dst: rankMap}))
		_, collectSpan := bld.b.AllocateScratch(sortScratchSlot, uint32(bld.df.RowCount))
		for _, col := range stringCols {
			bld.emit(bytecode.MakeStrideCopy(bytecode.StrideCopyArgs{Src: bld.candidate, Dst: collectSpan, Stride: 1}))
			if bld.df.Columns[col].Null.Kind != dftype.NonNull {
				bld.emit(bytecode.MakeNullFilter(true, bytecode.NullFilterArgs{Bv: bld.nullBvReg(col), Span: collectSpan}))
			}
			bld.emit(bytecode.MakeCollectIdIntoRankMap(bytecode.CollectIdIntoRankMapArgs{
				Storage: bld.storageReg(col), Span: collectSpan, Map: rankMap,
			}))
		}
		bld.emit(bytecode.MakeFinalizeRanksInMap(bytecode.FinalizeRanksInMapArgs{Map: rankMap}))
		bld.b.ReleaseScratch(sortScratchSlot)
	}

	stride := uint32(0)
	for _, s := range sorts {
		stride += uint32(interp.ContentWidth(bld.df.Columns[s.Column].Storage.Type)) + 1
	}
	buf := bld.b.AllocReg()
	bld.emit(bytecode.MakeAllocateRowLayoutBuffer(bytecode.AllocateRowLayoutBufferArgs{
		Size: uint32(bld.df.RowCount), Stride: stride, Dst: buf,
	}))

	var offset uint32
	for _, s := range sorts {
		c := bld.df.Columns[s.Column]
		var storage bytecode.Reg
		if c.Storage.Type != dftype.Id {
			storage = bld.storageReg(s.Column)
		}
		var bv, popcount, rm bytecode.Reg
		useRM := false
		if c.Storage.Type == dftype.String {
			rm, useRM = rankMap, true
		}
		if c.Null.Kind != dftype.NonNull {
			bv = bld.nullBvReg(s.Column)
			if c.Null.Kind.HasPopcount() {
				popcount = bld.popcountReg(s.Column)
			}
		}
		width := uint32(interp.ContentWidth(c.Storage.Type)) + 1
		bld.emit(bytecode.MakeCopyToRowLayout(bytecode.CopyToRowLayoutArgs{
			Type: c.Storage.Type, Nullability: c.Null.Kind, Storage: storage, Bv: bv, Popcount: popcount,
			RankMap: rm, UseRankMap: useRM, Src: bld.candidate, Buffer: buf,
			Offset: offset, Stride: stride, Invert: s.Direction == dftype.Descending,
			NullsLast: s.Nulls == dftype.NullsAtEnd,
		}))
		offset += width
	}
	bld.emit(bytecode.MakeSortRowLayout(bytecode.SortRowLayoutArgs{Buffer: buf, Stride: stride, Span: bld.candidate}))
}

// --- Limit/offset ---

func (bld *build) runLimitOffset(l LimitSpec) {
	limit := l.Limit
	if !l.HasLimit {
		limit = ^uint32(0)
	}
	bld.emit(bytecode.MakeLimitOffsetIndices(bytecode.LimitOffsetIndicesArgs{
		Span: bld.candidate, Offset: l.Offset, Limit: limit,
	}))
	bld.est.applyLimitOffset(l.Offset, l.Limit, l.HasLimit)
}

// --- Output shaping ---

func columnUsed(mask uint64, col int) bool {
	if col >= 63 {
		return mask&(1<<63) != 0
	}
	return mask&(uint64(1)<<uint(col)) != 0
}

func (bld *build) runOutputShaping(colsUsed uint64) (outputPerRow uint32, colToOutputOffset []uint32, outputReg bytecode.Reg) {
	colToOutputOffset = make([]uint32, len(bld.df.Columns))

	var nullableNeeded []int
	for c := range bld.df.Columns {
		if !columnUsed(colsUsed, c) {
			continue
		}
		if bld.df.Columns[c].Null.Kind != dftype.NonNull {
			nullableNeeded = append(nullableNeeded, c)
		}
	}

	if len(nullableNeeded) == 0 {
		outputPerRow = 1
		slab, span := bld.b.AllocateScratch(outputScratchSlot, uint32(bld.df.RowCount))
		_ = slab
		bld.emit(bytecode.MakeStrideCopy(bytecode.StrideCopyArgs{Src: bld.candidate, Dst: span, Stride: 1}))
		return outputPerRow, colToOutputOffset, span
	}

	outputPerRow = uint32(1 + len(nullableNeeded))
	outSlab, outSpan := bld.b.AllocateScratch(outputScratchSlot, uint32(bld.df.RowCount)*outputPerRow)
	_ = outSpan
	bld.emit(bytecode.MakeStrideCopy(bytecode.StrideCopyArgs{Src: bld.candidate, Dst: outSpan, Stride: outputPerRow}))

	offset := uint32(1)
	for _, c := range nullableNeeded {
		col := bld.df.Columns[c]
		colToOutputOffset[c] = offset
		bv := bld.nullBvReg(c)
		if col.Null.Kind.IsSparse() {
			if !col.Null.Kind.HasPopcount() {
				dferrors.Fatalf("planner: output column %q needs random access but carries no popcount table", col.Name)
			}
			bld.emit(bytecode.MakeStrideTranslateAndCopySparseNullIndices(bytecode.StrideTranslateArgs{
				Bv: bv, Popcount: bld.popcountReg(c), Span: bld.candidate, Base: outSlab, Offset: offset, Stride: outputPerRow,
			}))
		} else {
			bld.emit(bytecode.MakeStrideCopyDenseNullIndices(bytecode.StrideCopyDenseArgs{
				Bv: bv, Span: bld.candidate, Base: outSlab, Offset: offset, Stride: outputPerRow,
			}))
		}
		offset++
	}
	return outputPerRow, colToOutputOffset, outSpan
}
