package interp

import (
	"math"
	"regexp"
	"sort"
	"strings"

	"golang.org/x/exp/constraints"

	"github.com/google/perfetto-dataframe/internal/bitvec"
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/logging"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// readSpanLike reads a "candidate row set" register that may be a bare
// Range (virtual identity indices, no backing array) or a materialized
// Span, without requiring the caller to know which. Used for read-only
// access; in-place compaction still requires a materialized Span, since a
// Range has nothing to write a subset into.
func readSpanLike(r *bytecode.RegValue) bitvec.Span {
	if r.Kind == bytecode.RegRange {
		return r.Range()
	}
	return r.Span()
}

// writeSpanLike narrows r's Begin/End in place, preserving whichever kind
// (Range or Span) it already held. Safe even on a Range, since narrowing
// bounds alone never needs a backing array.
func writeSpanLike(r *bytecode.RegValue, s bitvec.Span) {
	if r.Kind == bytecode.RegRange {
		r.SetRange(s)
		return
	}
	r.SetSpan(s)
}

// Execute runs program against regs, consulting fetcher for every
// CastFilterValue[List] opcode and pool for string comparisons. regs must
// already be sized to the plan's register count and initialized per its
// RegisterInit descriptors (see internal/queryplan.Cursor).
func Execute(program []bytecode.Bytecode, regs []bytecode.RegValue, fetcher ValueFetcher, pool *strpool.Pool) {
	for _, bc := range program {
		execOne(bc, regs, fetcher, pool)
	}
}

func execOne(bc bytecode.Bytecode, regs []bytecode.RegValue, fetcher ValueFetcher, pool *strpool.Pool) {
	switch bc.Option {
	case bytecode.OpInitRange:
		a := bc.InitRangeArgs()
		regs[a.Dst] = bytecode.NewRangeReg(bitvec.Span{Begin: 0, End: a.Size})

	case bytecode.OpAllocateIndices:
		a := bc.AllocateIndicesArgs()
		slab := regs[a.DstSlab]
		var s *bitvec.Slab[uint32]
		if slab.Kind == bytecode.RegSlabU32 {
			existing := slab.SlabU32()
			if existing.Len() >= int(a.Size) {
				s = existing
			}
		}
		if s == nil {
			s = bitvec.NewSlab[uint32](int(a.Size))
		}
		regs[a.DstSlab] = bytecode.NewSlabU32Reg(s)
		regs[a.DstSpan] = bytecode.NewSpanReg(bitvec.Span{Data: s, Begin: 0, End: a.Size})

	case bytecode.OpIota:
		a := bc.IotaArgs()
		src := regs[a.Source].Range()
		dst := regs[a.Span].Span()
		n := src.Len()
		for i := 0; i < n; i++ {
			dst.SetAt(dst.Begin+uint32(i), src.Begin+uint32(i))
		}
		dst.End = dst.Begin + uint32(n)
		regs[a.Span].SetSpan(dst)

	case bytecode.OpReverse:
		a := bc.ReverseArgs()
		s := regs[a.Span].Span()
		sl := s.Slice()
		for i, j := 0, len(sl)-1; i < j; i, j = i+1, j-1 {
			sl[i], sl[j] = sl[j], sl[i]
		}

	case bytecode.OpStrideCopy:
		a := bc.StrideCopyArgs()
		src := readSpanLike(&regs[a.Src])
		dst := regs[a.Dst].Span()
		vals := src.Values()
		for i, v := range vals {
			dst.SetAt(dst.Begin+uint32(i)*a.Stride, v)
		}
		dst.End = dst.Begin + uint32(len(vals))*a.Stride
		regs[a.Dst].SetSpan(dst)

	case bytecode.OpCopySpanIntersectingRange:
		a := bc.CopySpanIntersectingRangeArgs()
		src := readSpanLike(&regs[a.Src])
		rng := regs[a.Range].Range()
		dst := regs[a.Dst].Span()
		n := uint32(0)
		for _, v := range src.Values() {
			if v >= rng.Begin && v < rng.End {
				dst.SetAt(dst.Begin+n, v)
				n++
			}
		}
		dst.End = dst.Begin + n
		regs[a.Dst].SetSpan(dst)

	case bytecode.OpPrefixPopcount:
		a := bc.PrefixPopcountArgs()
		if regs[a.Dst].Kind == bytecode.RegPopcountPtr && regs[a.Dst].PopcountPtr() != nil {
			return
		}
		bv := regs[a.Bv].BitVectorPtr()
		regs[a.Dst] = bytecode.NewPopcountPtrReg(bv.PrefixPopcount())

	case bytecode.OpNullFilterIsNull, bytecode.OpNullFilterIsNotNull:
		a := bc.NullFilterArgs()
		bv := regs[a.Bv].BitVectorPtr()
		span := regs[a.Span].Span()
		wantSet := bc.Option == bytecode.OpNullFilterIsNotNull
		vals := span.Values()
		n := uint32(0)
		for _, v := range vals {
			if bv.IsSet(int(v)) == wantSet {
				span.SetAt(span.Begin+n, v)
				n++
			}
		}
		span.End = span.Begin + n
		regs[a.Span].SetSpan(span)

	case bytecode.OpTranslateSparseNullIndices:
		a := bc.TranslateSparseNullIndicesArgs()
		bv := regs[a.Bv].BitVectorPtr()
		popcount := regs[a.Popcount].PopcountPtr()
		src := regs[a.Src].Span()
		dst := regs[a.Dst].Span()
		vals := src.Values()
		for i, v := range vals {
			dst.SetAt(dst.Begin+uint32(i), bv.PopcountUntil(int(v), popcount))
		}
		dst.End = dst.Begin + uint32(len(vals))
		regs[a.Dst].SetSpan(dst)

	case bytecode.OpStrideTranslateAndCopySparseNullIndices:
		a := bc.StrideTranslateArgs()
		bv := regs[a.Bv].BitVectorPtr()
		popcount := regs[a.Popcount].PopcountPtr()
		span := regs[a.Span].Span()
		base := regs[a.Base].SlabU32()
		for p, v := range span.Values() {
			pos := uint32(p)*a.Stride + a.Offset
			if bv.IsSet(int(v)) {
				base.Set(int(pos), bv.PopcountUntil(int(v), popcount))
			} else {
				base.Set(int(pos), math.MaxUint32)
			}
		}

	case bytecode.OpStrideCopyDenseNullIndices:
		a := bc.StrideCopyDenseArgs()
		bv := regs[a.Bv].BitVectorPtr()
		span := regs[a.Span].Span()
		base := regs[a.Base].SlabU32()
		for p, v := range span.Values() {
			pos := uint32(p)*a.Stride + a.Offset
			if bv.IsSet(int(v)) {
				base.Set(int(pos), v)
			} else {
				base.Set(int(pos), math.MaxUint32)
			}
		}

	case bytecode.OpCastFilterValue, bytecode.OpCastFilterValueList:
		a := bc.CastFilterValueArgs()
		if a.IsList {
			regs[a.Dst] = bytecode.NewCastListResultReg(CastFilterValueList(fetcher, pool, int(a.Slot), a.Type))
		} else {
			regs[a.Dst] = bytecode.NewCastResultReg(CastFilterValue(fetcher, pool, int(a.Slot), a.Type, a.Op))
		}

	case bytecode.OpNonStringFilter:
		execNonStringFilter(bc.NonStringFilterArgs(), regs)

	case bytecode.OpStringFilter:
		execStringFilter(bc.StringFilterArgs(), regs, pool)

	case bytecode.OpSortedFilter:
		execSortedFilter(bc.SortedFilterArgs(), regs)

	case bytecode.OpUint32SetIdSortedEq:
		execUint32SetIdSortedEq(bc.Uint32SetIdSortedEqArgs(), regs)

	case bytecode.OpSpecializedStorageSmallValueEq:
		execSpecializedStorageSmallValueEq(bc.SpecializedStorageSmallValueEqArgs(), regs)

	case bytecode.OpLinearFilterEq:
		execLinearFilterEq(bc.LinearFilterEqArgs(), regs)

	case bytecode.OpIndexedFilterEq:
		execIndexedFilterEq(bc.IndexedFilterEqArgs(), regs)

	case bytecode.OpInFilter:
		execInFilter(bc.InFilterArgs(), regs)

	case bytecode.OpAllocateRowLayoutBuffer:
		a := bc.AllocateRowLayoutBufferArgs()
		regs[a.Dst] = bytecode.NewByteBufferReg(make([]byte, int(a.Size)*int(a.Stride)))

	case bytecode.OpInitRankMap:
		a := bc.InitRankMapArgs()
		regs[a.Dst] = bytecode.NewRankMapReg(bytecode.NewStringIdToRankMap())

	case bytecode.OpCollectIdIntoRankMap:
		a := bc.CollectIdIntoRankMapArgs()
		storage := regs[a.Storage].StoragePtr()
		span := regs[a.Span].Span()
		m := regs[a.Map].RankMap()
		for _, v := range span.Values() {
			m.Collect(storage.StringId(int(v)))
		}

	case bytecode.OpFinalizeRanksInMap:
		a := bc.FinalizeRanksInMapArgs()
		regs[a.Map].RankMap().Finalize(pool)

	case bytecode.OpCopyToRowLayout:
		a := bc.CopyToRowLayoutArgs()
		src := readSpanLike(&regs[a.Src])
		ExecCopyToRowLayout(src.Values(), a, regs)

	case bytecode.OpSortRowLayout:
		a := bc.SortRowLayoutArgs()
		span := regs[a.Span].Span()
		rows := span.Slice()
		ExecSortRowLayout(rows, regs[a.Buffer].Bytes(), a.Stride)

	case bytecode.OpDistinct:
		a := bc.DistinctArgs()
		span := regs[a.Span].Span()
		rows := span.Slice()
		kept := ExecDistinct(rows, regs[a.Buffer].Bytes(), a.Stride)
		span.End = span.Begin + uint32(len(kept))
		regs[a.Span].SetSpan(span)

	case bytecode.OpLimitOffsetIndices:
		a := bc.LimitOffsetIndicesArgs()
		span := readSpanLike(&regs[a.Span])
		size := span.Len()
		off := int(a.Offset)
		if off > size {
			off = size
		}
		span.Begin += uint32(off)
		remaining := size - off
		lim := int(a.Limit)
		if lim > remaining {
			lim = remaining
		}
		span.End = span.Begin + uint32(lim)
		writeSpanLike(&regs[a.Span], span)

	case bytecode.OpFindMinMaxIndex:
		a := bc.FindMinMaxIndexArgs()
		execFindMinMaxIndex(a, regs)

	case bytecode.OpMakeChildToParentTreeStructure:
		a := bc.MakeChildToParentTreeStructureArgs()
		parents := append([]uint32(nil), regs[a.ParentIds].SlabU32().Data()...)
		var merged bytecode.TreeStructure
		if regs[a.Dst].Kind == bytecode.RegTreeStructure {
			merged = *regs[a.Dst].TreeStructure()
		}
		merged.ChildToParent = parents
		regs[a.Dst] = bytecode.NewTreeStructureReg(&merged)

	case bytecode.OpMakeParentToChildTreeStructure:
		execMakeParentToChildTreeStructure(bc.MakeParentToChildTreeStructureArgs(), regs)

	case bytecode.OpIndexSpanToBitvector:
		a := bc.IndexSpanToBitvectorArgs()
		span := readSpanLike(&regs[a.Span])
		bv := bitvec.NewBitVector(int(a.Size))
		for _, v := range span.Values() {
			bv.Set(int(v))
		}
		regs[a.Dst] = bytecode.NewBitVectorPtrReg(bv)

	case bytecode.OpFilterTree:
		execFilterTree(bc.FilterTreeArgs(), regs)

	default:
		dferrors.Fatalf("interp: unhandled opcode %v", bc.Option)
	}
}

// storageNumeric returns the value at idx as a float64. Id/Uint32 convert
// as unsigned; Int32/Int64 signed; Double as-is.
func storageNumeric(storage *column.Storage, t dftype.StorageType, idx int) float64 {
	switch t {
	case dftype.Id:
		return float64(storage.IdValue(idx))
	case dftype.Uint32:
		return float64(storage.Uint32(idx))
	case dftype.Int32:
		return float64(storage.Int32(idx))
	case dftype.Int64:
		return float64(storage.Int64(idx))
	case dftype.Double:
		return storage.Double(idx)
	default:
		dferrors.Fatalf("interp: storageNumeric on non-numeric type %v", t)
		return 0
	}
}

// compareOp applies op to (a <=> b) already reduced to float64 magnitudes.
func compareOp(a, b float64, op dftype.Op) bool {
	switch op {
	case dftype.Eq:
		return a == b
	case dftype.Ne:
		return a != b
	case dftype.Lt:
		return a < b
	case dftype.Le:
		return a <= b
	case dftype.Gt:
		return a > b
	case dftype.Ge:
		return a >= b
	default:
		return false
	}
}

func valueAsFloat(v column.Value, t dftype.StorageType) float64 {
	switch t {
	case dftype.Id, dftype.Uint32:
		return float64(v.AsUint32())
	case dftype.Int32:
		return float64(v.AsInt32())
	case dftype.Int64:
		return float64(v.AsInt64())
	case dftype.Double:
		return v.AsDouble()
	default:
		dferrors.Fatalf("interp: valueAsFloat on non-numeric type %v", t)
		return 0
	}
}

func execNonStringFilter(a bytecode.NonStringFilterArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastResult()
	src := readSpanLike(&regs[a.Src])
	dst := regs[a.Dst].Span()
	switch cast.Validity {
	case bytecode.NoneMatch:
		dst.End = dst.Begin
		regs[a.Dst].SetSpan(dst)
		return
	case bytecode.AllMatch:
		copySpan(src, dst, regs, a.Dst)
		return
	}
	want := valueAsFloat(cast.Value, a.Type)
	var storage *column.Storage
	if a.Type != dftype.Id {
		storage = regs[a.Storage].StoragePtr()
	}
	n := uint32(0)
	for _, v := range src.Values() {
		var got float64
		if a.Type == dftype.Id {
			got = float64(v)
		} else {
			got = storageNumeric(storage, a.Type, int(v))
		}
		if compareOp(got, want, a.Op) {
			dst.SetAt(dst.Begin+n, v)
			n++
		}
	}
	dst.End = dst.Begin + n
	regs[a.Dst].SetSpan(dst)
}

// copySpan writes src's logical values into dst (materialized) verbatim,
// used for CastFilterValueResult==AllMatch ("no rows are filtered").
func copySpan(src, dst bitvec.Span, regs []bytecode.RegValue, dstReg bytecode.Reg) {
	vals := src.Values()
	for i, v := range vals {
		dst.SetAt(dst.Begin+uint32(i), v)
	}
	dst.End = dst.Begin + uint32(len(vals))
	regs[dstReg].SetSpan(dst)
}

func globMatch(pattern, s string) bool {
	return globMatchRunes([]rune(pattern), []rune(s))
}

func globMatchRunes(p, s []rune) bool {
	if len(p) == 0 {
		return len(s) == 0
	}
	switch p[0] {
	case '*':
		for i := 0; i <= len(s); i++ {
			if globMatchRunes(p[1:], s[i:]) {
				return true
			}
		}
		return false
	case '?':
		if len(s) == 0 {
			return false
		}
		return globMatchRunes(p[1:], s[1:])
	default:
		if len(s) == 0 || s[0] != p[0] {
			return false
		}
		return globMatchRunes(p[1:], s[1:])
	}
}

func isLiteralGlob(pattern string) bool {
	return !strings.ContainsAny(pattern, "*?")
}

func execStringFilter(a bytecode.StringFilterArgs, regs []bytecode.RegValue, pool *strpool.Pool) {
	cast := regs[a.Value].CastResult()
	src := readSpanLike(&regs[a.Src])
	dst := regs[a.Dst].Span()
	if cast.Validity == bytecode.NoneMatch {
		dst.End = dst.Begin
		regs[a.Dst].SetSpan(dst)
		return
	}
	if cast.Validity == bytecode.AllMatch {
		copySpan(src, dst, regs, a.Dst)
		return
	}
	storage := regs[a.Storage].StoragePtr()

	if a.Op == dftype.Glob && isLiteralGlob(cast.Str) {
		a2 := a
		a2.Op = dftype.Eq
		execStringFilter(a2, regs, pool)
		return
	}
	var re *regexp.Regexp
	if a.Op == dftype.Regex {
		var err error
		if re, err = regexp.Compile(cast.Str); err != nil {
			logging.DegradedPath("regex compile failed, filter matches no rows", "pattern", cast.Str, "error", err.Error())
			dst.End = dst.Begin
			regs[a.Dst].SetSpan(dst)
			return
		}
	}
	// Glob against a small pool: precompute which ids match once, rather
	// than re-running the pattern per row.
	var globMembers *bitvec.BitVector
	if a.Op == dftype.Glob && pool.IsSmall() {
		globMembers = bitvec.NewBitVector(pool.Len() + 1)
		pool.ForEachSmall(func(id strpool.Id, s string) {
			if globMatch(cast.Str, s) {
				globMembers.Set(int(id))
			}
		})
	}

	keep := func(idx uint32) bool {
		id := storage.StringId(int(idx))
		switch a.Op {
		case dftype.Eq:
			return id == cast.Value.AsStringId()
		case dftype.Ne:
			return id != cast.Value.AsStringId()
		case dftype.Lt, dftype.Le, dftype.Gt, dftype.Ge:
			return compareStrings(pool.Get(id), cast.Str, a.Op)
		case dftype.Glob:
			if globMembers != nil {
				return globMembers.IsSet(int(id))
			}
			return globMatch(cast.Str, pool.Get(id))
		case dftype.Regex:
			return re.MatchString(pool.Get(id))
		default:
			return false
		}
	}

	n := uint32(0)
	for _, v := range src.Values() {
		if keep(v) {
			dst.SetAt(dst.Begin+n, v)
			n++
		}
	}
	dst.End = dst.Begin + n
	regs[a.Dst].SetSpan(dst)
}

func compareStrings(a, b string, op dftype.Op) bool {
	c := strings.Compare(a, b)
	switch op {
	case dftype.Lt:
		return c < 0
	case dftype.Le:
		return c <= 0
	case dftype.Gt:
		return c > 0
	case dftype.Ge:
		return c >= 0
	default:
		return false
	}
}

func execSortedFilter(a bytecode.SortedFilterArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastResult()
	rng := regs[a.Range].Range()
	if cast.Validity == bytecode.NoneMatch {
		regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: rng.Begin})
		return
	}
	if cast.Validity == bytecode.AllMatch {
		return
	}
	var storage *column.Storage
	if a.Type != dftype.Id {
		storage = regs[a.Storage].StoragePtr()
	}
	want := valueAsFloat(cast.Value, a.Type)
	at := func(i int) float64 {
		if a.Type == dftype.Id {
			return float64(i)
		}
		return storageNumeric(storage, a.Type, i)
	}
	lo := int(rng.Begin)
	hi := int(rng.End)
	lower := sort.Search(hi-lo, func(i int) bool { return at(lo+i) >= want }) + lo
	switch a.RangeOp {
	case bytecode.LowerBound:
		if a.NarrowEnd {
			regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: uint32(lower)})
		} else {
			regs[a.Range].SetRange(bitvec.Span{Begin: uint32(lower), End: rng.End})
		}
	case bytecode.UpperBound:
		upper := sort.Search(hi-lo, func(i int) bool { return at(lo+i) > want }) + lo
		if a.NarrowEnd {
			regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: uint32(upper)})
		} else {
			regs[a.Range].SetRange(bitvec.Span{Begin: uint32(upper), End: rng.End})
		}
	default: // EqualRange
		upper := sort.Search(hi-lower, func(i int) bool { return at(lower+i) > want }) + lower
		regs[a.Range].SetRange(bitvec.Span{Begin: uint32(lower), End: uint32(upper)})
	}
}

func execUint32SetIdSortedEq(a bytecode.Uint32SetIdSortedEqArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastResult()
	rng := regs[a.Range].Range()
	if cast.Validity == bytecode.NoneMatch {
		regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: rng.Begin})
		return
	}
	if cast.Validity == bytecode.AllMatch {
		return
	}
	storage := regs[a.Storage].StoragePtr()
	v := cast.Value.AsUint32()
	start := int(v)
	if start < int(rng.Begin) || start >= int(rng.End) || storage.Uint32(start) != v {
		regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: rng.Begin})
		return
	}
	end := start + 1
	for end < int(rng.End) && storage.Uint32(end) == v {
		end++
	}
	regs[a.Range].SetRange(bitvec.Span{Begin: uint32(start), End: uint32(end)})
}

func execSpecializedStorageSmallValueEq(a bytecode.SpecializedStorageSmallValueEqArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastResult()
	rng := regs[a.Range].Range()
	if cast.Validity == bytecode.NoneMatch {
		regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: rng.Begin})
		return
	}
	if cast.Validity == bytecode.AllMatch {
		return
	}
	bv := regs[a.Bv].BitVectorPtr()
	popcount := regs[a.Popcount].PopcountPtr()
	v := int(cast.Value.AsUint32())
	if v >= bv.Size() || !bv.IsSet(v) {
		regs[a.Range].SetRange(bitvec.Span{Begin: rng.Begin, End: rng.Begin})
		return
	}
	idx := uint32(bv.PopcountUntil(v, popcount))
	begin, end := idx, idx+1
	if begin < rng.Begin {
		begin = rng.Begin
	}
	if end > rng.End {
		end = rng.End
	}
	if begin > end {
		begin = end
	}
	regs[a.Range].SetRange(bitvec.Span{Begin: begin, End: end})
}

func execLinearFilterEq(a bytecode.LinearFilterEqArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastResult()
	rng := readSpanLike(&regs[a.Src])
	dst := regs[a.Dst].Span()
	if cast.Validity == bytecode.NoneMatch {
		dst.End = dst.Begin
		regs[a.Dst].SetSpan(dst)
		return
	}
	if cast.Validity == bytecode.AllMatch {
		copySpan(rng, dst, regs, a.Dst)
		return
	}
	storage := regs[a.Storage].StoragePtr()
	want := valueAsFloat(cast.Value, a.Type)
	n := uint32(0)
	for _, v := range rng.Values() {
		if storageNumeric(storage, a.Type, int(v)) == want {
			dst.SetAt(dst.Begin+n, v)
			n++
		}
	}
	dst.End = dst.Begin + n
	regs[a.Dst].SetSpan(dst)
}

func execIndexedFilterEq(a bytecode.IndexedFilterEqArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastResult()
	src := regs[a.Src].Span()
	if cast.Validity == bytecode.NoneMatch {
		regs[a.Dst].SetSpan(bitvec.Span{Data: src.Data, Begin: src.Begin, End: src.Begin})
		return
	}
	if cast.Validity == bytecode.AllMatch {
		regs[a.Dst].SetSpan(src)
		return
	}
	storage := regs[a.Storage].StoragePtr()
	var bv *bitvec.BitVector
	var popcount *bitvec.FlexVector[uint32]
	if a.Nullability != dftype.NonNull {
		bv = regs[a.Bv].BitVectorPtr()
		if a.Nullability.HasPopcount() {
			popcount = regs[a.Popcount].PopcountPtr()
		}
	}
	storageIndex := func(row uint32) (int, bool) {
		switch {
		case a.Nullability == dftype.NonNull || a.Nullability == dftype.DenseNull:
			if a.Nullability == dftype.DenseNull && !bv.IsSet(int(row)) {
				return 0, false
			}
			return int(row), true
		default:
			if !bv.IsSet(int(row)) {
				return 0, false
			}
			return int(bv.PopcountUntil(int(row), popcount)), true
		}
	}
	want := valueAsFloat(cast.Value, a.Type)
	vals := src.Values()
	keyAt := func(i int) (float64, bool) {
		idx, ok := storageIndex(vals[i])
		if !ok {
			return 0, false // nulls sort below everything.
		}
		return storageNumeric(storage, a.Type, idx), true
	}
	n := len(vals)
	lower := sort.Search(n, func(i int) bool {
		v, ok := keyAt(i)
		return ok && v >= want
	})
	upper := sort.Search(n, func(i int) bool {
		v, ok := keyAt(i)
		return ok && v > want
	})
	if upper < lower {
		upper = lower
	}
	regs[a.Dst].SetSpan(bitvec.Span{Data: src.Data, Begin: src.Begin + uint32(lower), End: src.Begin + uint32(upper)})
}

func execInFilter(a bytecode.InFilterArgs, regs []bytecode.RegValue) {
	cast := regs[a.Value].CastListResult()
	src := readSpanLike(&regs[a.Src])
	dst := regs[a.Dst].Span()
	if cast.Validity == bytecode.NoneMatch {
		dst.End = dst.Begin
		regs[a.Dst].SetSpan(dst)
		return
	}
	if cast.Validity == bytecode.AllMatch {
		copySpan(src, dst, regs, a.Dst)
		return
	}
	set := make(map[float64]struct{}, len(cast.Values))
	for _, v := range cast.Values {
		set[valueAsFloat(v, a.Type)] = struct{}{}
	}
	var storage *column.Storage
	if a.Type != dftype.Id {
		storage = regs[a.Storage].StoragePtr()
	}
	n := uint32(0)
	for _, v := range src.Values() {
		var got float64
		if a.Type == dftype.Id {
			got = float64(v)
		} else {
			got = storageNumeric(storage, a.Type, int(v))
		}
		if _, ok := set[got]; ok {
			dst.SetAt(dst.Begin+n, v)
			n++
		}
	}
	dst.End = dst.Begin + n
	regs[a.Dst].SetSpan(dst)
}

// betterOf reports whether candidate should replace best for the given
// reduction direction, generic over constraints.Ordered; execFindMinMaxIndex
// instantiates it only with float64, the type storageNumeric returns.
func betterOf[T constraints.Ordered](which bytecode.MinMax, candidate, best T) bool {
	if which == bytecode.FindMin {
		return candidate < best
	}
	return candidate > best
}

func execFindMinMaxIndex(a bytecode.FindMinMaxIndexArgs, regs []bytecode.RegValue) {
	span := readSpanLike(&regs[a.Span])
	vals := span.Values()
	if len(vals) == 0 {
		regs[a.Span] = bytecode.NewRangeReg(bitvec.Span{Begin: 0, End: 0})
		return
	}
	storage := regs[a.Storage].StoragePtr()
	best := vals[0]
	bestVal := storageNumeric(storage, a.Type, int(best))
	for _, v := range vals[1:] {
		val := storageNumeric(storage, a.Type, int(v))
		if betterOf(a.Which, val, bestVal) {
			best, bestVal = v, val
		}
	}
	regs[a.Span] = bytecode.NewRangeReg(bitvec.Span{Begin: best, End: best + 1})
}

// execMakeParentToChildTreeStructure builds the CSR view and merges it into
// whatever TreeStructure already lives at a.Dst (e.g. the ChildToParent
// span MakeChildToParentTreeStructure wrote there), so FilterTree can read
// both artifacts off a single register.
func execMakeParentToChildTreeStructure(a bytecode.MakeParentToChildTreeStructureArgs, regs []bytecode.RegValue) {
	parents := regs[a.ParentIds].SlabU32().Data()
	n := len(parents)
	counts := make([]uint32, n+1)
	var roots []uint32
	for i, p := range parents {
		if p == math.MaxUint32 {
			roots = append(roots, uint32(i))
			continue
		}
		counts[p]++
	}
	offsets := make([]uint32, n+1)
	for i := 0; i < n; i++ {
		offsets[i+1] = offsets[i] + counts[i]
	}
	children := make([]uint32, n-len(roots))
	cursor := append([]uint32(nil), offsets[:n]...)
	for i, p := range parents {
		if p == math.MaxUint32 {
			continue
		}
		children[cursor[p]] = uint32(i)
		cursor[p]++
	}
	var merged bytecode.TreeStructure
	if regs[a.Dst].Kind == bytecode.RegTreeStructure {
		merged = *regs[a.Dst].TreeStructure()
	}
	merged.Offsets = offsets
	merged.Children = children
	merged.Roots = roots
	if merged.ChildToParent == nil {
		merged.ChildToParent = append([]uint32(nil), parents...)
	}
	regs[a.Dst] = bytecode.NewTreeStructureReg(&merged)
}

func sliceToSlab(s []uint32) *bitvec.Slab[uint32] {
	slab := bitvec.NewSlab[uint32](len(s))
	copy(slab.Data(), s)
	return slab
}

// execFilterTree performs a DFS over the parent-to-child structure,
// keeping rows set in the Keep bitvector and re-parenting the children of a
// removed node to its nearest surviving ancestor.
func execFilterTree(a bytecode.FilterTreeArgs, regs []bytecode.RegValue) {
	tree := regs[a.ParentToChild].TreeStructure()
	keep := regs[a.Keep].BitVectorPtr()
	n := len(tree.ChildToParent)
	newParent := make([]uint32, n)

	var dfs func(node uint32, nearestSurvivingAncestor uint32)
	visit := func(node uint32, ancestor uint32) uint32 {
		if keep.IsSet(int(node)) {
			newParent[node] = ancestor
			return node
		}
		newParent[node] = ancestor
		return ancestor
	}
	childrenOf := func(node uint32) []uint32 {
		if node == math.MaxUint32 {
			return tree.Roots
		}
		return tree.Children[tree.Offsets[node]:tree.Offsets[node+1]]
	}
	dfs = func(node uint32, ancestor uint32) {
		next := visit(node, ancestor)
		for _, c := range childrenOf(node) {
			dfs(c, next)
		}
	}
	for _, r := range tree.Roots {
		dfs(r, math.MaxUint32)
	}
	regs[a.Dst] = bytecode.NewSlabU32Reg(sliceToSlab(newParent))
}
