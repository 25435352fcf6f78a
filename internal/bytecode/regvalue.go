package bytecode

import (
	"github.com/google/perfetto-dataframe/internal/bitvec"
	"github.com/google/perfetto-dataframe/internal/column"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// RegKind tags which field of RegValue is valid, following the same
// Mem/MemFlags discipline as column.Value: a closed set of kinds, one
// payload per kind, typed accessors that Fatalf on mismatch.
type RegKind uint8

const (
	RegUndefined RegKind = iota
	RegRange
	RegSpan
	RegSlabU32
	RegByteBuffer
	RegStoragePtr
	RegBitVectorPtr
	RegPopcountPtr
	RegCastResult
	RegCastListResult
	RegRankMap
	RegTreeStructure
)

// CastValidity is the outcome of CastFilterValue[List]: either a concrete
// casted value, or a verdict that lets the filter opcode skip comparison
// entirely.
type CastValidity uint8

const (
	Valid CastValidity = iota
	AllMatch
	NoneMatch
)

// CastResult is CastFilterValue's output register payload. Str carries the
// raw input string for string-column filters: Lt/Le/Gt/Ge compare against
// it (a pool id has no relation to lexicographic order, and Value cannot
// represent an un-interned string), and Glob/Regex read their pattern from it.
type CastResult struct {
	Validity CastValidity
	Value    column.Value
	Str      string
}

// CastListResult is CastFilterValueList's output register payload.
type CastListResult struct {
	Validity CastValidity
	Values   []column.Value
}

// StringIdToRankMap maps a column's distinct non-null string ids to their
// rank in sorted order, built by CollectIdIntoRankMap + FinalizeRanksInMap.
type StringIdToRankMap struct {
	ranks    map[strpool.Id]uint32
	pending  []strpool.Id
	final    bool
}

func NewStringIdToRankMap() *StringIdToRankMap {
	return &StringIdToRankMap{ranks: make(map[strpool.Id]uint32)}
}

// Collect records id as present in the column, to be ranked at Finalize.
func (m *StringIdToRankMap) Collect(id strpool.Id) {
	if _, ok := m.ranks[id]; ok {
		return
	}
	m.ranks[id] = 0
	m.pending = append(m.pending, id)
}

// Finalize assigns ranks by msd-radix/lexicographic order of the interned
// views, using pool to resolve each id's string.
func (m *StringIdToRankMap) Finalize(pool *strpool.Pool) {
	ids := m.pending
	// Simple sort by interned value; the pool is small enough in practice
	// that a comparison sort suffices in place of true radix sort.
	for i := 1; i < len(ids); i++ {
		j := i
		for j > 0 && pool.Get(ids[j-1]) > pool.Get(ids[j]) {
			ids[j-1], ids[j] = ids[j], ids[j-1]
			j--
		}
	}
	for rank, id := range ids {
		m.ranks[id] = uint32(rank)
	}
	m.final = true
}

// Rank returns id's rank. Panics if Finalize hasn't run.
func (m *StringIdToRankMap) Rank(id strpool.Id) uint32 {
	if !m.final {
		dferrors.Fatalf("rankmap: Rank called before Finalize")
	}
	return m.ranks[id]
}

// TreeStructure holds the materialized child-to-parent span and/or
// parent-to-child CSR used by the tree transformer.
type TreeStructure struct {
	ChildToParent []uint32 // index = row, value = parent row or MaxUint32
	Offsets       []uint32 // parent-to-child CSR: children of row r are
	Children      []uint32 // Children[Offsets[r]:Offsets[r+1]]
	Roots         []uint32
}

// RegValue is the tagged-union register payload. Construct with the New*
// helpers; access through the typed accessors, which Fatalf on kind
// mismatch — the same discipline as column.Value.
type RegValue struct {
	Kind RegKind

	rng        bitvec.Span
	span       bitvec.Span
	slabU32    *bitvec.Slab[uint32]
	bytes      []byte
	storagePtr *column.Storage
	bvPtr      *bitvec.BitVector
	popcntPtr  *bitvec.FlexVector[uint32]
	cast       CastResult
	castList   CastListResult
	rankMap    *StringIdToRankMap
	tree       *TreeStructure
}

func NewRangeReg(s bitvec.Span) RegValue       { return RegValue{Kind: RegRange, rng: s} }
func NewSpanReg(s bitvec.Span) RegValue        { return RegValue{Kind: RegSpan, span: s} }
func NewSlabU32Reg(s *bitvec.Slab[uint32]) RegValue { return RegValue{Kind: RegSlabU32, slabU32: s} }
func NewByteBufferReg(b []byte) RegValue       { return RegValue{Kind: RegByteBuffer, bytes: b} }
func NewStoragePtrReg(s *column.Storage) RegValue { return RegValue{Kind: RegStoragePtr, storagePtr: s} }
func NewBitVectorPtrReg(bv *bitvec.BitVector) RegValue { return RegValue{Kind: RegBitVectorPtr, bvPtr: bv} }
func NewPopcountPtrReg(p *bitvec.FlexVector[uint32]) RegValue {
	return RegValue{Kind: RegPopcountPtr, popcntPtr: p}
}
func NewCastResultReg(c CastResult) RegValue     { return RegValue{Kind: RegCastResult, cast: c} }
func NewCastListResultReg(c CastListResult) RegValue { return RegValue{Kind: RegCastListResult, castList: c} }
func NewRankMapReg(m *StringIdToRankMap) RegValue { return RegValue{Kind: RegRankMap, rankMap: m} }
func NewTreeStructureReg(t *TreeStructure) RegValue { return RegValue{Kind: RegTreeStructure, tree: t} }

func (r *RegValue) mustBe(k RegKind) {
	if r.Kind != k {
		dferrors.Fatalf("regvalue: expected kind %d, got %d", k, r.Kind)
	}
}

func (r *RegValue) Range() bitvec.Span                  { r.mustBe(RegRange); return r.rng }
func (r *RegValue) SetRange(s bitvec.Span)              { r.mustBe(RegRange); r.rng = s }
func (r *RegValue) Span() bitvec.Span                   { r.mustBe(RegSpan); return r.span }
func (r *RegValue) SetSpan(s bitvec.Span)               { r.mustBe(RegSpan); r.span = s }
func (r *RegValue) SlabU32() *bitvec.Slab[uint32]       { r.mustBe(RegSlabU32); return r.slabU32 }
func (r *RegValue) Bytes() []byte                       { r.mustBe(RegByteBuffer); return r.bytes }
func (r *RegValue) SetBytes(b []byte)                   { r.mustBe(RegByteBuffer); r.bytes = b }
func (r *RegValue) StoragePtr() *column.Storage         { r.mustBe(RegStoragePtr); return r.storagePtr }
func (r *RegValue) BitVectorPtr() *bitvec.BitVector     { r.mustBe(RegBitVectorPtr); return r.bvPtr }
func (r *RegValue) PopcountPtr() *bitvec.FlexVector[uint32] { r.mustBe(RegPopcountPtr); return r.popcntPtr }
func (r *RegValue) CastResult() CastResult              { r.mustBe(RegCastResult); return r.cast }
func (r *RegValue) CastListResult() CastListResult      { r.mustBe(RegCastListResult); return r.castList }
func (r *RegValue) RankMap() *StringIdToRankMap         { r.mustBe(RegRankMap); return r.rankMap }
func (r *RegValue) TreeStructure() *TreeStructure       { r.mustBe(RegTreeStructure); return r.tree }
