package column

import "github.com/google/perfetto-dataframe/internal/bitvec"

// SpecializedStorage is an optional alternative representation granting
// O(1) equality lookup. The only variant today is SmallValueEq, applicable
// to non-null, sorted, duplicate-free Uint32 columns whose max value is
// small relative to the column size.
type SpecializedStorage struct {
	HasSmallValueEq bool
	bv              *bitvec.BitVector
	popcount        *bitvec.FlexVector[uint32]
}

// SmallValueEqThresholdMultiplier bounds applicability: max(value) must be
// less than this multiplier times the column's length.
const SmallValueEqThresholdMultiplier = 16

// BuildSmallValueEq constructs the SmallValueEq representation for a sorted,
// duplicate-free, non-null Uint32 column given its values and max value.
// Returns false if the column doesn't qualify.
func BuildSmallValueEq(values []uint32, maxValue uint32) (SpecializedStorage, bool) {
	if len(values) == 0 {
		return SpecializedStorage{}, false
	}
	if uint64(maxValue) >= uint64(SmallValueEqThresholdMultiplier)*uint64(len(values)) {
		return SpecializedStorage{}, false
	}
	bv := bitvec.NewBitVector(int(maxValue) + 1)
	for _, v := range values {
		bv.Set(int(v))
	}
	return SpecializedStorage{HasSmallValueEq: true, bv: bv, popcount: bv.PrefixPopcount()}, true
}

// Lookup returns the storage index of value v, or (0, false) if absent.
func (s *SpecializedStorage) Lookup(v uint32) (int, bool) {
	if !s.HasSmallValueEq || int(v) >= s.bv.Size() || !s.bv.IsSet(int(v)) {
		return 0, false
	}
	return int(s.bv.PopcountUntil(int(v), s.popcount)), true
}

// BitVector exposes the underlying membership bit vector for register init.
func (s *SpecializedStorage) BitVector() *bitvec.BitVector { return s.bv }

// Popcount exposes the prefix-popcount table for register init.
func (s *SpecializedStorage) Popcount() *bitvec.FlexVector[uint32] { return s.popcount }
