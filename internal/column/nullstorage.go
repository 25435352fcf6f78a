package column

import (
	"github.com/google/perfetto-dataframe/internal/bitvec"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/dftype"
)

// NullStorage carries the side data needed to interpret a column's
// nullability. Only the fields matching Kind are valid.
type NullStorage struct {
	Kind dftype.Nullability

	bv       *bitvec.BitVector   // SparseNull*, DenseNull
	popcount *bitvec.FlexVector[uint32] // SparseNullWithPopcount*
}

// NewNonNull returns NonNull null-storage.
func NewNonNull() NullStorage { return NullStorage{Kind: dftype.NonNull} }

// NewSparseNull returns SparseNull null-storage (no popcount table) sized
// for rowCount rows, all null.
func NewSparseNull(rowCount int) NullStorage {
	return NullStorage{Kind: dftype.SparseNull, bv: bitvec.NewBitVector(rowCount)}
}

// NewSparseNullWithPopcount returns a sparse-null storage with a popcount
// table that is kept either forever or only until Finalize, per kind.
func NewSparseNullWithPopcount(rowCount int, kind dftype.Nullability) NullStorage {
	if !kind.HasPopcount() {
		dferrors.Fatalf("nullstorage: %v does not carry a popcount table", kind)
	}
	bv := bitvec.NewBitVector(rowCount)
	return NullStorage{Kind: kind, bv: bv, popcount: bv.PrefixPopcount()}
}

// NewDenseNull returns DenseNull null-storage sized for rowCount rows.
func NewDenseNull(rowCount int) NullStorage {
	return NullStorage{Kind: dftype.DenseNull, bv: bitvec.NewBitVector(rowCount)}
}

// IsNull reports whether row i is null. Panics for NonNull (caller should
// never ask).
func (n *NullStorage) IsNull(row int) bool {
	if n.Kind == dftype.NonNull {
		dferrors.Fatalf("nullstorage: IsNull called on NonNull column")
	}
	return !n.bv.IsSet(row)
}

// BitVector exposes the underlying bit vector for planner register init.
func (n *NullStorage) BitVector() *bitvec.BitVector { return n.bv }

// Popcount exposes the prefix-popcount table, or nil if none is maintained.
func (n *NullStorage) Popcount() *bitvec.FlexVector[uint32] { return n.popcount }

// StorageIndex translates a non-null row index to its storage index,
// fataling if random access requires a popcount table that isn't present.
func (n *NullStorage) StorageIndex(row int) int {
	switch n.Kind {
	case dftype.NonNull, dftype.DenseNull:
		return row
	case dftype.SparseNullWithPopcountAlways, dftype.SparseNullWithPopcountUntilFinalization:
		return int(n.bv.PopcountUntil(row, n.popcount))
	case dftype.SparseNull:
		dferrors.Fatalf("nullstorage: SparseNull column accessed via GetCell without popcount")
		return 0
	default:
		dferrors.Fatalf("nullstorage: unknown kind %v", n.Kind)
		return 0
	}
}

// AppendNonNull records that a new row was inserted with a non-null value,
// growing the bit vector (and popcount table, if maintained) by one set bit.
func (n *NullStorage) AppendNonNull() {
	if n.Kind == dftype.NonNull {
		return
	}
	n.appendBit(true)
}

// AppendNull records that a new row was inserted with a null value.
func (n *NullStorage) AppendNull() {
	if n.Kind == dftype.NonNull {
		dferrors.Fatalf("nullstorage: AppendNull on NonNull column")
	}
	n.appendBit(false)
}

func (n *NullStorage) appendBit(nonNull bool) {
	before := n.bv.Size()
	n.bv.Append(nonNull)
	if n.popcount == nil {
		return
	}
	// A new prefix-popcount entry is due whenever we cross a 64-bit
	// boundary.
	if before%64 == 0 {
		var running uint32
		if n.popcount.Len() > 0 {
			running = n.popcount.At(n.popcount.Len() - 1)
			if before >= 64 {
				// Add the set bits of the word that just filled up.
				running += uint32(n.bv.CountSetBitsUntilInWord(before - 1))
				if n.bv.IsSet(before - 1) {
					running++
				}
			}
		}
		n.popcount.Push(running)
	}
}

// SetTransition adjusts the bit vector (and, if maintained, the popcount
// table for all subsequent words) when SetCell flips a row between null and
// non-null. toNonNull sets the row's bit when true and clears it when false;
// rebuildPopcount is called only when a popcount table is kept.
func (n *NullStorage) SetTransition(row int, toNonNull bool, rebuildPopcount func()) {
	if toNonNull {
		n.bv.Set(row)
	} else {
		n.bv.Clear(row)
	}
	if n.popcount != nil {
		rebuildPopcount()
	}
}

// RebuildPopcount recomputes the full prefix-popcount table from the bit
// vector. Used after SetCell transitions and after SelectRows reindexing.
func (n *NullStorage) RebuildPopcount() {
	if n.Kind.HasPopcount() {
		n.popcount = n.bv.PrefixPopcount()
	}
}

// ClearUntilFinalizationPopcount drops the popcount table for the
// until-finalization variant, once Finalize locks it in.
func (n *NullStorage) ClearUntilFinalizationPopcount() {
	if n.Kind == dftype.SparseNullWithPopcountUntilFinalization {
		n.popcount = nil
	}
}

// Resize grows or shrinks the underlying bit vector (DenseNull/SparseNull
// row count tracks the column row count, unlike storage length).
func (n *NullStorage) Resize(size int) {
	if n.Kind != dftype.NonNull {
		n.bv.Resize(size)
	}
}
