package column

import (
	"sort"

	"github.com/google/perfetto-dataframe/internal/bitvec"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// AutoIdColumnName is the implicit primary-key column appended by the
// ad-hoc builder and exposed by HorizontalConcat so downstream callers
// can find the surviving identity column.
const AutoIdColumnName = "_auto_id"

// Dataframe owns an ordered set of equal-arity columns, a row count, zero or
// more indexes, a shared string pool reference, and the finalized flag and
// mutation counter that invalidates cached sort/distinct state.
type Dataframe struct {
	Names     []string
	Columns   []*Column
	RowCount  int
	Indexes   []*Index
	Pool      *strpool.Pool
	Finalized bool

	mutationCounter uint64
}

// New returns an empty, mutable dataframe over the given columns (already
// constructed with the desired Storage/NullStorage kinds).
func New(pool *strpool.Pool, columns []*Column) *Dataframe {
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Name
	}
	return &Dataframe{Names: names, Columns: columns, Pool: pool}
}

// MutationCounter returns the monotonic counter cursors use to detect that
// cached register pointers must be re-initialized.
func (df *Dataframe) MutationCounter() uint64 {
	total := df.mutationCounter
	for _, c := range df.Columns {
		total += c.Mutations()
	}
	return total
}

func (df *Dataframe) bumpNonColumnMutation() { df.mutationCounter++ }

// ColumnIndex returns the index of the named column, or -1.
func (df *Dataframe) ColumnIndex(name string) int {
	for i, n := range df.Names {
		if n == name {
			return i
		}
	}
	return -1
}

// Insert appends one row; values must have one entry per column. Only legal
// while the dataframe is not finalized.
func (df *Dataframe) Insert(values ...Value) error {
	if df.Finalized {
		dferrors.Fatalf("dataframe: Insert called on a finalized dataframe")
	}
	if len(values) != len(df.Columns) {
		return &dferrors.RowCountMismatchError{Column: "<row>", Expected: len(df.Columns), Got: len(values)}
	}
	for i, c := range df.Columns {
		if err := insertCell(c, values[i]); err != nil {
			return err
		}
	}
	df.RowCount++
	return nil
}

func insertCell(c *Column, v Value) error {
	if c.Storage.Type == dftype.Id {
		dferrors.Fatalf("dataframe: cannot Insert into an Id column directly")
	}
	if v.IsNull() {
		if c.Null.Kind == dftype.NonNull {
			return &dferrors.TypeMismatchError{Column: c.Name, Op: "Insert", Reason: "null value written to non-null column"}
		}
		c.Null.AppendNull()
		if c.Null.Kind != dftype.NonNull && !c.Null.Kind.IsSparse() {
			// DenseNull reserves a slot per row regardless of null state.
			appendZero(c.Storage)
		}
		return nil
	}
	if c.Null.Kind != dftype.NonNull {
		c.Null.AppendNonNull()
	}
	appendTyped(c.Storage, v)
	return nil
}

func appendZero(s Storage) {
	switch s.Type {
	case dftype.Uint32:
		s.AppendUint32(0)
	case dftype.Int32:
		s.AppendInt32(0)
	case dftype.Int64:
		s.AppendInt64(0)
	case dftype.Double:
		s.AppendDouble(0)
	case dftype.String:
		s.AppendString(strpool.NullId)
	}
}

func appendTyped(s Storage, v Value) {
	switch s.Type {
	case dftype.Uint32:
		s.AppendUint32(v.AsUint32())
	case dftype.Int32:
		s.AppendInt32(v.AsInt32())
	case dftype.Int64:
		s.AppendInt64(v.AsInt64())
	case dftype.Double:
		s.AppendDouble(v.AsDouble())
	case dftype.String:
		s.AppendString(v.AsStringId())
	default:
		dferrors.Fatalf("dataframe: cannot append typed value to Id storage")
	}
}

// GetCell computes the storage index per the column's nullability rule and
// returns the cell's value, or a null Value.
func (df *Dataframe) GetCell(row, col int) Value {
	c := df.Columns[col]
	if c.Storage.Type == dftype.Id {
		return Uint32Value(c.Storage.IdValue(row))
	}
	if c.Null.Kind != dftype.NonNull && c.Null.IsNull(row) {
		return NullValue()
	}
	idx := row
	if c.Null.Kind != dftype.NonNull {
		idx = c.Null.StorageIndex(row)
	}
	return readTyped(c.Storage, idx)
}

func readTyped(s Storage, idx int) Value {
	switch s.Type {
	case dftype.Uint32:
		return Uint32Value(s.Uint32(idx))
	case dftype.Int32:
		return Int32Value(s.Int32(idx))
	case dftype.Int64:
		return Int64Value(s.Int64(idx))
	case dftype.Double:
		return DoubleValue(s.Double(idx))
	case dftype.String:
		return StringValue(s.StringId(idx))
	default:
		dferrors.Fatalf("dataframe: cannot read Id storage as a typed value")
		return Value{}
	}
}

// GetCellAtStorageOffset reads col's value directly at a storage offset
// already resolved by a plan's null-index translation, skipping the
// row->storage-index lookup GetCell performs for nullable columns. col must
// not be an Id column; the cursor never stores a storage offset for one.
func (df *Dataframe) GetCellAtStorageOffset(col, storageOffset int) Value {
	return readTyped(df.Columns[col].Storage, storageOffset)
}

// SetCell overwrites row/col while the dataframe is not finalized. For
// sparse-null columns with a popcount table, a null<->value transition
// shifts storage by one slot and rebuilds the table.
func (df *Dataframe) SetCell(row, col int, v Value) error {
	if df.Finalized {
		dferrors.Fatalf("dataframe: SetCell called on a finalized dataframe")
	}
	c := df.Columns[col]
	if c.Storage.Type == dftype.Id {
		dferrors.Fatalf("dataframe: cannot SetCell on an Id column")
	}
	wasNull := c.Null.Kind != dftype.NonNull && c.Null.IsNull(row)
	if v.IsNull() && c.Null.Kind == dftype.NonNull {
		return &dferrors.TypeMismatchError{Column: c.Name, Op: "SetCell", Reason: "null value written to non-null column"}
	}

	switch {
	case wasNull && !v.IsNull():
		if c.Null.Kind.IsSparse() {
			storageIdx := c.Null.StorageIndex(row)
			c.Storage.InsertAt(storageIdx, typedGoValue(c.Storage.Type, v))
		} else {
			writeTypedAt(c.Storage, row, v)
		}
		c.Null.SetTransition(row, true, c.Null.RebuildPopcount)
	case !wasNull && v.IsNull():
		if c.Null.Kind.IsSparse() {
			storageIdx := c.Null.StorageIndex(row)
			c.Storage.RemoveAt(storageIdx)
		}
		c.Null.SetTransition(row, false, c.Null.RebuildPopcount)
	case !wasNull && !v.IsNull():
		idx := row
		if c.Null.Kind.IsSparse() {
			idx = c.Null.StorageIndex(row)
		}
		writeTypedAt(c.Storage, idx, v)
	default:
		// null -> null: nothing to do.
	}
	c.bumpMutations()
	return nil
}

func typedGoValue(t dftype.StorageType, v Value) interface{} {
	switch t {
	case dftype.Uint32:
		return v.AsUint32()
	case dftype.Int32:
		return v.AsInt32()
	case dftype.Int64:
		return v.AsInt64()
	case dftype.Double:
		return v.AsDouble()
	case dftype.String:
		return v.AsStringId()
	default:
		dferrors.Fatalf("dataframe: typedGoValue on Id storage")
		return nil
	}
}

func writeTypedAt(s Storage, idx int, v Value) {
	switch s.Type {
	case dftype.Uint32:
		*s.u32.At(idx) = v.AsUint32()
	case dftype.Int32:
		*s.i32.At(idx) = v.AsInt32()
	case dftype.Int64:
		*s.i64.At(idx) = v.AsInt64()
	case dftype.Double:
		*s.f64.At(idx) = v.AsDouble()
	case dftype.String:
		*s.str.At(idx) = v.AsStringId()
	default:
		dferrors.Fatalf("dataframe: writeTypedAt on Id storage")
	}
}

// Finalize shrinks buffers, clears until-finalization popcount tables, and
// freezes the schema. Idempotent.
func (df *Dataframe) Finalize() {
	if df.Finalized {
		return
	}
	for _, c := range df.Columns {
		c.Storage.ShrinkToFit()
		c.Null.ClearUntilFinalizationPopcount()
	}
	df.Finalized = true
	df.bumpNonColumnMutation()
}

// Clear resets the dataframe to zero rows, un-finalizing it.
func (df *Dataframe) Clear() {
	for _, c := range df.Columns {
		switch c.Storage.Type {
		case dftype.Uint32:
			c.Storage.u32.Resize(0)
		case dftype.Int32:
			c.Storage.i32.Resize(0)
		case dftype.Int64:
			c.Storage.i64.Resize(0)
		case dftype.Double:
			c.Storage.f64.Resize(0)
		case dftype.String:
			c.Storage.str.Resize(0)
		case dftype.Id:
			c.Storage.idRowCount = 0
		}
		if c.Null.Kind != dftype.NonNull {
			c.Null.Resize(0)
		}
	}
	df.RowCount = 0
	df.Finalized = false
	df.Indexes = nil
	df.bumpNonColumnMutation()
}

// AddIndex attaches an index built by BuildIndex. Finalized dataframes only.
func (df *Dataframe) AddIndex(idx *Index) error {
	if !df.Finalized {
		dferrors.Fatalf("dataframe: AddIndex requires a finalized dataframe")
	}
	df.Indexes = append(df.Indexes, idx)
	df.bumpNonColumnMutation()
	return nil
}

// RemoveIndexAt detaches the index at position i. Finalized dataframes only.
func (df *Dataframe) RemoveIndexAt(i int) error {
	if !df.Finalized {
		dferrors.Fatalf("dataframe: RemoveIndexAt requires a finalized dataframe")
	}
	df.Indexes = append(df.Indexes[:i], df.Indexes[i+1:]...)
	df.bumpNonColumnMutation()
	return nil
}

// BuildIndex computes a permutation vector sorting the dataframe by cols
// (ascending, nulls first), without mutating the dataframe itself.
func (df *Dataframe) BuildIndex(cols []int) *Index {
	perm := make([]uint32, df.RowCount)
	for i := range perm {
		perm[i] = uint32(i)
	}
	sort.SliceStable(perm, func(a, b int) bool {
		ra, rb := int(perm[a]), int(perm[b])
		for _, col := range cols {
			va, vb := df.GetCell(ra, col), df.GetCell(rb, col)
			if c := compareValues(va, vb); c != 0 {
				return c < 0
			}
		}
		return false
	})
	return &Index{Columns: append([]int(nil), cols...), Permutation: perm}
}

// compareValues orders null before any value, then numbers by value and
// strings by interned pool id (not lexicographically), matching the
// null-first comparison convention the interpreter uses for filter and sort
// comparisons.
func compareValues(a, b Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	switch a.kind {
	case valueU32:
		return cmpUint32(a.AsUint32(), b.AsUint32())
	case valueI32:
		return cmpInt64(int64(a.AsInt32()), int64(b.AsInt32()))
	case valueI64:
		return cmpInt64(a.AsInt64(), b.AsInt64())
	case valueF64:
		return cmpFloat64(a.AsDouble(), b.AsDouble())
	case valueStr:
		return cmpUint32(uint32(a.AsStringId()), uint32(b.AsStringId()))
	default:
		return 0
	}
}

func cmpUint32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpFloat64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// SelectRows destructively gathers the dataframe down to the given
// sorted-unique row indices, resizing bit vectors and recomputing popcount
// for SparseNullWithPopcountAlways columns. Any attached indexes are
// dropped, since the old permutation no longer addresses valid rows; nothing
// is logged when that happens.
func (df *Dataframe) SelectRows(rows []uint32) {
	for _, c := range df.Columns {
		selectRowsColumn(c, rows)
	}
	df.RowCount = len(rows)
	df.Indexes = nil
	df.bumpNonColumnMutation()
}

func selectRowsColumn(c *Column, rows []uint32) {
	if c.Storage.Type == dftype.Id {
		c.Storage.idRowCount = len(rows)
		return
	}
	newVals := make([]Value, len(rows))
	wasNull := make([]bool, len(rows))
	for i, r := range rows {
		if c.Null.Kind != dftype.NonNull && c.Null.IsNull(int(r)) {
			wasNull[i] = true
			continue
		}
		idx := int(r)
		if c.Null.Kind.IsSparse() {
			idx = c.Null.StorageIndex(int(r))
		}
		newVals[i] = readTyped(c.Storage, idx)
	}

	resetStorage(&c.Storage)

	if c.Null.Kind == dftype.NonNull {
		for _, v := range newVals {
			appendTyped(c.Storage, v)
		}
		return
	}

	switch c.Null.Kind {
	case dftype.DenseNull:
		c.Null.bv = bitvec.NewBitVector(len(rows))
		for i := range rows {
			if wasNull[i] {
				appendZero(c.Storage)
				continue
			}
			c.Null.bv.Set(i)
			appendTyped(c.Storage, newVals[i])
		}
	default: // sparse variants
		c.Null.bv = bitvec.NewBitVector(len(rows))
		for i := range rows {
			if wasNull[i] {
				continue
			}
			c.Null.bv.Set(i)
			appendTyped(c.Storage, newVals[i])
		}
		if c.Null.Kind == dftype.SparseNullWithPopcountAlways {
			c.Null.RebuildPopcount()
		} else {
			c.Null.popcount = nil
		}
	}
}

// resetStorage truncates a column's storage buffer to empty, keeping its
// Type tag, so SelectRows can re-append the gathered values in row order.
func resetStorage(s *Storage) {
	switch s.Type {
	case dftype.Uint32:
		s.u32 = bitvec.NewSlab[uint32](0)
	case dftype.Int32:
		s.i32 = bitvec.NewSlab[int32](0)
	case dftype.Int64:
		s.i64 = bitvec.NewSlab[int64](0)
	case dftype.Double:
		s.f64 = bitvec.NewSlab[float64](0)
	case dftype.String:
		s.str = bitvec.NewSlab[strpool.Id](0)
	}
}

// HorizontalConcat joins two finalized dataframes of equal row count,
// concatenating columns and excluding any _auto_id from either side; a
// fresh _auto_id is appended if either source had one.
func HorizontalConcat(left, right *Dataframe) (*Dataframe, error) {
	if !left.Finalized || !right.Finalized {
		dferrors.Fatalf("dataframe: HorizontalConcat requires finalized inputs")
	}
	if left.RowCount != right.RowCount {
		return nil, &dferrors.RowCountMismatchError{Column: "<concat>", Expected: left.RowCount, Got: right.RowCount}
	}
	hadAutoID := false
	var columns []*Column
	for _, c := range left.Columns {
		if c.Name == AutoIdColumnName {
			hadAutoID = true
			continue
		}
		columns = append(columns, c)
	}
	for _, c := range right.Columns {
		if c.Name == AutoIdColumnName {
			hadAutoID = true
			continue
		}
		columns = append(columns, c)
	}
	if hadAutoID {
		columns = append(columns, &Column{
			Name:      AutoIdColumnName,
			Storage:   NewIdStorage(left.RowCount),
			Null:      NewNonNull(),
			Sort:      dftype.IdSorted,
			Duplicate: dftype.NoDuplicates,
		})
	}
	df := New(left.Pool, columns)
	df.RowCount = left.RowCount
	df.Finalized = true
	return df, nil
}
