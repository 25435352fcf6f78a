package column

import (
	"testing"

	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

func TestInsertAndGetCellNonNull(t *testing.T) {
	col := NewNonNullColumn("v", NewUint32Storage())
	df := New(strpool.New(), []*Column{col})

	if err := df.Insert(Uint32Value(10)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := df.Insert(Uint32Value(20)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if got := df.GetCell(0, 0).AsUint32(); got != 10 {
		t.Errorf("GetCell(0) = %d, want 10", got)
	}
	if got := df.GetCell(1, 0).AsUint32(); got != 20 {
		t.Errorf("GetCell(1) = %d, want 20", got)
	}
}

func TestSparseNullGetCell(t *testing.T) {
	// bv = 1 0 1 0 1, storage = [10,20,30].
	col := &Column{
		Name:    "v",
		Storage: NewInt64Storage(),
		Null:    NewSparseNullWithPopcount(0, dftype.SparseNullWithPopcountAlways),
	}
	df := New(strpool.New(), []*Column{col})

	values := []Value{Int64Value(10), NullValue(), Int64Value(20), NullValue(), Int64Value(30)}
	for _, v := range values {
		if err := df.Insert(v); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	cases := map[int]Value{0: Int64Value(10), 2: Int64Value(20), 4: Int64Value(30)}
	for row, want := range cases {
		got := df.GetCell(row, 0)
		if got.AsInt64() != want.AsInt64() {
			t.Errorf("GetCell(%d) = %d, want %d", row, got.AsInt64(), want.AsInt64())
		}
	}
	for _, row := range []int{1, 3} {
		if !df.GetCell(row, 0).IsNull() {
			t.Errorf("GetCell(%d) expected null", row)
		}
	}
}

func TestFinalizeIdempotentAndClearsPopcount(t *testing.T) {
	col := &Column{
		Name:    "v",
		Storage: NewInt64Storage(),
		Null:    NewSparseNullWithPopcount(0, dftype.SparseNullWithPopcountUntilFinalization),
	}
	df := New(strpool.New(), []*Column{col})
	_ = df.Insert(Int64Value(1))
	_ = df.Insert(NullValue())

	df.Finalize()
	if !df.Finalized {
		t.Fatal("expected Finalized = true")
	}
	if col.Null.Popcount() != nil {
		t.Error("expected until-finalization popcount to be cleared")
	}
	df.Finalize() // idempotent
}

func TestSetCellSparseTransition(t *testing.T) {
	col := &Column{
		Name:    "v",
		Storage: NewInt64Storage(),
		Null:    NewSparseNullWithPopcount(0, dftype.SparseNullWithPopcountAlways),
	}
	df := New(strpool.New(), []*Column{col})
	_ = df.Insert(Int64Value(1))
	_ = df.Insert(NullValue())
	_ = df.Insert(Int64Value(3))

	if err := df.SetCell(1, 0, Int64Value(2)); err != nil {
		t.Fatalf("SetCell: %v", err)
	}
	if got := df.GetCell(1, 0).AsInt64(); got != 2 {
		t.Errorf("GetCell(1) after SetCell = %d, want 2", got)
	}
	if got := df.GetCell(0, 0).AsInt64(); got != 1 {
		t.Errorf("GetCell(0) = %d, want 1 (unaffected)", got)
	}
	if got := df.GetCell(2, 0).AsInt64(); got != 3 {
		t.Errorf("GetCell(2) = %d, want 3 (unaffected)", got)
	}

	if err := df.SetCell(0, 0, NullValue()); err != nil {
		t.Fatalf("SetCell to null: %v", err)
	}
	if !df.GetCell(0, 0).IsNull() {
		t.Error("expected row 0 to become null")
	}
	if got := df.GetCell(2, 0).AsInt64(); got != 3 {
		t.Errorf("GetCell(2) = %d, want 3 (unaffected by row-0 transition)", got)
	}
}

func TestBuildIndexOrdersByColumn(t *testing.T) {
	col := NewNonNullColumn("v", NewUint32Storage())
	df := New(strpool.New(), []*Column{col})
	for _, v := range []uint32{5, 3, 7, 1} {
		_ = df.Insert(Uint32Value(v))
	}
	idx := df.BuildIndex([]int{0})
	want := []uint32{3, 1, 0, 2} // rows in ascending value order: 1,3,5,7
	for i, r := range idx.Permutation {
		if df.GetCell(int(r), 0).AsUint32() != df.GetCell(int(want[i]), 0).AsUint32() {
			t.Fatalf("permutation[%d] mismatch", i)
		}
	}
}

func TestSelectRowsGathersAndDropsIndexes(t *testing.T) {
	col := NewNonNullColumn("v", NewUint32Storage())
	df := New(strpool.New(), []*Column{col})
	for _, v := range []uint32{10, 20, 30, 40} {
		_ = df.Insert(Uint32Value(v))
	}
	df.Finalize()
	df.Indexes = append(df.Indexes, &Index{Columns: []int{0}, Permutation: []uint32{0, 1, 2, 3}})

	df.SelectRows([]uint32{1, 3})

	if df.RowCount != 2 {
		t.Fatalf("RowCount = %d, want 2", df.RowCount)
	}
	if got := df.GetCell(0, 0).AsUint32(); got != 20 {
		t.Errorf("GetCell(0) = %d, want 20", got)
	}
	if got := df.GetCell(1, 0).AsUint32(); got != 40 {
		t.Errorf("GetCell(1) = %d, want 40", got)
	}
	if len(df.Indexes) != 0 {
		t.Error("expected SelectRows to drop stale indexes")
	}
}

func TestHorizontalConcatDropsDuplicateAutoID(t *testing.T) {
	left := New(strpool.New(), []*Column{NewNonNullColumn("a", NewUint32Storage())})
	_ = left.Insert(Uint32Value(1))
	_ = left.Insert(Uint32Value(2))
	left.Finalize()
	// Simulate the ad-hoc builder's implicit _auto_id append: an Id
	// column is never populated via Insert, only attached post-hoc.
	left.Columns = append(left.Columns, &Column{
		Name: AutoIdColumnName, Storage: NewIdStorage(left.RowCount),
		Null: NewNonNull(), Sort: dftype.IdSorted, Duplicate: dftype.NoDuplicates,
	})
	left.Names = append(left.Names, AutoIdColumnName)

	right := New(strpool.New(), []*Column{NewNonNullColumn("b", NewUint32Storage())})
	_ = right.Insert(Uint32Value(100))
	_ = right.Insert(Uint32Value(200))
	right.Finalize()

	merged, err := HorizontalConcat(left, right)
	if err != nil {
		t.Fatalf("HorizontalConcat: %v", err)
	}
	if len(merged.Columns) != 3 {
		t.Fatalf("expected 3 columns (a, b, _auto_id), got %d: %v", len(merged.Columns), merged.Names)
	}
	if merged.Names[len(merged.Names)-1] != AutoIdColumnName {
		t.Errorf("expected trailing _auto_id column, got %v", merged.Names)
	}
}

func TestInsertOnFinalizedDataframeIsFatal(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic inserting into a finalized dataframe")
		}
	}()
	col := NewNonNullColumn("v", NewUint32Storage())
	df := New(strpool.New(), []*Column{col})
	df.Finalize()
	_ = df.Insert(Uint32Value(1))
}

func TestSmallValueEqLookup(t *testing.T) {
	values := []uint32{0, 1, 2, 3, 5, 7}
	spec, ok := BuildSmallValueEq(values, 7)
	if !ok {
		t.Fatal("expected BuildSmallValueEq to apply")
	}
	if idx, ok := spec.Lookup(3); !ok || idx != 3 {
		t.Errorf("Lookup(3) = (%d, %v), want (3, true)", idx, ok)
	}
	if _, ok := spec.Lookup(4); ok {
		t.Error("Lookup(4) should miss")
	}
}
