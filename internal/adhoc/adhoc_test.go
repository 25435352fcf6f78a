package adhoc

import (
	"testing"

	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

func TestBuildInfersNarrowestIntegerType(t *testing.T) {
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "v"})
	b.PushNonNull(c, column.Int64Value(1))
	b.PushNonNull(c, column.Int64Value(2))
	b.PushNonNull(c, column.Int64Value(3))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := df.Columns[0].Storage.Type; got != dftype.Uint32 {
		t.Errorf("Storage.Type = %v, want Uint32", got)
	}
	for row, want := range map[int]uint32{0: 1, 1: 2, 2: 3} {
		if got := df.GetCell(row, 0).AsUint32(); got != want {
			t.Errorf("GetCell(%d) = %d, want %d", row, got, want)
		}
	}
}

func TestBuildKeepsSignedTypeForNegativeValues(t *testing.T) {
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "v"})
	b.PushNonNull(c, column.Int64Value(-1))
	b.PushNonNull(c, column.Int64Value(100))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := df.Columns[0].Storage.Type; got != dftype.Int32 {
		t.Errorf("Storage.Type = %v, want Int32", got)
	}
	if got := df.GetCell(0, 0).AsInt32(); got != -1 {
		t.Errorf("GetCell(0) = %d, want -1", got)
	}
}

func TestBuildHonorsPinnedType(t *testing.T) {
	b := NewBuilder(strpool.New())
	want := dftype.Int64
	c := b.AddColumn(ColumnSpec{Name: "v", Type: &want})
	b.PushNonNull(c, column.Int64Value(5))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := df.Columns[0].Storage.Type; got != dftype.Int64 {
		t.Errorf("Storage.Type = %v, want Int64 (pinned)", got)
	}
}

func TestPlaceholdersBackfillToTypedZero(t *testing.T) {
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "v"})
	b.PushPlaceholder(c, 2)
	b.PushNonNull(c, column.Uint32Value(7))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	for row, want := range map[int]uint32{0: 0, 1: 0, 2: 7} {
		if got := df.GetCell(row, 0).AsUint32(); got != want {
			t.Errorf("GetCell(%d) = %d, want %d", row, got, want)
		}
	}
}

func TestNullColumnDefaultsToSparseNull(t *testing.T) {
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "v"})
	b.PushNonNull(c, column.Uint32Value(1))
	b.PushNull(c)
	b.PushNonNull(c, column.Uint32Value(3))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	col := df.Columns[0]
	if col.Null.Kind != dftype.SparseNull {
		t.Errorf("Null.Kind = %v, want SparseNull", col.Null.Kind)
	}
	if !df.GetCell(1, 0).IsNull() {
		t.Errorf("GetCell(1) expected null")
	}
}

func TestRowCountMismatchError(t *testing.T) {
	b := NewBuilder(strpool.New())
	a := b.AddColumn(ColumnSpec{Name: "a"})
	bb := b.AddColumn(ColumnSpec{Name: "b"})
	b.PushNonNull(a, column.Uint32Value(1))
	b.PushNonNull(a, column.Uint32Value(2))
	b.PushNonNull(bb, column.Uint32Value(1))

	if _, err := b.Build(); err == nil {
		t.Fatalf("Build: expected RowCountMismatchError, got nil")
	}
}

func TestBuildInfersIdSortedAndSmallValueEq(t *testing.T) {
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "v"})
	for i := uint32(0); i < 5; i++ {
		b.PushNonNull(c, column.Uint32Value(i))
	}

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	col := df.Columns[0]
	if col.Sort != dftype.IdSorted {
		t.Errorf("Sort = %v, want IdSorted", col.Sort)
	}
	if col.Duplicate != dftype.NoDuplicates {
		t.Errorf("Duplicate = %v, want NoDuplicates", col.Duplicate)
	}
	if !col.Specialized.HasSmallValueEq {
		t.Errorf("expected SmallValueEq specialized storage")
	}
	if idx, ok := col.Specialized.Lookup(3); !ok || idx != 3 {
		t.Errorf("Lookup(3) = (%d, %v), want (3, true)", idx, ok)
	}
}

func TestBuildInfersSetIdSortedWithDuplicates(t *testing.T) {
	// Row r's first occurrence of a value must land at storage index == the
	// value itself, so each run's length determines the next distinct value:
	// two 0s (rows 0-1) push the next value to 2 (row 2), one 2 pushes the
	// next to 3 (rows 3-4).
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "parent"})
	for _, v := range []uint32{0, 0, 2, 3, 3} {
		b.PushNonNull(c, column.Uint32Value(v))
	}

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	col := df.Columns[0]
	if col.Sort != dftype.SetIdSorted {
		t.Errorf("Sort = %v, want SetIdSorted", col.Sort)
	}
	if col.Duplicate != dftype.HasDuplicates {
		t.Errorf("Duplicate = %v, want HasDuplicates", col.Duplicate)
	}
}

func TestBuildAppendsAutoIDColumn(t *testing.T) {
	b := NewBuilder(strpool.New())
	c := b.AddColumn(ColumnSpec{Name: "v"})
	b.PushNonNull(c, column.Uint32Value(1))
	b.PushNonNull(c, column.Uint32Value(2))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	idx := df.ColumnIndex(column.AutoIdColumnName)
	if idx == -1 {
		t.Fatalf("expected %s column", column.AutoIdColumnName)
	}
	if got := df.GetCell(1, idx).AsUint32(); got != 1 {
		t.Errorf("GetCell(1, autoID) = %d, want 1", got)
	}
	if !df.Finalized {
		t.Errorf("expected Build to finalize the dataframe")
	}
}

func TestStringColumnInfersTypeAndInternsZero(t *testing.T) {
	pool := strpool.New()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "s"})
	b.PushPlaceholder(c, 1)
	b.PushNonNull(c, column.StringValue(pool.Intern("hello")))

	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if got := df.Columns[0].Storage.Type; got != dftype.String {
		t.Errorf("Storage.Type = %v, want String", got)
	}
	gotID := df.GetCell(0, 0).AsStringId()
	if pool.Get(gotID) != "" {
		t.Errorf("GetCell(0) = %q, want empty string", pool.Get(gotID))
	}
}
