package dataframe

import (
	"testing"

	"github.com/google/perfetto-dataframe/internal/dftype"
)

// scalarFetcher supplies a single int64/double/string scalar per slot,
// keyed by slot index. Lists aren't exercised here (see listFetcher).
type scalarFetcher struct {
	kinds    map[int]ValueKind
	ints     map[int]int64
	doubles  map[int]float64
	strings  map[int]string
}

func newScalarFetcher() *scalarFetcher {
	return &scalarFetcher{
		kinds:   map[int]ValueKind{},
		ints:    map[int]int64{},
		doubles: map[int]float64{},
		strings: map[int]string{},
	}
}

func (f *scalarFetcher) withInt(slot int, v int64) *scalarFetcher {
	f.kinds[slot] = KindInt64
	f.ints[slot] = v
	return f
}

func (f *scalarFetcher) withString(slot int, v string) *scalarFetcher {
	f.kinds[slot] = KindString
	f.strings[slot] = v
	return f
}

func (f *scalarFetcher) GetValueType(i int) ValueKind { return f.kinds[i] }
func (f *scalarFetcher) GetInt64Value(i int) int64    { return f.ints[i] }
func (f *scalarFetcher) GetDoubleValue(i int) float64 { return f.doubles[i] }
func (f *scalarFetcher) GetStringValue(i int) string  { return f.strings[i] }
func (f *scalarFetcher) IteratorInit(i int) bool      { return true }
func (f *scalarFetcher) IteratorNext(i int) bool      { return false }

// listFetcher supplies an IN-clause value list for one slot.
type listFetcher struct {
	slot int
	vals []int64
	pos  int
}

func (f *listFetcher) GetValueType(i int) ValueKind { return KindInt64 }
func (f *listFetcher) GetInt64Value(i int) int64    { return f.vals[f.pos] }
func (f *listFetcher) GetDoubleValue(i int) float64 { return float64(f.vals[f.pos]) }
func (f *listFetcher) GetStringValue(i int) string  { return "" }
func (f *listFetcher) IteratorInit(i int) bool {
	f.pos = 0
	return len(f.vals) > 0
}
func (f *listFetcher) IteratorNext(i int) bool {
	f.pos++
	return f.pos < len(f.vals)
}

func rowIndices(t *testing.T, cur *Cursor) []int {
	t.Helper()
	var got []int
	for !cur.Eof() {
		got = append(got, int(cur.RowIndex()))
		cur.Next()
	}
	return got
}

func assertRows(t *testing.T, cur *Cursor, want []int) {
	t.Helper()
	got := rowIndices(t, cur)
	if len(got) != len(want) {
		t.Fatalf("rows = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("rows = %v, want %v", got, want)
		}
	}
}

// SetId-sorted equality: a column where equal values are contiguous and
// the first occurrence of a value sits at that value's own index.
func TestSetIdSortedEquality(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	for _, v := range []uint32{0, 0, 0, 3, 3, 5, 5, 7, 7, 7} {
		b.PushNonNull(c, Uint32Value(v))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	run := func(v int64, want []int) {
		t.Helper()
		filters := []FilterSpec{{Column: 0, Op: Eq, ValueSlot: 0}}
		cur, err := wrapped.Query(filters, DistinctSpec{}, nil, nil, 1, DefaultOptions(), newScalarFetcher().withInt(0, v))
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		assertRows(t, cur, want)
	}
	run(3, []int{3, 4})
	run(4, nil)
	run(0, []int{0, 1, 2})
}

// Sparse-null cell access: non-null rows read straight through, null rows
// report null without touching storage.
func TestSparseNullGetCell(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	typ := Int64Type
	c := b.AddColumn(ColumnSpec{Name: "c", Type: &typ})
	b.SetNullability(c, dftype.SparseNullWithPopcountAlways)
	b.PushNonNull(c, Int64Value(10))
	b.PushNull(c)
	b.PushNonNull(c, Int64Value(20))
	b.PushNull(c)
	b.PushNonNull(c, Int64Value(30))
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	cases := map[int]int64{0: 10, 2: 20, 4: 30}
	for row, want := range cases {
		v := df.GetCell(row, 0)
		if v.IsNull() {
			t.Fatalf("GetCell(%d) = null, want %d", row, want)
		}
		if got := v.AsInt64(); got != want {
			t.Errorf("GetCell(%d) = %d, want %d", row, got, want)
		}
	}
	for _, row := range []int{1, 3} {
		if !df.GetCell(row, 0).IsNull() {
			t.Errorf("GetCell(%d) expected null", row)
		}
	}
}

// Sort ascending with nulls ordered first.
func TestSortWithNulls(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c1"})
	b.SetNullability(c, dftype.SparseNullWithPopcountAlways)
	b.PushNull(c)
	b.PushNonNull(c, Uint32Value(2))
	b.PushNull(c)
	b.PushNonNull(c, Uint32Value(1))
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	sorts := []SortSpec{{Column: 0, Direction: Ascending, Nulls: NullsAtStart}}
	cur, err := wrapped.Query(nil, DistinctSpec{}, sorts, nil, 1, DefaultOptions(), newScalarFetcher())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertRows(t, cur, []int{0, 2, 3, 1})
}

// IN filter with bitvector optimization over a small-value uint32 column.
func TestInFilter(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	for _, v := range []uint32{5, 3, 7, 5, 3, 9} {
		b.PushNonNull(c, Uint32Value(v))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	filters := []FilterSpec{{Column: 0, Op: In, ValueSlot: 0, IsList: true}}
	fetcher := &listFetcher{vals: []int64{3, 5}}
	cur, err := wrapped.Query(filters, DistinctSpec{}, nil, nil, 1, DefaultOptions(), fetcher)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertRows(t, cur, []int{0, 1, 3, 4})
}

// String Glob filtering: a literal pattern resolves to an id comparison,
// a wildcard pattern falls back to per-value matching.
func TestStringGlob(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	for _, s := range []string{"foo", "bar", "foo", "baz"} {
		b.PushNonNull(c, StringValue(pool.Intern(s)))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	run := func(pattern string, want []int) {
		t.Helper()
		filters := []FilterSpec{{Column: 0, Op: Glob, ValueSlot: 0}}
		cur, err := wrapped.Query(filters, DistinctSpec{}, nil, nil, 1, DefaultOptions(), newScalarFetcher().withString(0, pattern))
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		assertRows(t, cur, want)
	}
	run("foo", []int{0, 2})
	run("ba*", []int{1, 3})
}

// Row-layout descending double sort with a null treated as coming last.
func TestRowLayoutDescendingDoubleSort(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	b.SetNullability(c, dftype.SparseNullWithPopcountAlways)
	b.PushNull(c)
	b.PushNonNull(c, DoubleValue(1.0))
	b.PushNonNull(c, DoubleValue(0.0))
	b.PushNonNull(c, DoubleValue(0.0))
	b.PushNonNull(c, DoubleValue(-1.0))
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	sorts := []SortSpec{{Column: 0, Direction: Descending, Nulls: NullsAtEnd}}
	cur, err := wrapped.Query(nil, DistinctSpec{}, sorts, nil, 1, DefaultOptions(), newScalarFetcher())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertRows(t, cur, []int{1, 2, 3, 4, 0})
}

// Null placement is independent of sort direction: ASC+NullsAtEnd and
// DESC+NullsAtStart must each still honor the requested null side, not just
// the two combinations that happen to match direction.
func TestSortNullPlacementIndependentOfDirection(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	b.SetNullability(c, dftype.SparseNullWithPopcountAlways)
	b.PushNull(c)
	b.PushNonNull(c, Uint32Value(2))
	b.PushNull(c)
	b.PushNonNull(c, Uint32Value(1))
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	t.Run("ascending nulls at end", func(t *testing.T) {
		sorts := []SortSpec{{Column: 0, Direction: Ascending, Nulls: NullsAtEnd}}
		cur, err := wrapped.Query(nil, DistinctSpec{}, sorts, nil, 1, DefaultOptions(), newScalarFetcher())
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		assertRows(t, cur, []int{3, 1, 0, 2})
	})
	t.Run("descending nulls at start", func(t *testing.T) {
		sorts := []SortSpec{{Column: 0, Direction: Descending, Nulls: NullsAtStart}}
		cur, err := wrapped.Query(nil, DistinctSpec{}, sorts, nil, 1, DefaultOptions(), newScalarFetcher())
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		assertRows(t, cur, []int{0, 2, 1, 3})
	})
}

// Offset/limit boundary behaviors: an offset past the end of the result
// set and a zero limit both yield no rows.
func TestLimitOffsetBoundaries(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	for i := uint32(0); i < 5; i++ {
		b.PushNonNull(c, Uint32Value(i))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	t.Run("offset past end", func(t *testing.T) {
		limit := &LimitSpec{Offset: 10, Limit: 5, HasLimit: true}
		cur, err := wrapped.Query(nil, DistinctSpec{}, nil, limit, 1, DefaultOptions(), newScalarFetcher())
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		assertRows(t, cur, nil)
	})
	t.Run("limit zero", func(t *testing.T) {
		limit := &LimitSpec{Offset: 0, Limit: 0, HasLimit: true}
		cur, err := wrapped.Query(nil, DistinctSpec{}, nil, limit, 1, DefaultOptions(), newScalarFetcher())
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		assertRows(t, cur, nil)
	})
}

// An empty dataframe: every plan returns zero rows.
func TestEmptyDataframeQuery(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	_ = c
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	filters := []FilterSpec{{Column: 0, Op: Ge, ValueSlot: 0}}
	cur, err := wrapped.Query(filters, DistinctSpec{}, nil, nil, 1, DefaultOptions(), newScalarFetcher().withInt(0, 0))
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if cur.RowCount() != 0 {
		t.Errorf("RowCount() = %d, want 0", cur.RowCount())
	}
}

// Plan serialization round-trips byte-for-byte.
func TestPlanSerializeRoundTrips(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	for i := uint32(0); i < 10; i++ {
		b.PushNonNull(c, Uint32Value(i))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	filters := []FilterSpec{{Column: 0, Op: Ge, ValueSlot: 0}}
	sorts := []SortSpec{{Column: 0, Direction: Descending}}
	plan, err := PlanQuery(wrapped, filters, DistinctSpec{}, sorts, nil, 1, DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery: %v", err)
	}
	encoded := plan.Serialize()
	roundTripped, err := DeserializePlan(encoded)
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	if roundTripped.Serialize() != encoded {
		t.Errorf("round-tripped plan serializes differently")
	}
}

// Distinct dedupes rows via the row-layout path.
func TestDistinct(t *testing.T) {
	pool := NewPool()
	b := NewBuilder(pool)
	c := b.AddColumn(ColumnSpec{Name: "c"})
	for _, v := range []uint32{1, 2, 1, 3, 2, 1} {
		b.PushNonNull(c, Uint32Value(v))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	wrapped := &Dataframe{df}

	distinct := DistinctSpec{Columns: []int{0}}
	cur, err := wrapped.Query(nil, distinct, nil, nil, 1, DefaultOptions(), newScalarFetcher())
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	assertRows(t, cur, []int{0, 1, 3})
}
