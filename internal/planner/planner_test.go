package planner

import (
	"testing"

	"github.com/google/perfetto-dataframe/internal/adhoc"
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/queryplan"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

type constFetcher struct{ v int64 }

func (f constFetcher) GetValueType(i int) interp.ValueKind { return interp.KindInt64 }
func (f constFetcher) GetInt64Value(i int) int64           { return f.v }
func (f constFetcher) GetDoubleValue(i int) float64         { return float64(f.v) }
func (f constFetcher) GetStringValue(i int) string          { return "" }
func (f constFetcher) IteratorInit(i int) bool              { return true }
func (f constFetcher) IteratorNext(i int) bool              { return false }

func runRows(t *testing.T, df *column.Dataframe, plan *queryplan.QueryPlan, fetcher interp.ValueFetcher) []int {
	t.Helper()
	cur := queryplan.PrepareCursor(plan, df)
	cur.Execute(fetcher)
	var got []int
	for !cur.Eof() {
		got = append(got, int(cur.RowIndex()))
		cur.Next()
	}
	return got
}

func buildTwoColDF(t *testing.T) *column.Dataframe {
	t.Helper()
	b := adhoc.NewBuilder(strpool.New())
	a := b.AddColumn(adhoc.ColumnSpec{Name: "a"})
	c := b.AddColumn(adhoc.ColumnSpec{Name: "c"})
	for _, v := range []uint32{3, 1, 2, 1, 3} {
		b.PushNonNull(a, column.Uint32Value(v))
	}
	for _, v := range []uint32{10, 20, 30, 40, 50} {
		b.PushNonNull(c, column.Uint32Value(v))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return df
}

func TestPlanQueryIndexMatchEquality(t *testing.T) {
	df := buildTwoColDF(t)
	idx := df.BuildIndex([]int{0})
	if err := df.AddIndex(idx); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}

	filters := []FilterSpec{{Column: 0, Op: dftype.Eq, ValueSlot: 0}}
	plan, err := PlanQuery(df, filters, DistinctSpec{}, nil, nil, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery: %v", err)
	}
	got := runRows(t, df, plan, constFetcher{v: 1})
	want := map[int]bool{1: true, 3: true}
	if len(got) != 2 {
		t.Fatalf("rows = %v, want 2 rows with a==1", got)
	}
	for _, r := range got {
		if !want[r] {
			t.Errorf("unexpected row %d in result", r)
		}
	}
}

func TestPlanQueryWithoutIndexMatchesWithIndex(t *testing.T) {
	df := buildTwoColDF(t)
	filters := []FilterSpec{{Column: 0, Op: dftype.Eq, ValueSlot: 0}}

	planNoIdx, err := PlanQuery(df, filters, DistinctSpec{}, nil, nil, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery (no index): %v", err)
	}
	withoutIdx := runRows(t, df, planNoIdx, constFetcher{v: 3})

	idx := df.BuildIndex([]int{0})
	if err := df.AddIndex(idx); err != nil {
		t.Fatalf("AddIndex: %v", err)
	}
	planIdx, err := PlanQuery(df, filters, DistinctSpec{}, nil, nil, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery (with index): %v", err)
	}
	withIdx := runRows(t, df, planIdx, constFetcher{v: 3})

	if len(withoutIdx) != len(withIdx) {
		t.Fatalf("row count mismatch: no-index=%v index=%v", withoutIdx, withIdx)
	}
	seen := map[int]bool{}
	for _, r := range withoutIdx {
		seen[r] = true
	}
	for _, r := range withIdx {
		if !seen[r] {
			t.Errorf("row %d present with index but not without", r)
		}
	}
}

func TestPlanQueryMinMaxFastPath(t *testing.T) {
	df := buildTwoColDF(t)
	sorts := []SortSpec{{Column: 1, Direction: dftype.Ascending}}
	limit := &LimitSpec{Offset: 0, Limit: 1, HasLimit: true}
	plan, err := PlanQuery(df, nil, DistinctSpec{}, sorts, limit, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery: %v", err)
	}
	got := runRows(t, df, plan, constFetcher{})
	if len(got) != 1 || got[0] != 0 {
		t.Errorf("rows = %v, want [0] (min of column c is row 0's value 10)", got)
	}
}

func TestPlanQueryRejectsUnknownColumn(t *testing.T) {
	df := buildTwoColDF(t)
	filters := []FilterSpec{{Column: 5, Op: dftype.Eq, ValueSlot: 0}}
	if _, err := PlanQuery(df, filters, DistinctSpec{}, nil, nil, 3, DefaultOptions()); err == nil {
		t.Fatalf("expected an error for an out-of-range filter column")
	}
}

func TestPlanQuerySerializesNonEmptyBytecode(t *testing.T) {
	df := buildTwoColDF(t)
	filters := []FilterSpec{{Column: 0, Op: dftype.Ge, ValueSlot: 0}}
	plan, err := PlanQuery(df, filters, DistinctSpec{}, nil, nil, 3, DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery: %v", err)
	}
	if len(plan.Bytecode) == 0 {
		t.Fatalf("expected non-empty bytecode")
	}
	if plan.Params.RegisterCount == 0 {
		t.Fatalf("expected a non-zero register count")
	}
	_ = bytecode.FilterValueSlot(0)
}
