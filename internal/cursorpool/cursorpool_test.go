package cursorpool

import (
	"context"
	"testing"

	"github.com/google/perfetto-dataframe/internal/adhoc"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/planner"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

type constFetcher struct{ v int64 }

func (f constFetcher) GetValueType(i int) interp.ValueKind { return interp.KindInt64 }
func (f constFetcher) GetInt64Value(i int) int64           { return f.v }
func (f constFetcher) GetDoubleValue(i int) float64        { return float64(f.v) }
func (f constFetcher) GetStringValue(i int) string         { return "" }
func (f constFetcher) IteratorInit(i int) bool             { return true }
func (f constFetcher) IteratorNext(i int) bool             { return false }

func buildDF(t *testing.T) *column.Dataframe {
	t.Helper()
	b := adhoc.NewBuilder(strpool.New())
	c := b.AddColumn(adhoc.ColumnSpec{Name: "v"})
	for i := uint32(0); i < 10; i++ {
		b.PushNonNull(c, column.Uint32Value(i))
	}
	df, err := b.Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	return df
}

func planFor(t *testing.T, df *column.Dataframe, threshold int64) *Query {
	t.Helper()
	filters := []planner.FilterSpec{{Column: 0, Op: dftype.Ge, ValueSlot: 0}}
	plan, err := planner.PlanQuery(df, filters, planner.DistinctSpec{}, nil, nil, 1, planner.DefaultOptions())
	if err != nil {
		t.Fatalf("PlanQuery: %v", err)
	}
	return &Query{Plan: plan, Fetcher: constFetcher{v: threshold}}
}

func TestRunAllExecutesEachQueryIndependently(t *testing.T) {
	df := buildDF(t)
	queries := []Query{
		*planFor(t, df, 0),
		*planFor(t, df, 5),
		*planFor(t, df, 9),
	}

	cursors, err := RunAll(context.Background(), df, queries)
	if err != nil {
		t.Fatalf("RunAll: %v", err)
	}
	wantCounts := []int{10, 5, 1}
	for i, cur := range cursors {
		if got := cur.RowCount(); got != wantCounts[i] {
			t.Errorf("cursor %d RowCount() = %d, want %d", i, got, wantCounts[i])
		}
	}
}

func TestRunAllRejectsUnfinalizedDataframe(t *testing.T) {
	col := column.NewNonNullColumn("v", column.NewUint32Storage())
	df := column.New(strpool.New(), []*column.Column{col})

	defer func() {
		if recover() == nil {
			t.Fatalf("expected RunAll to panic on an unfinalized dataframe")
		}
	}()
	RunAll(context.Background(), df, nil)
}
