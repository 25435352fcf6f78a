package tree

import (
	"math"
	"testing"

	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/planner"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// buildTestTree constructs a 5-row tree:
//
//	0 (root)        4 (root)
//	├── 1
//	│   └── 3
//	└── 2
func buildTestTree(t *testing.T) *column.Dataframe {
	t.Helper()
	pool := strpool.New()
	id := column.NewNonNullColumn("id", column.NewUint32Storage())
	parent := &column.Column{
		Name:    "parent",
		Storage: column.NewUint32Storage(),
		Null:    column.NewSparseNullWithPopcount(0, dftype.SparseNullWithPopcountAlways),
	}
	value := column.NewNonNullColumn("value", column.NewUint32Storage())
	df := column.New(pool, []*column.Column{id, parent, value})

	rows := []struct {
		id, value uint32
		parent    *uint32
	}{
		{0, 100, nil},
		{1, 101, u32ptr(0)},
		{2, 102, u32ptr(0)},
		{3, 103, u32ptr(1)},
		{4, 104, nil},
	}
	for _, r := range rows {
		pv := column.NullValue()
		if r.parent != nil {
			pv = column.Uint32Value(*r.parent)
		}
		if err := df.Insert(column.Uint32Value(r.id), pv, column.Uint32Value(r.value)); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}
	df.Finalize()
	return df
}

func u32ptr(v uint32) *uint32 { return &v }

func TestChildToParentNormalizesNulls(t *testing.T) {
	tr, err := New(buildTestTree(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	want := []uint32{math.MaxUint32, 0, 0, 1, math.MaxUint32}
	got := tr.ChildToParent()
	if len(got) != len(want) {
		t.Fatalf("ChildToParent() len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ChildToParent()[%d] = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestParentToChildBuildsCSRAndRoots(t *testing.T) {
	tr, err := New(buildTestTree(t))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	offsets, children, roots := tr.ParentToChild()

	wantRoots := []uint32{0, 4}
	if len(roots) != len(wantRoots) {
		t.Fatalf("Roots = %v, want %v", roots, wantRoots)
	}
	for i := range wantRoots {
		if roots[i] != wantRoots[i] {
			t.Errorf("Roots[%d] = %d, want %d", i, roots[i], wantRoots[i])
		}
	}

	childrenOf := func(node uint32) []uint32 { return children[offsets[node]:offsets[node+1]] }
	assertChildren := func(node uint32, want []uint32) {
		got := childrenOf(node)
		if len(got) != len(want) {
			t.Fatalf("children of %d = %v, want %v", node, got, want)
		}
		for i := range want {
			if got[i] != want[i] {
				t.Errorf("children of %d [%d] = %d, want %d", node, i, got[i], want[i])
			}
		}
	}
	assertChildren(0, []uint32{1, 2})
	assertChildren(1, []uint32{3})
	assertChildren(2, nil)
	assertChildren(3, nil)
	assertChildren(4, nil)
}

// constFetcher resolves every filter value slot to the same int64, enough
// for the single non-list integer filters these tests compile.
type constFetcher struct{ v int64 }

func (f constFetcher) GetValueType(i int) interp.ValueKind  { return interp.KindInt64 }
func (f constFetcher) GetInt64Value(i int) int64            { return f.v }
func (f constFetcher) GetDoubleValue(i int) float64          { return float64(f.v) }
func (f constFetcher) GetStringValue(i int) string           { return "" }
func (f constFetcher) IteratorInit(i int) bool                { return true }
func (f constFetcher) IteratorNext(i int) bool                { return false }

func TestFilterReparentDropsNodeAndReparentsChild(t *testing.T) {
	df := buildTestTree(t)
	tr, err := New(df)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	// Drop row 1 (id=1); its child row 3 must reparent to row 0, row 1's
	// nearest surviving ancestor.
	filters := []planner.FilterSpec{{Column: 0, Op: dftype.Ne, ValueSlot: 0}}
	out, err := tr.FilterReparent(filters, constFetcher{v: 1}, planner.DefaultOptions())
	if err != nil {
		t.Fatalf("FilterReparent: %v", err)
	}
	if out.RowCount != 4 {
		t.Fatalf("RowCount = %d, want 4", out.RowCount)
	}

	outTree, err := New(out)
	if err != nil {
		t.Fatalf("New(out): %v", err)
	}
	ctp := outTree.ChildToParent()

	// Row order is preserved for kept rows: old [0,2,3,4] -> new [0,1,2,3].
	// Row 3 (id=3) is now at new index 2; its parent should be row 0 (new
	// index 0), not the dropped row 1.
	idCol := out.ColumnIndex("id")
	for newRow := 0; newRow < out.RowCount; newRow++ {
		id := out.GetCell(newRow, idCol).AsUint32()
		if id != 3 {
			continue
		}
		if ctp[newRow] != 0 {
			t.Errorf("reparented row 3's new parent = %d, want 0 (new index of row 0)", ctp[newRow])
		}
	}
}
