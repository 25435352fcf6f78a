// Package tree implements a tree transformer: a view over a dataframe whose
// column 0 is an id column and column 1 a nullable parent-id column. It
// normalizes the parent-id column to a flat row-index buffer, lazily builds
// child-to-parent and parent-to-child structures by driving the bytecode VM
// the same way the planner and cursor do, and supports filter-with-reparent
// by running the planner as a subroutine to find which rows survive a
// filter, then re-parenting the children of a removed node to its nearest
// surviving ancestor — a DFS that tracks the nearest ancestor as it
// descends, generalized from a fixed two-child tree to an arbitrary-arity
// logical tree.
package tree

import (
	"math"

	"github.com/google/perfetto-dataframe/internal/adhoc"
	"github.com/google/perfetto-dataframe/internal/bitvec"
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/logging"
	"github.com/google/perfetto-dataframe/internal/planner"
	"github.com/google/perfetto-dataframe/internal/queryplan"
)

// IDColumn and ParentColumn are the fixed column positions a tree-shaped
// dataframe uses: an id column at index 0, a nullable parent-id column at
// index 1.
const (
	IDColumn     = 0
	ParentColumn = 1
)

// Tree wraps a finalized dataframe whose first two columns form a parent
// link, caching the on-demand child-to-parent and parent-to-child
// structures the bytecode VM materializes for it.
type Tree struct {
	df      *column.Dataframe
	parents []uint32 // normalized: parents[i] is i's parent row, or math.MaxUint32 for a root

	structure *bytecode.TreeStructure // cached child-to-parent / parent-to-child
}

// New normalizes df's parent-id column into a flat row-index buffer with a
// math.MaxUint32 sentinel for roots. df must be finalized and carry at
// least two columns.
func New(df *column.Dataframe) (*Tree, error) {
	if !df.Finalized {
		dferrors.Fatalf("tree: New requires a finalized dataframe")
	}
	if len(df.Columns) < 2 {
		dferrors.Fatalf("tree: New requires an id column and a parent-id column")
	}
	parents := make([]uint32, df.RowCount)
	for i := 0; i < df.RowCount; i++ {
		v := df.GetCell(i, ParentColumn)
		if v.IsNull() {
			parents[i] = math.MaxUint32
			continue
		}
		parents[i] = v.AsUint32()
	}
	return &Tree{df: df, parents: parents}, nil
}

// ChildToParent returns, for each row i, its parent row or math.MaxUint32
// for a root. Materialized once via MakeChildToParentTreeStructure, the
// same opcode a tree-aware plan would emit, then cached.
func (t *Tree) ChildToParent() []uint32 {
	t.ensureChildToParent()
	return t.structure.ChildToParent
}

// ParentToChild returns the CSR view: row r's children are
// Children[Offsets[r]:Offsets[r+1]]; Roots lists every row with no parent.
// Materialized once via MakeParentToChildTreeStructure, then cached.
func (t *Tree) ParentToChild() (offsets, children, roots []uint32) {
	t.ensureChildToParent()
	if t.structure.Offsets == nil {
		t.runProgram(bytecode.MakeMakeParentToChildTreeStructure(bytecode.MakeParentToChildTreeStructureArgs{
			ParentIds: 0, Dst: 1,
		}))
	}
	return t.structure.Offsets, t.structure.Children, t.structure.Roots
}

func (t *Tree) ensureChildToParent() {
	if t.structure != nil && t.structure.ChildToParent != nil {
		return
	}
	t.runProgram(bytecode.MakeMakeChildToParentTreeStructure(bytecode.MakeChildToParentTreeStructureArgs{
		ParentIds: 0, Dst: 1,
	}))
}

// runProgram executes a single tree opcode against a two-register file
// seeded with the normalized parent buffer at r0 and whatever TreeStructure
// has already been materialized at r1 (both tree opcodes merge into an
// existing TreeStructure register rather than overwrite it, so the second
// call reuses the first's work).
func (t *Tree) runProgram(bc bytecode.Bytecode) {
	slab := bitvec.NewSlab[uint32](len(t.parents))
	copy(slab.Data(), t.parents)

	regs := make([]bytecode.RegValue, 2)
	regs[0] = bytecode.NewSlabU32Reg(slab)
	if t.structure != nil {
		regs[1] = bytecode.NewTreeStructureReg(t.structure)
	}
	interp.Execute([]bytecode.Bytecode{bc}, regs, nil, nil)
	t.structure = regs[1].TreeStructure()
}

// FilterReparent compiles filters against the tree's base dataframe via the
// planner, reusing the same bytecode VM an ordinary query runs on, keeps the
// rows that match, and re-parents the children of every removed row to its
// nearest surviving ancestor. Returns a fresh, finalized dataframe; the
// receiver's own dataframe is untouched.
func (t *Tree) FilterReparent(filters []planner.FilterSpec, fetcher interp.ValueFetcher, opts planner.Options) (*column.Dataframe, error) {
	plan, err := planner.PlanQuery(t.df, filters, planner.DistinctSpec{}, nil, nil, 0, opts)
	if err != nil {
		return nil, err
	}
	cur := queryplan.PrepareCursor(plan, t.df)
	cur.Execute(fetcher)

	keep := bitvec.NewBitVector(t.df.RowCount)
	for !cur.Eof() {
		keep.Set(int(cur.RowIndex()))
		cur.Next()
	}

	offsets, children, roots := t.ParentToChild()
	newParent := reparentDFS(keep, offsets, children, roots)

	return t.rebuild(keep, newParent)
}

// reparentDFS is the direct Go expression of the FilterTree opcode's DFS:
// a kept node's new parent is the nearest surviving ancestor seen on the
// walk down to it (math.MaxUint32 if none survived); a removed node passes
// its own incoming ancestor through unchanged to its children.
func reparentDFS(keep *bitvec.BitVector, offsets, children, roots []uint32) []uint32 {
	n := len(offsets) - 1
	if n < 0 {
		n = 0
	}
	newParent := make([]uint32, n)
	childrenOf := func(node uint32) []uint32 {
		if node == math.MaxUint32 {
			return roots
		}
		return children[offsets[node]:offsets[node+1]]
	}
	var dfs func(node, ancestor uint32)
	dfs = func(node, ancestor uint32) {
		newParent[node] = ancestor
		next := ancestor
		if keep.IsSet(int(node)) {
			next = node
		}
		for _, c := range childrenOf(node) {
			dfs(c, next)
		}
	}
	for _, r := range roots {
		dfs(r, math.MaxUint32)
	}
	return newParent
}

// rebuild constructs the filtered, reparented dataframe: every kept row
// survives with its other columns unchanged and its parent-id column
// rewritten to the kept position of its new parent (null for a root).
// Implemented via the ad-hoc builder rather than Dataframe.SelectRows so
// the source dataframe is left untouched for other readers.
func (t *Tree) rebuild(keep *bitvec.BitVector, newParent []uint32) (*column.Dataframe, error) {
	var keptRows []uint32
	oldToNew := make(map[uint32]uint32, t.df.RowCount)
	for i := 0; i < t.df.RowCount; i++ {
		if keep.IsSet(i) {
			oldToNew[uint32(i)] = uint32(len(keptRows))
			keptRows = append(keptRows, uint32(i))
		}
	}

	b := adhoc.NewBuilder(t.df.Pool)
	cols := make([]int, len(t.df.Columns))
	for i, c := range t.df.Columns {
		cols[i] = b.AddColumn(adhocSpecFor(c))
		if c.Null.Kind != dftype.NonNull {
			b.SetNullability(cols[i], c.Null.Kind)
		}
	}

	for _, oldRow := range keptRows {
		for colIdx, c := range t.df.Columns {
			if colIdx == ParentColumn {
				np := newParent[oldRow]
				if np == math.MaxUint32 {
					b.PushNull(cols[colIdx])
				} else {
					b.PushNonNull(cols[colIdx], column.Uint32Value(oldToNew[np]))
				}
				continue
			}
			v := t.df.GetCell(int(oldRow), colIdx)
			if v.IsNull() {
				b.PushNull(cols[colIdx])
			} else if c.Storage.Type == dftype.Id {
				// An Id column's logical value is its row index; carry the
				// pre-filter row forward as a plain snapshot value rather
				// than reinterpreting it as a fresh identity.
				b.PushNonNull(cols[colIdx], column.Uint32Value(v.AsUint32()))
			} else {
				b.PushNonNull(cols[colIdx], v)
			}
		}
	}

	out, err := b.Build()
	if err != nil {
		return nil, err
	}
	logging.Debug("tree filtered and reparented", "kept_rows", len(keptRows), "total_rows", t.df.RowCount)
	return out, nil
}

// adhocSpecFor pins the rebuilt column's type to the source column's
// storage type so the ad-hoc builder's type inference can't narrow or
// widen it differently the second time around. An Id column is rebuilt as
// a plain Uint32 snapshot — adhoc.Builder reserves real Id storage for the
// identity column it appends automatically at Build.
func adhocSpecFor(c *column.Column) adhoc.ColumnSpec {
	t := c.Storage.Type
	if t == dftype.Id {
		t = dftype.Uint32
	}
	return adhoc.ColumnSpec{Name: c.Name, Type: &t}
}
