// Package dataframe is the public surface of the columnar query engine: a
// Dataframe holds typed, optionally-null columns and compiles filter/sort/
// distinct/limit queries down to the bytecode VM in internal/interp rather
// than interpreting them directly. Everything under internal/ is wired
// together here behind a small set of free functions and one or two
// structs, rather than exposing the internal packages directly.
package dataframe

import (
	"context"

	"github.com/google/perfetto-dataframe/internal/adhoc"
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/cursorpool"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/interp"
	"github.com/google/perfetto-dataframe/internal/planner"
	"github.com/google/perfetto-dataframe/internal/queryplan"
	"github.com/google/perfetto-dataframe/internal/strpool"
	"github.com/google/perfetto-dataframe/internal/tree"
)

// Dataframe is a set of columns sharing a row count. It embeds
// column.Dataframe so every mutation and introspection method (Insert,
// GetCell, SetCell, Finalize, SelectRows, AddIndex, ...) is available
// directly on the value returned by New; Query and NewTree add the
// query-compilation surface column.Dataframe doesn't carry itself.
type Dataframe struct {
	*column.Dataframe
}

// New wraps a set of columns into a Dataframe. Columns are typically built
// with NewBuilder rather than assembled by hand.
func New(pool *strpool.Pool, columns []*Column) *Dataframe {
	return &Dataframe{column.New(pool, columns)}
}

// Re-exported types so callers never need to import internal/* packages
// directly; they can't, since Go enforces internal/ visibility at the
// module boundary.
type (
	Column        = column.Column
	Index         = column.Index
	Value         = column.Value
	Pool          = strpool.Pool
	StorageType   = dftype.StorageType
	Nullability   = dftype.Nullability
	Op            = dftype.Op
	SortDirection = dftype.SortDirection
	NullsPosition = dftype.NullsPosition
	FilterSpec    = planner.FilterSpec
	DistinctSpec  = planner.DistinctSpec
	SortSpec      = planner.SortSpec
	LimitSpec     = planner.LimitSpec
	Options       = planner.Options
	QueryPlan     = queryplan.QueryPlan
	Cursor        = queryplan.Cursor
	ValueFetcher  = interp.ValueFetcher
	ValueKind     = interp.ValueKind
	Builder       = adhoc.Builder
	ColumnSpec    = adhoc.ColumnSpec
	Tree          = tree.Tree
	CursorQuery   = cursorpool.Query
)

// Storage types.
const (
	IdType     = dftype.Id
	Uint32Type = dftype.Uint32
	Int32Type  = dftype.Int32
	Int64Type  = dftype.Int64
	DoubleType = dftype.Double
	StringType = dftype.String
)

// Filter operators.
const (
	Eq        = dftype.Eq
	Ne        = dftype.Ne
	Lt        = dftype.Lt
	Le        = dftype.Le
	Gt        = dftype.Gt
	Ge        = dftype.Ge
	Glob      = dftype.Glob
	Regex     = dftype.Regex
	IsNull    = dftype.IsNull
	IsNotNull = dftype.IsNotNull
	In        = dftype.In
)

// Filter value kinds a ValueFetcher reports.
const (
	KindNull   = interp.KindNull
	KindInt64  = interp.KindInt64
	KindDouble = interp.KindDouble
	KindString = interp.KindString
)

// Sort direction and null placement.
const (
	Ascending    = dftype.Ascending
	Descending   = dftype.Descending
	NullsAtStart = dftype.NullsAtStart
	NullsAtEnd   = dftype.NullsAtEnd
)

// Value constructors.
var (
	NullValue   = column.NullValue
	Uint32Value = column.Uint32Value
	Int32Value  = column.Int32Value
	Int64Value  = column.Int64Value
	DoubleValue = column.DoubleValue
	StringValue = column.StringValue
)

// NewPool returns an empty string pool. Dataframes built with NewBuilder or
// assembled by hand from Columns all share one Pool for their String
// columns' interned ids to stay comparable.
func NewPool() *Pool { return strpool.New() }

// NewBuilder returns an ad-hoc column builder interning strings into pool.
// Push values column-by-column, then Build once to get a finalized
// Dataframe with its identity column already appended.
func NewBuilder(pool *strpool.Pool) *Builder { return adhoc.NewBuilder(pool) }

// DefaultOptions returns the planner's default tuning.
func DefaultOptions() Options { return planner.DefaultOptions() }

// PlanQuery compiles a filter/distinct/sort/limit query against df into a
// QueryPlan: a sequence of bytecode instructions plus the register-init
// descriptors a Cursor needs to run them. colsUsed is a bitmask of the
// column indices the caller will read through Cursor.GetCell; columns
// outside it may be skipped by the output-shaping phase. The returned plan
// is immutable and may be Serialize()'d, cached, and PrepareCursor'd many
// times over the dataframe's lifetime, as long as the dataframe isn't
// mutated in a way that invalidates it (see column.Dataframe.SelectRows).
func PlanQuery(df *Dataframe, filters []FilterSpec, distinct DistinctSpec, sorts []SortSpec, limit *LimitSpec, colsUsed uint64, opts Options) (*QueryPlan, error) {
	return planner.PlanQuery(df.Dataframe, filters, distinct, sorts, limit, colsUsed, opts)
}

// PrepareCursor seeds a Cursor's registers from plan against df without
// running it; call Cursor.Execute to drive the interpreter once the
// caller's ValueFetcher is ready to resolve filter values.
func PrepareCursor(plan *QueryPlan, df *Dataframe) *Cursor {
	return queryplan.PrepareCursor(plan, df.Dataframe)
}

// Query plans and immediately executes filters/distinct/sorts/limit against
// df, returning a Cursor positioned at the first matching row (or already
// at Eof if nothing matched). It's the one-shot convenience path; callers
// that want to reuse a plan across many fetchers should call PlanQuery and
// PrepareCursor directly instead.
func (df *Dataframe) Query(filters []FilterSpec, distinct DistinctSpec, sorts []SortSpec, limit *LimitSpec, colsUsed uint64, opts Options, fetcher ValueFetcher) (*Cursor, error) {
	plan, err := PlanQuery(df, filters, distinct, sorts, limit, colsUsed, opts)
	if err != nil {
		return nil, err
	}
	cur := PrepareCursor(plan, df)
	cur.Execute(fetcher)
	return cur, nil
}

// NewTree views df as a parent-linked tree: column 0 must be df's identity
// column and column 1 a nullable parent-id column referencing another row's
// identity. See Tree.FilterReparent for the one transform this package
// exposes beyond plain row lookup.
func NewTree(df *Dataframe) (*Tree, error) {
	return tree.New(df.Dataframe)
}

// RunQueries executes each CursorQuery's plan against df on its own
// goroutine, returning the resulting cursors in the same order as queries.
// df must already be finalized. See cursorpool for the concurrency
// contract this relies on (no synchronization beyond read-only access).
func RunQueries(ctx context.Context, df *Dataframe, queries []CursorQuery) ([]*Cursor, error) {
	return cursorpool.RunAll(ctx, df.Dataframe, queries)
}

// Explain renders a QueryPlan's bytecode as one human-readable line per
// instruction, for tests and debugging.
func Explain(plan *QueryPlan) string {
	return interp.BytecodeToString(plan.Bytecode)
}

// DeserializePlan decodes a plan produced by QueryPlan.Serialize, for
// callers that cache a plan's wire form across process boundaries (a cache
// keyed by query shape, a persisted warm-start, ...) rather than holding
// the *QueryPlan itself.
func DeserializePlan(s string) (*QueryPlan, error) {
	return queryplan.Deserialize(s)
}

// FilterValueSlot identifies which client-supplied value (or value list,
// for In) a FilterSpec resolves against at Cursor.Execute time.
type FilterValueSlot = bytecode.FilterValueSlot
