// Package planner compiles a column.Dataframe query (filters, distinct,
// sort, limit/offset, output projection) into a queryplan.QueryPlan: a
// sequence of bytecode instructions plus the register-init descriptors a
// Cursor needs to run them. It applies LogEst-based access-path selection
// to the dataframe engine's filter/sort/distinct vocabulary, the same
// shape of cost model SQL query planners apply to a WHERE clause.
package planner

import (
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/dftype"
)

// FilterSpec is one constraint on a column: `column Op value[s]`. ValueSlot
// identifies which client-supplied value the cursor's ValueFetcher will
// resolve at Execute time; the planner never sees concrete values, only
// their slot numbers and the column/op they apply to.
type FilterSpec struct {
	Column    int
	Op        dftype.Op
	ValueSlot bytecode.FilterValueSlot
	IsList    bool // true for In, where ValueSlot resolves to a value list
}

// DistinctSpec names the columns a DISTINCT clause dedupes on. A nil or
// empty Columns means no distinct pass is compiled.
type DistinctSpec struct {
	Columns []int
}

// SortSpec is one ORDER BY key.
type SortSpec struct {
	Column    int
	Direction dftype.SortDirection
	Nulls     dftype.NullsPosition
}

// LimitSpec bounds output rows. HasLimit distinguishes "no limit, offset
// only" (Limit is meaningless) from "limit 0" (zero output rows).
type LimitSpec struct {
	Offset   uint32
	Limit    uint32
	HasLimit bool
}

// Options tunes planner heuristics that have no single correct value. Zero
// value is DefaultOptions().
type Options struct {
	// ScratchInitialCapacity is not read by PlanQuery; scratch slots are
	// sized from the dataframe's row count.
	ScratchInitialCapacity uint32
}

// DefaultOptions returns the planner's default tuning.
func DefaultOptions() Options {
	return Options{ScratchInitialCapacity: 64}
}
