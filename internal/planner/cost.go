package planner

import (
	"math"

	"github.com/google/perfetto-dataframe/internal/bytecode"
)

// LogEst is a base-2 logarithmic cost/row-count estimate, mirroring
// SQLite's LogEst: small integer arithmetic (add to multiply, subtract to
// divide) stands in for the floating-point estimates a full optimizer
// would track, at the cost of some precision. Values are scaled by
// logEstScale so that +1 represents roughly a 3% change, which avoids
// rounding every halving straight to zero.
type LogEst int32

const logEstScale = 10

// logEstFromRowCount converts a concrete row count into a LogEst.
func logEstFromRowCount(n int64) LogEst {
	if n <= 1 {
		return 0
	}
	return LogEst(math.Log2(float64(n)) * logEstScale)
}

// rowCount converts a LogEst back to an approximate row count, floored at 1.
func (e LogEst) rowCount() int64 {
	n := int64(math.Exp2(float64(e) / logEstScale))
	if n < 1 {
		return 1
	}
	return n
}

// Named cost/selectivity constants, kept as small package-level LogEst
// values rather than inline magic numbers.
const (
	costFullScan      LogEst = 30 * logEstScale / 10 // one comparison per row, base cost
	costIndexSeek     LogEst = 10 * logEstScale / 10 // O(log n) binary search
	costLinearFilter  LogEst = 10 * logEstScale / 10
	costSortPerRow    LogEst = 5 * logEstScale / 10 // amortized per-row cost inside an O(n log n) sort

	selectivityEqUnique LogEst = 0                        // exactly one row
	selectivityEqHalf   LogEst = -10 * logEstScale / 10    // halve, divided further by log2(n) below
	selectivityRange    LogEst = -10 * logEstScale / 10    // halve the candidate set
)

// estimate accumulates the planner's running row-count and cost estimates
// as bytecode is emitted: a small struct threading estimates through each
// phase, without a full cost-comparison search over alternative access
// paths, since this planner's phase ordering is fixed rather than chosen
// by search.
type estimate struct {
	rowCount  int64 // current estimated candidate row count
	maxRow    uint32
	cost      int64
}

func newEstimate(rowCount int64) *estimate {
	return &estimate{rowCount: rowCount, maxRow: uint32(rowCount)}
}

// applyEquality narrows the estimate for an equality filter. noDuplicates
// means the target column is known to hold at most one matching row.
func (e *estimate) applyEquality(noDuplicates bool) {
	if noDuplicates {
		e.rowCount = 1
		e.maxRow = 1
		return
	}
	logN := math.Log2(math.Max(float64(e.rowCount), 2))
	next := int64(float64(e.rowCount) / 2 / logN)
	if next < 1 {
		next = 1
	}
	e.rowCount = next
	if uint32(e.rowCount) < e.maxRow {
		e.maxRow = uint32(e.rowCount)
	}
}

// applyInequality narrows the estimate for a range filter (Lt/Le/Gt/Ge).
func (e *estimate) applyInequality() {
	e.rowCount = maxInt64(e.rowCount/2, 1)
	if uint32(e.rowCount) < e.maxRow {
		e.maxRow = uint32(e.rowCount)
	}
}

// applyLimitOffset applies an exact limit/offset to both estimates.
func (e *estimate) applyLimitOffset(offset, limit uint32, hasLimit bool) {
	remaining := e.rowCount - int64(offset)
	if remaining < 0 {
		remaining = 0
	}
	if hasLimit && int64(limit) < remaining {
		remaining = int64(limit)
	}
	e.rowCount = remaining
	if uint32(remaining) < e.maxRow {
		e.maxRow = uint32(remaining)
	}
}

// accrue adds op's per-row-scaled cost at the estimate's current row count.
func (e *estimate) accrue(op bytecode.Option) {
	n := maxInt64(e.rowCount, 1)
	switch op.Cost() {
	case bytecode.FixedCost:
		e.cost++
	case bytecode.LogPerRowCost:
		e.cost += int64(math.Log2(float64(maxInt64(n, 2)))) + 1
	case bytecode.LogLinearPerRowCost:
		e.cost += n * (int64(math.Log2(float64(maxInt64(n, 2))))+ 1)
	default: // LinearPerRowCost, PostOperationLinearPerRowCost
		e.cost += n
	}
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}
	return b
}
