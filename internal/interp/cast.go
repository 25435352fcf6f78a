package interp

import (
	"math"

	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// directionalOutOfRange maps an out-of-range integer cast to the verdict
// the comparison must produce, given which side of the representable range
// the value fell on. Eq can never hold against an out-of-range constant;
// Ne always holds; Lt/Le/Gt/Ge trivially resolve in the direction the
// out-of-range value implies.
func directionalOutOfRange(op dftype.Op, below bool) bytecode.CastValidity {
	switch op {
	case dftype.Eq:
		return bytecode.NoneMatch
	case dftype.Ne:
		return bytecode.AllMatch
	case dftype.Lt, dftype.Le:
		if below {
			return bytecode.NoneMatch
		}
		return bytecode.AllMatch
	case dftype.Gt, dftype.Ge:
		if below {
			return bytecode.AllMatch
		}
		return bytecode.NoneMatch
	default:
		return bytecode.NoneMatch
	}
}

// nonIntegralDirection resolves a non-integral double compared to an
// integer column: Eq can never hold, Ne always holds, and Lt/Le/Gt/Ge are
// rewritten against the floor/ceil of the double so the inequality keeps
// its direction.
func nonIntegralDirection(v float64, op dftype.Op) (bound int64, boundOp dftype.Op, result bytecode.CastValidity, resolved bool) {
	switch op {
	case dftype.Eq:
		return 0, 0, bytecode.NoneMatch, true
	case dftype.Ne:
		return 0, 0, bytecode.AllMatch, true
	case dftype.Lt, dftype.Le:
		return int64(math.Floor(v)), dftype.Le, bytecode.Valid, false
	case dftype.Gt, dftype.Ge:
		return int64(math.Ceil(v)), dftype.Ge, bytecode.Valid, false
	default:
		return 0, 0, bytecode.NoneMatch, true
	}
}

func int64Bounds(t dftype.StorageType) (lo, hi int64) {
	switch t {
	case dftype.Uint32, dftype.Id:
		return 0, int64(math.MaxUint32)
	case dftype.Int32:
		return math.MinInt32, math.MaxInt32
	case dftype.Int64:
		return math.MinInt64, math.MaxInt64
	default:
		return 0, 0
	}
}

func makeIntValue(t dftype.StorageType, v int64) column.Value {
	switch t {
	case dftype.Uint32, dftype.Id:
		return column.Uint32Value(uint32(v))
	case dftype.Int32:
		return column.Int32Value(int32(v))
	case dftype.Int64:
		return column.Int64Value(v)
	default:
		return column.NullValue()
	}
}

// castInt64 converts an int64 filter value to target, applying the clamp /
// directional-AllMatch-NoneMatch rules for out-of-range inputs.
func castInt64(v int64, target dftype.StorageType, op dftype.Op) bytecode.CastResult {
	if target == dftype.Double {
		d := float64(v)
		if int64(d) != v {
			switch op {
			case dftype.Eq:
				return bytecode.CastResult{Validity: bytecode.NoneMatch}
			case dftype.Ne:
				return bytecode.CastResult{Validity: bytecode.AllMatch}
			case dftype.Lt, dftype.Le:
				if d < float64(v) {
					d = math.Nextafter(d, math.Inf(1))
				}
			case dftype.Gt, dftype.Ge:
				if d > float64(v) {
					d = math.Nextafter(d, math.Inf(-1))
				}
			}
		}
		return bytecode.CastResult{Validity: bytecode.Valid, Value: column.DoubleValue(d)}
	}
	lo, hi := int64Bounds(target)
	if v < lo {
		return bytecode.CastResult{Validity: directionalOutOfRange(op, true)}
	}
	if v > hi {
		return bytecode.CastResult{Validity: directionalOutOfRange(op, false)}
	}
	return bytecode.CastResult{Validity: bytecode.Valid, Value: makeIntValue(target, v)}
}

// castDouble converts a double filter value to an integer target type,
// handling NaN, non-integral values and out-of-range integral values.
func castDouble(v float64, target dftype.StorageType, op dftype.Op) bytecode.CastResult {
	if target == dftype.Double {
		return bytecode.CastResult{Validity: bytecode.Valid, Value: column.DoubleValue(v)}
	}
	if math.IsNaN(v) {
		return bytecode.CastResult{Validity: bytecode.NoneMatch}
	}
	if v != math.Trunc(v) {
		bound, boundOp, result, resolved := nonIntegralDirection(v, op)
		if resolved {
			return bytecode.CastResult{Validity: result}
		}
		return castInt64InRangeOrDirectional(bound, target, boundOp)
	}
	lo, hi := int64Bounds(target)
	iv := int64(v)
	if v < float64(lo) {
		return bytecode.CastResult{Validity: directionalOutOfRange(op, true)}
	}
	// float64(MaxInt64) rounds up to 2^63, which is itself out of range.
	if v > float64(hi) || (target == dftype.Int64 && v >= math.MaxInt64) {
		return bytecode.CastResult{Validity: directionalOutOfRange(op, false)}
	}
	return bytecode.CastResult{Validity: bytecode.Valid, Value: makeIntValue(target, iv)}
}

func castInt64InRangeOrDirectional(v int64, target dftype.StorageType, op dftype.Op) bytecode.CastResult {
	lo, hi := int64Bounds(target)
	if v < lo {
		return bytecode.CastResult{Validity: directionalOutOfRange(op, true)}
	}
	if v > hi {
		return bytecode.CastResult{Validity: directionalOutOfRange(op, false)}
	}
	return bytecode.CastResult{Validity: bytecode.Valid, Value: makeIntValue(target, v)}
}

// castStringAgainstNumeric implements "string input against numeric column"
// per the documented op table; no value is produced since no conversion is
// meaningful.
func castStringAgainstNumeric(op dftype.Op) bytecode.CastResult {
	switch op {
	case dftype.Eq, dftype.Ge, dftype.Gt:
		return bytecode.CastResult{Validity: bytecode.NoneMatch}
	default: // Ne, Le, Lt
		return bytecode.CastResult{Validity: bytecode.AllMatch}
	}
}

// castNumericAgainstString implements "numeric input against string column".
func castNumericAgainstString(op dftype.Op) bytecode.CastResult {
	switch op {
	case dftype.Ge, dftype.Gt, dftype.Ne:
		return bytecode.CastResult{Validity: bytecode.AllMatch}
	default: // Eq, Le, Lt, Glob, Regex
		return bytecode.CastResult{Validity: bytecode.NoneMatch}
	}
}

// CastFilterValue reads the slot-th client filter value and converts it to
// target under op, following the full cast/comparison rule table below.
// String inequality, Glob and Regex results
// carry the raw input string so the interpreter can compare interned views
// directly, since a pool id ordering has no relation to lexicographic order.
func CastFilterValue(f ValueFetcher, pool *strpool.Pool, slot int, target dftype.StorageType, op dftype.Op) bytecode.CastResult {
	kind := f.GetValueType(slot)
	if kind == KindNull {
		return bytecode.CastResult{Validity: bytecode.NoneMatch}
	}
	if target == dftype.String {
		if kind != KindString {
			return castNumericAgainstString(op)
		}
		s := f.GetStringValue(slot)
		if id, ok := pool.GetId(s); ok {
			return bytecode.CastResult{Validity: bytecode.Valid, Value: column.StringValue(id), Str: s}
		}
		switch op {
		case dftype.Eq:
			return bytecode.CastResult{Validity: bytecode.NoneMatch}
		case dftype.Glob, dftype.Regex:
			// Patterns are matched against each value's text, so an
			// un-interned pattern can still match; only a wildcard-free Glob
			// reduces to an id equality that cannot hold.
			if op == dftype.Glob && isLiteralGlob(s) {
				return bytecode.CastResult{Validity: bytecode.NoneMatch}
			}
			return bytecode.CastResult{Validity: bytecode.Valid, Str: s}
		case dftype.Ne:
			return bytecode.CastResult{Validity: bytecode.AllMatch}
		default: // Lt, Le, Gt, Ge: compare by raw view, id is meaningless.
			return bytecode.CastResult{Validity: bytecode.Valid, Str: s}
		}
	}
	switch kind {
	case KindString:
		return castStringAgainstNumeric(op)
	case KindInt64:
		return castInt64(f.GetInt64Value(slot), target, op)
	case KindDouble:
		return castDouble(f.GetDoubleValue(slot), target, op)
	default:
		return bytecode.CastResult{Validity: bytecode.NoneMatch}
	}
}

// CastFilterValueList implements the IN-clause variant: iterate the slot's
// value list, casting each element with Eq semantics (membership is
// equality); any AllMatch element promotes the whole list, and an empty
// survivor set is NoneMatch. Only Eq is permitted for String targets.
func CastFilterValueList(f ValueFetcher, pool *strpool.Pool, slot int, target dftype.StorageType) bytecode.CastListResult {
	if !f.IteratorInit(slot) {
		return bytecode.CastListResult{Validity: bytecode.NoneMatch}
	}
	var values []column.Value
	for {
		r := CastFilterValue(f, pool, slot, target, dftype.Eq)
		switch r.Validity {
		case bytecode.AllMatch:
			return bytecode.CastListResult{Validity: bytecode.AllMatch}
		case bytecode.Valid:
			values = append(values, r.Value)
		}
		if !f.IteratorNext(slot) {
			break
		}
	}
	if len(values) == 0 {
		return bytecode.CastListResult{Validity: bytecode.NoneMatch}
	}
	return bytecode.CastListResult{Validity: bytecode.Valid, Values: values}
}
