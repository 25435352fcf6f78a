// Package interp implements the bytecode interpreter: a single-threaded
// dispatch loop over the opcode set defined in internal/bytecode, the
// ValueFetcher contract clients implement to supply filter values, and the
// row-layout byte encoding used by sort and distinct.
package interp

// ValueKind is the type tag a ValueFetcher reports for a filter value.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindInt64
	KindDouble
	KindString
)

// ValueFetcher supplies client filter values to CastFilterValue[List]
// opcodes. Implementations own their own per-slot iterator state for the
// List variant: IteratorInit(i) resets iteration over slot i's value list
// and reports whether it is non-empty; IteratorNext(i) advances to the next
// element and reports whether one exists. GetValueType/GetInt64Value/
// GetDoubleValue/GetStringValue always report the *current* value at slot
// i — either the single scalar (non-list case) or the current list element
// after IteratorInit/IteratorNext.
type ValueFetcher interface {
	GetValueType(i int) ValueKind
	GetInt64Value(i int) int64
	GetDoubleValue(i int) float64
	GetStringValue(i int) string
	IteratorInit(i int) bool
	IteratorNext(i int) bool
}
