// Package dftype defines the closed tag sets shared by every layer of the
// dataframe engine: storage element type, nullability representation,
// sortedness, duplicate state and comparison operator. These are erased to
// small integers so they can be packed into bytecode option fields and used
// to compute opcode table indices.
package dftype

// StorageType is the element type of a column's storage buffer.
type StorageType uint8

const (
	// Id columns carry no storage; the value of row i is i.
	Id StorageType = iota
	Uint32
	Int32
	Int64
	Double
	String
	storageTypeCount
)

// Count is the number of StorageType members, used to size opcode tables
// indexed by type combinations.
const StorageTypeCount = int(storageTypeCount)

func (t StorageType) String() string {
	switch t {
	case Id:
		return "Id"
	case Uint32:
		return "Uint32"
	case Int32:
		return "Int32"
	case Int64:
		return "Int64"
	case Double:
		return "Double"
	case String:
		return "String"
	default:
		return "Unknown"
	}
}

// Nullability describes how a column's null values are represented
// physically. The sparse variants additionally distinguish whether a
// prefix-popcount side table is maintained, and for how long.
type Nullability uint8

const (
	// NonNull columns have no null side data at all.
	NonNull Nullability = iota
	// SparseNull columns carry a bit per row but no popcount table; random
	// access via GetCell is not supported (fatal if attempted).
	SparseNull
	// SparseNullWithPopcountAlways keeps the popcount table forever, to
	// support random GetCell access at any time.
	SparseNullWithPopcountAlways
	// SparseNullWithPopcountUntilFinalization keeps the popcount table only
	// while the dataframe is mutable; Finalize clears it.
	SparseNullWithPopcountUntilFinalization
	// DenseNull columns reserve a storage slot per row regardless of null
	// state; null slots hold unspecified values.
	DenseNull
)

func (n Nullability) String() string {
	switch n {
	case NonNull:
		return "NonNull"
	case SparseNull:
		return "SparseNull"
	case SparseNullWithPopcountAlways:
		return "SparseNullWithPopcountAlways"
	case SparseNullWithPopcountUntilFinalization:
		return "SparseNullWithPopcountUntilFinalization"
	case DenseNull:
		return "DenseNull"
	default:
		return "Unknown"
	}
}

// IsSparse reports whether n is one of the sparse-null variants.
func (n Nullability) IsSparse() bool {
	return n == SparseNull || n == SparseNullWithPopcountAlways || n == SparseNullWithPopcountUntilFinalization
}

// HasPopcount reports whether n carries a popcount table right now. Callers
// finalizing a dataframe should check this before Finalize clears the
// until-finalization variant.
func (n Nullability) HasPopcount() bool {
	return n == SparseNullWithPopcountAlways || n == SparseNullWithPopcountUntilFinalization
}

// SortState describes a column's known sort order, used by the planner to
// pick sorted-range probes over linear scans.
type SortState uint8

const (
	// Unsorted carries no ordering guarantee.
	Unsorted SortState = iota
	// Sorted means values are non-decreasing.
	Sorted
	// SetIdSorted means: for each unique value v, the first occurrence is
	// at storage index v and all other occurrences are contiguous
	// immediately after it.
	SetIdSorted
	// IdSorted means value i == row index i (only valid for Id columns, or
	// Uint32 columns that happen to mirror it).
	IdSorted
)

func (s SortState) String() string {
	switch s {
	case Unsorted:
		return "Unsorted"
	case Sorted:
		return "Sorted"
	case SetIdSorted:
		return "SetIdSorted"
	case IdSorted:
		return "IdSorted"
	default:
		return "Unknown"
	}
}

// DuplicateState records whether a column contains any two equal values.
type DuplicateState uint8

const (
	HasDuplicates DuplicateState = iota
	NoDuplicates
)

func (d DuplicateState) String() string {
	if d == NoDuplicates {
		return "NoDuplicates"
	}
	return "HasDuplicates"
}

// Op is a filter comparison operator.
type Op uint8

const (
	Eq Op = iota
	Ne
	Lt
	Le
	Gt
	Ge
	Glob
	Regex
	IsNull
	IsNotNull
	In
	opCount
)

// OpCount is the number of Op members.
const OpCount = int(opCount)

func (o Op) String() string {
	switch o {
	case Eq:
		return "Eq"
	case Ne:
		return "Ne"
	case Lt:
		return "Lt"
	case Le:
		return "Le"
	case Gt:
		return "Gt"
	case Ge:
		return "Ge"
	case Glob:
		return "Glob"
	case Regex:
		return "Regex"
	case IsNull:
		return "IsNull"
	case IsNotNull:
		return "IsNotNull"
	case In:
		return "In"
	default:
		return "Unknown"
	}
}

// IsInequality reports whether o is one of Lt/Le/Gt/Ge.
func (o Op) IsInequality() bool {
	return o == Lt || o == Le || o == Gt || o == Ge
}

// SortDirection controls ascending/descending row-layout encoding.
type SortDirection uint8

const (
	Ascending SortDirection = iota
	Descending
)

// NullsPosition controls where nulls sort relative to non-null values.
type NullsPosition uint8

const (
	NullsAtStart NullsPosition = iota
	NullsAtEnd
)
