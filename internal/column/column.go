package column

import "github.com/google/perfetto-dataframe/internal/dftype"

// Column bundles a storage buffer with its null representation, known
// sortedness/duplicate state, optional specialized storage, and a local
// mutation counter (bumped by SetCell, contributing to the dataframe-wide
// mutation counter cursors use to detect stale cached pointers).
type Column struct {
	Name           string
	Storage        Storage
	Null           NullStorage
	Sort           dftype.SortState
	Duplicate      dftype.DuplicateState
	Specialized    SpecializedStorage
	mutationCount  uint64
}

// Mutations returns this column's local mutation count.
func (c *Column) Mutations() uint64 { return c.mutationCount }

func (c *Column) bumpMutations() { c.mutationCount++ }

// NewNonNullColumn wraps storage with NonNull nullability and default
// Unsorted/HasDuplicates tags; the ad-hoc builder refines these at Build().
func NewNonNullColumn(name string, s Storage) *Column {
	return &Column{Name: name, Storage: s, Null: NewNonNull(), Sort: dftype.Unsorted, Duplicate: dftype.HasDuplicates}
}

// Index is an external sort order over a subset of a dataframe's columns: a
// shared permutation vector of row indices plus the column indices it was
// built from. Indexes may only be attached to finalized dataframes.
type Index struct {
	Columns     []int
	Permutation []uint32
}

// Len returns the number of rows the index covers.
func (idx *Index) Len() int { return len(idx.Permutation) }

// CoversPrefix reports how many leading columns of cols this index's column
// list matches, used by the planner's index-match phase to find the index
// covering the longest prefix of unhandled equality filters.
func (idx *Index) CoversPrefix(cols []int) int {
	n := 0
	for n < len(idx.Columns) && n < len(cols) && idx.Columns[n] == cols[n] {
		n++
	}
	return n
}
