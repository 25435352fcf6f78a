// Package adhoc builds a column.Dataframe column-by-column instead of
// row-by-row: push values (or placeholders, for columns whose values aren't
// known yet) per column, then Build once every column has the same logical
// row count. Build infers each column's storage type, sortedness and
// duplicate state from the pushed data, downcasts integer columns to the
// narrowest lossless representation, and appends the implicit identity
// column every dataframe carries.
//
// It accumulates a column's cells the way a B-tree write path accumulates
// a row's cells before a record is serialized once, then chooses the
// column's storage representation a single time at the end.
package adhoc

import (
	"math"

	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// ColumnSpec describes one column added to a Builder.
type ColumnSpec struct {
	Name string
	// Type pins the column's storage type and disables narrowing inference.
	// Leave nil to infer the type from the first pushed value and, for
	// integer columns, downcast to the narrowest lossless width at Build.
	Type *dftype.StorageType
}

type cellKind uint8

const (
	cellPlaceholder cellKind = iota
	cellNull
	cellValue
)

type cell struct {
	kind cellKind
	v    column.Value
}

type colState struct {
	spec           ColumnSpec
	nullability    dftype.Nullability
	nullabilitySet bool
	cells          []cell
}

// Builder accumulates columns before constructing a Dataframe in one shot.
// Not safe for concurrent use.
type Builder struct {
	pool *strpool.Pool
	cols []*colState
}

// NewBuilder returns an empty Builder interning strings into pool.
func NewBuilder(pool *strpool.Pool) *Builder {
	return &Builder{pool: pool}
}

// AddColumn registers a new column and returns its index for the Push*
// calls. A column that receives at least one PushNull defaults to SparseNull
// (no popcount table), any other column to NonNull; override with
// SetNullability before Build if the column needs a different kind.
func (b *Builder) AddColumn(spec ColumnSpec) int {
	b.cols = append(b.cols, &colState{spec: spec})
	return len(b.cols) - 1
}

// SetNullability overrides the default SparseNull representation Build picks
// for a column that ever receives a null push.
func (b *Builder) SetNullability(col int, kind dftype.Nullability) {
	b.cols[col].nullability = kind
	b.cols[col].nullabilitySet = true
}

// PushNonNull appends v to col. v must not be null; use PushNull instead.
func (b *Builder) PushNonNull(col int, v column.Value) {
	if v.IsNull() {
		dferrors.Fatalf("adhoc: PushNonNull given a null value for column %q; use PushNull", b.cols[col].spec.Name)
	}
	cs := b.cols[col]
	cs.cells = append(cs.cells, cell{kind: cellValue, v: v})
}

// PushNull appends a null cell to col.
func (b *Builder) PushNull(col int) {
	cs := b.cols[col]
	cs.cells = append(cs.cells, cell{kind: cellNull})
}

// PushPlaceholder appends count cells to col whose value isn't known yet.
// Build fills placeholders with the column's type-appropriate zero, never
// null, once the column's final storage type is resolved.
func (b *Builder) PushPlaceholder(col int, count int) {
	cs := b.cols[col]
	for i := 0; i < count; i++ {
		cs.cells = append(cs.cells, cell{kind: cellPlaceholder})
	}
}

// Build constructs the finalized Dataframe. Every column pushed to must have
// received the same number of cells (placeholders count); mismatches report
// a RowCountMismatchError naming the offending column.
func (b *Builder) Build() (*column.Dataframe, error) {
	rowCount := 0
	if len(b.cols) > 0 {
		rowCount = len(b.cols[0].cells)
	}
	for _, cs := range b.cols {
		if len(cs.cells) != rowCount {
			return nil, &dferrors.RowCountMismatchError{Column: cs.spec.Name, Expected: rowCount, Got: len(cs.cells)}
		}
	}

	finalTypes := make([]dftype.StorageType, len(b.cols))
	columns := make([]*column.Column, len(b.cols))
	for i, cs := range b.cols {
		t := resolveType(cs.spec, cs.cells)
		finalTypes[i] = t
		nullability := dftype.NonNull
		if cs.nullabilitySet {
			nullability = cs.nullability
		} else if containsNull(cs.cells) {
			nullability = dftype.SparseNull // bitvector only, no popcount table
		}
		columns[i] = newColumn(cs.spec.Name, t, nullability)
	}

	// Resolve every cell up front so insertion and tag inference see exactly
	// the same values, without re-reading them back through the dataframe
	// (a bare SparseNull column can't support that: GetCell's random access
	// requires a popcount table, which the default representation doesn't
	// keep).
	resolved := make([][]column.Value, len(b.cols))
	for i, cs := range b.cols {
		resolved[i] = make([]column.Value, rowCount)
		for row, c := range cs.cells {
			resolved[i][row] = resolveCell(b.pool, finalTypes[i], c)
		}
	}

	df := column.New(b.pool, columns)
	for row := 0; row < rowCount; row++ {
		vals := make([]column.Value, len(b.cols))
		for i := range b.cols {
			vals[i] = resolved[i][row]
		}
		if err := df.Insert(vals...); err != nil {
			return nil, err
		}
	}

	for i, col := range columns {
		inferColumnTags(col, finalTypes[i], resolved[i])
	}

	appendAutoID(df, rowCount)
	df.Finalize()
	return df, nil
}

func containsNull(cells []cell) bool {
	for _, c := range cells {
		if c.kind == cellNull {
			return true
		}
	}
	return false
}

// resolveType picks a column's final storage type: the pinned Type if one
// was given, else the kind of the first pushed value, narrowed (for integer
// columns) to the smallest width that losslessly represents every pushed
// value. A column that never received a typed value defaults to Uint32.
func resolveType(spec ColumnSpec, cells []cell) dftype.StorageType {
	if spec.Type != nil {
		return *spec.Type
	}
	var seen *dftype.StorageType
	for _, c := range cells {
		if c.kind != cellValue {
			continue
		}
		t := c.v.StorageType()
		seen = &t
		break
	}
	if seen == nil {
		return dftype.Uint32
	}
	if isIntegerType(*seen) {
		return narrowIntegerType(cells)
	}
	return *seen
}

func isIntegerType(t dftype.StorageType) bool {
	return t == dftype.Uint32 || t == dftype.Int32 || t == dftype.Int64
}

// narrowIntegerType scans every non-null pushed value and returns the
// narrowest of Uint32/Int32/Int64 that represents all of them without loss.
func narrowIntegerType(cells []cell) dftype.StorageType {
	fitsUnsigned, fitsInt32, any := true, true, false
	for _, c := range cells {
		if c.kind != cellValue {
			continue
		}
		any = true
		n := c.v.AsInt64Like()
		if n < 0 || n > math.MaxUint32 {
			fitsUnsigned = false
		}
		if n < math.MinInt32 || n > math.MaxInt32 {
			fitsInt32 = false
		}
	}
	switch {
	case !any:
		return dftype.Uint32
	case fitsUnsigned:
		return dftype.Uint32
	case fitsInt32:
		return dftype.Int32
	default:
		return dftype.Int64
	}
}

// resolveCell materializes one cell against the column's resolved type:
// null cells stay null, placeholders become a type-appropriate zero, and
// pushed integer values are re-cast to the (possibly narrower) final width.
func resolveCell(pool *strpool.Pool, t dftype.StorageType, c cell) column.Value {
	switch c.kind {
	case cellNull:
		return column.NullValue()
	case cellPlaceholder:
		return zeroValue(pool, t)
	default:
		if isIntegerType(t) {
			return valueForType(t, c.v.AsInt64Like())
		}
		return c.v
	}
}

func zeroValue(pool *strpool.Pool, t dftype.StorageType) column.Value {
	switch t {
	case dftype.Uint32:
		return column.Uint32Value(0)
	case dftype.Int32:
		return column.Int32Value(0)
	case dftype.Int64:
		return column.Int64Value(0)
	case dftype.Double:
		return column.DoubleValue(0)
	case dftype.String:
		return column.StringValue(pool.Intern(""))
	default:
		dferrors.Fatalf("adhoc: zeroValue: unknown type %v", t)
		return column.Value{}
	}
}

func valueForType(t dftype.StorageType, raw int64) column.Value {
	switch t {
	case dftype.Uint32:
		return column.Uint32Value(uint32(raw))
	case dftype.Int32:
		return column.Int32Value(int32(raw))
	default:
		return column.Int64Value(raw)
	}
}

func newColumn(name string, t dftype.StorageType, nullability dftype.Nullability) *column.Column {
	var storage column.Storage
	switch t {
	case dftype.Uint32:
		storage = column.NewUint32Storage()
	case dftype.Int32:
		storage = column.NewInt32Storage()
	case dftype.Int64:
		storage = column.NewInt64Storage()
	case dftype.Double:
		storage = column.NewDoubleStorage()
	case dftype.String:
		storage = column.NewStringStorage()
	}
	var null column.NullStorage
	switch nullability {
	case dftype.SparseNullWithPopcountAlways, dftype.SparseNullWithPopcountUntilFinalization:
		null = column.NewSparseNullWithPopcount(0, nullability)
	case dftype.DenseNull:
		null = column.NewDenseNull(0)
	case dftype.SparseNull:
		null = column.NewSparseNull(0)
	default:
		null = column.NewNonNull()
	}
	return &column.Column{Name: name, Storage: storage, Null: null, Sort: dftype.Unsorted, Duplicate: dftype.HasDuplicates}
}

// inferColumnTags scans the values resolved for a column (the same ones
// Build inserted) to classify its Sort/Duplicate tags. It reads those values
// directly rather than back through the dataframe: a bare SparseNull column
// (the default when nulls are present) can't support GetCell's random
// access, which needs a popcount table it doesn't keep.
func inferColumnTags(col *column.Column, t dftype.StorageType, vals []column.Value) {
	rowCount := len(vals)
	nonNull := col.Null.Kind == dftype.NonNull
	sorted, idSorted, setIdSorted := true, nonNull && t == dftype.Uint32, nonNull && t == dftype.Uint32
	seen := map[uint32]bool{}
	var prevVal uint32
	var prev column.Value
	for row := 0; row < rowCount; row++ {
		cur := vals[row]
		if row > 0 && compareCell(t, prev, cur) > 0 {
			sorted = false
		}
		if idSorted && (cur.IsNull() || valueAsUint32(cur) != uint32(row)) {
			idSorted = false
		}
		if setIdSorted && !cur.IsNull() {
			v := valueAsUint32(cur)
			if row > 0 && v < prevVal {
				setIdSorted = false
			}
			if !seen[v] {
				seen[v] = true
				if uint32(row) != v {
					setIdSorted = false
				}
			}
			prevVal = v
		} else if setIdSorted {
			setIdSorted = false
		}
		prev = cur
	}

	switch {
	case idSorted:
		col.Sort = dftype.IdSorted
	case setIdSorted:
		col.Sort = dftype.SetIdSorted
	case sorted:
		col.Sort = dftype.Sorted
	default:
		col.Sort = dftype.Unsorted
	}

	if hasDuplicateValues(t, vals) {
		col.Duplicate = dftype.HasDuplicates
	} else {
		col.Duplicate = dftype.NoDuplicates
	}

	if t == dftype.Uint32 && nonNull && col.Duplicate == dftype.NoDuplicates &&
		(col.Sort == dftype.Sorted || col.Sort == dftype.IdSorted || col.Sort == dftype.SetIdSorted) {
		buildSmallValueEq(col)
	}
}

func valueAsUint32(v column.Value) uint32 { return v.AsUint32() }

func compareCell(t dftype.StorageType, a, b column.Value) int {
	if a.IsNull() && b.IsNull() {
		return 0
	}
	if a.IsNull() {
		return -1
	}
	if b.IsNull() {
		return 1
	}
	switch t {
	case dftype.Uint32:
		return cmpU32(a.AsUint32(), b.AsUint32())
	case dftype.Int32:
		return cmpI64(int64(a.AsInt32()), int64(b.AsInt32()))
	case dftype.Int64:
		return cmpI64(a.AsInt64(), b.AsInt64())
	case dftype.Double:
		return cmpF64(a.AsDouble(), b.AsDouble())
	case dftype.String:
		return cmpU32(uint32(a.AsStringId()), uint32(b.AsStringId()))
	default:
		return 0
	}
}

func cmpU32(a, b uint32) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpI64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

func cmpF64(a, b float64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// hasDuplicateValues reports whether any two non-null values in vals are
// equal. NULLs never count as duplicates of each other.
func hasDuplicateValues(t dftype.StorageType, vals []column.Value) bool {
	seen := map[interface{}]struct{}{}
	for _, v := range vals {
		if v.IsNull() {
			continue
		}
		key := rawKey(t, v)
		if _, ok := seen[key]; ok {
			return true
		}
		seen[key] = struct{}{}
	}
	return false
}

func rawKey(t dftype.StorageType, v column.Value) interface{} {
	switch t {
	case dftype.Uint32:
		return v.AsUint32()
	case dftype.Int32:
		return v.AsInt32()
	case dftype.Int64:
		return v.AsInt64()
	case dftype.Double:
		return v.AsDouble()
	case dftype.String:
		return v.AsStringId()
	default:
		return nil
	}
}

// buildSmallValueEq attaches the O(1)-lookup specialized representation to a
// qualifying Uint32 column, reading its already-inserted storage back out.
func buildSmallValueEq(col *column.Column) {
	n := col.Storage.Len()
	vals := make([]uint32, n)
	var maxV uint32
	for i := 0; i < n; i++ {
		vals[i] = col.Storage.Uint32(i)
		if vals[i] > maxV {
			maxV = vals[i]
		}
	}
	if spec, ok := column.BuildSmallValueEq(vals, maxV); ok {
		col.Specialized = spec
	}
}

// appendAutoID appends the implicit identity column every ad-hoc dataframe
// carries, matching the column HorizontalConcat looks for by name.
func appendAutoID(df *column.Dataframe, rowCount int) {
	df.Columns = append(df.Columns, &column.Column{
		Name:      column.AutoIdColumnName,
		Storage:   column.NewIdStorage(rowCount),
		Null:      column.NewNonNull(),
		Sort:      dftype.IdSorted,
		Duplicate: dftype.NoDuplicates,
	})
	df.Names = append(df.Names, column.AutoIdColumnName)
}
