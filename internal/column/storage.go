// Package column implements the dataframe engine's data model: Storage,
// NullStorage, SpecializedStorage, Index, Column and Dataframe, matching
// the storage value types a column can hold.
package column

import (
	"github.com/google/perfetto-dataframe/internal/bitvec"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/dftype"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// Storage is a tagged union over dftype.StorageType. Id storage carries no
// buffer; every other type owns a contiguous growable slab of the matching
// element type. Only one of the typed slabs is valid, selected by Type.
type Storage struct {
	Type dftype.StorageType

	idRowCount int
	u32        *bitvec.Slab[uint32]
	i32        *bitvec.Slab[int32]
	i64        *bitvec.Slab[int64]
	f64        *bitvec.Slab[float64]
	str        *bitvec.Slab[strpool.Id]
}

// NewIdStorage returns Id storage with the given row count.
func NewIdStorage(rowCount int) Storage {
	return Storage{Type: dftype.Id, idRowCount: rowCount}
}

// NewUint32Storage returns empty Uint32 storage.
func NewUint32Storage() Storage { return Storage{Type: dftype.Uint32, u32: bitvec.NewSlab[uint32](0)} }

// NewInt32Storage returns empty Int32 storage.
func NewInt32Storage() Storage { return Storage{Type: dftype.Int32, i32: bitvec.NewSlab[int32](0)} }

// NewInt64Storage returns empty Int64 storage.
func NewInt64Storage() Storage { return Storage{Type: dftype.Int64, i64: bitvec.NewSlab[int64](0)} }

// NewDoubleStorage returns empty Double storage.
func NewDoubleStorage() Storage { return Storage{Type: dftype.Double, f64: bitvec.NewSlab[float64](0)} }

// NewStringStorage returns empty String storage (of StringPool ids).
func NewStringStorage() Storage { return Storage{Type: dftype.String, str: bitvec.NewSlab[strpool.Id](0)} }

// Len returns the number of values physically stored (== row count for Id,
// NonNull and DenseNull columns; == number of non-null rows for sparse).
func (s *Storage) Len() int {
	switch s.Type {
	case dftype.Id:
		return s.idRowCount
	case dftype.Uint32:
		return s.u32.Len()
	case dftype.Int32:
		return s.i32.Len()
	case dftype.Int64:
		return s.i64.Len()
	case dftype.Double:
		return s.f64.Len()
	case dftype.String:
		return s.str.Len()
	default:
		dferrors.Fatalf("storage: unknown type %v", s.Type)
		return 0
	}
}

// Uint32 returns the element at storage index i. Panics if Type != Uint32.
func (s *Storage) Uint32(i int) uint32 {
	s.mustBe(dftype.Uint32)
	return s.u32.Get(i)
}

// Int32 returns the element at storage index i. Panics if Type != Int32.
func (s *Storage) Int32(i int) int32 {
	s.mustBe(dftype.Int32)
	return s.i32.Get(i)
}

// Int64 returns the element at storage index i. Panics if Type != Int64.
func (s *Storage) Int64(i int) int64 {
	s.mustBe(dftype.Int64)
	return s.i64.Get(i)
}

// Double returns the element at storage index i. Panics if Type != Double.
func (s *Storage) Double(i int) float64 {
	s.mustBe(dftype.Double)
	return s.f64.Get(i)
}

// StringId returns the element at storage index i. Panics if Type != String.
func (s *Storage) StringId(i int) strpool.Id {
	s.mustBe(dftype.String)
	return s.str.Get(i)
}

// IdValue returns the value of an Id-typed row: the row index itself.
func (s *Storage) IdValue(row int) uint32 { return uint32(row) }

func (s *Storage) mustBe(t dftype.StorageType) {
	if s.Type != t {
		dferrors.Fatalf("storage: expected type %v, got %v", t, s.Type)
	}
}

// AppendUint32 appends to Uint32 storage.
func (s *Storage) AppendUint32(v uint32) {
	s.mustBe(dftype.Uint32)
	s.u32.Resize(s.u32.Len() + 1)
	s.u32.Set(s.u32.Len()-1, v)
}

// AppendInt32 appends to Int32 storage.
func (s *Storage) AppendInt32(v int32) {
	s.mustBe(dftype.Int32)
	s.i32.Resize(s.i32.Len() + 1)
	s.i32.Set(s.i32.Len()-1, v)
}

// AppendInt64 appends to Int64 storage.
func (s *Storage) AppendInt64(v int64) {
	s.mustBe(dftype.Int64)
	s.i64.Resize(s.i64.Len() + 1)
	s.i64.Set(s.i64.Len()-1, v)
}

// AppendDouble appends to Double storage.
func (s *Storage) AppendDouble(v float64) {
	s.mustBe(dftype.Double)
	s.f64.Resize(s.f64.Len() + 1)
	s.f64.Set(s.f64.Len()-1, v)
}

// AppendString appends to String storage. Writing strpool.NullId is only
// legal for nullable columns and must be coerced by the caller (Column
// Insert) to the column's null representation rather than stored verbatim.
func (s *Storage) AppendString(id strpool.Id) {
	s.mustBe(dftype.String)
	s.str.Resize(s.str.Len() + 1)
	s.str.Set(s.str.Len()-1, id)
}

// RemoveAt deletes the value at storage index i, shifting later elements
// down by one. Used by SetCell's null<->value transition and by SelectRows.
func (s *Storage) RemoveAt(i int) {
	switch s.Type {
	case dftype.Uint32:
		d := s.u32.Data()
		copy(d[i:], d[i+1:])
		s.u32.Resize(len(d) - 1)
	case dftype.Int32:
		d := s.i32.Data()
		copy(d[i:], d[i+1:])
		s.i32.Resize(len(d) - 1)
	case dftype.Int64:
		d := s.i64.Data()
		copy(d[i:], d[i+1:])
		s.i64.Resize(len(d) - 1)
	case dftype.Double:
		d := s.f64.Data()
		copy(d[i:], d[i+1:])
		s.f64.Resize(len(d) - 1)
	case dftype.String:
		d := s.str.Data()
		copy(d[i:], d[i+1:])
		s.str.Resize(len(d) - 1)
	default:
		dferrors.Fatalf("storage: RemoveAt on Id storage")
	}
}

// InsertAt inserts a value at storage index i, shifting later elements up.
// The value must match Type; the v parameter is an interface{} of the
// matching Go type for simplicity at this single call site (SetCell).
func (s *Storage) InsertAt(i int, v interface{}) {
	switch s.Type {
	case dftype.Uint32:
		d := s.u32.Data()
		d = append(d, 0)
		copy(d[i+1:], d[i:])
		d[i] = v.(uint32)
		s.u32 = bitvec.NewSlab[uint32](len(d))
		copy(s.u32.Data(), d)
	case dftype.Int32:
		d := s.i32.Data()
		d = append(d, 0)
		copy(d[i+1:], d[i:])
		d[i] = v.(int32)
		s.i32 = bitvec.NewSlab[int32](len(d))
		copy(s.i32.Data(), d)
	case dftype.Int64:
		d := s.i64.Data()
		d = append(d, 0)
		copy(d[i+1:], d[i:])
		d[i] = v.(int64)
		s.i64 = bitvec.NewSlab[int64](len(d))
		copy(s.i64.Data(), d)
	case dftype.Double:
		d := s.f64.Data()
		d = append(d, 0)
		copy(d[i+1:], d[i:])
		d[i] = v.(float64)
		s.f64 = bitvec.NewSlab[float64](len(d))
		copy(s.f64.Data(), d)
	case dftype.String:
		d := s.str.Data()
		d = append(d, 0)
		copy(d[i+1:], d[i:])
		d[i] = v.(strpool.Id)
		s.str = bitvec.NewSlab[strpool.Id](len(d))
		copy(s.str.Data(), d)
	default:
		dferrors.Fatalf("storage: InsertAt on Id storage")
	}
}

// ShrinkToFit is a no-op placeholder for the Go slab representation, kept
// so Finalize's call site can still shrink-to-fit at freeze time.
func (s *Storage) ShrinkToFit() {}
