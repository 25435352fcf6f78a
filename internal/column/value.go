package column

import (
	"github.com/google/perfetto-dataframe/internal/dftype"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/strpool"
)

// valueKind tags which field of Value is valid, following the same
// Mem/MemFlags discipline: exactly one payload field is meaningful at a
// time, selected by kind, and every accessor enforces it.
type valueKind uint8

const (
	valueNull valueKind = iota
	valueU32
	valueI32
	valueI64
	valueF64
	valueStr
)

// Value is a tagged union representing one cell to Insert or SetCell into a
// Column. Construct with the New* helpers below; never set fields directly.
type Value struct {
	kind valueKind
	u32  uint32
	i32  int32
	i64  int64
	f64  float64
	str  strpool.Id
}

func NullValue() Value             { return Value{kind: valueNull} }
func Uint32Value(v uint32) Value   { return Value{kind: valueU32, u32: v} }
func Int32Value(v int32) Value     { return Value{kind: valueI32, i32: v} }
func Int64Value(v int64) Value     { return Value{kind: valueI64, i64: v} }
func DoubleValue(v float64) Value  { return Value{kind: valueF64, f64: v} }
func StringValue(id strpool.Id) Value {
	if id == strpool.NullId {
		return NullValue()
	}
	return Value{kind: valueStr, str: id}
}

// IsNull reports whether this value represents null.
func (v Value) IsNull() bool { return v.kind == valueNull }

func (v Value) mustBe(k valueKind) {
	if v.kind != k {
		dferrors.Fatalf("value: expected kind %d, got %d", k, v.kind)
	}
}

func (v Value) AsUint32() uint32     { v.mustBe(valueU32); return v.u32 }
func (v Value) AsInt32() int32       { v.mustBe(valueI32); return v.i32 }
func (v Value) AsInt64() int64       { v.mustBe(valueI64); return v.i64 }
func (v Value) AsDouble() float64    { v.mustBe(valueF64); return v.f64 }
func (v Value) AsStringId() strpool.Id { v.mustBe(valueStr); return v.str }

// StorageType reports the dftype.StorageType a non-null Value would occupy.
// Panics if v is null; callers check IsNull first.
func (v Value) StorageType() dftype.StorageType {
	switch v.kind {
	case valueU32:
		return dftype.Uint32
	case valueI32:
		return dftype.Int32
	case valueI64:
		return dftype.Int64
	case valueF64:
		return dftype.Double
	case valueStr:
		return dftype.String
	default:
		dferrors.Fatalf("value: StorageType called on a null value")
		return 0
	}
}

// AsInt64Like widens any of the three integer kinds to int64, letting callers
// that don't care which width was originally pushed (the ad-hoc builder's
// narrowing scan) read them uniformly. Panics for Double, String or null.
func (v Value) AsInt64Like() int64 {
	switch v.kind {
	case valueU32:
		return int64(v.u32)
	case valueI32:
		return int64(v.i32)
	case valueI64:
		return v.i64
	default:
		dferrors.Fatalf("value: AsInt64Like called on non-integer kind %d", v.kind)
		return 0
	}
}
