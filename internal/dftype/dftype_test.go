package dftype

import "testing"

func TestStorageTypeString(t *testing.T) {
	cases := map[StorageType]string{
		Id: "Id", Uint32: "Uint32", Int32: "Int32",
		Int64: "Int64", Double: "Double", String: "String",
	}
	for typ, want := range cases {
		if got := typ.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", typ, got, want)
		}
	}
}

func TestNullabilitySparseAndPopcount(t *testing.T) {
	cases := []struct {
		n           Nullability
		sparse      bool
		hasPopcount bool
	}{
		{NonNull, false, false},
		{SparseNull, true, false},
		{SparseNullWithPopcountAlways, true, true},
		{SparseNullWithPopcountUntilFinalization, true, true},
		{DenseNull, false, false},
	}
	for _, c := range cases {
		if got := c.n.IsSparse(); got != c.sparse {
			t.Errorf("%v.IsSparse() = %v, want %v", c.n, got, c.sparse)
		}
		if got := c.n.HasPopcount(); got != c.hasPopcount {
			t.Errorf("%v.HasPopcount() = %v, want %v", c.n, got, c.hasPopcount)
		}
	}
}

func TestOpIsInequality(t *testing.T) {
	for _, o := range []Op{Lt, Le, Gt, Ge} {
		if !o.IsInequality() {
			t.Errorf("%v.IsInequality() = false, want true", o)
		}
	}
	for _, o := range []Op{Eq, Ne, Glob, Regex, IsNull, IsNotNull, In} {
		if o.IsInequality() {
			t.Errorf("%v.IsInequality() = true, want false", o)
		}
	}
}

func TestOpCountMatchesMembers(t *testing.T) {
	if OpCount != 11 {
		t.Errorf("OpCount = %d, want 11", OpCount)
	}
}

func TestStorageTypeCountMatchesMembers(t *testing.T) {
	if StorageTypeCount != 6 {
		t.Errorf("StorageTypeCount = %d, want 6", StorageTypeCount)
	}
}
