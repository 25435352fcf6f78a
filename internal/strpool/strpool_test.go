package strpool

import "testing"

func TestInternDedup(t *testing.T) {
	p := New()
	a := p.Intern("foo")
	b := p.Intern("bar")
	c := p.Intern("foo")
	if a != c {
		t.Errorf("expected repeated Intern to return same id, got %d and %d", a, c)
	}
	if a == b {
		t.Errorf("expected distinct strings to get distinct ids")
	}
	if a == NullId || b == NullId {
		t.Errorf("expected non-null ids, got %d, %d", a, b)
	}
}

func TestGetRoundTrip(t *testing.T) {
	p := New()
	id := p.Intern("hello")
	if got := p.Get(id); got != "hello" {
		t.Errorf("Get(%d) = %q, want %q", id, got, "hello")
	}
}

func TestGetIdMiss(t *testing.T) {
	p := New()
	p.Intern("foo")
	if _, ok := p.GetId("bar"); ok {
		t.Errorf("expected GetId miss for unseen string")
	}
}

func TestNullSentinel(t *testing.T) {
	if Null() != NullId {
		t.Errorf("Null() = %d, want %d", Null(), NullId)
	}
	p := New()
	id := p.Intern("x")
	if id == NullId {
		t.Errorf("Intern should never return NullId for a real value")
	}
}

func TestForEachSmall(t *testing.T) {
	p := New()
	p.Intern("foo")
	p.Intern("bar")
	seen := map[string]bool{}
	p.ForEachSmall(func(id Id, s string) {
		seen[s] = true
	})
	if !seen["foo"] || !seen["bar"] {
		t.Errorf("expected ForEachSmall to visit both strings, got %v", seen)
	}
}
