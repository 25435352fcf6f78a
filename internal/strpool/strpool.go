// Package strpool implements the minimal string-interning contract the
// dataframe engine depends on: Intern/Get/GetId plus a distinguished Null
// id and a small-string iterator used by Glob's small-pool optimization.
//
// This is deliberately self-contained: an interning pool the engine treats
// as an external collaborator, without pulling in any of the surrounding
// trace-processor proto/schema machinery.
package strpool

// Id identifies an interned string. The zero value is reserved for Null.
type Id uint32

// NullId is the distinguished sentinel for "no string". It is never a valid
// return from Intern for a non-null value; storage must coerce writes of
// NullId to the column's null representation rather than storing it.
const NullId Id = 0

// Null returns the sentinel id.
func Null() Id { return NullId }

// Pool interns strings into stable, comparable ids.
type Pool struct {
	strings []string       // index 0 is unused (reserved for NullId)
	ids     map[string]Id
}

// New returns an empty pool.
func New() *Pool {
	return &Pool{strings: []string{""}, ids: make(map[string]Id)}
}

// Intern returns the id for s, allocating a new one if s hasn't been seen.
func (p *Pool) Intern(s string) Id {
	if id, ok := p.ids[s]; ok {
		return id
	}
	id := Id(len(p.strings))
	p.strings = append(p.strings, s)
	p.ids[s] = id
	return id
}

// Get returns the string for id. Panics if id is out of range; callers must
// only pass ids previously returned by Intern/GetId on this pool.
func (p *Pool) Get(id Id) string {
	return p.strings[id]
}

// GetId returns the id for s if it has already been interned.
func (p *Pool) GetId(s string) (Id, bool) {
	id, ok := p.ids[s]
	return id, ok
}

// Len returns the number of distinct interned strings (excluding Null).
func (p *Pool) Len() int { return len(p.strings) - 1 }

// IsSmall reports whether the pool is small enough that a BitVector indexed
// by Id is a worthwhile Glob-literal optimization for StringFilter: it
// holds fewer than 2^16 entries, counting the Null slot.
func (p *Pool) IsSmall() bool {
	return len(p.strings) < 1<<16
}

// ForEachSmall iterates every interned (id, string) pair; used to build a
// Glob-pattern match bitvector over the whole pool when IsSmall is true.
func (p *Pool) ForEachSmall(fn func(id Id, s string)) {
	for i := 1; i < len(p.strings); i++ {
		fn(Id(i), p.strings[i])
	}
}
