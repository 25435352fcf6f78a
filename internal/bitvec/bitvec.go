// Package bitvec implements the packed bitset and slab/flex-vector types
// that back the dataframe engine's null storage and specialized storage
// representations: a BitVector with O(1) prefix-popcount translation from
// row index to storage index, and a generic Slab/FlexVector for owned
// contiguous typed buffers.
package bitvec

import "math/bits"

const wordBits = 64

// BitVector is a packed array of bits with O(1) is_set and prefix-popcount
// support. It owns its storage; words beyond the logical size are zeroed.
type BitVector struct {
	words []uint64
	size  int
}

// NewBitVector returns a BitVector of the given logical size, all bits clear.
func NewBitVector(size int) *BitVector {
	return &BitVector{words: make([]uint64, wordCount(size)), size: size}
}

func wordCount(size int) int {
	return (size + wordBits - 1) / wordBits
}

// Size returns the number of logical bits.
func (b *BitVector) Size() int { return b.size }

// IsSet reports whether bit i is set.
func (b *BitVector) IsSet(i int) bool {
	return b.words[i/wordBits]&(uint64(1)<<uint(i%wordBits)) != 0
}

// Set sets bit i to 1.
func (b *BitVector) Set(i int) {
	b.words[i/wordBits] |= uint64(1) << uint(i%wordBits)
}

// Clear sets bit i to 0.
func (b *BitVector) Clear(i int) {
	b.words[i/wordBits] &^= uint64(1) << uint(i%wordBits)
}

// Append grows the bit vector by one bit, set according to v.
func (b *BitVector) Append(v bool) {
	i := b.size
	b.size++
	if wordCount(b.size) > len(b.words) {
		b.words = append(b.words, 0)
	}
	if v {
		b.Set(i)
	}
}

// Resize grows or shrinks the logical size, zero-extending on growth.
func (b *BitVector) Resize(size int) {
	b.words = append(b.words[:wordCount(minInt(size, b.size)):wordCount(minInt(size, b.size))], make([]uint64, maxInt(0, wordCount(size)-len(b.words)))...)
	if wordCount(size) > len(b.words) {
		b.words = append(b.words, make([]uint64, wordCount(size)-len(b.words))...)
	}
	b.size = size
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// CountSetBitsUntilInWord returns the number of set bits in [0, i) within the
// word containing bit i (bits below i%wordBits in that word only).
func (b *BitVector) CountSetBitsUntilInWord(i int) int {
	word := b.words[i/wordBits]
	mask := (uint64(1) << uint(i%wordBits)) - 1
	return bits.OnesCount64(word & mask)
}

// PrefixPopcount materializes, for each 64-bit word w, the total number of
// set bits in words [0, w). Word w's entry excludes bits in word w itself;
// combine with CountSetBitsUntilInWord to get the exact row->storage offset.
func (b *BitVector) PrefixPopcount() *FlexVector[uint32] {
	fv := NewFlexVector[uint32](len(b.words))
	var running uint32
	for w := 0; w < len(b.words); w++ {
		fv.Push(running)
		running += uint32(bits.OnesCount64(b.words[w]))
	}
	return fv
}

// PopcountUntil returns popcount_until(i) = number of set bits in [0, i),
// given a prefix-popcount table produced by PrefixPopcount.
func (b *BitVector) PopcountUntil(i int, prefix *FlexVector[uint32]) uint32 {
	return prefix.At(i/wordBits) + uint32(b.CountSetBitsUntilInWord(i))
}

// CountSetBits returns the total number of set bits in [0, size).
func (b *BitVector) CountSetBits() int {
	n := 0
	for _, w := range b.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Slab is an owned contiguous growable buffer of T.
type Slab[T any] struct {
	data []T
}

// NewSlab allocates a slab with the given initial length, zero-valued.
func NewSlab[T any](size int) *Slab[T] {
	return &Slab[T]{data: make([]T, size)}
}

// Len returns the slab's length.
func (s *Slab[T]) Len() int { return len(s.data) }

// At returns a pointer to element i for in-place mutation.
func (s *Slab[T]) At(i int) *T { return &s.data[i] }

// Get returns element i by value.
func (s *Slab[T]) Get(i int) T { return s.data[i] }

// Set writes element i.
func (s *Slab[T]) Set(i int, v T) { s.data[i] = v }

// Data returns the underlying slice (callers must not retain beyond the
// slab's lifetime if it is later resized).
func (s *Slab[T]) Data() []T { return s.data }

// Resize grows or shrinks the slab in place, zero-extending on growth.
func (s *Slab[T]) Resize(size int) {
	if size <= len(s.data) {
		s.data = s.data[:size]
		return
	}
	s.data = append(s.data, make([]T, size-len(s.data))...)
}

// Span is a non-owning [Begin, End) view into row-index space. A Range
// register (used for a contiguous, unmaterialized candidate set) is just a
// Span with Data == nil, whose logical values are Begin..End-1 themselves.
// A materialized Span additionally references the Slab its indices were
// written into by AllocateIndices, so opcodes can read/write index i
// without separately threading a Slab register through every call.
type Span struct {
	Data       *Slab[uint32]
	Begin, End uint32
}

// Len returns End-Begin.
func (s Span) Len() int { return int(s.End - s.Begin) }

// At returns the value at position i (i in [Begin, End)): the materialized
// index if Data is set, or the identity row index i itself for a Range.
func (s Span) At(i uint32) uint32 {
	if s.Data == nil {
		return i
	}
	return s.Data.Get(int(i))
}

// SetAt overwrites the materialized index at position i. Fatal on a Range
// (Data == nil), which has no backing storage to mutate.
func (s Span) SetAt(i uint32, v uint32) {
	s.Data.Set(int(i), v)
}

// Slice returns the [Begin, End) window of the backing slab. Only valid for
// a materialized Span.
func (s Span) Slice() []uint32 {
	return s.Data.Data()[s.Begin:s.End]
}

// Values materializes the span's logical row indices into a fresh slice,
// valid for both a Range and a materialized Span.
func (s Span) Values() []uint32 {
	out := make([]uint32, s.Len())
	for i := range out {
		out[i] = s.At(s.Begin + uint32(i))
	}
	return out
}

// FlexVector is a growable owned buffer of T, used for prefix-popcount
// tables and similar append-only side arrays.
type FlexVector[T any] struct {
	data []T
}

// NewFlexVector allocates a FlexVector with the given capacity hint.
func NewFlexVector[T any](capHint int) *FlexVector[T] {
	return &FlexVector[T]{data: make([]T, 0, capHint)}
}

// Push appends a value.
func (f *FlexVector[T]) Push(v T) { f.data = append(f.data, v) }

// At returns element i.
func (f *FlexVector[T]) At(i int) T { return f.data[i] }

// Set overwrites element i.
func (f *FlexVector[T]) Set(i int, v T) { f.data[i] = v }

// Len returns the number of elements.
func (f *FlexVector[T]) Len() int { return len(f.data) }

// Truncate drops the FlexVector's contents, keeping its backing array.
func (f *FlexVector[T]) Truncate() { f.data = f.data[:0] }
