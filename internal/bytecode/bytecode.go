package bytecode

import (
	"encoding/binary"

	dferrors "github.com/google/perfetto-dataframe/internal/errors"
)

// Reg is a register index into a Cursor's per-execution RegValue array.
type Reg uint32

// argWords is the number of uint32 argument slots: 36 bytes of argument
// data at 4 bytes per slot, matching the Bytecode{option:u32, args:36B}
// layout.
const argWords = 9

// Bytecode is a single 40-byte, trivially-copyable instruction: a 4-byte
// Option plus 9 uint32 argument slots interpreted according to that Option.
// Go has no union/reinterpret-cast, so arguments are stored as a flat slot
// array and given meaning through named accessor methods per opcode family,
// rather than through fixed byte offsets into a raw buffer — the external
// serialized form (see MarshalBinary) still matches the 40-byte contract.
type Bytecode struct {
	Option Option
	Args   [argWords]uint32
}

// MarshalBinary encodes the instruction as the 40-byte little-endian record
// plan serialization requires.
func (b Bytecode) MarshalBinary() []byte {
	out := make([]byte, 4+4*argWords)
	binary.LittleEndian.PutUint32(out[0:4], uint32(b.Option))
	for i, a := range b.Args {
		binary.LittleEndian.PutUint32(out[4+4*i:8+4*i], a)
	}
	return out
}

// UnmarshalBytecode decodes a 40-byte record produced by MarshalBinary.
func UnmarshalBytecode(buf []byte) Bytecode {
	if len(buf) != 4+4*argWords {
		dferrors.Fatalf("bytecode: expected %d-byte record, got %d", 4+4*argWords, len(buf))
	}
	var b Bytecode
	b.Option = Option(binary.LittleEndian.Uint32(buf[0:4]))
	for i := range b.Args {
		b.Args[i] = binary.LittleEndian.Uint32(buf[4+4*i : 8+4*i])
	}
	return b
}

// Size is the on-disk/serialized instruction size in bytes.
const Size = 4 + 4*argWords

func regArg(r Reg) uint32  { return uint32(r) }
func asReg(v uint32) Reg   { return Reg(v) }

// --- Per-opcode constructors and accessors. Each pairs a Make* function
// (used by the builder) with typed accessors (used by the interpreter). ---

// InitRange writes {0, size} into dst.
type InitRangeArgs struct {
	Size uint32
	Dst  Reg
}

func MakeInitRange(a InitRangeArgs) Bytecode {
	return Bytecode{Option: OpInitRange, Args: [argWords]uint32{a.Size, regArg(a.Dst)}}
}
func (b Bytecode) InitRangeArgs() InitRangeArgs {
	return InitRangeArgs{Size: b.Args[0], Dst: asReg(b.Args[1])}
}

// AllocateIndices allocates (or reuses) a Slab of size u32s and a Span over it.
type AllocateIndicesArgs struct {
	Size     uint32
	DstSlab  Reg
	DstSpan  Reg
}

func MakeAllocateIndices(a AllocateIndicesArgs) Bytecode {
	return Bytecode{Option: OpAllocateIndices, Args: [argWords]uint32{a.Size, regArg(a.DstSlab), regArg(a.DstSpan)}}
}
func (b Bytecode) AllocateIndicesArgs() AllocateIndicesArgs {
	return AllocateIndicesArgs{Size: b.Args[0], DstSlab: asReg(b.Args[1]), DstSpan: asReg(b.Args[2])}
}

// Iota writes source.b..source.b+n-1 into span.
type IotaArgs struct {
	Source Reg
	Span   Reg
}

func MakeIota(a IotaArgs) Bytecode {
	return Bytecode{Option: OpIota, Args: [argWords]uint32{regArg(a.Source), regArg(a.Span)}}
}
func (b Bytecode) IotaArgs() IotaArgs { return IotaArgs{Source: asReg(b.Args[0]), Span: asReg(b.Args[1])} }

// Reverse reverses a span in place.
type ReverseArgs struct{ Span Reg }

func MakeReverse(a ReverseArgs) Bytecode {
	return Bytecode{Option: OpReverse, Args: [argWords]uint32{regArg(a.Span)}}
}
func (b Bytecode) ReverseArgs() ReverseArgs { return ReverseArgs{Span: asReg(b.Args[0])} }

// StrideCopy writes each src index to dst[i*stride].
type StrideCopyArgs struct {
	Src, Dst Reg
	Stride   uint32
}

func MakeStrideCopy(a StrideCopyArgs) Bytecode {
	return Bytecode{Option: OpStrideCopy, Args: [argWords]uint32{regArg(a.Src), regArg(a.Dst), a.Stride}}
}
func (b Bytecode) StrideCopyArgs() StrideCopyArgs {
	return StrideCopyArgs{Src: asReg(b.Args[0]), Dst: asReg(b.Args[1]), Stride: b.Args[2]}
}

// CopySpanIntersectingRange copies src indices that fall in range into dst.
type CopySpanIntersectingRangeArgs struct {
	Src, Range, Dst Reg
}

func MakeCopySpanIntersectingRange(a CopySpanIntersectingRangeArgs) Bytecode {
	return Bytecode{Option: OpCopySpanIntersectingRange, Args: [argWords]uint32{regArg(a.Src), regArg(a.Range), regArg(a.Dst)}}
}
func (b Bytecode) CopySpanIntersectingRangeArgs() CopySpanIntersectingRangeArgs {
	return CopySpanIntersectingRangeArgs{Src: asReg(b.Args[0]), Range: asReg(b.Args[1]), Dst: asReg(b.Args[2])}
}

// PrefixPopcount materializes a bitvector's prefix-popcount table, idempotent.
type PrefixPopcountArgs struct {
	Bv, Dst Reg
}

func MakePrefixPopcount(a PrefixPopcountArgs) Bytecode {
	return Bytecode{Option: OpPrefixPopcount, Args: [argWords]uint32{regArg(a.Bv), regArg(a.Dst)}}
}
func (b Bytecode) PrefixPopcountArgs() PrefixPopcountArgs {
	return PrefixPopcountArgs{Bv: asReg(b.Args[0]), Dst: asReg(b.Args[1])}
}

// NullFilter compacts a span keeping only (not-)null indices. IsNot
// distinguishes IsNotNull (true) from IsNull (false); this folds the two
// logically distinct opcodes into one Option with a flag, the same way a
// VDBE opcode folds related comparisons behind one opcode plus a P5 flag.
type NullFilterArgs struct {
	Bv, Span Reg
}

func MakeNullFilter(isNotNull bool, a NullFilterArgs) Bytecode {
	op := OpNullFilterIsNull
	if isNotNull {
		op = OpNullFilterIsNotNull
	}
	return Bytecode{Option: op, Args: [argWords]uint32{regArg(a.Bv), regArg(a.Span)}}
}
func (b Bytecode) NullFilterArgs() NullFilterArgs {
	return NullFilterArgs{Bv: asReg(b.Args[0]), Span: asReg(b.Args[1])}
}

// TranslateSparseNullIndices rewrites src row indices (known non-null) into
// storage indices via bv+popcount.
type TranslateSparseNullIndicesArgs struct {
	Bv, Popcount, Src, Dst Reg
}

func MakeTranslateSparseNullIndices(a TranslateSparseNullIndicesArgs) Bytecode {
	return Bytecode{Option: OpTranslateSparseNullIndices, Args: [argWords]uint32{regArg(a.Bv), regArg(a.Popcount), regArg(a.Src), regArg(a.Dst)}}
}
func (b Bytecode) TranslateSparseNullIndicesArgs() TranslateSparseNullIndicesArgs {
	return TranslateSparseNullIndicesArgs{Bv: asReg(b.Args[0]), Popcount: asReg(b.Args[1]), Src: asReg(b.Args[2]), Dst: asReg(b.Args[3])}
}

// StrideTranslateAndCopySparseNullIndices writes translated (or MaxUint32)
// storage offsets at stride positions in an output buffer.
type StrideTranslateArgs struct {
	Bv, Popcount, Span, Base Reg
	Offset, Stride           uint32
}

func MakeStrideTranslateAndCopySparseNullIndices(a StrideTranslateArgs) Bytecode {
	return Bytecode{Option: OpStrideTranslateAndCopySparseNullIndices, Args: [argWords]uint32{
		regArg(a.Bv), regArg(a.Popcount), regArg(a.Span), regArg(a.Base), a.Offset, a.Stride,
	}}
}
func (b Bytecode) StrideTranslateArgs() StrideTranslateArgs {
	return StrideTranslateArgs{Bv: asReg(b.Args[0]), Popcount: asReg(b.Args[1]), Span: asReg(b.Args[2]), Base: asReg(b.Args[3]), Offset: b.Args[4], Stride: b.Args[5]}
}

// StrideCopyDenseNullIndices: same shape for dense-null columns.
type StrideCopyDenseArgs struct {
	Bv, Span, Base Reg
	Offset, Stride uint32
}

func MakeStrideCopyDenseNullIndices(a StrideCopyDenseArgs) Bytecode {
	return Bytecode{Option: OpStrideCopyDenseNullIndices, Args: [argWords]uint32{regArg(a.Bv), regArg(a.Span), regArg(a.Base), a.Offset, a.Stride}}
}
func (b Bytecode) StrideCopyDenseArgs() StrideCopyDenseArgs {
	return StrideCopyDenseArgs{Bv: asReg(b.Args[0]), Span: asReg(b.Args[1]), Base: asReg(b.Args[2]), Offset: b.Args[3], Stride: b.Args[4]}
}

// LimitOffsetIndices advances b by offset, caps e at b+limit.
type LimitOffsetIndicesArgs struct {
	Span           Reg
	Offset, Limit  uint32
}

func MakeLimitOffsetIndices(a LimitOffsetIndicesArgs) Bytecode {
	return Bytecode{Option: OpLimitOffsetIndices, Args: [argWords]uint32{regArg(a.Span), a.Offset, a.Limit}}
}
func (b Bytecode) LimitOffsetIndicesArgs() LimitOffsetIndicesArgs {
	return LimitOffsetIndicesArgs{Span: asReg(b.Args[0]), Offset: b.Args[1], Limit: b.Args[2]}
}
