package interp

import (
	"bytes"
	"math"
	"sort"

	"github.com/google/perfetto-dataframe/internal/bitvec"
	"github.com/google/perfetto-dataframe/internal/bytecode"
	"github.com/google/perfetto-dataframe/internal/column"
	"github.com/google/perfetto-dataframe/internal/dftype"
)

// ContentWidth returns the number of content bytes (excluding the null
// flag byte) a row-layout key of type t occupies.
func ContentWidth(t dftype.StorageType) int {
	switch t {
	case dftype.Int64, dftype.Double:
		return 8
	default: // Uint32, Int32, Id, String
		return 4
	}
}

// radixSortThreshold records a row-count threshold for a radix pass over
// the key bytes; no code reads it, and ExecSortRowLayout has no radix path.
const radixSortThreshold = 4096

func encodeUint32(buf []byte, v uint32) {
	buf[0], buf[1], buf[2], buf[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

func encodeInt32(buf []byte, v int32) { encodeUint32(buf, uint32(v)^0x80000000) }

func encodeInt64(buf []byte, v int64) {
	u := uint64(v) ^ 0x8000000000000000
	for i := 0; i < 8; i++ {
		buf[i] = byte(u >> uint(56-8*i))
	}
}

func encodeDouble(buf []byte, v float64) {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits ^= 1 << 63
	}
	for i := 0; i < 8; i++ {
		buf[i] = byte(bits >> uint(56-8*i))
	}
}

// encodeCell writes the content bytes (not the null flag) for one row's key
// value into buf, which must be exactly ContentWidth(t) bytes.
func encodeCell(buf []byte, t dftype.StorageType, row int, storage *column.Storage, storageIdx int, rankMap *bytecode.StringIdToRankMap, useRankMap bool) {
	switch t {
	case dftype.Id:
		encodeUint32(buf, uint32(row))
	case dftype.Uint32:
		encodeUint32(buf, storage.Uint32(storageIdx))
	case dftype.Int32:
		encodeInt32(buf, storage.Int32(storageIdx))
	case dftype.Int64:
		encodeInt64(buf, storage.Int64(storageIdx))
	case dftype.Double:
		encodeDouble(buf, storage.Double(storageIdx))
	case dftype.String:
		id := storage.StringId(storageIdx)
		if useRankMap {
			encodeUint32(buf, rankMap.Rank(id))
		} else {
			encodeUint32(buf, uint32(id))
		}
	}
}

// ExecCopyToRowLayout implements the CopyToRowLayout opcode over the
// already-resolved row indices rows (the interpreter resolves Src's span
// against its backing slab/range before calling this): for each row,
// writes the null byte (if the column is nullable) followed by the
// order-preserving encoded value (or zero bytes, if null) at
// buffer[row*Stride+Offset:].
func ExecCopyToRowLayout(rows []uint32, a bytecode.CopyToRowLayoutArgs, regs []bytecode.RegValue) {
	buf := regs[a.Buffer].Bytes()

	var storage *column.Storage
	if a.Type != dftype.Id {
		storage = regs[a.Storage].StoragePtr()
	}
	nullable := a.Nullability != dftype.NonNull
	var bv *bitvec.BitVector
	var popcount *bitvec.FlexVector[uint32]
	if nullable {
		bv = regs[a.Bv].BitVectorPtr()
		if a.Nullability.HasPopcount() {
			popcount = regs[a.Popcount].PopcountPtr()
		}
	}
	var rankMap *bytecode.StringIdToRankMap
	if a.UseRankMap {
		rankMap = regs[a.RankMap].RankMap()
	}

	width := ContentWidth(a.Type)
	// Null placement is independent of content direction: nullByteClear (the
	// byte a null row gets) sorts first unless NullsLast asks for the
	// opposite, regardless of whether Invert flips the content bytes.
	nullByteSet, nullByteClear := byte(0xFF), byte(0x00)
	if a.NullsLast {
		nullByteSet, nullByteClear = 0x00, 0xFF
	}

	for _, row := range rows {
		rec := buf[int(row)*int(a.Stride)+int(a.Offset):]
		isNull := nullable && !bv.IsSet(int(row))
		off := 0
		if nullable {
			if isNull {
				rec[0] = nullByteClear
			} else {
				rec[0] = nullByteSet
			}
			off = 1
		}
		content := rec[off : off+width]
		for i := range content {
			content[i] = 0
		}
		if isNull {
			continue
		}
		storageIdx := int(row)
		if nullable && a.Nullability.IsSparse() {
			storageIdx = int(bv.PopcountUntil(int(row), popcount))
		}
		encodeCell(content, a.Type, int(row), storage, storageIdx, rankMap, a.UseRankMap)
		if a.Invert {
			for i := range content {
				content[i] = ^content[i]
			}
		}
	}
}

// ExecSortRowLayout stably sorts Span's row indices by the lexicographic
// (memcmp) order of their Stride-byte records in Buffer. It is a comparison
// sort (sort.SliceStable with bytes.Compare) at every row count; no radix
// sort is used, whatever the size.
func ExecSortRowLayout(rows []uint32, buf []byte, stride uint32) {
	less := func(i, j int) bool {
		a := buf[int(rows[i])*int(stride) : int(rows[i])*int(stride)+int(stride)]
		b := buf[int(rows[j])*int(stride) : int(rows[j])*int(stride)+int(stride)]
		return bytes.Compare(a, b) < 0
	}
	sort.SliceStable(rows, less)
}

// ExecDistinct hashes each row's Stride-byte record and keeps only the
// first occurrence, compacting rows in place; returns the compacted slice.
func ExecDistinct(rows []uint32, buf []byte, stride uint32) []uint32 {
	seen := make(map[string]struct{}, len(rows))
	out := rows[:0]
	for _, r := range rows {
		key := string(buf[int(r)*int(stride) : int(r)*int(stride)+int(stride)])
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, r)
	}
	return out
}
