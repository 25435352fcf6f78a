package bytecode

// RegisterInitKind is the wire-level register-initialization descriptor
// kind: what the cursor should resolve a register to against the live
// dataframe, given a dataframe-relative source index.
type RegisterInitKind uint8

const (
	InitId RegisterInitKind = iota
	InitUint32
	InitInt32
	InitInt64
	InitDouble
	InitString
	InitNullBitvector
	InitIndexVector
	InitSmallValueEqBitvector
	InitSmallValueEqPopcount
)

// RegisterInit is the 8-byte descriptor {dest u32, kind u8, source u16, pad
// u8}. The plan never embeds raw pointers; the cursor
// resolves these against a live dataframe at PrepareCursor time.
type RegisterInit struct {
	Dest        Reg
	Kind        RegisterInitKind
	SourceIndex uint16
}

// MarshalBinary encodes a RegisterInit as its 8-byte wire form.
func (ri RegisterInit) MarshalBinary() []byte {
	out := make([]byte, 8)
	out[0] = byte(ri.Dest)
	out[1] = byte(ri.Dest >> 8)
	out[2] = byte(ri.Dest >> 16)
	out[3] = byte(ri.Dest >> 24)
	out[4] = byte(ri.Kind)
	out[5] = byte(ri.SourceIndex)
	out[6] = byte(ri.SourceIndex >> 8)
	return out
}

// UnmarshalRegisterInit decodes an 8-byte RegisterInit record.
func UnmarshalRegisterInit(buf []byte) RegisterInit {
	dest := Reg(uint32(buf[0]) | uint32(buf[1])<<8 | uint32(buf[2])<<16 | uint32(buf[3])<<24)
	kind := RegisterInitKind(buf[4])
	src := uint16(buf[5]) | uint16(buf[6])<<8
	return RegisterInit{Dest: dest, Kind: kind, SourceIndex: src}
}

// cacheKey identifies a resolvable, cacheable register: a (kind,
// source-index) pair, e.g. "column 3's Uint32 storage pointer" or "index
// 1's permutation vector".
type cacheKey struct {
	kind   RegisterInitKind
	source uint16
}

// scratchSlot tracks a numbered reusable (Slab,Span) pair: callers allocate
// a slot by number, mark it in-use, and release it for reuse across
// planner phases.
type scratchSlot struct {
	slabReg, spanReg Reg
	size             uint32
	inUse            bool
}

// Builder emits Bytecode while tracking register allocation, a
// scope-scoped cache of "the register holding X", and numbered scratch
// slots — the planner-facing allocation API.
type Builder struct {
	Code          []Bytecode
	RegisterInits []RegisterInit
	nextReg       Reg

	// cache is a stack of maps; PushScope/PopScope let the planner bound
	// how long a cached register stays visible without losing previously
	// emitted registers from outer scopes.
	cache []map[cacheKey]Reg

	scratch map[uint32]*scratchSlot
}

// NewBuilder returns a Builder with one open (root) scope.
func NewBuilder() *Builder {
	return &Builder{cache: []map[cacheKey]Reg{make(map[cacheKey]Reg)}, scratch: make(map[uint32]*scratchSlot)}
}

// AllocReg reserves a fresh register index.
func (b *Builder) AllocReg() Reg {
	r := b.nextReg
	b.nextReg++
	return r
}

// RegisterCount returns how many registers have been allocated; the plan's
// ExecutionParams.register_count.
func (b *Builder) RegisterCount() uint32 { return uint32(b.nextReg) }

// Emit appends an instruction and returns its index.
func (b *Builder) Emit(bc Bytecode) int {
	b.Code = append(b.Code, bc)
	return len(b.Code) - 1
}

// PushScope opens a nested cache scope; registers cached after this call
// are forgotten (but not freed) at the matching PopScope.
func (b *Builder) PushScope() {
	b.cache = append(b.cache, make(map[cacheKey]Reg))
}

// PopScope closes the most recently opened scope.
func (b *Builder) PopScope() {
	b.cache = b.cache[:len(b.cache)-1]
}

// ResolveRegister returns the cached register for (kind, sourceIndex) if
// one exists in any open scope, else allocates one, records the
// corresponding RegisterInit descriptor, and returns (reg, true) where the
// bool tells the caller this is a first-time allocation needing an
// initialization opcode/descriptor to be emitted.
func (b *Builder) ResolveRegister(kind RegisterInitKind, sourceIndex uint16) (Reg, bool) {
	key := cacheKey{kind: kind, source: sourceIndex}
	for i := len(b.cache) - 1; i >= 0; i-- {
		if r, ok := b.cache[i][key]; ok {
			return r, false
		}
	}
	r := b.AllocReg()
	b.cache[len(b.cache)-1][key] = r
	b.RegisterInits = append(b.RegisterInits, RegisterInit{Dest: r, Kind: kind, SourceIndex: sourceIndex})
	return r, true
}

// AllocateScratch returns the (slab, span) register pair for numbered slot
// n, emitting AllocateIndices the first time the slot is used at this size
// (or when a larger size is requested), and reusing the existing pair
// otherwise. Marks the slot in-use; ReleaseScratch frees it for reuse by a
// later phase.
func (b *Builder) AllocateScratch(n uint32, size uint32) (slabReg, spanReg Reg) {
	slot, ok := b.scratch[n]
	if !ok {
		slabReg, spanReg = b.AllocReg(), b.AllocReg()
		slot = &scratchSlot{slabReg: slabReg, spanReg: spanReg}
		b.scratch[n] = slot
	}
	if !ok || size > slot.size {
		slot.size = size
		b.Emit(MakeAllocateIndices(AllocateIndicesArgs{Size: size, DstSlab: slot.slabReg, DstSpan: slot.spanReg}))
	}
	slot.inUse = true
	return slot.slabReg, slot.spanReg
}

// ReleaseScratch marks slot n free for reuse by a subsequent phase.
func (b *Builder) ReleaseScratch(n uint32) {
	if slot, ok := b.scratch[n]; ok {
		slot.inUse = false
	}
}
