// Package queryplan implements the serializable QueryPlan produced by the
// planner and the Cursor that materializes its registers against a live
// dataframe and drives the bytecode interpreter. A plan is compiled once
// and can be re-prepared against the same (or a structurally identical)
// dataframe many times, the same prepare/reset/finalize split a compiled
// SQL statement handle offers over its raw bytecode program.
package queryplan

import (
	"encoding/base64"
	"encoding/binary"

	"github.com/google/perfetto-dataframe/internal/bytecode"
	dferrors "github.com/google/perfetto-dataframe/internal/errors"
	"github.com/google/perfetto-dataframe/internal/interp"
)

// ExecutionParams is the plan's 32-byte trivially-copyable header: register
// sizing and output-shaping parameters the cursor needs before it can
// provision a register array and interpret the output register, plus the
// planner's cost/row-count estimates used only for debugging/EXPLAIN.
type ExecutionParams struct {
	RegisterCount     uint32
	FilterValueCount  uint32
	OutputPerRow      uint32
	OutputRegister    bytecode.Reg
	MaxRowCount       uint32
	EstimatedRowCount uint32
	EstimatedCost     uint32
	_                 uint32 // pad to 32 bytes
}

const executionParamsSize = 32

func (p ExecutionParams) marshal() []byte {
	out := make([]byte, executionParamsSize)
	binary.LittleEndian.PutUint32(out[0:4], p.RegisterCount)
	binary.LittleEndian.PutUint32(out[4:8], p.FilterValueCount)
	binary.LittleEndian.PutUint32(out[8:12], p.OutputPerRow)
	binary.LittleEndian.PutUint32(out[12:16], uint32(p.OutputRegister))
	binary.LittleEndian.PutUint32(out[16:20], p.MaxRowCount)
	binary.LittleEndian.PutUint32(out[20:24], p.EstimatedRowCount)
	binary.LittleEndian.PutUint32(out[24:28], p.EstimatedCost)
	return out
}

func unmarshalExecutionParams(buf []byte) ExecutionParams {
	if len(buf) != executionParamsSize {
		dferrors.Fatalf("queryplan: expected %d-byte ExecutionParams, got %d", executionParamsSize, len(buf))
	}
	return ExecutionParams{
		RegisterCount:     binary.LittleEndian.Uint32(buf[0:4]),
		FilterValueCount:  binary.LittleEndian.Uint32(buf[4:8]),
		OutputPerRow:      binary.LittleEndian.Uint32(buf[8:12]),
		OutputRegister:    bytecode.Reg(binary.LittleEndian.Uint32(buf[12:16])),
		MaxRowCount:       binary.LittleEndian.Uint32(buf[16:20]),
		EstimatedRowCount: binary.LittleEndian.Uint32(buf[20:24]),
		EstimatedCost:     binary.LittleEndian.Uint32(buf[24:28]),
	}
}

// QueryPlan is the planner's output: bytecode plus everything a Cursor needs
// to provision registers, initialize them against a live dataframe, and read
// back projected cells. Never embeds a raw pointer — see RegisterInits.
type QueryPlan struct {
	Params            ExecutionParams
	Bytecode          []bytecode.Bytecode
	ColToOutputOffset []uint32 // indexed by column number; 0 means "no offset slot" when OutputPerRow==1
	RegisterInits     []bytecode.RegisterInit
}

// Explain renders the plan's bytecode as one human-readable line per
// instruction, the disassembler-style debug dump a cost/row-count estimate
// alone doesn't convey.
func (p *QueryPlan) Explain() string {
	return interp.BytecodeToString(p.Bytecode)
}

// Serialize encodes the plan as a base64 ASCII string per the wire layout
// documented in the specification's external-interfaces section. No
// versioning is embedded: plans are never persisted across software
// versions, only passed between PlanQuery and PrepareCursor within one
// process.
func (p *QueryPlan) Serialize() string {
	var buf []byte
	buf = append(buf, p.Params.marshal()...)
	buf = append(buf, uint64LE(uint64(len(p.Bytecode)))...)
	for _, bc := range p.Bytecode {
		buf = append(buf, bc.MarshalBinary()...)
	}
	buf = append(buf, uint64LE(uint64(len(p.ColToOutputOffset)))...)
	for _, v := range p.ColToOutputOffset {
		buf = append(buf, uint32LE(v)...)
	}
	buf = append(buf, uint64LE(uint64(len(p.RegisterInits)))...)
	for _, ri := range p.RegisterInits {
		buf = append(buf, ri.MarshalBinary()...)
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// Deserialize decodes a plan produced by Serialize, reconstructing it
// byte-for-byte (QueryPlan round-trips through Serialize/Deserialize).
func Deserialize(s string) (*QueryPlan, error) {
	buf, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, err
	}
	if len(buf) < executionParamsSize {
		dferrors.Fatalf("queryplan: truncated plan: missing ExecutionParams")
	}
	p := &QueryPlan{Params: unmarshalExecutionParams(buf[:executionParamsSize])}
	off := executionParamsSize

	bcCount := readUint64(buf, &off)
	p.Bytecode = make([]bytecode.Bytecode, bcCount)
	for i := range p.Bytecode {
		p.Bytecode[i] = bytecode.UnmarshalBytecode(buf[off : off+bytecode.Size])
		off += bytecode.Size
	}

	colCount := readUint64(buf, &off)
	p.ColToOutputOffset = make([]uint32, colCount)
	for i := range p.ColToOutputOffset {
		p.ColToOutputOffset[i] = binary.LittleEndian.Uint32(buf[off : off+4])
		off += 4
	}

	riCount := readUint64(buf, &off)
	p.RegisterInits = make([]bytecode.RegisterInit, riCount)
	for i := range p.RegisterInits {
		p.RegisterInits[i] = bytecode.UnmarshalRegisterInit(buf[off : off+8])
		off += 8
	}

	return p, nil
}

func uint64LE(v uint64) []byte {
	b := make([]byte, 8)
	binary.LittleEndian.PutUint64(b, v)
	return b
}

func uint32LE(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

func readUint64(buf []byte, off *int) uint64 {
	v := binary.LittleEndian.Uint64(buf[*off : *off+8])
	*off += 8
	return v
}
