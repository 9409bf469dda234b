// Package compiler lowers a checked ast.Program into bytecode Chunks for
// the VM. Instruction encoding is a flat []byte of opcode byte plus
// Big-Endian operands, described by an OpCodeDefinition table and built
// with MakeInstruction, covering the full opcode set a closures-and-
// upvalues bytecode VM needs.
package compiler

import (
	"encoding/binary"
	"fmt"

	"luma/diag"
)

// Opcode identifies one bytecode instruction.
type Opcode byte

const (
	OpConst Opcode = iota
	OpTrue
	OpFalse
	OpNull

	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpNeg
	OpNot
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe

	OpGetLocal
	OpSetLocal

	OpGetUpvalue
	OpSetUpvalue
	OpCloseUpvalue

	OpGetGlobal
	OpSetGlobal
	OpDefineGlobal

	OpMakeList
	OpMakeTable
	OpIndex
	OpSetIndex
	OpGetField
	OpSetField

	OpJump
	OpJumpIfFalse
	OpJumpIfTrue

	OpCall
	OpTailCall
	OpReturn

	OpClosure // variable-length: see EmitClosure/ReadClosureOperands

	OpPop
	OpDup
	OpSwap

	OpNativeCall

	OpPanic
	OpHalt
)

// OpCodeDefinition names an opcode and the byte width of each of its fixed
// operands. OpClosure has no entry here since its operand list is variable
// length; it is encoded and decoded by dedicated helpers below.
type OpCodeDefinition struct {
	Name          string
	OperandWidths []int
}

var definitions = map[Opcode]*OpCodeDefinition{
	OpConst: {"OpConst", []int{2}},
	OpTrue:  {"OpTrue", nil},
	OpFalse: {"OpFalse", nil},
	OpNull:  {"OpNull", nil},

	OpAdd: {"OpAdd", nil},
	OpSub: {"OpSub", nil},
	OpMul: {"OpMul", nil},
	OpDiv: {"OpDiv", nil},
	OpMod: {"OpMod", nil},
	OpNeg: {"OpNeg", nil},
	OpNot: {"OpNot", nil},
	OpEq:  {"OpEq", nil},
	OpNe:  {"OpNe", nil},
	OpLt:  {"OpLt", nil},
	OpLe:  {"OpLe", nil},
	OpGt:  {"OpGt", nil},
	OpGe:  {"OpGe", nil},

	OpGetLocal: {"OpGetLocal", []int{2}},
	OpSetLocal: {"OpSetLocal", []int{2}},

	OpGetUpvalue:    {"OpGetUpvalue", []int{2}},
	OpSetUpvalue:    {"OpSetUpvalue", []int{2}},
	OpCloseUpvalue:  {"OpCloseUpvalue", []int{2}},

	OpGetGlobal:    {"OpGetGlobal", []int{2}},
	OpSetGlobal:    {"OpSetGlobal", []int{2}},
	OpDefineGlobal: {"OpDefineGlobal", []int{2}},

	OpMakeList:  {"OpMakeList", []int{2}},
	OpMakeTable: {"OpMakeTable", []int{2}},
	OpIndex:     {"OpIndex", nil},
	OpSetIndex:  {"OpSetIndex", nil},
	OpGetField:  {"OpGetField", []int{2}},
	OpSetField:  {"OpSetField", []int{2}},

	OpJump:        {"OpJump", []int{2}},
	OpJumpIfFalse: {"OpJumpIfFalse", []int{2}},
	OpJumpIfTrue:  {"OpJumpIfTrue", []int{2}},

	OpCall:     {"OpCall", []int{1}},
	OpTailCall: {"OpTailCall", []int{1}},
	OpReturn:   {"OpReturn", nil},

	OpPop:  {"OpPop", nil},
	OpDup:  {"OpDup", nil},
	OpSwap: {"OpSwap", nil},

	OpNativeCall: {"OpNativeCall", []int{2, 1}},

	OpPanic: {"OpPanic", []int{2}},
	OpHalt:  {"OpHalt", nil},
}

// Get returns the operand-width definition for op, or an error for an
// unrecognized byte. OpClosure, being variable-length, gets a definition
// with no fixed operand widths.
func Get(op Opcode) (*OpCodeDefinition, error) {
	if op == OpClosure {
		return &OpCodeDefinition{Name: "OpClosure", OperandWidths: nil}, nil
	}
	def, ok := definitions[op]
	if !ok {
		return nil, fmt.Errorf("compiler: opcode %d undefined", op)
	}
	return def, nil
}

// MakeInstruction encodes op and its fixed-width operands into a Big-Endian
// byte sequence.
func MakeInstruction(op Opcode, operands ...int) []byte {
	def, err := Get(op)
	if err != nil {
		return nil
	}
	length := 1
	for _, w := range def.OperandWidths {
		length += w
	}
	instr := make([]byte, length)
	instr[0] = byte(op)
	offset := 1
	for i, width := range def.OperandWidths {
		switch width {
		case 1:
			instr[offset] = byte(operands[i])
		case 2:
			binary.BigEndian.PutUint16(instr[offset:], uint16(operands[i]))
		}
		offset += width
	}
	return instr
}

// UpvalueDesc is one entry of an OpClosure's capture list: which slot to
// capture and whether it is a local of the enclosing frame (true) or
// itself an upvalue of the enclosing frame (false).
type UpvalueDesc struct {
	Index   int
	IsLocal bool
}

// EmitClosure encodes "Closure(proto_idx, [upvalue_desc...])": opcode byte,
// 2-byte prototype index, 1-byte upvalue count, then 1 byte IsLocal + 2
// byte Index per upvalue. Variable length, so it is not covered by
// OperandWidths/MakeInstruction.
func EmitClosure(protoIndex int, upvalues []UpvalueDesc) []byte {
	buf := make([]byte, 0, 4+3*len(upvalues))
	buf = append(buf, byte(OpClosure))
	var idxBuf [2]byte
	binary.BigEndian.PutUint16(idxBuf[:], uint16(protoIndex))
	buf = append(buf, idxBuf[:]...)
	buf = append(buf, byte(len(upvalues)))
	for _, uv := range upvalues {
		isLocal := byte(0)
		if uv.IsLocal {
			isLocal = 1
		}
		buf = append(buf, isLocal)
		var uvBuf [2]byte
		binary.BigEndian.PutUint16(uvBuf[:], uint16(uv.Index))
		buf = append(buf, uvBuf[:]...)
	}
	return buf
}

// ReadClosureOperands decodes an OpClosure instruction starting at code[ip]
// (code[ip] must equal byte(OpClosure)). It returns the prototype index,
// the decoded upvalue descriptors, and the offset just past the
// instruction.
func ReadClosureOperands(code []byte, ip int) (protoIndex int, upvalues []UpvalueDesc, next int) {
	protoIndex = int(binary.BigEndian.Uint16(code[ip+1:]))
	count := int(code[ip+3])
	offset := ip + 4
	upvalues = make([]UpvalueDesc, count)
	for i := 0; i < count; i++ {
		isLocal := code[offset] == 1
		index := int(binary.BigEndian.Uint16(code[offset+1:]))
		upvalues[i] = UpvalueDesc{Index: index, IsLocal: isLocal}
		offset += 3
	}
	return protoIndex, upvalues, offset
}

// ReadUint16 reads a 2-byte Big-Endian operand at code[offset:].
func ReadUint16(code []byte, offset int) int {
	return int(binary.BigEndian.Uint16(code[offset:]))
}

// FunctionProto is a compiled function prototype, stored in the constants
// pool of its enclosing chunk (or as the VM's top-level entry chunk).
type FunctionProto struct {
	Name      string
	Arity     int
	Variadic  bool
	NumLocals int
	Upvalues  []UpvalueDesc
	Chunk     *Chunk
}

// TypeDescriptor is the runtime counterpart of a record type declaration
// ("type Point = { x: Number, y: Number }"): its name and field order. It
// is wholly static, so the compiler builds it once and stores it in the
// constants pool like any other literal, to be pushed by OpConst and
// bound to its name the same way a let-bound value is.
type TypeDescriptor struct {
	Name   string
	Fields []string
}

// Chunk is a unit of compiled bytecode: the flat instruction stream, its
// constants pool, and a byte-offset -> diag.Span map for runtime error
// reporting. The span map is sparse, keyed by instruction-start offset,
// simpler to build incrementally than a dense parallel array and just as
// capable of answering "what span produced the instruction at ip".
type Chunk struct {
	Code      []byte
	Constants []any
	Spans     map[int]diag.Span
}

// NewChunk returns an empty Chunk ready for emission.
func NewChunk() *Chunk {
	return &Chunk{Spans: map[int]diag.Span{}}
}

// Emit appends an instruction's bytes, recording span as the span
// attributed to its first byte, and returns that byte's offset.
func (c *Chunk) Emit(span diag.Span, bytes []byte) int {
	offset := len(c.Code)
	c.Spans[offset] = span
	c.Code = append(c.Code, bytes...)
	return offset
}

// AddConstant appends value to the constants pool and returns its index.
func (c *Chunk) AddConstant(value any) int {
	c.Constants = append(c.Constants, value)
	return len(c.Constants) - 1
}

// SpanAt returns the span attributed to the instruction starting at ip, or
// diag.NoSpan if none was recorded.
func (c *Chunk) SpanAt(ip int) diag.Span {
	if s, ok := c.Spans[ip]; ok {
		return s
	}
	return diag.NoSpan
}

// PatchJump overwrites the 2-byte operand of the jump instruction at
// offset with a relative distance from the end of that instruction to
// target, implementing relative-jump semantics.
func (c *Chunk) PatchJump(offset int, target int) {
	relative := target - (offset + 3)
	binary.BigEndian.PutUint16(c.Code[offset+1:], uint16(int16(relative)))
}
