package compiler

import (
	"fmt"
	"strings"
)

// Disassemble renders a Chunk's instruction stream as human-readable text,
// one instruction per line, covering the full opcode set and resolving
// nested FunctionProto constants recursively.
func Disassemble(name string, chunk *Chunk) string {
	var b strings.Builder
	fmt.Fprintf(&b, "== %s ==\n", name)
	ip := 0
	for ip < len(chunk.Code) {
		ip = disassembleInstruction(&b, chunk, ip)
	}
	return b.String()
}

func disassembleInstruction(b *strings.Builder, chunk *Chunk, ip int) int {
	op := Opcode(chunk.Code[ip])
	fmt.Fprintf(b, "%04d ", ip)

	if op == OpClosure {
		protoIdx, upvalues, next := ReadClosureOperands(chunk.Code, ip)
		fmt.Fprintf(b, "OpClosure proto=%d upvalues=%d\n", protoIdx, len(upvalues))
		if protoIdx >= 0 && protoIdx < len(chunk.Constants) {
			if proto, ok := chunk.Constants[protoIdx].(*FunctionProto); ok {
				b.WriteString(Disassemble(fmt.Sprintf("fn %s", proto.Name), proto.Chunk))
			}
		}
		return next
	}

	def, err := Get(op)
	if err != nil {
		fmt.Fprintf(b, "<unknown opcode %d>\n", op)
		return ip + 1
	}

	switch len(def.OperandWidths) {
	case 0:
		fmt.Fprintf(b, "%s\n", def.Name)
		return ip + 1
	case 1:
		w := def.OperandWidths[0]
		operand := readOperand(chunk.Code, ip+1, w)
		b.WriteString(annotateOperand(chunk, op, def.Name, operand))
		return ip + 1 + w
	case 2:
		w0, w1 := def.OperandWidths[0], def.OperandWidths[1]
		a := readOperand(chunk.Code, ip+1, w0)
		bOperand := readOperand(chunk.Code, ip+1+w0, w1)
		fmt.Fprintf(b, "%s %d %d\n", def.Name, a, bOperand)
		return ip + 1 + w0 + w1
	default:
		fmt.Fprintf(b, "%s\n", def.Name)
		return ip + 1
	}
}

func readOperand(code []byte, offset, width int) int {
	switch width {
	case 1:
		return int(code[offset])
	case 2:
		return ReadUint16(code, offset)
	default:
		return 0
	}
}

func annotateOperand(chunk *Chunk, op Opcode, name string, operand int) string {
	switch op {
	case OpConst, OpPanic:
		if operand >= 0 && operand < len(chunk.Constants) {
			return fmt.Sprintf("%s %d (%v)\n", name, operand, chunk.Constants[operand])
		}
	case OpGetGlobal, OpSetGlobal, OpDefineGlobal, OpGetField, OpSetField:
		if operand >= 0 && operand < len(chunk.Constants) {
			return fmt.Sprintf("%s %d (%v)\n", name, operand, chunk.Constants[operand])
		}
	}
	return fmt.Sprintf("%s %d\n", name, operand)
}
