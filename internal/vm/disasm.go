package vm

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable representation of the bytecode
func Disassemble(chunk *Chunk, name string) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("== %s ==\n", name))

	offset := 0
	for offset < len(chunk.Code) {
		offset = disassembleInstruction(&sb, chunk, offset)
	}

	return sb.String()
}

// disassembleInstruction disassembles the instruction at offset and returns
// the offset of the next one
func disassembleInstruction(sb *strings.Builder, chunk *Chunk, offset int) int {
	sb.WriteString(fmt.Sprintf("%04d ", offset))

	if offset > 0 && chunk.Lines[offset] == chunk.Lines[offset-1] {
		sb.WriteString("   | ")
	} else {
		sb.WriteString(fmt.Sprintf("%4d ", chunk.Lines[offset]))
	}

	op := Opcode(chunk.Code[offset])
	name, ok := OpcodeNames[op]
	if !ok {
		sb.WriteString(fmt.Sprintf("Unknown opcode %d\n", op))
		return offset + 1
	}

	switch op {
	case OP_CONSTANT, OP_DEFINE_GLOBAL, OP_GET_GLOBAL, OP_SET_GLOBAL:
		return constantInstruction(sb, name, chunk, offset)

	case OP_GET_LOCAL, OP_SET_LOCAL, OP_CALL:
		return byteInstruction(sb, name, chunk, offset)

	case OP_JUMP, OP_JUMP_IF_FALSE:
		return jumpInstruction(sb, name, 1, chunk, offset)

	case OP_LOOP:
		return jumpInstruction(sb, name, -1, chunk, offset)

	default:
		return simpleInstruction(sb, name, offset)
	}
}

func simpleInstruction(sb *strings.Builder, name string, offset int) int {
	sb.WriteString(name)
	sb.WriteByte('\n')
	return offset + 1
}

func constantInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	index := chunk.Code[offset+1]
	sb.WriteString(fmt.Sprintf("%-16s %4d '%s'\n", name, index, chunk.Constants[index].String()))
	return offset + 2
}

func byteInstruction(sb *strings.Builder, name string, chunk *Chunk, offset int) int {
	slot := chunk.Code[offset+1]
	sb.WriteString(fmt.Sprintf("%-16s %4d\n", name, slot))
	return offset + 2
}

func jumpInstruction(sb *strings.Builder, name string, sign int, chunk *Chunk, offset int) int {
	jump := int(chunk.Code[offset+1])<<8 | int(chunk.Code[offset+2])
	target := offset + 3 + sign*jump
	sb.WriteString(fmt.Sprintf("%-16s %4d -> %d\n", name, offset, target))
	return offset + 3
}
