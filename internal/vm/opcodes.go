// Package vm implements the Lox bytecode compiler and virtual machine.
package vm

// Opcode represents a single VM instruction
type Opcode byte

const (
	// Constants and literals
	OP_CONSTANT Opcode = iota // Push constant from pool (u8 index)
	OP_NIL                    // Push nil
	OP_TRUE                   // Push true
	OP_FALSE                  // Push false

	// Stack manipulation
	OP_POP // Discard top of stack

	// Variables
	OP_GET_LOCAL     // Push local by stack slot (u8)
	OP_SET_LOCAL     // Store top of stack into slot (u8), no pop
	OP_DEFINE_GLOBAL // Define global named by string constant (u8)
	OP_GET_GLOBAL    // Push global named by string constant (u8)
	OP_SET_GLOBAL    // Store into existing global (u8)

	// Comparison
	OP_EQUAL
	OP_GREATER
	OP_LESS

	// Arithmetic
	OP_ADD // Numbers add, strings concatenate
	OP_SUBTRACT
	OP_MULTIPLY
	OP_DIVIDE

	// Logic
	OP_NOT
	OP_NEGATE

	OP_PRINT // Pop and print with trailing newline

	// Control flow (u16 big-endian offsets)
	OP_JUMP          // Unconditional forward jump
	OP_JUMP_IF_FALSE // Forward jump when top of stack is falsey (no pop)
	OP_LOOP          // Backward jump

	// Functions
	OP_CALL // Call value at stack[top-argCount] with argCount (u8) args
	OP_RETURN
)

// OpcodeNames maps opcodes to their string names (for the disassembler)
var OpcodeNames = map[Opcode]string{
	OP_CONSTANT: "CONSTANT",
	OP_NIL:      "NIL",
	OP_TRUE:     "TRUE",
	OP_FALSE:    "FALSE",

	OP_POP: "POP",

	OP_GET_LOCAL:     "GET_LOCAL",
	OP_SET_LOCAL:     "SET_LOCAL",
	OP_DEFINE_GLOBAL: "DEFINE_GLOBAL",
	OP_GET_GLOBAL:    "GET_GLOBAL",
	OP_SET_GLOBAL:    "SET_GLOBAL",

	OP_EQUAL:   "EQUAL",
	OP_GREATER: "GREATER",
	OP_LESS:    "LESS",

	OP_ADD:      "ADD",
	OP_SUBTRACT: "SUBTRACT",
	OP_MULTIPLY: "MULTIPLY",
	OP_DIVIDE:   "DIVIDE",

	OP_NOT:    "NOT",
	OP_NEGATE: "NEGATE",

	OP_PRINT: "PRINT",

	OP_JUMP:          "JUMP",
	OP_JUMP_IF_FALSE: "JUMP_IF_FALSE",
	OP_LOOP:          "LOOP",

	OP_CALL:   "CALL",
	OP_RETURN: "RETURN",
}
