package vm

import (
	"fmt"
	"io"

	"github.com/funvibe/lox/internal/scanner"
	"github.com/funvibe/lox/internal/token"
)

// Compilation limits imposed by the one-byte operand encoding
const (
	maxLocals    = 256
	maxConstants = 256
	maxArguments = 255
	maxJump      = 0xffff
)

// Local represents a local variable during compilation.
// Depth -1 marks a local that is declared but not yet initialized, which is
// what makes `var x = x;` detectable.
type Local struct {
	Name  token.Token
	Depth int
}

// FunctionType distinguishes top-level code from functions
type FunctionType int

const (
	TYPE_SCRIPT FunctionType = iota
	TYPE_FUNCTION
)

// Compiler is the per-function compilation context. Nested function
// declarations push a new Compiler linked through enclosing.
type Compiler struct {
	enclosing *Compiler
	function  *ObjFunction
	funcType  FunctionType

	locals     [maxLocals]Local
	localCount int
	scopeDepth int
}

// Parser drives the single-pass compiler: it owns the token cursor and the
// stack of function compilation contexts, and emits into the innermost
// context's chunk as it goes. No AST is built.
type Parser struct {
	scanner  *scanner.Scanner
	current  token.Token
	previous token.Token

	hadError  bool
	panicMode bool

	compiler *Compiler
	vm       *VM // interning and object registration
	errw     io.Writer
}

// compile runs the source through the single-pass compiler and returns the
// top-level script function. The boolean is false when any compile error was
// reported.
func (vm *VM) compile(source string) (*ObjFunction, bool) {
	p := &Parser{
		scanner: scanner.New(source),
		vm:      vm,
		errw:    vm.errw,
	}
	p.compiler = p.newCompiler(TYPE_SCRIPT)

	p.advance()
	for !p.match(token.EOF) {
		p.declaration()
	}

	fn := p.endCompiler()
	return fn, !p.hadError
}

// newCompiler opens a compilation context. Slot 0 of every function's local
// window is reserved for the callee value itself.
func (p *Parser) newCompiler(funcType FunctionType) *Compiler {
	c := &Compiler{
		enclosing: p.compiler,
		function:  p.vm.newFunction(),
		funcType:  funcType,
	}
	if funcType != TYPE_SCRIPT {
		c.function.Name = p.vm.copyString(p.previous.Lexeme)
	}

	// Reserve stack slot 0 for the function being called.
	c.locals[0] = Local{Depth: 0}
	c.localCount = 1
	return c
}

// endCompiler seals the current function with an implicit return and pops
// the compilation context.
func (p *Parser) endCompiler() *ObjFunction {
	p.emitReturn()
	fn := p.compiler.function

	if p.vm.options.PrintCode && !p.hadError {
		name := "<script>"
		if fn.Name != nil {
			name = fn.Name.Chars
		}
		fmt.Fprint(p.errw, Disassemble(fn.Chunk, name))
	}

	p.compiler = p.compiler.enclosing
	return fn
}

func (p *Parser) currentChunk() *Chunk {
	return p.compiler.function.Chunk
}

// Token cursor

// advance fetches the next token, reporting and skipping ERROR tokens so a
// bad character produces one diagnostic and scanning continues.
func (p *Parser) advance() {
	p.previous = p.current
	for {
		p.current = p.scanner.ScanToken()
		if p.current.Type != token.ERROR {
			break
		}
		p.errorAtCurrent(p.current.Lexeme)
	}
}

// consume advances over the expected token type or reports message
func (p *Parser) consume(t token.Type, message string) {
	if p.current.Type == t {
		p.advance()
		return
	}
	p.errorAtCurrent(message)
}

func (p *Parser) check(t token.Type) bool {
	return p.current.Type == t
}

// match consumes the current token only when it has the given type
func (p *Parser) match(t token.Type) bool {
	if !p.check(t) {
		return false
	}
	p.advance()
	return true
}

// Error reporting

func (p *Parser) errorAt(tok token.Token, message string) {
	// Panic mode swallows everything after the first error in a statement.
	if p.panicMode {
		return
	}
	p.panicMode = true

	fmt.Fprintf(p.errw, "[line %d] Error", tok.Line)
	switch {
	case tok.Type == token.EOF:
		fmt.Fprint(p.errw, " at end")
	case tok.Type == token.ERROR:
		// The lexeme is the error message itself; no location fragment.
	default:
		fmt.Fprintf(p.errw, " at '%s'", tok.Lexeme)
	}
	fmt.Fprintf(p.errw, ": %s\n", message)
	p.hadError = true
}

func (p *Parser) error(message string) {
	p.errorAt(p.previous, message)
}

func (p *Parser) errorAtCurrent(message string) {
	p.errorAt(p.current, message)
}

// synchronize discards tokens until a statement boundary, then leaves panic
// mode so compilation resumes with fresh diagnostics.
func (p *Parser) synchronize() {
	p.panicMode = false

	for p.current.Type != token.EOF {
		if p.previous.Type == token.SEMICOLON {
			return
		}
		switch p.current.Type {
		case token.CLASS, token.FUN, token.VAR, token.FOR,
			token.IF, token.WHILE, token.PRINT, token.RETURN:
			return
		}
		p.advance()
	}
}

// Emit helpers

func (p *Parser) emitByte(b byte) {
	p.currentChunk().Write(b, p.previous.Line)
}

func (p *Parser) emitOp(op Opcode) {
	p.currentChunk().WriteOp(op, p.previous.Line)
}

func (p *Parser) emitOps(op1, op2 Opcode) {
	p.emitOp(op1)
	p.emitOp(op2)
}

func (p *Parser) emitOpByte(op Opcode, b byte) {
	p.emitOp(op)
	p.emitByte(b)
}

func (p *Parser) emitReturn() {
	p.emitOps(OP_NIL, OP_RETURN)
}

// makeConstant adds value to the current chunk's pool, enforcing the
// one-byte index limit
func (p *Parser) makeConstant(value Value) byte {
	index := p.currentChunk().AddConstant(value)
	if index >= maxConstants {
		p.error("Too many constants in one chunk.")
		return 0
	}
	return byte(index)
}

func (p *Parser) emitConstant(value Value) {
	p.emitOpByte(OP_CONSTANT, p.makeConstant(value))
}

// identifierConstant interns the token's lexeme and stores it in the
// constant pool, returning the index used by the global-variable opcodes
func (p *Parser) identifierConstant(name token.Token) byte {
	return p.makeConstant(ObjVal(p.vm.copyString(name.Lexeme)))
}

// Jump patching

// emitJump writes op plus a two-byte placeholder and returns the offset of
// the placeholder for later patching
func (p *Parser) emitJump(op Opcode) int {
	p.emitOp(op)
	p.emitByte(0xff)
	p.emitByte(0xff)
	return p.currentChunk().Len() - 2
}

// patchJump back-fills the placeholder at offset with the distance from the
// byte after the operand to the current end of the chunk
func (p *Parser) patchJump(offset int) {
	jump := p.currentChunk().Len() - offset - 2
	if jump > maxJump {
		p.error("Too much code to jump over.")
	}

	p.currentChunk().Code[offset] = byte((jump >> 8) & 0xff)
	p.currentChunk().Code[offset+1] = byte(jump & 0xff)
}

// emitLoop writes an OP_LOOP whose operand jumps backward to loopStart
func (p *Parser) emitLoop(loopStart int) {
	p.emitOp(OP_LOOP)

	offset := p.currentChunk().Len() - loopStart + 2
	if offset > maxJump {
		p.error("Loop body too large.")
	}

	p.emitByte(byte((offset >> 8) & 0xff))
	p.emitByte(byte(offset & 0xff))
}
