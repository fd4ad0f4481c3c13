package vm

import (
	"github.com/funvibe/lox/internal/token"
)

// declaration parses one top-level form. Panic-mode recovery happens here so
// one bad statement yields one diagnostic.
func (p *Parser) declaration() {
	switch {
	case p.match(token.FUN):
		p.funDeclaration()
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.statement()
	}

	if p.panicMode {
		p.synchronize()
	}
}

func (p *Parser) statement() {
	switch {
	case p.match(token.PRINT):
		p.printStatement()
	case p.match(token.IF):
		p.ifStatement()
	case p.match(token.RETURN):
		p.returnStatement()
	case p.match(token.WHILE):
		p.whileStatement()
	case p.match(token.FOR):
		p.forStatement()
	case p.match(token.LBRACE):
		p.beginScope()
		p.block()
		p.endScope()
	default:
		p.expressionStatement()
	}
}

// Scope handling

func (p *Parser) beginScope() {
	p.compiler.scopeDepth++
}

// endScope pops every local that belonged to the closing scope
func (p *Parser) endScope() {
	c := p.compiler
	c.scopeDepth--

	for c.localCount > 0 && c.locals[c.localCount-1].Depth > c.scopeDepth {
		p.emitOp(OP_POP)
		c.localCount--
	}
}

func (p *Parser) block() {
	for !p.check(token.RBRACE) && !p.check(token.EOF) {
		p.declaration()
	}
	p.consume(token.RBRACE, "Expect '}' after block.")
}

// Variable declarations

func (p *Parser) varDeclaration() {
	global := p.parseVariable("Expect variable name.")

	if p.match(token.EQUAL) {
		p.expression()
	} else {
		p.emitOp(OP_NIL)
	}
	p.consume(token.SEMICOLON, "Expect ';' after variable declaration.")

	p.defineVariable(global)
}

// parseVariable consumes the name and declares it. In a block scope the
// local slot is the binding and no constant is needed; at top level the name
// goes into the constant pool for OP_DEFINE_GLOBAL.
func (p *Parser) parseVariable(message string) byte {
	p.consume(token.IDENT, message)

	p.declareVariable()
	if p.compiler.scopeDepth > 0 {
		return 0
	}

	return p.identifierConstant(p.previous)
}

// declareVariable registers a local in the current scope, rejecting a second
// declaration of the same name at the same depth
func (p *Parser) declareVariable() {
	if p.compiler.scopeDepth == 0 {
		return
	}

	name := p.previous
	c := p.compiler
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if local.Depth != -1 && local.Depth < c.scopeDepth {
			break
		}
		if local.Name.Lexeme == name.Lexeme {
			p.error("Already a variable with this name in this scope.")
		}
	}

	p.addLocal(name)
}

// addLocal records the name at depth -1: declared, not yet usable
func (p *Parser) addLocal(name token.Token) {
	c := p.compiler
	if c.localCount == maxLocals {
		p.error("Too many local variables in function.")
		return
	}

	c.locals[c.localCount] = Local{Name: name, Depth: -1}
	c.localCount++
}

// markInitialized flips the newest local from declared to initialized
func (p *Parser) markInitialized() {
	if p.compiler.scopeDepth == 0 {
		return
	}
	p.compiler.locals[p.compiler.localCount-1].Depth = p.compiler.scopeDepth
}

func (p *Parser) defineVariable(global byte) {
	if p.compiler.scopeDepth > 0 {
		p.markInitialized()
		return
	}

	p.emitOpByte(OP_DEFINE_GLOBAL, global)
}

// Function declarations

func (p *Parser) funDeclaration() {
	global := p.parseVariable("Expect function name.")
	// Functions may refer to themselves; the name is usable inside the body.
	p.markInitialized()
	p.function(TYPE_FUNCTION)
	p.defineVariable(global)
}

// function compiles a function body in a fresh compilation context and
// leaves the finished ObjFunction on the enclosing chunk's constant pool
func (p *Parser) function(funcType FunctionType) {
	p.compiler = p.newCompiler(funcType)
	p.beginScope()

	p.consume(token.LPAREN, "Expect '(' after function name.")
	if !p.check(token.RPAREN) {
		for {
			p.compiler.function.Arity++
			if p.compiler.function.Arity > maxArguments {
				p.errorAtCurrent("Can't have more than 255 parameters.")
			}
			constant := p.parseVariable("Expect parameter name.")
			p.defineVariable(constant)
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after parameters.")
	p.consume(token.LBRACE, "Expect '{' before function body.")
	p.block()

	// The context ends with the body; no endScope is needed because the
	// whole frame window is discarded at runtime return.
	fn := p.endCompiler()
	p.emitConstant(ObjVal(fn))
}

// Statements

func (p *Parser) printStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after value.")
	p.emitOp(OP_PRINT)
}

func (p *Parser) expressionStatement() {
	p.expression()
	p.consume(token.SEMICOLON, "Expect ';' after expression.")
	p.emitOp(OP_POP)
}

func (p *Parser) returnStatement() {
	if p.compiler.funcType == TYPE_SCRIPT {
		p.error("Can't return from top-level code.")
	}

	if p.match(token.SEMICOLON) {
		p.emitReturn()
	} else {
		p.expression()
		p.consume(token.SEMICOLON, "Expect ';' after return value.")
		p.emitOp(OP_RETURN)
	}
}

func (p *Parser) ifStatement() {
	p.consume(token.LPAREN, "Expect '(' after 'if'.")
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after condition.")

	// The condition value stays on the stack across the jump; each branch
	// starts by popping it.
	thenJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emitOp(OP_POP)
	p.statement()

	elseJump := p.emitJump(OP_JUMP)
	p.patchJump(thenJump)
	p.emitOp(OP_POP)

	if p.match(token.ELSE) {
		p.statement()
	}
	p.patchJump(elseJump)
}

func (p *Parser) whileStatement() {
	loopStart := p.currentChunk().Len()
	p.consume(token.LPAREN, "Expect '(' after 'while'.")
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after condition.")

	exitJump := p.emitJump(OP_JUMP_IF_FALSE)
	p.emitOp(OP_POP)
	p.statement()
	p.emitLoop(loopStart)

	p.patchJump(exitJump)
	p.emitOp(OP_POP)
}

// forStatement desugars for(init; cond; incr) into while form. The
// increment clause runs after the body, so when present it is compiled
// first behind a jump and the body loops back through it.
func (p *Parser) forStatement() {
	p.beginScope()
	p.consume(token.LPAREN, "Expect '(' after 'for'.")

	switch {
	case p.match(token.SEMICOLON):
		// No initializer.
	case p.match(token.VAR):
		p.varDeclaration()
	default:
		p.expressionStatement()
	}

	loopStart := p.currentChunk().Len()
	exitJump := -1
	if !p.match(token.SEMICOLON) {
		p.expression()
		p.consume(token.SEMICOLON, "Expect ';' after loop condition.")

		exitJump = p.emitJump(OP_JUMP_IF_FALSE)
		p.emitOp(OP_POP)
	}

	if !p.match(token.RPAREN) {
		bodyJump := p.emitJump(OP_JUMP)
		incrementStart := p.currentChunk().Len()
		p.expression()
		p.emitOp(OP_POP)
		p.consume(token.RPAREN, "Expect ')' after for clauses.")

		p.emitLoop(loopStart)
		loopStart = incrementStart
		p.patchJump(bodyJump)
	}

	p.statement()
	p.emitLoop(loopStart)

	if exitJump != -1 {
		p.patchJump(exitJump)
		p.emitOp(OP_POP)
	}

	p.endScope()
}
