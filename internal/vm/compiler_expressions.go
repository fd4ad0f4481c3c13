package vm

import (
	"strconv"

	"github.com/funvibe/lox/internal/token"
)

// Precedence levels, low to high. parsePrecedence climbs these while
// folding infix operators left-associatively.
type Precedence int

const (
	PREC_NONE       Precedence = iota
	PREC_ASSIGNMENT            // =
	PREC_OR                    // or
	PREC_AND                   // and
	PREC_EQUALITY              // == !=
	PREC_COMPARISON            // < > <= >=
	PREC_TERM                  // + -
	PREC_FACTOR                // * /
	PREC_UNARY                 // ! -
	PREC_CALL                  // ()
	PREC_PRIMARY
)

// parseFn is a Pratt rule action. Rules receive the parser explicitly, so
// the table below closes over nothing.
type parseFn func(p *Parser, canAssign bool)

type parseRule struct {
	prefix     parseFn
	infix      parseFn
	precedence Precedence
}

// rules is the Pratt table: one row per token type that can start or extend
// an expression. Tokens absent from the table parse as PREC_NONE with no
// actions. Filled in init because the rule bodies consult the table back
// through getRule.
var rules map[token.Type]parseRule

func init() {
	rules = map[token.Type]parseRule{
		token.LPAREN:        {(*Parser).grouping, (*Parser).call, PREC_CALL},
		token.MINUS:         {(*Parser).unary, (*Parser).binary, PREC_TERM},
		token.PLUS:          {nil, (*Parser).binary, PREC_TERM},
		token.SLASH:         {nil, (*Parser).binary, PREC_FACTOR},
		token.STAR:          {nil, (*Parser).binary, PREC_FACTOR},
		token.BANG:          {(*Parser).unary, nil, PREC_NONE},
		token.BANG_EQUAL:    {nil, (*Parser).binary, PREC_EQUALITY},
		token.EQUAL_EQUAL:   {nil, (*Parser).binary, PREC_EQUALITY},
		token.GREATER:       {nil, (*Parser).binary, PREC_COMPARISON},
		token.GREATER_EQUAL: {nil, (*Parser).binary, PREC_COMPARISON},
		token.LESS:          {nil, (*Parser).binary, PREC_COMPARISON},
		token.LESS_EQUAL:    {nil, (*Parser).binary, PREC_COMPARISON},
		token.IDENT:         {(*Parser).variable, nil, PREC_NONE},
		token.STRING:        {(*Parser).stringLiteral, nil, PREC_NONE},
		token.NUMBER:        {(*Parser).number, nil, PREC_NONE},
		token.AND:           {nil, (*Parser).and, PREC_AND},
		token.OR:            {nil, (*Parser).or, PREC_OR},
		token.FALSE:         {(*Parser).literal, nil, PREC_NONE},
		token.TRUE:          {(*Parser).literal, nil, PREC_NONE},
		token.NIL:           {(*Parser).literal, nil, PREC_NONE},
	}
}

func getRule(t token.Type) parseRule {
	return rules[t]
}

// parsePrecedence parses any expression at the given precedence or higher
func (p *Parser) parsePrecedence(precedence Precedence) {
	p.advance()
	prefix := getRule(p.previous.Type).prefix
	if prefix == nil {
		p.error("Expect expression.")
		return
	}

	// Assignment may only be consumed by a rule reached at low enough
	// precedence; deeper rules leave the `=` for the check below.
	canAssign := precedence <= PREC_ASSIGNMENT
	prefix(p, canAssign)

	for precedence <= getRule(p.current.Type).precedence {
		p.advance()
		getRule(p.previous.Type).infix(p, canAssign)
	}

	if canAssign && p.match(token.EQUAL) {
		p.error("Invalid assignment target.")
	}
}

func (p *Parser) expression() {
	p.parsePrecedence(PREC_ASSIGNMENT)
}

// Prefix rules

func (p *Parser) grouping(canAssign bool) {
	p.expression()
	p.consume(token.RPAREN, "Expect ')' after expression.")
}

func (p *Parser) unary(canAssign bool) {
	operator := p.previous.Type

	// Operand first, so the instruction pops a finished value.
	p.parsePrecedence(PREC_UNARY)

	switch operator {
	case token.BANG:
		p.emitOp(OP_NOT)
	case token.MINUS:
		p.emitOp(OP_NEGATE)
	}
}

func (p *Parser) number(canAssign bool) {
	value, _ := strconv.ParseFloat(p.previous.Lexeme, 64)
	p.emitConstant(NumberVal(value))
}

func (p *Parser) stringLiteral(canAssign bool) {
	lexeme := p.previous.Lexeme
	// Trim the surrounding quotes; the text is interned immediately.
	chars := lexeme[1 : len(lexeme)-1]
	p.emitConstant(ObjVal(p.vm.copyString(chars)))
}

func (p *Parser) literal(canAssign bool) {
	switch p.previous.Type {
	case token.FALSE:
		p.emitOp(OP_FALSE)
	case token.TRUE:
		p.emitOp(OP_TRUE)
	case token.NIL:
		p.emitOp(OP_NIL)
	}
}

func (p *Parser) variable(canAssign bool) {
	p.namedVariable(p.previous, canAssign)
}

// namedVariable compiles a read of name, or a write when an `=` follows an
// assignable reference
func (p *Parser) namedVariable(name token.Token, canAssign bool) {
	var getOp, setOp Opcode
	arg := p.resolveLocal(p.compiler, name)
	if arg != -1 {
		getOp, setOp = OP_GET_LOCAL, OP_SET_LOCAL
	} else {
		arg = int(p.identifierConstant(name))
		getOp, setOp = OP_GET_GLOBAL, OP_SET_GLOBAL
	}

	if canAssign && p.match(token.EQUAL) {
		p.expression()
		p.emitOpByte(setOp, byte(arg))
	} else {
		p.emitOpByte(getOp, byte(arg))
	}
}

// resolveLocal walks the function's locals innermost-first, matching by
// lexeme text. Returns the stack slot, or -1 for a global reference.
func (p *Parser) resolveLocal(c *Compiler, name token.Token) int {
	for i := c.localCount - 1; i >= 0; i-- {
		local := &c.locals[i]
		if local.Name.Lexeme == name.Lexeme {
			if local.Depth == -1 {
				p.error("Can't read local variable in its own initializer.")
			}
			return i
		}
	}
	return -1
}

// Infix rules

func (p *Parser) binary(canAssign bool) {
	operator := p.previous.Type
	rule := getRule(operator)

	// One level tighter on the right makes the operator left-associative.
	p.parsePrecedence(rule.precedence + 1)

	switch operator {
	case token.BANG_EQUAL:
		p.emitOps(OP_EQUAL, OP_NOT)
	case token.EQUAL_EQUAL:
		p.emitOp(OP_EQUAL)
	case token.GREATER:
		p.emitOp(OP_GREATER)
	case token.GREATER_EQUAL:
		p.emitOps(OP_LESS, OP_NOT)
	case token.LESS:
		p.emitOp(OP_LESS)
	case token.LESS_EQUAL:
		p.emitOps(OP_GREATER, OP_NOT)
	case token.PLUS:
		p.emitOp(OP_ADD)
	case token.MINUS:
		p.emitOp(OP_SUBTRACT)
	case token.STAR:
		p.emitOp(OP_MULTIPLY)
	case token.SLASH:
		p.emitOp(OP_DIVIDE)
	}
}

// and compiles short-circuit conjunction: the right operand is skipped when
// the left is falsey, and the left value itself is the result.
func (p *Parser) and(canAssign bool) {
	endJump := p.emitJump(OP_JUMP_IF_FALSE)

	p.emitOp(OP_POP)
	p.parsePrecedence(PREC_AND)

	p.patchJump(endJump)
}

// or jumps over the right operand when the left is truthy
func (p *Parser) or(canAssign bool) {
	elseJump := p.emitJump(OP_JUMP_IF_FALSE)
	endJump := p.emitJump(OP_JUMP)

	p.patchJump(elseJump)
	p.emitOp(OP_POP)

	p.parsePrecedence(PREC_OR)
	p.patchJump(endJump)
}

func (p *Parser) call(canAssign bool) {
	argCount := p.argumentList()
	p.emitOpByte(OP_CALL, argCount)
}

func (p *Parser) argumentList() byte {
	var argCount int
	if !p.check(token.RPAREN) {
		for {
			p.expression()
			if argCount == maxArguments {
				p.error("Can't have more than 255 arguments.")
			}
			argCount++
			if !p.match(token.COMMA) {
				break
			}
		}
	}
	p.consume(token.RPAREN, "Expect ')' after arguments.")
	return byte(argCount)
}
