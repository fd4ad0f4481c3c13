// Package scanner turns Lox source text into a stream of tokens on demand.
package scanner

import (
	"github.com/funvibe/lox/internal/token"
)

// Scanner produces one token per ScanToken call. It keeps no lookahead
// buffer: just the start of the current lexeme, the read cursor, and the
// current line. Lexemes are substrings of the retained source string.
type Scanner struct {
	source  string
	start   int // start of the lexeme being scanned
	current int // read cursor (next unconsumed byte)
	line    int
}

// New creates a scanner positioned at the beginning of source.
func New(source string) *Scanner {
	return &Scanner{source: source, line: 1}
}

// ScanToken scans and returns the next token. At end of input it returns an
// EOF token; every subsequent call returns EOF again.
func (s *Scanner) ScanToken() token.Token {
	s.skipWhitespace()
	s.start = s.current

	if s.isAtEnd() {
		return s.makeToken(token.EOF)
	}

	c := s.advance()

	if isAlpha(c) {
		return s.identifier()
	}
	if isDigit(c) {
		return s.number()
	}

	switch c {
	case '(':
		return s.makeToken(token.LPAREN)
	case ')':
		return s.makeToken(token.RPAREN)
	case '{':
		return s.makeToken(token.LBRACE)
	case '}':
		return s.makeToken(token.RBRACE)
	case ',':
		return s.makeToken(token.COMMA)
	case '.':
		return s.makeToken(token.DOT)
	case '-':
		return s.makeToken(token.MINUS)
	case '+':
		return s.makeToken(token.PLUS)
	case ';':
		return s.makeToken(token.SEMICOLON)
	case '/':
		return s.makeToken(token.SLASH)
	case '*':
		return s.makeToken(token.STAR)
	case '!':
		if s.match('=') {
			return s.makeToken(token.BANG_EQUAL)
		}
		return s.makeToken(token.BANG)
	case '=':
		if s.match('=') {
			return s.makeToken(token.EQUAL_EQUAL)
		}
		return s.makeToken(token.EQUAL)
	case '<':
		if s.match('=') {
			return s.makeToken(token.LESS_EQUAL)
		}
		return s.makeToken(token.LESS)
	case '>':
		if s.match('=') {
			return s.makeToken(token.GREATER_EQUAL)
		}
		return s.makeToken(token.GREATER)
	case '"':
		return s.stringToken()
	}

	return s.errorToken("Unexpected character.")
}

func (s *Scanner) isAtEnd() bool {
	return s.current >= len(s.source)
}

func (s *Scanner) advance() byte {
	c := s.source[s.current]
	s.current++
	return c
}

func (s *Scanner) peek() byte {
	if s.isAtEnd() {
		return 0
	}
	return s.source[s.current]
}

func (s *Scanner) peekNext() byte {
	if s.current+1 >= len(s.source) {
		return 0
	}
	return s.source[s.current+1]
}

func (s *Scanner) match(expected byte) bool {
	if s.isAtEnd() || s.source[s.current] != expected {
		return false
	}
	s.current++
	return true
}

func (s *Scanner) skipWhitespace() {
	for {
		switch s.peek() {
		case ' ', '\r', '\t':
			s.advance()
		case '\n':
			s.line++
			s.advance()
		case '/':
			if s.peekNext() == '/' {
				// Line comment runs to end of line; the newline itself is
				// left for the next pass so the line counter stays right.
				for s.peek() != '\n' && !s.isAtEnd() {
					s.advance()
				}
			} else {
				return
			}
		default:
			return
		}
	}
}

func (s *Scanner) identifier() token.Token {
	for isAlpha(s.peek()) || isDigit(s.peek()) {
		s.advance()
	}
	return s.makeToken(token.LookupIdent(s.source[s.start:s.current]))
}

func (s *Scanner) number() token.Token {
	for isDigit(s.peek()) {
		s.advance()
	}

	// Fractional part: a dot must be followed by at least one digit.
	if s.peek() == '.' && isDigit(s.peekNext()) {
		s.advance()
		for isDigit(s.peek()) {
			s.advance()
		}
	}

	return s.makeToken(token.NUMBER)
}

func (s *Scanner) stringToken() token.Token {
	for s.peek() != '"' && !s.isAtEnd() {
		if s.peek() == '\n' {
			s.line++
		}
		s.advance()
	}

	if s.isAtEnd() {
		return s.errorToken("Unterminated string.")
	}

	s.advance() // closing quote
	return s.makeToken(token.STRING)
}

func (s *Scanner) makeToken(t token.Type) token.Token {
	return token.Token{
		Type:   t,
		Lexeme: s.source[s.start:s.current],
		Line:   s.line,
	}
}

func (s *Scanner) errorToken(message string) token.Token {
	return token.Token{
		Type:   token.ERROR,
		Lexeme: message,
		Line:   s.line,
	}
}

func isAlpha(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c == '_'
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
