// Package lexer provides tokenization of ndcalc expressions.
package lexer

import (
	"fmt"
	"unicode/utf8"

	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/token"
)

// eof marks the end of input in Lexer.ch.
const eof = -1

// Lexer tokenizes expression source.
type Lexer struct {
	src     []byte         // Source expression
	ch      rune           // Current character (eof at end)
	offset  int            // Byte offset of the next character
	pos     token.Position // Position of current character
	nextPos token.Position // Position of next character
}

// New creates a new Lexer for the given source.
func New(src []byte) *Lexer {
	l := &Lexer{
		src: src,
		nextPos: token.Position{
			Line:   1,
			Column: 1,
		},
	}
	l.next() // Initialize first character
	return l
}

// NewFromString creates a new Lexer from a string.
func NewFromString(src string) *Lexer {
	return New([]byte(src))
}

// Token represents a scanned token with its position and value.
type Token struct {
	Type  token.Token
	Pos   token.Position
	Value string
}

// Error is a lexical error: a character that cannot start any token.
type Error struct {
	Pos     token.Position
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Pos, e.Message)
}

// ErrorKind reports diag.Lexical.
func (e *Error) ErrorKind() diag.Kind {
	return diag.Lexical
}

// Tokenize scans the whole source and returns the token stream terminated
// by an EOF token. Scanning stops at the first illegal character.
func Tokenize(src string) ([]Token, error) {
	l := NewFromString(src)
	var toks []Token
	for {
		tok := l.Scan()
		if tok.Type == token.ILLEGAL {
			return nil, &Error{Pos: tok.Pos, Message: tok.Value}
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			return toks, nil
		}
	}
}

// Scan scans and returns the next token. An unrecognized character yields
// an ILLEGAL token whose Value describes the problem.
func (l *Lexer) Scan() Token {
	l.skipWhitespace()

	// Record position
	pos := l.pos

	if l.ch == eof {
		return Token{Type: token.EOF, Pos: l.endPos()}
	}

	switch l.ch {
	case '+':
		l.next()
		return Token{Type: token.ADD, Pos: pos, Value: "+"}
	case '-':
		l.next()
		return Token{Type: token.SUB, Pos: pos, Value: "-"}
	case '*':
		l.next()
		return Token{Type: token.MUL, Pos: pos, Value: "*"}
	case '/':
		l.next()
		return Token{Type: token.DIV, Pos: pos, Value: "/"}
	case '^':
		l.next()
		return Token{Type: token.POW, Pos: pos, Value: "^"}
	case '(':
		l.next()
		return Token{Type: token.LPAREN, Pos: pos, Value: "("}
	case ')':
		l.next()
		return Token{Type: token.RPAREN, Pos: pos, Value: ")"}
	case ',':
		l.next()
		return Token{Type: token.COMMA, Pos: pos, Value: ","}
	}

	if isDigit(l.ch) || l.ch == '.' {
		return l.scanNumber(pos)
	}
	if isIdentStart(l.ch) {
		return l.scanIdent(pos)
	}

	ch := l.ch
	l.next()
	return Token{
		Type:  token.ILLEGAL,
		Pos:   pos,
		Value: fmt.Sprintf("unexpected character %q at position %d", ch, pos.Offset),
	}
}

func (l *Lexer) scanNumber(pos token.Position) Token {
	start := pos.Offset

	for isDigit(l.ch) {
		l.next()
	}
	if l.ch == '.' {
		l.next()
		for isDigit(l.ch) {
			l.next()
		}
	}
	// Only consume e/E if followed by digit or +/- then digit,
	// so "2e" scans as 2 followed by the name e.
	if l.ch == 'e' || l.ch == 'E' {
		if l.hasValidExponent() {
			l.next() // consume e/E
			if l.ch == '+' || l.ch == '-' {
				l.next()
			}
			for isDigit(l.ch) {
				l.next()
			}
		}
	}

	return Token{Type: token.NUMBER, Pos: pos, Value: string(l.src[start:l.endOffset()])}
}

func (l *Lexer) scanIdent(pos token.Position) Token {
	start := pos.Offset
	for isIdentContinue(l.ch) {
		l.next()
	}
	name := string(l.src[start:l.endOffset()])
	return Token{Type: token.LookupIdent(name), Pos: pos, Value: name}
}

// endOffset returns the byte offset just past the last consumed character.
func (l *Lexer) endOffset() int {
	if l.ch == eof {
		return len(l.src)
	}
	return l.pos.Offset
}

// endPos returns the position of the end of input.
func (l *Lexer) endPos() token.Position {
	p := l.nextPos
	p.Offset = len(l.src)
	return p
}

// hasValidExponent checks if current e/E is followed by a valid exponent.
// Returns true if next char is digit, or +/- followed by digit.
func (l *Lexer) hasValidExponent() bool {
	idx := l.offset // Next char position (after e/E)
	if idx >= len(l.src) {
		return false
	}

	ch := l.src[idx]
	if ch >= '0' && ch <= '9' {
		return true
	}
	if ch == '+' || ch == '-' {
		idx++
		if idx < len(l.src) && l.src[idx] >= '0' && l.src[idx] <= '9' {
			return true
		}
	}
	return false
}

func (l *Lexer) skipWhitespace() {
	for l.ch == ' ' || l.ch == '\t' || l.ch == '\r' || l.ch == '\n' {
		l.next()
	}
}

func (l *Lexer) next() {
	if l.offset >= len(l.src) {
		l.ch = eof
		return
	}

	l.pos = l.nextPos

	r, size := rune(l.src[l.offset]), 1
	if r >= utf8.RuneSelf {
		r, size = utf8.DecodeRune(l.src[l.offset:])
	}
	l.ch = r
	l.offset += size
	l.nextPos.Column += size
	l.nextPos.Offset = l.offset

	if r == '\n' {
		l.nextPos.Line++
		l.nextPos.Column = 1
	}
}

// Helper functions

func isDigit(ch rune) bool {
	return ch >= '0' && ch <= '9'
}

func isIdentStart(ch rune) bool {
	return (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || ch == '_'
}

func isIdentContinue(ch rune) bool {
	return isIdentStart(ch) || isDigit(ch)
}
