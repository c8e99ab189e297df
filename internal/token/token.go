// Package token defines lexical tokens for ndcalc expressions.
package token

import "strconv"

// Token represents a lexical token type.
type Token uint8

const (
	// Special tokens
	ILLEGAL Token = iota // <illegal>
	EOF                  // EOF

	// Operators and delimiters
	operatorStart
	ADD // +
	SUB // -
	MUL // *
	DIV // /
	POW // ^
	operatorEnd

	LPAREN // (
	RPAREN // )
	COMMA  // ,

	// Built-in functions
	builtinStart
	F_SIN  // sin
	F_COS  // cos
	F_TAN  // tan
	F_EXP  // exp
	F_LOG  // log
	F_SQRT // sqrt
	F_ABS  // abs
	F_POW  // pow
	builtinEnd

	// Literals
	NAME   // name
	NUMBER // number
)

// IsOperator returns true if the token is an arithmetic operator.
func (t Token) IsOperator() bool {
	return t > operatorStart && t < operatorEnd
}

// IsBuiltin returns true if the token is a built-in function.
func (t Token) IsBuiltin() bool {
	return t > builtinStart && t < builtinEnd
}

// IsLiteral returns true if the token is a literal (name or number).
func (t Token) IsLiteral() bool {
	return t == NAME || t == NUMBER
}

// String returns the source form of operators and delimiters and a
// descriptive name for everything else.
func (t Token) String() string {
	switch t {
	case ILLEGAL:
		return "illegal"
	case EOF:
		return "end of expression"
	case ADD:
		return "+"
	case SUB:
		return "-"
	case MUL:
		return "*"
	case DIV:
		return "/"
	case POW:
		return "^"
	case LPAREN:
		return "("
	case RPAREN:
		return ")"
	case COMMA:
		return ","
	case NAME:
		return "name"
	case NUMBER:
		return "number"
	}
	for name, tok := range builtins {
		if tok == t {
			return name
		}
	}
	return "token(" + strconv.Itoa(int(t)) + ")"
}

// builtins maps built-in function names to their token types.
var builtins = map[string]Token{
	"sin":  F_SIN,
	"cos":  F_COS,
	"tan":  F_TAN,
	"exp":  F_EXP,
	"log":  F_LOG,
	"sqrt": F_SQRT,
	"abs":  F_ABS,
	"pow":  F_POW,
}

// LookupIdent returns the token type for a given identifier.
// Returns a builtin token if found, otherwise NAME.
func LookupIdent(ident string) Token {
	if tok, ok := builtins[ident]; ok {
		return tok
	}
	return NAME
}

// LookupBuiltin returns the token type for a builtin function, or ILLEGAL if not found.
func LookupBuiltin(name string) Token {
	if tok, ok := builtins[name]; ok {
		return tok
	}
	return ILLEGAL
}

// IsBuiltinName reports whether name is reserved for a built-in function.
func IsBuiltinName(name string) bool {
	_, ok := builtins[name]
	return ok
}

// BuiltinNames returns the reserved function names in a fixed order.
func BuiltinNames() []string {
	return []string{"sin", "cos", "tan", "exp", "log", "sqrt", "abs", "pow"}
}
