package ast

import "github.com/kolkov/ndcalc/internal/token"

// NumLit represents a numeric literal.
// Examples: 42, 3.14, 1e10, .5
type NumLit struct {
	BaseExpr
	Value float64 // Parsed numeric value
	Raw   string  // Original source text
}

// VarRef represents a reference to a declared variable.
// Index is the variable's position in the declared list.
type VarRef struct {
	BaseExpr
	Name  string
	Index int
}

// BinaryExpr represents a binary arithmetic operation.
// Examples: a + b, x ^ 2
type BinaryExpr struct {
	BaseExpr
	Left  Expr        // Left operand
	Op    token.Token // ADD, SUB, MUL, DIV or POW
	Right Expr        // Right operand
}

// UnaryExpr represents a unary operation. The parser only produces SUB;
// unary plus is dropped.
type UnaryExpr struct {
	BaseExpr
	Op   token.Token
	Expr Expr
}

// CallExpr represents a built-in function call.
// The parser does not check arity; the compiler does.
type CallExpr struct {
	BaseExpr
	Func token.Token // Builtin token (F_SIN, F_POW, ...)
	Name string      // Function name as written
	Args []Expr
}
