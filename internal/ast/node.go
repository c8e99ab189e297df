// Package ast defines the abstract syntax tree for ndcalc expressions.
//
// The tree is a closed sum type: every node implements Expr through an
// unexported marker method, so a type switch over the five node kinds is
// exhaustive.
//
// Node hierarchy:
//
//	Expr (interface)
//	├── NumLit     - numeric literal
//	├── VarRef     - declared variable, resolved to its index
//	├── BinaryExpr - + - * / ^
//	├── UnaryExpr  - unary minus
//	└── CallExpr   - built-in function call
//
// A tree is built by one parse, consumed once by the compiler and then
// discarded. Nodes are never mutated after construction.
package ast

import "github.com/kolkov/ndcalc/internal/token"

// Node is the interface implemented by all AST nodes.
type Node interface {
	// Pos returns the position of the first character belonging to this node.
	Pos() token.Position

	// End returns the position of the first character immediately after this node.
	End() token.Position
}

// Expr is the interface for all expression nodes.
type Expr interface {
	Node
	exprNode() // marker method to prevent external implementations
}

// BaseExpr provides common fields for all expression nodes.
// Embedded in concrete expression types for position tracking.
type BaseExpr struct {
	StartPos token.Position // Position of first token
	EndPos   token.Position // Position after last token
}

func (b *BaseExpr) Pos() token.Position { return b.StartPos }
func (b *BaseExpr) End() token.Position { return b.EndPos }
func (b *BaseExpr) exprNode()           {}

// MakeBaseExpr creates a BaseExpr with the given positions.
func MakeBaseExpr(start, end token.Position) BaseExpr {
	return BaseExpr{StartPos: start, EndPos: end}
}

// Span returns the source span covered by n.
func Span(n Node) token.Span {
	return token.Span{Start: n.Pos(), End: n.End()}
}
