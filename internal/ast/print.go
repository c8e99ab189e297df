package ast

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// Printer provides pretty-printing for AST nodes.
// Expressions print fully parenthesized so the parse structure is visible:
// -2^2 prints as ((-2) ^ 2).
type Printer struct {
	w      io.Writer
	indent int
	err    error
}

// NewPrinter creates a new Printer that writes to w.
func NewPrinter(w io.Writer) *Printer {
	return &Printer{w: w}
}

// Print writes a parenthesized rendering of the expression to the writer.
func (p *Printer) Print(node Expr) error {
	p.printExpr(node)
	return p.err
}

// PrintTree writes one node per line, indented by depth.
func (p *Printer) PrintTree(node Expr) error {
	p.printTree(node)
	return p.err
}

func (p *Printer) printf(format string, args ...any) {
	if p.err != nil {
		return
	}
	_, p.err = fmt.Fprintf(p.w, format, args...)
}

func (p *Printer) writeIndent() {
	if p.err != nil {
		return
	}
	for i := 0; i < p.indent; i++ {
		_, p.err = io.WriteString(p.w, "  ")
	}
}

func (p *Printer) printExpr(e Expr) {
	if e == nil {
		p.printf("<nil>")
		return
	}

	switch n := e.(type) {
	case *NumLit:
		p.printf("%s", formatNum(n))

	case *VarRef:
		p.printf("%s", n.Name)

	case *BinaryExpr:
		p.printf("(")
		p.printExpr(n.Left)
		p.printf(" %s ", n.Op)
		p.printExpr(n.Right)
		p.printf(")")

	case *UnaryExpr:
		p.printf("(%s", n.Op)
		p.printExpr(n.Expr)
		p.printf(")")

	case *CallExpr:
		p.printf("%s(", n.Name)
		for i, arg := range n.Args {
			if i > 0 {
				p.printf(", ")
			}
			p.printExpr(arg)
		}
		p.printf(")")

	default:
		p.printf("<%T>", e)
	}
}

func (p *Printer) printTree(e Expr) {
	p.writeIndent()
	switch n := e.(type) {
	case *NumLit:
		p.printf("Number %s\n", formatNum(n))
	case *VarRef:
		p.printf("Variable %s [%d]\n", n.Name, n.Index)
	case *BinaryExpr:
		p.printf("Binary %s\n", n.Op)
		p.indent++
		p.printTree(n.Left)
		p.printTree(n.Right)
		p.indent--
	case *UnaryExpr:
		p.printf("Unary %s\n", n.Op)
		p.indent++
		p.printTree(n.Expr)
		p.indent--
	case *CallExpr:
		p.printf("Call %s/%d\n", n.Name, len(n.Args))
		p.indent++
		for _, arg := range n.Args {
			p.printTree(arg)
		}
		p.indent--
	case nil:
		p.printf("<nil>\n")
	default:
		p.printf("<%T>\n", e)
	}
}

// String returns the parenthesized rendering of the expression.
func String(node Expr) string {
	var sb strings.Builder
	p := NewPrinter(&sb)
	p.Print(node)
	return sb.String()
}

// Tree returns the indented tree rendering of the expression.
func Tree(node Expr) string {
	var sb strings.Builder
	p := NewPrinter(&sb)
	p.PrintTree(node)
	return sb.String()
}

func formatNum(n *NumLit) string {
	if n.Raw != "" {
		return n.Raw
	}
	return strconv.FormatFloat(n.Value, 'g', -1, 64)
}
