package compiler

import (
	"fmt"

	"github.com/kolkov/ndcalc/internal/ast"
	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/token"
)

// DefaultMaxDepth bounds the compiler's recursion when Options.MaxDepth is zero.
const DefaultMaxDepth = 100

// CompileError represents a compilation error.
type CompileError struct {
	Kind    diag.Kind
	Message string
}

func (e *CompileError) Error() string {
	return e.Message
}

// ErrorKind returns the kind of the error.
func (e *CompileError) ErrorKind() diag.Kind {
	return e.Kind
}

func compileErrorf(kind diag.Kind, format string, args ...any) *CompileError {
	return &CompileError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Options configures compilation.
type Options struct {
	MaxDepth int
}

// builtin describes how a function call lowers to bytecode.
type builtin struct {
	op    Opcode
	arity int
}

var builtins = map[token.Token]builtin{
	token.F_SIN:  {Sin, 1},
	token.F_COS:  {Cos, 1},
	token.F_TAN:  {Tan, 1},
	token.F_EXP:  {Exp, 1},
	token.F_LOG:  {Log, 1},
	token.F_SQRT: {Sqrt, 1},
	token.F_ABS:  {Abs, 1},
	token.F_POW:  {Pow, 2},
}

var binaryOps = map[token.Token]Opcode{
	token.ADD: Add,
	token.SUB: Sub,
	token.MUL: Mul,
	token.DIV: Div,
	token.POW: Pow,
}

// Compile transforms an expression tree into bytecode. names lists the
// declared variables in index order. On failure no Program is returned.
func Compile(expr ast.Expr, names []string, opts Options) (*Program, error) {
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	c := &compiler{
		numVars:  len(names),
		maxDepth: maxDepth,
	}
	if err := c.compileExpr(expr, 0); err != nil {
		return nil, err
	}
	c.emit(Instruction{Op: Return})

	return &Program{
		Code:     c.code,
		NumVars:  len(names),
		VarNames: append([]string(nil), names...),
		MaxStack: c.maxStack,
	}, nil
}

// compiler holds state for a single compilation.
type compiler struct {
	code     []Instruction
	numVars  int
	maxDepth int
	stack    int // Current simulated stack depth
	maxStack int
}

// emit appends an instruction and tracks the stack depth it leaves behind.
func (c *compiler) emit(in Instruction) {
	c.code = append(c.code, in)

	switch {
	case in.Op == PushConst, in.Op == LoadVar:
		c.stack++
	case in.Op.IsBinary(), in.Op == Return:
		c.stack--
	}
	c.maxStack = max(c.maxStack, c.stack)
}

// compileExpr emits code for expr in post-order.
func (c *compiler) compileExpr(expr ast.Expr, depth int) error {
	if depth >= c.maxDepth {
		return compileErrorf(diag.Resource, "expression too deeply nested (max depth: %d)", c.maxDepth)
	}

	switch e := expr.(type) {
	case *ast.NumLit:
		c.emit(Instruction{Op: PushConst, Num: e.Value})

	case *ast.VarRef:
		if e.Index < 0 || e.Index >= c.numVars {
			return compileErrorf(diag.Semantic, "variable %s index %d out of range for %d variables", e.Name, e.Index, c.numVars)
		}
		c.emit(Instruction{Op: LoadVar, Index: e.Index})

	case *ast.BinaryExpr:
		op, ok := binaryOps[e.Op]
		if !ok {
			return compileErrorf(diag.Semantic, "unsupported binary operator %s", e.Op)
		}
		if err := c.compileExpr(e.Left, depth+1); err != nil {
			return err
		}
		if err := c.compileExpr(e.Right, depth+1); err != nil {
			return err
		}
		c.emit(Instruction{Op: op})

	case *ast.UnaryExpr:
		if e.Op != token.SUB {
			return compileErrorf(diag.Semantic, "unsupported unary operator %s", e.Op)
		}
		if err := c.compileExpr(e.Expr, depth+1); err != nil {
			return err
		}
		c.emit(Instruction{Op: Neg})

	case *ast.CallExpr:
		return c.compileCall(e, depth)

	case nil:
		return compileErrorf(diag.Semantic, "missing expression")

	default:
		return compileErrorf(diag.Semantic, "unexpected expression node %T", expr)
	}
	return nil
}

// compileCall compiles a built-in function call after checking its arity.
func (c *compiler) compileCall(e *ast.CallExpr, depth int) error {
	fn := e.Func
	if !fn.IsBuiltin() {
		fn = token.LookupBuiltin(e.Name)
	}
	b, ok := builtins[fn]
	if !ok {
		return compileErrorf(diag.Semantic, "unknown function: %s", e.Name)
	}
	if len(e.Args) != b.arity {
		return compileErrorf(diag.Semantic, "function %s expects %d argument(s), got %d", e.Name, b.arity, len(e.Args))
	}

	for _, arg := range e.Args {
		if err := c.compileExpr(arg, depth+1); err != nil {
			return err
		}
	}
	c.emit(Instruction{Op: b.op})
	return nil
}
