package parser

import (
	"strconv"

	"github.com/kolkov/ndcalc/internal/ast"
	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/lexer"
	"github.com/kolkov/ndcalc/internal/semantic"
	"github.com/kolkov/ndcalc/internal/token"
)

// DefaultMaxDepth is the nesting limit used when Options.MaxDepth is zero.
const DefaultMaxDepth = 100

// Options configures a parse.
type Options struct {
	// MaxDepth bounds the recursion depth of the grammar productions.
	// Every production adds one level, so a parenthesized group costs four.
	MaxDepth int
}

// Parser is a recursive descent parser for arithmetic expressions.
//
// Grammar, lowest precedence first:
//
//	Expr    := Term (('+' | '-') Term)*
//	Term    := Factor (('*' | '/') Factor)*
//	Factor  := Primary ('^' Factor)?
//	Primary := ('-' | '+') Primary
//	         | NUMBER | NAME
//	         | FUNC '(' [Expr (',' Expr)*] ')'
//	         | '(' Expr ')'
type Parser struct {
	lexer    *lexer.Lexer // Lexer instance
	tok      lexer.Token  // Current token
	prevTok  lexer.Token  // Previous token (for end positions)
	symbols  *semantic.SymbolTable
	maxDepth int
}

// Parse parses src into an expression tree. Variable names resolve against
// symbols; a nil table declares no variables.
func Parse(src string, symbols *semantic.SymbolTable, opts Options) (ast.Expr, error) {
	if symbols == nil {
		symbols = semantic.NewSymbolTable()
	}
	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	p := &Parser{
		lexer:    lexer.NewFromString(src),
		symbols:  symbols,
		maxDepth: maxDepth,
	}
	p.next() // Initialize first token

	expr, err := p.parseExpr(0)
	if err != nil {
		return nil, err
	}
	if p.tok.Type == token.ILLEGAL {
		return nil, p.illegal()
	}
	if p.tok.Type != token.EOF {
		return nil, syntaxError(p.tok.Pos, "unexpected tokens after expression")
	}
	return expr, nil
}

// -----------------------------------------------------------------------------
// Token handling
// -----------------------------------------------------------------------------

// next advances to the next token.
func (p *Parser) next() {
	p.prevTok = p.tok
	p.tok = p.lexer.Scan()
}

// endPos returns the position just past the previous token.
func (p *Parser) endPos() token.Position {
	pos := p.prevTok.Pos
	pos.Offset += len(p.prevTok.Value)
	pos.Column += len(p.prevTok.Value)
	return pos
}

// enter fails when a production at depth would exceed the nesting limit.
func (p *Parser) enter(depth int) error {
	if depth >= p.maxDepth {
		return errorf(p.tok.Pos, diag.Resource, "expression too deeply nested (max depth: %d)", p.maxDepth)
	}
	return nil
}

// illegal converts the current ILLEGAL token into a lexical error.
func (p *Parser) illegal() *ParseError {
	return errorf(p.tok.Pos, diag.Lexical, "%s", p.tok.Value)
}

// -----------------------------------------------------------------------------
// Productions
// -----------------------------------------------------------------------------

// parseExpr parses + and - expressions.
func (p *Parser) parseExpr(depth int) (ast.Expr, error) {
	return p.parseBinaryLeft(depth, p.parseTerm, token.ADD, token.SUB)
}

// parseTerm parses * and / expressions.
func (p *Parser) parseTerm(depth int) (ast.Expr, error) {
	return p.parseBinaryLeft(depth, p.parseFactor, token.MUL, token.DIV)
}

// parseFactor parses ^ expressions (right-associative).
func (p *Parser) parseFactor(depth int) (ast.Expr, error) {
	if err := p.enter(depth); err != nil {
		return nil, err
	}

	expr, err := p.parsePrimary(depth + 1)
	if err != nil {
		return nil, err
	}

	if p.tok.Type == token.POW {
		p.next()
		right, err := p.parseFactor(depth + 1) // Right-associative
		if err != nil {
			return nil, err
		}
		return &ast.BinaryExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
			Left:     expr,
			Op:       token.POW,
			Right:    right,
		}, nil
	}
	return expr, nil
}

// parsePrimary parses literals, variables, calls, groups and unary signs.
func (p *Parser) parsePrimary(depth int) (ast.Expr, error) {
	if err := p.enter(depth); err != nil {
		return nil, err
	}
	startPos := p.tok.Pos

	switch p.tok.Type {
	case token.SUB:
		p.next()
		operand, err := p.parsePrimary(depth + 1)
		if err != nil {
			return nil, err
		}
		return &ast.UnaryExpr{
			BaseExpr: ast.MakeBaseExpr(startPos, operand.End()),
			Op:       token.SUB,
			Expr:     operand,
		}, nil

	case token.ADD:
		// Unary plus produces no node.
		p.next()
		return p.parsePrimary(depth + 1)

	case token.NUMBER:
		raw := p.tok.Value
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errorf(startPos, diag.Lexical, "invalid number literal %q", raw)
		}
		p.next()
		return &ast.NumLit{
			BaseExpr: ast.MakeBaseExpr(startPos, p.endPos()),
			Value:    n,
			Raw:      raw,
		}, nil

	case token.NAME:
		name := p.tok.Value
		sym, ok := p.symbols.Resolve(name)
		if !ok {
			return nil, errorf(startPos, diag.Semantic, "unknown variable: %s", name)
		}
		p.next()
		return &ast.VarRef{
			BaseExpr: ast.MakeBaseExpr(startPos, p.endPos()),
			Name:     name,
			Index:    sym.Index,
		}, nil

	case token.LPAREN:
		p.next()
		expr, err := p.parseExpr(depth + 1)
		if err != nil {
			return nil, err
		}
		if p.tok.Type == token.ILLEGAL {
			return nil, p.illegal()
		}
		if p.tok.Type != token.RPAREN {
			return nil, syntaxError(p.tok.Pos, "expected closing parenthesis, got %s", p.tokenDesc())
		}
		p.next()
		return expr, nil

	case token.ILLEGAL:
		return nil, p.illegal()

	case token.EOF:
		return nil, syntaxError(startPos, "unexpected end of expression")
	}

	if p.tok.Type.IsBuiltin() {
		return p.parseCall(depth)
	}
	return nil, syntaxError(startPos, "unexpected token %s", p.tokenDesc())
}

// parseCall parses a built-in function call. Arity is checked by the compiler.
func (p *Parser) parseCall(depth int) (ast.Expr, error) {
	startPos := p.tok.Pos
	fn := p.tok.Type
	name := p.tok.Value
	p.next()

	if p.tok.Type != token.LPAREN {
		return nil, syntaxError(p.tok.Pos, "expected '(' after function name %s", name)
	}
	p.next()

	var args []ast.Expr
	if p.tok.Type != token.RPAREN {
		for {
			arg, err := p.parseExpr(depth + 1)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)

			if p.tok.Type != token.COMMA {
				break
			}
			p.next()
		}
	}

	if p.tok.Type == token.ILLEGAL {
		return nil, p.illegal()
	}
	if p.tok.Type != token.RPAREN {
		return nil, syntaxError(p.tok.Pos, "expected ',' or ')' in function call, got %s", p.tokenDesc())
	}
	p.next()

	return &ast.CallExpr{
		BaseExpr: ast.MakeBaseExpr(startPos, p.endPos()),
		Func:     fn,
		Name:     name,
		Args:     args,
	}, nil
}

// -----------------------------------------------------------------------------
// Helper functions
// -----------------------------------------------------------------------------

// parseBinaryLeft parses left-associative binary operators.
func (p *Parser) parseBinaryLeft(depth int, higher func(int) (ast.Expr, error), ops ...token.Token) (ast.Expr, error) {
	if err := p.enter(depth); err != nil {
		return nil, err
	}

	expr, err := higher(depth + 1)
	if err != nil {
		return nil, err
	}

	for p.match(ops...) {
		op := p.tok.Type
		p.next()
		right, err := higher(depth + 1)
		if err != nil {
			return nil, err
		}
		expr = &ast.BinaryExpr{
			BaseExpr: ast.MakeBaseExpr(expr.Pos(), right.End()),
			Left:     expr,
			Op:       op,
			Right:    right,
		}
	}
	return expr, nil
}

// match returns true if current token matches any of the given types.
func (p *Parser) match(types ...token.Token) bool {
	for _, t := range types {
		if p.tok.Type == t {
			return true
		}
	}
	return false
}

// tokenDesc returns a description of the current token for error messages.
func (p *Parser) tokenDesc() string {
	switch p.tok.Type {
	case token.NAME, token.NUMBER:
		return p.tok.Value
	default:
		return p.tok.Type.String()
	}
}
