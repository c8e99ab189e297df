package ndcalc

import (
	"errors"
	"fmt"

	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/parser"
)

// ErrorKind classifies an error by the stage and nature of the failure.
type ErrorKind = diag.Kind

// Error kinds.
const (
	KindUnknown    = diag.Unknown
	KindLexical    = diag.Lexical    // unrecognized character, malformed number
	KindSyntax     = diag.Syntax     // unexpected token, unmatched parenthesis
	KindSemantic   = diag.Semantic   // unknown variable or function, arity mismatch
	KindResource   = diag.Resource   // nesting depth exceeded
	KindEvaluation = diag.Evaluation // input count mismatch, malformed bytecode, non-finite derivative
	KindDomain     = diag.Domain     // division by zero, log of non-positive, sqrt of negative
)

// ParseError represents an error found while reading expression source.
type ParseError struct {
	Offset  int       // 0-based byte offset
	Line    int       // 1-based line number
	Column  int       // 1-based column number
	Kind    ErrorKind // Lexical, Syntax, Semantic or Resource
	Message string    // Error description
}

func (e *ParseError) Error() string {
	if e.Line > 1 {
		return fmt.Sprintf("parse error at %d:%d: %s", e.Line, e.Column, e.Message)
	}
	return fmt.Sprintf("parse error at column %d: %s", e.Column, e.Message)
}

// ErrorKind returns the kind of the error.
func (e *ParseError) ErrorKind() ErrorKind { return e.Kind }

// CompileError represents an error in the variable declarations or while
// lowering the expression to bytecode.
type CompileError struct {
	Kind    ErrorKind // Semantic or Resource
	Message string    // Error description
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile error: %s", e.Message)
}

// ErrorKind returns the kind of the error.
func (e *CompileError) ErrorKind() ErrorKind { return e.Kind }

// EvalError represents an error during evaluation or differentiation.
type EvalError struct {
	Kind    ErrorKind // Evaluation or Domain
	Message string    // Error description
	Err     error     // Underlying error
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("%s error: %s", e.Kind, e.Message)
}

func (e *EvalError) Unwrap() error { return e.Err }

// ErrorKind returns the kind of the error.
func (e *EvalError) ErrorKind() ErrorKind { return e.Kind }

// KindOf returns the kind of err, or KindUnknown if err carries none.
func KindOf(err error) ErrorKind {
	var k diag.Kinded
	if errors.As(err, &k) {
		return k.ErrorKind()
	}
	return KindUnknown
}

// newParseError converts an internal parser error to the public type.
func newParseError(err error) error {
	var pe *parser.ParseError
	if errors.As(err, &pe) {
		return &ParseError{
			Offset:  pe.Pos.Offset,
			Line:    pe.Pos.Line,
			Column:  pe.Pos.Column,
			Kind:    pe.Kind,
			Message: pe.Message,
		}
	}
	return &ParseError{Kind: KindOf(err), Message: err.Error()}
}

// newCompileError converts a declaration or compiler error to the public type.
func newCompileError(err error) error {
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindSemantic
	}
	return &CompileError{Kind: kind, Message: err.Error()}
}

// newEvalError wraps an evaluation or differentiation failure.
func newEvalError(err error) error {
	if err == nil {
		return nil
	}
	kind := KindOf(err)
	if kind == KindUnknown {
		kind = KindEvaluation
	}
	return &EvalError{Kind: kind, Message: err.Error(), Err: err}
}
