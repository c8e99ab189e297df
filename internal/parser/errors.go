// Package parser provides a recursive descent parser for ndcalc expressions.
package parser

import (
	"fmt"

	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/token"
)

// ParseError represents an error encountered while parsing.
// It includes source position information and the error kind.
type ParseError struct {
	Pos     token.Position // Position where the error occurred
	Kind    diag.Kind      // Lexical, Syntax, Semantic or Resource
	Message string         // Human-readable error message
}

// Error returns a formatted error message with position information.
func (e *ParseError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s: %s", e.Pos, e.Message)
	}
	return e.Message
}

// ErrorKind returns the kind of the error.
func (e *ParseError) ErrorKind() diag.Kind {
	return e.Kind
}

// errorf creates a ParseError at the given position with formatted message.
func errorf(pos token.Position, kind diag.Kind, format string, args ...any) *ParseError {
	return &ParseError{
		Pos:     pos,
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// syntaxError creates a Syntax ParseError.
func syntaxError(pos token.Position, format string, args ...any) *ParseError {
	return errorf(pos, diag.Syntax, format, args...)
}
