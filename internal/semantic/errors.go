// Package semantic validates declared variable lists and resolves variable
// names to input-vector indices.
//
// Variables are not discovered from the expression: the caller declares
// them up front, and the declaration order fixes each variable's index.
// Every problem in the declaration list is reported at once.
package semantic

import (
	"fmt"
	"strings"

	"github.com/coregx/coregex"
	"github.com/hashicorp/go-multierror"

	"github.com/kolkov/ndcalc/internal/diag"
)

// identPattern matches the lexer's identifier rule.
const identPattern = `^[A-Za-z_][A-Za-z0-9_]*$`

var identRe = mustCompile(identPattern)

func mustCompile(pattern string) *coregex.Regexp {
	re, err := coregex.Compile(pattern)
	if err != nil {
		panic(fmt.Sprintf("semantic: invalid pattern %q: %v", pattern, err))
	}
	return re
}

// Error describes a problem with one declared variable.
type Error struct {
	Index   int    // Position in the declared list
	Name    string // Declared name as given
	Message string
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("variable %d (%q): %s", e.Index, e.Name, e.Message)
}

// ErrorKind reports diag.Semantic.
func (e *Error) ErrorKind() diag.Kind {
	return diag.Semantic
}

// DeclError aggregates every problem found in a declared variable list.
type DeclError struct {
	errs *multierror.Error
}

// Error implements the error interface.
func (e *DeclError) Error() string {
	return e.errs.Error()
}

// ErrorKind reports diag.Semantic.
func (e *DeclError) ErrorKind() diag.Kind {
	return diag.Semantic
}

// Unwrap exposes the individual problems to errors.As.
func (e *DeclError) Unwrap() error {
	return e.errs
}

// Problems returns the individual problems in declaration order.
func (e *DeclError) Problems() []*Error {
	out := make([]*Error, 0, len(e.errs.Errors))
	for _, err := range e.errs.Errors {
		if se, ok := err.(*Error); ok {
			out = append(out, se)
		}
	}
	return out
}

// formatErrors renders a multierror on one line.
func formatErrors(errs []error) string {
	msgs := make([]string, len(errs))
	for i, err := range errs {
		msgs[i] = err.Error()
	}
	if len(msgs) == 1 {
		return "invalid variable declaration: " + msgs[0]
	}
	return fmt.Sprintf("%d invalid variable declarations: %s", len(msgs), strings.Join(msgs, "; "))
}

// Declare validates names and builds the symbol table.
// A name must be a valid identifier, must not shadow a built-in function,
// and must not repeat an earlier name.
func Declare(names []string) (*SymbolTable, error) {
	var result *multierror.Error
	st := NewSymbolTable()

	for i, name := range names {
		switch {
		case !identRe.MatchString(name):
			result = multierror.Append(result, &Error{Index: i, Name: name, Message: "not a valid identifier"})
		case reserved(name):
			result = multierror.Append(result, &Error{Index: i, Name: name, Message: "shadows built-in function"})
		default:
			if st.Define(name) == nil {
				prev, _ := st.Lookup(name)
				result = multierror.Append(result, &Error{
					Index:   i,
					Name:    name,
					Message: fmt.Sprintf("duplicate of variable %d", prev.Index),
				})
			}
		}
	}

	if result != nil {
		result.ErrorFormat = formatErrors
		return nil, &DeclError{errs: result}
	}
	return st, nil
}
