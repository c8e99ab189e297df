// Package diag defines the error taxonomy shared by every stage of the
// expression pipeline.
//
// Codes are organized by category:
//   - E1xx: lexical and syntax errors
//   - E2xx: semantic and resource errors
//   - E3xx: evaluation and domain errors
package diag

import "fmt"

// Kind classifies an error by the stage and nature of the failure.
type Kind uint8

const (
	// Unknown is the zero Kind, used for errors that did not originate
	// in the pipeline.
	Unknown Kind = iota

	Lexical    // unrecognized character, malformed number
	Syntax     // unexpected token, unmatched parenthesis, missing argument
	Semantic   // unknown variable, arity mismatch, unknown function
	Resource   // nesting depth exceeded
	Evaluation // input arity mismatch, stack underflow, malformed bytecode
	Domain     // division by zero, log of non-positive, sqrt of negative
)

// Code is a stable identifier for an error kind.
type Code string

const (
	E100 Code = "E100" // lexical error
	E101 Code = "E101" // syntax error
	E200 Code = "E200" // semantic error
	E201 Code = "E201" // resource limit
	E300 Code = "E300" // evaluation error
	E301 Code = "E301" // domain error
	E000 Code = "E000" // unclassified
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case Unknown:
		return "unknown"
	case Lexical:
		return "lexical"
	case Syntax:
		return "syntax"
	case Semantic:
		return "semantic"
	case Resource:
		return "resource"
	case Evaluation:
		return "evaluation"
	case Domain:
		return "domain"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Code returns the stable code for the kind.
func (k Kind) Code() Code {
	switch k {
	case Lexical:
		return E100
	case Syntax:
		return E101
	case Semantic:
		return E200
	case Resource:
		return E201
	case Evaluation:
		return E300
	case Domain:
		return E301
	default:
		return E000
	}
}

// Kinded is implemented by errors that carry a Kind.
type Kinded interface {
	error
	ErrorKind() Kind
}
