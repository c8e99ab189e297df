package token

import "fmt"

// Position represents a position in an expression.
type Position struct {
	// Line number (1-indexed). Expressions are usually a single line.
	Line int
	// Column is the byte offset on the line (1-indexed).
	Column int
	// Offset is the byte offset from the start of the expression (0-indexed).
	Offset int
}

// String returns "line:column", or just "column N" for single-line input.
func (p Position) String() string {
	if p.Line > 1 {
		return fmt.Sprintf("%d:%d", p.Line, p.Column)
	}
	return fmt.Sprintf("column %d", p.Column)
}

// IsValid returns true if the position is valid (line > 0).
func (p Position) IsValid() bool {
	return p.Line > 0
}

// Span represents a range in an expression from Start to End (exclusive).
type Span struct {
	Start Position
	End   Position
}

// Len returns the length of the span in bytes.
func (s Span) Len() int {
	return s.End.Offset - s.Start.Offset
}

// Text returns the slice of src covered by the span.
func (s Span) Text(src string) string {
	if s.Start.Offset < 0 || s.End.Offset > len(src) || s.Start.Offset > s.End.Offset {
		return ""
	}
	return src[s.Start.Offset:s.End.Offset]
}

// NoPos is a zero Position used when position is unknown.
var NoPos = Position{}
