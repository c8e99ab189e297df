package compiler

import (
	"fmt"
	"strings"
)

// Program represents a compiled expression ready for VM execution.
// A Program is immutable after compilation and safe for concurrent reads.
type Program struct {
	// Code is the instruction sequence, ending in exactly one Return.
	Code []Instruction

	// NumVars is the number of input variables the program expects.
	NumVars int

	// VarNames holds the declared variable names by index (for disassembly).
	VarNames []string

	// MaxStack is the maximum operand stack depth reached during execution.
	MaxStack int
}

// Disassemble returns a human-readable listing of the program.
func (p *Program) Disassemble() string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Bytecode (variables: %d):\n", p.NumVars)
	for i, in := range p.Code {
		fmt.Fprintf(&sb, "  %d: %s", i, in)
		if in.Op == LoadVar && in.Index >= 0 && in.Index < len(p.VarNames) {
			fmt.Fprintf(&sb, " (%s)", p.VarNames[in.Index])
		}
		sb.WriteByte('\n')
	}
	return sb.String()
}

// VerifyError describes bytecode that breaks a structural invariant.
type VerifyError struct {
	PC      int // Offending instruction, or len(Code) for end-of-code problems
	Message string
}

func (e *VerifyError) Error() string {
	return fmt.Sprintf("bytecode %d: %s", e.PC, e.Message)
}

// Verify statically simulates the operand stack and checks that every
// LoadVar index is in range, no instruction underflows the stack, the code
// ends in exactly one Return, and exactly one value remains at Return.
// It returns the maximum stack depth on success.
func (p *Program) Verify() (int, error) {
	depth, maxDepth := 0, 0

	for pc, in := range p.Code {
		if !in.Op.Valid() {
			return 0, &VerifyError{PC: pc, Message: fmt.Sprintf("unknown opcode %s", in.Op)}
		}
		if n := in.Op.Pops(); depth < n {
			return 0, &VerifyError{PC: pc, Message: fmt.Sprintf("stack underflow in %s", in.Op)}
		}

		switch {
		case in.Op == PushConst:
			depth++
		case in.Op == LoadVar:
			if in.Index < 0 || in.Index >= p.NumVars {
				return 0, &VerifyError{PC: pc, Message: fmt.Sprintf("variable index %d out of bounds", in.Index)}
			}
			depth++
		case in.Op.IsBinary():
			depth--
		case in.Op == Return:
			if pc != len(p.Code)-1 {
				return 0, &VerifyError{PC: pc, Message: "return before end of code"}
			}
			if depth != 1 {
				return 0, &VerifyError{PC: pc, Message: fmt.Sprintf("invalid stack size %d at return", depth)}
			}
		}
		maxDepth = max(maxDepth, depth)
	}

	if len(p.Code) == 0 || p.Code[len(p.Code)-1].Op != Return {
		return 0, &VerifyError{PC: len(p.Code), Message: "missing return instruction"}
	}
	return maxDepth, nil
}
