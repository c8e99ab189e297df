// Package compiler compiles an expression tree into bytecode for the VM.
package compiler

import "fmt"

// Opcode represents a virtual machine instruction.
type Opcode uint8

const (
	// Stack operations
	PushConst Opcode = iota // Push constant: operand in Instruction.Num
	LoadVar   // Push input variable: index in Instruction.Index

	// Binary arithmetic: pop right, pop left, push result
	Add
	Sub
	Mul
	Div
	Pow

	// Unary operations: replace top of stack
	Neg
	Sin
	Cos
	Tan
	Exp
	Log
	Sqrt
	Abs

	// Return pops the single remaining value as the result.
	Return

	numOpcodes
)

var opcodeNames = [numOpcodes]string{
	PushConst: "PUSH_CONST",
	LoadVar:   "LOAD_VAR",
	Add:       "ADD",
	Sub:       "SUB",
	Mul:       "MUL",
	Div:       "DIV",
	Pow:       "POW",
	Neg:       "NEG",
	Sin:       "SIN",
	Cos:       "COS",
	Tan:       "TAN",
	Exp:       "EXP",
	Log:       "LOG",
	Sqrt:      "SQRT",
	Abs:       "ABS",
	Return:    "RETURN",
}

// String returns the listing name of the opcode.
func (op Opcode) String() string {
	if op < numOpcodes {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", uint8(op))
}

// Valid reports whether op is a defined opcode.
func (op Opcode) Valid() bool {
	return op < numOpcodes
}

// IsBinary reports whether op pops two operands.
func (op Opcode) IsBinary() bool {
	return op >= Add && op <= Pow
}

// IsUnary reports whether op transforms the top of stack in place.
func (op Opcode) IsUnary() bool {
	return op >= Neg && op <= Abs
}

// Pops returns the number of operands op consumes.
func (op Opcode) Pops() int {
	switch {
	case op.IsBinary():
		return 2
	case op.IsUnary(), op == Return:
		return 1
	default:
		return 0
	}
}

// Instruction is a single bytecode instruction. Num is meaningful only for
// PushConst and Index only for LoadVar.
type Instruction struct {
	Op    Opcode
	Num   float64
	Index int
}

func (in Instruction) String() string {
	switch in.Op {
	case PushConst:
		return fmt.Sprintf("%s %g", in.Op, in.Num)
	case LoadVar:
		return fmt.Sprintf("%s %d", in.Op, in.Index)
	default:
		return in.Op.String()
	}
}
