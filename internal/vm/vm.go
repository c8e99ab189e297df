// Package vm provides the stack machine that evaluates compiled expressions.
//
// A VM owns a reusable operand stack and must be used by one goroutine at a
// time. The compiled program it runs is never modified, so any number of VMs
// may share one program.
package vm

import (
	"fmt"
	"math"

	"github.com/kolkov/ndcalc/internal/compiler"
	"github.com/kolkov/ndcalc/internal/diag"
)

// DefaultStackSize is the minimum initial stack capacity.
const DefaultStackSize = 16

// Error is an evaluation failure raised while executing bytecode.
type Error struct {
	Kind    diag.Kind // Evaluation or Domain
	Op      compiler.Opcode
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// ErrorKind returns the kind of the error.
func (e *Error) ErrorKind() diag.Kind {
	return e.Kind
}

func evalError(op compiler.Opcode, format string, args ...any) *Error {
	return &Error{Kind: diag.Evaluation, Op: op, Message: fmt.Sprintf(format, args...)}
}

func domainError(op compiler.Opcode, msg string) *Error {
	return &Error{Kind: diag.Domain, Op: op, Message: msg}
}

// Messages shared with the differentiation engines.
const (
	MsgDivisionByZero = "division by zero"
	MsgLogNonPositive = "logarithm of non-positive number"
	MsgSqrtNegative   = "square root of negative number"
)

// CheckDomain reports the domain error op raises for its operands, or nil.
// b is ignored by unary ops.
func CheckDomain(op compiler.Opcode, a, b float64) error {
	switch op {
	case compiler.Div:
		if b == 0 {
			return domainError(op, MsgDivisionByZero)
		}
	case compiler.Log:
		if a <= 0 {
			return domainError(op, MsgLogNonPositive)
		}
	case compiler.Sqrt:
		if a < 0 {
			return domainError(op, MsgSqrtNegative)
		}
	}
	return nil
}

// Underflow returns the error for an instruction that found too few operands.
func Underflow(op compiler.Opcode) error {
	return evalError(op, "stack underflow in %s", op)
}

// InputMismatch returns the error for an input vector of the wrong length.
func InputMismatch(want, got int) error {
	return evalError(compiler.Return, "input count mismatch: expected %d, got %d", want, got)
}

// VM is the expression virtual machine.
type VM struct {
	program *compiler.Program

	stack []float64
	sp    int // Stack pointer (index of next free slot)

	point []float64 // Gather buffer for batch rows
}

// New creates a VM for the given program.
func New(prog *compiler.Program) *VM {
	return &VM{
		program: prog,
		stack:   make([]float64, max(prog.MaxStack, DefaultStackSize)),
		point:   make([]float64, prog.NumVars),
	}
}

// Program returns the program the VM executes.
func (vm *VM) Program() *compiler.Program {
	return vm.program
}

// push pushes a value, growing the stack for programs without a MaxStack.
func (vm *VM) push(v float64) {
	if vm.sp == len(vm.stack) {
		vm.stack = append(vm.stack, make([]float64, len(vm.stack))...)
	}
	vm.stack[vm.sp] = v
	vm.sp++
}

// Execute evaluates the program at one point.
func (vm *VM) Execute(inputs []float64) (float64, error) {
	p := vm.program
	if len(inputs) != p.NumVars {
		return 0, InputMismatch(p.NumVars, len(inputs))
	}
	vm.sp = 0

	for _, in := range p.Code {
		op := in.Op
		switch {
		case op == compiler.PushConst:
			vm.push(in.Num)

		case op == compiler.LoadVar:
			if in.Index < 0 || in.Index >= len(inputs) {
				return 0, evalError(op, "variable index out of bounds: %d", in.Index)
			}
			vm.push(inputs[in.Index])

		case op.IsBinary():
			if vm.sp < 2 {
				return 0, Underflow(op)
			}
			vm.sp--
			b := vm.stack[vm.sp]
			a := vm.stack[vm.sp-1]
			var r float64
			switch op {
			case compiler.Add:
				r = a + b
			case compiler.Sub:
				r = a - b
			case compiler.Mul:
				r = a * b
			case compiler.Div:
				if b == 0 {
					return 0, domainError(op, MsgDivisionByZero)
				}
				r = a / b
			case compiler.Pow:
				r = math.Pow(a, b)
			}
			vm.stack[vm.sp-1] = r

		case op.IsUnary():
			if vm.sp < 1 {
				return 0, Underflow(op)
			}
			a := vm.stack[vm.sp-1]
			var r float64
			switch op {
			case compiler.Neg:
				r = -a
			case compiler.Sin:
				r = math.Sin(a)
			case compiler.Cos:
				r = math.Cos(a)
			case compiler.Tan:
				r = math.Tan(a)
			case compiler.Exp:
				r = math.Exp(a)
			case compiler.Log:
				if a <= 0 {
					return 0, domainError(op, MsgLogNonPositive)
				}
				r = math.Log(a)
			case compiler.Sqrt:
				if a < 0 {
					return 0, domainError(op, MsgSqrtNegative)
				}
				r = math.Sqrt(a)
			case compiler.Abs:
				r = math.Abs(a)
			}
			vm.stack[vm.sp-1] = r

		case op == compiler.Return:
			if vm.sp != 1 {
				return 0, evalError(op, "invalid stack size at return: %d", vm.sp)
			}
			return vm.stack[0], nil

		default:
			return 0, evalError(op, "unknown opcode %s", op)
		}
	}
	return 0, evalError(compiler.Return, "missing return instruction")
}

// PointError reports the batch point at which evaluation failed.
type PointError struct {
	Index int
	Err   error
}

func (e *PointError) Error() string {
	return fmt.Sprintf("point %d: %v", e.Index, e.Err)
}

func (e *PointError) Unwrap() error {
	return e.Err
}

// ErrorKind returns the kind of the underlying failure.
func (e *PointError) ErrorKind() diag.Kind {
	if k, ok := e.Err.(diag.Kinded); ok {
		return k.ErrorKind()
	}
	return diag.Evaluation
}

// CheckBatch validates the shape of a structure-of-arrays batch:
// one column per variable, each as long as out.
func CheckBatch(prog *compiler.Program, columns [][]float64, out []float64) error {
	if len(columns) != prog.NumVars {
		return evalError(compiler.LoadVar, "input count mismatch: expected %d columns, got %d", prog.NumVars, len(columns))
	}
	for i, col := range columns {
		if len(col) != len(out) {
			return evalError(compiler.LoadVar, "column length mismatch: column %d has %d points, want %d", i, len(col), len(out))
		}
	}
	return nil
}

// ExecuteBatch evaluates the program at every point of a column batch,
// writing results to out. It stops at the first failing point and returns
// a *PointError; out[:Index] hold valid results and the rest are unspecified.
func (vm *VM) ExecuteBatch(columns [][]float64, out []float64) error {
	if err := CheckBatch(vm.program, columns, out); err != nil {
		return err
	}
	_, err := vm.executeRange(columns, out, 0, len(out), nil)
	return err
}

// executeRange evaluates points [lo, hi). stop, if non-nil, is polled
// between points; when it returns true the range is abandoned and the index
// reached is returned with a nil error.
func (vm *VM) executeRange(columns [][]float64, out []float64, lo, hi int, stop func(i int) bool) (int, error) {
	for i := lo; i < hi; i++ {
		if stop != nil && stop(i) {
			return i, nil
		}
		for j, col := range columns {
			vm.point[j] = col[i]
		}
		v, err := vm.Execute(vm.point)
		if err != nil {
			return i, &PointError{Index: i, Err: err}
		}
		out[i] = v
	}
	return hi, nil
}
