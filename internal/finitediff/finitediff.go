// Package finitediff approximates derivatives of compiled expressions with
// central differences.
package finitediff

import (
	"fmt"
	"math"

	"github.com/kolkov/ndcalc/internal/compiler"
	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/vm"
)

// DefaultEpsilon is the default perturbation step.
const DefaultEpsilon = 1e-8

// Error wraps the evaluation failure at a perturbed point.
type Error struct {
	Point string // "+e_1", "-e_0", "+e_0+e_2" or "base point"
	Err   error
}

func (e *Error) Error() string {
	if e.Point == basePoint {
		return fmt.Sprintf("failed to evaluate at base point: %v", e.Err)
	}
	return fmt.Sprintf("failed to evaluate at perturbed point (%s): %v", e.Point, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ErrorKind returns the kind of the underlying failure.
func (e *Error) ErrorKind() diag.Kind {
	if k, ok := e.Err.(diag.Kinded); ok {
		return k.ErrorKind()
	}
	return diag.Evaluation
}

const basePoint = "base point"

// ErrInvalidEpsilon is returned for a step that is not finite and positive.
var ErrInvalidEpsilon = &vm.Error{Kind: diag.Evaluation, Message: "invalid epsilon"}

// FiniteDiff evaluates perturbed points with its own scratch. It must not
// be shared between goroutines.
type FiniteDiff struct {
	eps float64
	vm  *vm.VM
	x   []float64 // Perturbed point
}

// New creates a FiniteDiff with step eps. A non-positive eps selects
// DefaultEpsilon.
func New(eps float64) *FiniteDiff {
	if eps <= 0 || math.IsNaN(eps) || math.IsInf(eps, 0) {
		eps = DefaultEpsilon
	}
	return &FiniteDiff{eps: eps}
}

// Epsilon returns the perturbation step.
func (fd *FiniteDiff) Epsilon() float64 {
	return fd.eps
}

// SetEpsilon changes the perturbation step.
func (fd *FiniteDiff) SetEpsilon(eps float64) error {
	if !(eps > 0) || math.IsInf(eps, 0) {
		return ErrInvalidEpsilon
	}
	fd.eps = eps
	return nil
}

// bind prepares the VM and scratch point for prog.
func (fd *FiniteDiff) bind(prog *compiler.Program, x []float64) error {
	if len(x) != prog.NumVars {
		return vm.InputMismatch(prog.NumVars, len(x))
	}
	if fd.vm == nil || fd.vm.Program() != prog {
		fd.vm = vm.New(prog)
	}
	fd.x = append(fd.x[:0], x...)
	return nil
}

// eval evaluates the scratch point, labeling failures with point.
func (fd *FiniteDiff) eval(point func() string) (float64, error) {
	v, err := fd.vm.Execute(fd.x)
	if err != nil {
		return 0, &Error{Point: point(), Err: err}
	}
	return v, nil
}

func shift(sign byte, i int) string {
	return fmt.Sprintf("%ce_%d", sign, i)
}

// Gradient approximates ∂f/∂x_i by (f(x+h e_i) - f(x-h e_i)) / 2h.
func (fd *FiniteDiff) Gradient(prog *compiler.Program, x []float64) ([]float64, error) {
	if err := fd.bind(prog, x); err != nil {
		return nil, err
	}
	h := fd.eps
	grad := make([]float64, len(x))

	for i := range x {
		fd.x[i] = x[i] + h
		fp, err := fd.eval(func() string { return shift('+', i) })
		if err != nil {
			return nil, err
		}
		fd.x[i] = x[i] - h
		fm, err := fd.eval(func() string { return shift('-', i) })
		if err != nil {
			return nil, err
		}
		fd.x[i] = x[i]
		grad[i] = (fp - fm) / (2 * h)
	}
	return grad, nil
}

// Hessian approximates the n×n second derivative matrix in row-major
// order. Diagonal entries use (f(x+h e_i) - 2f(x) + f(x-h e_i)) / h²;
// off-diagonal entries use the forward formula
// (f(x+h e_i+h e_j) - f(x+h e_i) - f(x+h e_j) + f(x)) / h² and are mirrored.
func (fd *FiniteDiff) Hessian(prog *compiler.Program, x []float64) ([]float64, error) {
	if err := fd.bind(prog, x); err != nil {
		return nil, err
	}
	n := len(x)
	h := fd.eps
	h2 := h * h
	hess := make([]float64, n*n)

	f0, err := fd.eval(func() string { return basePoint })
	if err != nil {
		return nil, err
	}

	// f(x + h e_i), reused by the off-diagonal terms.
	fplus := make([]float64, n)
	for i := range n {
		fd.x[i] = x[i] + h
		fp, err := fd.eval(func() string { return shift('+', i) })
		if err != nil {
			return nil, err
		}
		fd.x[i] = x[i] - h
		fm, err := fd.eval(func() string { return shift('-', i) })
		if err != nil {
			return nil, err
		}
		fd.x[i] = x[i]
		fplus[i] = fp
		hess[i*n+i] = (fp - 2*f0 + fm) / h2
	}

	for i := range n {
		for j := i + 1; j < n; j++ {
			fd.x[i] = x[i] + h
			fd.x[j] = x[j] + h
			fij, err := fd.eval(func() string { return shift('+', i) + shift('+', j) })
			if err != nil {
				return nil, err
			}
			fd.x[i] = x[i]
			fd.x[j] = x[j]

			v := (fij - fplus[i] - fplus[j] + f0) / h2
			hess[i*n+j] = v
			hess[j*n+i] = v
		}
	}
	return hess, nil
}
