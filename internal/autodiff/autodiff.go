// Package autodiff computes exact derivatives of compiled expressions by
// forward-mode automatic differentiation.
//
// Every operand stack slot carries the value, its gradient with respect to
// the n inputs and, for Hessians, the upper triangle of its n×n second
// derivative matrix. One pass over the bytecode propagates all of them with
// the sum, product, quotient and chain rules.
package autodiff

import (
	"fmt"
	"math"

	"github.com/kolkov/ndcalc/internal/compiler"
	"github.com/kolkov/ndcalc/internal/diag"
	"github.com/kolkov/ndcalc/internal/vm"
)

// AutoDiff holds reusable scratch buffers. It must not be shared between
// goroutines.
type AutoDiff struct {
	n     int // Number of inputs
	order int // 1 for gradients, 2 for Hessians
	slots int // Allocated stack slots
	sp    int

	val  []float64 // Value per slot
	grad []float64 // n entries per slot
	hess []float64 // n*n entries per slot, upper triangle in use
	w    []float64 // Scratch for the general power rule
}

// New creates an AutoDiff with empty scratch.
func New() *AutoDiff {
	return &AutoDiff{}
}

// Gradient returns ∂f/∂x_i at x.
func (ad *AutoDiff) Gradient(prog *compiler.Program, x []float64) ([]float64, error) {
	if err := ad.run(prog, x, 1); err != nil {
		return nil, err
	}
	out := make([]float64, ad.n)
	copy(out, ad.g(0))
	return out, nil
}

// Hessian returns the n×n matrix of second derivatives at x in row-major
// order. The lower triangle mirrors the upper, so the result is exactly
// symmetric.
func (ad *AutoDiff) Hessian(prog *compiler.Program, x []float64) ([]float64, error) {
	if err := ad.run(prog, x, 2); err != nil {
		return nil, err
	}
	n := ad.n
	h := ad.h(0)
	out := make([]float64, n*n)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out[i*n+j] = h[i*n+j]
			out[j*n+i] = h[i*n+j]
		}
	}
	return out, nil
}

func evalError(op compiler.Opcode, format string, args ...any) error {
	return &vm.Error{Kind: diag.Evaluation, Op: op, Message: fmt.Sprintf(format, args...)}
}

// run sweeps the program once, leaving the result in slot 0.
func (ad *AutoDiff) run(prog *compiler.Program, x []float64, order int) error {
	if len(x) != prog.NumVars {
		return vm.InputMismatch(prog.NumVars, len(x))
	}
	ad.reset(len(x), order, max(prog.MaxStack, 1))

	for _, in := range prog.Code {
		op := in.Op
		switch {
		case op == compiler.PushConst:
			ad.push(in.Num)

		case op == compiler.LoadVar:
			if in.Index < 0 || in.Index >= len(x) {
				return evalError(op, "variable index out of bounds: %d", in.Index)
			}
			s := ad.push(x[in.Index])
			ad.g(s)[in.Index] = 1

		case op.IsBinary():
			if ad.sp < 2 {
				return vm.Underflow(op)
			}
			if err := ad.binary(op, ad.sp-2, ad.sp-1); err != nil {
				return err
			}
			ad.sp--
			if err := ad.checkFinite(op, ad.sp-1); err != nil {
				return err
			}

		case op.IsUnary():
			if ad.sp < 1 {
				return vm.Underflow(op)
			}
			if err := ad.unary(op, ad.sp-1); err != nil {
				return err
			}
			if err := ad.checkFinite(op, ad.sp-1); err != nil {
				return err
			}

		case op == compiler.Return:
			if ad.sp != 1 {
				return evalError(op, "invalid stack size at return: %d", ad.sp)
			}
			return nil

		default:
			return evalError(op, "unknown opcode %s", op)
		}
	}
	return evalError(compiler.Return, "missing return instruction")
}

// -----------------------------------------------------------------------------
// Slot storage
// -----------------------------------------------------------------------------

func resize(buf []float64, size int) []float64 {
	if cap(buf) >= size {
		return buf[:size]
	}
	return make([]float64, size)
}

func (ad *AutoDiff) reset(n, order, slots int) {
	ad.n, ad.order, ad.slots, ad.sp = n, order, slots, 0
	ad.val = resize(ad.val, slots)
	ad.grad = resize(ad.grad, slots*n)
	ad.w = resize(ad.w, n)
	if order == 2 {
		ad.hess = resize(ad.hess, slots*n*n)
	}
}

// grow doubles the slot count, keeping the live slots.
func (ad *AutoDiff) grow() {
	slots := ad.slots * 2
	val := make([]float64, slots)
	copy(val, ad.val)
	grad := make([]float64, slots*ad.n)
	copy(grad, ad.grad)
	ad.val, ad.grad = val, grad
	if ad.order == 2 {
		hess := make([]float64, slots*ad.n*ad.n)
		copy(hess, ad.hess)
		ad.hess = hess
	}
	ad.slots = slots
}

// push pushes a value with zero derivatives and returns its slot.
func (ad *AutoDiff) push(v float64) int {
	if ad.sp == ad.slots {
		ad.grow()
	}
	s := ad.sp
	ad.val[s] = v
	clear(ad.g(s))
	if ad.order == 2 {
		clear(ad.h(s))
	}
	ad.sp++
	return s
}

func (ad *AutoDiff) g(s int) []float64 {
	return ad.grad[s*ad.n : (s+1)*ad.n]
}

func (ad *AutoDiff) h(s int) []float64 {
	nn := ad.n * ad.n
	return ad.hess[s*nn : (s+1)*nn]
}

// checkFinite rejects a slot whose derivatives overflowed or became NaN.
func (ad *AutoDiff) checkFinite(op compiler.Opcode, s int) error {
	for _, d := range ad.g(s) {
		if math.IsInf(d, 0) || math.IsNaN(d) {
			return evalError(op, "non-finite derivative in %s", op)
		}
	}
	if ad.order == 2 {
		n, h := ad.n, ad.h(s)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				if d := h[i*n+j]; math.IsInf(d, 0) || math.IsNaN(d) {
					return evalError(op, "non-finite derivative in %s", op)
				}
			}
		}
	}
	return nil
}

// mul0 returns k*x, treating a zero x as an exact zero so that an infinite
// coefficient does not turn a constant into NaN.
func mul0(k, x float64) float64 {
	if x == 0 {
		return 0
	}
	return k * x
}

// -----------------------------------------------------------------------------
// Rules
// -----------------------------------------------------------------------------

// binary combines slots a and b into a.
func (ad *AutoDiff) binary(op compiler.Opcode, a, b int) error {
	n := ad.n
	f, g := ad.val[a], ad.val[b]
	fa, gb := ad.g(a), ad.g(b)
	var ha, hb []float64
	if ad.order == 2 {
		ha, hb = ad.h(a), ad.h(b)
	}

	switch op {
	case compiler.Add:
		ad.val[a] = f + g
		for i := range fa {
			fa[i] += gb[i]
		}
		for i := range ha {
			ha[i] += hb[i]
		}

	case compiler.Sub:
		ad.val[a] = f - g
		for i := range fa {
			fa[i] -= gb[i]
		}
		for i := range ha {
			ha[i] -= hb[i]
		}

	case compiler.Mul:
		ad.val[a] = f * g
		if ha != nil {
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					k := i*n + j
					ha[k] = ha[k]*g + f*hb[k] + fa[i]*gb[j] + fa[j]*gb[i]
				}
			}
		}
		for i := range fa {
			fa[i] = fa[i]*g + f*gb[i]
		}

	case compiler.Div:
		if err := vm.CheckDomain(op, f, g); err != nil {
			return err
		}
		r := f / g
		ad.val[a] = r
		// From f = r*g: r' = (f' - r g') / g.
		for i := range fa {
			fa[i] = (fa[i] - r*gb[i]) / g
		}
		if ha != nil {
			for i := 0; i < n; i++ {
				for j := i; j < n; j++ {
					k := i*n + j
					ha[k] = (ha[k] - fa[i]*gb[j] - fa[j]*gb[i] - r*hb[k]) / g
				}
			}
		}

	case compiler.Pow:
		if ad.constant(b) {
			ad.powConst(a, f, g)
		} else {
			ad.powGeneral(a, b, f, g)
		}
	}
	return nil
}

// constant reports whether slot s has all-zero derivatives.
func (ad *AutoDiff) constant(s int) bool {
	for _, d := range ad.g(s) {
		if d != 0 {
			return false
		}
	}
	if ad.order == 2 {
		for _, d := range ad.h(s) {
			if d != 0 {
				return false
			}
		}
	}
	return true
}

// powConst applies the power rule f^c, valid for negative bases.
func (ad *AutoDiff) powConst(a int, f, c float64) {
	ad.val[a] = math.Pow(f, c)
	d1 := mul0(math.Pow(f, c-1), c)
	var d2 float64
	if ad.order == 2 {
		d2 = mul0(math.Pow(f, c-2), c*(c-1))
	}
	ad.chain(a, d1, d2)
}

// powGeneral differentiates f^g = exp(g ln f).
func (ad *AutoDiff) powGeneral(a, b int, f, g float64) {
	n := ad.n
	fa, gb := ad.g(a), ad.g(b)
	v := math.Pow(f, g)
	lnf := math.Log(f)
	w := ad.w

	// w = (g ln f)'
	for i := 0; i < n; i++ {
		w[i] = mul0(lnf, gb[i]) + mul0(g/f, fa[i])
	}
	if ad.order == 2 {
		ha, hb := ad.h(a), ad.h(b)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				k := i*n + j
				wij := mul0(lnf, hb[k]) +
					mul0(1/f, gb[i]*fa[j]+gb[j]*fa[i]) +
					mul0(g/f, ha[k]) -
					mul0(g/(f*f), fa[i]*fa[j])
				ha[k] = v * (wij + w[i]*w[j])
			}
		}
	}
	for i := 0; i < n; i++ {
		fa[i] = v * w[i]
	}
	ad.val[a] = v
}

// unary applies a one-argument function to slot s.
func (ad *AutoDiff) unary(op compiler.Opcode, s int) error {
	a := ad.val[s]
	if err := vm.CheckDomain(op, a, 0); err != nil {
		return err
	}

	var v, d1, d2 float64
	switch op {
	case compiler.Neg:
		v, d1, d2 = -a, -1, 0
	case compiler.Sin:
		v = math.Sin(a)
		d1, d2 = math.Cos(a), -v
	case compiler.Cos:
		v = math.Cos(a)
		d1, d2 = -math.Sin(a), -v
	case compiler.Tan:
		v = math.Tan(a)
		d1 = 1 + v*v
		d2 = 2 * v * d1
	case compiler.Exp:
		v = math.Exp(a)
		d1, d2 = v, v
	case compiler.Log:
		v = math.Log(a)
		d1 = 1 / a
		d2 = -d1 * d1
	case compiler.Sqrt:
		v = math.Sqrt(a)
		d1 = 0.5 / v
		d2 = -0.25 / (a * v)
	case compiler.Abs:
		v, d1 = math.Abs(a), 1
		if a < 0 {
			d1 = -1
		}
	}
	ad.val[s] = v
	ad.chain(s, d1, d2)
	return nil
}

// chain applies φ(u) to slot s given φ'(u) and φ''(u):
// (φ∘u)_i = φ' u_i and (φ∘u)_ij = φ' u_ij + φ'' u_i u_j.
func (ad *AutoDiff) chain(s int, d1, d2 float64) {
	n := ad.n
	gs := ad.g(s)
	if ad.order == 2 {
		hs := ad.h(s)
		for i := 0; i < n; i++ {
			for j := i; j < n; j++ {
				k := i*n + j
				hs[k] = mul0(d1, hs[k]) + mul0(d2, gs[i]*gs[j])
			}
		}
	}
	for i := range gs {
		gs[i] = mul0(d1, gs[i])
	}
}
