package ndcalc

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/kolkov/ndcalc/internal/autodiff"
	"github.com/kolkov/ndcalc/internal/compiler"
	"github.com/kolkov/ndcalc/internal/finitediff"
	"github.com/kolkov/ndcalc/internal/vm"
)

// programSettings are the Context defaults a Program copies at compile time.
type programSettings struct {
	mode    Mode
	epsilon float64
	workers int
	logger  zerolog.Logger
}

// Program is a compiled expression with its own evaluation scratch.
//
// A Program must not be used from several goroutines at once; use Clone
// to get an independent handle that shares the compiled bytecode.
type Program struct {
	compiled *compiler.Program
	source   string // Original expression for debugging
	programSettings

	vm *vm.VM
	ad *autodiff.AutoDiff
	fd *finitediff.FiniteDiff
}

func newProgram(compiled *compiler.Program, source string, s programSettings) *Program {
	return &Program{
		compiled:        compiled,
		source:          source,
		programSettings: s,
		vm:              vm.New(compiled),
		ad:              autodiff.New(),
		fd:              finitediff.New(s.epsilon),
	}
}

// Clone returns an independent Program sharing the compiled bytecode and
// copying the current mode and epsilon.
func (p *Program) Clone() *Program {
	return newProgram(p.compiled, p.source, p.programSettings)
}

// Evaluate computes the expression at one point. inputs must hold one value
// per declared variable, in declaration order.
func (p *Program) Evaluate(inputs []float64) (float64, error) {
	v, err := p.vm.Execute(inputs)
	if err != nil {
		return 0, newEvalError(err)
	}
	return v, nil
}

// EvaluateBatch evaluates a structure-of-arrays batch: columns[i] holds the
// values of variable i at every point. If evaluation fails at point k, the
// returned slice holds the k valid results computed before it.
func (p *Program) EvaluateBatch(columns [][]float64) ([]float64, error) {
	out := make([]float64, batchLen(columns))
	if err := p.vm.ExecuteBatch(columns, out); err != nil {
		return validPrefix(out, err), newEvalError(err)
	}
	return out, nil
}

// EvaluateBatchInto is EvaluateBatch writing into a caller buffer whose
// length sets the number of points. On failure at point k, out[:k] are
// valid and the rest are unspecified.
func (p *Program) EvaluateBatchInto(columns [][]float64, out []float64) error {
	return newEvalError(p.vm.ExecuteBatch(columns, out))
}

// EvaluateBatchParallel is EvaluateBatch spread across worker goroutines,
// each with its own VM. workers <= 0 uses the configured default.
// The valid-prefix contract of EvaluateBatch holds.
func (p *Program) EvaluateBatchParallel(ctx context.Context, columns [][]float64, workers int) ([]float64, error) {
	if workers <= 0 {
		workers = p.workers
	}
	cfg := vm.DefaultParallelConfig()
	if workers > 0 {
		cfg.NumWorkers = workers
	}
	pe := vm.NewParallelExecutor(p.compiled, cfg)

	out := make([]float64, batchLen(columns))
	if err := pe.Run(ctx, columns, out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			return nil, err
		}
		return validPrefix(out, err), newEvalError(err)
	}
	p.logger.Debug().
		Int("points", len(out)).
		Int("workers", pe.Workers(len(out))).
		Msg("parallel batch")
	return out, nil
}

func batchLen(columns [][]float64) int {
	if len(columns) == 0 {
		return 0
	}
	return len(columns[0])
}

// validPrefix returns the results preceding the failing point.
func validPrefix(out []float64, err error) []float64 {
	var pe *vm.PointError
	if errors.As(err, &pe) {
		return out[:pe.Index]
	}
	return out[:0]
}

// Gradient returns the partial derivatives at point using the program's mode.
func (p *Program) Gradient(point []float64) ([]float64, error) {
	return p.derive("gradient", point, p.ad.Gradient, p.fd.Gradient)
}

// Hessian returns the n×n second derivative matrix at point in row-major
// order using the program's mode.
func (p *Program) Hessian(point []float64) ([]float64, error) {
	return p.derive("hessian", point, p.ad.Hessian, p.fd.Hessian)
}

type deriveFunc func(*compiler.Program, []float64) ([]float64, error)

// derive dispatches on the mode. Auto tries forward mode first and falls
// back to finite differences, returning the finite-difference error if both
// fail.
func (p *Program) derive(what string, point []float64, forward, finite deriveFunc) ([]float64, error) {
	switch p.mode {
	case ModeForward:
		r, err := forward(p.compiled, point)
		return r, newEvalError(err)
	case ModeFiniteDiff:
		r, err := finite(p.compiled, point)
		return r, newEvalError(err)
	}

	r, err := forward(p.compiled, point)
	if err == nil {
		return r, nil
	}
	p.logger.Debug().
		Err(err).
		Str("expr", p.source).
		Str("derivative", what).
		Msg("automatic differentiation failed, falling back to finite differences")

	r, err = finite(p.compiled, point)
	return r, newEvalError(err)
}

// Mode returns the program's differentiation mode.
func (p *Program) Mode() Mode {
	return p.mode
}

// SetMode overrides the differentiation mode for this program.
func (p *Program) SetMode(m Mode) {
	if m.valid() {
		p.mode = m
	}
}

// Epsilon returns the program's finite-difference step.
func (p *Program) Epsilon() float64 {
	return p.epsilon
}

// SetEpsilon overrides the finite-difference step for this program.
func (p *Program) SetEpsilon(eps float64) error {
	if !validEpsilon(eps) {
		return ErrInvalidEpsilon
	}
	if err := p.fd.SetEpsilon(eps); err != nil {
		return err
	}
	p.epsilon = eps
	return nil
}

// Disassemble returns a human-readable listing of the compiled bytecode.
func (p *Program) Disassemble() string {
	return p.compiled.Disassemble()
}

// Source returns the original expression.
func (p *Program) Source() string {
	return p.source
}

// Variables returns the declared variable names in index order.
func (p *Program) Variables() []string {
	return append([]string(nil), p.compiled.VarNames...)
}

// NumVariables returns the number of declared variables.
func (p *Program) NumVariables() int {
	return p.compiled.NumVars
}
