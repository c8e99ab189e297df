// Package ndcalc compiles mathematical expressions over named variables and
// evaluates them, together with their gradients and Hessians, at points in
// n-dimensional space.
//
// Expressions use the arithmetic operators + - * / and ^, unary signs,
// parentheses, and the functions sin, cos, tan, exp, log, sqrt, abs and
// pow. Exponentiation is right-associative and binds looser than unary
// minus, so -2^2 is (-2)^2 = 4 and 2^3^2 is 2^9.
//
// # Quick Start
//
// For simple one-off evaluation:
//
//	v, err := ndcalc.Eval("x^2 + y^2", []string{"x", "y"}, []float64{3, 4})
//
// # Compiled Programs
//
// For repeated evaluation of the same expression:
//
//	prog, err := ndcalc.Compile("sin(x) * exp(y) + z^2", "x", "y", "z")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, _ := prog.Evaluate([]float64{1, 0.5, 2})
//	grad, _ := prog.Gradient([]float64{1, 0.5, 2})
//	hess, _ := prog.Hessian([]float64{1, 0.5, 2}) // row-major n×n
//
// Batches are passed as one column per variable:
//
//	out, err := prog.EvaluateBatch([][]float64{xs, ys, zs})
//
// # Differentiation Modes
//
// [ModeForward] propagates exact derivatives alongside values.
// [ModeFiniteDiff] uses central differences with a configurable step.
// [ModeAuto], the default, tries forward mode and falls back to finite
// differences when forward mode fails.
//
// # Configuration
//
// A [Context] carries the default mode, finite-difference step, nesting
// limit and logger for the programs it compiles. Settings can be loaded
// from YAML with [LoadConfig] and applied with [WithConfig].
//
// # Error Handling
//
// Errors are returned as specific types for detailed handling:
//   - [ParseError]: lexical, syntax and name errors in the expression
//   - [CompileError]: invalid declarations and nesting limits
//   - [EvalError]: input mismatches, domain errors and failed derivatives
//
// [KindOf] classifies any of them by [ErrorKind].
//
// # Thread Safety
//
// A [Context] is safe for concurrent use. A [Program] owns its evaluation
// scratch and must not be shared between goroutines; use [Program.Clone]
// to get an independent handle, or [Program.EvaluateBatchParallel] to
// spread a batch across workers.
package ndcalc
