package ndcalc

// Version is the ndcalc version string.
const Version = "0.1.0"

var defaultContext = NewContext()

// Compile parses and compiles an expression over the given variables using
// default settings. The order of vars fixes each variable's position in
// input vectors. For custom settings, use NewContext followed by
// Context.Compile.
//
// Example:
//
//	prog, err := ndcalc.Compile("sin(x) * exp(y)", "x", "y")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, _ := prog.Evaluate([]float64{1, 0})
//	grad, _ := prog.Gradient([]float64{1, 0})
func Compile(expr string, vars ...string) (*Program, error) {
	return defaultContext.Compile(expr, vars)
}

// MustCompile is like Compile but panics if the expression cannot be
// compiled. It simplifies initialization of global program variables.
//
// Example:
//
//	var rosenbrock = ndcalc.MustCompile("(1-x)^2 + 100*(y-x^2)^2", "x", "y")
func MustCompile(expr string, vars ...string) *Program {
	prog, err := Compile(expr, vars...)
	if err != nil {
		panic(err)
	}
	return prog
}

// Eval compiles expr and evaluates it once at values.
// This is a convenience function for one-off evaluation.
// For repeated evaluation of the same expression, use Compile followed by
// Program.Evaluate.
//
// Example:
//
//	v, err := ndcalc.Eval("x*y + 2", []string{"x", "y"}, []float64{3, 4})
//	// v: 14
func Eval(expr string, vars []string, values []float64) (float64, error) {
	prog, err := defaultContext.Compile(expr, vars)
	if err != nil {
		return 0, err
	}
	return prog.Evaluate(values)
}
