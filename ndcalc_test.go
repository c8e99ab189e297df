package ndcalc_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kolkov/ndcalc"
)

func TestEvaluate(t *testing.T) {
	tests := []struct {
		name   string
		expr   string
		vars   []string
		inputs []float64
		want   float64
	}{
		{name: "precedence", expr: "2 + 3 * 4 ^ 2", want: 50},
		{name: "right-associative power", expr: "2 ^ 3 ^ 2", want: 512},
		{name: "unary minus binds tighter than power", expr: "-2 ^ 2", want: 4},
		{name: "sum of squares", expr: "x^2 + y^2", vars: []string{"x", "y"}, inputs: []float64{3, 4}, want: 25},
		{name: "pow function", expr: "pow(x, 3)", vars: []string{"x"}, inputs: []float64{2}, want: 8},
		{name: "unused variable", expr: "x * 2", vars: []string{"x", "y"}, inputs: []float64{1.5, 100}, want: 3},
		{name: "abs", expr: "abs(x - y)", vars: []string{"x", "y"}, inputs: []float64{1, 4}, want: 3},
		{name: "scientific notation", expr: "1.5e2 + 2.5E-1", want: 150.25},
		{name: "unary plus", expr: "+x", vars: []string{"x"}, inputs: []float64{-7}, want: -7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prog, err := ndcalc.Compile(tt.expr, tt.vars...)
			require.NoError(t, err)

			got, err := prog.Evaluate(tt.inputs)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestEvaluateDeterministic(t *testing.T) {
	prog := ndcalc.MustCompile("sin(x) * exp(y) + z^2 / (1 + abs(x))", "x", "y", "z")
	in := []float64{0.3, -1.2, 2.5}

	first, err := prog.Evaluate(in)
	require.NoError(t, err)
	for i := 0; i < 100; i++ {
		got, err := prog.Evaluate(in)
		require.NoError(t, err)
		require.Equal(t, math.Float64bits(first), math.Float64bits(got))
	}
}

func TestEval(t *testing.T) {
	v, err := ndcalc.Eval("x*y + 2", []string{"x", "y"}, []float64{3, 4})
	require.NoError(t, err)
	assert.Equal(t, 14.0, v)

	_, err = ndcalc.Eval("x +", []string{"x"}, []float64{1})
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindSyntax, ndcalc.KindOf(err))
}

func TestMustCompilePanics(t *testing.T) {
	assert.Panics(t, func() { ndcalc.MustCompile("(x", "x") })
}

func TestDomainErrors(t *testing.T) {
	tests := []struct {
		expr    string
		input   float64
		message string
	}{
		{"1/x", 0, "division by zero"},
		{"sqrt(x)", -4, "square root of negative number"},
		{"log(x)", -1, "logarithm of non-positive number"},
		{"log(x)", 0, "logarithm of non-positive number"},
	}

	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			prog := ndcalc.MustCompile(tt.expr, "x")
			_, err := prog.Evaluate([]float64{tt.input})
			require.Error(t, err)
			assert.Equal(t, ndcalc.KindDomain, ndcalc.KindOf(err))
			assert.Equal(t, "domain error: "+tt.message, err.Error())

			var ee *ndcalc.EvalError
			require.True(t, errors.As(err, &ee))
			assert.Equal(t, tt.message, ee.Message)
		})
	}
}

func TestInputMismatch(t *testing.T) {
	prog := ndcalc.MustCompile("x + y", "x", "y")
	_, err := prog.Evaluate([]float64{1})
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindEvaluation, ndcalc.KindOf(err))
	assert.Contains(t, err.Error(), "input count mismatch: expected 2, got 1")
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		vars    []string
		kind    ndcalc.ErrorKind
		message string
	}{
		{name: "unknown variable", expr: "x + w", vars: []string{"x"}, kind: ndcalc.KindSemantic, message: "parse error at column 5: unknown variable: w"},
		{name: "illegal character", expr: "x $ 1", vars: []string{"x"}, kind: ndcalc.KindLexical},
		{name: "unmatched parenthesis", expr: "(x + 1", vars: []string{"x"}, kind: ndcalc.KindSyntax},
		{name: "trailing tokens", expr: "x 1", vars: []string{"x"}, kind: ndcalc.KindSyntax},
		{name: "empty", expr: "", kind: ndcalc.KindSyntax},
		{name: "wrong arity", expr: "sin(x, x)", vars: []string{"x"}, kind: ndcalc.KindSemantic, message: "compile error: function sin expects 1 argument(s), got 2"},
		{name: "invalid declaration", expr: "1", vars: []string{"sin"}, kind: ndcalc.KindSemantic},
		{name: "duplicate declaration", expr: "x", vars: []string{"x", "x"}, kind: ndcalc.KindSemantic},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ndcalc.Compile(tt.expr, tt.vars...)
			require.Error(t, err)
			assert.Equal(t, tt.kind, ndcalc.KindOf(err), "error: %v", err)
			if tt.message != "" {
				assert.Equal(t, tt.message, err.Error())
			}
		})
	}
}

func TestParseErrorPosition(t *testing.T) {
	_, err := ndcalc.Compile("x + w", "x")

	var pe *ndcalc.ParseError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, 4, pe.Offset)
	assert.Equal(t, 1, pe.Line)
	assert.Equal(t, 5, pe.Column)
	assert.Equal(t, "unknown variable: w", pe.Message)
}

func TestDepthLimit(t *testing.T) {
	deep := strings.Repeat("(", 200) + "x" + strings.Repeat(")", 200)
	_, err := ndcalc.Compile(deep, "x")
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindResource, ndcalc.KindOf(err))
	assert.Contains(t, err.Error(), "deeply nested")

	shallow := strings.Repeat("(", 10) + "x" + strings.Repeat(")", 10)
	_, err = ndcalc.Compile(shallow, "x")
	require.NoError(t, err)

	ctx := ndcalc.NewContext(ndcalc.WithMaxDepth(20))
	_, err = ctx.Compile(shallow, []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deeply nested")
}

func TestGradient(t *testing.T) {
	prog := ndcalc.MustCompile("x^2 + y^2", "x", "y")

	for _, mode := range []ndcalc.Mode{ndcalc.ModeAuto, ndcalc.ModeForward} {
		prog.SetMode(mode)
		grad, err := prog.Gradient([]float64{3, 4})
		require.NoError(t, err, mode)
		assert.Equal(t, []float64{6, 8}, grad, mode)
	}

	prog.SetMode(ndcalc.ModeFiniteDiff)
	grad, err := prog.Gradient([]float64{3, 4})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{6, 8}, grad, 1e-5)
}

func TestHessianExact(t *testing.T) {
	prog := ndcalc.MustCompile("x^2 + y^2 + z^2", "x", "y", "z")
	prog.SetMode(ndcalc.ModeForward)

	h, err := prog.Hessian([]float64{1, 2, 3})
	require.NoError(t, err)
	assert.Equal(t, []float64{
		2, 0, 0,
		0, 2, 0,
		0, 0, 2,
	}, h)
}

func TestForwardAndFiniteDiffAgree(t *testing.T) {
	ad := ndcalc.MustCompile("sin(x)*exp(y)+z^2", "x", "y", "z")
	ad.SetMode(ndcalc.ModeForward)
	fd := ad.Clone()
	fd.SetMode(ndcalc.ModeFiniteDiff)

	point := []float64{1, 0.5, 2}
	ga, err := ad.Gradient(point)
	require.NoError(t, err)
	gf, err := fd.Gradient(point)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ga, gf, 1e-5)

	want := []float64{math.Cos(1) * math.Exp(0.5), math.Sin(1) * math.Exp(0.5), 4}
	assert.InDeltaSlice(t, want, ga, 1e-12)

	require.NoError(t, fd.SetEpsilon(1e-4))
	ha, err := ad.Hessian(point)
	require.NoError(t, err)
	hf, err := fd.Hessian(point)
	require.NoError(t, err)
	assert.InDeltaSlice(t, ha, hf, 1e-3)
}

func TestHessianSymmetric(t *testing.T) {
	exprs := []string{
		"sin(x*y) + z^3 * x",
		"exp(x - y) / (1 + z^2)",
		"x^y + log(z)",
		"sqrt(x*x + y*y + z*z)",
	}
	point := []float64{1.3, 0.7, 2.1}

	for _, expr := range exprs {
		prog := ndcalc.MustCompile(expr, "x", "y", "z")
		for _, mode := range []ndcalc.Mode{ndcalc.ModeForward, ndcalc.ModeFiniteDiff} {
			prog.SetMode(mode)
			h, err := prog.Hessian(point)
			require.NoError(t, err, "%s (%s)", expr, mode)
			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					assert.Equal(t, math.Float64bits(h[i*3+j]), math.Float64bits(h[j*3+i]),
						"%s (%s): H[%d][%d] != H[%d][%d]", expr, mode, i, j, j, i)
				}
			}
		}
	}
}

func TestAutoFallsBackToFiniteDiff(t *testing.T) {
	var logs bytes.Buffer
	ctx := ndcalc.NewContext(ndcalc.WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)))

	// The forward-mode power rule has an infinite log term at a zero base.
	prog, err := ctx.Compile("x^y", []string{"x", "y"})
	require.NoError(t, err)
	point := []float64{0, 2}

	prog.SetMode(ndcalc.ModeForward)
	_, err = prog.Gradient(point)
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindEvaluation, ndcalc.KindOf(err))
	assert.Contains(t, err.Error(), "non-finite derivative")

	prog.SetMode(ndcalc.ModeAuto)
	grad, err := prog.Gradient(point)
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0}, grad, 1e-6)
	assert.Contains(t, logs.String(), "falling back to finite differences")
}

func TestAutoReportsFiniteDiffError(t *testing.T) {
	prog := ndcalc.MustCompile("sqrt(x)", "x")
	_, err := prog.Gradient([]float64{0})
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindDomain, ndcalc.KindOf(err))
	assert.Contains(t, err.Error(), "failed to evaluate at perturbed point (-e_0)")
}

func TestDerivativeNoPartialResult(t *testing.T) {
	prog := ndcalc.MustCompile("1/x", "x")
	prog.SetMode(ndcalc.ModeForward)
	grad, err := prog.Gradient([]float64{0})
	require.Error(t, err)
	assert.Nil(t, grad)
	assert.Equal(t, ndcalc.KindDomain, ndcalc.KindOf(err))
}

func TestEvaluateBatch(t *testing.T) {
	prog := ndcalc.MustCompile("x * y + 1", "x", "y")
	out, err := prog.EvaluateBatch([][]float64{
		{1, 2, 3},
		{4, 5, 6},
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{5, 11, 19}, out)

	out, err = prog.EvaluateBatch([][]float64{{1, 2}, {3, 4}})
	require.NoError(t, err)
	assert.Equal(t, []float64{4, 9}, out)

	_, err = prog.EvaluateBatch([][]float64{{1, 2}})
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindEvaluation, ndcalc.KindOf(err))

	_, err = prog.EvaluateBatch([][]float64{{1, 2}, {3}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "column length mismatch")
}

func TestEvaluateBatchPartialWrite(t *testing.T) {
	prog := ndcalc.MustCompile("y / x", "x", "y")
	xs := []float64{1, 2, 4, 0, 5}
	ys := []float64{3, 3, 3, 3, 3}

	out, err := prog.EvaluateBatch([][]float64{xs, ys})
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindDomain, ndcalc.KindOf(err))
	assert.Equal(t, "domain error: point 3: division by zero", err.Error())
	require.Len(t, out, 3)
	for i, got := range out {
		want, err := prog.Evaluate([]float64{xs[i], ys[i]})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	buf := make([]float64, len(xs))
	err = prog.EvaluateBatchInto([][]float64{xs, ys}, buf)
	require.Error(t, err)
	assert.Equal(t, []float64{3, 1.5, 0.75}, buf[:3])
}

func TestEvaluateBatchParallel(t *testing.T) {
	const n = 5000
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i) * 0.01
		ys[i] = float64(n-i) * 0.02
	}
	prog := ndcalc.MustCompile("sin(x) * cos(y) + x^2", "x", "y")

	serial, err := prog.EvaluateBatch([][]float64{xs, ys})
	require.NoError(t, err)

	for _, workers := range []int{0, 1, 3, 8} {
		t.Run(fmt.Sprintf("workers=%d", workers), func(t *testing.T) {
			out, err := prog.EvaluateBatchParallel(context.Background(), [][]float64{xs, ys}, workers)
			require.NoError(t, err)
			assert.Equal(t, serial, out)
		})
	}
}

func TestEvaluateBatchParallelPartialWrite(t *testing.T) {
	const n = 4096
	xs := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i + 1)
	}
	xs[3000] = 0
	xs[3500] = 0
	prog := ndcalc.MustCompile("1 / x", "x")

	out, err := prog.EvaluateBatchParallel(context.Background(), [][]float64{xs}, 4)
	require.Error(t, err)
	assert.Equal(t, ndcalc.KindDomain, ndcalc.KindOf(err))
	assert.Contains(t, err.Error(), "point 3000")
	require.Len(t, out, 3000)
	assert.Equal(t, 1.0, out[0])
	assert.Equal(t, 1.0/3000, out[2999])
}

func TestEvaluateBatchParallelCanceled(t *testing.T) {
	prog := ndcalc.MustCompile("x + 1", "x")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := prog.EvaluateBatchParallel(ctx, [][]float64{make([]float64, 10000)}, 2)
	require.ErrorIs(t, err, context.Canceled)
}

func TestContextSettings(t *testing.T) {
	ctx := ndcalc.NewContext()
	assert.Equal(t, ndcalc.ModeAuto, ctx.Mode())
	assert.Equal(t, ndcalc.DefaultEpsilon, ctx.Epsilon())
	assert.Equal(t, ndcalc.DefaultMaxDepth, ctx.MaxDepth())

	ctx.SetMode(ndcalc.ModeFiniteDiff)
	require.NoError(t, ctx.SetEpsilon(1e-6))
	for _, bad := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		assert.ErrorIs(t, ctx.SetEpsilon(bad), ndcalc.ErrInvalidEpsilon)
	}
	assert.Equal(t, 1e-6, ctx.Epsilon())

	prog, err := ctx.Compile("x", []string{"x"})
	require.NoError(t, err)
	assert.Equal(t, ndcalc.ModeFiniteDiff, prog.Mode())
	assert.Equal(t, 1e-6, prog.Epsilon())

	// Programs keep the settings they were compiled with.
	ctx.SetMode(ndcalc.ModeForward)
	assert.Equal(t, ndcalc.ModeFiniteDiff, prog.Mode())

	require.NoError(t, prog.SetEpsilon(1e-3))
	assert.ErrorIs(t, prog.SetEpsilon(-1), ndcalc.ErrInvalidEpsilon)
	assert.Equal(t, 1e-3, prog.Epsilon())
	assert.Equal(t, 1e-6, ctx.Epsilon())
}

func TestLastErrorMessage(t *testing.T) {
	ctx := ndcalc.NewContext()
	assert.Empty(t, ctx.LastErrorMessage())

	_, err := ctx.Compile("x + ", []string{"x"})
	require.Error(t, err)
	assert.Equal(t, err.Error(), ctx.LastErrorMessage())

	prog, err := ctx.Compile("1 / x", []string{"x"})
	require.NoError(t, err)
	assert.Empty(t, ctx.LastErrorMessage())

	// Evaluation errors are not recorded.
	_, err = prog.Evaluate([]float64{0})
	require.Error(t, err)
	assert.Empty(t, ctx.LastErrorMessage())
}

func TestCompileLogging(t *testing.T) {
	var logs bytes.Buffer
	ctx := ndcalc.NewContext(ndcalc.WithLogger(zerolog.New(&logs).Level(zerolog.DebugLevel)))

	_, err := ctx.Compile("x + 1", []string{"x", "unused"})
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"message":"compiled"`)
	assert.Contains(t, logs.String(), `"unused":["unused"]`)

	logs.Reset()
	_, err = ctx.Compile("x +", []string{"x"})
	require.Error(t, err)
	assert.Contains(t, logs.String(), `"message":"compile failed"`)
}

func TestClone(t *testing.T) {
	prog := ndcalc.MustCompile("x^3", "x")
	prog.SetMode(ndcalc.ModeForward)
	clone := prog.Clone()
	assert.Equal(t, ndcalc.ModeForward, clone.Mode())

	clone.SetMode(ndcalc.ModeFiniteDiff)
	assert.Equal(t, ndcalc.ModeForward, prog.Mode())

	a, err := prog.Evaluate([]float64{2})
	require.NoError(t, err)
	b, err := clone.Evaluate([]float64{2})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestProgramIntrospection(t *testing.T) {
	src := "x * y + 2"
	prog := ndcalc.MustCompile(src, "x", "y")

	assert.Equal(t, src, prog.Source())
	assert.Equal(t, 2, prog.NumVariables())

	vars := prog.Variables()
	assert.Equal(t, []string{"x", "y"}, vars)
	vars[0] = "changed"
	assert.Equal(t, []string{"x", "y"}, prog.Variables())

	dis := prog.Disassemble()
	assert.Equal(t, "Bytecode (variables: 2):\n"+
		"  0: LOAD_VAR 0 (x)\n"+
		"  1: LOAD_VAR 1 (y)\n"+
		"  2: MUL\n"+
		"  3: PUSH_CONST 2\n"+
		"  4: ADD\n"+
		"  5: RETURN\n", dis)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    ndcalc.Mode
		wantErr bool
	}{
		{in: "auto", want: ndcalc.ModeAuto},
		{in: "", want: ndcalc.ModeAuto},
		{in: "Forward", want: ndcalc.ModeForward},
		{in: "ad", want: ndcalc.ModeForward},
		{in: "finitediff", want: ndcalc.ModeFiniteDiff},
		{in: "finite-diff", want: ndcalc.ModeFiniteDiff},
		{in: "FD", want: ndcalc.ModeFiniteDiff},
		{in: "reverse", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ndcalc.ParseMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "finitediff", ndcalc.ModeFiniteDiff.String())
}

func TestParseConfig(t *testing.T) {
	cfg, err := ndcalc.ParseConfig([]byte("mode: forward\nepsilon: 1e-6\nmax_depth: 50\nworkers: 4\n"), "test.yaml")
	require.NoError(t, err)
	assert.Equal(t, &ndcalc.Config{Mode: "forward", Epsilon: 1e-6, MaxDepth: 50, Workers: 4}, cfg)

	ctx := ndcalc.NewContext(ndcalc.WithConfig(*cfg))
	assert.Equal(t, ndcalc.ModeForward, ctx.Mode())
	assert.Equal(t, 1e-6, ctx.Epsilon())
	assert.Equal(t, 50, ctx.MaxDepth())
}

func TestParseConfigDefaults(t *testing.T) {
	for _, data := range []string{"", "mode: auto\n"} {
		cfg, err := ndcalc.ParseConfig([]byte(data), "test.yaml")
		require.NoError(t, err)
		assert.Equal(t, "auto", cfg.Mode)
		assert.Equal(t, ndcalc.DefaultEpsilon, cfg.Epsilon)
		assert.Equal(t, ndcalc.DefaultMaxDepth, cfg.MaxDepth)
		assert.Equal(t, 0, cfg.Workers)
	}
}

func TestParseConfigErrors(t *testing.T) {
	_, err := ndcalc.ParseConfig([]byte("mode: sideways\nepsilon: -1\nworkers: -2\n"), "bad.yaml")
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, `bad.yaml: mode: unknown mode "sideways"`)
	assert.Contains(t, msg, "bad.yaml: epsilon must be finite and positive")
	assert.Contains(t, msg, "bad.yaml: workers must not be negative")

	_, err = ndcalc.ParseConfig([]byte("precision: 3\n"), "unknown.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing unknown.yaml")

	_, err = ndcalc.LoadConfig("testdata/does-not-exist.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config")
}

func BenchmarkEvaluate(b *testing.B) {
	prog := ndcalc.MustCompile("sin(x)*exp(y)+z^2", "x", "y", "z")
	in := []float64{1, 0.5, 2}
	for b.Loop() {
		_, _ = prog.Evaluate(in)
	}
}

func BenchmarkGradient(b *testing.B) {
	prog := ndcalc.MustCompile("sin(x)*exp(y)+z^2", "x", "y", "z")
	prog.SetMode(ndcalc.ModeForward)
	in := []float64{1, 0.5, 2}
	for b.Loop() {
		_, _ = prog.Gradient(in)
	}
}

func BenchmarkEvaluateBatch(b *testing.B) {
	const n = 4096
	xs := make([]float64, n)
	ys := make([]float64, n)
	for i := range xs {
		xs[i] = float64(i)
		ys[i] = float64(n - i)
	}
	prog := ndcalc.MustCompile("x*y + sqrt(x)", "x", "y")
	columns := [][]float64{xs, ys}
	for b.Loop() {
		_, _ = prog.EvaluateBatch(columns)
	}
}

func ExampleCompile() {
	prog, _ := ndcalc.Compile("x^2 + y^2", "x", "y")
	v, _ := prog.Evaluate([]float64{3, 4})
	grad, _ := prog.Gradient([]float64{3, 4})
	fmt.Println(v, grad)
	// Output: 25 [6 8]
}

func ExampleEval() {
	v, _ := ndcalc.Eval("2 + 3 * 4 ^ 2", nil, nil)
	fmt.Println(v)
	// Output: 50
}
