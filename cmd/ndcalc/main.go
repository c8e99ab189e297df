// ndcalc - n-dimensional expression calculator
//
// Evaluates an expression, its gradient and its Hessian at a point, or
// evaluates it over a batch of points read from a file.
// Uses manual argument parsing to support -j4 and -e1e-6 style flags.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"

	"github.com/kolkov/ndcalc"
	"github.com/kolkov/ndcalc/internal/ast"
	"github.com/kolkov/ndcalc/internal/parser"
	"github.com/kolkov/ndcalc/internal/semantic"
)

// version is set by GoReleaser at build time via -ldflags.
// For development builds, it will be "dev".
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const (
	shortUsage = "usage: ndcalc [-v vars] [-p point | -b file] [-g] [-H] [-m mode] 'expr'"
	longUsage  = `Evaluation arguments:
  -v x,y,z          declare variables in input order
  -p 1,2,3          evaluate at this point (one value per variable)
  -b file           evaluate every point in file, one per line ("-" for stdin)
  -j N              use N parallel workers for -b (default: 1 = sequential)

Derivatives:
  -g                print the gradient at the point
  -H                print the Hessian at the point
  -m mode           differentiation mode: auto, forward, finitediff
  -e epsilon        finite-difference step (default 1e-8)

Configuration:
  -c file           load settings from a YAML config file

Debugging arguments:
  -d                print parsed AST to stderr and exit
  -da               print bytecode assembly to stderr and exit
  --debug           log compile and fallback diagnostics to stderr

Other:
  -h, --help        show this help message
  -version          show ndcalc version and exit
`
)

// options holds the parsed command line.
type options struct {
	vars       []string
	point      string
	batchFile  string
	workers    int
	gradient   bool
	hessian    bool
	mode       string
	epsilon    float64
	configFile string
	debugAST   bool
	debugAsm   bool
	debugLog   bool
	expr       string
}

//nolint:gocyclo,funlen // CLI argument parsing is inherently complex
func parseArgs(args []string) options {
	opts := options{workers: 1}

	// needArg returns the value following flag, exiting if there is none.
	var i int
	needArg := func(flag string) string {
		if i+1 >= len(args) {
			errorExitf("flag needs an argument: %s", flag)
		}
		i++
		return args[i]
	}

	for i = 0; i < len(args); i++ {
		// Stop on explicit end of args or first arg not prefixed with "-"
		arg := args[i]
		if arg == "--" {
			i++
			break
		}
		if arg == "-" || !strings.HasPrefix(arg, "-") || isNumber(arg) {
			break
		}

		switch arg {
		case "-v":
			opts.vars = append(opts.vars, splitNames(needArg(arg))...)
		case "-p":
			opts.point = needArg(arg)
		case "-b":
			opts.batchFile = needArg(arg)
		case "-j":
			opts.workers = parseWorkers(needArg(arg))
		case "-g":
			opts.gradient = true
		case "-H":
			opts.hessian = true
		case "-m":
			opts.mode = needArg(arg)
		case "-e":
			opts.epsilon = parseEpsilon(needArg(arg))
		case "-c":
			opts.configFile = needArg(arg)
		case "-d":
			opts.debugAST = true
		case "-da":
			opts.debugAsm = true
		case "--debug":
			opts.debugLog = true
		case "-h", "--help":
			fmt.Printf("ndcalc %s - n-dimensional expression calculator\n\n%s\n\n%s", version, shortUsage, longUsage)
			os.Exit(0)
		case "-version", "--version":
			fmt.Printf("ndcalc version %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
			fmt.Printf("  engine: %s\n", ndcalc.Version)
			os.Exit(0)
		default:
			// Handle flags with no space: -vx,y, -p1,2, -j4, -mfd, etc.
			switch {
			case strings.HasPrefix(arg, "-v"):
				opts.vars = append(opts.vars, splitNames(arg[2:])...)
			case strings.HasPrefix(arg, "-p"):
				opts.point = arg[2:]
			case strings.HasPrefix(arg, "-b"):
				opts.batchFile = arg[2:]
			case strings.HasPrefix(arg, "-j"):
				opts.workers = parseWorkers(arg[2:])
			case strings.HasPrefix(arg, "-m"):
				opts.mode = arg[2:]
			case strings.HasPrefix(arg, "-e"):
				opts.epsilon = parseEpsilon(arg[2:])
			case strings.HasPrefix(arg, "-c"):
				opts.configFile = arg[2:]
			default:
				errorExitf("flag provided but not defined: %s", arg)
			}
		}
	}

	rest := args[i:]
	switch len(rest) {
	case 1:
		opts.expr = rest[0]
	case 0:
		errorExitf(shortUsage)
	default:
		errorExitf("expected one expression, got %d arguments", len(rest))
	}
	return opts
}

func parseWorkers(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		errorExitf("invalid number of workers: %s", s)
	}
	return n
}

func parseEpsilon(s string) float64 {
	eps, err := strconv.ParseFloat(s, 64)
	if err != nil {
		errorExitf("invalid epsilon: %s", s)
	}
	return eps
}

// isNumber reports whether a dash-prefixed argument is a negative number
// rather than a flag, so that "ndcalc -- -1" is not required for "-1+x".
func isNumber(arg string) bool {
	return len(arg) > 1 && (arg[1] >= '0' && arg[1] <= '9' || arg[1] == '.')
}

func main() {
	opts := parseArgs(os.Args[1:])

	logger := zerolog.Nop()
	if opts.debugLog {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
			Level(zerolog.DebugLevel).
			With().Timestamp().Logger()
	}

	ctxOpts := []ndcalc.Option{ndcalc.WithLogger(logger)}
	if opts.configFile != "" {
		cfg, err := ndcalc.LoadConfig(opts.configFile)
		if err != nil {
			errorExit(err)
		}
		ctxOpts = append(ctxOpts, ndcalc.WithConfig(*cfg))
	}
	ctx := ndcalc.NewContext(ctxOpts...)
	if opts.mode != "" {
		m, err := ndcalc.ParseMode(opts.mode)
		if err != nil {
			errorExit(err)
		}
		ctx.SetMode(m)
	}
	if opts.epsilon != 0 {
		if err := ctx.SetEpsilon(opts.epsilon); err != nil {
			errorExit(err)
		}
	}

	// Debug output modes
	if opts.debugAST {
		printAST(opts.expr, opts.vars, ctx.MaxDepth())
		os.Exit(0)
	}

	prog, err := ctx.Compile(opts.expr, opts.vars)
	if err != nil {
		errorExit(err)
	}
	if opts.debugAsm {
		fmt.Fprint(os.Stderr, prog.Disassemble())
		os.Exit(0)
	}

	// Build buffered output for performance
	stdout := bufio.NewWriter(os.Stdout)
	defer stdout.Flush()

	if opts.batchFile != "" {
		if opts.gradient || opts.hessian {
			errorExitf("-g and -H cannot be combined with -b")
		}
		if err := runBatch(stdout, prog, opts.batchFile, opts.workers); err != nil {
			stdout.Flush()
			errorExit(err)
		}
		return
	}

	point, err := parseVector(opts.point)
	if err != nil {
		errorExitf("invalid point: %v", err)
	}
	if err := runPoint(stdout, prog, point, opts.gradient, opts.hessian); err != nil {
		stdout.Flush()
		errorExit(err)
	}
}

// printAST parses expr and writes its tree to stderr.
func printAST(expr string, vars []string, maxDepth int) {
	symbols, err := semantic.Declare(vars)
	if err != nil {
		errorExit(err)
	}
	tree, err := parser.Parse(expr, symbols, parser.Options{MaxDepth: maxDepth})
	if err != nil {
		errorExit(err)
	}
	fmt.Fprint(os.Stderr, ast.Tree(tree))
}

// runPoint prints the value and the requested derivatives at one point.
func runPoint(w *bufio.Writer, prog *ndcalc.Program, point []float64, grad, hess bool) error {
	v, err := prog.Evaluate(point)
	if err != nil {
		return err
	}
	if !grad && !hess {
		fmt.Fprintln(w, formatFloat(v))
		return nil
	}

	fmt.Fprintf(w, "value: %s\n", formatFloat(v))
	if grad {
		g, err := prog.Gradient(point)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "gradient: %s\n", formatRow(g))
	}
	if hess {
		h, err := prog.Hessian(point)
		if err != nil {
			return err
		}
		n := len(point)
		fmt.Fprintln(w, "hessian:")
		for i := 0; i < n; i++ {
			fmt.Fprintf(w, "  %s\n", formatRow(h[i*n:(i+1)*n]))
		}
	}
	return nil
}

// runBatch evaluates every point in file and prints one result per line.
// On failure the results before the failing point are still printed.
func runBatch(w *bufio.Writer, prog *ndcalc.Program, file string, workers int) error {
	in := os.Stdin
	if file != "-" {
		f, err := os.Open(file)
		if err != nil {
			return fmt.Errorf("cannot open file %s: %w", file, err)
		}
		defer f.Close()
		in = f
	}

	columns, err := readBatch(in, prog.NumVariables())
	if err != nil {
		return fmt.Errorf("%s: %w", file, err)
	}

	var out []float64
	if workers > 1 {
		out, err = prog.EvaluateBatchParallel(context.Background(), columns, workers)
	} else {
		out, err = prog.EvaluateBatch(columns)
	}
	for _, v := range out {
		fmt.Fprintln(w, formatFloat(v))
	}
	return err
}

// useColor reports whether stderr is a terminal.
func useColor() bool {
	fd := os.Stderr.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// errorExitf prints formatted error message and exits with code 1
func errorExitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s "+format+"\n", append([]any{prefix()}, args...)...)
	os.Exit(1)
}

// errorExit prints error with its code and exits with code 1
func errorExit(err error) {
	code := string(ndcalc.KindOf(err).Code())
	if useColor() {
		code = color.New(color.FgYellow).Sprint(code)
	}
	fmt.Fprintf(os.Stderr, "%s [%s] %v\n", prefix(), code, err)
	os.Exit(1)
}

func prefix() string {
	if useColor() {
		return color.New(color.FgRed, color.Bold).Sprint("ndcalc:")
	}
	return "ndcalc:"
}
