package ndcalc

import (
	"errors"
	"math"
	"sync"

	"github.com/rs/zerolog"

	"github.com/kolkov/ndcalc/internal/compiler"
	"github.com/kolkov/ndcalc/internal/parser"
	"github.com/kolkov/ndcalc/internal/semantic"
)

// ErrInvalidEpsilon is returned when a finite-difference step is not
// finite and positive.
var ErrInvalidEpsilon = errors.New("epsilon must be finite and positive")

// Context holds compile-time defaults. Programs copy the mode, epsilon and
// logger when they are compiled and may override them afterward.
// A Context is safe for concurrent use.
type Context struct {
	mu       sync.Mutex
	mode     Mode
	epsilon  float64
	maxDepth int
	workers  int
	logger   zerolog.Logger
	lastErr  string
}

// Option configures a Context.
type Option func(*Context)

// WithMode sets the default differentiation mode.
func WithMode(m Mode) Option {
	return func(c *Context) {
		if m.valid() {
			c.mode = m
		}
	}
}

// WithEpsilon sets the default finite-difference step. Invalid steps are
// ignored.
func WithEpsilon(eps float64) Option {
	return func(c *Context) {
		if validEpsilon(eps) {
			c.epsilon = eps
		}
	}
}

// WithMaxDepth sets the expression nesting limit.
func WithMaxDepth(depth int) Option {
	return func(c *Context) {
		if depth > 0 {
			c.maxDepth = depth
		}
	}
}

// WithWorkers sets the default worker count for parallel batches.
func WithWorkers(n int) Option {
	return func(c *Context) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithLogger sets the logger for compile and fallback diagnostics.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Context) {
		c.logger = logger
	}
}

// WithConfig applies a Config. Fields left at their zero value keep the
// current setting.
func WithConfig(cfg Config) Option {
	return func(c *Context) {
		if m, err := ParseMode(cfg.Mode); err == nil && cfg.Mode != "" {
			c.mode = m
		}
		WithEpsilon(cfg.Epsilon)(c)
		WithMaxDepth(cfg.MaxDepth)(c)
		WithWorkers(cfg.Workers)(c)
	}
}

// NewContext creates a Context with default settings: Auto mode, epsilon
// 1e-8, nesting limit 100 and a disabled logger.
func NewContext(opts ...Option) *Context {
	c := &Context{
		mode:     ModeAuto,
		epsilon:  DefaultEpsilon,
		maxDepth: DefaultMaxDepth,
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func validEpsilon(eps float64) bool {
	return eps > 0 && !math.IsInf(eps, 0)
}

// Mode returns the default differentiation mode.
func (c *Context) Mode() Mode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mode
}

// SetMode changes the default mode for subsequently compiled programs.
func (c *Context) SetMode(m Mode) {
	if !m.valid() {
		return
	}
	c.mu.Lock()
	c.mode = m
	c.mu.Unlock()
}

// Epsilon returns the default finite-difference step.
func (c *Context) Epsilon() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epsilon
}

// SetEpsilon changes the default step for subsequently compiled programs.
func (c *Context) SetEpsilon(eps float64) error {
	if !validEpsilon(eps) {
		return ErrInvalidEpsilon
	}
	c.mu.Lock()
	c.epsilon = eps
	c.mu.Unlock()
	return nil
}

// MaxDepth returns the expression nesting limit.
func (c *Context) MaxDepth() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maxDepth
}

// LastErrorMessage returns the message of the most recent failed Compile,
// or "" if the most recent Compile succeeded. Evaluation errors are
// returned to the caller and never recorded here.
func (c *Context) LastErrorMessage() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

// Compile parses and compiles expr over the declared variables. The order
// of vars fixes each variable's position in input vectors.
//
// Example:
//
//	ctx := ndcalc.NewContext()
//	prog, err := ctx.Compile("x^2 + y^2", []string{"x", "y"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	v, _ := prog.Evaluate([]float64{3, 4}) // 25
func (c *Context) Compile(expr string, vars []string) (*Program, error) {
	c.mu.Lock()
	settings := programSettings{
		mode:    c.mode,
		epsilon: c.epsilon,
		workers: c.workers,
		logger:  c.logger,
	}
	maxDepth := c.maxDepth
	c.mu.Unlock()

	compiled, err := compile(expr, vars, maxDepth, settings.logger)

	c.mu.Lock()
	if err != nil {
		c.lastErr = err.Error()
	} else {
		c.lastErr = ""
	}
	c.mu.Unlock()

	if err != nil {
		settings.logger.Debug().Err(err).Str("expr", expr).Msg("compile failed")
		return nil, err
	}
	return newProgram(compiled, expr, settings), nil
}

// compile runs the declaration check, parser and compiler.
func compile(expr string, vars []string, maxDepth int, logger zerolog.Logger) (*compiler.Program, error) {
	symbols, err := semantic.Declare(vars)
	if err != nil {
		return nil, newCompileError(err)
	}

	tree, err := parser.Parse(expr, symbols, parser.Options{MaxDepth: maxDepth})
	if err != nil {
		return nil, newParseError(err)
	}

	compiled, err := compiler.Compile(tree, symbols.Names(), compiler.Options{MaxDepth: maxDepth})
	if err != nil {
		return nil, newCompileError(err)
	}

	logger.Debug().
		Str("expr", expr).
		Int("vars", compiled.NumVars).
		Int("instructions", len(compiled.Code)).
		Int("max_stack", compiled.MaxStack).
		Msg("compiled")
	if unused := symbols.Unused(); len(unused) > 0 {
		logger.Debug().Strs("unused", unused).Msg("declared variables not referenced")
	}
	return compiled, nil
}
