package vm

import (
	"context"
	"math"
	"runtime"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/kolkov/ndcalc/internal/compiler"
)

// ParallelConfig holds configuration for parallel batch execution.
type ParallelConfig struct {
	// NumWorkers is the number of parallel worker goroutines.
	// Default: runtime.NumCPU()
	NumWorkers int

	// MinChunk is the smallest number of points worth a goroutine.
	// Small batches use fewer workers.
	// Default: 1024
	MinChunk int
}

// DefaultParallelConfig returns sensible defaults for parallel execution.
func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		NumWorkers: runtime.NumCPU(),
		MinChunk:   1024,
	}
}

// ParallelExecutor evaluates a batch across worker goroutines. The point
// range is split into contiguous shards, one per worker, and every worker
// runs its own VM against the shared program.
type ParallelExecutor struct {
	program *compiler.Program
	config  ParallelConfig
}

// NewParallelExecutor creates a new parallel executor for the given program.
func NewParallelExecutor(prog *compiler.Program, config ParallelConfig) *ParallelExecutor {
	if config.NumWorkers <= 0 {
		config.NumWorkers = runtime.NumCPU()
	}
	if config.MinChunk <= 0 {
		config.MinChunk = 1024
	}
	return &ParallelExecutor{
		program: prog,
		config:  config,
	}
}

// Workers returns the number of workers Run would start for n points.
func (pe *ParallelExecutor) Workers(n int) int {
	w := (n + pe.config.MinChunk - 1) / pe.config.MinChunk
	return max(1, min(w, pe.config.NumWorkers))
}

// shardResult records where a worker stopped and why.
type shardResult struct {
	index int
	err   error
}

// Run evaluates every point of the batch into out. On failure it returns
// the error of the lowest failing point (a *PointError, or the context's
// error if cancellation came first) and every entry of out below that
// index is populated. Cancellation is checked between points.
func (pe *ParallelExecutor) Run(ctx context.Context, columns [][]float64, out []float64) error {
	if err := CheckBatch(pe.program, columns, out); err != nil {
		return err
	}

	n := len(out)
	if n == 0 {
		return ctx.Err()
	}
	workers := pe.Workers(n)
	chunk := (n + workers - 1) / workers

	// Lowest failing index seen so far. Shards starting above it may stop.
	var failAt atomic.Int64
	failAt.Store(math.MaxInt64)
	lower := func(i int) {
		for {
			cur := failAt.Load()
			if int64(i) >= cur || failAt.CompareAndSwap(cur, int64(i)) {
				return
			}
		}
	}

	results := make([]shardResult, workers)
	var g errgroup.Group

	for w := range workers {
		lo := w * chunk
		hi := min(lo+chunk, n)
		if lo >= hi {
			continue
		}
		g.Go(func() error {
			vm := New(pe.program)
			stop := func(i int) bool {
				if int64(i) > failAt.Load() {
					return true
				}
				if i&255 == 0 && ctx.Err() != nil {
					results[w] = shardResult{index: i, err: ctx.Err()}
					lower(i)
					return true
				}
				return false
			}
			i, err := vm.executeRange(columns, out, lo, hi, stop)
			if err != nil {
				results[w] = shardResult{index: i, err: err}
				lower(i)
			}
			return results[w].err
		})
	}

	if g.Wait() == nil {
		return nil
	}
	// Shards are ordered by index, so the first failing shard holds the
	// lowest failing point.
	for _, r := range results {
		if r.err != nil {
			return r.err
		}
	}
	return nil
}
