// Package parallel runs index ranges and task lists across a bounded
// number of goroutines.
package parallel

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Config controls fan-out.
type Config struct {
	// Workers is the number of goroutines. 0 means runtime.GOMAXPROCS(0).
	Workers int

	// Grain is the minimum number of items per chunk. If n < Grain*2 the
	// range runs on the calling goroutine.
	Grain int
}

// EffectiveWorkers returns the number of goroutines Config allows.
func (c Config) EffectiveWorkers() int {
	if c.Workers <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return c.Workers
}

func (c Config) grain() int {
	if c.Grain <= 0 {
		return 1
	}
	return c.Grain
}

// For calls fn over contiguous, disjoint sub-ranges covering [0, n).
// The first error cancels the remaining chunks and is returned.
func For(ctx context.Context, cfg Config, n int, fn func(ctx context.Context, lo, hi int) error) error {
	if n <= 0 {
		return nil
	}
	workers := cfg.EffectiveWorkers()
	grain := cfg.grain()
	if workers == 1 || n < grain*2 {
		return fn(ctx, 0, n)
	}

	chunk := (n + workers - 1) / workers
	if chunk < grain {
		chunk = grain
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for lo := 0; lo < n; lo += chunk {
		lo := lo
		hi := min(lo+chunk, n)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(gctx, lo, hi)
		})
	}
	return g.Wait()
}

// Run executes each task with at most cfg.EffectiveWorkers() in flight.
func Run(ctx context.Context, cfg Config, tasks []func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.EffectiveWorkers())
	for _, task := range tasks {
		task := task
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return task(gctx)
		})
	}
	return g.Wait()
}
