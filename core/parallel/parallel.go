// Package parallel provides bounded fan-out helpers used by the tree ensembles
// and by grid search.
package parallel

import (
	"context"
	"runtime"

	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/pool"
)

// Workers resolves an n_jobs style setting: values <= 0 mean one worker per CPU.
func Workers(nJobs int) int {
	if nJobs <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return nJobs
}

// ParallelizeWithThreshold splits [0, n) into contiguous chunks and runs fn on
// each concurrently. Below threshold it runs fn(0, n) on the calling goroutine.
func ParallelizeWithThreshold(n, threshold int, fn func(start, end int)) {
	if n <= 0 {
		return
	}
	workers := runtime.GOMAXPROCS(0)
	if n < threshold || workers == 1 {
		fn(0, n)
		return
	}
	chunk := (n + workers - 1) / workers
	var wg conc.WaitGroup
	for start := 0; start < n; start += chunk {
		s, e := start, start+chunk
		if e > n {
			e = n
		}
		wg.Go(func() { fn(s, e) })
	}
	wg.Wait()
}

// Map runs fn for every index in [0, n) on at most workers goroutines and
// returns the results in index order. The first error cancels the remaining
// tasks and is returned.
func Map[T any](ctx context.Context, n, workers int, fn func(ctx context.Context, i int) (T, error)) ([]T, error) {
	out := make([]T, n)
	if n == 0 {
		return out, nil
	}
	if workers < 1 {
		workers = 1
	}
	if workers > n {
		workers = n
	}
	p := pool.New().
		WithMaxGoroutines(workers).
		WithContext(ctx).
		WithCancelOnError().
		WithFirstError()
	for i := 0; i < n; i++ {
		i := i
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			v, err := fn(ctx, i)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
