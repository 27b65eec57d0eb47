// Package parallel runs row-independent grid passes on a fixed-size pool.
// Each call of the row function owns its output row; nothing else is shared.
package parallel

import (
	"context"
	"runtime"

	"github.com/vk/flowgrid/internal/flowerr"
	"golang.org/x/sync/errgroup"
)

// Workers normalises a requested worker count: non-positive means one per CPU.
func Workers(n int) int {
	if n <= 0 {
		return runtime.GOMAXPROCS(0)
	}
	return n
}

// Rows calls fn once for every row in [0, rows) using at most workers
// goroutines. The context is checked before each row; the first error stops
// the remaining rows.
func Rows(ctx context.Context, op string, rows, workers int, fn func(row int) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(Workers(workers))
	for r := 0; r < rows; r++ {
		if gctx.Err() != nil {
			break
		}
		row := r
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(row)
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return flowerr.Canceled(op, ctx.Err())
		}
		return err
	}
	if err := ctx.Err(); err != nil {
		return flowerr.Canceled(op, err)
	}
	return nil
}
