package network

import (
	"context"
	"fmt"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowdir"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/raster"
)

// ExtractStreams marks cells whose accumulation is at least threshold with
// 1. Other valid cells get 0 with zeroBackground, nodata otherwise.
func ExtractStreams(ctx context.Context, acc *raster.Grid, threshold float64, zeroBackground bool) (*raster.Grid, int, error) {
	const op = "network.ExtractStreams"
	if acc == nil || acc.Len() == 0 {
		return nil, 0, flowerr.Config(op, "empty accumulation grid")
	}
	if math.IsNaN(threshold) || math.IsInf(threshold, 0) {
		return nil, 0, flowerr.Config(op, "threshold must be a finite number, got %v", threshold)
	}
	out := acc.NewLike(raster.DefaultNoData)
	out.NoData = raster.DefaultNoData
	n := 0
	for i, v := range acc.Data {
		switch {
		case acc.IsNoData(v):
		case v >= threshold:
			out.Data[i] = 1
			n++
		case zeroBackground:
			out.Data[i] = 0
		}
	}
	ctxlog.FromContext(ctx).Debug("Extracted streams", "threshold", threshold, "cells", n)
	return out, n, nil
}

// StreamOptions configures the stream ordering functions.
type StreamOptions struct {
	ESRI bool
	// ZeroBackground writes 0 instead of nodata to valid non-stream cells.
	ZeroBackground bool
}

// streamGraph is the D8 graph restricted to stream cells.
type streamGraph struct {
	pointer *raster.Grid
	router  *flowdir.D8Router
	dist    neighbor.Distances
	stream  []bool
	// down is the stream cell a stream cell drains to, or -1 at an outlet.
	down []int
	// up lists the stream inflows of each stream cell in neighbour order.
	up [][]int
	// order is a topological order, heads first.
	order []int
}

func newStreamGraph(ctx context.Context, op string, pointer, streams *raster.Grid, esri bool) (*streamGraph, error) {
	if err := raster.RequireSameShape(op, pointer, streams); err != nil {
		return nil, err
	}
	router, err := flowdir.NewD8Router(pointer, esri)
	if err != nil {
		return nil, err
	}
	n := pointer.Len()
	g := &streamGraph{
		pointer: pointer,
		router:  router,
		dist:    neighbor.NewDistances(pointer.CellSize()),
		stream:  make([]bool, n),
		down:    make([]int, n),
		up:      make([][]int, n),
	}
	for i, v := range streams.Data {
		g.stream[i] = !streams.IsNoData(v) && v > 0 && pointer.Valid(i)
		g.down[i] = -1
	}
	pending := make([]int, n)
	for i := range g.stream {
		if !g.stream[i] {
			continue
		}
		if j, ok := router.Downstream(i); ok && g.stream[j] {
			g.down[i] = j
			pending[j]++
		}
	}
	// Inflows are collected per receiving cell in neighbour order so that
	// every later tie-break is independent of row-major scan order.
	for j := range g.stream {
		if pending[j] == 0 {
			continue
		}
		r, c := pointer.RowCol(j)
		for d := neighbor.Direction(0); d < neighbor.Count; d++ {
			rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
			if !pointer.InBounds(rn, cn) {
				continue
			}
			if i := pointer.Index(rn, cn); g.stream[i] && g.down[i] == j {
				g.up[j] = append(g.up[j], i)
			}
		}
	}

	total := 0
	for i, s := range g.stream {
		if !s {
			continue
		}
		total++
		if pending[i] == 0 {
			g.order = append(g.order, i)
		}
	}
	for head := 0; head < len(g.order); head++ {
		if head%pollEvery == 0 && ctx.Err() != nil {
			return nil, flowerr.Canceled(op, ctx.Err())
		}
		if j := g.down[g.order[head]]; j >= 0 {
			pending[j]--
			if pending[j] == 0 {
				g.order = append(g.order, j)
			}
		}
	}
	if len(g.order) < total {
		for i, k := range pending {
			if k > 0 {
				r, c := pointer.RowCol(i)
				return nil, flowerr.DataAt(op, r, c, fmt.Errorf("%w among stream cells", flowerr.ErrCycle))
			}
		}
	}
	return g, nil
}

func (g *streamGraph) output(opts StreamOptions) *raster.Grid {
	out := g.pointer.NewLike(raster.DefaultNoData)
	out.NoData = raster.DefaultNoData
	if opts.ZeroBackground {
		for i := range out.Data {
			if g.pointer.Valid(i) {
				out.Data[i] = 0
			}
		}
	}
	return out
}

// step is the distance from stream cell i to its downstream neighbour.
func (g *streamGraph) step(i int) float64 {
	d, _ := g.router.Direction(i)
	return g.dist[d]
}

// outlets lists the stream cells that drain out of the network, in
// row-major order.
func (g *streamGraph) outlets() []int {
	var out []int
	for i, s := range g.stream {
		if s && g.down[i] < 0 {
			out = append(out, i)
		}
	}
	return out
}
