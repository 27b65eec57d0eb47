package network

import (
	"context"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/raster"
)

// ordering computes one value per stream cell. Its only error is the
// context's.
type ordering func(ctx context.Context, g *streamGraph) ([]float64, error)

// pure lifts a single pass over the topological order into an ordering.
func pure(f func(g *streamGraph) []float64) ordering {
	return func(_ context.Context, g *streamGraph) ([]float64, error) { return f(g), nil }
}

func classify(ctx context.Context, op string, pointer, streams *raster.Grid, opts StreamOptions, f ordering) (*raster.Grid, error) {
	g, err := newStreamGraph(ctx, op, pointer, streams, opts.ESRI)
	if err != nil {
		return nil, err
	}
	vals, err := f(ctx, g)
	if err != nil {
		return nil, flowerr.Canceled(op, err)
	}
	out := g.output(opts)
	for i, s := range g.stream {
		if s {
			out.Data[i] = vals[i]
		}
	}
	ctxlog.FromContext(ctx).Debug("Classified stream network", "op", op, "cells", len(g.order))
	return out, nil
}

// StrahlerOrder gives heads order 1; a cell's order rises by one only where
// two or more inflows share the highest order.
func StrahlerOrder(ctx context.Context, pointer, streams *raster.Grid, opts StreamOptions) (*raster.Grid, error) {
	return classify(ctx, "network.StrahlerOrder", pointer, streams, opts, pure(strahler))
}

// ShreveMagnitude gives heads magnitude 1 and every other cell the sum of
// its inflow magnitudes.
func ShreveMagnitude(ctx context.Context, pointer, streams *raster.Grid, opts StreamOptions) (*raster.Grid, error) {
	return classify(ctx, "network.ShreveMagnitude", pointer, streams, opts, pure(shreve))
}

// HortonOrder assigns every main stem, traced upstream from its mouth, the
// Strahler order found at the mouth.
func HortonOrder(ctx context.Context, pointer, streams *raster.Grid, opts StreamOptions) (*raster.Grid, error) {
	return classify(ctx, "network.HortonOrder", pointer, streams, opts, func(ctx context.Context, g *streamGraph) ([]float64, error) {
		so := strahler(g)
		return g.stems(ctx, so, stemRule{
			mouth:  func(o int) float64 { return so[o] },
			branch: func(u int, _ float64) float64 { return so[u] },
		})
	})
}

// HackOrder numbers the main stem of each outlet 1 and each tributary one
// more than the stream it joins.
func HackOrder(ctx context.Context, pointer, streams *raster.Grid, opts StreamOptions) (*raster.Grid, error) {
	return classify(ctx, "network.HackOrder", pointer, streams, opts, func(ctx context.Context, g *streamGraph) ([]float64, error) {
		return g.stems(ctx, strahler(g), stemRule{
			mouth:  func(int) float64 { return 1 },
			branch: func(_ int, v float64) float64 { return v + 1 },
		})
	})
}

// TributaryIdentifier gives each tributary, from its source down to where
// it joins a longer stream, a unique id.
func TributaryIdentifier(ctx context.Context, pointer, streams *raster.Grid, opts StreamOptions) (*raster.Grid, error) {
	return classify(ctx, "network.TributaryIdentifier", pointer, streams, opts, func(ctx context.Context, g *streamGraph) ([]float64, error) {
		next := 0.0
		return g.stems(ctx, strahler(g), stemRule{
			mouth:  func(int) float64 { next++; return next },
			branch: func(int, float64) float64 { next++; return next },
		})
	})
}

// LinkIdentifier gives each link, the run of cells between a source or
// confluence and the next confluence, a unique id. Ids follow the
// upstream-to-downstream processing order.
func LinkIdentifier(ctx context.Context, pointer, streams *raster.Grid, opts StreamOptions) (*raster.Grid, error) {
	return classify(ctx, "network.LinkIdentifier", pointer, streams, opts, pure(func(g *streamGraph) []float64 {
		ids := make([]float64, len(g.stream))
		next := 0.0
		for _, i := range g.order {
			if len(g.up[i]) == 1 {
				ids[i] = ids[g.up[i][0]]
				continue
			}
			next++
			ids[i] = next
		}
		return ids
	}))
}

func strahler(g *streamGraph) []float64 {
	ord := make([]float64, len(g.stream))
	for _, i := range g.order {
		if len(g.up[i]) == 0 {
			ord[i] = 1
			continue
		}
		var max float64
		n := 0
		for _, u := range g.up[i] {
			switch {
			case ord[u] > max:
				max, n = ord[u], 1
			case ord[u] == max:
				n++
			}
		}
		ord[i] = max
		if n >= 2 {
			ord[i]++
		}
	}
	return ord
}

func shreve(g *streamGraph) []float64 {
	mag := make([]float64, len(g.stream))
	for _, i := range g.order {
		if len(g.up[i]) == 0 {
			mag[i] = 1
			continue
		}
		for _, u := range g.up[i] {
			mag[i] += mag[u]
		}
	}
	return mag
}

// channelLength is the longest distance from any source to each stream cell.
func (g *streamGraph) channelLength() []float64 {
	length := make([]float64, len(g.stream))
	for _, i := range g.order {
		for _, u := range g.up[i] {
			if l := length[u] + g.step(u); l > length[i] {
				length[i] = l
			}
		}
	}
	return length
}

// mainInflow picks the inflow that continues the main stem through i: the
// longest upstream channel, then the higher order, then the first in
// neighbour order.
func (g *streamGraph) mainInflow(i int, length, order []float64) int {
	best := -1
	var bestLen, bestOrd float64
	for _, u := range g.up[i] {
		l := length[u] + g.step(u)
		if best < 0 || l > bestLen || (l == bestLen && order[u] > bestOrd) {
			best, bestLen, bestOrd = u, l, order[u]
		}
	}
	return best
}

// stemRule labels the cells of a stem walk. The main inflow of a cell
// always inherits the cell's label.
type stemRule struct {
	mouth  func(outlet int) float64
	branch func(inflow int, v float64) float64
}

// stems walks upstream from every outlet, continuing each stem through its
// main inflow and starting a new stem at every other inflow.
func (g *streamGraph) stems(ctx context.Context, order []float64, rule stemRule) ([]float64, error) {
	vals := make([]float64, len(g.stream))
	length := g.channelLength()
	type item struct {
		cell int
		v    float64
	}
	var stack []item
	popped := 0
	for _, o := range g.outlets() {
		stack = append(stack[:0], item{o, rule.mouth(o)})
		for len(stack) > 0 {
			if popped%pollEvery == 0 {
				if err := ctx.Err(); err != nil {
					return nil, err
				}
			}
			popped++
			it := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			vals[it.cell] = it.v
			m := g.mainInflow(it.cell, length, order)
			// The main stem is pushed last so it is finished before any
			// tributary is labelled.
			for _, u := range g.up[it.cell] {
				if u != m {
					stack = append(stack, item{u, rule.branch(u, it.v)})
				}
			}
			if m >= 0 {
				stack = append(stack, item{m, it.v})
			}
		}
	}
	return vals, nil
}
