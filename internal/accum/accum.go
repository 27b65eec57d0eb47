// Package accum propagates flow through any flowdir.Router in topological
// order and reports the upstream contribution of every cell.
package accum

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowdir"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/progress"
	"github.com/vk/flowgrid/internal/raster"
)

// OutputType selects the unit of the accumulation grid.
type OutputType string

const (
	// Cells counts the cells draining through each cell, itself included.
	Cells OutputType = "cells"
	// SCA is specific contributing area: cells × cell area ÷ flow width.
	SCA OutputType = "sca"
	// CA is catchment area: cells × cell area.
	CA OutputType = "ca"
)

// ParseOutputType accepts the names used in pipeline files. An empty name
// means Cells.
func ParseOutputType(s string) (OutputType, error) {
	switch t := OutputType(strings.ToLower(strings.TrimSpace(s))); t {
	case "":
		return Cells, nil
	case Cells, SCA, CA:
		return t, nil
	default:
		return "", flowerr.Config("accum.ParseOutputType", "unknown output type %q, want cells, sca or ca", s)
	}
}

// Options configures Accumulate.
type Options struct {
	Type OutputType
	// Weights replaces the unit contribution of each cell. Nodata weights
	// contribute nothing.
	Weights *raster.Grid
	// Log reports the natural logarithm of the accumulation.
	Log bool
	// Clip limits the display range to the 99th percentile. Values are kept.
	Clip     bool
	Progress progress.Func
}

// Accumulate routes a unit (or weighted) contribution from every valid
// cell downstream. like supplies the output shape, cell size, georeference
// and nodata value and must match the router's dimensions.
//
// Cells are processed once all their upstream neighbours are done. If some
// cells never become ready, the routing contains a cycle and a data error
// locating one cell on it is returned.
func Accumulate(ctx context.Context, router flowdir.Router, like *raster.Grid, opts Options) (*raster.Grid, error) {
	const op = "accum.Accumulate"
	if like == nil || router == nil {
		return nil, flowerr.Config(op, "missing routing or template grid")
	}
	rows, cols := router.Dimensions()
	if rows != like.Rows || cols != like.Cols {
		return nil, flowerr.Config(op, "routing is %dx%d but template grid is %dx%d", rows, cols, like.Rows, like.Cols)
	}
	typ := opts.Type
	if typ == "" {
		typ = Cells
	}
	if _, err := ParseOutputType(string(typ)); err != nil {
		return nil, err
	}
	if opts.Weights != nil {
		if err := raster.RequireSameShape(op, like, opts.Weights); err != nil {
			return nil, err
		}
	}

	n := rows * cols
	remaining := make([]int32, n)
	acc := make([]float64, n)
	valid := 0
	for i := 0; i < n; i++ {
		if !router.Valid(i) {
			continue
		}
		valid++
		acc[i] = 1
		if w := opts.Weights; w != nil {
			acc[i] = 0
			if w.Valid(i) {
				acc[i] = w.Data[i]
			}
		}
		router.Receivers(i, 0, func(j int, _ float64) { remaining[j]++ })
	}
	if valid == 0 {
		return nil, flowerr.Config(op, "routing holds no valid cells")
	}

	queue := make([]int, 0, n/4)
	for i := 0; i < n; i++ {
		if router.Valid(i) && remaining[i] == 0 {
			queue = append(queue, i)
		}
	}
	tr := progress.New(ctx, op, valid, opts.Progress)
	for head := 0; head < len(queue); head++ {
		if err := tr.Tick(head + 1); err != nil {
			return nil, err
		}
		i := queue[head]
		a := acc[i]
		router.Receivers(i, a, func(j int, frac float64) {
			acc[j] += a * frac
			remaining[j]--
			if remaining[j] == 0 {
				queue = append(queue, j)
			}
		})
	}
	if err := tr.Done(); err != nil {
		return nil, err
	}
	if len(queue) < valid {
		cell := onCycle(router, remaining)
		return nil, flowerr.DataAt(op, cell/cols, cell%cols,
			fmt.Errorf("%w: %d cells never drained", flowerr.ErrCycle, valid-len(queue)))
	}

	out := like.NewLike(like.NoData)
	factor := 1.0
	switch typ {
	case CA:
		factor = like.CellArea()
	case SCA:
		dx, dy := like.CellSize()
		factor = like.CellArea() / ((dx + dy) / 2)
	}
	for i := 0; i < n; i++ {
		if !router.Valid(i) {
			continue
		}
		v := acc[i] * factor
		if opts.Log {
			if v <= 0 {
				continue
			}
			v = math.Log(v)
		}
		out.Data[i] = v
	}
	if opts.Clip {
		clip(out)
	}
	ctxlog.FromContext(ctx).Debug("Accumulated flow", "grid", out.String(), "type", string(typ), "log", opts.Log)
	return out, nil
}

// onCycle returns a cell lying on a cycle. Every undrained cell has an
// undrained upstream neighbour, so walking upstream must revisit a cell.
func onCycle(router flowdir.Router, remaining []int32) int {
	_, cols := router.Dimensions()
	start := -1
	for i, k := range remaining {
		if k > 0 && router.Valid(i) {
			start = i
			break
		}
	}
	seen := map[int]bool{}
	cur := start
	for !seen[cur] {
		seen[cur] = true
		next := upstream(router, remaining, cur, cols)
		if next < 0 {
			return cur
		}
		cur = next
	}
	return cur
}

func upstream(router flowdir.Router, remaining []int32, j, cols int) int {
	rows, _ := router.Dimensions()
	r, c := j/cols, j%cols
	for d := 0; d < neighbor.Count; d++ {
		rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
		if rn < 0 || cn < 0 || rn >= rows || cn >= cols {
			continue
		}
		i := rn*cols + cn
		if remaining[i] == 0 || !router.Valid(i) {
			continue
		}
		feeds := false
		router.Receivers(i, 0, func(k int, _ float64) {
			if k == j {
				feeds = true
			}
		})
		if feeds {
			return i
		}
	}
	return -1
}
