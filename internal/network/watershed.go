// Package network labels drainage areas and stream networks from a D8
// pointer grid: watersheds above pour points, basins above every outlet,
// and the ordering schemes used to classify stream cells.
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

// PourPoint is an outlet cell and the label given to the area above it.
type PourPoint struct {
	Row int
	Col int
	ID  int
}

func (p PourPoint) String() string { return fmt.Sprintf("%d@(%d,%d)", p.ID, p.Row, p.Col) }

// PourPointsFromGrid reads every valid non-zero cell of g as a pour point
// whose id is the cell value. Points are returned in row-major order.
func PourPointsFromGrid(g *raster.Grid) ([]PourPoint, error) {
	const op = "network.PourPointsFromGrid"
	var pts []PourPoint
	for i, v := range g.Data {
		if g.IsNoData(v) || v == 0 {
			continue
		}
		r, c := g.RowCol(i)
		if v != math.Trunc(v) {
			return nil, flowerr.DataAt(op, r, c, fmt.Errorf("pour point id %v is not an integer", v))
		}
		pts = append(pts, PourPoint{Row: r, Col: c, ID: int(v)})
	}
	return pts, nil
}

// pollEvery is how many cells a traversal visits between cancellation checks.
const pollEvery = 4096

type seed struct {
	cell  int
	label float64
}

// labelUpstream gives every cell draining to a seed the seed's label. The
// traversal never enters another seed, so nested outlets keep their own
// areas. Each cell is labelled at most once.
func labelUpstream(ctx context.Context, op string, router *flowdir.D8Router, out *raster.Grid, seeds []seed) error {
	isSeed := make(map[int]bool, len(seeds))
	for _, s := range seeds {
		isSeed[s.cell] = true
	}
	labelled := make([]bool, out.Len())
	var stack []int
	popped := 0
	for _, s := range seeds {
		out.Data[s.cell] = s.label
		labelled[s.cell] = true
		stack = append(stack[:0], s.cell)
		for len(stack) > 0 {
			if popped%pollEvery == 0 {
				if err := ctx.Err(); err != nil {
					return flowerr.Canceled(op, err)
				}
			}
			popped++
			j := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			r, c := out.RowCol(j)
			for d := neighbor.Direction(0); d < neighbor.Count; d++ {
				rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
				if !out.InBounds(rn, cn) {
					continue
				}
				i := out.Index(rn, cn)
				if labelled[i] || isSeed[i] {
					continue
				}
				if down, ok := router.Downstream(i); ok && down == j {
					out.Data[i] = s.label
					labelled[i] = true
					stack = append(stack, i)
				}
			}
		}
	}
	return nil
}

// Watershed labels the area draining to each pour point with its id.
// Cells that leave the grid without passing a pour point stay nodata.
// A pour point outside the grid, or an id reused for a different cell, is
// a configuration error. Pour points on nodata cells are skipped.
func Watershed(ctx context.Context, pointer *raster.Grid, esri bool, points []PourPoint) (*raster.Grid, error) {
	const op = "network.Watershed"
	router, err := flowdir.NewD8Router(pointer, esri)
	if err != nil {
		return nil, err
	}
	if len(points) == 0 {
		return nil, flowerr.Config(op, "no pour points")
	}
	logger := ctxlog.FromContext(ctx)

	cellOf := map[int]int{}
	idOf := map[int]int{}
	var seeds []seed
	for _, p := range points {
		if !pointer.InBounds(p.Row, p.Col) {
			return nil, flowerr.Config(op, "pour point %v lies outside the %dx%d grid", p, pointer.Rows, pointer.Cols)
		}
		if float64(p.ID) == raster.DefaultNoData {
			return nil, flowerr.Config(op, "pour point id %d is reserved for nodata", p.ID)
		}
		i := pointer.Index(p.Row, p.Col)
		if prev, ok := cellOf[p.ID]; ok && prev != i {
			return nil, flowerr.Config(op, "pour point id %d is used for two cells", p.ID)
		}
		if prev, ok := idOf[i]; ok {
			if prev != p.ID {
				return nil, flowerr.Config(op, "cell (%d,%d) carries pour point ids %d and %d", p.Row, p.Col, prev, p.ID)
			}
			continue
		}
		cellOf[p.ID], idOf[i] = i, p.ID
		if !pointer.Valid(i) {
			logger.Warn("Skipping pour point on a nodata cell", "pour_point", p.String())
			continue
		}
		seeds = append(seeds, seed{cell: i, label: float64(p.ID)})
	}

	out := pointer.NewLike(raster.DefaultNoData)
	out.NoData = raster.DefaultNoData
	if err := labelUpstream(ctx, op, router, out, seeds); err != nil {
		return nil, err
	}
	logger.Debug("Delineated watersheds", "pour_points", len(seeds))
	return out, nil
}

// Basins labels every drainage basin, numbering the outlets 1..n in
// row-major order. An outlet is a valid cell whose flow stops in the grid,
// leaves it or enters nodata.
func Basins(ctx context.Context, pointer *raster.Grid, esri bool) (*raster.Grid, int, error) {
	const op = "network.Basins"
	router, err := flowdir.NewD8Router(pointer, esri)
	if err != nil {
		return nil, 0, err
	}
	var seeds []seed
	for i := range pointer.Data {
		if !pointer.Valid(i) {
			continue
		}
		if _, ok := router.Downstream(i); !ok {
			seeds = append(seeds, seed{cell: i, label: float64(len(seeds) + 1)})
		}
	}
	if len(seeds) == 0 {
		return nil, 0, flowerr.Data(op, "pointer grid has no outlet")
	}
	out := pointer.NewLike(raster.DefaultNoData)
	out.NoData = raster.DefaultNoData
	if err := labelUpstream(ctx, op, router, out, seeds); err != nil {
		return nil, 0, err
	}
	ctxlog.FromContext(ctx).Debug("Delineated basins", "count", len(seeds))
	return out, len(seeds), nil
}
