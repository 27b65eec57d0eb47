package flowdir

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/parallel"
	"github.com/vk/flowgrid/internal/raster"
)

// NoFlowAngle marks a D-infinity cell without a downslope facet.
const NoFlowAngle = -1.0

// DInfOptions configures DInf.
type DInfOptions struct {
	Workers int
}

// A facet is the triangle between the centre cell, a cardinal neighbour e1
// and the diagonal neighbour e2 next to it. A flow angle r measured from e1
// inside the facet maps to af*r + ac*π/2 in the global frame.
type facet struct {
	e1, e2 neighbor.Direction
	ac, af float64
}

var facets = [8]facet{
	{neighbor.E, neighbor.NE, 0, 1},
	{neighbor.N, neighbor.NE, 1, -1},
	{neighbor.N, neighbor.NW, 1, 1},
	{neighbor.W, neighbor.NW, 2, -1},
	{neighbor.W, neighbor.SW, 2, 1},
	{neighbor.S, neighbor.SW, 3, -1},
	{neighbor.S, neighbor.SE, 3, 1},
	{neighbor.E, neighbor.SE, 4, -1},
}

// DInf computes Tarboton's D-infinity flow angle for every valid cell, in
// radians counter-clockwise from east in [0, 2π). Cells without a
// downslope facet get NoFlowAngle.
func DInf(ctx context.Context, dem *raster.Grid, opts DInfOptions) (*raster.Grid, error) {
	const op = "flowdir.DInf"
	if err := checkDEM(op, dem); err != nil {
		return nil, err
	}
	dx, dy := dem.CellSize()
	out := newOutput(dem)

	err := parallel.Rows(ctx, op, dem.Rows, opts.Workers, func(r int) error {
		for c := 0; c < dem.Cols; c++ {
			i := dem.Index(r, c)
			if !dem.Valid(i) {
				continue
			}
			out.Data[i] = facetAngle(dem, r, c, dx, dy)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Computed D-infinity angles", "grid", out.String())
	return out, nil
}

func facetAngle(dem *raster.Grid, r, c int, dx, dy float64) float64 {
	e0 := dem.Get(r, c)
	angle := NoFlowAngle
	var smax float64
	for _, f := range facets {
		e1 := dem.Get(r+neighbor.RowOffset[f.e1], c+neighbor.ColOffset[f.e1])
		e2 := dem.Get(r+neighbor.RowOffset[f.e2], c+neighbor.ColOffset[f.e2])
		if dem.IsNoData(e1) || dem.IsNoData(e2) {
			continue
		}
		d1, d2 := dx, dy
		if f.e1 == neighbor.N || f.e1 == neighbor.S {
			d1, d2 = dy, dx
		}
		s1 := (e0 - e1) / d1
		s2 := (e1 - e2) / d2
		rad := math.Atan2(s2, s1)
		s := math.Hypot(s1, s2)
		if edge := math.Atan2(d2, d1); rad < 0 {
			rad, s = 0, s1
		} else if rad > edge {
			rad, s = edge, (e0-e2)/math.Hypot(d1, d2)
		}
		if s > smax {
			smax = s
			angle = f.af*rad + f.ac*math.Pi/2
		}
	}
	if angle >= 2*math.Pi {
		angle -= 2 * math.Pi
	}
	return angle
}
