package flowdir

import (
	"context"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/parallel"
	"github.com/vk/flowgrid/internal/raster"
)

// D8Options configures D8.
type D8Options struct {
	// ESRI selects the ESRI pointer numbering.
	ESRI bool
	// Workers bounds the row workers; zero uses one per CPU.
	Workers int
}

func checkDEM(op string, dem *raster.Grid) error {
	if dem == nil || dem.Len() == 0 {
		return flowerr.Config(op, "empty elevation grid")
	}
	if dem.ValidCount() == 0 {
		return flowerr.Config(op, "elevation grid holds no valid cells")
	}
	return nil
}

// newOutput allocates a same-shaped output whose nodata value cannot be
// confused with a direction code or angle.
func newOutput(dem *raster.Grid) *raster.Grid {
	out := dem.NewLike(raster.DefaultNoData)
	out.NoData = raster.DefaultNoData
	return out
}

// steepest returns the direction of maximum downslope gradient from (r, c).
// Ties keep the first direction in neighbour order.
func steepest(dem *raster.Grid, dist *neighbor.Distances, r, c int) (neighbor.Direction, bool) {
	z := dem.Get(r, c)
	best, found := neighbor.Direction(0), false
	var max float64
	for d := neighbor.Direction(0); d < neighbor.Count; d++ {
		zn := dem.Get(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d])
		if dem.IsNoData(zn) {
			continue
		}
		if s := (z - zn) / dist[d]; s > max {
			best, max, found = d, s, true
		}
	}
	return best, found
}

// D8 writes the pointer of the steepest downslope neighbour for every valid
// cell. Cells without a lower neighbour get 0.
func D8(ctx context.Context, dem *raster.Grid, opts D8Options) (*raster.Grid, error) {
	const op = "flowdir.D8"
	if err := checkDEM(op, dem); err != nil {
		return nil, err
	}
	enc := neighbor.EncodingFor(opts.ESRI)
	dist := neighbor.NewDistances(dem.CellSize())
	out := newOutput(dem)

	err := parallel.Rows(ctx, op, dem.Rows, opts.Workers, func(r int) error {
		for c := 0; c < dem.Cols; c++ {
			i := dem.Index(r, c)
			if !dem.Valid(i) {
				continue
			}
			if d, ok := steepest(dem, &dist, r, c); ok {
				out.Data[i] = enc.Code(d)
			} else {
				out.Data[i] = neighbor.NoFlow
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Computed D8 pointer", "grid", out.String(), "esri", opts.ESRI)
	return out, nil
}

// NoFlowCells marks the valid interior cells that have no lower neighbour.
// On a properly conditioned grid the result is empty. Marked cells hold 1,
// everything else nodata; the count is returned alongside.
func NoFlowCells(ctx context.Context, dem *raster.Grid) (*raster.Grid, int, error) {
	const op = "flowdir.NoFlowCells"
	if err := checkDEM(op, dem); err != nil {
		return nil, 0, err
	}
	dist := neighbor.NewDistances(dem.CellSize())
	out := newOutput(dem)
	counts := make([]int, dem.Rows)
	err := parallel.Rows(ctx, op, dem.Rows, 0, func(r int) error {
		if r == 0 || r == dem.Rows-1 {
			return nil
		}
		for c := 1; c < dem.Cols-1; c++ {
			if !dem.Valid(dem.Index(r, c)) {
				continue
			}
			if _, ok := steepest(dem, &dist, r, c); !ok {
				out.Set(r, c, 1)
				counts[r]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	n := 0
	for _, k := range counts {
		n += k
	}
	return out, n, nil
}
