package depression

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/parallel"
	"github.com/vk/flowgrid/internal/raster"
)

// Second-ring offsets of the 5x5 window around a pit, clockwise from the
// north-east corner, and the first-ring direction that links each of them
// to the centre.
var (
	ringRow  = [16]int{-2, -1, 0, 1, 2, 2, 2, 2, 2, 1, 0, -1, -2, -2, -2, -2}
	ringCol  = [16]int{2, 2, 2, 2, 2, 1, 0, -1, -2, -2, -2, -2, -2, -1, 0, 1}
	ringLink = [16]neighbor.Direction{
		neighbor.NE, neighbor.NE, neighbor.E, neighbor.E,
		neighbor.SE, neighbor.SE, neighbor.S, neighbor.S,
		neighbor.SW, neighbor.SW, neighbor.W, neighbor.W,
		neighbor.NW, neighbor.NW, neighbor.N, neighbor.N,
	}
)

// singlePit reports whether (r, c) is strictly lower than all 8 neighbours,
// all of which must be valid, and returns the lowest of them.
func singlePit(g *raster.Grid, r, c int) (float64, bool) {
	if r < 1 || c < 1 || r >= g.Rows-1 || c >= g.Cols-1 {
		return 0, false
	}
	z := g.Get(r, c)
	if g.IsNoData(z) {
		return 0, false
	}
	low := math.Inf(1)
	for d := 0; d < neighbor.Count; d++ {
		zn := g.Get(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d])
		if g.IsNoData(zn) || zn <= z {
			return 0, false
		}
		low = math.Min(low, zn)
	}
	return low, true
}

// PitResult counts the single-cell pits a pass resolved and those it left.
type PitResult struct {
	Resolved   int
	Unresolved int
}

// FillSinglePits raises every single-cell pit to the elevation of its
// lowest neighbour. Filling always succeeds, so Unresolved is zero.
func FillSinglePits(ctx context.Context, dem *raster.Grid) (*raster.Grid, PitResult, error) {
	const op = "depression.FillSinglePits"
	if err := checkInput(op, dem); err != nil {
		return nil, PitResult{}, err
	}
	out := dem.Clone()
	counts := make([]int, dem.Rows)
	err := parallel.Rows(ctx, op, dem.Rows, 0, func(r int) error {
		for c := 0; c < dem.Cols; c++ {
			if low, ok := singlePit(dem, r, c); ok {
				out.Data[dem.Index(r, c)] = low
				counts[r]++
			}
		}
		return nil
	})
	if err != nil {
		return nil, PitResult{}, err
	}
	res := PitResult{Resolved: sum(counts)}
	ctxlog.FromContext(ctx).Debug("Filled single-cell pits", "count", res.Resolved)
	return out, res, nil
}

type cut struct {
	index int
	z     float64
}

// BreachSinglePits resolves single-cell pits by lowering one neighbour.
// For each pit the lowest valid cell of the surrounding 5x5 ring that lies
// below the pit is found, and the neighbour between them is lowered to the
// midpoint of pit and ring cell. Pits without a lower ring cell are left
// as they are and counted as unresolved.
func BreachSinglePits(ctx context.Context, dem *raster.Grid) (*raster.Grid, PitResult, error) {
	const op = "depression.BreachSinglePits"
	if err := checkInput(op, dem); err != nil {
		return nil, PitResult{}, err
	}
	cuts := make([][]cut, dem.Rows)
	unresolved := make([]int, dem.Rows)
	err := parallel.Rows(ctx, op, dem.Rows, 0, func(r int) error {
		for c := 0; c < dem.Cols; c++ {
			if _, ok := singlePit(dem, r, c); !ok {
				continue
			}
			z := dem.Get(r, c)
			best := -1
			bestZ := z
			for k := range ringRow {
				zn := dem.Get(r+ringRow[k], c+ringCol[k])
				if dem.IsNoData(zn) || zn >= bestZ {
					continue
				}
				best, bestZ = k, zn
			}
			if best < 0 {
				unresolved[r]++
				continue
			}
			d := ringLink[best]
			i := dem.Index(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d])
			cuts[r] = append(cuts[r], cut{index: i, z: (z + bestZ) / 2})
		}
		return nil
	})
	if err != nil {
		return nil, PitResult{}, err
	}

	// Cuts may land in a neighbouring row, so they are applied after the
	// parallel scan. A cell shared by two pits takes the lower cut.
	out := dem.Clone()
	res := PitResult{Unresolved: sum(unresolved)}
	for _, row := range cuts {
		for _, ct := range row {
			if ct.z < out.Data[ct.index] {
				out.Data[ct.index] = ct.z
			}
			res.Resolved++
		}
	}
	ctxlog.FromContext(ctx).Debug("Breached single-cell pits", "count", res.Resolved, "unresolved", res.Unresolved)
	return out, res, nil
}

func sum(xs []int) int {
	n := 0
	for _, x := range xs {
		n += x
	}
	return n
}
