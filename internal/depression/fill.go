package depression

import (
	"context"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/pqueue"
	"github.com/vk/flowgrid/internal/progress"
	"github.com/vk/flowgrid/internal/raster"
)

// Fill removes depressions by priority flood. Cells are visited in order of
// increasing elevation starting from the exits; a cell lower than the cell
// it is reached from is raised to that elevation (plus Epsilon with
// FixFlats). Without FixFlats the result is a fixed point: filling it again
// changes nothing.
func Fill(ctx context.Context, dem *raster.Grid, opts FillOptions) (*raster.Grid, *Result, error) {
	const op = "depression.Fill"
	if err := checkInput(op, dem); err != nil {
		return nil, nil, err
	}
	var eps float64
	if opts.FixFlats {
		var err error
		if eps, err = resolveEpsilon(op, dem, opts.Epsilon); err != nil {
			return nil, nil, err
		}
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Filling depressions", "grid", dem.String(), "fix_flats", opts.FixFlats, "epsilon", eps)

	out := dem.Clone()
	exit := exits(dem, opts.NoDataIsBarrier)
	visited := make([]bool, dem.Len())
	q := pqueue.New(dem.Cols * 4)
	res := &Result{}

	for i, isExit := range exit {
		if isExit {
			visited[i] = true
			q.Push(i, out.Data[i])
		} else if dem.Valid(i) {
			if _, pit := lowestNeighbour(dem, i); pit {
				res.Pits++
			}
		}
	}

	tr := progress.New(ctx, op, dem.ValidCount(), opts.Progress)
	popped := 0
	for q.Len() > 0 {
		e := q.Pop()
		popped++
		if err := tr.Tick(popped); err != nil {
			return nil, nil, err
		}
		z := out.Data[e.Index]
		r, c := out.RowCol(e.Index)
		for d := 0; d < neighbor.Count; d++ {
			rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
			if !out.InBounds(rn, cn) {
				continue
			}
			j := out.Index(rn, cn)
			if visited[j] || !out.Valid(j) {
				continue
			}
			visited[j] = true
			if out.Data[j] < z+eps {
				out.Data[j] = z + eps
			}
			q.Push(j, out.Data[j])
		}
	}
	if err := tr.Done(); err != nil {
		return nil, nil, err
	}

	res.UnresolvedCells = unreached(dem, visited)
	res.Unresolved = len(res.UnresolvedCells)
	res.tally(dem, out)
	if res.Unresolved > 0 {
		r, c := dem.RowCol(res.UnresolvedCells[0])
		logger.Warn("Depressions sealed by nodata left unresolved", "count", res.Unresolved, "first_row", r, "first_col", c)
	}
	logger.Debug("Filled depressions", "raised", res.Raised, "pits", res.Pits)
	return out, res, nil
}
