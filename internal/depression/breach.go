package depression

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/pqueue"
	"github.com/vk/flowgrid/internal/progress"
	"github.com/vk/flowgrid/internal/raster"
)

const noLink = -1

// breacher holds the state of one Breach run.
type breacher struct {
	opts BreachOptions
	dem  *raster.Grid
	out  *raster.Grid
	eps  float64
	// link is the direction from a cell to the cell the flood reached it
	// from; following links always ends at an exit.
	link []int8
	pit  []bool
}

// Breach removes depressions by carving channels instead of raising them.
//
// Pits are first set just below their lowest neighbour. A priority flood
// from the exits then records for each cell the neighbour it was reached
// from. When the flood reaches a pit, the path back along those links is
// lowered as a staircase of Epsilon steps until it meets a cell that is
// already low enough. The exit that ends a channel may itself be lowered;
// every other exit keeps its elevation. A channel
// longer than MaxLength or deeper than MaxDepth is not cut and the pit is
// reported as unresolved, unless FillRemaining fills it afterwards.
func Breach(ctx context.Context, dem *raster.Grid, opts BreachOptions) (*raster.Grid, *Result, error) {
	const op = "depression.Breach"
	if err := checkInput(op, dem); err != nil {
		return nil, nil, err
	}
	eps, err := resolveEpsilon(op, dem, opts.Epsilon)
	if err != nil {
		return nil, nil, err
	}
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Breaching depressions", "grid", dem.String(), "max_depth", opts.MaxDepth, "max_length", opts.MaxLength, "epsilon", eps)

	b := &breacher{
		opts: opts,
		dem:  dem,
		out:  dem.Clone(),
		eps:  eps,
		link: make([]int8, dem.Len()),
		pit:  make([]bool, dem.Len()),
	}
	for i := range b.link {
		b.link[i] = noLink
	}
	res := &Result{}

	exit := exits(dem, opts.NoDataIsBarrier)
	tr := progress.New(ctx, op, dem.ValidCount(), opts.Progress)
	for r := 0; r < dem.Rows; r++ {
		if err := tr.Poll(0); err != nil {
			return nil, nil, err
		}
		for c := 0; c < dem.Cols; c++ {
			i := dem.Index(r, c)
			if exit[i] || !dem.Valid(i) {
				continue
			}
			low, isPit := lowestNeighbour(dem, i)
			if !isPit {
				continue
			}
			b.pit[i] = true
			res.Pits++
			if !math.IsInf(low, 1) {
				b.out.Data[i] = low - eps
			}
		}
	}

	visited := make([]bool, dem.Len())
	q := pqueue.New(dem.Cols * 4)
	for i, isExit := range exit {
		if isExit {
			visited[i] = true
			q.Push(i, b.out.Data[i])
		}
	}

	var order []int
	popped := 0
	for q.Len() > 0 {
		e := q.Pop()
		popped++
		if err := tr.Tick(popped); err != nil {
			return nil, nil, err
		}
		if opts.FillRemaining {
			order = append(order, e.Index)
		}
		r, c := b.out.RowCol(e.Index)
		for d := neighbor.Direction(0); d < neighbor.Count; d++ {
			rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
			if !b.out.InBounds(rn, cn) {
				continue
			}
			j := b.out.Index(rn, cn)
			if visited[j] || !b.out.Valid(j) {
				continue
			}
			visited[j] = true
			b.link[j] = int8(d.Opposite())
			if b.pit[j] && !b.carve(j) {
				res.UnresolvedCells = append(res.UnresolvedCells, j)
			}
			q.Push(j, b.out.Data[j])
		}
	}
	if err := tr.Done(); err != nil {
		return nil, nil, err
	}

	if len(res.UnresolvedCells) > 0 && opts.FillRemaining {
		b.fillAlong(order)
		logger.Debug("Filled depressions left by bounded breaching", "count", len(res.UnresolvedCells))
		res.UnresolvedCells = nil
	}

	sealed := unreached(dem, visited)
	res.UnresolvedCells = append(res.UnresolvedCells, sealed...)
	// Regions no exit reaches keep their input elevations.
	for i := range visited {
		if !visited[i] {
			b.out.Data[i] = dem.Data[i]
		}
	}
	res.Unresolved = len(res.UnresolvedCells)
	res.tally(dem, b.out)
	if res.Unresolved > 0 {
		logger.Warn("Depressions left unresolved", "count", res.Unresolved, "sealed", len(sealed))
	}
	logger.Debug("Breached depressions", "lowered", res.Lowered, "raised", res.Raised, "pits", res.Pits)
	return b.out, res, nil
}

// next follows the flood link of cell i.
func (b *breacher) next(i int) (int, bool) {
	d := b.link[i]
	if d == noLink {
		return 0, false
	}
	r, c := b.out.RowCol(i)
	return b.out.Index(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]), true
}

// carve lowers the channel from pit back towards the exit, or reports false
// without touching the grid when the channel would exceed the bounds.
func (b *breacher) carve(pit int) bool {
	if b.opts.MaxDepth > 0 || b.opts.MaxLength > 0 {
		length, depth := b.measure(pit)
		if b.opts.MaxLength > 0 && length > b.opts.MaxLength {
			return false
		}
		if b.opts.MaxDepth > 0 && depth > b.opts.MaxDepth {
			return false
		}
	}
	z := b.out.Data[pit]
	for i, ok := b.next(pit); ok; i, ok = b.next(i) {
		z -= b.eps
		if b.out.Data[i] <= z {
			break
		}
		b.out.Data[i] = z
	}
	return true
}

// measure walks the channel carve would cut and returns its length in cells
// and its deepest cut below the input surface.
func (b *breacher) measure(pit int) (int, float64) {
	length := 0
	var depth float64
	z := b.out.Data[pit]
	for i, ok := b.next(pit); ok; i, ok = b.next(i) {
		z -= b.eps
		if b.out.Data[i] <= z {
			break
		}
		length++
		if cut := b.dem.Data[i] - z; cut > depth {
			depth = cut
		}
		if b.opts.MaxLength > 0 && length > b.opts.MaxLength {
			break
		}
	}
	return length, depth
}

// fillAlong raises every cell at least eps above its link target, visiting
// cells in flood order so targets are final before their sources.
func (b *breacher) fillAlong(order []int) {
	for _, i := range order {
		j, ok := b.next(i)
		if !ok {
			continue
		}
		if zn := b.out.Data[j]; b.out.Data[i] <= zn+b.eps {
			b.out.Data[i] = zn + b.eps
		}
	}
}
