// Package depression conditions elevation grids so that every cell has a
// drainage path to an exit. Two priority-flood strategies are provided:
// filling raises depressions to their spill elevation, breaching carves a
// descending channel from each pit back to the cell the flood reached it
// from. Both treat the outer ring of the grid and the cells touching nodata
// as exits, which are never raised.
//
// Every function returns a new grid; inputs are never modified.
package depression

import (
	"math"
	"strconv"

	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/progress"
	"github.com/vk/flowgrid/internal/raster"
)

// FillOptions configures Fill.
type FillOptions struct {
	// FixFlats raises every reached cell at least Epsilon above the cell the
	// flood reached it from, leaving no perfectly flat area behind.
	FixFlats bool
	// Epsilon is the flat-fixing increment. Zero derives one from the
	// elevation range.
	Epsilon float64
	// NoDataIsBarrier stops cells touching interior nodata from acting as
	// exits. Regions sealed off by nodata are then reported unresolved.
	NoDataIsBarrier bool
	Progress        progress.Func
}

// BreachOptions configures Breach.
type BreachOptions struct {
	// MaxDepth bounds how far below its original elevation any channel cell
	// may be cut. Zero or less is unbounded.
	MaxDepth float64
	// MaxLength bounds the number of cells in a channel. Zero or less is
	// unbounded.
	MaxLength int
	// FillRemaining fills the depressions a bounded breach could not carve.
	FillRemaining   bool
	Epsilon         float64
	NoDataIsBarrier bool
	Progress        progress.Func
}

// Result summarises the changes made by a conditioning pass.
type Result struct {
	Raised  int
	Lowered int
	// Pits is the number of interior cells without a lower neighbour in the input.
	Pits int
	// Unresolved counts depressions left in the output. UnresolvedCells holds
	// one flat index per depression: the pit for a channel that exceeded its
	// bounds, the lowest cell for a region no exit could reach.
	Unresolved      int
	UnresolvedCells []int
}

func (r *Result) tally(in, out *raster.Grid) {
	for i, v := range out.Data {
		switch {
		case v > in.Data[i]:
			r.Raised++
		case v < in.Data[i]:
			r.Lowered++
		}
	}
}

func checkInput(op string, dem *raster.Grid) error {
	if dem == nil || dem.Len() == 0 {
		return flowerr.Config(op, "empty elevation grid")
	}
	if dem.ValidCount() == 0 {
		return flowerr.Config(op, "elevation grid holds no valid cells")
	}
	return nil
}

func resolveEpsilon(op string, dem *raster.Grid, eps float64) (float64, error) {
	if eps < 0 || math.IsNaN(eps) {
		return 0, flowerr.Config(op, "epsilon must not be negative, got %v", eps)
	}
	if eps == 0 {
		return DefaultEpsilon(dem), nil
	}
	return eps, nil
}

// DefaultEpsilon scales the flat-fixing increment to the number of integer
// digits in the elevation range, so that eight significant digits remain
// for the surface itself. It never drops below 1e-5.
func DefaultEpsilon(dem *raster.Grid) float64 {
	s := raster.Summarize(dem)
	if s.Valid == 0 {
		return 1e-5
	}
	digits := len(strconv.Itoa(int(s.Max - s.Min)))
	return math.Max(10/math.Pow(10, float64(8-digits)), 1e-5)
}

// exits marks the valid cells that drain out of the grid: the outer ring,
// and unless nodataIsBarrier every cell with a nodata neighbour.
func exits(g *raster.Grid, nodataIsBarrier bool) []bool {
	out := make([]bool, g.Len())
	for i := range g.Data {
		if !g.Valid(i) {
			continue
		}
		r, c := g.RowCol(i)
		if r == 0 || c == 0 || r == g.Rows-1 || c == g.Cols-1 {
			out[i] = true
			continue
		}
		if nodataIsBarrier {
			continue
		}
		for d := 0; d < neighbor.Count; d++ {
			if g.IsNoData(g.Get(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d])) {
				out[i] = true
				break
			}
		}
	}
	return out
}

// lowestNeighbour returns the lowest valid neighbour elevation of cell i,
// and whether cell i is a pit: no valid neighbour is strictly lower.
func lowestNeighbour(g *raster.Grid, i int) (float64, bool) {
	r, c := g.RowCol(i)
	z := g.Data[i]
	low := math.Inf(1)
	for d := 0; d < neighbor.Count; d++ {
		zn := g.Get(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d])
		if g.IsNoData(zn) {
			continue
		}
		if zn < z {
			return zn, false
		}
		low = math.Min(low, zn)
	}
	return low, true
}

// unreached finds the connected regions of valid cells the flood never
// visited and returns the lowest cell of each, in row-major discovery order.
func unreached(g *raster.Grid, visited []bool) []int {
	var lows []int
	seen := make([]bool, len(visited))
	var stack []int
	for start := range g.Data {
		if visited[start] || seen[start] || !g.Valid(start) {
			continue
		}
		low := start
		seen[start] = true
		stack = append(stack[:0], start)
		for len(stack) > 0 {
			i := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if g.Data[i] < g.Data[low] {
				low = i
			}
			r, c := g.RowCol(i)
			for d := 0; d < neighbor.Count; d++ {
				rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
				if !g.InBounds(rn, cn) {
					continue
				}
				j := g.Index(rn, cn)
				if visited[j] || seen[j] || !g.Valid(j) {
					continue
				}
				seen[j] = true
				stack = append(stack, j)
			}
		}
		lows = append(lows, low)
	}
	return lows
}
