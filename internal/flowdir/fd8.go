package flowdir

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/parallel"
	"github.com/vk/flowgrid/internal/raster"
)

// DefaultExponent is the FD8 slope exponent used when none is given.
const DefaultExponent = 1.1

// FD8Options configures ComputeFD8.
type FD8Options struct {
	// Exponent weights each downslope neighbour by slope^Exponent. It must
	// be positive; DefaultExponent is the customary choice.
	Exponent float64
	// Threshold, when positive, sends all flow of a cell to its steepest
	// neighbour once the flow accumulated there exceeds it.
	Threshold float64
	Workers   int
}

// FD8 holds multiple-flow-direction proportions for every cell.
type FD8 struct {
	dem       *raster.Grid
	props     [][neighbor.Count]float64
	steepest  []int8
	threshold float64
}

// ComputeFD8 derives FD8 proportions from an elevation grid. Cells without
// a downslope neighbour get all-zero proportions.
func ComputeFD8(ctx context.Context, dem *raster.Grid, opts FD8Options) (*FD8, error) {
	const op = "flowdir.ComputeFD8"
	if err := checkDEM(op, dem); err != nil {
		return nil, err
	}
	p := opts.Exponent
	if !(p > 0) {
		return nil, flowerr.Config(op, "exponent must be positive, got %v", opts.Exponent)
	}
	if opts.Threshold < 0 {
		return nil, flowerr.Config(op, "threshold must not be negative, got %v", opts.Threshold)
	}

	f := &FD8{
		dem:       dem,
		props:     make([][neighbor.Count]float64, dem.Len()),
		steepest:  make([]int8, dem.Len()),
		threshold: opts.Threshold,
	}
	dist := neighbor.NewDistances(dem.CellSize())
	err := parallel.Rows(ctx, op, dem.Rows, opts.Workers, func(r int) error {
		for c := 0; c < dem.Cols; c++ {
			i := dem.Index(r, c)
			f.steepest[i] = -1
			if !dem.Valid(i) {
				continue
			}
			z := dem.Data[i]
			var total, max float64
			w := &f.props[i]
			for d := neighbor.Direction(0); d < neighbor.Count; d++ {
				zn := dem.Get(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d])
				if dem.IsNoData(zn) || zn >= z {
					continue
				}
				s := (z - zn) / dist[d]
				if s > max {
					max = s
					f.steepest[i] = int8(d)
				}
				w[d] = math.Pow(s, p)
				total += w[d]
			}
			if total > 0 {
				for d := range w {
					w[d] /= total
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	ctxlog.FromContext(ctx).Debug("Computed FD8 proportions", "grid", dem.String(), "exponent", p, "threshold", opts.Threshold)
	return f, nil
}

// Proportions returns the fraction of cell i's flow sent in each direction.
func (f *FD8) Proportions(i int) [neighbor.Count]float64 { return f.props[i] }

func (f *FD8) Dimensions() (int, int) { return f.dem.Dimensions() }

func (f *FD8) Valid(i int) bool { return f.dem.Valid(i) }

func (f *FD8) Receivers(i int, acc float64, emit func(int, float64)) {
	converge := f.threshold > 0 && acc > f.threshold
	for d, frac := range f.props[i] {
		if frac <= 0 {
			continue
		}
		j, ok := neighbourIndex(f.dem, i, neighbor.Direction(d))
		if !ok {
			continue
		}
		if converge {
			if int8(d) == f.steepest[i] {
				emit(j, 1)
			} else {
				emit(j, 0)
			}
			continue
		}
		emit(j, frac)
	}
}
