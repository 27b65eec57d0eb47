package flowdir

import (
	"fmt"
	"math"

	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/raster"
)

// Router describes how flow leaves each cell of a grid. Cell indexes are
// row-major.
type Router interface {
	Dimensions() (rows, cols int)
	// Valid reports whether cell i takes part in routing.
	Valid(i int) bool
	// Receivers calls emit once for each in-grid valid neighbour that i can
	// pass flow to, with the fraction of i's flow it receives. acc is the
	// flow accumulated at i; a router may use it to change fractions but
	// must emit the same set of neighbours for every acc.
	Receivers(i int, acc float64, emit func(j int, frac float64))
}

// neighbourIndex returns the in-grid valid neighbour of i in direction d.
func neighbourIndex(g *raster.Grid, i int, d neighbor.Direction) (int, bool) {
	r, c := g.RowCol(i)
	rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
	if !g.InBounds(rn, cn) {
		return 0, false
	}
	j := g.Index(rn, cn)
	return j, g.Valid(j)
}

// D8Router routes along a D8 pointer grid.
type D8Router struct {
	pointer *raster.Grid
	dirs    []int8
}

// NewD8Router decodes a pointer grid in the given numbering. A value that is
// neither 0 nor a pointer code is a data error.
func NewD8Router(pointer *raster.Grid, esri bool) (*D8Router, error) {
	const op = "flowdir.NewD8Router"
	if pointer == nil || pointer.Len() == 0 {
		return nil, flowerr.Config(op, "empty pointer grid")
	}
	enc := neighbor.EncodingFor(esri)
	dirs := make([]int8, pointer.Len())
	for i, v := range pointer.Data {
		dirs[i] = -1
		if pointer.IsNoData(v) || v == neighbor.NoFlow {
			continue
		}
		d, ok := enc.Decode(v)
		if !ok {
			r, c := pointer.RowCol(i)
			return nil, flowerr.DataAt(op, r, c, fmt.Errorf("invalid pointer value %v", v))
		}
		dirs[i] = int8(d)
	}
	return &D8Router{pointer: pointer, dirs: dirs}, nil
}

func (d *D8Router) Dimensions() (int, int) { return d.pointer.Dimensions() }

func (d *D8Router) Valid(i int) bool { return d.pointer.Valid(i) }

// Direction returns the decoded flow direction of cell i.
func (d *D8Router) Direction(i int) (neighbor.Direction, bool) {
	if d.dirs[i] < 0 {
		return 0, false
	}
	return neighbor.Direction(d.dirs[i]), true
}

// Downstream returns the cell i drains to. It is false for cells without
// flow and for cells draining off the grid or into nodata.
func (d *D8Router) Downstream(i int) (int, bool) {
	dir, ok := d.Direction(i)
	if !ok {
		return 0, false
	}
	return neighbourIndex(d.pointer, i, dir)
}

func (d *D8Router) Receivers(i int, _ float64, emit func(int, float64)) {
	if j, ok := d.Downstream(i); ok {
		emit(j, 1)
	}
}

// DInfRouter splits flow between the two neighbours bracketing each cell's
// D-infinity angle, in proportion to the angular distance.
type DInfRouter struct {
	angles *raster.Grid
}

// NewDInfRouter wraps an angle grid. Angles outside [0, 2π) other than
// NoFlowAngle are a data error.
func NewDInfRouter(angles *raster.Grid) (*DInfRouter, error) {
	const op = "flowdir.NewDInfRouter"
	if angles == nil || angles.Len() == 0 {
		return nil, flowerr.Config(op, "empty angle grid")
	}
	for i, a := range angles.Data {
		if angles.IsNoData(a) || a == NoFlowAngle {
			continue
		}
		if a < 0 || a >= 2*math.Pi {
			r, c := angles.RowCol(i)
			return nil, flowerr.DataAt(op, r, c, fmt.Errorf("flow angle %v out of range", a))
		}
	}
	return &DInfRouter{angles: angles}, nil
}

func (d *DInfRouter) Dimensions() (int, int) { return d.angles.Dimensions() }

func (d *DInfRouter) Valid(i int) bool { return d.angles.Valid(i) }

func (d *DInfRouter) Receivers(i int, _ float64, emit func(int, float64)) {
	a := d.angles.Data[i]
	if a == NoFlowAngle || d.angles.IsNoData(a) {
		return
	}
	const sector = math.Pi / 4
	k := int(a / sector)
	if k >= neighbor.Count {
		k = neighbor.Count - 1
	}
	second := (a - float64(k)*sector) / sector
	split := [2]struct {
		dir  neighbor.Direction
		frac float64
	}{
		{neighbor.CounterClockwise[k], 1 - second},
		{neighbor.CounterClockwise[(k+1)%neighbor.Count], second},
	}
	for _, s := range split {
		if s.frac <= 0 {
			continue
		}
		if j, ok := neighbourIndex(d.angles, i, s.dir); ok {
			emit(j, s.frac)
		}
	}
}
