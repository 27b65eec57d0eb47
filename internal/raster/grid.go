package raster

import (
	"fmt"
	"math"

	"github.com/vk/flowgrid/internal/flowerr"
)

// DefaultNoData is used when a grid is created without an explicit sentinel.
const DefaultNoData = -32768.0

// Grid is a row-major 2D array of values.
type Grid struct {
	Rows      int
	Cols      int
	NoData    float64
	CellSizeX float64
	CellSizeY float64
	XLLCorner float64
	YLLCorner float64

	// DisplayMin and DisplayMax are rendering hints only; they never alter Data.
	DisplayMin float64
	DisplayMax float64

	Data []float64
}

// New allocates a grid of the given shape with every cell set to nodata.
func New(rows, cols int, cellSizeX, cellSizeY, nodata float64) (*Grid, error) {
	if rows <= 0 || cols <= 0 {
		return nil, flowerr.Config("raster.New", "grid must have at least one row and column, got %dx%d", rows, cols)
	}
	if !(cellSizeX > 0) || !(cellSizeY > 0) {
		return nil, flowerr.Config("raster.New", "cell size must be positive, got (%v, %v)", cellSizeX, cellSizeY)
	}
	g := &Grid{
		Rows:       rows,
		Cols:       cols,
		NoData:     nodata,
		CellSizeX:  cellSizeX,
		CellSizeY:  cellSizeY,
		DisplayMin: math.NaN(),
		DisplayMax: math.NaN(),
		Data:       make([]float64, rows*cols),
	}
	g.Fill(nodata)
	return g, nil
}

// FromRows builds a unit-cell-size grid from nested rows. It is mostly a
// convenience for tests and small fixtures.
func FromRows(values [][]float64, nodata float64) (*Grid, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, flowerr.Config("raster.FromRows", "no values")
	}
	g, err := New(len(values), len(values[0]), 1, 1, nodata)
	if err != nil {
		return nil, err
	}
	for r, row := range values {
		if len(row) != g.Cols {
			return nil, flowerr.Config("raster.FromRows", "row %d has %d values, want %d", r, len(row), g.Cols)
		}
		copy(g.Data[r*g.Cols:], row)
	}
	return g, nil
}

// NewLike allocates a grid with the same shape and georeference as g, every
// cell set to fill.
func (g *Grid) NewLike(fill float64) *Grid {
	out := &Grid{
		Rows:       g.Rows,
		Cols:       g.Cols,
		NoData:     g.NoData,
		CellSizeX:  g.CellSizeX,
		CellSizeY:  g.CellSizeY,
		XLLCorner:  g.XLLCorner,
		YLLCorner:  g.YLLCorner,
		DisplayMin: math.NaN(),
		DisplayMax: math.NaN(),
		Data:       make([]float64, len(g.Data)),
	}
	out.Fill(fill)
	return out
}

// Clone returns a deep copy of g.
func (g *Grid) Clone() *Grid {
	out := *g
	out.Data = make([]float64, len(g.Data))
	copy(out.Data, g.Data)
	return &out
}

// Fill sets every cell to v.
func (g *Grid) Fill(v float64) {
	for i := range g.Data {
		g.Data[i] = v
	}
}

// Dimensions returns (rows, cols).
func (g *Grid) Dimensions() (int, int) { return g.Rows, g.Cols }

// CellSize returns (dx, dy).
func (g *Grid) CellSize() (float64, float64) { return g.CellSizeX, g.CellSizeY }

// Len is the number of cells.
func (g *Grid) Len() int { return len(g.Data) }

// Index converts a row/column pair to the flat index.
func (g *Grid) Index(row, col int) int { return row*g.Cols + col }

// RowCol converts a flat index to a row/column pair.
func (g *Grid) RowCol(i int) (int, int) { return i / g.Cols, i % g.Cols }

// InBounds reports whether (row, col) lies inside the grid.
func (g *Grid) InBounds(row, col int) bool {
	return row >= 0 && col >= 0 && row < g.Rows && col < g.Cols
}

// Get returns the value at (row, col); cells outside the grid read as nodata.
func (g *Grid) Get(row, col int) float64 {
	if !g.InBounds(row, col) {
		return g.NoData
	}
	return g.Data[row*g.Cols+col]
}

// Set stores v at (row, col). Writes outside the grid are ignored.
func (g *Grid) Set(row, col int, v float64) {
	if g.InBounds(row, col) {
		g.Data[row*g.Cols+col] = v
	}
}

// IsNoData reports whether v is the nodata sentinel. NaN always counts as nodata.
func (g *Grid) IsNoData(v float64) bool {
	return v == g.NoData || math.IsNaN(v)
}

// Valid reports whether the cell at flat index i holds data.
func (g *Grid) Valid(i int) bool {
	return !g.IsNoData(g.Data[i])
}

// ValidCount returns the number of cells holding data.
func (g *Grid) ValidCount() int {
	n := 0
	for i := range g.Data {
		if g.Valid(i) {
			n++
		}
	}
	return n
}

// SameShape reports whether two grids have identical dimensions.
func (g *Grid) SameShape(other *Grid) bool {
	return other != nil && g.Rows == other.Rows && g.Cols == other.Cols
}

// RequireSameShape returns a configuration error naming op when the grids differ in shape.
func RequireSameShape(op string, a, b *Grid) error {
	if a == nil || b == nil {
		return flowerr.Config(op, "missing input grid")
	}
	if !a.SameShape(b) {
		return flowerr.Config(op, "grid dimensions differ: %dx%d vs %dx%d", a.Rows, a.Cols, b.Rows, b.Cols)
	}
	return nil
}

// CellArea is dx * dy.
func (g *Grid) CellArea() float64 { return g.CellSizeX * g.CellSizeY }

func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, cell=%gx%g, nodata=%g)", g.Rows, g.Cols, g.CellSizeX, g.CellSizeY, g.NoData)
}
