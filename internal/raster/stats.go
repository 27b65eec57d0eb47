package raster

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Stats summarises the valid cells of a grid.
type Stats struct {
	Valid int
	Min   float64
	Max   float64
	Mean  float64
	Sum   float64
}

// ValidValues returns the valid cell values in row-major order.
func (g *Grid) ValidValues() []float64 {
	vals := make([]float64, 0, len(g.Data))
	for _, v := range g.Data {
		if !g.IsNoData(v) {
			vals = append(vals, v)
		}
	}
	return vals
}

// Summarize computes statistics over valid cells. An all-nodata grid yields
// a zero Valid count and NaN extrema.
func Summarize(g *Grid) Stats {
	vals := g.ValidValues()
	if len(vals) == 0 {
		return Stats{Min: math.NaN(), Max: math.NaN(), Mean: math.NaN()}
	}
	return Stats{
		Valid: len(vals),
		Min:   floats.Min(vals),
		Max:   floats.Max(vals),
		Mean:  stat.Mean(vals, nil),
		Sum:   floats.Sum(vals),
	}
}

// Quantile returns the empirical p-quantile of the valid cells, or NaN when
// the grid holds no data.
func Quantile(g *Grid, p float64) float64 {
	vals := g.ValidValues()
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	return stat.Quantile(p, stat.Empirical, vals, nil)
}
