package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/raster"
)

// NoData is the sentinel used by grid fixtures.
const NoData = -9999.0

// WriteGrid saves rows as an Esri ASCII grid named name under dir and
// returns its path. Cells equal to NoData are nodata.
func WriteGrid(t *testing.T, dir, name string, rows [][]float64) string {
	t.Helper()
	g, err := raster.FromRows(rows, NoData)
	require.NoError(t, err)
	p := filepath.Join(dir, name)
	require.NoError(t, raster.NewStore().Save(context.Background(), p, g))
	return p
}

// ReadGrid loads the grid at location.
func ReadGrid(t *testing.T, location string) *raster.Grid {
	t.Helper()
	g, err := raster.NewStore().Load(context.Background(), location)
	require.NoError(t, err)
	return g
}

// Rows returns the cell values of g as nested rows.
func Rows(g *raster.Grid) [][]float64 {
	out := make([][]float64, g.Rows)
	for r := range out {
		out[r] = append([]float64(nil), g.Data[r*g.Cols:(r+1)*g.Cols]...)
	}
	return out
}
