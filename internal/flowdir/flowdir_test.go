package flowdir

import (
	"context"
	"math"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/depression"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/neighbor"
	"github.com/vk/flowgrid/internal/raster"
)

const nd = -9999.0

func grid(t *testing.T, rows [][]float64) *raster.Grid {
	t.Helper()
	g, err := raster.FromRows(rows, nd)
	require.NoError(t, err)
	return g
}

func TestD8(t *testing.T) {
	tests := []struct {
		name string
		dem  [][]float64
		esri bool
		want float64
	}{
		{"east standard", [][]float64{{9, 9, 9}, {9, 5, 1}, {9, 9, 9}}, false, 2},
		{"east esri", [][]float64{{9, 9, 9}, {9, 5, 1}, {9, 9, 9}}, true, 1},
		{"north-west", [][]float64{{0, 9, 9}, {9, 5, 9}, {9, 9, 9}}, false, 64},
		{"cardinal tie keeps east over north", [][]float64{{9, 1, 9}, {9, 5, 1}, {9, 9, 9}}, false, 2},
		{"cardinal tie keeps south over west", [][]float64{{9, 9, 9}, {1, 5, 9}, {9, 1, 9}}, false, 8},
		{"pit has no flow", [][]float64{{9, 9, 9}, {9, 5, 9}, {9, 9, 9}}, false, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := D8(context.Background(), grid(t, tt.dem), D8Options{ESRI: tt.esri})
			require.NoError(t, err)
			assert.Equal(t, tt.want, out.Get(1, 1))
		})
	}
}

func TestD8_EdgesAndNoData(t *testing.T) {
	out, err := D8(context.Background(), grid(t, [][]float64{{3, 2, 1, nd}}), D8Options{})
	require.NoError(t, err)
	assert.Equal(t, []float64{2, 2, 0, raster.DefaultNoData}, out.Data)
	assert.True(t, out.IsNoData(out.Data[3]))
}

func TestD8_DeterministicOnFlats(t *testing.T) {
	g, err := raster.New(40, 40, 1, 1, nd)
	require.NoError(t, err)
	g.Fill(7)
	for r := 10; r < 30; r++ {
		g.Set(r, 5, 3)
	}

	a, err := D8(context.Background(), g, D8Options{Workers: 1})
	require.NoError(t, err)
	b, err := D8(context.Background(), g, D8Options{Workers: 8})
	require.NoError(t, err)

	da, err := raster.Digest(a)
	require.NoError(t, err)
	db, err := raster.Digest(b)
	require.NoError(t, err)
	assert.Equal(t, da, db)
}

func TestD8_ConditionedSurfaceDrainsToEdge(t *testing.T) {
	dem, err := raster.New(25, 25, 1, 1, nd)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(11))
	for i := range dem.Data {
		dem.Data[i] = rng.Float64() * 50
	}
	filled, _, err := depression.Fill(context.Background(), dem, depression.FillOptions{FixFlats: true})
	require.NoError(t, err)

	ptr, err := D8(context.Background(), filled, D8Options{})
	require.NoError(t, err)
	router, err := NewD8Router(ptr, false)
	require.NoError(t, err)

	for i := range filled.Data {
		cur := i
		for steps := 0; ; steps++ {
			require.Less(t, steps, filled.Len())
			next, ok := router.Downstream(cur)
			if !ok {
				r, c := filled.RowCol(cur)
				onEdge := r == 0 || c == 0 || r == filled.Rows-1 || c == filled.Cols-1
				require.True(t, onEdge, "flow from %d stops inside the grid at %d", i, cur)
				break
			}
			require.Less(t, filled.Data[next], filled.Data[cur])
			cur = next
		}
	}
}

func TestDInf(t *testing.T) {
	tests := []struct {
		name string
		dem  [][]float64
		want float64
	}{
		{"east", [][]float64{{3, 2, 1}, {3, 2, 1}, {3, 2, 1}}, 0},
		{"north", [][]float64{{1, 1, 1}, {2, 2, 2}, {3, 3, 3}}, math.Pi / 2},
		{"west", [][]float64{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}, math.Pi},
		{"south", [][]float64{{3, 3, 3}, {2, 2, 2}, {1, 1, 1}}, 3 * math.Pi / 2},
		{"north-east", [][]float64{{10, 9, 8}, {11, 10, 9}, {12, 11, 10}}, math.Pi / 4},
		{"pit", [][]float64{{9, 9, 9}, {9, 1, 9}, {9, 9, 9}}, NoFlowAngle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := DInf(context.Background(), grid(t, tt.dem), DInfOptions{})
			require.NoError(t, err)
			assert.InDelta(t, tt.want, out.Get(1, 1), 1e-12)
		})
	}
}

func TestDInf_AnglesInRange(t *testing.T) {
	dem, err := raster.New(15, 15, 2, 2, nd)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(5))
	for i := range dem.Data {
		dem.Data[i] = rng.Float64() * 10
	}
	out, err := DInf(context.Background(), dem, DInfOptions{})
	require.NoError(t, err)
	_, err = NewDInfRouter(out)
	require.NoError(t, err)
}

func collect(r Router, i int, acc float64) map[int]float64 {
	got := map[int]float64{}
	r.Receivers(i, acc, func(j int, frac float64) { got[j] += frac })
	return got
}

func TestDInfRouter(t *testing.T) {
	angles := grid(t, [][]float64{
		{nd, nd, nd},
		{nd, math.Pi / 8, nd},
		{nd, nd, nd},
	})
	angles.Data[0], angles.Data[1], angles.Data[2], angles.Data[5] = 0, 0, 0, 0
	r, err := NewDInfRouter(angles)
	require.NoError(t, err)

	got := collect(r, 4, 1)
	assert.InDelta(t, 0.5, got[5], 1e-12, "east")
	assert.InDelta(t, 0.5, got[2], 1e-12, "north-east")
	assert.Len(t, got, 2)

	angles.Set(1, 1, 0)
	assert.Equal(t, map[int]float64{5: 1}, collect(r, 4, 1))

	angles.Set(1, 1, 5*math.Pi/4)
	assert.Empty(t, collect(r, 4, 1), "south-west neighbours are nodata")

	bad := grid(t, [][]float64{{7}})
	_, err = NewDInfRouter(bad)
	assert.ErrorIs(t, err, flowerr.ErrData)
}

func TestD8Router(t *testing.T) {
	ptr := grid(t, [][]float64{
		{2, 8, 0},
		{32, 2, nd},
	})
	r, err := NewD8Router(ptr, false)
	require.NoError(t, err)

	j, ok := r.Downstream(0)
	assert.True(t, ok)
	assert.Equal(t, 1, j)
	j, ok = r.Downstream(1)
	assert.True(t, ok)
	assert.Equal(t, 4, j)
	_, ok = r.Downstream(2)
	assert.False(t, ok, "no flow")
	_, ok = r.Downstream(3)
	assert.False(t, ok, "off the grid")
	_, ok = r.Downstream(4)
	assert.False(t, ok, "east neighbour is nodata")
	assert.False(t, r.Valid(5))

	dir, ok := r.Direction(3)
	assert.True(t, ok)
	assert.Equal(t, neighbor.W, dir)

	_, err = NewD8Router(grid(t, [][]float64{{3}}), false)
	assert.ErrorIs(t, err, flowerr.ErrData)
	var fe *flowerr.Error
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.Row)
}

func TestFD8(t *testing.T) {
	dem := grid(t, [][]float64{
		{9, 9, 9},
		{3, 5, 4},
		{9, 9, 9},
	})

	f, err := ComputeFD8(context.Background(), dem, FD8Options{Exponent: 1, Threshold: 5})
	require.NoError(t, err)
	p := f.Proportions(4)
	assert.InDelta(t, 1.0/3, p[neighbor.E], 1e-12)
	assert.InDelta(t, 2.0/3, p[neighbor.W], 1e-12)
	assert.Zero(t, p[neighbor.N])

	below := collect(f, 4, 1)
	assert.Len(t, below, 2)
	assert.InDelta(t, 1.0/3, below[5], 1e-12)
	assert.InDelta(t, 2.0/3, below[3], 1e-12)
	assert.Equal(t, map[int]float64{5: 0, 3: 1}, collect(f, 4, 10), "above the threshold all flow takes the steepest path")

	pit := f.Proportions(3)
	assert.Equal(t, [neighbor.Count]float64{}, pit)

	for _, exp := range []float64{0, -1, math.NaN()} {
		_, err := ComputeFD8(context.Background(), dem, FD8Options{Exponent: exp})
		assert.ErrorIs(t, err, flowerr.ErrConfig)
	}
}

func TestNoFlowCells(t *testing.T) {
	dem := grid(t, [][]float64{
		{9, 9, 9, 9},
		{9, 1, 2, 9},
		{9, 9, 9, 9},
	})
	out, n, err := NoFlowCells(context.Background(), dem)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1.0, out.Get(1, 1))
	assert.True(t, out.IsNoData(out.Get(1, 2)))
	assert.True(t, out.IsNoData(out.Get(0, 0)), "edge cells are exits")
}

func TestEmptyInput(t *testing.T) {
	empty := grid(t, [][]float64{{nd}})
	_, err := D8(context.Background(), empty, D8Options{})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
	_, err = DInf(context.Background(), empty, DInfOptions{})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
	_, err = ComputeFD8(context.Background(), empty, FD8Options{Exponent: 1})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
}
