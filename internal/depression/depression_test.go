package depression

import (
	"context"
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func uniform(t *testing.T, n int, z float64) *raster.Grid {
	t.Helper()
	g, err := raster.New(n, n, 1, 1, nd)
	require.NoError(t, err)
	g.Fill(z)
	return g
}

func randomDEM(t *testing.T, rows, cols int, seed int64) *raster.Grid {
	t.Helper()
	g, err := raster.New(rows, cols, 1, 1, nd)
	require.NoError(t, err)
	rng := rand.New(rand.NewSource(seed))
	for i := range g.Data {
		g.Data[i] = rng.Float64() * 100
	}
	return g
}

// requireDrains checks that every valid interior cell has a strictly lower
// neighbour, and that repeatedly stepping to the lowest neighbour reaches
// the grid edge or a nodata hole without climbing.
func requireDrains(t *testing.T, g *raster.Grid) {
	t.Helper()
	exit := exits(g, false)
	onEdge := func(r, c int) bool { return exit[g.Index(r, c)] }
	for i := range g.Data {
		if !g.Valid(i) {
			continue
		}
		r, c := g.RowCol(i)
		for steps := 0; !onEdge(r, c); steps++ {
			require.Less(t, steps, g.Len(), "path from cell %d does not terminate", i)
			z := g.Get(r, c)
			bestR, bestC, best := -1, -1, z
			for d := 0; d < neighbor.Count; d++ {
				rn, cn := r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]
				zn := g.Get(rn, cn)
				if !g.IsNoData(zn) && zn < best {
					bestR, bestC, best = rn, cn, zn
				}
			}
			require.GreaterOrEqual(t, bestR, 0, "cell (%d,%d) at %v has no lower neighbour", r, c, z)
			r, c = bestR, bestC
		}
	}
}

func TestFill_FlatInteriorWithGradient(t *testing.T) {
	dem := uniform(t, 5, 10)
	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			dem.Set(r, c, 5)
		}
	}

	out, res, err := Fill(context.Background(), dem, FillOptions{FixFlats: true, Epsilon: 0.01})
	require.NoError(t, err)
	assert.Equal(t, 9, res.Raised)
	assert.Zero(t, res.Unresolved)

	for r := 1; r <= 3; r++ {
		for c := 1; c <= 3; c++ {
			z := out.Get(r, c)
			assert.GreaterOrEqual(t, z, 10.0)
			lower := false
			for d := 0; d < neighbor.Count; d++ {
				if zn := out.Get(r+neighbor.RowOffset[d], c+neighbor.ColOffset[d]); zn <= z-0.01+1e-9 {
					lower = true
				}
			}
			assert.True(t, lower, "cell (%d,%d) is not epsilon above any neighbour", r, c)
		}
	}
	assert.Equal(t, 10.0, out.Get(0, 0), "exits are never raised")
	assert.Equal(t, 5.0, dem.Get(2, 2), "input untouched")
}

func TestFill_SingleInteriorCell(t *testing.T) {
	dem := grid(t, [][]float64{
		{10, 10, 10},
		{10, 5, 10},
		{10, 10, 10},
	})

	out, res, err := Fill(context.Background(), dem, FillOptions{})
	require.NoError(t, err)
	assert.Equal(t, 10.0, out.Get(1, 1))
	assert.Equal(t, &Result{Raised: 1, Pits: 1}, res)

	out, _, err = Fill(context.Background(), dem, FillOptions{FixFlats: true, Epsilon: 0.5})
	require.NoError(t, err)
	assert.Equal(t, 10.5, out.Get(1, 1))
}

func TestFill_Idempotent(t *testing.T) {
	dem := randomDEM(t, 24, 17, 1)

	once, _, err := Fill(context.Background(), dem, FillOptions{})
	require.NoError(t, err)
	twice, res, err := Fill(context.Background(), once, FillOptions{})
	require.NoError(t, err)

	assert.Empty(t, cmp.Diff(once.Data, twice.Data))
	assert.Zero(t, res.Raised)
	assert.Zero(t, res.Lowered)
}

func TestMonotonicity(t *testing.T) {
	dem := randomDEM(t, 30, 30, 42)

	t.Run("fill with flat fixing", func(t *testing.T) {
		out, _, err := Fill(context.Background(), dem, FillOptions{FixFlats: true})
		require.NoError(t, err)
		requireDrains(t, out)
	})
	t.Run("unbounded breach", func(t *testing.T) {
		out, res, err := Breach(context.Background(), dem, BreachOptions{})
		require.NoError(t, err)
		assert.Zero(t, res.Unresolved)
		assert.Positive(t, res.Pits)
		requireDrains(t, out)
	})
	t.Run("bounded breach with filling", func(t *testing.T) {
		out, res, err := Breach(context.Background(), dem, BreachOptions{MaxDepth: 2, MaxLength: 3, FillRemaining: true})
		require.NoError(t, err)
		assert.Zero(t, res.Unresolved)
		requireDrains(t, out)
	})
}

func TestBreach_SinglePit(t *testing.T) {
	dem := uniform(t, 5, 10)
	dem.Set(2, 2, 1)
	const eps = 0.001

	out, res, err := Breach(context.Background(), dem, BreachOptions{Epsilon: eps})
	require.NoError(t, err)

	want := dem.Clone()
	// The pit sits just below its rim and the flood reached it from the
	// north-west, so the channel runs diagonally to the corner.
	want.Set(2, 2, 10-eps)
	want.Set(1, 1, 10-2*eps)
	want.Set(0, 0, 10-3*eps)
	assert.Empty(t, cmp.Diff(want.Data, out.Data, cmpopts.EquateApprox(0, 1e-9)))
	assert.Equal(t, &Result{Raised: 1, Lowered: 2, Pits: 1}, res)
	requireDrains(t, out)
}

func bowl(t *testing.T) *raster.Grid {
	t.Helper()
	dem := uniform(t, 7, 10)
	for r := 2; r <= 4; r++ {
		for c := 2; c <= 4; c++ {
			dem.Set(r, c, 5)
		}
	}
	dem.Set(3, 3, 1)
	return dem
}

func TestBreach_Bounds(t *testing.T) {
	dem := bowl(t)
	center := dem.Index(3, 3)

	tests := []struct {
		name       string
		opts       BreachOptions
		unresolved []int
	}{
		{"depth exceeded", BreachOptions{MaxDepth: 0.5, Epsilon: 0.001}, []int{center}},
		{"length exceeded", BreachOptions{MaxLength: 1, Epsilon: 0.001}, []int{center}},
		{"within bounds", BreachOptions{MaxDepth: 10, MaxLength: 10, Epsilon: 0.001}, nil},
		{"filled after breaching", BreachOptions{MaxDepth: 0.5, FillRemaining: true, Epsilon: 0.001}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, res, err := Breach(context.Background(), dem, tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.unresolved, res.UnresolvedCells)
			assert.Equal(t, len(tt.unresolved), res.Unresolved)
			if len(tt.unresolved) > 0 {
				assert.Zero(t, res.Lowered, "an over-long channel is not cut")
				assert.InDelta(t, 5-0.001, out.Data[center], 1e-9)
				return
			}
			requireDrains(t, out)
		})
	}
}

func sealedDEM(t *testing.T) *raster.Grid {
	t.Helper()
	dem := uniform(t, 7, 20)
	for r := 1; r <= 5; r++ {
		for c := 1; c <= 5; c++ {
			if r == 1 || r == 5 || c == 1 || c == 5 {
				dem.Set(r, c, nd)
			} else {
				dem.Set(r, c, 5)
			}
		}
	}
	dem.Set(3, 3, 2)
	return dem
}

func TestSealedByNoData(t *testing.T) {
	dem := sealedDEM(t)
	center := dem.Index(3, 3)

	t.Run("fill reports the sealed region", func(t *testing.T) {
		out, res, err := Fill(context.Background(), dem, FillOptions{NoDataIsBarrier: true})
		require.NoError(t, err)
		assert.Equal(t, 1, res.Unresolved)
		assert.Equal(t, []int{center}, res.UnresolvedCells)
		assert.Empty(t, cmp.Diff(dem.Data, out.Data))
	})
	t.Run("breach reports the sealed region", func(t *testing.T) {
		out, res, err := Breach(context.Background(), dem, BreachOptions{NoDataIsBarrier: true})
		require.NoError(t, err)
		assert.Equal(t, []int{center}, res.UnresolvedCells)
		assert.Empty(t, cmp.Diff(dem.Data, out.Data))
	})
	t.Run("nodata drains by default", func(t *testing.T) {
		out, res, err := Fill(context.Background(), dem, FillOptions{})
		require.NoError(t, err)
		assert.Zero(t, res.Unresolved)
		assert.Equal(t, 5.0, out.Get(3, 3))
	})
}

func TestNoDataNeighboursAreExits(t *testing.T) {
	dem := uniform(t, 7, 10)
	dem.Set(3, 3, nd)
	dem.Set(3, 2, 2)

	t.Run("fill", func(t *testing.T) {
		out, res, err := Fill(context.Background(), dem, FillOptions{})
		require.NoError(t, err)
		assert.Equal(t, 2.0, out.Get(3, 2))
		assert.Zero(t, res.Raised)
		assert.Zero(t, res.Unresolved)
	})
	t.Run("breach", func(t *testing.T) {
		out, res, err := Breach(context.Background(), dem, BreachOptions{Epsilon: 0.001})
		require.NoError(t, err)
		assert.Equal(t, 2.0, out.Get(3, 2))
		assert.Zero(t, res.Unresolved)
		requireDrains(t, out)
	})
	t.Run("barrier", func(t *testing.T) {
		out, _, err := Fill(context.Background(), dem, FillOptions{NoDataIsBarrier: true})
		require.NoError(t, err)
		assert.Equal(t, 10.0, out.Get(3, 2))
	})
}

func TestConfigErrors(t *testing.T) {
	empty := grid(t, [][]float64{{nd, nd}, {nd, nd}})
	ctx := context.Background()

	_, _, err := Fill(ctx, empty, FillOptions{})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
	_, _, err = Breach(ctx, empty, BreachOptions{})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
	_, _, err = FillSinglePits(ctx, empty)
	assert.ErrorIs(t, err, flowerr.ErrConfig)
	_, _, err = Fill(ctx, nil, FillOptions{})
	assert.ErrorIs(t, err, flowerr.ErrConfig)

	_, _, err = Breach(ctx, bowl(t), BreachOptions{Epsilon: -1})
	assert.Equal(t, flowerr.KindConfig, flowerr.Classify(err))
}

func TestCancellation(t *testing.T) {
	dem := randomDEM(t, 10, 10, 3)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := Fill(ctx, dem, FillOptions{})
	assert.True(t, flowerr.IsCanceled(err))
	_, _, err = Breach(ctx, dem, BreachOptions{})
	assert.True(t, flowerr.IsCanceled(err))
	_, _, err = BreachSinglePits(ctx, dem)
	assert.True(t, flowerr.IsCanceled(err))

	var seen []int
	_, _, err = Fill(context.Background(), dem, FillOptions{Progress: func(pct int) bool {
		seen = append(seen, pct)
		return true
	}})
	assert.True(t, flowerr.IsCanceled(err))
	assert.Equal(t, []int{100}, seen)
}

func TestSinglePits(t *testing.T) {
	dem := uniform(t, 5, 10)
	dem.Set(2, 2, 1)
	dem.Set(0, 2, 0)

	t.Run("fill", func(t *testing.T) {
		out, res, err := FillSinglePits(context.Background(), dem)
		require.NoError(t, err)
		assert.Equal(t, PitResult{Resolved: 1}, res)
		assert.Equal(t, 10.0, out.Get(2, 2))
	})
	t.Run("breach through the north neighbour", func(t *testing.T) {
		out, res, err := BreachSinglePits(context.Background(), dem)
		require.NoError(t, err)
		assert.Equal(t, PitResult{Resolved: 1}, res)
		assert.Equal(t, 0.5, out.Get(1, 2))
		assert.Equal(t, 1.0, out.Get(2, 2))
		assert.Equal(t, 1, countDiff(dem, out))
	})
	t.Run("breach without a lower ring cell", func(t *testing.T) {
		flat := uniform(t, 5, 10)
		flat.Set(2, 2, 1)
		out, res, err := BreachSinglePits(context.Background(), flat)
		require.NoError(t, err)
		assert.Equal(t, PitResult{Unresolved: 1}, res)
		assert.Empty(t, cmp.Diff(flat.Data, out.Data))
	})
	t.Run("edge cells are never pits", func(t *testing.T) {
		edge := uniform(t, 3, 10)
		edge.Set(0, 1, 1)
		_, res, err := FillSinglePits(context.Background(), edge)
		require.NoError(t, err)
		assert.Zero(t, res)
	})
}

func countDiff(a, b *raster.Grid) int {
	n := 0
	for i := range a.Data {
		if a.Data[i] != b.Data[i] {
			n++
		}
	}
	return n
}

func TestDefaultEpsilon(t *testing.T) {
	assert.Equal(t, 1e-5, DefaultEpsilon(uniform(t, 3, 10)))
	g := grid(t, [][]float64{{0, 4000}})
	assert.InDelta(t, 1e-3, DefaultEpsilon(g), 1e-12)
}
