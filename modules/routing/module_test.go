package routing

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/flowdir"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/vk/flowgrid/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

// plane drains due east to the right-hand edge.
var plane = [][]float64{
	{3, 2, 1},
	{3, 2, 1},
	{3, 2, 1},
}

func assertNumber(t *testing.T, want float64, got cty.Value) {
	t.Helper()
	require.Equal(t, cty.Number, got.Type())
	f, _ := got.AsBigFloat().Float64()
	assert.Equal(t, want, f)
}

func TestRegister(t *testing.T) {
	r := registry.New()
	(&Module{}).Register(r)
	assert.Len(t, r.Names(), 6)
	require.NoError(t, r.ValidateRegistry(context.Background()))

	tool, ok := r.Tool("fd8_flow_accumulation")
	require.True(t, ok)
	in := tool.NewInput().(*FD8AccumulationInput)
	assert.Equal(t, flowdir.DefaultExponent, in.Exponent)
}

func TestD8Chain(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	dem := testutil.WriteGrid(t, dir, "dem.asc", plane)

	_, err := OnRunD8Pointer(ctx, &D8PointerInput{DEM: dem, Output: filepath.Join(dir, "pointer.asc")})
	require.NoError(t, err)
	pointer := testutil.ReadGrid(t, filepath.Join(dir, "pointer.asc"))
	assert.Equal(t, [][]float64{{2, 2, 0}, {2, 2, 0}, {2, 2, 0}}, testutil.Rows(pointer))

	out, err := OnRunD8Accumulation(ctx, &D8AccumulationInput{
		Pointer: filepath.Join(dir, "pointer.asc"),
		Output:  filepath.Join(dir, "acc.asc"),
	})
	require.NoError(t, err)
	assertNumber(t, 3, out.GetAttr("max"))
	acc := testutil.ReadGrid(t, filepath.Join(dir, "acc.asc"))
	assert.Equal(t, [][]float64{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}}, testutil.Rows(acc))
}

func TestD8Accumulation_WeightsAndType(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	pointer := testutil.WriteGrid(t, dir, "pointer.asc", [][]float64{{2, 2, 0}})
	weights := testutil.WriteGrid(t, dir, "weights.asc", [][]float64{{2, 0.5, 1}})

	_, err := OnRunD8Accumulation(ctx, &D8AccumulationInput{
		Pointer: pointer,
		Output:  filepath.Join(dir, "acc.asc"),
		OutType: "CA",
		Weights: weights,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]float64{{2, 2.5, 3.5}}, testutil.Rows(testutil.ReadGrid(t, filepath.Join(dir, "acc.asc"))))

	_, err = OnRunD8Accumulation(ctx, &D8AccumulationInput{Pointer: pointer, Output: filepath.Join(dir, "x.asc"), OutType: "volume"})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
}

func TestDInfChain(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	dem := testutil.WriteGrid(t, dir, "dem.asc", plane)

	_, err := OnRunDInfPointer(ctx, &DInfPointerInput{DEM: dem, Output: filepath.Join(dir, "angles.asc")})
	require.NoError(t, err)
	angles := testutil.ReadGrid(t, filepath.Join(dir, "angles.asc"))
	assert.Equal(t, 0.0, angles.Get(1, 0))
	assert.Equal(t, flowdir.NoFlowAngle, angles.Get(1, 2))

	_, err = OnRunDInfAccumulation(ctx, &DInfAccumulationInput{
		Angles: filepath.Join(dir, "angles.asc"),
		Output: filepath.Join(dir, "acc.asc"),
	})
	require.NoError(t, err)
	acc := testutil.ReadGrid(t, filepath.Join(dir, "acc.asc"))
	for r := 0; r < 3; r++ {
		assert.InDelta(t, 3.0, acc.Get(r, 2), 1e-9)
	}
}

func TestFD8Accumulation_ConservesMass(t *testing.T) {
	dir := t.TempDir()
	dem := testutil.WriteGrid(t, dir, "dem.asc", plane)

	_, err := OnRunFD8Accumulation(context.Background(), &FD8AccumulationInput{
		DEM:      dem,
		Output:   filepath.Join(dir, "acc.asc"),
		Exponent: flowdir.DefaultExponent,
	})
	require.NoError(t, err)

	acc := testutil.ReadGrid(t, filepath.Join(dir, "acc.asc"))
	outlets := 0.0
	for r := 0; r < 3; r++ {
		outlets += acc.Get(r, 2)
	}
	assert.InDelta(t, 9.0, outlets, 1e-9)
}

func TestFD8Accumulation_RejectsZeroExponent(t *testing.T) {
	dir := t.TempDir()
	dem := testutil.WriteGrid(t, dir, "dem.asc", plane)
	_, err := OnRunFD8Accumulation(context.Background(), &FD8AccumulationInput{DEM: dem, Output: filepath.Join(dir, "acc.asc")})
	assert.ErrorIs(t, err, flowerr.ErrConfig)
}

func TestFindNoFlowCells(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	out, err := OnRunFindNoFlowCells(ctx, &NoFlowInput{
		DEM:    testutil.WriteGrid(t, dir, "plane.asc", plane),
		Output: filepath.Join(dir, "noflow.asc"),
	})
	require.NoError(t, err)
	assertNumber(t, 0, out.GetAttr("count"))

	out, err = OnRunFindNoFlowCells(ctx, &NoFlowInput{
		DEM:    testutil.WriteGrid(t, dir, "pit.asc", [][]float64{{5, 5, 5}, {5, 1, 5}, {5, 5, 5}}),
		Output: filepath.Join(dir, "noflow.asc"),
	})
	require.NoError(t, err)
	assertNumber(t, 1, out.GetAttr("count"))
	assert.Equal(t, 1.0, testutil.ReadGrid(t, filepath.Join(dir, "noflow.asc")).Get(1, 1))
}
