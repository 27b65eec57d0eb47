package app_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/app"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/report"
	"github.com/vk/flowgrid/internal/testutil"
)

// catchment runs conditioning, routing and network extraction over one DEM.
const catchment = `
step "env_vars" "env" {
  arguments {
    prefix = "FLOWGRID_APP_TEST_"
  }
}

step "fill_depressions" "dem" {
  arguments {
    dem    = "${step.env_vars.env.all.FLOWGRID_APP_TEST_DATA}/dem.asc"
    output = "%[1]s/filled.asc"
  }
}

step "d8_pointer" "dem" {
  arguments {
    dem    = step.fill_depressions.dem.output
    output = "%[1]s/pointer.asc"
  }
}

step "d8_flow_accumulation" "dem" {
  arguments {
    pointer = step.d8_pointer.dem.output
    output  = "%[1]s/acc.asc"
  }
}

step "extract_streams" "dem" {
  arguments {
    accumulation = step.d8_flow_accumulation.dem.output
    output       = "%[1]s/streams.asc"
    threshold    = 3
  }
}

step "strahler_stream_order" "dem" {
  arguments {
    pointer = step.d8_pointer.dem.output
    streams = step.extract_streams.dem.output
    output  = "%[1]s/order.asc"
  }
}

step "grid_summary" "acc" {
  arguments {
    grid = step.d8_flow_accumulation.dem.output
  }
}

step "print" "summary" {
  arguments {
    message = "Accumulation summary."
    values = {
      max    = step.grid_summary.acc.max
      digest = step.grid_summary.acc.digest
    }
  }
}
`

var plane = [][]float64{
	{3, 2, 1},
	{3, 2, 1},
	{3, 2, 1},
}

func TestRun_Catchment(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("FLOWGRID_APP_TEST_DATA", dir)
	testutil.WriteGrid(t, dir, "dem.asc", plane)
	pipeline := testutil.WriteFiles(t, filepath.Join(dir, "pipeline"), map[string]string{
		"main.hcl": fmt.Sprintf(catchment, dir),
	})
	reportPath := filepath.Join(dir, "report.yaml")

	a, logs := app.SetupAppTest(t, &app.Config{PipelinePath: pipeline, ReportPath: reportPath, WorkerCount: 2})
	require.NoError(t, a.Run(context.Background()))

	assert.Equal(t, [][]float64{{1, 2, 3}, {1, 2, 3}, {1, 2, 3}},
		testutil.Rows(testutil.ReadGrid(t, filepath.Join(dir, "acc.asc"))))
	order := testutil.ReadGrid(t, filepath.Join(dir, "order.asc"))
	assert.Equal(t, []float64{1, 1, 1}, []float64{order.Get(0, 2), order.Get(1, 2), order.Get(2, 2)})
	assert.True(t, order.IsNoData(order.Get(0, 0)))

	rep, err := report.Load(context.Background(), reportPath)
	require.NoError(t, err)
	assert.Equal(t, report.StatusSucceeded, rep.Status)
	assert.Equal(t, map[string]int{"done": 8}, rep.Summary)
	require.Len(t, rep.Steps, 8)
	assert.Equal(t, "step.d8_flow_accumulation.dem", rep.Steps[0].ID)
	assert.Equal(t, filepath.Join(dir, "acc.asc"), rep.Steps[0].Outputs["output"])

	assert.Contains(t, logs.String(), "Finished step")
	assert.Contains(t, logs.String(), "Accumulation summary.")
}

func TestRun_FailureSkipsDependents(t *testing.T) {
	dir := t.TempDir()
	pipeline := testutil.WriteFiles(t, dir, map[string]string{
		"main.hcl": fmt.Sprintf(`
step "d8_pointer" "dem" {
  arguments {
    dem    = "%[1]s/missing.asc"
    output = "%[1]s/pointer.asc"
  }
}

step "basins" "dem" {
  arguments {
    pointer = step.d8_pointer.dem.output
    output  = "%[1]s/basins.asc"
  }
}
`, dir),
	})
	reportPath := filepath.Join(dir, "report.yaml")

	a, _ := app.SetupAppTest(t, &app.Config{PipelinePath: filepath.Join(pipeline, "main.hcl"), ReportPath: reportPath})
	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step.d8_pointer.dem")

	rep, err := report.Load(context.Background(), reportPath)
	require.NoError(t, err)
	assert.Equal(t, report.StatusFailed, rep.Status)
	assert.Equal(t, map[string]int{"failed": 1, "skipped": 1}, rep.Summary)
}

func TestRun_BuildErrors(t *testing.T) {
	testCases := []struct {
		name     string
		pipeline string
	}{
		{
			name: "unknown tool",
			pipeline: `
step "contour_lines" "dem" {
  arguments {
    dem = "dem.asc"
  }
}`,
		},
		{
			name: "cycle",
			pipeline: `
step "grid_summary" "a" {
  arguments {
    grid = "a.asc"
  }
  depends_on = ["grid_summary.b"]
}

step "grid_summary" "b" {
  arguments {
    grid = "b.asc"
  }
  depends_on = ["grid_summary.a"]
}`,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{"main.hcl": tc.pipeline})
			a, _ := app.SetupAppTest(t, &app.Config{PipelinePath: dir})
			err := a.Run(context.Background())
			assert.ErrorIs(t, err, flowerr.ErrConfig)
		})
	}
}

func TestNewApp_PanicsOnInvalidPipeline(t *testing.T) {
	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		"main.hcl": `step "grid_summary" "a" {`,
	})
	assert.Panics(t, func() {
		app.SetupAppTest(t, &app.Config{PipelinePath: dir})
	})
}

func TestRegistry_CoreModules(t *testing.T) {
	dir := testutil.WriteFiles(t, t.TempDir(), map[string]string{
		"main.hcl": `
step "grid_summary" "a" {
  arguments {
    grid = "a.asc"
  }
}`,
	})
	a, _ := app.SetupAppTest(t, &app.Config{PipelinePath: dir})
	names := a.Registry().Names()
	for _, want := range []string{"fill_depressions", "d8_pointer", "watershed", "grid_summary", "env_vars", "print", "publish"} {
		assert.Contains(t, names, want)
	}
}

func TestNewConfig(t *testing.T) {
	testCases := []struct {
		name    string
		cfg     app.Config
		wantErr bool
	}{
		{"defaults", app.Config{PipelinePath: "p.hcl"}, false},
		{"missing path", app.Config{}, true},
		{"negative workers", app.Config{PipelinePath: "p.hcl", WorkerCount: -1}, true},
		{"bad level", app.Config{PipelinePath: "p.hcl", LogLevel: "trace"}, true},
		{"bad format", app.Config{PipelinePath: "p.hcl", LogFormat: "xml"}, true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := app.NewConfig(tc.cfg)
			if tc.wantErr {
				assert.ErrorIs(t, err, flowerr.ErrConfig)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, app.DefaultWorkers, cfg.WorkerCount)
		})
	}
}
