// Package inspect provides the grid_summary tool.
package inspect

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/raster"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the grid_summary tool.
type Input struct {
	Grid string `hcl:"grid"`
}

// OnRunGridSummary is the handler for the grid_summary tool. Statistics of
// a grid without valid cells are null.
func OnRunGridSummary(ctx context.Context, in *Input) (cty.Value, error) {
	g, err := raster.NewStore().Load(ctx, in.Grid)
	if err != nil {
		return cty.NilVal, err
	}
	digest, err := raster.Digest(g)
	if err != nil {
		return cty.NilVal, err
	}
	s := raster.Summarize(g)
	ctxlog.FromContext(ctx).Info("Grid summarized.", "grid", in.Grid, "digest", digest, "valid", s.Valid)

	num := func(v float64) cty.Value {
		if s.Valid == 0 || math.IsNaN(v) {
			return cty.NullVal(cty.Number)
		}
		return cty.NumberFloatVal(v)
	}
	return cty.ObjectVal(map[string]cty.Value{
		"digest": cty.StringVal(digest),
		"rows":   cty.NumberIntVal(int64(g.Rows)),
		"cols":   cty.NumberIntVal(int64(g.Cols)),
		"valid":  cty.NumberIntVal(int64(s.Valid)),
		"min":    num(s.Min),
		"max":    num(s.Max),
		"mean":   num(s.Mean),
		"sum":    num(s.Sum),
	}), nil
}

// Register registers the tool with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("grid_summary", &registry.Tool{
		Description: "Digest and statistics of the valid cells of a grid.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunGridSummary,
		Outputs:     []string{"digest", "rows", "cols", "valid", "min", "max", "mean", "sum"},
	})
}
