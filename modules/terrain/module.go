// Package terrain provides the DEM conditioning tools: depression filling
// and breaching, and the single-cell pit passes.
package terrain

import (
	"context"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/depression"
	"github.com/vk/flowgrid/internal/progress"
	"github.com/vk/flowgrid/internal/raster"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// FillInput defines the arguments for the fill_depressions tool.
type FillInput struct {
	DEM          string  `hcl:"dem"`
	Output       string  `hcl:"output"`
	FixFlats        bool    `hcl:"fix_flats,optional"`
	Epsilon         float64 `hcl:"epsilon,optional"`
	NoDataIsBarrier bool    `hcl:"nodata_is_barrier,optional"`
}

// BreachInput defines the arguments for the breach_depressions tool.
type BreachInput struct {
	DEM           string  `hcl:"dem"`
	Output        string  `hcl:"output"`
	MaxDepth      float64 `hcl:"max_depth,optional"`
	MaxLength     int     `hcl:"max_length,optional"`
	FillRemaining   bool    `hcl:"fill_remaining,optional"`
	Epsilon         float64 `hcl:"epsilon,optional"`
	NoDataIsBarrier bool    `hcl:"nodata_is_barrier,optional"`
}

// PitsInput defines the arguments for the single-cell pit tools.
type PitsInput struct {
	DEM    string `hcl:"dem"`
	Output string `hcl:"output"`
}

var (
	resultOutputs = []string{"output", "raised", "lowered", "pits", "unresolved"}
	pitOutputs    = []string{"output", "count", "unresolved"}
)

// OnRunFillDepressions is the handler for the fill_depressions tool.
func OnRunFillDepressions(ctx context.Context, in *FillInput) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	out, res, err := depression.Fill(ctx, dem, depression.FillOptions{
		FixFlats:        in.FixFlats,
		Epsilon:         in.Epsilon,
		NoDataIsBarrier: in.NoDataIsBarrier,
		Progress:        progress.Logged(ctx, "fill_depressions", 10),
	})
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	ctxlog.FromContext(ctx).Info("Depressions filled.", "raised", res.Raised, "pits", res.Pits, "unresolved", res.Unresolved)
	return resultValue(in.Output, res), nil
}

// OnRunBreachDepressions is the handler for the breach_depressions tool.
func OnRunBreachDepressions(ctx context.Context, in *BreachInput) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	out, res, err := depression.Breach(ctx, dem, depression.BreachOptions{
		MaxDepth:        in.MaxDepth,
		MaxLength:       in.MaxLength,
		FillRemaining:   in.FillRemaining,
		Epsilon:         in.Epsilon,
		NoDataIsBarrier: in.NoDataIsBarrier,
		Progress:        progress.Logged(ctx, "breach_depressions", 10),
	})
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	ctxlog.FromContext(ctx).Info("Depressions breached.",
		"lowered", res.Lowered, "raised", res.Raised, "pits", res.Pits, "unresolved", res.Unresolved)
	return resultValue(in.Output, res), nil
}

// OnRunFillSingleCellPits is the handler for the fill_single_cell_pits tool.
func OnRunFillSingleCellPits(ctx context.Context, in *PitsInput) (cty.Value, error) {
	return runPits(ctx, in, depression.FillSinglePits)
}

// OnRunBreachSingleCellPits is the handler for the breach_single_cell_pits tool.
func OnRunBreachSingleCellPits(ctx context.Context, in *PitsInput) (cty.Value, error) {
	return runPits(ctx, in, depression.BreachSinglePits)
}

func runPits(ctx context.Context, in *PitsInput, pass func(context.Context, *raster.Grid) (*raster.Grid, depression.PitResult, error)) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	out, res, err := pass(ctx, dem)
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	ctxlog.FromContext(ctx).Info("Single-cell pits resolved.", "count", res.Resolved, "unresolved", res.Unresolved)
	return cty.ObjectVal(map[string]cty.Value{
		"output":     cty.StringVal(in.Output),
		"count":      cty.NumberIntVal(int64(res.Resolved)),
		"unresolved": cty.NumberIntVal(int64(res.Unresolved)),
	}), nil
}

func resultValue(output string, res *depression.Result) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"output":     cty.StringVal(output),
		"raised":     cty.NumberIntVal(int64(res.Raised)),
		"lowered":    cty.NumberIntVal(int64(res.Lowered)),
		"pits":       cty.NumberIntVal(int64(res.Pits)),
		"unresolved": cty.NumberIntVal(int64(res.Unresolved)),
	})
}

// Register registers the tools with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("fill_depressions", &registry.Tool{
		Description: "Fill depressions by priority flood so every cell drains to an exit.",
		NewInput:    func() any { return new(FillInput) },
		Fn:          OnRunFillDepressions,
		Outputs:     resultOutputs,
	})
	r.RegisterTool("breach_depressions", &registry.Tool{
		Description: "Carve channels out of depressions, optionally bounded and followed by filling.",
		NewInput:    func() any { return new(BreachInput) },
		Fn:          OnRunBreachDepressions,
		Outputs:     resultOutputs,
	})
	r.RegisterTool("fill_single_cell_pits", &registry.Tool{
		Description: "Raise single-cell pits to their lowest neighbour.",
		NewInput:    func() any { return new(PitsInput) },
		Fn:          OnRunFillSingleCellPits,
		Outputs:     pitOutputs,
	})
	r.RegisterTool("breach_single_cell_pits", &registry.Tool{
		Description: "Breach single-cell pits through a one-cell channel to a lower second-ring cell.",
		NewInput:    func() any { return new(PitsInput) },
		Fn:          OnRunBreachSingleCellPits,
		Outputs:     pitOutputs,
	})
}
