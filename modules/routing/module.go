// Package routing provides the flow direction and flow accumulation tools.
package routing

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/accum"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowdir"
	"github.com/vk/flowgrid/internal/progress"
	"github.com/vk/flowgrid/internal/raster"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// D8PointerInput defines the arguments for the d8_pointer tool.
type D8PointerInput struct {
	DEM     string `hcl:"dem"`
	Output  string `hcl:"output"`
	ESRI    bool   `hcl:"esri,optional"`
	Workers int    `hcl:"workers,optional"`
}

// DInfPointerInput defines the arguments for the dinf_pointer tool.
type DInfPointerInput struct {
	DEM     string `hcl:"dem"`
	Output  string `hcl:"output"`
	Workers int    `hcl:"workers,optional"`
}

// D8AccumulationInput defines the arguments for the d8_flow_accumulation tool.
type D8AccumulationInput struct {
	Pointer string `hcl:"pointer"`
	Output  string `hcl:"output"`
	ESRI    bool   `hcl:"esri,optional"`
	OutType string `hcl:"out_type,optional"`
	Weights string `hcl:"weights,optional"`
	Log     bool   `hcl:"log,optional"`
	Clip    bool   `hcl:"clip,optional"`
}

// DInfAccumulationInput defines the arguments for the dinf_flow_accumulation tool.
type DInfAccumulationInput struct {
	Angles  string `hcl:"angles"`
	Output  string `hcl:"output"`
	OutType string `hcl:"out_type,optional"`
	Weights string `hcl:"weights,optional"`
	Log     bool   `hcl:"log,optional"`
	Clip    bool   `hcl:"clip,optional"`
}

// FD8AccumulationInput defines the arguments for the fd8_flow_accumulation tool.
type FD8AccumulationInput struct {
	DEM       string  `hcl:"dem"`
	Output    string  `hcl:"output"`
	Exponent  float64 `hcl:"exponent,optional"`
	Threshold float64 `hcl:"threshold,optional"`
	Workers   int     `hcl:"workers,optional"`
	OutType   string  `hcl:"out_type,optional"`
	Weights   string  `hcl:"weights,optional"`
	Log       bool    `hcl:"log,optional"`
	Clip      bool    `hcl:"clip,optional"`
}

// NoFlowInput defines the arguments for the find_no_flow_cells tool.
type NoFlowInput struct {
	DEM    string `hcl:"dem"`
	Output string `hcl:"output"`
}

// OnRunD8Pointer is the handler for the d8_pointer tool.
func OnRunD8Pointer(ctx context.Context, in *D8PointerInput) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	out, err := flowdir.D8(ctx, dem, flowdir.D8Options{ESRI: in.ESRI, Workers: in.Workers})
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	return outputValue(in.Output, nil), nil
}

// OnRunDInfPointer is the handler for the dinf_pointer tool.
func OnRunDInfPointer(ctx context.Context, in *DInfPointerInput) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	out, err := flowdir.DInf(ctx, dem, flowdir.DInfOptions{Workers: in.Workers})
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	return outputValue(in.Output, nil), nil
}

// OnRunD8Accumulation is the handler for the d8_flow_accumulation tool.
func OnRunD8Accumulation(ctx context.Context, in *D8AccumulationInput) (cty.Value, error) {
	store := raster.NewStore()
	pointer, err := store.Load(ctx, in.Pointer)
	if err != nil {
		return cty.NilVal, err
	}
	router, err := flowdir.NewD8Router(pointer, in.ESRI)
	if err != nil {
		return cty.NilVal, err
	}
	return accumulate(ctx, store, "d8_flow_accumulation", router, pointer, accumSettings{
		output: in.Output, outType: in.OutType, weights: in.Weights, log: in.Log, clip: in.Clip,
	})
}

// OnRunDInfAccumulation is the handler for the dinf_flow_accumulation tool.
func OnRunDInfAccumulation(ctx context.Context, in *DInfAccumulationInput) (cty.Value, error) {
	store := raster.NewStore()
	angles, err := store.Load(ctx, in.Angles)
	if err != nil {
		return cty.NilVal, err
	}
	router, err := flowdir.NewDInfRouter(angles)
	if err != nil {
		return cty.NilVal, err
	}
	return accumulate(ctx, store, "dinf_flow_accumulation", router, angles, accumSettings{
		output: in.Output, outType: in.OutType, weights: in.Weights, log: in.Log, clip: in.Clip,
	})
}

// OnRunFD8Accumulation is the handler for the fd8_flow_accumulation tool.
func OnRunFD8Accumulation(ctx context.Context, in *FD8AccumulationInput) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	fd8, err := flowdir.ComputeFD8(ctx, dem, flowdir.FD8Options{
		Exponent:  in.Exponent,
		Threshold: in.Threshold,
		Workers:   in.Workers,
	})
	if err != nil {
		return cty.NilVal, err
	}
	return accumulate(ctx, store, "fd8_flow_accumulation", fd8, dem, accumSettings{
		output: in.Output, outType: in.OutType, weights: in.Weights, log: in.Log, clip: in.Clip,
	})
}

// OnRunFindNoFlowCells is the handler for the find_no_flow_cells tool.
func OnRunFindNoFlowCells(ctx context.Context, in *NoFlowInput) (cty.Value, error) {
	store := raster.NewStore()
	dem, err := store.Load(ctx, in.DEM)
	if err != nil {
		return cty.NilVal, err
	}
	out, n, err := flowdir.NoFlowCells(ctx, dem)
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	if n > 0 {
		ctxlog.FromContext(ctx).Warn("Grid has interior cells without downslope flow.", "count", n)
	}
	return outputValue(in.Output, map[string]cty.Value{"count": cty.NumberIntVal(int64(n))}), nil
}

type accumSettings struct {
	output  string
	outType string
	weights string
	log     bool
	clip    bool
}

func accumulate(ctx context.Context, store *raster.Store, op string, router flowdir.Router, like *raster.Grid, s accumSettings) (cty.Value, error) {
	typ, err := accum.ParseOutputType(s.outType)
	if err != nil {
		return cty.NilVal, err
	}
	opts := accum.Options{Type: typ, Log: s.log, Clip: s.clip, Progress: progress.Logged(ctx, op, 10)}
	if s.weights != "" {
		w, err := store.Load(ctx, s.weights)
		if err != nil {
			return cty.NilVal, err
		}
		opts.Weights = w
	}

	out, err := accum.Accumulate(ctx, router, like, opts)
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, s.output, out); err != nil {
		return cty.NilVal, err
	}
	stats := raster.Summarize(out)
	ctxlog.FromContext(ctx).Info("Flow accumulated.", "type", typ, "max", stats.Max)
	return outputValue(s.output, map[string]cty.Value{"max": numberOrNull(stats.Max)}), nil
}

func outputValue(output string, extra map[string]cty.Value) cty.Value {
	attrs := map[string]cty.Value{"output": cty.StringVal(output)}
	for k, v := range extra {
		attrs[k] = v
	}
	return cty.ObjectVal(attrs)
}

func numberOrNull(v float64) cty.Value {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return cty.NullVal(cty.Number)
	}
	return cty.NumberFloatVal(v)
}

// Register registers the tools with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("d8_pointer", &registry.Tool{
		Description: "Steepest-descent D8 flow pointer.",
		NewInput:    func() any { return new(D8PointerInput) },
		Fn:          OnRunD8Pointer,
		Outputs:     []string{"output"},
	})
	r.RegisterTool("dinf_pointer", &registry.Tool{
		Description: "D-infinity flow angle in radians, counter-clockwise from east.",
		NewInput:    func() any { return new(DInfPointerInput) },
		Fn:          OnRunDInfPointer,
		Outputs:     []string{"output"},
	})
	r.RegisterTool("d8_flow_accumulation", &registry.Tool{
		Description: "Flow accumulation over a D8 pointer grid.",
		NewInput:    func() any { return new(D8AccumulationInput) },
		Fn:          OnRunD8Accumulation,
		Outputs:     []string{"output", "max"},
	})
	r.RegisterTool("dinf_flow_accumulation", &registry.Tool{
		Description: "Flow accumulation over a D-infinity angle grid.",
		NewInput:    func() any { return new(DInfAccumulationInput) },
		Fn:          OnRunDInfAccumulation,
		Outputs:     []string{"output", "max"},
	})
	r.RegisterTool("fd8_flow_accumulation", &registry.Tool{
		Description: "FD8 multiple-flow-direction accumulation computed from a DEM.",
		NewInput:    func() any { return &FD8AccumulationInput{Exponent: flowdir.DefaultExponent} },
		Fn:          OnRunFD8Accumulation,
		Outputs:     []string{"output", "max"},
	})
	r.RegisterTool("find_no_flow_cells", &registry.Tool{
		Description: "Interior cells without a lower neighbour.",
		NewInput:    func() any { return new(NoFlowInput) },
		Fn:          OnRunFindNoFlowCells,
		Outputs:     []string{"output", "count"},
	})
}
