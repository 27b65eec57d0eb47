// Package hydrography provides the drainage area and stream network tools
// that work on a D8 pointer grid.
package hydrography

import (
	"context"
	"math"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/network"
	"github.com/vk/flowgrid/internal/raster"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Point is an inline pour point given in a pipeline file.
type Point struct {
	Row int `cty:"row"`
	Col int `cty:"col"`
	ID  int `cty:"id"`
}

// WatershedInput defines the arguments for the watershed tool. Exactly one
// of PourPoints and Points must be set.
type WatershedInput struct {
	Pointer    string  `hcl:"pointer"`
	Output     string  `hcl:"output"`
	ESRI       bool    `hcl:"esri,optional"`
	PourPoints string  `hcl:"pour_points,optional"`
	Points     []Point `hcl:"points,optional"`
}

// BasinsInput defines the arguments for the basins tool.
type BasinsInput struct {
	Pointer string `hcl:"pointer"`
	Output  string `hcl:"output"`
	ESRI    bool   `hcl:"esri,optional"`
}

// StreamsInput defines the arguments for the extract_streams tool.
type StreamsInput struct {
	Accumulation   string  `hcl:"accumulation"`
	Output         string  `hcl:"output"`
	Threshold      float64 `hcl:"threshold"`
	ZeroBackground bool    `hcl:"zero_background,optional"`
}

// OrderInput defines the arguments shared by the stream ordering tools.
type OrderInput struct {
	Pointer        string `hcl:"pointer"`
	Streams        string `hcl:"streams"`
	Output         string `hcl:"output"`
	ESRI           bool   `hcl:"esri,optional"`
	ZeroBackground bool   `hcl:"zero_background,optional"`
}

// OnRunWatershed is the handler for the watershed tool.
func OnRunWatershed(ctx context.Context, in *WatershedInput) (cty.Value, error) {
	const op = "watershed"
	if (in.PourPoints == "") == (len(in.Points) == 0) {
		return cty.NilVal, flowerr.Config(op, "exactly one of pour_points and points must be set")
	}
	store := raster.NewStore()
	pointer, err := store.Load(ctx, in.Pointer)
	if err != nil {
		return cty.NilVal, err
	}

	var points []network.PourPoint
	if in.PourPoints != "" {
		g, err := store.Load(ctx, in.PourPoints)
		if err != nil {
			return cty.NilVal, err
		}
		if err := raster.RequireSameShape(op, pointer, g); err != nil {
			return cty.NilVal, err
		}
		if points, err = network.PourPointsFromGrid(g); err != nil {
			return cty.NilVal, err
		}
	} else {
		for _, p := range in.Points {
			points = append(points, network.PourPoint{Row: p.Row, Col: p.Col, ID: p.ID})
		}
	}

	out, err := network.Watershed(ctx, pointer, in.ESRI, points)
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	return countValue(in.Output, labelCount(out)), nil
}

// OnRunBasins is the handler for the basins tool.
func OnRunBasins(ctx context.Context, in *BasinsInput) (cty.Value, error) {
	store := raster.NewStore()
	pointer, err := store.Load(ctx, in.Pointer)
	if err != nil {
		return cty.NilVal, err
	}
	out, n, err := network.Basins(ctx, pointer, in.ESRI)
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	ctxlog.FromContext(ctx).Info("Basins delineated.", "count", n)
	return countValue(in.Output, n), nil
}

// OnRunExtractStreams is the handler for the extract_streams tool.
func OnRunExtractStreams(ctx context.Context, in *StreamsInput) (cty.Value, error) {
	store := raster.NewStore()
	acc, err := store.Load(ctx, in.Accumulation)
	if err != nil {
		return cty.NilVal, err
	}
	out, n, err := network.ExtractStreams(ctx, acc, in.Threshold, in.ZeroBackground)
	if err != nil {
		return cty.NilVal, err
	}
	if err := store.Save(ctx, in.Output, out); err != nil {
		return cty.NilVal, err
	}
	if n == 0 {
		ctxlog.FromContext(ctx).Warn("No cells reach the stream threshold.", "threshold", in.Threshold)
	}
	return countValue(in.Output, n), nil
}

type orderFunc func(context.Context, *raster.Grid, *raster.Grid, network.StreamOptions) (*raster.Grid, error)

// orderHandler adapts a stream ordering function to a tool handler.
func orderHandler(f orderFunc) func(context.Context, *OrderInput) (cty.Value, error) {
	return func(ctx context.Context, in *OrderInput) (cty.Value, error) {
		store := raster.NewStore()
		pointer, err := store.Load(ctx, in.Pointer)
		if err != nil {
			return cty.NilVal, err
		}
		streams, err := store.Load(ctx, in.Streams)
		if err != nil {
			return cty.NilVal, err
		}
		out, err := f(ctx, pointer, streams, network.StreamOptions{ESRI: in.ESRI, ZeroBackground: in.ZeroBackground})
		if err != nil {
			return cty.NilVal, err
		}
		if err := store.Save(ctx, in.Output, out); err != nil {
			return cty.NilVal, err
		}
		top := raster.Summarize(out).Max
		if math.IsNaN(top) {
			return cty.ObjectVal(map[string]cty.Value{
				"output": cty.StringVal(in.Output),
				"max":    cty.NullVal(cty.Number),
			}), nil
		}
		return cty.ObjectVal(map[string]cty.Value{
			"output": cty.StringVal(in.Output),
			"max":    cty.NumberFloatVal(top),
		}), nil
	}
}

func countValue(output string, n int) cty.Value {
	return cty.ObjectVal(map[string]cty.Value{
		"output": cty.StringVal(output),
		"count":  cty.NumberIntVal(int64(n)),
	})
}

// labelCount is the number of distinct labels in a watershed grid.
func labelCount(g *raster.Grid) int {
	seen := map[float64]struct{}{}
	for _, v := range g.ValidValues() {
		seen[v] = struct{}{}
	}
	return len(seen)
}

var orderTools = []struct {
	name, desc string
	fn         orderFunc
}{
	{"strahler_stream_order", "Strahler stream order.", network.StrahlerOrder},
	{"shreve_stream_magnitude", "Shreve stream magnitude.", network.ShreveMagnitude},
	{"horton_stream_order", "Horton stream order.", network.HortonOrder},
	{"hack_stream_order", "Hack stream order.", network.HackOrder},
	{"tributary_identifier", "Unique id per tributary, main stems keep the downstream id.", network.TributaryIdentifier},
	{"stream_link_identifier", "Unique id per stream link.", network.LinkIdentifier},
}

// Register registers the tools with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("watershed", &registry.Tool{
		Description: "Area draining to each pour point, labelled with the point id.",
		NewInput:    func() any { return new(WatershedInput) },
		Fn:          OnRunWatershed,
		Outputs:     []string{"output", "count"},
	})
	r.RegisterTool("basins", &registry.Tool{
		Description: "Every drainage basin, numbered by outlet in row-major order.",
		NewInput:    func() any { return new(BasinsInput) },
		Fn:          OnRunBasins,
		Outputs:     []string{"output", "count"},
	})
	r.RegisterTool("extract_streams", &registry.Tool{
		Description: "Stream cells where accumulation reaches a threshold.",
		NewInput:    func() any { return new(StreamsInput) },
		Fn:          OnRunExtractStreams,
		Outputs:     []string{"output", "count"},
	})
	for _, t := range orderTools {
		r.RegisterTool(t.name, &registry.Tool{
			Description: t.desc,
			NewInput:    func() any { return new(OrderInput) },
			Fn:          orderHandler(t.fn),
			Outputs:     []string{"output", "max"},
		})
	}
}
