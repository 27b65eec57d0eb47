// Package print provides the print tool, which logs values computed by
// earlier steps.
package print

import (
	"context"
	"sort"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the print tool.
type Input struct {
	Message string            `hcl:"message,optional"`
	Values  map[string]string `hcl:"values"`
}

// OnRunPrint is the handler for the print tool. Values are logged at Info
// in key order.
func OnRunPrint(ctx context.Context, in *Input) (cty.Value, error) {
	msg := in.Message
	if msg == "" {
		msg = "Printing values."
	}

	keys := make([]string, 0, len(in.Values))
	for k := range in.Values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	attrs := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		attrs = append(attrs, k, in.Values[k])
	}
	ctxlog.FromContext(ctx).Info(msg, attrs...)

	return cty.ObjectVal(map[string]cty.Value{"count": cty.NumberIntVal(int64(len(keys)))}), nil
}

// Register registers the tool with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("print", &registry.Tool{
		Description: "Logs a set of named values.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunPrint,
		Outputs:     []string{"count"},
	})
}
