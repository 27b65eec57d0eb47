// Package env_vars provides the env_vars tool, which exposes process
// environment variables to a pipeline so grid locations can be
// parameterised per run.
package env_vars

import (
	"context"
	"os"
	"strings"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Input defines the arguments for the env_vars tool.
type Input struct {
	// Prefix keeps only the variables whose names start with it.
	Prefix string `hcl:"prefix,optional"`
}

// OnRunEnvVars is the handler for the env_vars tool. Its `all` output maps
// each selected variable name to its value.
func OnRunEnvVars(ctx context.Context, in *Input) (cty.Value, error) {
	vars := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		name, value, ok := strings.Cut(e, "=")
		if !ok || !strings.HasPrefix(name, in.Prefix) {
			continue
		}
		vars[name] = cty.StringVal(value)
	}
	ctxlog.FromContext(ctx).Debug("Environment captured.", "prefix", in.Prefix, "count", len(vars))

	all := cty.MapValEmpty(cty.String)
	if len(vars) > 0 {
		all = cty.MapVal(vars)
	}
	return cty.ObjectVal(map[string]cty.Value{"all": all}), nil
}

// Register registers the tool with the registry.
func (m *Module) Register(r *registry.Registry) {
	r.RegisterTool("env_vars", &registry.Tool{
		Description: "Process environment variables, optionally filtered by name prefix.",
		NewInput:    func() any { return new(Input) },
		Fn:          OnRunEnvVars,
		Outputs:     []string{"all"},
	})
}
