package dag

import (
	"context"
	"fmt"
	"reflect"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/function"
	"github.com/zclconf/go-cty/cty/function/stdlib"
)

// functions are available in every argument expression.
var functions = map[string]function.Function{
	"format": stdlib.FormatFunc,
	"join":   stdlib.JoinFunc,
	"lower":  stdlib.LowerFunc,
	"upper":  stdlib.UpperFunc,
	"min":    stdlib.MinFunc,
	"max":    stdlib.MaxFunc,
}

// executeStepNode decodes the node's arguments against the outputs of its
// dependencies, calls the tool handler and stores its output on the node.
func (e *Executor) executeStepNode(ctx context.Context, node *Node) error {
	ctx, logger := ctxlog.With(ctx, "step", node.ID)
	logger.Info("▶️ Starting step")

	tool, ok := e.registry.Tool(node.Step.Tool)
	if !ok {
		return flowerr.Config(node.ID, "unknown tool %q", node.Step.Tool)
	}

	input := tool.NewInput()
	evalCtx := buildEvalContext(node)
	if err := e.converter.DecodeArguments(ctx, input, node.Step.Arguments, evalCtx); err != nil {
		return flowerr.Config(node.ID, "invalid arguments: %w", err)
	}
	logger.Debug("Step Input:", "data", input)

	results := reflect.ValueOf(tool.Fn).Call([]reflect.Value{reflect.ValueOf(ctx), reflect.ValueOf(input)})
	if errResult := results[1].Interface(); errResult != nil {
		return errResult.(error)
	}

	output := results[0].Interface().(cty.Value)
	if output.IsNull() {
		return fmt.Errorf("tool %q for step %s returned no output", node.Step.Tool, node.ID)
	}
	if !output.Type().IsObjectType() {
		return fmt.Errorf("tool %q for step %s returned %s, want an object", node.Step.Tool, node.ID, output.Type().FriendlyName())
	}
	node.Output = output

	if data, err := ValueToInterface(output); err == nil {
		logger.Debug("Step Output:", "data", data)
	}
	logger.Info("✅ Finished step")
	return nil
}

// buildEvalContext exposes the outputs of the node's dependencies as
// `step.<tool>.<name>.<output>`.
func buildEvalContext(node *Node) *hcl.EvalContext {
	byTool := make(map[string]map[string]cty.Value)
	for _, dep := range node.Deps {
		if dep.Output.IsNull() {
			continue
		}
		names, ok := byTool[dep.Step.Tool]
		if !ok {
			names = make(map[string]cty.Value)
			byTool[dep.Step.Tool] = names
		}
		names[dep.Step.Name] = dep.Output
	}

	tools := make(map[string]cty.Value, len(byTool))
	for tool, names := range byTool {
		tools[tool] = cty.ObjectVal(names)
	}
	return &hcl.EvalContext{
		Variables: map[string]cty.Value{"step": cty.ObjectVal(tools)},
		Functions: functions,
	}
}
