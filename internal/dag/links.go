package dag

import (
	"context"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/registry"
)

// linkNodes performs the second pass, establishing dependency links.
func linkNodes(ctx context.Context, graph *Graph, r *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Starting node linking pass.")

	for _, node := range graph.Sorted() {
		if err := linkExplicitDeps(ctx, node, node.Step.DependsOn, graph); err != nil {
			return err
		}
		for _, name := range sortedKeys(node.Step.Arguments) {
			if err := linkImplicitDeps(ctx, node, node.Step.Arguments[name], graph, r); err != nil {
				return err
			}
		}
	}
	logger.Debug("Finished node linking pass.")
	return nil
}

// linkExplicitDeps resolves dependencies from a `depends_on` list. Entries
// name a step as "<tool>.<name>", optionally prefixed with "step.".
func linkExplicitDeps(ctx context.Context, node *Node, dependsOn []string, graph *Graph) error {
	logger := ctxlog.FromContext(ctx)
	for _, addr := range dependsOn {
		depID := "step." + strings.TrimPrefix(addr, "step.")
		depNode, ok := graph.Nodes[depID]
		if !ok {
			return flowerr.Config(buildOp, "step %q depends on non-existent step %q", node.ID, addr)
		}
		if depNode == node {
			return flowerr.Config(buildOp, "step %q depends on itself", node.ID)
		}
		logger.Debug("Linking explicit dependency.", "from", node.ID, "to", depID)
		link(node, depNode)
	}
	return nil
}

// linkImplicitDeps parses an expression for `step.<tool>.<name>` traversals
// and links each referenced step. A reference that reaches further, to
// `step.<tool>.<name>.<output>`, must name an output the tool declares.
func linkImplicitDeps(ctx context.Context, node *Node, expr hcl.Expression, graph *Graph, r *registry.Registry) error {
	logger := ctxlog.FromContext(ctx)
	for _, traversal := range expr.Variables() {
		if traversal.RootName() != "step" {
			continue
		}
		if len(traversal) < 3 {
			return flowerr.Config(buildOp, "step %q: incomplete step reference %s", node.ID, formatTraversal(traversal))
		}
		toolAttr, toolOk := traversal[1].(hcl.TraverseAttr)
		nameAttr, nameOk := traversal[2].(hcl.TraverseAttr)
		if !toolOk || !nameOk {
			return flowerr.Config(buildOp, "step %q: malformed step reference %s", node.ID, formatTraversal(traversal))
		}

		depID := "step." + toolAttr.Name + "." + nameAttr.Name
		depNode, ok := graph.Nodes[depID]
		if !ok {
			return flowerr.Config(buildOp, "step %q references undeclared step %q", node.ID, depID)
		}
		if depNode == node {
			return flowerr.Config(buildOp, "step %q references its own outputs", node.ID)
		}

		if len(traversal) > 3 {
			if outAttr, isAttr := traversal[3].(hcl.TraverseAttr); isAttr {
				tool, _ := r.Tool(depNode.Step.Tool)
				if !tool.HasOutput(outAttr.Name) {
					return flowerr.Config(buildOp, "reference to undeclared output %q on step %q", outAttr.Name, depID)
				}
			}
		}

		logger.Debug("Linking implicit dependency.", "from", node.ID, "to", depID, "traversal", formatTraversal(traversal))
		link(node, depNode)
	}
	return nil
}

func link(node, dep *Node) {
	node.Deps[dep.ID] = dep
	dep.Dependents[node.ID] = node
}
