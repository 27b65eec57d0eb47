package dag

import (
	"context"
	"fmt"
	"sort"

	"github.com/vk/flowgrid/internal/config"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/registry"
)

const buildOp = "dag.Build"

// Build constructs a complete, validated dependency graph from a config model.
// Every failure is a configuration error.
func Build(ctx context.Context, model *config.Model, r *registry.Registry) (*Graph, error) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Build: Starting graph construction.")
	graph := &Graph{Nodes: make(map[string]*Node)}

	// First pass: one node per step.
	if err := createNodes(model, graph, r); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node creation complete.", "node_count", len(graph.Nodes))

	// Second pass: link dependencies.
	if err := linkNodes(ctx, graph, r); err != nil {
		return nil, err
	}
	logger.Debug("Build: Node linking complete.")

	// Third pass: initialize counters.
	for _, node := range graph.Nodes {
		node.setInitialCounters()
	}

	if err := graph.detectCycles(); err != nil {
		return nil, flowerr.Config(buildOp, "error validating dependency graph: %w", err)
	}
	logger.Debug("Build: Graph construction successful.")
	return graph, nil
}

func createNodes(model *config.Model, graph *Graph, r *registry.Registry) error {
	for _, s := range model.Steps {
		id := s.ID()
		if _, exists := graph.Nodes[id]; exists {
			return flowerr.Config(buildOp, "duplicate step %q", id)
		}
		if _, ok := r.Tool(s.Tool); !ok {
			return flowerr.Config(buildOp, "step %q uses unknown tool %q", id, s.Tool)
		}
		graph.Nodes[id] = &Node{
			ID:         id,
			Step:       s,
			Deps:       make(map[string]*Node),
			Dependents: make(map[string]*Node),
		}
	}
	return nil
}

// detectCycles checks for circular dependencies in the graph using DFS.
// Nodes are visited in ID order so the reported node is stable.
func (g *Graph) detectCycles() error {
	visiting := make(map[string]bool)
	visited := make(map[string]bool)

	var visit func(node *Node) error
	visit = func(node *Node) error {
		visiting[node.ID] = true
		for _, id := range sortedKeys(node.Deps) {
			dep := node.Deps[id]
			if visiting[dep.ID] {
				return fmt.Errorf("cycle detected involving '%s'", dep.ID)
			}
			if !visited[dep.ID] {
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		delete(visiting, node.ID)
		visited[node.ID] = true
		return nil
	}

	for _, node := range g.Sorted() {
		if !visited[node.ID] {
			if err := visit(node); err != nil {
				return err
			}
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
