package dag

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vk/flowgrid/internal/config"
	"github.com/zclconf/go-cty/cty"
)

// NodeState is the lifecycle position of a node.
type NodeState int32

const (
	Pending NodeState = iota
	Running
	Done
	Failed
	Skipped
)

func (s NodeState) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Done:
		return "done"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// Graph is the set of step nodes of one pipeline.
type Graph struct {
	Nodes map[string]*Node
}

// Sorted returns the nodes ordered by ID.
func (g *Graph) Sorted() []*Node {
	nodes := make([]*Node, 0, len(g.Nodes))
	for _, n := range g.Nodes {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	return nodes
}

// Node is one step of the pipeline together with its run outcome.
// Output, Error, Started and Finished are written by the worker that runs
// the node and are safe to read once the executor has returned.
type Node struct {
	ID         string
	Step       *config.Step
	Deps       map[string]*Node
	Dependents map[string]*Node

	Output   cty.Value
	Error    error
	Started  time.Time
	Finished time.Time

	depCount   atomic.Int32
	state      atomic.Int32
	finishOnce sync.Once
}

// State returns the node's current state.
func (n *Node) State() NodeState {
	return NodeState(n.state.Load())
}

// Duration is the wall time the node spent running, zero if it never ran.
func (n *Node) Duration() time.Duration {
	if n.Started.IsZero() || n.Finished.IsZero() {
		return 0
	}
	return n.Finished.Sub(n.Started)
}

// setInitialCounters arms the dependency counter before execution.
func (n *Node) setInitialCounters() {
	n.depCount.Store(int32(len(n.Deps)))
	n.state.Store(int32(Pending))
}
