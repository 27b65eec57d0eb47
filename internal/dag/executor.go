package dag

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/vk/flowgrid/internal/config"
	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/flowerr"
	"github.com/vk/flowgrid/internal/registry"
)

// Executor runs a Graph on a fixed number of workers.
type Executor struct {
	graph      *Graph
	numWorkers int
	registry   *registry.Registry
	converter  config.Converter
	wg         sync.WaitGroup
}

// NewExecutor creates an executor. A worker count below one means one.
func NewExecutor(graph *Graph, numWorkers int, r *registry.Registry, conv config.Converter) *Executor {
	if numWorkers < 1 {
		numWorkers = 1
	}
	return &Executor{graph: graph, numWorkers: numWorkers, registry: r, converter: conv}
}

// Run executes the entire graph concurrently and returns an error if any node
// fails. The first failure cancels the run: nodes already running observe the
// canceled context and nodes not yet started are skipped.
func (e *Executor) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)

	readyChan := make(chan *Node, len(e.graph.Nodes))
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	rootNodeCount := 0
	for _, node := range e.graph.Sorted() {
		if node.depCount.Load() == 0 {
			logger.Debug("Found root node.", "nodeID", node.ID)
			readyChan <- node
			rootNodeCount++
		}
	}
	logger.Debug("Found all root nodes.", "count", rootNodeCount)

	e.wg.Add(len(e.graph.Nodes))

	logger.Debug("Starting worker pool.", "workers", e.numWorkers)
	for i := 0; i < e.numWorkers; i++ {
		go e.worker(runCtx, readyChan, cancel, i)
	}

	e.wg.Wait()
	close(readyChan)
	logger.Debug("All nodes completed.")

	return e.outcome(ctx)
}

// outcome picks the error Run reports. The earliest failure that is not a
// cancellation is the root cause; skipped nodes are symptoms.
func (e *Executor) outcome(ctx context.Context) error {
	var failed []*Node
	var canceled error
	for _, node := range e.graph.Sorted() {
		if node.State() != Failed {
			continue
		}
		if flowerr.IsCanceled(node.Error) {
			if canceled == nil {
				canceled = node.Error
			}
			continue
		}
		failed = append(failed, node)
	}

	if len(failed) > 0 {
		sort.SliceStable(failed, func(i, j int) bool { return failed[i].Finished.Before(failed[j].Finished) })
		ids := make([]string, len(failed))
		for i, n := range failed {
			ids[i] = n.ID
		}
		return fmt.Errorf("execution failed for %s: %w", strings.Join(ids, ", "), failed[0].Error)
	}
	if err := ctx.Err(); err != nil {
		return flowerr.Canceled("pipeline", err)
	}
	return canceled
}

// finish moves node into a terminal state exactly once.
func (e *Executor) finish(node *Node, state NodeState, err error) bool {
	done := false
	node.finishOnce.Do(func() {
		node.Error = err
		node.Finished = time.Now()
		node.state.Store(int32(state))
		e.wg.Done()
		done = true
	})
	return done
}

// skipDependents recursively marks all downstream nodes as skipped.
func (e *Executor) skipDependents(ctx context.Context, node *Node) {
	logger := ctxlog.FromContext(ctx)
	for _, id := range sortedKeys(node.Dependents) {
		dependent := node.Dependents[id]
		if e.finish(dependent, Skipped, fmt.Errorf("skipped due to upstream failure of '%s'", node.ID)) {
			logger.Warn("Skipping dependent node due to upstream failure.", "nodeID", dependent.ID, "dependency", node.ID)
			e.skipDependents(ctx, dependent)
		}
	}
}

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, readyChan chan *Node, cancel context.CancelFunc, workerID int) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Worker started.", "workerID", workerID)

	for node := range readyChan {
		workerLogger := logger.With("workerID", workerID, "nodeID", node.ID)

		if err := ctx.Err(); err != nil {
			if e.finish(node, Skipped, err) {
				workerLogger.Warn("Context canceled, skipping node execution.")
				e.skipDependents(ctx, node)
			}
			continue
		}

		workerLogger.Debug("Worker picked up node for execution.")
		node.Started = time.Now()
		node.state.Store(int32(Running))

		err := e.executeStepNode(ctx, node)
		if err != nil {
			if flowerr.IsCanceled(err) {
				workerLogger.Warn("Node canceled.", "error", err)
			} else {
				workerLogger.Error("Node execution failed.", "error", err)
			}
			cancel()
			e.finish(node, Failed, err)
			e.skipDependents(ctx, node)
			continue
		}

		workerLogger.Debug("Node execution succeeded.")
		// Dependents are unlocked before this node is counted done, so the
		// wait group never reaches zero while work is still being queued.
		for _, id := range sortedKeys(node.Dependents) {
			dependent := node.Dependents[id]
			if dependent.depCount.Add(-1) == 0 {
				workerLogger.Debug("Unlocking dependent node.", "dependentID", dependent.ID)
				readyChan <- dependent
			}
		}
		e.finish(node, Done, nil)
	}
	logger.Debug("Worker finished.", "workerID", workerID)
}
