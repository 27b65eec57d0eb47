package app

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/flowgrid/internal/ctxlog"
	"github.com/vk/flowgrid/internal/dag"
	"github.com/vk/flowgrid/internal/report"
)

// Run builds the pipeline DAG and executes it. When a report path is
// configured the run report is written even if execution failed.
func (a *App) Run(ctx context.Context) error {
	ctx = ctxlog.WithLogger(ctx, a.logger)
	a.logger.Debug("App.Run method started.")
	started := time.Now()

	graph, err := dag.Build(ctx, a.pipeline, a.registry)
	if err != nil {
		return fmt.Errorf("failed to build dependency graph: %w", err)
	}
	a.logger.Debug("Dependency graph built.", "node_count", len(graph.Nodes))
	a.logger.Info("Tools registered:", "count", len(a.registry.Names()), "names", a.registry.Names())

	var runErr error
	if len(graph.Nodes) > 0 {
		a.logger.Info("🚀 Starting concurrent execution...", "steps", len(graph.Nodes), "workers", a.cfg.WorkerCount)
		exec := dag.NewExecutor(graph, a.cfg.WorkerCount, a.registry, a.converter)
		if err := exec.Run(ctx); err != nil {
			runErr = fmt.Errorf("execution failed: %w", err)
		} else {
			a.logger.Info("🏁 Execution finished.", "duration", time.Since(started).String())
		}
	} else {
		a.logger.Warn("No steps found in pipeline, execution not required.")
	}

	if a.cfg.ReportPath != "" {
		if err := a.writeReport(ctx, graph, started, runErr); err != nil {
			if runErr != nil {
				a.logger.Error("Failed to write run report.", "error", err)
				return runErr
			}
			return err
		}
	}

	a.logger.Debug("App.Run method finished.")
	return runErr
}

func (a *App) writeReport(ctx context.Context, graph *dag.Graph, started time.Time, runErr error) error {
	rep := report.New(a.cfg.PipelinePath, started)
	for _, node := range graph.Sorted() {
		step := report.Step{
			ID:     node.ID,
			Tool:   node.Step.Tool,
			Status: node.State().String(),
		}
		if d := node.Duration(); d > 0 {
			step.Duration = d.String()
		}
		if node.Error != nil {
			step.Error = node.Error.Error()
		}
		if node.State() == dag.Done {
			out, err := dag.ValueToInterface(node.Output)
			if err != nil {
				return fmt.Errorf("failed to convert outputs of %s: %w", node.ID, err)
			}
			if m, ok := out.(map[string]any); ok {
				step.Outputs = m
			}
		}
		rep.Add(step)
	}
	rep.Finish(runErr, time.Now())

	if err := report.Save(ctx, a.cfg.ReportPath, rep); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	a.logger.Info("Run report written.", "location", a.cfg.ReportPath, "status", rep.Status)
	return nil
}
